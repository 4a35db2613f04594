package main

import (
	"context"
	"fmt"
	"maps"
	"os"
	"runtime"
	"slices"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/llmodel/internal/backend"
	"github.com/samcharles93/llmodel/internal/engine"
	"github.com/samcharles93/llmodel/internal/envconfig"
	"github.com/samcharles93/llmodel/internal/version"
)

func versionCmd() *cli.Command {
	var asJSON, showEnv bool
	return &cli.Command{
		Name:  "version",
		Usage: "Print version and build information",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print JSON", Destination: &asJSON},
			&cli.BoolFlag{Name: "env", Usage: "also list the LLMODEL_* environment settings", Destination: &showEnv},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			info := version.Resolve()
			variants := backend.Available()
			engines := engine.Names()
			if asJSON {
				out := map[string]any{
					"version":  info,
					"backends": variants,
					"engines":  engines,
				}
				if showEnv {
					out["env"] = envconfig.AsMap()
				}
				return writeJSON(os.Stdout, out)
			}
			fmt.Printf("version:    %s\n", version.String())
			if info.BuildTime != "" {
				fmt.Printf("build time: %s\n", info.BuildTime)
			}
			fmt.Printf("go:         %s %s/%s\n", info.GoVersion, runtime.GOOS, runtime.GOARCH)
			fmt.Printf("backends:   %s\n", variants)
			fmt.Printf("engines:    %v\n", engines)
			if showEnv {
				env := envconfig.AsMap()
				fmt.Println()
				for _, k := range slices.Sorted(maps.Keys(env)) {
					fmt.Printf("%-26s %-10v %s\n", k, env[k].Value, env[k].Description)
				}
			}
			return nil
		},
	}
}
