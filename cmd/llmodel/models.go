package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/llmodel/internal/logger"
	"github.com/samcharles93/llmodel/internal/probe"
)

func modelsCmd() *cli.Command {
	return &cli.Command{
		Name:    "models",
		Aliases: []string{"ls", "list-models"},
		Usage:   "List model files in the models directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "models-path",
				Aliases:     []string{"path"},
				Usage:       "directory to list (default $LLMODEL_MODELS_DIR)",
				Destination: &modelsPath,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFromContext(ctx)
			if cfg.ModelsDir != "" && !cmd.IsSet("models-path") {
				modelsPath = cfg.ModelsDir
			}
			log := logger.FromContext(ctx)

			dir := resolveModelsDir(modelsPath)
			models, err := discoverModels(dir)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if len(models) == 0 {
				log.Info("no models found", "path", dir)
				return nil
			}

			fmt.Printf("Models in %s:\n\n", dir)
			for _, m := range models {
				name := filepath.Base(m)
				size := ""
				if st, err := os.Stat(m); err == nil {
					size = formatBytes(uint64(st.Size()))
				}
				desc := "unsupported"
				if c, err := probe.Inspect(m); err == nil {
					desc = c.Architecture
					if !c.Supported {
						desc += ", other backend"
					}
				} else if _, err := probe.ReadHeader(m); err == nil {
					desc = "ggjt"
				}
				fmt.Printf("  %-40s %10s  (%s)\n", name, size, desc)
			}
			fmt.Printf("\n%d model(s) found\n", len(models))
			return nil
		},
	}
}
