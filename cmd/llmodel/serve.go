package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/llmodel/internal/api"
	"github.com/samcharles93/llmodel/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		opts        samplingOpts
		addr        string
		readTimeout time.Duration
		snapshots   bool
	)

	flags := append(commonModelFlags(), opts.flags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "listen address",
			Value:       "127.0.0.1:8080",
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "read-timeout",
			Usage:       "read header timeout",
			Value:       30 * time.Second,
			Destination: &readTimeout,
		},
		&cli.BoolFlag{
			Name:        "snapshots",
			Usage:       "keep an engine snapshot per session so switching sessions skips re-evaluation",
			Value:       true,
			Destination: &snapshots,
		},
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the completions API",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFromContext(ctx)
			applyModelConfig(cmd, cfg)
			applySamplingConfig(cmd, cfg, &opts)
			applyServeConfig(cmd, cfg, &addr, &snapshots)
			log := logger.FromContext(ctx)

			path, err := resolveModelPath(modelPath, modelsPath, os.Stdin, os.Stderr)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			m, err := loadModel(ctx, path, samplingStages(&opts))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer m.Close()

			server := api.NewServer(api.Config{
				Model: m,
				Info: api.ModelInfo{
					Path:    path,
					Backend: m.Impl.String(),
				},
				Defaults:  opts.promptContext(),
				Snapshots: snapshots,
				Log:       log,
			})

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)

			log.Info("starting server", "address", addr, "snapshots", snapshots)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
