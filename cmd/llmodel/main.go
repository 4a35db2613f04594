package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/llmodel/internal/logger"
	"github.com/samcharles93/llmodel/internal/version"
)

type configKey struct{}

func configFromContext(ctx context.Context) Config {
	cfg, _ := ctx.Value(configKey{}).(Config)
	return cfg
}

// setup loads the config file and installs the process logger. It runs
// before every command.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return ctx, cli.Exit(fmt.Sprintf("error: config: %v", err), 1)
	}
	applyLoggingConfig(cmd, cfg)
	if debug {
		logLevel = "debug"
	}
	log := logger.Configure(logFormat, logLevel, os.Stderr)
	logger.SetDefault(log)

	ctx = logger.WithContext(ctx, log)
	return context.WithValue(ctx, configKey{}, cfg), nil
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "llmodel",
		Usage:   "Run llama-family models through the llmodel backend",
		Version: version.String(),
		Flags:   loggingFlags(),
		Before:  setup,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			runCmd(),
			chatCmd(),
			serveCmd(),
			inspectCmd(),
			devicesCmd(),
			modelsCmd(),
			benchmarkCmd(),
			toyCmd(),
			versionCmd(),
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().Run(ctx, os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
