package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/llmodel/internal/engine/toy"
	"github.com/samcharles93/llmodel/internal/logger"
)

func toyCmd() *cli.Command {
	var (
		out     string
		arch    string
		seedVal uint64
	)
	return &cli.Command{
		Name:  "toy",
		Usage: "Write the reference model used by the toy engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output path",
				Value:       "toy.gguf",
				Destination: &out,
			},
			&cli.StringFlag{
				Name:        "arch",
				Usage:       "general.architecture to record",
				Value:       "llama",
				Destination: &arch,
			},
			&cli.Uint64Flag{
				Name:        "weights-seed",
				Usage:       "seed for the generated weights",
				Destination: &seedVal,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			spec := toy.DefaultSpec()
			spec.Arch = arch
			if cmd.IsSet("weights-seed") {
				spec.Seed = uint32(seedVal)
			}
			if err := spec.Write(out); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			logger.FromContext(ctx).Info("wrote toy model", "path", out, "arch", spec.Arch, "vocab", len(spec.Vocab))
			fmt.Println(out)
			return nil
		},
	}
}
