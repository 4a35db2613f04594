package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/llmodel/internal/inference"
	"github.com/samcharles93/llmodel/internal/logger"
)

func runCmd() *cli.Command {
	var (
		opts       samplingOpts
		prompt     string
		stops      []string
		streamMode string
		rawOutput  bool
		echoPrompt bool
		saveState  string
		loadState  string
		showStats  bool
	)

	flags := append(commonModelFlags(), opts.flags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "prompt",
			Aliases:     []string{"p"},
			Usage:       "prompt text (read from stdin when omitted and stdin is not a terminal)",
			Destination: &prompt,
		},
		&cli.StringSliceFlag{
			Name:        "stop",
			Usage:       "stop generation at this sequence (repeatable)",
			Destination: &stops,
		},
		&cli.StringFlag{
			Name:        "stream-mode",
			Usage:       "output mode (instant, smooth, typewriter, quiet)",
			Value:       string(StreamInstant),
			Destination: &streamMode,
		},
		&cli.BoolFlag{
			Name:        "raw",
			Usage:       "escape control characters in the output",
			Destination: &rawOutput,
		},
		&cli.BoolFlag{
			Name:        "echo-prompt",
			Usage:       "print the prompt before the response",
			Destination: &echoPrompt,
		},
		&cli.StringFlag{
			Name:        "save-state",
			Usage:       "write the conversation and engine snapshot to FILE after generating",
			Destination: &saveState,
		},
		&cli.StringFlag{
			Name:        "load-state",
			Usage:       "continue a conversation saved with --save-state",
			Destination: &loadState,
		},
		&cli.BoolFlag{
			Name:        "stats",
			Usage:       "print generation statistics to stderr",
			Value:       true,
			Destination: &showStats,
		},
	)

	return &cli.Command{
		Name:  "run",
		Usage: "Generate one response for a prompt",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFromContext(ctx)
			applyModelConfig(cmd, cfg)
			applySamplingConfig(cmd, cfg, &opts)
			applyStreamConfig(cmd, cfg, &streamMode)
			log := logger.FromContext(ctx)

			mode, err := parseStreamMode(streamMode)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if prompt == "" && !stdinIsTTY() {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return err
				}
				prompt = strings.TrimRight(string(data), "\n")
			}
			if prompt == "" {
				return cli.Exit("error: --prompt is required", 1)
			}

			path, err := resolveModelPath(modelPath, modelsPath, os.Stdin, os.Stderr)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			m, err := loadModel(ctx, path, samplingStages(&opts))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer m.Close()

			pc := opts.promptContext()
			pc.NCtx = m.ContextLength()
			if loadState != "" {
				if err := loadSession(ctx, loadState, m, path, pc); err != nil {
					return cli.Exit(fmt.Sprintf("error: load state: %v", err), 1)
				}
			}

			g := inference.NewGenerator(m, pc)
			g.Log = log
			w := NewStreamWriter(os.Stdout, mode, rawOutput)
			res, err := g.Run(ctx, &inference.Request{
				Prompt:     prompt,
				MaxTokens:  int(opts.steps),
				Stop:       stops,
				EchoPrompt: echoPrompt,
			}, w.Write)
			w.Close()
			fmt.Println()
			if err != nil && !errors.Is(err, context.Canceled) {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if showStats {
				printStats(os.Stderr, res)
			}
			if saveState != "" {
				if err := saveSession(saveState, m, path, pc); err != nil {
					return cli.Exit(fmt.Sprintf("error: save state: %v", err), 1)
				}
				log.Info("session saved", "path", saveState, "tokens", len(pc.Tokens))
			}
			return nil
		},
	}
}

func printStats(w io.Writer, res *inference.Result) {
	if res == nil {
		return
	}
	s := res.Stats
	_, _ = fmt.Fprintf(w, "stats: %.2f TPS (%d tokens in %s), prompt %d tokens, evaluated %d, stop=%s",
		s.TPS, s.TokensGenerated, s.Duration.Round(time.Millisecond), s.PromptTokens, s.TokensEvaluated, res.StopReason)
	if s.Recalculations > 0 {
		_, _ = fmt.Fprintf(w, ", %d context recalculation(s)", s.Recalculations)
	}
	_, _ = fmt.Fprintln(w)
}
