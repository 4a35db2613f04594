package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/llmodel/internal/inference"
	"github.com/samcharles93/llmodel/internal/logger"
	"github.com/samcharles93/llmodel/pkg/llmodel"
)

const chatHelp = `commands:
  /reset         start a new conversation
  /save FILE     save the conversation
  /load FILE     restore a saved conversation
  /stats         toggle per-turn statistics
  /quit          exit`

func chatCmd() *cli.Command {
	var (
		opts       samplingOpts
		streamMode string
		stops      []string
		showStats  bool
	)

	flags := append(commonModelFlags(), opts.flags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "stream-mode",
			Usage:       "output mode (instant, smooth, typewriter)",
			Value:       string(StreamInstant),
			Destination: &streamMode,
		},
		&cli.StringSliceFlag{
			Name:        "stop",
			Usage:       "stop each response at this sequence (repeatable)",
			Destination: &stops,
		},
		&cli.BoolFlag{
			Name:        "stats",
			Usage:       "print statistics after each response",
			Destination: &showStats,
		},
	)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive multi-turn generation on one context",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFromContext(ctx)
			applyModelConfig(cmd, cfg)
			applySamplingConfig(cmd, cfg, &opts)
			applyStreamConfig(cmd, cfg, &streamMode)

			mode, err := parseStreamMode(streamMode)
			if err != nil {
				return cli.Exit(err.Error(), 1)
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

			s := &chatSession{
				model:     m,
				modelFile: path,
				pc:        opts.promptContext(),
				maxTokens: int(opts.steps),
				stops:     stops,
				stats:     showStats,
				editor:    newLineEditor(os.Stdin, os.Stdout),
				out:       NewStreamWriter(os.Stdout, mode, false),
				errOut:    os.Stderr,
			}
			defer s.out.Close()
			fmt.Fprintf(os.Stderr, "chatting with %s (n_ctx %d), /help for commands\n", path, m.ContextLength())
			return s.loop(ctx)
		},
	}
}

// chatSession is one interactive conversation. Every turn appends to the
// same PromptContext, so the model sees the whole exchange.
type chatSession struct {
	model     llmodel.LLModel
	modelFile string
	pc        *llmodel.PromptContext
	maxTokens int
	stops     []string
	stats     bool

	editor *lineEditor
	out    *StreamWriter
	errOut io.Writer
}

func (s *chatSession) loop(ctx context.Context) error {
	log := logger.FromContext(ctx)
	g := inference.NewGenerator(s.model, s.pc)
	g.Log = log
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := s.editor.readLine("> ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			quit, err := s.command(ctx, line)
			if err != nil {
				_, _ = fmt.Fprintf(s.errOut, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}

		s.out.Reset()
		res, err := g.Run(ctx, &inference.Request{
			Prompt:    line,
			MaxTokens: s.maxTokens,
			Stop:      s.stops,
		}, s.out.Write)
		s.out.Reset()
		_, _ = fmt.Fprintln(s.errOut)
		switch {
		case errors.Is(err, inference.ErrPromptTooLong):
			_, _ = fmt.Fprintf(s.errOut, "error: %v\n", err)
			continue
		case errors.Is(err, context.Canceled):
			return nil
		case err != nil:
			return err
		}
		if s.stats {
			printStats(s.errOut, res)
		}
	}
}

// command runs a slash command and reports whether the loop should end.
func (s *chatSession) command(ctx context.Context, line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/quit", "/exit", "/bye":
		return true, nil
	case "/reset":
		s.pc.Reset()
		_, _ = fmt.Fprintln(s.errOut, "conversation reset")
	case "/save":
		if arg == "" {
			return false, errors.New("usage: /save FILE")
		}
		if err := saveSession(arg, s.model, s.modelFile, s.pc); err != nil {
			return false, err
		}
		_, _ = fmt.Fprintf(s.errOut, "saved %d tokens to %s\n", len(s.pc.Tokens), arg)
	case "/load":
		if arg == "" {
			return false, errors.New("usage: /load FILE")
		}
		if err := loadSession(ctx, arg, s.model, s.modelFile, s.pc); err != nil {
			return false, err
		}
		_, _ = fmt.Fprintf(s.errOut, "loaded %d tokens from %s\n", len(s.pc.Tokens), arg)
	case "/stats":
		s.stats = !s.stats
	case "/help", "/?":
		_, _ = fmt.Fprintln(s.errOut, chatHelp)
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return false, nil
}
