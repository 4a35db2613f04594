package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/llmodel/internal/inference"
	"github.com/samcharles93/llmodel/internal/logger"
)

const benchPrompt = "Explain the theory of relativity in simple terms."

// benchSummary aggregates generated-token throughput over the measured runs.
type benchSummary struct {
	Runs      int
	MinTPS    float64
	MedianTPS float64
	MaxTPS    float64
	// EvalTPS is prompt plus generated tokens per second, averaged.
	EvalTPS float64
}

func summarize(runs []inference.Stats) benchSummary {
	if len(runs) == 0 {
		return benchSummary{}
	}
	tps := make([]float64, len(runs))
	var eval float64
	for i, r := range runs {
		tps[i] = r.TPS
		if secs := r.Duration.Seconds(); secs > 0 {
			eval += float64(r.TokensEvaluated) / secs
		}
	}
	slices.Sort(tps)
	mid := tps[len(tps)/2]
	if len(tps)%2 == 0 {
		mid = (tps[len(tps)/2-1] + mid) / 2
	}
	return benchSummary{
		Runs:      len(runs),
		MinTPS:    tps[0],
		MedianTPS: mid,
		MaxTPS:    tps[len(tps)-1],
		EvalTPS:   eval / float64(len(runs)),
	}
}

func printBenchRuns(w io.Writer, runs []inference.Stats) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	_, _ = fmt.Fprintln(tw, "run\tprompt\tevaluated\tgenerated\ttps\tduration\t")
	for i, r := range runs {
		_, _ = fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%.2f\t%s\t\n",
			i+1, r.PromptTokens, r.TokensEvaluated, r.TokensGenerated, r.TPS, r.Duration.Round(time.Millisecond))
	}
	_ = tw.Flush()

	s := summarize(runs)
	if s.Runs == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "\ngenerated tps: min %.2f, median %.2f, max %.2f\n", s.MinTPS, s.MedianTPS, s.MaxTPS)
	_, _ = fmt.Fprintf(w, "evaluated tps: %.2f avg over %d runs\n", s.EvalTPS, s.Runs)
}

func benchmarkCmd() *cli.Command {
	var (
		opts   samplingOpts
		warmup int64
		runs   int64
		prompt string
	)
	flags := append(commonModelFlags(), opts.flags()...)
	flags = append(flags,
		&cli.Int64Flag{Name: "warmup", Usage: "untimed runs before measuring", Value: 1, Destination: &warmup},
		&cli.Int64Flag{Name: "runs", Usage: "measured runs", Value: 3, Destination: &runs},
		&cli.StringFlag{Name: "prompt", Aliases: []string{"p"}, Usage: "prompt to generate from", Value: benchPrompt, Destination: &prompt},
	)

	return &cli.Command{
		Name:    "benchmark",
		Aliases: []string{"bench"},
		Usage:   "Measure evaluation and sampling throughput",
		Flags:   flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFromContext(ctx)
			applyModelConfig(cmd, cfg)
			applySamplingConfig(cmd, cfg, &opts)
			log := logger.FromContext(ctx)

			path, err := resolveModelPath(modelPath, modelsPath, os.Stdin, os.Stderr)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: resolve model: %v", err), 1)
			}
			// Fixed seed so repeated runs sample the same continuation.
			if seed < 0 {
				seed = 42
			}

			start := time.Now()
			m, err := loadModel(ctx, path, samplingStages(&opts))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			defer m.Close()

			out := cmd.Root().Writer
			if out == nil {
				out = os.Stdout
			}
			_, _ = fmt.Fprintf(out, "model %s\nbackend %s, engine %s, threads %d/%d, gpu %t, context %d\nloaded in %s\n\n",
				filepath.Base(path), m.Impl, m.Engine, m.ThreadCount(), runtime.NumCPU(),
				m.UsingGPUDevice(), m.ContextLength(), time.Since(start).Round(time.Millisecond))

			once := func() (inference.Stats, error) {
				g := inference.NewGenerator(m, opts.promptContext())
				g.Log = log
				res, err := g.Run(ctx, &inference.Request{Prompt: prompt, MaxTokens: int(opts.steps)}, nil)
				if err != nil {
					return inference.Stats{}, err
				}
				return res.Stats, nil
			}

			for i := range warmup {
				log.Debug("warmup", "run", i+1)
				if _, err := once(); err != nil {
					return cli.Exit(fmt.Sprintf("error: warmup run %d: %v", i+1, err), 1)
				}
			}
			measured := make([]inference.Stats, 0, max(runs, 0))
			for i := range runs {
				st, err := once()
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: run %d: %v", i+1, err), 1)
				}
				log.Info("benchmark run", "run", i+1, "tps", st.TPS)
				measured = append(measured, st)
			}
			printBenchRuns(out, measured)
			return nil
		},
	}
}
