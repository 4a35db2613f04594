package main

import (
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/llmodel/pkg/llmodel"
)

var (
	modelPath  string
	modelsPath string
	engineName string
	variant    string
	threads    int64
	device     string
	seed       int64

	configFile string
	logLevel   string
	logFormat  string
	debug      bool
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "path to a GGUF or legacy ggjt model file",
			Destination: &modelPath,
		},
		&cli.StringFlag{
			Name:        "models-path",
			Aliases:     []string{"path"},
			Usage:       "directory searched when --model is not set (default $LLMODEL_MODELS_DIR)",
			Destination: &modelsPath,
		},
		&cli.StringFlag{
			Name:        "engine",
			Usage:       "inference engine (auto, llamacpp, toy)",
			Value:       "auto",
			Destination: &engineName,
		},
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "backend build variant (auto, cpu, llamacpp)",
			Value:       "auto",
			Destination: &variant,
		},
		&cli.Int64Flag{
			Name:        "threads",
			Aliases:     []string{"t"},
			Usage:       "evaluation threads (0 = derived from the host)",
			Destination: &threads,
		},
		&cli.StringFlag{
			Name:        "device",
			Usage:       "GPU device index or name to offload to",
			Destination: &device,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "sampling RNG seed (-1 = random)",
			Value:       -1,
			Destination: &seed,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml (default: user config dir)",
			Destination: &configFile,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}

// samplingOpts backs the generation flags shared by run, chat and serve.
type samplingOpts struct {
	steps         int64
	temp          float64
	topK          int64
	topP          float64
	repeatPenalty float64
	repeatLastN   int64
	batch         int64
	contextErase  float64
	tailFreeZ     float64
	typicalP      float64
}

func (o *samplingOpts) flags() []cli.Flag {
	d := llmodel.NewPromptContext()
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "steps",
			Aliases:     []string{"n", "max-tokens"},
			Usage:       "maximum tokens to generate per turn",
			Value:       int64(d.NPredict),
			Destination: &o.steps,
		},
		&cli.Float64Flag{
			Name:        "temp",
			Aliases:     []string{"temperature"},
			Usage:       "sampling temperature (<= 0 is greedy)",
			Value:       float64(d.Temp),
			Destination: &o.temp,
		},
		&cli.Int64Flag{
			Name:        "top-k",
			Aliases:     []string{"top_k"},
			Usage:       "top-k sampling parameter",
			Value:       int64(d.TopK),
			Destination: &o.topK,
		},
		&cli.Float64Flag{
			Name:        "top-p",
			Aliases:     []string{"top_p"},
			Usage:       "top-p sampling parameter",
			Value:       float64(d.TopP),
			Destination: &o.topP,
		},
		&cli.Float64Flag{
			Name:        "repeat-penalty",
			Aliases:     []string{"repeat_penalty"},
			Usage:       "repetition penalty (1.0 = disabled)",
			Value:       float64(d.RepeatPenalty),
			Destination: &o.repeatPenalty,
		},
		&cli.Int64Flag{
			Name:        "repeat-last-n",
			Aliases:     []string{"repeat_last_n"},
			Usage:       "last n tokens to penalize",
			Value:       int64(d.RepeatLastN),
			Destination: &o.repeatLastN,
		},
		&cli.Int64Flag{
			Name:        "batch",
			Aliases:     []string{"n-batch"},
			Usage:       "prompt tokens evaluated per batch",
			Value:       int64(d.NBatch),
			Destination: &o.batch,
		},
		&cli.Float64Flag{
			Name:        "context-erase",
			Usage:       "fraction of history dropped when the context window fills",
			Value:       float64(d.ContextErase),
			Destination: &o.contextErase,
		},
		&cli.Float64Flag{
			Name:        "tfs-z",
			Usage:       "tail free sampling z (1.0 = disabled)",
			Value:       1.0,
			Destination: &o.tailFreeZ,
		},
		&cli.Float64Flag{
			Name:        "typical-p",
			Usage:       "locally typical sampling p (1.0 = disabled)",
			Value:       1.0,
			Destination: &o.typicalP,
		},
	}
}

func (o *samplingOpts) promptContext() *llmodel.PromptContext {
	pc := llmodel.NewPromptContext()
	pc.NPredict = int32(o.steps)
	pc.Temp = float32(o.temp)
	pc.TopK = int32(o.topK)
	pc.TopP = float32(o.topP)
	pc.RepeatPenalty = float32(o.repeatPenalty)
	pc.RepeatLastN = int32(o.repeatLastN)
	pc.NBatch = max(int32(o.batch), 1)
	pc.ContextErase = float32(o.contextErase)
	return pc
}
