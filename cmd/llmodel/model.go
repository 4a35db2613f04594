package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samcharles93/llmodel/internal/backend"
	"github.com/samcharles93/llmodel/internal/engine"
	"github.com/samcharles93/llmodel/internal/llamamodel"
	"github.com/samcharles93/llmodel/internal/logger"
	"github.com/samcharles93/llmodel/pkg/llmodel"
)

// loadedModel is a ready model and how it was selected.
type loadedModel struct {
	llmodel.LLModel
	Path   string
	Impl   backend.Implementation
	Engine string
}

// constructModel picks the backend for path and returns it unloaded.
// Llama models are built on the --engine selection; other implementations
// use their registered constructor.
func constructModel(ctx context.Context, path string, opts ...llamamodel.Option) (*loadedModel, error) {
	log := logger.FromContext(ctx)
	impl, err := backend.Find(path, variant)
	if err != nil {
		return nil, err
	}
	lm := &loadedModel{Path: path, Impl: impl}
	if impl.ModelType != llamamodel.ModelType {
		lm.LLModel = impl.Construct()
		return lm, nil
	}

	e, err := engine.Resolve(engineName)
	if err != nil {
		return nil, fmt.Errorf("engine %q: %w", engineName, err)
	}
	if seed >= 0 {
		opts = append(opts, llamamodel.WithSeed(uint64(seed)))
	}
	lm.Engine = e.Name()
	lm.LLModel = llamamodel.ConstructWith(e, log, opts...)
	return lm, nil
}

// loadModel constructs, optionally acquires a GPU device, and loads path.
// A device that cannot be acquired is reported and the model runs on CPU.
func loadModel(ctx context.Context, path string, opts ...llamamodel.Option) (*loadedModel, error) {
	log := logger.FromContext(ctx)
	lm, err := constructModel(ctx, path, opts...)
	if err != nil {
		return nil, err
	}

	if d := strings.TrimSpace(device); d != "" {
		var (
			ok     bool
			reason string
		)
		if idx, err := strconv.Atoi(d); err == nil {
			ok, reason = lm.InitializeGPUDeviceByIndex(idx)
		} else {
			ok, reason = lm.InitializeGPUDeviceByName(lm.RequiredMem(path), d)
		}
		if !ok {
			log.Warn("GPU device unavailable, running on CPU", "device", d, "reason", reason)
		}
	}

	start := time.Now()
	if !lm.LoadModel(path) {
		lm.Close()
		return nil, fmt.Errorf("failed to load model %s", path)
	}
	if threads > 0 {
		lm.SetThreadCount(int32(threads))
	}
	log.Info("model loaded",
		"path", path,
		"backend", lm.Impl.String(),
		"engine", lm.Engine,
		"n_ctx", lm.ContextLength(),
		"threads", lm.ThreadCount(),
		"gpu", lm.UsingGPUDevice(),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return lm, nil
}

func samplingStages(o *samplingOpts) llamamodel.Option {
	return llamamodel.WithSamplingStages(float32(o.tailFreeZ), float32(o.typicalP))
}
