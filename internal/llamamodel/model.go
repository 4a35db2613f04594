// Package llamamodel adapts an inference engine to the llmodel contract for
// llama-family GGUF models.
package llamamodel

import (
	"fmt"

	"github.com/samcharles93/llmodel/internal/engine"
	"github.com/samcharles93/llmodel/internal/gpu"
	"github.com/samcharles93/llmodel/internal/logger"
	"github.com/samcharles93/llmodel/internal/logits"
	"github.com/samcharles93/llmodel/internal/probe"
	"github.com/samcharles93/llmodel/pkg/llmodel"
)

// ModelType is the family tag reported to hosts.
const ModelType = "LLaMA"

type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Model owns one engine model and exactly one context over it.
// Methods must not be called concurrently.
type Model struct {
	eng     engine.Engine
	gpu     *gpu.Manager
	log     logger.Logger
	sampler *logits.Sampler

	tailFreeZ float32
	typicalP  float32

	state       State
	path        string
	model       engine.Model
	ctx         engine.Context
	modelParams engine.ModelParams
	ctxParams   engine.ContextParams
	nThreads    int32
	endTokens   []llmodel.Token
	ownsGPU     bool
}

var _ llmodel.LLModel = (*Model)(nil)

type Option func(*Model)

// WithEngine selects the engine. The default is engine.Default().
func WithEngine(e engine.Engine) Option {
	return func(m *Model) { m.eng = e }
}

// WithGPU selects the device manager. The default is gpu.Default().
func WithGPU(g *gpu.Manager) Option {
	return func(m *Model) { m.gpu = g }
}

func WithLogger(l logger.Logger) Option {
	return func(m *Model) { m.log = l }
}

// WithSeed makes sampling reproducible. Without it the seed is random.
func WithSeed(seed uint64) Option {
	return func(m *Model) { m.sampler.Seed(seed) }
}

// WithSamplingStages enables the tail-free and typical stages. Both are
// inert at 1.0, which is the default.
func WithSamplingStages(tailFreeZ, typicalP float32) Option {
	return func(m *Model) {
		m.tailFreeZ = tailFreeZ
		m.typicalP = typicalP
	}
}

// New returns an unloaded model.
func New(opts ...Option) *Model {
	m := &Model{
		sampler:   logits.NewSampler(logits.RandomSeed()),
		tailFreeZ: 1.0,
		typicalP:  1.0,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.Default()
	}
	m.log = m.log.With("component", "llamamodel")
	if m.gpu == nil {
		m.gpu = gpu.Default()
	}
	return m
}

func (m *Model) ModelType() string { return ModelType }

func (m *Model) State() State { return m.state }

func (m *Model) IsModelLoaded() bool { return m.state == StateLoaded }

// RequiredMem estimates memory for a legacy model file. It is 0 for GGUF files.
func (m *Model) RequiredMem(path string) uint64 {
	return probe.RequiredMem(path)
}

// LoadModel loads weights then creates the context. On failure any device
// this model acquired is released and the model is left in StateFailed.
func (m *Model) LoadModel(path string) bool {
	if m.state == StateLoaded || m.model != nil {
		m.free()
	}
	m.state = StateLoading
	m.path = path
	log := m.log.With("path", path)

	if m.eng == nil {
		e, err := engine.Default()
		if err != nil {
			m.fail(log, "no inference engine available", err)
			return false
		}
		m.eng = e
	}

	m.modelParams, m.ctxParams, m.nThreads = m.deriveParams()

	model, err := m.eng.LoadModel(path, m.modelParams)
	if err != nil {
		m.fail(log, "failed to load model", err)
		return false
	}
	ctx, err := model.NewContext(m.ctxParams)
	if err != nil {
		model.Close()
		m.fail(log, "failed to init context for model", err)
		return false
	}

	m.model = model
	m.ctx = ctx
	m.endTokens = []llmodel.Token{model.TokenEOS()}
	m.state = StateLoaded

	if m.modelParams.NGPULayers > 0 {
		m.gpu.MarkInUse(true)
		if d, ok := m.gpu.Active(); ok {
			log.Info("using GPU device", "device", d.String(), "backend", m.gpu.BackendName())
		}
	}
	log.Debug("model loaded",
		"engine", m.eng.Name(),
		"n_ctx", m.ctxParams.NCtx,
		"threads", m.nThreads,
		"gpu_layers", m.modelParams.NGPULayers,
	)
	return true
}

func (m *Model) fail(log logger.Logger, msg string, err error) {
	if m.ownsGPU {
		m.gpu.Release()
		m.ownsGPU = false
	}
	m.state = StateFailed
	log.Error(msg, "error", err)
}

// free releases the context before the model it was built from.
func (m *Model) free() {
	if m.ctx != nil {
		m.ctx.Close()
		m.ctx = nil
	}
	if m.model != nil {
		m.model.Close()
		m.model = nil
	}
	if m.modelParams.NGPULayers > 0 {
		m.gpu.MarkInUse(false)
	}
	m.endTokens = nil
	m.state = StateUnloaded
}

// Close releases the context, the model and any device this model acquired.
func (m *Model) Close() {
	m.free()
	if m.ownsGPU {
		m.gpu.Release()
		m.ownsGPU = false
	}
}

// ContextLength is the context window of the loaded model, or 0.
func (m *Model) ContextLength() int32 {
	if m.ctx == nil {
		return 0
	}
	return int32(m.ctx.NCtx())
}

// EndTokens are the ids that end generation.
func (m *Model) EndTokens() []llmodel.Token {
	return m.endTokens
}

// SetThreadCount applies from the next evaluation.
func (m *Model) SetThreadCount(n int32) {
	if n <= 0 {
		return
	}
	m.nThreads = n
	if m.ctx != nil {
		m.ctx.SetThreads(int(n), int(n))
	}
}

func (m *Model) ThreadCount() int32 {
	return m.nThreads
}
