// Package engine defines the contract between the llama adapter and the
// inference engine that owns weights, the KV cache and forward evaluation.
package engine

import (
	"errors"
	"math"
)

// Token is a vocabulary id.
type Token = int32

// AllLayers requests that every layer be offloaded to the selected device.
const AllLayers = math.MaxInt32

var (
	// ErrUnavailable is returned when an engine cannot run in this process,
	// for example because its shared library could not be loaded.
	ErrUnavailable = errors.New("engine unavailable")
	// ErrKvCacheFull is returned by Decode when the batch does not fit in the context window.
	ErrKvCacheFull = errors.New("could not find a kv cache slot")
)

// KVType is the element type of the key/value cache.
type KVType int

const (
	KVF32 KVType = iota
	KVF16
)

func (k KVType) String() string {
	switch k {
	case KVF32:
		return "f32"
	case KVF16:
		return "f16"
	default:
		return "unknown"
	}
}

// ModelParams control how weights are loaded.
type ModelParams struct {
	NGPULayers int
	MainGPU    int
	UseMmap    bool
	UseMlock   bool
	VocabOnly  bool
}

// ContextParams control the inference session created over a model.
type ContextParams struct {
	NCtx         int
	NBatch       int
	KVType       KVType
	LogitsAll    bool
	Threads      int
	ThreadsBatch int
}

// Engine loads models.
type Engine interface {
	Name() string
	LoadModel(path string, params ModelParams) (Model, error)
}

// Model is a loaded set of weights plus vocabulary.
type Model interface {
	NewContext(params ContextParams) (Context, error)
	NVocab() int
	TokenBOS() Token
	TokenEOS() Token
	// Tokenize writes up to len(dst) tokens. When dst is too small it returns
	// the negated number of tokens required.
	Tokenize(text string, dst []Token, addBOS, special bool) int
	// TokenToPiece returns the raw bytes for id, which may be a partial UTF-8 sequence.
	TokenToPiece(id Token) string
	Close()
}

// Context is an inference session with its own KV cache.
type Context interface {
	Decode(b *Batch) error
	// Logits returns the logits row for the i-th entry of the last decoded batch.
	Logits(i int) []float32
	SetThreads(n, nBatch int)
	NCtx() int
	StateSize() int
	StateGet(dst []byte) int
	StateSet(src []byte) int
	Close()
}
