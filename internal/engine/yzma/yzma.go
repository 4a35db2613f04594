//go:build yzma

package yzma

import (
	"encoding/binary"
	"fmt"

	"github.com/hybridgroup/yzma/pkg/llama"

	"github.com/samcharles93/llmodel/internal/engine"
	"github.com/samcharles93/llmodel/internal/envconfig"
	"github.com/samcharles93/llmodel/internal/llamacpp"
)

const Name = "llamacpp"

func init() {
	engine.Register(Name, func() (engine.Engine, error) {
		if err := llamacpp.Load(); err != nil {
			return nil, fmt.Errorf("%w: %w", engine.ErrUnavailable, err)
		}
		if !envconfig.Verbose() {
			llama.LogSet(llama.LogSilent())
		}
		return &Engine{}, nil
	})
}

type Engine struct{}

func (*Engine) Name() string { return Name }

func (*Engine) LoadModel(path string, p engine.ModelParams) (engine.Model, error) {
	mp := llama.ModelDefaultParams()
	mp.NGpuLayers = int32(min(p.NGPULayers, engine.AllLayers))
	mp.MainGpu = int32(p.MainGPU)
	mp.UseMmap = boolByte(p.UseMmap)
	mp.UseMlock = boolByte(p.UseMlock)
	mp.VocabOnly = boolByte(p.VocabOnly)

	m, err := llama.ModelLoadFromFile(path, mp)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	vocab := llama.ModelGetVocab(m)
	return &Model{
		model:  m,
		vocab:  vocab,
		nVocab: int(llama.VocabNTokens(vocab)),
	}, nil
}

type Model struct {
	model  llama.Model
	vocab  llama.Vocab
	nVocab int
}

func (m *Model) NewContext(p engine.ContextParams) (engine.Context, error) {
	cp := llama.ContextDefaultParams()
	cp.NCtx = uint32(p.NCtx)
	if p.NBatch > 0 {
		cp.NBatch = uint32(p.NBatch)
	}
	cp.NThreads = int32(p.Threads)
	cp.NThreadsBatch = int32(p.ThreadsBatch)
	cp.Embeddings = 0

	lctx, err := llama.InitFromModel(m.model, cp)
	if err != nil {
		return nil, fmt.Errorf("init context: %w", err)
	}
	return &Context{model: m, params: cp, ctx: lctx, nVocab: m.nVocab, nCtx: int(llama.NCtx(lctx))}, nil
}

func (m *Model) NVocab() int { return m.nVocab }

func (m *Model) TokenBOS() engine.Token { return engine.Token(llama.VocabBOS(m.vocab)) }

func (m *Model) TokenEOS() engine.Token { return engine.Token(llama.VocabEOS(m.vocab)) }

// Tokenize follows the engine contract: a negative result is the required
// buffer size.
func (m *Model) Tokenize(text string, dst []engine.Token, addBOS, special bool) int {
	toks := llama.Tokenize(m.vocab, text, addBOS, special)
	if len(toks) > len(dst) {
		return -len(toks)
	}
	for i, t := range toks {
		dst[i] = engine.Token(t)
	}
	return len(toks)
}

func (m *Model) TokenToPiece(id engine.Token) string {
	buf := make([]byte, 64)
	n := llama.TokenToPiece(m.vocab, llama.Token(id), buf, 0, false)
	if n < 0 {
		buf = make([]byte, -n)
		n = llama.TokenToPiece(m.vocab, llama.Token(id), buf, 0, false)
	}
	if n <= 0 {
		return ""
	}
	return string(buf[:n])
}

func (m *Model) Close() {
	llama.ModelFree(m.model)
}

// Context decodes sequence 0 only, and only the final entry of a batch can
// carry logits. Its state is prefixed with the cached length and the size of
// the last batch so a restored context resumes exactly where it was saved.
type Context struct {
	model  *Model
	params llama.ContextParams
	ctx    llama.Context
	nVocab int
	nCtx   int
	cached int
	last   int
}

const stateHeader = 8

func (c *Context) NCtx() int { return c.nCtx }

// SetThreads rebuilds the llama.cpp context with the new thread counts and
// moves the current state across, since the thread counts are fixed when a
// context is created. On failure the old context stays in use.
func (c *Context) SetThreads(n, nBatch int) {
	if int32(n) == c.params.NThreads && int32(nBatch) == c.params.NThreadsBatch {
		return
	}
	cp := c.params
	cp.NThreads, cp.NThreadsBatch = int32(n), int32(nBatch)
	next, err := llama.InitFromModel(c.model.model, cp)
	if err != nil {
		return
	}
	if c.cached > 0 {
		state := make([]byte, llama.StateGetSize(c.ctx))
		written := llama.StateGetData(c.ctx, state)
		if written == 0 || llama.StateSetData(next, state[:written]) == 0 {
			llama.Free(next)
			return
		}
	}
	llama.Free(c.ctx)
	c.ctx, c.params = next, cp
}

func (c *Context) Decode(b *engine.Batch) error {
	start, err := b.Span(c.cached)
	if err != nil {
		return err
	}
	n := b.NumTokens()
	for i := range n {
		if len(b.SeqIDs[i]) > 1 || (len(b.SeqIDs[i]) == 1 && b.SeqIDs[i][0] != 0) {
			return fmt.Errorf("batch index %d: only sequence 0 is supported", i)
		}
		if b.Outputs[i] && i != n-1 {
			return fmt.Errorf("batch index %d: logits are only available for the final entry", i)
		}
	}
	if start+n > c.nCtx {
		return engine.ErrKvCacheFull
	}

	// The decode continues from the end of the cache, which the removal
	// moves to start.
	llama.MemorySeqRm(llama.GetMemory(c.ctx), 0, llama.Pos(start), -1)
	c.cached = start

	toks := make([]llama.Token, n)
	for i, t := range b.Tokens {
		toks[i] = llama.Token(t)
	}
	ret, err := llama.Decode(c.ctx, llama.BatchGetOne(toks))
	if err != nil {
		return err
	}
	if ret == 1 {
		return engine.ErrKvCacheFull
	}
	if ret != 0 {
		return fmt.Errorf("llama_decode returned %d", ret)
	}
	c.cached = start + n
	c.last = n
	return nil
}

// Logits returns the row for entry i of the last batch.
func (c *Context) Logits(i int) []float32 {
	if c.last == 0 || i != c.last-1 {
		return nil
	}
	row, err := llama.GetLogitsIth(c.ctx, -1, c.nVocab)
	if err != nil {
		return nil
	}
	return row
}

func (c *Context) StateSize() int {
	return stateHeader + int(llama.StateGetSize(c.ctx))
}

func (c *Context) StateGet(dst []byte) int {
	if len(dst) < c.StateSize() {
		return 0
	}
	binary.LittleEndian.PutUint32(dst[0:], uint32(c.cached))
	binary.LittleEndian.PutUint32(dst[4:], uint32(c.last))
	n := int(llama.StateGetData(c.ctx, dst[stateHeader:]))
	if n == 0 {
		return 0
	}
	return stateHeader + n
}

func (c *Context) StateSet(src []byte) int {
	if len(src) <= stateHeader {
		return 0
	}
	n := int(llama.StateSetData(c.ctx, src[stateHeader:]))
	if n == 0 {
		return 0
	}
	c.cached = int(binary.LittleEndian.Uint32(src[0:]))
	c.last = int(binary.LittleEndian.Uint32(src[4:]))
	return stateHeader + n
}

func (c *Context) Close() {
	llama.Free(c.ctx)
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
