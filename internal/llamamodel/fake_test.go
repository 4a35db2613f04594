package llamamodel

import (
	"errors"
	"slices"

	"github.com/samcharles93/llmodel/internal/engine"
)

// fakeEngine hands out models with a four token vocabulary whose logits
// rows are supplied by the test.
type fakeEngine struct {
	loadErr    error
	contextErr error
	lastParams engine.ModelParams
	models     []*fakeModel
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) LoadModel(path string, p engine.ModelParams) (engine.Model, error) {
	e.lastParams = p
	if e.loadErr != nil {
		return nil, e.loadErr
	}
	m := &fakeModel{engine: e}
	e.models = append(e.models, m)
	return m, nil
}

type fakeModel struct {
	engine *fakeEngine
	closed bool
	ctx    *fakeContext
}

func (m *fakeModel) NewContext(p engine.ContextParams) (engine.Context, error) {
	if m.engine.contextErr != nil {
		return nil, m.engine.contextErr
	}
	m.ctx = &fakeContext{params: p, threads: p.Threads}
	return m.ctx, nil
}

func (m *fakeModel) NVocab() int { return 4 }

func (m *fakeModel) TokenBOS() engine.Token { return 1 }

func (m *fakeModel) TokenEOS() engine.Token { return 2 }

// Tokenize maps each byte to token 3.
func (m *fakeModel) Tokenize(text string, dst []engine.Token, addBOS, _ bool) int {
	n := len(text)
	if addBOS {
		n++
	}
	if n > len(dst) {
		return -n
	}
	i := 0
	if addBOS {
		dst[0] = 1
		i = 1
	}
	for range text {
		dst[i] = 3
		i++
	}
	return n
}

func (m *fakeModel) TokenToPiece(id engine.Token) string { return []string{"", "<s>", "</s>", "x"}[id] }

func (m *fakeModel) Close() { m.closed = true }

type fakeContext struct {
	params  engine.ContextParams
	threads int
	batches []engine.Batch
	rows    [][]float32
	fail    error
	state   []byte
	closed  bool
}

func (c *fakeContext) Decode(b *engine.Batch) error {
	c.batches = append(c.batches, engine.Batch{
		Tokens:  slices.Clone(b.Tokens),
		Pos:     slices.Clone(b.Pos),
		SeqIDs:  slices.Clone(b.SeqIDs),
		Outputs: slices.Clone(b.Outputs),
	})
	return c.fail
}

func (c *fakeContext) Logits(i int) []float32 {
	if i < 0 || i >= len(c.rows) {
		return nil
	}
	return c.rows[i]
}

func (c *fakeContext) SetThreads(n, _ int) { c.threads = n }

func (c *fakeContext) NCtx() int { return c.params.NCtx }

func (c *fakeContext) StateSize() int { return len(c.state) }

func (c *fakeContext) StateGet(dst []byte) int {
	if len(dst) < len(c.state) {
		return 0
	}
	return copy(dst, c.state)
}

func (c *fakeContext) StateSet(src []byte) int {
	if len(src) < len(c.state) {
		return 0
	}
	c.state = slices.Clone(src[:len(c.state)])
	return len(c.state)
}

func (c *fakeContext) Close() { c.closed = true }

var errFake = errors.New("fake failure")
