//go:build yzma

package yzma

import (
	"os"
	"slices"
	"testing"

	"github.com/samcharles93/llmodel/internal/engine"
)

// openTestContext needs LLMODEL_LIB and a GGUF file in LLMODEL_TEST_MODEL.
func openTestContext(t *testing.T) (*Model, *Context) {
	t.Helper()
	path := os.Getenv("LLMODEL_TEST_MODEL")
	if path == "" {
		t.Skip("LLMODEL_TEST_MODEL not set")
	}
	eng, err := engine.Lookup(Name)
	if err != nil {
		t.Skipf("llama.cpp unavailable: %v", err)
	}
	m, err := eng.LoadModel(path, engine.ModelParams{UseMmap: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(m.Close)
	c, err := m.NewContext(engine.ContextParams{NCtx: 256, Threads: 2, ThreadsBatch: 2})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	return m.(*Model), c.(*Context)
}

func batchAt(start int32, toks ...engine.Token) *engine.Batch {
	b := engine.NewBatch(len(toks))
	for i, tok := range toks {
		b.Add(tok, start+int32(i), i == len(toks)-1, 0)
	}
	return b
}

func TestDecodeRejectsGaps(t *testing.T) {
	m, c := openTestContext(t)
	tok := m.TokenBOS()
	if err := c.Decode(batchAt(0, tok, tok, tok)); err != nil {
		t.Fatal(err)
	}
	if err := c.Decode(batchAt(5, tok)); err == nil {
		t.Fatal("decode past the cached end succeeded")
	}
	if err := c.Decode(batchAt(1, tok)); err != nil {
		t.Fatalf("rewriting the tail failed: %v", err)
	}
}

func TestRestoreKeepsLastRow(t *testing.T) {
	m, c := openTestContext(t)
	tok := m.TokenBOS()
	toks := []engine.Token{tok, tok, tok, tok, tok, tok, tok, tok, tok}
	if err := c.Decode(batchAt(0, toks...)); err != nil {
		t.Fatal(err)
	}
	want := slices.Clone(c.Logits(len(toks) - 1))
	if want == nil {
		t.Fatal("no logits for the final entry")
	}

	buf := make([]byte, c.StateSize())
	n := c.StateGet(buf)
	if n == 0 {
		t.Fatal("StateGet failed")
	}
	if err := c.Decode(batchAt(int32(len(toks)), tok)); err != nil {
		t.Fatal(err)
	}
	if got := c.StateSet(buf[:n]); got != n {
		t.Fatalf("StateSet consumed %d of %d", got, n)
	}
	got := c.Logits(len(toks) - 1)
	if !slices.Equal(got, want) {
		t.Fatal("restored logits differ from the saved ones")
	}

	c.SetThreads(1, 1)
	if got := c.Logits(len(toks) - 1); !slices.Equal(got, want) {
		t.Fatal("logits lost after rebuilding the context for new thread counts")
	}
	if err := c.Decode(batchAt(int32(len(toks)), tok)); err != nil {
		t.Fatalf("decode after SetThreads: %v", err)
	}
}
