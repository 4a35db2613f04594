// Package toy is a small deterministic engine. It reads real GGUF metadata
// for its vocabulary but derives its weights from a seed, so any file with a
// token list can be run end to end without native libraries.
package toy

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/samcharles93/llmodel/internal/engine"
	"github.com/samcharles93/llmodel/internal/gguf"
)

const (
	Name = "toy"

	KeySeed        = "toy.seed"
	defaultSeed    = 42
	defaultHidden  = 16
	defaultBOS     = 1
	defaultEOS     = 2
	maxPieceLength = 64
)

func init() {
	engine.Register(Name, func() (engine.Engine, error) {
		return &Engine{}, nil
	})
}

// Engine loads toy models from GGUF files.
type Engine struct {
	logFn engine.LogFunc
}

func (e *Engine) Name() string { return Name }

func (e *Engine) SetLogger(fn engine.LogFunc) { e.logFn = fn }

func (e *Engine) logf(level engine.LogLevel, format string, args ...any) {
	if e.logFn != nil {
		e.logFn(level, fmt.Sprintf(format, args...)+"\n")
	}
}

func (e *Engine) LoadModel(path string, params engine.ModelParams) (engine.Model, error) {
	f, err := gguf.OpenMetadata(path)
	if err != nil {
		e.logf(engine.LogError, "toy: failed to open %s: %v", path, err)
		return nil, err
	}
	arch, err := f.Architecture()
	if err != nil {
		return nil, err
	}
	vocab, ok := gguf.GetArray[string](f.KV, "tokenizer.ggml.tokens")
	if !ok || len(vocab) == 0 {
		return nil, fmt.Errorf("toy: %s has no tokenizer.ggml.tokens", path)
	}

	hidden := uint64(defaultHidden)
	if v, ok := gguf.GetUint64(f.KV, gguf.ArchKey(arch, "embedding_length")); ok && v > 0 {
		hidden = min(v, 1024)
	}
	seed := uint64(defaultSeed)
	if v, ok := gguf.GetUint64(f.KV, KeySeed); ok {
		seed = v
	}
	m := newLM(vocab, int(hidden), seed)
	m.arch = arch
	m.bos = tokenID(f.KV, "tokenizer.ggml.bos_token_id", defaultBOS, len(vocab))
	m.eos = tokenID(f.KV, "tokenizer.ggml.eos_token_id", defaultEOS, len(vocab))
	m.unk = tokenID(f.KV, "tokenizer.ggml.unknown_token_id", -1, len(vocab))
	m.gpuLayers = params.NGPULayers
	m.logFn = e.logFn

	e.logf(engine.LogInfo, "toy: loaded %s arch=%s vocab=%d hidden=%d gpu_layers=%d",
		path, arch, len(vocab), hidden, params.NGPULayers)
	return m, nil
}

func tokenID(kv map[string]gguf.Value, key string, def, nVocab int) engine.Token {
	v, ok := gguf.GetInt64(kv, key)
	if !ok || v < 0 || v >= int64(nVocab) {
		return engine.Token(def)
	}
	return engine.Token(v)
}

// LM holds the vocabulary and seeded weights. Hidden state at position p is
// an even mix of the token embedding and the state at p-1, so logits depend
// on the whole prefix.
type LM struct {
	arch      string
	vocab     []string
	index     map[string]engine.Token
	maxLen    int
	bos       engine.Token
	eos       engine.Token
	unk       engine.Token
	hidden    int
	gpuLayers int
	logFn     engine.LogFunc

	emb  [][]float32 // [vocab][hidden]
	w    [][]float32 // [hidden][vocab]
	bias []float32   // [vocab]
}

func newLM(vocab []string, hidden int, seed uint64) *LM {
	m := &LM{
		vocab:  vocab,
		index:  make(map[string]engine.Token, len(vocab)),
		hidden: hidden,
		emb:    randMat(len(vocab), hidden, seed+11),
		w:      randMat(hidden, len(vocab), seed+23),
		bias:   make([]float32, len(vocab)),
	}
	for i, tok := range vocab {
		if _, dup := m.index[tok]; !dup {
			m.index[tok] = engine.Token(i)
		}
		m.maxLen = max(m.maxLen, len(tok))
	}
	m.maxLen = min(m.maxLen, maxPieceLength)
	return m
}

func randMat(rows, cols int, seed uint64) [][]float32 {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([][]float32, rows)
	scale := float32(1 / math.Sqrt(float64(cols)))
	for i := range out {
		row := make([]float32, cols)
		for j := range row {
			row[j] = (rng.Float32()*2 - 1) * scale * 4
		}
		out[i] = row
	}
	return out
}

func (m *LM) Arch() string { return m.arch }

func (m *LM) NVocab() int { return len(m.vocab) }

func (m *LM) TokenBOS() engine.Token { return m.bos }

func (m *LM) TokenEOS() engine.Token { return m.eos }

func (m *LM) Close() {}

// Tokenize greedily matches the longest vocabulary entry at each offset.
// Bytes with no match map to <0xXX> byte tokens when present, otherwise to
// the unknown token, otherwise they are dropped.
func (m *LM) Tokenize(text string, dst []engine.Token, addBOS, special bool) int {
	var out []engine.Token
	if addBOS {
		out = append(out, m.bos)
	}
	for i := 0; i < len(text); {
		n := min(m.maxLen, len(text)-i)
		matched := false
		for ; n > 0; n-- {
			piece := text[i : i+n]
			id, ok := m.index[piece]
			if !ok || (!special && isControl(piece)) {
				continue
			}
			out = append(out, id)
			i += n
			matched = true
			break
		}
		if matched {
			continue
		}
		if id, ok := m.index[fmt.Sprintf("<0x%02X>", text[i])]; ok {
			out = append(out, id)
		} else if m.unk >= 0 {
			out = append(out, m.unk)
		}
		i++
	}
	if len(out) > len(dst) {
		return -len(out)
	}
	return copy(dst, out)
}

func isControl(piece string) bool {
	return len(piece) > 2 && strings.HasPrefix(piece, "<") && strings.HasSuffix(piece, ">")
}

// TokenToPiece returns the vocabulary text for id. Byte tokens decode to the
// single raw byte, so multi-byte characters may arrive split across pieces.
func (m *LM) TokenToPiece(id engine.Token) string {
	if id < 0 || int(id) >= len(m.vocab) {
		return ""
	}
	piece := m.vocab[id]
	if len(piece) == 6 && strings.HasPrefix(piece, "<0x") && piece[5] == '>' {
		if b, err := strconv.ParseUint(piece[3:5], 16, 8); err == nil {
			return string([]byte{byte(b)})
		}
	}
	if id == m.bos || id == m.eos || isControl(piece) {
		return ""
	}
	return piece
}

// step mixes the embedding of tok into prev and writes the new state to h.
func (m *LM) step(h, prev []float32, tok engine.Token) {
	e := m.emb[tok]
	for i := range h {
		var p float32
		if prev != nil {
			p = prev[i]
		}
		h[i] = 0.5*e[i] + 0.5*p
	}
}

// project writes logits = h*W + bias into out.
func (m *LM) project(out, h []float32) {
	for j := range out {
		var sum float32
		for i, hv := range h {
			sum += hv * m.w[i][j]
		}
		out[j] = sum + m.bias[j]
	}
}
