package inference

import (
	"github.com/samcharles93/llmodel/pkg/llmodel"
)

// scriptModel tokenizes each byte to byte+10, with BOS=1 and EOS=2, and
// samples from a fixed script.
type scriptModel struct {
	llmodel.LLModel

	nCtx    int32
	script  []llmodel.Token
	next    int
	pieces  map[llmodel.Token]string
	failAt  int
	panicOn bool

	evals [][]llmodel.Token
	pasts []int32
}

func (m *scriptModel) IsModelLoaded() bool { return m.nCtx > 0 }

func (m *scriptModel) ContextLength() int32 { return m.nCtx }

func (m *scriptModel) EndTokens() []llmodel.Token { return []llmodel.Token{2} }

func (m *scriptModel) Tokenize(pc *llmodel.PromptContext, text string) []llmodel.Token {
	var out []llmodel.Token
	if pc.NPast == 0 && len(pc.Tokens) == 0 {
		out = append(out, 1)
	}
	for _, b := range []byte(text) {
		out = append(out, llmodel.Token(b)+10)
	}
	return out
}

func (m *scriptModel) TokenToString(id llmodel.Token) string {
	if p, ok := m.pieces[id]; ok {
		return p
	}
	if id < 10 {
		return ""
	}
	return string([]byte{byte(id - 10)})
}

func (m *scriptModel) EvalTokens(pc *llmodel.PromptContext, toks []llmodel.Token) bool {
	m.evals = append(m.evals, append([]llmodel.Token(nil), toks...))
	m.pasts = append(m.pasts, pc.NPast)
	if m.failAt > 0 && len(m.evals) == m.failAt {
		return false
	}
	if pc.NPast+int32(len(toks)) > m.nCtx {
		return false
	}
	pc.NLastBatchTokens = int32(len(toks))
	return true
}

func (m *scriptModel) SampleToken(*llmodel.PromptContext) llmodel.Token {
	if m.panicOn {
		panic("sampler exploded")
	}
	if m.next >= len(m.script) {
		return 2
	}
	t := m.script[m.next]
	m.next++
	return t
}

func tokensOf(s string) []llmodel.Token {
	out := make([]llmodel.Token, len(s))
	for i := range len(s) {
		out[i] = llmodel.Token(s[i]) + 10
	}
	return out
}
