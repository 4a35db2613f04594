package llamamodel

import "github.com/samcharles93/llmodel/pkg/llmodel"

// Tokenize converts text to ids. BOS is added only at the start of a fresh
// sequence whose history does not already begin with it.
func (m *Model) Tokenize(pc *llmodel.PromptContext, text string) []llmodel.Token {
	if m.model == nil {
		return nil
	}
	bos := m.model.TokenBOS()
	useBOS := pc.NPast == 0 && (len(pc.Tokens) == 0 || pc.Tokens[0] != bos)

	out := make([]llmodel.Token, len(text)+4)
	n := m.model.Tokenize(text, out, useBOS, false)
	if n < 0 {
		out = make([]llmodel.Token, -n)
		n = m.model.Tokenize(text, out, useBOS, false)
		if n < 0 {
			m.log.Warn("tokenizer output did not fit", "need", -n)
			return nil
		}
	}
	return out[:n]
}

// TokenToString returns the raw piece for id, which may end mid-character.
func (m *Model) TokenToString(id llmodel.Token) string {
	if m.model == nil {
		return ""
	}
	return m.model.TokenToPiece(id)
}
