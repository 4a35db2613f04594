package llamamodel

import (
	"errors"

	"github.com/samcharles93/llmodel/internal/engine"
	"github.com/samcharles93/llmodel/pkg/llmodel"
)

// EvalTokens decodes tokens at positions NPast+i on sequence 0, keeping
// logits for the last one only. It sets NLastBatchTokens but leaves NPast
// and the history to the caller.
func (m *Model) EvalTokens(pc *llmodel.PromptContext, tokens []llmodel.Token) bool {
	if m.ctx == nil || len(tokens) == 0 {
		return false
	}
	batch := engine.NewBatch(len(tokens))
	for i, tok := range tokens {
		batch.Add(tok, pc.NPast+int32(i), i == len(tokens)-1, 0)
	}
	pc.NLastBatchTokens = int32(len(tokens))

	if err := m.ctx.Decode(batch); err != nil {
		if errors.Is(err, engine.ErrKvCacheFull) {
			m.log.Debug("decode: context full", "n_past", pc.NPast, "n_tokens", len(tokens))
		} else {
			m.log.Warn("decode failed", "n_past", pc.NPast, "n_tokens", len(tokens), "error", err)
		}
		return false
	}
	return true
}
