package llamamodel

import (
	"github.com/samcharles93/llmodel/internal/logits"
	"github.com/samcharles93/llmodel/pkg/llmodel"
)

// SampleToken picks the next token from the logits of the last entry of the
// most recent batch. It does not modify pc.
func (m *Model) SampleToken(pc *llmodel.PromptContext) llmodel.Token {
	if m.ctx == nil {
		return 0
	}
	row := m.ctx.Logits(int(pc.NLastBatchTokens) - 1)
	if row == nil {
		m.log.Warn("no logits for sampling", "n_last_batch_tokens", pc.NLastBatchTokens)
		return m.model.TokenEOS()
	}
	return m.sampler.Sample(row, pc.RepeatWindow(), m.samplingParams(pc))
}

func (m *Model) samplingParams(pc *llmodel.PromptContext) logits.Params {
	return logits.Params{
		TopK:          int(pc.TopK),
		TopP:          pc.TopP,
		Temperature:   pc.Temp,
		RepeatPenalty: pc.RepeatPenalty,
		TailFreeZ:     m.tailFreeZ,
		TypicalP:      m.typicalP,
		MinKeep:       1,
	}
}
