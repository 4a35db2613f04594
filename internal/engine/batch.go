package engine

import (
	"errors"
	"fmt"
)

// Batch is a set of tokens submitted to Decode in one call.
type Batch struct {
	Tokens  []Token
	Pos     []int32
	SeqIDs  [][]int32
	Outputs []bool
}

func NewBatch(capacity int) *Batch {
	return &Batch{
		Tokens:  make([]Token, 0, capacity),
		Pos:     make([]int32, 0, capacity),
		SeqIDs:  make([][]int32, 0, capacity),
		Outputs: make([]bool, 0, capacity),
	}
}

// Add appends a token at pos. logits marks the entry as one whose output row is kept.
func (b *Batch) Add(token Token, pos int32, logits bool, seqIDs ...int32) {
	b.Tokens = append(b.Tokens, token)
	b.Pos = append(b.Pos, pos)
	b.SeqIDs = append(b.SeqIDs, seqIDs)
	b.Outputs = append(b.Outputs, logits)
}

func (b *Batch) NumTokens() int {
	return len(b.Tokens)
}

func (b *Batch) Clear() {
	b.Tokens = b.Tokens[:0]
	b.Pos = b.Pos[:0]
	b.SeqIDs = b.SeqIDs[:0]
	b.Outputs = b.Outputs[:0]
}

// Span checks that b is a contiguous run of positions that starts at or
// before cached, the number of positions the caller already holds, and
// returns the first position. Starting below cached rewrites the tail.
func (b *Batch) Span(cached int) (int, error) {
	n := b.NumTokens()
	if n == 0 {
		return 0, errors.New("empty batch")
	}
	for i := 1; i < n; i++ {
		if b.Pos[i] != b.Pos[i-1]+1 {
			return 0, fmt.Errorf("positions not contiguous at batch index %d", i)
		}
	}
	start := int(b.Pos[0])
	if start < 0 || start > cached {
		return 0, fmt.Errorf("position %d leaves a gap after %d cached", start, cached)
	}
	return start, nil
}
