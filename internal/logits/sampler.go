package logits

import (
	"fmt"
	"math/rand/v2"
)

// Params are the per-call decoding settings.
type Params struct {
	TopK             int
	TopP             float32
	Temperature      float32
	RepeatPenalty    float32
	FrequencyPenalty float32
	PresencePenalty  float32
	// TailFreeZ and TypicalP are inert at 1.0.
	TailFreeZ float32
	TypicalP  float32
	MinKeep   int
}

// DefaultParams mirrors the host defaults.
func DefaultParams() Params {
	return Params{
		TopK:          40,
		TopP:          0.9,
		Temperature:   0.1,
		RepeatPenalty: 1.18,
		TailFreeZ:     1.0,
		TypicalP:      1.0,
		MinKeep:       1,
	}
}

// Sampler draws tokens from logits with a seeded, serializable generator.
type Sampler struct {
	src   *rand.PCG
	rng   *rand.Rand
	cands Candidates
}

// NewSampler returns a sampler seeded with seed.
func NewSampler(seed uint64) *Sampler {
	src := rand.NewPCG(seed, seed^0xda3e39cb94b95bdb)
	return &Sampler{src: src, rng: rand.New(src)}
}

// RandomSeed returns a seed from the runtime's generator.
func RandomSeed() uint64 {
	return rand.Uint64()
}

func (s *Sampler) Seed(seed uint64) {
	s.src.Seed(seed, seed^0xda3e39cb94b95bdb)
}

// Sample runs the pipeline over logits in a fixed order:
// repetition penalty, top-k, tail-free, typical, top-p, temperature and a
// weighted random draw. Temperature <= 0 selects the best candidate after
// the penalty and filter stages.
func (s *Sampler) Sample(logits []float32, last []int32, p Params) int32 {
	c := &s.cands
	c.Reset(logits)
	if c.Len() == 0 {
		return 0
	}
	minKeep := max(p.MinKeep, 1)

	RepetitionPenalty(c, last, p.RepeatPenalty, p.FrequencyPenalty, p.PresencePenalty)
	TopK(c, p.TopK, minKeep)
	TailFree(c, p.TailFreeZ, minKeep)
	Typical(c, p.TypicalP, minKeep)
	TopP(c, p.TopP, minKeep)
	if p.Temperature <= 0 {
		return Greedy(c)
	}
	Temperature(c, p.Temperature)
	return s.draw(c)
}

// Survivors returns the ids left after the filter stages for logits, without
// drawing. It shares Sample's buffers.
func (s *Sampler) Survivors(logits []float32, last []int32, p Params) []int32 {
	c := &s.cands
	c.Reset(logits)
	minKeep := max(p.MinKeep, 1)
	RepetitionPenalty(c, last, p.RepeatPenalty, p.FrequencyPenalty, p.PresencePenalty)
	TopK(c, p.TopK, minKeep)
	TailFree(c, p.TailFreeZ, minKeep)
	Typical(c, p.TypicalP, minKeep)
	TopP(c, p.TopP, minKeep)
	return c.IDs()
}

func (s *Sampler) draw(c *Candidates) int32 {
	Softmax(c)
	var sum float64
	for _, d := range c.Data {
		sum += float64(d.P)
	}
	r := s.rng.Float64() * sum
	var acc float64
	for _, d := range c.Data {
		acc += float64(d.P)
		if r < acc {
			return d.ID
		}
	}
	return c.Data[c.Len()-1].ID
}

// MarshalBinary returns the generator state.
func (s *Sampler) MarshalBinary() ([]byte, error) {
	return s.src.MarshalBinary()
}

func (s *Sampler) UnmarshalBinary(data []byte) error {
	if err := s.src.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("sampler state: %w", err)
	}
	return nil
}

// StateSize is the length of the MarshalBinary output.
func (s *Sampler) StateSize() int {
	b, _ := s.src.MarshalBinary()
	return len(b)
}
