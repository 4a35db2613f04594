package logits

import (
	"cmp"
	"math"
	"slices"
)

// Candidate is one vocabulary entry under consideration.
type Candidate struct {
	ID    int32
	Logit float32
	P     float32
}

// Candidates is the working set passed between sampling stages. Sorted means
// Data is in descending logit order.
type Candidates struct {
	Data   []Candidate
	Sorted bool
}

// Reset fills c with one candidate per logit, each with zero probability.
func (c *Candidates) Reset(logits []float32) {
	if cap(c.Data) < len(logits) {
		c.Data = make([]Candidate, len(logits))
	}
	c.Data = c.Data[:len(logits)]
	for i, l := range logits {
		c.Data[i] = Candidate{ID: int32(i), Logit: l}
	}
	c.Sorted = false
}

func (c *Candidates) Len() int { return len(c.Data) }

// IDs returns the ids of the surviving candidates.
func (c *Candidates) IDs() []int32 {
	out := make([]int32, len(c.Data))
	for i, d := range c.Data {
		out[i] = d.ID
	}
	return out
}

func byLogitDesc(a, b Candidate) int {
	if r := cmp.Compare(b.Logit, a.Logit); r != 0 {
		return r
	}
	return cmp.Compare(a.ID, b.ID)
}

func (c *Candidates) sort() {
	if c.Sorted {
		return
	}
	slices.SortFunc(c.Data, byLogitDesc)
	c.Sorted = true
}

// Softmax sorts c and sets P from the logits.
func Softmax(c *Candidates) {
	if c.Len() == 0 {
		return
	}
	c.sort()
	maxl := c.Data[0].Logit
	var sum float64
	for i := range c.Data {
		p := math.Exp(float64(c.Data[i].Logit - maxl))
		c.Data[i].P = float32(p)
		sum += p
	}
	for i := range c.Data {
		c.Data[i].P = float32(float64(c.Data[i].P) / sum)
	}
}

// RepetitionPenalty penalizes every candidate that occurs in last. Positive
// logits are divided by penalty, others multiplied. freq and presence are
// subtracted per occurrence and once per distinct token.
func RepetitionPenalty(c *Candidates, last []int32, penalty, freq, presence float32) {
	if len(last) == 0 || (penalty == 1 && freq == 0 && presence == 0) {
		return
	}
	counts := make(map[int32]int, len(last))
	for _, id := range last {
		counts[id]++
	}
	for i := range c.Data {
		n, ok := counts[c.Data[i].ID]
		if !ok {
			continue
		}
		if c.Data[i].Logit <= 0 {
			c.Data[i].Logit *= penalty
		} else {
			c.Data[i].Logit /= penalty
		}
		c.Data[i].Logit -= float32(n)*freq + presence
	}
	c.Sorted = false
}

// TopK keeps the k highest logits, never fewer than minKeep. k <= 0 keeps everything.
func TopK(c *Candidates, k, minKeep int) {
	if k <= 0 {
		k = c.Len()
	}
	k = min(max(k, minKeep), c.Len())
	c.sort()
	c.Data = c.Data[:k]
}

// TailFree removes the low-probability tail using the second derivative of
// the sorted distribution. z >= 1 disables it.
func TailFree(c *Candidates, z float32, minKeep int) {
	if z >= 1 || c.Len() <= 2 {
		return
	}
	Softmax(c)

	first := make([]float32, c.Len()-1)
	for i := range first {
		first[i] = c.Data[i].P - c.Data[i+1].P
	}
	second := make([]float32, len(first)-1)
	var sum float32
	for i := range second {
		second[i] = float32(math.Abs(float64(first[i] - first[i+1])))
		sum += second[i]
	}
	for i := range second {
		if sum > 1e-6 {
			second[i] /= sum
		} else {
			second[i] = 1 / float32(len(second))
		}
	}

	last := c.Len()
	var cum float32
	for i, v := range second {
		cum += v
		if cum > z && i >= minKeep {
			last = i
			break
		}
	}
	c.Data = c.Data[:last]
}

// Typical keeps candidates whose surprisal is closest to the distribution's
// entropy until their mass reaches p. p >= 1 disables it.
func Typical(c *Candidates, p float32, minKeep int) {
	if p >= 1 || c.Len() == 0 {
		return
	}
	Softmax(c)

	var entropy float64
	for _, d := range c.Data {
		if d.P > 0 {
			entropy -= float64(d.P) * math.Log(float64(d.P))
		}
	}
	shifted := make([]float64, c.Len())
	for i, d := range c.Data {
		shifted[i] = math.Abs(-math.Log(float64(d.P)) - entropy)
	}
	order := make([]int, c.Len())
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(shifted[a], shifted[b])
	})

	last := len(order)
	var cum float32
	for i, idx := range order {
		cum += c.Data[idx].P
		if cum > p && i >= minKeep-1 {
			last = i + 1
			break
		}
	}
	kept := make([]Candidate, last)
	for i := range kept {
		kept[i] = c.Data[order[i]]
	}
	c.Data = kept
	c.Sorted = false
}

// TopP keeps the smallest prefix whose probability mass reaches p, never
// fewer than minKeep. p >= 1 disables it.
func TopP(c *Candidates, p float32, minKeep int) {
	if p >= 1 || c.Len() == 0 {
		return
	}
	Softmax(c)

	last := c.Len()
	var cum float32
	for i, d := range c.Data {
		cum += d.P
		if cum >= p && i+1 >= minKeep {
			last = i + 1
			break
		}
	}
	c.Data = c.Data[:last]
}

// Temperature divides every logit by temp.
func Temperature(c *Candidates, temp float32) {
	for i := range c.Data {
		c.Data[i].Logit /= temp
	}
}

// Greedy returns the id with the highest logit.
func Greedy(c *Candidates) int32 {
	if c.Len() == 0 {
		return 0
	}
	best := 0
	for i := 1; i < c.Len(); i++ {
		if c.Data[i].Logit > c.Data[best].Logit {
			best = i
		}
	}
	return c.Data[best].ID
}
