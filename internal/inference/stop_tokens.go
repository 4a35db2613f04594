package inference

import "strings"

// stopBuffer withholds text that could be the start of a stop sequence.
type stopBuffer struct {
	stops   []string
	pending string
}

func newStopBuffer(stops []string) *stopBuffer {
	s := &stopBuffer{}
	for _, st := range stops {
		if st != "" {
			s.stops = append(s.stops, st)
		}
	}
	return s
}

// Push returns the text that is safe to emit and whether a stop sequence
// was found. After a hit the buffer is empty.
func (s *stopBuffer) Push(text string) (string, bool) {
	if len(s.stops) == 0 {
		return text, false
	}
	s.pending += text

	cut := -1
	for _, st := range s.stops {
		if i := strings.Index(s.pending, st); i >= 0 && (cut < 0 || i < cut) {
			cut = i
		}
	}
	if cut >= 0 {
		out := s.pending[:cut]
		s.pending = ""
		return out, true
	}

	hold := 0
	for _, st := range s.stops {
		for n := min(len(st)-1, len(s.pending)); n > hold; n-- {
			if strings.HasSuffix(s.pending, st[:n]) {
				hold = n
				break
			}
		}
	}
	out := s.pending[:len(s.pending)-hold]
	s.pending = s.pending[len(s.pending)-hold:]
	return out, false
}

// Flush releases held text once no more input will follow.
func (s *stopBuffer) Flush(text string) string {
	out, hit := s.Push(text)
	if hit {
		return out
	}
	out += s.pending
	s.pending = ""
	return out
}
