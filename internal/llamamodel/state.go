package llamamodel

// A snapshot is the engine's context state followed by the sampler's
// generator state, so a restore also reproduces later draws.

func (m *Model) StateSize() int {
	if m.ctx == nil {
		return 0
	}
	return m.ctx.StateSize() + m.sampler.StateSize()
}

// SaveState writes a snapshot into dst and returns its length, or 0 if dst is too small.
func (m *Model) SaveState(dst []byte) int {
	if m.ctx == nil || len(dst) < m.StateSize() {
		return 0
	}
	n := m.ctx.StateGet(dst)
	if n == 0 {
		return 0
	}
	rng, err := m.sampler.MarshalBinary()
	if err != nil {
		m.log.Error("save sampler state", "error", err)
		return 0
	}
	return n + copy(dst[n:], rng)
}

// RestoreState loads a snapshot and returns the bytes consumed, or 0 on failure.
// A snapshot without sampler state restores the context alone.
func (m *Model) RestoreState(src []byte) int {
	if m.ctx == nil {
		return 0
	}
	n := m.ctx.StateSet(src)
	if n == 0 {
		return 0
	}
	size := m.sampler.StateSize()
	if len(src)-n < size {
		return n
	}
	if err := m.sampler.UnmarshalBinary(src[n : n+size]); err != nil {
		m.log.Warn("restore sampler state", "error", err)
		return n
	}
	return n + size
}
