package toy

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/x448/float16"

	"github.com/samcharles93/llmodel/internal/engine"
)

const stateMagic = "TOY1"

// Context keeps one hidden-state row per position, rounded to fp16 when the
// cache type asks for it.
type Context struct {
	lm        *LM
	nCtx      int
	nBatch    int
	kvType    engine.KVType
	logitsAll bool
	threads   int

	cache  [][]float32
	logits [][]float32
}

func (m *LM) NewContext(p engine.ContextParams) (engine.Context, error) {
	if p.NCtx <= 0 {
		return nil, fmt.Errorf("toy: invalid context size %d", p.NCtx)
	}
	nBatch := p.NBatch
	if nBatch <= 0 || nBatch > p.NCtx {
		nBatch = p.NCtx
	}
	return &Context{
		lm:        m,
		nCtx:      p.NCtx,
		nBatch:    nBatch,
		kvType:    p.KVType,
		logitsAll: p.LogitsAll,
		threads:   max(p.Threads, 1),
		cache:     make([][]float32, 0, p.NCtx),
	}, nil
}

func (c *Context) NCtx() int { return c.nCtx }

func (c *Context) Threads() int { return c.threads }

func (c *Context) SetThreads(n, _ int) {
	c.threads = max(n, 1)
}

// Decode evaluates b. Positions must continue or rewrite the cached prefix;
// writing at position p discards everything from p onwards first.
func (c *Context) Decode(b *engine.Batch) error {
	start, err := b.Span(len(c.cache))
	if err != nil {
		return fmt.Errorf("toy: %w", err)
	}
	n := b.NumTokens()
	for i, tok := range b.Tokens {
		if tok < 0 || int(tok) >= c.lm.NVocab() {
			return fmt.Errorf("toy: token %d at batch index %d out of range", tok, i)
		}
	}
	if start+n > c.nCtx {
		return engine.ErrKvCacheFull
	}

	c.cache = c.cache[:start]
	c.logits = make([][]float32, n)
	for i, tok := range b.Tokens {
		var prev []float32
		if p := start + i; p > 0 {
			prev = c.cache[p-1]
		}
		h := make([]float32, c.lm.hidden)
		c.lm.step(h, prev, tok)
		c.round(h)
		c.cache = append(c.cache, h)
		if c.logitsAll || b.Outputs[i] {
			row := make([]float32, c.lm.NVocab())
			c.lm.project(row, h)
			c.logits[i] = row
		}
	}
	return nil
}

func (c *Context) round(h []float32) {
	if c.kvType != engine.KVF16 {
		return
	}
	for i, v := range h {
		h[i] = float16.Fromfloat32(v).Float32()
	}
}

// Logits returns the row for batch entry i, or nil if it was not computed.
func (c *Context) Logits(i int) []float32 {
	if i < 0 || i >= len(c.logits) {
		return nil
	}
	return c.logits[i]
}

// Cached returns the number of positions held in the cache.
func (c *Context) Cached() int { return len(c.cache) }

func (c *Context) Close() {
	c.cache = nil
	c.logits = nil
}

// State layout, little endian:
//
//	magic[4] kvType u32 hidden u32 nVocab u32 nCached u32
//	cache rows (fp16 or f32 per kvType)
//	nRows u32, then per row: present u8 [nVocab]f32
func (c *Context) StateSize() int {
	elem := 4
	if c.kvType == engine.KVF16 {
		elem = 2
	}
	size := len(stateMagic) + 4*4
	size += len(c.cache) * c.lm.hidden * elem
	size += 4
	for _, row := range c.logits {
		size++
		if row != nil {
			size += 4 * len(row)
		}
	}
	return size
}

func (c *Context) StateGet(dst []byte) int {
	size := c.StateSize()
	if len(dst) < size {
		return 0
	}
	buf := dst[:0]
	buf = append(buf, stateMagic...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(c.kvType))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(c.lm.hidden))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(c.lm.NVocab()))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(c.cache)))
	for _, h := range c.cache {
		for _, v := range h {
			if c.kvType == engine.KVF16 {
				buf = binary.LittleEndian.AppendUint16(buf, float16.Fromfloat32(v).Bits())
			} else {
				buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
			}
		}
	}
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(c.logits)))
	for _, row := range c.logits {
		if row == nil {
			buf = append(buf, 0)
			continue
		}
		buf = append(buf, 1)
		for _, v := range row {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
		}
	}
	return len(buf)
}

func (c *Context) StateSet(src []byte) int {
	r := stateReader{buf: src}
	if string(r.bytes(len(stateMagic))) != stateMagic {
		return 0
	}
	kvType := engine.KVType(r.u32())
	hidden := int(r.u32())
	nVocab := int(r.u32())
	nCached := int(r.u32())
	if r.err || kvType != c.kvType || hidden != c.lm.hidden || nVocab != c.lm.NVocab() || nCached > c.nCtx {
		return 0
	}

	cache := make([][]float32, nCached, c.nCtx)
	for p := range cache {
		h := make([]float32, hidden)
		for i := range h {
			if kvType == engine.KVF16 {
				h[i] = float16.Frombits(r.u16()).Float32()
			} else {
				h[i] = math.Float32frombits(r.u32())
			}
		}
		cache[p] = h
	}
	nRows := int(r.u32())
	if r.err || nRows > c.nCtx {
		return 0
	}
	logits := make([][]float32, nRows)
	for i := range logits {
		present := r.bytes(1)
		if r.err || present[0] == 0 {
			continue
		}
		row := make([]float32, nVocab)
		for j := range row {
			row[j] = math.Float32frombits(r.u32())
		}
		logits[i] = row
	}
	if r.err {
		return 0
	}
	c.cache = cache
	c.logits = logits
	return r.off
}

type stateReader struct {
	buf []byte
	off int
	err bool
}

func (r *stateReader) bytes(n int) []byte {
	if r.err || r.off+n > len(r.buf) {
		r.err = true
		return make([]byte, n)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *stateReader) u16() uint16 { return binary.LittleEndian.Uint16(r.bytes(2)) }

func (r *stateReader) u32() uint32 { return binary.LittleEndian.Uint32(r.bytes(4)) }
