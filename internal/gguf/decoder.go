package gguf

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// decoder walks a little-endian GGUF stream. The first error is kept and
// every later read becomes a no-op returning zero values, so callers check
// d.err once per record instead of after every field.
type decoder struct {
	br   *bufio.Reader
	pos  int64
	size int64
	// Version 1 files store string lengths and element counts as uint32.
	narrow bool
	err    error
	buf    [8]byte
}

func newDecoder(rd io.Reader, size int64) *decoder {
	return &decoder{br: bufio.NewReader(rd), size: size}
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = fmt.Errorf(format, args...)
	}
}

func (d *decoder) fill(p []byte) bool {
	if d.err != nil {
		return false
	}
	if d.size > 0 && d.pos+int64(len(p)) > d.size {
		d.err = io.ErrUnexpectedEOF
		return false
	}
	if _, err := io.ReadFull(d.br, p); err != nil {
		d.err = err
		return false
	}
	d.pos += int64(len(p))
	return true
}

func (d *decoder) u8() uint8 {
	if !d.fill(d.buf[:1]) {
		return 0
	}
	return d.buf[0]
}

func (d *decoder) u16() uint16 {
	if !d.fill(d.buf[:2]) {
		return 0
	}
	return binary.LittleEndian.Uint16(d.buf[:2])
}

func (d *decoder) u32() uint32 {
	if !d.fill(d.buf[:4]) {
		return 0
	}
	return binary.LittleEndian.Uint32(d.buf[:4])
}

func (d *decoder) u64() uint64 {
	if !d.fill(d.buf[:8]) {
		return 0
	}
	return binary.LittleEndian.Uint64(d.buf[:8])
}

// length reads a count or string length in the width the container version
// uses and rejects values that could not fit in the remaining file.
func (d *decoder) length(what string) uint64 {
	var n uint64
	if d.narrow {
		n = uint64(d.u32())
	} else {
		n = d.u64()
	}
	if d.err == nil && d.size > 0 && n > uint64(d.size-d.pos) {
		d.fail("%s %d exceeds remaining %d bytes", what, n, d.size-d.pos)
		return 0
	}
	return n
}

func (d *decoder) str() string {
	n := d.length("string length")
	if n == 0 {
		return ""
	}
	b := make([]byte, n)
	if !d.fill(b) {
		return ""
	}
	return string(b)
}

// maxPrealloc bounds capacity hints taken from the file. Counts are only
// checked against the file size, and one byte on disk can become a much
// larger element in memory.
const maxPrealloc = 1 << 16

func prealloc(n uint64) int {
	return int(min(n, maxPrealloc))
}

var scalarReaders = map[ValueType]func(*decoder) any{
	TypeUint8:   func(d *decoder) any { return d.u8() },
	TypeInt8:    func(d *decoder) any { return int8(d.u8()) },
	TypeUint16:  func(d *decoder) any { return d.u16() },
	TypeInt16:   func(d *decoder) any { return int16(d.u16()) },
	TypeUint32:  func(d *decoder) any { return d.u32() },
	TypeInt32:   func(d *decoder) any { return int32(d.u32()) },
	TypeUint64:  func(d *decoder) any { return d.u64() },
	TypeInt64:   func(d *decoder) any { return int64(d.u64()) },
	TypeFloat32: func(d *decoder) any { return math.Float32frombits(d.u32()) },
	TypeFloat64: func(d *decoder) any { return math.Float64frombits(d.u64()) },
	TypeBool:    func(d *decoder) any { return d.u8() != 0 },
	TypeString:  func(d *decoder) any { return d.str() },
}

func (d *decoder) value(t ValueType) any {
	if read, ok := scalarReaders[t]; ok {
		return read(d)
	}
	if t != TypeArray {
		d.fail("unsupported value type %s", t)
		return nil
	}
	elem := ValueType(d.u32())
	n := d.length("array length")
	arr := ArrayValue{ElemType: elem, Values: make([]any, 0, prealloc(n))}
	for range n {
		v := d.value(elem)
		if d.err != nil {
			return nil
		}
		arr.Values = append(arr.Values, v)
	}
	return arr
}
