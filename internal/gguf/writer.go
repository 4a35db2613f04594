package gguf

import (
	"encoding/binary"
	"fmt"
	"io"
)

// KV is an ordered key/value pair for Write.
type KV struct {
	Key   string
	Value any
}

type encoder struct {
	w      io.Writer
	narrow bool
	err    error
}

func (e *encoder) put(v any) {
	if e.err == nil {
		e.err = binary.Write(e.w, binary.LittleEndian, v)
	}
}

func (e *encoder) length(n int) {
	if e.narrow {
		e.put(uint32(n))
		return
	}
	e.put(uint64(n))
}

func (e *encoder) str(s string) {
	e.length(len(s))
	if e.err == nil {
		_, e.err = io.WriteString(e.w, s)
	}
}

// Write encodes a GGUF container holding kv and the given tensor table.
// Tensor data is not written; offsets are taken from the infos as given.
// Version 1 containers get 32-bit lengths and dimensions.
func Write(w io.Writer, version uint32, kv []KV, tensors []TensorInfo) error {
	e := &encoder{w: w, narrow: version == 1}
	e.put([]byte(magicGGUF))
	e.put(version)
	e.length(len(tensors))
	e.length(len(kv))
	for _, p := range kv {
		e.str(p.Key)
		if err := e.value(p.Value); err != nil {
			return fmt.Errorf("gguf: key %s: %w", p.Key, err)
		}
	}
	for _, t := range tensors {
		e.str(t.Name)
		e.put(uint32(len(t.Dims)))
		for _, d := range t.Dims {
			if e.narrow {
				e.put(uint32(d))
			} else {
				e.put(d)
			}
		}
		e.put(t.Type)
		e.put(t.Offset)
	}
	return e.err
}

func (e *encoder) value(v any) error {
	switch v := v.(type) {
	case uint8:
		e.typed(TypeUint8, v)
	case int8:
		e.typed(TypeInt8, v)
	case uint16:
		e.typed(TypeUint16, v)
	case int16:
		e.typed(TypeInt16, v)
	case uint32:
		e.typed(TypeUint32, v)
	case int32:
		e.typed(TypeInt32, v)
	case uint64:
		e.typed(TypeUint64, v)
	case int64:
		e.typed(TypeInt64, v)
	case float32:
		e.typed(TypeFloat32, v)
	case float64:
		e.typed(TypeFloat64, v)
	case bool:
		e.typed(TypeBool, v)
	case string:
		e.put(TypeString)
		e.str(v)
	case []int32:
		e.array(TypeInt32, len(v), v)
	case []uint32:
		e.array(TypeUint32, len(v), v)
	case []float32:
		e.array(TypeFloat32, len(v), v)
	case []string:
		e.array(TypeString, len(v), nil)
		for _, s := range v {
			e.str(s)
		}
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
	return e.err
}

func (e *encoder) typed(t ValueType, v any) {
	e.put(t)
	e.put(v)
}

// array writes the array header and, when body is non-nil, the fixed-size
// element data in one call.
func (e *encoder) array(elem ValueType, n int, body any) {
	e.put(TypeArray)
	e.put(elem)
	e.length(n)
	if body != nil {
		e.put(body)
	}
}
