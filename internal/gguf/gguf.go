// Package gguf reads and writes the metadata section of GGUF model files.
// Tensor data is never loaded.
package gguf

import (
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	magicGGUF = "GGUF"

	// MaxVersion is the newest container version this package understands.
	MaxVersion = 3

	KeyArchitecture = "general.architecture"
	KeyAlignment    = "general.alignment"
	KeyFileType     = "general.file_type"
	KeyName         = "general.name"

	defaultAlignment = 32
	maxTensorDims    = 8
)

var (
	ErrInvalidMagic        = errors.New("gguf: invalid magic")
	ErrMissingArchitecture = errors.New("gguf: missing or invalid general.architecture")
)

// ValueType tags a metadata value on disk.
type ValueType uint32

const (
	TypeUint8 ValueType = iota
	TypeInt8
	TypeUint16
	TypeInt16
	TypeUint32
	TypeInt32
	TypeFloat32
	TypeBool
	TypeString
	TypeArray
	TypeUint64
	TypeInt64
	TypeFloat64
)

var valueTypeNames = [...]string{
	TypeUint8: "u8", TypeInt8: "i8",
	TypeUint16: "u16", TypeInt16: "i16",
	TypeUint32: "u32", TypeInt32: "i32",
	TypeUint64: "u64", TypeInt64: "i64",
	TypeFloat32: "f32", TypeFloat64: "f64",
	TypeBool: "bool", TypeString: "string", TypeArray: "array",
}

func (t ValueType) String() string {
	if int(t) < len(valueTypeNames) {
		return valueTypeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint32(t))
}

type ArrayValue struct {
	ElemType ValueType
	Values   []any
}

type Value struct {
	Type  ValueType
	Value any
}

type Header struct {
	Version     uint32
	TensorCount uint64
	KVCount     uint64
}

// TensorType is the ggml storage type of a tensor.
type TensorType uint32

const (
	GGMLTypeF32 TensorType = iota
	GGMLTypeF16
	GGMLTypeQ4_0
	GGMLTypeQ4_1
	GGMLTypeQ4_2
	GGMLTypeQ4_3
	GGMLTypeQ5_0
	GGMLTypeQ5_1
	GGMLTypeQ8_0
	GGMLTypeQ8_1
	GGMLTypeQ2_K
	GGMLTypeQ3_K
	GGMLTypeQ4_K
	GGMLTypeQ5_K
	GGMLTypeQ6_K
	GGMLTypeQ8_K
	GGMLTypeI8
	GGMLTypeI16
	GGMLTypeI32
	GGMLTypeI64
	GGMLTypeF64
)

var tensorTypeNames = [...]string{
	"F32", "F16", "Q4_0", "Q4_1", "Q4_2", "Q4_3", "Q5_0", "Q5_1", "Q8_0", "Q8_1",
	"Q2_K", "Q3_K", "Q4_K", "Q5_K", "Q6_K", "Q8_K",
	"I8", "I16", "I32", "I64", "F64",
}

func (t TensorType) String() string {
	if int(t) < len(tensorTypeNames) {
		return tensorTypeNames[t]
	}
	return fmt.Sprintf("type(%d)", uint32(t))
}

type TensorInfo struct {
	Name   string
	NDim   uint32
	Dims   []uint64
	Type   TensorType
	Offset uint64
}

// Elements returns the number of scalars in the tensor.
func (t TensorInfo) Elements() uint64 {
	n := uint64(1)
	for _, d := range t.Dims {
		n *= d
	}
	return n
}

type File struct {
	Path       string
	Size       int64
	Header     Header
	KV         map[string]Value
	Tensors    []TensorInfo
	Alignment  uint64
	DataOffset uint64
}

// Open parses the header, key/value section and tensor table of path.
func Open(path string) (*File, error) {
	return open(path, true)
}

// OpenMetadata parses only the header and key/value section of path.
func OpenMetadata(path string) (*File, error) {
	return open(path, false)
}

func open(path string, withTensors bool) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	file, err := Decode(f, st.Size(), withTensors)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	file.Path = path
	return file, nil
}

// Decode parses a GGUF stream of the given size. When withTensors is false
// the tensor table is skipped and DataOffset is left at zero. A size of zero
// disables the bounds checks on counts and lengths.
func Decode(rd io.Reader, size int64, withTensors bool) (*File, error) {
	d := newDecoder(rd, size)
	file := &File{Size: size, Alignment: defaultAlignment}

	if err := d.header(&file.Header); err != nil {
		return nil, err
	}
	kv, err := d.metadata(file.Header.KVCount)
	if err != nil {
		return nil, err
	}
	file.KV = kv
	if a, ok := asUint64(kv[KeyAlignment].Value); ok && a > 0 {
		file.Alignment = a
	}
	if !withTensors {
		return file, nil
	}

	if file.Tensors, err = d.tensorTable(file.Header.TensorCount); err != nil {
		return nil, err
	}
	file.DataOffset = alignUp(uint64(d.pos), file.Alignment)
	return file, nil
}

func (d *decoder) header(h *Header) error {
	var magic [4]byte
	if !d.fill(magic[:]) {
		return d.err
	}
	if string(magic[:]) != magicGGUF {
		return fmt.Errorf("%w: %q", ErrInvalidMagic, magic[:])
	}
	h.Version = d.u32()
	d.narrow = h.Version == 1
	h.TensorCount = d.length("tensor count")
	h.KVCount = d.length("kv count")
	if d.err != nil {
		return fmt.Errorf("header: %w", d.err)
	}
	return nil
}

func (d *decoder) metadata(n uint64) (map[string]Value, error) {
	kv := make(map[string]Value, prealloc(n))
	for i := range n {
		key := d.str()
		t := ValueType(d.u32())
		v := d.value(t)
		if d.err != nil {
			return nil, fmt.Errorf("kv %d %q: %w", i, key, d.err)
		}
		kv[key] = Value{Type: t, Value: v}
	}
	return kv, nil
}

func (d *decoder) tensorTable(n uint64) ([]TensorInfo, error) {
	out := make([]TensorInfo, 0, prealloc(n))
	for i := range n {
		ti := TensorInfo{Name: d.str(), NDim: d.u32()}
		if d.err == nil && ti.NDim > maxTensorDims {
			d.fail("%d dimensions", ti.NDim)
		}
		if d.err == nil {
			ti.Dims = make([]uint64, ti.NDim)
			for j := range ti.Dims {
				if d.narrow {
					ti.Dims[j] = uint64(d.u32())
				} else {
					ti.Dims[j] = d.u64()
				}
			}
		}
		ti.Type = TensorType(d.u32())
		ti.Offset = d.u64()
		if d.err != nil {
			return nil, fmt.Errorf("tensor %d %q: %w", i, ti.Name, d.err)
		}
		out = append(out, ti)
	}
	return out, nil
}

// Architecture returns general.architecture. A missing or non-string value
// is reported as ErrMissingArchitecture.
func (f *File) Architecture() (string, error) {
	return Architecture(f.KV)
}

func Architecture(kv map[string]Value) (string, error) {
	v, ok := kv[KeyArchitecture]
	if !ok {
		return "", ErrMissingArchitecture
	}
	if s, ok := v.Value.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("%w: value has type %s", ErrMissingArchitecture, v.Type)
}

// ArchKey qualifies key with the file's architecture prefix, e.g. "llama.context_length".
func ArchKey(arch, key string) string {
	return arch + "." + key
}

func alignUp(off, to uint64) uint64 {
	if to == 0 {
		return off
	}
	return (off + to - 1) / to * to
}
