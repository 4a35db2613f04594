// Package probe inspects model files without loading weights.
package probe

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// LegacyMagic is the "ggjt" signature of pre-GGUF llama files.
const LegacyMagic uint32 = 0x67676a74

const (
	estimateContext     = 2048
	estimateElementSize = 2 // fp16
)

var ErrNotLegacy = errors.New("probe: not a legacy ggjt file")

// HParams are the hyperparameters stored in a legacy file header.
type HParams struct {
	NVocab uint32
	NEmbd  uint32
	NMult  uint32
	NHead  uint32
	NLayer uint32
	NRot   uint32
	FType  uint32
}

// DefaultHParams returns LLaMA 7B values, used for any field the header lacks.
func DefaultHParams() HParams {
	return HParams{
		NVocab: 32000,
		NEmbd:  4096,
		NMult:  256,
		NHead:  32,
		NLayer: 32,
		NRot:   64,
		FType:  1,
	}
}

// KVCacheBytes is the fp16 key/value cache estimate for a 2048 token window.
func (h HParams) KVCacheBytes() uint64 {
	return uint64(h.NEmbd) * uint64(h.NLayer) * 2 * estimateContext * estimateElementSize
}

// Header is the parsed legacy header plus the file size.
type Header struct {
	Size    int64
	Version uint32
	HParams HParams
}

// ReadHeader parses the legacy header of path. Fields past the end of the
// file keep their defaults.
func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return Header{}, err
	}
	h := Header{Size: st.Size(), HParams: DefaultHParams()}

	var magic uint32
	if err := binary.Read(f, binary.LittleEndian, &magic); err != nil {
		return h, fmt.Errorf("%w: %v", ErrNotLegacy, err)
	}
	if magic != LegacyMagic {
		return h, fmt.Errorf("%w: magic %#08x", ErrNotLegacy, magic)
	}

	fields := []*uint32{
		&h.Version,
		&h.HParams.NVocab,
		&h.HParams.NEmbd,
		&h.HParams.NHead,
		&h.HParams.NLayer,
		&h.HParams.NRot,
		&h.HParams.FType,
	}
	for _, p := range fields {
		var v uint32
		if err := binary.Read(f, binary.LittleEndian, &v); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return h, err
		}
		*p = v
	}
	return h, nil
}

// RequiredMem estimates the memory needed to run the model at path: the file
// size plus an fp16 key/value cache for a 2048 token window. It returns 0 for
// anything that is not a readable legacy file.
func RequiredMem(path string) uint64 {
	h, err := ReadHeader(path)
	if err != nil {
		return 0
	}
	return uint64(h.Size) + h.HParams.KVCacheBytes()
}
