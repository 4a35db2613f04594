package inference

import "unicode/utf8"

// PieceDecoder joins token pieces into text, holding back a trailing
// incomplete UTF-8 sequence until the bytes that finish it arrive.
type PieceDecoder struct {
	buf []byte
}

func (d *PieceDecoder) Push(piece string) string {
	d.buf = append(d.buf, piece...)
	n := completePrefix(d.buf)
	out := string(d.buf[:n])
	d.buf = append(d.buf[:0], d.buf[n:]...)
	return out
}

// Flush returns whatever is held, complete or not.
func (d *PieceDecoder) Flush() string {
	out := string(d.buf)
	d.buf = d.buf[:0]
	return out
}

func completePrefix(b []byte) int {
	for i := len(b) - 1; i >= 0 && i > len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if utf8.FullRune(b[i:]) {
				return len(b)
			}
			return i
		}
	}
	return len(b)
}
