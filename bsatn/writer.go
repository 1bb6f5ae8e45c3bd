package bsatn

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MaxPayloadLen bounds every length-prefixed payload (strings, byte
// slices, arrays). Lengths are carried on the wire as u32.
const MaxPayloadLen = math.MaxUint32

// Writer accumulates a BSATN byte stream.
//
// All multi-byte integers are little-endian. Strings and slices are
// prefixed with their length as a u32. Sum values are a single u8 tag
// followed by the variant payload. Product values are their fields in
// declared order with no framing.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the accumulated stream. The returned slice aliases the
// writer's buffer; it is valid until the next write.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Reset discards the accumulated stream, retaining the buffer.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) WriteU8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) WriteI8(v int8) {
	w.buf = append(w.buf, uint8(v))
}

func (w *Writer) WriteU16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

func (w *Writer) WriteI16(v int16) {
	w.WriteU16(uint16(v))
}

func (w *Writer) WriteU32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

func (w *Writer) WriteI32(v int32) {
	w.WriteU32(uint32(v))
}

func (w *Writer) WriteU64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

func (w *Writer) WriteI64(v int64) {
	w.WriteU64(uint64(v))
}

func (w *Writer) WriteF32(v float32) {
	w.WriteU32(math.Float32bits(v))
}

func (w *Writer) WriteF64(v float64) {
	w.WriteU64(math.Float64bits(v))
}

// WriteRaw appends bytes with no length prefix. Used for fixed-width
// payloads such as 128- and 256-bit integers.
func (w *Writer) WriteRaw(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteLen writes a payload length as u32. Returns an error if the
// length does not fit, instead of silently truncating.
func (w *Writer) WriteLen(n int) error {
	if n < 0 || uint64(n) > MaxPayloadLen {
		return fmt.Errorf("bsatn: payload length %d exceeds u32", n)
	}
	w.WriteU32(uint32(n))
	return nil
}

// WriteString writes a u32 length prefix followed by the UTF-8 bytes.
func (w *Writer) WriteString(s string) error {
	if err := w.WriteLen(len(s)); err != nil {
		return err
	}
	w.buf = append(w.buf, s...)
	return nil
}

// WriteByteSlice writes a u32 length prefix followed by the bytes.
func (w *Writer) WriteByteSlice(b []byte) error {
	if err := w.WriteLen(len(b)); err != nil {
		return err
	}
	w.buf = append(w.buf, b...)
	return nil
}
