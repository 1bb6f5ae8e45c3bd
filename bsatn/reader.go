package bsatn

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Reader consumes a BSATN byte stream.
//
// Every read returns an error rather than panicking when the stream is
// short. Errors carry the offset at which the read was attempted so
// decode failures in nested structures can be located.
type Reader struct {
	data []byte
	off  int
}

// NewReader returns a Reader over data. The reader does not copy data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int {
	return r.off
}

// Remaining returns the number of unconsumed bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// ExpectEOF returns an error if any bytes remain unconsumed. Callers
// decoding a complete value use this to reject trailing garbage.
func (r *Reader) ExpectEOF() error {
	if n := r.Remaining(); n > 0 {
		return fmt.Errorf("bsatn: %d trailing bytes at offset %d", n, r.off)
	}
	return nil
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, fmt.Errorf("bsatn: need %d bytes at offset %d, have %d: %w",
			n, r.off, r.Remaining(), io.ErrUnexpectedEOF)
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.take(1)
	if err != nil {
		return false, err
	}
	switch b[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("bsatn: invalid bool byte 0x%02x at offset %d", b[0], r.off-1)
	}
}

func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadI8() (int8, error) {
	v, err := r.ReadU8()
	return int8(v), err
}

func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	return math.Float32frombits(v), err
}

func (r *Reader) ReadF64() (float64, error) {
	v, err := r.ReadU64()
	return math.Float64frombits(v), err
}

// ReadRaw reads exactly n bytes with no length prefix. The returned
// slice aliases the underlying data.
func (r *Reader) ReadRaw(n int) ([]byte, error) {
	return r.take(n)
}

// ReadLen reads a u32 length prefix and sanity-checks it against the
// remaining stream so a corrupt length cannot trigger a huge allocation.
func (r *Reader) ReadLen() (int, error) {
	n, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	if int(n) > r.Remaining() {
		return 0, fmt.Errorf("bsatn: length %d at offset %d exceeds %d remaining bytes: %w",
			n, r.off-4, r.Remaining(), io.ErrUnexpectedEOF)
	}
	return int(n), nil
}

// ReadString reads a u32 length prefix followed by UTF-8 bytes.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadLen()
	if err != nil {
		return "", err
	}
	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadByteSlice reads a u32 length prefix followed by that many bytes.
// The result is a copy and does not alias the underlying data.
func (r *Reader) ReadByteSlice() ([]byte, error) {
	n, err := r.ReadLen()
	if err != nil {
		return nil, err
	}
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}
