package sats

import (
	"fmt"

	"github.com/tesseradb/modkit/bsatn"
)

// Value is a sealed interface over runtime values of algebraic types.
// Only the types in this file implement it. A Value always travels with
// the AlgebraicType it was decoded against; the bytes alone do not
// identify the shape.
type Value interface {
	value() // sealed
}

type Bool bool

func (Bool) value() {}

type I8 int8

func (I8) value() {}

type U8 uint8

func (U8) value() {}

type I16 int16

func (I16) value() {}

type U16 uint16

func (U16) value() {}

type I32 int32

func (I32) value() {}

type U32 uint32

func (U32) value() {}

type I64 int64

func (I64) value() {}

type U64 uint64

func (U64) value() {}

// I128 and friends hold their little-endian wire bytes. The SDK never
// does arithmetic on them; it only moves them intact.
type I128 [16]byte

func (I128) value() {}

type U128 [16]byte

func (U128) value() {}

type I256 [32]byte

func (I256) value() {}

type U256 [32]byte

func (U256) value() {}

type F32 float32

func (F32) value() {}

type F64 float64

func (F64) value() {}

type Str string

func (Str) value() {}

// Bytes is the fast path for array(u8).
type Bytes []byte

func (Bytes) value() {}

// Array holds elements of a homogeneous array type.
type Array []Value

func (Array) value() {}

// Product holds field values in element order.
type Product []Value

func (Product) value() {}

// Sum holds the chosen variant tag and its payload.
type Sum struct {
	Tag     uint8
	Payload Value
}

func (Sum) value() {}

// Unit is the empty product.
func Unit() Product { return Product{} }

// DecodeValue reads one value of type t from r, resolving refs through
// ts. Unknown sum tags and dangling refs are errors, never panics.
func DecodeValue(ts *Typespace, t AlgebraicType, r *bsatn.Reader) (Value, error) {
	switch t.Tag() {
	case TagRef:
		resolved, err := ts.Lookup(t.Ref())
		if err != nil {
			return nil, err
		}
		return DecodeValue(ts, resolved, r)
	case TagSum:
		tag, err := r.ReadU8()
		if err != nil {
			return nil, err
		}
		variants := t.Sum().Variants
		if int(tag) >= len(variants) {
			return nil, fmt.Errorf("sats: sum tag %d out of range (%d variants) at offset %d",
				tag, len(variants), r.Offset()-1)
		}
		payload, err := DecodeValue(ts, variants[tag].Type, r)
		if err != nil {
			return nil, err
		}
		return Sum{Tag: tag, Payload: payload}, nil
	case TagProduct:
		elements := t.Product().Elements
		out := make(Product, len(elements))
		for i, e := range elements {
			v, err := DecodeValue(ts, e.Type, r)
			if err != nil {
				return nil, fmt.Errorf("element %q: %w", e.Name, err)
			}
			out[i] = v
		}
		return out, nil
	case TagArray:
		if t.Elem().Tag() == TagU8 {
			b, err := r.ReadByteSlice()
			if err != nil {
				return nil, err
			}
			return Bytes(b), nil
		}
		n, err := r.ReadLen()
		if err != nil {
			return nil, err
		}
		out := make(Array, n)
		for i := range out {
			v, err := DecodeValue(ts, t.Elem(), r)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	case TagString:
		s, err := r.ReadString()
		return Str(s), err
	case TagBool:
		b, err := r.ReadBool()
		return Bool(b), err
	case TagI8:
		v, err := r.ReadI8()
		return I8(v), err
	case TagU8:
		v, err := r.ReadU8()
		return U8(v), err
	case TagI16:
		v, err := r.ReadI16()
		return I16(v), err
	case TagU16:
		v, err := r.ReadU16()
		return U16(v), err
	case TagI32:
		v, err := r.ReadI32()
		return I32(v), err
	case TagU32:
		v, err := r.ReadU32()
		return U32(v), err
	case TagI64:
		v, err := r.ReadI64()
		return I64(v), err
	case TagU64:
		v, err := r.ReadU64()
		return U64(v), err
	case TagI128:
		b, err := read16(r)
		return I128(b), err
	case TagU128:
		b, err := read16(r)
		return U128(b), err
	case TagI256:
		b, err := read32(r)
		return I256(b), err
	case TagU256:
		b, err := read32(r)
		return U256(b), err
	case TagF32:
		v, err := r.ReadF32()
		return F32(v), err
	case TagF64:
		v, err := r.ReadF64()
		return F64(v), err
	default:
		return nil, fmt.Errorf("sats: cannot decode value of tag %d", t.Tag())
	}
}

func read16(r *bsatn.Reader) ([16]byte, error) {
	var out [16]byte
	b, err := r.ReadRaw(16)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

func read32(r *bsatn.Reader) ([32]byte, error) {
	var out [32]byte
	b, err := r.ReadRaw(32)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

// EncodeValue writes v to w. The value's structure carries everything
// needed: tags for sums, raw bytes for wide integers.
func EncodeValue(w *bsatn.Writer, v Value) error {
	switch val := v.(type) {
	case Bool:
		w.WriteBool(bool(val))
	case I8:
		w.WriteI8(int8(val))
	case U8:
		w.WriteU8(uint8(val))
	case I16:
		w.WriteI16(int16(val))
	case U16:
		w.WriteU16(uint16(val))
	case I32:
		w.WriteI32(int32(val))
	case U32:
		w.WriteU32(uint32(val))
	case I64:
		w.WriteI64(int64(val))
	case U64:
		w.WriteU64(uint64(val))
	case I128:
		w.WriteRaw(val[:])
	case U128:
		w.WriteRaw(val[:])
	case I256:
		w.WriteRaw(val[:])
	case U256:
		w.WriteRaw(val[:])
	case F32:
		w.WriteF32(float32(val))
	case F64:
		w.WriteF64(float64(val))
	case Str:
		return w.WriteString(string(val))
	case Bytes:
		return w.WriteByteSlice(val)
	case Array:
		if err := w.WriteLen(len(val)); err != nil {
			return err
		}
		for i, elem := range val {
			if err := EncodeValue(w, elem); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
	case Product:
		for i, elem := range val {
			if err := EncodeValue(w, elem); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
	case Sum:
		w.WriteU8(val.Tag)
		return EncodeValue(w, val.Payload)
	default:
		return fmt.Errorf("sats: unknown value type %T", v)
	}
	return nil
}
