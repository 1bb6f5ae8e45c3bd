// Package bsatn implements the binary serialization format exchanged
// between a module and its host.
//
// The format is positional: a value's meaning is fixed by its schema,
// not by anything in the byte stream. Structs serialize as their
// exported fields in declaration order, slices as a u32 count followed
// by the elements, and pointers as an option (tag 0 = present, tag 1 =
// absent). There is no self-description and no padding, so both sides
// must agree on the schema byte for byte.
package bsatn

import (
	"fmt"
	"reflect"
)

// Marshaler is implemented by types that control their own wire form.
// It takes precedence over reflection.
type Marshaler interface {
	MarshalBSATN(w *Writer) error
}

// Unmarshaler is the decoding counterpart of Marshaler.
type Unmarshaler interface {
	UnmarshalBSATN(r *Reader) error
}

// Marshal serializes v to BSATN bytes.
func Marshal(v any) ([]byte, error) {
	w := NewWriter()
	if err := Encode(w, v); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Unmarshal decodes data into v, which must be a non-nil pointer.
// Trailing bytes after the value are rejected.
func Unmarshal(data []byte, v any) error {
	r := NewReader(data)
	if err := Decode(r, v); err != nil {
		return err
	}
	return r.ExpectEOF()
}

// Encode appends v's serialized form to w.
func Encode(w *Writer, v any) error {
	if m, ok := v.(Marshaler); ok {
		return m.MarshalBSATN(w)
	}
	return encodeValue(w, reflect.ValueOf(v), "")
}

// Decode reads one value from r into v, which must be a non-nil pointer.
func Decode(r *Reader, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("bsatn: decode target must be a non-nil pointer, got %T", v)
	}
	if u, ok := v.(Unmarshaler); ok {
		return u.UnmarshalBSATN(r)
	}
	return decodeValue(r, rv.Elem(), "")
}

var (
	marshalerType   = reflect.TypeOf((*Marshaler)(nil)).Elem()
	unmarshalerType = reflect.TypeOf((*Unmarshaler)(nil)).Elem()
)

func encodeValue(w *Writer, rv reflect.Value, path string) error {
	if rv.Type().Implements(marshalerType) {
		return rv.Interface().(Marshaler).MarshalBSATN(w)
	}
	if rv.CanAddr() && rv.Addr().Type().Implements(marshalerType) {
		return rv.Addr().Interface().(Marshaler).MarshalBSATN(w)
	}

	switch rv.Kind() {
	case reflect.Bool:
		w.WriteBool(rv.Bool())
	case reflect.Int8:
		w.WriteI8(int8(rv.Int()))
	case reflect.Int16:
		w.WriteI16(int16(rv.Int()))
	case reflect.Int32:
		w.WriteI32(int32(rv.Int()))
	case reflect.Int64:
		w.WriteI64(rv.Int())
	case reflect.Uint8:
		w.WriteU8(uint8(rv.Uint()))
	case reflect.Uint16:
		w.WriteU16(uint16(rv.Uint()))
	case reflect.Uint32:
		w.WriteU32(uint32(rv.Uint()))
	case reflect.Uint64:
		w.WriteU64(rv.Uint())
	case reflect.Float32:
		w.WriteF32(float32(rv.Float()))
	case reflect.Float64:
		w.WriteF64(rv.Float())
	case reflect.String:
		return w.WriteString(rv.String())
	case reflect.Slice:
		return encodeSlice(w, rv, path)
	case reflect.Pointer:
		// A pointer field is an option: nil is "none".
		if rv.IsNil() {
			w.WriteU8(1)
			return nil
		}
		w.WriteU8(0)
		return encodeValue(w, rv.Elem(), path)
	case reflect.Struct:
		return encodeStruct(w, rv, path)
	case reflect.Int, reflect.Uint:
		// Machine-width integers have no stable wire width.
		return &UnsupportedTypeError{Type: rv.Type(), Path: path,
			Hint: "use a fixed-width integer type"}
	default:
		return &UnsupportedTypeError{Type: rv.Type(), Path: path}
	}
	return nil
}

func encodeSlice(w *Writer, rv reflect.Value, path string) error {
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return w.WriteByteSlice(rv.Bytes())
	}
	if err := w.WriteLen(rv.Len()); err != nil {
		return err
	}
	for i := 0; i < rv.Len(); i++ {
		if err := encodeValue(w, rv.Index(i), fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func encodeStruct(w *Writer, rv reflect.Value, path string) error {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("bsatn") == "-" {
			continue
		}
		if err := encodeValue(w, rv.Field(i), path+"."+f.Name); err != nil {
			return err
		}
	}
	return nil
}

func decodeValue(r *Reader, rv reflect.Value, path string) error {
	if rv.CanAddr() && rv.Addr().Type().Implements(unmarshalerType) {
		return rv.Addr().Interface().(Unmarshaler).UnmarshalBSATN(r)
	}

	switch rv.Kind() {
	case reflect.Bool:
		v, err := r.ReadBool()
		if err != nil {
			return pathErr(path, err)
		}
		rv.SetBool(v)
	case reflect.Int8:
		v, err := r.ReadI8()
		if err != nil {
			return pathErr(path, err)
		}
		rv.SetInt(int64(v))
	case reflect.Int16:
		v, err := r.ReadI16()
		if err != nil {
			return pathErr(path, err)
		}
		rv.SetInt(int64(v))
	case reflect.Int32:
		v, err := r.ReadI32()
		if err != nil {
			return pathErr(path, err)
		}
		rv.SetInt(int64(v))
	case reflect.Int64:
		v, err := r.ReadI64()
		if err != nil {
			return pathErr(path, err)
		}
		rv.SetInt(v)
	case reflect.Uint8:
		v, err := r.ReadU8()
		if err != nil {
			return pathErr(path, err)
		}
		rv.SetUint(uint64(v))
	case reflect.Uint16:
		v, err := r.ReadU16()
		if err != nil {
			return pathErr(path, err)
		}
		rv.SetUint(uint64(v))
	case reflect.Uint32:
		v, err := r.ReadU32()
		if err != nil {
			return pathErr(path, err)
		}
		rv.SetUint(uint64(v))
	case reflect.Uint64:
		v, err := r.ReadU64()
		if err != nil {
			return pathErr(path, err)
		}
		rv.SetUint(v)
	case reflect.Float32:
		v, err := r.ReadF32()
		if err != nil {
			return pathErr(path, err)
		}
		rv.SetFloat(float64(v))
	case reflect.Float64:
		v, err := r.ReadF64()
		if err != nil {
			return pathErr(path, err)
		}
		rv.SetFloat(v)
	case reflect.String:
		v, err := r.ReadString()
		if err != nil {
			return pathErr(path, err)
		}
		rv.SetString(v)
	case reflect.Slice:
		return decodeSlice(r, rv, path)
	case reflect.Pointer:
		tag, err := r.ReadU8()
		if err != nil {
			return pathErr(path, err)
		}
		switch tag {
		case 0:
			elem := reflect.New(rv.Type().Elem())
			if err := decodeValue(r, elem.Elem(), path); err != nil {
				return err
			}
			rv.Set(elem)
		case 1:
			rv.SetZero()
		default:
			return pathErr(path, fmt.Errorf("bsatn: invalid option tag %d", tag))
		}
	case reflect.Struct:
		return decodeStruct(r, rv, path)
	case reflect.Int, reflect.Uint:
		return &UnsupportedTypeError{Type: rv.Type(), Path: path,
			Hint: "use a fixed-width integer type"}
	default:
		return &UnsupportedTypeError{Type: rv.Type(), Path: path}
	}
	return nil
}

func decodeSlice(r *Reader, rv reflect.Value, path string) error {
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		b, err := r.ReadByteSlice()
		if err != nil {
			return pathErr(path, err)
		}
		rv.SetBytes(b)
		return nil
	}
	n, err := r.ReadLen()
	if err != nil {
		return pathErr(path, err)
	}
	out := reflect.MakeSlice(rv.Type(), n, n)
	for i := 0; i < n; i++ {
		if err := decodeValue(r, out.Index(i), fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return err
		}
	}
	rv.Set(out)
	return nil
}

func decodeStruct(r *Reader, rv reflect.Value, path string) error {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("bsatn") == "-" {
			continue
		}
		if err := decodeValue(r, rv.Field(i), path+"."+f.Name); err != nil {
			return err
		}
	}
	return nil
}

// UnsupportedTypeError reports a Go type the codec cannot represent.
type UnsupportedTypeError struct {
	Type reflect.Type
	Path string
	Hint string
}

func (e *UnsupportedTypeError) Error() string {
	msg := fmt.Sprintf("bsatn: unsupported type %s", e.Type)
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func pathErr(path string, err error) error {
	if path == "" {
		return err
	}
	return fmt.Errorf("%s: %w", path, err)
}
