package sats

import (
	"fmt"

	"github.com/tesseradb/modkit/bsatn"
)

// WriteType serializes t in its self-describing form: a tag byte
// followed by the structural payload. Primitives are a bare tag byte.
// Element and variant names are written as options so unnamed positions
// stay distinguishable from empty names.
func WriteType(w *bsatn.Writer, t AlgebraicType) error {
	w.WriteU8(uint8(t.tag))
	switch t.tag {
	case TagRef:
		w.WriteU32(t.ref)
	case TagSum:
		if err := w.WriteLen(len(t.sum.Variants)); err != nil {
			return err
		}
		for _, v := range t.sum.Variants {
			if err := writeOptName(w, v.Name); err != nil {
				return err
			}
			if err := WriteType(w, v.Type); err != nil {
				return err
			}
		}
	case TagProduct:
		if err := w.WriteLen(len(t.product.Elements)); err != nil {
			return err
		}
		for _, e := range t.product.Elements {
			if err := writeOptName(w, e.Name); err != nil {
				return err
			}
			if err := WriteType(w, e.Type); err != nil {
				return err
			}
		}
	case TagArray:
		return WriteType(w, *t.elem)
	default:
		if !t.tag.IsPrimitive() {
			return fmt.Errorf("sats: cannot serialize type with tag %d", t.tag)
		}
	}
	return nil
}

// ReadType decodes one self-describing type from r.
func ReadType(r *bsatn.Reader) (AlgebraicType, error) {
	tagByte, err := r.ReadU8()
	if err != nil {
		return AlgebraicType{}, err
	}
	tag := Tag(tagByte)
	switch tag {
	case TagRef:
		idx, err := r.ReadU32()
		if err != nil {
			return AlgebraicType{}, err
		}
		return RefType(idx), nil
	case TagSum:
		n, err := r.ReadLen()
		if err != nil {
			return AlgebraicType{}, err
		}
		variants := make([]SumVariant, n)
		for i := range variants {
			name, err := readOptName(r)
			if err != nil {
				return AlgebraicType{}, err
			}
			ty, err := ReadType(r)
			if err != nil {
				return AlgebraicType{}, err
			}
			variants[i] = SumVariant{Name: name, Type: ty}
		}
		return SumOf(variants...), nil
	case TagProduct:
		n, err := r.ReadLen()
		if err != nil {
			return AlgebraicType{}, err
		}
		elements := make([]ProductElement, n)
		for i := range elements {
			name, err := readOptName(r)
			if err != nil {
				return AlgebraicType{}, err
			}
			ty, err := ReadType(r)
			if err != nil {
				return AlgebraicType{}, err
			}
			elements[i] = ProductElement{Name: name, Type: ty}
		}
		return ProductOf(elements...), nil
	case TagArray:
		elem, err := ReadType(r)
		if err != nil {
			return AlgebraicType{}, err
		}
		return ArrayOf(elem), nil
	default:
		if !tag.IsPrimitive() {
			return AlgebraicType{}, fmt.Errorf("sats: invalid type tag %d at offset %d", tagByte, r.Offset()-1)
		}
		return primitive(tag), nil
	}
}

func writeOptName(w *bsatn.Writer, name string) error {
	if name == "" {
		w.WriteU8(1)
		return nil
	}
	w.WriteU8(0)
	return w.WriteString(name)
}

func readOptName(r *bsatn.Reader) (string, error) {
	tag, err := r.ReadU8()
	if err != nil {
		return "", err
	}
	switch tag {
	case 0:
		return r.ReadString()
	case 1:
		return "", nil
	default:
		return "", fmt.Errorf("sats: invalid name option tag %d", tag)
	}
}
