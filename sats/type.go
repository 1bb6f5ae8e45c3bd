// Package sats models the algebraic type system shared between a module
// and its host: products (structs), sums (tagged unions), arrays,
// references into a typespace, and a fixed set of primitives.
//
// The tag numbering is part of the wire contract and must never change.
package sats

import "fmt"

// Tag identifies the kind of an AlgebraicType. The numeric values are
// serialized and shared with other SDK implementations.
type Tag uint8

const (
	TagRef     Tag = 0
	TagSum     Tag = 1
	TagProduct Tag = 2
	TagArray   Tag = 3
	TagString  Tag = 4
	TagBool    Tag = 5
	TagI8      Tag = 6
	TagU8      Tag = 7
	TagI16     Tag = 8
	TagU16     Tag = 9
	TagI32     Tag = 10
	TagU32     Tag = 11
	TagI64     Tag = 12
	TagU64     Tag = 13
	TagI128    Tag = 14
	TagU128    Tag = 15
	TagI256    Tag = 16
	TagU256    Tag = 17
	TagF32     Tag = 18
	TagF64     Tag = 19
)

var tagNames = map[Tag]string{
	TagRef: "ref", TagSum: "sum", TagProduct: "product", TagArray: "array",
	TagString: "string", TagBool: "bool",
	TagI8: "i8", TagU8: "u8", TagI16: "i16", TagU16: "u16",
	TagI32: "i32", TagU32: "u32", TagI64: "i64", TagU64: "u64",
	TagI128: "i128", TagU128: "u128", TagI256: "i256", TagU256: "u256",
	TagF32: "f32", TagF64: "f64",
}

func (t Tag) String() string {
	if s, ok := tagNames[t]; ok {
		return s
	}
	return fmt.Sprintf("tag(%d)", uint8(t))
}

// IsPrimitive reports whether the tag carries no structural payload.
func (t Tag) IsPrimitive() bool {
	return t >= TagString && t <= TagF64
}

// SumVariant is one alternative of a sum type.
type SumVariant struct {
	Name string
	Type AlgebraicType
}

// SumType is a tagged union of named variants.
type SumType struct {
	Variants []SumVariant
}

// ProductElement is one field of a product type. An empty Name means
// the field is positional.
type ProductElement struct {
	Name string
	Type AlgebraicType
}

// ProductType is an ordered sequence of fields.
type ProductType struct {
	Elements []ProductElement
}

// AlgebraicType is a tagged union over all type forms. The zero value
// is not meaningful; construct through the factory functions.
type AlgebraicType struct {
	tag     Tag
	ref     uint32
	sum     *SumType
	product *ProductType
	elem    *AlgebraicType
}

func primitive(t Tag) AlgebraicType { return AlgebraicType{tag: t} }

func StringType() AlgebraicType { return primitive(TagString) }
func BoolType() AlgebraicType   { return primitive(TagBool) }
func I8Type() AlgebraicType     { return primitive(TagI8) }
func U8Type() AlgebraicType     { return primitive(TagU8) }
func I16Type() AlgebraicType    { return primitive(TagI16) }
func U16Type() AlgebraicType    { return primitive(TagU16) }
func I32Type() AlgebraicType    { return primitive(TagI32) }
func U32Type() AlgebraicType    { return primitive(TagU32) }
func I64Type() AlgebraicType    { return primitive(TagI64) }
func U64Type() AlgebraicType    { return primitive(TagU64) }
func I128Type() AlgebraicType   { return primitive(TagI128) }
func U128Type() AlgebraicType   { return primitive(TagU128) }
func I256Type() AlgebraicType   { return primitive(TagI256) }
func U256Type() AlgebraicType   { return primitive(TagU256) }
func F32Type() AlgebraicType    { return primitive(TagF32) }
func F64Type() AlgebraicType    { return primitive(TagF64) }

// RefType points at an entry in a Typespace.
func RefType(idx uint32) AlgebraicType {
	return AlgebraicType{tag: TagRef, ref: idx}
}

// SumOf builds a sum type from variants in order.
func SumOf(variants ...SumVariant) AlgebraicType {
	return AlgebraicType{tag: TagSum, sum: &SumType{Variants: variants}}
}

// ProductOf builds a product type from elements in order.
func ProductOf(elements ...ProductElement) AlgebraicType {
	return AlgebraicType{tag: TagProduct, product: &ProductType{Elements: elements}}
}

// ArrayOf builds an array type over elem.
func ArrayOf(elem AlgebraicType) AlgebraicType {
	e := elem
	return AlgebraicType{tag: TagArray, elem: &e}
}

// UnitType is the empty product.
func UnitType() AlgebraicType {
	return ProductOf()
}

// OptionOf builds the conventional option sum: variant 0 is "some"
// carrying inner, variant 1 is "none" carrying unit.
func OptionOf(inner AlgebraicType) AlgebraicType {
	return SumOf(
		SumVariant{Name: "some", Type: inner},
		SumVariant{Name: "none", Type: UnitType()},
	)
}

// Tag names of the one-field products the host treats specially.
const (
	IdentityTag     = "__identity__"
	ConnectionIDTag = "__connection_id__"
	TimestampTag    = "__timestamp_micros_since_unix_epoch__"
	TimeDurationTag = "__time_duration_micros__"
)

func special(name string, inner AlgebraicType) AlgebraicType {
	return ProductOf(ProductElement{Name: name, Type: inner})
}

// IdentityType is the wire type of a 32-byte caller identity.
func IdentityType() AlgebraicType { return special(IdentityTag, U256Type()) }

// ConnectionIDType is the wire type of a 16-byte connection id.
func ConnectionIDType() AlgebraicType { return special(ConnectionIDTag, U128Type()) }

// TimestampType is the wire type of microseconds since the Unix epoch.
func TimestampType() AlgebraicType { return special(TimestampTag, I64Type()) }

// TimeDurationType is the wire type of a signed microsecond duration.
func TimeDurationType() AlgebraicType { return special(TimeDurationTag, I64Type()) }

// Tag returns the kind of this type.
func (t AlgebraicType) Tag() Tag { return t.tag }

// Ref returns the typespace index; valid only when Tag() == TagRef.
func (t AlgebraicType) Ref() uint32 { return t.ref }

// Sum returns the sum payload, or nil for non-sum types.
func (t AlgebraicType) Sum() *SumType { return t.sum }

// Product returns the product payload, or nil for non-product types.
func (t AlgebraicType) Product() *ProductType { return t.product }

// Elem returns the array element type; valid only when Tag() == TagArray.
func (t AlgebraicType) Elem() AlgebraicType {
	if t.elem == nil {
		return AlgebraicType{}
	}
	return *t.elem
}

// IsUnit reports whether t is the empty product.
func (t AlgebraicType) IsUnit() bool {
	return t.tag == TagProduct && len(t.product.Elements) == 0
}

// IsOption reports whether t has the conventional option shape.
func (t AlgebraicType) IsOption() bool {
	if t.tag != TagSum || len(t.sum.Variants) != 2 {
		return false
	}
	return t.sum.Variants[0].Name == "some" && t.sum.Variants[1].Name == "none"
}

// SpecialTag returns the recognized special tag name of a one-field
// product, or "" when t is not special.
func (t AlgebraicType) SpecialTag() string {
	if t.tag != TagProduct || len(t.product.Elements) != 1 {
		return ""
	}
	switch name := t.product.Elements[0].Name; name {
	case IdentityTag, ConnectionIDTag, TimestampTag, TimeDurationTag:
		return name
	}
	return ""
}

// Equal reports structural equality.
func (t AlgebraicType) Equal(o AlgebraicType) bool {
	if t.tag != o.tag {
		return false
	}
	switch t.tag {
	case TagRef:
		return t.ref == o.ref
	case TagSum:
		if len(t.sum.Variants) != len(o.sum.Variants) {
			return false
		}
		for i, v := range t.sum.Variants {
			ov := o.sum.Variants[i]
			if v.Name != ov.Name || !v.Type.Equal(ov.Type) {
				return false
			}
		}
		return true
	case TagProduct:
		if len(t.product.Elements) != len(o.product.Elements) {
			return false
		}
		for i, e := range t.product.Elements {
			oe := o.product.Elements[i]
			if e.Name != oe.Name || !e.Type.Equal(oe.Type) {
				return false
			}
		}
		return true
	case TagArray:
		return t.elem.Equal(*o.elem)
	default:
		return true
	}
}

func (t AlgebraicType) String() string {
	switch t.tag {
	case TagRef:
		return fmt.Sprintf("ref(%d)", t.ref)
	case TagSum:
		return fmt.Sprintf("sum(%d variants)", len(t.sum.Variants))
	case TagProduct:
		if tag := t.SpecialTag(); tag != "" {
			return tag
		}
		return fmt.Sprintf("product(%d elements)", len(t.product.Elements))
	case TagArray:
		return fmt.Sprintf("array(%s)", t.elem)
	default:
		return t.tag.String()
	}
}
