package sats

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
)

// Typer is implemented by Go types with a fixed wire type that should
// be emitted inline rather than derived from struct fields. The special
// one-field products (identity, connection id, timestamps) use this.
type Typer interface {
	AlgebraicType() AlgebraicType
}

// Typespace interns named types so products can reference each other by
// index. Indices are assigned in first-registration order and are
// stable for a fixed registration sequence, which keeps the serialized
// module definition deterministic.
type Typespace struct {
	types    []AlgebraicType
	names    []string
	byGoType map[reflect.Type]uint32
	building map[reflect.Type]bool
}

// NewTypespace returns an empty typespace.
func NewTypespace() *Typespace {
	return &Typespace{
		byGoType: make(map[reflect.Type]uint32),
		building: make(map[reflect.Type]bool),
	}
}

// Types returns the interned types in index order.
func (ts *Typespace) Types() []AlgebraicType {
	return ts.types
}

// Names returns the registered name of each interned type, parallel to
// Types(). Anonymous entries have an empty name.
func (ts *Typespace) Names() []string {
	return ts.names
}

// Len returns the number of interned types.
func (ts *Typespace) Len() int {
	return len(ts.types)
}

// Add interns an already-built type under a name and returns its index.
func (ts *Typespace) Add(name string, t AlgebraicType) uint32 {
	idx := uint32(len(ts.types))
	ts.types = append(ts.types, t)
	ts.names = append(ts.names, name)
	return idx
}

// Lookup returns the type at a reference index.
func (ts *Typespace) Lookup(idx uint32) (AlgebraicType, error) {
	if int(idx) >= len(ts.types) {
		return AlgebraicType{}, fmt.Errorf("sats: dangling type ref %d (typespace has %d entries)", idx, len(ts.types))
	}
	return ts.types[idx], nil
}

// CircularTypeError reports a Go type whose wire form would recurse
// into itself without a terminating indirection.
type CircularTypeError struct {
	TypeName string
}

func (e *CircularTypeError) Error() string {
	return fmt.Sprintf("sats: circular reference through type %s", e.TypeName)
}

// TypeOf derives the wire type of a Go type, interning struct types and
// returning refs to them. Derivation rules:
//
//   - a type implementing Typer uses its declared type verbatim
//   - fixed-width integers, floats, bool and string map to primitives
//   - []byte maps to array(u8), other slices to array(elem)
//   - pointers map to option(elem)
//   - structs map to interned products; field names come from the
//     `bsatn` struct tag, else the snake_cased Go field name
//
// Machine-width int/uint and maps are rejected: they have no stable
// wire form. Recursion into a struct currently being derived is an
// error; the host cannot represent self-referential rows.
func (ts *Typespace) TypeOf(t reflect.Type) (AlgebraicType, error) {
	if t.Implements(typerType) {
		return reflect.Zero(t).Interface().(Typer).AlgebraicType(), nil
	}
	if reflect.PointerTo(t).Implements(typerType) {
		return reflect.New(t).Interface().(Typer).AlgebraicType(), nil
	}

	switch t.Kind() {
	case reflect.Bool:
		return BoolType(), nil
	case reflect.Int8:
		return I8Type(), nil
	case reflect.Int16:
		return I16Type(), nil
	case reflect.Int32:
		return I32Type(), nil
	case reflect.Int64:
		return I64Type(), nil
	case reflect.Uint8:
		return U8Type(), nil
	case reflect.Uint16:
		return U16Type(), nil
	case reflect.Uint32:
		return U32Type(), nil
	case reflect.Uint64:
		return U64Type(), nil
	case reflect.Float32:
		return F32Type(), nil
	case reflect.Float64:
		return F64Type(), nil
	case reflect.String:
		return StringType(), nil
	case reflect.Slice:
		elem, err := ts.TypeOf(t.Elem())
		if err != nil {
			return AlgebraicType{}, err
		}
		return ArrayOf(elem), nil
	case reflect.Pointer:
		inner, err := ts.TypeOf(t.Elem())
		if err != nil {
			return AlgebraicType{}, err
		}
		return OptionOf(inner), nil
	case reflect.Struct:
		return ts.internStruct(t)
	case reflect.Int, reflect.Uint:
		return AlgebraicType{}, fmt.Errorf("sats: %s has no fixed wire width; use a sized integer", t)
	default:
		return AlgebraicType{}, fmt.Errorf("sats: unsupported Go type %s", t)
	}
}

var typerType = reflect.TypeOf((*Typer)(nil)).Elem()

func (ts *Typespace) internStruct(t reflect.Type) (AlgebraicType, error) {
	if idx, ok := ts.byGoType[t]; ok {
		return RefType(idx), nil
	}
	if ts.building[t] {
		return AlgebraicType{}, &CircularTypeError{TypeName: t.String()}
	}
	ts.building[t] = true
	defer delete(ts.building, t)

	var elements []ProductElement
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() || f.Tag.Get("bsatn") == "-" {
			continue
		}
		fieldType, err := ts.TypeOf(f.Type)
		if err != nil {
			return AlgebraicType{}, fmt.Errorf("%s.%s: %w", t.Name(), f.Name, err)
		}
		elements = append(elements, ProductElement{
			Name: fieldName(f),
			Type: fieldType,
		})
	}

	idx := ts.Add(t.Name(), ProductOf(elements...))
	ts.byGoType[t] = idx
	return RefType(idx), nil
}

// fieldName resolves a column/element name: the `bsatn` struct tag wins,
// otherwise the Go field name is snake_cased.
func fieldName(f reflect.StructField) string {
	if tag := f.Tag.Get("bsatn"); tag != "" && tag != "-" {
		return tag
	}
	return snakeCase(f.Name)
}

func snakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			// Break before the first capital of a word, keeping
			// acronym runs (e.g. "HTTPPort" -> "http_port") intact.
			prevLower := i > 0 && !unicode.IsUpper(runes[i-1])
			nextLower := i+1 < len(runes) && !unicode.IsUpper(runes[i+1]) && unicode.IsLetter(runes[i+1])
			if i > 0 && (prevLower || nextLower) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
