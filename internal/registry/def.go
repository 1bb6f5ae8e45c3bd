// Package registry holds the raw module definition: the serialized
// description of a module's typespace, tables and reducers that the
// host reads during publish. The wire layout is position-based BSATN,
// so field and section order here is load-bearing.
package registry

import (
	"fmt"

	"github.com/tesseradb/modkit/bsatn"
	"github.com/tesseradb/modkit/sats"
)

// Access controls who may read a table through the host API. Module
// code always has full access to its own tables.
type Access uint8

const (
	AccessPrivate Access = 0
	AccessPublic  Access = 1
)

func (a Access) String() string {
	if a == AccessPublic {
		return "public"
	}
	return "private"
}

// Lifecycle marks a reducer the host invokes on its own rather than on
// a client call.
type Lifecycle uint8

const (
	LifecycleInit Lifecycle = iota
	LifecycleOnConnect
	LifecycleOnDisconnect
)

var lifecycleNames = []string{"init", "client_connected", "client_disconnected"}

// LifecycleForName classifies a reducer name, mirroring how the host
// binds lifecycle hooks by convention.
func LifecycleForName(name string) (Lifecycle, bool) {
	for i, n := range lifecycleNames {
		if name == n {
			return Lifecycle(i), true
		}
	}
	return 0, false
}

func (l Lifecycle) String() string {
	if int(l) < len(lifecycleNames) {
		return lifecycleNames[l]
	}
	return fmt.Sprintf("lifecycle(%d)", uint8(l))
}

// IndexDef is a non-unique btree index over one or more columns.
type IndexDef struct {
	Cols []uint16
}

// TableDef describes one table. ProductRef points into the typespace
// at the row product type; all column numbers index its elements.
type TableDef struct {
	Name       string
	ProductRef uint32
	PrimaryKey *uint16
	Unique     []uint16
	AutoInc    []uint16
	Indexes    []IndexDef
	Access     Access
}

// ReducerDef describes one reducer. Params is the argument product;
// lifecycle reducers carry no wire-visible params.
type ReducerDef struct {
	Name      string
	Params    sats.ProductType
	Lifecycle *Lifecycle
}

// TypeExport names a typespace entry for client codegen.
type TypeExport struct {
	Name string
	Ref  uint32
}

// RawModuleDef is the complete module description. Serialized section
// order: typespace, exports, tables, reducers.
type RawModuleDef struct {
	Typespace []sats.AlgebraicType
	Exports   []TypeExport
	Tables    []TableDef
	Reducers  []ReducerDef
}

func (d RawModuleDef) MarshalBSATN(w *bsatn.Writer) error {
	if err := w.WriteLen(len(d.Typespace)); err != nil {
		return err
	}
	for _, t := range d.Typespace {
		if err := sats.WriteType(w, t); err != nil {
			return err
		}
	}
	if err := w.WriteLen(len(d.Exports)); err != nil {
		return err
	}
	for _, e := range d.Exports {
		if err := w.WriteString(e.Name); err != nil {
			return err
		}
		w.WriteU32(e.Ref)
	}
	if err := w.WriteLen(len(d.Tables)); err != nil {
		return err
	}
	for _, t := range d.Tables {
		if err := t.marshal(w); err != nil {
			return err
		}
	}
	if err := w.WriteLen(len(d.Reducers)); err != nil {
		return err
	}
	for _, r := range d.Reducers {
		if err := r.marshal(w); err != nil {
			return err
		}
	}
	return nil
}

func (d *RawModuleDef) UnmarshalBSATN(r *bsatn.Reader) error {
	n, err := r.ReadLen()
	if err != nil {
		return err
	}
	d.Typespace = make([]sats.AlgebraicType, n)
	for i := range d.Typespace {
		if d.Typespace[i], err = sats.ReadType(r); err != nil {
			return err
		}
	}
	if n, err = r.ReadLen(); err != nil {
		return err
	}
	d.Exports = make([]TypeExport, n)
	for i := range d.Exports {
		if d.Exports[i].Name, err = r.ReadString(); err != nil {
			return err
		}
		if d.Exports[i].Ref, err = r.ReadU32(); err != nil {
			return err
		}
	}
	if n, err = r.ReadLen(); err != nil {
		return err
	}
	d.Tables = make([]TableDef, n)
	for i := range d.Tables {
		if err = d.Tables[i].unmarshal(r); err != nil {
			return err
		}
	}
	if n, err = r.ReadLen(); err != nil {
		return err
	}
	d.Reducers = make([]ReducerDef, n)
	for i := range d.Reducers {
		if err = d.Reducers[i].unmarshal(r); err != nil {
			return err
		}
	}
	return nil
}

func (t TableDef) marshal(w *bsatn.Writer) error {
	if err := w.WriteString(t.Name); err != nil {
		return err
	}
	w.WriteU32(t.ProductRef)
	if t.PrimaryKey == nil {
		w.WriteU8(1)
	} else {
		w.WriteU8(0)
		w.WriteU16(*t.PrimaryKey)
	}
	if err := writeCols(w, t.Unique); err != nil {
		return err
	}
	if err := writeCols(w, t.AutoInc); err != nil {
		return err
	}
	if err := w.WriteLen(len(t.Indexes)); err != nil {
		return err
	}
	for _, idx := range t.Indexes {
		if err := writeCols(w, idx.Cols); err != nil {
			return err
		}
	}
	w.WriteU8(uint8(t.Access))
	return nil
}

func (t *TableDef) unmarshal(r *bsatn.Reader) error {
	var err error
	if t.Name, err = r.ReadString(); err != nil {
		return err
	}
	if t.ProductRef, err = r.ReadU32(); err != nil {
		return err
	}
	tag, err := r.ReadU8()
	if err != nil {
		return err
	}
	switch tag {
	case 0:
		pk, err := r.ReadU16()
		if err != nil {
			return err
		}
		t.PrimaryKey = &pk
	case 1:
		t.PrimaryKey = nil
	default:
		return fmt.Errorf("registry: invalid primary key option tag %d", tag)
	}
	if t.Unique, err = readCols(r); err != nil {
		return err
	}
	if t.AutoInc, err = readCols(r); err != nil {
		return err
	}
	n, err := r.ReadLen()
	if err != nil {
		return err
	}
	t.Indexes = make([]IndexDef, n)
	for i := range t.Indexes {
		if t.Indexes[i].Cols, err = readCols(r); err != nil {
			return err
		}
	}
	access, err := r.ReadU8()
	if err != nil {
		return err
	}
	if access > uint8(AccessPublic) {
		return fmt.Errorf("registry: invalid access tag %d", access)
	}
	t.Access = Access(access)
	return nil
}

func (rd ReducerDef) marshal(w *bsatn.Writer) error {
	if err := w.WriteString(rd.Name); err != nil {
		return err
	}
	if err := sats.WriteType(w, sats.ProductOf(rd.Params.Elements...)); err != nil {
		return err
	}
	if rd.Lifecycle == nil {
		w.WriteU8(1)
	} else {
		w.WriteU8(0)
		w.WriteU8(uint8(*rd.Lifecycle))
	}
	return nil
}

func (rd *ReducerDef) unmarshal(r *bsatn.Reader) error {
	var err error
	if rd.Name, err = r.ReadString(); err != nil {
		return err
	}
	params, err := sats.ReadType(r)
	if err != nil {
		return err
	}
	if params.Tag() != sats.TagProduct {
		return fmt.Errorf("registry: reducer %q params are %s, want product", rd.Name, params.Tag())
	}
	rd.Params = *params.Product()
	tag, err := r.ReadU8()
	if err != nil {
		return err
	}
	switch tag {
	case 0:
		lc, err := r.ReadU8()
		if err != nil {
			return err
		}
		if lc > uint8(LifecycleOnDisconnect) {
			return fmt.Errorf("registry: invalid lifecycle tag %d", lc)
		}
		l := Lifecycle(lc)
		rd.Lifecycle = &l
	case 1:
		rd.Lifecycle = nil
	default:
		return fmt.Errorf("registry: invalid lifecycle option tag %d", tag)
	}
	return nil
}

func writeCols(w *bsatn.Writer, cols []uint16) error {
	if err := w.WriteLen(len(cols)); err != nil {
		return err
	}
	for _, c := range cols {
		w.WriteU16(c)
	}
	return nil
}

func readCols(r *bsatn.Reader) ([]uint16, error) {
	n, err := r.ReadLen()
	if err != nil {
		return nil, err
	}
	cols := make([]uint16, n)
	for i := range cols {
		if cols[i], err = r.ReadU16(); err != nil {
			return nil, err
		}
	}
	return cols, nil
}
