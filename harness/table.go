package harness

import (
	"fmt"
	"reflect"

	"github.com/tesseradb/modkit/bsatn"
	"github.com/tesseradb/modkit/module"
)

// ConstraintError reports an insert or update that violated a table
// constraint. An empty Column means the whole row was a duplicate.
type ConstraintError struct {
	Table  string
	Column string
}

func (e *ConstraintError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("harness: duplicate row in table %q", e.Table)
	}
	return fmt.Sprintf("harness: unique constraint on %s.%s violated", e.Table, e.Column)
}

type memDB struct {
	tables map[string]*memTable
}

func newMemDB(infos []module.TableInfo) (*memDB, error) {
	db := &memDB{tables: make(map[string]*memTable, len(infos))}
	for _, info := range infos {
		mt, err := newMemTable(info)
		if err != nil {
			return nil, err
		}
		db.tables[info.Name] = mt
	}
	return db, nil
}

func (d *memDB) Table(name string) (module.Table, error) {
	t, ok := d.tables[name]
	if !ok {
		return nil, fmt.Errorf("harness: no table %q", name)
	}
	return t, nil
}

// snapshot deep-copies the row state of every table so a failed call
// can be rolled back.
func (d *memDB) snapshot() map[string]tableState {
	snap := make(map[string]tableState, len(d.tables))
	for name, t := range d.tables {
		snap[name] = t.state()
	}
	return snap
}

func (d *memDB) restore(snap map[string]tableState) {
	for name, s := range snap {
		d.tables[name].restore(s)
	}
}

// memTable holds rows keyed by their serialized bytes, in insertion
// order. Tables are row sets: two identical rows cannot coexist.
type memTable struct {
	info    module.TableInfo
	colIdx  map[string]uint16
	fields  []int // column index -> struct field index
	rows    map[string][]byte
	order   []string
	unique  map[uint16]map[string]string // col -> encoded value -> row key
	autoinc map[uint16]uint64
}

type tableState struct {
	rows    map[string][]byte
	order   []string
	unique  map[uint16]map[string]string
	autoinc map[uint16]uint64
}

func newMemTable(info module.TableInfo) (*memTable, error) {
	t := &memTable{
		info:    info,
		colIdx:  make(map[string]uint16, len(info.Row.Elements)),
		rows:    make(map[string][]byte),
		unique:  make(map[uint16]map[string]string),
		autoinc: make(map[uint16]uint64),
	}
	for i, el := range info.Row.Elements {
		t.colIdx[el.Name] = uint16(i)
	}
	for i := 0; i < info.RowType.NumField(); i++ {
		f := info.RowType.Field(i)
		if !f.IsExported() || f.Tag.Get("bsatn") == "-" {
			continue
		}
		t.fields = append(t.fields, i)
	}
	if len(t.fields) != len(info.Row.Elements) {
		return nil, fmt.Errorf("harness: table %q: %d struct fields for %d columns", info.Name, len(t.fields), len(info.Row.Elements))
	}
	for _, c := range info.Def.Unique {
		t.unique[c] = make(map[string]string)
	}
	for _, c := range info.Def.AutoInc {
		t.autoinc[c] = 0
	}
	return t, nil
}

func (t *memTable) state() tableState {
	s := tableState{
		rows:    make(map[string][]byte, len(t.rows)),
		order:   append([]string(nil), t.order...),
		unique:  make(map[uint16]map[string]string, len(t.unique)),
		autoinc: make(map[uint16]uint64, len(t.autoinc)),
	}
	for k, v := range t.rows {
		s.rows[k] = v
	}
	for c, m := range t.unique {
		cm := make(map[string]string, len(m))
		for k, v := range m {
			cm[k] = v
		}
		s.unique[c] = cm
	}
	for c, v := range t.autoinc {
		s.autoinc[c] = v
	}
	return s
}

func (t *memTable) restore(s tableState) {
	t.rows = s.rows
	t.order = s.order
	t.unique = s.unique
	t.autoinc = s.autoinc
}

// structOf returns row as an addressable value of the table's row
// type, dereferencing a pointer if given one.
func (t *memTable) structOf(row any) (reflect.Value, bool, error) {
	rv := reflect.ValueOf(row)
	writeBack := false
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, false, fmt.Errorf("harness: table %q: nil row", t.info.Name)
		}
		rv = rv.Elem()
		writeBack = true
	}
	if rv.Type() != t.info.RowType {
		return reflect.Value{}, false, fmt.Errorf("harness: table %q: row is %s, want %s", t.info.Name, rv.Type(), t.info.RowType)
	}
	if !writeBack {
		// Copy so autoinc backfill has something settable.
		addr := reflect.New(t.info.RowType).Elem()
		addr.Set(rv)
		rv = addr
	}
	return rv, writeBack, nil
}

func (t *memTable) field(rv reflect.Value, col uint16) reflect.Value {
	return rv.Field(t.fields[col])
}

func (t *memTable) encodeCol(rv reflect.Value, col uint16) (string, error) {
	data, err := bsatn.Marshal(t.field(rv, col).Interface())
	if err != nil {
		return "", fmt.Errorf("harness: table %q column %q: %w", t.info.Name, t.info.Row.Elements[col].Name, err)
	}
	return string(data), nil
}

func (t *memTable) Insert(row any) error {
	rv, _, err := t.structOf(row)
	if err != nil {
		return err
	}

	// Draw sequence numbers for zero-valued autoinc columns.
	for col := range t.autoinc {
		f := t.field(rv, col)
		if f.IsZero() {
			t.autoinc[col]++
			next := t.autoinc[col]
			if f.CanInt() {
				f.SetInt(int64(next))
			} else {
				f.SetUint(next)
			}
		}
	}

	data, err := bsatn.Marshal(rv.Interface())
	if err != nil {
		return fmt.Errorf("harness: table %q: %w", t.info.Name, err)
	}
	key := string(data)
	if _, dup := t.rows[key]; dup {
		return &ConstraintError{Table: t.info.Name}
	}
	for col, idx := range t.unique {
		ck, err := t.encodeCol(rv, col)
		if err != nil {
			return err
		}
		if _, dup := idx[ck]; dup {
			return &ConstraintError{Table: t.info.Name, Column: t.info.Row.Elements[col].Name}
		}
	}

	t.rows[key] = data
	t.order = append(t.order, key)
	for col, idx := range t.unique {
		ck, _ := t.encodeCol(rv, col)
		idx[ck] = key
	}

	// Write autoinc values back through the caller's pointer.
	if p, writeBack, _ := t.structOf(row); writeBack {
		p.Set(rv)
	}
	return nil
}

func (t *memTable) col(name string) (uint16, error) {
	c, ok := t.colIdx[name]
	if !ok {
		return 0, fmt.Errorf("harness: table %q has no column %q", t.info.Name, name)
	}
	return c, nil
}

func (t *memTable) encodeKey(col uint16, key any) (string, error) {
	ft := t.info.RowType.Field(t.fields[col]).Type
	kv := reflect.ValueOf(key)
	if !kv.IsValid() {
		return "", fmt.Errorf("harness: table %q: nil key", t.info.Name)
	}
	if kv.Type() != ft {
		if !kv.Type().ConvertibleTo(ft) {
			return "", fmt.Errorf("harness: table %q: key is %T, want %s", t.info.Name, key, ft)
		}
		kv = kv.Convert(ft)
	}
	data, err := bsatn.Marshal(kv.Interface())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (t *memTable) FindByKey(colName string, key any, dest any) (bool, error) {
	col, err := t.col(colName)
	if err != nil {
		return false, err
	}
	idx, ok := t.unique[col]
	if !ok {
		return false, fmt.Errorf("harness: table %q: column %q is not unique", t.info.Name, colName)
	}
	ck, err := t.encodeKey(col, key)
	if err != nil {
		return false, err
	}
	rowKey, ok := idx[ck]
	if !ok {
		return false, nil
	}
	if err := bsatn.Unmarshal(t.rows[rowKey], dest); err != nil {
		return false, fmt.Errorf("harness: table %q: %w", t.info.Name, err)
	}
	return true, nil
}

func (t *memTable) DeleteByKey(colName string, key any) (uint64, error) {
	col, err := t.col(colName)
	if err != nil {
		return 0, err
	}
	ck, err := t.encodeKey(col, key)
	if err != nil {
		return 0, err
	}

	var victims []string
	if idx, ok := t.unique[col]; ok {
		if rowKey, found := idx[ck]; found {
			victims = []string{rowKey}
		}
	} else {
		// Non-unique column: scan.
		for _, rowKey := range t.order {
			rv := reflect.New(t.info.RowType).Elem()
			if err := bsatn.Unmarshal(t.rows[rowKey], rv.Addr().Interface()); err != nil {
				return 0, fmt.Errorf("harness: table %q: %w", t.info.Name, err)
			}
			cell, err := t.encodeCol(rv, col)
			if err != nil {
				return 0, err
			}
			if cell == ck {
				victims = append(victims, rowKey)
			}
		}
	}

	for _, rowKey := range victims {
		t.remove(rowKey)
	}
	return uint64(len(victims)), nil
}

func (t *memTable) remove(rowKey string) {
	rv := reflect.New(t.info.RowType).Elem()
	if err := bsatn.Unmarshal(t.rows[rowKey], rv.Addr().Interface()); err == nil {
		for col, idx := range t.unique {
			if ck, err := t.encodeCol(rv, col); err == nil {
				delete(idx, ck)
			}
		}
	}
	delete(t.rows, rowKey)
	for i, k := range t.order {
		if k == rowKey {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

func (t *memTable) Update(row any) error {
	pk := t.info.Def.PrimaryKey
	if pk == nil {
		return fmt.Errorf("harness: table %q has no primary key", t.info.Name)
	}
	rv, _, err := t.structOf(row)
	if err != nil {
		return err
	}
	ck, err := t.encodeCol(rv, *pk)
	if err != nil {
		return err
	}
	oldKey, found := t.unique[*pk][ck]
	if !found {
		return fmt.Errorf("harness: table %q: no row with %s = %v", t.info.Name, t.info.Row.Elements[*pk].Name, t.field(rv, *pk).Interface())
	}

	// Check the replacement against every constraint before touching
	// the old row, so a rejected update leaves the table unchanged.
	data, err := bsatn.Marshal(rv.Interface())
	if err != nil {
		return fmt.Errorf("harness: table %q: %w", t.info.Name, err)
	}
	newKey := string(data)
	if _, dup := t.rows[newKey]; dup && newKey != oldKey {
		return &ConstraintError{Table: t.info.Name}
	}
	for col, idx := range t.unique {
		cell, err := t.encodeCol(rv, col)
		if err != nil {
			return err
		}
		if owner, dup := idx[cell]; dup && owner != oldKey {
			return &ConstraintError{Table: t.info.Name, Column: t.info.Row.Elements[col].Name}
		}
	}

	t.remove(oldKey)
	return t.Insert(rv.Interface())
}

func (t *memTable) Count() uint64 {
	return uint64(len(t.rows))
}

func (t *memTable) Scan(dest any, fn func() error) error {
	for _, rowKey := range t.order {
		if err := bsatn.Unmarshal(t.rows[rowKey], dest); err != nil {
			return fmt.Errorf("harness: table %q: %w", t.info.Name, err)
		}
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}
