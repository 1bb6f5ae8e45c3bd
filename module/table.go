package module

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/tesseradb/modkit/internal/registry"
	"github.com/tesseradb/modkit/sats"
)

type tableConfig struct {
	public     bool
	primaryKey string
	pkSet      bool
	unique     []string
	autoInc    []string
	indexes    [][]string
}

// TableOption configures a table registration.
type TableOption func(*tableConfig) error

// Public makes the table readable by any client. Tables default to
// private: module code only.
func Public() TableOption {
	return func(c *tableConfig) error {
		c.public = true
		return nil
	}
}

var errSecondPK = fmt.Errorf("second primary key")

// PrimaryKey marks a column as the primary key. A table has at most
// one; a second application fails registration.
func PrimaryKey(col string) TableOption {
	return func(c *tableConfig) error {
		if c.pkSet {
			return fmt.Errorf("%w: already set to %q", errSecondPK, c.primaryKey)
		}
		c.primaryKey = col
		c.pkSet = true
		return nil
	}
}

// AutoInc gives a column a host-maintained sequence. Inserting a zero
// value draws the next number.
func AutoInc(col string) TableOption {
	return func(c *tableConfig) error {
		c.autoInc = append(c.autoInc, col)
		return nil
	}
}

// Unique puts a uniqueness constraint on a column.
func Unique(col string) TableOption {
	return func(c *tableConfig) error {
		c.unique = append(c.unique, col)
		return nil
	}
}

// Index adds a non-unique btree index over the given columns.
func Index(cols ...string) TableOption {
	return func(c *tableConfig) error {
		if len(cols) == 0 {
			return fmt.Errorf("index needs at least one column")
		}
		c.indexes = append(c.indexes, cols)
		return nil
	}
}

// TableHandle identifies a registered table.
type TableHandle struct {
	name string
	ref  uint32
}

// Name returns the table name.
func (h *TableHandle) Name() string { return h.name }

// RegisterTable registers a table whose rows are values of Row, a
// struct type. Columns are the exported fields in declaration order,
// named by `bsatn` tag or snake_cased field name.
func RegisterTable[Row any](r *Registry, name string, opts ...TableOption) (*TableHandle, error) {
	return r.registerTable(name, reflect.TypeOf((*Row)(nil)).Elem(), opts...)
}

// MustRegisterTable is RegisterTable for package init blocks.
func MustRegisterTable[Row any](r *Registry, name string, opts ...TableOption) *TableHandle {
	h, err := RegisterTable[Row](r, name, opts...)
	if err != nil {
		panic(err)
	}
	return h
}

func (r *Registry) registerTable(name string, rowType reflect.Type, opts ...TableOption) (*TableHandle, error) {
	if err := registry.ValidateIdentifier(name); err != nil {
		return nil, &RegistrationError{Code: registry.CodeBadIdent, Name: name, Reason: err.Error()}
	}
	var cfg tableConfig
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			code := codeBadRowType
			if errors.Is(err, errSecondPK) {
				code = codeSecondPK
			}
			return nil, &RegistrationError{Code: code, Name: name, Reason: err.Error()}
		}
	}
	if rowType.Kind() != reflect.Struct {
		return nil, &RegistrationError{Code: codeBadRowType, Name: name, Reason: fmt.Sprintf("row type %s is not a struct", rowType)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.tableIdx[name]; dup {
		return nil, &RegistrationError{Code: codeDuplicate, Name: name, Reason: "table already registered"}
	}

	t, err := r.ts.TypeOf(rowType)
	if err != nil {
		return nil, &RegistrationError{Code: codeBadRowType, Name: name, Reason: err.Error()}
	}
	if t.Tag() != sats.TagRef {
		return nil, &RegistrationError{Code: codeBadRowType, Name: name, Reason: fmt.Sprintf("row type %s does not intern to a product", rowType)}
	}
	rowRef := t.Ref()
	row, err := r.ts.Lookup(rowRef)
	if err != nil {
		return nil, err
	}
	product := *row.Product()

	colIdx := make(map[string]uint16, len(product.Elements))
	for i, el := range product.Elements {
		colIdx[el.Name] = uint16(i)
	}
	col := func(name string) (uint16, error) {
		i, ok := colIdx[name]
		if !ok {
			return 0, fmt.Errorf("no column %q in row type %s", name, rowType)
		}
		return i, nil
	}

	def := registry.TableDef{Name: name, ProductRef: rowRef}
	if cfg.public {
		def.Access = registry.AccessPublic
	}
	if cfg.pkSet {
		i, err := col(cfg.primaryKey)
		if err != nil {
			return nil, &RegistrationError{Code: codeUnknownCol, Name: name, Reason: err.Error()}
		}
		def.PrimaryKey = &i
		// A primary key implies uniqueness.
		def.Unique = append(def.Unique, i)
	}
	for _, c := range cfg.unique {
		i, err := col(c)
		if err != nil {
			return nil, &RegistrationError{Code: codeUnknownCol, Name: name, Reason: err.Error()}
		}
		def.Unique = append(def.Unique, i)
	}
	for _, c := range cfg.autoInc {
		i, err := col(c)
		if err != nil {
			return nil, &RegistrationError{Code: codeUnknownCol, Name: name, Reason: err.Error()}
		}
		def.AutoInc = append(def.AutoInc, i)
	}
	for _, idx := range cfg.indexes {
		var cols []uint16
		for _, c := range idx {
			i, err := col(c)
			if err != nil {
				return nil, &RegistrationError{Code: codeUnknownCol, Name: name, Reason: err.Error()}
			}
			cols = append(cols, i)
		}
		def.Indexes = append(def.Indexes, registry.IndexDef{Cols: cols})
	}

	entry := &tableEntry{
		name:    name,
		rowType: rowType,
		rowRef:  rowRef,
		row:     product,
		def:     def,
	}
	r.tableIdx[name] = len(r.tables)
	r.tables = append(r.tables, entry)
	return &TableHandle{name: name, ref: rowRef}, nil
}
