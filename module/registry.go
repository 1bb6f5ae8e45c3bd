// Package module is the registration and dispatch surface a database
// module is written against: declare tables and reducers, then let the
// host (or the test harness) describe and call them.
package module

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tesseradb/modkit/internal/registry"
	"github.com/tesseradb/modkit/sats"
)

// RegistrationError reports a table or reducer that could not be
// registered. Code values are the registry validation codes plus
// "duplicate-name" and "bad-signature".
type RegistrationError struct {
	Code   string
	Name   string
	Reason string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("module: register %q: %s (%s)", e.Name, e.Reason, e.Code)
}

const (
	codeDuplicate    = "duplicate-name"
	codeBadSignature = "bad-signature"
	codeBadRowType   = "bad-row-type"
	codeUnknownCol   = "unknown-column"
	codeSecondPK     = "second-primary-key"
)

type tableEntry struct {
	name    string
	rowType reflect.Type
	rowRef  uint32
	row     sats.ProductType
	def     registry.TableDef
}

type reducerEntry struct {
	id        uint32
	name      string
	fn        reflect.Value
	argTypes  []reflect.Type
	params    sats.ProductType
	lifecycle *registry.Lifecycle
}

// Registry collects one module's tables and reducers. The zero value
// is not usable; call NewRegistry. Registration normally happens in
// package init functions against the process-global default.
type Registry struct {
	mu         sync.RWMutex
	ts         *sats.Typespace
	tables     []*tableEntry
	tableIdx   map[string]int
	reducers   []*reducerEntry
	reducerIdx map[string]int
	log        *logrus.Logger
}

// NewRegistry returns an empty registry. Tests use fresh instances so
// they do not fight over the process-global one.
func NewRegistry() *Registry {
	return &Registry{
		ts:         sats.NewTypespace(),
		tableIdx:   make(map[string]int),
		reducerIdx: make(map[string]int),
		log:        logrus.StandardLogger(),
	}
}

var (
	defaultMu       sync.Mutex
	defaultRegistry = NewRegistry()
)

// Default returns the process-global registry.
func Default() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultRegistry
}

// Reset replaces the process-global registry with an empty one and
// returns it. Only tests should call this.
func Reset() *Registry {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultRegistry = NewRegistry()
	return defaultRegistry
}

// SetLogger routes module logging, including ctx.Log inside reducers,
// to the given logrus logger.
func (r *Registry) SetLogger(log *logrus.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = log
}

// Typespace exposes the registry's type interner. The harness uses it
// to derive row types for constraint checks.
func (r *Registry) Typespace() *sats.Typespace {
	return r.ts
}

// NumReducers returns the number of registered reducers. Reducer ids
// are 0..NumReducers-1 in registration order.
func (r *Registry) NumReducers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.reducers)
}

// ReducerID resolves a reducer name to its dispatch id.
func (r *Registry) ReducerID(name string) (uint32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.reducerIdx[name]
	return uint32(idx), ok
}

// ReducerName resolves a dispatch id back to its name.
func (r *Registry) ReducerName(id uint32) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.reducers) {
		return "", false
	}
	return r.reducers[id].name, true
}

// TableInfo is the registration-time metadata of one table, exposed
// for the harness and tooling.
type TableInfo struct {
	Name    string
	RowType reflect.Type
	Row     sats.ProductType
	Def     registry.TableDef
}

// Tables returns registered table metadata in registration order.
func (r *Registry) Tables() []TableInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]TableInfo, len(r.tables))
	for i, t := range r.tables {
		out[i] = TableInfo{Name: t.name, RowType: t.rowType, Row: t.row, Def: t.def}
	}
	return out
}

func (r *Registry) table(name string) (*tableEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx, ok := r.tableIdx[name]
	if !ok {
		return nil, false
	}
	return r.tables[idx], true
}
