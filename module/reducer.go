package module

import (
	"fmt"
	"reflect"

	"github.com/tesseradb/modkit/internal/registry"
	"github.com/tesseradb/modkit/sats"
)

type reducerConfig struct {
	params []string
}

// ReducerOption configures a reducer registration.
type ReducerOption func(*reducerConfig)

// WithParams names the reducer's wire-visible parameters in order.
// Go reflection cannot recover parameter names, so without this option
// parameters are named arg0..argN.
func WithParams(names ...string) ReducerOption {
	return func(c *reducerConfig) {
		c.params = names
	}
}

// ReducerHandle identifies a registered reducer.
type ReducerHandle struct {
	id   uint32
	name string
}

func (h *ReducerHandle) ID() uint32   { return h.id }
func (h *ReducerHandle) Name() string { return h.name }

var (
	ctxType = reflect.TypeOf((*ReducerContext)(nil))
	errType = reflect.TypeOf((*error)(nil)).Elem()
)

// RegisterReducer registers fn under name. fn must look like
//
//	func(*module.ReducerContext, args...) error
//
// where every arg has a derivable wire type. Names "init",
// "client_connected" and "client_disconnected" bind the matching
// lifecycle hook and must take no args.
func (r *Registry) RegisterReducer(name string, fn any, opts ...ReducerOption) (*ReducerHandle, error) {
	if err := registry.ValidateIdentifier(name); err != nil {
		return nil, &RegistrationError{Code: registry.CodeBadIdent, Name: name, Reason: err.Error()}
	}
	var cfg reducerConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if fn == nil {
		return nil, &RegistrationError{Code: codeBadSignature, Name: name, Reason: "nil func"}
	}
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		return nil, &RegistrationError{Code: codeBadSignature, Name: name, Reason: fmt.Sprintf("got %s, want a func", ft)}
	}
	if ft.IsVariadic() {
		return nil, &RegistrationError{Code: codeBadSignature, Name: name, Reason: "variadic reducers are not supported"}
	}
	if ft.NumIn() < 1 || ft.In(0) != ctxType {
		return nil, &RegistrationError{Code: codeBadSignature, Name: name, Reason: "first parameter must be *module.ReducerContext"}
	}
	if ft.NumOut() != 1 || ft.Out(0) != errType {
		return nil, &RegistrationError{Code: codeBadSignature, Name: name, Reason: "must return exactly one error"}
	}

	nargs := ft.NumIn() - 1
	if cfg.params != nil && len(cfg.params) != nargs {
		return nil, &RegistrationError{
			Code: codeBadSignature, Name: name,
			Reason: fmt.Sprintf("WithParams names %d parameters, func takes %d", len(cfg.params), nargs),
		}
	}

	var lifecycle *registry.Lifecycle
	if lc, ok := registry.LifecycleForName(name); ok {
		if nargs != 0 {
			return nil, &RegistrationError{Code: registry.CodeLifecycleArgs, Name: name, Reason: fmt.Sprintf("%s reducers take no arguments", lc)}
		}
		lifecycle = &lc
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.reducerIdx[name]; dup {
		return nil, &RegistrationError{Code: codeDuplicate, Name: name, Reason: "reducer already registered"}
	}

	argTypes := make([]reflect.Type, nargs)
	elements := make([]sats.ProductElement, nargs)
	for i := 0; i < nargs; i++ {
		at := ft.In(i + 1)
		wt, err := r.ts.TypeOf(at)
		if err != nil {
			return nil, &RegistrationError{Code: codeBadSignature, Name: name, Reason: fmt.Sprintf("parameter %d: %v", i, err)}
		}
		pname := fmt.Sprintf("arg%d", i)
		if cfg.params != nil {
			pname = cfg.params[i]
		}
		if err := registry.ValidateIdentifier(pname); err != nil {
			return nil, &RegistrationError{Code: registry.CodeBadIdent, Name: name, Reason: err.Error()}
		}
		argTypes[i] = at
		elements[i] = sats.ProductElement{Name: pname, Type: wt}
	}

	entry := &reducerEntry{
		id:        uint32(len(r.reducers)),
		name:      name,
		fn:        fv,
		argTypes:  argTypes,
		params:    sats.ProductType{Elements: elements},
		lifecycle: lifecycle,
	}
	r.reducerIdx[name] = len(r.reducers)
	r.reducers = append(r.reducers, entry)
	return &ReducerHandle{id: entry.id, name: name}, nil
}

// MustRegisterReducer is RegisterReducer for package init blocks.
func (r *Registry) MustRegisterReducer(name string, fn any, opts ...ReducerOption) *ReducerHandle {
	h, err := r.RegisterReducer(name, fn, opts...)
	if err != nil {
		panic(err)
	}
	return h
}

// LifecycleFunc is a reducer without wire-visible arguments.
type LifecycleFunc func(*ReducerContext) error

// OnInit registers fn to run once when the module is first published.
func (r *Registry) OnInit(fn LifecycleFunc) (*ReducerHandle, error) {
	return r.RegisterReducer("init", fn)
}

// OnConnect registers fn to run when a client connects.
func (r *Registry) OnConnect(fn LifecycleFunc) (*ReducerHandle, error) {
	return r.RegisterReducer("client_connected", fn)
}

// OnDisconnect registers fn to run when a client disconnects.
func (r *Registry) OnDisconnect(fn LifecycleFunc) (*ReducerHandle, error) {
	return r.RegisterReducer("client_disconnected", fn)
}
