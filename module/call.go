package module

import (
	"context"
	"fmt"
	"reflect"

	"github.com/tesseradb/modkit/auth"
	"github.com/tesseradb/modkit/bsatn"
	"github.com/tesseradb/modkit/sats"
)

// CallEnv is the host-side envelope of one reducer call.
type CallEnv struct {
	Sender     auth.Identity
	Connection auth.ConnectionID
	Timestamp  sats.Timestamp
	// Token is the raw host-verified JWT of the caller, empty when the
	// caller did not authenticate with one.
	Token string
	// DB is the transactional table view for this call.
	DB Database
}

// PanicError wraps a panic escaping a reducer so the host can roll the
// call back instead of dying.
type PanicError struct {
	Reducer string
	Value   any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("module: reducer %q panicked: %v", e.Reducer, e.Value)
}

// Call dispatches reducer id with BSATN-encoded args. The args payload
// must decode exactly: trailing bytes are an error. A panic in the
// reducer is returned as a *PanicError.
func (r *Registry) Call(ctx context.Context, id uint32, env CallEnv, args []byte) error {
	r.mu.RLock()
	if int(id) >= len(r.reducers) {
		n := len(r.reducers)
		r.mu.RUnlock()
		return fmt.Errorf("module: no reducer with id %d (have %d)", id, n)
	}
	entry := r.reducers[id]
	log := r.log
	r.mu.RUnlock()

	rd := bsatn.NewReader(args)
	in := make([]reflect.Value, 1+len(entry.argTypes))
	for i, at := range entry.argTypes {
		pv := reflect.New(at)
		if err := bsatn.Decode(rd, pv.Interface()); err != nil {
			return fmt.Errorf("module: reducer %q arg %d: %w", entry.name, i, err)
		}
		in[i+1] = pv.Elem()
	}
	if err := rd.ExpectEOF(); err != nil {
		return fmt.Errorf("module: reducer %q args: %w", entry.name, err)
	}

	rctx := &ReducerContext{
		ctx:        ctx,
		sender:     env.Sender,
		connection: env.Connection,
		timestamp:  env.Timestamp,
		token:      env.Token,
		db:         env.DB,
		Log:        log.WithField("reducer", entry.name),
	}
	in[0] = reflect.ValueOf(rctx)

	return r.invoke(entry, in)
}

// CallByName is Call with a name lookup.
func (r *Registry) CallByName(ctx context.Context, name string, env CallEnv, args []byte) error {
	id, ok := r.ReducerID(name)
	if !ok {
		return fmt.Errorf("module: no reducer named %q", name)
	}
	return r.Call(ctx, id, env, args)
}

func (r *Registry) invoke(entry *reducerEntry, in []reflect.Value) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Reducer: entry.name, Value: v}
		}
	}()
	out := entry.fn.Call(in)
	if e := out[0].Interface(); e != nil {
		return e.(error)
	}
	return nil
}

// EncodeArgs builds the BSATN args payload for a reducer call from Go
// values, in parameter order. The harness and the call scenario runner
// use it; module code does not call its own reducers.
func (r *Registry) EncodeArgs(name string, args ...any) ([]byte, error) {
	r.mu.RLock()
	idx, ok := r.reducerIdx[name]
	if !ok {
		r.mu.RUnlock()
		return nil, fmt.Errorf("module: no reducer named %q", name)
	}
	entry := r.reducers[idx]
	r.mu.RUnlock()

	if len(args) != len(entry.argTypes) {
		return nil, fmt.Errorf("module: reducer %q takes %d args, got %d", name, len(entry.argTypes), len(args))
	}
	w := bsatn.NewWriter()
	for i, a := range args {
		at := entry.argTypes[i]
		var av reflect.Value
		if a == nil {
			if at.Kind() != reflect.Pointer {
				return nil, fmt.Errorf("module: reducer %q arg %d: nil for non-optional %s", name, i, at)
			}
			av = reflect.Zero(at)
		} else {
			av = reflect.ValueOf(a)
			if !av.Type().AssignableTo(at) {
				if !av.Type().ConvertibleTo(at) {
					return nil, fmt.Errorf("module: reducer %q arg %d: have %T, want %s", name, i, a, at)
				}
				av = av.Convert(at)
			}
		}
		if err := bsatn.Encode(w, av.Interface()); err != nil {
			return nil, fmt.Errorf("module: reducer %q arg %d: %w", name, i, err)
		}
	}
	return w.Bytes(), nil
}
