package module

import (
	"fmt"

	"github.com/tesseradb/modkit/bsatn"
)

// Outcome carries a serializable success-or-error result across the
// host boundary, used by procedures and the HTTP surface. Reducers
// themselves return plain error; the host turns a non-nil error into
// a rolled-back call.
type Outcome[T any] struct {
	ok    bool
	value T
	msg   string
}

// Ok wraps a successful value.
func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{ok: true, value: v}
}

// Err wraps a failure message.
func Err[T any](format string, args ...any) Outcome[T] {
	return Outcome[T]{msg: fmt.Sprintf(format, args...)}
}

// ErrFrom wraps a Go error's message.
func ErrFrom[T any](err error) Outcome[T] {
	return Outcome[T]{msg: err.Error()}
}

// IsOk reports whether the outcome holds a value.
func (o Outcome[T]) IsOk() bool {
	return o.ok
}

// Value returns the held value and whether one is present.
func (o Outcome[T]) Value() (T, bool) {
	return o.value, o.ok
}

// Err returns the failure as an error, nil when ok.
func (o Outcome[T]) Err() error {
	if o.ok {
		return nil
	}
	return fmt.Errorf("%s", o.msg)
}

// Wire form: a sum with ok = tag 0 carrying T, err = tag 1 carrying
// the message string.
func (o Outcome[T]) MarshalBSATN(w *bsatn.Writer) error {
	if o.ok {
		w.WriteU8(0)
		return bsatn.Encode(w, o.value)
	}
	w.WriteU8(1)
	return w.WriteString(o.msg)
}

func (o *Outcome[T]) UnmarshalBSATN(r *bsatn.Reader) error {
	tag, err := r.ReadU8()
	if err != nil {
		return err
	}
	switch tag {
	case 0:
		o.ok = true
		o.msg = ""
		return bsatn.Decode(r, &o.value)
	case 1:
		o.ok = false
		var zero T
		o.value = zero
		o.msg, err = r.ReadString()
		return err
	default:
		return fmt.Errorf("module: invalid outcome tag %d", tag)
	}
}
