package module

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesseradb/modkit/auth"
	"github.com/tesseradb/modkit/bsatn"
	"github.com/tesseradb/modkit/internal/registry"
	"github.com/tesseradb/modkit/sats"
)

func TestCallDecodesArgs(t *testing.T) {
	r := NewRegistry()
	var gotID uint64
	var gotName string
	h, err := r.RegisterReducer("rename", func(ctx *ReducerContext, id uint64, name string) error {
		gotID, gotName = id, name
		return nil
	}, WithParams("id", "name"))
	require.NoError(t, err)

	args, err := r.EncodeArgs("rename", uint64(7), "alice")
	require.NoError(t, err)
	require.NoError(t, r.Call(context.Background(), h.ID(), CallEnv{}, args))
	assert.Equal(t, uint64(7), gotID)
	assert.Equal(t, "alice", gotName)
}

func TestCallRejectsTrailingArgBytes(t *testing.T) {
	r := NewRegistry()
	h, err := r.RegisterReducer("bump", func(ctx *ReducerContext, by int32) error { return nil })
	require.NoError(t, err)

	args, err := r.EncodeArgs("bump", int32(1))
	require.NoError(t, err)
	err = r.Call(context.Background(), h.ID(), CallEnv{}, append(args, 0))
	require.ErrorContains(t, err, "args")
}

func TestCallUnknownID(t *testing.T) {
	r := NewRegistry()
	err := r.Call(context.Background(), 3, CallEnv{}, nil)
	require.ErrorContains(t, err, "no reducer with id 3")
}

func TestCallByNameUnknown(t *testing.T) {
	r := NewRegistry()
	err := r.CallByName(context.Background(), "ghost", CallEnv{}, nil)
	require.ErrorContains(t, err, `no reducer named "ghost"`)
}

func TestCallPropagatesReducerError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	h, err := r.RegisterReducer("fail", func(ctx *ReducerContext) error { return boom })
	require.NoError(t, err)
	assert.ErrorIs(t, r.Call(context.Background(), h.ID(), CallEnv{}, nil), boom)
}

func TestCallRecoversPanic(t *testing.T) {
	r := NewRegistry()
	h, err := r.RegisterReducer("explode", func(ctx *ReducerContext) error {
		panic("kaboom")
	})
	require.NoError(t, err)

	err = r.Call(context.Background(), h.ID(), CallEnv{}, nil)
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "explode", pe.Reducer)
	assert.Equal(t, "kaboom", pe.Value)
}

func TestCallContextCarriesEnvelope(t *testing.T) {
	r := NewRegistry()
	sender := auth.FromClaims("issuer", "subject")
	conn := auth.ConnectionIDFromBytes([16]byte{1, 2, 3})
	ts := sats.Timestamp{Micros: 1_700_000_000_000_000}

	var seen *ReducerContext
	h, err := r.RegisterReducer("peek", func(ctx *ReducerContext) error {
		seen = ctx
		return nil
	})
	require.NoError(t, err)

	env := CallEnv{Sender: sender, Connection: conn, Timestamp: ts, Token: "tok"}
	require.NoError(t, r.Call(context.Background(), h.ID(), env, nil))
	require.NotNil(t, seen)
	assert.Equal(t, sender, seen.Sender())
	assert.Equal(t, conn, seen.ConnectionID())
	assert.Equal(t, ts, seen.Timestamp())
	assert.NotNil(t, seen.Log)

	// Auth context is built once and reused.
	a := seen.SenderAuth()
	assert.Same(t, a, seen.SenderAuth())
	assert.Equal(t, sender, a.CallerIdentity())
	assert.True(t, a.HasJWT())
}

func TestEncodeArgsChecksTypes(t *testing.T) {
	r := NewRegistry()
	_, err := r.RegisterReducer("bump", func(ctx *ReducerContext, by int32) error { return nil })
	require.NoError(t, err)

	_, err = r.EncodeArgs("bump", "not a number")
	require.ErrorContains(t, err, "want int32")

	_, err = r.EncodeArgs("bump")
	require.ErrorContains(t, err, "takes 1 args")

	// Untyped-int convenience: int converts to the declared width.
	args, err := r.EncodeArgs("bump", 5)
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 0, 0, 0}, args)
}

func TestEncodeArgsNilOption(t *testing.T) {
	r := NewRegistry()
	_, err := r.RegisterReducer("note", func(ctx *ReducerContext, text *string) error { return nil })
	require.NoError(t, err)

	args, err := r.EncodeArgs("note", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, args) // none

	_, err = r.RegisterReducer("need", func(ctx *ReducerContext, n uint64) error { return nil })
	require.NoError(t, err)
	_, err = r.EncodeArgs("need", nil)
	require.ErrorContains(t, err, "non-optional")
}

func TestDescribeDeterministic(t *testing.T) {
	build := func() *Registry {
		r := NewRegistry()
		registerPlayer(t, r, PrimaryKey("id"))
		r.MustRegisterReducer("rename", func(ctx *ReducerContext, id uint64, name string) error {
			return nil
		}, WithParams("id", "name"))
		return r
	}

	var a, b bytes.Buffer
	require.NoError(t, build().Describe(&a))
	require.NoError(t, build().Describe(&b))
	assert.Equal(t, a.Bytes(), b.Bytes())
	assert.Equal(t, DescribeVersion, a.Bytes()[0])

	var def registry.RawModuleDef
	require.NoError(t, bsatn.Unmarshal(a.Bytes()[1:], &def))
	require.Len(t, def.Tables, 1)
	assert.Equal(t, "player", def.Tables[0].Name)
	require.Len(t, def.Reducers, 1)
	assert.Equal(t, "rename", def.Reducers[0].Name)
	require.Len(t, def.Exports, 1)
	assert.Equal(t, "playerRow", def.Exports[0].Name)
}

func TestDescribeGolden(t *testing.T) {
	r := NewRegistry()
	registerPlayer(t, r, PrimaryKey("id"))
	r.MustRegisterReducer("rename", func(ctx *ReducerContext, id uint64, name string) error {
		return nil
	}, WithParams("id", "name"))

	var buf bytes.Buffer
	require.NoError(t, r.Describe(&buf))

	g := goldie.New(t)
	g.Assert(t, "describe", []byte(hex.EncodeToString(buf.Bytes())+"\n"))
}

func TestDescribeFailsOnInvalidDef(t *testing.T) {
	r := NewRegistry()
	// Force a dangling ref by registering a table, then mutating the
	// entry the way a buggy host integration might.
	registerPlayer(t, r)
	r.tables[0].def.ProductRef = 99

	var buf bytes.Buffer
	err := r.Describe(&buf)
	require.ErrorContains(t, err, "definition invalid")
}
