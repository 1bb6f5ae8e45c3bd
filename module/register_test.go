package module

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesseradb/modkit/internal/registry"
)

type playerRow struct {
	ID    uint64 `bsatn:"id"`
	Name  string
	Score int32
}

func registerPlayer(t *testing.T, r *Registry, opts ...TableOption) *TableHandle {
	t.Helper()
	h, err := RegisterTable[playerRow](r, "player", opts...)
	require.NoError(t, err)
	return h
}

func TestRegisterTable(t *testing.T) {
	r := NewRegistry()
	h := registerPlayer(t, r, Public(), PrimaryKey("id"), AutoInc("id"), Unique("name"), Index("score"))
	assert.Equal(t, "player", h.Name())

	entry, ok := r.table("player")
	require.True(t, ok)
	assert.Equal(t, registry.AccessPublic, entry.def.Access)
	require.NotNil(t, entry.def.PrimaryKey)
	assert.Equal(t, uint16(0), *entry.def.PrimaryKey)
	// Primary key implies uniqueness alongside the explicit one.
	assert.Equal(t, []uint16{0, 1}, entry.def.Unique)
	assert.Equal(t, []uint16{0}, entry.def.AutoInc)
	require.Len(t, entry.def.Indexes, 1)
	assert.Equal(t, []uint16{2}, entry.def.Indexes[0].Cols)
}

func TestRegisterTableDuplicate(t *testing.T) {
	r := NewRegistry()
	registerPlayer(t, r)
	_, err := RegisterTable[playerRow](r, "player")
	var re *RegistrationError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, codeDuplicate, re.Code)
}

func TestRegisterTableUnknownColumn(t *testing.T) {
	r := NewRegistry()
	_, err := RegisterTable[playerRow](r, "player", PrimaryKey("nope"))
	var re *RegistrationError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, codeUnknownCol, re.Code)
}

func TestRegisterTableSecondPrimaryKey(t *testing.T) {
	r := NewRegistry()
	_, err := RegisterTable[playerRow](r, "player", PrimaryKey("id"), PrimaryKey("name"))
	var re *RegistrationError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, codeSecondPK, re.Code)
}

func TestRegisterTableRejectsNonStruct(t *testing.T) {
	r := NewRegistry()
	_, err := RegisterTable[uint64](r, "counter")
	var re *RegistrationError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, codeBadRowType, re.Code)
}

func TestRegisterTableBadName(t *testing.T) {
	r := NewRegistry()
	_, err := RegisterTable[playerRow](r, "__player")
	var re *RegistrationError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, registry.CodeBadIdent, re.Code)
}

func TestRegisterReducer(t *testing.T) {
	r := NewRegistry()
	h, err := r.RegisterReducer("rename", func(ctx *ReducerContext, id uint64, name string) error {
		return nil
	}, WithParams("id", "name"))
	require.NoError(t, err)
	assert.Equal(t, uint32(0), h.ID())

	def, err := r.ModuleDef()
	require.NoError(t, err)
	require.Len(t, def.Reducers, 1)
	params := def.Reducers[0].Params.Elements
	require.Len(t, params, 2)
	assert.Equal(t, "id", params[0].Name)
	assert.Equal(t, "name", params[1].Name)
}

func TestRegisterReducerPositionalParamNames(t *testing.T) {
	r := NewRegistry()
	_, err := r.RegisterReducer("bump", func(ctx *ReducerContext, by int32) error { return nil })
	require.NoError(t, err)

	def, err := r.ModuleDef()
	require.NoError(t, err)
	assert.Equal(t, "arg0", def.Reducers[0].Params.Elements[0].Name)
}

func TestRegisterReducerSignatureChecks(t *testing.T) {
	r := NewRegistry()
	cases := []struct {
		name string
		fn   any
	}{
		{"not_a_func", 42},
		{"no_ctx", func(id uint64) error { return nil }},
		{"no_error", func(ctx *ReducerContext) {}},
		{"two_results", func(ctx *ReducerContext) (int, error) { return 0, nil }},
		{"variadic", func(ctx *ReducerContext, xs ...uint64) error { return nil }},
		{"machine_int", func(ctx *ReducerContext, n int) error { return nil }},
	}
	for _, c := range cases {
		_, err := r.RegisterReducer(c.name, c.fn)
		var re *RegistrationError
		require.ErrorAs(t, err, &re, c.name)
		assert.Equal(t, codeBadSignature, re.Code, c.name)
	}
}

func TestRegisterReducerParamCountMismatch(t *testing.T) {
	r := NewRegistry()
	_, err := r.RegisterReducer("rename", func(ctx *ReducerContext, id uint64) error {
		return nil
	}, WithParams("id", "extra"))
	var re *RegistrationError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, codeBadSignature, re.Code)
}

func TestLifecycleClassification(t *testing.T) {
	r := NewRegistry()
	_, err := r.OnInit(func(ctx *ReducerContext) error { return nil })
	require.NoError(t, err)
	_, err = r.OnConnect(func(ctx *ReducerContext) error { return nil })
	require.NoError(t, err)
	_, err = r.RegisterReducer("client_disconnected", func(ctx *ReducerContext) error { return nil })
	require.NoError(t, err)

	def, err := r.ModuleDef()
	require.NoError(t, err)
	require.Len(t, def.Reducers, 3)
	require.NotNil(t, def.Reducers[0].Lifecycle)
	assert.Equal(t, registry.LifecycleInit, *def.Reducers[0].Lifecycle)
	require.NotNil(t, def.Reducers[2].Lifecycle)
	assert.Equal(t, registry.LifecycleOnDisconnect, *def.Reducers[2].Lifecycle)
}

func TestLifecycleRejectsArgs(t *testing.T) {
	r := NewRegistry()
	_, err := r.RegisterReducer("init", func(ctx *ReducerContext, n uint64) error { return nil })
	var re *RegistrationError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, registry.CodeLifecycleArgs, re.Code)
}

func TestReducerIDsFollowRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	noop := func(ctx *ReducerContext) error { return nil }
	for _, name := range []string{"a", "b", "c"} {
		_, err := r.RegisterReducer(name, noop)
		require.NoError(t, err)
	}
	id, ok := r.ReducerID("b")
	require.True(t, ok)
	assert.Equal(t, uint32(1), id)
	name, ok := r.ReducerName(2)
	require.True(t, ok)
	assert.Equal(t, "c", name)
}

func TestResetGivesFreshDefault(t *testing.T) {
	first := Reset()
	registerPlayer(t, first)
	second := Reset()
	assert.NotSame(t, first, second)
	_, ok := second.table("player")
	assert.False(t, ok)
}
