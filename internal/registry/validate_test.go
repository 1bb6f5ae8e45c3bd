package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesseradb/modkit/sats"
)

func TestValidateIdentifier(t *testing.T) {
	cases := []struct {
		ident string
		ok    bool
	}{
		{"player", true},
		{"_internal", true},
		{"player2", true},
		{"Spieler_Straße", true},
		{"__identity__", true}, // reserved, allowed
		{"", false},
		{"2player", false},
		{"__secret", false},
		{"has space", false},
		{"has-dash", false},
	}
	for _, c := range cases {
		err := ValidateIdentifier(c.ident)
		if c.ok {
			assert.NoError(t, err, c.ident)
		} else {
			assert.Error(t, err, c.ident)
		}
	}
}

func TestValidateIdentifierRejectsNonNFC(t *testing.T) {
	// "é" as 'e' + combining acute, the NFD form.
	err := ValidateIdentifier("café")
	require.Error(t, err)
	var ie *IdentError
	require.ErrorAs(t, err, &ie)
	assert.Contains(t, ie.Reason, "normal form")
}

func TestValidateCleanDef(t *testing.T) {
	assert.Empty(t, Validate(sampleDef()))
}

func hasCode(t *testing.T, errs []error, code string) bool {
	t.Helper()
	for _, err := range errs {
		var ve *ValidationError
		if errors.As(err, &ve) && ve.Code == code {
			return true
		}
	}
	return false
}

func TestValidateDuplicateTable(t *testing.T) {
	def := sampleDef()
	def.Tables = append(def.Tables, def.Tables[0])
	assert.True(t, hasCode(t, Validate(def), CodeDuplicate))
}

func TestValidateDanglingRowRef(t *testing.T) {
	def := sampleDef()
	def.Tables[0].ProductRef = 42
	assert.True(t, hasCode(t, Validate(def), CodeDanglingRef))
}

func TestValidateDanglingTypespaceRef(t *testing.T) {
	def := sampleDef()
	def.Typespace = append(def.Typespace, sats.ArrayOf(sats.RefType(99)))
	assert.True(t, hasCode(t, Validate(def), CodeDanglingRef))
}

func TestValidateCircularRef(t *testing.T) {
	def := sampleDef()
	def.Typespace = append(def.Typespace, sats.RefType(1)) // entry 1 refs itself
	assert.True(t, hasCode(t, Validate(def), CodeCircularRef))
}

func TestValidateCircularRefChain(t *testing.T) {
	def := sampleDef()
	def.Typespace = append(def.Typespace, sats.RefType(2), sats.RefType(1))
	assert.True(t, hasCode(t, Validate(def), CodeCircularRef))
}

func TestValidateAutoIncThroughRefCycle(t *testing.T) {
	// The autoinc type check must terminate on a cyclic ref chain and
	// report, not spin.
	def := &RawModuleDef{
		Typespace: []sats.AlgebraicType{
			sats.ProductOf(sats.ProductElement{Name: "id", Type: sats.RefType(1)}),
			sats.RefType(1),
		},
		Tables: []TableDef{{
			Name:       "spinner",
			ProductRef: 0,
			AutoInc:    []uint16{0},
			Access:     AccessPrivate,
		}},
	}
	errs := Validate(def)
	assert.True(t, hasCode(t, errs, CodeCircularRef))
	assert.True(t, hasCode(t, errs, CodeBadAutoInc))
}

func TestValidateRowNotProduct(t *testing.T) {
	def := sampleDef()
	def.Typespace[0] = sats.StringType()
	assert.True(t, hasCode(t, Validate(def), CodeNotProduct))
}

func TestValidateColumnOutOfRange(t *testing.T) {
	def := sampleDef()
	pk := uint16(7)
	def.Tables[0].PrimaryKey = &pk
	assert.True(t, hasCode(t, Validate(def), CodeColumnRange))
}

func TestValidateAutoIncOnString(t *testing.T) {
	def := sampleDef()
	def.Tables[0].AutoInc = []uint16{1} // "name", a string column
	assert.True(t, hasCode(t, Validate(def), CodeBadAutoInc))
}

func TestValidateDuplicateLifecycle(t *testing.T) {
	def := sampleDef()
	lc := LifecycleInit
	def.Reducers = append(def.Reducers, ReducerDef{Name: "init2", Lifecycle: &lc})
	assert.True(t, hasCode(t, Validate(def), CodeDupLifecycle))
}

func TestValidateLifecycleWithParams(t *testing.T) {
	def := sampleDef()
	lc := LifecycleOnConnect
	def.Reducers = append(def.Reducers, ReducerDef{
		Name:      "client_connected",
		Lifecycle: &lc,
		Params: sats.ProductType{Elements: []sats.ProductElement{
			{Name: "who", Type: sats.StringType()},
		}},
	})
	assert.True(t, hasCode(t, Validate(def), CodeLifecycleArgs))
}

func TestValidateReportsAllProblems(t *testing.T) {
	def := sampleDef()
	def.Tables[0].ProductRef = 42
	def.Reducers[0].Name = "2bad"
	def.Reducers = append(def.Reducers, def.Reducers[0])
	errs := Validate(def)
	assert.GreaterOrEqual(t, len(errs), 3)
}
