package sats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesseradb/modkit/bsatn"
)

func TestValueSealed(t *testing.T) {
	var _ Value = Bool(true)
	var _ Value = I64(-1)
	var _ Value = U256{}
	var _ Value = Str("s")
	var _ Value = Bytes{1}
	var _ Value = Array{U8(1)}
	var _ Value = Product{Str("x")}
	var _ Value = Sum{Tag: 0, Payload: Unit()}
}

func TestDecodeValueProduct(t *testing.T) {
	ts := NewTypespace()
	rowType := ProductOf(
		ProductElement{Name: "id", Type: U64Type()},
		ProductElement{Name: "name", Type: StringType()},
		ProductElement{Name: "score", Type: OptionOf(I32Type())},
	)

	w := bsatn.NewWriter()
	w.WriteU64(9)
	require.NoError(t, w.WriteString("ana"))
	w.WriteU8(0) // some
	w.WriteI32(-5)

	r := bsatn.NewReader(w.Bytes())
	v, err := DecodeValue(ts, rowType, r)
	require.NoError(t, err)
	require.NoError(t, r.ExpectEOF())

	row := v.(Product)
	assert.Equal(t, U64(9), row[0])
	assert.Equal(t, Str("ana"), row[1])
	assert.Equal(t, Sum{Tag: 0, Payload: I32(-5)}, row[2])
}

func TestDecodeValueThroughRef(t *testing.T) {
	ts := NewTypespace()
	idx := ts.Add("pair", ProductOf(
		ProductElement{Name: "a", Type: U8Type()},
		ProductElement{Name: "b", Type: U8Type()},
	))

	r := bsatn.NewReader([]byte{1, 2})
	v, err := DecodeValue(ts, RefType(idx), r)
	require.NoError(t, err)
	assert.Equal(t, Product{U8(1), U8(2)}, v)
}

func TestDecodeValueSumTagOutOfRange(t *testing.T) {
	ts := NewTypespace()
	_, err := DecodeValue(ts, OptionOf(U8Type()), bsatn.NewReader([]byte{5}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum tag 5 out of range")
}

func TestDecodeValueDanglingRef(t *testing.T) {
	ts := NewTypespace()
	_, err := DecodeValue(ts, RefType(0), bsatn.NewReader(nil))
	require.Error(t, err)
}

func TestDecodeValueWideIntegers(t *testing.T) {
	ts := NewTypespace()
	buf := make([]byte, 96)
	for i := range buf {
		buf[i] = byte(i)
	}
	r := bsatn.NewReader(buf)

	var i128 I128
	copy(i128[:], buf[0:16])
	var u128 U128
	copy(u128[:], buf[16:32])
	var i256 I256
	copy(i256[:], buf[32:64])
	var u256 U256
	copy(u256[:], buf[64:96])

	v, err := DecodeValue(ts, I128Type(), r)
	require.NoError(t, err)
	assert.Equal(t, Value(i128), v)
	v, err = DecodeValue(ts, U128Type(), r)
	require.NoError(t, err)
	assert.Equal(t, Value(u128), v)
	v, err = DecodeValue(ts, I256Type(), r)
	require.NoError(t, err)
	assert.Equal(t, Value(i256), v)
	v, err = DecodeValue(ts, U256Type(), r)
	require.NoError(t, err)
	assert.Equal(t, Value(u256), v)
	require.NoError(t, r.ExpectEOF())

	_, err = DecodeValue(ts, U256Type(), bsatn.NewReader(buf[:10]))
	require.Error(t, err)
}

func TestValueRoundTrip(t *testing.T) {
	ts := NewTypespace()
	ty := ProductOf(
		ProductElement{Name: "flags", Type: ArrayOf(BoolType())},
		ProductElement{Name: "blob", Type: ArrayOf(U8Type())},
		ProductElement{Name: "wide", Type: U128Type()},
		ProductElement{Name: "status", Type: SumOf(
			SumVariant{Name: "ok", Type: UnitType()},
			SumVariant{Name: "err", Type: StringType()},
		)},
	)

	in := Product{
		Array{Bool(true), Bool(false)},
		Bytes{0xAA, 0xBB},
		U128{1, 2, 3},
		Sum{Tag: 1, Payload: Str("boom")},
	}

	w := bsatn.NewWriter()
	require.NoError(t, EncodeValue(w, in))

	r := bsatn.NewReader(w.Bytes())
	out, err := DecodeValue(ts, ty, r)
	require.NoError(t, err)
	require.NoError(t, r.ExpectEOF())
	assert.Equal(t, Value(in), out)
}
