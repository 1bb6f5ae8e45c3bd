package auth

import (
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesseradb/modkit/bsatn"
)

func TestFromClaimsDeterministic(t *testing.T) {
	a := FromClaims("https://issuer.example", "user-1")
	b := FromClaims("https://issuer.example", "user-1")
	c := FromClaims("https://issuer.example", "user-2")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, byte(0xC2), a[0])
	assert.Equal(t, byte(0x00), a[1])
}

func TestFromClaimsSeparatorMatters(t *testing.T) {
	// "ab"+"c" must not collide with "a"+"bc".
	assert.NotEqual(t, FromClaims("ab", "c"), FromClaims("a", "bc"))
}

func TestIdentityHexRoundTrip(t *testing.T) {
	id := FromClaims("iss", "sub")

	parsed, err := FromHex(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	// Without the 0x prefix too.
	parsed, err = FromHex(id.String()[2:])
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestFromHexRejectsBadInput(t *testing.T) {
	_, err := FromHex("0xdeadbeef")
	require.Error(t, err)

	_, err = FromHex("zz" + FromClaims("i", "s").String()[4:])
	require.Error(t, err)
}

func TestIdentityBSATNLittleEndian(t *testing.T) {
	var id Identity
	for i := range id {
		id[i] = byte(i)
	}

	w := bsatn.NewWriter()
	require.NoError(t, id.MarshalBSATN(w))
	data := w.Bytes()
	require.Len(t, data, 32)
	assert.Equal(t, byte(31), data[0])
	assert.Equal(t, byte(0), data[31])

	var out Identity
	require.NoError(t, out.UnmarshalBSATN(bsatn.NewReader(data)))
	assert.Equal(t, id, out)
}

func TestConnectionIDBSATNRoundTrip(t *testing.T) {
	c := ConnectionIDFromBytes([16]byte{1, 2, 3, 4})
	require.False(t, c.IsZero())

	w := bsatn.NewWriter()
	require.NoError(t, c.MarshalBSATN(w))

	var out ConnectionID
	require.NoError(t, out.UnmarshalBSATN(bsatn.NewReader(w.Bytes())))
	assert.Equal(t, c, out)
}

func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte("test-key"))
	require.NoError(t, err)
	return signed
}

func TestCtxLazyClaims(t *testing.T) {
	caller := FromClaims("https://auth.example", "alice")
	token := mintToken(t, jwt.MapClaims{
		"iss": "https://auth.example",
		"sub": "alice",
		"aud": []string{"db-1"},
	})

	ctx := NewCtx(caller, token)
	require.True(t, ctx.HasJWT())
	assert.Equal(t, caller, ctx.CallerIdentity())

	claims, err := ctx.Claims()
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)
	assert.Equal(t, "https://auth.example", claims.Issuer)
	assert.Equal(t, []string{"db-1"}, claims.Audience)

	id, err := claims.Identity()
	require.NoError(t, err)
	assert.Equal(t, caller, id)

	// Second call returns the cached pointer.
	again, err := ctx.Claims()
	require.NoError(t, err)
	assert.Same(t, claims, again)
}

func TestCtxHexIdentityCrossCheck(t *testing.T) {
	minted := FromClaims("https://auth.example", "bob")
	token := mintToken(t, jwt.MapClaims{
		"iss":          "https://auth.example",
		"sub":          "bob",
		"hex_identity": minted.String()[2:],
	})

	ctx := NewCtx(minted, token)
	claims, err := ctx.Claims()
	require.NoError(t, err)

	id, err := claims.Identity()
	require.NoError(t, err)
	assert.Equal(t, minted, id)
}

func TestCtxHexIdentityMismatchRejected(t *testing.T) {
	forged := FromClaims("other-issuer", "bob")
	token := mintToken(t, jwt.MapClaims{
		"iss":          "https://auth.example",
		"sub":          "bob",
		"hex_identity": forged.String()[2:],
	})

	ctx := NewCtx(forged, token)
	claims, err := ctx.Claims()
	require.NoError(t, err)

	_, err = claims.Identity()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match")
}

func TestCtxWithoutToken(t *testing.T) {
	caller := FromClaims("i", "s")
	ctx := NewCtx(caller, "")

	assert.False(t, ctx.HasJWT())
	assert.Equal(t, caller, ctx.CallerIdentity())

	_, err := ctx.Claims()
	require.Error(t, err)
}

func TestCtxMalformedToken(t *testing.T) {
	ctx := NewCtx(Identity{}, "not-a-jwt")
	_, err := ctx.Claims()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed JWT")
}
