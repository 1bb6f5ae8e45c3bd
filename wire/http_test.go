package wire

import (
	"encoding/hex"
	"net/http"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tesseradb/modkit/bsatn"
	"github.com/tesseradb/modkit/sats"
)

// fixedRequest builds the request pinned by the golden file. Changing
// its encoding breaks compatibility with the host.
func fixedRequest() Request {
	var h Headers
	h.Add("Content-Type", "application/json")
	h.AddSensitive("Authorization", "Bearer x")

	return NewRequest(MethodPost, "https://example.com/v1/ping").
		WithHeaders(h).
		WithTimeout(sats.TimeDuration{Micros: 1_500_000})
}

func TestRequestGolden(t *testing.T) {
	data, err := bsatn.Marshal(fixedRequest())
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "http_request", []byte(hex.EncodeToString(data)+"\n"))
}

func TestResponseGolden(t *testing.T) {
	var h Headers
	h.Add("Content-Length", "4")
	resp := NewResponse(200, VersionHTTP2, h)

	data, err := bsatn.Marshal(resp)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "http_response", []byte(hex.EncodeToString(data)+"\n"))
}

func TestRequestRoundTrip(t *testing.T) {
	in := fixedRequest()
	data, err := bsatn.Marshal(in)
	require.NoError(t, err)

	var out Request
	require.NoError(t, bsatn.Unmarshal(data, &out))

	assert.Equal(t, MethodPost, out.Method())
	assert.Equal(t, "https://example.com/v1/ping", out.URI())
	assert.Equal(t, VersionHTTP11, out.Version())
	assert.Equal(t, 2, out.Headers().Len())
	require.NotNil(t, out.timeout)
	assert.Equal(t, int64(1_500_000), out.timeout.Timeout.Micros)
}

func TestRequestWithoutTimeout(t *testing.T) {
	in := NewRequest(MethodGet, "/")
	data, err := bsatn.Marshal(in)
	require.NoError(t, err)

	var out Request
	require.NoError(t, bsatn.Unmarshal(data, &out))
	assert.Nil(t, out.timeout)
}

func TestMethodExtension(t *testing.T) {
	m := MethodFromString("PROPFIND")
	assert.Equal(t, "PROPFIND", m.String())

	data, err := bsatn.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, byte(methodExtensionTag), data[0])

	var out Method
	require.NoError(t, bsatn.Unmarshal(data, &out))
	assert.Equal(t, m, out)
}

func TestMethodFromStringCaseInsensitive(t *testing.T) {
	assert.Equal(t, MethodGet, MethodFromString("get"))
	assert.Equal(t, MethodPatch, MethodFromString("Patch"))
}

func TestVersionFromProto(t *testing.T) {
	v, err := VersionFromProto("HTTP/1.1")
	require.NoError(t, err)
	assert.Equal(t, VersionHTTP11, v)

	_, err = VersionFromProto("HTTP/9.9")
	require.Error(t, err)
}

func TestHeadersHTTPRoundTrip(t *testing.T) {
	src := http.Header{}
	src.Add("X-B", "2")
	src.Add("X-A", "1")
	src.Add("X-A", "3")

	h := HeadersFromHTTP(src)
	// Sorted by name, repeats preserved in order.
	require.Equal(t, 3, h.Len())
	assert.Equal(t, "x-a", h.entries[0].name)
	assert.Equal(t, "x-a", h.entries[1].name)
	assert.Equal(t, "x-b", h.entries[2].name)

	back := h.ToHTTP()
	assert.Equal(t, []string{"1", "3"}, back.Values("X-A"))
	assert.Equal(t, []string{"2"}, back.Values("X-B"))
}

func TestHeadersSensitiveSurvivesWire(t *testing.T) {
	var h Headers
	h.AddSensitive("Authorization", "secret")

	data, err := bsatn.Marshal(h)
	require.NoError(t, err)

	var out Headers
	require.NoError(t, bsatn.Unmarshal(data, &out))
	require.Equal(t, 1, out.Len())
	assert.True(t, out.entries[0].value.isSensitive)
}

func TestBodyLossyDecode(t *testing.T) {
	b := Body([]byte{'o', 'k', 0xFF})
	assert.Equal(t, "ok�", b.ToStringUTF8Lossy())
}

func TestErrorRoundTrip(t *testing.T) {
	e := NewError("connect timeout")
	data, err := bsatn.Marshal(e)
	require.NoError(t, err)
	assert.Equal(t, byte(0), data[0]) // message variant

	var out Error
	require.NoError(t, bsatn.Unmarshal(data, &out))
	assert.EqualError(t, out, "connect timeout")
}

func TestErrorRejectsUnknownVariant(t *testing.T) {
	var out Error
	err := bsatn.Unmarshal([]byte{7}, &out)
	require.Error(t, err)
}
