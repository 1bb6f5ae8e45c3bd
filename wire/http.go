// Package wire defines the BSATN mirrors of the HTTP types that cross
// the module/host boundary in the procedure HTTP API.
//
// Every public type here wraps a private sum (or a struct ending in a
// variable-length field) so variants can be added later without
// changing the encoding of existing values. The serialized field order
// is a compatibility contract with the host and with other SDKs; it is
// pinned by golden tests and must not be reordered.
package wire

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/tesseradb/modkit/bsatn"
	"github.com/tesseradb/modkit/sats"
)

// Method is an HTTP request method.
type Method struct {
	// tag 0..8 are the standard methods in wire order; tag 9 is an
	// extension method carried as a string.
	tag uint8
	ext string
}

const methodExtensionTag = 9

var (
	MethodGet     = Method{tag: 0}
	MethodHead    = Method{tag: 1}
	MethodPost    = Method{tag: 2}
	MethodPut     = Method{tag: 3}
	MethodDelete  = Method{tag: 4}
	MethodConnect = Method{tag: 5}
	MethodOptions = Method{tag: 6}
	MethodTrace   = Method{tag: 7}
	MethodPatch   = Method{tag: 8}
)

var methodNames = []string{
	http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
	http.MethodDelete, http.MethodConnect, http.MethodOptions,
	http.MethodTrace, http.MethodPatch,
}

// MethodFromString maps a method name to its wire form. Unknown
// methods become extension variants, matching how the host treats them.
func MethodFromString(s string) Method {
	upper := strings.ToUpper(s)
	for i, name := range methodNames {
		if upper == name {
			return Method{tag: uint8(i)}
		}
	}
	return Method{tag: methodExtensionTag, ext: s}
}

func (m Method) String() string {
	if m.tag < methodExtensionTag {
		return methodNames[m.tag]
	}
	return m.ext
}

func (m Method) MarshalBSATN(w *bsatn.Writer) error {
	w.WriteU8(m.tag)
	if m.tag == methodExtensionTag {
		return w.WriteString(m.ext)
	}
	return nil
}

func (m *Method) UnmarshalBSATN(r *bsatn.Reader) error {
	tag, err := r.ReadU8()
	if err != nil {
		return err
	}
	if tag > methodExtensionTag {
		return fmt.Errorf("wire: invalid method tag %d", tag)
	}
	m.tag = tag
	m.ext = ""
	if tag == methodExtensionTag {
		m.ext, err = r.ReadString()
	}
	return err
}

// Version is an HTTP protocol version.
type Version struct {
	tag uint8
}

var (
	VersionHTTP09 = Version{tag: 0}
	VersionHTTP10 = Version{tag: 1}
	VersionHTTP11 = Version{tag: 2}
	VersionHTTP2  = Version{tag: 3}
	VersionHTTP3  = Version{tag: 4}
)

var versionNames = []string{"HTTP/0.9", "HTTP/1.0", "HTTP/1.1", "HTTP/2.0", "HTTP/3.0"}

// VersionFromProto maps a net/http Proto string to its wire form.
func VersionFromProto(proto string) (Version, error) {
	for i, name := range versionNames {
		if proto == name {
			return Version{tag: uint8(i)}, nil
		}
	}
	return Version{}, fmt.Errorf("wire: unknown HTTP version %q", proto)
}

func (v Version) String() string {
	if int(v.tag) < len(versionNames) {
		return versionNames[v.tag]
	}
	return fmt.Sprintf("HTTP/?(%d)", v.tag)
}

func (v Version) MarshalBSATN(w *bsatn.Writer) error {
	w.WriteU8(v.tag)
	return nil
}

func (v *Version) UnmarshalBSATN(r *bsatn.Reader) error {
	tag, err := r.ReadU8()
	if err != nil {
		return err
	}
	if int(tag) >= len(versionNames) {
		return fmt.Errorf("wire: invalid version tag %d", tag)
	}
	v.tag = tag
	return nil
}

// headerValue is a validated header value. is_sensitive survives the
// boundary so hosts can keep redacting what the client marked secret.
type headerValue struct {
	bytes       []byte
	isSensitive bool
}

type headerPair struct {
	name  string
	value headerValue
}

// Headers is an ordered multimap of HTTP headers. The wire form is an
// array of (name, value) pairs; there is no multimap in the type
// system, so repeated names simply repeat.
type Headers struct {
	entries []headerPair
}

// HeadersFromHTTP converts a net/http header map. Names are sorted so
// the wire form is deterministic regardless of map iteration order.
func HeadersFromHTTP(h http.Header) Headers {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	var out Headers
	for _, name := range names {
		for _, v := range h[name] {
			out.entries = append(out.entries, headerPair{
				name:  strings.ToLower(name),
				value: headerValue{bytes: []byte(v)},
			})
		}
	}
	return out
}

// Add appends a header pair.
func (h *Headers) Add(name, value string) {
	h.entries = append(h.entries, headerPair{
		name:  strings.ToLower(name),
		value: headerValue{bytes: []byte(value)},
	})
}

// AddSensitive appends a header pair flagged sensitive.
func (h *Headers) AddSensitive(name, value string) {
	h.entries = append(h.entries, headerPair{
		name:  strings.ToLower(name),
		value: headerValue{bytes: []byte(value), isSensitive: true},
	})
}

// Len returns the number of header pairs.
func (h Headers) Len() int {
	return len(h.entries)
}

// ToHTTP converts back to a net/http header map.
func (h Headers) ToHTTP() http.Header {
	out := make(http.Header, len(h.entries))
	for _, e := range h.entries {
		out.Add(e.name, string(e.value.bytes))
	}
	return out
}

func (h Headers) MarshalBSATN(w *bsatn.Writer) error {
	if err := w.WriteLen(len(h.entries)); err != nil {
		return err
	}
	for _, e := range h.entries {
		if err := w.WriteString(e.name); err != nil {
			return err
		}
		if err := w.WriteByteSlice(e.value.bytes); err != nil {
			return err
		}
		w.WriteBool(e.value.isSensitive)
	}
	return nil
}

func (h *Headers) UnmarshalBSATN(r *bsatn.Reader) error {
	n, err := r.ReadLen()
	if err != nil {
		return err
	}
	entries := make([]headerPair, n)
	for i := range entries {
		name, err := r.ReadString()
		if err != nil {
			return err
		}
		value, err := r.ReadByteSlice()
		if err != nil {
			return err
		}
		sensitive, err := r.ReadBool()
		if err != nil {
			return err
		}
		entries[i] = headerPair{name: name, value: headerValue{bytes: value, isSensitive: sensitive}}
	}
	h.entries = entries
	return nil
}

// Timeout bounds a request made from a procedure.
type Timeout struct {
	Timeout sats.TimeDuration
}

func (t Timeout) MarshalBSATN(w *bsatn.Writer) error {
	return t.Timeout.MarshalBSATN(w)
}

func (t *Timeout) UnmarshalBSATN(r *bsatn.Reader) error {
	return t.Timeout.UnmarshalBSATN(r)
}

// Request is the wire form of an HTTP request a procedure asks the
// host to perform. Serialized field order: method, headers, optional
// timeout, uri, version.
type Request struct {
	method  Method
	headers Headers
	timeout *Timeout
	uri     string
	version Version
}

// NewRequest builds a request. uri must already be a valid URI; the
// host revalidates but does not repair it.
func NewRequest(method Method, uri string) Request {
	return Request{method: method, uri: uri, version: VersionHTTP11}
}

func (q Request) Method() Method    { return q.method }
func (q Request) URI() string       { return q.uri }
func (q Request) Version() Version  { return q.version }
func (q Request) Headers() *Headers { return &q.headers }

// WithHeaders returns a copy with the given headers.
func (q Request) WithHeaders(h Headers) Request {
	q.headers = h
	return q
}

// WithTimeout returns a copy carrying a timeout.
func (q Request) WithTimeout(d sats.TimeDuration) Request {
	q.timeout = &Timeout{Timeout: d}
	return q
}

// WithVersion returns a copy with an explicit protocol version.
func (q Request) WithVersion(v Version) Request {
	q.version = v
	return q
}

func (q Request) MarshalBSATN(w *bsatn.Writer) error {
	if err := q.method.MarshalBSATN(w); err != nil {
		return err
	}
	if err := q.headers.MarshalBSATN(w); err != nil {
		return err
	}
	if q.timeout == nil {
		w.WriteU8(1)
	} else {
		w.WriteU8(0)
		if err := q.timeout.MarshalBSATN(w); err != nil {
			return err
		}
	}
	if err := w.WriteString(q.uri); err != nil {
		return err
	}
	return q.version.MarshalBSATN(w)
}

func (q *Request) UnmarshalBSATN(r *bsatn.Reader) error {
	if err := q.method.UnmarshalBSATN(r); err != nil {
		return err
	}
	if err := q.headers.UnmarshalBSATN(r); err != nil {
		return err
	}
	tag, err := r.ReadU8()
	if err != nil {
		return err
	}
	switch tag {
	case 0:
		q.timeout = &Timeout{}
		if err := q.timeout.UnmarshalBSATN(r); err != nil {
			return err
		}
	case 1:
		q.timeout = nil
	default:
		return fmt.Errorf("wire: invalid timeout option tag %d", tag)
	}
	if q.uri, err = r.ReadString(); err != nil {
		return err
	}
	return q.version.UnmarshalBSATN(r)
}

// Response is the wire form of an HTTP response head. The body travels
// separately as a byte stream. Serialized field order: headers,
// version, status code.
type Response struct {
	headers Headers
	version Version
	code    uint16
}

// NewResponse builds a response head.
func NewResponse(code uint16, version Version, headers Headers) Response {
	return Response{headers: headers, version: version, code: code}
}

func (p Response) StatusCode() uint16 { return p.code }
func (p Response) Version() Version   { return p.version }
func (p Response) Headers() Headers   { return p.headers }

func (p Response) MarshalBSATN(w *bsatn.Writer) error {
	if err := p.headers.MarshalBSATN(w); err != nil {
		return err
	}
	if err := p.version.MarshalBSATN(w); err != nil {
		return err
	}
	w.WriteU16(p.code)
	return nil
}

func (p *Response) UnmarshalBSATN(r *bsatn.Reader) error {
	if err := p.headers.UnmarshalBSATN(r); err != nil {
		return err
	}
	if err := p.version.UnmarshalBSATN(r); err != nil {
		return err
	}
	code, err := r.ReadU16()
	if err != nil {
		return err
	}
	p.code = code
	return nil
}

// Body is an HTTP payload. Bodies are raw bytes; the helpers exist
// because most procedure code wants text.
type Body []byte

// ToStringUTF8Lossy decodes the body as UTF-8, replacing invalid
// sequences with U+FFFD.
func (b Body) ToStringUTF8Lossy() string {
	return strings.ToValidUTF8(string(b), "�")
}

func (b Body) MarshalBSATN(w *bsatn.Writer) error {
	return w.WriteByteSlice(b)
}

func (b *Body) UnmarshalBSATN(r *bsatn.Reader) error {
	data, err := r.ReadByteSlice()
	if err != nil {
		return err
	}
	*b = data
	return nil
}

// Error is the wire form of a failed host-side HTTP call. It is a sum
// with a single message variant today; the sum leaves room for richer
// causes without breaking the encoding.
type Error struct {
	message string
}

// NewError builds a wire error from a message.
func NewError(message string) Error {
	return Error{message: message}
}

func (e Error) Error() string {
	return e.message
}

func (e Error) MarshalBSATN(w *bsatn.Writer) error {
	w.WriteU8(0) // message variant
	return w.WriteString(e.message)
}

func (e *Error) UnmarshalBSATN(r *bsatn.Reader) error {
	tag, err := r.ReadU8()
	if err != nil {
		return err
	}
	if tag != 0 {
		return fmt.Errorf("wire: invalid error variant tag %d", tag)
	}
	e.message, err = r.ReadString()
	return err
}
