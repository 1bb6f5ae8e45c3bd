package auth

import (
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the subset of JWT claims a module can read about its
// caller. The host has already verified the token's signature; modules
// only ever see the decoded payload.
type Claims struct {
	Subject  string
	Issuer   string
	Audience []string

	// HexIdentity is the pre-computed identity claim minted by the
	// host, when present.
	HexIdentity string
}

// Identity returns the caller identity these claims describe, derived
// from issuer and subject. When the token also carries a hex_identity
// claim the two must agree; a mismatch is an error, not a preference.
func (c *Claims) Identity() (Identity, error) {
	derived := FromClaims(c.Issuer, c.Subject)
	if c.HexIdentity == "" {
		return derived, nil
	}
	claimed, err := FromHex(c.HexIdentity)
	if err != nil {
		return Identity{}, err
	}
	if claimed != derived {
		return Identity{}, fmt.Errorf("auth: hex_identity claim %s does not match identity %s derived from issuer and subject", claimed, derived)
	}
	return claimed, nil
}

// Ctx exposes the authenticated caller of a reducer.
//
// Claim parsing is lazy: most reducers never look at the JWT, so the
// payload is not decoded until the first Claims call, and the result
// (or error) is cached for the rest of the reducer invocation.
type Ctx struct {
	caller Identity
	token  string

	once   sync.Once
	claims *Claims
	err    error
}

// NewCtx builds an auth context for a call. token is the raw compact
// JWT the host attached, or "" for anonymous and scheduled calls.
func NewCtx(caller Identity, token string) *Ctx {
	return &Ctx{caller: caller, token: token}
}

// CallerIdentity returns the host-verified caller identity. Always
// available, with or without a JWT.
func (c *Ctx) CallerIdentity() Identity {
	return c.caller
}

// HasJWT reports whether the call carried a token.
func (c *Ctx) HasJWT() bool {
	return c.token != ""
}

// RawJWT returns the compact token, or "" when there is none.
func (c *Ctx) RawJWT() string {
	return c.token
}

// Claims parses the token payload on first use and returns the cached
// result afterwards. Returns an error when no token is present or the
// payload is malformed.
func (c *Ctx) Claims() (*Claims, error) {
	c.once.Do(func() {
		if c.token == "" {
			c.err = fmt.Errorf("auth: no JWT present")
			return
		}
		c.claims, c.err = parseClaims(c.token)
	})
	return c.claims, c.err
}

// parseClaims decodes the payload without verifying the signature. The
// host verified the token before ever invoking the module; re-verifying
// here would require distributing issuer keys into every module.
func parseClaims(token string) (*Claims, error) {
	mc := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, mc); err != nil {
		return nil, fmt.Errorf("auth: malformed JWT: %w", err)
	}

	out := &Claims{}
	if sub, err := mc.GetSubject(); err == nil {
		out.Subject = sub
	}
	if iss, err := mc.GetIssuer(); err == nil {
		out.Issuer = iss
	}
	if aud, err := mc.GetAudience(); err == nil {
		out.Audience = aud
	}
	if hexID, ok := mc["hex_identity"].(string); ok {
		out.HexIdentity = hexID
	}
	return out, nil
}
