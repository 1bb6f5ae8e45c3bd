// Package auth carries the caller-facing identity machinery: the
// host-verified 32-byte Identity, per-connection ids, and the lazy JWT
// claim context reducers read the caller's claims through.
package auth

import (
	"encoding/hex"
	"fmt"
	"strings"

	"lukechampine.com/blake3"

	"github.com/tesseradb/modkit/bsatn"
	"github.com/tesseradb/modkit/sats"
)

// Identity is a host-verified caller identifier.
//
// Layout (display order): bytes[0:2] are the 0xC200 version prefix,
// bytes[2:6] are a checksum over the prefix and the tail, bytes[6:32]
// are the leading 26 bytes of BLAKE3("issuer|subject"). The checksum
// lets a truncated or corrupted identity be rejected without contacting
// the issuer.
type Identity [32]byte

const identityHexLen = 64

// FromClaims derives the identity owned by a (issuer, subject) pair.
// The derivation is deterministic: the same claims always produce the
// same identity, on any node.
func FromClaims(issuer, subject string) Identity {
	idHash := blake3.Sum256([]byte(issuer + "|" + subject))

	var id Identity
	id[0] = 0xC2
	id[1] = 0x00
	copy(id[6:], idHash[:26])

	var sumInput [28]byte
	sumInput[0], sumInput[1] = 0xC2, 0x00
	copy(sumInput[2:], idHash[:26])
	checksum := blake3.Sum256(sumInput[:])
	copy(id[2:6], checksum[:4])

	return id
}

// FromHex parses an identity from hex, with or without a 0x prefix.
func FromHex(s string) (Identity, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(s) != identityHexLen {
		return Identity{}, fmt.Errorf("auth: identity hex must be %d chars, got %d", identityHexLen, len(s))
	}
	var id Identity
	if _, err := hex.Decode(id[:], []byte(s)); err != nil {
		return Identity{}, fmt.Errorf("auth: invalid identity hex: %w", err)
	}
	return id, nil
}

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool {
	return id == Identity{}
}

// String renders the identity as 0x-prefixed lowercase hex.
func (id Identity) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// AlgebraicType implements sats.Typer: a one-field product tagged
// __identity__ over u256.
func (Identity) AlgebraicType() sats.AlgebraicType {
	return sats.IdentityType()
}

// MarshalBSATN writes the identity as a little-endian u256, i.e. the
// display bytes reversed.
func (id Identity) MarshalBSATN(w *bsatn.Writer) error {
	var le [32]byte
	for i := range id {
		le[i] = id[31-i]
	}
	w.WriteRaw(le[:])
	return nil
}

// UnmarshalBSATN reads a little-endian u256.
func (id *Identity) UnmarshalBSATN(r *bsatn.Reader) error {
	b, err := r.ReadRaw(32)
	if err != nil {
		return err
	}
	for i := range id {
		id[i] = b[31-i]
	}
	return nil
}

// ConnectionID identifies one client connection. The zero value means
// "no connection" (e.g. a scheduled call).
type ConnectionID [16]byte

// ConnectionIDFromBytes builds a connection id from 16 raw bytes.
func ConnectionIDFromBytes(b [16]byte) ConnectionID {
	return ConnectionID(b)
}

// ConnectionIDFromHex parses a connection id from hex, with or without
// a 0x prefix.
func ConnectionIDFromHex(s string) (ConnectionID, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(s) != 32 {
		return ConnectionID{}, fmt.Errorf("auth: connection id hex must be 32 chars, got %d", len(s))
	}
	var c ConnectionID
	if _, err := hex.Decode(c[:], []byte(s)); err != nil {
		return ConnectionID{}, fmt.Errorf("auth: invalid connection id hex: %w", err)
	}
	return c, nil
}

// IsZero reports whether the connection id is unset.
func (c ConnectionID) IsZero() bool {
	return c == ConnectionID{}
}

func (c ConnectionID) String() string {
	return "0x" + hex.EncodeToString(c[:])
}

// AlgebraicType implements sats.Typer: a one-field product tagged
// __connection_id__ over u128.
func (ConnectionID) AlgebraicType() sats.AlgebraicType {
	return sats.ConnectionIDType()
}

// MarshalBSATN writes the connection id as a little-endian u128.
func (c ConnectionID) MarshalBSATN(w *bsatn.Writer) error {
	var le [16]byte
	for i := range c {
		le[i] = c[15-i]
	}
	w.WriteRaw(le[:])
	return nil
}

// UnmarshalBSATN reads a little-endian u128.
func (c *ConnectionID) UnmarshalBSATN(r *bsatn.Reader) error {
	b, err := r.ReadRaw(16)
	if err != nil {
		return err
	}
	for i := range c {
		c[i] = b[15-i]
	}
	return nil
}
