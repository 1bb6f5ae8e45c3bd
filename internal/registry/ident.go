package registry

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/tesseradb/modkit/sats"
)

// IdentError reports an invalid table, reducer, type or column name.
type IdentError struct {
	Ident  string
	Reason string
}

func (e *IdentError) Error() string {
	return fmt.Sprintf("registry: invalid identifier %q: %s", e.Ident, e.Reason)
}

// Names the host itself assigns meaning to. Modules may not mint new
// double-underscore names, but the reserved ones pass validation so
// row types can carry the special field tags.
var reservedIdents = map[string]struct{}{
	sats.IdentityTag:     {},
	sats.ConnectionIDTag: {},
	sats.TimestampTag:    {},
	sats.TimeDurationTag: {},
}

// ValidateIdentifier checks a name against the host's identifier
// rules: NFC-normalized, first rune a letter or underscore, remaining
// runes letters, digits or underscores, and no "__" prefix outside the
// reserved set.
func ValidateIdentifier(s string) error {
	if s == "" {
		return &IdentError{Ident: s, Reason: "empty"}
	}
	if !norm.NFC.IsNormalString(s) {
		return &IdentError{Ident: s, Reason: "not in Unicode normal form C"}
	}
	if strings.HasPrefix(s, "__") {
		if _, ok := reservedIdents[s]; !ok {
			return &IdentError{Ident: s, Reason: `names starting with "__" are reserved`}
		}
		return nil
	}
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && unicode.IsDigit(r):
		default:
			return &IdentError{Ident: s, Reason: fmt.Sprintf("rune %q not allowed", r)}
		}
	}
	return nil
}
