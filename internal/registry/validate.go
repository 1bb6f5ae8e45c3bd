package registry

import (
	"fmt"

	"github.com/tesseradb/modkit/sats"
)

// Validation error codes, stable for programmatic matching.
const (
	CodeBadIdent      = "bad-identifier"
	CodeDuplicate     = "duplicate-name"
	CodeDanglingRef   = "dangling-ref"
	CodeCircularRef   = "circular-ref"
	CodeNotProduct    = "not-a-product"
	CodeColumnRange   = "column-out-of-range"
	CodeBadAutoInc    = "autoinc-not-integer"
	CodeDupLifecycle  = "duplicate-lifecycle"
	CodeLifecycleArgs = "lifecycle-has-params"
)

// ValidationError is one problem found in a module definition.
type ValidationError struct {
	Code   string
	Where  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("registry: %s: %s (%s)", e.Where, e.Detail, e.Code)
}

// Validate checks a module definition for the problems the host would
// reject it for. All problems are reported, not just the first.
func Validate(def *RawModuleDef) []error {
	v := &validator{def: def}
	v.typespace()
	v.exports()
	v.tables()
	v.reducers()
	return v.errs
}

type validator struct {
	def  *RawModuleDef
	errs []error
}

func (v *validator) fail(code, where, format string, args ...any) {
	v.errs = append(v.errs, &ValidationError{
		Code:   code,
		Where:  where,
		Detail: fmt.Sprintf(format, args...),
	})
}

func (v *validator) typespace() {
	for i, t := range v.def.Typespace {
		where := fmt.Sprintf("type %d", i)
		v.checkRefs(where, t)
		if t.Tag() == sats.TagRef {
			v.checkRefChain(where, uint32(i))
		}
	}
}

// checkRefChain follows a chain of bare refs starting at entry start
// and reports a chain that loops back on itself.
func (v *validator) checkRefChain(where string, start uint32) {
	visited := map[uint32]bool{}
	cur := start
	for {
		if visited[cur] {
			v.fail(CodeCircularRef, where, "ref chain revisits type %d", cur)
			return
		}
		visited[cur] = true
		t := v.def.Typespace[cur]
		if t.Tag() != sats.TagRef || int(t.Ref()) >= len(v.def.Typespace) {
			return
		}
		cur = t.Ref()
	}
}

// checkRefs walks a type and verifies every Ref lands inside the
// typespace.
func (v *validator) checkRefs(where string, t sats.AlgebraicType) {
	switch t.Tag() {
	case sats.TagRef:
		if int(t.Ref()) >= len(v.def.Typespace) {
			v.fail(CodeDanglingRef, where, "ref %d outside typespace of %d entries", t.Ref(), len(v.def.Typespace))
		}
	case sats.TagSum:
		for _, variant := range t.Sum().Variants {
			v.checkRefs(where, variant.Type)
		}
	case sats.TagProduct:
		for _, el := range t.Product().Elements {
			v.checkRefs(where, el.Type)
		}
	case sats.TagArray:
		v.checkRefs(where, t.Elem())
	}
}

func (v *validator) exports() {
	seen := map[string]bool{}
	for _, e := range v.def.Exports {
		where := fmt.Sprintf("type export %q", e.Name)
		if err := ValidateIdentifier(e.Name); err != nil {
			v.fail(CodeBadIdent, where, "%v", err)
		}
		if seen[e.Name] {
			v.fail(CodeDuplicate, where, "exported twice")
		}
		seen[e.Name] = true
		if int(e.Ref) >= len(v.def.Typespace) {
			v.fail(CodeDanglingRef, where, "ref %d outside typespace", e.Ref)
		}
	}
}

func (v *validator) tables() {
	seen := map[string]bool{}
	for _, t := range v.def.Tables {
		where := fmt.Sprintf("table %q", t.Name)
		if err := ValidateIdentifier(t.Name); err != nil {
			v.fail(CodeBadIdent, where, "%v", err)
		}
		if seen[t.Name] {
			v.fail(CodeDuplicate, where, "defined twice")
		}
		seen[t.Name] = true

		if int(t.ProductRef) >= len(v.def.Typespace) {
			v.fail(CodeDanglingRef, where, "row ref %d outside typespace", t.ProductRef)
			continue
		}
		row := v.def.Typespace[t.ProductRef]
		if row.Tag() != sats.TagProduct {
			v.fail(CodeNotProduct, where, "row type is %s", row.Tag())
			continue
		}
		cols := row.Product().Elements

		if t.PrimaryKey != nil {
			v.checkCol(where, "primary key", *t.PrimaryKey, cols)
		}
		for _, c := range t.Unique {
			v.checkCol(where, "unique constraint", c, cols)
		}
		for _, c := range t.AutoInc {
			if !v.checkCol(where, "autoinc", c, cols) {
				continue
			}
			if !isInteger(v.resolve(cols[c].Type)) {
				v.fail(CodeBadAutoInc, where, "autoinc column %q is %s", cols[c].Name, cols[c].Type.Tag())
			}
		}
		for _, idx := range t.Indexes {
			for _, c := range idx.Cols {
				v.checkCol(where, "index", c, cols)
			}
		}
	}
}

func (v *validator) checkCol(where, what string, c uint16, cols []sats.ProductElement) bool {
	if int(c) >= len(cols) {
		v.fail(CodeColumnRange, where, "%s column %d outside row of %d columns", what, c, len(cols))
		return false
	}
	return true
}

// resolve follows refs to the underlying type. A cyclic chain stops
// at the first revisited ref; the typespace walk reports the cycle.
func (v *validator) resolve(t sats.AlgebraicType) sats.AlgebraicType {
	seen := map[uint32]bool{}
	for t.Tag() == sats.TagRef && int(t.Ref()) < len(v.def.Typespace) && !seen[t.Ref()] {
		seen[t.Ref()] = true
		t = v.def.Typespace[t.Ref()]
	}
	return t
}

func (v *validator) reducers() {
	seen := map[string]bool{}
	lifecycles := map[Lifecycle]string{}
	for _, r := range v.def.Reducers {
		where := fmt.Sprintf("reducer %q", r.Name)
		if err := ValidateIdentifier(r.Name); err != nil {
			v.fail(CodeBadIdent, where, "%v", err)
		}
		if seen[r.Name] {
			v.fail(CodeDuplicate, where, "defined twice")
		}
		seen[r.Name] = true

		for _, p := range r.Params.Elements {
			if err := ValidateIdentifier(p.Name); err != nil {
				v.fail(CodeBadIdent, where, "param: %v", err)
			}
			v.checkRefs(where, p.Type)
		}

		if r.Lifecycle != nil {
			if prev, ok := lifecycles[*r.Lifecycle]; ok {
				v.fail(CodeDupLifecycle, where, "%s already handled by %q", *r.Lifecycle, prev)
			}
			lifecycles[*r.Lifecycle] = r.Name
			if len(r.Params.Elements) > 0 {
				v.fail(CodeLifecycleArgs, where, "%s reducers take no arguments", *r.Lifecycle)
			}
		}
	}
}

func isInteger(t sats.AlgebraicType) bool {
	return t.Tag() >= sats.TagI8 && t.Tag() <= sats.TagU256
}
