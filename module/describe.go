package module

import (
	"errors"
	"fmt"
	"io"

	"github.com/tesseradb/modkit/bsatn"
	"github.com/tesseradb/modkit/internal/registry"
)

// DescribeVersion is the ABI version byte preceding the serialized
// module definition.
const DescribeVersion byte = 1

// RawDef assembles the raw module definition without validating it.
// Tooling that reports validation problems needs the def either way.
func (r *Registry) RawDef() *registry.RawModuleDef {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def := &registry.RawModuleDef{
		Typespace: r.ts.Types(),
	}
	for i, name := range r.ts.Names() {
		if name == "" {
			continue
		}
		def.Exports = append(def.Exports, registry.TypeExport{Name: name, Ref: uint32(i)})
	}
	for _, t := range r.tables {
		def.Tables = append(def.Tables, t.def)
	}
	for _, rd := range r.reducers {
		def.Reducers = append(def.Reducers, registry.ReducerDef{
			Name:      rd.name,
			Params:    rd.params,
			Lifecycle: rd.lifecycle,
		})
	}
	return def
}

// ModuleDef assembles and validates the raw module definition. The
// result is deterministic for a fixed registration order.
func (r *Registry) ModuleDef() (*registry.RawModuleDef, error) {
	def := r.RawDef()
	if errs := registry.Validate(def); len(errs) > 0 {
		return nil, fmt.Errorf("module: definition invalid: %w", errors.Join(errs...))
	}
	return def, nil
}

// Describe writes the version byte followed by the BSATN module
// definition, the exact payload the host reads at publish time.
func (r *Registry) Describe(w io.Writer) error {
	def, err := r.ModuleDef()
	if err != nil {
		return err
	}
	bw := bsatn.NewWriter()
	bw.WriteU8(DescribeVersion)
	if err := def.MarshalBSATN(bw); err != nil {
		return err
	}
	_, err = w.Write(bw.Bytes())
	return err
}

// Describe writes the process-global registry's definition.
func Describe(w io.Writer) error {
	return Default().Describe(w)
}
