package cli

import (
	"github.com/tesseradb/modkit/internal/registry"
	"github.com/tesseradb/modkit/sats"
)

// JSON rendering of a module definition, the shape `describe --format
// json` emits and `lint` checks against the schema. Stable: clients
// and CI pipelines parse it.

type jsonDef struct {
	Typespace []jsonType    `json:"typespace"`
	Exports   []jsonExport  `json:"exports,omitempty"`
	Tables    []jsonTable   `json:"tables,omitempty"`
	Reducers  []jsonReducer `json:"reducers,omitempty"`
}

type jsonExport struct {
	Name string `json:"name"`
	Ref  uint32 `json:"ref"`
}

type jsonType struct {
	Kind     string      `json:"kind"`
	Ref      *uint32     `json:"ref,omitempty"`
	Elem     *jsonType   `json:"elem,omitempty"`
	Variants []jsonField `json:"variants,omitempty"`
	Elements []jsonField `json:"elements,omitempty"`
}

type jsonField struct {
	Name string   `json:"name,omitempty"`
	Type jsonType `json:"type"`
}

type jsonTable struct {
	Name       string     `json:"name"`
	Ref        uint32     `json:"ref"`
	PrimaryKey *uint16    `json:"primary_key,omitempty"`
	Unique     []uint16   `json:"unique,omitempty"`
	AutoInc    []uint16   `json:"auto_inc,omitempty"`
	Indexes    [][]uint16 `json:"indexes,omitempty"`
	Access     string     `json:"access"`
}

type jsonReducer struct {
	Name      string      `json:"name"`
	Params    []jsonField `json:"params"`
	Lifecycle string      `json:"lifecycle,omitempty"`
}

func defToJSON(def *registry.RawModuleDef) jsonDef {
	out := jsonDef{Typespace: make([]jsonType, len(def.Typespace))}
	for i, t := range def.Typespace {
		out.Typespace[i] = typeToJSON(t)
	}
	for _, e := range def.Exports {
		out.Exports = append(out.Exports, jsonExport{Name: e.Name, Ref: e.Ref})
	}
	for _, t := range def.Tables {
		jt := jsonTable{
			Name:       t.Name,
			Ref:        t.ProductRef,
			PrimaryKey: t.PrimaryKey,
			Unique:     t.Unique,
			AutoInc:    t.AutoInc,
			Access:     t.Access.String(),
		}
		for _, idx := range t.Indexes {
			jt.Indexes = append(jt.Indexes, idx.Cols)
		}
		out.Tables = append(out.Tables, jt)
	}
	for _, r := range def.Reducers {
		jr := jsonReducer{Name: r.Name, Params: []jsonField{}}
		for _, p := range r.Params.Elements {
			jr.Params = append(jr.Params, jsonField{Name: p.Name, Type: typeToJSON(p.Type)})
		}
		if r.Lifecycle != nil {
			jr.Lifecycle = r.Lifecycle.String()
		}
		out.Reducers = append(out.Reducers, jr)
	}
	return out
}

func typeToJSON(t sats.AlgebraicType) jsonType {
	out := jsonType{Kind: t.Tag().String()}
	switch t.Tag() {
	case sats.TagRef:
		ref := t.Ref()
		out.Ref = &ref
	case sats.TagArray:
		elem := typeToJSON(t.Elem())
		out.Elem = &elem
	case sats.TagSum:
		for _, v := range t.Sum().Variants {
			out.Variants = append(out.Variants, jsonField{Name: v.Name, Type: typeToJSON(v.Type)})
		}
	case sats.TagProduct:
		out.Elements = []jsonField{}
		for _, el := range t.Product().Elements {
			out.Elements = append(out.Elements, jsonField{Name: el.Name, Type: typeToJSON(el.Type)})
		}
	}
	return out
}
