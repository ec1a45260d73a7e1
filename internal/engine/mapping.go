package engine

import (
	"time"

	"github.com/AvengeMedia/dankquery/internal/fieldmap"
)

type FieldInfo struct {
	Property      string  `json:"property"`
	Field         string  `json:"field"`
	Role          string  `json:"role"`
	Kind          string  `json:"kind"`
	Collection    bool    `json:"collection,omitempty"`
	Store         string  `json:"store"`
	Index         string  `json:"index"`
	TermVector    string  `json:"term_vector"`
	Boost         float64 `json:"boost"`
	CaseSensitive bool    `json:"case_sensitive"`
	Operator      string  `json:"operator"`
	NativeSort    bool    `json:"native_sort,omitempty"`
	Numeric       bool    `json:"numeric,omitempty"`
	PrecisionStep int     `json:"precision_step,omitempty"`
	Converter     string  `json:"converter,omitempty"`
	Analyzer      string  `json:"analyzer,omitempty"`
}

// Indexed is the catalog entry the index was last written with.
type Indexed struct {
	Version     string    `json:"version"`
	Fingerprint string    `json:"fingerprint"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type TypeInfo struct {
	Name        string      `json:"name"`
	Version     string      `json:"version"`
	Fingerprint string      `json:"fingerprint"`
	Keys        []string    `json:"keys,omitempty"`
	Fields      []FieldInfo `json:"fields"`
	Indexed     *Indexed    `json:"indexed,omitempty"`
}

// Mapping describes the resolved field mapping of typeName.
func (e *Engine) Mapping(typeName string) (*TypeInfo, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	t, err := e.table(typeName)
	if err != nil {
		return nil, err
	}

	info := &TypeInfo{
		Name:        t.TypeName(),
		Version:     t.Version(),
		Fingerprint: t.Fingerprint(),
	}
	for _, k := range t.Keys() {
		info.Keys = append(info.Keys, k.FieldName())
	}
	for _, d := range t.Descriptors() {
		info.Fields = append(info.Fields, describe(d))
	}

	catalog, err := e.prov.Catalog()
	if err != nil {
		return nil, err
	}
	if meta, ok := catalog[typeName]; ok {
		info.Indexed = &Indexed{Version: meta.Version, Fingerprint: meta.Fingerprint, UpdatedAt: meta.UpdatedAt}
	}
	return info, nil
}

func describe(d fieldmap.Descriptor) FieldInfo {
	m := d.Meta()
	fi := FieldInfo{
		Property:      d.PropertyName(),
		Field:         d.FieldName(),
		Role:          m.Role.String(),
		Kind:          m.Kind.String(),
		Collection:    m.Collection,
		Store:         m.Store.String(),
		Index:         m.Index.String(),
		TermVector:    m.TermVector.String(),
		Boost:         m.Boost,
		CaseSensitive: m.CaseSensitive,
		Operator:      m.Operator.String(),
		NativeSort:    m.NativeSort,
		Numeric:       m.Numeric,
		PrecisionStep: m.PrecisionStep,
		Converter:     m.Converter,
	}
	if a := d.Analyzer(); a != nil {
		fi.Analyzer = a.Name()
	}
	return fi
}
