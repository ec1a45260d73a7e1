// Package schema declares record mappings in TOML, YAML or JSON files and
// turns them into fieldmap class maps.
package schema

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/AvengeMedia/dankquery/internal/convert"
	"github.com/AvengeMedia/dankquery/internal/errdefs"
	"github.com/AvengeMedia/dankquery/internal/fieldmap"
	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type Schema struct {
	Types []Type `toml:"types" yaml:"types" json:"types"`
}

type Type struct {
	Name   string     `toml:"name" yaml:"name" json:"name"`
	Fields []Field    `toml:"fields" yaml:"fields" json:"fields"`
	Keys   []FixedKey `toml:"keys,omitempty" yaml:"keys,omitempty" json:"keys,omitempty"`
}

// FixedKey is a constant key field written into every document of a type.
type FixedKey struct {
	Field string `toml:"field" yaml:"field" json:"field"`
	Value string `toml:"value" yaml:"value" json:"value"`
}

// Field describes one record property. Empty options keep the mapping
// defaults.
type Field struct {
	Name          string   `toml:"name" yaml:"name" json:"name"`
	Kind          string   `toml:"kind" yaml:"kind" json:"kind"`
	Collection    bool     `toml:"collection,omitempty" yaml:"collection,omitempty" json:"collection,omitempty"`
	Key           bool     `toml:"key,omitempty" yaml:"key,omitempty" json:"key,omitempty"`
	Score         bool     `toml:"score,omitempty" yaml:"score,omitempty" json:"score,omitempty"`
	Boost         bool     `toml:"boost,omitempty" yaml:"boost,omitempty" json:"boost,omitempty"`
	Field         string   `toml:"field,omitempty" yaml:"field,omitempty" json:"field,omitempty"`
	Store         *bool    `toml:"store,omitempty" yaml:"store,omitempty" json:"store,omitempty"`
	Index         string   `toml:"index,omitempty" yaml:"index,omitempty" json:"index,omitempty"`
	TermVector    string   `toml:"term_vector,omitempty" yaml:"term_vector,omitempty" json:"term_vector,omitempty"`
	FieldBoost    *float64 `toml:"field_boost,omitempty" yaml:"field_boost,omitempty" json:"field_boost,omitempty"`
	CaseSensitive bool     `toml:"case_sensitive,omitempty" yaml:"case_sensitive,omitempty" json:"case_sensitive,omitempty"`
	Analyzer      string   `toml:"analyzer,omitempty" yaml:"analyzer,omitempty" json:"analyzer,omitempty"`
	Format        string   `toml:"format,omitempty" yaml:"format,omitempty" json:"format,omitempty"`
	Operator      string   `toml:"operator,omitempty" yaml:"operator,omitempty" json:"operator,omitempty"`
	NativeSort    bool     `toml:"native_sort,omitempty" yaml:"native_sort,omitempty" json:"native_sort,omitempty"`
	Numeric       bool     `toml:"numeric,omitempty" yaml:"numeric,omitempty" json:"numeric,omitempty"`
	PrecisionStep int      `toml:"precision_step,omitempty" yaml:"precision_step,omitempty" json:"precision_step,omitempty"`
}

// Load reads a schema file, choosing the decoder by extension.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errdefs.NewCustomError(errdefs.ErrTypeInvalidConfig, path, err)
	}
	s, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, errdefs.NewCustomError(errdefs.ErrTypeInvalidConfig, path, err)
	}
	return s, nil
}

// Parse decodes data in the format named by ext (".toml", ".yaml", ".yml" or ".json").
func Parse(data []byte, ext string) (*Schema, error) {
	var s Schema
	var err error

	switch strings.ToLower(ext) {
	case ".toml":
		_, err = toml.Decode(string(data), &s)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &s)
	case ".json":
		err = json.Unmarshal(data, &s)
	default:
		return nil, errdefs.Newf(errdefs.ErrTypeInvalidConfig, "unsupported schema format %q", ext)
	}
	if err != nil {
		return nil, errdefs.NewCustomError(errdefs.ErrTypeInvalidConfig, "decode schema", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Schema) Validate() error {
	seen := make(map[string]bool, len(s.Types))
	for _, t := range s.Types {
		if t.Name == "" {
			return errdefs.Newf(errdefs.ErrTypeInvalidConfig, "schema type without a name")
		}
		if seen[t.Name] {
			return errdefs.Newf(errdefs.ErrTypeInvalidConfig, "type %s declared twice", t.Name)
		}
		seen[t.Name] = true
		if len(t.Fields) == 0 {
			return errdefs.Newf(errdefs.ErrTypeInvalidConfig, "type %s has no fields", t.Name)
		}
		for _, f := range t.Fields {
			if f.Name == "" {
				return errdefs.Newf(errdefs.ErrTypeInvalidConfig, "type %s has a field without a name", t.Name)
			}
			if _, ok := convert.ParseKind(f.Kind); !ok {
				return errdefs.Newf(errdefs.ErrTypeInvalidConfig, "field %s.%s has unknown kind %q", t.Name, f.Name, f.Kind)
			}
			roles := 0
			for _, r := range []bool{f.Key, f.Score, f.Boost} {
				if r {
					roles++
				}
			}
			if roles > 1 {
				return errdefs.Newf(errdefs.ErrTypeInvalidConfig, "field %s.%s has more than one role", t.Name, f.Name)
			}
		}
		for _, k := range t.Keys {
			if k.Field == "" || k.Value == "" {
				return errdefs.Newf(errdefs.ErrTypeInvalidConfig, "type %s has an incomplete fixed key", t.Name)
			}
		}
	}
	return nil
}

func (s *Schema) Type(name string) (Type, bool) {
	for _, t := range s.Types {
		if t.Name == name {
			return t, true
		}
	}
	return Type{}, false
}

// ClassMap declares t as a record mapping.
func (t Type) ClassMap() (*fieldmap.ClassMap[fieldmap.Record], error) {
	m := fieldmap.NewClassMap[fieldmap.Record](t.Name)
	for _, f := range t.Fields {
		kind, ok := convert.ParseKind(f.Kind)
		if !ok {
			return nil, errdefs.Newf(errdefs.ErrTypeInvalidConfig, "field %s.%s has unknown kind %q", t.Name, f.Name, f.Kind)
		}

		var pm *fieldmap.PropertyMap
		if f.Collection {
			pm = fieldmap.RecordCollection(m, f.Name, kind)
		} else {
			pm = fieldmap.RecordProperty(m, f.Name, kind)
		}
		if err := f.apply(pm); err != nil {
			return nil, errdefs.NewCustomError(errdefs.ErrTypeInvalidConfig, t.Name+"."+f.Name, err)
		}
	}
	for _, k := range t.Keys {
		m.DocumentKey(k.Field, k.Value)
	}
	return m, nil
}

func (f Field) apply(pm *fieldmap.PropertyMap) error {
	switch {
	case f.Score:
		pm.AsScore()
		return nil
	case f.Boost:
		pm.AsBoost()
		return nil
	case f.Key:
		pm.AsKey()
	}

	if f.Field != "" {
		pm.ToField(f.Field)
	}
	if f.Store != nil && !*f.Store {
		pm.NotStored()
	}
	if f.Index != "" {
		mode, err := fieldmap.ParseIndexMode(f.Index)
		if err != nil {
			return err
		}
		pm.Index(mode)
	}
	if f.TermVector != "" {
		mode, err := fieldmap.ParseTermVectorMode(f.TermVector)
		if err != nil {
			return err
		}
		pm.WithTermVector(mode)
	}
	if f.FieldBoost != nil {
		pm.Boost(*f.FieldBoost)
	}
	if f.CaseSensitive {
		pm.CaseSensitive()
	}
	if f.Analyzer != "" {
		pm.AnalyzeWith(f.Analyzer)
	}
	if f.Format != "" {
		pm.Format(f.Format)
	}
	if f.Operator != "" {
		op, err := fieldmap.ParseOperator(f.Operator)
		if err != nil {
			return err
		}
		pm.DefaultOperator(op)
	}
	if f.NativeSort {
		pm.NativeSort()
	}
	if f.PrecisionStep > 0 {
		pm.WithPrecisionStep(f.PrecisionStep)
	} else if f.Numeric {
		pm.AsNumericField()
	}
	return nil
}

// Build builds a record table for every declared type.
func (s *Schema) Build(reg *fieldmap.Registry) ([]*fieldmap.Table[fieldmap.Record], error) {
	out := make([]*fieldmap.Table[fieldmap.Record], 0, len(s.Types))
	for _, t := range s.Types {
		m, err := t.ClassMap()
		if err != nil {
			return nil, err
		}
		tbl, err := fieldmap.Build(reg, m)
		if err != nil {
			return nil, err
		}
		out = append(out, tbl)
	}
	return out, nil
}
