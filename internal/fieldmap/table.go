package fieldmap

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/AvengeMedia/dankquery/internal/analyzer"
	"github.com/AvengeMedia/dankquery/internal/errdefs"
	bleve "github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"
)

// TypeMapping is the type-erased view of a Table used by the provider,
// the metastore and the HTTP layer.
type TypeMapping interface {
	TypeName() string
	Version() string
	Fingerprint() string
	Fields() []string
	Descriptors() []Descriptor
	GetMappingInfo(prop string) (FieldInfo, error)
	KeyProperties() []string
	Keys() []KeyInfo
	Analyzer() *analyzer.PerField
	DocumentMapping() *mapping.DocumentMapping
}

// Table is the immutable mapping of one type.
type Table[T any] struct {
	typeName    string
	version     string
	descs       []Descriptor
	byProp      map[string]Descriptor
	keys        []KeyInfo
	analyzer    *analyzer.PerField
	fingerprint string
}

func (t *Table[T]) TypeName() string { return t.typeName }
func (t *Table[T]) Version() string  { return t.version }

// Fingerprint is a hex sha256 over the type name, version and every
// descriptor's metadata.
func (t *Table[T]) Fingerprint() string { return t.fingerprint }

// Fields returns the mapped property names in declaration order.
func (t *Table[T]) Fields() []string {
	out := make([]string, 0, len(t.descs))
	for _, d := range t.descs {
		out = append(out, d.PropertyName())
	}
	return out
}

func (t *Table[T]) Descriptors() []Descriptor {
	return append([]Descriptor(nil), t.descs...)
}

func (t *Table[T]) GetMappingInfo(prop string) (FieldInfo, error) {
	d, ok := t.byProp[prop]
	if !ok {
		return nil, errdefs.Newf(errdefs.ErrTypeArgument, "type %s has no mapped property %s", t.typeName, prop)
	}
	return d, nil
}

// KeyProperties names every key, fixed keys included.
func (t *Table[T]) KeyProperties() []string {
	out := make([]string, 0, len(t.keys))
	for _, k := range t.keys {
		out = append(out, k.PropertyName())
	}
	return out
}

func (t *Table[T]) Keys() []KeyInfo {
	return append([]KeyInfo(nil), t.keys...)
}

func (t *Table[T]) Analyzer() *analyzer.PerField {
	return t.analyzer
}

// DocumentMapping returns a static bleve mapping holding one field mapping
// per indexed or stored descriptor, plus the unstored type name.
func (t *Table[T]) DocumentMapping() *mapping.DocumentMapping {
	dm := bleve.NewDocumentStaticMapping()
	dm.DefaultAnalyzer = t.analyzer.Default().Name()

	tf := bleve.NewKeywordFieldMapping()
	tf.Store = false
	tf.IncludeInAll = false
	tf.DocValues = false
	dm.AddFieldMappingsAt(TypeField, tf)

	for _, d := range t.descs {
		fm := d.FieldMapping()
		if fm == nil {
			continue
		}
		dm.AddFieldMappingsAt(d.FieldName(), fm)
	}
	return dm
}

// TypeQuery matches every document written for this type, whatever the
// isolation settings.
func (t *Table[T]) TypeQuery() *query.TermQuery {
	q := bleve.NewTermQuery(t.typeName)
	q.SetField(TypeField)
	return q
}

// ToDocument copies every descriptor of item into a new document tagged
// with the type name.
func (t *Table[T]) ToDocument(item *T) (Document, error) {
	doc := Document{TypeField: t.typeName}
	for _, d := range t.descs {
		if err := d.CopyToDocument(item, doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// ToObject fills item from a stored document.
func (t *Table[T]) ToObject(doc Document, hit Hit, item *T) error {
	for _, d := range t.descs {
		if err := d.CopyFromDocument(doc, hit, item); err != nil {
			return err
		}
	}
	return nil
}

// DocumentID derives the bleve document ID from the key property values.
// Types without property keys get a random ID.
func (t *Table[T]) DocumentID(item *T) (string, error) {
	parts := []string{t.typeName}
	for _, k := range t.keys {
		kd, ok := k.(*keyDescriptor)
		if !ok {
			continue
		}
		v, ok := kd.acc.get(item)
		if !ok {
			return "", errdefs.Newf(errdefs.ErrTypeArgument, "key %s of %s is not set", kd.prop, t.typeName)
		}
		part, err := kd.idValue(v)
		if err != nil {
			return "", err
		}
		parts = append(parts, url.PathEscape(part))
	}
	if len(parts) == 1 {
		parts = append(parts, uuid.NewString())
	}
	return strings.Join(parts, "/"), nil
}

func (t *Table[T]) computeFingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00", t.typeName, t.version)
	for _, d := range t.descs {
		m := d.Meta()
		fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s|%s|%g|%t|%s|%t|%t|%t|%d|%s|%s\x00",
			d.PropertyName(), d.FieldName(), m.Role, m.Kind, m.Store, m.Index, m.TermVector,
			m.Boost, m.CaseSensitive, m.Operator, m.NativeSort, m.Collection, m.Numeric,
			m.PrecisionStep, m.Converter, d.Analyzer().Name())
	}
	for _, k := range t.keys {
		if v, ok := k.Constraint(); ok {
			fmt.Fprintf(h, "key:%s=%s\x00", k.FieldName(), v)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
