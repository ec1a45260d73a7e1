package fieldmap

import (
	"reflect"
	"strconv"

	"github.com/AvengeMedia/dankquery/internal/analyzer"
	"github.com/AvengeMedia/dankquery/internal/convert"
	"github.com/AvengeMedia/dankquery/internal/errdefs"
	"github.com/AvengeMedia/dankquery/internal/numeric"
	"github.com/AvengeMedia/dankquery/internal/sorting"
	bleve "github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Meta is the resolved storage and indexing metadata of a descriptor.
type Meta struct {
	Role          Role
	Kind          convert.Kind
	Store         StoreMode
	Index         IndexMode
	TermVector    TermVectorMode
	Boost         float64
	CaseSensitive bool
	Operator      Operator
	NativeSort    bool
	Collection    bool
	Numeric       bool
	PrecisionStep int
	Converter     string
}

// FieldInfo is the read side of a descriptor used by query translation.
type FieldInfo interface {
	PropertyName() string
	FieldName() string
	Meta() Meta
	Analyzer() *analyzer.Analyzer
	SortField(desc bool) (search.SearchSort, error)
	ParseValue(s string) (any, error)
	QueryValue(v any) (string, error)
	Query(v any) (query.Query, error)
	RangeQuery(lower, upper any, lowerRange, upperRange numeric.RangeType) (query.Query, error)
}

// KeyInfo is a key descriptor. Constraint reports a fixed value every
// document of the type carries.
type KeyInfo interface {
	FieldInfo
	Constraint() (string, bool)
}

// Descriptor copies one property between mapped values and documents.
type Descriptor interface {
	FieldInfo
	CopyToDocument(obj any, doc Document) error
	CopyFromDocument(doc Document, hit Hit, obj any) error
	// FieldMapping is nil for descriptors with no index field.
	FieldMapping() *mapping.FieldMapping
}

// fieldDescriptor maps a property to a text field, or to a numeric field
// when meta.Numeric is set. Collections are copied element by element.
type fieldDescriptor struct {
	prop     string
	field    string
	meta     Meta
	acc      accessor
	conv     convert.Converter
	analyzer *analyzer.Analyzer

	sortSrc *sorting.Source
	sortErr error
}

func (d *fieldDescriptor) PropertyName() string         { return d.prop }
func (d *fieldDescriptor) FieldName() string            { return d.field }
func (d *fieldDescriptor) Meta() Meta                   { return d.meta }
func (d *fieldDescriptor) Analyzer() *analyzer.Analyzer { return d.analyzer }

func (d *fieldDescriptor) encode(v any) (any, error) {
	if d.meta.Numeric {
		return numeric.ToFloat64(v)
	}
	if d.conv == nil {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.String {
			return rv.String(), nil
		}
		return nil, errdefs.Newf(errdefs.ErrTypeArgument, "property %s expects a string, got %T", d.prop, v)
	}
	return d.conv.ConvertToString(v)
}

// idValue renders v for a document ID. Numeric keys are formatted from the
// value itself so that integers above 2^53 keep distinct IDs.
func (d *fieldDescriptor) idValue(v any) (string, error) {
	if !d.meta.Numeric {
		enc, err := d.encode(v)
		if err != nil {
			return "", err
		}
		return enc.(string), nil
	}
	switch x := numeric.Normalize(v).(type) {
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	}
	return "", errdefs.Newf(errdefs.ErrTypeUnsupportedKind, "key %s holds unsupported numeric type %T", d.prop, v)
}

func (d *fieldDescriptor) decode(raw any) (any, error) {
	if d.meta.Numeric {
		switch x := raw.(type) {
		case float64:
			return numeric.FromFloat64(x, d.meta.Kind)
		case string:
			return d.ParseValue(x)
		}
		return nil, errdefs.Newf(errdefs.ErrTypeArgument, "field %s holds %T, expected a number", d.field, raw)
	}

	s, ok := raw.(string)
	if !ok {
		s = stringify(raw)
	}
	if d.conv == nil {
		return s, nil
	}
	return d.conv.ConvertFromString(s)
}

func stringify(v any) string {
	switch x := v.(type) {
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return reflect.ValueOf(v).String()
}

func (d *fieldDescriptor) CopyToDocument(obj any, doc Document) error {
	values := d.acc.getAll(obj)
	if len(values) == 0 {
		return nil
	}

	encoded := make([]any, 0, len(values))
	for _, v := range values {
		e, err := d.encode(v)
		if err != nil {
			return errdefs.NewCustomError(errdefs.ErrTypeArgument, "cannot convert property "+d.prop, err)
		}
		encoded = append(encoded, e)
	}

	if d.meta.Collection {
		doc[d.field] = encoded
	} else {
		doc[d.field] = encoded[0]
	}
	return nil
}

func (d *fieldDescriptor) CopyFromDocument(doc Document, hit Hit, obj any) error {
	raw := doc.Values(d.field)
	if raw == nil {
		return nil
	}

	decoded := make([]any, 0, len(raw))
	for _, r := range raw {
		v, err := d.decode(r)
		if err != nil {
			return errdefs.NewCustomError(errdefs.ErrTypeArgument, "cannot convert field "+d.field, err)
		}
		decoded = append(decoded, v)
	}
	return d.acc.setAll(obj, decoded)
}

func (d *fieldDescriptor) FieldMapping() *mapping.FieldMapping {
	var fm *mapping.FieldMapping
	if d.meta.Numeric {
		fm = bleve.NewNumericFieldMapping()
	} else {
		fm = bleve.NewTextFieldMapping()
		fm.Analyzer = d.analyzer.Name()
	}
	fm.Store = d.meta.Store == StoreYes
	fm.Index = d.meta.Index != IndexNotIndexed
	fm.IncludeInAll = fm.Index
	fm.DocValues = fm.Index
	fm.IncludeTermVectors = fm.Index && d.meta.TermVector != TermVectorNo
	return fm
}

func (d *fieldDescriptor) SortField(desc bool) (search.SearchSort, error) {
	switch {
	case d.meta.Numeric:
		return &search.SortField{Field: d.field, Desc: desc, Type: search.SortFieldAsNumber}, nil
	case d.meta.NativeSort || d.conv == nil:
		return &search.SortField{Field: d.field, Desc: desc, Type: search.SortFieldAsString}, nil
	case d.sortErr != nil:
		return nil, d.sortErr
	}
	return d.sortSrc.Comparator(d.field, desc), nil
}

func (d *fieldDescriptor) ParseValue(s string) (any, error) {
	if d.meta.Numeric {
		if d.meta.Kind.IsTime() {
			ts, err := parseTime(s)
			if err != nil {
				return nil, errdefs.NewCustomError(errdefs.ErrTypeArgument, "property "+d.prop, err)
			}
			if d.meta.Kind == convert.KindTimeOffset {
				return convert.NewTimeOffset(ts), nil
			}
			return ts, nil
		}
		tc, err := convert.NewTextConverter(d.meta.Kind.Type())
		if err != nil {
			return nil, err
		}
		v, err := tc.ConvertFromString(s)
		if err != nil {
			return nil, errdefs.NewCustomError(errdefs.ErrTypeArgument, "property "+d.prop, err)
		}
		return v, nil
	}
	if d.conv == nil {
		return s, nil
	}
	v, err := d.conv.ConvertFromString(s)
	if err != nil {
		return nil, errdefs.NewCustomError(errdefs.ErrTypeArgument, "property "+d.prop, err)
	}
	return v, nil
}

// QueryValue converts v into the term stored in the index. Values of
// single-token analyzers are passed through the field analyzer.
func (d *fieldDescriptor) QueryValue(v any) (string, error) {
	if d.meta.Numeric {
		f, err := numeric.ToFloat64(v)
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}

	var s string
	if str, ok := v.(string); ok && d.conv == nil {
		s = str
	} else {
		e, err := d.encode(v)
		if err != nil {
			return "", err
		}
		s = e.(string)
	}

	if terms := d.analyzer.Terms(s); len(terms) == 1 {
		return terms[0], nil
	}
	return s, nil
}

func (d *fieldDescriptor) Query(v any) (query.Query, error) {
	if d.meta.Index == IndexNotIndexed {
		return nil, errdefs.Newf(errdefs.ErrTypeArgument, "property %s is not indexed", d.prop)
	}

	if d.meta.Numeric {
		f, err := numeric.ToFloat64(v)
		if err != nil {
			return nil, err
		}
		incl := true
		q := bleve.NewNumericRangeInclusiveQuery(&f, &f, &incl, &incl)
		q.SetField(d.field)
		q.SetBoost(d.meta.Boost)
		return q, nil
	}

	if d.meta.Index == IndexAnalyzed && !d.singleToken() {
		text, ok := v.(string)
		if !ok || d.conv != nil {
			e, err := d.encode(v)
			if err != nil {
				return nil, err
			}
			text = e.(string)
		}
		q := bleve.NewMatchQuery(text)
		q.SetField(d.field)
		q.Analyzer = d.analyzer.Name()
		q.SetBoost(d.meta.Boost)
		if d.meta.Operator == OperatorAnd {
			q.SetOperator(query.MatchQueryOperatorAnd)
		} else {
			q.SetOperator(query.MatchQueryOperatorOr)
		}
		return q, nil
	}

	term, err := d.QueryValue(v)
	if err != nil {
		return nil, err
	}
	q := bleve.NewTermQuery(term)
	q.SetField(d.field)
	q.SetBoost(d.meta.Boost)
	return q, nil
}

func (d *fieldDescriptor) singleToken() bool {
	switch d.analyzer.Name() {
	case analyzer.KeywordName, analyzer.CaseInsensitiveKeywordName:
		return true
	}
	return false
}

func (d *fieldDescriptor) RangeQuery(lower, upper any, lowerRange, upperRange numeric.RangeType) (query.Query, error) {
	if d.meta.Numeric {
		return numeric.RangeQuery(d.field, lower, upper, lowerRange, upperRange)
	}
	if lower == nil && upper == nil {
		return nil, errdefs.Newf(errdefs.ErrTypeArgument, "range on %s requires at least one bound", d.field)
	}

	var lo, hi string
	if lower != nil {
		s, err := d.QueryValue(lower)
		if err != nil {
			return nil, err
		}
		lo = s
	}
	if upper != nil {
		s, err := d.QueryValue(upper)
		if err != nil {
			return nil, err
		}
		hi = s
	}
	loIncl := lowerRange == numeric.Inclusive
	hiIncl := upperRange == numeric.Inclusive
	q := bleve.NewTermRangeInclusiveQuery(lo, hi, &loIncl, &hiIncl)
	q.SetField(d.field)
	q.SetBoost(d.meta.Boost)
	return q, nil
}

type keyDescriptor struct {
	*fieldDescriptor
}

func (k *keyDescriptor) Constraint() (string, bool) {
	return "", false
}

// fixedKeyDescriptor writes a constant into every document.
type fixedKeyDescriptor struct {
	*fieldDescriptor
	value string
}

func (k *fixedKeyDescriptor) Constraint() (string, bool) {
	return k.value, true
}

func (k *fixedKeyDescriptor) CopyToDocument(obj any, doc Document) error {
	doc[k.field] = k.value
	return nil
}

func (k *fixedKeyDescriptor) CopyFromDocument(doc Document, hit Hit, obj any) error {
	return nil
}

// scoreDescriptor copies the hit score onto a property and never writes to the index.
type scoreDescriptor struct {
	prop string
	acc  accessor
}

func (s *scoreDescriptor) PropertyName() string { return s.prop }
func (s *scoreDescriptor) FieldName() string    { return "" }

func (s *scoreDescriptor) Meta() Meta {
	return Meta{Role: RoleScore, Kind: convert.KindOf(s.acc.valueType()), Store: StoreNo, Index: IndexNotIndexed, Boost: 1}
}

func (s *scoreDescriptor) Analyzer() *analyzer.Analyzer {
	return analyzer.Keyword()
}

func (s *scoreDescriptor) SortField(desc bool) (search.SearchSort, error) {
	return &search.SortScore{Desc: desc}, nil
}

func (s *scoreDescriptor) ParseValue(v string) (any, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, errdefs.NewCustomError(errdefs.ErrTypeArgument, "score", err)
	}
	return f, nil
}

func (s *scoreDescriptor) unsupported(op string) error {
	return errdefs.Newf(errdefs.ErrTypeUnsupportedOperation, "%s is not supported on score property %s", op, s.prop)
}

func (s *scoreDescriptor) QueryValue(v any) (string, error) { return "", s.unsupported("query value") }
func (s *scoreDescriptor) Query(v any) (query.Query, error) { return nil, s.unsupported("query") }

func (s *scoreDescriptor) RangeQuery(lower, upper any, lowerRange, upperRange numeric.RangeType) (query.Query, error) {
	return nil, s.unsupported("range query")
}

func (s *scoreDescriptor) CopyToDocument(obj any, doc Document) error {
	return nil
}

func (s *scoreDescriptor) CopyFromDocument(doc Document, hit Hit, obj any) error {
	return s.acc.set(obj, hit.Score)
}

func (s *scoreDescriptor) FieldMapping() *mapping.FieldMapping { return nil }

// boostDescriptor stands for a document-level boost, which bleve does not support.
type boostDescriptor struct {
	prop string
	acc  accessor
}

func (b *boostDescriptor) PropertyName() string { return b.prop }
func (b *boostDescriptor) FieldName() string    { return "" }

func (b *boostDescriptor) Meta() Meta {
	return Meta{Role: RoleBoost, Kind: convert.KindOf(b.acc.valueType()), Store: StoreNo, Index: IndexNotIndexed, Boost: 1}
}

func (b *boostDescriptor) Analyzer() *analyzer.Analyzer {
	return analyzer.Keyword()
}

func (b *boostDescriptor) unsupported(op string) error {
	return errdefs.Newf(errdefs.ErrTypeUnsupportedOperation, "%s is not supported on document boost property %s", op, b.prop)
}

func (b *boostDescriptor) SortField(desc bool) (search.SearchSort, error) {
	return nil, b.unsupported("sorting")
}

func (b *boostDescriptor) ParseValue(s string) (any, error) { return nil, b.unsupported("parsing") }
func (b *boostDescriptor) QueryValue(v any) (string, error) { return "", b.unsupported("query value") }
func (b *boostDescriptor) Query(v any) (query.Query, error) { return nil, b.unsupported("query") }

func (b *boostDescriptor) RangeQuery(lower, upper any, lowerRange, upperRange numeric.RangeType) (query.Query, error) {
	return nil, b.unsupported("range query")
}

func (b *boostDescriptor) CopyToDocument(obj any, doc Document) error {
	return b.unsupported("writing")
}

func (b *boostDescriptor) CopyFromDocument(doc Document, hit Hit, obj any) error {
	return b.unsupported("reading")
}

func (b *boostDescriptor) FieldMapping() *mapping.FieldMapping { return nil }
