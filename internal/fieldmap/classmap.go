package fieldmap

import (
	"github.com/AvengeMedia/dankquery/internal/convert"
)

type fixedKey struct {
	field string
	value string
}

// ClassMap declares how values of T map onto index fields.
type ClassMap[T any] struct {
	typeName  string
	props     []*PropertyMap
	fixedKeys []fixedKey
}

func NewClassMap[T any](typeName string) *ClassMap[T] {
	return &ClassMap[T]{typeName: typeName}
}

func (m *ClassMap[T]) TypeName() string {
	return m.typeName
}

// DocumentKey adds a key field holding a constant value on every document of T.
func (m *ClassMap[T]) DocumentKey(field, value string) *ClassMap[T] {
	m.fixedKeys = append(m.fixedKeys, fixedKey{field: field, value: value})
	return m
}

func (m *ClassMap[T]) add(pm *PropertyMap) *PropertyMap {
	m.props = append(m.props, pm)
	return pm
}

// Property maps a single-valued property. Pointer-typed properties are
// nullable and map their element type.
func Property[T, F any](m *ClassMap[T], name string, ptr func(*T) *F) *PropertyMap {
	return m.add(&PropertyMap{name: name, acc: newFieldAccessor(ptr)})
}

// Collection maps a slice property onto one multi-valued field.
func Collection[T, E any](m *ClassMap[T], name string, ptr func(*T) *[]E) *PropertyMap {
	return m.add(&PropertyMap{name: name, acc: newSliceAccessor(ptr)})
}

// Key maps a property that identifies documents of T.
func Key[T, F any](m *ClassMap[T], name string, ptr func(*T) *F) *PropertyMap {
	return Property(m, name, ptr).AsKey()
}

// Score maps a property that receives the relevance score of each hit.
func Score[T any, F float32 | float64](m *ClassMap[T], name string, ptr func(*T) *F) *PropertyMap {
	return Property(m, name, ptr).AsScore()
}

// DocumentBoost maps a document-level boost property.
func DocumentBoost[T any, F float32 | float64](m *ClassMap[T], name string, ptr func(*T) *F) *PropertyMap {
	return Property(m, name, ptr).AsBoost()
}

// RecordProperty maps key name of a Record holding values of kind.
func RecordProperty(m *ClassMap[Record], name string, kind convert.Kind) *PropertyMap {
	return m.add(&PropertyMap{name: name, acc: &recordAccessor{name: name, elem: kind.Type()}, kind: kind})
}

// RecordCollection maps key name of a Record holding a list of kind values.
func RecordCollection(m *ClassMap[Record], name string, kind convert.Kind) *PropertyMap {
	return m.add(&PropertyMap{name: name, acc: &recordAccessor{name: name, elem: kind.Type(), coll: true}, kind: kind})
}

// PropertyMap holds the mapping metadata of one property. Every option
// marks the property as carrying explicit metadata.
type PropertyMap struct {
	name string
	acc  accessor
	kind convert.Kind
	role Role

	touched       bool
	field         string
	store         *StoreMode
	index         *IndexMode
	termVector    *TermVectorMode
	boost         *float64
	caseSensitive bool
	analyzerName  string
	converter     convert.Converter
	format        string
	operator      *Operator
	nativeSort    bool
	numeric       bool
	precisionStep int
}

func (p *PropertyMap) Name() string {
	return p.name
}

func (p *PropertyMap) mark() *PropertyMap {
	p.touched = true
	return p
}

func (p *PropertyMap) AsKey() *PropertyMap {
	p.role = RoleKey
	return p.mark()
}

func (p *PropertyMap) AsScore() *PropertyMap {
	p.role = RoleScore
	return p
}

func (p *PropertyMap) AsBoost() *PropertyMap {
	p.role = RoleBoost
	return p
}

// ToField overrides the index field name.
func (p *PropertyMap) ToField(name string) *PropertyMap {
	p.field = name
	return p.mark()
}

func (p *PropertyMap) Store(mode StoreMode) *PropertyMap {
	p.store = &mode
	return p.mark()
}

func (p *PropertyMap) NotStored() *PropertyMap {
	return p.Store(StoreNo)
}

func (p *PropertyMap) Index(mode IndexMode) *PropertyMap {
	p.index = &mode
	return p.mark()
}

func (p *PropertyMap) NotAnalyzed() *PropertyMap {
	return p.Index(IndexNotAnalyzed)
}

func (p *PropertyMap) NotAnalyzedNoNorms() *PropertyMap {
	return p.Index(IndexNotAnalyzedNoNorms)
}

func (p *PropertyMap) NotIndexed() *PropertyMap {
	return p.Index(IndexNotIndexed)
}

func (p *PropertyMap) WithTermVector(mode TermVectorMode) *PropertyMap {
	p.termVector = &mode
	return p.mark()
}

func (p *PropertyMap) Boost(boost float64) *PropertyMap {
	p.boost = &boost
	return p.mark()
}

func (p *PropertyMap) CaseSensitive() *PropertyMap {
	p.caseSensitive = true
	return p.mark()
}

// AnalyzeWith names a registered bleve analyzer.
func (p *PropertyMap) AnalyzeWith(name string) *PropertyMap {
	p.analyzerName = name
	return p.mark()
}

func (p *PropertyMap) ConvertWith(c convert.Converter) *PropertyMap {
	p.converter = c
	return p.mark()
}

// Format sets a time layout or fmt verb used to render values.
func (p *PropertyMap) Format(layout string) *PropertyMap {
	p.format = layout
	return p.mark()
}

func (p *PropertyMap) DefaultOperator(op Operator) *PropertyMap {
	p.operator = &op
	return p.mark()
}

// NativeSort sorts on the raw index terms instead of converted values.
func (p *PropertyMap) NativeSort() *PropertyMap {
	p.nativeSort = true
	return p.mark()
}

func (p *PropertyMap) AsNumericField() *PropertyMap {
	p.numeric = true
	return p.mark()
}

// WithPrecisionStep is kept in the mapping fingerprint; bleve indexes
// numeric values at a fixed precision.
func (p *PropertyMap) WithPrecisionStep(step int) *PropertyMap {
	p.precisionStep = step
	return p.AsNumericField()
}
