package fieldmap

import (
	"github.com/AvengeMedia/dankquery/internal/analyzer"
	"github.com/AvengeMedia/dankquery/internal/convert"
	"github.com/AvengeMedia/dankquery/internal/errdefs"
	"github.com/AvengeMedia/dankquery/internal/sorting"
)

// buildDescriptor resolves the metadata of pm into a descriptor.
func (r *Registry) buildDescriptor(pm *PropertyMap) (Descriptor, error) {
	switch pm.role {
	case RoleBoost:
		return &boostDescriptor{prop: pm.name, acc: pm.acc}, nil
	case RoleScore:
		return &scoreDescriptor{prop: pm.name, acc: pm.acc}, nil
	}

	elem := pm.acc.valueType()
	if elem == nil {
		return nil, errdefs.Newf(errdefs.ErrTypeConfiguration, "property %s has no element type", pm.name)
	}

	format := pm.format
	kind := convert.KindOf(elem)
	if format == "" && kind == convert.KindTime {
		format = r.opts.DateTimeFormat
	}

	meta := Meta{
		Role:          RoleField,
		Kind:          kind,
		Store:         StoreYes,
		Index:         IndexAnalyzed,
		TermVector:    TermVectorNo,
		Boost:         1.0,
		Operator:      OperatorOr,
		NativeSort:    pm.nativeSort,
		Collection:    pm.acc.collection(),
		Numeric:       pm.numeric,
		PrecisionStep: pm.precisionStep,
	}
	if pm.role == RoleKey {
		meta.Role = RoleKey
	}
	if pm.store != nil {
		meta.Store = *pm.store
	}
	if pm.index != nil {
		meta.Index = *pm.index
	}
	if pm.termVector != nil {
		meta.TermVector = *pm.termVector
	}
	if pm.boost != nil {
		meta.Boost = *pm.boost
	}
	if pm.operator != nil {
		meta.Operator = *pm.operator
	}

	d := &fieldDescriptor{
		prop:  pm.name,
		field: pm.name,
		acc:   pm.acc,
	}
	if pm.field != "" {
		d.field = pm.field
	}

	if meta.Numeric {
		if !kind.IsNumeric() && !kind.IsTime() {
			return nil, errdefs.Newf(errdefs.ErrTypeConfiguration, "property %s of type %s cannot be a numeric field", pm.name, elem)
		}
		meta.CaseSensitive = true
		meta.Converter = "numeric"
		d.meta = meta
		d.analyzer = analyzer.Keyword()
		return wrapKey(d), nil
	}

	res, err := r.opts.Converters.Resolve(elem, pm.converter, format)
	if err != nil {
		return nil, errdefs.NewCustomError(errdefs.ErrTypeConfiguration, "property "+pm.name, err)
	}
	d.conv = res.Converter
	if d.conv != nil {
		meta.Converter = typeName(d.conv)
	}

	meta.CaseSensitive = pm.caseSensitive ||
		meta.Index == IndexNotAnalyzed ||
		meta.Index == IndexNotAnalyzedNoNorms ||
		(!pm.touched && res.RequiresCaseSensitive())

	switch {
	case r.external != nil:
		d.analyzer = r.external
	case pm.analyzerName != "":
		a, err := analyzer.Named(pm.analyzerName)
		if err != nil {
			return nil, errdefs.NewCustomError(errdefs.ErrTypeConfiguration, "property "+pm.name, err)
		}
		d.analyzer = a
	case meta.CaseSensitive:
		d.analyzer = analyzer.Keyword()
	default:
		d.analyzer = analyzer.CaseInsensitiveKeyword()
	}
	d.meta = meta

	if d.conv != nil && !meta.NativeSort {
		d.sortSrc, d.sortErr = sorting.NewSource(elem, d.conv)
	}
	return wrapKey(d), nil
}

func wrapKey(d *fieldDescriptor) Descriptor {
	if d.meta.Role == RoleKey {
		return &keyDescriptor{fieldDescriptor: d}
	}
	return d
}

func newFixedKey(k fixedKey) *fixedKeyDescriptor {
	d := &fieldDescriptor{
		prop:  k.field,
		field: k.field,
		meta: Meta{
			Role:          RoleKey,
			Kind:          convert.KindString,
			Store:         StoreYes,
			Index:         IndexNotAnalyzed,
			TermVector:    TermVectorNo,
			Boost:         1.0,
			Operator:      OperatorOr,
			CaseSensitive: true,
		},
		analyzer: analyzer.Keyword(),
	}
	return &fixedKeyDescriptor{fieldDescriptor: d, value: k.value}
}
