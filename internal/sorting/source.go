// Package sorting provides converter-backed sort comparators for fields
// whose index terms do not sort in value order.
package sorting

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/AvengeMedia/dankquery/internal/convert"
	"github.com/AvengeMedia/dankquery/internal/errdefs"
	"github.com/AvengeMedia/dankquery/internal/numeric"
)

// Family separates element types with a total, key-encodable order from
// those that only offer CompareTo.
type Family int

const (
	FamilyOrdered Family = iota
	FamilyLoose
)

func (f Family) String() string {
	if f == FamilyLoose {
		return "loose"
	}
	return "ordered"
}

var (
	comparerType  = reflect.TypeOf((*convert.Comparer)(nil)).Elem()
	sortKeyerType = reflect.TypeOf((*convert.SortKeyer)(nil)).Elem()
)

// Source turns raw index terms into comparable values for one element type.
type Source struct {
	elem   reflect.Type
	kind   convert.Kind
	conv   convert.Converter
	family Family
}

// NewSource selects the comparator family for elem. Types that are neither a
// built-in kind, a SortKeyer nor a Comparer cannot be sorted.
func NewSource(elem reflect.Type, conv convert.Converter) (*Source, error) {
	kind := convert.KindOf(elem)
	s := &Source{elem: elem, kind: kind, conv: conv}

	switch {
	case kind != convert.KindCustom:
		s.family = FamilyOrdered
	case elem.Implements(sortKeyerType):
		s.family = FamilyOrdered
	case elem.Implements(comparerType):
		s.family = FamilyLoose
	default:
		return nil, errdefs.Newf(errdefs.ErrTypeConfiguration, "type %s is not comparable: implement SortKey() string or CompareTo(any) int", elem)
	}

	if conv == nil && kind != convert.KindString {
		return nil, errdefs.Newf(errdefs.ErrTypeConfiguration, "comparator for %s requires a converter", elem)
	}
	return s, nil
}

func (s *Source) Family() Family {
	return s.family
}

func (s *Source) Kind() convert.Kind {
	return s.kind
}

// Comparator returns a fresh comparator over field.
func (s *Source) Comparator(field string, desc bool) *FieldComparator {
	return newFieldComparator(s, field, desc)
}

func (s *Source) value(term string) (any, error) {
	if s.conv == nil {
		return term, nil
	}
	return s.conv.ConvertFromString(term)
}

// key converts a raw term into a string whose byte order matches value order.
// Loose-family keys are the raw term.
func (s *Source) key(term string) (string, error) {
	if s.family == FamilyLoose {
		return term, nil
	}
	v, err := s.value(term)
	if err != nil {
		return "", err
	}
	return s.keyOf(v)
}

func (s *Source) keyOf(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case bool:
		if x {
			return "1", nil
		}
		return "0", nil
	case time.Time:
		b, err := numeric.EncodeSortable(convert.Ticks(x))
		return string(b), err
	case convert.TimeOffset:
		b, err := numeric.EncodeSortable(convert.Ticks(x.Time))
		return string(b), err
	case convert.SortKeyer:
		return x.SortKey(), nil
	}
	if s.kind.IsNumeric() || s.kind == convert.KindCustom {
		b, err := numeric.EncodeSortable(v)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	if s.kind == convert.KindString {
		return fmt.Sprint(v), nil
	}
	return "", errdefs.Newf(errdefs.ErrTypeUnsupportedKind, "cannot build sort key for %T", v)
}

// compareTerms orders two raw terms of a loose-family source.
func (s *Source) compareTerms(a, b string) (int, error) {
	va, err := s.value(a)
	if err != nil {
		return 0, err
	}
	vb, err := s.value(b)
	if err != nil {
		return 0, err
	}
	ca, ok := va.(convert.Comparer)
	if !ok {
		return 0, errdefs.Newf(errdefs.ErrTypeConfiguration, "%T does not implement CompareTo", va)
	}
	return ca.CompareTo(vb), nil
}

// describe renders a key for display in decoded sort values.
func (s *Source) describe(key string) string {
	if s.family == FamilyLoose {
		return key
	}
	switch s.kind {
	case convert.KindInt32, convert.KindInt64, convert.KindFloat32, convert.KindFloat64:
		v, err := numeric.DecodeSortable([]byte(key), s.kind)
		if err != nil {
			return key
		}
		return fmt.Sprint(v)
	case convert.KindTime, convert.KindTimeOffset:
		v, err := numeric.DecodeSortable([]byte(key), convert.KindInt64)
		if err != nil {
			return key
		}
		return convert.FromTicks(v.(int64)).Format(time.RFC3339Nano)
	case convert.KindBool:
		b, _ := strconv.ParseBool(key)
		return strconv.FormatBool(b)
	}
	return key
}
