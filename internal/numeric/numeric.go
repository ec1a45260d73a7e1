// Package numeric builds bleve numeric range queries and sortable encodings
// for int32, int64, float32, float64 and time values.
package numeric

import (
	"math"
	"reflect"
	"time"

	"github.com/AvengeMedia/dankquery/internal/convert"
	"github.com/AvengeMedia/dankquery/internal/errdefs"
	bleve "github.com/blevesearch/bleve/v2"
	bnumeric "github.com/blevesearch/bleve/v2/numeric"
	"github.com/blevesearch/bleve/v2/search/query"
)

type RangeType int

const (
	Inclusive RangeType = iota
	Exclusive
)

func (r RangeType) inclusive() *bool {
	v := r == Inclusive
	return &v
}

// Normalize maps time values to ticks and widens integer and float types,
// including named ones, to int32, int64, float32 or float64. Other values are
// returned unchanged.
func Normalize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		return convert.Ticks(x)
	case convert.TimeOffset:
		return convert.WallTicks(x.Time)
	case int32, int64, float32, float64:
		return v
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32:
		return int32(rv.Int())
	case reflect.Int, reflect.Int64:
		return rv.Int()
	case reflect.Uint8, reflect.Uint16:
		return int32(rv.Uint())
	case reflect.Uint32:
		return int64(rv.Uint())
	case reflect.Float32:
		return float32(rv.Float())
	case reflect.Float64:
		return rv.Float()
	}
	return v
}

func kindOf(v any) (convert.Kind, bool) {
	switch v.(type) {
	case int32:
		return convert.KindInt32, true
	case int64:
		return convert.KindInt64, true
	case float32:
		return convert.KindFloat32, true
	case float64:
		return convert.KindFloat64, true
	}
	return convert.KindCustom, false
}

// MinValue returns the smallest representable value of the same kind as v.
func MinValue(v any) any {
	switch v.(type) {
	case int32:
		return int32(math.MinInt32)
	case int64:
		return int64(math.MinInt64)
	case float32:
		return float32(-math.MaxFloat32)
	case float64:
		return -math.MaxFloat64
	}
	return nil
}

// MaxValue returns the largest representable value of the same kind as v.
func MaxValue(v any) any {
	switch v.(type) {
	case int32:
		return int32(math.MaxInt32)
	case int64:
		return int64(math.MaxInt64)
	case float32:
		return float32(math.MaxFloat32)
	case float64:
		return math.MaxFloat64
	}
	return nil
}

// RangeQuery builds a numeric range query on field. A nil bound is replaced
// by the extreme value of the other bound's kind.
func RangeQuery(field string, lower, upper any, lowerRange, upperRange RangeType) (query.Query, error) {
	if lower == nil && upper == nil {
		return nil, errdefs.Newf(errdefs.ErrTypeArgument, "range on %s requires at least one bound", field)
	}

	lower = Normalize(lower)
	upper = Normalize(upper)

	switch {
	case lower == nil:
		if _, ok := kindOf(upper); !ok {
			return nil, unsupportedBound(field, upper)
		}
		lower = MinValue(upper)
	case upper == nil:
		if _, ok := kindOf(lower); !ok {
			return nil, unsupportedBound(field, lower)
		}
		upper = MaxValue(lower)
	case reflect.TypeOf(lower) != reflect.TypeOf(upper):
		return nil, errdefs.Newf(errdefs.ErrTypeArgument, "range bounds on %s have different types: %T and %T", field, lower, upper)
	}

	if _, ok := kindOf(lower); !ok {
		return nil, unsupportedBound(field, lower)
	}

	minF, maxF := toFloat(lower), toFloat(upper)
	q := bleve.NewNumericRangeInclusiveQuery(&minF, &maxF, lowerRange.inclusive(), upperRange.inclusive())
	q.SetField(field)
	return q, nil
}

func unsupportedBound(field string, v any) error {
	return errdefs.Newf(errdefs.ErrTypeUnsupportedKind, "range on %s: unsupported bound type %T", field, v)
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case float64:
		return x
	}
	return 0
}

// ToFloat64 normalizes v and returns it as the float64 bleve stores for numeric fields.
func ToFloat64(v any) (float64, error) {
	n := Normalize(v)
	if _, ok := kindOf(n); !ok {
		return 0, errdefs.Newf(errdefs.ErrTypeUnsupportedKind, "unsupported numeric type %T", v)
	}
	return toFloat(n), nil
}

// FromFloat64 converts a stored float64 back into kind.
func FromFloat64(f float64, kind convert.Kind) (any, error) {
	switch kind {
	case convert.KindInt32:
		return int32(f), nil
	case convert.KindInt64:
		return int64(f), nil
	case convert.KindFloat32:
		return float32(f), nil
	case convert.KindFloat64:
		return f, nil
	case convert.KindTime:
		return convert.FromTicks(int64(f)), nil
	case convert.KindTimeOffset:
		return convert.NewTimeOffset(convert.FromTicks(int64(f))), nil
	}
	return nil, errdefs.Newf(errdefs.ErrTypeUnsupportedKind, "unsupported numeric kind %s", kind)
}

// EncodeSortable returns a prefix-coded encoding of v whose byte order
// matches numeric order.
func EncodeSortable(v any) ([]byte, error) {
	switch x := Normalize(v).(type) {
	case int32:
		return encodeInt64(int64(x)), nil
	case int64:
		return encodeInt64(x), nil
	case float64:
		return encodeInt64(bnumeric.Float64ToInt64(x)), nil
	case float32:
		return encodeInt64(int64(float32ToSortableInt32(x))), nil
	}
	return nil, errdefs.Newf(errdefs.ErrTypeUnsupportedKind, "cannot encode %T as sortable", v)
}

func encodeInt64(n int64) []byte {
	return []byte(bnumeric.MustNewPrefixCodedInt64(n, 0))
}

func float32ToSortableInt32(f float32) int32 {
	bits := int32(math.Float32bits(f))
	if bits < 0 {
		bits ^= 0x7fffffff
	}
	return bits
}

// DecodeSortable reverses EncodeSortable for kind.
func DecodeSortable(b []byte, kind convert.Kind) (any, error) {
	n, err := bnumeric.PrefixCoded(b).Int64()
	if err != nil {
		return nil, err
	}
	switch kind {
	case convert.KindInt32:
		return int32(n), nil
	case convert.KindInt64:
		return n, nil
	case convert.KindFloat64:
		return bnumeric.Int64ToFloat64(n), nil
	case convert.KindFloat32:
		bits := int32(n)
		if bits < 0 {
			bits ^= 0x7fffffff
		}
		return math.Float32frombits(uint32(bits)), nil
	}
	return nil, errdefs.Newf(errdefs.ErrTypeUnsupportedKind, "cannot decode sortable %s", kind)
}
