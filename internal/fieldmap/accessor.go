package fieldmap

import (
	"fmt"
	"reflect"
	"time"

	"github.com/AvengeMedia/dankquery/internal/convert"
)

// accessor reads and writes one property of a mapped value. obj is always a
// pointer to the mapped type.
type accessor interface {
	get(obj any) (any, bool)
	getAll(obj any) []any
	set(obj any, v any) error
	setAll(obj any, vs []any) error
	valueType() reflect.Type
	collection() bool
}

type fieldAccessor[T, F any] struct {
	ptr      func(*T) *F
	elem     reflect.Type
	nullable bool
}

func newFieldAccessor[T, F any](ptr func(*T) *F) *fieldAccessor[T, F] {
	ft := reflect.TypeOf((*F)(nil)).Elem()
	a := &fieldAccessor[T, F]{ptr: ptr, elem: ft}
	if ft.Kind() == reflect.Pointer {
		a.nullable = true
		a.elem = ft.Elem()
	}
	return a
}

func (a *fieldAccessor[T, F]) target(obj any) reflect.Value {
	return reflect.ValueOf(a.ptr(obj.(*T))).Elem()
}

func (a *fieldAccessor[T, F]) get(obj any) (any, bool) {
	rv := a.target(obj)
	if a.nullable {
		if rv.IsNil() {
			return nil, false
		}
		return rv.Elem().Interface(), true
	}
	return rv.Interface(), true
}

func (a *fieldAccessor[T, F]) getAll(obj any) []any {
	if v, ok := a.get(obj); ok {
		return []any{v}
	}
	return nil
}

func (a *fieldAccessor[T, F]) set(obj any, v any) error {
	rv := a.target(obj)
	if v == nil {
		rv.Set(reflect.Zero(rv.Type()))
		return nil
	}
	val, err := coerce(v, a.elem)
	if err != nil {
		return err
	}
	if a.nullable {
		p := reflect.New(a.elem)
		p.Elem().Set(val)
		rv.Set(p)
		return nil
	}
	rv.Set(val)
	return nil
}

func (a *fieldAccessor[T, F]) setAll(obj any, vs []any) error {
	if len(vs) == 0 {
		return a.set(obj, nil)
	}
	return a.set(obj, vs[0])
}

func (a *fieldAccessor[T, F]) valueType() reflect.Type { return a.elem }
func (a *fieldAccessor[T, F]) collection() bool        { return false }

type sliceAccessor[T, E any] struct {
	ptr  func(*T) *[]E
	elem reflect.Type
}

func newSliceAccessor[T, E any](ptr func(*T) *[]E) *sliceAccessor[T, E] {
	return &sliceAccessor[T, E]{ptr: ptr, elem: reflect.TypeOf((*E)(nil)).Elem()}
}

func (a *sliceAccessor[T, E]) get(obj any) (any, bool) {
	vals := a.getAll(obj)
	if len(vals) == 0 {
		return nil, false
	}
	return vals[0], true
}

func (a *sliceAccessor[T, E]) getAll(obj any) []any {
	items := *a.ptr(obj.(*T))
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, item)
	}
	return out
}

func (a *sliceAccessor[T, E]) set(obj any, v any) error {
	if v == nil {
		return a.setAll(obj, nil)
	}
	return a.setAll(obj, []any{v})
}

func (a *sliceAccessor[T, E]) setAll(obj any, vs []any) error {
	if vs == nil {
		*a.ptr(obj.(*T)) = nil
		return nil
	}
	items := make([]E, 0, len(vs))
	for _, v := range vs {
		val, err := coerce(v, a.elem)
		if err != nil {
			return err
		}
		items = append(items, val.Interface().(E))
	}
	*a.ptr(obj.(*T)) = items
	return nil
}

func (a *sliceAccessor[T, E]) valueType() reflect.Type { return a.elem }
func (a *sliceAccessor[T, E]) collection() bool        { return true }

// recordAccessor reads one key of a Record, coercing loosely typed values
// such as decoded JSON into the declared element type.
type recordAccessor struct {
	name string
	elem reflect.Type
	coll bool
}

func (a *recordAccessor) record(obj any) Record {
	return *obj.(*Record)
}

func (a *recordAccessor) get(obj any) (any, bool) {
	vals := a.getAll(obj)
	if len(vals) == 0 {
		return nil, false
	}
	return vals[0], true
}

func (a *recordAccessor) getAll(obj any) []any {
	raw, ok := a.record(obj)[a.name]
	if !ok || raw == nil {
		return nil
	}

	var items []any
	rv := reflect.ValueOf(raw)
	if a.coll && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
		for i := 0; i < rv.Len(); i++ {
			items = append(items, rv.Index(i).Interface())
		}
	} else {
		items = []any{raw}
	}

	out := make([]any, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		if v, err := coerce(item, a.elem); err == nil {
			out = append(out, v.Interface())
		} else {
			out = append(out, item)
		}
	}
	return out
}

func (a *recordAccessor) set(obj any, v any) error {
	rec := obj.(*Record)
	if *rec == nil {
		*rec = Record{}
	}
	if v == nil {
		delete(*rec, a.name)
		return nil
	}
	(*rec)[a.name] = v
	return nil
}

func (a *recordAccessor) setAll(obj any, vs []any) error {
	if !a.coll {
		if len(vs) == 0 {
			return a.set(obj, nil)
		}
		return a.set(obj, vs[0])
	}
	if vs == nil {
		return a.set(obj, nil)
	}
	return a.set(obj, vs)
}

func (a *recordAccessor) valueType() reflect.Type { return a.elem }
func (a *recordAccessor) collection() bool        { return a.coll }

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// coerce converts v to t when the conversion preserves meaning: assignable
// values, numeric widening/narrowing, named string types and time strings.
func coerce(v any, t reflect.Type) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}

	switch {
	case isNumericKind(rv.Kind()) && isNumericKind(t.Kind()):
		return rv.Convert(t), nil
	case rv.Kind() == reflect.String && t.Kind() == reflect.String:
		return rv.Convert(t), nil
	case rv.Kind() == reflect.Bool && t.Kind() == reflect.Bool:
		return rv.Convert(t), nil
	}

	if s, ok := v.(string); ok {
		switch convert.KindOf(t) {
		case convert.KindTime:
			ts, err := parseTime(s)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(ts), nil
		case convert.KindTimeOffset:
			ts, err := parseTime(s)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(convert.NewTimeOffset(ts)), nil
		}
	}

	if ts, ok := v.(time.Time); ok && convert.KindOf(t) == convert.KindTimeOffset {
		return reflect.ValueOf(convert.NewTimeOffset(ts)), nil
	}

	return reflect.Value{}, fmt.Errorf("cannot assign %T to %s", v, t)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, convert.DefaultDateTimeLayout, "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}
