package convert

import (
	"encoding"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/AvengeMedia/dankquery/internal/errdefs"
)

// Converter translates between a property value and the string stored in the index.
type Converter interface {
	ConvertToString(v any) (string, error)
	ConvertFromString(s string) (any, error)
}

// Comparer is implemented by element types that only support loose ordering.
type Comparer interface {
	CompareTo(other any) int
}

// SortKeyer is implemented by element types that can produce an order-preserving string.
type SortKeyer interface {
	SortKey() string
}

// DateTimeConverter stores time.Time values in UTC using Layout.
type DateTimeConverter struct {
	Layout string
}

func NewDateTimeConverter(layout string) *DateTimeConverter {
	if layout == "" {
		layout = DefaultDateTimeLayout
	}
	return &DateTimeConverter{Layout: layout}
}

func (c *DateTimeConverter) ConvertToString(v any) (string, error) {
	t, ok := v.(time.Time)
	if !ok {
		return "", fmt.Errorf("expected time.Time, got %T", v)
	}
	return t.UTC().Format(c.Layout), nil
}

func (c *DateTimeConverter) ConvertFromString(s string) (any, error) {
	t, err := time.ParseInLocation(c.Layout, s, time.UTC)
	if err != nil {
		return nil, err
	}
	return t.UTC(), nil
}

// FormatConverter renders values with an explicit layout. For time kinds the
// layout is a time layout; for numeric kinds it is a fmt verb such as "%08d".
type FormatConverter struct {
	Kind   Kind
	Layout string
}

func NewFormatConverter(kind Kind, layout string) (*FormatConverter, error) {
	if layout == "" {
		switch kind {
		case KindTimeOffset:
			layout = DefaultOffsetLayout
		case KindTime:
			layout = DefaultDateTimeLayout
		default:
			return nil, errdefs.Newf(errdefs.ErrTypeConfiguration, "format converter for %s requires a layout", kind)
		}
	}
	switch kind {
	case KindTime, KindTimeOffset, KindInt32, KindInt64, KindFloat32, KindFloat64, KindString:
	default:
		return nil, errdefs.Newf(errdefs.ErrTypeConfiguration, "kind %s cannot be formatted", kind)
	}
	return &FormatConverter{Kind: kind, Layout: layout}, nil
}

func (c *FormatConverter) ConvertToString(v any) (string, error) {
	switch x := v.(type) {
	case TimeOffset:
		return x.Format(c.Layout), nil
	case time.Time:
		return x.Format(c.Layout), nil
	}
	if c.Kind.IsNumeric() || c.Kind == KindString {
		return fmt.Sprintf(c.Layout, v), nil
	}
	return "", fmt.Errorf("cannot format %T as %s", v, c.Kind)
}

func (c *FormatConverter) ConvertFromString(s string) (any, error) {
	switch c.Kind {
	case KindTimeOffset:
		t, err := time.Parse(c.Layout, s)
		if err != nil {
			return nil, err
		}
		return TimeOffset{Time: t}, nil
	case KindTime:
		t, err := time.Parse(c.Layout, s)
		if err != nil {
			return nil, err
		}
		return t, nil
	case KindString:
		return s, nil
	}
	return parseBasic(c.Kind.Type(), strings.TrimSpace(s))
}

// TextConverter handles built-in kinds through strconv and other types through
// encoding.TextMarshaler / encoding.TextUnmarshaler.
type TextConverter struct {
	typ reflect.Type
}

var (
	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
)

func NewTextConverter(t reflect.Type) (*TextConverter, error) {
	if KindOf(t) != KindCustom || isText(t) {
		return &TextConverter{typ: t}, nil
	}
	return nil, errdefs.Newf(errdefs.ErrTypeConfiguration, "type %s cannot be converted from string", t)
}

func isText(t reflect.Type) bool {
	return t.Implements(textMarshalerType) && reflect.PointerTo(t).Implements(textUnmarshalerType)
}

func (c *TextConverter) ConvertToString(v any) (string, error) {
	if m, ok := v.(encoding.TextMarshaler); ok {
		b, err := m.MarshalText()
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 32), nil
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, 64), nil
	}
	return "", fmt.Errorf("cannot convert %T to string", v)
}

func (c *TextConverter) ConvertFromString(s string) (any, error) {
	if isText(c.typ) {
		ptr := reflect.New(c.typ)
		if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return nil, err
		}
		return ptr.Elem().Interface(), nil
	}
	return parseBasic(c.typ, s)
}

func parseBasic(t reflect.Type, s string) (any, error) {
	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.String:
		out.SetString(s)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, err
		}
		out.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, t.Bits())
		if err != nil {
			return nil, err
		}
		out.SetInt(n)
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		n, err := strconv.ParseUint(s, 10, t.Bits())
		if err != nil {
			return nil, err
		}
		out.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, t.Bits())
		if err != nil {
			return nil, err
		}
		out.SetFloat(f)
	default:
		return nil, fmt.Errorf("cannot parse %s from string", t)
	}
	return out.Interface(), nil
}
