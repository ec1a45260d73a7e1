package convert

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/AvengeMedia/dankquery/internal/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type semver struct {
	major, minor int
}

func (v semver) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%d.%d", v.major, v.minor)), nil
}

func (v *semver) UnmarshalText(b []byte) error {
	_, err := fmt.Sscanf(string(b), "%d.%d", &v.major, &v.minor)
	return err
}

type opaque struct{ ch chan int }

type upperConverter struct{}

func (upperConverter) ConvertToString(v any) (string, error) { return strings.ToUpper(v.(string)), nil }
func (upperConverter) ConvertFromString(s string) (any, error) {
	return strings.ToLower(s), nil
}

type level int

func TestKindOf(t *testing.T) {
	tests := []struct {
		v    any
		want Kind
	}{
		{"", KindString},
		{true, KindBool},
		{int8(0), KindInt32},
		{int32(0), KindInt32},
		{0, KindInt64},
		{int64(0), KindInt64},
		{float32(0), KindFloat32},
		{0.0, KindFloat64},
		{time.Time{}, KindTime},
		{TimeOffset{}, KindTimeOffset},
		{level(0), KindInt64},
		{semver{}, KindCustom},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(reflect.TypeOf(tt.v)), "%T", tt.v)
	}
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("float32")
	assert.True(t, ok)
	assert.Equal(t, KindFloat32, k)

	k, ok = ParseKind("datetime")
	assert.True(t, ok)
	assert.Equal(t, KindTime, k)

	_, ok = ParseKind("complex")
	assert.False(t, ok)
}

func TestTicks(t *testing.T) {
	assert.Equal(t, int64(0), Ticks(time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, int64(621355968000000000), Ticks(time.Unix(0, 0)))

	ts := time.Date(2024, 3, 9, 12, 30, 15, 123456700, time.UTC)
	assert.True(t, FromTicks(Ticks(ts)).Equal(ts))

	zone := time.FixedZone("plus2", 2*3600)
	local := time.Date(2024, 3, 9, 14, 30, 15, 0, zone)
	assert.Equal(t, Ticks(local)+2*3600*10_000_000, WallTicks(local))
}

func TestDateTimeConverter(t *testing.T) {
	c := NewDateTimeConverter("")
	zone := time.FixedZone("minus5", -5*3600)

	s, err := c.ConvertToString(time.Date(2023, 12, 31, 20, 0, 0, 0, zone))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T01:00:00", s)

	v, err := c.ConvertFromString(s)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), v)

	_, err = c.ConvertToString("not a time")
	assert.Error(t, err)
}

func TestFormatConverter(t *testing.T) {
	c, err := NewFormatConverter(KindTimeOffset, "")
	require.NoError(t, err)

	zone := time.FixedZone("plus3", 3*3600)
	in := NewTimeOffset(time.Date(2024, 5, 1, 10, 0, 0, 0, zone))
	s, err := c.ConvertToString(in)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T10:00:00+03:00", s)

	out, err := c.ConvertFromString(s)
	require.NoError(t, err)
	_, offset := out.(TimeOffset).Zone()
	assert.Equal(t, 3*3600, offset)

	padded, err := NewFormatConverter(KindInt64, "%08d")
	require.NoError(t, err)
	s, err = padded.ConvertToString(int64(42))
	require.NoError(t, err)
	assert.Equal(t, "00000042", s)
	n, err := padded.ConvertFromString(s)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	_, err = NewFormatConverter(KindBool, "%t")
	assert.True(t, errdefs.Is(err, errdefs.ErrTypeConfiguration))
}

func TestTextConverter(t *testing.T) {
	c, err := NewTextConverter(reflect.TypeOf(semver{}))
	require.NoError(t, err)

	s, err := c.ConvertToString(semver{1, 2})
	require.NoError(t, err)
	assert.Equal(t, "1.2", s)

	v, err := c.ConvertFromString("3.4")
	require.NoError(t, err)
	assert.Equal(t, semver{3, 4}, v)

	ic, err := NewTextConverter(reflect.TypeOf(level(0)))
	require.NoError(t, err)
	v, err = ic.ConvertFromString("7")
	require.NoError(t, err)
	assert.Equal(t, level(7), v)

	_, err = NewTextConverter(reflect.TypeOf(opaque{}))
	assert.True(t, errdefs.Is(err, errdefs.ErrTypeConfiguration))
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	RegisterFor[opaque](r, upperConverter{})

	tests := []struct {
		name      string
		typ       reflect.Type
		explicit  Converter
		format    string
		wantType  any
		wantNil   bool
		wantError bool
	}{
		{name: "explicit wins over time", typ: reflect.TypeOf(time.Time{}), explicit: upperConverter{}, wantType: upperConverter{}},
		{name: "time default", typ: reflect.TypeOf(time.Time{}), wantType: &DateTimeConverter{}},
		{name: "time with format stays datetime", typ: reflect.TypeOf(time.Time{}), format: "2006", wantType: &DateTimeConverter{}},
		{name: "offset", typ: reflect.TypeOf(TimeOffset{}), wantType: &FormatConverter{}},
		{name: "formatted number", typ: reflect.TypeOf(int64(0)), format: "%010d", wantType: &FormatConverter{}},
		{name: "string", typ: reflect.TypeOf(""), wantNil: true},
		{name: "registered", typ: reflect.TypeOf(opaque{}), wantType: upperConverter{}},
		{name: "int falls back to text", typ: reflect.TypeOf(0), wantType: &TextConverter{}},
		{name: "unconvertible", typ: reflect.TypeOf(struct{ X chan int }{}), wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.Resolve(tt.typ, tt.explicit, tt.format)
			if tt.wantError {
				require.Error(t, err)
				assert.True(t, errdefs.Is(err, errdefs.ErrTypeConfiguration))
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, res.Converter)
				assert.False(t, res.RequiresCaseSensitive())
				return
			}
			assert.IsType(t, tt.wantType, res.Converter)
			assert.True(t, res.RequiresCaseSensitive())
		})
	}

	res, err := r.Resolve(reflect.TypeOf(time.Time{}), nil, "2006-01-02")
	require.NoError(t, err)
	assert.Equal(t, "2006-01-02", res.Converter.(*DateTimeConverter).Layout)
}
