package convert

import (
	"reflect"
	"time"
)

// Kind is the closed set of element kinds the mapping engine dispatches on.
type Kind int

const (
	KindCustom Kind = iota
	KindString
	KindBool
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindTime
	KindTimeOffset
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindTime:
		return "time"
	case KindTimeOffset:
		return "time_offset"
	default:
		return "custom"
	}
}

func (k Kind) IsNumeric() bool {
	switch k {
	case KindInt32, KindInt64, KindFloat32, KindFloat64:
		return true
	}
	return false
}

func (k Kind) IsTime() bool {
	return k == KindTime || k == KindTimeOffset
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	for k := KindCustom; k <= KindTimeOffset; k++ {
		if k.String() == s {
			return k, true
		}
	}
	switch s {
	case "int", "long":
		return KindInt64, true
	case "float", "double":
		return KindFloat64, true
	case "datetime":
		return KindTime, true
	}
	return KindCustom, false
}

var (
	timeType       = reflect.TypeOf(time.Time{})
	timeOffsetType = reflect.TypeOf(TimeOffset{})
)

// KindOf classifies t. Named types keep the kind of their underlying basic type
// unless they are one of the time types.
func KindOf(t reflect.Type) Kind {
	if t == nil {
		return KindCustom
	}
	switch t {
	case timeType:
		return KindTime
	case timeOffsetType:
		return KindTimeOffset
	}
	switch t.Kind() {
	case reflect.String:
		return KindString
	case reflect.Bool:
		return KindBool
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		return KindInt32
	case reflect.Int, reflect.Int64, reflect.Uint32:
		return KindInt64
	case reflect.Float32:
		return KindFloat32
	case reflect.Float64:
		return KindFloat64
	}
	return KindCustom
}

// Type returns the canonical Go type for a kind, or nil for KindCustom.
func (k Kind) Type() reflect.Type {
	switch k {
	case KindString:
		return reflect.TypeOf("")
	case KindBool:
		return reflect.TypeOf(false)
	case KindInt32:
		return reflect.TypeOf(int32(0))
	case KindInt64:
		return reflect.TypeOf(int64(0))
	case KindFloat32:
		return reflect.TypeOf(float32(0))
	case KindFloat64:
		return reflect.TypeOf(float64(0))
	case KindTime:
		return timeType
	case KindTimeOffset:
		return timeOffsetType
	}
	return nil
}
