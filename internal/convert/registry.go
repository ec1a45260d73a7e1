package convert

import (
	"reflect"
	"sync"

	"github.com/AvengeMedia/dankquery/internal/errdefs"
)

// Registry holds converters registered for specific types.
type Registry struct {
	mu     sync.RWMutex
	byType map[reflect.Type]Converter
}

func NewRegistry() *Registry {
	return &Registry{byType: make(map[reflect.Type]Converter)}
}

func (r *Registry) Register(t reflect.Type, c Converter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType[t] = c
}

// RegisterFor registers c for the type parameter T.
func RegisterFor[T any](r *Registry, c Converter) {
	r.Register(reflect.TypeOf((*T)(nil)).Elem(), c)
}

// Lookup returns the converter registered for t, falling back to a TextConverter.
func (r *Registry) Lookup(t reflect.Type) (Converter, error) {
	r.mu.RLock()
	c, ok := r.byType[t]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}
	tc, err := NewTextConverter(t)
	if err != nil {
		return nil, err
	}
	return tc, nil
}

// Resolution describes how a property's values are converted.
type Resolution struct {
	Converter Converter
	Kind      Kind
}

// Resolve picks a converter for elem. The order is explicit converter, time.Time
// default, explicit format or TimeOffset, plain string, then Lookup.
func (r *Registry) Resolve(elem reflect.Type, explicit Converter, format string) (Resolution, error) {
	kind := KindOf(elem)
	res := Resolution{Kind: kind}

	switch {
	case explicit != nil:
		res.Converter = explicit
	case kind == KindTime:
		res.Converter = NewDateTimeConverter(format)
	case format != "" || kind == KindTimeOffset:
		fc, err := NewFormatConverter(kind, format)
		if err != nil {
			return res, err
		}
		res.Converter = fc
	case kind == KindString:
		return res, nil
	default:
		c, err := r.Lookup(elem)
		if err != nil {
			return res, errdefs.NewCustomError(errdefs.ErrTypeConfiguration, "no converter for "+elem.String(), err)
		}
		res.Converter = c
	}
	return res, nil
}

// RequiresCaseSensitive reports whether values of the resolved type must be
// indexed without case folding.
func (res Resolution) RequiresCaseSensitive() bool {
	return res.Converter != nil
}
