package fieldmap

import (
	"sort"
	"sync"

	"github.com/AvengeMedia/dankquery/internal/analyzer"
	"github.com/AvengeMedia/dankquery/internal/convert"
	"github.com/AvengeMedia/dankquery/internal/errdefs"
	"github.com/AvengeMedia/dankquery/internal/log"
)

type Options struct {
	// Version is folded into every table fingerprint.
	Version string
	// ExternalAnalyzer, when set, overrides the analyzer of every field.
	ExternalAnalyzer string
	DateTimeFormat   string
	Converters       *convert.Registry
}

// Registry builds and caches mapping tables by type name. Reads run
// concurrently; builds are serialized.
type Registry struct {
	opts     Options
	external *analyzer.Analyzer

	mu     sync.RWMutex
	tables map[string]TypeMapping
}

func NewRegistry(opts Options) (*Registry, error) {
	if opts.Converters == nil {
		opts.Converters = convert.NewRegistry()
	}
	if opts.DateTimeFormat == "" {
		opts.DateTimeFormat = convert.DefaultDateTimeLayout
	}

	r := &Registry{
		opts:   opts,
		tables: make(map[string]TypeMapping),
	}
	if opts.ExternalAnalyzer != "" {
		a, err := analyzer.Named(opts.ExternalAnalyzer)
		if err != nil {
			return nil, err
		}
		r.external = a
	}
	return r, nil
}

func (r *Registry) Options() Options {
	return r.opts
}

// Build resolves every property of m and replaces any cached table of the
// same type name.
func Build[T any](r *Registry, m *ClassMap[T]) (*Table[T], error) {
	t, err := newTable(r, m)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.tables[t.typeName] = t
	r.mu.Unlock()

	log.Debugf("Built mapping for %s with %d fields", t.typeName, len(t.descs))
	return t, nil
}

// Resolve returns the cached table for m's type name, building it on first
// use. Concurrent first uses share one build.
func Resolve[T any](r *Registry, m *ClassMap[T]) (*Table[T], error) {
	if t, ok := Lookup[T](r, m.TypeName()); ok {
		return t, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tables[m.TypeName()].(*Table[T]); ok {
		return t, nil
	}
	t, err := newTable(r, m)
	if err != nil {
		return nil, err
	}
	r.tables[t.typeName] = t
	log.Debugf("Built mapping for %s with %d fields", t.typeName, len(t.descs))
	return t, nil
}

// Lookup returns the cached table for typeName when it maps T.
func Lookup[T any](r *Registry, typeName string) (*Table[T], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[typeName].(*Table[T])
	return t, ok
}

func (r *Registry) Get(typeName string) (TypeMapping, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[typeName]
	return t, ok
}

// Types returns the cached type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Remove(typeName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tables, typeName)
}

func newTable[T any](r *Registry, m *ClassMap[T]) (*Table[T], error) {
	if m.typeName == "" {
		return nil, errdefs.Newf(errdefs.ErrTypeConfiguration, "mapped type has no name")
	}

	def := r.external
	if def == nil {
		def = analyzer.Keyword()
	}
	t := &Table[T]{
		typeName: m.typeName,
		version:  r.opts.Version,
		byProp:   make(map[string]Descriptor, len(m.props)+len(m.fixedKeys)),
		analyzer: analyzer.NewPerField(def),
	}

	add := func(d Descriptor) error {
		if _, dup := t.byProp[d.PropertyName()]; dup {
			return errdefs.Newf(errdefs.ErrTypeConfiguration, "property %s is mapped twice on %s", d.PropertyName(), m.typeName)
		}
		t.byProp[d.PropertyName()] = d
		t.descs = append(t.descs, d)
		if k, ok := d.(KeyInfo); ok {
			t.keys = append(t.keys, k)
		}
		if d.FieldName() != "" && d.Meta().Index != IndexNotIndexed {
			if err := t.analyzer.AddAnalyzer(d.FieldName(), d.Analyzer()); err != nil {
				return err
			}
		}
		return nil
	}

	for _, pm := range m.props {
		d, err := r.buildDescriptor(pm)
		if err != nil {
			return nil, err
		}
		if err := add(d); err != nil {
			return nil, err
		}
	}
	for _, k := range m.fixedKeys {
		if err := add(newFixedKey(k)); err != nil {
			return nil, err
		}
	}

	t.fingerprint = t.computeFingerprint()
	return t, nil
}
