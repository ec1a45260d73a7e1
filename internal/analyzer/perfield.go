package analyzer

import (
	"sort"
	"sync"

	"github.com/AvengeMedia/dankquery/internal/errdefs"
)

// PerField binds analyzers to field names with a default for unbound fields.
type PerField struct {
	mu     sync.RWMutex
	def    *Analyzer
	fields map[string]*Analyzer
}

func NewPerField(def *Analyzer) *PerField {
	return &PerField{
		def:    def,
		fields: make(map[string]*Analyzer),
	}
}

// AddAnalyzer binds a to field. Rebinding to the same kind is a no-op.
func (p *PerField) AddAnalyzer(field string, a *Analyzer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addLocked(field, a)
}

func (p *PerField) addLocked(field string, a *Analyzer) error {
	if prev, ok := p.fields[field]; ok {
		if prev.Kind() != a.Kind() {
			return errdefs.Newf(errdefs.ErrTypeConfiguration,
				"attempt to replace analyzer for field %s with analyzer of kind %s: analyzer kind %s is already in use",
				field, a.Kind(), prev.Kind())
		}
		return nil
	}
	p.fields[field] = a
	return nil
}

// Merge copies every binding of other into p. Bindings added before a
// collision is found are kept.
func (p *PerField) Merge(other *PerField) error {
	if other == nil || other == p {
		return nil
	}

	other.mu.RLock()
	snapshot := make(map[string]*Analyzer, len(other.fields))
	for k, v := range other.fields {
		snapshot[k] = v
	}
	other.mu.RUnlock()

	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, name := range names {
		if err := p.addLocked(name, snapshot[name]); err != nil {
			return err
		}
	}
	return nil
}

func (p *PerField) Resolve(field string) *Analyzer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if a, ok := p.fields[field]; ok {
		return a
	}
	return p.def
}

func (p *PerField) Default() *Analyzer {
	return p.def
}

// Fields returns the bound field names, sorted.
func (p *PerField) Fields() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.fields))
	for name := range p.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Terms analyzes text with the analyzer bound to field.
func (p *PerField) Terms(field, text string) []string {
	return p.Resolve(field).Terms(text)
}

func (p *PerField) Analyze(field, text string) (string, error) {
	return p.Resolve(field).Analyze(text)
}
