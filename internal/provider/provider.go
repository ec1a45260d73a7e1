// Package provider executes translated queries against a bleve index shared
// by every mapped type, and writes mapped values into it.
package provider

import (
	"errors"
	"os"
	"sort"
	"sync"

	"github.com/AvengeMedia/dankquery/internal/analyzer"
	"github.com/AvengeMedia/dankquery/internal/errdefs"
	"github.com/AvengeMedia/dankquery/internal/fieldmap"
	"github.com/AvengeMedia/dankquery/internal/log"
	"github.com/AvengeMedia/dankquery/internal/metastore"
	"github.com/AvengeMedia/dankquery/internal/translate"
	bleve "github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// DefaultMaxWindow bounds the number of hits fetched when a loose
// comparator forces the page to be re-ranked in memory.
const DefaultMaxWindow = 10000

type Options struct {
	// IndexPath is the scorch index directory. Empty means in-memory.
	IndexPath       string
	ReadOnly        bool
	Reset           bool
	DefaultAnalyzer string
	Settings        translate.Settings
	MaxWindow       int
}

type Provider struct {
	index    bleve.Index
	meta     *metastore.Store
	opts     Options
	analyzer *analyzer.PerField
	tables   map[string]fieldmap.TypeMapping
	mu       sync.RWMutex
}

// New opens the index for tables. Their per-field analyzers are merged into
// one; a collision fails with a configuration error.
func New(opts Options, tables ...fieldmap.TypeMapping) (*Provider, error) {
	if opts.MaxWindow <= 0 {
		opts.MaxWindow = DefaultMaxWindow
	}

	def := analyzer.Keyword()
	if opts.DefaultAnalyzer != "" {
		a, err := analyzer.Named(opts.DefaultAnalyzer)
		if err != nil {
			return nil, err
		}
		def = a
	}

	p := &Provider{
		opts:     opts,
		analyzer: analyzer.NewPerField(def),
		tables:   make(map[string]fieldmap.TypeMapping, len(tables)),
	}
	for _, t := range tables {
		if _, dup := p.tables[t.TypeName()]; dup {
			return nil, errdefs.Newf(errdefs.ErrTypeConfiguration, "type %s registered twice", t.TypeName())
		}
		if err := p.analyzer.Merge(t.Analyzer()); err != nil {
			return nil, err
		}
		p.tables[t.TypeName()] = t
	}

	im := p.buildIndexMapping()

	if opts.IndexPath == "" {
		idx, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, errdefs.NewCustomError(errdefs.ErrTypeIndexingFailed, "failed to create in-memory index", err)
		}
		p.index = idx
		return p, nil
	}

	if err := p.openPersistent(im); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (p *Provider) openPersistent(im mapping.IndexMapping) error {
	meta, err := metastore.New(p.opts.IndexPath)
	switch {
	case err != nil && p.opts.ReadOnly:
		log.Warnf("mapping catalog unavailable, skipping drift check: %v", err)
	case err != nil:
		return errdefs.NewCustomError(errdefs.ErrTypeIndexingFailed, "failed to open mapping catalog", err)
	default:
		p.meta = meta
	}

	if p.opts.Reset && !p.opts.ReadOnly {
		log.Infof("resetting index at %s", p.opts.IndexPath)
		if err := os.RemoveAll(p.opts.IndexPath); err != nil {
			return errdefs.NewCustomError(errdefs.ErrTypeIndexingFailed, "failed to remove index", err)
		}
		if p.meta != nil {
			if err := p.meta.Clear(); err != nil {
				return err
			}
		}
	}

	idx, err := openOrCreateIndex(p.opts.IndexPath, im, p.opts.ReadOnly)
	if err != nil {
		return errdefs.NewCustomError(errdefs.ErrTypeIndexingFailed, "failed to open index", err)
	}
	p.index = idx

	for _, name := range p.Types() {
		if err := p.checkMapping(p.tables[name]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Provider) buildIndexMapping() *mapping.IndexMappingImpl {
	m := bleve.NewIndexMapping()
	m.TypeField = fieldmap.TypeField
	m.DefaultAnalyzer = p.analyzer.Default().Name()
	m.DefaultMapping = bleve.NewDocumentStaticMapping()
	for name, t := range p.tables {
		m.AddDocumentMapping(name, t.DocumentMapping())
	}
	return m
}

func openOrCreateIndex(path string, m mapping.IndexMapping, readOnly bool) (bleve.Index, error) {
	if readOnly {
		idx, err := bleve.OpenUsing(path, map[string]interface{}{"read_only": true})
		if err != nil {
			return nil, err
		}
		log.Infof("opened existing index at %s (read-only)", path)
		return idx, nil
	}

	idx, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.NewUsing(path, m, "scorch", "scorch", getIndexConfig())
		if err != nil {
			return nil, err
		}
		log.Infof("created new index at %s", path)
		return idx, nil
	}
	if err != nil {
		return nil, err
	}
	log.Infof("opened existing index at %s", path)
	return idx, nil
}

func getIndexConfig() map[string]interface{} {
	return map[string]interface{}{
		"create_if_missing": true,
		"error_if_exists":   false,
		"unsafe_batch":      false,
		"store":             getStoreConfig(),
	}
}

func getStoreConfig() map[string]interface{} {
	return map[string]interface{}{
		"mmap":              false,
		"metrics":           false,
		"create_if_missing": true,
		"error_if_exists":   false,
	}
}

// checkMapping rejects a table whose type is missing from the stored index
// mapping or whose fingerprint differs from the catalog.
func (p *Provider) checkMapping(t fieldmap.TypeMapping) error {
	if impl, ok := p.index.Mapping().(*mapping.IndexMappingImpl); ok {
		if _, known := impl.TypeMapping[t.TypeName()]; !known {
			return errdefs.Newf(errdefs.ErrTypeMappingDrift, "index at %s has no mapping for %s", p.opts.IndexPath, t.TypeName())
		}
	}
	if p.meta == nil {
		return nil
	}

	if p.opts.ReadOnly {
		prev, found, err := p.meta.Get(t.TypeName())
		if err != nil || !found {
			return err
		}
		if prev.Fingerprint != t.Fingerprint() {
			return errdefs.Newf(errdefs.ErrTypeMappingDrift, "mapping of %s changed since it was indexed", t.TypeName())
		}
		return nil
	}
	return p.meta.Check(t.TypeName(), t.Version(), t.Fingerprint())
}

// Catalog returns the recorded mapping of every type indexed so far. An
// in-memory index has no catalog.
func (p *Provider) Catalog() (map[string]metastore.MappingMeta, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[string]metastore.MappingMeta)
	if p.meta == nil {
		return out, nil
	}
	err := p.meta.ForEach(func(typeName string, meta metastore.MappingMeta) error {
		out[typeName] = meta
		return nil
	})
	if err != nil {
		return nil, errdefs.NewCustomError(errdefs.ErrTypeIndexingFailed, "failed to read mapping catalog", err)
	}
	return out, nil
}

func (p *Provider) ReadOnly() bool {
	return p.opts.ReadOnly
}

func (p *Provider) Settings() translate.Settings {
	return p.opts.Settings
}

// Analyzer is the merged per-field analyzer of every table.
func (p *Provider) Analyzer() *analyzer.PerField {
	return p.analyzer
}

func (p *Provider) Table(typeName string) (fieldmap.TypeMapping, bool) {
	t, ok := p.tables[typeName]
	return t, ok
}

func (p *Provider) Types() []string {
	names := make([]string, 0, len(p.tables))
	for name := range p.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Provider) DocCount() (uint64, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.index == nil {
		return 0, errClosed(errdefs.ErrTypeSearchFailed)
	}
	return p.index.DocCount()
}

// DeleteID removes a document by its bleve ID.
func (p *Provider) DeleteID(typeName, id string) error {
	if p.opts.ReadOnly {
		return errdefs.ErrReadOnly
	}
	if _, ok := p.tables[typeName]; !ok {
		return errdefs.Newf(errdefs.ErrTypeArgument, "unknown type %s", typeName)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.index == nil {
		return errClosed(errdefs.ErrTypeIndexingFailed)
	}
	if err := p.index.Delete(id); err != nil {
		return errdefs.NewCustomError(errdefs.ErrTypeIndexingFailed, "delete failed", err)
	}
	log.Debugf("deleted %s from index", id)
	return nil
}

func errClosed(typ errdefs.ErrorType) error {
	return errdefs.Newf(typ, "provider is closed")
}

func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.index != nil {
		errs = append(errs, p.index.Close())
		p.index = nil
	}
	if p.meta != nil {
		errs = append(errs, p.meta.Close())
		p.meta = nil
	}
	return errors.Join(errs...)
}
