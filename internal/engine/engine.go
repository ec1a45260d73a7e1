// Package engine serves schema-declared record types: it owns the mapping
// registry, the provider and the schema they were built from.
package engine

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/AvengeMedia/dankquery/internal/config"
	"github.com/AvengeMedia/dankquery/internal/errdefs"
	"github.com/AvengeMedia/dankquery/internal/fieldmap"
	"github.com/AvengeMedia/dankquery/internal/log"
	"github.com/AvengeMedia/dankquery/internal/provider"
	"github.com/AvengeMedia/dankquery/internal/schema"
	"github.com/AvengeMedia/dankquery/internal/translate"
)

type Table = fieldmap.Table[fieldmap.Record]

type Engine struct {
	cfg *config.Config

	mu     sync.RWMutex
	schema *schema.Schema
	tables map[string]*Table
	prov   *provider.Provider
}

// New loads the schema at cfg.SchemaPath and opens the index. reset drops
// an index whose mappings no longer match.
func New(cfg *config.Config, reset bool) (*Engine, error) {
	s, err := schema.Load(cfg.SchemaPath)
	if err != nil {
		return nil, err
	}
	return NewWithSchema(cfg, s, reset)
}

func NewWithSchema(cfg *config.Config, s *schema.Schema, reset bool) (*Engine, error) {
	tables, err := buildTables(cfg, s)
	if err != nil {
		return nil, err
	}
	prov, err := openProvider(cfg, tables, reset)
	if err != nil {
		return nil, err
	}

	log.Infof("engine ready with %d types", len(tables))
	return &Engine{
		cfg:    cfg,
		schema: s,
		tables: tables,
		prov:   prov,
	}, nil
}

func buildTables(cfg *config.Config, s *schema.Schema) (map[string]*Table, error) {
	reg, err := fieldmap.NewRegistry(fieldmap.Options{
		Version:          cfg.MappingVersion,
		ExternalAnalyzer: cfg.ExternalAnalyzer,
		DateTimeFormat:   cfg.DateTimeFormat,
	})
	if err != nil {
		return nil, err
	}
	built, err := s.Build(reg)
	if err != nil {
		return nil, err
	}

	tables := make(map[string]*Table, len(built))
	for _, t := range built {
		tables[t.TypeName()] = t
	}
	return tables, nil
}

func openProvider(cfg *config.Config, tables map[string]*Table, reset bool) (*provider.Provider, error) {
	mappings := make([]fieldmap.TypeMapping, 0, len(tables))
	for _, t := range tables {
		mappings = append(mappings, t)
	}
	return provider.New(provider.Options{
		IndexPath:       cfg.IndexPath,
		ReadOnly:        cfg.ReadOnly,
		Reset:           reset,
		DefaultAnalyzer: cfg.DefaultAnalyzer,
		Settings:        translate.Settings{EnableMultipleEntities: cfg.EnableMultipleEntities},
	}, mappings...)
}

func (e *Engine) Config() *config.Config {
	return e.cfg
}

func (e *Engine) Types() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.tables))
	for name := range e.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Engine) table(typeName string) (*Table, error) {
	t, ok := e.tables[typeName]
	if !ok {
		return nil, errdefs.Newf(errdefs.ErrTypeArgument, "unknown type %s", typeName)
	}
	return t, nil
}

// Index writes records of typeName in one batch and returns how many were written.
func (e *Engine) Index(typeName string, records []fieldmap.Record) (int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	t, err := e.table(typeName)
	if err != nil {
		return 0, err
	}
	s, err := provider.OpenSession(e.prov, t)
	if err != nil {
		return 0, err
	}
	for i := range records {
		if err := s.Add(&records[i]); err != nil {
			s.Rollback()
			return 0, err
		}
	}
	if err := s.Commit(); err != nil {
		return 0, err
	}
	log.Debugf("indexed %d %s records", len(records), typeName)
	return len(records), nil
}

// Delete removes one record. id is either the full document ID or the
// escaped key values that follow the type name.
func (e *Engine) Delete(typeName, id string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !strings.HasPrefix(id, typeName+"/") {
		id = typeName + "/" + id
	}
	return e.prov.DeleteID(typeName, id)
}

func (e *Engine) DocCount() (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.prov.DocCount()
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prov.Close()
}

// Reload re-reads the schema file. Unchanged mappings are kept as they are;
// otherwise stored records are re-indexed under the new mappings.
func (e *Engine) Reload() error {
	s, err := schema.Load(e.cfg.SchemaPath)
	if err != nil {
		return err
	}
	return e.ReloadSchema(s)
}

func (e *Engine) ReloadSchema(s *schema.Schema) error {
	tables, err := buildTables(e.cfg, s)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if sameFingerprints(e.tables, tables) {
		e.schema = s
		log.Infof("schema reloaded, mappings unchanged")
		return nil
	}
	if e.cfg.ReadOnly {
		return errdefs.Newf(errdefs.ErrTypeMappingDrift, "schema changed but the index is read-only")
	}

	dump := make(map[string][]fieldmap.Record)
	for name, old := range e.tables {
		if _, kept := tables[name]; !kept {
			continue
		}
		records, err := e.dump(old)
		if err != nil {
			return err
		}
		dump[name] = records
	}

	if err := e.prov.Close(); err != nil {
		log.Warnf("failed to close index before rebuild: %v", err)
	}
	prov, err := openProvider(e.cfg, tables, true)
	if err != nil {
		restored, rerr := openProvider(e.cfg, e.tables, false)
		if rerr != nil {
			log.Errorf("failed to restore previous index: %v", rerr)
			return errors.Join(err, rerr)
		}
		e.prov = restored
		return err
	}
	e.schema = s
	e.tables = tables
	e.prov = prov

	total := 0
	for name, records := range dump {
		sess, err := provider.OpenSession(prov, tables[name])
		if err != nil {
			return err
		}
		for i := range records {
			if err := sess.Add(&records[i]); err != nil {
				log.Warnf("dropping %s record during rebuild: %v", name, err)
				continue
			}
			total++
		}
		if err := sess.Commit(); err != nil {
			return err
		}
	}

	log.Infof("schema reloaded, re-indexed %d records", total)
	return nil
}

// dump reads back every stored record of t, scoped by type name so that
// keyless or unisolated types never pick up each other's documents.
func (e *Engine) dump(t *Table) ([]fieldmap.Record, error) {
	count, err := e.prov.DocCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	model := translate.QueryModel{Body: []translate.Clause{
		translate.WhereClause{Query: t.TypeQuery()},
	}}
	res, err := provider.Query(context.Background(), e.prov, t, model, provider.QueryOptions{Limit: int(count)})
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

func sameFingerprints(a, b map[string]*Table) bool {
	if len(a) != len(b) {
		return false
	}
	for name, t := range a {
		o, ok := b[name]
		if !ok || o.Fingerprint() != t.Fingerprint() {
			return false
		}
	}
	return true
}
