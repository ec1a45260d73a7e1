package provider

import (
	"github.com/AvengeMedia/dankquery/internal/errdefs"
	"github.com/AvengeMedia/dankquery/internal/fieldmap"
	"github.com/AvengeMedia/dankquery/internal/log"
	bleve "github.com/blevesearch/bleve/v2"
)

// Session buffers writes of one mapped type until Commit.
type Session[T any] struct {
	p     *Provider
	table *fieldmap.Table[T]
	batch *bleve.Batch
	ops   int
}

// OpenSession starts a write session. table must be one the provider was
// opened with.
func OpenSession[T any](p *Provider, table *fieldmap.Table[T]) (*Session[T], error) {
	if p.opts.ReadOnly {
		return nil, errdefs.ErrReadOnly
	}
	known, ok := p.tables[table.TypeName()]
	if !ok {
		return nil, errdefs.Newf(errdefs.ErrTypeArgument, "type %s is not registered with the provider", table.TypeName())
	}
	if known.Fingerprint() != table.Fingerprint() {
		return nil, errdefs.Newf(errdefs.ErrTypeMappingDrift, "mapping of %s differs from the one the provider was opened with", table.TypeName())
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.index == nil {
		return nil, errClosed(errdefs.ErrTypeIndexingFailed)
	}
	return &Session[T]{p: p, table: table, batch: p.index.NewBatch()}, nil
}

// Add queues items for indexing. Items sharing a key replace each other.
func (s *Session[T]) Add(items ...*T) error {
	for _, item := range items {
		doc, err := s.table.ToDocument(item)
		if err != nil {
			return err
		}
		id, err := s.table.DocumentID(item)
		if err != nil {
			return err
		}
		if err := s.batch.Index(id, map[string]any(doc)); err != nil {
			return errdefs.NewCustomError(errdefs.ErrTypeIndexingFailed, id, err)
		}
		s.ops++
	}
	return nil
}

// Delete queues removal of the documents keyed like items.
func (s *Session[T]) Delete(items ...*T) error {
	if !hasPropertyKeys(s.table) {
		return errdefs.Newf(errdefs.ErrTypeArgument, "type %s has no key properties", s.table.TypeName())
	}
	for _, item := range items {
		id, err := s.table.DocumentID(item)
		if err != nil {
			return err
		}
		s.batch.Delete(id)
		s.ops++
	}
	return nil
}

func (s *Session[T]) DeleteID(ids ...string) {
	for _, id := range ids {
		s.batch.Delete(id)
		s.ops++
	}
}

func (s *Session[T]) Pending() int {
	return s.ops
}

// Commit applies every queued operation as one batch.
func (s *Session[T]) Commit() error {
	if s.ops == 0 {
		return nil
	}

	if err := s.apply(); err != nil {
		return err
	}

	log.Debugf("committed %d operations on %s", s.ops, s.table.TypeName())
	s.batch.Reset()
	s.ops = 0
	return nil
}

func (s *Session[T]) apply() error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if s.p.index == nil {
		return errClosed(errdefs.ErrTypeIndexingFailed)
	}
	if err := s.p.index.Batch(s.batch); err != nil {
		return errdefs.NewCustomError(errdefs.ErrTypeIndexingFailed, "commit failed", err)
	}
	return nil
}

func (s *Session[T]) Rollback() {
	s.batch.Reset()
	s.ops = 0
}

// Put indexes items in a single implicit session.
func Put[T any](p *Provider, table *fieldmap.Table[T], items ...*T) error {
	s, err := OpenSession(p, table)
	if err != nil {
		return err
	}
	if err := s.Add(items...); err != nil {
		return err
	}
	return s.Commit()
}

// Delete removes items in a single implicit session.
func Delete[T any](p *Provider, table *fieldmap.Table[T], items ...*T) error {
	s, err := OpenSession(p, table)
	if err != nil {
		return err
	}
	if err := s.Delete(items...); err != nil {
		return err
	}
	return s.Commit()
}

func hasPropertyKeys(t fieldmap.TypeMapping) bool {
	for _, k := range t.Keys() {
		if _, fixed := k.Constraint(); !fixed {
			return true
		}
	}
	return false
}
