// Package scoring rescales the relevance score of a bleve query with a
// function of the materialized document.
package scoring

import (
	"context"

	"github.com/AvengeMedia/dankquery/internal/errdefs"
	"github.com/AvengeMedia/dankquery/internal/fieldmap"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
	index "github.com/blevesearch/bleve_index_api"
)

// Query wraps a sub-query. Every candidate the sub-query matches is loaded
// from its stored fields, materialized, and its score multiplied by Score.
type Query[T any] struct {
	sub         query.Query
	materialize func(fieldmap.Document) (T, error)
	score       func(T) float64
}

// Wrap builds a scoring query. materialize runs once per candidate and may
// run for documents that never reach the final page.
func Wrap[T any](sub query.Query, materialize func(fieldmap.Document) (T, error), score func(T) float64) *Query[T] {
	return &Query[T]{sub: sub, materialize: materialize, score: score}
}

func (q *Query[T]) Sub() query.Query {
	return q.sub
}

func (q *Query[T]) Searcher(ctx context.Context, i index.IndexReader, m mapping.IndexMapping, options search.SearcherOptions) (search.Searcher, error) {
	s, err := q.sub.Searcher(ctx, i, m, options)
	if err != nil {
		return nil, err
	}
	return &searcher[T]{Searcher: s, reader: i, q: q}, nil
}

type searcher[T any] struct {
	search.Searcher
	reader index.IndexReader
	q      *Query[T]
}

func (s *searcher[T]) Next(ctx *search.SearchContext) (*search.DocumentMatch, error) {
	dm, err := s.Searcher.Next(ctx)
	if err != nil || dm == nil {
		return dm, err
	}
	return dm, s.rescore(dm)
}

func (s *searcher[T]) Advance(ctx *search.SearchContext, id index.IndexInternalID) (*search.DocumentMatch, error) {
	dm, err := s.Searcher.Advance(ctx, id)
	if err != nil || dm == nil {
		return dm, err
	}
	return dm, s.rescore(dm)
}

func (s *searcher[T]) rescore(dm *search.DocumentMatch) error {
	doc, err := LoadDocument(s.reader, dm.IndexInternalID)
	if err != nil {
		return err
	}
	v, err := s.q.materialize(doc)
	if err != nil {
		return errdefs.NewCustomError(errdefs.ErrTypeSearchFailed, "materialize candidate", err)
	}
	dm.Score *= s.q.score(v)
	return nil
}

type numberField interface {
	Number() (float64, error)
}

type textField interface {
	Text() string
}

type boolField interface {
	Boolean() (bool, error)
}

// LoadDocument reads the stored fields of an internal document ID.
// Repeated field names collapse into a []any.
func LoadDocument(r index.IndexReader, id index.IndexInternalID) (fieldmap.Document, error) {
	extID, err := r.ExternalID(id)
	if err != nil {
		return nil, errdefs.NewCustomError(errdefs.ErrTypeSearchFailed, "resolve document id", err)
	}
	stored, err := r.Document(extID)
	if err != nil {
		return nil, errdefs.NewCustomError(errdefs.ErrTypeSearchFailed, "load document "+extID, err)
	}

	doc := fieldmap.Document{}
	if stored == nil {
		return doc, nil
	}
	stored.VisitFields(func(f index.Field) {
		var v any
		switch x := f.(type) {
		case numberField:
			n, err := x.Number()
			if err != nil {
				return
			}
			v = n
		case boolField:
			b, err := x.Boolean()
			if err != nil {
				return
			}
			v = b
		case textField:
			v = x.Text()
		default:
			v = string(f.Value())
		}

		name := f.Name()
		switch prev := doc[name].(type) {
		case nil:
			doc[name] = v
		case []any:
			doc[name] = append(prev, v)
		default:
			doc[name] = []any{prev, v}
		}
	})
	return doc, nil
}
