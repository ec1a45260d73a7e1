package provider

import (
	"context"
	"time"

	"github.com/AvengeMedia/dankquery/internal/errdefs"
	"github.com/AvengeMedia/dankquery/internal/fieldmap"
	"github.com/AvengeMedia/dankquery/internal/log"
	"github.com/AvengeMedia/dankquery/internal/scoring"
	"github.com/AvengeMedia/dankquery/internal/sorting"
	"github.com/AvengeMedia/dankquery/internal/translate"
	bleve "github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
)

type QueryOptions struct {
	Limit  int
	Offset int
	// TermVectors asks bleve for term locations of fields mapped with a
	// term vector.
	TermVectors bool
	// SearchAfter holds the sort values of the last hit of the previous page.
	SearchAfter []string
}

type Results[T any] struct {
	Items []T
	Hits  []fieldmap.Hit
	Total uint64
	Took  time.Duration

	sortValues [][]string
	locations  []search.FieldTermLocationMap
}

func (r *Results[T]) Len() int {
	return len(r.Items)
}

// Vectors returns the term locations of hit i, or nil when term vectors were
// not requested.
func (r *Results[T]) Vectors(i int) search.FieldTermLocationMap {
	if i < 0 || i >= len(r.locations) {
		return nil
	}
	return r.locations[i]
}

// SortValues returns the sort keys of hit i, suitable for SearchAfter.
func (r *Results[T]) SortValues(i int) []string {
	if i < 0 || i >= len(r.sortValues) {
		return nil
	}
	return r.sortValues[i]
}

// ScoreBy returns a clause multiplying each candidate's score by score of
// the materialized item.
func ScoreBy[T any](table *fieldmap.Table[T], score func(T) float64) translate.ScoreClause {
	materialize := func(doc fieldmap.Document) (T, error) {
		var item T
		err := table.ToObject(doc, fieldmap.Hit{}, &item)
		return item, err
	}
	return translate.ScoreClause{
		Wrap: func(q query.Query) query.Query {
			return scoring.Wrap(q, materialize, score)
		},
	}
}

// Query translates model against table and materializes the matching page.
func Query[T any](ctx context.Context, p *Provider, table *fieldmap.Table[T], model translate.QueryModel, opts QueryOptions) (*Results[T], error) {
	if model.From.TypeName == "" {
		model.From.TypeName = table.TypeName()
	}
	native, err := translate.Translate(table, p.opts.Settings, model)
	if err != nil {
		return nil, err
	}

	var tracker fieldmap.DocumentTracker[T]
	if native.DocumentTracker != nil {
		t, ok := native.DocumentTracker.(fieldmap.DocumentTracker[T])
		if !ok {
			return nil, errdefs.Newf(errdefs.ErrTypeArgument, "tracker %T does not track %s", native.DocumentTracker, table.TypeName())
		}
		tracker = t
	}

	if opts.Limit <= 0 {
		opts.Limit = 10
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	loose := sorting.HasLoose(native.Sort)
	req := bleve.NewSearchRequestOptions(native.Combined(), opts.Limit, opts.Offset, false)
	if loose {
		req.Size = p.opts.MaxWindow
		req.From = 0
	}
	req.SortByCustom(native.Sort)
	req.IncludeLocations = opts.TermVectors
	req.Fields = native.Fields
	if len(req.Fields) == 0 {
		req.Fields = []string{"*"}
	}

	if len(opts.SearchAfter) > 0 {
		if loose {
			return nil, errdefs.Newf(errdefs.ErrTypeUnsupportedOperation, "search after is not supported with converter-compared sort fields")
		}
		if err := sorting.CheckSearchAfter(native.Sort, opts.SearchAfter); err != nil {
			return nil, err
		}
		req.SearchAfter = opts.SearchAfter
		req.From = 0
	}

	res, err := p.search(ctx, req)
	if err != nil {
		if errdefs.Is(err, errdefs.ErrTypeSearchFailed) {
			return nil, err
		}
		return nil, errdefs.NewCustomError(errdefs.ErrTypeSearchFailed, table.TypeName(), err)
	}

	hits := res.Hits
	if loose {
		sorting.Rerank(native.Sort, hits)
		hits = window(hits, opts.Offset, opts.Limit)
	}

	out := &Results[T]{
		Items: make([]T, len(hits)),
		Hits:  make([]fieldmap.Hit, len(hits)),
		Total: res.Total,
		Took:  res.Took,
	}
	for i, h := range hits {
		hit := fieldmap.Hit{ID: h.ID, Score: h.Score}
		if err := table.ToObject(fieldmap.Document(h.Fields), hit, &out.Items[i]); err != nil {
			return nil, err
		}
		out.Hits[i] = hit
		out.sortValues = append(out.sortValues, sorting.AfterKeys(native.Sort, h))
		if opts.TermVectors {
			out.locations = append(out.locations, h.Locations)
		}
		if tracker != nil {
			tracker.TrackRetrieved(&out.Items[i], hit)
		}
	}

	log.Debugf("query on %s matched %d, returned %d in %s", table.TypeName(), res.Total, len(hits), res.Took)
	return out, nil
}

func (p *Provider) search(ctx context.Context, req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.index == nil {
		return nil, errClosed(errdefs.ErrTypeSearchFailed)
	}
	return p.index.SearchInContext(ctx, req)
}

func window(hits search.DocumentMatchCollection, offset, limit int) search.DocumentMatchCollection {
	if offset >= len(hits) {
		return nil
	}
	end := offset + limit
	if end > len(hits) {
		end = len(hits)
	}
	return hits[offset:end]
}
