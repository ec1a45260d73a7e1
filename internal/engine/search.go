package engine

import (
	"context"
	"strings"
	"time"

	"github.com/AvengeMedia/dankquery/internal/errdefs"
	"github.com/AvengeMedia/dankquery/internal/fieldmap"
	"github.com/AvengeMedia/dankquery/internal/numeric"
	"github.com/AvengeMedia/dankquery/internal/provider"
	"github.com/AvengeMedia/dankquery/internal/translate"
	bleve "github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
)

// Request is a search over one record type.
type Request struct {
	Type        string   `json:"type"`
	// Query is a bleve query string. Empty matches every record.
	Query       string   `json:"query,omitempty"`
	// Where holds "prop=value" equality restrictions.
	Where       []string `json:"where,omitempty"`
	// Ranges holds "prop:lower..upper" restrictions; either side may be empty.
	Ranges      []string `json:"ranges,omitempty"`
	// Order holds property names, "-" prefixed for descending.
	Order       []string `json:"order,omitempty"`
	Fields      []string `json:"fields,omitempty"`
	Limit       int      `json:"limit,omitempty"`
	Offset      int      `json:"offset,omitempty"`
	TermVectors bool     `json:"term_vectors,omitempty"`
	SearchAfter []string `json:"search_after,omitempty"`
}

type Hit struct {
	ID      string                      `json:"id"`
	Score   float64                     `json:"score"`
	Record  fieldmap.Record             `json:"record"`
	Sort    []string                    `json:"sort,omitempty"`
	Vectors search.FieldTermLocationMap `json:"vectors,omitempty"`
}

type Response struct {
	Type  string        `json:"type"`
	Total uint64        `json:"total"`
	Took  time.Duration `json:"took"`
	Hits  []Hit         `json:"hits"`
}

func (e *Engine) Search(ctx context.Context, req Request) (*Response, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	t, err := e.table(req.Type)
	if err != nil {
		return nil, err
	}
	model, err := buildModel(t, req)
	if err != nil {
		return nil, err
	}

	res, err := provider.Query(ctx, e.prov, t, model, provider.QueryOptions{
		Limit:       e.cfg.ClampLimit(req.Limit),
		Offset:      req.Offset,
		TermVectors: req.TermVectors,
		SearchAfter: req.SearchAfter,
	})
	if err != nil {
		return nil, err
	}

	out := &Response{
		Type:  req.Type,
		Total: res.Total,
		Took:  res.Took,
		Hits:  make([]Hit, res.Len()),
	}
	for i, item := range res.Items {
		out.Hits[i] = Hit{
			ID:      res.Hits[i].ID,
			Score:   res.Hits[i].Score,
			Record:  item,
			Sort:    res.SortValues(i),
			Vectors: res.Vectors(i),
		}
	}
	return out, nil
}

func buildModel(t *Table, req Request) (translate.QueryModel, error) {
	model := translate.QueryModel{From: translate.FromClause{TypeName: req.Type}}

	if q := strings.TrimSpace(req.Query); q != "" {
		model.Body = append(model.Body, translate.WhereClause{Query: bleve.NewQueryStringQuery(q)})
	}

	for _, w := range req.Where {
		prop, raw, ok := strings.Cut(w, "=")
		if !ok {
			return model, errdefs.Newf(errdefs.ErrTypeArgument, "where %q is not prop=value", w)
		}
		fi, err := t.GetMappingInfo(strings.TrimSpace(prop))
		if err != nil {
			return model, err
		}
		v, err := fi.ParseValue(raw)
		if err != nil {
			return model, err
		}
		q, err := fi.Query(v)
		if err != nil {
			return model, err
		}
		model.Body = append(model.Body, translate.WhereClause{Query: q})
	}

	for _, r := range req.Ranges {
		clause, err := rangeClause(t, r)
		if err != nil {
			return model, err
		}
		model.Body = append(model.Body, clause)
	}

	if len(req.Order) > 0 {
		ob := translate.OrderByClause{}
		for _, o := range req.Order {
			ord := translate.Ordering{Property: o, Direction: translate.Ascending}
			if strings.HasPrefix(o, "-") {
				ord = translate.Ordering{Property: o[1:], Direction: translate.Descending}
			}
			ob.Orderings = append(ob.Orderings, ord)
		}
		model.Body = append(model.Body, ob)
	}

	if len(req.Fields) > 0 {
		model.Select = &translate.SelectClause{Fields: req.Fields}
	}
	return model, nil
}

func rangeClause(t *Table, r string) (translate.WhereClause, error) {
	prop, bounds, ok := strings.Cut(r, ":")
	if !ok {
		return translate.WhereClause{}, errdefs.Newf(errdefs.ErrTypeArgument, "range %q is not prop:lower..upper", r)
	}
	lo, hi, ok := strings.Cut(bounds, "..")
	if !ok {
		return translate.WhereClause{}, errdefs.Newf(errdefs.ErrTypeArgument, "range %q is not prop:lower..upper", r)
	}
	fi, err := t.GetMappingInfo(strings.TrimSpace(prop))
	if err != nil {
		return translate.WhereClause{}, err
	}

	var lower, upper any
	if lo != "" {
		if lower, err = fi.ParseValue(lo); err != nil {
			return translate.WhereClause{}, err
		}
	}
	if hi != "" {
		if upper, err = fi.ParseValue(hi); err != nil {
			return translate.WhereClause{}, err
		}
	}
	q, err := fi.RangeQuery(lower, upper, numeric.Inclusive, numeric.Inclusive)
	if err != nil {
		return translate.WhereClause{}, err
	}
	return translate.WhereClause{Query: q}, nil
}
