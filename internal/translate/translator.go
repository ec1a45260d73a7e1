package translate

import (
	"github.com/AvengeMedia/dankquery/internal/errdefs"
	"github.com/AvengeMedia/dankquery/internal/fieldmap"
	"github.com/AvengeMedia/dankquery/internal/log"
	bleve "github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
)

// MappingProvider resolves properties of the queried type.
type MappingProvider interface {
	GetMappingInfo(prop string) (fieldmap.FieldInfo, error)
	Keys() []fieldmap.KeyInfo
}

type Settings struct {
	// EnableMultipleEntities restricts queries to documents carrying the
	// type's key fields, for indexes shared by several types.
	EnableMultipleEntities bool
}

type State int

const (
	StateIdle State = iota
	StateCollecting
	StateBuilt
)

func (s State) String() string {
	switch s {
	case StateCollecting:
		return "collecting"
	case StateBuilt:
		return "built"
	default:
		return "idle"
	}
}

// Translator accumulates clauses in visitation order. It is single use.
type Translator struct {
	mapping  MappingProvider
	settings Settings
	state    State

	sort    search.SortOrder
	sortSet bool
	where   []query.Query
	wrap    []func(query.Query) query.Query
	tracker any
}

func NewTranslator(m MappingProvider, settings Settings) *Translator {
	return &Translator{
		mapping:  m,
		settings: settings,
		sort:     defaultSort(),
	}
}

func defaultSort() search.SortOrder {
	return search.SortOrder{&search.SortScore{Desc: true}}
}

func (t *Translator) State() State {
	return t.state
}

func (t *Translator) collect() error {
	if t.state == StateBuilt {
		return errdefs.Newf(errdefs.ErrTypeArgument, "translator already built")
	}
	t.state = StateCollecting
	return nil
}

// VisitOrderByClause appends one sort field per ordering. The first one
// replaces the default relevance sort.
func (t *Translator) VisitOrderByClause(c OrderByClause) error {
	if err := t.collect(); err != nil {
		return err
	}
	for _, o := range c.Orderings {
		fi, err := t.mapping.GetMappingInfo(o.Property)
		if err != nil {
			return err
		}
		sf, err := fi.SortField(o.Direction == Descending)
		if err != nil {
			return err
		}
		if !t.sortSet {
			t.sort = search.SortOrder{}
			t.sortSet = true
		}
		t.sort = append(t.sort, sf)
	}
	return nil
}

func (t *Translator) VisitTrackDocumentsClause(c TrackDocumentsClause) error {
	if err := t.collect(); err != nil {
		return err
	}
	t.tracker = c.Tracker
	return nil
}

func (t *Translator) VisitWhereClause(c WhereClause) error {
	if err := t.collect(); err != nil {
		return err
	}
	if c.Query == nil {
		return errdefs.Newf(errdefs.ErrTypeArgument, "where clause has no query")
	}
	t.where = append(t.where, c.Query)
	return nil
}

func (t *Translator) VisitScoreClause(c ScoreClause) error {
	if err := t.collect(); err != nil {
		return err
	}
	if c.Wrap != nil {
		t.wrap = append(t.wrap, c.Wrap)
	}
	return nil
}

// Build visits the body of model and finalizes the native model.
func (t *Translator) Build(model QueryModel) (*NativeQueryModel, error) {
	if t.state == StateBuilt {
		return nil, errdefs.Newf(errdefs.ErrTypeArgument, "translator already built")
	}
	if named, ok := t.mapping.(interface{ TypeName() string }); ok && model.From.TypeName != "" && named.TypeName() != model.From.TypeName {
		return nil, errdefs.Newf(errdefs.ErrTypeArgument, "query targets %s but mapping is for %s", model.From.TypeName, named.TypeName())
	}

	for _, c := range model.Body {
		var err error
		switch c := c.(type) {
		case OrderByClause:
			err = t.VisitOrderByClause(c)
		case WhereClause:
			err = t.VisitWhereClause(c)
		case TrackDocumentsClause:
			err = t.VisitTrackDocumentsClause(c)
		case ScoreClause:
			err = t.VisitScoreClause(c)
		default:
			err = errdefs.Newf(errdefs.ErrTypeArgument, "unsupported clause %T", c)
		}
		if err != nil {
			return nil, err
		}
	}

	out := &NativeQueryModel{
		Query:           t.query(),
		Sort:            t.sort,
		Filter:          t.filter(),
		DocumentTracker: t.tracker,
	}
	if model.Select != nil {
		out.Fields = append(out.Fields, model.Select.Fields...)
	}
	t.state = StateBuilt

	log.Debugf("Translated %s query: %d sort fields, filter=%t", model.From.TypeName, len(out.Sort), out.Filter != nil)
	return out, nil
}

func (t *Translator) query() query.Query {
	var q query.Query
	switch len(t.where) {
	case 0:
		q = bleve.NewMatchAllQuery()
	case 1:
		q = t.where[0]
	default:
		q = bleve.NewConjunctionQuery(t.where...)
	}
	for _, w := range t.wrap {
		q = w(q)
	}
	return q
}

// filter requires every key field to exist, or to equal the key's fixed value.
func (t *Translator) filter() query.Query {
	if !t.settings.EnableMultipleEntities {
		return nil
	}

	var conjuncts []query.Query
	for _, k := range t.mapping.Keys() {
		if v, ok := k.Constraint(); ok {
			tq := bleve.NewTermQuery(v)
			tq.SetField(k.FieldName())
			conjuncts = append(conjuncts, tq)
			continue
		}
		wq := bleve.NewWildcardQuery("*")
		wq.SetField(k.FieldName())
		conjuncts = append(conjuncts, wq)
	}

	switch len(conjuncts) {
	case 0:
		return nil
	case 1:
		return conjuncts[0]
	}
	return bleve.NewConjunctionQuery(conjuncts...)
}

// Translate runs a fresh translator over model.
func Translate(m MappingProvider, settings Settings, model QueryModel) (*NativeQueryModel, error) {
	return NewTranslator(m, settings).Build(model)
}
