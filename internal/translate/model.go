// Package translate turns an abstract query model into the bleve query,
// sort order, isolation filter and document tracker used to execute it.
package translate

import (
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
)

type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// Ordering sorts on one mapped property.
type Ordering struct {
	Property  string
	Direction Direction
}

// Clause is one body clause of a QueryModel.
type Clause interface {
	clause()
}

type FromClause struct {
	TypeName string
}

type OrderByClause struct {
	Orderings []Ordering
}

// WhereClause restricts results with an already built query. Several where
// clauses are combined as a conjunction.
type WhereClause struct {
	Query query.Query
}

// TrackDocumentsClause binds a tracker invoked for every retrieved item.
type TrackDocumentsClause struct {
	Tracker any
}

// ScoreClause rewraps the final query, typically with scoring.Wrap.
type ScoreClause struct {
	Wrap func(query.Query) query.Query
}

// SelectClause names the stored fields to load. Empty means all.
type SelectClause struct {
	Fields []string
}

func (OrderByClause) clause()        {}
func (WhereClause) clause()          {}
func (TrackDocumentsClause) clause() {}
func (ScoreClause) clause()          {}

type QueryModel struct {
	From   FromClause
	Body   []Clause
	Select *SelectClause
}

// NativeQueryModel is the translator output. Sort is never empty.
type NativeQueryModel struct {
	Query           query.Query
	Sort            search.SortOrder
	Filter          query.Query
	DocumentTracker any
	Fields          []string
}

// Combined returns Query restricted by Filter. The filter only selects
// documents; it contributes nothing to the score.
func (m *NativeQueryModel) Combined() query.Query {
	if m.Filter == nil {
		return m.Query
	}
	q := query.NewBooleanQuery([]query.Query{m.Query}, nil, nil)
	q.AddFilter(m.Filter)
	return q
}
