// Package fieldmap derives, for each mapped type, how every property is
// stored, indexed, analyzed and converted, and turns values of that type into
// bleve documents and back.
package fieldmap

import "fmt"

// TypeField is the document field bleve reads to pick a document mapping.
const TypeField = "_type"

type StoreMode int

const (
	StoreYes StoreMode = iota
	StoreNo
)

func (s StoreMode) String() string {
	if s == StoreNo {
		return "no"
	}
	return "yes"
}

type IndexMode int

const (
	IndexAnalyzed IndexMode = iota
	IndexNotAnalyzed
	IndexNotAnalyzedNoNorms
	IndexNotIndexed
)

func (m IndexMode) String() string {
	switch m {
	case IndexNotAnalyzed:
		return "not_analyzed"
	case IndexNotAnalyzedNoNorms:
		return "not_analyzed_no_norms"
	case IndexNotIndexed:
		return "not_indexed"
	default:
		return "analyzed"
	}
}

type TermVectorMode int

const (
	TermVectorNo TermVectorMode = iota
	TermVectorPositions
	TermVectorOffsets
	TermVectorPositionsAndOffsets
)

func (m TermVectorMode) String() string {
	switch m {
	case TermVectorPositions:
		return "positions"
	case TermVectorOffsets:
		return "offsets"
	case TermVectorPositionsAndOffsets:
		return "positions_offsets"
	default:
		return "no"
	}
}

type Operator int

const (
	OperatorOr Operator = iota
	OperatorAnd
)

func (o Operator) String() string {
	if o == OperatorAnd {
		return "and"
	}
	return "or"
}

type Role int

const (
	RoleField Role = iota
	RoleKey
	RoleScore
	RoleBoost
)

func (r Role) String() string {
	switch r {
	case RoleKey:
		return "key"
	case RoleScore:
		return "score"
	case RoleBoost:
		return "boost"
	default:
		return "field"
	}
}

// ParseIndexMode accepts the names produced by IndexMode.String.
func ParseIndexMode(s string) (IndexMode, error) {
	for m := IndexAnalyzed; m <= IndexNotIndexed; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return IndexAnalyzed, fmt.Errorf("unknown index mode %q", s)
}

func ParseTermVectorMode(s string) (TermVectorMode, error) {
	for m := TermVectorNo; m <= TermVectorPositionsAndOffsets; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return TermVectorNo, fmt.Errorf("unknown term vector mode %q", s)
}

func ParseOperator(s string) (Operator, error) {
	switch s {
	case "and", "AND":
		return OperatorAnd, nil
	case "or", "OR":
		return OperatorOr, nil
	}
	return OperatorOr, fmt.Errorf("unknown operator %q", s)
}

// Document is the field-name keyed form of one indexed value. Multi-valued
// fields hold []any.
type Document map[string]any

// Values returns the values stored under field as a slice.
func (d Document) Values(field string) []any {
	raw, ok := d[field]
	if !ok || raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case []any:
		return v
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case []float64:
		out := make([]any, len(v))
		for i, f := range v {
			out[i] = f
		}
		return out
	}
	return []any{raw}
}

// First returns the first value stored under field.
func (d Document) First(field string) (any, bool) {
	vals := d.Values(field)
	if len(vals) == 0 {
		return nil, false
	}
	return vals[0], true
}

// Hit carries per-result engine data copied onto mapped objects.
type Hit struct {
	ID    string
	Score float64
}

// DocumentTracker is notified of every item materialized from a search.
type DocumentTracker[T any] interface {
	TrackRetrieved(item *T, hit Hit)
}

// TrackerFunc adapts a function to DocumentTracker.
type TrackerFunc[T any] func(item *T, hit Hit)

func (f TrackerFunc[T]) TrackRetrieved(item *T, hit Hit) {
	f(item, hit)
}

// Record is a schema-driven mapped value.
type Record map[string]any
