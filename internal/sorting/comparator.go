package sorting

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/AvengeMedia/dankquery/internal/errdefs"
	"github.com/AvengeMedia/dankquery/internal/log"
	"github.com/blevesearch/bleve/v2/search"
)

var (
	highKey = strings.Repeat(string(utf8.MaxRune), 3)
	lowKey  = string([]byte{0x00})
)

// FieldComparator implements search.SearchSort over a converter-backed field.
// The embedded SortField supplies anything not overridden here.
type FieldComparator struct {
	*search.SortField

	src   *Source
	field string
	desc  bool
	terms []string

	top    string
	hasTop bool
}

var _ search.SearchSort = (*FieldComparator)(nil)

func newFieldComparator(src *Source, field string, desc bool) *FieldComparator {
	return &FieldComparator{
		SortField: &search.SortField{
			Field: field,
			Desc:  desc,
			Type:  search.SortFieldAsString,
		},
		src:   src,
		field: field,
		desc:  desc,
	}
}

func (c *FieldComparator) Source() *Source {
	return c.src
}

func (c *FieldComparator) UpdateVisitor(field string, term []byte) {
	if field == c.field {
		c.terms = append(c.terms, string(term))
	}
}

// Value returns the sort key for d from the terms visited since the last call.
func (c *FieldComparator) Value(d *search.DocumentMatch) string {
	terms := c.terms
	c.terms = c.terms[:0]

	if len(terms) == 0 {
		return c.missing()
	}

	if c.src.family == FamilyLoose {
		return terms[0]
	}

	var best string
	found := false
	for _, term := range terms {
		k, err := c.src.key(term)
		if err != nil {
			log.Debugf("sort: cannot convert term %q of field %s: %v", term, c.field, err)
			continue
		}
		if !found || (!c.desc && k < best) || (c.desc && k > best) {
			best = k
			found = true
		}
	}
	if !found {
		return c.missing()
	}
	return best
}

func (c *FieldComparator) missing() string {
	if c.desc {
		return lowKey
	}
	return highKey
}

func (c *FieldComparator) DecodeValue(value string) string {
	if value == highKey || value == lowKey {
		return ""
	}
	return c.src.describe(value)
}

func (c *FieldComparator) Descending() bool {
	return c.desc
}

func (c *FieldComparator) RequiresDocID() bool {
	return false
}

func (c *FieldComparator) RequiresScoring() bool {
	return false
}

func (c *FieldComparator) RequiresFields() []string {
	return []string{c.field}
}

func (c *FieldComparator) Reverse() {
	c.desc = !c.desc
	c.SortField.Desc = c.desc
}

func (c *FieldComparator) Copy() search.SearchSort {
	sf := *c.SortField
	return &FieldComparator{
		SortField: &sf,
		src:       c.src,
		field:     c.field,
		desc:      c.desc,
		top:       c.top,
		hasTop:    c.hasTop,
	}
}

// SetTop holds v as the top value for CompareTop. Loose-family comparators
// cannot hold a top value.
func (c *FieldComparator) SetTop(v any) error {
	if c.src.family == FamilyLoose {
		return errdefs.Newf(errdefs.ErrTypeUnsupportedOperation, "top value comparison is not supported for %s", c.src.elem)
	}
	k, err := c.src.keyOf(v)
	if err != nil {
		return err
	}
	c.top = k
	c.hasTop = true
	return nil
}

// SetTopKey holds an already encoded sort key as the top value.
func (c *FieldComparator) SetTopKey(key string) error {
	if c.src.family == FamilyLoose {
		return errdefs.Newf(errdefs.ErrTypeUnsupportedOperation, "top value comparison is not supported for %s", c.src.elem)
	}
	c.top = key
	c.hasTop = true
	return nil
}

// CompareTop compares the top value with the document value held in term,
// honoring the comparator direction.
func (c *FieldComparator) CompareTop(term []byte) (int, error) {
	if c.src.family == FamilyLoose {
		return 0, errdefs.Newf(errdefs.ErrTypeUnsupportedOperation, "top value comparison is not supported for %s", c.src.elem)
	}
	if !c.hasTop {
		return 0, errdefs.Newf(errdefs.ErrTypeArgument, "no top value set on %s", c.field)
	}
	k, err := c.src.key(string(term))
	if err != nil {
		return 0, err
	}
	cmp := strings.Compare(c.top, k)
	if c.desc {
		cmp = -cmp
	}
	return cmp, nil
}

func (c *FieldComparator) compareKeys(a, b string) int {
	if c.src.family != FamilyLoose || a == b {
		return strings.Compare(a, b)
	}
	switch {
	case a == highKey || b == lowKey:
		return 1
	case b == highKey || a == lowKey:
		return -1
	}
	cmp, err := c.src.compareTerms(a, b)
	if err != nil {
		log.Debugf("sort: cannot compare %q and %q on %s: %v", a, b, c.field, err)
		return strings.Compare(a, b)
	}
	return cmp
}

// HasLoose reports whether order contains a loose-family comparator.
func HasLoose(order search.SortOrder) bool {
	for _, s := range order {
		if fc, ok := s.(*FieldComparator); ok && fc.src.family == FamilyLoose {
			return true
		}
	}
	return false
}

// CheckSearchAfter validates that every comparator in order accepts a held
// top value, binding the given keys to the comparators.
func CheckSearchAfter(order search.SortOrder, after []string) error {
	if len(after) == 0 {
		return nil
	}
	if len(after) != len(order) {
		return errdefs.Newf(errdefs.ErrTypeArgument, "search after has %d values for %d sort fields", len(after), len(order))
	}
	for i, s := range order {
		if fc, ok := s.(*FieldComparator); ok {
			if err := fc.SetTopKey(after[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Rerank reorders hits by order, using CompareTo for loose-family positions.
// Hits must carry the sort values produced by the same order.
func Rerank(order search.SortOrder, hits search.DocumentMatchCollection) {
	if !HasLoose(order) {
		return
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return compareHits(order, hits[i], hits[j]) < 0
	})
}

func compareHits(order search.SortOrder, a, b *search.DocumentMatch) int {
	for x, s := range order {
		c := 0
		switch {
		case s.RequiresScoring():
			switch {
			case a.Score < b.Score:
				c = -1
			case a.Score > b.Score:
				c = 1
			}
		case x < len(a.Sort) && x < len(b.Sort):
			if fc, ok := s.(*FieldComparator); ok {
				c = fc.compareKeys(a.Sort[x], b.Sort[x])
			} else {
				c = strings.Compare(a.Sort[x], b.Sort[x])
			}
		}
		if c == 0 {
			continue
		}
		if s.Descending() {
			c = -c
		}
		return c
	}
	return 0
}

// AfterKeys returns the sort values of d in the form SearchAfter expects.
// Native field sorts report their decoded value because bleve prefix-codes
// numeric and date SearchAfter values itself; comparator keys pass through
// unchanged.
func AfterKeys(order search.SortOrder, d *search.DocumentMatch) []string {
	out := make([]string, len(d.Sort))
	copy(out, d.Sort)
	for i, s := range order {
		if i >= len(out) || i >= len(d.DecodedSort) {
			break
		}
		switch s.(type) {
		case *search.SortField, *search.SortGeoDistance:
			out[i] = d.DecodedSort[i]
		}
	}
	return out
}
