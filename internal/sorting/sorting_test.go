package sorting

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/AvengeMedia/dankquery/internal/convert"
	"github.com/AvengeMedia/dankquery/internal/errdefs"
	bleve "github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type priority int

var priorityNames = map[string]priority{"low": 1, "medium": 2, "high": 3}

func (p priority) String() string {
	for name, v := range priorityNames {
		if v == p {
			return name
		}
	}
	return "unknown"
}

type ticket struct {
	p priority
}

func (t ticket) CompareTo(other any) int {
	o := other.(ticket)
	return int(t.p) - int(o.p)
}

type ticketConverter struct{}

func (ticketConverter) ConvertToString(v any) (string, error) { return v.(ticket).p.String(), nil }
func (ticketConverter) ConvertFromString(s string) (any, error) {
	p, ok := priorityNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown priority %q", s)
	}
	return ticket{p: p}, nil
}

type release struct {
	major, minor int
}

func (r release) SortKey() string { return fmt.Sprintf("%04d.%04d", r.major, r.minor) }

type releaseConverter struct{}

func (releaseConverter) ConvertToString(v any) (string, error) {
	r := v.(release)
	return fmt.Sprintf("%d.%d", r.major, r.minor), nil
}

func (releaseConverter) ConvertFromString(s string) (any, error) {
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("bad release %q", s)
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, err
	}
	minor, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, err
	}
	return release{major, minor}, nil
}

func intSource(t *testing.T) *Source {
	t.Helper()
	conv, err := convert.NewTextConverter(reflect.TypeOf(0))
	require.NoError(t, err)
	src, err := NewSource(reflect.TypeOf(0), conv)
	require.NoError(t, err)
	return src
}

func valueOf(c *FieldComparator, terms ...string) string {
	for _, term := range terms {
		c.UpdateVisitor(c.field, []byte(term))
	}
	return c.Value(&search.DocumentMatch{})
}

func TestNewSource(t *testing.T) {
	src, err := NewSource(reflect.TypeOf(release{}), releaseConverter{})
	require.NoError(t, err)
	assert.Equal(t, FamilyOrdered, src.Family())

	src, err = NewSource(reflect.TypeOf(ticket{}), ticketConverter{})
	require.NoError(t, err)
	assert.Equal(t, FamilyLoose, src.Family())

	_, err = NewSource(reflect.TypeOf(struct{ A int }{}), releaseConverter{})
	assert.True(t, errdefs.Is(err, errdefs.ErrTypeConfiguration))

	_, err = NewSource(reflect.TypeOf(0), nil)
	assert.True(t, errdefs.Is(err, errdefs.ErrTypeConfiguration))
}

func TestFieldComparator_NumericKeys(t *testing.T) {
	c := intSource(t).Comparator("n", false)

	k9 := valueOf(c, "9")
	k10 := valueOf(c, "10")
	k100 := valueOf(c, "100")
	kneg := valueOf(c, "-3")

	assert.Less(t, kneg, k9)
	assert.Less(t, k9, k10)
	assert.Less(t, k10, k100)
	assert.Equal(t, "10", c.DecodeValue(k10))
}

func TestFieldComparator_ValueResetsTerms(t *testing.T) {
	c := intSource(t).Comparator("n", false)

	first := valueOf(c, "5", "2", "8")
	assert.Equal(t, valueOf(c, "2"), first, "ascending picks the smallest value")

	assert.Equal(t, highKey, c.Value(&search.DocumentMatch{}), "missing sorts last")

	c.UpdateVisitor("other", []byte("1"))
	assert.Equal(t, highKey, c.Value(&search.DocumentMatch{}), "other fields are ignored")
}

func TestFieldComparator_Descending(t *testing.T) {
	c := intSource(t).Comparator("n", true)

	assert.True(t, c.Descending())
	assert.Equal(t, valueOf(c, "8"), valueOf(c, "5", "8", "2"))
	assert.Equal(t, lowKey, c.Value(&search.DocumentMatch{}))

	c.Reverse()
	assert.False(t, c.Descending())

	cp := c.Copy().(*FieldComparator)
	cp.Reverse()
	assert.False(t, c.Descending(), "copy is independent")
	assert.Equal(t, []string{"n"}, c.RequiresFields())
	assert.False(t, c.RequiresScoring())
	assert.False(t, c.RequiresDocID())
}

func TestFieldComparator_TimeKeys(t *testing.T) {
	conv := convert.NewDateTimeConverter("")
	src, err := NewSource(reflect.TypeOf(time.Time{}), conv)
	require.NoError(t, err)
	c := src.Comparator("at", false)

	early := valueOf(c, "1999-12-31T23:59:59")
	late := valueOf(c, "2000-01-01T00:00:00")
	assert.Less(t, early, late)
	assert.Equal(t, "2000-01-01T00:00:00Z", c.DecodeValue(late))
}

func TestFieldComparator_SortKeyer(t *testing.T) {
	src, err := NewSource(reflect.TypeOf(release{}), releaseConverter{})
	require.NoError(t, err)
	c := src.Comparator("v", false)

	assert.Less(t, valueOf(c, "1.9"), valueOf(c, "1.10"))
	assert.Less(t, valueOf(c, "1.10"), valueOf(c, "2.0"))
}

func TestFieldComparator_CompareTop(t *testing.T) {
	c := intSource(t).Comparator("n", false)

	_, err := c.CompareTop([]byte("3"))
	assert.True(t, errdefs.Is(err, errdefs.ErrTypeArgument))

	require.NoError(t, c.SetTop(10))

	cmp, err := c.CompareTop([]byte("3"))
	require.NoError(t, err)
	assert.Positive(t, cmp)

	cmp, err = c.CompareTop([]byte("10"))
	require.NoError(t, err)
	assert.Zero(t, cmp)

	desc := intSource(t).Comparator("n", true)
	require.NoError(t, desc.SetTop(10))
	cmp, err = desc.CompareTop([]byte("3"))
	require.NoError(t, err)
	assert.Negative(t, cmp)
}

func TestFieldComparator_LooseTopUnsupported(t *testing.T) {
	src, err := NewSource(reflect.TypeOf(ticket{}), ticketConverter{})
	require.NoError(t, err)
	c := src.Comparator("p", false)

	err = c.SetTop(ticket{p: 1})
	assert.True(t, errdefs.Is(err, errdefs.ErrTypeUnsupportedOperation))

	_, err = c.CompareTop([]byte("low"))
	assert.True(t, errdefs.Is(err, errdefs.ErrTypeUnsupportedOperation))

	err = CheckSearchAfter(search.SortOrder{c}, []string{"low"})
	assert.True(t, errdefs.Is(err, errdefs.ErrTypeUnsupportedOperation))
}

func TestCheckSearchAfter(t *testing.T) {
	c := intSource(t).Comparator("n", false)
	order := search.SortOrder{c, &search.SortScore{Desc: true}}

	assert.NoError(t, CheckSearchAfter(order, nil))
	assert.True(t, errdefs.Is(CheckSearchAfter(order, []string{"x"}), errdefs.ErrTypeArgument))
	assert.NoError(t, CheckSearchAfter(order, []string{valueOf(c, "4"), "1.0"}))
	assert.True(t, c.hasTop)
}

func TestAfterKeys(t *testing.T) {
	c := intSource(t).Comparator("n", false)
	key := valueOf(c, "4")
	num := &search.SortField{Field: "pages", Type: search.SortFieldAsNumber}
	order := search.SortOrder{num, c, &search.SortScore{Desc: true}}

	d := &search.DocumentMatch{
		Sort:        []string{"\x20\x01@\x00", key, "1.5"},
		DecodedSort: []string{"2", c.DecodeValue(key), "1.5"},
	}
	assert.Equal(t, []string{"2", key, "1.5"}, AfterKeys(order, d))
}

func TestRerank_Loose(t *testing.T) {
	src, err := NewSource(reflect.TypeOf(ticket{}), ticketConverter{})
	require.NoError(t, err)
	c := src.Comparator("p", false)

	hits := search.DocumentMatchCollection{
		{ID: "a", Sort: []string{valueOf(c, "high")}},
		{ID: "b", Sort: []string{valueOf(c, "low")}},
		{ID: "c", Sort: []string{c.Value(&search.DocumentMatch{})}},
		{ID: "d", Sort: []string{valueOf(c, "medium")}},
	}

	Rerank(search.SortOrder{c}, hits)
	assert.Equal(t, []string{"b", "d", "a", "c"}, hitIDs(hits))

	desc := src.Comparator("p", true)
	hits = search.DocumentMatchCollection{
		{ID: "a", Sort: []string{valueOf(desc, "low")}},
		{ID: "b", Sort: []string{desc.Value(&search.DocumentMatch{})}},
		{ID: "c", Sort: []string{valueOf(desc, "high")}},
	}
	Rerank(search.SortOrder{desc}, hits)
	assert.Equal(t, []string{"c", "a", "b"}, hitIDs(hits))
}

func TestRerank_TieBreakOnScore(t *testing.T) {
	src, err := NewSource(reflect.TypeOf(ticket{}), ticketConverter{})
	require.NoError(t, err)
	c := src.Comparator("p", false)

	hits := search.DocumentMatchCollection{
		{ID: "a", Score: 1, Sort: []string{valueOf(c, "low"), "_"}},
		{ID: "b", Score: 3, Sort: []string{valueOf(c, "low"), "_"}},
		{ID: "c", Score: 2, Sort: []string{valueOf(c, "high"), "_"}},
	}
	Rerank(search.SortOrder{c, &search.SortScore{Desc: true}}, hits)
	assert.Equal(t, []string{"b", "a", "c"}, hitIDs(hits))
}

func TestRerank_NoLooseIsNoop(t *testing.T) {
	c := intSource(t).Comparator("n", false)
	hits := search.DocumentMatchCollection{
		{ID: "z", Sort: []string{"b"}},
		{ID: "y", Sort: []string{"a"}},
	}
	Rerank(search.SortOrder{c}, hits)
	assert.Equal(t, []string{"z", "y"}, hitIDs(hits))
}

func hitIDs(hits search.DocumentMatchCollection) []string {
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	return ids
}

func TestFieldComparator_WithIndex(t *testing.T) {
	m := bleve.NewIndexMapping()
	doc := bleve.NewDocumentStaticMapping()
	n := bleve.NewTextFieldMapping()
	n.Analyzer = "keyword"
	n.Store = true
	doc.AddFieldMappingsAt("n", n)
	m.DefaultMapping = doc

	idx, err := bleve.NewMemOnly(m)
	require.NoError(t, err)
	defer idx.Close()

	for id, v := range map[string]string{"a": "100", "b": "9", "c": "10", "d": "-1"} {
		require.NoError(t, idx.Index(id, map[string]interface{}{"n": v}))
	}

	for _, desc := range []bool{false, true} {
		req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
		req.SortByCustom(search.SortOrder{intSource(t).Comparator("n", desc)})
		res, err := idx.Search(req)
		require.NoError(t, err)

		want := []string{"d", "b", "c", "a"}
		if desc {
			want = []string{"a", "c", "b", "d"}
		}
		assert.Equal(t, want, hitIDs(res.Hits))
	}
}
