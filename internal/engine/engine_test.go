package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AvengeMedia/dankquery/internal/config"
	"github.com/AvengeMedia/dankquery/internal/errdefs"
	"github.com/AvengeMedia/dankquery/internal/fieldmap"
	"github.com/AvengeMedia/dankquery/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bookSchema = `
[[types]]
name = "book"

  [[types.fields]]
  name = "isbn"
  kind = "string"
  key = true

  [[types.fields]]
  name = "title"
  kind = "string"

  [[types.fields]]
  name = "summary"
  kind = "string"
  analyzer = "standard"
  term_vector = "positions_offsets"

  [[types.fields]]
  name = "pages"
  kind = "int64"
  numeric = true

  [[types.fields]]
  name = "published"
  kind = "time"
  format = "2006-01-02"

[[types]]
name = "author"

  [[types.fields]]
  name = "name"
  kind = "string"
  key = true
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.IndexPath = ""
	cfg.SchemaPath = filepath.Join(t.TempDir(), "schema.toml")
	require.NoError(t, os.WriteFile(cfg.SchemaPath, []byte(bookSchema), 0644))
	return cfg
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(testConfig(t), false)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	n, err := e.Index("book", []fieldmap.Record{
		{"isbn": "111", "title": "Go Programming", "summary": "learning go the practical way", "pages": int64(380), "published": "2015-10-26"},
		{"isbn": "222", "title": "Search Engines", "summary": "inverted index and ranking", "pages": int64(520), "published": "2009-02-16"},
		{"isbn": "333", "title": "Small Book", "summary": "a short practical read", "pages": int64(90), "published": "2020-01-01"},
	})
	require.NoError(t, err)
	require.Equal(t, 3, n)

	_, err = e.Index("author", []fieldmap.Record{{"name": "Kernighan"}})
	require.NoError(t, err)
	return e
}

func ids(res *Response) []string {
	out := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		out[i] = h.Record["isbn"].(string)
	}
	return out
}

func TestEngine_Types(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, []string{"author", "book"}, e.Types())

	count, err := e.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(4), count)
}

func TestEngine_SearchAll(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Search(context.Background(), Request{Type: "book", Order: []string{"pages"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Total)
	assert.Equal(t, []string{"333", "111", "222"}, ids(res))
	assert.Equal(t, "book/333", res.Hits[0].ID)

	published, ok := res.Hits[0].Record["published"].(time.Time)
	require.True(t, ok)
	assert.Equal(t, 2020, published.Year())
}

func TestEngine_SearchWhereAndRange(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	res, err := e.Search(ctx, Request{Type: "book", Where: []string{"title=search engines"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"222"}, ids(res))

	res, err = e.Search(ctx, Request{Type: "book", Ranges: []string{"pages:100..400"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"111"}, ids(res))

	res, err = e.Search(ctx, Request{Type: "book", Ranges: []string{"pages:..400"}, Order: []string{"-pages"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"111", "333"}, ids(res))

	res, err = e.Search(ctx, Request{Type: "book", Query: "summary:practical", Order: []string{"isbn"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"111", "333"}, ids(res))
}

func TestEngine_SearchErrors(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	_, err := e.Search(ctx, Request{Type: "movie"})
	assert.True(t, errdefs.Is(err, errdefs.ErrTypeArgument))

	_, err = e.Search(ctx, Request{Type: "book", Where: []string{"title"}})
	assert.True(t, errdefs.Is(err, errdefs.ErrTypeArgument))

	_, err = e.Search(ctx, Request{Type: "book", Ranges: []string{"pages:1-2"}})
	assert.True(t, errdefs.Is(err, errdefs.ErrTypeArgument))

	_, err = e.Search(ctx, Request{Type: "book", Ranges: []string{"pages:..."}})
	assert.Error(t, err)

	_, err = e.Search(ctx, Request{Type: "book", Order: []string{"colour"}})
	assert.True(t, errdefs.Is(err, errdefs.ErrTypeArgument))
}

func TestEngine_LimitClamp(t *testing.T) {
	e := newTestEngine(t)
	e.cfg.MaxLimit = 2
	e.cfg.DefaultLimit = 1

	res, err := e.Search(context.Background(), Request{Type: "book", Order: []string{"isbn"}})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 1)

	res, err = e.Search(context.Background(), Request{Type: "book", Order: []string{"isbn"}, Limit: 50})
	require.NoError(t, err)
	assert.Len(t, res.Hits, 2)

	res, err = e.Search(context.Background(), Request{Type: "book", Order: []string{"isbn"}, Limit: 2, SearchAfter: res.Hits[1].Sort})
	require.NoError(t, err)
	assert.Equal(t, []string{"333"}, ids(res))
}

func TestEngine_NumericSearchAfter(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	first, err := e.Search(ctx, Request{Type: "book", Order: []string{"pages"}, Limit: 1})
	require.NoError(t, err)
	require.Equal(t, []string{"333"}, ids(first))
	assert.Equal(t, "90", first.Hits[0].Sort[0])

	next, err := e.Search(ctx, Request{Type: "book", Order: []string{"pages"}, Limit: 1, SearchAfter: first.Hits[0].Sort})
	require.NoError(t, err)
	assert.Equal(t, []string{"111"}, ids(next))

	last, err := e.Search(ctx, Request{Type: "book", Order: []string{"-pages"}, Limit: 2, SearchAfter: []string{"520"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"111", "333"}, ids(last))
}

func TestEngine_TermVectors(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Search(context.Background(), Request{Type: "book", Query: "summary:inverted", TermVectors: true})
	require.NoError(t, err)
	require.Len(t, res.Hits, 1)
	assert.Contains(t, res.Hits[0].Vectors, "summary")
}

func TestEngine_Delete(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.Delete("book", "111"))
	require.NoError(t, e.Delete("book", "book/222"))

	res, err := e.Search(context.Background(), Request{Type: "book"})
	require.NoError(t, err)
	assert.Equal(t, []string{"333"}, ids(res))

	assert.True(t, errdefs.Is(e.Delete("movie", "1"), errdefs.ErrTypeArgument))
}

func TestEngine_Mapping(t *testing.T) {
	e := newTestEngine(t)

	info, err := e.Mapping("book")
	require.NoError(t, err)
	assert.Equal(t, "book", info.Name)
	assert.Equal(t, "1", info.Version)
	assert.NotEmpty(t, info.Fingerprint)
	assert.Equal(t, []string{"isbn"}, info.Keys)

	byProp := map[string]FieldInfo{}
	for _, f := range info.Fields {
		byProp[f.Property] = f
	}
	assert.Equal(t, "key", byProp["isbn"].Role)
	assert.True(t, byProp["pages"].Numeric)
	assert.Equal(t, "standard", byProp["summary"].Analyzer)
	assert.Equal(t, "positions_offsets", byProp["summary"].TermVector)

	assert.Nil(t, info.Indexed)

	_, err = e.Mapping("movie")
	assert.True(t, errdefs.Is(err, errdefs.ErrTypeArgument))
}

func TestEngine_MappingCatalog(t *testing.T) {
	cfg := testConfig(t)
	cfg.IndexPath = filepath.Join(t.TempDir(), "index.bleve")
	e, err := New(cfg, false)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	info, err := e.Mapping("book")
	require.NoError(t, err)
	require.NotNil(t, info.Indexed)
	assert.Equal(t, info.Version, info.Indexed.Version)
	assert.Equal(t, info.Fingerprint, info.Indexed.Fingerprint)
}

func TestEngine_ReloadUnchanged(t *testing.T) {
	e := newTestEngine(t)
	before := e.prov

	require.NoError(t, e.Reload())
	assert.Same(t, before, e.prov)
}

func TestEngine_ReloadReindexes(t *testing.T) {
	e := newTestEngine(t)

	s, err := schema.Parse([]byte(bookSchema+`
  [[types.fields]]
  name = "country"
  kind = "string"
`), ".toml")
	require.NoError(t, err)

	require.NoError(t, e.ReloadSchema(s))

	res, err := e.Search(context.Background(), Request{Type: "book", Order: []string{"isbn"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"111", "222", "333"}, ids(res))

	res, err = e.Search(context.Background(), Request{Type: "author"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Total)
	assert.Equal(t, "Kernighan", res.Hits[0].Record["name"])
}

const keylessSchema = `
[[types]]
name = "note"

  [[types.fields]]
  name = "text"
  kind = "string"

[[types]]
name = "tag"

  [[types.fields]]
  name = "label"
  kind = "string"
`

func TestEngine_ReloadKeylessWithoutIsolation(t *testing.T) {
	cfg := config.Default()
	cfg.IndexPath = ""
	cfg.EnableMultipleEntities = false
	s, err := schema.Parse([]byte(keylessSchema), ".toml")
	require.NoError(t, err)
	e, err := NewWithSchema(cfg, s, false)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })

	_, err = e.Index("note", []fieldmap.Record{{"text": "first"}, {"text": "second"}})
	require.NoError(t, err)
	_, err = e.Index("tag", []fieldmap.Record{{"label": "misc"}})
	require.NoError(t, err)

	for _, extra := range []string{"color", "weight"} {
		s, err = schema.Parse([]byte(keylessSchema+`
  [[types.fields]]
  name = "`+extra+`"
  kind = "string"
`), ".toml")
		require.NoError(t, err)
		require.NoError(t, e.ReloadSchema(s))

		count, err := e.DocCount()
		require.NoError(t, err)
		assert.Equal(t, uint64(3), count, "after adding %s", extra)
	}

	res, err := e.Search(context.Background(), Request{Type: "tag", Where: []string{"label=misc"}})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.Total)
}

func TestEngine_ReloadDropsType(t *testing.T) {
	e := newTestEngine(t)

	s, err := schema.Parse([]byte(`
[[types]]
name = "author"

  [[types.fields]]
  name = "name"
  kind = "string"
  key = true
`), ".toml")
	require.NoError(t, err)
	require.NoError(t, e.ReloadSchema(s))

	assert.Equal(t, []string{"author"}, e.Types())
	count, err := e.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestEngine_ReloadReadOnly(t *testing.T) {
	cfg := testConfig(t)
	e, err := New(cfg, false)
	require.NoError(t, err)
	defer e.Close()
	cfg.ReadOnly = true

	s, err := schema.Parse([]byte(`
[[types]]
name = "author"

  [[types.fields]]
  name = "name"
  kind = "string"
`), ".toml")
	require.NoError(t, err)
	assert.True(t, errdefs.Is(e.ReloadSchema(s), errdefs.ErrTypeMappingDrift))
}

func TestEngine_BadSchema(t *testing.T) {
	cfg := config.Default()
	cfg.IndexPath = ""
	cfg.SchemaPath = filepath.Join(t.TempDir(), "missing.toml")

	_, err := New(cfg, false)
	assert.Error(t, err)
}
