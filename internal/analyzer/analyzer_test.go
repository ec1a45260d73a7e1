package analyzer

import (
	"fmt"
	"sync"
	"testing"

	"github.com/AvengeMedia/dankquery/internal/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamed(t *testing.T) {
	for _, name := range []string{KeywordName, CaseInsensitiveKeywordName, StandardName, SimpleName, "en"} {
		a, err := Named(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, a.Name())
	}

	_, err := Named("no_such_analyzer")
	assert.True(t, errdefs.Is(err, errdefs.ErrTypeConfiguration))

	_, err = Named("")
	assert.True(t, errdefs.Is(err, errdefs.ErrTypeConfiguration))
}

func TestCaseFolding(t *testing.T) {
	lower := CaseInsensitiveKeyword()
	assert.Equal(t, []string{"hello world"}, lower.Terms("Hello World"))

	kw := Keyword()
	assert.Equal(t, []string{"Hello World"}, kw.Terms("Hello World"))

	std, err := Named(StandardName)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "world"}, std.Terms("Hello World"))
}

func TestAnalyze(t *testing.T) {
	got, err := CaseInsensitiveKeyword().Analyze("MiXeD")
	require.NoError(t, err)
	assert.Equal(t, "mixed", got)

	std, err := Named(StandardName)
	require.NoError(t, err)
	_, err = std.Analyze("two words")
	assert.True(t, errdefs.Is(err, errdefs.ErrTypeArgument))
}

func TestPerField_AddAnalyzer(t *testing.T) {
	p := NewPerField(Keyword())

	require.NoError(t, p.AddAnalyzer("x", Keyword()))
	require.NoError(t, p.AddAnalyzer("x", Keyword()), "same kind is idempotent")

	err := p.AddAnalyzer("x", CaseInsensitiveKeyword())
	require.Error(t, err)
	assert.True(t, errdefs.Is(err, errdefs.ErrTypeConfiguration))
	assert.Contains(t, err.Error(), "field x")
	assert.Contains(t, err.Error(), CaseInsensitiveKeywordName)
	assert.Contains(t, err.Error(), KeywordName)

	assert.Equal(t, KeywordName, p.Resolve("x").Name())
}

func TestPerField_ResolveDefault(t *testing.T) {
	p := NewPerField(CaseInsensitiveKeyword())
	require.NoError(t, p.AddAnalyzer("id", Keyword()))

	assert.Equal(t, KeywordName, p.Resolve("id").Name())
	assert.Equal(t, CaseInsensitiveKeywordName, p.Resolve("other").Name())
	assert.Equal(t, []string{"abc"}, p.Terms("other", "ABC"))
	assert.Equal(t, []string{"ABC"}, p.Terms("id", "ABC"))
}

func TestPerField_Merge(t *testing.T) {
	a := NewPerField(Keyword())
	require.NoError(t, a.AddAnalyzer("name", CaseInsensitiveKeyword()))

	b := NewPerField(Keyword())
	require.NoError(t, b.AddAnalyzer("name", CaseInsensitiveKeyword()))
	require.NoError(t, b.AddAnalyzer("id", Keyword()))

	require.NoError(t, a.Merge(b))
	assert.Equal(t, []string{"id", "name"}, a.Fields())

	c := NewPerField(Keyword())
	require.NoError(t, c.AddAnalyzer("name", Keyword()))
	err := a.Merge(c)
	assert.True(t, errdefs.Is(err, errdefs.ErrTypeConfiguration))

	assert.NoError(t, a.Merge(a))
	assert.NoError(t, a.Merge(nil))
}

func TestPerField_Concurrent(t *testing.T) {
	p := NewPerField(Keyword())
	lower := CaseInsensitiveKeyword()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			field := fmt.Sprintf("f%d", i%4)
			assert.NoError(t, p.AddAnalyzer(field, lower))
			_ = p.Resolve(field)
		}(i)
	}
	wg.Wait()

	assert.Len(t, p.Fields(), 4)
}
