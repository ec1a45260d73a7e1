// Package analyzer resolves bleve analyzers by name and composes them per field.
package analyzer

import (
	"sync"

	"github.com/AvengeMedia/dankquery/internal/errdefs"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/registry"

	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	_ "github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
)

const (
	KeywordName                = keyword.Name
	CaseInsensitiveKeywordName = "keyword_lower"
	StandardName               = standard.Name
	SimpleName                 = simple.Name
)

func init() {
	registry.RegisterAnalyzer(CaseInsensitiveKeywordName, newCaseInsensitiveKeyword)
}

// newCaseInsensitiveKeyword keeps the whole input as one token and lowercases it.
func newCaseInsensitiveKeyword(config map[string]interface{}, cache *registry.Cache) (analysis.Analyzer, error) {
	tokenizer, err := cache.TokenizerNamed(single.Name)
	if err != nil {
		return nil, err
	}
	toLower, err := cache.TokenFilterNamed(lowercase.Name)
	if err != nil {
		return nil, err
	}
	return &analysis.DefaultAnalyzer{
		Tokenizer:    tokenizer,
		TokenFilters: []analysis.TokenFilter{toLower},
	}, nil
}

var (
	cacheMu sync.Mutex
	cache   = registry.NewCache()
)

// Analyzer is a named handle on a bleve analyzer. Two analyzers are of the
// same kind when their names match.
type Analyzer struct {
	name string
	impl analysis.Analyzer
}

// Named resolves name against the bleve analysis registry.
func Named(name string) (*Analyzer, error) {
	if name == "" {
		return nil, errdefs.Newf(errdefs.ErrTypeConfiguration, "analyzer name is empty")
	}

	cacheMu.Lock()
	impl, err := cache.AnalyzerNamed(name)
	cacheMu.Unlock()
	if err != nil {
		return nil, errdefs.NewCustomError(errdefs.ErrTypeConfiguration, "cannot construct analyzer "+name, err)
	}
	if impl == nil {
		return nil, errdefs.Newf(errdefs.ErrTypeConfiguration, "%s is not an analyzer", name)
	}

	return &Analyzer{name: name, impl: impl}, nil
}

func mustNamed(name string) *Analyzer {
	a, err := Named(name)
	if err != nil {
		panic(err)
	}
	return a
}

func Keyword() *Analyzer {
	return mustNamed(KeywordName)
}

func CaseInsensitiveKeyword() *Analyzer {
	return mustNamed(CaseInsensitiveKeywordName)
}

func (a *Analyzer) Name() string {
	return a.name
}

// Kind identifies the analyzer implementation used for collision checks.
func (a *Analyzer) Kind() string {
	return a.name
}

func (a *Analyzer) String() string {
	return a.name
}

// Terms runs text through the analyzer and returns the emitted terms in order.
func (a *Analyzer) Terms(text string) []string {
	stream := a.impl.Analyze([]byte(text))
	terms := make([]string, 0, len(stream))
	for _, tok := range stream {
		terms = append(terms, string(tok.Term))
	}
	return terms
}

// Analyze expects text to produce exactly one term and returns it.
func (a *Analyzer) Analyze(text string) (string, error) {
	terms := a.Terms(text)
	if len(terms) != 1 {
		return "", errdefs.Newf(errdefs.ErrTypeArgument, "analyzer %s produced %d terms for %q, expected 1", a.name, len(terms), text)
	}
	return terms[0], nil
}
