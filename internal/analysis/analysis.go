// Package analysis turns field text into index terms. Analyzers are
// resolved by name through the bleve analysis registry so that a schema can
// persist the name and get identical tokenisation when the index is reopened.
package analysis

import (
	"fmt"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/length"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/porter"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/registry"
)

const (
	// Default splits on Unicode word boundaries and lower-cases. No stop
	// words, no stemming: every word in a document is searchable.
	Default = "text"
	// Stemmed is Default plus English stop-word removal and Porter stemming.
	Stemmed = "text_stemmed"

	Standard = standard.Name
	Simple   = simple.Name
	Keyword  = keyword.Name
	English  = en.AnalyzerName

	maxTokenLength = 40
)

// Token is one analysed term and its position within the field.
type Token struct {
	Term     string
	Position int
}

// Analyzer wraps a resolved bleve analyzer.
type Analyzer struct {
	name string
	impl analysis.Analyzer
}

var (
	cacheOnce sync.Once
	cache     *registry.Cache

	mu       sync.Mutex
	resolved = make(map[string]*Analyzer)

	builtins = map[string]struct{}{
		Standard: {},
		Simple:   {},
		Keyword:  {},
		English:  {},
	}
)

func registryCache() *registry.Cache {
	cacheOnce.Do(func() {
		cache = registry.NewCache()
	})
	return cache
}

// Get returns the analyzer registered under name.
func Get(name string) (*Analyzer, error) {
	mu.Lock()
	defer mu.Unlock()
	if a, ok := resolved[name]; ok {
		return a, nil
	}
	impl, err := build(name)
	if err != nil {
		return nil, err
	}
	a := &Analyzer{name: name, impl: impl}
	resolved[name] = a
	return a, nil
}

// Known reports whether name resolves to an analyzer.
func Known(name string) bool {
	_, err := Get(name)
	return err == nil
}

// Names lists every analyzer name Get accepts.
func Names() []string {
	names := []string{Default, Stemmed}
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func build(name string) (analysis.Analyzer, error) {
	c := registryCache()
	switch name {
	case Default:
		return &analysis.DefaultAnalyzer{
			Tokenizer: unicode.NewUnicodeTokenizer(),
			TokenFilters: []analysis.TokenFilter{
				lowercase.NewLowerCaseFilter(),
				length.NewLengthFilter(1, maxTokenLength),
			},
		}, nil
	case Stemmed:
		tokenizer, err := c.TokenizerNamed(unicode.Name)
		if err != nil {
			return nil, fmt.Errorf("resolving tokenizer %s: %w", unicode.Name, err)
		}
		filters := make([]analysis.TokenFilter, 0, 3)
		for _, filterName := range []string{lowercase.Name, en.StopName, porter.Name} {
			f, err := c.TokenFilterNamed(filterName)
			if err != nil {
				return nil, fmt.Errorf("resolving token filter %s: %w", filterName, err)
			}
			filters = append(filters, f)
		}
		return &analysis.DefaultAnalyzer{
			Tokenizer:    tokenizer,
			TokenFilters: filters,
		}, nil
	}
	if _, ok := builtins[name]; !ok {
		return nil, fmt.Errorf("unknown analyzer %q", name)
	}
	impl, err := c.AnalyzerNamed(name)
	if err != nil {
		return nil, fmt.Errorf("resolving analyzer %q: %w", name, err)
	}
	return impl, nil
}

func (a *Analyzer) Name() string {
	return a.name
}

// Analyze tokenises text. Positions are zero-based and keep gaps left by
// removed tokens, so phrase matching stays consistent between indexing and
// querying.
func (a *Analyzer) Analyze(text string) []Token {
	if text == "" {
		return nil
	}
	stream := a.impl.Analyze([]byte(text))
	tokens := make([]Token, 0, len(stream))
	for _, t := range stream {
		if len(t.Term) == 0 {
			continue
		}
		tokens = append(tokens, Token{
			Term:     string(t.Term),
			Position: t.Position - 1,
		})
	}
	return tokens
}

// Terms returns only the analysed terms of text, in order.
func (a *Analyzer) Terms(text string) []string {
	tokens := a.Analyze(text)
	terms := make([]string, len(tokens))
	for i, t := range tokens {
		terms[i] = t.Term
	}
	return terms
}
