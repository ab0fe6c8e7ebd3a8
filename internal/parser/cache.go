package parser

import (
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"github.com/IshaanNene/feedstalk/internal/types"
)

// Query finds the elements below a root selection. Compiled CSS selectors and
// XPath expressions both satisfy it.
type Query interface {
	Find(root *goquery.Selection) *goquery.Selection
}

type cssQuery struct {
	sel cascadia.Selector
}

func (q cssQuery) Find(root *goquery.Selection) *goquery.Selection {
	return root.FindMatcher(q.sel)
}

type xpathQuery struct {
	expr *xpath.Expr
}

func (q xpathQuery) Find(root *goquery.Selection) *goquery.Selection {
	var found []*html.Node
	for _, n := range root.Nodes {
		found = append(found, htmlquery.QuerySelectorAll(n, q.expr)...)
	}
	return root.FindNodes(found...)
}

// CacheStats is a snapshot of the cache counters.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// SelectorCache maps selector source strings to their compiled form. Entries
// are never evicted. It is safe for concurrent use; lookups take a read lock
// and only the first compilation of a string takes the write lock.
type SelectorCache struct {
	mu    sync.RWMutex
	css   map[string]cascadia.Selector
	xpath map[string]*xpath.Expr
	regex map[string]*regexp.Regexp

	hits   atomic.Int64
	misses atomic.Int64
}

// NewSelectorCache creates an empty cache.
func NewSelectorCache() *SelectorCache {
	return &SelectorCache{
		css:   make(map[string]cascadia.Selector),
		xpath: make(map[string]*xpath.Expr),
		regex: make(map[string]*regexp.Regexp),
	}
}

// getOrCompile returns the cached value for key or compiles and stores it.
// The map is re-checked under the write lock so concurrent first calls for the
// same key leave exactly one entry.
func getOrCompile[T any](c *SelectorCache, m map[string]T, key string, compile func(string) (T, error)) (T, error) {
	c.mu.RLock()
	v, ok := m[key]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return v, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := m[key]; ok {
		c.hits.Add(1)
		return v, nil
	}

	v, err := compile(key)
	if err != nil {
		var zero T
		return zero, err
	}
	c.misses.Add(1)
	m[key] = v
	return v, nil
}

// CSS returns the compiled form of a CSS selector. Use it for selectors built
// from runtime input; the error wraps types.ErrInvalidSelector.
func (c *SelectorCache) CSS(selector string) (cascadia.Selector, error) {
	return getOrCompile(c, c.css, selector, func(s string) (cascadia.Selector, error) {
		sel, err := cascadia.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("%w: css %q: %v", types.ErrInvalidSelector, s, err)
		}
		return sel, nil
	})
}

// MustCSS is like CSS but panics if the selector does not compile. It is
// meant for selectors written in source code.
func (c *SelectorCache) MustCSS(selector string) Query {
	sel, err := c.CSS(selector)
	if err != nil {
		panic(err)
	}
	return cssQuery{sel: sel}
}

// XPath returns the compiled form of an XPath expression.
func (c *SelectorCache) XPath(expr string) (*xpath.Expr, error) {
	return getOrCompile(c, c.xpath, expr, func(s string) (*xpath.Expr, error) {
		e, err := xpath.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("%w: xpath %q: %v", types.ErrInvalidSelector, s, err)
		}
		return e, nil
	})
}

// Regex returns a cached compiled regular expression.
func (c *SelectorCache) Regex(pattern string) (*regexp.Regexp, error) {
	return getOrCompile(c, c.regex, pattern, func(s string) (*regexp.Regexp, error) {
		re, err := regexp.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("%w: regex %q: %v", types.ErrInvalidSelector, s, err)
		}
		return re, nil
	})
}

// MustRegex is like Regex but panics on an invalid pattern.
func (c *SelectorCache) MustRegex(pattern string) *regexp.Regexp {
	re, err := c.Regex(pattern)
	if err != nil {
		panic(err)
	}
	return re
}

// Query compiles a selector for the given engine. An empty engine means CSS.
func (c *SelectorCache) Query(engine types.SelectorEngine, selector string) (Query, error) {
	switch engine {
	case "", types.EngineCSS:
		sel, err := c.CSS(selector)
		if err != nil {
			return nil, err
		}
		return cssQuery{sel: sel}, nil
	case types.EngineXPath:
		expr, err := c.XPath(selector)
		if err != nil {
			return nil, err
		}
		return xpathQuery{expr: expr}, nil
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", types.ErrInvalidSelector, engine)
	}
}

// Len returns the number of compiled entries across all kinds.
func (c *SelectorCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.css) + len(c.xpath) + len(c.regex)
}

// Stats returns a snapshot of hit and miss counters.
func (c *SelectorCache) Stats() CacheStats {
	return CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.Len(),
	}
}
