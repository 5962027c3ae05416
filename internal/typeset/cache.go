package typeset

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of typeset results kept by NewCached when
// size is not positive.
const DefaultCacheSize = 512

type cacheKey struct {
	source  string
	display bool
}

type cacheEntry struct {
	out string
	err error
}

// Cached memoizes another Typesetter. Successful results and parse errors
// are both deterministic for a given source, so both are kept. Any other
// error is passed through uncached.
type Cached struct {
	next  Typesetter
	cache *lru.Cache[cacheKey, cacheEntry]
}

// NewCached wraps next with an LRU cache of the given size.
func NewCached(next Typesetter, size int) (*Cached, error) {
	if next == nil {
		return nil, fmt.Errorf("typeset: nil typesetter")
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[cacheKey, cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("typeset: create cache: %w", err)
	}
	return &Cached{next: next, cache: cache}, nil
}

// Typeset returns the cached result for (source, display), computing it on
// a miss.
func (c *Cached) Typeset(source string, display bool) (string, error) {
	key := cacheKey{source: source, display: display}
	if e, ok := c.cache.Get(key); ok {
		return e.out, e.err
	}

	out, err := c.next.Typeset(source, display)
	if err == nil || IsParseError(err) {
		c.cache.Add(key, cacheEntry{out: out, err: err})
	}
	return out, err
}

// Len returns the number of cached results.
func (c *Cached) Len() int {
	return c.cache.Len()
}

// Purge drops every cached result.
func (c *Cached) Purge() {
	c.cache.Purge()
}
