package core

import (
	"strconv"
	"strings"
)

// SearchCache memoizes inventory search results within a single session.
// The session document is the arena: results are stored once per normalized
// query, each product is indexed by id for direct lookup, and the 1-based
// display position maps back to the product id so "pick number 2" resolves
// without another vendor call.
type SearchCache struct {
	Queries    map[string][]map[string]any `json:"queries"`
	ByID       map[string]map[string]any   `json:"by_id"`
	ByPosition map[string]string           `json:"by_position"`
	Current    []map[string]any            `json:"current,omitempty"`
}

// NewSearchCache constructs an empty cache.
func NewSearchCache() *SearchCache {
	return &SearchCache{
		Queries:    map[string][]map[string]any{},
		ByID:       map[string]map[string]any{},
		ByPosition: map[string]string{},
	}
}

// NormalizeQuery produces the cache key for a free-text query.
func NormalizeQuery(q string) string { return strings.ToLower(strings.TrimSpace(q)) }

// Lookup returns the cached product list for a query. A cached entry with an
// empty product list is treated as invalid, evicted, and reported as a miss so
// the caller re-fetches.
func (c *SearchCache) Lookup(query string) ([]map[string]any, bool) {
	key := NormalizeQuery(query)
	products, ok := c.Queries[key]
	if !ok {
		return nil, false
	}
	if len(products) == 0 {
		delete(c.Queries, key)
		return nil, false
	}
	return products, true
}

// Store records a non-empty search result and rebuilds the positional index
// for the new current list. Empty results are not cached.
func (c *SearchCache) Store(query string, products []map[string]any) {
	if len(products) == 0 {
		return
	}
	key := NormalizeQuery(query)
	c.Queries[key] = products
	c.ByPosition = map[string]string{}
	c.Current = products
	for i, p := range products {
		id, _ := p["_id"].(string)
		if id == "" {
			continue
		}
		c.ByID[id] = p
		c.ByPosition[strconv.Itoa(i+1)] = id
	}
}

// Product returns the full cached record for a product id.
func (c *SearchCache) Product(id string) (map[string]any, bool) {
	p, ok := c.ByID[id]
	return p, ok
}

// ProductAt resolves a 1-based list position from the most recent search.
func (c *SearchCache) ProductAt(position int) (map[string]any, bool) {
	id, ok := c.ByPosition[strconv.Itoa(position)]
	if !ok {
		return nil, false
	}
	return c.Product(id)
}

// Clone deep-copies the cache. Product records are shared (treated as
// immutable once fetched).
func (c *SearchCache) Clone() *SearchCache {
	clone := NewSearchCache()
	for q, list := range c.Queries {
		cp := make([]map[string]any, len(list))
		copy(cp, list)
		clone.Queries[q] = cp
	}
	for id, p := range c.ByID {
		clone.ByID[id] = p
	}
	for pos, id := range c.ByPosition {
		clone.ByPosition[pos] = id
	}
	clone.Current = make([]map[string]any, len(c.Current))
	copy(clone.Current, c.Current)
	return clone
}
