package catalog

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/joseph-ayodele/lab-compliance/internal/entity"
)

type pairKey struct{ a, b string }

// MatchCache memoizes semantic equivalence answers keyed by the ordered pair
// of normalized names. Safe for concurrent use.
type MatchCache struct {
	mu      sync.RWMutex
	entries map[pairKey]bool
	hits    atomic.Uint64
	misses  atomic.Uint64
}

func NewMatchCache() *MatchCache {
	return &MatchCache{entries: make(map[pairKey]bool)}
}

// Get returns the cached answer and whether one exists.
func (c *MatchCache) Get(a, b string) (equivalent, ok bool) {
	c.mu.RLock()
	equivalent, ok = c.entries[pairKey{a, b}]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return equivalent, ok
}

func (c *MatchCache) Put(a, b string, equivalent bool) {
	c.mu.Lock()
	c.entries[pairKey{a, b}] = equivalent
	c.mu.Unlock()
}

func (c *MatchCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit and miss counts since creation.
func (c *MatchCache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// CatalogCache keeps the category list of a Store in memory until invalidated.
type CatalogCache struct {
	store Store

	mu     sync.RWMutex
	loaded bool
	list   []entity.Category
	byID   map[string]int
}

func NewCatalogCache(store Store) *CatalogCache {
	return &CatalogCache{store: store}
}

// ListCategories returns the cached list, loading it on first use.
func (c *CatalogCache) ListCategories(ctx context.Context) ([]entity.Category, error) {
	c.mu.RLock()
	if c.loaded {
		out := c.list
		c.mu.RUnlock()
		return out, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.list, nil
	}
	list, err := c.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	c.list = list
	c.byID = make(map[string]int, len(list))
	for i, cat := range list {
		c.byID[cat.ID] = i
	}
	c.loaded = true
	return c.list, nil
}

// GetCategory serves from the cached list and falls through to the store on a miss.
func (c *CatalogCache) GetCategory(ctx context.Context, id string) (*entity.Category, error) {
	if _, err := c.ListCategories(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	i, ok := c.byID[id]
	var cat entity.Category
	if ok {
		cat = c.list[i]
	}
	c.mu.RUnlock()
	if ok {
		return &cat, nil
	}
	return c.store.GetCategory(ctx, id)
}

// Invalidate drops the cached list; the next call reloads from the store.
func (c *CatalogCache) Invalidate() {
	c.mu.Lock()
	c.loaded = false
	c.list = nil
	c.byID = nil
	c.mu.Unlock()
}
