package cache

import (
	"sync"

	"github.com/kapu/game-metadata-sync-go/internal/domain"
	"github.com/kapu/game-metadata-sync-go/internal/util"
)

// RunCache memoizes candidate years and search results for one resolution run.
// It is owned by a single runner and must be Reset at run start; it is never
// shared between runs or shards.
type RunCache struct {
	mu       sync.RWMutex
	years    map[string]int
	searches map[string][]domain.Candidate
	hits     int
	misses   int
}

type RunCacheStats struct {
	Years    int
	Searches int
	Hits     int
	Misses   int
}

func NewRunCache() *RunCache {
	c := &RunCache{}
	c.Reset()
	return c
}

// Reset drops every memoized entry.
func (c *RunCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.years = make(map[string]int)
	c.searches = make(map[string][]domain.Candidate)
	c.hits = 0
	c.misses = 0
}

// Year returns the memoized release year for a candidate key. A stored zero
// means the lookup already ran and found nothing.
func (c *RunCache) Year(key string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	year, ok := c.years[key]
	c.count(ok)
	return year, ok
}

func (c *RunCache) StoreYear(key string, year int) {
	if key == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.years[key] = year
}

// Search returns copies of the candidates memoized for a query.
func (c *RunCache) Search(query string) ([]*domain.Candidate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored, ok := c.searches[util.NormalizeKey(query)]
	c.count(ok)
	if !ok {
		return nil, false
	}

	out := make([]*domain.Candidate, len(stored))
	for i := range stored {
		cand := stored[i]
		out[i] = &cand
	}
	return out, true
}

func (c *RunCache) StoreSearch(query string, candidates []*domain.Candidate) {
	stored := make([]domain.Candidate, 0, len(candidates))
	for _, cand := range candidates {
		if cand != nil {
			stored = append(stored, *cand)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.searches[util.NormalizeKey(query)] = stored
}

func (c *RunCache) Stats() RunCacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return RunCacheStats{
		Years:    len(c.years),
		Searches: len(c.searches),
		Hits:     c.hits,
		Misses:   c.misses,
	}
}

func (c *RunCache) count(hit bool) {
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}
