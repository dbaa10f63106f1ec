// Package jit implements the L4 just-in-time compilation layer: turning a
// ports.StructuredOperator into a compiled graph.ExecutionGraph via a
// pluggable strategy, with results memoized in a bounded LRU cache keyed by
// a content-free fingerprint. The read-locked lookup plus write-locked
// promotion/insertion used by Cache.Get and Cache.Put is grounded on
// infrastructure/llm's Registry.GetClient; observability is grounded on
// infrastructure/middleware's PrometheusMetrics.
package jit

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/ahrav/opgraph/internal/domain"
	"github.com/ahrav/opgraph/internal/graph"
)

// entry is one resident cache line: the compiled graph plus enough metadata
// to explain a cache decision after the fact.
type entry struct {
	fingerprint domain.Fingerprint
	compiled    *graph.ExecutionGraph
	strategy    string
	rationale   string
	listElem    *list.Element
}

// Cache is a bounded, LRU-evicted store of compiled ExecutionGraphs keyed by
// fingerprint. It is safe for concurrent use. A fingerprint for a subgraph
// with a stochastic leaf is never looked up or stored (spec.md §4.4
// "preserve_stochasticity") -- callers are responsible for skipping the
// cache in that case, as Core.resolve does.
type Cache struct {
	mu       sync.RWMutex
	capacity int
	entries  map[domain.Fingerprint]*entry
	order    *list.List // front = most recently used

	hits   atomic.Int64
	misses atomic.Int64
	evicts atomic.Int64
}

// NewCache creates a Cache holding at most capacity compiled graphs. A
// non-positive capacity means unbounded.
func NewCache(capacity int) *Cache {
	return &Cache{
		capacity: capacity,
		entries:  make(map[domain.Fingerprint]*entry),
		order:    list.New(),
	}
}

// Get looks up a compiled graph by fingerprint, promoting it to
// most-recently-used on a hit.
func (c *Cache) Get(fp domain.Fingerprint) (*graph.ExecutionGraph, bool) {
	c.mu.RLock()
	e, ok := c.entries[fp]
	c.mu.RUnlock()
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	c.mu.Lock()
	c.order.MoveToFront(e.listElem)
	c.mu.Unlock()

	c.hits.Add(1)
	return e.compiled, true
}

// Put inserts or replaces the compiled graph for fp, evicting the least
// recently used entry if the cache is at capacity.
func (c *Cache) Put(fp domain.Fingerprint, compiled *graph.ExecutionGraph, strategy, rationale string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[fp]; ok {
		existing.compiled = compiled
		existing.strategy = strategy
		existing.rationale = rationale
		c.order.MoveToFront(existing.listElem)
		return
	}

	e := &entry{fingerprint: fp, compiled: compiled, strategy: strategy, rationale: rationale}
	e.listElem = c.order.PushFront(e)
	c.entries[fp] = e

	if c.capacity > 0 && len(c.entries) > c.capacity {
		c.evictOldest()
	}
}

// evictOldest removes the least recently used entry. Caller must hold mu.
func (c *Cache) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	e := oldest.Value.(*entry)
	c.order.Remove(oldest)
	delete(c.entries, e.fingerprint)
	c.evicts.Add(1)
}

// Stats reports cumulative cache activity since construction.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

// Stats snapshots the cache's hit/miss/eviction counters and current size.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()
	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evicts.Load(),
		Size:      size,
	}
}

// Rationale returns the explanation recorded for fp's compile decision, or
// "" if fp is not resident.
func (c *Cache) Rationale(fp domain.Fingerprint) (strategy, rationale string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, found := c.entries[fp]
	if !found {
		return "", "", false
	}
	return e.strategy, e.rationale, true
}

// Clear empties the cache. Intended for tests and explicit invalidation.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[domain.Fingerprint]*entry)
	c.order.Init()
}
