package detect

import (
	"container/list"
	"sync"

	"github.com/graphrag/connectd/pkg/fact"
)

// defaultCacheSize bounds the result cache when no capacity is
// configured. An unbounded cache in a long-running service is a leak,
// so eviction is least-recently-used.
const defaultCacheSize = 256

// resultCache memoizes detection results by input fingerprint with LRU
// eviction. Safe for concurrent use.
type resultCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
}

type cacheEntry struct {
	key    string
	result fact.DetectionResult
}

func newResultCache(capacity int) *resultCache {
	if capacity <= 0 {
		capacity = defaultCacheSize
	}
	return &resultCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// Get returns the cached result for key, marking it most recently used.
func (c *resultCache) Get(key string) (fact.DetectionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return fact.DetectionResult{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).result, true
}

// Put stores a result under key, evicting the least recently used entry
// when the cache is full.
func (c *resultCache) Put(key string, result fact.DetectionResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).result = result
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, result: result})

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

// Clear drops every cached entry.
func (c *resultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element, c.capacity)
	c.order.Init()
}

// Len returns the number of cached entries.
func (c *resultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
