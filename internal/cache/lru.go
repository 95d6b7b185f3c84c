package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

type lruEntry struct {
	key   string
	entry Entry
}

// LRU is an exact least-recently-used cache with a per-entry time-to-live.
//
// A single mutex guards the index and the recency list, so Len never exceeds the
// configured capacity, also under concurrent writers. Expired entries are dropped
// lazily when they are looked up.
type LRU struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	clock    Clock
	items    map[string]*list.Element
	recency  *list.List // front = most recently used
	stats    Stats
}

// NewLRU creates an LRU holding at most maxSize entries, each valid for ttl.
func NewLRU(maxSize int, ttl time.Duration, opts ...Option) (*LRU, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("cache: max size must be positive, got %d", maxSize)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cache: ttl must be positive, got %s", ttl)
	}

	o := buildOptions(opts)

	return &LRU{
		capacity: maxSize,
		ttl:      ttl,
		clock:    o.clock,
		items:    make(map[string]*list.Element, maxSize),
		recency:  list.New(),
	}, nil
}

// Get returns the entry under key and marks it as most recently used.
// An entry older than the ttl is removed and reported as a miss.
func (c *LRU) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return Entry{}, false
	}

	e := elem.Value.(*lruEntry)
	if c.clock().Sub(e.entry.CreatedAt) > c.ttl {
		c.removeElement(elem)
		c.stats.Expirations++
		c.stats.Misses++
		return Entry{}, false
	}

	c.recency.MoveToFront(elem)
	c.stats.Hits++
	return e.entry, true
}

// Put inserts or overwrites key. Overwriting refreshes both the timestamp and the recency.
// When the cache is full the least recently used entry is evicted.
func (c *LRU) Put(key string, outcome Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := Entry{Outcome: outcome, CreatedAt: c.clock()}

	if elem, ok := c.items[key]; ok {
		elem.Value.(*lruEntry).entry = entry
		c.recency.MoveToFront(elem)
		return
	}

	c.items[key] = c.recency.PushFront(&lruEntry{key: key, entry: entry})

	for c.recency.Len() > c.capacity {
		c.evictOldest()
	}
}

func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recency.Len()
}

// Clear removes all entries. Counters are preserved.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element, c.capacity)
	c.recency.Init()
}

// Close is a no-op; LRU owns no background resources.
func (c *LRU) Close() {}

// Stats returns a snapshot of the hit, miss, eviction and expiration counters.
func (c *LRU) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Keys returns the stored keys from most to least recently used.
func (c *LRU) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, c.recency.Len())
	for elem := c.recency.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*lruEntry).key)
	}
	return keys
}

func (c *LRU) evictOldest() {
	if elem := c.recency.Back(); elem != nil {
		c.removeElement(elem)
		c.stats.Evictions++
	}
}

func (c *LRU) removeElement(elem *list.Element) {
	c.recency.Remove(elem)
	delete(c.items, elem.Value.(*lruEntry).key)
}
