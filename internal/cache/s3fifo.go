package cache

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/maypok86/otter"
)

// S3FIFO is a high-throughput store backed by otter's S3-FIFO implementation.
//
// Reads are close to lock-free, but recency is approximate and evictions are applied
// by otter's maintenance goroutine, so the size bound is eventual rather than strict.
// Callers that need exact LRU ordering should use LRU.
type S3FIFO struct {
	store otter.Cache[string, Entry]
	ttl   time.Duration
	clock Clock

	hits        atomic.Uint64
	misses      atomic.Uint64
	expirations atomic.Uint64
}

// NewS3FIFO initializes the otter cache with a hard capacity and a ttl.
func NewS3FIFO(maxSize int, ttl time.Duration, opts ...Option) (*S3FIFO, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("cache: max size must be positive, got %d", maxSize)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cache: ttl must be positive, got %s", ttl)
	}

	o := buildOptions(opts)

	store, err := otter.MustBuilder[string, Entry](maxSize).
		WithTTL(ttl).
		Build()
	if err != nil {
		return nil, fmt.Errorf("cache: building s3fifo store: %w", err)
	}

	return &S3FIFO{store: store, ttl: ttl, clock: o.clock}, nil
}

// Get retrieves an entry. Besides otter's own expiry, the entry timestamp is checked
// against the configured clock so both stores expire identically.
func (c *S3FIFO) Get(key string) (Entry, bool) {
	entry, ok := c.store.Get(key)
	if !ok {
		c.misses.Add(1)
		return Entry{}, false
	}

	if c.clock().Sub(entry.CreatedAt) > c.ttl {
		c.store.Delete(key)
		c.expirations.Add(1)
		c.misses.Add(1)
		return Entry{}, false
	}

	c.hits.Add(1)
	return entry, true
}

func (c *S3FIFO) Put(key string, outcome Outcome) {
	c.store.Set(key, Entry{Outcome: outcome, CreatedAt: c.clock()})
}

func (c *S3FIFO) Len() int {
	return c.store.Size()
}

func (c *S3FIFO) Clear() {
	c.store.Clear()
}

// Close shuts down otter's background goroutines.
func (c *S3FIFO) Close() {
	c.store.Close()
}

// Stats returns the counters observed by this wrapper. Evictions are performed inside
// otter and are not reported.
func (c *S3FIFO) Stats() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Expirations: c.expirations.Load(),
	}
}
