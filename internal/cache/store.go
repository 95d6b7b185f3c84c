// Package cache provides the local result cache of the SDK: a deterministic key
// derivation and bounded, time-expiring stores for evaluation outcomes.
package cache

import (
	"errors"
	"fmt"
	"time"
)

// Algorithm names accepted by New.
const (
	AlgorithmLRU    = "lru"
	AlgorithmS3FIFO = "s3fifo"
)

// Outcome is the cached result of a single evaluation.
type Outcome struct {
	Value   string
	Enabled bool
	Found   bool
}

// Entry is a cached Outcome together with its insertion time.
type Entry struct {
	Outcome
	CreatedAt time.Time
}

// Store is a bounded cache of evaluation outcomes.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the live entry stored under key.
	// Expired entries are reported as missing.
	Get(key string) (Entry, bool)

	// Put inserts or overwrites key, stamping it with the current time.
	Put(key string, outcome Outcome)

	// Len returns the number of stored entries, expired ones included until they are observed.
	Len() int

	// Clear drops every entry.
	Clear()

	// Close releases background resources. The store must not be used afterwards.
	Close()
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Expirations uint64
}

// Clock returns the current time. Tests replace it to drive expiry deterministically.
type Clock func() time.Time

// Option customizes a store.
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock overrides the time source used for stamping and expiry.
func WithClock(clock Clock) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New builds the store for the given algorithm. An empty algorithm selects LRU.
func New(algorithm string, maxSize int, ttl time.Duration, opts ...Option) (Store, error) {
	switch algorithm {
	case "", AlgorithmLRU:
		lru, err := NewLRU(maxSize, ttl, opts...)
		if err != nil {
			return nil, err
		}
		return lru, nil
	case AlgorithmS3FIFO:
		s3, err := NewS3FIFO(maxSize, ttl, opts...)
		if err != nil {
			return nil, err
		}
		return s3, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}
}

// ErrUnknownAlgorithm is returned by New for unsupported algorithm names.
var ErrUnknownAlgorithm = errors.New("cache: unknown algorithm")
