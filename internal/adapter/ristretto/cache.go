// Package ristretto is the in-process L1 implementation of the cache port.
package ristretto

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// avgEntryBytes is the expected size of one cached business snapshot, used
// to size the admission counters.
const avgEntryBytes = 512

// Cache holds recently resolved values in memory, bounded by total bytes.
type Cache struct {
	c          *ristretto.Cache[string, []byte]
	defaultTTL time.Duration
}

// Stats is a snapshot of the cache hit counters.
type Stats struct {
	Hits   uint64
	Misses uint64
	Ratio  float64
}

// New creates a cache holding at most maxBytes of values. defaultTTL is used
// when Set is called with a zero TTL.
func New(maxBytes int64, defaultTTL time.Duration) (*Cache, error) {
	if maxBytes <= 0 {
		return nil, errors.New("ristretto: max size must be positive")
	}
	counters := max(maxBytes/avgEntryBytes*10, 1000)
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: counters,
		MaxCost:     maxBytes,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c, defaultTTL: defaultTTL}, nil
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, ok := c.c.Get(key)
	return val, ok, nil
}

// Set blocks until the write is applied so the value is visible to the next Get.
// Values rejected by the admission policy are dropped silently.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.c.SetWithTTL(key, value, int64(len(value)), ttl)
	c.c.Wait()
	return nil
}

func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Stats reports hits and misses since creation.
func (c *Cache) Stats() Stats {
	m := c.c.Metrics
	return Stats{Hits: m.Hits(), Misses: m.Misses(), Ratio: m.Ratio()}
}

func (c *Cache) Close() { c.c.Close() }
