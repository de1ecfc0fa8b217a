package cache

import (
	"time"

	"github.com/cuemby/forkful/pkg/metrics"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// TTL is a size bounded cache whose entries expire after a fixed duration
type TTL[K comparable, V any] struct {
	name string
	lru  *expirable.LRU[K, V]
}

// NewTTL creates a cache holding at most size entries for ttl each. The
// name labels the hit/miss metrics.
func NewTTL[K comparable, V any](name string, size int, ttl time.Duration) *TTL[K, V] {
	return &TTL[K, V]{
		name: name,
		lru:  expirable.NewLRU[K, V](size, nil, ttl),
	}
}

// Get returns the cached value for key
func (c *TTL[K, V]) Get(key K) (V, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		metrics.CacheLookups.WithLabelValues(c.name, "hit").Inc()
	} else {
		metrics.CacheLookups.WithLabelValues(c.name, "miss").Inc()
	}
	return v, ok
}

// Set stores value under key
func (c *TTL[K, V]) Set(key K, value V) {
	c.lru.Add(key, value)
}

// Invalidate drops key
func (c *TTL[K, V]) Invalidate(key K) {
	c.lru.Remove(key)
}

// Len returns the number of live entries
func (c *TTL[K, V]) Len() int {
	return c.lru.Len()
}

// GetOrLoad returns the cached value or calls load and caches its result.
// Errors from load are returned and nothing is cached.
func (c *TTL[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		var zero V
		return zero, err
	}
	c.Set(key, v)
	return v, nil
}
