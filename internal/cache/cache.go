// Package cache provides a time-to-live read-through cache.
//
// Entries expire a fixed duration after they are stored. There is no size
// bound; expired entries are dropped when they are next read or when a sweep
// runs. Concurrent loads of the same key are collapsed into one call.
package cache

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL caches values of type V under comparable keys.
type TTL[K comparable, V any] struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[K]entry[V]
	// gen is bumped on every invalidation so that loads started before it
	// do not store their result.
	gen   uint64
	group singleflight.Group
}

// New creates a cache whose entries stay fresh for ttl.
func New[K comparable, V any](ttl time.Duration) *TTL[K, V] {
	return &TTL[K, V]{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[K]entry[V]),
	}
}

// WithClock replaces the time source. Intended for tests.
func (c *TTL[K, V]) WithClock(now func() time.Time) *TTL[K, V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}

// Get returns the cached value for key if it is still fresh.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.items, key)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key.
func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.set(key, value)
}

func (c *TTL[K, V]) set(key K, value V) {
	c.items[key] = entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
}

// GetOrLoad returns the fresh cached value for key or calls load and caches
// its result. Errors are returned to every waiter and never cached.
func (c *TTL[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	res, err, _ := c.group.Do(fmt.Sprintf("%d/%v", gen, key), func() (any, error) {
		v, err := load()
		if err != nil {
			return v, err
		}
		c.mu.Lock()
		if c.gen == gen {
			c.set(key, v)
		}
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	v, _ := res.(V)
	return v, nil
}

// Delete removes key.
func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
	c.gen++
}

// DeleteFunc removes every key for which match returns true and reports how
// many entries were dropped.
func (c *TTL[K, V]) DeleteFunc(match func(K) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k := range c.items {
		if match(k) {
			delete(c.items, k)
			n++
		}
	}
	c.gen++
	return n
}

// CleanExpired drops every expired entry and returns the count removed.
func (c *TTL[K, V]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for k, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, fresh or not.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
