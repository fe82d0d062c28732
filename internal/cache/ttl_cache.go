// Package cache provides a thread-safe cache with per-entry expiration.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value   V
	touched time.Time
}

// TTLCache is a thread-safe cache whose entries expire ttl after they were
// last stored or read. Evicted values are passed to the eviction callback,
// which runs without the cache lock held.
type TTLCache[K comparable, V any] struct {
	mu      sync.Mutex
	data    map[K]entry[V]
	ttl     time.Duration
	onEvict func(K, V)
	now     func() time.Time
}

// New creates an empty cache. onEvict may be nil.
func New[K comparable, V any](ttl time.Duration, onEvict func(K, V)) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		data:    make(map[K]entry[V]),
		ttl:     ttl,
		onEvict: onEvict,
		now:     time.Now,
	}
}

type evicted[K comparable, V any] struct {
	key   K
	value V
}

func (c *TTLCache[K, V]) release(list []evicted[K, V]) {
	if c.onEvict == nil {
		return
	}
	for _, e := range list {
		c.onEvict(e.key, e.value)
	}
}

func (c *TTLCache[K, V]) expiredLocked(e entry[V], now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.touched) >= c.ttl
}

// Get returns the value for key and refreshes its timestamp. An expired
// entry is evicted and reported as missing.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	now := c.now()
	e, ok := c.data[key]
	if ok && c.expiredLocked(e, now) {
		delete(c.data, key)
		c.mu.Unlock()
		c.release([]evicted[K, V]{{key, e.value}})
		var zero V
		return zero, false
	}
	if ok {
		e.touched = now
		c.data[key] = e
	}
	c.mu.Unlock()
	return e.value, ok
}

// Set stores value under key. A replaced value is evicted.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	old, ok := c.data[key]
	c.data[key] = entry[V]{value: value, touched: c.now()}
	c.mu.Unlock()
	if ok {
		c.release([]evicted[K, V]{{key, old.value}})
	}
}

// Delete evicts key if present.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	e, ok := c.data[key]
	delete(c.data, key)
	c.mu.Unlock()
	if ok {
		c.release([]evicted[K, V]{{key, e.value}})
	}
}

// DeleteFunc evicts every entry whose key satisfies match and returns how
// many were removed.
func (c *TTLCache[K, V]) DeleteFunc(match func(K) bool) int {
	c.mu.Lock()
	var gone []evicted[K, V]
	for k, e := range c.data {
		if match(k) {
			gone = append(gone, evicted[K, V]{k, e.value})
			delete(c.data, k)
		}
	}
	c.mu.Unlock()
	c.release(gone)
	return len(gone)
}

// Sweep evicts every expired entry and returns how many were removed.
func (c *TTLCache[K, V]) Sweep() int {
	c.mu.Lock()
	now := c.now()
	var gone []evicted[K, V]
	for k, e := range c.data {
		if c.expiredLocked(e, now) {
			gone = append(gone, evicted[K, V]{k, e.value})
			delete(c.data, k)
		}
	}
	c.mu.Unlock()
	c.release(gone)
	return len(gone)
}

// Invalidate evicts every entry.
func (c *TTLCache[K, V]) Invalidate() {
	c.mu.Lock()
	gone := make([]evicted[K, V], 0, len(c.data))
	for k, e := range c.data {
		gone = append(gone, evicted[K, V]{k, e.value})
	}
	c.data = make(map[K]entry[V])
	c.mu.Unlock()
	c.release(gone)
}

// Len returns the number of entries, expired or not.
func (c *TTLCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}
