// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cache

import (
	"slices"
	"sync"
)

// Cache is a generic thread-safe cache with a soft limit.
type Cache[K comparable, V any] struct {
	mu        sync.Mutex
	entries   map[K]*cacheEntry[V]
	softLimit int
	tick      int64
	onEvict   func(K, V)
	evictions uint64
}

type cacheEntry[V any] struct {
	value V
	atime int64
}

// New creates a cache with the given soft limit. Zero means unlimited.
func New[K comparable, V any](softLimit int) *Cache[K, V] {
	return NewWithEvict[K, V](softLimit, nil)
}

// NewWithEvict creates a cache that calls onEvict for every entry removed
// by eviction, Delete or Clear. The callback runs with the cache lock held
// and must not call back into the cache.
func NewWithEvict[K comparable, V any](softLimit int, onEvict func(K, V)) *Cache[K, V] {
	return &Cache[K, V]{
		entries:   make(map[K]*cacheEntry[V]),
		softLimit: softLimit,
		onEvict:   onEvict,
	}
}

// Get retrieves a value and marks it as recently used.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.tick++
	entry.atime = c.tick
	return entry.value, true
}

// Set stores a value, replacing (and evicting) any previous value for key.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok && c.onEvict != nil {
		c.onEvict(key, old.value)
	}
	c.insertLocked(key, value)
}

// GetOrCreate returns the cached value or stores the result of create.
// create runs under the lock so concurrent callers never build twice.
func (c *Cache[K, V]) GetOrCreate(key K, create func() V) V {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		c.tick++
		entry.atime = c.tick
		return entry.value
	}
	value := create()
	c.insertLocked(key, value)
	return value
}

// Delete removes key. Returns true if it was present.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return false
	}
	delete(c.entries, key)
	if c.onEvict != nil {
		c.onEvict(key, entry.value)
	}
	return true
}

// Clear removes every entry.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.onEvict != nil {
		for k, e := range c.entries {
			c.onEvict(k, e.value)
		}
	}
	c.entries = make(map[K]*cacheEntry[V])
	c.tick = 0
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Capacity returns the soft limit.
func (c *Cache[K, V]) Capacity() int { return c.softLimit }

// Stats returns a snapshot of the cache counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Len: len(c.entries), Capacity: c.softLimit, Evictions: c.evictions}
}

func (c *Cache[K, V]) insertLocked(key K, value V) {
	c.tick++
	c.entries[key] = &cacheEntry[V]{value: value, atime: c.tick}
	if c.softLimit > 0 && len(c.entries) > c.softLimit {
		c.evictOldest(key)
	}
}

// evictOldest trims the table to three quarters of the soft limit, oldest
// first, never evicting keep. Caller must hold c.mu.
func (c *Cache[K, V]) evictOldest(keep K) {
	target := max(c.softLimit*3/4, 1)
	toEvict := len(c.entries) - target
	if toEvict <= 0 {
		return
	}

	type aged struct {
		key   K
		atime int64
	}
	order := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		if k != keep {
			order = append(order, aged{k, e.atime})
		}
	}
	slices.SortFunc(order, func(a, b aged) int { return int(a.atime - b.atime) })

	for _, a := range order[:min(toEvict, len(order))] {
		e := c.entries[a.key]
		delete(c.entries, a.key)
		c.evictions++
		if c.onEvict != nil {
			c.onEvict(a.key, e.value)
		}
	}
}

// Stats contains cache statistics.
type Stats struct {
	Len int
	// Capacity is the soft limit, or the per-shard size for ShardedCache.
	Capacity int
	// TotalCapacity is the capacity across all shards (ShardedCache only).
	TotalCapacity int
	Hits          uint64
	Misses        uint64
	HitRate       float64
	Evictions     uint64
}
