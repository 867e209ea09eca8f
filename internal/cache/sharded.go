// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package cache

import (
	"hash/fnv"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	// ShardCount is the number of shards. Must be a power of 2.
	ShardCount = 16

	// DefaultShardCapacity is the per-shard capacity used when none is given.
	DefaultShardCapacity = 64

	shardMask = ShardCount - 1
)

// Hasher computes the shard selection hash of a key.
type Hasher[K any] func(K) uint64

// StringHasher computes the FNV-1a hash of s.
func StringHasher(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s)) // fnv.Write never returns an error
	return h.Sum64()
}

// Uint64Hasher uses the key itself as the hash.
func Uint64Hasher(u uint64) uint64 { return u }

// ShardedCache spreads entries over independently locked LRU shards.
type ShardedCache[K comparable, V any] struct {
	shards   [ShardCount]*shard[K, V]
	hasher   Hasher[K]
	capacity int

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type shard[K comparable, V any] struct {
	// mu serializes GetOrCreate builders; the lru itself is already
	// synchronized.
	mu  sync.Mutex
	lru *lru.Cache[K, V]
}

// NewSharded creates a cache holding up to capacity entries per shard.
// If capacity <= 0, DefaultShardCapacity is used.
func NewSharded[K comparable, V any](capacity int, hasher Hasher[K]) *ShardedCache[K, V] {
	if capacity <= 0 {
		capacity = DefaultShardCapacity
	}
	c := &ShardedCache[K, V]{hasher: hasher, capacity: capacity}
	for i := range c.shards {
		l, err := lru.NewWithEvict[K, V](capacity, func(K, V) { c.evictions.Add(1) })
		if err != nil {
			// Only returned for non-positive sizes.
			panic(err)
		}
		c.shards[i] = &shard[K, V]{lru: l}
	}
	return c
}

func (c *ShardedCache[K, V]) shardFor(key K) *shard[K, V] {
	return c.shards[c.hasher(key)&shardMask]
}

// Get retrieves a value by key.
func (c *ShardedCache[K, V]) Get(key K) (V, bool) {
	v, ok := c.shardFor(key).lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Set stores a value, evicting the shard's oldest entry when full.
func (c *ShardedCache[K, V]) Set(key K, value V) {
	c.shardFor(key).lru.Add(key, value)
}

// GetOrCreate returns the cached value or stores the result of create.
// create runs with the shard locked, so keep it free of calls back into
// the same cache.
func (c *ShardedCache[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	s := c.shardFor(key)
	if v, ok := s.lru.Get(key); ok {
		c.hits.Add(1)
		return v, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.lru.Get(key); ok {
		c.hits.Add(1)
		return v, nil
	}
	c.misses.Add(1)
	v, err := create()
	if err != nil {
		return v, err
	}
	s.lru.Add(key, v)
	return v, nil
}

// Delete removes key. Returns true if it was present.
func (c *ShardedCache[K, V]) Delete(key K) bool {
	return c.shardFor(key).lru.Remove(key)
}

// Clear removes all entries.
func (c *ShardedCache[K, V]) Clear() {
	for _, s := range c.shards {
		s.lru.Purge()
	}
}

// Len returns the number of entries across all shards.
func (c *ShardedCache[K, V]) Len() int {
	total := 0
	for _, s := range c.shards {
		total += s.lru.Len()
	}
	return total
}

// Stats returns current cache statistics.
func (c *ShardedCache[K, V]) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	var rate float64
	if hits+misses > 0 {
		rate = float64(hits) / float64(hits+misses)
	}
	return Stats{
		Len:           c.Len(),
		Capacity:      c.capacity,
		TotalCapacity: c.capacity * ShardCount,
		Hits:          hits,
		Misses:        misses,
		HitRate:       rate,
		Evictions:     c.evictions.Load(),
	}
}
