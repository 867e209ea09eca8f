// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package cache provides the caches behind the device pipeline and shader
// tables.
//
// # Cache[K, V]
//
// A mutex guarded table with a soft limit. When the limit is exceeded the
// least recently touched quarter is evicted and handed to the eviction
// callback, which is how compiled pipelines release their GPU objects.
//
//	pipelines := cache.NewWithEvict[*gpu.RenderPipeline, *pipeline](256, destroy)
//	p := pipelines.GetOrCreate(desc, compile)
//
// # ShardedCache[K, V]
//
// Sixteen independently locked LRU shards for values computed from many
// goroutines at once, such as translated shader binaries produced while a
// post chain precompiles its passes in parallel.
//
// Both caches are safe for concurrent use and must not be copied.
package cache
