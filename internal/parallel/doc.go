// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package parallel provides the executors behind section compilation.
//
// # Components
//
//   - WorkerPool: fixed goroutines with per-worker queues and work
//     stealing. SubmitNamed runs a function under a pprof label and returns
//     a Future.
//   - Future: a value completed once, with callbacks that may be moved
//     onto another Executor. AllOf joins futures and fails fast.
//   - ConsecutiveExecutor: runs submitted functions one at a time in
//     submission order. It serializes queue and buffer pool decisions
//     without a dedicated goroutine.
//
// # Thread Safety
//
// All types are safe for concurrent use.
package parallel
