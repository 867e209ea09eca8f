// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package parallel

import (
	"context"
	"runtime/pprof"
	"sync"
)

// Executor runs functions.
type Executor interface {
	Execute(fn func())
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(fn func())

// Execute calls e(fn).
func (e ExecutorFunc) Execute(fn func()) { e(fn) }

// Inline runs functions on the calling goroutine.
var Inline Executor = ExecutorFunc(func(fn func()) { fn() })

// ConsecutiveExecutor runs submitted functions one at a time, in
// submission order, on a single goroutine that exists only while the
// queue is non-empty. Functions may submit further functions.
type ConsecutiveExecutor struct {
	name    string
	mu      sync.Mutex
	queue   []func()
	running bool
	idle    *sync.Cond
}

// NewConsecutiveExecutor returns an executor whose runner goroutine
// carries the pprof label executor=name.
func NewConsecutiveExecutor(name string) *ConsecutiveExecutor {
	e := &ConsecutiveExecutor{name: name}
	e.idle = sync.NewCond(&e.mu)
	return e
}

// Execute implements Executor.
func (e *ConsecutiveExecutor) Execute(fn func()) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	e.queue = append(e.queue, fn)
	start := !e.running
	e.running = true
	e.mu.Unlock()
	if start {
		go pprof.Do(context.Background(), pprof.Labels("executor", e.name), func(context.Context) { e.runAll() })
	}
}

func (e *ConsecutiveExecutor) runAll() {
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.running = false
			e.idle.Broadcast()
			e.mu.Unlock()
			return
		}
		fn := e.queue[0]
		e.queue[0] = nil
		e.queue = e.queue[1:]
		e.mu.Unlock()
		fn()
	}
}

// Pending returns the number of queued functions not yet started.
func (e *ConsecutiveExecutor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}

// WaitIdle blocks until the queue is empty and nothing is running. It must
// not be called from a function running on e.
func (e *ConsecutiveExecutor) WaitIdle() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for e.running {
		e.idle.Wait()
	}
}
