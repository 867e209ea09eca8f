// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"time"

	"github.com/gogpu/blockrender/gpu"
)

// fencePollInterval bounds how long AwaitCompletion sleeps between polls.
const fencePollInterval = 250 * time.Microsecond

// fence is signalled once the queue has completed the submission that was
// last issued when the fence was created.
type fence struct {
	dev    *Device
	index  uint64
	closed bool
}

var _ gpu.Fence = (*fence)(nil)

// CreateFence implements gpu.CommandEncoder.
func (e *CommandEncoder) CreateFence() gpu.Fence {
	return &fence{dev: e.dev, index: e.dev.submitted.Load()}
}

func (f *fence) signalled() bool {
	return f.dev.queue.PollCompleted() >= f.index
}

// AwaitCompletion implements gpu.Fence. A closed fence reports completion.
func (f *fence) AwaitCompletion(timeout time.Duration) bool {
	if f.closed || f.signalled() {
		return true
	}
	if timeout <= 0 {
		return false
	}
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return f.signalled()
		}
		time.Sleep(min(remaining, fencePollInterval))
		if f.signalled() {
			return true
		}
	}
}

func (f *fence) Close() { f.closed = true }
