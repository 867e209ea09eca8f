// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import "time"

// Fence is signalled once every command submitted before it was created
// has finished executing.
type Fence interface {
	// AwaitCompletion waits up to timeout and reports whether the fence
	// is signalled. A zero timeout polls.
	AwaitCompletion(timeout time.Duration) bool
	Close()
}

// TaskScheduler runs tasks on the render thread once the GPU work
// submitted before them has completed.
type TaskScheduler interface {
	QueueFencedTask(task func())
}
