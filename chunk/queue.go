// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package chunk

import (
	"math"
	"slices"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// maxRecompileQuota is how many recompiles in a row may be preferred over
// a farther initial compile.
const maxRecompileQuota = 2

// CompileTaskDynamicQueue orders compile tasks by distance from the camera
// at poll time. It is safe for concurrent use.
type CompileTaskDynamicQueue struct {
	mu    sync.Mutex
	tasks []CompileTask
	quota int
}

// NewCompileTaskDynamicQueue returns an empty queue.
func NewCompileTaskDynamicQueue() *CompileTaskDynamicQueue {
	return &CompileTaskDynamicQueue{quota: maxRecompileQuota}
}

// Add queues t.
func (q *CompileTaskDynamicQueue) Add(t CompileTask) {
	q.mu.Lock()
	q.tasks = append(q.tasks, t)
	q.mu.Unlock()
}

// Poll drops cancelled tasks and removes the next task to run, or returns
// nil when the queue is empty.
//
// The nearest initial compile wins unless a recompile is strictly nearer
// and the recompile quota is not used up.
func (q *CompileTaskDynamicQueue) Poll(camera mgl64.Vec3) CompileTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	initial, recompile := -1, -1
	initialDist, recompileDist := math.MaxFloat64, math.MaxFloat64
	live := q.tasks[:0]
	for _, t := range q.tasks {
		if t.IsCancelled() {
			continue
		}
		d := t.RenderOrigin().DistToCenterSqr(camera)
		if !t.IsRecompile() && d < initialDist {
			initialDist, initial = d, len(live)
		}
		if t.IsRecompile() && d < recompileDist {
			recompileDist, recompile = d, len(live)
		}
		live = append(live, t)
	}
	clear(q.tasks[len(live):])
	q.tasks = live

	if recompile < 0 || initial >= 0 && (q.quota <= 0 || !(recompileDist < initialDist)) {
		q.quota = maxRecompileQuota
		return q.remove(initial)
	}
	q.quota--
	return q.remove(recompile)
}

func (q *CompileTaskDynamicQueue) remove(i int) CompileTask {
	if i < 0 {
		return nil
	}
	t := q.tasks[i]
	q.tasks = slices.Delete(q.tasks, i, i+1)
	return t
}

// Clear cancels and drops every task.
func (q *CompileTaskDynamicQueue) Clear() {
	q.mu.Lock()
	tasks := q.tasks
	q.tasks = nil
	q.mu.Unlock()
	for _, t := range tasks {
		t.Cancel()
	}
}

// Size returns the number of queued tasks, cancelled ones included.
func (q *CompileTaskDynamicQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}
