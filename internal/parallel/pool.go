// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package parallel

import (
	"context"
	"fmt"
	"runtime"
	"runtime/pprof"
	"sync"
	"sync/atomic"
)

// WorkerPool runs background jobs such as section mesh compilation.
//
// Each worker owns a queue and steals from its siblings when that queue is
// empty, so one slow job does not stall the jobs queued behind it.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool

	// next spreads submissions round-robin over the queues.
	next atomic.Uint32
	// busy counts jobs that have been dequeued and are executing.
	busy atomic.Int32
}

// NewWorkerPool starts a pool with the given number of workers. A value of
// zero or less selects GOMAXPROCS.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := max(workers*4, 8)

	p := &WorkerPool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), queueSize)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	own := p.queues[id]
	for {
		select {
		case <-p.done:
			p.drain(own)
			return
		case job := <-own:
			p.run(job)
			continue
		default:
		}

		if job := p.steal(id); job != nil {
			p.run(job)
			continue
		}
		select {
		case <-p.done:
			p.drain(own)
			return
		case job := <-own:
			p.run(job)
		}
	}
}

func (p *WorkerPool) run(job func()) {
	if job == nil {
		return
	}
	p.busy.Add(1)
	defer p.busy.Add(-1)
	job()
}

func (p *WorkerPool) drain(queue chan func()) {
	for {
		select {
		case job := <-queue:
			p.run(job)
		default:
			return
		}
	}
}

func (p *WorkerPool) steal(self int) func() {
	for i := range p.workers {
		if i == self {
			continue
		}
		select {
		case job := <-p.queues[i]:
			return job
		default:
		}
	}
	return nil
}

// Submit queues fn. It reports false when the pool is closed, in which
// case fn never runs.
func (p *WorkerPool) Submit(fn func()) bool {
	if fn == nil || !p.running.Load() {
		return false
	}
	q := p.queues[int(p.next.Add(1))%p.workers]
	select {
	case q <- fn:
		return true
	case <-p.done:
		return false
	}
}

// SubmitNamed queues fn and returns a future for its result. The job runs
// under the pprof label task=name so CPU profiles group work by task kind.
// A panic in fn completes the future with an error.
func SubmitNamed[T any](p *WorkerPool, name string, fn func() (T, error)) *Future[T] {
	f := NewFuture[T]()
	ok := p.Submit(func() {
		pprof.Do(context.Background(), pprof.Labels("task", name), func(context.Context) {
			defer func() {
				if r := recover(); r != nil {
					var zero T
					f.Complete(zero, fmt.Errorf("parallel: task %s panicked: %v", name, r))
				}
			}()
			f.Complete(fn())
		})
	})
	if !ok {
		var zero T
		f.Complete(zero, ErrPoolClosed)
	}
	return f
}

// ExecuteAll runs every job and waits for all of them.
func (p *WorkerPool) ExecuteAll(jobs []func()) {
	if len(jobs) == 0 {
		return
	}
	var wg sync.WaitGroup
	wg.Add(len(jobs))
	for _, job := range jobs {
		if !p.Submit(func() {
			defer wg.Done()
			job()
		}) {
			wg.Done()
		}
	}
	wg.Wait()
}

// Close stops accepting work, runs what is already queued and stops the
// workers. Safe to call more than once.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers.
func (p *WorkerPool) Workers() int { return p.workers }

// IsRunning reports whether the pool accepts work.
func (p *WorkerPool) IsRunning() bool { return p.running.Load() }

// Busy returns the number of jobs currently executing.
func (p *WorkerPool) Busy() int { return int(p.busy.Load()) }

// QueuedWork approximates the number of jobs waiting in the queues.
func (p *WorkerPool) QueuedWork() int {
	total := 0
	for _, q := range p.queues {
		total += len(q)
	}
	return total
}
