// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package parallel

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolClosed completes futures of jobs submitted after Close.
var ErrPoolClosed = errors.New("parallel: pool closed")

// Future is the eventual result of an asynchronous job. It completes
// exactly once; later Complete calls are ignored.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	value     T
	err       error
	callbacks []func(T, error)
}

// NewFuture returns an incomplete future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Completed returns a future that already holds v.
func Completed[T any](v T) *Future[T] {
	f := NewFuture[T]()
	f.Complete(v, nil)
	return f
}

// Failed returns a future that already holds err.
func Failed[T any](err error) *Future[T] {
	f := NewFuture[T]()
	var zero T
	f.Complete(zero, err)
	return f
}

// Complete sets the result and runs registered callbacks on the calling
// goroutine. It reports whether this call completed the future.
func (f *Future[T]) Complete(v T, err error) bool {
	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		return false
	default:
	}
	f.value, f.err = v, err
	cbs := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range cbs {
		cb(v, err)
	}
	return true
}

// Done is closed once the future completes.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// IsDone reports whether the future has completed.
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future completes or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Join blocks until the future completes.
func (f *Future[T]) Join() (T, error) {
	<-f.done
	return f.value, f.err
}

// OnComplete runs fn with the result once the future completes. If exec is
// non-nil fn is handed to it, otherwise fn runs on the completing
// goroutine (or immediately when already complete).
func (f *Future[T]) OnComplete(exec Executor, fn func(T, error)) {
	run := fn
	if exec != nil {
		run = func(v T, err error) { exec.Execute(func() { fn(v, err) }) }
	}
	f.mu.Lock()
	select {
	case <-f.done:
		f.mu.Unlock()
		run(f.value, f.err)
	default:
		f.callbacks = append(f.callbacks, run)
		f.mu.Unlock()
	}
}

// AllOf completes once every future has completed, or as soon as one of
// them fails with the first error.
func AllOf[T any](futures ...*Future[T]) *Future[struct{}] {
	all := NewFuture[struct{}]()
	if len(futures) == 0 {
		all.Complete(struct{}{}, nil)
		return all
	}
	var mu sync.Mutex
	remaining := len(futures)
	for _, f := range futures {
		f.OnComplete(nil, func(_ T, err error) {
			if err != nil {
				all.Complete(struct{}{}, err)
				return
			}
			mu.Lock()
			remaining--
			last := remaining == 0
			mu.Unlock()
			if last {
				all.Complete(struct{}{}, nil)
			}
		})
	}
	return all
}
