// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package parallel

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// WorkerPool
// =============================================================================

func TestWorkerPool_Create(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	if pool.Workers() != 4 {
		t.Errorf("Workers() = %d, want 4", pool.Workers())
	}
	if !pool.IsRunning() {
		t.Error("pool should be running after creation")
	}
}

func TestWorkerPool_CreateDefaultWorkers(t *testing.T) {
	for _, n := range []int{0, -5} {
		pool := NewWorkerPool(n)
		if got, want := pool.Workers(), runtime.GOMAXPROCS(0); got != want {
			t.Errorf("NewWorkerPool(%d).Workers() = %d, want %d", n, got, want)
		}
		pool.Close()
	}
}

func TestWorkerPool_ExecuteAll(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	jobs := make([]func(), 100)
	for i := range jobs {
		jobs[i] = func() { counter.Add(1) }
	}
	pool.ExecuteAll(jobs)

	if counter.Load() != 100 {
		t.Errorf("counter = %d, want 100", counter.Load())
	}
	pool.ExecuteAll(nil)
}

func TestWorkerPool_SubmitAfterClose(t *testing.T) {
	pool := NewWorkerPool(2)
	pool.Close()
	pool.Close()

	if pool.IsRunning() {
		t.Error("pool still running after Close")
	}
	if pool.Submit(func() { t.Error("job ran after Close") }) {
		t.Error("Submit after Close reported success")
	}
	if pool.Submit(nil) {
		t.Error("Submit(nil) reported success")
	}
}

func TestWorkerPool_CloseRunsQueuedWork(t *testing.T) {
	pool := NewWorkerPool(1)

	var counter atomic.Int64
	release := make(chan struct{})
	pool.Submit(func() { <-release })
	for range 5 {
		pool.Submit(func() { counter.Add(1) })
	}
	close(release)
	pool.Close()

	if counter.Load() != 5 {
		t.Errorf("counter = %d, want 5 queued jobs drained on Close", counter.Load())
	}
}

func TestWorkerPool_WorkStealing(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	// One slow job must not hold back the others queued round-robin.
	var fast atomic.Int64
	jobs := []func(){func() { time.Sleep(50 * time.Millisecond) }}
	for range 20 {
		jobs = append(jobs, func() { fast.Add(1) })
	}

	start := time.Now()
	pool.ExecuteAll(jobs)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("ExecuteAll took %v", elapsed)
	}
	if fast.Load() != 20 {
		t.Errorf("fast = %d, want 20", fast.Load())
	}
}

func TestWorkerPool_Concurrent(t *testing.T) {
	pool := NewWorkerPool(4)
	defer pool.Close()

	var counter atomic.Int64
	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			jobs := make([]func(), 50)
			for i := range jobs {
				jobs[i] = func() { counter.Add(1) }
			}
			pool.ExecuteAll(jobs)
		}()
	}
	wg.Wait()

	if counter.Load() != 500 {
		t.Errorf("counter = %d, want 500", counter.Load())
	}
}

// =============================================================================
// SubmitNamed and futures
// =============================================================================

func TestSubmitNamed(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Close()

	f := SubmitNamed(pool, "compile", func() (int, error) { return 42, nil })
	v, err := f.Wait(context.Background())
	if err != nil || v != 42 {
		t.Errorf("Wait() = %d, %v; want 42, nil", v, err)
	}
}

func TestSubmitNamed_Panic(t *testing.T) {
	pool := NewWorkerPool(1)
	defer pool.Close()

	f := SubmitNamed(pool, "compile", func() (int, error) { panic("boom") })
	_, err := f.Join()
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v, want panic error", err)
	}
}

func TestSubmitNamed_Closed(t *testing.T) {
	pool := NewWorkerPool(1)
	pool.Close()

	_, err := SubmitNamed(pool, "compile", func() (int, error) { return 1, nil }).Join()
	if !errors.Is(err, ErrPoolClosed) {
		t.Errorf("err = %v, want ErrPoolClosed", err)
	}
}

func TestFuture_CompleteOnce(t *testing.T) {
	f := NewFuture[string]()
	if f.IsDone() {
		t.Fatal("new future is done")
	}
	var calls atomic.Int32
	f.OnComplete(nil, func(string, error) { calls.Add(1) })

	if !f.Complete("a", nil) {
		t.Error("first Complete returned false")
	}
	if f.Complete("b", nil) {
		t.Error("second Complete returned true")
	}
	f.OnComplete(nil, func(v string, _ error) {
		if v != "a" {
			t.Errorf("late callback got %q, want a", v)
		}
		calls.Add(1)
	})
	if calls.Load() != 2 {
		t.Errorf("callbacks = %d, want 2", calls.Load())
	}
}

func TestFuture_WaitContext(t *testing.T) {
	f := NewFuture[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := f.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestAllOf(t *testing.T) {
	a, b := NewFuture[int](), NewFuture[int]()
	all := AllOf(a, b)
	a.Complete(1, nil)
	if all.IsDone() {
		t.Fatal("AllOf done before every future completed")
	}
	b.Complete(2, nil)
	if _, err := all.Join(); err != nil {
		t.Errorf("err = %v", err)
	}

	if _, err := AllOf[int]().Join(); err != nil {
		t.Errorf("empty AllOf: err = %v", err)
	}
}

func TestAllOf_FailFast(t *testing.T) {
	boom := errors.New("boom")
	a, b := NewFuture[int](), NewFuture[int]()
	all := AllOf(a, b)
	b.Complete(0, boom)
	if !all.IsDone() {
		t.Fatal("AllOf did not fail fast")
	}
	if _, err := all.Join(); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	a.Complete(1, nil)
}

// =============================================================================
// ConsecutiveExecutor
// =============================================================================

func TestConsecutiveExecutor_Order(t *testing.T) {
	e := NewConsecutiveExecutor("test")

	var mu sync.Mutex
	var got []int
	var running, overlap atomic.Int32
	for i := range 100 {
		e.Execute(func() {
			if running.Add(1) > 1 {
				overlap.Add(1)
			}
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			running.Add(-1)
		})
	}
	e.WaitIdle()

	if overlap.Load() != 0 {
		t.Error("functions overlapped")
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d, want submission order", i, v)
		}
	}
	if len(got) != 100 {
		t.Errorf("ran %d functions, want 100", len(got))
	}
}

func TestConsecutiveExecutor_Reentrant(t *testing.T) {
	e := NewConsecutiveExecutor("test")
	var order []string
	e.Execute(func() {
		order = append(order, "outer")
		e.Execute(func() { order = append(order, "inner") })
		order = append(order, "outer-end")
	})
	e.WaitIdle()

	want := []string{"outer", "outer-end", "inner"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("order = %v, want %v", order, want)
	}
	if e.Pending() != 0 {
		t.Errorf("Pending() = %d after WaitIdle", e.Pending())
	}
}

func TestFuture_OnCompleteExecutor(t *testing.T) {
	e := NewConsecutiveExecutor("callbacks")
	f := NewFuture[int]()
	got := make(chan int, 1)
	f.OnComplete(e, func(v int, _ error) { got <- v })
	f.Complete(7, nil)

	select {
	case v := <-got:
		if v != 7 {
			t.Errorf("callback got %d, want 7", v)
		}
	case <-time.After(time.Second):
		t.Fatal("callback never ran on executor")
	}
}
