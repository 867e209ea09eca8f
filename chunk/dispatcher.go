// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package chunk

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/blockrender/crashreport"
	"github.com/gogpu/blockrender/gpu"
	"github.com/gogpu/blockrender/internal/parallel"
	"github.com/gogpu/blockrender/profiling"
	"github.com/gogpu/blockrender/rendersys"
)

// SectionRenderDispatcher compiles sections on a worker pool and uploads
// the results on the render thread.
//
// Queue and pack decisions run one at a time on a consecutive executor.
// Workers never touch the GPU: uploads are queued and run by
// UploadAllPendingUploads once per frame.
type SectionRenderDispatcher struct {
	rs       *rendersys.Context
	compiler SectionCompiler
	listener SectionListener
	profiler profiling.Profiler
	crashes  *crashreport.Sink

	queue      *CompileTaskDynamicQueue
	pool       *SectionBufferBuilderPool
	fixed      *SectionBufferBuilderPack
	workers    *parallel.WorkerPool
	ownWorkers bool
	serial     *parallel.ConsecutiveExecutor

	uploadMu sync.Mutex
	toUpload []func()

	toBatch atomic.Int32
	closed  atomic.Bool
	camera  atomic.Pointer[mgl64.Vec3]

	levelMu sync.RWMutex
	level   Level

	snapshotLimit int
}

// Option configures a SectionRenderDispatcher.
type Option func(*SectionRenderDispatcher)

// WithWorkers runs compile tasks on pool instead of a private one.
func WithWorkers(pool *parallel.WorkerPool) Option {
	return func(d *SectionRenderDispatcher) { d.workers = pool }
}

// WithBufferPool bounds concurrent compilation by the packs of pool.
func WithBufferPool(pool *SectionBufferBuilderPool) Option {
	return func(d *SectionRenderDispatcher) { d.pool = pool }
}

// WithListener reports compiled sections and global block entity changes
// to l.
func WithListener(l SectionListener) Option {
	return func(d *SectionRenderDispatcher) { d.listener = l }
}

// WithProfiler records compile and upload zones.
func WithProfiler(p profiling.Profiler) Option {
	return func(d *SectionRenderDispatcher) { d.profiler = p }
}

// WithCrashSink reports task failures to s.
func WithCrashSink(s *crashreport.Sink) Option {
	return func(d *SectionRenderDispatcher) { d.crashes = s }
}

// WithSnapshotLimit bounds the number of regions RebuildSections
// snapshots concurrently.
func WithSnapshotLimit(n int) Option {
	return func(d *SectionRenderDispatcher) { d.snapshotLimit = n }
}

// NewSectionRenderDispatcher returns a dispatcher rendering level.
//
// Without WithWorkers it owns a pool of GOMAXPROCS-1 workers. Without
// WithBufferPool the pool holds one pack per worker, capped at 30% of the
// runtime memory limit.
func NewSectionRenderDispatcher(rs *rendersys.Context, level Level, compiler SectionCompiler, opts ...Option) *SectionRenderDispatcher {
	d := &SectionRenderDispatcher{
		rs:            rs,
		compiler:      compiler,
		listener:      nopListener{},
		profiler:      profiling.Nop,
		queue:         NewCompileTaskDynamicQueue(),
		fixed:         NewSectionBufferBuilderPack(),
		serial:        parallel.NewConsecutiveExecutor("Section Renderer"),
		level:         level,
		snapshotLimit: runtime.GOMAXPROCS(0),
	}
	d.camera.Store(&mgl64.Vec3{})
	for _, o := range opts {
		o(d)
	}
	if d.workers == nil {
		d.workers = parallel.NewWorkerPool(max(1, runtime.GOMAXPROCS(0)-1))
		d.ownWorkers = true
	}
	if d.pool == nil {
		budget := debug.SetMemoryLimit(-1)
		if budget == math.MaxInt64 {
			budget = int64(d.workers.Workers()) * int64(TotalBuffersSize())
		} else {
			budget = budget / 10 * 3
		}
		d.pool = AllocateSectionBufferBuilderPool(d.workers.Workers(), budget)
	}
	if d.crashes == nil {
		d.crashes = crashreport.NewSink(nil)
	}
	d.serial.Execute(d.runTask)
	return d
}

// SetLevel switches the level sections are snapshotted from.
func (d *SectionRenderDispatcher) SetLevel(level Level) {
	d.levelMu.Lock()
	d.level = level
	d.levelMu.Unlock()
}

// Level returns the current level.
func (d *SectionRenderDispatcher) Level() Level {
	d.levelMu.RLock()
	defer d.levelMu.RUnlock()
	return d.level
}

// Crashes returns the sink task failures are reported to.
func (d *SectionRenderDispatcher) Crashes() *crashreport.Sink { return d.crashes }

// runTask starts the nearest queued task if a pack is free. It runs on
// the consecutive executor only.
func (d *SectionRenderDispatcher) runTask() {
	if d.closed.Load() || d.pool.IsEmpty() {
		return
	}
	task := d.queue.Poll(d.CameraPosition())
	if task == nil {
		return
	}
	pack := d.pool.Acquire()
	d.toBatch.Store(int32(d.queue.Size()))

	outer := parallel.SubmitNamed(d.workers, task.Name(), func() (*parallel.Future[TaskResult], error) {
		return task.doTask(pack), nil
	})
	outer.OnComplete(nil, func(inner *parallel.Future[TaskResult], err error) {
		if err != nil {
			d.finishTask(task, pack, Cancelled, err)
			return
		}
		inner.OnComplete(nil, func(res TaskResult, err error) { d.finishTask(task, pack, res, err) })
	})
}

func (d *SectionRenderDispatcher) finishTask(task CompileTask, pack *SectionBufferBuilderPack, res TaskResult, err error) {
	if err != nil {
		d.crashes.DelayCrash(err, "Batching sections")
		res = Cancelled
	} else {
		task.markCompleted()
	}
	d.serial.Execute(func() {
		if res == Successful {
			pack.ClearAll()
		} else {
			pack.DiscardAll()
		}
		d.pool.Release(pack)
		d.runTask()
	})
}

// Schedule queues task. It is a no-op once the dispatcher is disposed.
func (d *SectionRenderDispatcher) Schedule(task CompileTask) {
	if d.closed.Load() {
		return
	}
	d.serial.Execute(func() {
		if d.closed.Load() {
			return
		}
		d.queue.Add(task)
		d.toBatch.Store(int32(d.queue.Size()))
		d.runTask()
	})
}

// RebuildSections snapshots sections concurrently and schedules a rebuild
// for each of them. Pending tasks of every section are cancelled first.
// Nothing is scheduled when a snapshot fails.
func (d *SectionRenderDispatcher) RebuildSections(ctx context.Context, sections []*RenderSection, regions RegionProvider) error {
	for _, s := range sections {
		s.cancelTasks()
	}
	level := d.Level()
	snapshots := make([]RenderChunkRegion, len(sections))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, d.snapshotLimit))
	for i, s := range sections {
		pos := UnpackNode(s.SectionNode())
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := regions.CreateRegion(level, pos)
			if err != nil {
				return fmt.Errorf("chunk: snapshot section %s: %w", pos, err)
			}
			snapshots[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, s := range sections {
		d.Schedule(s.newRebuildTask(snapshots[i]))
	}
	return nil
}

// RebuildSectionSync compiles section on the calling goroutine.
func (d *SectionRenderDispatcher) RebuildSectionSync(section *RenderSection, regions RegionProvider) error {
	return section.CompileSync(regions)
}

func (d *SectionRenderDispatcher) enqueueUpload(job func()) {
	d.uploadMu.Lock()
	d.toUpload = append(d.toUpload, job)
	d.uploadMu.Unlock()
}

// UploadAllPendingUploads runs every queued upload. It must be called on
// the render thread.
func (d *SectionRenderDispatcher) UploadAllPendingUploads() {
	d.rs.AssertOnRenderThread()
	for {
		d.uploadMu.Lock()
		jobs := d.toUpload
		d.toUpload = nil
		d.uploadMu.Unlock()
		if len(jobs) == 0 {
			return
		}
		for _, job := range jobs {
			job()
		}
	}
}

// Stats returns the debug line: pending compiles, pending uploads and
// free packs.
func (d *SectionRenderDispatcher) Stats() string {
	return fmt.Sprintf("pC: %03d, pU: %02d, aB: %02d", d.ToBatchCount(), d.ToUpload(), d.FreeBufferCount())
}

// ToBatchCount returns the number of queued compile tasks.
func (d *SectionRenderDispatcher) ToBatchCount() int { return int(d.toBatch.Load()) }

// ToUpload returns the number of queued uploads.
func (d *SectionRenderDispatcher) ToUpload() int {
	d.uploadMu.Lock()
	defer d.uploadMu.Unlock()
	return len(d.toUpload)
}

// FreeBufferCount returns the number of idle buffer packs.
func (d *SectionRenderDispatcher) FreeBufferCount() int { return d.pool.FreeBufferCount() }

// SetCamera sets the position tasks are ordered and sorted against.
func (d *SectionRenderDispatcher) SetCamera(pos mgl64.Vec3) { d.camera.Store(&pos) }

// CameraPosition returns the camera position.
func (d *SectionRenderDispatcher) CameraPosition() mgl64.Vec3 { return *d.camera.Load() }

// BlockUntilClear cancels every queued task.
func (d *SectionRenderDispatcher) BlockUntilClear() { d.clearBatchQueue() }

func (d *SectionRenderDispatcher) clearBatchQueue() {
	d.queue.Clear()
	d.toBatch.Store(0)
}

// IsQueueEmpty reports whether nothing is waiting to be compiled or
// uploaded.
func (d *SectionRenderDispatcher) IsQueueEmpty() bool {
	return d.ToBatchCount() == 0 && d.ToUpload() == 0
}

// WaitIdle blocks until the consecutive executor has nothing left to run.
func (d *SectionRenderDispatcher) WaitIdle() { d.serial.WaitIdle() }

// Dispose stops scheduling, cancels queued tasks and flushes pending
// uploads. It must be called on the render thread.
func (d *SectionRenderDispatcher) Dispose() {
	d.closed.Store(true)
	d.clearBatchQueue()
	d.UploadAllPendingUploads()
	if d.ownWorkers {
		d.workers.Close()
	}
	gpu.Logger().Debug("section dispatcher disposed", "free_packs", d.FreeBufferCount(), "capacity", d.pool.Capacity())
}
