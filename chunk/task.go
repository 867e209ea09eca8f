// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package chunk

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gogpu/blockrender/internal/parallel"
)

// ErrTaskCancelled may be returned by a SectionCompiler that noticed its
// task was cancelled. It is not reported as a failure.
var ErrTaskCancelled = errors.New("chunk: task cancelled")

func isCancellation(err error) bool {
	return errors.Is(err, ErrTaskCancelled) || errors.Is(err, context.Canceled)
}

// TaskResult is how a compile task ended.
type TaskResult int

const (
	Successful TaskResult = iota
	Cancelled
)

func (r TaskResult) String() string {
	if r == Successful {
		return "successful"
	}
	return "cancelled"
}

// CompileTask is a unit of work queued on the dispatcher: a RebuildTask or
// a ResortTransparencyTask.
type CompileTask interface {
	// Name is the worker label of the task kind.
	Name() string
	IsRecompile() bool
	// RenderOrigin is read at poll time, so a moved section is ordered
	// by its current position.
	RenderOrigin() BlockPos
	Cancel()
	IsCancelled() bool
	IsCompleted() bool

	doTask(pack *SectionBufferBuilderPack) *parallel.Future[TaskResult]
	markCompleted()
}

type compileTask struct {
	section   *RenderSection
	recompile bool
	cancelled atomic.Bool
	completed atomic.Bool
}

func (t *compileTask) IsRecompile() bool      { return t.recompile }
func (t *compileTask) RenderOrigin() BlockPos { return t.section.RenderOrigin() }
func (t *compileTask) IsCancelled() bool      { return t.cancelled.Load() }
func (t *compileTask) IsCompleted() bool      { return t.completed.Load() }
func (t *compileTask) markCompleted()         { t.completed.Store(true) }

var cancelledResult = parallel.Completed(Cancelled)

// RebuildTask compiles a section from a region snapshot and uploads every
// rendered layer.
type RebuildTask struct {
	compileTask

	mu     sync.Mutex
	region RenderChunkRegion
}

func (t *RebuildTask) Name() string { return "rend_chk_rebuild" }

// Cancel drops the snapshot. The first cancel marks the section dirty
// again so it gets rebuilt later.
func (t *RebuildTask) Cancel() {
	t.takeRegion()
	if t.cancelled.CompareAndSwap(false, true) {
		t.section.SetDirty(false)
	}
}

func (t *RebuildTask) takeRegion() RenderChunkRegion {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.region
	t.region = nil
	return r
}

func (t *RebuildTask) doTask(pack *SectionBufferBuilderPack) *parallel.Future[TaskResult] {
	if t.IsCancelled() {
		return cancelledResult
	}
	region := t.takeRegion()
	s := t.section
	d := s.d
	if region == nil {
		s.setCompiled(Empty)
		return parallel.Completed(Successful)
	}
	node := s.SectionNode()
	pos := UnpackNode(node)
	if t.IsCancelled() {
		return cancelledResult
	}

	zone := d.profiler.Zone("Compile Section")
	results, err := d.compiler.Compile(pos, region, s.createVertexSorting(pos), pack)
	zone.Close()
	if err != nil {
		if isCancellation(err) {
			return cancelledResult
		}
		return parallel.Failed[TaskResult](err)
	}

	pov := PointOfView(d.CameraPosition(), node)
	s.updateGlobalBlockEntities(results.GlobalBlockEntities)
	if t.IsCancelled() {
		results.Release()
		return cancelledResult
	}

	compiled := &CompiledSection{
		blockEntities: slices.Clone(results.BlockEntities),
		visibility:    results.Visibility,
		transparency:  results.TransparencyState,
	}
	uploads := make([]*parallel.Future[struct{}], 0, len(results.RenderedLayers))
	for _, layer := range ChunkLayers() {
		mesh, ok := results.RenderedLayers[layer]
		if !ok {
			continue
		}
		uploads = append(uploads, s.uploadSectionLayer(layer, mesh))
		compiled.layers.add(layer)
	}

	out := parallel.NewFuture[TaskResult]()
	parallel.AllOf(uploads...).OnComplete(nil, func(_ struct{}, err error) {
		if err != nil && !isCancellation(err) {
			d.crashes.DelayCrash(err, "Rendering section")
		}
		if t.IsCancelled() {
			out.Complete(Cancelled, nil)
			return
		}
		s.setCompiled(compiled)
		s.pov.Store(&pov)
		out.Complete(Successful, nil)
	})
	return out
}

// ResortTransparencyTask re-sorts the translucent layer of a compiled
// section for the current camera position and uploads the new indices.
type ResortTransparencyTask struct {
	compileTask

	compiled *CompiledSection
}

func (t *ResortTransparencyTask) Name() string { return "rend_chk_sort" }

func (t *ResortTransparencyTask) Cancel() { t.cancelled.Store(true) }

func (t *ResortTransparencyTask) doTask(pack *SectionBufferBuilderPack) *parallel.Future[TaskResult] {
	if t.IsCancelled() {
		return cancelledResult
	}
	state := t.compiled.TransparencyState()
	if state == nil || t.compiled.IsEmpty(Translucent) {
		return cancelledResult
	}
	s := t.section
	d := s.d
	node := s.SectionNode()
	sorting := s.createVertexSorting(UnpackNode(node))
	pov := PointOfView(d.CameraPosition(), node)
	if cur := s.PointOfView(); cur != nil && *cur == pov && !pov.IsAxisAligned() {
		return cancelledResult
	}

	indices := state.BuildSortedIndexBuffer(pack.Buffer(Translucent), sorting)
	if indices == nil {
		return cancelledResult
	}
	if t.IsCancelled() {
		indices.Close()
		return cancelledResult
	}

	out := parallel.NewFuture[TaskResult]()
	s.uploadSectionIndexBuffer(indices, Translucent).OnComplete(nil, func(_ struct{}, err error) {
		if err != nil && !isCancellation(err) {
			d.crashes.DelayCrash(err, "Rendering section")
		}
		if t.IsCancelled() {
			out.Complete(Cancelled, nil)
			return
		}
		s.pov.Store(&pov)
		out.Complete(Successful, nil)
	})
	return out
}
