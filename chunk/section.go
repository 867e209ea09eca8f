// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package chunk

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/gogpu/blockrender/gpu"
	"github.com/gogpu/blockrender/internal/parallel"
)

// neighborCheckDistSqr is the squared distance within which a section is
// compiled without waiting for its neighbours.
const neighborCheckDistSqr = 24 * 24

// RenderSection is one 16x16x16 mesh unit. Sections live in a fixed pool
// and are moved around the world with SetSectionNode.
//
// The compiled state and point of view are published atomically. Buffers
// belong to the render thread. Dirty flags and task bookkeeping belong to
// the thread that schedules rebuilds.
type RenderSection struct {
	d     *SectionRenderDispatcher
	index int

	node     atomic.Int64
	compiled atomic.Pointer[CompiledSection]
	pov      atomic.Pointer[TranslucencyPointOfView]

	mu            sync.Mutex
	dirty         bool
	playerChanged bool
	lastRebuild   *RebuildTask
	lastResort    *ResortTransparencyTask

	globalMu sync.Mutex
	global   []BlockEntity

	buffers map[RenderType]*SectionBuffers
}

// NewSection returns a section of the dispatcher at node.
func (d *SectionRenderDispatcher) NewSection(index int, node int64) *RenderSection {
	s := &RenderSection{
		d:       d,
		index:   index,
		buffers: make(map[RenderType]*SectionBuffers),
	}
	s.node.Store(SectionNode(-1, -1, -1))
	s.SetSectionNode(node)
	return s
}

// Index returns the slot of the section in its pool.
func (s *RenderSection) Index() int { return s.index }

// SectionNode returns the packed coordinate of the section.
func (s *RenderSection) SectionNode() int64 { return s.node.Load() }

// NeighborSectionNode returns the node next to the section towards d.
func (s *RenderSection) NeighborSectionNode(d Direction) int64 {
	return OffsetNodeDir(s.SectionNode(), d)
}

// RenderOrigin returns the minimum block corner of the section.
func (s *RenderSection) RenderOrigin() BlockPos { return UnpackNode(s.SectionNode()).Origin() }

// BoundingBox returns the block bounds of the section.
func (s *RenderSection) BoundingBox() AABB {
	o := s.RenderOrigin().Vec3()
	return AABB{Min: o, Max: o.Add(mgl64.Vec3{SectionSize, SectionSize, SectionSize})}
}

// SetSectionNode resets the section and moves it to node.
func (s *RenderSection) SetSectionNode(node int64) {
	s.Reset()
	s.node.Store(node)
}

// DistToPlayerSqr returns the squared distance from the section center to
// the camera.
func (s *RenderSection) DistToPlayerSqr() float64 {
	c := s.BoundingBox().Min.Add(mgl64.Vec3{8, 8, 8})
	d := c.Sub(s.d.CameraPosition())
	return d.Dot(d)
}

// HasAllNeighbors reports whether the section may be compiled: sections
// near the camera always may, others need the eight surrounding columns
// loaded.
func (s *RenderSection) HasAllNeighbors() bool {
	if s.DistToPlayerSqr() <= neighborCheckDistSqr {
		return true
	}
	level := s.d.Level()
	if level == nil {
		return false
	}
	node := s.SectionNode()
	for _, off := range [...][2]int{{-1, 0}, {0, -1}, {1, 0}, {0, 1}, {-1, -1}, {-1, 1}, {1, -1}, {1, 1}} {
		n := OffsetNode(node, off[0], 0, off[1])
		if !level.HasChunk(NodeX(n), NodeZ(n)) {
			return false
		}
	}
	return true
}

// Compiled returns the last published compile result.
func (s *RenderSection) Compiled() *CompiledSection { return s.compiled.Load() }

// PointOfView returns the point of view the translucent layer was last
// sorted from, or nil.
func (s *RenderSection) PointOfView() *TranslucencyPointOfView { return s.pov.Load() }

// Buffers returns the GPU buffers of layer t, or nil.
func (s *RenderSection) Buffers(t RenderType) *SectionBuffers { return s.buffers[t] }

// Reset cancels pending tasks, forgets the compiled state and releases the
// GPU buffers. It must run on the render thread.
func (s *RenderSection) Reset() {
	s.cancelTasks()
	s.compiled.Store(Uncompiled)
	s.pov.Store(nil)
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
	for _, b := range s.buffers {
		b.Close()
	}
	clear(s.buffers)
}

// SetDirty flags the section for a rebuild. playerChanged marks rebuilds
// caused by the player, which are compiled synchronously; the flag sticks
// until SetNotDirty.
func (s *RenderSection) SetDirty(playerChanged bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasDirty := s.dirty
	s.dirty = true
	s.playerChanged = playerChanged || wasDirty && s.playerChanged
}

// SetNotDirty clears both dirty flags.
func (s *RenderSection) SetNotDirty() {
	s.mu.Lock()
	s.dirty, s.playerChanged = false, false
	s.mu.Unlock()
}

func (s *RenderSection) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

func (s *RenderSection) IsDirtyFromPlayer() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty && s.playerChanged
}

// ResortTransparency schedules a re-sort of the translucent layer.
func (s *RenderSection) ResortTransparency() {
	t := &ResortTransparencyTask{
		compileTask: compileTask{section: s, recompile: true},
		compiled:    s.Compiled(),
	}
	s.mu.Lock()
	s.lastResort = t
	s.mu.Unlock()
	s.d.Schedule(t)
}

// HasTranslucentGeometry reports whether the compiled section has a
// translucent layer.
func (s *RenderSection) HasTranslucentGeometry() bool {
	return !s.Compiled().IsEmpty(Translucent)
}

// TransparencyResortingScheduled reports whether a re-sort is pending.
func (s *RenderSection) TransparencyResortingScheduled() bool {
	s.mu.Lock()
	t := s.lastResort
	s.mu.Unlock()
	return t != nil && !t.IsCompleted()
}

func (s *RenderSection) cancelTasks() {
	s.mu.Lock()
	rebuild, resort := s.lastRebuild, s.lastResort
	s.lastRebuild, s.lastResort = nil, nil
	s.mu.Unlock()
	if rebuild != nil {
		rebuild.Cancel()
	}
	if resort != nil {
		resort.Cancel()
	}
}

// CreateCompileTask cancels pending tasks, snapshots the section and
// returns a rebuild task for it.
func (s *RenderSection) CreateCompileTask(regions RegionProvider) (*RebuildTask, error) {
	s.cancelTasks()
	region, err := regions.CreateRegion(s.d.Level(), UnpackNode(s.SectionNode()))
	if err != nil {
		return nil, fmt.Errorf("chunk: snapshot section %s: %w", UnpackNode(s.SectionNode()), err)
	}
	return s.newRebuildTask(region), nil
}

func (s *RenderSection) newRebuildTask(region RenderChunkRegion) *RebuildTask {
	t := &RebuildTask{
		compileTask: compileTask{section: s, recompile: s.Compiled() != Uncompiled},
		region:      region,
	}
	s.mu.Lock()
	s.lastRebuild = t
	s.mu.Unlock()
	return t
}

// RebuildSectionAsync schedules a rebuild on the dispatcher's workers.
func (s *RenderSection) RebuildSectionAsync(regions RegionProvider) error {
	t, err := s.CreateCompileTask(regions)
	if err != nil {
		return err
	}
	s.d.Schedule(t)
	return nil
}

// CompileSync compiles the section on the calling goroutine with the
// dispatcher's fixed buffer pack. Uploads still go through the upload
// queue.
func (s *RenderSection) CompileSync(regions RegionProvider) error {
	t, err := s.CreateCompileTask(regions)
	if err != nil {
		return err
	}
	f := t.doTask(s.d.fixed)
	if f.IsDone() {
		if _, err := f.Join(); err != nil {
			s.d.fixed.DiscardAll()
			return err
		}
	}
	f.OnComplete(nil, func(TaskResult, error) { s.d.fixed.ClearAll() })
	return nil
}

func (s *RenderSection) updateGlobalBlockEntities(entities []BlockEntity) {
	next := make(map[BlockEntity]struct{}, len(entities))
	unique := make([]BlockEntity, 0, len(entities))
	for _, e := range entities {
		if _, ok := next[e]; !ok {
			next[e] = struct{}{}
			unique = append(unique, e)
		}
	}

	s.globalMu.Lock()
	prev := s.global
	s.global = unique
	s.globalMu.Unlock()

	var removed, added []BlockEntity
	old := make(map[BlockEntity]struct{}, len(prev))
	for _, e := range prev {
		old[e] = struct{}{}
		if _, ok := next[e]; !ok {
			removed = append(removed, e)
		}
	}
	for _, e := range unique {
		if _, ok := old[e]; !ok {
			added = append(added, e)
		}
	}
	s.d.listener.UpdateGlobalBlockEntities(removed, added)
}

// GlobalBlockEntities returns the block entities rendered regardless of
// section visibility.
func (s *RenderSection) GlobalBlockEntities() []BlockEntity {
	s.globalMu.Lock()
	defer s.globalMu.Unlock()
	return append([]BlockEntity(nil), s.global...)
}

func (s *RenderSection) setCompiled(c *CompiledSection) {
	s.compiled.Store(c)
	s.d.listener.AddRecentlyCompiledSection(s)
}

func (s *RenderSection) createVertexSorting(pos SectionPos) VertexSorting {
	cam := s.d.CameraPosition()
	o := pos.Origin()
	return ByDistance(mgl32.Vec3{
		float32(cam.X() - float64(o.X)),
		float32(cam.Y() - float64(o.Y)),
		float32(cam.Z() - float64(o.Z)),
	})
}

func (s *RenderSection) bufferLabel(kind string, t RenderType) string {
	p := UnpackNode(s.SectionNode())
	return fmt.Sprintf("Section %s buffer - layer: %s; cords: %d, %d, %d", kind, t.Name(), p.X, p.Y, p.Z)
}

// uploadSectionLayer queues mesh for upload on the render thread. Buffers
// only grow: an existing buffer is rewritten in place when the data fits.
func (s *RenderSection) uploadSectionLayer(t RenderType, mesh *MeshData) *parallel.Future[struct{}] {
	if s.d.closed.Load() {
		mesh.Close()
		return parallel.Completed(struct{}{})
	}
	f := parallel.NewFuture[struct{}]()
	s.d.enqueueUpload(func() {
		zone := s.d.profiler.Zone("Upload Section Layer")
		err := s.applyLayer(t, mesh)
		mesh.Close()
		zone.Close()
		f.Complete(struct{}{}, err)
	})
	return f
}

func (s *RenderSection) applyLayer(t RenderType, mesh *MeshData) error {
	dev := s.d.rs.Device()
	vertices := mesh.Vertices.Bytes()
	var indices []byte
	if mesh.Indices != nil {
		indices = mesh.Indices.Bytes()
	}

	b, ok := s.buffers[t]
	if !ok {
		vb, err := dev.CreateBufferWithData(s.bufferLabel("vertex", t), gpu.BufferVertices, gpu.StaticWrite, vertices)
		if err != nil {
			return fmt.Errorf("chunk: upload %s: %w", t, err)
		}
		var ib gpu.Buffer
		if indices != nil {
			if ib, err = dev.CreateBufferWithData(s.bufferLabel("index", t), gpu.BufferIndices, gpu.StaticWrite, indices); err != nil {
				vb.Close()
				return fmt.Errorf("chunk: upload %s: %w", t, err)
			}
		}
		s.buffers[t] = &SectionBuffers{vertex: vb, index: ib, indexCount: mesh.IndexCount, indexType: mesh.IndexType}
		return nil
	}

	enc := dev.CreateCommandEncoder()
	if b.vertex.Size() < len(vertices) {
		b.vertex.Close()
		vb, err := dev.CreateBufferWithData(s.bufferLabel("vertex", t), gpu.BufferVertices, gpu.StaticWrite, vertices)
		if err != nil {
			s.dropLayer(t)
			return fmt.Errorf("chunk: upload %s: %w", t, err)
		}
		b.vertex = vb
	} else if !b.vertex.IsClosed() {
		if err := enc.WriteToBuffer(b.vertex, vertices, 0); err != nil {
			return fmt.Errorf("chunk: upload %s: %w", t, err)
		}
	}

	switch {
	case indices == nil:
		if b.index != nil {
			b.index.Close()
			b.index = nil
		}
	case b.index != nil && b.index.Size() >= len(indices):
		if !b.index.IsClosed() {
			if err := enc.WriteToBuffer(b.index, indices, 0); err != nil {
				return fmt.Errorf("chunk: upload %s indices: %w", t, err)
			}
		}
	default:
		if b.index != nil {
			b.index.Close()
		}
		ib, err := dev.CreateBufferWithData(s.bufferLabel("index", t), gpu.BufferIndices, gpu.StaticWrite, indices)
		if err != nil {
			b.index = nil
			s.dropLayer(t)
			return fmt.Errorf("chunk: upload %s indices: %w", t, err)
		}
		b.index = ib
	}
	b.indexCount = mesh.IndexCount
	b.indexType = mesh.IndexType
	return nil
}

// dropLayer releases the buffers of t after a failed upload so that the
// layer is not drawn with a closed buffer.
func (s *RenderSection) dropLayer(t RenderType) {
	if b, ok := s.buffers[t]; ok {
		b.Close()
		delete(s.buffers, t)
	}
}

// uploadSectionIndexBuffer queues a re-sorted index buffer for upload.
func (s *RenderSection) uploadSectionIndexBuffer(r *ByteResult, t RenderType) *parallel.Future[struct{}] {
	if s.d.closed.Load() {
		r.Close()
		return parallel.Completed(struct{}{})
	}
	f := parallel.NewFuture[struct{}]()
	s.d.enqueueUpload(func() {
		zone := s.d.profiler.Zone("Upload Section Indices")
		err := s.applyIndices(r, t)
		r.Close()
		zone.Close()
		f.Complete(struct{}{}, err)
	})
	return f
}

func (s *RenderSection) applyIndices(r *ByteResult, t RenderType) error {
	b := s.buffers[t]
	if b == nil || s.d.closed.Load() {
		return nil
	}
	dev := s.d.rs.Device()
	if b.index == nil || b.index.Size() < r.Len() {
		if b.index != nil {
			b.index.Close()
		}
		ib, err := dev.CreateBufferWithData(s.bufferLabel("index", t), gpu.BufferIndices, gpu.StaticWrite, r.Bytes())
		if err != nil {
			b.index = nil
			return fmt.Errorf("chunk: upload %s indices: %w", t, err)
		}
		b.index = ib
		return nil
	}
	if b.index.IsClosed() {
		return nil
	}
	if err := dev.CreateCommandEncoder().WriteToBuffer(b.index, r.Bytes(), 0); err != nil {
		return fmt.Errorf("chunk: upload %s indices: %w", t, err)
	}
	return nil
}
