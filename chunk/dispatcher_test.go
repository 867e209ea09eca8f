// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package chunk

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/blockrender/crashreport"
	"github.com/gogpu/blockrender/gpu"
	"github.com/gogpu/blockrender/internal/halgpu"
	"github.com/gogpu/blockrender/internal/parallel"
	"github.com/gogpu/blockrender/profiling"
	"github.com/gogpu/blockrender/rendersys"
	"github.com/gogpu/blockrender/shaders"
)

type testEntity struct{ pos BlockPos }

func (e *testEntity) BlockPos() BlockPos { return e.pos }

// testLevel is a sparse block world. Columns listed in missing are not
// loaded.
type testLevel struct {
	mu      sync.Mutex
	blocks  map[BlockPos]Block
	missing map[[2]int]bool
	global  []BlockEntity
}

func newTestLevel() *testLevel {
	return &testLevel{blocks: make(map[BlockPos]Block), missing: make(map[[2]int]bool)}
}

func (l *testLevel) HasChunk(x, z int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.missing[[2]int{x, z}]
}

func (l *testLevel) BlockAt(x, y, z int) Block {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.blocks[BlockPos{x, y, z}]
}

func (l *testLevel) BlockEntities(pos SectionPos) (local, global []BlockEntity) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if pos != (SectionPos{}) {
		return nil, nil
	}
	return nil, slices.Clone(l.global)
}

func (l *testLevel) fill(x0, y0, z0, x1, y1, z1 int, b Block) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for y := y0; y <= y1; y++ {
		for z := z0; z <= z1; z++ {
			for x := x0; x <= x1; x++ {
				l.blocks[BlockPos{x, y, z}] = b
			}
		}
	}
}

// pond is a stone floor with a layer of water on top in section 0,0,0.
func pond() *testLevel {
	l := newTestLevel()
	l.fill(0, 0, 0, 15, 1, 15, Stone)
	l.fill(4, 2, 4, 11, 2, 11, Water)
	return l
}

type dispatcherFixture struct {
	rs       *rendersys.Context
	d        *SectionRenderDispatcher
	level    *testLevel
	listener *RecentlyCompiled
	crashes  []*crashreport.Report
}

func newDispatcher(t *testing.T, level *testLevel, compiler SectionCompiler, opts ...Option) *dispatcherFixture {
	t.Helper()
	return newDispatcherOn(t, nil, level, compiler, opts...)
}

func newDispatcherOn(t *testing.T, devOpts []halgpu.Option, level *testLevel, compiler SectionCompiler, opts ...Option) *dispatcherFixture {
	t.Helper()
	dev, err := halgpu.Open(noop.API{}, append([]halgpu.Option{halgpu.WithShaderSource(shaders.Source)}, devOpts...)...)
	require.NoError(t, err)
	t.Cleanup(dev.Close)
	rs, err := rendersys.New(dev)
	require.NoError(t, err)
	require.NoError(t, rs.InitRenderThread())
	t.Cleanup(func() {
		rs.Close()
		rs.ReleaseRenderThread()
	})

	f := &dispatcherFixture{rs: rs, level: level, listener: NewRecentlyCompiled()}
	workers := parallel.NewWorkerPool(2)
	t.Cleanup(workers.Close)
	sink := crashreport.NewSink(func(r *crashreport.Report) { f.crashes = append(f.crashes, r) })
	opts = append([]Option{
		WithWorkers(workers),
		WithBufferPool(NewSectionBufferBuilderPool(NewSectionBufferBuilderPack(), NewSectionBufferBuilderPack())),
		WithListener(f.listener),
		WithCrashSink(sink),
	}, opts...)
	f.d = NewSectionRenderDispatcher(rs, level, compiler, opts...)
	t.Cleanup(f.d.Dispose)
	return f
}

// settle runs uploads on the render thread until cond holds and every
// pack is back in the pool.
func (f *dispatcherFixture) settle(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		f.d.UploadAllPendingUploads()
		f.d.WaitIdle()
		if cond() && f.d.FreeBufferCount() == f.d.pool.Capacity() && f.d.ToUpload() == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("dispatcher did not settle: %s", f.d.Stats())
		}
		time.Sleep(time.Millisecond)
	}
}

func compiled(s *RenderSection) func() bool {
	return func() bool { return s.Compiled() != Uncompiled }
}

func TestRebuildUploadsLayers(t *testing.T) {
	f := newDispatcher(t, pond(), CubeCompiler{})
	assert.Equal(t, "pC: 000, pU: 00, aB: 02", f.d.Stats())

	f.d.SetCamera(mgl64.Vec3{-20, 40, -20})
	s := f.d.NewSection(0, SectionNode(0, 0, 0))
	require.NoError(t, s.RebuildSectionAsync(SnapshotRegions{}))
	f.settle(t, compiled(s))

	c := s.Compiled()
	assert.True(t, c.HasRenderableLayers())
	assert.False(t, c.IsEmpty(Solid))
	assert.False(t, c.IsEmpty(Translucent))
	assert.True(t, c.IsEmpty(Cutout))
	assert.True(t, s.HasTranslucentGeometry())
	require.NotNil(t, c.TransparencyState())

	solid := s.Buffers(Solid)
	require.NotNil(t, solid)
	assert.Equal(t, "Section vertex buffer - layer: solid; cords: 0, 0, 0", solid.VertexBuffer().Label())
	assert.Nil(t, solid.IndexBuffer())
	assert.Equal(t, gpu.BufferVertices, solid.VertexBuffer().Type())

	water := s.Buffers(Translucent)
	require.NotNil(t, water)
	require.NotNil(t, water.IndexBuffer())
	assert.Equal(t, "Section index buffer - layer: translucent; cords: 0, 0, 0", water.IndexBuffer().Label())
	// 8x8 tops and 4x8 sides; the bottoms rest on stone.
	assert.Equal(t, (64+32)*6, water.IndexCount())

	require.NotNil(t, s.PointOfView())
	assert.Equal(t, TranslucencyPointOfView{-1, 1, -1}, *s.PointOfView())
	assert.Equal(t, []*RenderSection{s}, f.listener.Drain())
	assert.Empty(t, f.crashes)
	assert.True(t, f.d.IsQueueEmpty())
}

func TestEmptySectionPublishesEmpty(t *testing.T) {
	f := newDispatcher(t, pond(), CubeCompiler{})
	s := f.d.NewSection(0, SectionNode(0, 5, 0))
	require.NoError(t, s.RebuildSectionAsync(SnapshotRegions{}))
	f.settle(t, compiled(s))
	assert.Same(t, Empty, s.Compiled())
	assert.Nil(t, s.Buffers(Solid))
}

func TestRebuildReusesBuffersThatFit(t *testing.T) {
	level := pond()
	f := newDispatcher(t, level, CubeCompiler{})
	s := f.d.NewSection(0, SectionNode(0, 0, 0))
	require.NoError(t, s.RebuildSectionAsync(SnapshotRegions{}))
	f.settle(t, compiled(s))
	first := s.Compiled()
	vb := s.Buffers(Solid).VertexBuffer()

	require.NoError(t, s.RebuildSectionAsync(SnapshotRegions{}))
	f.settle(t, func() bool { return s.Compiled() != first })
	assert.Same(t, vb, s.Buffers(Solid).VertexBuffer(), "same size mesh is rewritten in place")

	level.fill(0, 5, 0, 0, 5, 0, Stone)
	level.fill(4, 8, 4, 4, 8, 4, Stone)
	second := s.Compiled()
	require.NoError(t, s.RebuildSectionAsync(SnapshotRegions{}))
	f.settle(t, func() bool { return s.Compiled() != second })
	assert.NotSame(t, vb, s.Buffers(Solid).VertexBuffer(), "larger mesh gets a new buffer")
	assert.True(t, vb.IsClosed())
}

// testMesh builds a mesh with the given vertex and index byte sizes. A
// zero index size leaves Indices nil.
func testMesh(vertexBytes, indexBytes int) *MeshData {
	m := &MeshData{IndexType: gpu.IndexInt}
	vb := NewByteBuffer(vertexBytes)
	vb.Reserve(vertexBytes)
	m.Vertices = vb.Build()
	if indexBytes > 0 {
		ib := NewByteBuffer(indexBytes)
		ib.Reserve(indexBytes)
		m.Indices = ib.Build()
		m.IndexCount = indexBytes / 4
	}
	return m
}

func TestFailedUploadDropsLayer(t *testing.T) {
	const tooLarge = (halgpu.MinMemoryBudgetMB + 1) << 20
	tests := []struct {
		name              string
		vertices, indices int
	}{
		{"vertex buffer", tooLarge, 0},
		{"index buffer", 64, tooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatcherOn(t, []halgpu.Option{halgpu.WithMemoryBudget(halgpu.MinMemoryBudgetMB)}, pond(), CubeCompiler{})
			s := f.d.NewSection(0, SectionNode(0, 0, 0))

			small := testMesh(32, 24)
			require.NoError(t, s.applyLayer(Solid, small))
			small.Close()
			require.NotNil(t, s.Buffers(Solid))
			oldVertex, oldIndex := s.Buffers(Solid).VertexBuffer(), s.Buffers(Solid).IndexBuffer()

			big := testMesh(tt.vertices, tt.indices)
			err := s.applyLayer(Solid, big)
			big.Close()
			assert.ErrorIs(t, err, gpu.ErrOutOfMemory)
			assert.Nil(t, s.Buffers(Solid), "failed layer must not stay drawable")
			assert.True(t, oldVertex.IsClosed())
			assert.True(t, oldIndex.IsClosed())

			again := testMesh(32, 0)
			require.NoError(t, s.applyLayer(Solid, again))
			again.Close()
			require.NotNil(t, s.Buffers(Solid))
			assert.False(t, s.Buffers(Solid).VertexBuffer().IsClosed())
		})
	}
}

// gatedCompiler blocks its first compile until released.
type gatedCompiler struct {
	CubeCompiler
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (g *gatedCompiler) Compile(pos SectionPos, region RenderChunkRegion, sorting VertexSorting, pack *SectionBufferBuilderPack) (*CompileResults, error) {
	if g.calls.Add(1) == 1 {
		close(g.entered)
		<-g.release
	}
	return g.CubeCompiler.Compile(pos, region, sorting, pack)
}

func TestSecondRebuildCancelsFirst(t *testing.T) {
	gate := &gatedCompiler{entered: make(chan struct{}), release: make(chan struct{})}
	f := newDispatcher(t, pond(), gate)
	s := f.d.NewSection(0, SectionNode(0, 0, 0))
	s.SetNotDirty()

	first, err := s.CreateCompileTask(SnapshotRegions{})
	require.NoError(t, err)
	f.d.Schedule(first)
	<-gate.entered

	require.NoError(t, s.RebuildSectionAsync(SnapshotRegions{}))
	assert.True(t, first.IsCancelled())
	assert.True(t, s.IsDirty(), "cancelling a rebuild marks the section dirty")

	close(gate.release)
	f.settle(t, func() bool { return first.IsCompleted() && compiled(s)() })
	assert.Len(t, f.listener.Drain(), 1, "only the second rebuild publishes")
	assert.Equal(t, int32(2), gate.calls.Load())
	assert.Empty(t, f.crashes)
}

func TestResortTransparency(t *testing.T) {
	f := newDispatcher(t, pond(), CubeCompiler{})
	f.d.SetCamera(mgl64.Vec3{-20, 40, -20})
	s := f.d.NewSection(0, SectionNode(0, 0, 0))
	require.NoError(t, s.RebuildSectionAsync(SnapshotRegions{}))
	f.settle(t, compiled(s))
	ib := s.Buffers(Translucent).IndexBuffer()

	f.d.SetCamera(mgl64.Vec3{40, 40, 40})
	s.ResortTransparency()
	assert.True(t, s.TransparencyResortingScheduled())
	f.settle(t, func() bool { return !s.TransparencyResortingScheduled() })
	assert.Equal(t, TranslucencyPointOfView{1, 1, 1}, *s.PointOfView())
	assert.Same(t, ib, s.Buffers(Translucent).IndexBuffer(), "sorted indices are rewritten in place")

	// Same point of view and not axis aligned: nothing to do.
	pov := s.PointOfView()
	s.ResortTransparency()
	f.settle(t, func() bool { return !s.TransparencyResortingScheduled() })
	assert.Same(t, pov, s.PointOfView())
}

func TestResetReleasesBuffers(t *testing.T) {
	f := newDispatcher(t, pond(), CubeCompiler{})
	s := f.d.NewSection(3, SectionNode(0, 0, 0))
	require.NoError(t, s.RebuildSectionAsync(SnapshotRegions{}))
	f.settle(t, compiled(s))
	vb := s.Buffers(Solid).VertexBuffer()
	s.SetNotDirty()

	s.SetSectionNode(SectionNode(2, 0, 0))
	assert.Same(t, Uncompiled, s.Compiled())
	assert.Nil(t, s.Buffers(Solid))
	assert.Nil(t, s.PointOfView())
	assert.True(t, vb.IsClosed())
	assert.True(t, s.IsDirty())
	assert.Equal(t, 3, s.Index())
	assert.Equal(t, BlockPos{32, 0, 0}, s.RenderOrigin())
	assert.Equal(t, mgl64.Vec3{48, 16, 16}, s.BoundingBox().Max)
}

func TestDirtyFlags(t *testing.T) {
	f := newDispatcher(t, pond(), CubeCompiler{})
	s := f.d.NewSection(0, SectionNode(0, 0, 0))
	assert.True(t, s.IsDirty())
	assert.False(t, s.IsDirtyFromPlayer())

	s.SetNotDirty()
	s.SetDirty(true)
	assert.True(t, s.IsDirtyFromPlayer())
	s.SetDirty(false)
	assert.True(t, s.IsDirtyFromPlayer(), "a pending player change sticks")

	s.SetNotDirty()
	assert.False(t, s.IsDirty())
	s.SetDirty(false)
	assert.True(t, s.IsDirty())
	assert.False(t, s.IsDirtyFromPlayer())
}

func TestHasAllNeighbors(t *testing.T) {
	level := pond()
	level.missing[[2]int{6, 0}] = true
	f := newDispatcher(t, level, CubeCompiler{})
	near := f.d.NewSection(0, SectionNode(0, 0, 0))
	far := f.d.NewSection(1, SectionNode(5, 0, 0))
	farther := f.d.NewSection(2, SectionNode(3, 0, 3))

	f.d.SetCamera(mgl64.Vec3{8, 8, 8})
	assert.True(t, near.HasAllNeighbors())
	assert.False(t, far.HasAllNeighbors(), "column 6,0 is missing")
	assert.True(t, farther.HasAllNeighbors())
	assert.Equal(t, SectionNode(6, 0, 0), far.NeighborSectionNode(East))
	assert.InDelta(t, 80.0*80.0, far.DistToPlayerSqr(), 1e-9)
}

func TestCompileSync(t *testing.T) {
	f := newDispatcher(t, pond(), CubeCompiler{})
	s := f.d.NewSection(0, SectionNode(0, 0, 0))
	require.NoError(t, f.d.RebuildSectionSync(s, SnapshotRegions{}))
	assert.Same(t, Uncompiled, s.Compiled(), "published after upload")
	assert.Positive(t, f.d.ToUpload())

	f.d.UploadAllPendingUploads()
	assert.NotSame(t, Uncompiled, s.Compiled())
	assert.NotNil(t, s.Buffers(Solid))
	for _, l := range ChunkLayers() {
		assert.Zero(t, f.d.fixed.Buffer(l).OpenResults(), "layer %s", l)
		assert.Zero(t, f.d.fixed.Buffer(l).Pending(), "layer %s", l)
	}
}

type failingCompiler struct{ err error }

func (c failingCompiler) Compile(SectionPos, RenderChunkRegion, VertexSorting, *SectionBufferBuilderPack) (*CompileResults, error) {
	return nil, c.err
}

func TestCompileFailureIsDelayedCrash(t *testing.T) {
	boom := errors.New("boom")
	f := newDispatcher(t, pond(), failingCompiler{err: boom})
	s := f.d.NewSection(0, SectionNode(0, 0, 0))
	require.NoError(t, s.RebuildSectionAsync(SnapshotRegions{}))
	f.settle(t, func() bool { return f.d.Crashes().Pending() })

	r := f.d.Crashes().Report()
	require.NotNil(t, r)
	assert.Equal(t, "Batching sections", r.Label)
	assert.ErrorIs(t, r, boom)
	assert.Same(t, Uncompiled, s.Compiled())
	assert.Equal(t, 2, f.d.FreeBufferCount(), "the pack is recycled")
}

func TestCancellationIsNotACrash(t *testing.T) {
	f := newDispatcher(t, pond(), failingCompiler{err: ErrTaskCancelled})
	s := f.d.NewSection(0, SectionNode(0, 0, 0))
	task, err := s.CreateCompileTask(SnapshotRegions{})
	require.NoError(t, err)
	f.d.Schedule(task)
	f.settle(t, task.IsCompleted)
	assert.False(t, f.d.Crashes().Pending())
}

func TestDisposeStopsScheduling(t *testing.T) {
	f := newDispatcher(t, pond(), CubeCompiler{})
	s := f.d.NewSection(0, SectionNode(0, 0, 0))
	f.d.Dispose()
	require.NoError(t, s.RebuildSectionAsync(SnapshotRegions{}))
	f.d.WaitIdle()
	assert.Zero(t, f.d.ToBatchCount())
	assert.True(t, f.d.IsQueueEmpty())
	assert.Same(t, Uncompiled, s.Compiled())
}

func TestBlockUntilClearCancelsQueued(t *testing.T) {
	f := newDispatcher(t, pond(), CubeCompiler{},
		WithBufferPool(NewSectionBufferBuilderPool()))
	s := f.d.NewSection(0, SectionNode(0, 0, 0))
	task, err := s.CreateCompileTask(SnapshotRegions{})
	require.NoError(t, err)
	f.d.Schedule(task)
	f.d.WaitIdle()
	assert.Equal(t, 1, f.d.ToBatchCount(), "no pack, so the task waits")

	f.d.BlockUntilClear()
	assert.True(t, task.IsCancelled())
	assert.Zero(t, f.d.ToBatchCount())
}

type failingRegions struct{ err error }

func (r failingRegions) CreateRegion(Level, SectionPos) (RenderChunkRegion, error) { return nil, r.err }

func TestRebuildSections(t *testing.T) {
	level := pond()
	level.fill(16, 0, 0, 31, 0, 15, Sand)
	rec := profiling.NewRecorder()
	f := newDispatcher(t, level, CubeCompiler{}, WithProfiler(rec))
	sections := []*RenderSection{
		f.d.NewSection(0, SectionNode(0, 0, 0)),
		f.d.NewSection(1, SectionNode(1, 0, 0)),
		f.d.NewSection(2, SectionNode(0, 1, 0)),
	}
	require.NoError(t, f.d.RebuildSections(context.Background(), sections, SnapshotRegions{}))
	f.settle(t, func() bool {
		for _, s := range sections {
			if s.Compiled() == Uncompiled {
				return false
			}
		}
		return true
	})
	assert.NotNil(t, sections[1].Buffers(Solid))
	assert.Same(t, Empty, sections[2].Compiled())
	var zones []string
	for _, st := range rec.EndFrame() {
		zones = append(zones, st.Path)
	}
	assert.ElementsMatch(t, []string{"Compile Section", "Upload Section Layer"}, zones)

	boom := errors.New("unloaded")
	s := f.d.NewSection(3, SectionNode(4, 0, 0))
	err := f.d.RebuildSections(context.Background(), []*RenderSection{s}, failingRegions{err: boom})
	require.ErrorIs(t, err, boom)
	f.d.WaitIdle()
	assert.Zero(t, f.d.ToBatchCount())
}

func TestGlobalBlockEntitiesDiff(t *testing.T) {
	level := pond()
	a, b := &testEntity{BlockPos{1, 2, 1}}, &testEntity{BlockPos{2, 2, 2}}
	level.global = []BlockEntity{a}
	f := newDispatcher(t, level, CubeCompiler{})
	s := f.d.NewSection(0, SectionNode(0, 0, 0))
	require.NoError(t, s.RebuildSectionAsync(SnapshotRegions{}))
	f.settle(t, compiled(s))
	assert.Equal(t, []BlockEntity{a}, s.GlobalBlockEntities())
	assert.Equal(t, 1, f.listener.GlobalBlockEntities())

	level.mu.Lock()
	level.global = []BlockEntity{b, b}
	level.mu.Unlock()
	prev := s.Compiled()
	require.NoError(t, s.RebuildSectionAsync(SnapshotRegions{}))
	f.settle(t, func() bool { return s.Compiled() != prev })
	assert.Equal(t, []BlockEntity{b}, s.GlobalBlockEntities())
	assert.Equal(t, 1, f.listener.GlobalBlockEntities())
}

func TestDrawLayer(t *testing.T) {
	f := newDispatcher(t, pond(), CubeCompiler{})
	sections := []*RenderSection{
		f.d.NewSection(0, SectionNode(0, 0, 0)),
		f.d.NewSection(1, SectionNode(0, 3, 0)),
	}
	require.NoError(t, f.d.RebuildSections(context.Background(), sections, SnapshotRegions{}))
	f.settle(t, func() bool { return compiled(sections[0])() && compiled(sections[1])() })

	dev := f.rs.Device()
	color, err := dev.CreateTexture("color", gpu.FormatRGBA8, 64, 64, 1, false)
	require.NoError(t, err)
	defer color.Close()
	depth, err := dev.CreateTexture("depth", gpu.FormatDepth32, 64, 64, 1, false)
	require.NoError(t, err)
	defer depth.Close()

	clearDepth := 1.0
	pass, err := dev.CreateCommandEncoder().CreateRenderPass("terrain", color, &gputypes.Color{A: 1}, depth, &clearDepth)
	require.NoError(t, err)
	defer pass.Close()
	pipeline := dev.PrecompilePipeline(TerrainPipeline(Solid), nil)
	require.True(t, pipeline.IsValid())
	require.NoError(t, pass.SetPipeline(pipeline))

	require.NoError(t, f.d.DrawLayer(pass, Solid, sections))
	require.NoError(t, f.d.DrawLayer(pass, Cutout, sections))
	assert.Equal(t, 1, pass.(*halgpu.RenderPass).Draws())
}
