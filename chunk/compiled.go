// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package chunk

// BlockEntity is a block with extra rendering state, such as a chest or a
// sign. Implementations must be comparable; pointers are typical.
type BlockEntity interface {
	BlockPos() BlockPos
}

// CompiledSection is the immutable result of compiling a section. It is
// published atomically and shared between the render thread and workers.
type CompiledSection struct {
	layers        layerSet
	blockEntities []BlockEntity
	visibility    VisibilitySet
	transparency  *SortState
}

var (
	// Uncompiled marks a section that has never been compiled. None of its
	// faces see each other.
	Uncompiled = &CompiledSection{}
	// Empty marks a section without blocks. All of its faces see each
	// other.
	Empty = &CompiledSection{visibility: 1<<36 - 1}
)

// HasRenderableLayers reports whether any layer holds geometry.
func (c *CompiledSection) HasRenderableLayers() bool { return c.layers != 0 }

// IsEmpty reports whether layer t holds no geometry.
func (c *CompiledSection) IsEmpty(t RenderType) bool { return !c.layers.has(t) }

// RenderableBlockEntities returns the block entities drawn with the
// section.
func (c *CompiledSection) RenderableBlockEntities() []BlockEntity { return c.blockEntities }

// TransparencyState returns the translucent sort state, or nil.
func (c *CompiledSection) TransparencyState() *SortState { return c.transparency }

// FacesCanSeeEachOther reports whether a can see b through the section.
func (c *CompiledSection) FacesCanSeeEachOther(a, b Direction) bool {
	return c.visibility.VisibilityBetween(a, b)
}

// CompileResults is the output of a SectionCompiler. Rendered layers own
// regions of the buffer pack passed to the compiler until uploaded or
// released.
type CompileResults struct {
	GlobalBlockEntities []BlockEntity
	BlockEntities       []BlockEntity
	RenderedLayers      map[RenderType]*MeshData
	Visibility          VisibilitySet
	TransparencyState   *SortState
}

// Release closes every rendered layer.
func (r *CompileResults) Release() {
	for _, m := range r.RenderedLayers {
		m.Close()
	}
	clear(r.RenderedLayers)
}

// Level is the world the dispatcher renders.
type Level interface {
	// HasChunk reports whether the column (x, z), in section coordinates,
	// is loaded and lit.
	HasChunk(x, z int) bool
}

// RenderChunkRegion is an immutable snapshot of a section and its
// neighbourhood, safe to read from any goroutine.
type RenderChunkRegion interface {
	Pos() SectionPos
}

// RegionProvider snapshots sections for compilation.
type RegionProvider interface {
	// CreateRegion returns nil when the section holds nothing to render.
	CreateRegion(level Level, pos SectionPos) (RenderChunkRegion, error)
}

// SectionCompiler turns a region snapshot into meshes. It runs on worker
// goroutines and must only write into pack.
type SectionCompiler interface {
	Compile(pos SectionPos, region RenderChunkRegion, sorting VertexSorting, pack *SectionBufferBuilderPack) (*CompileResults, error)
}

// SectionListener receives compile notifications. Methods are called from
// worker goroutines and the render thread.
type SectionListener interface {
	AddRecentlyCompiledSection(s *RenderSection)
	UpdateGlobalBlockEntities(removed, added []BlockEntity)
}

type nopListener struct{}

func (nopListener) AddRecentlyCompiledSection(*RenderSection)    {}
func (nopListener) UpdateGlobalBlockEntities(_, _ []BlockEntity) {}
