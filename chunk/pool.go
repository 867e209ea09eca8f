// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package chunk

import (
	"sync"

	"github.com/gogpu/blockrender/gpu"
)

// SectionBufferBuilderPack holds one ByteBuffer per terrain layer. A pack
// is used by one compile task at a time.
type SectionBufferBuilderPack struct {
	buffers [layerCount]*ByteBuffer
}

// NewSectionBufferBuilderPack returns a pack sized by RenderType.BufferSize.
func NewSectionBufferBuilderPack() *SectionBufferBuilderPack {
	p := &SectionBufferBuilderPack{}
	for _, t := range ChunkLayers() {
		p.buffers[t] = NewByteBuffer(t.BufferSize())
	}
	return p
}

// TotalBuffersSize is the initial capacity of a pack summed over layers.
func TotalBuffersSize() int {
	n := 0
	for _, t := range ChunkLayers() {
		n += t.BufferSize()
	}
	return n
}

// Buffer returns the builder of layer t.
func (p *SectionBufferBuilderPack) Buffer(t RenderType) *ByteBuffer { return p.buffers[t] }

// ClearAll rewinds every builder after a successful task.
func (p *SectionBufferBuilderPack) ClearAll() {
	for _, b := range p.buffers {
		b.Clear()
	}
}

// DiscardAll drops unbuilt data after a cancelled task.
func (p *SectionBufferBuilderPack) DiscardAll() {
	for _, b := range p.buffers {
		b.Discard()
	}
}

// SectionBufferBuilderPool is the bounded set of packs shared by compile
// tasks. It is the only backpressure on compilation: a task is started
// only when a pack is free.
type SectionBufferBuilderPool struct {
	mu    sync.Mutex
	free  []*SectionBufferBuilderPack
	total int
}

// NewSectionBufferBuilderPool returns a pool over packs.
func NewSectionBufferBuilderPool(packs ...*SectionBufferBuilderPack) *SectionBufferBuilderPool {
	return &SectionBufferBuilderPool{free: packs, total: len(packs)}
}

// AllocateSectionBufferBuilderPool sizes a pool to at most maxWorkers
// packs, and at most as many as fit in budget bytes. There is always at
// least one pack.
func AllocateSectionBufferBuilderPool(maxWorkers int, budget int64) *SectionBufferBuilderPool {
	n := max(1, min(maxWorkers, int(budget/int64(TotalBuffersSize()))))
	packs := make([]*SectionBufferBuilderPack, n)
	for i := range packs {
		packs[i] = NewSectionBufferBuilderPack()
	}
	gpu.Logger().Debug("allocated section buffer packs", "count", n, "pack_bytes", TotalBuffersSize())
	return NewSectionBufferBuilderPool(packs...)
}

// Acquire takes a free pack, or returns nil when none is left.
func (p *SectionBufferBuilderPool) Acquire() *SectionBufferBuilderPack {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.free)
	if n == 0 {
		return nil
	}
	pack := p.free[n-1]
	p.free[n-1] = nil
	p.free = p.free[:n-1]
	return pack
}

// Release returns a pack to the pool.
func (p *SectionBufferBuilderPool) Release(pack *SectionBufferBuilderPack) {
	p.mu.Lock()
	p.free = append(p.free, pack)
	p.mu.Unlock()
}

// IsEmpty reports whether every pack is in use.
func (p *SectionBufferBuilderPool) IsEmpty() bool { return p.FreeBufferCount() == 0 }

// FreeBufferCount returns the number of free packs.
func (p *SectionBufferBuilderPool) FreeBufferCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Capacity returns the number of packs the pool was created with.
func (p *SectionBufferBuilderPool) Capacity() int { return p.total }
