// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package chunk

import "github.com/gogpu/blockrender/gpu"

// SectionBuffers are the GPU buffers of one layer of a section. They are
// owned by the render thread.
type SectionBuffers struct {
	vertex     gpu.Buffer
	index      gpu.Buffer
	indexCount int
	indexType  gpu.IndexType
}

// VertexBuffer returns the vertex buffer.
func (b *SectionBuffers) VertexBuffer() gpu.Buffer { return b.vertex }

// IndexBuffer returns the index buffer, or nil when the layer is drawn
// with the sequential quad index buffer.
func (b *SectionBuffers) IndexBuffer() gpu.Buffer { return b.index }

func (b *SectionBuffers) IndexCount() int          { return b.indexCount }
func (b *SectionBuffers) IndexType() gpu.IndexType { return b.indexType }

// Close releases both buffers.
func (b *SectionBuffers) Close() {
	if b.vertex != nil {
		b.vertex.Close()
	}
	if b.index != nil {
		b.index.Close()
	}
}
