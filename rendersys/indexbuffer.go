// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendersys

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/blockrender/gpu"
)

// IndexGenerator emits the indices of one primitive whose first vertex is
// base.
type IndexGenerator func(emit func(index int), base int)

// Generators for the shared index buffers.
var (
	SequentialIndices IndexGenerator = func(emit func(int), base int) { emit(base) }

	QuadIndices IndexGenerator = func(emit func(int), base int) {
		emit(base)
		emit(base + 1)
		emit(base + 2)
		emit(base + 2)
		emit(base + 3)
		emit(base)
	}

	LineIndices IndexGenerator = func(emit func(int), base int) {
		emit(base)
		emit(base + 1)
		emit(base + 2)
		emit(base + 3)
		emit(base + 2)
		emit(base + 1)
	}
)

// AutoStorageIndexBuffer is a shared index buffer for a fixed topology
// that grows on demand and never shrinks. Every vertexStride vertices map
// to indexStride indices produced by the generator.
type AutoStorageIndexBuffer struct {
	dev          gpu.Device
	guard        func()
	vertexStride int
	indexStride  int
	generator    IndexGenerator

	buffer     gpu.Buffer
	indexType  gpu.IndexType
	indexCount int
}

// NewAutoStorageIndexBuffer returns an empty buffer. Storage is allocated
// by the first call to Buffer.
func NewAutoStorageIndexBuffer(dev gpu.Device, vertexStride, indexStride int, gen IndexGenerator) *AutoStorageIndexBuffer {
	return &AutoStorageIndexBuffer{
		dev:          dev,
		vertexStride: vertexStride,
		indexStride:  indexStride,
		generator:    gen,
		indexType:    gpu.IndexShort,
	}
}

// HasStorage reports whether n indices fit without growing.
func (b *AutoStorageIndexBuffer) HasStorage(n int) bool { return n <= b.indexCount }

// Capacity returns the number of indices currently stored.
func (b *AutoStorageIndexBuffer) Capacity() int { return b.indexCount }

// Type returns the index type of the current buffer.
func (b *AutoStorageIndexBuffer) Type() gpu.IndexType { return b.indexType }

// Buffer returns a buffer holding at least n indices, growing it when
// needed. A grown buffer is sized for twice the request so repeated small
// growths are amortized; the previous buffer is closed.
func (b *AutoStorageIndexBuffer) Buffer(n int) (gpu.Buffer, error) {
	if b.guard != nil {
		b.guard()
	}
	if b.HasStorage(n) && b.buffer != nil {
		return b.buffer, nil
	}

	needed := roundUp(max(n*2, b.indexStride), b.indexStride)
	gpu.Logger().Debug("rendersys: growing index buffer", "old", b.indexCount, "new", needed)
	vertices := needed / b.indexStride * b.vertexStride
	typ := gpu.IndexTypeFor(vertices)
	data := make([]byte, 0, roundUp(needed*typ.Bytes(), 4))
	emit := func(i int) {
		if typ == gpu.IndexShort {
			data = binary.LittleEndian.AppendUint16(data, uint16(i))
		} else {
			data = binary.LittleEndian.AppendUint32(data, uint32(i))
		}
	}
	for l := 0; l < needed; l += b.indexStride {
		b.generator(emit, l*b.vertexStride/b.indexStride)
	}
	data = data[:cap(data)]

	buf, err := b.dev.CreateBufferWithData("Auto Storage index buffer", gpu.BufferIndices, gpu.DynamicWrite, data)
	if err != nil {
		return nil, fmt.Errorf("rendersys: grow index buffer to %d indices: %w", needed, err)
	}
	if b.buffer != nil {
		b.buffer.Close()
	}
	b.buffer, b.indexType, b.indexCount = buf, typ, needed
	return buf, nil
}

// Close releases the buffer.
func (b *AutoStorageIndexBuffer) Close() {
	if b.buffer != nil {
		b.buffer.Close()
		b.buffer = nil
	}
	b.indexCount = 0
}

// roundUp rounds v up to a multiple of interval.
func roundUp(v, interval int) int {
	if interval <= 1 {
		return v
	}
	return (v + interval - 1) / interval * interval
}
