// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package chunk

import "fmt"

// RenderType is a terrain layer. Every layer of a section gets its own
// vertex and index buffers.
type RenderType int

const (
	Solid RenderType = iota
	CutoutMipped
	Cutout
	Translucent
	Tripwire

	layerCount
)

// ChunkLayers lists the terrain layers in draw order.
func ChunkLayers() []RenderType {
	return []RenderType{Solid, CutoutMipped, Cutout, Translucent, Tripwire}
}

// Name returns the layer name used in buffer labels.
func (t RenderType) Name() string {
	switch t {
	case Solid:
		return "solid"
	case CutoutMipped:
		return "cutout_mipped"
	case Cutout:
		return "cutout"
	case Translucent:
		return "translucent"
	case Tripwire:
		return "tripwire"
	default:
		return fmt.Sprintf("layer_%d", int(t))
	}
}

func (t RenderType) String() string { return t.Name() }

// BufferSize is the initial capacity of the layer's builder in a
// SectionBufferBuilderPack.
func (t RenderType) BufferSize() int {
	switch t {
	case Solid, CutoutMipped:
		return 4 << 20
	case Cutout, Translucent:
		return 768 << 10
	default:
		return 1536
	}
}

// SortOnUpload reports whether quads of the layer are kept sorted back
// to front.
func (t RenderType) SortOnUpload() bool { return t == Translucent || t == Tripwire }

// layerSet is a bitset of render types.
type layerSet uint8

func (s layerSet) has(t RenderType) bool { return s&(1<<t) != 0 }

func (s *layerSet) add(t RenderType) { *s |= 1 << t }
