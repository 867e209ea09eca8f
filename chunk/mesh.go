// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package chunk

import (
	"encoding/binary"
	"slices"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/blockrender/gpu"
	"github.com/gogpu/blockrender/rendersys"
)

// MeshData is the built geometry of one layer. A nil Indices region means
// the mesh is drawn with the shared sequential quad index buffer.
type MeshData struct {
	Vertices    *ByteResult
	Indices     *ByteResult
	VertexCount int
	IndexCount  int
	IndexType   gpu.IndexType
}

// Close releases the vertex and index regions.
func (m *MeshData) Close() {
	m.Vertices.Close()
	m.Indices.Close()
}

// VertexSorting orders quads by their centroids. It returns the quad
// indices in draw order.
type VertexSorting func(centroids []mgl32.Vec3) []int

// ByDistance sorts back to front by distance from origin.
func ByDistance(origin mgl32.Vec3) VertexSorting {
	return ByProjection(rendersys.Perspective, origin)
}

// ByProjection sorts back to front using the sort key of p.
func ByProjection(p rendersys.ProjectionType, origin mgl32.Vec3) VertexSorting {
	return func(centroids []mgl32.Vec3) []int {
		keys := make([]float32, len(centroids))
		order := make([]int, len(centroids))
		for i, c := range centroids {
			keys[i] = p.SortKey(origin, c)
			order[i] = i
		}
		slices.SortStableFunc(order, func(a, b int) int {
			switch {
			case keys[a] > keys[b]:
				return -1
			case keys[a] < keys[b]:
				return 1
			}
			return 0
		})
		return order
	}
}

// SortState keeps what is needed to re-sort a translucent mesh without
// rebuilding it: one centroid per quad, relative to the section origin.
type SortState struct {
	Centroids []mgl32.Vec3
	IndexType gpu.IndexType
}

// NewSortState derives quad centroids from positions given four vertices
// per quad.
func NewSortState(positions []mgl32.Vec3) *SortState {
	quads := len(positions) / 4
	s := &SortState{
		Centroids: make([]mgl32.Vec3, quads),
		IndexType: gpu.IndexTypeFor(len(positions)),
	}
	for q := range quads {
		v := positions[q*4 : q*4+4]
		s.Centroids[q] = v[0].Add(v[1]).Add(v[2]).Add(v[3]).Mul(0.25)
	}
	return s
}

// BuildSortedIndexBuffer writes triangle indices for every quad in the
// order given by sorting into buf. It returns nil when there are no quads.
func (s *SortState) BuildSortedIndexBuffer(buf *ByteBuffer, sorting VertexSorting) *ByteResult {
	if len(s.Centroids) == 0 {
		return nil
	}
	order := sorting(s.Centroids)
	size := s.IndexType.Bytes()
	out := buf.Reserve(len(order) * 6 * size)
	i := 0
	for _, q := range order {
		base := uint32(q * 4)
		for _, off := range [...]uint32{0, 1, 2, 2, 3, 0} {
			if s.IndexType == gpu.IndexShort {
				binary.LittleEndian.PutUint16(out[i:], uint16(base+off))
			} else {
				binary.LittleEndian.PutUint32(out[i:], base+off)
			}
			i += size
		}
	}
	return buf.Build()
}
