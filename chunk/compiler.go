// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package chunk

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/blockrender/gpu"
)

// Corners of each face, counter-clockwise seen from outside.
var faceCorners = [6][4][3]float32{
	Down:  {{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}},
	Up:    {{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}},
	North: {{1, 0, 0}, {0, 0, 0}, {0, 1, 0}, {1, 1, 0}},
	South: {{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}},
	West:  {{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}},
	East:  {{1, 0, 1}, {1, 0, 0}, {1, 1, 0}, {1, 1, 1}},
}

var faceUVs = [4][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

// Per-face brightness, brightest on top.
var faceShade = [6]float32{Down: 0.5, Up: 1, North: 0.8, South: 0.8, West: 0.6, East: 0.6}

// fullBright is sky light 15, block light 0.
const fullBright = 0xF0 << 16

// CubeCompiler meshes Snapshot regions into one cube per block, culling
// faces hidden by opaque neighbours or by neighbours of the same block.
// Translucent quads are emitted back to front for the given sorting and
// keep a SortState for later re-sorting.
type CubeCompiler struct{}

// Compile implements SectionCompiler.
func (CubeCompiler) Compile(pos SectionPos, region RenderChunkRegion, sorting VertexSorting, pack *SectionBufferBuilderPack) (*CompileResults, error) {
	snap, ok := region.(*Snapshot)
	if !ok {
		return nil, fmt.Errorf("chunk: cube compiler cannot mesh %T", region)
	}
	vis := NewVisGraph()
	var quads [layerCount]int
	var translucent []mgl32.Vec3

	for y := range SectionSize {
		for z := range SectionSize {
			for x := range SectionSize {
				b := snap.Block(x, y, z)
				if b == Air {
					continue
				}
				if b.Opaque() {
					vis.SetOpaque(x, y, z)
				}
				layer := b.Layer()
				buf := pack.Buffer(layer)
				for _, d := range Directions {
					dx, dy, dz := d.Normal()
					n := snap.Block(x+dx, y+dy, z+dz)
					if n.Opaque() || n == b {
						continue
					}
					corners := writeFace(buf, b, d, float32(x), float32(y), float32(z))
					quads[layer]++
					if layer == Translucent {
						translucent = append(translucent, corners[:]...)
					}
				}
			}
		}
	}

	res := &CompileResults{
		RenderedLayers:      make(map[RenderType]*MeshData),
		Visibility:          vis.Resolve(),
		BlockEntities:       snap.entities,
		GlobalBlockEntities: snap.global,
	}
	for _, layer := range ChunkLayers() {
		if quads[layer] == 0 {
			continue
		}
		buf := pack.Buffer(layer)
		vertexCount := quads[layer] * 4
		mesh := &MeshData{
			Vertices:    buf.Build(),
			VertexCount: vertexCount,
			IndexCount:  quads[layer] * 6,
			IndexType:   gpu.IndexTypeFor(vertexCount),
		}
		if layer == Translucent {
			state := NewSortState(translucent)
			mesh.Indices = state.BuildSortedIndexBuffer(buf, sorting)
			mesh.IndexType = state.IndexType
			res.TransparencyState = state
		}
		res.RenderedLayers[layer] = mesh
	}
	return res, nil
}

// writeFace appends the four vertices of a face and returns their
// positions.
func writeFace(buf *ByteBuffer, b Block, d Direction, x, y, z float32) [4]mgl32.Vec3 {
	var out [4]mgl32.Vec3
	color := b.Color()
	shade := faceShade[d]
	nx, ny, nz := d.Normal()
	normal := [4]byte{byte((nx + 1) * 127), byte((ny + 1) * 127), byte((nz + 1) * 127), 0}
	v := buf.Reserve(4 * gpu.BlockFormat.Stride)
	for i, c := range faceCorners[d] {
		p := mgl32.Vec3{x + c[0], y + c[1], z + c[2]}
		out[i] = p
		o := v[i*gpu.BlockFormat.Stride:]
		binary.LittleEndian.PutUint32(o[0:], math.Float32bits(p[0]))
		binary.LittleEndian.PutUint32(o[4:], math.Float32bits(p[1]))
		binary.LittleEndian.PutUint32(o[8:], math.Float32bits(p[2]))
		o[12] = byte(float32(color[0]) * shade)
		o[13] = byte(float32(color[1]) * shade)
		o[14] = byte(float32(color[2]) * shade)
		o[15] = color[3]
		binary.LittleEndian.PutUint32(o[16:], math.Float32bits(faceUVs[i][0]))
		binary.LittleEndian.PutUint32(o[20:], math.Float32bits(faceUVs[i][1]))
		binary.LittleEndian.PutUint32(o[24:], fullBright)
		copy(o[28:32], normal[:])
	}
	return out
}
