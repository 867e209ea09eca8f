// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"math"

	"github.com/gogpu/blockrender/chunk"
)

const seaLevel = 20

// terrain is a deterministic value-noise landscape limited to a square of
// loaded columns around the origin.
type terrain struct {
	seed   uint32
	radius int
}

func (t terrain) HasChunk(x, z int) bool {
	return abs(x) <= t.radius && abs(z) <= t.radius
}

func (t terrain) BlockAt(x, y, z int) chunk.Block {
	if y < 0 || !t.HasChunk(x>>4, z>>4) {
		return chunk.Air
	}
	h := t.height(x, z)
	switch {
	case y < h-3:
		return chunk.Stone
	case y < h-1:
		return chunk.Dirt
	case y == h-1 && h <= seaLevel+1:
		return chunk.Sand
	case y == h-1:
		return chunk.Grass
	case y < seaLevel:
		return chunk.Water
	case y < h+4 && h > seaLevel+2 && t.hash(x, z, 7)%53 == 0:
		return chunk.Leaves
	case y == h && h > seaLevel+1 && t.hash(x, z, 11)%97 == 0:
		return chunk.Glass
	default:
		return chunk.Air
	}
}

func (terrain) BlockEntities(chunk.SectionPos) (local, global []chunk.BlockEntity) { return nil, nil }

// height interpolates hashed lattice values 16 blocks apart.
func (t terrain) height(x, z int) int {
	const cell = 16
	cx, cz := floorDiv(x, cell), floorDiv(z, cell)
	fx := smooth(float64(x-cx*cell) / cell)
	fz := smooth(float64(z-cz*cell) / cell)
	v := func(i, j int) float64 { return float64(t.hash(i, j, 0)%24) - 8 }
	top := v(cx, cz)*(1-fx) + v(cx+1, cz)*fx
	bottom := v(cx, cz+1)*(1-fx) + v(cx+1, cz+1)*fx
	return seaLevel + int(math.Round(top*(1-fz)+bottom*fz))
}

func (t terrain) hash(x, z, salt int) uint32 {
	h := t.seed ^ uint32(x)*0x27d4eb2d ^ uint32(z)*0x165667b1 ^ uint32(salt)*0x9e3779b9
	h ^= h >> 15
	h *= 0x85ebca6b
	h ^= h >> 13
	return h
}

func smooth(f float64) float64 { return f * f * (3 - 2*f) }

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
