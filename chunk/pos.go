// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package chunk

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// SectionSize is the edge length of a section in blocks.
const SectionSize = 16

// Direction is one of the six axis-aligned faces of a block or section.
type Direction int

const (
	Down Direction = iota
	Up
	North
	South
	West
	East
)

// Directions lists every direction in declaration order.
var Directions = [...]Direction{Down, Up, North, South, West, East}

var directionNormals = [...][3]int{
	Down:  {0, -1, 0},
	Up:    {0, 1, 0},
	North: {0, 0, -1},
	South: {0, 0, 1},
	West:  {-1, 0, 0},
	East:  {1, 0, 0},
}

// Normal returns the unit offset of d.
func (d Direction) Normal() (x, y, z int) {
	n := directionNormals[d]
	return n[0], n[1], n[2]
}

// Opposite returns the direction facing the other way.
func (d Direction) Opposite() Direction { return d ^ 1 }

func (d Direction) String() string {
	switch d {
	case Down:
		return "down"
	case Up:
		return "up"
	case North:
		return "north"
	case South:
		return "south"
	case West:
		return "west"
	case East:
		return "east"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// BlockPos is an integer block coordinate.
type BlockPos struct {
	X, Y, Z int
}

// DistToCenterSqr returns the squared distance from the center of the
// block to p.
func (b BlockPos) DistToCenterSqr(p mgl64.Vec3) float64 {
	dx := float64(b.X) + 0.5 - p.X()
	dy := float64(b.Y) + 0.5 - p.Y()
	dz := float64(b.Z) + 0.5 - p.Z()
	return dx*dx + dy*dy + dz*dz
}

// Vec3 returns the block corner as a vector.
func (b BlockPos) Vec3() mgl64.Vec3 {
	return mgl64.Vec3{float64(b.X), float64(b.Y), float64(b.Z)}
}

// SectionPos is the coordinate of a 16x16x16 section.
type SectionPos struct {
	X, Y, Z int
}

// Packing: 22 bits of x, 22 bits of z and 20 bits of y, each two's
// complement.
const (
	packedXZBits  = 22
	packedYBits   = 20
	packedXZMask  = 1<<packedXZBits - 1
	packedYMask   = 1<<packedYBits - 1
	packedZOffset = packedYBits
	packedXOffset = packedYBits + packedXZBits
)

// Pack returns the section node of p.
func (p SectionPos) Pack() int64 { return SectionNode(p.X, p.Y, p.Z) }

// Origin returns the minimum block corner of the section.
func (p SectionPos) Origin() BlockPos {
	return BlockPos{p.X * SectionSize, p.Y * SectionSize, p.Z * SectionSize}
}

// Offset returns the section displaced by (dx, dy, dz).
func (p SectionPos) Offset(dx, dy, dz int) SectionPos {
	return SectionPos{p.X + dx, p.Y + dy, p.Z + dz}
}

func (p SectionPos) String() string { return fmt.Sprintf("[%d, %d, %d]", p.X, p.Y, p.Z) }

// SectionNode packs section coordinates into a single int64.
func SectionNode(x, y, z int) int64 {
	return int64(x&packedXZMask)<<packedXOffset |
		int64(z&packedXZMask)<<packedZOffset |
		int64(y&packedYMask)
}

// UnpackNode is the inverse of SectionNode.
func UnpackNode(node int64) SectionPos {
	return SectionPos{NodeX(node), NodeY(node), NodeZ(node)}
}

// NodeX returns the x coordinate of a packed section node.
func NodeX(node int64) int { return int(node >> packedXOffset) }

// NodeY returns the y coordinate of a packed section node.
func NodeY(node int64) int { return int(node << (64 - packedYBits) >> (64 - packedYBits)) }

// NodeZ returns the z coordinate of a packed section node.
func NodeZ(node int64) int {
	return int(node << (64 - packedXOffset) >> (64 - packedXZBits))
}

// OffsetNode displaces a packed section node.
func OffsetNode(node int64, dx, dy, dz int) int64 {
	return SectionNode(NodeX(node)+dx, NodeY(node)+dy, NodeZ(node)+dz)
}

// OffsetNodeDir displaces a packed section node by one step towards d.
func OffsetNodeDir(node int64, d Direction) int64 {
	x, y, z := d.Normal()
	return OffsetNode(node, x, y, z)
}

// BlockToSection converts a world coordinate to a section coordinate.
func BlockToSection(v float64) int { return int(math.Floor(v)) >> 4 }

// AABB is an axis-aligned box.
type AABB struct {
	Min, Max mgl64.Vec3
}

// Contains reports whether p lies inside the box, max faces excluded.
func (b AABB) Contains(p mgl64.Vec3) bool {
	for i := range 3 {
		if p[i] < b.Min[i] || p[i] >= b.Max[i] {
			return false
		}
	}
	return true
}
