// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package chunk

import "fmt"

// Block is a block state id understood by CubeCompiler.
type Block uint8

const (
	Air Block = iota
	Stone
	Dirt
	Grass
	Sand
	Leaves
	Glass
	Water
)

// Layer returns the render type the block is meshed into.
func (b Block) Layer() RenderType {
	switch b {
	case Leaves:
		return CutoutMipped
	case Glass:
		return Cutout
	case Water:
		return Translucent
	default:
		return Solid
	}
}

// Opaque reports whether the block hides the faces of its neighbours and
// blocks visibility through a section.
func (b Block) Opaque() bool { return b != Air && b.Layer() == Solid }

// Color returns the vertex color of the block.
func (b Block) Color() [4]uint8 {
	switch b {
	case Stone:
		return [4]uint8{125, 125, 125, 255}
	case Dirt:
		return [4]uint8{134, 96, 67, 255}
	case Grass:
		return [4]uint8{95, 159, 53, 255}
	case Sand:
		return [4]uint8{219, 207, 163, 255}
	case Leaves:
		return [4]uint8{60, 120, 40, 255}
	case Glass:
		return [4]uint8{200, 230, 240, 255}
	case Water:
		return [4]uint8{63, 118, 228, 180}
	default:
		return [4]uint8{}
	}
}

func (b Block) String() string {
	names := [...]string{"air", "stone", "dirt", "grass", "sand", "leaves", "glass", "water"}
	if int(b) < len(names) {
		return names[b]
	}
	return fmt.Sprintf("block_%d", int(b))
}

// BlockLevel is a Level whose blocks can be snapshotted.
type BlockLevel interface {
	Level
	BlockAt(x, y, z int) Block
	// BlockEntities returns the block entities of a section: those drawn
	// with it and those drawn regardless of its visibility.
	BlockEntities(pos SectionPos) (local, global []BlockEntity)
}

const snapshotSize = SectionSize + 2

// Snapshot is a RenderChunkRegion holding a section and a one block
// border copied out of a BlockLevel.
type Snapshot struct {
	pos      SectionPos
	blocks   [snapshotSize * snapshotSize * snapshotSize]Block
	entities []BlockEntity
	global   []BlockEntity
	solid    int
}

// NewSnapshot copies the section at pos and its border from level.
func NewSnapshot(level BlockLevel, pos SectionPos) *Snapshot {
	s := &Snapshot{pos: pos}
	o := pos.Origin()
	for y := -1; y <= SectionSize; y++ {
		for z := -1; z <= SectionSize; z++ {
			for x := -1; x <= SectionSize; x++ {
				b := level.BlockAt(o.X+x, o.Y+y, o.Z+z)
				s.blocks[snapshotIndex(x, y, z)] = b
				if b != Air && inSection(x, y, z) {
					s.solid++
				}
			}
		}
	}
	s.entities, s.global = level.BlockEntities(pos)
	return s
}

func snapshotIndex(x, y, z int) int {
	return (x + 1) + (z+1)*snapshotSize + (y+1)*snapshotSize*snapshotSize
}

func inSection(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < SectionSize && y < SectionSize && z < SectionSize
}

func (s *Snapshot) Pos() SectionPos { return s.pos }

// Block returns the block at local coordinates in [-1, 16].
func (s *Snapshot) Block(x, y, z int) Block { return s.blocks[snapshotIndex(x, y, z)] }

// IsEmpty reports whether the section itself holds only air and no block
// entities.
func (s *Snapshot) IsEmpty() bool {
	return s.solid == 0 && len(s.entities) == 0 && len(s.global) == 0
}

// SnapshotRegions creates Snapshot regions from a BlockLevel.
type SnapshotRegions struct{}

// CreateRegion implements RegionProvider. Empty sections yield nil.
func (SnapshotRegions) CreateRegion(level Level, pos SectionPos) (RenderChunkRegion, error) {
	bl, ok := level.(BlockLevel)
	if !ok {
		return nil, fmt.Errorf("chunk: level %T has no blocks", level)
	}
	s := NewSnapshot(bl, pos)
	if s.IsEmpty() {
		return nil, nil
	}
	return s, nil
}
