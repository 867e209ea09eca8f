// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package chunk

// VisibilitySet records which pairs of section faces can see each other
// through non-opaque blocks.
type VisibilitySet uint64

// Set marks a and b as mutually visible.
func (v *VisibilitySet) Set(a, b Direction) {
	*v |= 1<<(int(a)*6+int(b)) | 1<<(int(b)*6+int(a))
}

// SetAll marks every pair.
func (v *VisibilitySet) SetAll(visible bool) {
	if visible {
		*v = 1<<36 - 1
	} else {
		*v = 0
	}
}

// VisibilityBetween reports whether a can see b.
func (v VisibilitySet) VisibilityBetween(a, b Direction) bool {
	return v&(1<<(int(a)*6+int(b))) != 0
}

// VisGraph accumulates the opaque blocks of a section and resolves its
// VisibilitySet by flood fill.
type VisGraph struct {
	opaque [SectionSize * SectionSize * SectionSize]bool
	empty  int
}

// NewVisGraph returns a graph of a fully transparent section.
func NewVisGraph() *VisGraph {
	return &VisGraph{empty: SectionSize * SectionSize * SectionSize}
}

func visIndex(x, y, z int) int { return x | z<<4 | y<<8 }

// SetOpaque marks the local block (x, y, z) as opaque.
func (g *VisGraph) SetOpaque(x, y, z int) {
	i := visIndex(x, y, z)
	if !g.opaque[i] {
		g.opaque[i] = true
		g.empty--
	}
}

// Resolve computes the visibility set.
func (g *VisGraph) Resolve() VisibilitySet {
	var v VisibilitySet
	const cells = SectionSize * SectionSize * SectionSize
	// Fewer than a full face of opaque blocks can never separate two faces.
	if cells-g.empty < SectionSize*SectionSize {
		v.SetAll(true)
		return v
	}
	if g.empty == 0 {
		return v
	}
	visited := g.opaque
	var queue []int
	for start := range cells {
		if visited[start] || !onEdge(start) {
			continue
		}
		var faces [6]bool
		visited[start] = true
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			i := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x, z, y := i&15, i>>4&15, i>>8
			for _, d := range Directions {
				dx, dy, dz := d.Normal()
				nx, ny, nz := x+dx, y+dy, z+dz
				if nx < 0 || ny < 0 || nz < 0 || nx >= SectionSize || ny >= SectionSize || nz >= SectionSize {
					faces[d] = true
					continue
				}
				n := visIndex(nx, ny, nz)
				if !visited[n] {
					visited[n] = true
					queue = append(queue, n)
				}
			}
		}
		for _, a := range Directions {
			if !faces[a] {
				continue
			}
			for _, b := range Directions {
				if faces[b] {
					v.Set(a, b)
				}
			}
		}
	}
	return v
}

func onEdge(i int) bool {
	x, z, y := i&15, i>>4&15, i>>8
	return x == 0 || x == 15 || y == 0 || y == 15 || z == 0 || z == 15
}
