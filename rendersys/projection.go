// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendersys

import "github.com/go-gl/mathgl/mgl32"

// ProjectionType tells translucent geometry sorting how depth relates to
// view space.
type ProjectionType int

const (
	Perspective ProjectionType = iota
	Orthographic
)

func (p ProjectionType) String() string {
	if p == Orthographic {
		return "orthographic"
	}
	return "perspective"
}

// SortKey returns the back-to-front key of a view-space point: larger keys
// are farther away. Perspective projections sort by distance from origin,
// orthographic ones by depth alone.
func (p ProjectionType) SortKey(origin, v mgl32.Vec3) float32 {
	if p == Orthographic {
		return -v.Z()
	}
	d := v.Sub(origin)
	return d.Dot(d)
}

// MatrixStack is a stack of 4x4 matrices whose top is the current matrix.
type MatrixStack struct {
	stack []mgl32.Mat4
}

// NewMatrixStack returns a stack holding the identity.
func NewMatrixStack() *MatrixStack {
	return &MatrixStack{stack: []mgl32.Mat4{mgl32.Ident4()}}
}

// Top returns the current matrix.
func (s *MatrixStack) Top() mgl32.Mat4 { return s.stack[len(s.stack)-1] }

// Push duplicates the current matrix.
func (s *MatrixStack) Push() { s.stack = append(s.stack, s.Top()) }

// Pop restores the previous matrix. The bottom matrix is never popped.
func (s *MatrixStack) Pop() {
	if len(s.stack) > 1 {
		s.stack = s.stack[:len(s.stack)-1]
	}
}

// Depth returns the number of pushed matrices.
func (s *MatrixStack) Depth() int { return len(s.stack) - 1 }

// Set replaces the current matrix.
func (s *MatrixStack) Set(m mgl32.Mat4) { s.stack[len(s.stack)-1] = m }

// Mul post-multiplies the current matrix by m.
func (s *MatrixStack) Mul(m mgl32.Mat4) { s.Set(s.Top().Mul4(m)) }

// Translate post-multiplies the current matrix by a translation.
func (s *MatrixStack) Translate(x, y, z float32) { s.Mul(mgl32.Translate3D(x, y, z)) }

// Clear drops every pushed matrix and resets the bottom to identity.
func (s *MatrixStack) Clear() { s.stack = append(s.stack[:0], mgl32.Ident4()) }

// rotateYXZ post-multiplies m by rotations around Y, then X, then Z.
func rotateYXZ(m mgl32.Mat4, y, x, z float32) mgl32.Mat4 {
	return m.Mul4(mgl32.HomogRotate3DY(y)).Mul4(mgl32.HomogRotate3DX(x)).Mul4(mgl32.HomogRotate3DZ(z))
}

func transformDirection(m mgl32.Mat4, v mgl32.Vec3) mgl32.Vec3 {
	return m.Mul4x1(v.Vec4(0)).Vec3()
}
