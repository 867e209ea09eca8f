// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package chunk

import "github.com/go-gl/mathgl/mgl64"

// TranslucencyPointOfView is the coarse direction a section was last
// sorted from: per axis, whether the camera section lies below, inside
// or above it.
type TranslucencyPointOfView struct {
	X, Y, Z int
}

// PointOfView computes the point of view of the section node from camera.
func PointOfView(camera mgl64.Vec3, node int64) TranslucencyPointOfView {
	return TranslucencyPointOfView{
		X: povCoordinate(camera.X(), NodeX(node)),
		Y: povCoordinate(camera.Y(), NodeY(node)),
		Z: povCoordinate(camera.Z(), NodeZ(node)),
	}
}

func povCoordinate(camera float64, section int) int {
	return min(max(BlockToSection(camera)-section, -1), 1)
}

// IsAxisAligned reports whether the camera shares a section row, column
// or layer with the section. Sorting can change without the point of
// view changing then.
func (p TranslucencyPointOfView) IsAxisAligned() bool {
	return p.X == 0 || p.Y == 0 || p.Z == 0
}
