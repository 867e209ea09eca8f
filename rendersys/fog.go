// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendersys

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// FogShape selects how fog distance is measured.
type FogShape int

const (
	// FogSphere measures the full 3D distance from the camera.
	FogSphere FogShape = iota
	// FogCylinder ignores height.
	FogCylinder
)

func (s FogShape) String() string {
	if s == FogCylinder {
		return "cylinder"
	}
	return "sphere"
}

// Fog holds the fog uniforms.
type Fog struct {
	Start float32
	End   float32
	Shape FogShape
	Color mgl32.Vec4
}

// NoFog starts beyond any reachable distance.
var NoFog = Fog{Start: math.MaxFloat32, End: 0, Shape: FogSphere}

// IsEnabled reports whether the fog is visible at any distance.
func (f Fog) IsEnabled() bool { return f.Start < math.MaxFloat32 }
