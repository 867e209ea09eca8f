// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendersys

import "github.com/gogpu/blockrender/gpu"

// ScissorState is the scissor rectangle applied to new render passes.
type ScissorState struct {
	enabled bool
	x, y    int
	width   int
	height  int
}

// Enable sets the rectangle and turns scissoring on.
func (s *ScissorState) Enable(x, y, width, height int) {
	s.enabled = true
	s.x, s.y, s.width, s.height = x, y, width, height
}

// Disable turns scissoring off, keeping the last rectangle.
func (s *ScissorState) Disable() { s.enabled = false }

func (s *ScissorState) IsEnabled() bool { return s.enabled }
func (s *ScissorState) X() int          { return s.x }
func (s *ScissorState) Y() int          { return s.y }
func (s *ScissorState) Width() int      { return s.width }
func (s *ScissorState) Height() int     { return s.height }

// CopyFrom replaces s with other.
func (s *ScissorState) CopyFrom(other *ScissorState) { *s = *other }

// Apply enables or disables the scissor of pass to match s.
func (s *ScissorState) Apply(pass gpu.RenderPass) error {
	if s.enabled {
		return pass.EnableScissor(s.x, s.y, s.width, s.height)
	}
	return pass.DisableScissor()
}
