// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

// Texture is image storage with per-mip dimensions and mutable sampling
// parameters.
type Texture interface {
	Label() string
	Format() TextureFormat
	// Width returns the width of the given mip level.
	Width(mip int) int
	// Height returns the height of the given mip level.
	Height(mip int) int
	MipLevels() int
	HasStencil() bool

	SetAddressMode(u, v AddressMode)
	SetTextureFilter(min, mag FilterMode, useMipmaps bool)
	Sampling() SamplerState

	IsClosed() bool
	Close()
}

// SamplerState is the sampling configuration of a texture. Backends embed
// it in their texture type.
type SamplerState struct {
	AddressU   AddressMode
	AddressV   AddressMode
	Min        FilterMode
	Mag        FilterMode
	UseMipmaps bool
}

// DefaultSamplerState returns the state a new texture starts with:
// repeat addressing, nearest minification, linear magnification and
// mipmapping enabled.
func DefaultSamplerState() SamplerState {
	return SamplerState{
		AddressU:   Repeat,
		AddressV:   Repeat,
		Min:        Nearest,
		Mag:        Linear,
		UseMipmaps: true,
	}
}

// SetFilter sets both filters at once, keeping the mipmap flag.
func (s *SamplerState) SetFilter(mode FilterMode) {
	s.Min = mode
	s.Mag = mode
}

// MipSize shifts a base dimension down to the given mip level.
func MipSize(base, mip int) int { return base >> mip }
