// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/blockrender/gpu"
)

// Texture implements gpu.Texture.
type Texture struct {
	dev     *Device
	raw     hal.Texture
	view    hal.TextureView
	label   string
	format  gpu.TextureFormat
	width   int
	height  int
	mips    int
	stencil bool
	bytes   uint64

	sampling gpu.SamplerState
	sampler  hal.Sampler // rebuilt lazily after sampling changes

	// levels holds the host mirror of every mip level, tightly packed.
	levels [][]byte
	closed atomic.Bool
}

var _ gpu.Texture = (*Texture)(nil)

func (d *Device) newTexture(label string, format gpu.TextureFormat, width, height, mips int, stencil bool) (*Texture, error) {
	t := &Texture{
		dev:      d,
		label:    label,
		format:   format,
		width:    width,
		height:   height,
		mips:     mips,
		stencil:  stencil,
		sampling: gpu.DefaultSamplerState(),
		levels:   make([][]byte, mips),
	}
	for mip := range mips {
		w, h := max(gpu.MipSize(width, mip), 1), max(gpu.MipSize(height, mip), 1)
		t.levels[mip] = make([]byte, w*h*format.PixelSize())
		t.bytes += uint64(len(t.levels[mip]))
	}
	if err := d.memory.reserve(kindTexture, t.bytes); err != nil {
		return nil, fmt.Errorf("create texture %q: %w", label, err)
	}

	usage := gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst |
		gputypes.TextureUsageTextureBinding | gputypes.TextureUsageRenderAttachment
	raw, err := d.raw.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		MipLevelCount: uint32(mips),
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        format.HalFormat(stencil),
		Usage:         usage,
	})
	if err != nil {
		d.memory.release(kindTexture, t.bytes)
		return nil, fmt.Errorf("create texture %q: %w", label, mapError(err))
	}
	view, err := d.raw.CreateTextureView(raw, &hal.TextureViewDescriptor{
		Label:           label + " view",
		Format:          format.HalFormat(stencil),
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   uint32(mips),
		ArrayLayerCount: 1,
	})
	if err != nil {
		d.raw.DestroyTexture(raw)
		d.memory.release(kindTexture, t.bytes)
		return nil, fmt.Errorf("create texture view %q: %w", label, mapError(err))
	}
	t.raw, t.view = raw, view
	d.debugf("created texture %q (%s %dx%d, %d mips)", label, format, width, height, mips)
	return t, nil
}

func (t *Texture) Label() string              { return t.label }
func (t *Texture) Format() gpu.TextureFormat  { return t.format }
func (t *Texture) Width(mip int) int          { return gpu.MipSize(t.width, mip) }
func (t *Texture) Height(mip int) int         { return gpu.MipSize(t.height, mip) }
func (t *Texture) MipLevels() int             { return t.mips }
func (t *Texture) HasStencil() bool           { return t.stencil }
func (t *Texture) Sampling() gpu.SamplerState { return t.sampling }
func (t *Texture) IsClosed() bool             { return t.closed.Load() }

// SetAddressMode implements gpu.Texture.
func (t *Texture) SetAddressMode(u, v gpu.AddressMode) {
	if t.sampling.AddressU == u && t.sampling.AddressV == v {
		return
	}
	t.sampling.AddressU, t.sampling.AddressV = u, v
	t.dropSampler()
}

// SetTextureFilter implements gpu.Texture.
func (t *Texture) SetTextureFilter(minFilter, magFilter gpu.FilterMode, useMipmaps bool) {
	s := t.sampling
	s.Min, s.Mag, s.UseMipmaps = minFilter, magFilter, useMipmaps
	if s == t.sampling {
		return
	}
	t.sampling = s
	t.dropSampler()
}

// Close destroys the texture, its view and sampler. Safe to call more
// than once.
func (t *Texture) Close() {
	if !t.closed.CompareAndSwap(false, true) {
		return
	}
	t.dropSampler()
	t.dev.raw.DestroyTextureView(t.view)
	t.dev.raw.DestroyTexture(t.raw)
	t.dev.memory.release(kindTexture, t.bytes)
	t.levels = nil
}

func (t *Texture) dropSampler() {
	if t.sampler != nil {
		t.dev.raw.DestroySampler(t.sampler)
		t.sampler = nil
	}
}

// halSampler returns a sampler matching the current sampling state.
func (t *Texture) halSampler() (hal.Sampler, error) {
	if t.sampler != nil {
		return t.sampler, nil
	}
	mip := gputypes.FilterModeNearest
	lodMax := float32(0)
	if t.sampling.UseMipmaps {
		mip = t.sampling.Min.HalMode()
		lodMax = float32(t.mips)
	}
	s, err := t.dev.raw.CreateSampler(&hal.SamplerDescriptor{
		Label:        t.label + " sampler",
		AddressModeU: t.sampling.AddressU.HalMode(),
		AddressModeV: t.sampling.AddressV.HalMode(),
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    t.sampling.Mag.HalMode(),
		MinFilter:    t.sampling.Min.HalMode(),
		MipmapFilter: mip,
		LodMaxClamp:  lodMax,
	})
	if err != nil {
		return nil, fmt.Errorf("texture %q: create sampler: %w", t.label, mapError(err))
	}
	t.sampler = s
	return s, nil
}

// rowBytes returns the tightly packed row size of mip.
func (t *Texture) rowBytes(mip int) int {
	return max(t.Width(mip), 1) * t.format.PixelSize()
}

// inBounds reports whether the region lies inside mip.
func (t *Texture) inBounds(mip, x, y, w, h int) bool {
	return mip >= 0 && mip < t.mips && x >= 0 && y >= 0 && w >= 0 && h >= 0 &&
		x+w <= max(t.Width(mip), 1) && y+h <= max(t.Height(mip), 1)
}

func asTexture(tex gpu.Texture) (*Texture, error) {
	t, ok := tex.(*Texture)
	if !ok || t == nil {
		return nil, fmt.Errorf("%w: foreign texture %T", gpu.ErrInvalidArgument, tex)
	}
	if t.closed.Load() {
		return nil, fmt.Errorf("texture %q: %w", t.label, gpu.ErrClosed)
	}
	return t, nil
}
