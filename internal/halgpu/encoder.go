// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/blockrender/gpu"
)

// CommandEncoder implements gpu.CommandEncoder. Transfers are submitted
// immediately; a render pass is submitted when it is closed.
type CommandEncoder struct {
	dev  *Device
	pass *RenderPass
}

var _ gpu.CommandEncoder = (*CommandEncoder)(nil)

func (e *CommandEncoder) checkIdle() error {
	if e.pass != nil && !e.pass.closed {
		return gpu.ErrPassInProgress
	}
	return nil
}

// CreateRenderPass implements gpu.CommandEncoder.
func (e *CommandEncoder) CreateRenderPass(label string, color gpu.Texture, clearColor *gputypes.Color, depth gpu.Texture, clearDepth *float64) (gpu.RenderPass, error) {
	if color == nil {
		return nil, fmt.Errorf("create render pass %q: %w: color attachment required", label, gpu.ErrInvalidArgument)
	}
	return e.beginPass(label, color, clearColor, depth, clearDepth)
}

func (e *CommandEncoder) beginPass(label string, color gpu.Texture, clearColor *gputypes.Color, depth gpu.Texture, clearDepth *float64) (*RenderPass, error) {
	if err := e.checkIdle(); err != nil {
		return nil, fmt.Errorf("create render pass %q: %w", label, err)
	}

	desc := &hal.RenderPassDescriptor{Label: label}
	var c, z *Texture
	if color != nil {
		var err error
		if c, err = asTexture(color); err != nil {
			return nil, fmt.Errorf("create render pass %q: %w", label, err)
		}
		if !c.format.HasColorAspect() {
			return nil, fmt.Errorf("create render pass %q: %w: %s is not a color format", label, gpu.ErrInvalidArgument, c.format)
		}
		att := hal.RenderPassColorAttachment{View: c.view, LoadOp: gputypes.LoadOpLoad, StoreOp: gputypes.StoreOpStore}
		if clearColor != nil {
			att.LoadOp = gputypes.LoadOpClear
			att.ClearValue = *clearColor
		}
		desc.ColorAttachments = []hal.RenderPassColorAttachment{att}
	}
	if depth != nil {
		var err error
		if z, err = asTexture(depth); err != nil {
			return nil, fmt.Errorf("create render pass %q: %w", label, err)
		}
		if !z.format.HasDepthAspect() {
			return nil, fmt.Errorf("create render pass %q: %w: %s is not a depth format", label, gpu.ErrInvalidArgument, z.format)
		}
		att := &hal.RenderPassDepthStencilAttachment{View: z.view, DepthLoadOp: gputypes.LoadOpLoad, DepthStoreOp: gputypes.StoreOpStore}
		if clearDepth != nil {
			att.DepthLoadOp = gputypes.LoadOpClear
			att.DepthClearValue = float32(*clearDepth)
		}
		if z.stencil {
			att.StencilLoadOp = gputypes.LoadOpLoad
			att.StencilStoreOp = gputypes.StoreOpStore
		}
		desc.DepthStencilAttachment = att
	}

	enc, err := e.dev.raw.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("create render pass %q: %w", label, mapError(err))
	}
	if err := enc.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("create render pass %q: begin encoding: %w", label, err)
	}

	if c != nil && clearColor != nil {
		c.fillColor(*clearColor)
	}
	if z != nil && clearDepth != nil {
		z.fillDepth(*clearDepth)
	}

	p := &RenderPass{
		enc:      e,
		halEnc:   enc,
		raw:      enc.BeginRenderPass(desc),
		label:    label,
		color:    c,
		depth:    z,
		samplers: make(map[string]*Texture),
		uniforms: make(map[string][]float32),
	}
	e.pass = p
	return p, nil
}

// ClearColorTexture implements gpu.CommandEncoder.
func (e *CommandEncoder) ClearColorTexture(tex gpu.Texture, color gputypes.Color) error {
	p, err := e.beginPass("Clear color", tex, &color, nil, nil)
	if err != nil {
		return err
	}
	p.Close()
	return nil
}

// ClearDepthTexture implements gpu.CommandEncoder.
func (e *CommandEncoder) ClearDepthTexture(tex gpu.Texture, depth float64) error {
	if tex == nil {
		return fmt.Errorf("clear depth: %w: nil texture", gpu.ErrInvalidArgument)
	}
	p, err := e.beginPass("Clear depth", nil, nil, tex, &depth)
	if err != nil {
		return err
	}
	p.Close()
	return nil
}

// ClearColorAndDepthTextures implements gpu.CommandEncoder.
func (e *CommandEncoder) ClearColorAndDepthTextures(color gpu.Texture, clear gputypes.Color, depth gpu.Texture, clearDepth float64) error {
	p, err := e.beginPass("Clear color and depth", color, &clear, depth, &clearDepth)
	if err != nil {
		return err
	}
	p.Close()
	return nil
}

// WriteToBuffer implements gpu.CommandEncoder.
func (e *CommandEncoder) WriteToBuffer(buf gpu.Buffer, data []byte, offset int) error {
	if err := e.checkIdle(); err != nil {
		return fmt.Errorf("write buffer: %w", err)
	}
	b, err := asBuffer(buf)
	if err != nil {
		return fmt.Errorf("write buffer: %w", err)
	}
	if !gpu.ValidateRange(len(b.mirror), offset, len(data)) {
		return fmt.Errorf("write buffer %q: %w: %d bytes at offset %d exceed size %d",
			b.label, gpu.ErrInvalidArgument, len(data), offset, len(b.mirror))
	}
	copy(b.mirror[offset:], data)
	if err := e.dev.queue.WriteBuffer(b.raw, uint64(offset), data); err != nil {
		return fmt.Errorf("write buffer %q: %w", b.label, mapError(err))
	}
	return nil
}

// ReadBuffer implements gpu.CommandEncoder.
func (e *CommandEncoder) ReadBuffer(buf gpu.Buffer, offset, length int) (gpu.ReadView, error) {
	if err := e.checkIdle(); err != nil {
		return nil, fmt.Errorf("read buffer: %w", err)
	}
	b, err := asBuffer(buf)
	if err != nil {
		return nil, fmt.Errorf("read buffer: %w", err)
	}
	if !b.usage.Readable() {
		return nil, fmt.Errorf("read buffer %q: %w: usage %s is not readable", b.label, gpu.ErrInvalidArgument, b.usage)
	}
	if !gpu.ValidateRange(len(b.mirror), offset, length) {
		return nil, fmt.Errorf("read buffer %q: %w: range [%d, %d) exceeds size %d",
			b.label, gpu.ErrInvalidArgument, offset, offset+length, len(b.mirror))
	}
	if e.dev.opts.deviceReadback {
		data, err := e.dev.mapRead(b, offset, length)
		if err == nil {
			return &readView{data: data}, nil
		}
		gpu.Logger().Warn("halgpu: mapped read failed, using host copy", "buffer", b.label, "err", err)
	}
	data := make([]byte, length)
	copy(data, b.mirror[offset:offset+length])
	return &readView{data: data}, nil
}

// WriteToTexture implements gpu.CommandEncoder.
func (e *CommandEncoder) WriteToTexture(tex gpu.Texture, pixels []byte, mip, x, y, width, height int) error {
	if err := e.checkIdle(); err != nil {
		return fmt.Errorf("write texture: %w", err)
	}
	t, err := asTexture(tex)
	if err != nil {
		return fmt.Errorf("write texture: %w", err)
	}
	if !t.inBounds(mip, x, y, width, height) {
		return fmt.Errorf("write texture %q: %w: region %dx%d+%d+%d outside mip %d",
			t.label, gpu.ErrInvalidArgument, width, height, x, y, mip)
	}
	ps := t.format.PixelSize()
	if len(pixels) < width*height*ps {
		return fmt.Errorf("write texture %q: %w: %d bytes for %dx%d region",
			t.label, gpu.ErrInvalidArgument, len(pixels), width, height)
	}
	copyRegion(t.levels[mip], t.rowBytes(mip), x, y, pixels, width*ps, 0, 0, width, height, ps)

	err = e.dev.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.raw, MipLevel: uint32(mip), Origin: hal.Origin3D{X: uint32(x), Y: uint32(y)}},
		pixels[:width*height*ps],
		&hal.ImageDataLayout{BytesPerRow: uint32(width * ps), RowsPerImage: uint32(height)},
		&hal.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
	)
	if err != nil {
		return fmt.Errorf("write texture %q: %w", t.label, mapError(err))
	}
	return nil
}

// ReadTexture implements gpu.CommandEncoder.
func (e *CommandEncoder) ReadTexture(tex gpu.Texture, mip int) ([]byte, error) {
	if err := e.checkIdle(); err != nil {
		return nil, fmt.Errorf("read texture: %w", err)
	}
	t, err := asTexture(tex)
	if err != nil {
		return nil, fmt.Errorf("read texture: %w", err)
	}
	if mip < 0 || mip >= t.mips {
		return nil, fmt.Errorf("read texture %q: %w: mip %d of %d", t.label, gpu.ErrInvalidArgument, mip, t.mips)
	}
	return slices.Clone(t.levels[mip]), nil
}

// CopyTextureToTexture implements gpu.CommandEncoder.
func (e *CommandEncoder) CopyTextureToTexture(src, dst gpu.Texture, mip, dstX, dstY, srcX, srcY, width, height int) error {
	if err := e.checkIdle(); err != nil {
		return fmt.Errorf("copy texture: %w", err)
	}
	s, err := asTexture(src)
	if err != nil {
		return fmt.Errorf("copy texture: %w", err)
	}
	d, err := asTexture(dst)
	if err != nil {
		return fmt.Errorf("copy texture: %w", err)
	}
	if s.format != d.format {
		return fmt.Errorf("copy texture %q -> %q: %w: format %s != %s",
			s.label, d.label, gpu.ErrInvalidArgument, s.format, d.format)
	}
	if !s.inBounds(mip, srcX, srcY, width, height) || !d.inBounds(mip, dstX, dstY, width, height) {
		return fmt.Errorf("copy texture %q -> %q: %w: region out of bounds", s.label, d.label, gpu.ErrInvalidArgument)
	}

	ps := s.format.PixelSize()
	copyRegion(d.levels[mip], d.rowBytes(mip), dstX, dstY, s.levels[mip], s.rowBytes(mip), srcX, srcY, width, height, ps)

	return e.dev.record("Copy texture", func(enc hal.CommandEncoder) {
		enc.CopyTextureToTexture(s.raw, d.raw, []hal.TextureCopy{{
			SrcBase: hal.ImageCopyTexture{Texture: s.raw, MipLevel: uint32(mip), Origin: hal.Origin3D{X: uint32(srcX), Y: uint32(srcY)}},
			DstBase: hal.ImageCopyTexture{Texture: d.raw, MipLevel: uint32(mip), Origin: hal.Origin3D{X: uint32(dstX), Y: uint32(dstY)}},
			Size:    hal.Extent3D{Width: uint32(width), Height: uint32(height), DepthOrArrayLayers: 1},
		}})
	})
}

// CopyTextureToBuffer implements gpu.CommandEncoder.
func (e *CommandEncoder) CopyTextureToBuffer(src gpu.Texture, dst gpu.Buffer, offset, mip int, done func()) error {
	if err := e.checkIdle(); err != nil {
		return fmt.Errorf("copy texture to buffer: %w", err)
	}
	t, err := asTexture(src)
	if err != nil {
		return fmt.Errorf("copy texture to buffer: %w", err)
	}
	b, err := asBuffer(dst)
	if err != nil {
		return fmt.Errorf("copy texture to buffer: %w", err)
	}
	if mip < 0 || mip >= t.mips {
		return fmt.Errorf("copy texture %q: %w: mip %d of %d", t.label, gpu.ErrInvalidArgument, mip, t.mips)
	}
	level := t.levels[mip]
	if !gpu.ValidateRange(len(b.mirror), offset, len(level)) {
		return fmt.Errorf("copy texture %q to buffer %q: %w: %d bytes at offset %d exceed size %d",
			t.label, b.label, gpu.ErrInvalidArgument, len(level), offset, len(b.mirror))
	}
	copy(b.mirror[offset:], level)

	w, h := max(t.Width(mip), 1), max(t.Height(mip), 1)
	err = e.dev.record("Copy texture to buffer", func(enc hal.CommandEncoder) {
		enc.CopyTextureToBuffer(t.raw, b.raw, []hal.BufferTextureCopy{{
			BufferLayout: hal.ImageDataLayout{Offset: uint64(offset), BytesPerRow: uint32(t.rowBytes(mip)), RowsPerImage: uint32(h)},
			TextureBase:  hal.ImageCopyTexture{Texture: t.raw, MipLevel: uint32(mip)},
			Size:         hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		}})
	})
	if err != nil {
		return err
	}

	if done != nil {
		if box := e.dev.scheduler.Load(); box != nil {
			box.s.QueueFencedTask(done)
		} else {
			f := e.CreateFence()
			f.AwaitCompletion(time.Second)
			f.Close()
			done()
		}
	}
	return nil
}

// copyRegion copies a w x h pixel region between two tightly packed images.
func copyRegion(dst []byte, dstStride, dx, dy int, src []byte, srcStride, sx, sy, w, h, ps int) {
	n := w * ps
	for row := range h {
		d := (dy+row)*dstStride + dx*ps
		s := (sy+row)*srcStride + sx*ps
		copy(dst[d:d+n], src[s:s+n])
	}
}

func unorm8(v float64) byte {
	return byte(math.Round(min(max(v, 0), 1) * 255))
}

// fillColor writes a clear color into mip 0 of the mirror.
func (t *Texture) fillColor(c gputypes.Color) {
	var px []byte
	switch t.format {
	case gpu.FormatRGBA8:
		px = []byte{unorm8(c.R), unorm8(c.G), unorm8(c.B), unorm8(c.A)}
	case gpu.FormatRed8:
		px = []byte{unorm8(c.R)}
	case gpu.FormatRed8I:
		px = []byte{byte(int8(c.R))}
	default:
		return
	}
	fillPattern(t.levels[0], px)
}

// fillDepth writes a clear depth into mip 0 of the mirror as float32 bits.
func (t *Texture) fillDepth(depth float64) {
	bits := math.Float32bits(float32(depth))
	fillPattern(t.levels[0], []byte{byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24)})
}

func fillPattern(dst, px []byte) {
	for i := 0; i+len(px) <= len(dst); i += len(px) {
		copy(dst[i:], px)
	}
}
