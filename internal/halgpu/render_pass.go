// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/blockrender/gpu"
)

// RenderPass implements gpu.RenderPass on a HAL render pass encoder.
//
// Draws with no pipeline, or with an invalid one, are skipped silently.
type RenderPass struct {
	enc    *CommandEncoder
	halEnc hal.CommandEncoder
	raw    hal.RenderPassEncoder
	label  string
	color  *Texture
	depth  *Texture

	pipeline  *Pipeline
	samplers  map[string]*Texture
	uniforms  map[string][]float32
	index     *Buffer
	indexType gpu.IndexType
	scissor   bool

	draws  int
	closed bool
}

var _ gpu.RenderPass = (*RenderPass)(nil)

func (p *RenderPass) check() error {
	if p.closed {
		return gpu.ErrPassClosed
	}
	return nil
}

// SetPipeline implements gpu.RenderPass.
func (p *RenderPass) SetPipeline(cp gpu.CompiledPipeline) error {
	if err := p.check(); err != nil {
		return fmt.Errorf("set pipeline: %w", err)
	}
	pl, ok := cp.(*Pipeline)
	if !ok || pl == nil {
		return fmt.Errorf("set pipeline: %w: foreign pipeline %T", gpu.ErrInvalidArgument, cp)
	}
	p.pipeline = pl
	if pl.valid {
		p.raw.SetPipeline(pl.raw)
	}
	return nil
}

// BindSampler implements gpu.RenderPass. A nil texture unbinds name.
func (p *RenderPass) BindSampler(name string, tex gpu.Texture) error {
	if err := p.check(); err != nil {
		return fmt.Errorf("bind sampler %s: %w", name, err)
	}
	if tex == nil {
		delete(p.samplers, name)
		return nil
	}
	t, err := asTexture(tex)
	if err != nil {
		return fmt.Errorf("bind sampler %s: %w", name, err)
	}
	p.samplers[name] = t
	return nil
}

// SetUniform implements gpu.RenderPass.
func (p *RenderPass) SetUniform(name string, values ...float32) error {
	if err := p.check(); err != nil {
		return fmt.Errorf("set uniform %s: %w", name, err)
	}
	p.uniforms[name] = append(p.uniforms[name][:0], values...)
	return nil
}

// SetUniformInt implements gpu.RenderPass. Values keep their bit pattern.
func (p *RenderPass) SetUniformInt(name string, values ...int32) error {
	f := make([]float32, len(values))
	for i, v := range values {
		f[i] = math.Float32frombits(uint32(v))
	}
	return p.SetUniform(name, f...)
}

// SetUniformMatrix implements gpu.RenderPass.
func (p *RenderPass) SetUniformMatrix(name string, m mgl32.Mat4) error {
	return p.SetUniform(name, m[:]...)
}

// SetVertexBuffer implements gpu.RenderPass.
func (p *RenderPass) SetVertexBuffer(slot int, buf gpu.Buffer) error {
	if err := p.check(); err != nil {
		return fmt.Errorf("set vertex buffer: %w", err)
	}
	b, err := asBuffer(buf)
	if err != nil {
		return fmt.Errorf("set vertex buffer: %w", err)
	}
	if slot < 0 {
		return fmt.Errorf("set vertex buffer: %w: slot %d", gpu.ErrInvalidArgument, slot)
	}
	p.raw.SetVertexBuffer(uint32(slot), b.raw, 0)
	return nil
}

// SetIndexBuffer implements gpu.RenderPass.
func (p *RenderPass) SetIndexBuffer(buf gpu.Buffer, typ gpu.IndexType) error {
	if err := p.check(); err != nil {
		return fmt.Errorf("set index buffer: %w", err)
	}
	b, err := asBuffer(buf)
	if err != nil {
		return fmt.Errorf("set index buffer: %w", err)
	}
	p.index, p.indexType = b, typ
	p.raw.SetIndexBuffer(b.raw, typ.Format(), 0)
	return nil
}

// EnableScissor implements gpu.RenderPass.
func (p *RenderPass) EnableScissor(x, y, width, height int) error {
	if err := p.check(); err != nil {
		return fmt.Errorf("enable scissor: %w", err)
	}
	if x < 0 || y < 0 || width < 0 || height < 0 {
		return fmt.Errorf("enable scissor: %w: %dx%d+%d+%d", gpu.ErrInvalidArgument, width, height, x, y)
	}
	p.scissor = true
	p.raw.SetScissorRect(uint32(x), uint32(y), uint32(width), uint32(height))
	return nil
}

// DisableScissor implements gpu.RenderPass.
func (p *RenderPass) DisableScissor() error {
	if err := p.check(); err != nil {
		return fmt.Errorf("disable scissor: %w", err)
	}
	if p.scissor && p.color != nil {
		p.raw.SetScissorRect(0, 0, uint32(p.color.width), uint32(p.color.height))
	}
	p.scissor = false
	return nil
}

// DrawIndexed implements gpu.RenderPass.
func (p *RenderPass) DrawIndexed(firstIndex, indexCount int) error {
	if err := p.check(); err != nil {
		return fmt.Errorf("draw indexed: %w", err)
	}
	if !p.drawable() {
		return nil
	}
	if p.index == nil {
		return fmt.Errorf("draw indexed: %w: no index buffer", gpu.ErrInvalidArgument)
	}
	if firstIndex < 0 || indexCount < 0 || (firstIndex+indexCount)*p.indexType.Bytes() > p.index.Size() {
		return fmt.Errorf("draw indexed: %w: indices [%d, %d) exceed buffer %q",
			gpu.ErrInvalidArgument, firstIndex, firstIndex+indexCount, p.index.label)
	}
	if err := p.flushBindings(); err != nil {
		return fmt.Errorf("draw indexed: %w", err)
	}
	p.raw.DrawIndexed(uint32(indexCount), 1, uint32(firstIndex), 0, 0)
	p.draws++
	return nil
}

// Draw implements gpu.RenderPass.
func (p *RenderPass) Draw(firstVertex, vertexCount int) error {
	if err := p.check(); err != nil {
		return fmt.Errorf("draw: %w", err)
	}
	if !p.drawable() {
		return nil
	}
	if firstVertex < 0 || vertexCount < 0 {
		return fmt.Errorf("draw: %w: vertices [%d, %d)", gpu.ErrInvalidArgument, firstVertex, firstVertex+vertexCount)
	}
	if err := p.flushBindings(); err != nil {
		return fmt.Errorf("draw: %w", err)
	}
	p.raw.Draw(uint32(vertexCount), 1, uint32(firstVertex), 0)
	p.draws++
	return nil
}

// DrawMultipleIndexed implements gpu.RenderPass.
func (p *RenderPass) DrawMultipleIndexed(draws []gpu.Draw, indexBuffer gpu.Buffer, indexType gpu.IndexType) error {
	if err := p.check(); err != nil {
		return fmt.Errorf("draw multiple: %w", err)
	}
	if !p.drawable() {
		return nil
	}
	for i, d := range draws {
		if d.Uniforms != nil {
			d.Uniforms(p)
		}
		if err := p.SetVertexBuffer(d.Slot, d.VertexBuffer); err != nil {
			return fmt.Errorf("draw %d: %w", i, err)
		}
		ib, typ := d.IndexBuffer, d.IndexType
		if ib == nil {
			ib, typ = indexBuffer, indexType
		}
		if err := p.SetIndexBuffer(ib, typ); err != nil {
			return fmt.Errorf("draw %d: %w", i, err)
		}
		if err := p.DrawIndexed(d.FirstIndex, d.IndexCount); err != nil {
			return fmt.Errorf("draw %d: %w", i, err)
		}
	}
	return nil
}

// Draws returns the number of draw calls recorded so far.
func (p *RenderPass) Draws() int { return p.draws }

// Close ends and submits the pass. Safe to call more than once.
func (p *RenderPass) Close() {
	if p.closed {
		return
	}
	p.closed = true
	p.raw.End()
	if _, err := p.enc.dev.submit(p.halEnc); err != nil {
		gpu.Logger().Warn("halgpu: render pass submit failed", "pass", p.label, "err", err)
	}
	if p.enc.pass == p {
		p.enc.pass = nil
	}
}

func (p *RenderPass) drawable() bool {
	return p.pipeline != nil && p.pipeline.valid
}

// flushBindings uploads the uniform block of the current pipeline and
// makes sure every bound sampler has a HAL sampler object.
func (p *RenderPass) flushBindings() error {
	pl := p.pipeline
	if len(pl.uniformData) > 0 {
		for name, slot := range pl.uniforms {
			values := p.uniforms[name]
			block := pl.uniformData[slot.offset : slot.offset+slot.size]
			clear(block)
			for i, v := range values[:min(len(values), slot.size/4)] {
				binary.LittleEndian.PutUint32(block[i*4:], math.Float32bits(v))
			}
		}
		if err := p.enc.dev.queue.WriteBuffer(pl.uniformBuf, 0, pl.uniformData); err != nil {
			return fmt.Errorf("upload uniforms: %w", mapError(err))
		}
	}
	for name, tex := range p.samplers {
		if !pl.ContainsSampler(name) {
			continue
		}
		if tex.closed.Load() {
			return fmt.Errorf("sampler %s: texture %q: %w", name, tex.label, gpu.ErrClosed)
		}
		if _, err := tex.halSampler(); err != nil {
			return err
		}
	}
	return nil
}
