// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

// CommandEncoder records transfers and render passes.
//
// An encoder tracks at most one open render pass. While it is open every
// other encoder operation fails with ErrPassInProgress:
//
//	Idle ──CreateRenderPass──> InPass ──RenderPass.Close──> Idle
type CommandEncoder interface {
	// CreateRenderPass opens a pass on color and, when non-nil, depth.
	// A nil clear value loads the existing contents.
	CreateRenderPass(label string, color Texture, clearColor *gputypes.Color, depth Texture, clearDepth *float64) (RenderPass, error)

	ClearColorTexture(tex Texture, color gputypes.Color) error
	ClearDepthTexture(tex Texture, depth float64) error
	ClearColorAndDepthTextures(color Texture, clear gputypes.Color, depth Texture, clearDepth float64) error

	// WriteToBuffer copies data into buf at offset. Buffers never grow.
	WriteToBuffer(buf Buffer, data []byte, offset int) error
	// ReadBuffer maps [offset, offset+length) of a readable buffer.
	ReadBuffer(buf Buffer, offset, length int) (ReadView, error)

	// WriteToTexture uploads tightly packed pixels into a region of mip.
	WriteToTexture(tex Texture, pixels []byte, mip, x, y, width, height int) error
	// ReadTexture returns a tightly packed copy of mip.
	ReadTexture(tex Texture, mip int) ([]byte, error)
	CopyTextureToTexture(src, dst Texture, mip, dstX, dstY, srcX, srcY, width, height int) error
	// CopyTextureToBuffer copies mip of src into dst at offset. When done
	// is non-nil it runs on the render thread after the copy has completed.
	CopyTextureToBuffer(src Texture, dst Buffer, offset, mip int, done func()) error

	// CreateFence returns a fence covering all work submitted so far.
	CreateFence() Fence
}

// UniformSetter uploads named uniform values.
type UniformSetter interface {
	SetUniform(name string, values ...float32) error
}

// Draw is one entry of a batched indexed draw. A nil IndexBuffer uses the
// batch's shared index buffer.
type Draw struct {
	Slot         int
	VertexBuffer Buffer
	IndexBuffer  Buffer
	IndexType    IndexType
	FirstIndex   int
	IndexCount   int
	Uniforms     func(UniformSetter)
}

// RenderPass is a scoped sequence of draws into one set of attachments.
// Every method fails with ErrPassClosed after Close; Close itself is
// idempotent.
type RenderPass interface {
	UniformSetter

	SetPipeline(p CompiledPipeline) error
	BindSampler(name string, tex Texture) error
	SetUniformInt(name string, values ...int32) error
	SetUniformMatrix(name string, m mgl32.Mat4) error
	SetVertexBuffer(slot int, buf Buffer) error
	SetIndexBuffer(buf Buffer, typ IndexType) error

	EnableScissor(x, y, width, height int) error
	DisableScissor() error

	DrawIndexed(firstIndex, indexCount int) error
	Draw(firstVertex, vertexCount int) error
	DrawMultipleIndexed(draws []Draw, indexBuffer Buffer, indexType IndexType) error

	Close()
}
