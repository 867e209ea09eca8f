// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import "github.com/gogpu/gputypes"

// BufferType is the binding role a buffer is created for.
type BufferType int

const (
	BufferVertices BufferType = iota
	BufferIndices
	BufferPixelPack
	BufferCopyRead
	BufferCopyWrite
	BufferPixelUnpack
	BufferUniforms
)

func (t BufferType) String() string {
	switch t {
	case BufferVertices:
		return "Vertices"
	case BufferIndices:
		return "Indices"
	case BufferPixelPack:
		return "PixelPack"
	case BufferCopyRead:
		return "CopyRead"
	case BufferCopyWrite:
		return "CopyWrite"
	case BufferPixelUnpack:
		return "PixelUnpack"
	case BufferUniforms:
		return "Uniforms"
	default:
		return "Unknown"
	}
}

// HalUsage returns the WebGPU usage bits required by the buffer type.
func (t BufferType) HalUsage() gputypes.BufferUsage {
	switch t {
	case BufferVertices:
		return gputypes.BufferUsageVertex
	case BufferIndices:
		return gputypes.BufferUsageIndex
	case BufferUniforms:
		return gputypes.BufferUsageUniform
	default:
		return gputypes.BufferUsageNone
	}
}

// BufferUsage is the access pattern hint a buffer is created with.
type BufferUsage int

const (
	DynamicWrite BufferUsage = iota
	DynamicRead
	DynamicCopy
	StaticWrite
	StaticRead
	StaticCopy
	StreamWrite
	StreamRead
	StreamCopy
)

// Readable reports whether the CPU may read the buffer back.
func (u BufferUsage) Readable() bool {
	return u == DynamicRead || u == StaticRead || u == StreamRead
}

// Writable reports whether the CPU may write the buffer.
func (u BufferUsage) Writable() bool {
	return u == DynamicWrite || u == StaticWrite || u == StreamWrite
}

func (u BufferUsage) String() string {
	switch u {
	case DynamicWrite:
		return "DynamicWrite"
	case DynamicRead:
		return "DynamicRead"
	case DynamicCopy:
		return "DynamicCopy"
	case StaticWrite:
		return "StaticWrite"
	case StaticRead:
		return "StaticRead"
	case StaticCopy:
		return "StaticCopy"
	case StreamWrite:
		return "StreamWrite"
	case StreamRead:
		return "StreamRead"
	case StreamCopy:
		return "StreamCopy"
	default:
		return "Unknown"
	}
}

// HalUsage returns the WebGPU usage bits implied by the access pattern.
// Every buffer can be a copy destination so encoders can upload into it.
func (u BufferUsage) HalUsage() gputypes.BufferUsage {
	bits := gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc
	if u.Readable() {
		bits |= gputypes.BufferUsageMapRead
	}
	return bits
}

// IndexType is the element width of an index buffer.
type IndexType int

const (
	IndexShort IndexType = iota
	IndexInt
)

// Bytes returns the size of one index.
func (t IndexType) Bytes() int {
	if t == IndexShort {
		return 2
	}
	return 4
}

// Format returns the WebGPU index format.
func (t IndexType) Format() gputypes.IndexFormat {
	if t == IndexShort {
		return gputypes.IndexFormatUint16
	}
	return gputypes.IndexFormatUint32
}

// IndexTypeFor picks the narrowest index type able to address vertexCount
// vertices.
func IndexTypeFor(vertexCount int) IndexType {
	if vertexCount&^0xFFFF == 0 {
		return IndexShort
	}
	return IndexInt
}

func (t IndexType) String() string {
	if t == IndexShort {
		return "Short"
	}
	return "Int"
}

// TextureFormat is the pixel layout of a texture.
type TextureFormat int

const (
	FormatRGBA8 TextureFormat = iota
	FormatRed8
	FormatRed8I
	FormatDepth32
)

// PixelSize returns the size of one texel in bytes.
func (f TextureFormat) PixelSize() int {
	switch f {
	case FormatRed8, FormatRed8I:
		return 1
	default:
		return 4
	}
}

// HasColorAspect reports whether the format stores color.
func (f TextureFormat) HasColorAspect() bool { return f != FormatDepth32 }

// HasDepthAspect reports whether the format stores depth.
func (f TextureFormat) HasDepthAspect() bool { return f == FormatDepth32 }

// HalFormat returns the WebGPU format. The stencil flag only applies to
// depth formats.
func (f TextureFormat) HalFormat(stencil bool) gputypes.TextureFormat {
	switch f {
	case FormatRed8:
		return gputypes.TextureFormatR8Unorm
	case FormatRed8I:
		return gputypes.TextureFormatR8Sint
	case FormatDepth32:
		if stencil {
			return gputypes.TextureFormatDepth32FloatStencil8
		}
		return gputypes.TextureFormatDepth32Float
	default:
		return gputypes.TextureFormatRGBA8Unorm
	}
}

func (f TextureFormat) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatRed8:
		return "RED8"
	case FormatRed8I:
		return "RED8I"
	case FormatDepth32:
		return "DEPTH32"
	default:
		return "Unknown"
	}
}

// AddressMode controls sampling outside [0, 1].
type AddressMode int

const (
	Repeat AddressMode = iota
	ClampToEdge
)

// HalMode returns the WebGPU address mode.
func (m AddressMode) HalMode() gputypes.AddressMode {
	if m == ClampToEdge {
		return gputypes.AddressModeClampToEdge
	}
	return gputypes.AddressModeRepeat
}

// FilterMode selects texel filtering.
type FilterMode int

const (
	Nearest FilterMode = iota
	Linear
)

// HalMode returns the WebGPU filter mode.
func (m FilterMode) HalMode() gputypes.FilterMode {
	if m == Linear {
		return gputypes.FilterModeLinear
	}
	return gputypes.FilterModeNearest
}

// ShaderType is the pipeline stage a shader source is compiled for.
type ShaderType int

const (
	VertexShader ShaderType = iota
	FragmentShader
)

func (t ShaderType) String() string {
	if t == VertexShader {
		return "vertex"
	}
	return "fragment"
}
