// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import "github.com/gogpu/gpucontext"

// Device creates GPU resources and owns the pipeline caches.
type Device interface {
	// CreateBuffer allocates size bytes. Size must be positive.
	CreateBuffer(label string, typ BufferType, usage BufferUsage, size int) (Buffer, error)
	// CreateBufferWithData allocates a buffer holding a copy of data.
	CreateBufferWithData(label string, typ BufferType, usage BufferUsage, data []byte) (Buffer, error)
	// CreateTexture allocates a 2D texture. Stencil only applies to depth
	// formats.
	CreateTexture(label string, format TextureFormat, width, height, mipLevels int, stencil bool) (Texture, error)

	CreateCommandEncoder() CommandEncoder
	// SetTaskScheduler installs the queue that runs CopyTextureToBuffer
	// completion callbacks. Without one, callbacks run synchronously.
	SetTaskScheduler(s TaskScheduler)

	// PrecompilePipeline compiles p, resolving shader ids through source
	// (nil uses the device default). Results are cached per descriptor.
	PrecompilePipeline(p *RenderPipeline, source ShaderSource) CompiledPipeline
	// ClearPipelineCache drops every compiled pipeline and shader module.
	ClearPipelineCache()

	MaxTextureSize() int
	EnabledExtensions() []string
	Info() DeviceInfo
	ImplementationInformation() string
	LastDebugMessages() []string
	IsDebuggingEnabled() bool

	Close()
}

// DeviceInfo identifies the device behind a Device.
type DeviceInfo struct {
	Vendor   string
	Renderer string
	Version  string
	Backend  string
	Adapter  gpucontext.AdapterInfo
}
