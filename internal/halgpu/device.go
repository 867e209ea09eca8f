// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gogpu/blockrender/gpu"
	"github.com/gogpu/blockrender/internal/cache"
)

// maxDebugMessages is the number of debug messages retained.
const maxDebugMessages = 10

// Device implements gpu.Device over a HAL device and queue.
type Device struct {
	raw   hal.Device
	queue hal.Queue
	info  gpu.DeviceInfo
	opts  options

	maxTextureSize int
	memory         *memoryBudget

	pipelines *cache.Cache[*gpu.RenderPipeline, *Pipeline]
	modules   *lru.Cache[shaderKey, *shaderModule]

	scheduler atomic.Pointer[schedulerBox]
	submitted atomic.Uint64

	debugMu  sync.Mutex
	debugLog []string

	closed atomic.Bool
}

type schedulerBox struct{ s gpu.TaskScheduler }

var _ gpu.Device = (*Device)(nil)

// New wraps an open HAL device. adapter and limits describe the adapter the
// device was opened from.
func New(open hal.OpenDevice, adapter gputypes.AdapterInfo, limits gputypes.Limits, opts ...Option) (*Device, error) {
	if open.Device == nil || open.Queue == nil {
		return nil, fmt.Errorf("halgpu: %w: nil device or queue", gpu.ErrInvalidArgument)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	d := &Device{
		raw:    open.Device,
		queue:  open.Queue,
		opts:   o,
		memory: newMemoryBudget(o.memoryBudgetMB),
	}
	d.maxTextureSize = int(limits.MaxTextureDimension2D)
	if o.maxTextureSize > 0 && (d.maxTextureSize == 0 || o.maxTextureSize < d.maxTextureSize) {
		d.maxTextureSize = o.maxTextureSize
	}
	d.info = gpu.DeviceInfo{
		Vendor:   adapter.Vendor,
		Renderer: adapter.Name,
		Version:  adapter.Driver,
		Backend:  adapter.Backend.String(),
		Adapter: gpucontext.AdapterInfo{
			Name: adapter.Name,
			Type: adapterType(adapter.DeviceType),
		},
	}

	modules, err := lru.NewWithEvict[shaderKey, *shaderModule](o.moduleCacheSize, func(_ shaderKey, m *shaderModule) {
		d.raw.DestroyShaderModule(m.raw)
	})
	if err != nil {
		return nil, fmt.Errorf("halgpu: shader module cache: %w", err)
	}
	d.modules = modules
	d.pipelines = cache.NewWithEvict[*gpu.RenderPipeline, *Pipeline](o.pipelineLimit, func(_ *gpu.RenderPipeline, p *Pipeline) {
		p.destroy(d)
	})
	return d, nil
}

// Open creates an instance of backend, opens its first adapter and wraps
// the resulting device.
func Open(backend hal.Backend, opts ...Option) (*Device, error) {
	inst, err := backend.CreateInstance(&hal.InstanceDescriptor{})
	if err != nil {
		return nil, fmt.Errorf("halgpu: create instance: %w", err)
	}
	adapters := inst.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		inst.Destroy()
		return nil, fmt.Errorf("halgpu: %w: no adapters", gpu.ErrUnsupported)
	}
	exposed := adapters[0]
	limits := exposed.Capabilities.Limits
	open, err := exposed.Adapter.Open(0, limits)
	if err != nil {
		inst.Destroy()
		return nil, fmt.Errorf("halgpu: open adapter %q: %w", exposed.Info.Name, mapError(err))
	}
	return New(open, exposed.Info, limits, opts...)
}

func adapterType(t gputypes.DeviceType) gpucontext.AdapterType {
	switch t {
	case gputypes.DeviceTypeDiscreteGPU:
		return gpucontext.AdapterTypeDiscrete
	case gputypes.DeviceTypeIntegratedGPU:
		return gpucontext.AdapterTypeIntegrated
	case gputypes.DeviceTypeCPU:
		return gpucontext.AdapterTypeSoftware
	default:
		return gpucontext.AdapterTypeUnknown
	}
}

// mapError folds HAL allocation failures into gpu.ErrOutOfMemory.
func mapError(err error) error {
	if errors.Is(err, hal.ErrDeviceOutOfMemory) {
		return fmt.Errorf("%w: %w", gpu.ErrOutOfMemory, err)
	}
	return err
}

// SetTaskScheduler installs the queue that runs CopyTextureToBuffer
// callbacks once their fence signals.
func (d *Device) SetTaskScheduler(s gpu.TaskScheduler) {
	if s == nil {
		d.scheduler.Store(nil)
		return
	}
	d.scheduler.Store(&schedulerBox{s})
}

// CreateBuffer implements gpu.Device.
func (d *Device) CreateBuffer(label string, typ gpu.BufferType, usage gpu.BufferUsage, size int) (gpu.Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("create buffer %q: %w: size %d", label, gpu.ErrInvalidArgument, size)
	}
	return d.newBuffer(label, typ, usage, size)
}

// CreateBufferWithData implements gpu.Device.
func (d *Device) CreateBufferWithData(label string, typ gpu.BufferType, usage gpu.BufferUsage, data []byte) (gpu.Buffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("create buffer %q: %w: empty data", label, gpu.ErrInvalidArgument)
	}
	b, err := d.newBuffer(label, typ, usage, len(data))
	if err != nil {
		return nil, err
	}
	copy(b.mirror, data)
	if err := d.queue.WriteBuffer(b.raw, 0, data); err != nil {
		b.Close()
		return nil, fmt.Errorf("create buffer %q: upload: %w", label, mapError(err))
	}
	return b, nil
}

// CreateTexture implements gpu.Device.
func (d *Device) CreateTexture(label string, format gpu.TextureFormat, width, height, mipLevels int, stencil bool) (gpu.Texture, error) {
	switch {
	case mipLevels < 1:
		return nil, fmt.Errorf("create texture %q: %w: %d mip levels", label, gpu.ErrInvalidArgument, mipLevels)
	case width <= 0 || height <= 0:
		return nil, fmt.Errorf("create texture %q: %w: size %dx%d", label, gpu.ErrInvalidArgument, width, height)
	case d.maxTextureSize > 0 && (width > d.maxTextureSize || height > d.maxTextureSize):
		return nil, fmt.Errorf("create texture %q: %w: size %dx%d exceeds maximum %d",
			label, gpu.ErrInvalidArgument, width, height, d.maxTextureSize)
	}
	return d.newTexture(label, format, width, height, mipLevels, stencil && format.HasDepthAspect())
}

// CreateCommandEncoder implements gpu.Device.
func (d *Device) CreateCommandEncoder() gpu.CommandEncoder {
	return &CommandEncoder{dev: d}
}

// ClearPipelineCache implements gpu.Device.
func (d *Device) ClearPipelineCache() {
	d.pipelines.Clear()
	d.modules.Purge()
	d.debugf("pipeline cache cleared")
}

// MaxTextureSize implements gpu.Device.
func (d *Device) MaxTextureSize() int { return d.maxTextureSize }

// EnabledExtensions implements gpu.Device. HAL devices are opened without
// optional features.
func (d *Device) EnabledExtensions() []string { return nil }

// Info implements gpu.Device.
func (d *Device) Info() gpu.DeviceInfo { return d.info }

// ImplementationInformation implements gpu.Device.
func (d *Device) ImplementationInformation() string {
	return fmt.Sprintf("Backend: %s\nRenderer: %s\nVendor: %s\nVersion: %s\nAdapter type: %s\n%s",
		d.info.Backend, d.info.Renderer, d.info.Vendor, d.info.Version, d.info.Adapter.Type, d.memory.stats())
}

// IsDebuggingEnabled implements gpu.Device.
func (d *Device) IsDebuggingEnabled() bool { return d.opts.debug }

// LastDebugMessages implements gpu.Device. Returns the most recent
// messages, oldest first, and clears the log.
func (d *Device) LastDebugMessages() []string {
	d.debugMu.Lock()
	defer d.debugMu.Unlock()
	out := d.debugLog
	d.debugLog = nil
	return out
}

func (d *Device) debugf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	gpu.Logger().Debug("halgpu: " + msg)
	if !d.opts.debug {
		return
	}
	d.debugMu.Lock()
	defer d.debugMu.Unlock()
	d.debugLog = append(d.debugLog, msg)
	if len(d.debugLog) > maxDebugMessages {
		d.debugLog = d.debugLog[len(d.debugLog)-maxDebugMessages:]
	}
}

// MemoryStats returns the resource budget usage.
func (d *Device) MemoryStats() MemoryStats { return d.memory.stats() }

// Close implements gpu.Device. Resources still alive are not destroyed;
// their owners remain responsible for closing them.
func (d *Device) Close() {
	if !d.closed.CompareAndSwap(false, true) {
		return
	}
	d.ClearPipelineCache()
	if err := d.raw.WaitIdle(); err != nil {
		gpu.Logger().Warn("halgpu: wait idle failed", "err", err)
	}
	d.raw.Destroy()
}

// submit finishes enc and submits it, returning the submission index.
func (d *Device) submit(enc hal.CommandEncoder) (uint64, error) {
	cmd, err := enc.EndEncoding()
	if err != nil {
		return 0, fmt.Errorf("end encoding: %w", err)
	}
	idx, err := d.queue.Submit([]hal.CommandBuffer{cmd})
	d.raw.FreeCommandBuffer(cmd)
	if err != nil {
		return 0, fmt.Errorf("submit: %w", mapError(err))
	}
	d.submitted.Store(idx)
	return idx, nil
}

// record runs fn against a fresh HAL encoder and submits the result.
func (d *Device) record(label string, fn func(hal.CommandEncoder)) error {
	enc, err := d.raw.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return fmt.Errorf("%s: create encoder: %w", label, mapError(err))
	}
	if err := enc.BeginEncoding(label); err != nil {
		return fmt.Errorf("%s: begin encoding: %w", label, err)
	}
	fn(enc)
	if _, err := d.submit(enc); err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	return nil
}
