// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendersys

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/blockrender/gpu"
	"github.com/gogpu/blockrender/internal/halgpu"
)

// recordingDevice wraps a noop device, remembering uploaded buffer data
// and handing out controllable fences.
type recordingDevice struct {
	gpu.Device
	mu      sync.Mutex
	uploads []*recordedBuffer
	fences  []*manualFence
}

type recordedBuffer struct {
	gpu.Buffer
	data   []byte
	closes int
}

func (b *recordedBuffer) Close() {
	b.closes++
	b.Buffer.Close()
}

type manualFence struct {
	mu       sync.Mutex
	signaled bool
	closed   bool
}

func (f *manualFence) AwaitCompletion(time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled
}

func (f *manualFence) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *manualFence) signal() {
	f.mu.Lock()
	f.signaled = true
	f.mu.Unlock()
}

type fenceEncoder struct {
	gpu.CommandEncoder
	dev *recordingDevice
}

func (e fenceEncoder) CreateFence() gpu.Fence {
	f := &manualFence{}
	e.dev.mu.Lock()
	e.dev.fences = append(e.dev.fences, f)
	e.dev.mu.Unlock()
	return f
}

func (d *recordingDevice) CreateBufferWithData(label string, typ gpu.BufferType, usage gpu.BufferUsage, data []byte) (gpu.Buffer, error) {
	buf, err := d.Device.CreateBufferWithData(label, typ, usage, data)
	if err != nil {
		return nil, err
	}
	rb := &recordedBuffer{Buffer: buf, data: append([]byte(nil), data...)}
	d.uploads = append(d.uploads, rb)
	return rb, nil
}

func (d *recordingDevice) CreateCommandEncoder() gpu.CommandEncoder {
	return fenceEncoder{CommandEncoder: d.Device.CreateCommandEncoder(), dev: d}
}

func newRecordingDevice(t *testing.T) *recordingDevice {
	t.Helper()
	dev, err := halgpu.Open(noop.API{})
	require.NoError(t, err)
	t.Cleanup(dev.Close)
	return &recordingDevice{Device: dev}
}

func newContext(t *testing.T) (*Context, *recordingDevice) {
	t.Helper()
	dev := newRecordingDevice(t)
	c, err := New(dev)
	require.NoError(t, err)
	require.NoError(t, c.InitRenderThread())
	t.Cleanup(func() {
		c.Close()
		c.ReleaseRenderThread()
	})
	return c, dev
}

func shortIndices(data []byte) []int {
	out := make([]int, len(data)/2)
	for i := range out {
		out[i] = int(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}

func TestAutoStorageIndexBufferQuads(t *testing.T) {
	dev := newRecordingDevice(t)
	b := NewAutoStorageIndexBuffer(dev, 4, 6, QuadIndices)
	defer b.Close()

	assert.False(t, b.HasStorage(6))
	buf, err := b.Buffer(6)
	require.NoError(t, err)
	assert.Equal(t, 12, b.Capacity())
	assert.True(t, b.HasStorage(12))
	assert.Equal(t, gpu.IndexShort, b.Type())

	require.Len(t, dev.uploads, 1)
	assert.Same(t, dev.uploads[0], buf)
	assert.Equal(t, []int{0, 1, 2, 2, 3, 0, 4, 5, 6, 6, 7, 4}, shortIndices(dev.uploads[0].data))
}

func TestAutoStorageIndexBufferLines(t *testing.T) {
	dev := newRecordingDevice(t)
	b := NewAutoStorageIndexBuffer(dev, 4, 6, LineIndices)
	defer b.Close()

	_, err := b.Buffer(3)
	require.NoError(t, err)
	assert.Equal(t, 6, b.Capacity())
	assert.Equal(t, []int{0, 1, 2, 3, 2, 1}, shortIndices(dev.uploads[0].data))
}

func TestAutoStorageIndexBufferGrowth(t *testing.T) {
	dev := newRecordingDevice(t)
	b := NewAutoStorageIndexBuffer(dev, 1, 1, SequentialIndices)
	defer b.Close()

	first, err := b.Buffer(10)
	require.NoError(t, err)
	again, err := b.Buffer(20)
	require.NoError(t, err)
	assert.Same(t, first, again, "request within capacity must not grow")

	grown, err := b.Buffer(21)
	require.NoError(t, err)
	assert.NotSame(t, first, grown)
	assert.GreaterOrEqual(t, b.Capacity(), 21)
	assert.Equal(t, 1, dev.uploads[0].closes, "old buffer closed exactly once")
	assert.Equal(t, 0, dev.uploads[1].closes)

	// Uploads are padded to a multiple of four bytes.
	assert.Zero(t, len(dev.uploads[1].data)%4)
}

func TestAutoStorageIndexBufferIntIndices(t *testing.T) {
	dev := newRecordingDevice(t)
	b := NewAutoStorageIndexBuffer(dev, 4, 6, QuadIndices)
	defer b.Close()

	// 2*60000 indices cover 80000 vertices, past the 16-bit range.
	_, err := b.Buffer(60000)
	require.NoError(t, err)
	assert.Equal(t, gpu.IndexInt, b.Type())
	assert.Len(t, dev.uploads[0].data, 120000*4)
}

func TestRenderThreadAssertion(t *testing.T) {
	c, _ := newContext(t)
	assert.True(t, c.IsOnRenderThread())
	assert.ErrorIs(t, c.InitRenderThread(), ErrRenderThreadInitialized)

	done := make(chan any)
	go func() {
		defer func() { done <- recover() }()
		c.SetShaderColor(1, 0, 0, 1)
	}()
	assert.Equal(t, wrongThread, <-done)

	assert.NotPanics(t, func() { c.SetShaderColor(1, 0, 0, 1) })
	assert.Equal(t, mgl32.Vec4{1, 0, 0, 1}, c.ShaderColor())
}

func TestProjectionBackupRestore(t *testing.T) {
	c, _ := newContext(t)
	persp := mgl32.Perspective(mgl32.DegToRad(70), 16.0/9, 0.05, 256)
	c.SetProjectionMatrix(persp, Perspective)
	c.BackupProjectionMatrix()

	ortho := mgl32.Ortho(0, 800, 0, 600, 0.1, 1000)
	c.SetProjectionMatrix(ortho, Orthographic)
	assert.Equal(t, Orthographic, c.ProjectionType())

	c.RestoreProjectionMatrix()
	assert.Equal(t, persp, c.ProjectionMatrix())
	assert.Equal(t, Perspective, c.ProjectionType())
}

func TestShaderState(t *testing.T) {
	c, dev := newContext(t)

	assert.False(t, c.ShaderFog().IsEnabled())
	assert.Equal(t, float32(1), c.LineWidth())
	assert.Equal(t, float32(1), c.ShaderGlintAlpha())

	tex, err := dev.CreateTexture("overlay", gpu.FormatRGBA8, 16, 16, 1, false)
	require.NoError(t, err)
	defer tex.Close()
	c.SetupOverlayColor(tex)
	assert.Same(t, tex, c.ShaderTexture(1))
	c.SetShaderTexture(TextureCount, tex)
	assert.Nil(t, c.ShaderTexture(TextureCount))
	c.TeardownOverlayColor()
	assert.Nil(t, c.ShaderTexture(1))

	c.SetShaderGameTime(24000+12000, 0.5)
	assert.InDelta(t, 12000.5/24000, c.ShaderGameTime(), 1e-6)

	c.SetModelOffset(1, 2, 3)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, c.ModelOffset())
	c.ResetModelOffset()
	assert.Equal(t, mgl32.Vec3{}, c.ModelOffset())

	c.SetupGuiFlatDiffuseLighting(mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0})
	lights := c.ShaderLights()
	assert.InDelta(t, 1, lights[0].Len(), 1e-5, "rotations keep directions normalized")
}

func TestScissorState(t *testing.T) {
	c, _ := newContext(t)
	c.EnableScissor(10, 20, 30, 40)
	s := c.Scissor()
	assert.True(t, s.IsEnabled())
	assert.Equal(t, []int{10, 20, 30, 40}, []int{s.X(), s.Y(), s.Width(), s.Height()})

	var saved ScissorState
	saved.CopyFrom(s)
	c.DisableScissor()
	assert.False(t, s.IsEnabled())
	assert.True(t, saved.IsEnabled())
}

func TestMatrixStack(t *testing.T) {
	s := NewMatrixStack()
	s.Translate(1, 2, 3)
	s.Push()
	s.Translate(1, 0, 0)
	assert.Equal(t, float32(2), s.Top().Col(3).X())
	s.Pop()
	assert.Equal(t, float32(1), s.Top().Col(3).X())
	s.Pop()
	assert.Equal(t, 0, s.Depth())
	s.Clear()
	assert.Equal(t, mgl32.Ident4(), s.Top())
}

func TestFencedTasksRunInOrder(t *testing.T) {
	c, dev := newContext(t)

	var ran []int
	for i := range 3 {
		c.QueueFencedTask(func() { ran = append(ran, i) })
	}
	require.Len(t, dev.fences, 3)

	c.ExecutePendingTasks()
	assert.Empty(t, ran, "nothing signalled yet")

	dev.fences[0].signal()
	dev.fences[2].signal()
	c.ExecutePendingTasks()
	assert.Equal(t, []int{0}, ran, "stops at the first unsignalled fence")
	assert.True(t, dev.fences[0].closed)
	assert.False(t, dev.fences[2].closed)

	dev.fences[1].signal()
	c.ExecutePendingTasks()
	assert.Equal(t, []int{0, 1, 2}, ran)
	assert.Zero(t, c.PendingTasks())
}

func TestCopyTextureToBufferRunsAsFencedTask(t *testing.T) {
	c, dev := newContext(t)
	tex, err := dev.CreateTexture("src", gpu.FormatRGBA8, 4, 4, 1, false)
	require.NoError(t, err)
	defer tex.Close()
	buf, err := dev.CreateBuffer("dst", gpu.BufferPixelPack, gpu.StreamRead, 64)
	require.NoError(t, err)
	defer buf.Close()

	done := false
	require.NoError(t, dev.Device.CreateCommandEncoder().CopyTextureToBuffer(tex, buf, 0, 0, func() { done = true }))
	assert.False(t, done)
	assert.Equal(t, 1, c.PendingTasks())

	dev.fences[0].signal()
	c.ExecutePendingTasks()
	assert.True(t, done)
}

func TestProjectionSortKey(t *testing.T) {
	origin := mgl32.Vec3{}
	near, far := mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 0, -5}
	assert.Greater(t, Perspective.SortKey(origin, far), Perspective.SortKey(origin, near))
	assert.Greater(t, Orthographic.SortKey(origin, far), Orthographic.SortKey(origin, near))
}
