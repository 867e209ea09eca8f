// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package rendersys

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/blockrender/gpu"
)

// TextureCount is the number of shader texture slots.
const TextureCount = 12

// MinimumAtlasTextureSize is the smallest max texture size the renderer
// accepts from a device.
const MinimumAtlasTextureSize = 1024

var (
	// ErrNoDevice is returned by New without a device.
	ErrNoDevice = errors.New("rendersys: no device")
	// ErrRenderThreadInitialized is returned by InitRenderThread when a
	// render thread is already set.
	ErrRenderThreadInitialized = errors.New("rendersys: could not initialize render thread")
)

// wrongThread is the panic value of render-thread assertions.
const wrongThread = "Rendersystem called from wrong thread"

// Context is the render-thread state.
type Context struct {
	dev gpu.Device

	renderThread atomic.Int64 // 0 until InitRenderThread

	scissor ScissorState

	projection      mgl32.Mat4
	projectionType  ProjectionType
	savedProjection mgl32.Mat4
	savedType       ProjectionType
	modelView       *MatrixStack
	textureMatrix   mgl32.Mat4

	textures    [TextureCount]gpu.Texture
	shaderColor mgl32.Vec4
	glintAlpha  float32
	fog         Fog
	lights      [2]mgl32.Vec3
	gameTime    float32
	lineWidth   float32
	modelOffset mgl32.Vec3

	quadVertices gpu.Buffer
	sequential   *AutoStorageIndexBuffer
	quads        *AutoStorageIndexBuffer
	lines        *AutoStorageIndexBuffer

	fencedMu sync.Mutex
	fenced   []fencedTask
}

type fencedTask struct {
	run   func()
	fence gpu.Fence
}

var _ gpu.TaskScheduler = (*Context)(nil)

// New creates the render state for dev, uploads the shared quad and
// installs the context as the device's fenced task scheduler.
func New(dev gpu.Device) (*Context, error) {
	if dev == nil {
		return nil, ErrNoDevice
	}
	if limit := dev.MaxTextureSize(); limit > 0 && limit < MinimumAtlasTextureSize {
		return nil, fmt.Errorf("rendersys: %w: max texture size %d below %d",
			gpu.ErrUnsupported, limit, MinimumAtlasTextureSize)
	}

	c := &Context{
		dev:       dev,
		modelView: NewMatrixStack(),
	}
	c.setupDefaults()
	c.sequential = NewAutoStorageIndexBuffer(dev, 1, 1, SequentialIndices)
	c.quads = NewAutoStorageIndexBuffer(dev, 4, 6, QuadIndices)
	c.lines = NewAutoStorageIndexBuffer(dev, 4, 6, LineIndices)
	for _, b := range []*AutoStorageIndexBuffer{c.sequential, c.quads, c.lines} {
		b.guard = c.AssertOnRenderThread
	}

	quad, err := dev.CreateBufferWithData("Quad", gpu.BufferVertices, gpu.StaticWrite, quadVertexData())
	if err != nil {
		return nil, fmt.Errorf("rendersys: quad vertex buffer: %w", err)
	}
	c.quadVertices = quad
	dev.SetTaskScheduler(c)
	gpu.Logger().Info("rendersys: renderer initialized", "device", dev.Info().Renderer)
	return c, nil
}

// quadVertexData is a unit quad in gpu.PositionFormat, counter-clockwise.
func quadVertexData() []byte {
	corners := [4][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}}
	data := make([]byte, 0, len(corners)*gpu.PositionFormat.Stride)
	for _, v := range corners {
		for _, f := range v {
			data = binary.LittleEndian.AppendUint32(data, math.Float32bits(f))
		}
	}
	return data
}

func (c *Context) setupDefaults() {
	c.projection = mgl32.Ident4()
	c.savedProjection = mgl32.Ident4()
	c.modelView.Clear()
	c.textureMatrix = mgl32.Ident4()
	c.shaderColor = mgl32.Vec4{1, 1, 1, 1}
	c.glintAlpha = 1
	c.fog = NoFog
	c.lineWidth = 1
}

// =============================================================================
// Render thread
// =============================================================================

// InitRenderThread makes the calling goroutine the render thread and locks
// it to its OS thread.
func (c *Context) InitRenderThread() error {
	runtime.LockOSThread()
	if !c.renderThread.CompareAndSwap(0, threadID()) {
		runtime.UnlockOSThread()
		return ErrRenderThreadInitialized
	}
	return nil
}

// ReleaseRenderThread undoes InitRenderThread. It must run on the render
// thread.
func (c *Context) ReleaseRenderThread() {
	c.AssertOnRenderThread()
	c.renderThread.Store(0)
	runtime.UnlockOSThread()
}

// IsOnRenderThread reports whether the caller is the render thread.
func (c *Context) IsOnRenderThread() bool {
	id := c.renderThread.Load()
	return id != 0 && id == threadID()
}

// AssertOnRenderThread panics unless the caller is the render thread.
func (c *Context) AssertOnRenderThread() {
	if !c.IsOnRenderThread() {
		panic(wrongThread)
	}
}

// =============================================================================
// Device and shared buffers
// =============================================================================

// Device returns the device. Safe from any goroutine.
func (c *Context) Device() gpu.Device { return c.dev }

// QuadVertexBuffer returns the shared unit quad.
func (c *Context) QuadVertexBuffer() gpu.Buffer { return c.quadVertices }

// SequentialBuffer returns the shared index buffer for mode.
func (c *Context) SequentialBuffer(mode gpu.VertexMode) *AutoStorageIndexBuffer {
	c.AssertOnRenderThread()
	switch mode {
	case gpu.ModeQuads:
		return c.quads
	case gpu.ModeLines:
		return c.lines
	default:
		return c.sequential
	}
}

// =============================================================================
// Scissor
// =============================================================================

// EnableScissor sets the scissor rectangle for subsequent passes.
func (c *Context) EnableScissor(x, y, width, height int) {
	c.AssertOnRenderThread()
	c.scissor.Enable(x, y, width, height)
}

// DisableScissor turns scissoring off.
func (c *Context) DisableScissor() {
	c.AssertOnRenderThread()
	c.scissor.Disable()
}

// Scissor returns the scissor state.
func (c *Context) Scissor() *ScissorState {
	c.AssertOnRenderThread()
	return &c.scissor
}

// =============================================================================
// Matrices
// =============================================================================

// SetupDefaultState resets the projection, model-view and texture
// matrices.
func (c *Context) SetupDefaultState() {
	c.AssertOnRenderThread()
	c.projection = mgl32.Ident4()
	c.savedProjection = mgl32.Ident4()
	c.modelView.Clear()
	c.textureMatrix = mgl32.Ident4()
}

func (c *Context) SetProjectionMatrix(m mgl32.Mat4, typ ProjectionType) {
	c.AssertOnRenderThread()
	c.projection, c.projectionType = m, typ
}

func (c *Context) ProjectionMatrix() mgl32.Mat4 {
	c.AssertOnRenderThread()
	return c.projection
}

func (c *Context) ProjectionType() ProjectionType {
	c.AssertOnRenderThread()
	return c.projectionType
}

// BackupProjectionMatrix saves the projection for RestoreProjectionMatrix.
// There is a single save slot.
func (c *Context) BackupProjectionMatrix() {
	c.AssertOnRenderThread()
	c.savedProjection, c.savedType = c.projection, c.projectionType
}

func (c *Context) RestoreProjectionMatrix() {
	c.AssertOnRenderThread()
	c.projection, c.projectionType = c.savedProjection, c.savedType
}

// ModelViewStack returns the model-view stack; its top is the current
// model-view matrix.
func (c *Context) ModelViewStack() *MatrixStack {
	c.AssertOnRenderThread()
	return c.modelView
}

func (c *Context) ModelViewMatrix() mgl32.Mat4 {
	c.AssertOnRenderThread()
	return c.modelView.Top()
}

func (c *Context) SetTextureMatrix(m mgl32.Mat4) {
	c.AssertOnRenderThread()
	c.textureMatrix = m
}

func (c *Context) ResetTextureMatrix() {
	c.AssertOnRenderThread()
	c.textureMatrix = mgl32.Ident4()
}

func (c *Context) TextureMatrix() mgl32.Mat4 {
	c.AssertOnRenderThread()
	return c.textureMatrix
}

// =============================================================================
// Shader globals
// =============================================================================

// SetShaderTexture binds tex to slot i. Out of range slots are ignored.
func (c *Context) SetShaderTexture(i int, tex gpu.Texture) {
	c.AssertOnRenderThread()
	if i >= 0 && i < TextureCount {
		c.textures[i] = tex
	}
}

// ShaderTexture returns the texture in slot i, or nil.
func (c *Context) ShaderTexture(i int) gpu.Texture {
	c.AssertOnRenderThread()
	if i >= 0 && i < TextureCount {
		return c.textures[i]
	}
	return nil
}

// SetupOverlayColor binds the overlay texture to slot 1.
func (c *Context) SetupOverlayColor(tex gpu.Texture) { c.SetShaderTexture(1, tex) }

func (c *Context) TeardownOverlayColor() { c.SetShaderTexture(1, nil) }

func (c *Context) SetShaderColor(r, g, b, a float32) {
	c.AssertOnRenderThread()
	c.shaderColor = mgl32.Vec4{r, g, b, a}
}

func (c *Context) ShaderColor() mgl32.Vec4 {
	c.AssertOnRenderThread()
	return c.shaderColor
}

func (c *Context) SetShaderGlintAlpha(alpha float32) {
	c.AssertOnRenderThread()
	c.glintAlpha = alpha
}

func (c *Context) ShaderGlintAlpha() float32 {
	c.AssertOnRenderThread()
	return c.glintAlpha
}

func (c *Context) SetShaderFog(f Fog) {
	c.AssertOnRenderThread()
	c.fog = f
}

func (c *Context) ShaderFog() Fog {
	c.AssertOnRenderThread()
	return c.fog
}

func (c *Context) SetShaderLights(l0, l1 mgl32.Vec3) {
	c.AssertOnRenderThread()
	c.lights = [2]mgl32.Vec3{l0, l1}
}

func (c *Context) ShaderLights() [2]mgl32.Vec3 {
	c.AssertOnRenderThread()
	return c.lights
}

// SetupLevelDiffuseLighting uses the light directions as given.
func (c *Context) SetupLevelDiffuseLighting(l0, l1 mgl32.Vec3) { c.SetShaderLights(l0, l1) }

// SetupGuiFlatDiffuseLighting rotates the lights for flat item rendering.
func (c *Context) SetupGuiFlatDiffuseLighting(l0, l1 mgl32.Vec3) {
	m := mgl32.HomogRotate3DY(-math.Pi / 8).Mul4(mgl32.HomogRotate3DX(math.Pi * 3 / 4))
	c.SetShaderLights(transformDirection(m, l0), transformDirection(m, l1))
}

// SetupGui3DDiffuseLighting rotates the lights for 3D item rendering.
func (c *Context) SetupGui3DDiffuseLighting(l0, l1 mgl32.Vec3) {
	m := mgl32.Scale3D(1, -1, 1)
	m = rotateYXZ(m, 1.0821041, 3.2375858, 0)
	m = rotateYXZ(m, -math.Pi/8, math.Pi*3/4, 0)
	c.SetShaderLights(transformDirection(m, l0), transformDirection(m, l1))
}

// SetShaderGameTime stores the day fraction of the tick clock.
func (c *Context) SetShaderGameTime(tick int64, partialTick float32) {
	c.AssertOnRenderThread()
	c.gameTime = (float32(tick%24000) + partialTick) / 24000
}

func (c *Context) ShaderGameTime() float32 {
	c.AssertOnRenderThread()
	return c.gameTime
}

func (c *Context) SetLineWidth(w float32) {
	c.AssertOnRenderThread()
	c.lineWidth = w
}

func (c *Context) LineWidth() float32 {
	c.AssertOnRenderThread()
	return c.lineWidth
}

func (c *Context) SetModelOffset(x, y, z float32) {
	c.AssertOnRenderThread()
	c.modelOffset = mgl32.Vec3{x, y, z}
}

func (c *Context) ResetModelOffset() { c.SetModelOffset(0, 0, 0) }

func (c *Context) ModelOffset() mgl32.Vec3 {
	c.AssertOnRenderThread()
	return c.modelOffset
}

// =============================================================================
// Fenced tasks
// =============================================================================

// QueueFencedTask implements gpu.TaskScheduler. task runs from
// ExecutePendingTasks once all work submitted before this call completes.
// Safe from any goroutine.
func (c *Context) QueueFencedTask(task func()) {
	fence := c.dev.CreateCommandEncoder().CreateFence()
	c.fencedMu.Lock()
	c.fenced = append(c.fenced, fencedTask{run: task, fence: fence})
	c.fencedMu.Unlock()
}

// ExecutePendingTasks runs queued tasks in order, stopping at the first
// one whose fence has not signalled. Each fence is closed after its task.
func (c *Context) ExecutePendingTasks() {
	c.AssertOnRenderThread()
	for {
		c.fencedMu.Lock()
		if len(c.fenced) == 0 {
			c.fencedMu.Unlock()
			return
		}
		head := c.fenced[0]
		if !head.fence.AwaitCompletion(0) {
			c.fencedMu.Unlock()
			return
		}
		c.fenced[0] = fencedTask{}
		c.fenced = c.fenced[1:]
		c.fencedMu.Unlock()

		c.runFenced(head)
	}
}

func (c *Context) runFenced(t fencedTask) {
	defer t.fence.Close()
	t.run()
}

// PendingTasks returns the number of queued fenced tasks.
func (c *Context) PendingTasks() int {
	c.fencedMu.Lock()
	defer c.fencedMu.Unlock()
	return len(c.fenced)
}

// Close releases the shared buffers and detaches from the device. It does
// not close the device.
func (c *Context) Close() {
	c.dev.SetTaskScheduler(nil)
	c.sequential.Close()
	c.quads.Close()
	c.lines.Close()
	if c.quadVertices != nil {
		c.quadVertices.Close()
	}
}
