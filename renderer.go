// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package blockrender

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/gogpu/gputypes"

	// Registers the noop and software backends.
	_ "github.com/gogpu/blockrender/backend"
	"github.com/gogpu/blockrender/chunk"
	"github.com/gogpu/blockrender/config"
	"github.com/gogpu/blockrender/crashreport"
	"github.com/gogpu/blockrender/framegraph"
	"github.com/gogpu/blockrender/gpu"
	"github.com/gogpu/blockrender/internal/parallel"
	"github.com/gogpu/blockrender/postchain"
	"github.com/gogpu/blockrender/profiling"
	"github.com/gogpu/blockrender/rendersys"
	"github.com/gogpu/blockrender/screenshot"
	"github.com/gogpu/blockrender/shaders"
	"github.com/gogpu/blockrender/target"
)

const (
	// maxResortsPerFrame bounds the translucent re-sorts scheduled when
	// the camera moves.
	maxResortsPerFrame = 15
	builtinPrefix      = "builtin:"
)

// Renderer owns a device and everything rendered with it. All methods
// except Close must be called on the goroutine that called Open.
type Renderer struct {
	settings config.Settings
	dev      gpu.Device
	rs       *rendersys.Context
	main     *target.RenderTarget
	atlas    gpu.Texture

	workers  *parallel.WorkerPool
	io       *parallel.WorkerPool
	sections *chunk.SectionRenderDispatcher
	listener *chunk.RecentlyCompiled

	chain    *postchain.Chain
	reloader *postchain.Reloader
	targets  *framegraph.Pool

	profiler *profiling.Recorder
	crashes  *crashreport.Sink

	lastResort mgl64.Vec3
}

// Open opens the configured backend and binds the calling goroutine as
// the render thread.
func Open(s config.Settings, level chunk.Level, compiler chunk.SectionCompiler) (_ *Renderer, err error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	source := shaders.WithDir(s.ShaderDir)
	dev, err := gpu.Open(s.Backend, gpu.OpenConfig{
		MemoryBudgetMB:  s.MemoryBudgetMB,
		MaxTextureSize:  s.MaxTextureSize,
		Debug:           s.Debug,
		ValidateShaders: s.ValidateShaders,
		ShaderSource:    source,
		DeviceReadback:  s.DeviceReadback,
	})
	if err != nil {
		return nil, err
	}
	r := &Renderer{settings: s, dev: dev, profiler: profiling.NewRecorder()}
	defer func() {
		if err != nil {
			r.Close()
		}
	}()

	if r.rs, err = rendersys.New(dev); err != nil {
		return nil, err
	}
	if err = r.rs.InitRenderThread(); err != nil {
		return nil, err
	}
	if r.main, err = target.NewTextureTarget(r.rs, "Main", s.Width, s.Height, true); err != nil {
		return nil, err
	}
	if r.atlas, err = whiteAtlas(dev); err != nil {
		return nil, err
	}

	r.crashes = crashreport.NewSink(nil)
	workers := s.Workers
	if workers == 0 {
		workers = max(1, runtime.GOMAXPROCS(0)-1)
	}
	r.workers = parallel.NewWorkerPool(workers)
	r.io = parallel.NewWorkerPool(1)
	r.listener = chunk.NewRecentlyCompiled()
	opts := []chunk.Option{
		chunk.WithWorkers(r.workers),
		chunk.WithListener(r.listener),
		chunk.WithProfiler(r.profiler),
		chunk.WithCrashSink(r.crashes),
	}
	if budget := s.PoolBudget(); budget > 0 {
		opts = append(opts, chunk.WithBufferPool(chunk.AllocateSectionBufferBuilderPool(r.workers.Workers(), budget)))
	}
	r.sections = chunk.NewSectionRenderDispatcher(r.rs, level, compiler, opts...)

	r.targets = framegraph.NewPool(3)
	if s.PostChain != "" {
		if err = r.loadPostChain(s.PostChain, source); err != nil {
			return nil, err
		}
	}
	Logger().Info("renderer opened", "backend", s.Backend, "size", fmt.Sprintf("%dx%d", s.Width, s.Height),
		"workers", r.workers.Workers(), "packs", r.sections.FreeBufferCount())
	return r, nil
}

// loadPostChain loads "builtin:<file>" from the embedded chains or watches
// a chain file for changes.
func (r *Renderer) loadPostChain(name string, source gpu.ShaderSource) error {
	loader := &postchain.Loader{RS: r.rs, Source: source}
	if file, ok := strings.CutPrefix(name, builtinPrefix); ok {
		cfg, err := postchain.BuiltinConfig(file)
		if err != nil {
			return err
		}
		r.chain, err = loader.Load(cfg, strings.TrimSuffix(file, filepath.Ext(file)), postchain.MainTarget)
		return err
	}
	loader.Textures = postchain.NewFSTextures(r.dev, os.DirFS(filepath.Dir(name)))
	var dirs []string
	if r.settings.ShaderDir != "" {
		dirs = append(dirs, r.settings.ShaderDir)
	}
	var err error
	r.reloader, err = postchain.NewReloader(loader, name, []string{postchain.MainTarget}, dirs...)
	return err
}

func whiteAtlas(dev gpu.Device) (gpu.Texture, error) {
	const size = 16
	tex, err := dev.CreateTexture("Block atlas", gpu.FormatRGBA8, size, size, 1, false)
	if err != nil {
		return nil, err
	}
	if err := dev.CreateCommandEncoder().ClearColorTexture(tex, gputypes.Color{R: 1, G: 1, B: 1, A: 1}); err != nil {
		tex.Close()
		return nil, err
	}
	tex.SetTextureFilter(gpu.Nearest, gpu.Nearest, false)
	return tex, nil
}

func (r *Renderer) Settings() config.Settings                { return r.settings }
func (r *Renderer) Device() gpu.Device                       { return r.dev }
func (r *Renderer) Context() *rendersys.Context              { return r.rs }
func (r *Renderer) Main() *target.RenderTarget               { return r.main }
func (r *Renderer) Sections() *chunk.SectionRenderDispatcher { return r.sections }
func (r *Renderer) Profiler() *profiling.Recorder            { return r.profiler }

// RecentlyCompiled returns the sections published since the last call.
func (r *Renderer) RecentlyCompiled() []*chunk.RenderSection { return r.listener.Drain() }

// PostChain returns the active post chain, or nil.
func (r *Renderer) PostChain() *postchain.Chain {
	if r.reloader != nil {
		return r.reloader.Chain()
	}
	return r.chain
}

// Resize resizes the main target.
func (r *Renderer) Resize(width, height int) error { return r.main.Resize(width, height) }

// BeginFrame runs completed fenced tasks, reloads a changed post chain
// and uploads finished meshes.
func (r *Renderer) BeginFrame(camera mgl64.Vec3) {
	r.rs.AssertOnRenderThread()
	r.rs.ExecutePendingTasks()
	if r.reloader != nil {
		// A failed reload is logged and disables the chain.
		_, _ = r.reloader.Poll()
	}
	r.sections.SetCamera(camera)

	z := r.profiler.Zone("upload")
	r.sections.UploadAllPendingUploads()
	z.Close()
}

// RenderTerrain clears the main target and draws every layer of visible,
// which should be ordered nearest first. Translucent sections near the
// camera are re-sorted once it has moved a block.
func (r *Renderer) RenderTerrain(proj, view mgl32.Mat4, visible []*chunk.RenderSection) error {
	r.rs.AssertOnRenderThread()
	r.profiler.Push("terrain")
	defer r.profiler.Pop()

	r.scheduleResorts(visible)
	r.rs.SetProjectionMatrix(proj, rendersys.Perspective)
	if err := r.main.Clear(); err != nil {
		return err
	}
	pass, err := r.dev.CreateCommandEncoder().CreateRenderPass("Terrain", r.main.ColorTexture(), nil, r.main.DepthTexture(), nil)
	if err != nil {
		return fmt.Errorf("blockrender: terrain: %w", err)
	}
	defer pass.Close()

	translucent := slices.Clone(visible)
	slices.Reverse(translucent)
	for _, t := range chunk.ChunkLayers() {
		pipeline := r.dev.PrecompilePipeline(chunk.TerrainPipeline(t), nil)
		if !pipeline.IsValid() {
			continue
		}
		err := errors.Join(
			pass.SetPipeline(pipeline),
			pass.SetUniformMatrix("ProjMat", proj),
			pass.SetUniformMatrix("ModelViewMat", view),
			pass.SetUniform("ColorModulator", 1, 1, 1, 1),
			pass.BindSampler("Sampler0", r.atlas),
		)
		if err != nil {
			return fmt.Errorf("blockrender: terrain %s: %w", t, err)
		}
		sections := visible
		if t == chunk.Translucent {
			sections = translucent
		}
		if err := r.sections.DrawLayer(pass, t, sections); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) scheduleResorts(visible []*chunk.RenderSection) {
	cam := r.sections.CameraPosition()
	if cam.Sub(r.lastResort).LenSqr() <= 1 {
		return
	}
	r.lastResort = cam
	n := 0
	for _, s := range visible {
		if n == maxResortsPerFrame {
			break
		}
		if s.HasTranslucentGeometry() && !s.TransparencyResortingScheduled() {
			s.ResortTransparency()
			n++
		}
	}
}

// EndFrame runs the post chain over the main target and closes the
// profiler frame. It returns the first delayed crash reported by a
// worker, once.
func (r *Renderer) EndFrame() error {
	r.rs.AssertOnRenderThread()
	defer r.targets.EndFrame()
	if chain := r.PostChain(); chain != nil {
		b := framegraph.NewBuilder()
		main := framegraph.ImportExternal(b, postchain.MainTarget, r.main)
		bundle := postchain.SingleTarget(postchain.MainTarget, main)
		err := chain.AddToFrame(b, r.main.Width(), r.main.Height(), bundle, nil)
		if err == nil {
			err = b.Execute(r.targets, r.profiler.Inspector())
		}
		if err != nil {
			return fmt.Errorf("blockrender: post chain %s: %w", chain.Name(), err)
		}
	}
	r.profiler.EndFrame()

	if rep := r.crashes.Report(); rep != nil {
		return rep
	}
	return nil
}

// Screenshot saves the main target into the configured directory. done
// runs on a background goroutine.
func (r *Renderer) Screenshot(done func(path string, err error)) error {
	io := parallel.ExecutorFunc(func(fn func()) {
		if !r.io.Submit(fn) {
			fn()
		}
	})
	return screenshot.Grab(r.rs, r.main, r.settings.ScreenshotDir, "", screenshot.Options{}, io, done)
}

// Close disposes the dispatcher and releases every resource. It may be
// called on a partially opened renderer.
func (r *Renderer) Close() {
	if r.sections != nil {
		r.sections.Dispose()
	}
	if r.workers != nil {
		r.workers.Close()
	}
	if r.io != nil {
		r.io.Close()
	}
	if r.reloader != nil {
		_ = r.reloader.Close()
	}
	if r.targets != nil {
		r.targets.Close()
	}
	if r.atlas != nil {
		r.atlas.Close()
	}
	if r.main != nil {
		r.main.Close()
	}
	if r.rs != nil {
		r.rs.Close()
		if r.rs.IsOnRenderThread() {
			r.rs.ReleaseRenderThread()
		}
	}
	r.dev.Close()
}
