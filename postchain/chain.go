// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package postchain

import (
	"fmt"
	"maps"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/blockrender/framegraph"
	"github.com/gogpu/blockrender/gpu"
	"github.com/gogpu/blockrender/rendersys"
	"github.com/gogpu/blockrender/shader"
	"github.com/gogpu/blockrender/target"
)

// MainTarget is the id of the main render target.
const MainTarget = "main"

// Chain is a loaded post chain.
type Chain struct {
	rs       *rendersys.Context
	name     string
	passes   []*Pass
	internal map[string]TargetConfig
	external []string
}

// Name returns the chain name.
func (c *Chain) Name() string { return c.name }

// Passes returns the passes in execution order.
func (c *Chain) Passes() []*Pass { return c.passes }

// ExternalTargets returns the external target ids the chain uses, sorted.
func (c *Chain) ExternalTargets() []string { return c.external }

// InternalTargets returns the internal target ids, sorted.
func (c *Chain) InternalTargets() []string { return slices.Sorted(maps.Keys(c.internal)) }

// Loader builds chains from configs.
type Loader struct {
	RS *rendersys.Context
	// Source resolves shaders. When nil the device default is used and
	// shaders are not validated ahead of pipeline creation.
	Source gpu.ShaderSource
	// Textures resolves static texture inputs. It may be nil for chains
	// without them.
	Textures TextureManager
}

// LoadFile loads the chain at path. The chain is named after the file.
func (l *Loader) LoadFile(path string, external ...string) (*Chain, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return l.Load(cfg, name, external...)
}

// Load validates cfg and compiles its passes. Every target a pass
// references must be internal or listed in external; the first failure
// is returned as a *gpu.CompilationError.
func (l *Loader) Load(cfg *Config, name string, external ...string) (*Chain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	used := make(map[string]struct{})
	for _, p := range cfg.Passes {
		for _, id := range p.ReferencedTargets() {
			if _, ok := cfg.Targets[id]; !ok {
				used[id] = struct{}{}
			}
		}
	}
	var missing []string
	for id := range used {
		if !slices.Contains(external, id) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, &gpu.CompilationError{
			Location: name,
			Msg:      fmt.Sprintf("Referenced external targets are not available in this context: %v", missing),
		}
	}

	if err := l.prewarm(cfg, name); err != nil {
		return nil, err
	}

	chain := &Chain{
		rs:       l.RS,
		name:     name,
		internal: maps.Clone(cfg.Targets),
		external: slices.Sorted(maps.Keys(used)),
	}
	for i, pc := range cfg.Passes {
		p, err := l.createPass(pc, name+"/"+strconv.Itoa(i))
		if err != nil {
			return nil, err
		}
		chain.passes = append(chain.passes, p)
	}
	gpu.Logger().Info("post chain loaded", "chain", name, "passes", len(chain.passes))
	return chain, nil
}

// prewarm compiles every distinct shader of cfg in parallel so that a
// broken shader is reported with its own diagnostics before any pipeline
// is created. Results land in the shader cache.
func (l *Loader) prewarm(cfg *Config, name string) error {
	if l.Source == nil {
		return nil
	}
	type stage struct {
		id  string
		typ gpu.ShaderType
	}
	var stages []stage
	for _, p := range cfg.Passes {
		for _, s := range []stage{{p.VertexShader, gpu.VertexShader}, {p.FragmentShader, gpu.FragmentShader}} {
			if !slices.Contains(stages, s) {
				stages = append(stages, s)
			}
		}
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, s := range stages {
		g.Go(func() error {
			src, err := l.Source(s.id, s.typ)
			if err != nil {
				return &gpu.CompilationError{Location: name, Msg: fmt.Sprintf("%s shader %s", s.typ, s.id), Err: err}
			}
			if _, err := shader.Compile(src, s.typ, true); err != nil {
				return &gpu.CompilationError{Location: s.id, Err: err}
			}
			return nil
		})
	}
	return g.Wait()
}

func (l *Loader) createPass(pc PassConfig, location string) (*Pass, error) {
	desc := &gpu.RenderPipeline{
		Location:       location,
		VertexShader:   pc.VertexShader,
		FragmentShader: pc.FragmentShader,
		Uniforms: []gpu.Uniform{
			{Name: "ProjMat", Type: gpu.UniformMat4},
			{Name: "OutSize", Type: gpu.UniformVec2},
		},
		VertexFormat: gpu.PositionFormat,
		Mode:         gpu.ModeQuads,
		DepthTest:    gpu.DepthTestNone,
		WriteColor:   true,
		ColorFormat:  gpu.FormatRGBA8,
	}
	for _, in := range pc.Inputs {
		desc.Samplers = append(desc.Samplers, in.SamplerName+"Sampler")
		desc.Uniforms = append(desc.Uniforms, gpu.Uniform{Name: in.SamplerName + "Size", Type: gpu.UniformVec2})
	}
	uniforms := make([]uniform, 0, len(pc.Uniforms))
	for _, u := range pc.Uniforms {
		typ, err := gpu.ParseUniformType(u.Type)
		if err != nil {
			return nil, &gpu.CompilationError{Location: location, Err: err}
		}
		desc.Uniforms = append(desc.Uniforms, gpu.Uniform{Name: u.Name, Type: typ})
		uniforms = append(uniforms, uniform{name: u.Name, typ: typ, values: slices.Clone(u.Values)})
	}

	compiled := l.RS.Device().PrecompilePipeline(desc, l.Source)
	if !compiled.IsValid() {
		return nil, &gpu.CompilationError{Location: location, Msg: "invalid pipeline"}
	}
	for _, u := range pc.Uniforms {
		if !compiled.ContainsUniform(u.Name) {
			return nil, &gpu.CompilationError{
				Location: location,
				Msg:      fmt.Sprintf("Uniform '%s' does not exist for %s", u.Name, location),
			}
		}
	}

	p := &Pass{
		rs:       l.RS,
		name:     location,
		pipeline: desc,
		compiled: compiled,
		output:   pc.Output,
		uniforms: uniforms,
	}
	for _, in := range pc.Inputs {
		if !in.IsTexture() {
			p.addInput(TargetInput{
				SamplerName: in.SamplerName,
				TargetID:    in.Target,
				DepthBuffer: in.UseDepthBuffer,
				Bilinear:    in.Bilinear,
			})
			continue
		}
		if l.Textures == nil {
			return nil, &gpu.CompilationError{Location: location, Msg: "texture input " + in.Location + " without a texture manager"}
		}
		tex, err := l.Textures.Texture(in.Location)
		if err != nil {
			return nil, &gpu.CompilationError{Location: location, Err: err}
		}
		filter := gpu.Nearest
		if in.Bilinear {
			filter = gpu.Linear
		}
		tex.SetTextureFilter(filter, filter, false)
		p.addInput(TextureInput{SamplerName: in.SamplerName, Texture: tex, Width: in.Width, Height: in.Height})
	}
	return p, nil
}

// TargetBundle supplies the external targets of a frame and receives
// their final versions.
type TargetBundle interface {
	Get(id string) (targetHandle, bool)
	Replace(id string, h targetHandle) error
}

// SingleTarget returns a bundle holding one target.
func SingleTarget(id string, h *framegraph.Handle[*target.RenderTarget]) TargetBundle {
	return &singleTarget{id: id, h: h}
}

type singleTarget struct {
	id string
	h  targetHandle
}

func (s *singleTarget) Get(id string) (targetHandle, bool) {
	if id != s.id {
		return nil, false
	}
	return s.h, true
}

func (s *singleTarget) Replace(id string, h targetHandle) error {
	if id != s.id {
		return fmt.Errorf("postchain: no target with id %s", id)
	}
	s.h = h
	return nil
}

// Handle returns the current handle.
func (s *singleTarget) Handle() targetHandle { return s.h }

// AddToFrame adds the chain's passes to b, drawing at width x height.
// Full-screen internal targets take that size. After the call the bundle
// holds the versions of the external targets written by the chain.
// setter, when non-nil, runs on every pass before the chain's constant
// uniforms are applied.
func (c *Chain) AddToFrame(b *framegraph.Builder, width, height int, bundle TargetBundle, setter func(gpu.RenderPass) error) error {
	proj := mgl32.Ortho(0, float32(width), 0, float32(height), 0.1, 1000)
	targets := make(map[string]targetHandle, len(c.internal)+len(c.external))
	for _, id := range c.external {
		h, ok := bundle.Get(id)
		if !ok {
			return fmt.Errorf("postchain: missing target with id %s", id)
		}
		targets[id] = h
	}
	for _, id := range c.InternalTargets() {
		tc := c.internal[id]
		desc := target.Descriptor{RS: c.rs, Width: tc.Width, Height: tc.Height, UseDepth: true}
		if tc.FullScreen() {
			desc.Width, desc.Height = width, height
		}
		targets[id] = framegraph.CreateInternal(b, id, desc)
	}
	for _, p := range c.passes {
		if err := p.addToFrame(b, targets, proj, setter); err != nil {
			return err
		}
	}
	for _, id := range c.external {
		if err := bundle.Replace(id, targets[id]); err != nil {
			return err
		}
	}
	return nil
}

// Process runs the chain on rt as the main target in a frame of its own.
func (c *Chain) Process(rt *target.RenderTarget, alloc framegraph.Allocator, setter func(gpu.RenderPass) error) error {
	b := framegraph.NewBuilder()
	bundle := SingleTarget(MainTarget, framegraph.ImportExternal(b, MainTarget, rt))
	if err := c.AddToFrame(b, rt.Width(), rt.Height(), bundle, setter); err != nil {
		return err
	}
	return b.Execute(alloc, nil)
}
