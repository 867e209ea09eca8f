// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/blockrender/gpu"
	"github.com/gogpu/blockrender/shader"
)

// defaultUniformSlot is the slot size for uniforms a shader declares but
// the pipeline descriptor does not type; large enough for a mat4.
const defaultUniformSlot = 64

var errNoShaderSource = errors.New("no shader source resolver")

type shaderKey struct {
	id      string
	stage   gpu.ShaderType
	defines string
}

type shaderModule struct {
	raw hal.ShaderModule
	*shader.Compiled
}

type uniformSlot struct {
	offset int
	size   int
}

// Pipeline implements gpu.CompiledPipeline. A pipeline that failed to
// compile is kept in the cache as an invalid sentinel.
type Pipeline struct {
	info     *gpu.RenderPipeline
	valid    bool
	raw      hal.RenderPipeline
	uniforms map[string]uniformSlot
	samplers map[string]struct{}

	uniformBuf  hal.Buffer
	uniformData []byte
}

var _ gpu.CompiledPipeline = (*Pipeline)(nil)

func (p *Pipeline) IsValid() bool             { return p.valid }
func (p *Pipeline) Info() *gpu.RenderPipeline { return p.info }

func (p *Pipeline) ContainsUniform(name string) bool {
	_, ok := p.uniforms[name]
	return ok
}

func (p *Pipeline) ContainsSampler(name string) bool {
	_, ok := p.samplers[name]
	return ok
}

func (p *Pipeline) destroy(d *Device) {
	if p.raw != nil {
		d.raw.DestroyRenderPipeline(p.raw)
		p.raw = nil
	}
	if p.uniformBuf != nil {
		d.raw.DestroyBuffer(p.uniformBuf)
		p.uniformBuf = nil
	}
	p.valid = false
}

// PrecompilePipeline implements gpu.Device.
func (d *Device) PrecompilePipeline(desc *gpu.RenderPipeline, source gpu.ShaderSource) gpu.CompiledPipeline {
	if desc == nil {
		return &Pipeline{info: &gpu.RenderPipeline{}}
	}
	return d.pipelines.GetOrCreate(desc, func() *Pipeline {
		p, err := d.compilePipeline(desc, source)
		if err != nil {
			gpu.Logger().Error("halgpu: failed to compile pipeline", "pipeline", desc.Location, "err", err)
			d.debugf("pipeline %s: %v", desc.Location, err)
			return &Pipeline{info: desc}
		}
		d.debugf("compiled pipeline %s", desc.Location)
		return p
	})
}

func (d *Device) compilePipeline(desc *gpu.RenderPipeline, source gpu.ShaderSource) (*Pipeline, error) {
	if source == nil {
		source = d.opts.source
	}
	if source == nil {
		return nil, errNoShaderSource
	}
	vs, err := d.module(desc.VertexShader, gpu.VertexShader, desc.Defines, source)
	if err != nil {
		return nil, err
	}
	fs, err := d.module(desc.FragmentShader, gpu.FragmentShader, desc.Defines, source)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		info:     desc,
		uniforms: make(map[string]uniformSlot),
		samplers: make(map[string]struct{}),
	}
	for _, s := range slices.Concat(vs.Samplers, fs.Samplers) {
		p.samplers[s] = struct{}{}
	}
	names := slices.Compact(slices.Sorted(slices.Values(slices.Concat(vs.Uniforms, fs.Uniforms))))
	offset := 0
	for _, name := range names {
		size := defaultUniformSlot
		for _, u := range desc.Uniforms {
			if u.Name == name {
				size = (u.Type.Components()*4 + 15) &^ 15
			}
		}
		p.uniforms[name] = uniformSlot{offset: offset, size: size}
		offset += size
	}
	if offset > 0 {
		p.uniformData = make([]byte, offset)
		p.uniformBuf, err = d.raw.CreateBuffer(&hal.BufferDescriptor{
			Label: desc.Location + " uniforms",
			Size:  uint64(offset),
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, fmt.Errorf("uniform buffer: %w", mapError(err))
		}
	}

	target := gputypes.ColorTargetState{
		Format:    desc.ColorFormat.HalFormat(false),
		WriteMask: gputypes.ColorWriteMaskNone,
	}
	if desc.WriteColor {
		target.WriteMask = gputypes.ColorWriteMaskAll
	}
	if desc.Blend != nil {
		target.Blend = desc.Blend.State()
	}
	primitive := gputypes.PrimitiveState{Topology: desc.Mode.Topology(), FrontFace: gputypes.FrontFaceCCW}
	if desc.Cull {
		primitive.CullMode = gputypes.CullModeBack
	}
	var depth *hal.DepthStencilState
	if desc.DepthTest != gpu.DepthTestNone || desc.WriteDepth {
		depth = &hal.DepthStencilState{
			Format:            gpu.FormatDepth32.HalFormat(false),
			DepthWriteEnabled: desc.WriteDepth,
			DepthCompare:      desc.DepthTest.Compare(),
		}
	}
	var buffers []gputypes.VertexBufferLayout
	if desc.VertexFormat.Stride > 0 {
		buffers = []gputypes.VertexBufferLayout{desc.VertexFormat.Layout()}
	}

	p.raw, err = d.raw.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:        desc.Location,
		Vertex:       hal.VertexState{Module: vs.raw, EntryPoint: vs.Entry, Buffers: buffers},
		Primitive:    primitive,
		DepthStencil: depth,
		Multisample:  gputypes.MultisampleState{Count: 1, Mask: ^uint64(0)},
		Fragment:     &hal.FragmentState{Module: fs.raw, EntryPoint: fs.Entry, Targets: []gputypes.ColorTargetState{target}},
	})
	if err != nil {
		p.destroy(d)
		return nil, fmt.Errorf("create render pipeline: %w", mapError(err))
	}
	p.valid = true
	return p, nil
}

// module returns the cached shader module for id, compiling it on a miss.
func (d *Device) module(id string, stage gpu.ShaderType, defines gpu.Defines, source gpu.ShaderSource) (*shaderModule, error) {
	key := shaderKey{id: id, stage: stage, defines: defines.Prelude()}
	if m, ok := d.modules.Get(key); ok {
		return m, nil
	}
	src, err := source(id, stage)
	if err != nil {
		return nil, fmt.Errorf("%s shader %q: %w", stage, id, err)
	}
	compiled, err := shader.Compile(key.defines+src, stage, d.opts.validate)
	if err != nil {
		return nil, fmt.Errorf("%s shader %q: %w", stage, id, err)
	}
	raw, err := d.raw.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  id,
		Source: hal.ShaderSource{SPIRV: compiled.SPIRV},
	})
	if err != nil {
		return nil, fmt.Errorf("%s shader %q: create module: %w", stage, id, mapError(err))
	}
	m := &shaderModule{raw: raw, Compiled: compiled}
	d.modules.Add(key, m)
	return m, nil
}
