// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package postchain

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/blockrender/framegraph"
	"github.com/gogpu/blockrender/gpu"
	"github.com/gogpu/blockrender/rendersys"
)

type uniform struct {
	name   string
	typ    gpu.UniformType
	values []float32
}

func (u uniform) apply(rp gpu.RenderPass) error {
	switch u.typ {
	case gpu.UniformInt, gpu.UniformIVec3:
		ints := make([]int32, len(u.values))
		for i, v := range u.values {
			ints[i] = int32(v)
		}
		return rp.SetUniformInt(u.name, ints...)
	case gpu.UniformMat4:
		var m mgl32.Mat4
		copy(m[:], u.values)
		return rp.SetUniformMatrix(u.name, m)
	default:
		return rp.SetUniform(u.name, u.values...)
	}
}

// Pass is one full-screen draw of a chain.
type Pass struct {
	rs       *rendersys.Context
	name     string
	pipeline *gpu.RenderPipeline
	compiled gpu.CompiledPipeline
	output   string
	uniforms []uniform
	inputs   []Input
}

// Name returns the pass location, "<chain>/<index>".
func (p *Pass) Name() string { return p.name }

// Pipeline returns the pipeline description.
func (p *Pass) Pipeline() *gpu.RenderPipeline { return p.pipeline }

// Output returns the id of the target the pass draws into.
func (p *Pass) Output() string { return p.output }

// Inputs returns the sampler bindings.
func (p *Pass) Inputs() []Input { return p.inputs }

func (p *Pass) addInput(in Input) { p.inputs = append(p.inputs, in) }

func (p *Pass) addToFrame(b *framegraph.Builder, targets map[string]targetHandle, proj mgl32.Mat4, setter func(gpu.RenderPass) error) error {
	fp := b.AddPass(p.name)
	for _, in := range p.inputs {
		if err := in.addToPass(fp, targets); err != nil {
			return err
		}
	}
	out, ok := targets[p.output]
	if !ok {
		return fmt.Errorf("postchain: missing handle for target %s", p.output)
	}
	out = framegraph.ReadsAndWrites(fp, out)
	targets[p.output] = out

	fp.Executes(func() error {
		rs := p.rs
		rs.BackupProjectionMatrix()
		rs.SetProjectionMatrix(proj, rendersys.Orthographic)
		err := p.draw(out, targets, setter)
		rs.RestoreProjectionMatrix()
		for _, in := range p.inputs {
			in.cleanup(targets)
		}
		return err
	})
	return nil
}

func (p *Pass) draw(out targetHandle, targets map[string]targetHandle, setter func(gpu.RenderPass) error) error {
	rt := out.Get()
	quads := p.rs.SequentialBuffer(gpu.ModeQuads)
	indices, err := quads.Buffer(6)
	if err != nil {
		return err
	}
	var depth gpu.Texture
	if rt.UseDepth() {
		depth = rt.DepthTexture()
	}
	rp, err := p.rs.Device().CreateCommandEncoder().CreateRenderPass(p.name, rt.ColorTexture(), nil, depth, nil)
	if err != nil {
		return err
	}
	defer rp.Close()

	if err := rp.SetPipeline(p.compiled); err != nil {
		return err
	}
	if err := rp.SetUniformMatrix("ProjMat", p.rs.ProjectionMatrix()); err != nil {
		return err
	}
	if err := rp.SetUniform("OutSize", float32(rt.Width()), float32(rt.Height())); err != nil {
		return err
	}
	if err := rp.SetVertexBuffer(0, p.rs.QuadVertexBuffer()); err != nil {
		return err
	}
	if err := rp.SetIndexBuffer(indices, quads.Type()); err != nil {
		return err
	}
	for _, in := range p.inputs {
		if err := in.bindTo(rp, targets); err != nil {
			return err
		}
	}
	if setter != nil {
		if err := setter(rp); err != nil {
			return err
		}
	}
	for _, u := range p.uniforms {
		if err := u.apply(rp); err != nil {
			return err
		}
	}
	return rp.DrawIndexed(0, 6)
}
