// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package chunk

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/blockrender/gpu"
)

var terrainPipelines = func() (p [layerCount]*gpu.RenderPipeline) {
	for _, t := range ChunkLayers() {
		desc := &gpu.RenderPipeline{
			Location:       "terrain/" + t.Name(),
			VertexShader:   "core/terrain",
			FragmentShader: "core/terrain",
			Samplers:       []string{"Sampler0"},
			Uniforms: []gpu.Uniform{
				{Name: "ProjMat", Type: gpu.UniformMat4},
				{Name: "ModelViewMat", Type: gpu.UniformMat4},
				{Name: "ModelOffset", Type: gpu.UniformVec3},
				{Name: "ColorModulator", Type: gpu.UniformVec4},
			},
			VertexFormat: gpu.BlockFormat,
			Mode:         gpu.ModeQuads,
			DepthTest:    gpu.DepthTestLessEqual,
			Cull:         true,
			WriteColor:   true,
			WriteDepth:   true,
			ColorFormat:  gpu.FormatRGBA8,
		}
		switch t {
		case Translucent, Tripwire:
			desc.Blend = &gpu.BlendTranslucent
			desc.WriteDepth = t == Tripwire
		case Cutout, CutoutMipped:
			desc.Defines = gpu.Defines{Values: map[string]string{"ALPHA_CUTOUT": "0.1"}}
		}
		p[t] = desc
	}
	return p
}()

// TerrainPipeline returns the pipeline descriptor of layer t.
func TerrainPipeline(t RenderType) *gpu.RenderPipeline { return terrainPipelines[t] }

// DrawLayer draws layer t of sections into pass with one batched draw.
// The pass must already have the layer's pipeline, matrices and atlas
// bound. Sections without an index buffer share the sequential quad index
// buffer. It must be called on the render thread.
func (d *SectionRenderDispatcher) DrawLayer(pass gpu.RenderPass, t RenderType, sections []*RenderSection) error {
	d.rs.AssertOnRenderThread()
	cam := d.CameraPosition()
	draws := make([]gpu.Draw, 0, len(sections))
	sequential := 0
	for _, s := range sections {
		b := s.Buffers(t)
		if b == nil || s.Compiled().IsEmpty(t) || b.vertex.IsClosed() {
			continue
		}
		o := s.RenderOrigin()
		off := mgl32.Vec3{
			float32(float64(o.X) - cam.X()),
			float32(float64(o.Y) - cam.Y()),
			float32(float64(o.Z) - cam.Z()),
		}
		draws = append(draws, gpu.Draw{
			VertexBuffer: b.vertex,
			IndexBuffer:  b.index,
			IndexType:    b.indexType,
			IndexCount:   b.indexCount,
			Uniforms: func(u gpu.UniformSetter) {
				_ = u.SetUniform("ModelOffset", off[0], off[1], off[2])
			},
		})
		if b.index == nil {
			sequential = max(sequential, b.indexCount)
		}
	}
	if len(draws) == 0 {
		return nil
	}
	var shared gpu.Buffer
	typ := gpu.IndexShort
	if sequential > 0 {
		seq := d.rs.SequentialBuffer(gpu.ModeQuads)
		buf, err := seq.Buffer(sequential)
		if err != nil {
			return fmt.Errorf("chunk: draw %s: %w", t, err)
		}
		shared, typ = buf, seq.Type()
	}
	if err := pass.DrawMultipleIndexed(draws, shared, typ); err != nil {
		return fmt.Errorf("chunk: draw %s: %w", t, err)
	}
	return nil
}
