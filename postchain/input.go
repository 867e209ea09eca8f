// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package postchain

import (
	"fmt"

	"github.com/gogpu/blockrender/framegraph"
	"github.com/gogpu/blockrender/gpu"
	"github.com/gogpu/blockrender/target"
)

type targetHandle = *framegraph.Handle[*target.RenderTarget]

// Input is a sampler binding of a pass.
type Input interface {
	// Sampler returns the sampler name as declared in the chain file.
	Sampler() string
	addToPass(p *framegraph.Pass, targets map[string]targetHandle) error
	bindTo(rp gpu.RenderPass, targets map[string]targetHandle) error
	cleanup(targets map[string]targetHandle)
}

// TargetInput samples the color or depth texture of a target.
type TargetInput struct {
	SamplerName string
	TargetID    string
	DepthBuffer bool
	Bilinear    bool
}

func (in TargetInput) Sampler() string { return in.SamplerName }

func (in TargetInput) handle(targets map[string]targetHandle) (targetHandle, error) {
	h, ok := targets[in.TargetID]
	if !ok {
		return nil, fmt.Errorf("postchain: missing handle for target %s", in.TargetID)
	}
	return h, nil
}

func (in TargetInput) addToPass(p *framegraph.Pass, targets map[string]targetHandle) error {
	h, err := in.handle(targets)
	if err != nil {
		return err
	}
	p.Reads(h)
	return nil
}

func (in TargetInput) bindTo(rp gpu.RenderPass, targets map[string]targetHandle) error {
	h, err := in.handle(targets)
	if err != nil {
		return err
	}
	rt := h.Get()
	filter := gpu.Nearest
	if in.Bilinear {
		filter = gpu.Linear
	}
	if err := rt.SetFilterMode(filter); err != nil {
		return err
	}
	tex, kind := rt.ColorTexture(), "color"
	if in.DepthBuffer {
		tex, kind = rt.DepthTexture(), "depth"
	}
	if tex == nil {
		return fmt.Errorf("postchain: missing %s texture for target %s", kind, in.TargetID)
	}
	if err := rp.BindSampler(in.SamplerName+"Sampler", tex); err != nil {
		return err
	}
	return rp.SetUniform(in.SamplerName+"Size", float32(rt.Width()), float32(rt.Height()))
}

func (in TargetInput) cleanup(targets map[string]targetHandle) {
	if !in.Bilinear {
		return
	}
	if h, err := in.handle(targets); err == nil {
		_ = h.Get().SetFilterMode(gpu.Nearest)
	}
}

// TextureInput samples a static texture. It takes no part in frame graph
// dependencies.
type TextureInput struct {
	SamplerName string
	Texture     gpu.Texture
	Width       int
	Height      int
}

func (in TextureInput) Sampler() string { return in.SamplerName }

func (TextureInput) addToPass(*framegraph.Pass, map[string]targetHandle) error { return nil }

func (in TextureInput) bindTo(rp gpu.RenderPass, _ map[string]targetHandle) error {
	if err := rp.BindSampler(in.SamplerName+"Sampler", in.Texture); err != nil {
		return err
	}
	return rp.SetUniform(in.SamplerName+"Size", float32(in.Width), float32(in.Height))
}

func (TextureInput) cleanup(map[string]targetHandle) {}
