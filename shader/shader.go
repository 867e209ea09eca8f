// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shader compiles WGSL pipeline stages to SPIR-V and reflects the
// uniforms and samplers they declare.
//
// Results are memoized process-wide by source content, so sources that are
// precompiled on worker goroutines (see package postchain) are free when a
// device later builds its shader modules on the render thread.
package shader

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"

	"github.com/gogpu/blockrender/gpu"
	"github.com/gogpu/blockrender/internal/cache"
)

// Compiled is a translated and reflected shader stage.
type Compiled struct {
	SPIRV []uint32
	// Entry is the name of the entry point for the requested stage.
	Entry string
	// Uniforms lists `var<uniform>` globals, sorted.
	Uniforms []string
	// Samplers lists texture and sampler handle globals, sorted.
	Samplers []string
}

type key struct {
	hash     uint64
	stage    gpu.ShaderType
	validate bool
}

var compiled = cache.NewSharded[key, *Compiled](64, func(k key) uint64 { return k.hash })

// Compile translates source for stage. The source must declare exactly one
// entry point of that stage.
func Compile(source string, stage gpu.ShaderType, validate bool) (*Compiled, error) {
	k := key{hash: cache.StringHasher(source), stage: stage, validate: validate}
	return compiled.GetOrCreate(k, func() (*Compiled, error) {
		return compile(source, stage, validate)
	})
}

// Stats reports the compile cache counters.
func Stats() cache.Stats { return compiled.Stats() }

// ResetCache drops every memoized result.
func ResetCache() { compiled.Clear() }

func compile(source string, stage gpu.ShaderType, validate bool) (*Compiled, error) {
	c, err := Reflect(source, stage)
	if err != nil {
		return nil, err
	}

	opts := naga.DefaultOptions()
	opts.Validate = validate
	spirvBytes, err := naga.CompileWithOptions(source, opts)
	if err != nil {
		return nil, fmt.Errorf("compile %s shader: %w", stage, err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("compile %s shader: truncated SPIR-V (%d bytes)", stage, len(spirvBytes))
	}

	// SPIR-V is a stream of little-endian 32-bit words.
	c.SPIRV = make([]uint32, len(spirvBytes)/4)
	for i := range c.SPIRV {
		c.SPIRV[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	return c, nil
}

// Reflect parses source and reports the entry point for stage together with
// the declared uniforms and samplers. No code is generated.
func Reflect(source string, stage gpu.ShaderType) (*Compiled, error) {
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse %s shader: %w", stage, err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, fmt.Errorf("lower %s shader: %w", stage, err)
	}

	want := ir.StageVertex
	if stage == gpu.FragmentShader {
		want = ir.StageFragment
	}
	c := &Compiled{}
	for _, ep := range module.EntryPoints {
		if ep.Stage != want {
			continue
		}
		if c.Entry != "" {
			return nil, fmt.Errorf("%s shader declares entry points %q and %q", stage, c.Entry, ep.Name)
		}
		c.Entry = ep.Name
	}
	if c.Entry == "" {
		return nil, fmt.Errorf("%s shader has no %s entry point", stage, stage)
	}

	for _, g := range module.GlobalVariables {
		switch g.Space {
		case ir.SpaceUniform:
			c.Uniforms = append(c.Uniforms, g.Name)
		case ir.SpaceHandle:
			c.Samplers = append(c.Samplers, g.Name)
		}
	}
	slices.Sort(c.Uniforms)
	slices.Sort(c.Samplers)
	return c, nil
}
