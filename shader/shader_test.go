// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/blockrender/gpu"
)

const blitVertex = `
@group(0) @binding(0) var<uniform> ProjMat: mat4x4<f32>;
@group(0) @binding(1) var<uniform> OutSize: vec2<f32>;

@vertex
fn vs_main(@location(0) position: vec3<f32>) -> @builtin(position) vec4<f32> {
    return ProjMat * vec4<f32>(position.xy * OutSize, 0.0, 1.0);
}
`

const blitFragment = `
@group(0) @binding(2) var InSampler: texture_2d<f32>;
@group(0) @binding(3) var InSamplerState: sampler;

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
    return textureSample(InSampler, InSamplerState, pos.xy / 16.0);
}
`

func TestReflect(t *testing.T) {
	vs, err := Reflect(blitVertex, gpu.VertexShader)
	require.NoError(t, err)
	assert.Equal(t, "vs_main", vs.Entry)
	assert.Equal(t, []string{"OutSize", "ProjMat"}, vs.Uniforms)
	assert.Empty(t, vs.Samplers)

	fs, err := Reflect(blitFragment, gpu.FragmentShader)
	require.NoError(t, err)
	assert.Equal(t, "fs_main", fs.Entry)
	assert.Equal(t, []string{"InSampler", "InSamplerState"}, fs.Samplers)
}

func TestReflectWrongStage(t *testing.T) {
	_, err := Reflect(blitVertex, gpu.FragmentShader)
	assert.ErrorContains(t, err, "no fragment entry point")
}

func TestReflectParseError(t *testing.T) {
	_, err := Reflect("fn broken( {", gpu.VertexShader)
	assert.Error(t, err)
}

func TestCompileMemoized(t *testing.T) {
	ResetCache()
	t.Cleanup(ResetCache)
	before := Stats()

	first, err := Compile(blitVertex, gpu.VertexShader, false)
	require.NoError(t, err)
	require.NotEmpty(t, first.SPIRV)
	assert.Equal(t, uint32(0x07230203), first.SPIRV[0], "SPIR-V magic number")

	second, err := Compile(blitVertex, gpu.VertexShader, false)
	require.NoError(t, err)
	assert.Same(t, first, second)

	stats := Stats()
	assert.Equal(t, uint64(1), stats.Hits-before.Hits)
	assert.Equal(t, uint64(1), stats.Misses-before.Misses)
}

func TestCompileErrorNotCached(t *testing.T) {
	ResetCache()
	t.Cleanup(ResetCache)

	_, err := Compile(blitFragment, gpu.VertexShader, false)
	require.Error(t, err)
	assert.Equal(t, 0, Stats().Len)
}
