// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shaders

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/blockrender/gpu"
	"github.com/gogpu/blockrender/shader"
)

func TestBuiltinShadersCompile(t *testing.T) {
	ids := []struct {
		vertex, fragment string
	}{
		{"core/blit", "core/blit"},
		{"core/terrain", "core/terrain"},
		{"post/screenquad", "post/blit"},
		{"post/screenquad", "post/blur"},
		{"post/screenquad", "post/invert"},
	}
	for _, tt := range ids {
		t.Run(tt.fragment, func(t *testing.T) {
			vs, err := Source(tt.vertex, gpu.VertexShader)
			require.NoError(t, err)
			_, err = shader.Compile(vs, gpu.VertexShader, true)
			require.NoError(t, err)

			frag, err := Source(tt.fragment, gpu.FragmentShader)
			require.NoError(t, err)
			_, err = shader.Compile(frag, gpu.FragmentShader, true)
			require.NoError(t, err)
		})
	}
}

func TestPostShadersDeclareSizes(t *testing.T) {
	src, err := Source("post/screenquad", gpu.VertexShader)
	require.NoError(t, err)
	c, err := shader.Reflect(src, gpu.VertexShader)
	require.NoError(t, err)
	assert.Contains(t, c.Uniforms, "OutSize")
	assert.Contains(t, c.Uniforms, "ProjMat")
}

func TestFromFSLayering(t *testing.T) {
	override := fstest.MapFS{
		"post/blit.fsh.wgsl": {Data: []byte("override")},
	}
	src := FromFS(override, Builtin())

	got, err := src("post/blit", gpu.FragmentShader)
	require.NoError(t, err)
	assert.Equal(t, "override", got)

	got, err = src("post/blur", gpu.FragmentShader)
	require.NoError(t, err)
	assert.Contains(t, got, "BlurDir")

	_, err = src("post/missing", gpu.FragmentShader)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestWithDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "core"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "core", "blit.vsh.wgsl"), []byte("edited"), 0o600))

	got, err := WithDir(dir)("core/blit", gpu.VertexShader)
	require.NoError(t, err)
	assert.Equal(t, "edited", got)

	got, err = WithDir("")("core/blit", gpu.VertexShader)
	require.NoError(t, err)
	assert.NotEqual(t, "edited", got)
}
