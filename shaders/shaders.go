// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shaders resolves shader ids to WGSL sources.
//
// A shader id such as "post/blur" names a pair of files, post/blur.vsh.wgsl
// and post/blur.fsh.wgsl. The built-in set is embedded; a directory on disk
// can be layered over it so that edited shaders take precedence.
package shaders

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/gogpu/blockrender/gpu"
)

//go:embed core post
var builtin embed.FS

// Builtin returns the embedded shader files.
func Builtin() fs.FS { return builtin }

// Path returns the file name of the given stage of id.
func Path(id string, typ gpu.ShaderType) string {
	if typ == gpu.FragmentShader {
		return id + ".fsh.wgsl"
	}
	return id + ".vsh.wgsl"
}

// FromFS resolves shaders by reading them from the layers in order; the
// first layer containing the file wins.
func FromFS(layers ...fs.FS) gpu.ShaderSource {
	return func(id string, typ gpu.ShaderType) (string, error) {
		name := Path(id, typ)
		for _, fsys := range layers {
			b, err := fs.ReadFile(fsys, name)
			if err == nil {
				return string(b), nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("shaders: read %s: %w", name, err)
			}
		}
		return "", fmt.Errorf("shaders: %s: %w", name, fs.ErrNotExist)
	}
}

// Source resolves the built-in shaders.
var Source = FromFS(builtin)

// WithDir resolves shaders from dir first and falls back to the built-in
// set. An empty dir is the same as Source.
func WithDir(dir string) gpu.ShaderSource {
	if dir == "" {
		return Source
	}
	return FromFS(os.DirFS(dir), builtin)
}
