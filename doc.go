// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package blockrender is the client rendering core of a block world.
//
// # Overview
//
// The module is layered, leaves first:
//
//   - gpu: device, buffer, texture, encoder and render pass contracts
//   - backend: registers the wgpu/hal backends with gpu
//   - rendersys: render thread state, shared index buffers, fenced tasks
//   - target: render targets
//   - framegraph: per-frame pass scheduling over transient targets
//   - postchain: post-processing chains loaded from TOML or YAML
//   - chunk: asynchronous section mesh compilation and upload
//
// # Quick Start
//
// A [Renderer] wires these together from a settings file. It must be
// opened and driven on one goroutine, the render thread:
//
//	s, _ := config.Load("blockrender.toml")
//	r, err := blockrender.Open(s, level, chunk.CubeCompiler{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//
//	for running {
//	    r.BeginFrame(camera)
//	    _ = r.RenderTerrain(proj, view, visible)
//	    if err := r.EndFrame(); err != nil {
//	        log.Fatal(err) // delayed crash from a worker
//	    }
//	}
//
// # Logging
//
// The module is silent by default; see [SetLogger].
package blockrender

// Version information
const (
	// Version is the current version of the module
	Version = "0.1.0"

	VersionMajor = 0
	VersionMinor = 1
	VersionPatch = 0
)
