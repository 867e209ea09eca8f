// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package postchain loads post-processing chains and adds them to a
// frame graph.
//
// A chain is a list of full-screen passes. Each pass samples some
// targets (or static textures) and draws into its output target. Targets
// are either internal, declared by the chain file and allocated per
// frame, or external, supplied by the caller; the main render target is
// external under the id "main". References to targets that are neither
// are rejected when the chain is loaded.
//
// Chains are written in TOML or YAML:
//
//	[targets.swap]
//
//	[[passes]]
//	vertex_shader = "post/screenquad"
//	fragment_shader = "post/blur"
//	output = "swap"
//
//	  [[passes.inputs]]
//	  sampler_name = "In"
//	  target = "main"
//
// For every input named N the pass binds sampler NSampler and sets the
// vec2 uniform NSize to the sampled size.
package postchain
