// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import "github.com/gogpu/blockrender/gpu"

// Option configures a Device.
type Option func(*options)

type options struct {
	memoryBudgetMB  int
	maxTextureSize  int
	debug           bool
	validate        bool
	moduleCacheSize int
	pipelineLimit   int
	source          gpu.ShaderSource
	deviceReadback  bool
}

func defaultOptions() options {
	return options{
		memoryBudgetMB:  DefaultMemoryBudgetMB,
		moduleCacheSize: 128,
		pipelineLimit:   512,
	}
}

// WithMemoryBudget caps live buffer and texture bytes. Values below
// MinMemoryBudgetMB are raised to it.
func WithMemoryBudget(mb int) Option {
	return func(o *options) { o.memoryBudgetMB = mb }
}

// WithMaxTextureSize lowers the maximum texture dimension below the
// adapter limit.
func WithMaxTextureSize(size int) Option {
	return func(o *options) { o.maxTextureSize = size }
}

// WithDebug records debug messages for LastDebugMessages.
func WithDebug(enabled bool) Option {
	return func(o *options) { o.debug = enabled }
}

// WithShaderValidation enables naga IR validation.
func WithShaderValidation(enabled bool) Option {
	return func(o *options) { o.validate = enabled }
}

// WithShaderSource sets the resolver used when PrecompilePipeline is given
// a nil source.
func WithShaderSource(src gpu.ShaderSource) Option {
	return func(o *options) { o.source = src }
}

// WithDeviceReadback makes ReadBuffer map the HAL buffer and return what
// the device holds, instead of the host copy. Use it on backends that
// execute recorded commands.
func WithDeviceReadback(enabled bool) Option {
	return func(o *options) { o.deviceReadback = enabled }
}

// WithModuleCacheSize bounds the number of live shader modules.
func WithModuleCacheSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.moduleCacheSize = n
		}
	}
}

// FromConfig translates backend-neutral open options.
func FromConfig(cfg gpu.OpenConfig) []Option {
	opts := []Option{
		WithDebug(cfg.Debug),
		WithShaderValidation(cfg.ValidateShaders),
		WithDeviceReadback(cfg.DeviceReadback),
	}
	if cfg.MemoryBudgetMB > 0 {
		opts = append(opts, WithMemoryBudget(cfg.MemoryBudgetMB))
	}
	if cfg.MaxTextureSize > 0 {
		opts = append(opts, WithMaxTextureSize(cfg.MaxTextureSize))
	}
	if cfg.ShaderSource != nil {
		opts = append(opts, WithShaderSource(cfg.ShaderSource))
	}
	return opts
}
