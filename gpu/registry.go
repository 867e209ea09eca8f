// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"

	"github.com/gogpu/gpucontext"
)

// OpenConfig carries the options a backend opens a device with.
type OpenConfig struct {
	// MemoryBudgetMB caps the bytes of buffers and textures alive at once.
	// Zero selects the backend default.
	MemoryBudgetMB int
	// MaxTextureSize overrides the adapter limit when positive and smaller.
	MaxTextureSize int
	// Debug records device debug messages.
	Debug bool
	// ValidateShaders runs IR validation during shader compilation.
	ValidateShaders bool
	// ShaderSource resolves shader ids when PrecompilePipeline is called
	// without a resolver.
	ShaderSource ShaderSource
	// DeviceReadback reads buffers back from device memory rather than
	// from the host copy kept for every resource.
	DeviceReadback bool
}

// Opener opens a device for a registered backend.
type Opener func(cfg OpenConfig) (Device, error)

// Preferred backend order for OpenBest.
var backends = gpucontext.NewRegistry[Opener](gpucontext.WithPriority("software", "noop"))

// RegisterBackend makes a backend available under name. It is typically
// called from an init function; registering an existing name replaces it.
func RegisterBackend(name string, open Opener) {
	backends.Register(name, func() Opener { return open })
}

// UnregisterBackend removes a backend. Useful in tests.
func UnregisterBackend(name string) { backends.Unregister(name) }

// Backends returns the registered backend names.
func Backends() []string { return backends.Available() }

// Open opens the named backend.
func Open(name string, cfg OpenConfig) (Device, error) {
	open := backends.Get(name)
	if open == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	dev, err := open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	Logger().Info("gpu: device opened", "backend", name, "renderer", dev.Info().Renderer)
	return dev, nil
}

// OpenBest opens the highest priority registered backend.
func OpenBest(cfg OpenConfig) (Device, error) {
	name := backends.BestName()
	if name == "" {
		return nil, fmt.Errorf("%w: none registered", ErrUnknownBackend)
	}
	return Open(name, cfg)
}
