// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/gogpu/wgpu/hal/software"

	"github.com/gogpu/blockrender/gpu"
	"github.com/gogpu/blockrender/internal/halgpu"
)

// Backend names.
const (
	Noop     = "noop"
	Software = "software"
)

func init() {
	gpu.RegisterBackend(Noop, opener(noop.API{}))
	gpu.RegisterBackend(Software, opener(software.API{}))
}

// opener adapts a HAL backend to gpu.Opener. Both HAL backends report the
// same gputypes.Backend variant, so they are registered by name here
// rather than through the HAL registry.
func opener(api hal.Backend) gpu.Opener {
	return func(cfg gpu.OpenConfig) (gpu.Device, error) {
		dev, err := halgpu.Open(api, halgpu.FromConfig(cfg)...)
		if err != nil {
			return nil, err
		}
		return dev, nil
	}
}
