// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package backend registers the HAL device backends with package gpu.
//
// Backends register themselves on import:
//
//	import _ "github.com/gogpu/blockrender/backend"
//
// and are then opened by name or by priority:
//
//	dev, err := gpu.Open(backend.Software, gpu.OpenConfig{})
//	dev, err := gpu.OpenBest(gpu.OpenConfig{})
//
// # Available Backends
//
//   - "software": CPU rasterizer, always available on desktop platforms
//   - "noop": accepts every command and draws nothing; used in tests and
//     for headless section compilation
package backend
