// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpu defines the device abstraction the renderer is written against.
//
// A [Device] creates [Buffer] and [Texture] handles, compiles render
// pipelines and hands out [CommandEncoder] values that record transfers and
// scoped [RenderPass] draws. Every handle has exactly one owner and is closed
// explicitly; closing twice is a no-op.
//
// Concrete devices are provided by backends registered with [RegisterBackend]
// and opened with [Open] or [OpenBest]:
//
//	dev, err := gpu.Open("noop", gpu.OpenConfig{MemoryBudgetMB: 128})
//	if err != nil {
//	    return err
//	}
//	defer dev.Close()
//
//	buf, err := dev.CreateBuffer("terrain", gpu.BufferVertices, gpu.StaticWrite, 4096)
//
// All methods that touch device state must be called from the render thread;
// see package rendersys for the affinity rules.
package gpu
