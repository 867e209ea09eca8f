// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package halgpu implements gpu.Device on top of the wgpu HAL.
//
// Every buffer and texture keeps a host mirror of its contents. Transfers
// (writes, copies, clears) update the mirror and are forwarded to the HAL
// queue, so read-back returns the same bytes on every HAL backend,
// including the noop and software ones used headless. Draw calls are
// recorded into HAL render passes and are not reflected in the mirror.
// With WithDeviceReadback, ReadBuffer waits for outstanding submissions and
// maps the HAL buffer, so results of executed copies and draws are read from
// the device; the mirror is used only when mapping fails.
//
// Shaders are WGSL. Each pipeline stage is compiled to SPIR-V with naga and
// reflected to learn which uniforms and samplers it declares; uniforms are
// individual `var<uniform>` globals and samplers are handle globals named
// after the sampler.
package halgpu
