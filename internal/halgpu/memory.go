// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/blockrender/gpu"
)

// Memory budget limits.
const (
	// DefaultMemoryBudgetMB is the default budget for live resources.
	DefaultMemoryBudgetMB = 512

	// MinMemoryBudgetMB is the smallest budget accepted.
	MinMemoryBudgetMB = 16
)

// MemoryStats contains device memory usage statistics.
type MemoryStats struct {
	TotalBytes  uint64
	UsedBytes   uint64
	Buffers     int
	Textures    int
	PeakBytes   uint64
	Rejected    uint64
	Utilization float64
}

func (s MemoryStats) String() string {
	return fmt.Sprintf("Memory[%.1f%% used, %d/%d MB, %d buffers, %d textures, %d rejected]",
		s.Utilization*100,
		s.UsedBytes/(1024*1024),
		s.TotalBytes/(1024*1024),
		s.Buffers,
		s.Textures,
		s.Rejected)
}

// memoryBudget accounts for the bytes of live buffers and textures.
// Resources are owned by their creators, so nothing is ever evicted: an
// allocation that does not fit fails with gpu.ErrOutOfMemory.
type memoryBudget struct {
	mu       sync.Mutex
	budget   uint64
	used     uint64
	peak     uint64
	buffers  int
	textures int
	rejected uint64
}

func newMemoryBudget(mb int) *memoryBudget {
	if mb < MinMemoryBudgetMB {
		mb = MinMemoryBudgetMB
	}
	return &memoryBudget{budget: uint64(mb) * 1024 * 1024} //nolint:gosec // bounded below
}

type resourceKind int

const (
	kindBuffer resourceKind = iota
	kindTexture
)

func (m *memoryBudget) reserve(kind resourceKind, bytes uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if bytes > m.budget-m.used {
		m.rejected++
		return fmt.Errorf("%w: need %d bytes, have %d bytes available",
			gpu.ErrOutOfMemory, bytes, m.budget-m.used)
	}
	m.used += bytes
	m.peak = max(m.peak, m.used)
	if kind == kindBuffer {
		m.buffers++
	} else {
		m.textures++
	}
	return nil
}

func (m *memoryBudget) release(kind resourceKind, bytes uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.used -= min(bytes, m.used)
	if kind == kindBuffer {
		m.buffers--
	} else {
		m.textures--
	}
}

func (m *memoryBudget) stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var utilization float64
	if m.budget > 0 {
		utilization = float64(m.used) / float64(m.budget)
	}
	return MemoryStats{
		TotalBytes:  m.budget,
		UsedBytes:   m.used,
		Buffers:     m.buffers,
		Textures:    m.textures,
		PeakBytes:   m.peak,
		Rejected:    m.rejected,
		Utilization: utilization,
	}
}
