// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package chunk

import "sync"

// RecentlyCompiled is a SectionListener that collects compiled sections
// until drained and tracks the global block entities of the level.
type RecentlyCompiled struct {
	mu       sync.Mutex
	sections []*RenderSection
	global   map[BlockEntity]struct{}
}

// NewRecentlyCompiled returns an empty listener.
func NewRecentlyCompiled() *RecentlyCompiled {
	return &RecentlyCompiled{global: make(map[BlockEntity]struct{})}
}

func (r *RecentlyCompiled) AddRecentlyCompiledSection(s *RenderSection) {
	r.mu.Lock()
	r.sections = append(r.sections, s)
	r.mu.Unlock()
}

func (r *RecentlyCompiled) UpdateGlobalBlockEntities(removed, added []BlockEntity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range removed {
		delete(r.global, e)
	}
	for _, e := range added {
		r.global[e] = struct{}{}
	}
}

// Drain returns and forgets the sections compiled since the last call.
func (r *RecentlyCompiled) Drain() []*RenderSection {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sections
	r.sections = nil
	return s
}

// GlobalBlockEntities returns the number of tracked global block
// entities.
func (r *RecentlyCompiled) GlobalBlockEntities() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.global)
}
