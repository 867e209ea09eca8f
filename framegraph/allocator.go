// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"slices"
	"sync"

	"github.com/gogpu/blockrender/gpu"
)

// Allocator hands out transient resources.
type Allocator interface {
	Acquire(r Resource) (any, error)
	Release(r Resource, res any)
}

// Unpooled allocates on every Acquire and frees on every Release.
var Unpooled Allocator = unpooled{}

type unpooled struct{}

func (unpooled) Acquire(r Resource) (any, error) { return r.Allocate() }
func (unpooled) Release(r Resource, res any)     { r.Free(res) }

type pooled struct {
	r    Resource
	res  any
	idle int
}

// Pool keeps released resources for reuse across frames. A resource that
// stays unused for more than the configured number of frames is freed by
// EndFrame. Pool is safe for concurrent use.
type Pool struct {
	mu           sync.Mutex
	framesToKeep int
	free         []*pooled
	allocations  int
	reuses       int
}

// NewPool returns a pool keeping idle resources for framesToKeep calls
// to EndFrame.
func NewPool(framesToKeep int) *Pool {
	return &Pool{framesToKeep: max(framesToKeep, 0)}
}

// Acquire returns an idle resource with an equal key, prepared for use,
// or allocates a new one.
func (p *Pool) Acquire(r Resource) (any, error) {
	key := r.Key()
	p.mu.Lock()
	i := slices.IndexFunc(p.free, func(e *pooled) bool { return e.r.Key() == key })
	if i >= 0 {
		e := p.free[i]
		p.free = slices.Delete(p.free, i, i+1)
		p.reuses++
		p.mu.Unlock()
		if err := r.Prepare(e.res); err != nil {
			e.r.Free(e.res)
			return nil, err
		}
		return e.res, nil
	}
	p.allocations++
	p.mu.Unlock()
	return r.Allocate()
}

// Release returns res to the pool.
func (p *Pool) Release(r Resource, res any) {
	p.mu.Lock()
	p.free = append(p.free, &pooled{r: r, res: res})
	p.mu.Unlock()
}

// EndFrame ages idle resources and frees those idle for too long.
func (p *Pool) EndFrame() {
	p.mu.Lock()
	var expired []*pooled
	p.free = slices.DeleteFunc(p.free, func(e *pooled) bool {
		e.idle++
		if e.idle > p.framesToKeep {
			expired = append(expired, e)
			return true
		}
		return false
	})
	p.mu.Unlock()
	for _, e := range expired {
		e.r.Free(e.res)
	}
	if len(expired) > 0 {
		gpu.Logger().Debug("frame graph pool evicted idle resources", "count", len(expired))
	}
}

// Idle returns the number of pooled resources.
func (p *Pool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Stats returns how many resources were allocated and how many acquires
// were served from the pool.
func (p *Pool) Stats() (allocations, reuses int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocations, p.reuses
}

// Close frees every pooled resource.
func (p *Pool) Close() {
	p.mu.Lock()
	free := p.free
	p.free = nil
	p.mu.Unlock()
	for _, e := range free {
		e.r.Free(e.res)
	}
}
