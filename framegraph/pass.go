// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"fmt"
	"slices"
)

// Pass is one node of the frame graph.
type Pass struct {
	b        *Builder
	id       int
	name     string
	requires []*Pass
	reads    []virtual
	writes   []virtual
	keep     bool
	run      func() error
}

// Name returns the pass name.
func (p *Pass) Name() string { return p.name }

// Reads declares that the pass samples h. The pass runs after the pass
// that wrote h.
func (p *Pass) Reads(h AnyHandle) {
	hb := h.base()
	p.b.checkOwner(hb)
	if hb.writer != nil {
		p.Requires(hb.writer)
	}
	if !slices.Contains(hb.readers, p) {
		hb.readers = append(hb.readers, p)
	}
	p.use(&p.reads, hb.res)
}

// ReadsAndWrites declares that p reads h and writes a new version of its
// resource, which is returned. Passes that read h run before p. Writing a
// handle that was already written panics with ErrAlreadyWritten.
func ReadsAndWrites[T any](p *Pass, h *Handle[T]) *Handle[T] {
	p.Reads(h)
	if h.aliased {
		panic(fmt.Errorf("%w: %s", ErrAlreadyWritten, h))
	}
	h.aliased = true
	for _, r := range h.readers {
		if r != p {
			p.Requires(r)
		}
	}
	p.use(&p.writes, h.res)
	next := &Handle[T]{typed: h.typed}
	next.owner = p.b
	next.res = h.res
	next.version = h.version + 1
	next.writer = p
	p.b.handles = append(p.b.handles, &next.handleBase)
	return next
}

// Requires orders p after other regardless of resources. Other is kept
// whenever p is kept.
func (p *Pass) Requires(other *Pass) {
	if other == p || slices.Contains(p.requires, other) {
		return
	}
	p.requires = append(p.requires, other)
}

// DisableCulling keeps the pass even when none of its writes reach an
// imported resource.
func (p *Pass) DisableCulling() { p.keep = true }

// Executes sets the function run for the pass.
func (p *Pass) Executes(fn func() error) { p.run = fn }

func (p *Pass) use(list *[]virtual, r virtual) {
	if !slices.Contains(*list, r) {
		*list = append(*list, r)
	}
}

func (p *Pass) String() string { return p.name }
