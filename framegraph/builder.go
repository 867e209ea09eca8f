// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/gogpu/blockrender/gpu"
)

// Builder collects the resources and passes of one frame. A builder is
// executed once.
type Builder struct {
	passes    []*Pass
	resources []virtual
	handles   []*handleBase
	executed  bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder { return &Builder{} }

// ImportExternal adds a caller-owned resource. Passes whose writes reach
// an imported resource are never culled.
func ImportExternal[T any](b *Builder, name string, value T) *Handle[T] {
	return newHandle(b, &resource[T]{label: name, value: value, held: true, external: true})
}

// CreateInternal adds a transient resource allocated from desc while
// passes use it. Allocations are labelled with name plus a unique suffix.
func CreateInternal[T any, D Descriptor[T]](b *Builder, name string, desc D) *Handle[T] {
	label := fmt.Sprintf("%s (%s)", name, uuid.NewString()[:8])
	return newHandle(b, &resource[T]{label: name, desc: erased[T, D]{desc: desc, label: label}})
}

func newHandle[T any](b *Builder, r *resource[T]) *Handle[T] {
	b.resources = append(b.resources, r)
	h := &Handle[T]{typed: r}
	h.owner, h.res = b, r
	b.handles = append(b.handles, &h.handleBase)
	return h
}

// AddPass appends a pass. Passes declared earlier run earlier unless
// dependencies say otherwise.
func (b *Builder) AddPass(name string) *Pass {
	p := &Pass{b: b, id: len(b.passes), name: name}
	b.passes = append(b.passes, p)
	return p
}

func (b *Builder) checkOwner(h *handleBase) {
	if h.owner != b {
		panic(fmt.Sprintf("framegraph: handle for %q belongs to another builder", h.res.name()))
	}
}

// Plan returns the names of the passes Execute would run, in order.
func (b *Builder) Plan() ([]string, error) {
	order, err := b.order()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(order))
	for i, p := range order {
		names[i] = p.name
	}
	return names, nil
}

// order culls passes that do not contribute to an imported resource and
// sorts the rest topologically, keeping declaration order among
// independent passes.
func (b *Builder) order() ([]*Pass, error) {
	kept := make([]bool, len(b.passes))
	var stack []*Pass
	mark := func(p *Pass) {
		if p != nil && !kept[p.id] {
			kept[p.id] = true
			stack = append(stack, p)
		}
	}
	for _, p := range b.passes {
		if p.keep {
			mark(p)
		}
	}
	for _, h := range b.handles {
		if !h.res.internal() {
			mark(h.writer)
		}
	}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, dep := range p.requires {
			mark(dep)
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(b.passes))
	order := make([]*Pass, 0, len(b.passes))
	var visit func(p, from *Pass) error
	visit = func(p, from *Pass) error {
		switch state[p.id] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w between %q and %q", ErrCycle, from.name, p.name)
		}
		state[p.id] = visiting
		for _, dep := range p.requires {
			if err := visit(dep, p); err != nil {
				return err
			}
		}
		state[p.id] = done
		order = append(order, p)
		return nil
	}
	for _, p := range b.passes {
		if kept[p.id] {
			if err := visit(p, p); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}

// Execute runs the frame. Transient resources are acquired from alloc
// before the first pass using them and released after the last one. A
// failing pass stops execution; resources still held are released. A nil
// inspector is allowed.
func (b *Builder) Execute(alloc Allocator, inspector Inspector) error {
	if b.executed {
		return ErrExecuted
	}
	b.executed = true
	if inspector == nil {
		inspector = NopInspector{}
	}

	order, err := b.order()
	if err != nil {
		return err
	}

	acquire := make([][]virtual, len(order))
	release := make([][]virtual, len(order))
	first := make(map[virtual]int)
	last := make(map[virtual]int)
	for i, p := range order {
		for _, list := range [][]virtual{p.reads, p.writes} {
			for _, r := range list {
				if !r.internal() {
					continue
				}
				if _, ok := first[r]; !ok {
					first[r] = i
					acquire[i] = append(acquire[i], r)
				}
				last[r] = i
			}
		}
	}
	for r, i := range last {
		release[i] = append(release[i], r)
	}

	defer func() {
		for _, r := range b.resources {
			r.release(alloc)
		}
	}()

	for i, p := range order {
		for _, r := range acquire[i] {
			inspector.AcquireResource(r.name())
			if err := r.acquire(alloc); err != nil {
				return fmt.Errorf("framegraph: pass %q: %w", p.name, err)
			}
		}
		inspector.BeforeExecutePass(p.name)
		var err error
		if p.run != nil {
			err = p.run()
		}
		inspector.AfterExecutePass(p.name)
		if err != nil {
			return fmt.Errorf("framegraph: pass %q: %w", p.name, err)
		}
		for _, r := range release[i] {
			inspector.ReleaseResource(r.name())
			r.release(alloc)
		}
	}

	gpu.Logger().Debug("frame graph executed",
		"passes", len(order), "culled", len(b.passes)-len(order))
	return nil
}
