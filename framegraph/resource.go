// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAcquired is the panic value of Handle.Get outside the passes
	// that declared the handle's resource.
	ErrNotAcquired = errors.New("framegraph: resource is not acquired")

	// ErrAlreadyWritten is the panic value of writing a stale handle.
	ErrAlreadyWritten = errors.New("framegraph: handle was already written")

	// ErrCycle is returned when pass dependencies form a cycle.
	ErrCycle = errors.New("framegraph: dependency cycle")

	// ErrExecuted is returned when a builder is executed twice.
	ErrExecuted = errors.New("framegraph: builder already executed")
)

// Descriptor describes a transient resource of type T. Resources created
// from equal descriptors are interchangeable, which lets allocators reuse
// them across frames.
type Descriptor[T any] interface {
	comparable
	// Allocate creates a new resource. label is unique per allocation.
	Allocate(label string) (T, error)
	// Prepare readies a reused resource for the new frame.
	Prepare(res T) error
	// Free releases the resource.
	Free(res T)
}

// Resource is a type-erased descriptor as seen by an Allocator.
type Resource interface {
	// Key is the descriptor value. Equal keys mean interchangeable
	// resources.
	Key() any
	Allocate() (any, error)
	Prepare(res any) error
	Free(res any)
}

type erased[T any, D Descriptor[T]] struct {
	desc  D
	label string
}

func (e erased[T, D]) Key() any { return e.desc }

func (e erased[T, D]) Allocate() (any, error) { return e.desc.Allocate(e.label) }

func (e erased[T, D]) Prepare(res any) error { return e.desc.Prepare(res.(T)) }

func (e erased[T, D]) Free(res any) { e.desc.Free(res.(T)) }

// virtual is a graph resource: imported, or created from a descriptor.
type virtual interface {
	name() string
	internal() bool
	acquire(a Allocator) error
	release(a Allocator)
}

type resource[T any] struct {
	label    string
	value    T
	held     bool
	external bool
	desc     Resource
}

func (r *resource[T]) name() string   { return r.label }
func (r *resource[T]) internal() bool { return !r.external }

func (r *resource[T]) acquire(a Allocator) error {
	if r.held {
		return fmt.Errorf("framegraph: resource %q acquired twice", r.label)
	}
	v, err := a.Acquire(r.desc)
	if err != nil {
		return fmt.Errorf("framegraph: acquire %q: %w", r.label, err)
	}
	r.value, r.held = v.(T), true
	return nil
}

func (r *resource[T]) release(a Allocator) {
	if r.external || !r.held {
		return
	}
	a.Release(r.desc, r.value)
	var zero T
	r.value, r.held = zero, false
}

// AnyHandle is implemented by every Handle.
type AnyHandle interface {
	base() *handleBase
}

type handleBase struct {
	owner   *Builder
	res     virtual
	version int
	writer  *Pass
	readers []*Pass
	aliased bool
}

func (h *handleBase) base() *handleBase { return h }

// Handle refers to one version of a resource.
type Handle[T any] struct {
	handleBase
	typed *resource[T]
}

// Get returns the resource. It panics with ErrNotAcquired when the
// resource is transient and not held, which happens outside the passes
// that declared it.
func (h *Handle[T]) Get() T {
	if !h.typed.held {
		panic(fmt.Errorf("%w: %s", ErrNotAcquired, h))
	}
	return h.typed.value
}

// Name returns the resource name.
func (h *Handle[T]) Name() string { return h.typed.label }

// Version returns how many writes precede this handle.
func (h *Handle[T]) Version() int { return h.version }

func (h *Handle[T]) String() string {
	return fmt.Sprintf("%s#%d", h.typed.label, h.version)
}
