// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/blockrender/gpu"
)

// Buffer implements gpu.Buffer.
type Buffer struct {
	dev    *Device
	raw    hal.Buffer
	label  string
	typ    gpu.BufferType
	usage  gpu.BufferUsage
	mirror []byte
	closed atomic.Bool
}

var _ gpu.Buffer = (*Buffer)(nil)

func (d *Device) newBuffer(label string, typ gpu.BufferType, usage gpu.BufferUsage, size int) (*Buffer, error) {
	if err := d.memory.reserve(kindBuffer, uint64(size)); err != nil {
		return nil, fmt.Errorf("create buffer %q: %w", label, err)
	}
	raw, err := d.raw.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  uint64(size),
		Usage: typ.HalUsage() | usage.HalUsage(),
	})
	if err != nil {
		d.memory.release(kindBuffer, uint64(size))
		return nil, fmt.Errorf("create buffer %q: %w", label, mapError(err))
	}
	d.debugf("created buffer %q (%s, %s, %d bytes)", label, typ, usage, size)
	return &Buffer{
		dev:    d,
		raw:    raw,
		label:  label,
		typ:    typ,
		usage:  usage,
		mirror: make([]byte, size),
	}, nil
}

func (b *Buffer) Label() string          { return b.label }
func (b *Buffer) Size() int              { return len(b.mirror) }
func (b *Buffer) Type() gpu.BufferType   { return b.typ }
func (b *Buffer) Usage() gpu.BufferUsage { return b.usage }
func (b *Buffer) IsClosed() bool         { return b.closed.Load() }
func (b *Buffer) String() string         { return fmt.Sprintf("Buffer(%q, %d bytes)", b.label, len(b.mirror)) }

// Close destroys the HAL buffer. Safe to call more than once.
func (b *Buffer) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}
	b.dev.raw.DestroyBuffer(b.raw)
	b.dev.memory.release(kindBuffer, uint64(len(b.mirror)))
}

// asBuffer unwraps a gpu.Buffer created by this backend.
func asBuffer(buf gpu.Buffer) (*Buffer, error) {
	b, ok := buf.(*Buffer)
	if !ok || b == nil {
		return nil, fmt.Errorf("%w: foreign buffer %T", gpu.ErrInvalidArgument, buf)
	}
	if b.closed.Load() {
		return nil, fmt.Errorf("buffer %q: %w", b.label, gpu.ErrClosed)
	}
	return b, nil
}

type readView struct {
	data   []byte
	closed bool
}

func (v *readView) Data() []byte { return v.data }

func (v *readView) Close() {
	if v.closed {
		return
	}
	v.closed = true
	v.data = nil
}
