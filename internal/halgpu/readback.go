// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"errors"
	"fmt"
	"time"
	"unsafe"

	"github.com/gogpu/blockrender/gpu"
)

// readbackTimeout bounds the wait for outstanding submissions before a
// buffer is mapped.
const readbackTimeout = 2 * time.Second

var errNotMapped = errors.New("halgpu: buffer mapping has no host pointer")

// mapRead copies length bytes at offset out of the HAL buffer after every
// submission issued so far has completed.
func (d *Device) mapRead(b *Buffer, offset, length int) ([]byte, error) {
	data := make([]byte, length)
	if length == 0 {
		return data, nil
	}
	pending := &fence{dev: d, index: d.submitted.Load()}
	if !pending.AwaitCompletion(readbackTimeout) {
		return nil, fmt.Errorf("submission %d not completed after %s", pending.index, readbackTimeout)
	}
	m, err := d.raw.MapBuffer(b.raw, uint64(offset), uint64(length))
	if err != nil {
		return nil, fmt.Errorf("map: %w", mapError(err))
	}
	defer func() {
		if err := d.raw.UnmapBuffer(b.raw); err != nil {
			gpu.Logger().Warn("halgpu: unmap buffer", "buffer", b.label, "err", err)
		}
	}()
	if m.Ptr == nil {
		return nil, errNotMapped
	}
	copy(data, unsafe.Slice((*byte)(m.Ptr), length))
	return data, nil
}
