// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

// Buffer is a fixed-size block of device memory.
//
// Buffers never grow; callers that need more room close the buffer and
// create a larger one. Close is idempotent.
type Buffer interface {
	Label() string
	Size() int
	Type() BufferType
	Usage() BufferUsage
	IsClosed() bool
	Close()
}

// ReadView is a CPU-visible window onto buffer contents returned by
// CommandEncoder.ReadBuffer. Data is only valid until Close.
type ReadView interface {
	Data() []byte
	Close()
}

// ValidateRange checks that [offset, offset+length) lies inside a buffer of
// the given size.
func ValidateRange(size, offset, length int) bool {
	return offset >= 0 && length >= 0 && offset <= size && length <= size-offset
}
