// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package chunk

import "sync/atomic"

// ByteBuffer is a reusable growable byte arena. Bytes written since the
// last Build form the pending region; Build turns it into a ByteResult.
//
// Writes, Build, Clear and Discard belong to the goroutine holding the
// buffer. Results may be closed from any goroutine.
type ByteBuffer struct {
	hint  int
	data  []byte
	built int
	open  atomic.Int32
}

// NewByteBuffer returns a buffer that allocates capacity bytes on first
// use.
func NewByteBuffer(capacity int) *ByteBuffer {
	return &ByteBuffer{hint: capacity}
}

// Write appends p to the pending region.
func (b *ByteBuffer) Write(p []byte) (int, error) {
	if b.data == nil {
		b.data = make([]byte, 0, max(b.hint, len(p)))
	}
	b.data = append(b.data, p...)
	return len(p), nil
}

// Reserve extends the pending region by n zero bytes and returns them.
func (b *ByteBuffer) Reserve(n int) []byte {
	if b.data == nil {
		b.data = make([]byte, 0, max(b.hint, n))
	}
	start := len(b.data)
	b.data = append(b.data, make([]byte, n)...)
	return b.data[start:]
}

// Pending returns the number of bytes written since the last Build.
func (b *ByteBuffer) Pending() int { return len(b.data) - b.built }

// Build closes the pending region and returns it, or nil when nothing
// was written.
func (b *ByteBuffer) Build() *ByteResult {
	if b.Pending() == 0 {
		return nil
	}
	r := &ByteResult{owner: b, data: b.data[b.built:len(b.data):len(b.data)]}
	b.built = len(b.data)
	b.open.Add(1)
	return r
}

// Clear rewinds the buffer if every result has been closed. Otherwise the
// space stays reserved and new writes go after it.
func (b *ByteBuffer) Clear() {
	if b.open.Load() != 0 {
		return
	}
	b.data = b.data[:0]
	b.built = 0
}

// Discard drops the pending region, then clears.
func (b *ByteBuffer) Discard() {
	b.data = b.data[:b.built]
	b.Clear()
}

// OpenResults returns the number of results not yet closed.
func (b *ByteBuffer) OpenResults() int { return int(b.open.Load()) }

// ByteResult is a built region of a ByteBuffer. Its bytes stay valid
// until Close.
type ByteResult struct {
	owner  *ByteBuffer
	data   []byte
	closed atomic.Bool
}

// Bytes returns the region.
func (r *ByteResult) Bytes() []byte { return r.data }

// Len returns the size of the region.
func (r *ByteResult) Len() int { return len(r.data) }

// Close releases the region. Safe to call more than once.
func (r *ByteResult) Close() {
	if r == nil || !r.closed.CompareAndSwap(false, true) {
		return
	}
	r.owner.open.Add(-1)
}
