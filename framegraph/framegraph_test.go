// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type buffer struct {
	label string
	size  int
	freed bool
	uses  int
}

type counters struct {
	allocated, prepared, freed int
	labels                     []string
}

type bufferDesc struct {
	size int
	c    *counters
}

func (d bufferDesc) Allocate(label string) (*buffer, error) {
	if d.size <= 0 {
		return nil, fmt.Errorf("bad size %d", d.size)
	}
	d.c.allocated++
	d.c.labels = append(d.c.labels, label)
	return &buffer{label: label, size: d.size}, nil
}

func (d bufferDesc) Prepare(b *buffer) error {
	d.c.prepared++
	b.uses = 0
	return nil
}

func (d bufferDesc) Free(b *buffer) {
	d.c.freed++
	b.freed = true
}

type recorder struct {
	NopInspector
	events []string
}

func (r *recorder) AcquireResource(name string)   { r.events = append(r.events, "acquire "+name) }
func (r *recorder) ReleaseResource(name string)   { r.events = append(r.events, "release "+name) }
func (r *recorder) BeforeExecutePass(name string) { r.events = append(r.events, "run "+name) }

func TestChainRunsInDeclarationOrder(t *testing.T) {
	c := &counters{}
	b := NewBuilder()
	main := ImportExternal(b, "main", &buffer{label: "main"})
	swap := CreateInternal(b, "swap", bufferDesc{size: 4, c: c})

	var ran []string
	p1 := b.AddPass("blur x")
	p1.Reads(main)
	swap = ReadsAndWrites(p1, swap)
	p1.Executes(func() error {
		ran = append(ran, "blur x")
		swap.Get().uses++
		return nil
	})

	p2 := b.AddPass("blur y")
	p2.Reads(swap)
	main = ReadsAndWrites(p2, main)
	p2.Executes(func() error {
		ran = append(ran, "blur y")
		assert.Equal(t, 1, swap.Get().uses)
		return nil
	})

	plan, err := b.Plan()
	require.NoError(t, err)
	assert.Equal(t, []string{"blur x", "blur y"}, plan)

	rec := &recorder{}
	require.NoError(t, b.Execute(Unpooled, rec))
	assert.Equal(t, []string{"blur x", "blur y"}, ran)
	assert.Equal(t, []string{"acquire swap", "run blur x", "run blur y", "release swap"}, rec.events)
	assert.Equal(t, 1, c.allocated)
	assert.Equal(t, 1, c.freed)
	assert.Equal(t, 1, main.Version())
	assert.Equal(t, "main#1", main.String())

	require.Len(t, c.labels, 1)
	assert.True(t, strings.HasPrefix(c.labels[0], "swap ("))

	assert.ErrorIs(t, b.Execute(Unpooled, nil), ErrExecuted)
}

func TestUnusedPassesAreCulled(t *testing.T) {
	c := &counters{}
	b := NewBuilder()
	main := ImportExternal(b, "main", &buffer{})
	scratch := CreateInternal(b, "scratch", bufferDesc{size: 1, c: c})

	dead := b.AddPass("dead")
	ReadsAndWrites(dead, scratch)
	dead.Executes(func() error { t.Error("culled pass ran"); return nil })

	debug := b.AddPass("debug")
	debug.DisableCulling()
	ran := false
	debug.Executes(func() error { ran = true; return nil })

	out := b.AddPass("out")
	ReadsAndWrites(out, main)

	plan, err := b.Plan()
	require.NoError(t, err)
	assert.Equal(t, []string{"debug", "out"}, plan)
	require.NoError(t, b.Execute(Unpooled, nil))
	assert.True(t, ran)
	assert.Zero(t, c.allocated)
}

func TestWriteAfterReadOrdering(t *testing.T) {
	b := NewBuilder()
	main := ImportExternal(b, "main", &buffer{})
	other := ImportExternal(b, "other", &buffer{})

	// "write" is declared first but must wait for "read", which samples
	// the version it replaces.
	write := b.AddPass("write")
	read := b.AddPass("read")
	read.Reads(main)
	other = ReadsAndWrites(read, other)
	ReadsAndWrites(write, main)
	_ = other

	plan, err := b.Plan()
	require.NoError(t, err)
	assert.Equal(t, []string{"read", "write"}, plan)
}

func TestRequiresReordersPasses(t *testing.T) {
	b := NewBuilder()
	main := ImportExternal(b, "main", &buffer{})
	late := b.AddPass("late")
	early := b.AddPass("early")
	early.DisableCulling()
	ReadsAndWrites(late, main)
	late.Requires(early)
	late.Requires(late)

	plan, err := b.Plan()
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "late"}, plan)
}

func TestWriteAfterWritePanics(t *testing.T) {
	b := NewBuilder()
	main := ImportExternal(b, "main", &buffer{})
	ReadsAndWrites(b.AddPass("a"), main)

	assert.PanicsWithError(t, "framegraph: handle was already written: main#0", func() {
		ReadsAndWrites(b.AddPass("b"), main)
	})
}

func TestForeignHandlePanics(t *testing.T) {
	a, b := NewBuilder(), NewBuilder()
	h := ImportExternal(a, "main", 1)
	assert.Panics(t, func() { b.AddPass("p").Reads(h) })
}

func TestCycleDetected(t *testing.T) {
	b := NewBuilder()
	p1 := b.AddPass("one")
	p2 := b.AddPass("two")
	p1.DisableCulling()
	p1.Requires(p2)
	p2.Requires(p1)

	_, err := b.Plan()
	assert.ErrorIs(t, err, ErrCycle)
	assert.ErrorIs(t, b.Execute(Unpooled, nil), ErrCycle)
}

func TestGetOutsidePassPanics(t *testing.T) {
	c := &counters{}
	b := NewBuilder()
	h := CreateInternal(b, "tmp", bufferDesc{size: 1, c: c})
	assert.Panics(t, func() { h.Get() })

	ext := ImportExternal(b, "main", 42)
	assert.Equal(t, 42, ext.Get())
	assert.Equal(t, "main", ext.Name())
}

func TestFailingPassReleasesResources(t *testing.T) {
	c := &counters{}
	b := NewBuilder()
	main := ImportExternal(b, "main", &buffer{})
	tmp := CreateInternal(b, "tmp", bufferDesc{size: 2, c: c})

	p1 := b.AddPass("fill")
	tmp = ReadsAndWrites(p1, tmp)
	boom := errors.New("boom")
	p1.Executes(func() error { return boom })

	p2 := b.AddPass("use")
	p2.Reads(tmp)
	ReadsAndWrites(p2, main)
	p2.Executes(func() error { t.Error("ran after failure"); return nil })

	err := b.Execute(Unpooled, nil)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `pass "fill"`)
	assert.Equal(t, 1, c.allocated)
	assert.Equal(t, 1, c.freed)
}

func TestAllocationFailure(t *testing.T) {
	c := &counters{}
	b := NewBuilder()
	main := ImportExternal(b, "main", &buffer{})
	bad := CreateInternal(b, "bad", bufferDesc{size: 0, c: c})
	p := b.AddPass("p")
	p.Reads(bad)
	ReadsAndWrites(p, main)

	err := b.Execute(Unpooled, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `acquire "bad"`)
}

func TestPoolReusesAcrossFrames(t *testing.T) {
	c := &counters{}
	pool := NewPool(2)
	defer pool.Close()

	frame := func(size int) *buffer {
		b := NewBuilder()
		main := ImportExternal(b, "main", &buffer{})
		tmp := CreateInternal(b, "tmp", bufferDesc{size: size, c: c})
		var seen *buffer
		p := b.AddPass("p")
		tmp = ReadsAndWrites(p, tmp)
		ReadsAndWrites(p, main)
		p.Executes(func() error { seen = tmp.Get(); return nil })
		require.NoError(t, b.Execute(pool, nil))
		pool.EndFrame()
		return seen
	}

	first := frame(8)
	second := frame(8)
	assert.Same(t, first, second)
	assert.Equal(t, 1, c.allocated)
	assert.Equal(t, 1, c.prepared)

	other := frame(16)
	assert.NotSame(t, first, other)
	assert.Equal(t, 2, c.allocated)
	assert.Equal(t, 2, pool.Idle())

	allocs, reuses := pool.Stats()
	assert.Equal(t, 2, allocs)
	assert.Equal(t, 1, reuses)

	// The 8-byte buffer has now been idle for two frames.
	pool.EndFrame()
	assert.True(t, first.freed)
	assert.Equal(t, 1, pool.Idle())

	pool.Close()
	assert.True(t, other.freed)
	assert.Zero(t, pool.Idle())
}
