// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package profiling measures named zones of the render loop.
//
// Zones are timed individually and may run on any goroutine; Push and Pop
// build a nested path and belong to the render thread. Every zone is also
// a runtime/trace region, so zones show up in execution traces.
package profiling

import (
	"cmp"
	"context"
	"runtime/trace"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gogpu/blockrender/framegraph"
)

// Zone ends a measurement when closed.
type Zone interface {
	Close()
}

// Profiler records named zones.
type Profiler interface {
	Push(name string)
	Pop()
	Zone(name string) Zone
}

// Nop discards everything.
var Nop Profiler = nop{}

type nop struct{}

func (nop) Push(string)      {}
func (nop) Pop()             {}
func (nop) Zone(string) Zone { return nopZone{} }

type nopZone struct{}

func (nopZone) Close() {}

// Stat is the accumulated time of one zone path.
type Stat struct {
	Path  string
	Count int
	Total time.Duration
}

// Mean returns the average duration.
func (s Stat) Mean() time.Duration {
	if s.Count == 0 {
		return 0
	}
	return s.Total / time.Duration(s.Count)
}

type frame struct {
	name  string
	start time.Time
}

// Recorder accumulates zone timings per frame.
type Recorder struct {
	mu     sync.Mutex
	now    func() time.Time
	stack  []frame
	frame  map[string]*Stat
	totals map[string]*Stat
	frames int
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		now:    time.Now,
		frame:  make(map[string]*Stat),
		totals: make(map[string]*Stat),
	}
}

// Push opens a nested zone on the render thread.
func (r *Recorder) Push(name string) {
	r.mu.Lock()
	r.stack = append(r.stack, frame{name: name, start: r.now()})
	r.mu.Unlock()
}

// Pop closes the innermost pushed zone. Popping an empty stack does
// nothing.
func (r *Recorder) Pop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stack) == 0 {
		return
	}
	path := r.pathLocked()
	top := r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]
	r.addLocked(path, r.now().Sub(top.start))
}

func (r *Recorder) pathLocked() string {
	names := make([]string, len(r.stack))
	for i, f := range r.stack {
		names[i] = f.name
	}
	return strings.Join(names, "/")
}

func (r *Recorder) addLocked(path string, d time.Duration) {
	s := r.frame[path]
	if s == nil {
		s = &Stat{Path: path}
		r.frame[path] = s
	}
	s.Count++
	s.Total += d
}

// Zone starts an independent zone. It is safe to use from any goroutine.
func (r *Recorder) Zone(name string) Zone {
	return &zone{r: r, name: name, start: r.now(), region: trace.StartRegion(context.Background(), name)}
}

type zone struct {
	r      *Recorder
	name   string
	start  time.Time
	region *trace.Region
	once   sync.Once
}

func (z *zone) Close() {
	z.once.Do(func() {
		z.region.End()
		z.r.mu.Lock()
		z.r.addLocked(z.name, z.r.now().Sub(z.start))
		z.r.mu.Unlock()
	})
}

// EndFrame folds the current frame into the totals and returns the
// frame's stats sorted by total time, longest first.
func (r *Recorder) EndFrame() []Stat {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Stat, 0, len(r.frame))
	for path, s := range r.frame {
		out = append(out, *s)
		t := r.totals[path]
		if t == nil {
			t = &Stat{Path: path}
			r.totals[path] = t
		}
		t.Count += s.Count
		t.Total += s.Total
	}
	clear(r.frame)
	r.frames++
	sortStats(out)
	return out
}

// Totals returns the stats of all ended frames, longest first.
func (r *Recorder) Totals() []Stat {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Stat, 0, len(r.totals))
	for _, s := range r.totals {
		out = append(out, *s)
	}
	sortStats(out)
	return out
}

// Frames returns the number of ended frames.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func sortStats(s []Stat) {
	slices.SortFunc(s, func(a, b Stat) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})
}

// Inspector returns a frame graph inspector recording every pass as a
// pushed zone named after the pass.
func (r *Recorder) Inspector() framegraph.Inspector { return inspector{r} }

type inspector struct {
	r *Recorder
}

func (inspector) AcquireResource(string)          {}
func (inspector) ReleaseResource(string)          {}
func (i inspector) BeforeExecutePass(name string) { i.r.Push(name) }
func (i inspector) AfterExecutePass(string)       { i.r.Pop() }
