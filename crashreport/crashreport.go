// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package crashreport defers fatal errors raised on background goroutines
// to a point where the main loop can report them.
package crashreport

import (
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/gogpu/blockrender/gpu"
)

// Report is a captured failure.
type Report struct {
	// Label describes what was being done, e.g. "Batching sections".
	Label string
	Err   error
	Time  time.Time
	// Stack is the stack of the goroutine that called DelayCrash.
	Stack []byte
	// Suppressed counts failures delayed after this one and before it
	// was reported.
	Suppressed int
}

func (r *Report) Error() string { return r.Label + ": " + r.Err.Error() }

func (r *Report) Unwrap() error { return r.Err }

// String formats the report for logs and crash files.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "---- Crash Report ----\nTime: %s\nDescription: %s\n\n%v\n",
		r.Time.Format(time.RFC3339), r.Label, r.Err)
	if r.Suppressed > 0 {
		fmt.Fprintf(&b, "(%d more failures suppressed)\n", r.Suppressed)
	}
	if len(r.Stack) > 0 {
		b.WriteString("\nStacktrace:\n")
		b.Write(r.Stack)
	}
	return b.String()
}

// Sink collects delayed crashes. The first failure is kept until Report;
// later ones are only counted. Sink is safe for concurrent use.
type Sink struct {
	mu      sync.Mutex
	pending *Report
	handler func(*Report)
	now     func() time.Time
}

// NewSink returns a sink passing reports to handler. A nil handler logs
// them at error level.
func NewSink(handler func(*Report)) *Sink {
	if handler == nil {
		handler = func(r *Report) {
			gpu.Logger().Error("delayed crash", "label", r.Label, "err", r.Err, "suppressed", r.Suppressed)
		}
	}
	return &Sink{handler: handler, now: time.Now}
}

// DelayCrash records err under label. Nil errors are ignored.
func (s *Sink) DelayCrash(err error, label string) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		s.pending.Suppressed++
		return
	}
	s.pending = &Report{Label: label, Err: err, Time: s.now(), Stack: debug.Stack()}
}

// Pending reports whether a crash is waiting.
func (s *Sink) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Report hands the pending crash, if any, to the handler and returns it.
// Call it once per frame.
func (s *Sink) Report() *Report {
	s.mu.Lock()
	r := s.pending
	s.pending = nil
	s.mu.Unlock()
	if r != nil {
		s.handler(r)
	}
	return r
}
