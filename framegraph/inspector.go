// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package framegraph

// Inspector observes frame graph execution.
type Inspector interface {
	AcquireResource(name string)
	ReleaseResource(name string)
	BeforeExecutePass(name string)
	AfterExecutePass(name string)
}

// NopInspector ignores all events. Embed it to implement a subset.
type NopInspector struct{}

func (NopInspector) AcquireResource(string)   {}
func (NopInspector) ReleaseResource(string)   {}
func (NopInspector) BeforeExecutePass(string) {}
func (NopInspector) AfterExecutePass(string)  {}
