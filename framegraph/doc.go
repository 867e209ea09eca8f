// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package framegraph schedules the passes of one frame over named
// resources.
//
// A frame is described with a Builder: resources are either imported
// (owned by the caller) or created from a descriptor (transient, owned by
// the graph), and each pass declares which resource handles it reads and
// writes. Writing a handle produces a new version of it; a handle version
// can be written at most once. Execute drops passes that do not contribute
// to an imported resource, orders the rest by their dependencies, acquires
// transient resources from an Allocator just before first use and releases
// them after last use.
//
// Usage:
//
//	b := framegraph.NewBuilder()
//	main := framegraph.ImportExternal(b, "main", mainTarget)
//	tmp := framegraph.CreateInternal(b, "swap", desc)
//
//	p := b.AddPass("blur")
//	p.Reads(main)
//	tmp = framegraph.ReadsAndWrites(p, tmp)
//	p.Executes(func() error { return draw(tmp.Get()) })
//
//	err := b.Execute(pool, nil)
package framegraph
