// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package chunk compiles terrain sections into GPU meshes.
//
// A SectionRenderDispatcher owns a worker pool, a bounded pool of buffer
// packs and a queue of compile tasks ordered by distance from the camera.
// Sections are rebuilt from immutable region snapshots on the workers;
// the resulting meshes are uploaded by the render thread:
//
//	d := chunk.NewSectionRenderDispatcher(rs, level, chunk.CubeCompiler{})
//	s := d.NewSection(0, chunk.SectionNode(0, 4, 0))
//	_ = s.RebuildSectionAsync(chunk.SnapshotRegions{})
//
//	// once per frame, on the render thread
//	d.SetCamera(camera)
//	d.UploadAllPendingUploads()
//	_ = d.DrawLayer(pass, chunk.Solid, visible)
//
// Each section has at most one pending rebuild and one pending re-sort of
// its translucent layer; scheduling a rebuild cancels the previous one.
package chunk
