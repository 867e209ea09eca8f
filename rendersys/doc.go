// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package rendersys holds the render-thread state shared by the renderer:
// the device, projection and model-view matrices, shader globals, the
// shared sequential index buffers and the queue of fenced tasks.
//
// A Context belongs to one goroutine, locked to its OS thread by
// InitRenderThread. Stateful accessors panic when called from anywhere
// else:
//
//	rs, err := rendersys.New(dev)
//	if err != nil {
//		return err
//	}
//	rs.InitRenderThread()
//	defer rs.Close()
//
//	for running {
//		rs.ExecutePendingTasks()
//		// draw the frame
//	}
package rendersys
