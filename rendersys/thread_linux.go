// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build linux

package rendersys

import "golang.org/x/sys/unix"

// threadID identifies the OS thread running the caller.
func threadID() int64 { return int64(unix.Gettid()) }
