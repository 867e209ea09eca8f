// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package blockrender

import (
	"log/slog"

	"github.com/gogpu/blockrender/gpu"
)

// SetLogger configures the logger for blockrender and all its
// sub-packages. By default nothing is logged. Passing nil restores the
// silent default.
//
// SetLogger is safe for concurrent use.
//
// Log levels used by blockrender:
//   - [slog.LevelDebug]: buffer growth, cache hits, pass scheduling
//   - [slog.LevelInfo]: device opened, post chain loaded
//   - [slog.LevelWarn]: fallbacks, resource release problems
//   - [slog.LevelError]: shader compile failures, delayed crash reports
//
// Example:
//
//	blockrender.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	// Every sub-package logs through gpu.Logger.
	gpu.SetLogger(l)
}

// Logger returns the current logger.
func Logger() *slog.Logger { return gpu.Logger() }
