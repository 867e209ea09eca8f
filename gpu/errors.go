// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by devices, encoders and passes.
var (
	// ErrInvalidArgument is returned for zero or negative sizes, out of range
	// offsets and usages that do not permit the requested access.
	ErrInvalidArgument = errors.New("gpu: invalid argument")

	// ErrOutOfMemory is returned when an allocation would exceed the device
	// memory budget or the driver reports exhaustion.
	ErrOutOfMemory = errors.New("gpu: out of memory")

	// ErrClosed is returned when a closed buffer or texture is used.
	ErrClosed = errors.New("gpu: resource closed")

	// ErrPassInProgress is returned by encoder operations issued while a
	// render pass created by the same encoder is still open.
	ErrPassInProgress = errors.New("gpu: render pass in progress")

	// ErrPassClosed is returned by render pass operations after Close.
	ErrPassClosed = errors.New("gpu: render pass closed")

	// ErrUnsupported is returned for operations the backend cannot perform.
	ErrUnsupported = errors.New("gpu: unsupported operation")

	// ErrCompilation matches every *CompilationError via errors.Is.
	ErrCompilation = errors.New("gpu: compilation failed")

	// ErrUnknownBackend is returned by Open for unregistered backend names.
	ErrUnknownBackend = errors.New("gpu: unknown backend")
)

// CompilationError describes a shader or pipeline that failed to build.
type CompilationError struct {
	// Location identifies the pipeline or shader, e.g. "blur/0".
	Location string
	Msg      string
	Err      error
}

func (e *CompilationError) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("gpu: compile %s: %s: %v", e.Location, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("gpu: compile %s: %v", e.Location, e.Err)
	default:
		return fmt.Sprintf("gpu: compile %s: %s", e.Location, e.Msg)
	}
}

func (e *CompilationError) Unwrap() error { return e.Err }

// Is reports whether target is ErrCompilation.
func (e *CompilationError) Is(target error) bool { return target == ErrCompilation }
