// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package postchain

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/gogpu/blockrender/gpu"
	"github.com/gogpu/blockrender/shader"
)

// Reloader keeps a chain loaded from a file and reloads it after the file
// or a watched shader directory changes. File events only mark the chain
// stale; the reload itself happens in Poll, on the render thread.
type Reloader struct {
	loader   *Loader
	path     string
	external []string

	current atomic.Pointer[Chain]
	stale   atomic.Bool

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup
}

// NewReloader loads the chain at path and starts watching its directory
// and dirs.
func NewReloader(l *Loader, path string, external []string, dirs ...string) (*Reloader, error) {
	path = filepath.Clean(path)
	chain, err := l.LoadFile(path, external...)
	if err != nil {
		return nil, err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("postchain: watch: %w", err)
	}
	for _, dir := range append([]string{filepath.Dir(path)}, dirs...) {
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, fmt.Errorf("postchain: watch %s: %w", dir, err)
		}
	}
	r := &Reloader{loader: l, path: path, external: external, watcher: w}
	r.current.Store(chain)
	r.wg.Add(1)
	go r.run()
	return r, nil
}

func (r *Reloader) run() {
	defer r.wg.Done()
	for {
		select {
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if !r.relevant(ev) {
				continue
			}
			if !r.stale.Swap(true) {
				gpu.Logger().Debug("post chain source changed", "file", ev.Name, "op", ev.Op.String())
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			gpu.Logger().Warn("post chain watcher error", "err", err)
		}
	}
}

func (r *Reloader) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return false
	}
	return filepath.Clean(ev.Name) == r.path || strings.HasSuffix(ev.Name, ".wgsl")
}

// Chain returns the current chain, or nil after a failed reload.
func (r *Reloader) Chain() *Chain { return r.current.Load() }

// Stale reports whether a change is waiting for Poll.
func (r *Reloader) Stale() bool { return r.stale.Load() }

// Poll reloads the chain when its sources changed. The pipeline and
// shader caches are dropped first so that edited shaders are recompiled.
// A chain that fails to load disables the effect until the next
// successful reload.
func (r *Reloader) Poll() (bool, error) {
	if !r.stale.Swap(false) {
		return false, nil
	}
	r.loader.RS.AssertOnRenderThread()
	r.loader.RS.Device().ClearPipelineCache()
	shader.ResetCache()

	chain, err := r.loader.LoadFile(r.path, r.external...)
	if err != nil {
		r.current.Store(nil)
		gpu.Logger().Error("post chain reload failed", "file", r.path, "err", err)
		return true, err
	}
	r.current.Store(chain)
	gpu.Logger().Info("post chain reloaded", "file", r.path)
	return true, nil
}

// Close stops watching.
func (r *Reloader) Close() error {
	err := r.watcher.Close()
	r.wg.Wait()
	return err
}
