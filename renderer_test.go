// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package blockrender

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/gogpu/blockrender/chunk"
	"github.com/gogpu/blockrender/config"
	"github.com/gogpu/blockrender/gpu"
	"github.com/gogpu/blockrender/target"
)

// flatLevel is stone below y=4 with a strip of water on top.
type flatLevel struct{}

func (flatLevel) HasChunk(x, z int) bool { return true }

func (flatLevel) BlockAt(x, y, z int) chunk.Block {
	switch {
	case y < 0 || y > 4:
		return chunk.Air
	case y < 4:
		return chunk.Stone
	case x >= 2 && x < 6:
		return chunk.Water
	default:
		return chunk.Air
	}
}

func (flatLevel) BlockEntities(chunk.SectionPos) (local, global []chunk.BlockEntity) { return nil, nil }

func testSettings(t *testing.T) config.Settings {
	s := config.Default()
	s.Backend = "noop"
	s.Width, s.Height = 64, 32
	s.Workers = 2
	s.BufferPoolMB = 32
	s.ScreenshotDir = filepath.Join(t.TempDir(), "shots")
	return s
}

func openRenderer(t *testing.T, s config.Settings) *Renderer {
	t.Helper()
	r, err := Open(s, flatLevel{}, chunk.CubeCompiler{})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(r.Close)
	return r
}

// frames runs frames until cond holds.
func frames(t *testing.T, r *Renderer, visible []*chunk.RenderSection, cond func() bool) {
	t.Helper()
	proj := mgl32.Perspective(mgl32.DegToRad(70), 2, 0.05, 256)
	view := mgl32.LookAtV(mgl32.Vec3{-8, 12, -8}, mgl32.Vec3{8, 4, 8}, mgl32.Vec3{0, 1, 0})
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not reached: %s", r.Sections().Stats())
		}
		r.BeginFrame(mgl64.Vec3{-8, 12, -8})
		if err := r.RenderTerrain(proj, view, visible); err != nil {
			t.Fatalf("RenderTerrain() error = %v", err)
		}
		if err := r.EndFrame(); err != nil {
			t.Fatalf("EndFrame() error = %v", err)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestRendererFrame(t *testing.T) {
	s := testSettings(t)
	s.PostChain = "builtin:blur.toml"
	r := openRenderer(t, s)

	if r.PostChain() == nil || r.PostChain().Name() != "blur" {
		t.Fatalf("PostChain() = %v, want blur", r.PostChain())
	}
	if got := r.Sections().FreeBufferCount(); got != 2 {
		t.Errorf("FreeBufferCount() = %d, want 2", got)
	}

	sections := []*chunk.RenderSection{
		r.Sections().NewSection(0, chunk.SectionNode(0, 0, 0)),
		r.Sections().NewSection(1, chunk.SectionNode(1, 0, 0)),
	}
	if err := r.Sections().RebuildSections(context.Background(), sections, chunk.SnapshotRegions{}); err != nil {
		t.Fatalf("RebuildSections() error = %v", err)
	}
	frames(t, r, sections, func() bool {
		return sections[0].Compiled() != chunk.Uncompiled && sections[1].Compiled() != chunk.Uncompiled
	})
	if got := len(r.RecentlyCompiled()); got != 2 {
		t.Errorf("RecentlyCompiled() = %d sections, want 2", got)
	}
	if !sections[0].HasTranslucentGeometry() {
		t.Error("water section has no translucent layer")
	}
	if r.Profiler().Frames() == 0 {
		t.Error("profiler recorded no frames")
	}
}

func TestRendererScreenshot(t *testing.T) {
	s := testSettings(t)
	r := openRenderer(t, s)

	done := make(chan string, 1)
	if err := r.Screenshot(func(path string, err error) {
		if err != nil {
			t.Errorf("screenshot error = %v", err)
		}
		done <- path
	}); err != nil {
		t.Fatalf("Screenshot() error = %v", err)
	}
	var path string
	frames(t, r, nil, func() bool {
		select {
		case path = <-done:
			return true
		default:
			return false
		}
	})
	if filepath.Dir(path) != s.ScreenshotDir {
		t.Errorf("screenshot written to %q, want a file in %q", path, s.ScreenshotDir)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("screenshot file: %v", err)
	}
}

func TestOpenErrors(t *testing.T) {
	s := testSettings(t)
	s.Backend = "vulkan"
	if _, err := Open(s, flatLevel{}, chunk.CubeCompiler{}); !errors.Is(err, gpu.ErrUnknownBackend) {
		t.Errorf("Open(vulkan) error = %v, want ErrUnknownBackend", err)
	}

	s = testSettings(t)
	s.Height = 0
	if _, err := Open(s, flatLevel{}, chunk.CubeCompiler{}); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("Open() error = %v, want config.ErrInvalid", err)
	}
}

// Failures after the device is opened must release what was built so far,
// including the render thread binding.
func TestOpenCleansUpAfterFailure(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Settings)
		want   error
	}{
		{"missing post chain", func(s *config.Settings) { s.PostChain = "builtin:missing.toml" }, nil},
		{"main target too large", func(s *config.Settings) { s.MaxTextureSize = 16 }, target.ErrSizeOutOfBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSettings(t)
			tt.modify(&s)
			var (
				r   *Renderer
				err error
			)
			func() {
				defer func() {
					if p := recover(); p != nil {
						t.Fatalf("Open() panicked: %v", p)
					}
				}()
				r, err = Open(s, flatLevel{}, chunk.CubeCompiler{})
			}()
			if err == nil {
				r.Close()
				t.Fatal("Open() succeeded, want an error")
			}
			if r != nil {
				t.Errorf("Open() = %v, want nil renderer on error", r)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Open() error = %v, want %v", err, tt.want)
			}

			// The goroutine is free to become a render thread again.
			openRenderer(t, testSettings(t))
		})
	}
}
