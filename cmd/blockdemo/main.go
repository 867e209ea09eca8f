// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command blockdemo renders a generated landscape headlessly.
//
// It compiles the sections around the origin on the worker pool, flies
// the camera in a circle for a number of frames, applies the configured
// post chain and optionally saves a screenshot:
//
//	blockdemo -config blockrender.toml -frames 120 -screenshot
package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/profile"

	"github.com/gogpu/blockrender"
	"github.com/gogpu/blockrender/chunk"
	"github.com/gogpu/blockrender/config"
)

// sectionsHigh is the number of vertical sections rendered per column.
const sectionsHigh = 3

func main() {
	var (
		configPath = flag.String("config", "", "settings file (TOML)")
		backend    = flag.String("backend", "", "override the configured backend")
		frameCount = flag.Int("frames", 60, "frames to render")
		shot       = flag.Bool("screenshot", false, "save a screenshot of the last frame")
		seed       = flag.Uint("seed", 1, "terrain seed")
	)
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true, Prefix: "blockdemo"})
	if err := run(logger, *configPath, *backend, *frameCount, *shot, uint32(*seed)); err != nil {
		logger.Fatal("demo failed", "err", err)
	}
}

func run(logger *log.Logger, configPath, backend string, frameCount int, shot bool, seed uint32) error {
	s := config.Default()
	if configPath != "" {
		var err error
		if s, err = config.Load(configPath); err != nil {
			return err
		}
	}
	if backend != "" {
		s.Backend = backend
	}
	logger.SetLevel(log.Level(s.Level()))
	blockrender.SetLogger(slog.New(logger))

	switch s.Profile {
	case config.ProfileCPU:
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	case config.ProfileMem:
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook).Stop()
	}

	radius := s.RenderDistance / 2
	level := terrain{seed: seed, radius: radius}
	r, err := blockrender.Open(s, level, chunk.CubeCompiler{})
	if err != nil {
		return err
	}
	defer r.Close()

	sections := makeSections(r.Sections(), radius)
	start := time.Now()
	if err := r.Sections().RebuildSections(context.Background(), sections, chunk.SnapshotRegions{}); err != nil {
		return err
	}

	w, h := r.Main().Width(), r.Main().Height()
	proj := mgl32.Perspective(mgl32.DegToRad(70), float32(w)/float32(h), 0.05, float32(16*(radius+2)))
	for frame := range frameCount {
		angle := 2 * math.Pi * float64(frame) / float64(max(frameCount, 1))
		camera := mgl64.Vec3{
			math.Cos(angle) * float64(8*radius),
			seaLevel + 24,
			math.Sin(angle) * float64(8*radius),
		}
		if err := renderFrame(r, camera, proj, sections); err != nil {
			return err
		}
		if frame%20 == 0 {
			logger.Info("frame", "n", frame, "sections", r.Sections().Stats())
		}
	}
	if err := settle(r, proj, sections); err != nil {
		return err
	}
	logger.Info("sections compiled", "count", len(sections), "elapsed", time.Since(start).Round(time.Millisecond))

	if shot {
		if err := screenshot(r, proj, sections, logger); err != nil {
			return err
		}
	}
	for _, st := range r.Profiler().Totals() {
		logger.Debug("zone", "path", st.Path, "count", st.Count, "mean", st.Mean())
	}
	return nil
}

func makeSections(d *chunk.SectionRenderDispatcher, radius int) []*chunk.RenderSection {
	var sections []*chunk.RenderSection
	for x := -radius; x <= radius; x++ {
		for z := -radius; z <= radius; z++ {
			for y := range sectionsHigh {
				sections = append(sections, d.NewSection(len(sections), chunk.SectionNode(x, y, z)))
			}
		}
	}
	return sections
}

func renderFrame(r *blockrender.Renderer, camera mgl64.Vec3, proj mgl32.Mat4, sections []*chunk.RenderSection) error {
	r.BeginFrame(camera)
	visible := slices.Clone(sections)
	slices.SortFunc(visible, func(a, b *chunk.RenderSection) int {
		return cmp.Compare(a.DistToPlayerSqr(), b.DistToPlayerSqr())
	})
	eye := mgl32.Vec3{float32(camera.X()), float32(camera.Y()), float32(camera.Z())}
	// Section offsets are camera relative, so the view looks from the origin.
	view := mgl32.LookAtV(mgl32.Vec3{}, eye.Mul(-1), mgl32.Vec3{0, 1, 0})
	if err := r.RenderTerrain(proj, view, visible); err != nil {
		return err
	}
	return r.EndFrame()
}

// settle keeps rendering until every section is compiled and uploaded.
func settle(r *blockrender.Renderer, proj mgl32.Mat4, sections []*chunk.RenderSection) error {
	camera := r.Sections().CameraPosition()
	deadline := time.Now().Add(time.Minute)
	for !r.Sections().IsQueueEmpty() || slices.ContainsFunc(sections, func(s *chunk.RenderSection) bool {
		return s.Compiled() == chunk.Uncompiled
	}) {
		if time.Now().After(deadline) {
			return fmt.Errorf("sections did not settle: %s", r.Sections().Stats())
		}
		if err := renderFrame(r, camera, proj, sections); err != nil {
			return err
		}
	}
	return nil
}

func screenshot(r *blockrender.Renderer, proj mgl32.Mat4, sections []*chunk.RenderSection, logger *log.Logger) error {
	type result struct {
		path string
		err  error
	}
	done := make(chan result, 1)
	if err := r.Screenshot(func(path string, err error) { done <- result{path, err} }); err != nil {
		return err
	}
	camera := r.Sections().CameraPosition()
	for {
		select {
		case res := <-done:
			if res.err != nil {
				return res.err
			}
			logger.Info("saved screenshot", "path", res.path)
			return nil
		default:
			if err := renderFrame(r, camera, proj, sections); err != nil {
				return err
			}
		}
	}
}
