// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package config loads renderer settings from a TOML file.
//
// Unknown keys are rejected. Numeric settings outside their range are
// clamped by [Settings.Validate]; settings that cannot be clamped, such as
// an unknown log level, are errors.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ErrInvalid is returned for settings that cannot be used.
var ErrInvalid = errors.New("config: invalid settings")

// Render distance bounds, in sections.
const (
	MinRenderDistance = 2
	MaxRenderDistance = 32
)

// Profile modes understood by the demo.
const (
	ProfileOff = ""
	ProfileCPU = "cpu"
	ProfileMem = "mem"
)

// Settings configures a renderer instance.
type Settings struct {
	Backend        string `toml:"backend"`
	MemoryBudgetMB int    `toml:"memory_budget_mb"`
	// MaxTextureSize overrides the adapter limit when positive.
	MaxTextureSize  int  `toml:"max_texture_size,omitempty"`
	Debug           bool `toml:"debug"`
	ValidateShaders bool `toml:"validate_shaders"`
	// DeviceReadback reads screenshots from device memory.
	DeviceReadback bool `toml:"device_readback,omitempty"`

	Width  int `toml:"width"`
	Height int `toml:"height"`

	// Workers is the compile worker count. Zero picks one less than the
	// number of CPUs.
	Workers int `toml:"workers"`
	// BufferPoolMB bounds the memory of the section buffer packs. Zero
	// derives it from the runtime memory limit.
	BufferPoolMB   int `toml:"buffer_pool_mb"`
	RenderDistance int `toml:"render_distance"`

	ShaderDir     string `toml:"shader_dir,omitempty"`
	PostChain     string `toml:"post_chain,omitempty"`
	ScreenshotDir string `toml:"screenshot_dir"`

	LogLevel string `toml:"log_level"`
	Profile  string `toml:"profile,omitempty"`
}

// Default returns the settings used when no file is given.
func Default() Settings {
	return Settings{
		Backend:        "software",
		MemoryBudgetMB: 512,
		Width:          854,
		Height:         480,
		RenderDistance: 8,
		ScreenshotDir:  "screenshots",
		LogLevel:       "info",
	}
}

// Parse decodes TOML over the defaults and validates the result.
func Parse(data []byte) (Settings, error) {
	s := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return Settings{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Load reads a settings file.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("config: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Save writes s as TOML.
func (s Settings) Save(path string) error {
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Validate clamps numeric settings into range and rejects the rest.
func (s *Settings) Validate() error {
	s.RenderDistance = min(max(s.RenderDistance, MinRenderDistance), MaxRenderDistance)
	s.Workers = min(max(s.Workers, 0), 4*runtime.NumCPU())
	s.BufferPoolMB = max(s.BufferPoolMB, 0)
	s.MemoryBudgetMB = max(s.MemoryBudgetMB, 0)
	s.MaxTextureSize = max(s.MaxTextureSize, 0)

	switch {
	case s.Backend == "":
		return fmt.Errorf("%w: empty backend", ErrInvalid)
	case s.Width <= 0 || s.Height <= 0:
		return fmt.Errorf("%w: window size %dx%d", ErrInvalid, s.Width, s.Height)
	}
	if _, err := ParseLevel(s.LogLevel); err != nil {
		return err
	}
	switch s.Profile {
	case ProfileOff, ProfileCPU, ProfileMem:
	default:
		return fmt.Errorf("%w: profile %q", ErrInvalid, s.Profile)
	}
	return nil
}

// Level returns the slog level of s.LogLevel. Validate has already
// rejected unknown names.
func (s Settings) Level() slog.Level {
	l, _ := ParseLevel(s.LogLevel)
	return l
}

// PoolBudget returns the buffer pool budget in bytes, or zero.
func (s Settings) PoolBudget() int64 { return int64(s.BufferPoolMB) << 20 }

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(name string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalid, name)
	}
	return l, nil
}
