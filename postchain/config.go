// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package postchain

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/blockrender/gpu"
)

// ErrInvalidConfig is returned for malformed post chain files.
var ErrInvalidConfig = errors.New("postchain: invalid config")

// Config is the decoded form of a post chain file.
type Config struct {
	// Targets declares the internal targets by id.
	Targets map[string]TargetConfig `toml:"targets" yaml:"targets"`
	Passes  []PassConfig            `toml:"passes" yaml:"passes"`
}

// TargetConfig sizes an internal target. A target without width and
// height follows the output size.
type TargetConfig struct {
	Width  int `toml:"width,omitempty" yaml:"width,omitempty"`
	Height int `toml:"height,omitempty" yaml:"height,omitempty"`
}

// FullScreen reports whether the target follows the output size.
func (t TargetConfig) FullScreen() bool { return t.Width == 0 && t.Height == 0 }

// PassConfig describes one full-screen pass.
type PassConfig struct {
	VertexShader   string          `toml:"vertex_shader" yaml:"vertex_shader"`
	FragmentShader string          `toml:"fragment_shader" yaml:"fragment_shader"`
	Inputs         []InputConfig   `toml:"inputs" yaml:"inputs"`
	Output         string          `toml:"output" yaml:"output"`
	Uniforms       []UniformConfig `toml:"uniforms" yaml:"uniforms"`
}

// InputConfig is either a target input (Target set) or a static texture
// input (Location set).
type InputConfig struct {
	SamplerName    string `toml:"sampler_name" yaml:"sampler_name"`
	Target         string `toml:"target,omitempty" yaml:"target,omitempty"`
	UseDepthBuffer bool   `toml:"use_depth_buffer,omitempty" yaml:"use_depth_buffer,omitempty"`
	Location       string `toml:"location,omitempty" yaml:"location,omitempty"`
	Width          int    `toml:"width,omitempty" yaml:"width,omitempty"`
	Height         int    `toml:"height,omitempty" yaml:"height,omitempty"`
	Bilinear       bool   `toml:"bilinear,omitempty" yaml:"bilinear,omitempty"`
}

// IsTexture reports whether the input samples a static texture.
func (in InputConfig) IsTexture() bool { return in.Location != "" }

// UniformConfig sets a uniform to constant values on every draw.
type UniformConfig struct {
	Name   string    `toml:"name" yaml:"name"`
	Type   string    `toml:"type" yaml:"type"`
	Values []float32 `toml:"values" yaml:"values"`
}

// ReferencedTargets returns the ids of the targets a pass samples or
// writes, output last.
func (p PassConfig) ReferencedTargets() []string {
	var ids []string
	for _, in := range p.Inputs {
		if !in.IsTexture() && !slices.Contains(ids, in.Target) {
			ids = append(ids, in.Target)
		}
	}
	if !slices.Contains(ids, p.Output) {
		ids = append(ids, p.Output)
	}
	return ids
}

// Validate checks the structure of the config. It does not resolve
// targets or shaders; Load does.
func (c *Config) Validate() error {
	if len(c.Passes) == 0 {
		return fmt.Errorf("%w: no passes", ErrInvalidConfig)
	}
	for id, t := range c.Targets {
		if t.Width < 0 || t.Height < 0 || (t.Width == 0) != (t.Height == 0) {
			return fmt.Errorf("%w: target %q: size %dx%d", ErrInvalidConfig, id, t.Width, t.Height)
		}
	}
	for i, p := range c.Passes {
		if err := p.validate(); err != nil {
			return fmt.Errorf("%w: pass %d: %w", ErrInvalidConfig, i, err)
		}
	}
	return nil
}

func (p PassConfig) validate() error {
	switch {
	case p.VertexShader == "" || p.FragmentShader == "":
		return errors.New("missing shader")
	case p.Output == "":
		return errors.New("missing output")
	}
	for _, in := range p.Inputs {
		switch {
		case in.SamplerName == "":
			return errors.New("input without sampler_name")
		case in.IsTexture() == (in.Target != ""):
			return fmt.Errorf("input %s: exactly one of target and location is required", in.SamplerName)
		case in.IsTexture() && (in.Width <= 0 || in.Height <= 0):
			return fmt.Errorf("input %s: texture size %dx%d", in.SamplerName, in.Width, in.Height)
		}
	}
	for _, u := range p.Uniforms {
		typ, err := gpu.ParseUniformType(u.Type)
		if err != nil {
			return fmt.Errorf("uniform %s: %w", u.Name, err)
		}
		if len(u.Values) != typ.Components() {
			return fmt.Errorf("uniform %s: %s needs %d values, got %d", u.Name, u.Type, typ.Components(), len(u.Values))
		}
	}
	return nil
}

// Format is a post chain file encoding.
type Format string

const (
	TOML Format = "toml"
	YAML Format = "yaml"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return TOML, nil
	case ".yaml", ".yml":
		return YAML, nil
	default:
		return "", fmt.Errorf("%w: unknown file type %q", ErrInvalidConfig, path)
	}
}

// ParseConfig decodes and validates a config. Unknown keys are rejected.
func ParseConfig(data []byte, format Format) (*Config, error) {
	var cfg Config
	switch format {
	case TOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrInvalidConfig, format)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig reads a config file, choosing the format by extension.
func LoadConfig(path string) (*Config, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("postchain: %w", err)
	}
	cfg, err := ParseConfig(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}
