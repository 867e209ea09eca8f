// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
)

// =============================================================================
// Types
// =============================================================================

func TestIndexTypeFor(t *testing.T) {
	tests := []struct {
		vertices int
		want     IndexType
	}{
		{0, IndexShort},
		{4, IndexShort},
		{65535, IndexShort},
		{65536, IndexInt},
		{1 << 20, IndexInt},
	}
	for _, tt := range tests {
		if got := IndexTypeFor(tt.vertices); got != tt.want {
			t.Errorf("IndexTypeFor(%d) = %v, want %v", tt.vertices, got, tt.want)
		}
	}
	if IndexShort.Bytes() != 2 || IndexInt.Bytes() != 4 {
		t.Error("unexpected index sizes")
	}
	if IndexInt.Format() != gputypes.IndexFormatUint32 {
		t.Errorf("IndexInt.Format() = %v", IndexInt.Format())
	}
}

func TestBufferUsageAccess(t *testing.T) {
	tests := []struct {
		usage    BufferUsage
		readable bool
		writable bool
	}{
		{DynamicWrite, false, true},
		{StaticRead, true, false},
		{StreamRead, true, false},
		{StaticCopy, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.usage.String(), func(t *testing.T) {
			if tt.usage.Readable() != tt.readable {
				t.Errorf("Readable = %v, want %v", tt.usage.Readable(), tt.readable)
			}
			if tt.usage.Writable() != tt.writable {
				t.Errorf("Writable = %v, want %v", tt.usage.Writable(), tt.writable)
			}
			if tt.readable && tt.usage.HalUsage()&gputypes.BufferUsageMapRead == 0 {
				t.Error("readable usage lacks MapRead")
			}
		})
	}
}

func TestTextureFormatAspects(t *testing.T) {
	if !FormatDepth32.HasDepthAspect() || FormatDepth32.HasColorAspect() {
		t.Error("Depth32 aspects are wrong")
	}
	if FormatRGBA8.PixelSize() != 4 || FormatRed8.PixelSize() != 1 || FormatDepth32.PixelSize() != 4 {
		t.Error("unexpected pixel sizes")
	}
	if FormatDepth32.HalFormat(true) == FormatDepth32.HalFormat(false) {
		t.Error("stencil should select a combined depth-stencil format")
	}
}

func TestValidateRange(t *testing.T) {
	tests := []struct {
		size, offset, length int
		want                 bool
	}{
		{16, 0, 16, true},
		{16, 8, 8, true},
		{16, 16, 0, true},
		{16, 8, 9, false},
		{16, -1, 1, false},
		{16, 0, -1, false},
		{16, 17, 0, false},
	}
	for _, tt := range tests {
		if got := ValidateRange(tt.size, tt.offset, tt.length); got != tt.want {
			t.Errorf("ValidateRange(%d, %d, %d) = %v, want %v", tt.size, tt.offset, tt.length, got, tt.want)
		}
	}
}

func TestSamplerState(t *testing.T) {
	s := DefaultSamplerState()
	if s.AddressU != Repeat || s.Min != Nearest || s.Mag != Linear || !s.UseMipmaps {
		t.Errorf("DefaultSamplerState = %+v", s)
	}
	s.SetFilter(Nearest)
	if s.Mag != Nearest || !s.UseMipmaps {
		t.Errorf("after SetFilter = %+v", s)
	}
	if MipSize(256, 3) != 32 || MipSize(1, 2) != 0 {
		t.Error("unexpected MipSize")
	}
}

// =============================================================================
// Pipelines
// =============================================================================

func TestParseUniformType(t *testing.T) {
	tests := map[string]UniformType{
		"float":     UniformFloat,
		"vec2":      UniformVec2,
		"Vec4":      UniformVec4,
		"matrix4x4": UniformMat4,
		"ivec3":     UniformIVec3,
	}
	for name, want := range tests {
		got, err := ParseUniformType(name)
		if err != nil || got != want {
			t.Errorf("ParseUniformType(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := ParseUniformType("sampler2D"); err == nil {
		t.Error("expected error for unknown uniform type")
	}
	if UniformMat4.Components() != 16 || UniformIVec3.Components() != 3 {
		t.Error("unexpected component counts")
	}
}

func TestDefinesPrelude(t *testing.T) {
	var empty Defines
	if !empty.IsEmpty() || empty.Prelude() != "" {
		t.Error("empty defines should render nothing")
	}
	d := Defines{
		Values: map[string]string{"RADIUS": "4.0", "BLUR_DIR": "vec2<f32>(1.0, 0.0)"},
		Flags:  []string{"USE_FOG", "ALPHA_CUTOUT"},
	}
	want := "const BLUR_DIR = vec2<f32>(1.0, 0.0);\n" +
		"const RADIUS = 4.0;\n" +
		"const ALPHA_CUTOUT: bool = true;\n" +
		"const USE_FOG: bool = true;\n"
	if got := d.Prelude(); got != want {
		t.Errorf("Prelude() =\n%s\nwant\n%s", got, want)
	}
	if d.Flags[0] != "USE_FOG" {
		t.Error("Prelude must not reorder the caller's flags")
	}
}

func TestVertexFormats(t *testing.T) {
	if got := PositionFormat.Layout().ArrayStride; got != 12 {
		t.Errorf("PositionFormat stride = %d, want 12", got)
	}
	if got := BlockFormat.Layout().ArrayStride; got != 32 {
		t.Errorf("BlockFormat stride = %d, want 32", got)
	}
	for _, m := range []VertexMode{ModeTriangles, ModeQuads, ModeLines} {
		if m.Topology() != gputypes.PrimitiveTopologyTriangleList {
			t.Errorf("%v topology = %v, want triangle list", m, m.Topology())
		}
	}
}

// =============================================================================
// Errors
// =============================================================================

func TestCompilationError(t *testing.T) {
	cause := errors.New("unexpected token")
	err := error(&CompilationError{Location: "blur/0", Msg: "fragment shader", Err: cause})
	if !errors.Is(err, ErrCompilation) {
		t.Error("CompilationError should match ErrCompilation")
	}
	if !errors.Is(err, cause) {
		t.Error("CompilationError should unwrap to its cause")
	}
	if got, want := err.Error(), "gpu: compile blur/0: fragment shader: unexpected token"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

// =============================================================================
// Registry
// =============================================================================

type stubDevice struct {
	Device
	name string
}

func (d stubDevice) Info() DeviceInfo { return DeviceInfo{Renderer: d.name} }

func TestRegistry(t *testing.T) {
	RegisterBackend("noop", func(OpenConfig) (Device, error) { return stubDevice{name: "noop"}, nil })
	RegisterBackend("broken", func(OpenConfig) (Device, error) { return nil, ErrUnsupported })
	t.Cleanup(func() {
		UnregisterBackend("noop")
		UnregisterBackend("broken")
	})

	dev, err := Open("noop", OpenConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if dev.Info().Renderer != "noop" {
		t.Errorf("Renderer = %q", dev.Info().Renderer)
	}
	if _, err := Open("broken", OpenConfig{}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v, want ErrUnsupported", err)
	}
	if _, err := Open("vulkan", OpenConfig{}); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("err = %v, want ErrUnknownBackend", err)
	}
	best, err := OpenBest(OpenConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if best.Info().Renderer != "noop" {
		t.Errorf("OpenBest picked %q, want the prioritized noop backend", best.Info().Renderer)
	}
}
