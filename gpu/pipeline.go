// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpu

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/gogpu/gputypes"
)

// UniformType is the shape of a named shader uniform.
type UniformType int

const (
	UniformFloat UniformType = iota
	UniformVec2
	UniformVec3
	UniformVec4
	UniformInt
	UniformIVec3
	UniformMat4
)

// Components returns the number of scalar values the uniform holds.
func (t UniformType) Components() int {
	switch t {
	case UniformVec2:
		return 2
	case UniformVec3, UniformIVec3:
		return 3
	case UniformVec4:
		return 4
	case UniformMat4:
		return 16
	default:
		return 1
	}
}

// ParseUniformType maps the names used in post chain files to a type.
func ParseUniformType(name string) (UniformType, error) {
	switch strings.ToLower(name) {
	case "float":
		return UniformFloat, nil
	case "vec2":
		return UniformVec2, nil
	case "vec3":
		return UniformVec3, nil
	case "vec4":
		return UniformVec4, nil
	case "int":
		return UniformInt, nil
	case "ivec3":
		return UniformIVec3, nil
	case "matrix4x4", "mat4":
		return UniformMat4, nil
	default:
		return 0, fmt.Errorf("%w: uniform type %q", ErrInvalidArgument, name)
	}
}

// Uniform declares a uniform a pipeline expects.
type Uniform struct {
	Name string
	Type UniformType
}

// VertexFormat is the layout of one vertex in a vertex buffer.
type VertexFormat struct {
	Name       string
	Stride     int
	Attributes []gputypes.VertexAttribute
}

// Layout returns the WebGPU vertex buffer layout.
func (f VertexFormat) Layout() gputypes.VertexBufferLayout {
	return gputypes.VertexBufferLayout{
		ArrayStride: uint64(f.Stride),
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes:  f.Attributes,
	}
}

var (
	// PositionFormat is a bare float3 position.
	PositionFormat = VertexFormat{
		Name:   "position",
		Stride: 12,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
		},
	}

	// BlockFormat is the terrain vertex: position, packed color, texture
	// coordinates, packed light and packed normal.
	BlockFormat = VertexFormat{
		Name:   "block",
		Stride: 32,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
			{Format: gputypes.VertexFormatUnorm8x4, Offset: 12, ShaderLocation: 1},
			{Format: gputypes.VertexFormatFloat32x2, Offset: 16, ShaderLocation: 2},
			{Format: gputypes.VertexFormatUint32, Offset: 24, ShaderLocation: 3},
			{Format: gputypes.VertexFormatUnorm8x4, Offset: 28, ShaderLocation: 4},
		},
	}
)

// VertexMode is the primitive assembly of a pipeline. Quads are drawn as
// triangle lists through a shared quad index buffer.
type VertexMode int

const (
	ModeTriangles VertexMode = iota
	ModeQuads
	ModeLines
)

// Topology returns the WebGPU primitive topology.
func (m VertexMode) Topology() gputypes.PrimitiveTopology {
	return gputypes.PrimitiveTopologyTriangleList
}

// DepthTest selects the depth comparison.
type DepthTest int

const (
	DepthTestNone DepthTest = iota
	DepthTestLessEqual
	DepthTestEqual
	DepthTestGreater
)

// Compare returns the WebGPU comparison function.
func (d DepthTest) Compare() gputypes.CompareFunction {
	switch d {
	case DepthTestLessEqual:
		return gputypes.CompareFunctionLessEqual
	case DepthTestEqual:
		return gputypes.CompareFunctionEqual
	case DepthTestGreater:
		return gputypes.CompareFunctionGreater
	default:
		return gputypes.CompareFunctionAlways
	}
}

// BlendFunction is a separate color/alpha blend configuration.
type BlendFunction struct {
	SrcColor, DstColor gputypes.BlendFactor
	SrcAlpha, DstAlpha gputypes.BlendFactor
}

var (
	BlendTranslucent = BlendFunction{
		SrcColor: gputypes.BlendFactorSrcAlpha, DstColor: gputypes.BlendFactorOneMinusSrcAlpha,
		SrcAlpha: gputypes.BlendFactorOne, DstAlpha: gputypes.BlendFactorOneMinusSrcAlpha,
	}
	BlendAdditive = BlendFunction{
		SrcColor: gputypes.BlendFactorOne, DstColor: gputypes.BlendFactorOne,
		SrcAlpha: gputypes.BlendFactorOne, DstAlpha: gputypes.BlendFactorOne,
	}
)

// State returns the WebGPU blend state.
func (b BlendFunction) State() *gputypes.BlendState {
	return &gputypes.BlendState{
		Color: gputypes.BlendComponent{SrcFactor: b.SrcColor, DstFactor: b.DstColor, Operation: gputypes.BlendOperationAdd},
		Alpha: gputypes.BlendComponent{SrcFactor: b.SrcAlpha, DstFactor: b.DstAlpha, Operation: gputypes.BlendOperationAdd},
	}
}

// Defines are compile-time constants injected ahead of a shader source.
type Defines struct {
	Values map[string]string
	Flags  []string
}

// IsEmpty reports whether no defines are set.
func (d Defines) IsEmpty() bool { return len(d.Values) == 0 && len(d.Flags) == 0 }

// Prelude renders the defines as WGSL constant declarations in a stable
// order.
func (d Defines) Prelude() string {
	if d.IsEmpty() {
		return ""
	}
	var sb strings.Builder
	for _, k := range slices.Sorted(maps.Keys(d.Values)) {
		fmt.Fprintf(&sb, "const %s = %s;\n", k, d.Values[k])
	}
	flags := slices.Clone(d.Flags)
	slices.Sort(flags)
	for _, f := range flags {
		fmt.Fprintf(&sb, "const %s: bool = true;\n", f)
	}
	return sb.String()
}

// RenderPipeline describes a pipeline to compile. Devices cache compiled
// pipelines by descriptor identity, so descriptors are meant to be created
// once and reused.
type RenderPipeline struct {
	// Location names the pipeline in logs and errors.
	Location       string
	VertexShader   string
	FragmentShader string
	Defines        Defines
	Samplers       []string
	Uniforms       []Uniform
	VertexFormat   VertexFormat
	Mode           VertexMode
	Blend          *BlendFunction
	DepthTest      DepthTest
	Cull           bool
	WriteColor     bool
	WriteDepth     bool
	ColorFormat    TextureFormat
}

// ShaderSource resolves a shader id to WGSL source for the given stage.
type ShaderSource func(id string, typ ShaderType) (string, error)

// CompiledPipeline is the result of Device.PrecompilePipeline. An invalid
// pipeline is still returned on failure; draws using it render nothing.
type CompiledPipeline interface {
	IsValid() bool
	ContainsUniform(name string) bool
	ContainsSampler(name string) bool
	Info() *RenderPipeline
}
