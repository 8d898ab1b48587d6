package pass

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-varid/common"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-varid/engine/resource"
)

// AllMips binds every mip level of a texture input.
const AllMips = -1

// Kind selects the pipeline type of a pass.
type Kind int

const (
	// KindCompute dispatches a compute shader.
	KindCompute Kind = iota
	// KindRaster draws a triangle strip with a vertex and a fragment shader into one color target.
	KindRaster
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	if k == KindRaster {
		return "raster"
	}
	return "compute"
}

// SamplerKind selects one of the fixed samplers the recorder provides.
type SamplerKind int

const (
	// SamplerBilinear filters linearly within a mip, clamped to edge.
	SamplerBilinear SamplerKind = iota
	// SamplerTrilinear filters linearly within and between mips, clamped to edge.
	SamplerTrilinear
	// SamplerPoint samples the nearest texel, clamped to edge.
	SamplerPoint
)

// Binding binds a resource to a shader variable.
type Binding struct {
	// Name is the WGSL variable name.
	Name string
	// Handle is the resource.
	Handle *resource.Handle
	// Mip is the mip level bound, or AllMips for a full-chain input.
	Mip int
}

// SamplerBinding binds a fixed sampler to a shader variable.
type SamplerBinding struct {
	Name    string
	Sampler SamplerKind
}

// DataBinding binds host data uploaded into a uniform or read-only storage buffer.
type DataBinding struct {
	Name string
	Data []byte
}

// Draw describes the draw of a raster pass.
type Draw struct {
	// VertexCount is the number of triangle strip vertices.
	VertexCount uint32
	// Vertices is the vertex buffer contents.
	Vertices []byte
	// Viewport is the region of the target drawn into.
	Viewport common.IntRect
	// Clear clears the target before drawing.
	Clear bool
}

// Description is the declarative form of one pass.
type Description struct {
	// Name labels the pass in logs and GPU captures.
	Name string
	// Kind is compute or raster.
	Kind Kind
	// Shader is the compute shader key, or the fragment shader key of a raster pass.
	Shader string
	// VertexShader is the vertex shader key of a raster pass.
	VertexShader string
	// Permutation selects the shader variant.
	Permutation shader.Permutation
	// Inputs are resources read by the pass.
	Inputs []Binding
	// Outputs are resources written by the pass. A raster pass has exactly one, its color target.
	Outputs []Binding
	// Samplers are the fixed samplers bound by name.
	Samplers []SamplerBinding
	// Uniforms are uploaded into uniform buffers.
	Uniforms []DataBinding
	// Buffers are uploaded into read-only storage buffers.
	Buffers []DataBinding
	// Dispatch is the workgroup count of a compute pass.
	Dispatch [3]uint32
	// Draw is the draw of a raster pass.
	Draw Draw
}

// Command is a validated pass ready for recording, with its shaders resolved when the
// builder had a shader library.
type Command struct {
	Description

	// Compute is the compute shader, nil without a library or for raster passes.
	Compute shader.Shader
	// Vertex is the vertex shader of a raster pass.
	Vertex shader.Shader
	// Fragment is the fragment shader of a raster pass.
	Fragment shader.Shader
}

// CommandList is the ordered output of a Builder for one view.
type CommandList struct {
	Frame    uint64
	View     View
	Commands []Command
}

// Len returns the number of commands.
func (l *CommandList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Commands)
}

// Names returns the pass names in recording order.
func (l *CommandList) Names() []string {
	if l == nil {
		return nil
	}
	names := make([]string, len(l.Commands))
	for i, c := range l.Commands {
		names[i] = c.Name
	}
	return names
}

// String summarises the list for logs.
func (l *CommandList) String() string {
	return fmt.Sprintf("frame %d view %d (%s): %d passes", l.Frame, l.View.Index, l.View.Stereo, l.Len())
}
