package shader

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// ShaderType identifies the pipeline stage a shader source is compiled for.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex shader type, used for vertex processing in render pipelines.
	ShaderTypeVertex

	// ShaderTypeFragment is the fragment shader type, used for fragment processing in pair with a vertex shader.
	ShaderTypeFragment
)

// String returns the lower-case stage name.
func (t ShaderType) String() string {
	switch t {
	case ShaderTypeCompute:
		return "compute"
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	default:
		return fmt.Sprintf("ShaderType(%d)", int(t))
	}
}

// Visibility returns the wgpu stage flag for bindings declared by this shader type.
func (t ShaderType) Visibility() wgpu.ShaderStage {
	switch t {
	case ShaderTypeVertex:
		return wgpu.ShaderStageVertex
	case ShaderTypeFragment:
		return wgpu.ShaderStageFragment
	case ShaderTypeCompute:
		return wgpu.ShaderStageCompute
	default:
		return wgpu.ShaderStageNone
	}
}

// ErrNoEntryPoint is returned when the expanded source has no entry point for the requested stage.
var ErrNoEntryPoint = errors.New("shader: no entry point for stage")

// Descriptor names a shader source and the stage it is compiled for.
type Descriptor struct {
	// Key uniquely identifies the shader, e.g. "VARID.HeightMap".
	Key string
	// VirtualPath is the source path under a registered logical name.
	VirtualPath string
	// Type is the pipeline stage.
	Type ShaderType
}

// shader is the implementation of the Shader interface.
// It holds the expanded source and everything reflected from it.
type shader struct {
	key           string
	source        string
	shaderType    ShaderType
	permutation   Permutation
	includes      []string
	bindings      []ResourceBinding
	layouts       map[int]wgpu.BindGroupLayoutDescriptor
	vertexLayouts []wgpu.VertexBufferLayout
	workGroupSize [3]uint32
	entryPoint    string
	module        *wgpu.ShaderModuleDescriptor
}

// Shader is one compiled permutation of a WGSL source. It exposes the expanded source and
// the reflection the renderer needs to create pipelines and bind groups, and that the pass
// builder uses to validate binding names.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the expanded WGSL source code.
	//
	// Returns:
	//   - string: the WGSL source handed to the GPU compiler
	Source() string

	// Type returns the stage this shader was compiled for.
	//
	// Returns:
	//   - ShaderType: ShaderTypeVertex, ShaderTypeFragment, or ShaderTypeCompute
	Type() ShaderType

	// Permutation returns the defines this variant was compiled with.
	//
	// Returns:
	//   - Permutation: a copy of the permutation
	Permutation() Permutation

	// Includes returns the virtual paths of every file expanded into the source.
	//
	// Returns:
	//   - []string: root file first, then includes in first-seen order
	Includes() []string

	// Bindings returns every reflected resource binding sorted by group and binding.
	//
	// Returns:
	//   - []ResourceBinding: the reflected bindings
	Bindings() []ResourceBinding

	// Binding looks up a reflected binding by WGSL variable name.
	//
	// Parameters:
	//   - name: the variable name
	//
	// Returns:
	//   - ResourceBinding: the binding if found
	//   - bool: false if the shader declares no such binding
	Binding(name string) (ResourceBinding, bool)

	// BindGroupLayoutDescriptors retrieves the layout descriptors reflected from the source.
	// The renderer uses these to create the wgpu.BindGroupLayout GPU objects.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// VertexLayouts retrieves the vertex buffer layouts of a vertex shader.
	//
	// Returns:
	//   - []wgpu.VertexBufferLayout: the layouts in buffer slot order, nil for other stages
	VertexLayouts() []wgpu.VertexBufferLayout

	// EntryPoint returns the entry point name for this shader.
	//
	// Returns:
	//   - string: the entry point name (e.g. "main_cs")
	EntryPoint() string

	// WorkgroupSize returns the workgroup size dimensions for compute shaders.
	// Returns [0, 0, 0] for non-compute shaders and [1, 1, 1] as the default when
	// @workgroup_size is not specified.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// Module returns the wgpu.ShaderModuleDescriptor for this shader.
	//
	// Returns:
	//   - *wgpu.ShaderModuleDescriptor: the descriptor containing the WGSL code and label
	Module() *wgpu.ShaderModuleDescriptor
}

var _ Shader = &shader{}

// Compile expands a shader source with the given permutation and reflects it.
//
// Parameters:
//   - pp: the pre-processor used to expand includes and conditionals
//   - desc: the shader to compile
//   - permutation: the defines selecting the variant
//
// Returns:
//   - Shader: the compiled shader
//   - error: a pre-processor error, or ErrNoEntryPoint
func Compile(pp PreProcessor, desc Descriptor, permutation Permutation) (Shader, error) {
	source, err := pp.Process(desc.VirtualPath, permutation)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", desc.Key, err)
	}

	s := &shader{
		key:         desc.Key,
		source:      source,
		shaderType:  desc.Type,
		permutation: copyPermutation(permutation),
		includes:    append([]string(nil), pp.Includes()...),
	}

	clean := stripComments(source)
	s.entryPoint = parseEntryPoint(clean, desc.Type)
	if s.entryPoint == "" {
		return nil, fmt.Errorf("compile %s: %w %s", desc.Key, ErrNoEntryPoint, desc.Type)
	}
	switch desc.Type {
	case ShaderTypeVertex:
		s.vertexLayouts = parseVertexLayouts(clean)
	case ShaderTypeCompute:
		s.workGroupSize = parseWorkgroupSize(clean)
	}
	s.bindings = parseBindings(clean, desc.Type.Visibility())
	s.layouts = bindGroupLayouts(s.bindings)

	label := desc.Key
	if key := permutation.Key(); key != "" {
		label += "[" + key + "]"
	}
	s.module = &wgpu.ShaderModuleDescriptor{
		Label: label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: source,
		},
	}
	return s, nil
}

func copyPermutation(p Permutation) Permutation {
	if p == nil {
		return nil
	}
	out := make(Permutation, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) Type() ShaderType {
	return s.shaderType
}

func (s *shader) Permutation() Permutation {
	return copyPermutation(s.permutation)
}

func (s *shader) Includes() []string {
	return s.includes
}

func (s *shader) Bindings() []ResourceBinding {
	return s.bindings
}

func (s *shader) Binding(name string) (ResourceBinding, bool) {
	for _, b := range s.bindings {
		if b.Name == name {
			return b, true
		}
	}
	return ResourceBinding{}, false
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.layouts
}

func (s *shader) VertexLayouts() []wgpu.VertexBufferLayout {
	return s.vertexLayouts
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workGroupSize
}

func (s *shader) Module() *wgpu.ShaderModuleDescriptor {
	return s.module
}
