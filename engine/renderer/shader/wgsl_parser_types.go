package shader

import "github.com/cogentcore/webgpu/wgpu"

// BindingKind classifies a @group/@binding resource declared in WGSL.
type BindingKind int

const (
	// BindingKindUnknown is a declaration whose type could not be classified.
	BindingKindUnknown BindingKind = iota
	// BindingKindUniformBuffer is a var<uniform> buffer.
	BindingKindUniformBuffer
	// BindingKindStorageBuffer is a var<storage, ...> buffer.
	BindingKindStorageBuffer
	// BindingKindSampledTexture is a texture_* handle read through textureLoad or textureSample.
	BindingKindSampledTexture
	// BindingKindStorageTexture is a texture_storage_* handle.
	BindingKindStorageTexture
	// BindingKindSampler is a sampler or sampler_comparison handle.
	BindingKindSampler
)

// String returns the WGSL-flavoured name of the kind.
func (k BindingKind) String() string {
	switch k {
	case BindingKindUniformBuffer:
		return "uniform"
	case BindingKindStorageBuffer:
		return "storage"
	case BindingKindSampledTexture:
		return "texture"
	case BindingKindStorageTexture:
		return "texture_storage"
	case BindingKindSampler:
		return "sampler"
	default:
		return "unknown"
	}
}

// StorageAccess is the access mode of a storage buffer or storage texture.
type StorageAccess int

const (
	AccessRead StorageAccess = iota
	AccessWrite
	AccessReadWrite
)

// ResourceBinding is one @group(G) @binding(B) declaration reflected from WGSL source.
type ResourceBinding struct {
	// Group is the bind group index.
	Group int
	// Binding is the binding index within the group.
	Binding int
	// Name is the WGSL variable name. Pass descriptions refer to bindings by this name.
	Name string
	// TypeName is the declared WGSL type, e.g. "texture_storage_2d<r32float, write>".
	TypeName string
	// Kind classifies the resource.
	Kind BindingKind
	// Access is the access mode for storage buffers and storage textures. AccessRead otherwise.
	Access StorageAccess
	// Format is the texel format of a storage texture, undefined for every other kind.
	Format wgpu.TextureFormat
	// Layout is the bind group layout entry derived from the declaration.
	Layout wgpu.BindGroupLayoutEntry
}

// Readable reports whether a shader can read from the binding.
func (b ResourceBinding) Readable() bool {
	switch b.Kind {
	case BindingKindUniformBuffer, BindingKindSampledTexture, BindingKindSampler:
		return true
	case BindingKindStorageBuffer, BindingKindStorageTexture:
		return b.Access != AccessWrite
	default:
		return false
	}
}

// Writable reports whether a shader can write to the binding.
func (b ResourceBinding) Writable() bool {
	switch b.Kind {
	case BindingKindStorageBuffer, BindingKindStorageTexture:
		return b.Access != AccessRead
	default:
		return false
	}
}

// IsTexture reports whether the binding is a sampled or storage texture.
func (b ResourceBinding) IsTexture() bool {
	return b.Kind == BindingKindSampledTexture || b.Kind == BindingKindStorageTexture
}

// IsBuffer reports whether the binding is a uniform or storage buffer.
func (b ResourceBinding) IsBuffer() bool {
	return b.Kind == BindingKindUniformBuffer || b.Kind == BindingKindStorageBuffer
}

// vertexFormatInfo holds the wgpu vertex format and its byte size for offset calculation
type vertexFormatInfo struct {
	format wgpu.VertexFormat
	size   uint64
}

// sampledTextureInfo holds the view dimension and multisampled flag for a sampled texture type
type sampledTextureInfo struct {
	viewDimension wgpu.TextureViewDimension
	multisampled  bool
}

// wgslTypeLayout holds the byte size and alignment for a WGSL type.
// Used to compute MinBindingSize for buffer bindings.
type wgslTypeLayout struct {
	size  uint64
	align uint64
}

// parsedField represents a single field extracted from a WGSL struct during parsing
type parsedField struct {
	name      string
	typeName  string
	location  int
	isBuiltin bool
}

// parsedStruct represents a WGSL struct block extracted during parsing
type parsedStruct struct {
	name   string
	fields []parsedField
}
