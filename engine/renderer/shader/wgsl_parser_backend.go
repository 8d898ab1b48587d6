package shader

import (
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgslPrimitiveLayoutMap holds size and alignment of the host-shareable WGSL types used by
// pass parameter blocks.
var wgslPrimitiveLayoutMap = map[string]wgslTypeLayout{
	"f32": {4, 4}, "i32": {4, 4}, "u32": {4, 4}, "f16": {2, 2},

	"vec2<f32>": {8, 8}, "vec2f": {8, 8},
	"vec2<i32>": {8, 8}, "vec2i": {8, 8},
	"vec2<u32>": {8, 8}, "vec2u": {8, 8},
	"vec3<f32>": {12, 16}, "vec3f": {12, 16},
	"vec3<i32>": {12, 16}, "vec3i": {12, 16},
	"vec3<u32>": {12, 16}, "vec3u": {12, 16},
	"vec4<f32>": {16, 16}, "vec4f": {16, 16},
	"vec4<i32>": {16, 16}, "vec4i": {16, 16},
	"vec4<u32>": {16, 16}, "vec4u": {16, 16},

	"mat3x3<f32>": {48, 16},
	"mat4x4<f32>": {64, 16},

	"atomic<u32>": {4, 4}, "atomic<i32>": {4, 4},
}

// roundUpAlign rounds value up to the next multiple of a power-of-two alignment.
func roundUpAlign(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// resolveTypeLayout resolves a WGSL type to its size and alignment. Runtime-sized arrays
// resolve to one element stride, which is the smallest useful binding.
//
// Parameters:
//   - typeName: the WGSL type, e.g. "PassParams" or "array<MapPoint, 256>"
//   - known: struct layouts resolved so far
//
// Returns:
//   - wgslTypeLayout: the layout
//   - bool: false for unknown types
func resolveTypeLayout(typeName string, known map[string]wgslTypeLayout) (wgslTypeLayout, bool) {
	if l, ok := wgslPrimitiveLayoutMap[typeName]; ok {
		return l, true
	}
	if l, ok := known[typeName]; ok {
		return l, true
	}
	base, params := splitTypeParams(typeName)
	if base != "array" || params == "" {
		return wgslTypeLayout{}, false
	}

	parts := splitAtTopLevelCommas(params)
	elem, ok := resolveTypeLayout(strings.TrimSpace(parts[0]), known)
	if !ok {
		return wgslTypeLayout{}, false
	}
	stride := roundUpAlign(elem.align, elem.size)
	if len(parts) == 1 {
		return wgslTypeLayout{stride, elem.align}, true
	}
	count, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return wgslTypeLayout{}, false
	}
	return wgslTypeLayout{count * stride, elem.align}, true
}

// computeStructSizes lays out every struct, resolving structs that nest other structs over
// repeated passes until no more progress is made.
func computeStructSizes(structs []parsedStruct) map[string]wgslTypeLayout {
	resolved := make(map[string]wgslTypeLayout, len(structs))
	pending := append([]parsedStruct(nil), structs...)

	for len(pending) > 0 {
		var unresolved []parsedStruct
		for _, ps := range pending {
			if l, ok := computeStructLayout(ps, resolved); ok {
				resolved[ps.name] = l
			} else {
				unresolved = append(unresolved, ps)
			}
		}
		if len(unresolved) == len(pending) {
			break
		}
		pending = unresolved
	}
	return resolved
}

// computeStructLayout places each non-builtin field at its aligned offset and rounds the
// total to the largest member alignment.
func computeStructLayout(ps parsedStruct, known map[string]wgslTypeLayout) (wgslTypeLayout, bool) {
	var offset uint64
	align := uint64(1)
	for _, f := range ps.fields {
		if f.isBuiltin {
			continue
		}
		l, ok := resolveTypeLayout(f.typeName, known)
		if !ok {
			return wgslTypeLayout{}, false
		}
		offset = roundUpAlign(l.align, offset) + l.size
		align = max(align, l.align)
	}
	return wgslTypeLayout{roundUpAlign(align, offset), align}, true
}

// classifyResource fills the kind, access, format and layout entry of a reflected binding
// from its address space and type.
//
// Parameters:
//   - b: the binding with Group, Binding, Name and TypeName already set
//   - visibility: the shader stage visibility flag
//   - addressSpace: e.g. "uniform" or "storage, read_write", empty for handle types
func classifyResource(b *ResourceBinding, visibility wgpu.ShaderStage, addressSpace string) {
	b.Layout = wgpu.BindGroupLayoutEntry{Binding: uint32(b.Binding), Visibility: visibility}

	if addressSpace != "" {
		space, access, _ := strings.Cut(addressSpace, ",")
		switch strings.TrimSpace(space) {
		case "uniform":
			b.Kind = BindingKindUniformBuffer
			b.Layout.Buffer.Type = wgpu.BufferBindingTypeUniform
		case "storage":
			b.Kind = BindingKindStorageBuffer
			if strings.TrimSpace(access) == "read_write" {
				b.Access = AccessReadWrite
				b.Layout.Buffer.Type = wgpu.BufferBindingTypeStorage
			} else {
				b.Layout.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
			}
		}
		return
	}

	base, params := splitTypeParams(b.TypeName)
	switch {
	case base == "sampler":
		b.Kind = BindingKindSampler
		b.Layout.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case base == "sampler_comparison":
		b.Kind = BindingKindSampler
		b.Layout.Sampler.Type = wgpu.SamplerBindingTypeComparison
	case strings.HasPrefix(base, "texture_storage_"):
		b.Kind = BindingKindStorageTexture
		b.Layout.StorageTexture.ViewDimension = wgslStorageTextureDimMap[base]
		format, access, _ := strings.Cut(params, ",")
		b.Format = wgslTexelFormatMap[strings.TrimSpace(format)]
		b.Layout.StorageTexture.Format = b.Format
		if a, ok := wgslStorageAccessMap[strings.TrimSpace(access)]; ok {
			b.Access = a.access
			b.Layout.StorageTexture.Access = a.texture
		}
	case strings.HasPrefix(base, "texture_depth_"):
		b.Kind = BindingKindSampledTexture
		b.Layout.Texture.SampleType = wgpu.TextureSampleTypeDepth
		b.Layout.Texture.ViewDimension = wgslSampledTextureMap[base].viewDimension
	case strings.HasPrefix(base, "texture_"):
		b.Kind = BindingKindSampledTexture
		info := wgslSampledTextureMap[base]
		b.Layout.Texture.ViewDimension = info.viewDimension
		b.Layout.Texture.Multisampled = info.multisampled
		b.Layout.Texture.SampleType = wgslSampleTypeMap[params]
	}
}

// splitTypeParams splits "texture_2d<f32>" into ("texture_2d", "f32").
func splitTypeParams(typeName string) (string, string) {
	base, params, ok := strings.Cut(typeName, "<")
	if !ok {
		return strings.TrimSpace(typeName), ""
	}
	i := strings.LastIndex(params, ">")
	if i >= 0 {
		params = params[:i]
	}
	return strings.TrimSpace(base), strings.TrimSpace(params)
}

// stripComments removes line comments and nested block comments from WGSL source.
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		if i+1 < len(source) {
			pair := source[i : i+2]
			switch {
			case pair == "/*":
				depth++
				i++
				continue
			case pair == "*/" && depth > 0:
				depth--
				i++
				continue
			case pair == "//" && depth == 0:
				for i < len(source) && source[i] != '\n' {
					i++
				}
				if i < len(source) {
					sb.WriteByte('\n')
				}
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}

// isVertexInputStruct reports whether a struct carries @location fields and no builtins,
// which separates vertex inputs from stage outputs that include @builtin(position).
func isVertexInputStruct(ps parsedStruct) bool {
	located := false
	for _, f := range ps.fields {
		if f.isBuiltin {
			return false
		}
		located = located || f.location >= 0
	}
	return located
}

// buildVertexBufferLayout packs the struct fields tightly in declaration order.
func buildVertexBufferLayout(ps parsedStruct) (wgpu.VertexBufferLayout, bool) {
	attrs := make([]wgpu.VertexAttribute, 0, len(ps.fields))
	var stride uint64
	for _, f := range ps.fields {
		info, ok := wgslVertexFormatMap[f.typeName]
		if !ok {
			return wgpu.VertexBufferLayout{}, false
		}
		attrs = append(attrs, wgpu.VertexAttribute{
			Format:         info.format,
			Offset:         stride,
			ShaderLocation: uint32(f.location),
		})
		stride += info.size
	}
	return wgpu.VertexBufferLayout{
		ArrayStride: stride,
		StepMode:    wgpu.VertexStepModeVertex,
		Attributes:  attrs,
	}, true
}

// splitAtTopLevelCommas splits on commas outside angle brackets, so "array<MapPoint, 256>"
// stays in one piece.
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
