package resource

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-varid/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrInvalidDescriptor is returned when a descriptor cannot describe any real resource.
var ErrInvalidDescriptor = errors.New("resource: invalid descriptor")

// Kind distinguishes textures from buffers.
type Kind int

const (
	// KindTexture is a 2D texture, optionally with a mip chain.
	KindTexture Kind = iota
	// KindBuffer is a linear GPU buffer.
	KindBuffer
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	if k == KindBuffer {
		return "buffer"
	}
	return "texture"
}

// Usage is a set of flags describing how a resource is bound.
type Usage uint32

const (
	// UsageSampled allows shader reads through texture bindings.
	UsageSampled Usage = 1 << iota
	// UsageStorage allows shader writes through storage texture or storage buffer bindings.
	UsageStorage
	// UsageRenderTarget allows use as a raster color attachment.
	UsageRenderTarget
	// UsageCopySrc allows use as a copy source.
	UsageCopySrc
	// UsageCopyDst allows use as a copy destination.
	UsageCopyDst
	// UsageUniform allows use as a uniform buffer.
	UsageUniform
	// UsageVertex allows use as a vertex buffer.
	UsageVertex
)

var usageNames = []struct {
	flag Usage
	name string
}{
	{UsageSampled, "sampled"},
	{UsageStorage, "storage"},
	{UsageRenderTarget, "render_target"},
	{UsageCopySrc, "copy_src"},
	{UsageCopyDst, "copy_dst"},
	{UsageUniform, "uniform"},
	{UsageVertex, "vertex"},
}

// Has reports whether every flag in f is set.
func (u Usage) Has(f Usage) bool {
	return u&f == f
}

// String returns the set flags joined with "|".
func (u Usage) String() string {
	if u == 0 {
		return "none"
	}
	var parts []string
	for _, n := range usageNames {
		if u.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Writable reports whether the usage allows the resource to be a pass output.
func (u Usage) Writable() bool {
	return u&(UsageStorage|UsageRenderTarget) != 0
}

// bytesPerTexel holds the texel size of the formats the passes allocate.
var bytesPerTexel = map[wgpu.TextureFormat]uint64{
	wgpu.TextureFormatR8Unorm:     1,
	wgpu.TextureFormatR16Float:    2,
	wgpu.TextureFormatR32Float:    4,
	wgpu.TextureFormatRG16Float:   4,
	wgpu.TextureFormatRGBA8Unorm:  4,
	wgpu.TextureFormatBGRA8Unorm:  4,
	wgpu.TextureFormatRG32Float:   8,
	wgpu.TextureFormatRGBA16Float: 8,
	wgpu.TextureFormatRGBA32Float: 16,
}

// Descriptor describes a transient texture or buffer.
type Descriptor struct {
	// Label is a debug name. It does not take part in pooling.
	Label string
	// Kind selects texture or buffer.
	Kind Kind
	// Format is the texel format of a texture.
	Format wgpu.TextureFormat
	// Width and Height are the extent of mip 0.
	Width  uint32
	Height uint32
	// MipLevels is the number of mip levels, at least 1 for textures.
	MipLevels uint32
	// Size is the byte size of a buffer.
	Size uint64
	// Usage is the set of bindings the resource is created for.
	Usage Usage
}

// Shape is a Descriptor without its label. Resources of equal shape are interchangeable.
type Shape struct {
	Kind      Kind
	Format    wgpu.TextureFormat
	Width     uint32
	Height    uint32
	MipLevels uint32
	Size      uint64
	Usage     Usage
}

// String returns a compact description used in logs.
func (s Shape) String() string {
	if s.Kind == KindBuffer {
		return fmt.Sprintf("buffer[%d %s]", s.Size, s.Usage)
	}
	return fmt.Sprintf("texture[%dx%d mips=%d fmt=%d %s]", s.Width, s.Height, s.MipLevels, s.Format, s.Usage)
}

// Texture2D describes a 2D texture.
//
// Parameters:
//   - label: debug name
//   - format: texel format
//   - size: extent of mip 0
//   - mips: number of mip levels
//   - usage: binding flags
//
// Returns:
//   - Descriptor: the texture descriptor
func Texture2D(label string, format wgpu.TextureFormat, size common.IntPoint, mips int, usage Usage) Descriptor {
	return Descriptor{
		Label:     label,
		Kind:      KindTexture,
		Format:    format,
		Width:     uint32(max(size.X, 0)),
		Height:    uint32(max(size.Y, 0)),
		MipLevels: uint32(max(mips, 0)),
		Usage:     usage,
	}
}

// Buffer describes a linear buffer.
//
// Parameters:
//   - label: debug name
//   - size: byte size
//   - usage: binding flags
//
// Returns:
//   - Descriptor: the buffer descriptor
func Buffer(label string, size uint64, usage Usage) Descriptor {
	return Descriptor{Label: label, Kind: KindBuffer, Size: size, Usage: usage}
}

// Shape returns the pooling key of the descriptor.
func (d Descriptor) Shape() Shape {
	return Shape{
		Kind:      d.Kind,
		Format:    d.Format,
		Width:     d.Width,
		Height:    d.Height,
		MipLevels: d.MipLevels,
		Size:      d.Size,
		Usage:     d.Usage,
	}
}

// Extent returns the size of mip 0.
func (d Descriptor) Extent() common.IntPoint {
	return common.IntPoint{X: int(d.Width), Y: int(d.Height)}
}

// ByteSize estimates the memory held by the resource, including every mip level.
func (d Descriptor) ByteSize() uint64 {
	if d.Kind == KindBuffer {
		return d.Size
	}
	texel, ok := bytesPerTexel[d.Format]
	if !ok {
		texel = 4
	}
	var total uint64
	for mip := range int(d.MipLevels) {
		total += uint64(common.MipExtent(d.Width, mip)) * uint64(common.MipExtent(d.Height, mip))
	}
	return total * texel
}

// Validate checks that the descriptor describes a resource a device could create.
//
// Returns:
//   - error: ErrInvalidDescriptor describing the first problem found
func (d Descriptor) Validate() error {
	switch d.Kind {
	case KindTexture:
		if d.Width == 0 || d.Height == 0 {
			return fmt.Errorf("%w: %q has zero extent %dx%d", ErrInvalidDescriptor, d.Label, d.Width, d.Height)
		}
		if d.MipLevels == 0 {
			return fmt.Errorf("%w: %q has no mip levels", ErrInvalidDescriptor, d.Label)
		}
		if limit := uint32(common.NumMips1D(max(d.Width, d.Height))) + 1; d.MipLevels > limit {
			return fmt.Errorf("%w: %q requests %d mips, %dx%d allows %d", ErrInvalidDescriptor, d.Label, d.MipLevels, d.Width, d.Height, limit)
		}
		if d.Format == wgpu.TextureFormatUndefined {
			return fmt.Errorf("%w: %q has no format", ErrInvalidDescriptor, d.Label)
		}
	case KindBuffer:
		if d.Size == 0 {
			return fmt.Errorf("%w: %q has zero size", ErrInvalidDescriptor, d.Label)
		}
	default:
		return fmt.Errorf("%w: %q has unknown kind %d", ErrInvalidDescriptor, d.Label, d.Kind)
	}
	if d.Usage == 0 {
		return fmt.Errorf("%w: %q has no usage", ErrInvalidDescriptor, d.Label)
	}
	return nil
}
