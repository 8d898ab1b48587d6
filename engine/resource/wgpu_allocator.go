package resource

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// GPUTexture is a texture allocated on a wgpu device, with one view per mip level
// and a view over the full mip chain.
type GPUTexture struct {
	desc    Descriptor
	texture *wgpu.Texture
	mips    []*wgpu.TextureView
	full    *wgpu.TextureView
	owned   bool
	once    *sync.Once
}

var _ Resource = &GPUTexture{}

// GPUBuffer is a buffer allocated on a wgpu device.
type GPUBuffer struct {
	desc   Descriptor
	buffer *wgpu.Buffer
	once   *sync.Once
}

var _ Resource = &GPUBuffer{}

// wgpuAllocator is the implementation of an Allocator backed by a wgpu device.
type wgpuAllocator struct {
	device *wgpu.Device
}

var _ Allocator = &wgpuAllocator{}

// NewWGPUAllocator creates an Allocator that creates textures and buffers on the given device.
//
// Parameters:
//   - device: the wgpu device
//
// Returns:
//   - Allocator: the allocator
func NewWGPUAllocator(device *wgpu.Device) Allocator {
	if device == nil {
		panic("resource: wgpu allocator requires a device")
	}
	return &wgpuAllocator{device: device}
}

func (a *wgpuAllocator) Allocate(desc Descriptor) (Resource, error) {
	if desc.Kind == KindBuffer {
		buf, err := a.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: desc.Label,
			Size:  desc.Size,
			Usage: bufferUsage(desc.Usage),
		})
		if err != nil {
			return nil, fmt.Errorf("create buffer %q: %w", desc.Label, err)
		}
		return &GPUBuffer{desc: desc, buffer: buf, once: &sync.Once{}}, nil
	}

	tex, err := a.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              desc.Width,
			Height:             desc.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: desc.MipLevels,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        desc.Format,
		Usage:         textureUsage(desc.Usage),
	})
	if err != nil {
		return nil, fmt.Errorf("create texture %q: %w", desc.Label, err)
	}

	gt, err := newGPUTexture(desc, tex, true)
	if err != nil {
		tex.Release()
		return nil, err
	}
	return gt, nil
}

// WrapTexture wraps a texture owned elsewhere, such as the current surface texture.
// Release frees the views only.
//
// Parameters:
//   - desc: the descriptor matching the texture
//   - tex: the texture
//
// Returns:
//   - *GPUTexture: the wrapped texture
//   - error: if a view cannot be created
func WrapTexture(desc Descriptor, tex *wgpu.Texture) (*GPUTexture, error) {
	return newGPUTexture(desc, tex, false)
}

func newGPUTexture(desc Descriptor, tex *wgpu.Texture, owned bool) (*GPUTexture, error) {
	gt := &GPUTexture{desc: desc, texture: tex, owned: owned, once: &sync.Once{}}

	full, err := tex.CreateView(nil)
	if err != nil {
		return nil, fmt.Errorf("create view %q: %w", desc.Label, err)
	}
	gt.full = full

	for mip := uint32(0); mip < max(desc.MipLevels, 1); mip++ {
		view, err := tex.CreateView(&wgpu.TextureViewDescriptor{
			Label:           fmt.Sprintf("%s mip %d", desc.Label, mip),
			Format:          desc.Format,
			Dimension:       wgpu.TextureViewDimension2D,
			BaseMipLevel:    mip,
			MipLevelCount:   1,
			BaseArrayLayer:  0,
			ArrayLayerCount: 1,
			Aspect:          wgpu.TextureAspectAll,
		})
		if err != nil {
			gt.releaseViews()
			return nil, fmt.Errorf("create view %q mip %d: %w", desc.Label, mip, err)
		}
		gt.mips = append(gt.mips, view)
	}
	return gt, nil
}

func (t *GPUTexture) Descriptor() Descriptor {
	return t.desc
}

// Texture returns the underlying wgpu texture.
func (t *GPUTexture) Texture() *wgpu.Texture {
	return t.texture
}

// View returns the single-mip view of the given level.
func (t *GPUTexture) View(mip int) *wgpu.TextureView {
	if mip < 0 || mip >= len(t.mips) {
		return nil
	}
	return t.mips[mip]
}

// FullView returns the view over every mip level.
func (t *GPUTexture) FullView() *wgpu.TextureView {
	return t.full
}

func (t *GPUTexture) Release() {
	t.once.Do(func() {
		t.releaseViews()
		if t.owned && t.texture != nil {
			t.texture.Release()
		}
	})
}

func (t *GPUTexture) releaseViews() {
	for _, v := range t.mips {
		v.Release()
	}
	t.mips = nil
	if t.full != nil {
		t.full.Release()
		t.full = nil
	}
}

func (b *GPUBuffer) Descriptor() Descriptor {
	return b.desc
}

// Buffer returns the underlying wgpu buffer.
func (b *GPUBuffer) Buffer() *wgpu.Buffer {
	return b.buffer
}

func (b *GPUBuffer) Release() {
	b.once.Do(func() {
		b.buffer.Release()
	})
}

// textureUsage converts usage flags to wgpu texture usage.
func textureUsage(u Usage) wgpu.TextureUsage {
	var out wgpu.TextureUsage
	if u.Has(UsageSampled) {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u.Has(UsageStorage) {
		out |= wgpu.TextureUsageStorageBinding
	}
	if u.Has(UsageRenderTarget) {
		out |= wgpu.TextureUsageRenderAttachment
	}
	if u.Has(UsageCopySrc) {
		out |= wgpu.TextureUsageCopySrc
	}
	if u.Has(UsageCopyDst) {
		out |= wgpu.TextureUsageCopyDst
	}
	return out
}

// bufferUsage converts usage flags to wgpu buffer usage. Every buffer is a copy
// destination so the queue can upload into it.
func bufferUsage(u Usage) wgpu.BufferUsage {
	out := wgpu.BufferUsageCopyDst
	if u.Has(UsageUniform) {
		out |= wgpu.BufferUsageUniform
	}
	if u.Has(UsageStorage) {
		out |= wgpu.BufferUsageStorage
	}
	if u.Has(UsageVertex) {
		out |= wgpu.BufferUsageVertex
	}
	if u.Has(UsageCopySrc) {
		out |= wgpu.BufferUsageCopySrc
	}
	return out
}
