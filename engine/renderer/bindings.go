package renderer

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-varid/engine/pass"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-varid/engine/resource"
	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// ErrUnresolvedShader is returned for a command recorded without compiled shaders.
	ErrUnresolvedShader = errors.New("renderer: command has no compiled shaders")
	// ErrUnboundResource is returned when a reflected binding has no resource in the command.
	ErrUnboundResource = errors.New("renderer: reflected binding has no resource")
	// ErrNoGPUResource is returned when a handle is not backed by a wgpu texture or buffer.
	ErrNoGPUResource = errors.New("renderer: handle has no GPU resource")
)

// sourceKind says where the resource of a binding comes from.
type sourceKind int

const (
	sourceTexture sourceKind = iota
	sourceSampler
	sourceUniform
	sourceStorage
)

// bindingSource pairs a reflected binding with the command resource feeding it.
type bindingSource struct {
	binding shader.ResourceBinding
	kind    sourceKind
	handle  *resource.Handle
	mip     int
	sampler pass.SamplerKind
	data    []byte
}

// resolveBindings matches every binding the stages declare with the resource the command
// supplies under the same name. Bindings shared by several stages appear once. The result is
// sorted by group then binding.
func resolveBindings(cmd pass.Command, stages []shader.Shader) ([]bindingSource, error) {
	textures := make(map[string]pass.Binding)
	for _, in := range cmd.Inputs {
		textures[in.Name] = in
	}
	if cmd.Kind == pass.KindCompute {
		for _, out := range cmd.Outputs {
			textures[out.Name] = out
		}
	}
	samplers := make(map[string]pass.SamplerKind)
	for _, s := range cmd.Samplers {
		samplers[s.Name] = s.Sampler
	}
	uniforms := make(map[string][]byte)
	for _, u := range cmd.Uniforms {
		uniforms[u.Name] = u.Data
	}
	buffers := make(map[string][]byte)
	for _, b := range cmd.Buffers {
		buffers[b.Name] = b.Data
	}

	type slot struct{ group, binding int }
	seen := make(map[slot]bool)
	var out []bindingSource
	for _, s := range stages {
		for _, rb := range s.Bindings() {
			key := slot{rb.Group, rb.Binding}
			if seen[key] {
				continue
			}
			seen[key] = true

			src := bindingSource{binding: rb}
			switch rb.Kind {
			case shader.BindingKindSampledTexture, shader.BindingKindStorageTexture:
				t, ok := textures[rb.Name]
				if !ok {
					return nil, fmt.Errorf("%w: %s.%s", ErrUnboundResource, cmd.Name, rb.Name)
				}
				src.kind, src.handle, src.mip = sourceTexture, t.Handle, t.Mip
			case shader.BindingKindSampler:
				k, ok := samplers[rb.Name]
				if !ok {
					return nil, fmt.Errorf("%w: %s.%s", ErrUnboundResource, cmd.Name, rb.Name)
				}
				src.kind, src.sampler = sourceSampler, k
			case shader.BindingKindUniformBuffer:
				d, ok := uniforms[rb.Name]
				if !ok {
					return nil, fmt.Errorf("%w: %s.%s", ErrUnboundResource, cmd.Name, rb.Name)
				}
				src.kind, src.data = sourceUniform, d
			case shader.BindingKindStorageBuffer:
				d, ok := buffers[rb.Name]
				if !ok {
					return nil, fmt.Errorf("%w: %s.%s", ErrUnboundResource, cmd.Name, rb.Name)
				}
				src.kind, src.data = sourceStorage, d
			default:
				return nil, fmt.Errorf("%w: %s.%s has unsupported kind %s", ErrUnboundResource, cmd.Name, rb.Name, rb.Kind)
			}
			out = append(out, src)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].binding.Group != out[j].binding.Group {
			return out[i].binding.Group < out[j].binding.Group
		}
		return out[i].binding.Binding < out[j].binding.Binding
	})
	return out, nil
}

// uploadSize rounds a data binding up to the 16 byte alignment uniform and storage buffers
// need, and to at least the reflected minimum binding size.
func uploadSize(data []byte, minSize uint64) uint64 {
	size := max(uint64(len(data)), minSize, 16)
	return (size + 15) &^ 15
}

// textureView picks the view of a pooled texture a binding refers to.
func textureView(h *resource.Handle, mip int) (*wgpu.TextureView, error) {
	t, ok := h.Texture()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoGPUResource, h.Descriptor().Label)
	}
	if mip == pass.AllMips {
		return t.FullView(), nil
	}
	v := t.View(mip)
	if v == nil {
		return nil, fmt.Errorf("%w: %s has no mip %d", ErrNoGPUResource, h.Descriptor().Label, mip)
	}
	return v, nil
}

// stageLayouts returns the merged bind group layouts of a command's stages, keyed by group.
func stageLayouts(stages []shader.Shader) map[int]wgpu.BindGroupLayoutDescriptor {
	merged := make(map[int]wgpu.BindGroupLayoutDescriptor)
	for _, s := range stages {
		merged = mergeBindGroupLayouts(merged, s.BindGroupLayoutDescriptors())
	}
	return merged
}

// mergeBindGroupLayouts combines bind group layout descriptors from two shader stages
// into a unified set of descriptors suitable for a render pipeline layout.
//
// For each group index present in either set:
//   - Entries with the same binding number have their Visibility flags ORed together
//   - Entries unique to one set are included with their original visibility
//
// Parameters:
//   - a: bind group layout descriptors of the first stage
//   - b: bind group layout descriptors of the second stage
//
// Returns:
//   - map[int]wgpu.BindGroupLayoutDescriptor: the merged descriptors keyed by group index
func mergeBindGroupLayouts(a, b map[int]wgpu.BindGroupLayoutDescriptor) map[int]wgpu.BindGroupLayoutDescriptor {
	merged := make(map[int]wgpu.BindGroupLayoutDescriptor, len(a)+len(b))
	for g, desc := range a {
		merged[g] = desc
	}

	for g, desc := range b {
		existing, ok := merged[g]
		if !ok {
			merged[g] = desc
			continue
		}

		entryMap := make(map[uint32]wgpu.BindGroupLayoutEntry)
		for _, e := range existing.Entries {
			entryMap[e.Binding] = e
		}
		for _, e := range desc.Entries {
			if prev, ok := entryMap[e.Binding]; ok {
				prev.Visibility |= e.Visibility
				entryMap[e.Binding] = prev
			} else {
				entryMap[e.Binding] = e
			}
		}

		entries := make([]wgpu.BindGroupLayoutEntry, 0, len(entryMap))
		for _, e := range entryMap {
			entries = append(entries, e)
		}
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Binding < entries[j].Binding
		})
		merged[g] = wgpu.BindGroupLayoutDescriptor{Label: existing.Label, Entries: entries}
	}
	return merged
}
