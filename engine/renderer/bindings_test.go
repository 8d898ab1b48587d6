package renderer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-varid/common"
	"github.com/Carmen-Shannon/oxy-varid/engine/pass"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-varid/engine/resource"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func importedTexture(label string, usage resource.Usage) *resource.Handle {
	return resource.Import(resource.Texture2D(label, SceneColorFormat, testSize, 1, usage), nil, true)
}

func TestResolveBindings_Blit(t *testing.T) {
	lib := newHostLibrary(t)
	vs := hostShader(t, lib, ShaderBlitVS)
	fs := hostShader(t, lib, ShaderBlitPS)
	src := importedTexture("SceneColor", sceneColorUsage)
	dst := importedTexture("Surface", resource.UsageRenderTarget)

	cmd := pass.Command{
		Description: blitDescription(pass.View{Viewport: common.RectFromSize(testSize)}, testSize, src, dst, true),
		Vertex:      vs,
		Fragment:    fs,
	}
	sources, err := resolveBindings(cmd, []shader.Shader{vs, fs})
	require.NoError(t, err)
	require.Len(t, sources, 2)

	assert.Equal(t, "in_tex", sources[0].binding.Name)
	assert.Equal(t, sourceTexture, sources[0].kind)
	assert.Same(t, src, sources[0].handle)
	assert.Equal(t, "in_sampler", sources[1].binding.Name)
	assert.Equal(t, sourceSampler, sources[1].kind)
	assert.Equal(t, pass.SamplerBilinear, sources[1].sampler)
}

func TestResolveBindings_ComputeOutputsAreTextures(t *testing.T) {
	lib := newHostLibrary(t)
	cs := hostShader(t, lib, ShaderTestPattern)
	out := importedTexture("SceneColor", sceneColorUsage)
	params := make([]byte, 32)

	cmd := pass.Command{
		Description: pass.Description{
			Name:     "Engine.TestPattern",
			Kind:     pass.KindCompute,
			Shader:   ShaderTestPattern,
			Outputs:  []pass.Binding{{Name: "out_tex", Handle: out}},
			Uniforms: []pass.DataBinding{{Name: "params", Data: params}},
			Dispatch: [3]uint32{1, 1, 1},
		},
		Compute: cs,
	}
	sources, err := resolveBindings(cmd, []shader.Shader{cs})
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, sourceUniform, sources[0].kind)
	assert.Equal(t, uint64(32), sources[0].binding.Layout.Buffer.MinBindingSize)
	assert.Equal(t, sourceTexture, sources[1].kind)
	assert.Same(t, out, sources[1].handle)

	cmd.Uniforms = nil
	_, err = resolveBindings(cmd, []shader.Shader{cs})
	assert.ErrorIs(t, err, ErrUnboundResource)
}

func TestUploadSize(t *testing.T) {
	assert.Equal(t, uint64(16), uploadSize(nil, 0))
	assert.Equal(t, uint64(32), uploadSize(make([]byte, 20), 0))
	assert.Equal(t, uint64(48), uploadSize(make([]byte, 8), 48))

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 4096).Draw(t, "len")
		minSize := rapid.Uint64Range(0, 4096).Draw(t, "min")
		size := uploadSize(make([]byte, n), minSize)
		if size%16 != 0 || size < uint64(n) || size < minSize || size == 0 {
			t.Fatalf("uploadSize(%d, %d) = %d", n, minSize, size)
		}
		if size >= max(uint64(n), minSize, 16)+16 {
			t.Fatalf("uploadSize(%d, %d) = %d over-allocates", n, minSize, size)
		}
	})
}

func TestMergeBindGroupLayouts_ORsVisibility(t *testing.T) {
	a := map[int]wgpu.BindGroupLayoutDescriptor{
		0: {Entries: []wgpu.BindGroupLayoutEntry{{Binding: 1, Visibility: wgpu.ShaderStageVertex}}},
	}
	b := map[int]wgpu.BindGroupLayoutDescriptor{
		0: {Entries: []wgpu.BindGroupLayoutEntry{
			{Binding: 1, Visibility: wgpu.ShaderStageFragment},
			{Binding: 0, Visibility: wgpu.ShaderStageFragment},
		}},
		1: {Entries: []wgpu.BindGroupLayoutEntry{{Binding: 0, Visibility: wgpu.ShaderStageFragment}}},
	}

	merged := mergeBindGroupLayouts(a, b)
	require.Len(t, merged, 2)
	entries := merged[0].Entries
	require.Len(t, entries, 2)
	assert.Equal(t, uint32(0), entries[0].Binding)
	assert.Equal(t, uint32(1), entries[1].Binding)
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, entries[1].Visibility)
}

func TestTextureView_NoGPUResource(t *testing.T) {
	_, err := textureView(importedTexture("Virtual", resource.UsageSampled), 0)
	assert.ErrorIs(t, err, ErrNoGPUResource)
}
