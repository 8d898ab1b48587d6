package shader

import (
	"testing"
	"testing/fstest"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testComputeSource = `
// parameters shared by every pass
struct PassParams {
    offset: vec2<i32>,
    texel_size: vec2<f32>,
    origin_offset: f32,
    num_points: u32,
    pass_counter: i32,
    max_mip: f32,
}

struct MapPoint {
    x: f32,
    y: f32,
    value: f32,
    padding: f32,
}

@group(0) @binding(0) var<uniform> params: PassParams;
@group(0) @binding(1) var<storage, read> points: array<MapPoint>;
@group(0) @binding(3) var in_sampled: texture_2d<f32>;
@group(0) @binding(2) var in_tex: texture_2d<f32>;
@group(0) @binding(4) var linear_sampler: sampler;
@group(0) @binding(5) var out_tex: texture_storage_2d<r32float, write>;
/* @group(1) @binding(0) var disabled: texture_2d<f32>; */

@compute @workgroup_size(8, 8, 1)
fn main_cs(@builtin(global_invocation_id) id: vec3<u32>) {
    let a = textureLoad(in_tex, vec2<i32>(id.xy), 0);
    let b = textureSampleLevel(in_sampled, linear_sampler, vec2<f32>(0.5, 0.5), 0.0);
    textureStore(out_tex, vec2<i32>(id.xy), a + b);
}
`

const testVertexSource = `
struct VertexInput {
    @location(0) position: vec2<f32>,
    @location(1) uv: vec2<f32>,
}

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@vertex
fn main_vs(in: VertexInput) -> VertexOutput {
    var out: VertexOutput;
    out.position = vec4<f32>(in.position, 0.0, 1.0);
    out.uv = in.uv;
    return out;
}
`

func compileTest(t *testing.T, source string, typ ShaderType) (Shader, error) {
	t.Helper()
	reg := NewSourceRegistry()
	require.NoError(t, reg.RegisterFS("/Test", fstest.MapFS{"S.wgsl": {Data: []byte(source)}}))
	return Compile(NewPreProcessor(reg), Descriptor{Key: "Test.S", VirtualPath: "/Test/S.wgsl", Type: typ}, nil)
}

func TestCompile_ComputeReflection(t *testing.T) {
	s, err := compileTest(t, testComputeSource, ShaderTypeCompute)
	require.NoError(t, err)

	assert.Equal(t, "main_cs", s.EntryPoint())
	assert.Equal(t, [3]uint32{8, 8, 1}, s.WorkgroupSize())
	assert.Nil(t, s.VertexLayouts())

	bindings := s.Bindings()
	require.Len(t, bindings, 6)
	for i, b := range bindings {
		assert.Equal(t, 0, b.Group)
		assert.Equal(t, i, b.Binding, "bindings sorted by index")
		assert.Equal(t, wgpu.ShaderStageCompute, b.Layout.Visibility)
	}

	params, ok := s.Binding("params")
	require.True(t, ok)
	assert.Equal(t, BindingKindUniformBuffer, params.Kind)
	assert.Equal(t, uint64(32), params.Layout.Buffer.MinBindingSize)
	assert.True(t, params.Readable())
	assert.False(t, params.Writable())

	points, ok := s.Binding("points")
	require.True(t, ok)
	assert.Equal(t, BindingKindStorageBuffer, points.Kind)
	assert.Equal(t, wgpu.BufferBindingTypeReadOnlyStorage, points.Layout.Buffer.Type)
	assert.Equal(t, uint64(16), points.Layout.Buffer.MinBindingSize)

	loaded, _ := s.Binding("in_tex")
	assert.Equal(t, BindingKindSampledTexture, loaded.Kind)
	assert.Equal(t, wgpu.TextureSampleTypeUnfilterableFloat, loaded.Layout.Texture.SampleType)

	sampled, _ := s.Binding("in_sampled")
	assert.Equal(t, wgpu.TextureSampleTypeFloat, sampled.Layout.Texture.SampleType)

	smp, _ := s.Binding("linear_sampler")
	assert.Equal(t, BindingKindSampler, smp.Kind)

	out, ok := s.Binding("out_tex")
	require.True(t, ok)
	assert.Equal(t, BindingKindStorageTexture, out.Kind)
	assert.Equal(t, wgpu.TextureFormatR32Float, out.Format)
	assert.Equal(t, wgpu.StorageTextureAccessWriteOnly, out.Layout.StorageTexture.Access)
	assert.True(t, out.Writable())
	assert.False(t, out.Readable())

	_, ok = s.Binding("disabled")
	assert.False(t, ok, "commented-out declarations are ignored")

	layouts := s.BindGroupLayoutDescriptors()
	require.Contains(t, layouts, 0)
	assert.Len(t, layouts[0].Entries, 6)
	assert.Equal(t, "Test.S", s.Module().Label)
}

func TestCompile_VertexLayouts(t *testing.T) {
	s, err := compileTest(t, testVertexSource, ShaderTypeVertex)
	require.NoError(t, err)

	assert.Equal(t, "main_vs", s.EntryPoint())
	layouts := s.VertexLayouts()
	require.Len(t, layouts, 1, "output struct with a builtin is not a vertex input")
	assert.Equal(t, uint64(16), layouts[0].ArrayStride)
	require.Len(t, layouts[0].Attributes, 2)
	assert.Equal(t, wgpu.VertexFormatFloat32x2, layouts[0].Attributes[1].Format)
	assert.Equal(t, uint64(8), layouts[0].Attributes[1].Offset)
	assert.Equal(t, uint32(1), layouts[0].Attributes[1].ShaderLocation)
	assert.Equal(t, [3]uint32{}, s.WorkgroupSize())
}

func TestCompile_MissingEntryPoint(t *testing.T) {
	_, err := compileTest(t, testComputeSource, ShaderTypeFragment)
	assert.ErrorIs(t, err, ErrNoEntryPoint)
}

func TestCompile_WorkgroupSizeDefaults(t *testing.T) {
	assert.Equal(t, [3]uint32{64, 1, 1}, parseWorkgroupSize("@compute @workgroup_size(64) fn f() {}"))
	assert.Equal(t, [3]uint32{1, 1, 1}, parseWorkgroupSize("fn f() {}"))
}

func TestResolveTypeLayout_Arrays(t *testing.T) {
	known := computeStructSizes(parseStructBlocks("struct MapPoint { x: f32, y: f32, value: f32, padding: f32, }"))

	l, ok := resolveTypeLayout("array<MapPoint, 256>", known)
	require.True(t, ok)
	assert.Equal(t, uint64(256*16), l.size)

	l, ok = resolveTypeLayout("array<vec3<f32>, 2>", known)
	require.True(t, ok)
	assert.Equal(t, uint64(32), l.size)

	_, ok = resolveTypeLayout("Unknown", known)
	assert.False(t, ok)
}
