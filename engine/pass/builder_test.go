package pass

import (
	"testing"
	"testing/fstest"

	"github.com/Carmen-Shannon/oxy-varid/common"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-varid/engine/resource"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBlurSource = `
struct PassParams {
    offset: vec2<i32>,
    texel_size: vec2<f32>,
}
@group(0) @binding(0) var<uniform> params: PassParams;
@group(0) @binding(1) var in_tex: texture_2d<f32>;
@group(0) @binding(2) var out_tex: texture_storage_2d<rgba16float, write>;

@compute @workgroup_size(8, 8, 1)
fn main_cs(@builtin(global_invocation_id) id: vec3<u32>) {
    textureStore(out_tex, vec2<i32>(id.xy), textureLoad(in_tex, vec2<i32>(id.xy), 0));
}
`

var testSize = common.IntPoint{X: 64, Y: 32}

func newTestContext(t *testing.T, lib shader.Library) *Context {
	t.Helper()
	pool := resource.NewPool(resource.NewVirtualAllocator())
	scope := resource.NewFrameScope(pool, 3)
	t.Cleanup(func() { _ = scope.Close() })

	scene := resource.Import(
		resource.Texture2D("SceneColor", wgpu.TextureFormatRGBA8Unorm, testSize, 1, resource.UsageSampled|resource.UsageStorage),
		nil, true)
	return &Context{
		Frame:       3,
		View:        View{Viewport: common.RectFromSize(testSize)},
		TextureSize: testSize,
		SceneColor:  scene,
		Resources:   scope,
		Shaders:     lib,
	}
}

func newTestLibrary(t *testing.T) shader.Library {
	t.Helper()
	reg := shader.NewSourceRegistry()
	require.NoError(t, reg.RegisterFS("/Plugin/VARID", fstest.MapFS{
		"Private/GaussianBlurCS.wgsl": {Data: []byte(testBlurSource)},
	}))
	lib := shader.NewLibrary(reg)
	require.NoError(t, lib.Define(shader.Descriptor{
		Key:         "VARID.GaussianBlur",
		VirtualPath: "/Plugin/VARID/Private/GaussianBlurCS.wgsl",
	}))
	return lib
}

func pyramid(t *testing.T, ctx *Context, label string, mips int) *resource.Handle {
	t.Helper()
	h, err := ctx.Resources.Acquire(resource.Texture2D(label, wgpu.TextureFormatRGBA16Float, testSize, mips, resource.UsageSampled|resource.UsageStorage))
	require.NoError(t, err)
	return h
}

func blurPass(in, out *resource.Handle, mip int) Description {
	return Description{
		Name:     "Gaussian Blur",
		Kind:     KindCompute,
		Shader:   "VARID.GaussianBlur",
		Inputs:   []Binding{{Name: "in_tex", Handle: in, Mip: mip}},
		Outputs:  []Binding{{Name: "out_tex", Handle: out, Mip: mip}},
		Uniforms: []DataBinding{{Name: "params", Data: make([]byte, 16)}},
		Dispatch: MipDispatch(common.RectFromSize(testSize), testSize, mip).Groups(),
	}
}

func TestBuilder_ChainsOutputsIntoInputs(t *testing.T) {
	ctx := newTestContext(t, newTestLibrary(t))
	b := NewBuilder(ctx)

	first := pyramid(t, ctx, "A", 3)
	second := pyramid(t, ctx, "B", 3)

	require.NoError(t, b.Add(blurPass(ctx.SceneColor, first, 0)))
	assert.True(t, first.Readable(), "outputs become readable")
	require.NoError(t, b.Add(blurPass(first, second, 1)))

	list := b.Build()
	assert.Equal(t, uint64(3), list.Frame)
	assert.Equal(t, []string{"Gaussian Blur", "Gaussian Blur"}, list.Names())
	require.NotNil(t, list.Commands[0].Compute)
	assert.Equal(t, "main_cs", list.Commands[0].Compute.EntryPoint())
}

func TestBuilder_InvalidBindings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, ctx *Context, d *Description)
	}{
		{name: "UnwrittenInput", mutate: func(t *testing.T, ctx *Context, d *Description) {
			d.Inputs[0].Handle = pyramid(t, ctx, "Fresh", 3)
		}},
		{name: "ReleasedInput", mutate: func(t *testing.T, ctx *Context, d *Description) {
			ctx.SceneColor.Invalidate()
		}},
		{name: "NilOutput", mutate: func(t *testing.T, ctx *Context, d *Description) {
			d.Outputs[0].Handle = nil
		}},
		{name: "ReadOnlyOutput", mutate: func(t *testing.T, ctx *Context, d *Description) {
			h, err := ctx.Resources.Acquire(resource.Texture2D("RO", wgpu.TextureFormatRGBA16Float, testSize, 1, resource.UsageSampled))
			require.NoError(t, err)
			d.Outputs[0].Handle = h
		}},
		{name: "MipOutOfRange", mutate: func(t *testing.T, ctx *Context, d *Description) {
			d.Outputs[0].Mip = 3
		}},
		{name: "AllMipsOutput", mutate: func(t *testing.T, ctx *Context, d *Description) {
			d.Outputs[0].Mip = AllMips
		}},
		{name: "UndeclaredName", mutate: func(t *testing.T, ctx *Context, d *Description) {
			d.Inputs[0].Name = "in_srv"
		}},
		{name: "MissingUniform", mutate: func(t *testing.T, ctx *Context, d *Description) {
			d.Uniforms = nil
		}},
		{name: "InputBoundAsUniform", mutate: func(t *testing.T, ctx *Context, d *Description) {
			d.Uniforms[0].Name = "in_tex"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newTestContext(t, newTestLibrary(t))
			out := pyramid(t, ctx, "Out", 3)
			desc := blurPass(ctx.SceneColor, out, 0)
			tt.mutate(t, ctx, &desc)

			b := NewBuilder(ctx)
			err := b.Add(desc)
			assert.ErrorIs(t, err, ErrInvalidBinding)
			assert.Equal(t, 0, b.Len())
			assert.Equal(t, resource.StateUndefined, out.State(), "a rejected pass initialises nothing")
		})
	}
}

func TestBuilder_InvalidDescriptions(t *testing.T) {
	ctx := newTestContext(t, nil)
	out := pyramid(t, ctx, "Out", 1)
	b := NewBuilder(ctx)

	noDispatch := blurPass(ctx.SceneColor, out, 0)
	noDispatch.Dispatch = [3]uint32{}
	assert.ErrorIs(t, b.Add(noDispatch), ErrInvalidDescription)

	raster := Description{Name: "Quad", Kind: KindRaster, Shader: "PS", Outputs: []Binding{{Name: "target", Handle: out}}}
	assert.ErrorIs(t, b.Add(raster), ErrInvalidDescription)

	raster.VertexShader = "VS"
	raster.Draw = Draw{VertexCount: 4, Viewport: common.RectFromSize(testSize)}
	assert.ErrorIs(t, b.Add(raster), ErrInvalidBinding, "target lacks render target usage")
}

func TestBuilder_WithoutLibrarySkipsReflection(t *testing.T) {
	ctx := newTestContext(t, nil)
	out := pyramid(t, ctx, "Out", 1)

	desc := blurPass(ctx.SceneColor, out, 0)
	desc.Inputs[0].Name = "anything"
	b := NewBuilder(ctx)
	require.NoError(t, b.Add(desc))
	assert.Nil(t, b.Build().Commands[0].Compute)
}

func TestBuilder_UnknownShader(t *testing.T) {
	ctx := newTestContext(t, newTestLibrary(t))
	out := pyramid(t, ctx, "Out", 1)

	desc := blurPass(ctx.SceneColor, out, 0)
	desc.Shader = "VARID.Missing"
	assert.ErrorIs(t, NewBuilder(ctx).Add(desc), shader.ErrUnknownShader)
}

func TestPassThrough(t *testing.T) {
	ctx := newTestContext(t, nil)
	out := PassThrough(ctx)
	assert.Same(t, ctx.SceneColor, out.SceneColor)
	assert.True(t, out.IsPassThrough())
}
