package shader

import (
	"testing"
	"testing/fstest"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testResampleSource = `
#ifdef VF_MAP
@group(0) @binding(1) var out_tex: texture_storage_2d<r32float, write>;
#else
@group(0) @binding(1) var out_tex: texture_storage_2d<rgba16float, write>;
#endif

@compute @workgroup_size(8, 8, 1)
fn main_cs() {}
`

func newTestLibrary(t *testing.T) Library {
	t.Helper()
	reg := NewSourceRegistry()
	require.NoError(t, reg.RegisterFS("/Plugin/VARID", fstest.MapFS{
		"Private/BasicResampleCS.wgsl": {Data: []byte(testResampleSource)},
	}))
	lib := NewLibrary(reg, WithCompiledCacheSize(8))
	require.NoError(t, lib.Define(Descriptor{
		Key:         "VARID.Resample",
		VirtualPath: "/Plugin/VARID/Private/BasicResampleCS.wgsl",
		Type:        ShaderTypeCompute,
	}))
	return lib
}

func TestLibrary_DefineAndCompile(t *testing.T) {
	lib := newTestLibrary(t)

	err := lib.Define(Descriptor{Key: "VARID.Resample", VirtualPath: "/x.wgsl"})
	assert.ErrorIs(t, err, ErrDuplicateShader)
	assert.Error(t, lib.Define(Descriptor{Key: "NoPath"}))
	assert.Equal(t, []string{"VARID.Resample"}, lib.Keys())

	colour, err := lib.Shader("VARID.Resample", nil)
	require.NoError(t, err)
	out, _ := colour.Binding("out_tex")
	assert.Equal(t, wgpu.TextureFormatRGBA16Float, out.Format)

	vf, err := lib.Shader("VARID.Resample", Permutation{"VF_MAP": 1})
	require.NoError(t, err)
	out, _ = vf.Binding("out_tex")
	assert.Equal(t, wgpu.TextureFormatR32Float, out.Format)
	assert.Equal(t, "VARID.Resample[VF_MAP=1]", vf.Module().Label)

	again, err := lib.Shader("VARID.Resample", Permutation{"VF_MAP": 1})
	require.NoError(t, err)
	assert.Same(t, vf, again, "compiled variants are cached")
}

func TestLibrary_UnknownAndUndefine(t *testing.T) {
	lib := newTestLibrary(t)

	_, err := lib.Shader("VARID.Missing", nil)
	assert.ErrorIs(t, err, ErrUnknownShader)

	first, err := lib.Shader("VARID.Resample", nil)
	require.NoError(t, err)

	require.NoError(t, lib.Undefine("VARID.Resample"))
	assert.ErrorIs(t, lib.Undefine("VARID.Resample"), ErrUnknownShader)
	_, err = lib.Shader("VARID.Resample", nil)
	assert.ErrorIs(t, err, ErrUnknownShader)

	require.NoError(t, lib.Define(Descriptor{
		Key:         "VARID.Resample",
		VirtualPath: "/Plugin/VARID/Private/BasicResampleCS.wgsl",
	}))
	second, err := lib.Shader("VARID.Resample", nil)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestLibrary_PurgeRecompiles(t *testing.T) {
	lib := newTestLibrary(t)

	first, err := lib.Shader("VARID.Resample", nil)
	require.NoError(t, err)
	lib.Purge()
	second, err := lib.Shader("VARID.Resample", nil)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, first.Source(), second.Source())
}

// redefiningFS runs onRead the first time a file is read.
type redefiningFS struct {
	fstest.MapFS
	onRead func()
}

func (f *redefiningFS) ReadFile(name string) ([]byte, error) {
	if f.onRead != nil {
		hook := f.onRead
		f.onRead = nil
		hook()
	}
	return f.MapFS.ReadFile(name)
}

func TestLibrary_RedefinedDuringCompileIsNotCached(t *testing.T) {
	desc := Descriptor{
		Key:         "VARID.Resample",
		VirtualPath: "/Plugin/VARID/Private/BasicResampleCS.wgsl",
		Type:        ShaderTypeCompute,
	}
	fsys := &redefiningFS{MapFS: fstest.MapFS{
		"Private/BasicResampleCS.wgsl": {Data: []byte(testResampleSource)},
	}}
	reg := NewSourceRegistry()
	require.NoError(t, reg.RegisterFS("/Plugin/VARID", fsys))
	lib := NewLibrary(reg)
	require.NoError(t, lib.Define(desc))

	fsys.onRead = func() {
		require.NoError(t, lib.Undefine(desc.Key))
		require.NoError(t, lib.Define(desc))
	}

	stale, err := lib.Shader(desc.Key, nil)
	require.NoError(t, err)
	fresh, err := lib.Shader(desc.Key, nil)
	require.NoError(t, err)
	assert.NotSame(t, stale, fresh, "a variant compiled from a replaced definition is recompiled")

	again, err := lib.Shader(desc.Key, nil)
	require.NoError(t, err)
	assert.Same(t, fresh, again)
}
