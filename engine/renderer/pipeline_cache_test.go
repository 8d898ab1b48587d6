package renderer

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hostShader(t *testing.T, lib shader.Library, key string) shader.Shader {
	t.Helper()
	s, err := lib.Shader(key, nil)
	require.NoError(t, err)
	return s
}

func TestPipelineCache_ReusesPipelines(t *testing.T) {
	lib := newHostLibrary(t)
	backend := &fakeBackend{}
	cache := newPipelineCache(backend, 8)
	cs := hostShader(t, lib, ShaderTestPattern)

	first, err := cache.Compute(cs)
	require.NoError(t, err)
	second, err := cache.Compute(cs)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, pipeline.PipelineTypeCompute, first.Type())
	assert.Equal(t, 1, backend.computeRegs)
	stats := cache.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.Size)
}

func TestPipelineCache_RenderKeyedByFormat(t *testing.T) {
	lib := newHostLibrary(t)
	backend := &fakeBackend{}
	cache := newPipelineCache(backend, 8)
	vs := hostShader(t, lib, ShaderBlitVS)
	fs := hostShader(t, lib, ShaderBlitPS)

	bgra, err := cache.Render(vs, fs, wgpu.TextureFormatBGRA8Unorm)
	require.NoError(t, err)
	rgba, err := cache.Render(vs, fs, wgpu.TextureFormatRGBA8Unorm)
	require.NoError(t, err)

	assert.NotEqual(t, bgra.PipelineKey(), rgba.PipelineKey())
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, rgba.TargetFormat())
	assert.Equal(t, wgpu.PrimitiveTopologyTriangleStrip, rgba.Topology())
	assert.Equal(t, 2, backend.renderRegs)
	assert.Equal(t, 2, cache.Len())
}

func TestPipelineCache_EvictsLeastRecentlyUsed(t *testing.T) {
	lib := newHostLibrary(t)
	cache := newPipelineCache(&fakeBackend{}, 1)

	_, err := cache.Compute(hostShader(t, lib, ShaderTestPattern))
	require.NoError(t, err)
	_, err = cache.Render(hostShader(t, lib, ShaderBlitVS), hostShader(t, lib, ShaderBlitPS), wgpu.TextureFormatBGRA8Unorm)
	require.NoError(t, err)

	assert.Equal(t, 1, cache.Len())
	assert.Equal(t, uint64(1), cache.Stats().Evictions)

	cache.Purge()
	assert.Equal(t, 0, cache.Len())
	assert.Equal(t, uint64(2), cache.Stats().Evictions)
}

func TestPipelineCache_Errors(t *testing.T) {
	lib := newHostLibrary(t)
	backend := &fakeBackend{registerErr: errors.New("device lost")}
	cache := newPipelineCache(backend, 4)

	_, err := cache.Compute(hostShader(t, lib, ShaderTestPattern))
	assert.ErrorContains(t, err, "device lost")
	assert.Equal(t, 0, cache.Len())

	_, err = cache.Compute(nil)
	assert.ErrorIs(t, err, ErrUnresolvedShader)
	_, err = cache.Compute(hostShader(t, lib, ShaderBlitPS))
	assert.ErrorIs(t, err, ErrUnresolvedShader)
	_, err = cache.Render(nil, hostShader(t, lib, ShaderBlitPS), wgpu.TextureFormatBGRA8Unorm)
	assert.ErrorIs(t, err, ErrUnresolvedShader)
}

func TestNewPipelineCache_InvalidSizePanics(t *testing.T) {
	assert.Panics(t, func() { newPipelineCache(&fakeBackend{}, 0) })
}
