package renderer

import (
	"github.com/Carmen-Shannon/oxy-varid/common"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-varid/engine/resource"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - RendererBuilderOption: a function that applies the present mode option to a renderer
func WithPresentMode(mode PresentMode) RendererBuilderOption {
	return func(r *renderer) {
		r.pendingPresentMode = &mode
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithPipelineCacheSize sets how many pipelines the recorder keeps before evicting the least
// recently used one. Default 128.
//
// Parameters:
//   - size: the cache capacity, must be positive
//
// Returns:
//   - RendererBuilderOption: a function that applies the cache size to a renderer
func WithPipelineCacheSize(size int) RendererBuilderOption {
	return func(r *renderer) {
		r.cacheSize = size
	}
}

// WithShaderLibrary sets the library host and plugin shaders are compiled through.
// Without it the renderer creates its own library over an empty source registry.
func WithShaderLibrary(lib shader.Library) RendererBuilderOption {
	return func(r *renderer) {
		r.shaders = lib
	}
}

// WithPoolOptions passes options to the transient resource pool the renderer creates.
func WithPoolOptions(opts ...resource.PoolBuilderOption) RendererBuilderOption {
	return func(r *renderer) {
		r.poolOptions = append(r.poolOptions, opts...)
	}
}

// WithHeadlessSize sets the scene colour extent of a renderer created without a window.
// Default 1280x720.
func WithHeadlessSize(width, height int) RendererBuilderOption {
	return func(r *renderer) {
		r.size = common.IntPoint{X: width, Y: height}
	}
}
