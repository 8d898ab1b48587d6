package renderer

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Carmen-Shannon/oxy-varid/common"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-varid/engine/resource"
	"github.com/Carmen-Shannon/oxy-varid/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
)

// SceneColorFormat is the texel format of the scene colour every view renders into.
const SceneColorFormat = wgpu.TextureFormatRGBA16Float

// sceneColorUsage lets hook passes read, write and draw into the scene colour.
const sceneColorUsage = resource.UsageSampled | resource.UsageStorage | resource.UsageRenderTarget | resource.UsageCopySrc

// FrameTarget is what one frame renders into.
type FrameTarget struct {
	// SceneColor is the scene colour imported for this frame. It holds the previous frame's contents.
	SceneColor *resource.Handle
	// TextureSize is the extent of SceneColor.
	TextureSize common.IntPoint
	// Presenting reports whether the frame is blitted to a surface.
	Presenting bool
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	backendType RendererBackendType
	backend     RendererBackend
	recorder    *recorder
	pool        resource.Pool
	shaders     shader.Library
	allocator   resource.Allocator

	size       common.IntPoint
	sceneColor *resource.GPUTexture
	surface    *resource.GPUTexture

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	pendingPresentMode   *PresentMode
	cacheSize            int
	poolOptions          []resource.PoolBuilderOption
}

// Renderer owns the GPU device, the scene colour and the transient resource pool, and records
// frame graph submissions through its Recorder. A renderer created without a window is headless:
// frames are recorded and submitted but never presented.
type Renderer interface {
	// Pool returns the transient resource pool backed by the GPU device.
	//
	// Returns:
	//   - resource.Pool: the pool
	Pool() resource.Pool

	// Shaders returns the shader library the renderer compiles through.
	//
	// Returns:
	//   - shader.Library: the library
	Shaders() shader.Library

	// Recorder returns the recorder to pass to the frame graph.
	//
	// Returns:
	//   - Recorder: the recorder
	Recorder() Recorder

	// Size returns the current scene colour extent.
	//
	// Returns:
	//   - common.IntPoint: the extent in pixels
	Size() common.IntPoint

	// Headless reports whether the renderer has no surface.
	Headless() bool

	// Resize reconfigures the surface and reallocates the scene colour.
	// Zero sizes, such as a minimized window, are ignored.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	Resize(width, height int)

	// SetPresentMode changes the present mode and reconfigures the surface.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// BeginFrame acquires the surface texture, if any, and sets it as the recorder's present
	// target. Every BeginFrame must be followed by Present, including when the frame fails.
	//
	// Returns:
	//   - FrameTarget: the scene colour and extent of the frame
	//   - error: an error if the surface texture could not be acquired
	BeginFrame() (FrameTarget, error)

	// Present displays the frame's surface texture and releases its views.
	Present()

	// Release releases the recorder, pool, scene colour and backend.
	Release()
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer for the given backend type. A nil window creates a headless renderer.
//
// Parameters:
//   - backendType: the GPU backend to use
//   - win: the window to present into, or nil
//   - options: functional options to configure the renderer
//
// Returns:
//   - Renderer: the renderer
//   - error: an error if the recorder or the scene colour cannot be created
func NewRenderer(backendType RendererBackendType, win window.Window, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:          &sync.Mutex{},
		backendType: backendType,
		cacheSize:   128,
		size:        common.IntPoint{X: 1280, Y: 720},
	}
	for _, opt := range options {
		opt(r)
	}
	if r.shaders == nil {
		r.shaders = shader.NewLibrary(shader.NewSourceRegistry())
	}

	var surface *wgpu.SurfaceDescriptor
	if win != nil {
		surface = win.SurfaceDescriptor()
		r.size = common.IntPoint{X: win.Width(), Y: win.Height()}
	}

	switch backendType {
	case BackendTypeWGPU:
		r.backend = newWGPURendererBackend(surface, r.forceFallbackAdapter)
	default:
		return nil, fmt.Errorf("renderer: unsupported backend type %d", backendType)
	}
	if r.pendingPresentMode != nil {
		r.backend.SetPresentMode(*r.pendingPresentMode)
	}
	r.backend.ConfigureSurface(r.size.X, r.size.Y)

	if err := DefineHostShaders(r.shaders); err != nil {
		r.backend.Release()
		return nil, fmt.Errorf("renderer: host shaders: %w", err)
	}

	r.allocator = resource.NewWGPUAllocator(r.backend.Device())
	r.pool = resource.NewPool(r.allocator, r.poolOptions...)

	rec, err := newRecorder(r.backend, r.pool, r.shaders, r.cacheSize)
	if err != nil {
		r.pool.Close()
		r.backend.Release()
		return nil, err
	}
	r.recorder = rec

	if err := r.allocateSceneColor(); err != nil {
		r.Release()
		return nil, err
	}
	log.Printf("[Renderer] created %dx%d (headless=%v)", r.size.X, r.size.Y, r.Headless())
	return r, nil
}

func (r *renderer) allocateSceneColor() error {
	res, err := r.allocator.Allocate(resource.Texture2D("SceneColor", SceneColorFormat, r.size, 1, sceneColorUsage))
	if err != nil {
		return fmt.Errorf("renderer: allocate scene colour: %w", err)
	}
	if r.sceneColor != nil {
		r.sceneColor.Release()
	}
	r.sceneColor = res.(*resource.GPUTexture)
	return nil
}

func (r *renderer) Pool() resource.Pool {
	return r.pool
}

func (r *renderer) Shaders() shader.Library {
	return r.shaders
}

func (r *renderer) Recorder() Recorder {
	return r.recorder
}

func (r *renderer) Size() common.IntPoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

func (r *renderer) Headless() bool {
	return r.backend.Surface() == nil
}

func (r *renderer) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.size.X == width && r.size.Y == height {
		return
	}
	r.size = common.IntPoint{X: width, Y: height}
	r.backend.ConfigureSurface(width, height)
	if err := r.allocateSceneColor(); err != nil {
		log.Printf("[Renderer] resize to %dx%d: %v", width, height, err)
		return
	}
	r.pool.Trim()
	log.Printf("[Renderer] resized to %dx%d", width, height)
}

func (r *renderer) SetPresentMode(mode PresentMode) {
	r.backend.SetPresentMode(mode)
	size := r.Size()
	r.backend.ConfigureSurface(size.X, size.Y)
}

func (r *renderer) BeginFrame() (FrameTarget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target := FrameTarget{
		SceneColor:  resource.Import(r.sceneColor.Descriptor(), r.sceneColor, true),
		TextureSize: r.size,
	}
	if r.Headless() {
		r.recorder.SetPresentTarget(nil, r.size)
		return target, nil
	}

	tex, err := r.backend.AcquireSurfaceTexture()
	if err != nil {
		return target, fmt.Errorf("renderer: acquire surface texture: %w", err)
	}
	desc := resource.Texture2D("Surface", r.backend.SurfaceFormat(), r.size, 1, resource.UsageRenderTarget)
	wrapped, err := resource.WrapTexture(desc, tex)
	if err != nil {
		return target, fmt.Errorf("renderer: wrap surface texture: %w", err)
	}
	r.surface = wrapped
	r.recorder.SetPresentTarget(resource.Import(desc, wrapped, false), r.size)
	target.Presenting = true
	return target, nil
}

func (r *renderer) Present() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.recorder.SetPresentTarget(nil, r.size)
	r.backend.Present()
	if r.surface != nil {
		r.surface.Release()
		r.surface = nil
	}
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	if r.recorder != nil {
		stats := r.recorder.Stats()
		r.recorder.Release()
		log.Printf("[Renderer] released after %d frames (%d dispatches, %d draws, %d failures)",
			stats.Frames, stats.Dispatches, stats.Draws, stats.Failures)
	}
	if r.surface != nil {
		r.surface.Release()
		r.surface = nil
	}
	if r.sceneColor != nil {
		r.sceneColor.Release()
		r.sceneColor = nil
	}
	if r.pool != nil {
		if n := r.pool.Outstanding(); n > 0 {
			errs = append(errs, fmt.Errorf("%d pooled resources still outstanding", n))
		}
		r.pool.Close()
	}
	r.backend.Release()
	if err := errors.Join(errs...); err != nil {
		log.Printf("[Renderer] release: %v", err)
	}
}
