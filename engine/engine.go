package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-varid/engine/camera"
	"github.com/Carmen-Shannon/oxy-varid/engine/frame_graph"
	"github.com/Carmen-Shannon/oxy-varid/engine/profiler"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer"
	"github.com/Carmen-Shannon/oxy-varid/engine/window"
)

// ErrNotConfigured is returned by RenderFrame on an engine without a renderer or frame graph.
var ErrNotConfigured = errors.New("engine: renderer and frame graph are required")

// engine implements the Engine interface.
// Coordinates the tick, render and window goroutines.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window   window.Window
	renderer renderer.Renderer
	graph    frame_graph.FrameGraph
	camera   camera.Camera

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	renderCallback func(deltaTime float32, res frame_graph.Result)

	keyMu     *sync.Mutex
	bindings  map[uint32]func()
	onKeyDown func(keyCode uint32)
	onKeyUp   func(keyCode uint32)

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	maxFrames        uint64        // 0 = until Quit
	frame            atomic.Uint64
	frameErrors      atomic.Uint64
}

// Engine is the host loop: it renders the camera's views of the scene colour through the frame
// graph every frame, presents the result and runs a fixed-rate tick for input-driven state.
// Without a window the engine runs headless until Quit or its frame limit.
type Engine interface {
	// Window returns the window, nil when headless.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Renderer returns the renderer frames are recorded through.
	//
	// Returns:
	//   - renderer.Renderer: the renderer
	Renderer() renderer.Renderer

	// FrameGraph returns the frame graph executed each frame.
	//
	// Returns:
	//   - frame_graph.FrameGraph: the frame graph
	FrameGraph() frame_graph.FrameGraph

	// Camera returns the camera that defines the views of each frame.
	//
	// Returns:
	//   - camera.Camera: the camera
	Camera() camera.Camera

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in ticks per second.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetRenderCallback registers the function called after each rendered frame.
	//
	// Parameters:
	//   - callback: function receiving the delta time in seconds and the frame result
	SetRenderCallback(callback func(deltaTime float32, res frame_graph.Result))

	// SetRenderFrameLimit sets an optional render frame rate cap in frames per second.
	// Pass 0 to uncap the render loop (default).
	//
	// Parameters:
	//   - fps: maximum render frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// BindKey runs action when keyCode is pressed. A bound key is not passed to the key down callback.
	// A nil action removes the binding.
	//
	// Parameters:
	//   - keyCode: the virtual key code
	//   - action: the function to run on the window goroutine
	BindKey(keyCode uint32, action func())

	// SetKeyCallbacks sets the functions receiving key events that have no binding.
	//
	// Parameters:
	//   - down: called for pressed and repeating keys
	//   - up: called for released keys
	SetKeyCallbacks(down, up func(keyCode uint32))

	// RenderFrame renders and presents one frame on the calling goroutine.
	//
	// Parameters:
	//   - ctx: cancels the frame between hook points
	//
	// Returns:
	//   - frame_graph.Result: the frame summary
	//   - error: a frame graph or presentation error
	RenderFrame(ctx context.Context) (frame_graph.Result, error)

	// Frames returns the number of frames rendered so far.
	Frames() uint64

	// Run starts the engine and blocks until the window closes, Quit is called, or the frame
	// limit is reached.
	Run()

	// Quit signals all engine goroutines to stop. Safe to call multiple times.
	Quit()
}

// NewEngine creates a new Engine instance with the provided options.
//
// Parameters:
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		keyMu:           &sync.Mutex{},
		bindings:        make(map[uint32]func()),
		engineTickRate:  time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}
	if e.camera == nil {
		e.camera = camera.NewCamera()
	}
	if e.profiler == nil {
		var opts []profiler.ProfilerBuilderOption
		if e.renderer != nil {
			opts = append(opts, profiler.WithPool(e.renderer.Pool()))
		}
		e.profiler = profiler.NewProfiler(opts...)
	}

	if e.window != nil {
		e.window.SetResizeCallback(func(width, height int) {
			if e.renderer != nil {
				e.renderer.Resize(width, height)
			}
		})
		e.window.SetKeyDownCallback(e.handleKeyDown)
		e.window.SetKeyUpCallback(e.handleKeyUp)
		e.window.SetCloseCallback(e.signalQuit)
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Renderer() renderer.Renderer {
	return e.renderer
}

func (e *engine) FrameGraph() frame_graph.FrameGraph {
	return e.graph
}

func (e *engine) Camera() camera.Camera {
	return e.camera
}

func (e *engine) Frames() uint64 {
	return e.frame.Load()
}

func (e *engine) Run() {
	e.running.Store(true)
	e.handle()
	if e.window != nil {
		e.window.ProcessMessages()
		e.signalQuit()
	}
	e.wg.Wait()
	e.running.Store(false)
	log.Printf("[Engine] stopped after %d frames (%d failed)", e.frame.Load(), e.frameErrors.Load())
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
	if e.window != nil && e.window.IsRunning() {
		if err := e.window.Close(); err != nil {
			log.Printf("[Engine] closing window: %v", err)
		}
	}
}

// signalQuit closes the quit channel to signal all goroutines to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

// handle launches the tick and render goroutines, tracked by the engine's WaitGroup.
func (e *engine) handle() {
	e.wg.Add(2)
	go e.handleEngine()
	go e.handleRender()
}

// handleEngine runs the fixed-rate engine tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleRender runs the render loop in its own goroutine until quit or the frame limit.
// Frame errors are logged and the loop continues; a panic stops the engine.
func (e *engine) handleRender() {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Engine] render goroutine recovered from panic: %v", r)
			e.signalQuit()
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-e.quitChannel:
			cancel()
		case <-ctx.Done():
		}
	}()

	lastRender := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		default:
		}

		now := time.Now()
		dt := float32(now.Sub(lastRender).Seconds())
		lastRender = now

		res, err := e.RenderFrame(ctx)
		if err != nil && !errors.Is(err, frame_graph.ErrFrameCancelled) {
			e.frameErrors.Add(1)
			log.Printf("[Engine] frame %d: %v", res.Frame, err)
		}

		if e.renderCallback != nil {
			e.renderCallback(dt, res)
		}

		if e.maxFrames > 0 && e.frame.Load() >= e.maxFrames {
			e.Quit()
			return
		}

		if e.renderFrameLimit > 0 {
			elapsed := time.Since(lastRender)
			if remaining := e.renderFrameLimit - elapsed; remaining > 0 {
				time.Sleep(remaining)
			}
		}
	}
}

func (e *engine) RenderFrame(ctx context.Context) (frame_graph.Result, error) {
	if e.renderer == nil || e.graph == nil {
		return frame_graph.Result{}, ErrNotConfigured
	}
	frame := e.frame.Add(1)

	target, err := e.renderer.BeginFrame()
	defer e.renderer.Present()
	if err != nil {
		return frame_graph.Result{Frame: frame}, err
	}

	in := frame_graph.Inputs{
		Frame:       frame,
		TextureSize: target.TextureSize,
		SceneColor:  target.SceneColor,
	}
	for _, v := range e.camera.Views(target.TextureSize) {
		in.Views = append(in.Views, frame_graph.ViewInput{View: v})
	}

	res, err := e.graph.Execute(ctx, in)
	if e.profilingEnabled.Load() {
		e.profiler.Observe(res)
	}
	return res, err
}

func (e *engine) handleKeyDown(keyCode uint32) {
	e.keyMu.Lock()
	action, bound := e.bindings[keyCode]
	down := e.onKeyDown
	e.keyMu.Unlock()

	if bound {
		action()
		return
	}
	if down != nil {
		down(keyCode)
	}
}

func (e *engine) handleKeyUp(keyCode uint32) {
	e.keyMu.Lock()
	up := e.onKeyUp
	e.keyMu.Unlock()

	if up != nil {
		up(keyCode)
	}
}

func (e *engine) BindKey(keyCode uint32, action func()) {
	e.keyMu.Lock()
	defer e.keyMu.Unlock()
	if action == nil {
		delete(e.bindings, keyCode)
		return
	}
	e.bindings[keyCode] = action
}

func (e *engine) SetKeyCallbacks(down, up func(keyCode uint32)) {
	e.keyMu.Lock()
	defer e.keyMu.Unlock()
	e.onKeyDown, e.onKeyUp = down, up
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate sets the engine tick rate in ticks per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if !e.running.Load() {
		e.engineTickRate = newRate
		return
	}
	// Non-blocking send; a pending update is replaced.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetRenderCallback registers the function called after each rendered frame.
func (e *engine) SetRenderCallback(callback func(deltaTime float32, res frame_graph.Result)) {
	e.renderCallback = callback
}

// SetRenderFrameLimit sets an optional render frame rate cap.
// Pass 0 to uncap the render loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}
