package window

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/cogentcore/webgpu/wgpu"
)

// ErrClosed is returned by Close once the platform window has been destroyed.
var ErrClosed = errors.New("window: closed")

// Window is the host's presentation window: it owns the surface the renderer presents into and
// delivers key and resize events. Key codes are GLFW key codes, see common/key_codes.go.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetKeyDownCallback sets the function called when a key is pressed or repeats.
	//
	// Parameters:
	//   - callback: function receiving the virtual key code
	SetKeyDownCallback(callback func(keyCode uint32))

	// SetKeyUpCallback sets the function called when a key is released.
	//
	// Parameters:
	//   - callback: function receiving the virtual key code
	SetKeyUpCallback(callback func(keyCode uint32))

	// SetCloseCallback sets the function called once when the window starts closing,
	// from Escape, the close button or Close.
	//
	// Parameters:
	//   - callback: function to call
	SetCloseCallback(callback func())

	// SetTitle replaces the title bar text. Must be called from the message loop goroutine.
	//
	// Parameters:
	//   - title: the new title
	SetTitle(title string)

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for creating a WebGPU surface.
	// The descriptor is platform-appropriate and is created by the wgpuglfw bridge.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor, or nil if window is not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning returns true if the window is still active.
	//
	// Returns:
	//   - bool: true if window is running, false if closed
	IsRunning() bool

	// Close asks the window to close and may be called from any goroutine. The platform window
	// is destroyed by ProcessMessages on its own goroutine, or immediately when no message loop runs.
	//
	// Returns:
	//   - error: ErrClosed if the window was already destroyed
	Close() error

	// ProcessMessages runs the window message loop on the calling goroutine, which must be the
	// goroutine that created the window. Blocks until the window is closed.
	ProcessMessages()

	// Width returns the current framebuffer width in pixels.
	Width() int

	// Height returns the current framebuffer height in pixels.
	Height() int
}

// platformWindow is the windowing system behind an engineWindow.
type platformWindow interface {
	setTitle(title string)
	surfaceDescriptor() *wgpu.SurfaceDescriptor
	// shouldClose reports a pending close request.
	shouldClose() bool
	// requestClose may be called from any goroutine.
	requestClose()
	// poll dispatches pending events to the engineWindow callbacks.
	poll()
	destroy()
}

// engineWindow is the implementation of the Window interface.
type engineWindow struct {
	title string

	// size limits applied while resizing
	minWidth, minHeight int
	maxWidth, maxHeight int

	// framebuffer size in pixels
	width, height int

	mu         *sync.Mutex
	platform   platformWindow // nil once destroyed
	processing atomic.Bool

	onUpdate  func()
	onResize  func(width, height int)
	onKeyDown func(keyCode uint32)
	onKeyUp   func(keyCode uint32)
	onClose   func()
	closeOnce sync.Once
}

var _ Window = &engineWindow{}

// NewWindow creates and shows a window. Defaults: 1280x720, resizable between 320x200 and 3840x2160.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the window
//   - error: error if the platform window could not be created, for example without a display
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		title:     "oxy-varid",
		minWidth:  320,
		minHeight: 200,
		maxWidth:  3840,
		maxHeight: 2160,
		width:     1280,
		height:    720,
		mu:        &sync.Mutex{},
	}
	for _, opt := range options {
		opt(w)
	}
	if w.width < w.minWidth || w.height < w.minHeight {
		return nil, fmt.Errorf("window: %dx%d is below the minimum %dx%d", w.width, w.height, w.minWidth, w.minHeight)
	}
	p, err := newPlatformWindow(w)
	if err != nil {
		return nil, err
	}
	w.platform = p
	return w, nil
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetKeyDownCallback(callback func(keyCode uint32)) {
	w.onKeyDown = callback
}

func (w *engineWindow) SetKeyUpCallback(callback func(keyCode uint32)) {
	w.onKeyUp = callback
}

func (w *engineWindow) SetCloseCallback(callback func()) {
	w.onClose = callback
}

func (w *engineWindow) SetTitle(title string) {
	w.title = title
	if p := w.current(); p != nil {
		p.setTitle(title)
	}
}

func (w *engineWindow) current() platformWindow {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.platform
}

// notifyClose runs the close callback the first time the window starts closing.
func (w *engineWindow) notifyClose() {
	w.closeOnce.Do(func() {
		if w.onClose != nil {
			w.onClose()
		}
	})
}

// resized records a framebuffer size reported by the platform.
func (w *engineWindow) resized(width, height int) {
	w.mu.Lock()
	w.width, w.height = width, height
	w.mu.Unlock()
	if w.onResize != nil {
		w.onResize(width, height)
	}
}

func (w *engineWindow) keyDown(code uint32) {
	if w.onKeyDown != nil {
		w.onKeyDown(code)
	}
}

func (w *engineWindow) keyUp(code uint32) {
	if w.onKeyUp != nil {
		w.onKeyUp(code)
	}
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	if p := w.current(); p != nil {
		return p.surfaceDescriptor()
	}
	return nil
}

func (w *engineWindow) IsRunning() bool {
	p := w.current()
	return p != nil && !p.shouldClose()
}

func (w *engineWindow) Close() error {
	p := w.current()
	if p == nil {
		return ErrClosed
	}
	w.notifyClose()
	p.requestClose()
	if !w.processing.Load() {
		w.destroy()
	}
	return nil
}

// destroy releases the platform window. Runs on the goroutine that created it.
func (w *engineWindow) destroy() {
	w.mu.Lock()
	p := w.platform
	w.platform = nil
	w.mu.Unlock()
	if p != nil {
		p.destroy()
	}
}

func (w *engineWindow) ProcessMessages() {
	w.processing.Store(true)
	defer w.processing.Store(false)

	for w.IsRunning() {
		w.current().poll()
		if w.onUpdate != nil {
			w.onUpdate()
		}
		runtime.Gosched()
	}
	w.notifyClose()
	w.destroy()
}

func (w *engineWindow) Width() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.width
}

func (w *engineWindow) Height() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.height
}
