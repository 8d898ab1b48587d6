package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// GLFW must be driven from the main thread.
func init() {
	runtime.LockOSThread()
}

// glfwWindow is a GLFW window without a client API; WebGPU presents into it through wgpuglfw.
//
// GLFW reference: https://www.glfw.org/docs/latest/window_guide.html
// go-gl/glfw: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw
type glfwWindow struct {
	handle *glfw.Window
}

var _ platformWindow = &glfwWindow{}

// newPlatformWindow opens a GLFW window sized and titled from w and routes its events to w.
func newPlatformWindow(w *engineWindow) (platformWindow, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("window: initialize GLFW: %w", err)
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	handle, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("window: create GLFW window: %w", err)
	}
	handle.SetSizeLimits(w.minWidth, w.minHeight, w.maxWidth, w.maxHeight)

	// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Window.SetKeyCallback
	handle.SetKeyCallback(func(win *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		switch {
		case key == glfw.KeyEscape && action == glfw.Press:
			win.SetShouldClose(true)
		case action == glfw.Release:
			w.keyUp(uint32(key))
		default:
			w.keyDown(uint32(key))
		}
	})

	// Surfaces are configured in pixels, which differ from screen coordinates on high-DPI displays.
	// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#Window.SetFramebufferSizeCallback
	handle.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		w.resized(width, height)
	})
	w.width, w.height = handle.GetFramebufferSize()

	return &glfwWindow{handle: handle}, nil
}

func (g *glfwWindow) setTitle(title string) {
	g.handle.SetTitle(title)
}

// Reference: https://pkg.go.dev/github.com/cogentcore/webgpu/wgpuglfw#GetSurfaceDescriptor
func (g *glfwWindow) surfaceDescriptor() *wgpu.SurfaceDescriptor {
	return wgpuglfw.GetSurfaceDescriptor(g.handle)
}

func (g *glfwWindow) shouldClose() bool {
	return g.handle.ShouldClose()
}

// SetShouldClose may be called from any thread.
func (g *glfwWindow) requestClose() {
	g.handle.SetShouldClose(true)
}

// Reference: https://pkg.go.dev/github.com/go-gl/glfw/v3.3/glfw#PollEvents
func (g *glfwWindow) poll() {
	glfw.PollEvents()
}

func (g *glfwWindow) destroy() {
	g.handle.Destroy()
	glfw.Terminate()
}
