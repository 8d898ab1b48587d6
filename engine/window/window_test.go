package window

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePlatform records calls and closes after a fixed number of polls when asked to.
type fakePlatform struct {
	closing   atomic.Bool
	polls     atomic.Int64
	destroyed atomic.Int64
	title     string
	onPoll    func(n int64)
}

func (f *fakePlatform) setTitle(title string)                      { f.title = title }
func (f *fakePlatform) surfaceDescriptor() *wgpu.SurfaceDescriptor { return &wgpu.SurfaceDescriptor{} }
func (f *fakePlatform) shouldClose() bool                          { return f.closing.Load() }
func (f *fakePlatform) requestClose()                              { f.closing.Store(true) }
func (f *fakePlatform) destroy()                                   { f.destroyed.Add(1) }

func (f *fakePlatform) poll() {
	n := f.polls.Add(1)
	if f.onPoll != nil {
		f.onPoll(n)
	}
	time.Sleep(time.Millisecond)
}

func newTestWindow(p *fakePlatform) *engineWindow {
	return &engineWindow{title: "test", width: 640, height: 480, mu: &sync.Mutex{}, platform: p}
}

func TestWindow_CloseWithoutMessageLoopDestroysImmediately(t *testing.T) {
	p := &fakePlatform{}
	w := newTestWindow(p)
	var closes int
	w.SetCloseCallback(func() { closes++ })

	require.True(t, w.IsRunning())
	require.NoError(t, w.Close())
	assert.False(t, w.IsRunning())
	assert.Equal(t, int64(1), p.destroyed.Load())
	assert.Nil(t, w.SurfaceDescriptor())

	assert.ErrorIs(t, w.Close(), ErrClosed)
	assert.Equal(t, 1, closes)
}

func TestWindow_CloseFromAnotherGoroutineLetsTheLoopDestroy(t *testing.T) {
	p := &fakePlatform{}
	w := newTestWindow(p)
	var closes atomic.Int64
	w.SetCloseCallback(func() { closes.Add(1) })

	started := make(chan struct{})
	p.onPoll = func(n int64) {
		if n == 1 {
			close(started)
		}
	}
	go func() {
		<-started
		assert.NoError(t, w.Close())
	}()

	w.ProcessMessages()
	assert.Equal(t, int64(1), p.destroyed.Load())
	assert.Equal(t, int64(1), closes.Load())
	assert.False(t, w.IsRunning())
}

func TestWindow_LoopEndsOnPlatformClose(t *testing.T) {
	p := &fakePlatform{}
	w := newTestWindow(p)
	var updates int
	w.SetUpdateCallback(func() { updates++ })
	p.onPoll = func(n int64) {
		if n == 3 {
			p.closing.Store(true)
		}
	}
	var closed bool
	w.SetCloseCallback(func() { closed = true })

	w.ProcessMessages()
	assert.Equal(t, 3, updates)
	assert.True(t, closed)
	assert.Equal(t, int64(1), p.destroyed.Load())
}

func TestWindow_EventsReachCallbacks(t *testing.T) {
	p := &fakePlatform{}
	w := newTestWindow(p)

	var size [2]int
	var down, up []uint32
	w.SetResizeCallback(func(width, height int) { size = [2]int{width, height} })
	w.SetKeyDownCallback(func(code uint32) { down = append(down, code) })
	w.SetKeyUpCallback(func(code uint32) { up = append(up, code) })

	w.resized(800, 600)
	w.keyDown(66)
	w.keyUp(66)
	w.SetTitle("VARID")

	assert.Equal(t, [2]int{800, 600}, size)
	assert.Equal(t, 800, w.Width())
	assert.Equal(t, 600, w.Height())
	assert.Equal(t, []uint32{66}, down)
	assert.Equal(t, []uint32{66}, up)
	assert.Equal(t, "VARID", p.title)
}
