package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-varid/common"
	"github.com/Carmen-Shannon/oxy-varid/engine/camera"
	"github.com/Carmen-Shannon/oxy-varid/engine/frame_graph"
	"github.com/Carmen-Shannon/oxy-varid/engine/hook"
	"github.com/Carmen-Shannon/oxy-varid/engine/pass"
	"github.com/Carmen-Shannon/oxy-varid/engine/profiler"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-varid/engine/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSize = common.IntPoint{X: 64, Y: 32}

// fakeRenderer hands out an imported scene colour and counts frames.
type fakeRenderer struct {
	pool     resource.Pool
	beginErr error

	mu       sync.Mutex
	begun    int
	presents int
	resizes  []common.IntPoint
}

var _ renderer.Renderer = &fakeRenderer{}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{pool: resource.NewPool(resource.NewVirtualAllocator())}
}

func (r *fakeRenderer) Pool() resource.Pool                 { return r.pool }
func (r *fakeRenderer) Shaders() shader.Library             { return nil }
func (r *fakeRenderer) Recorder() renderer.Recorder         { return nil }
func (r *fakeRenderer) Size() common.IntPoint               { return testSize }
func (r *fakeRenderer) Headless() bool                      { return true }
func (r *fakeRenderer) SetPresentMode(renderer.PresentMode) {}
func (r *fakeRenderer) Release()                            { r.pool.Close() }

func (r *fakeRenderer) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resizes = append(r.resizes, common.IntPoint{X: width, Y: height})
}

func (r *fakeRenderer) BeginFrame() (renderer.FrameTarget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.begun++
	desc := resource.Texture2D("SceneColor", renderer.SceneColorFormat, testSize, 1, resource.UsageSampled|resource.UsageStorage)
	return renderer.FrameTarget{SceneColor: resource.Import(desc, nil, true), TextureSize: testSize}, r.beginErr
}

func (r *fakeRenderer) Present() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presents++
}

func (r *fakeRenderer) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.begun, r.presents
}

// newTestEngine wires a fake renderer to a real frame graph with one counting callback.
func newTestEngine(t *testing.T, opts ...EngineBuilderOption) (Engine, *fakeRenderer, *atomic.Int64) {
	t.Helper()
	r := newFakeRenderer()
	t.Cleanup(r.Release)

	hooks := hook.NewTable()
	var calls atomic.Int64
	_, err := hooks.Install(hook.PointPostBasePass, func(ctx *pass.Context) (pass.Output, error) {
		calls.Add(1)
		return pass.PassThrough(ctx), nil
	}, 0, hook.WithName("Count"))
	require.NoError(t, err)

	g := frame_graph.NewFrameGraph(hooks, r.Pool())
	opts = append([]EngineBuilderOption{WithRenderer(r), WithFrameGraph(g)}, opts...)
	return NewEngine(opts...), r, &calls
}

func TestEngine_RenderFrameRunsEveryView(t *testing.T) {
	cam := camera.NewCamera(camera.WithMode(camera.ModeStereo))
	e, r, calls := newTestEngine(t, WithCamera(cam))

	res, err := e.RenderFrame(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), res.Frame)
	assert.Len(t, res.Outputs, 2)
	assert.Equal(t, int64(2), calls.Load())
	begun, presents := r.counts()
	assert.Equal(t, 1, begun)
	assert.Equal(t, 1, presents)
	assert.Equal(t, uint64(1), e.Frames())
}

func TestEngine_FailedBeginFrameStillPresents(t *testing.T) {
	e, r, calls := newTestEngine(t)
	r.beginErr = errors.New("surface lost")

	_, err := e.RenderFrame(context.Background())
	require.Error(t, err)

	assert.Zero(t, calls.Load())
	begun, presents := r.counts()
	assert.Equal(t, begun, presents)
}

func TestEngine_RenderFrameWithoutRenderer(t *testing.T) {
	e := NewEngine()
	_, err := e.RenderFrame(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestEngine_HeadlessRunStopsAtMaxFrames(t *testing.T) {
	e, r, calls := newTestEngine(t, WithMaxFrames(3), WithTickRate(1000))

	var rendered atomic.Int64
	e.SetRenderCallback(func(_ float32, res frame_graph.Result) {
		rendered.Add(1)
	})

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		e.Quit()
		t.Fatal("engine did not stop at its frame limit")
	}

	assert.Equal(t, uint64(3), e.Frames())
	assert.Equal(t, int64(3), rendered.Load())
	assert.Equal(t, int64(3), calls.Load())
	begun, presents := r.counts()
	assert.Equal(t, 3, begun)
	assert.Equal(t, 3, presents)
}

func TestEngine_QuitIsIdempotent(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.Quit()
	e.Quit()
	e.Run()
	assert.Zero(t, e.Frames())
}

func TestEngine_KeyBindings(t *testing.T) {
	e, _, _ := newTestEngine(t)
	impl := e.(*engine)

	var toggled int
	var down, up []uint32
	e.BindKey(common.KeyB, func() { toggled++ })
	e.SetKeyCallbacks(
		func(code uint32) { down = append(down, code) },
		func(code uint32) { up = append(up, code) },
	)

	impl.handleKeyDown(common.KeyB)
	impl.handleKeyDown(common.KeyUp)
	impl.handleKeyUp(common.KeyUp)
	assert.Equal(t, 1, toggled)
	assert.Equal(t, []uint32{common.KeyUp}, down)
	assert.Equal(t, []uint32{common.KeyUp}, up)

	e.BindKey(common.KeyB, nil)
	impl.handleKeyDown(common.KeyB)
	assert.Equal(t, 1, toggled)
	assert.Equal(t, []uint32{common.KeyUp, common.KeyB}, down)
}

func TestEngine_ProfilerObservesFrames(t *testing.T) {
	clock := time.Unix(0, 0)
	var reports []profiler.Report
	p := profiler.NewProfiler(
		profiler.WithClock(func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}),
		profiler.WithOutput(func(r profiler.Report) { reports = append(reports, r) }),
	)
	e, _, _ := newTestEngine(t, WithProfiler(p), WithProfiling(true))

	_, err := e.RenderFrame(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Frames)

	e.DisableProfiler()
	_, err = e.RenderFrame(context.Background())
	require.NoError(t, err)
	assert.Len(t, reports, 1)
}
