package frame_graph

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-varid/common"
	"github.com/Carmen-Shannon/oxy-varid/engine/hook"
	"github.com/Carmen-Shannon/oxy-varid/engine/pass"
	"github.com/Carmen-Shannon/oxy-varid/engine/resource"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSize = common.IntPoint{X: 128, Y: 64}

// fakeRecorder keeps every submission.
type fakeRecorder struct {
	mu   sync.Mutex
	subs []Submission
	err  error
}

func (r *fakeRecorder) Submit(sub Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, out := range sub.Outputs {
		if !out.SceneColor.Valid() {
			return errors.New("output released before submit")
		}
	}
	r.subs = append(r.subs, sub)
	return r.err
}

func sceneColor() *resource.Handle {
	return resource.Import(
		resource.Texture2D("SceneColor", wgpu.TextureFormatRGBA16Float, testSize, 1, resource.UsageSampled|resource.UsageRenderTarget),
		nil, true)
}

func monoInputs(frame uint64) Inputs {
	return Inputs{
		Frame:       frame,
		TextureSize: testSize,
		SceneColor:  sceneColor(),
		Views:       []ViewInput{{View: pass.View{Viewport: common.RectFromSize(testSize)}}},
	}
}

// copyPass writes the incoming scene colour into a new pooled texture and returns it.
func copyPass(label string) hook.Callback {
	return func(ctx *pass.Context) (pass.Output, error) {
		out, err := ctx.Resources.Acquire(resource.Texture2D(label, wgpu.TextureFormatRGBA16Float, ctx.TextureSize, 1, resource.UsageSampled|resource.UsageStorage))
		if err != nil {
			return pass.PassThrough(ctx), nil
		}
		b := pass.NewBuilder(ctx)
		region := pass.MipDispatch(ctx.View.Viewport, ctx.TextureSize, 0)
		if err := b.Add(pass.Description{
			Name:     label,
			Shader:   "Test.Copy",
			Inputs:   []pass.Binding{{Name: "in_tex", Handle: ctx.SceneColor}},
			Outputs:  []pass.Binding{{Name: "out_tex", Handle: out}},
			Dispatch: region.Groups(),
		}); err != nil {
			return pass.Output{}, err
		}
		return pass.Output{Commands: b.Build(), SceneColor: out}, nil
	}
}

func newTestGraph(t *testing.T, opts ...resource.PoolBuilderOption) (FrameGraph, hook.Table, resource.Pool, *fakeRecorder) {
	t.Helper()
	hooks := hook.NewTable()
	pool := resource.NewPool(resource.NewVirtualAllocator(), opts...)
	rec := &fakeRecorder{}
	return NewFrameGraph(hooks, pool, WithRecorder(rec), WithWorkers(2)), hooks, pool, rec
}

func TestFrameGraph_ChainsSceneColour(t *testing.T) {
	g, hooks, pool, rec := newTestGraph(t)

	var seen *resource.Handle
	_, err := hooks.Install(hook.PointAfterTonemap, copyPass("First"), 0)
	require.NoError(t, err)
	_, err = hooks.Install(hook.PointAfterTonemap, func(ctx *pass.Context) (pass.Output, error) {
		seen = ctx.SceneColor
		return copyPass("Second")(ctx)
	}, 10)
	require.NoError(t, err)

	in := monoInputs(1)
	res, err := g.Execute(context.Background(), in)
	require.NoError(t, err)

	require.NotNil(t, seen)
	assert.Equal(t, "First", seen.Descriptor().Label)
	assert.Equal(t, 2, res.Passes)
	assert.Zero(t, res.Dropped)
	require.Len(t, res.Outputs, 1)
	assert.Equal(t, "Second", res.Outputs[0].SceneColor.Descriptor().Label)

	require.Len(t, rec.subs, 1)
	var names []string
	for _, l := range rec.subs[0].Lists {
		names = append(names, l.Names()...)
	}
	assert.Equal(t, []string{"First", "Second"}, names)

	assert.Equal(t, 0, pool.Outstanding(), "frame resources are released after submit")
	assert.False(t, res.Outputs[0].SceneColor.Valid())
	assert.True(t, in.SceneColor.Valid(), "imported scene colour is never released")
	assert.Equal(t, uint64(1), g.Stats().Frames)
}

func TestFrameGraph_OversizedDescriptorPassesThrough(t *testing.T) {
	g, hooks, pool, rec := newTestGraph(t, resource.WithMemoryBudget(1024))

	var acquireErr error
	_, err := hooks.Install(hook.PointPostOpaque, func(ctx *pass.Context) (pass.Output, error) {
		_, acquireErr = ctx.Resources.Acquire(resource.Texture2D("Huge", wgpu.TextureFormatRGBA32Float, common.IntPoint{X: 4096, Y: 4096}, 1, resource.UsageSampled|resource.UsageStorage))
		return pass.PassThrough(ctx), nil
	}, 0)
	require.NoError(t, err)

	in := monoInputs(2)
	res, err := g.Execute(context.Background(), in)
	require.NoError(t, err)

	assert.ErrorIs(t, acquireErr, resource.ErrAllocationFailed)
	assert.Same(t, in.SceneColor, res.Outputs[0].SceneColor)
	assert.Zero(t, res.Passes)
	require.Len(t, rec.subs, 1)
	assert.Empty(t, rec.subs[0].Lists)
	assert.Equal(t, 0, pool.Outstanding())
}

func TestFrameGraph_ContainsFailures(t *testing.T) {
	g, hooks, pool, _ := newTestGraph(t)

	_, err := hooks.Install(hook.PointAfterTonemap, func(*pass.Context) (pass.Output, error) {
		panic("boom")
	}, 0, hook.WithName("panics"))
	require.NoError(t, err)
	_, err = hooks.Install(hook.PointAfterTonemap, func(ctx *pass.Context) (pass.Output, error) {
		_, _ = ctx.Resources.Acquire(resource.Texture2D("Leaked", wgpu.TextureFormatR32Float, testSize, 1, resource.UsageSampled|resource.UsageStorage))
		return pass.Output{}, errors.New("bad binding")
	}, 1)
	require.NoError(t, err)
	var seen *resource.Handle
	_, err = hooks.Install(hook.PointAfterTonemap, func(ctx *pass.Context) (pass.Output, error) {
		seen = ctx.SceneColor
		return pass.PassThrough(ctx), nil
	}, 2)
	require.NoError(t, err)

	in := monoInputs(3)
	res, err := g.Execute(context.Background(), in)
	require.NoError(t, err, "the host frame never fails because of a callback")

	assert.Equal(t, 2, res.Dropped)
	assert.Same(t, in.SceneColor, seen)
	assert.Same(t, in.SceneColor, res.Outputs[0].SceneColor)
	assert.Equal(t, uint64(2), g.Stats().Dropped)
	assert.Equal(t, 0, pool.Outstanding())
}

func TestFrameGraph_ReleasedOutputIsDropped(t *testing.T) {
	g, hooks, _, _ := newTestGraph(t)

	_, err := hooks.Install(hook.PointAfterTonemap, func(ctx *pass.Context) (pass.Output, error) {
		h, err := ctx.Resources.Acquire(resource.Texture2D("Gone", wgpu.TextureFormatR32Float, testSize, 1, resource.UsageSampled|resource.UsageStorage))
		if err != nil {
			return pass.Output{}, err
		}
		_ = ctx.Resources.Close()
		return pass.Output{SceneColor: h}, nil
	}, 0)
	require.NoError(t, err)

	in := monoInputs(4)
	res, err := g.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Dropped)
	assert.Same(t, in.SceneColor, res.Outputs[0].SceneColor)
}

func TestFrameGraph_CancelledFrameSubmitsNothing(t *testing.T) {
	g, hooks, pool, rec := newTestGraph(t)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := hooks.Install(hook.PointPostOpaque, func(pctx *pass.Context) (pass.Output, error) {
		cancel()
		return copyPass("BeforeCancel")(pctx)
	}, 0)
	require.NoError(t, err)
	calledLater := false
	_, err = hooks.Install(hook.PointAfterTonemap, func(pctx *pass.Context) (pass.Output, error) {
		calledLater = true
		return pass.PassThrough(pctx), nil
	}, 0)
	require.NoError(t, err)

	_, err = g.Execute(ctx, monoInputs(5))
	assert.ErrorIs(t, err, ErrFrameCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, calledLater)
	assert.Empty(t, rec.subs)
	assert.Equal(t, 0, pool.Outstanding(), "cancelled frames leak nothing")
	assert.Equal(t, uint64(1), g.Stats().Cancelled)
}

func TestFrameGraph_StereoViews(t *testing.T) {
	g, hooks, pool, rec := newTestGraph(t)

	var mu sync.Mutex
	seen := map[pass.StereoPass]common.IntRect{}
	_, err := hooks.Install(hook.PointAfterTonemap, func(ctx *pass.Context) (pass.Output, error) {
		mu.Lock()
		seen[ctx.View.Stereo] = ctx.View.Viewport
		mu.Unlock()
		return copyPass("Eye")(ctx)
	}, 0)
	require.NoError(t, err)

	half := common.IntPoint{X: testSize.X / 2, Y: testSize.Y}
	in := monoInputs(6)
	in.Views = []ViewInput{
		{View: pass.View{Index: 0, Stereo: pass.StereoLeft, Viewport: common.RectFromSize(half)}},
		{View: pass.View{Index: 1, Stereo: pass.StereoRight, Viewport: common.IntRect{Min: common.IntPoint{X: half.X}, Max: testSize}}},
	}

	res, err := g.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Len(t, seen, 2)
	assert.Equal(t, half.X, seen[pass.StereoRight].Min.X)
	require.Len(t, res.Outputs, 2)
	assert.NotSame(t, res.Outputs[0].SceneColor, res.Outputs[1].SceneColor)

	require.Len(t, rec.subs[0].Lists, 2)
	assert.Equal(t, 0, rec.subs[0].Lists[0].View.Index, "lists are ordered by view")
	assert.Equal(t, 1, rec.subs[0].Lists[1].View.Index)
	assert.Equal(t, 0, pool.Outstanding())
}

func TestFrameGraph_Errors(t *testing.T) {
	g, hooks, pool, rec := newTestGraph(t)

	in := monoInputs(7)
	in.SceneColor = nil
	_, err := g.Execute(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidInputs)

	in = monoInputs(7)
	in.TextureSize = common.IntPoint{}
	_, err = g.Execute(context.Background(), in)
	assert.ErrorIs(t, err, ErrInvalidInputs)

	_, err = hooks.Install(hook.PointAfterTonemap, copyPass("Copy"), 0)
	require.NoError(t, err)
	rec.err = errors.New("device lost")
	_, err = g.Execute(context.Background(), monoInputs(8))
	assert.ErrorIs(t, err, ErrSubmitFailed)
	assert.Equal(t, uint64(1), g.Stats().SubmitErrors)
	assert.Equal(t, 0, pool.Outstanding())
}

type frameCounter struct {
	frames []uint64
}

func (c *frameCounter) SetupViewFamily(frame uint64) {
	c.frames = append(c.frames, frame)
}

func TestFrameGraph_ExtensionsSeeEveryFrame(t *testing.T) {
	hooks := hook.NewTable()
	pool := resource.NewPool(resource.NewVirtualAllocator())
	ext := &frameCounter{}
	g := NewFrameGraph(hooks, pool, WithExtension(ext), WithExtension(nil))

	var frameAtCallback uint64
	_, err := hooks.Install(hook.PointAfterTonemap, func(ctx *pass.Context) (pass.Output, error) {
		frameAtCallback = ext.frames[len(ext.frames)-1]
		return pass.PassThrough(ctx), nil
	}, 0)
	require.NoError(t, err)

	for frame := uint64(1); frame <= 3; frame++ {
		_, err := g.Execute(context.Background(), monoInputs(frame))
		require.NoError(t, err)
	}
	assert.Equal(t, []uint64{1, 2, 3}, ext.frames)
	assert.Equal(t, uint64(3), frameAtCallback, "extensions run before the hook points")
}
