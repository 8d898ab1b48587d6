// Package frame_graph drives the host's per-frame hook invocation: it runs every installed
// callback at each hook point for each view, chains the scene colour between callbacks,
// contains callback failures and hands the recorded passes to a Recorder.
package frame_graph

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-varid/common"
	"github.com/Carmen-Shannon/oxy-varid/engine/hook"
	"github.com/Carmen-Shannon/oxy-varid/engine/pass"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-varid/engine/resource"
)

var (
	// ErrInvalidInputs is returned for a frame without a usable scene colour.
	ErrInvalidInputs = errors.New("frame_graph: invalid frame inputs")
	// ErrFrameCancelled is returned when the frame's context ends before submission.
	ErrFrameCancelled = errors.New("frame_graph: frame cancelled")
	// ErrCallbackPanic wraps a panic recovered from a hook callback.
	ErrCallbackPanic = errors.New("frame_graph: callback panicked")
	// ErrSubmitFailed wraps a Recorder error.
	ErrSubmitFailed = errors.New("frame_graph: submit failed")
)

// ViewInput is one view of the frame.
type ViewInput struct {
	View pass.View
	// Override is an optional target the view's final pass writes into.
	Override *resource.Handle
}

// Inputs describe one frame handed to Execute.
type Inputs struct {
	Frame       uint64
	TextureSize common.IntPoint
	SceneColor  *resource.Handle
	Views       []ViewInput
}

// ViewOutput is the final scene colour of one view after every hook point ran.
type ViewOutput struct {
	View       pass.View
	SceneColor *resource.Handle
	Passes     int
	Dropped    int
}

// Submission is the work of one frame in execution order: for each hook point, for each view.
type Submission struct {
	Frame   uint64
	Lists   []*pass.CommandList
	Outputs []ViewOutput
}

// Recorder turns a frame's command lists into GPU work. Submit is called once per frame
// from the goroutine that called Execute, before the frame's transient resources are released.
type Recorder interface {
	// Submit records and submits a frame.
	//
	// Parameters:
	//   - sub: the frame's command lists and final view outputs
	//
	// Returns:
	//   - error: any recording or submission error
	Submit(sub Submission) error
}

// ViewFamilyExtension is notified once per frame, before any hook point runs, so it can
// copy state its callbacks read during the frame.
type ViewFamilyExtension interface {
	// SetupViewFamily runs on the goroutine that called Execute.
	//
	// Parameters:
	//   - frame: the frame number about to execute
	SetupViewFamily(frame uint64)
}

// Result summarises one executed frame. Handles in Outputs that came from the pool are
// already released when Execute returns.
type Result struct {
	Frame    uint64
	Outputs  []ViewOutput
	Passes   int
	Dropped  int
	Duration time.Duration
}

// Stats are cumulative frame graph counters.
type Stats struct {
	Frames       uint64
	Cancelled    uint64
	Dropped      uint64
	Passes       uint64
	SubmitErrors uint64
}

// frameGraph is the implementation of the FrameGraph interface.
type frameGraph struct {
	hooks    hook.Table
	pool     resource.Pool
	shaders  shader.Library
	recorder Recorder
	workers  worker.DynamicWorkerPool

	extensions []ViewFamilyExtension

	workerCount int

	frames       atomic.Uint64
	cancelled    atomic.Uint64
	dropped      atomic.Uint64
	passes       atomic.Uint64
	submitErrors atomic.Uint64
}

// FrameGraph runs the hook table once per frame.
type FrameGraph interface {
	// Execute runs every hook point in frame order. At each point the views are processed
	// concurrently and each view runs the point's callbacks in order, feeding the scene colour
	// returned by one callback into the next. A failing or panicking callback is skipped and
	// its view keeps the incoming scene colour. Transient resources of the frame are released
	// after submission, or immediately when ctx ends first.
	//
	// Parameters:
	//   - ctx: cancels the frame between hook points
	//   - in: the frame inputs
	//
	// Returns:
	//   - Result: the frame summary
	//   - error: ErrInvalidInputs, ErrFrameCancelled or ErrSubmitFailed
	Execute(ctx context.Context, in Inputs) (Result, error)

	// Stats returns the cumulative counters.
	//
	// Returns:
	//   - Stats: the counters
	Stats() Stats
}

var _ FrameGraph = &frameGraph{}

// NewFrameGraph creates a FrameGraph reading callbacks from hooks and acquiring transient
// resources from pool.
//
// Parameters:
//   - hooks: the hook table
//   - pool: the resource pool
//   - opts: optional builder options
//
// Returns:
//   - FrameGraph: the frame graph
func NewFrameGraph(hooks hook.Table, pool resource.Pool, opts ...FrameGraphBuilderOption) FrameGraph {
	if hooks == nil || pool == nil {
		panic("frame_graph: requires a hook table and a resource pool")
	}
	g := &frameGraph{
		hooks:       hooks,
		pool:        pool,
		workerCount: 4,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.workers = worker.NewDynamicWorkerPool(g.workerCount, 256, 1*time.Second)
	return g
}

// viewState is the per-view state carried across hook points.
type viewState struct {
	input      ViewInput
	scope      *resource.FrameScope
	sceneColor *resource.Handle
	lists      []*pass.CommandList
	passes     int
	dropped    int
}

func (g *frameGraph) Execute(ctx context.Context, in Inputs) (Result, error) {
	start := time.Now()
	res := Result{Frame: in.Frame}
	if !in.SceneColor.Valid() {
		return res, fmt.Errorf("%w: frame %d has no scene colour", ErrInvalidInputs, in.Frame)
	}
	if in.TextureSize.X <= 0 || in.TextureSize.Y <= 0 {
		return res, fmt.Errorf("%w: frame %d texture size %s", ErrInvalidInputs, in.Frame, in.TextureSize)
	}

	for _, ext := range g.extensions {
		ext.SetupViewFamily(in.Frame)
	}

	views := make([]*viewState, len(in.Views))
	for i, v := range in.Views {
		views[i] = &viewState{
			input:      v,
			scope:      resource.NewFrameScope(g.pool, in.Frame),
			sceneColor: in.SceneColor,
		}
	}
	defer g.closeScopes(in.Frame, views)

	var lists []*pass.CommandList
	for _, point := range hook.Points() {
		entries := g.hooks.Snapshot(point)
		if len(entries) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return g.cancel(res, err)
		}

		g.runPoint(ctx, in, entries, views)
		for _, vs := range views {
			lists = append(lists, vs.lists...)
			vs.lists = vs.lists[:0]
		}
	}
	if err := ctx.Err(); err != nil {
		return g.cancel(res, err)
	}

	sub := Submission{Frame: in.Frame, Lists: lists}
	for _, vs := range views {
		out := ViewOutput{View: vs.input.View, SceneColor: vs.sceneColor, Passes: vs.passes, Dropped: vs.dropped}
		sub.Outputs = append(sub.Outputs, out)
		res.Passes += vs.passes
		res.Dropped += vs.dropped
	}
	res.Outputs = sub.Outputs

	g.frames.Add(1)
	g.passes.Add(uint64(res.Passes))
	if g.recorder != nil {
		if err := g.recorder.Submit(sub); err != nil {
			g.submitErrors.Add(1)
			res.Duration = time.Since(start)
			return res, fmt.Errorf("%w: frame %d: %w", ErrSubmitFailed, in.Frame, err)
		}
	}
	res.Duration = time.Since(start)
	return res, nil
}

func (g *frameGraph) cancel(res Result, cause error) (Result, error) {
	g.cancelled.Add(1)
	return res, fmt.Errorf("%w: frame %d: %w", ErrFrameCancelled, res.Frame, cause)
}

// runPoint processes every view at one hook point on the worker pool and waits for all of them.
func (g *frameGraph) runPoint(ctx context.Context, in Inputs, entries []hook.Entry, views []*viewState) {
	var wg sync.WaitGroup
	for i, vs := range views {
		wg.Add(1)
		g.workers.SubmitTask(worker.Task{
			ID: i,
			Do: func() (any, error) {
				defer wg.Done()
				g.runView(ctx, in, entries, vs)
				return nil, nil
			},
		})
	}
	wg.Wait()
}

func (g *frameGraph) runView(ctx context.Context, in Inputs, entries []hook.Entry, vs *viewState) {
	for _, e := range entries {
		if ctx.Err() != nil {
			return
		}
		pctx := &pass.Context{
			Frame:       in.Frame,
			View:        vs.input.View,
			TextureSize: in.TextureSize,
			SceneColor:  vs.sceneColor,
			Override:    vs.input.Override,
			Resources:   vs.scope,
			Shaders:     g.shaders,
		}

		out, err := invoke(e, pctx)
		if err == nil && out.SceneColor != nil && !out.SceneColor.Valid() {
			err = fmt.Errorf("returned released scene colour %s", out.SceneColor)
		}
		if err != nil {
			vs.dropped++
			g.dropped.Add(1)
			log.Printf("[FrameGraph] frame %d view %d: %s at %s passed through: %v", in.Frame, vs.input.View.Index, entryName(e), e.Point(), err)
			continue
		}

		if out.SceneColor != nil {
			vs.sceneColor = out.SceneColor
		}
		if !out.IsPassThrough() {
			vs.lists = append(vs.lists, out.Commands)
			vs.passes += out.Commands.Len()
		}
	}
}

func invoke(e hook.Entry, ctx *pass.Context) (out pass.Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCallbackPanic, r)
		}
	}()
	return e.Callback(ctx)
}

func entryName(e hook.Entry) string {
	if e.Name != "" {
		return e.Name
	}
	return fmt.Sprintf("callback #%d", e.ID())
}

func (g *frameGraph) closeScopes(frame uint64, views []*viewState) {
	for _, vs := range views {
		if err := vs.scope.Close(); err != nil {
			log.Printf("[FrameGraph] frame %d view %d: releasing transient resources: %v", frame, vs.input.View.Index, err)
		}
	}
}

func (g *frameGraph) Stats() Stats {
	return Stats{
		Frames:       g.frames.Load(),
		Cancelled:    g.cancelled.Load(),
		Dropped:      g.dropped.Load(),
		Passes:       g.passes.Load(),
		SubmitErrors: g.submitErrors.Load(),
	}
}
