package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-varid/common"
	"github.com/Carmen-Shannon/oxy-varid/config"
	"github.com/Carmen-Shannon/oxy-varid/engine/camera"
	"github.com/Carmen-Shannon/oxy-varid/engine/frame_graph"
	"github.com/Carmen-Shannon/oxy-varid/engine/hook"
	"github.com/Carmen-Shannon/oxy-varid/engine/pass"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-varid/engine/resource"
	"github.com/Carmen-Shannon/oxy-varid/varid"
)

// moduleOptions maps the configuration onto VARID module options.
func moduleOptions(cfg *config.Config) []varid.ModuleBuilderOption {
	opts := []varid.ModuleBuilderOption{
		varid.WithContentDir(cfg.ContentDir),
		varid.WithProfileExtension(cfg.ProfileExtension),
		varid.WithHookPriority(cfg.HookPriority),
		varid.WithDisplayFOV(cfg.DisplayFOV()),
	}
	if cfg.ShaderDir != "" {
		opts = append(opts, varid.WithShaderDir(cfg.ShaderDir))
	}
	return opts
}

// cameraFor returns the camera matching the configured view layout.
func cameraFor(cfg *config.Config) camera.Camera {
	mode := camera.ModeMono
	if cfg.Stereo {
		mode = camera.ModeStereo
	}
	return camera.NewCamera(camera.WithMode(mode), camera.WithFOV(cfg.DisplayFOV()))
}

// captureRecorder keeps the last submission instead of recording GPU work.
type captureRecorder struct {
	mu   sync.Mutex
	last frame_graph.Submission
}

func (r *captureRecorder) Submit(sub frame_graph.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = sub
	return nil
}

func (r *captureRecorder) Last() frame_graph.Submission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// planner runs the VARID pass chain against virtual resources. It resolves and validates
// every shader and binding without a GPU device.
type planner struct {
	cfg      *config.Config
	lib      shader.Library
	hooks    hook.Table
	pool     resource.Pool
	graph    frame_graph.FrameGraph
	recorder *captureRecorder
	mod      varid.Module
	camera   camera.Camera
	frame    uint64
}

// newPlanner loads the VARID module into a virtual host, activates the configured profile
// if one is set, and begins rendering.
func newPlanner(ctx context.Context, cfg *config.Config) (*planner, error) {
	p := &planner{
		cfg:      cfg,
		lib:      shader.NewLibrary(shader.NewSourceRegistry()),
		hooks:    hook.NewTable(),
		pool:     resource.NewPool(resource.NewVirtualAllocator(), cfg.PoolOptions()...),
		recorder: &captureRecorder{},
		camera:   cameraFor(cfg),
	}
	p.mod = varid.NewModule(p.lib, p.hooks, moduleOptions(cfg)...)
	p.graph = frame_graph.NewFrameGraph(p.hooks, p.pool,
		frame_graph.WithWorkers(cfg.Workers),
		frame_graph.WithRecorder(p.recorder),
		frame_graph.WithShaderLibrary(p.lib),
		frame_graph.WithExtension(p.mod),
	)

	if err := p.mod.Load(ctx); err != nil {
		p.pool.Close()
		return nil, err
	}
	if cfg.Profile != "" {
		path, err := resolveProfile(p.mod, cfg.Profile)
		if err == nil {
			err = p.UseProfile(path)
		}
		if err != nil {
			p.Close(ctx)
			return nil, err
		}
	}
	p.mod.BeginRendering()
	return p, nil
}

// UseProfile loads and activates a profile.
func (p *planner) UseProfile(path string) error {
	prof, err := p.mod.LoadProfile(path)
	if err != nil {
		return err
	}
	return p.mod.SetActiveProfile(prof)
}

// Module returns the loaded VARID module.
func (p *planner) Module() varid.Module {
	return p.mod
}

// Plan executes one frame of the given size and returns its command lists.
func (p *planner) Plan(ctx context.Context, size common.IntPoint) (frame_graph.Submission, frame_graph.Result, error) {
	if size.X <= 0 || size.Y <= 0 {
		return frame_graph.Submission{}, frame_graph.Result{}, fmt.Errorf("invalid frame size %dx%d", size.X, size.Y)
	}
	p.frame++
	desc := resource.Texture2D("SceneColor", renderer.SceneColorFormat, size, 1,
		resource.UsageSampled|resource.UsageStorage|resource.UsageRenderTarget)
	in := frame_graph.Inputs{
		Frame:       p.frame,
		TextureSize: size,
		SceneColor:  resource.Import(desc, nil, true),
	}
	for _, v := range p.camera.Views(size) {
		in.Views = append(in.Views, frame_graph.ViewInput{View: v})
	}

	res, err := p.graph.Execute(ctx, in)
	if err != nil {
		return frame_graph.Submission{}, res, err
	}
	return p.recorder.Last(), res, nil
}

// nonEmptyLists returns the non-empty command lists of a submission.
func nonEmptyLists(sub frame_graph.Submission) []*pass.CommandList {
	var lists []*pass.CommandList
	for _, l := range sub.Lists {
		if l.Len() > 0 {
			lists = append(lists, l)
		}
	}
	return lists
}

// Close unloads the module and releases the pool.
func (p *planner) Close(ctx context.Context) error {
	err := p.mod.Unload(ctx)
	if n := p.pool.Outstanding(); n > 0 {
		err = errors.Join(err, fmt.Errorf("%d pooled resources still outstanding", n))
	}
	p.pool.Close()
	return err
}
