package renderer

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-varid/common"
	"github.com/Carmen-Shannon/oxy-varid/engine/frame_graph"
	"github.com/Carmen-Shannon/oxy-varid/engine/pass"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-varid/engine/resource"
	"github.com/cogentcore/webgpu/wgpu"
)

// recordBackend is the part of the backend the recorder encodes through.
type recordBackend interface {
	pipelineRegistrar
	CreateSampler(kind pass.SamplerKind) (*wgpu.Sampler, error)
	InitBindGroup(provider bind_group_provider.BindGroupProvider, layout *wgpu.BindGroupLayout, entries []wgpu.BindGroupLayoutEntry) error
	WriteBuffers(writes []bind_group_provider.BufferWrite) error
	BeginFrame() error
	DispatchCompute(p pipeline.Pipeline, providers []bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error
	DrawCall(p pipeline.Pipeline, providers []bind_group_provider.BindGroupProvider, target *wgpu.TextureView, viewport common.IntRect, clear bool, vertices *wgpu.Buffer, vertexCount uint32) error
	EndFrame() error
	AbortFrame()
}

// resourceResolver maps pooled handles to the wgpu objects they wrap.
type resourceResolver interface {
	View(h *resource.Handle, mip int) (*wgpu.TextureView, error)
	Buffer(h *resource.Handle) (*wgpu.Buffer, error)
}

// handleResolver resolves handles backed by the wgpu allocator.
type handleResolver struct{}

func (handleResolver) View(h *resource.Handle, mip int) (*wgpu.TextureView, error) {
	return textureView(h, mip)
}

func (handleResolver) Buffer(h *resource.Handle) (*wgpu.Buffer, error) {
	b, ok := h.Buffer()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoGPUResource, h.Descriptor().Label)
	}
	return b.Buffer(), nil
}

// presentTarget is the texture the final scene colour of each view is blitted into.
type presentTarget struct {
	handle      *resource.Handle
	textureSize common.IntPoint
}

// RecorderStats are cumulative recorder counters.
type RecorderStats struct {
	Frames     uint64
	Dispatches uint64
	Draws      uint64
	Uploaded   uint64
	Failures   uint64
}

// recorder is the implementation of the Recorder interface.
type recorder struct {
	mu       *sync.Mutex
	backend  recordBackend
	cache    PipelineCache
	pool     resource.Pool
	shaders  shader.Library
	resolver resourceResolver
	samplers map[pass.SamplerKind]*wgpu.Sampler

	target atomic.Pointer[presentTarget]

	frames     atomic.Uint64
	dispatches atomic.Uint64
	draws      atomic.Uint64
	uploaded   atomic.Uint64
	failures   atomic.Uint64
}

// Recorder translates the command lists of a frame into GPU work: compute passes become
// dispatches, raster passes become triangle strip draws, and uniform and storage data is
// uploaded into buffers acquired from the resource pool for the frame. Every frame is
// submitted as one command buffer.
type Recorder interface {
	frame_graph.Recorder

	// SetPresentTarget sets the texture the next submitted frame blits each view's final
	// scene colour into. The target is consumed by that frame.
	//
	// Parameters:
	//   - target: an imported render target, nil to skip the blit
	//   - textureSize: the extent of the scene colour the views index into
	SetPresentTarget(target *resource.Handle, textureSize common.IntPoint)

	// Pipelines returns the pipeline cache the recorder creates pipelines through.
	//
	// Returns:
	//   - PipelineCache: the cache
	Pipelines() PipelineCache

	// Stats returns the recorder counters.
	//
	// Returns:
	//   - RecorderStats: the counters
	Stats() RecorderStats

	// Release releases the samplers and every cached pipeline.
	Release()
}

var _ Recorder = &recorder{}

// newRecorder creates a Recorder encoding through backend. Upload buffers come from pool
// and blit shaders from lib.
func newRecorder(backend recordBackend, pool resource.Pool, lib shader.Library, cacheSize int) (*recorder, error) {
	r := &recorder{
		mu:       &sync.Mutex{},
		backend:  backend,
		cache:    newPipelineCache(backend, cacheSize),
		pool:     pool,
		shaders:  lib,
		resolver: handleResolver{},
		samplers: make(map[pass.SamplerKind]*wgpu.Sampler),
	}
	for _, kind := range []pass.SamplerKind{pass.SamplerBilinear, pass.SamplerTrilinear, pass.SamplerPoint} {
		s, err := backend.CreateSampler(kind)
		if err != nil {
			r.Release()
			return nil, fmt.Errorf("renderer: create sampler %d: %w", kind, err)
		}
		r.samplers[kind] = s
	}
	return r, nil
}

func (r *recorder) SetPresentTarget(target *resource.Handle, textureSize common.IntPoint) {
	if target == nil {
		r.target.Store(nil)
		return
	}
	r.target.Store(&presentTarget{handle: target, textureSize: textureSize})
}

func (r *recorder) Pipelines() PipelineCache {
	return r.cache
}

// frameRecording holds what one Submit creates and must release.
type frameRecording struct {
	scope     *resource.FrameScope
	providers []bind_group_provider.BindGroupProvider
	writes    []bind_group_provider.BufferWrite
}

func (f *frameRecording) release() {
	for _, p := range f.providers {
		p.Release()
	}
	f.providers = nil
	if err := f.scope.Close(); err != nil {
		log.Printf("[Renderer] frame %d: releasing upload buffers: %v", f.scope.Frame(), err)
	}
}

func (r *recorder) Submit(sub frame_graph.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target := r.target.Swap(nil)
	fr := &frameRecording{scope: resource.NewFrameScope(r.pool, sub.Frame)}
	defer fr.release()

	if err := r.backend.BeginFrame(); err != nil {
		r.failures.Add(1)
		return err
	}

	if err := r.recordFrame(fr, sub, target); err != nil {
		r.backend.AbortFrame()
		r.failures.Add(1)
		return err
	}

	if err := r.backend.WriteBuffers(fr.writes); err != nil {
		r.backend.AbortFrame()
		r.failures.Add(1)
		return err
	}
	if err := r.backend.EndFrame(); err != nil {
		r.failures.Add(1)
		return err
	}
	for _, w := range fr.writes {
		r.uploaded.Add(w.Size())
	}
	r.frames.Add(1)
	return nil
}

func (r *recorder) recordFrame(fr *frameRecording, sub frame_graph.Submission, target *presentTarget) error {
	for _, list := range sub.Lists {
		for _, cmd := range list.Commands {
			if err := r.record(fr, cmd); err != nil {
				return fmt.Errorf("%s: %w", list, err)
			}
		}
	}
	if target == nil {
		return nil
	}

	for i, out := range sub.Outputs {
		if out.SceneColor == nil {
			continue
		}
		ctx := &pass.Context{
			Frame:       sub.Frame,
			View:        out.View,
			TextureSize: target.textureSize,
			SceneColor:  out.SceneColor,
			Resources:   fr.scope,
			Shaders:     r.shaders,
		}
		b := pass.NewBuilder(ctx)
		if err := b.Add(blitDescription(out.View, target.textureSize, out.SceneColor, target.handle, i == 0)); err != nil {
			return fmt.Errorf("blit view %d: %w", out.View.Index, err)
		}
		for _, cmd := range b.Build().Commands {
			if err := r.record(fr, cmd); err != nil {
				return fmt.Errorf("blit view %d: %w", out.View.Index, err)
			}
		}
	}
	return nil
}

func (r *recorder) record(fr *frameRecording, cmd pass.Command) error {
	if cmd.Kind == pass.KindRaster {
		return r.recordDraw(fr, cmd)
	}

	if cmd.Compute == nil {
		return fmt.Errorf("%w: %s", ErrUnresolvedShader, cmd.Name)
	}
	stages := []shader.Shader{cmd.Compute}
	p, err := r.cache.Compute(cmd.Compute)
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Name, err)
	}
	providers, err := r.bindGroups(fr, cmd, p, stages)
	if err != nil {
		return err
	}
	if err := r.backend.DispatchCompute(p, providers, cmd.Dispatch); err != nil {
		return fmt.Errorf("%s: %w", cmd.Name, err)
	}
	r.dispatches.Add(1)
	return nil
}

func (r *recorder) recordDraw(fr *frameRecording, cmd pass.Command) error {
	if cmd.Vertex == nil || cmd.Fragment == nil {
		return fmt.Errorf("%w: %s", ErrUnresolvedShader, cmd.Name)
	}
	if len(cmd.Outputs) != 1 {
		return fmt.Errorf("%w: %s: raster pass needs one color target", pass.ErrInvalidDescription, cmd.Name)
	}
	out := cmd.Outputs[0]

	stages := []shader.Shader{cmd.Vertex, cmd.Fragment}
	p, err := r.cache.Render(cmd.Vertex, cmd.Fragment, out.Handle.Descriptor().Format)
	if err != nil {
		return fmt.Errorf("%s: %w", cmd.Name, err)
	}
	providers, err := r.bindGroups(fr, cmd, p, stages)
	if err != nil {
		return err
	}

	view, err := r.resolver.View(out.Handle, out.Mip)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", cmd.Name, out.Name, err)
	}

	vertices := bind_group_provider.NewBindGroupProvider(cmd.Name + " Vertices")
	fr.providers = append(fr.providers, vertices)
	buf, err := r.upload(fr, vertices, 0, cmd.Name+" Vertices", cmd.Draw.Vertices, 0, resource.UsageVertex)
	if err != nil {
		return err
	}

	if err := r.backend.DrawCall(p, providers, view, cmd.Draw.Viewport, cmd.Draw.Clear, buf, cmd.Draw.VertexCount); err != nil {
		return fmt.Errorf("%s: %w", cmd.Name, err)
	}
	r.draws.Add(1)
	return nil
}

// bindGroups creates one bind group per group the stages declare, filled from the command.
func (r *recorder) bindGroups(fr *frameRecording, cmd pass.Command, p pipeline.Pipeline, stages []shader.Shader) ([]bind_group_provider.BindGroupProvider, error) {
	sources, err := resolveBindings(cmd, stages)
	if err != nil {
		return nil, err
	}

	var providers []bind_group_provider.BindGroupProvider
	byGroup := make(map[int]bind_group_provider.BindGroupProvider)
	for _, src := range sources {
		g, binding := src.binding.Group, src.binding.Binding
		prov, ok := byGroup[g]
		if !ok {
			prov = bind_group_provider.NewBindGroupProvider(
				fmt.Sprintf("%s group %d", cmd.Name, g),
				bind_group_provider.WithGroup(g),
			)
			byGroup[g] = prov
			providers = append(providers, prov)
			fr.providers = append(fr.providers, prov)
		}

		switch src.kind {
		case sourceTexture:
			view, err := r.resolver.View(src.handle, src.mip)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", cmd.Name, src.binding.Name, err)
			}
			prov.SetTextureView(binding, view)
		case sourceSampler:
			prov.SetSampler(binding, r.samplers[src.sampler])
		case sourceUniform, sourceStorage:
			usage := resource.UsageUniform
			if src.kind == sourceStorage {
				usage = resource.UsageStorage
			}
			label := cmd.Name + "." + src.binding.Name
			if _, err := r.upload(fr, prov, binding, label, src.data, src.binding.Layout.Buffer.MinBindingSize, usage); err != nil {
				return nil, err
			}
		}
	}

	layouts := stageLayouts(stages)
	pipelineLayouts := p.BindGroupLayouts()
	for _, prov := range providers {
		g := prov.Group()
		if g >= len(pipelineLayouts) {
			return nil, fmt.Errorf("%s: pipeline %s has no layout for group %d", cmd.Name, p.PipelineKey(), g)
		}
		if err := r.backend.InitBindGroup(prov, pipelineLayouts[g], layouts[g].Entries); err != nil {
			return nil, fmt.Errorf("%s: %w", cmd.Name, err)
		}
	}
	return providers, nil
}

// upload acquires a frame buffer for data, sets it on the provider's binding and stages the write.
func (r *recorder) upload(fr *frameRecording, prov bind_group_provider.BindGroupProvider, binding int, label string, data []byte, minSize uint64, usage resource.Usage) (*wgpu.Buffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s: no data to upload", pass.ErrInvalidDescription, label)
	}
	h, err := fr.scope.Acquire(resource.Buffer(label, uploadSize(data, minSize), usage))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	buf, err := r.resolver.Buffer(h)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	prov.SetBuffer(binding, buf)
	fr.writes = append(fr.writes, bind_group_provider.BufferWrite{
		Provider: prov,
		Binding:  binding,
		Data:     data,
	})
	return buf, nil
}

func (r *recorder) Stats() RecorderStats {
	return RecorderStats{
		Frames:     r.frames.Load(),
		Dispatches: r.dispatches.Load(),
		Draws:      r.draws.Load(),
		Uploaded:   r.uploaded.Load(),
		Failures:   r.failures.Load(),
	}
}

func (r *recorder) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cache.Purge()
	for kind, s := range r.samplers {
		if s != nil {
			s.Release()
		}
		delete(r.samplers, kind)
	}
}
