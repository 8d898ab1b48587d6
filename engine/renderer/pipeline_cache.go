package renderer

import (
	"fmt"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	lru "github.com/hashicorp/golang-lru/v2"
)

// pipelineRegistrar creates the GPU objects of a pipeline.
type pipelineRegistrar interface {
	RegisterComputePipeline(p pipeline.Pipeline) error
	RegisterRenderPipeline(p pipeline.Pipeline) error
}

// PipelineCacheStats are cumulative pipeline cache counters.
type PipelineCacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Size      int
}

// pipelineCache is the implementation of the PipelineCache interface.
type pipelineCache struct {
	registrar pipelineRegistrar
	entries   *lru.Cache[string, pipeline.Pipeline]

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// PipelineCache creates compute and render pipelines on first use and keeps the most recently
// used ones. Pipelines are keyed by shader key, permutation and target format, so every shader
// variant gets its own pipeline. Evicted pipelines release their GPU objects. Safe for concurrent use.
type PipelineCache interface {
	// Compute returns the compute pipeline of a compiled compute shader.
	//
	// Parameters:
	//   - cs: the compute shader variant
	//
	// Returns:
	//   - pipeline.Pipeline: the cached or newly created pipeline
	//   - error: a pipeline creation error
	Compute(cs shader.Shader) (pipeline.Pipeline, error)

	// Render returns the triangle strip render pipeline drawing vs and fs into a target of the given format.
	//
	// Parameters:
	//   - vs: the vertex shader variant
	//   - fs: the fragment shader variant
	//   - format: the color target format
	//
	// Returns:
	//   - pipeline.Pipeline: the cached or newly created pipeline
	//   - error: a pipeline creation error
	Render(vs, fs shader.Shader, format wgpu.TextureFormat) (pipeline.Pipeline, error)

	// Len returns the number of cached pipelines.
	Len() int

	// Stats returns the cache counters.
	Stats() PipelineCacheStats

	// Purge releases every cached pipeline.
	Purge()
}

var _ PipelineCache = &pipelineCache{}

// newPipelineCache creates a PipelineCache holding at most size pipelines.
func newPipelineCache(registrar pipelineRegistrar, size int) PipelineCache {
	c := &pipelineCache{registrar: registrar}
	entries, err := lru.NewWithEvict[string, pipeline.Pipeline](size, c.onEvict)
	if err != nil {
		panic(fmt.Sprintf("renderer: invalid pipeline cache size %d: %v", size, err))
	}
	c.entries = entries
	return c
}

func (c *pipelineCache) Compute(cs shader.Shader) (pipeline.Pipeline, error) {
	if cs == nil || cs.Type() != shader.ShaderTypeCompute {
		return nil, fmt.Errorf("%w: compute pipeline needs a compute shader", ErrUnresolvedShader)
	}
	key := pipeline.Key(wgpu.TextureFormatUndefined, cs)
	return c.getOrCreate(key, func() (pipeline.Pipeline, error) {
		p := pipeline.NewPipeline(pipeline.PipelineTypeCompute,
			pipeline.WithPipelineKey(key),
			pipeline.WithComputeShader(cs),
		)
		return p, c.registrar.RegisterComputePipeline(p)
	})
}

func (c *pipelineCache) Render(vs, fs shader.Shader, format wgpu.TextureFormat) (pipeline.Pipeline, error) {
	if vs == nil || fs == nil {
		return nil, fmt.Errorf("%w: render pipeline needs a vertex and a fragment shader", ErrUnresolvedShader)
	}
	key := pipeline.Key(format, vs, fs)
	return c.getOrCreate(key, func() (pipeline.Pipeline, error) {
		p := pipeline.NewPipeline(pipeline.PipelineTypeRender,
			pipeline.WithPipelineKey(key),
			pipeline.WithVertexShader(vs),
			pipeline.WithFragmentShader(fs),
			pipeline.WithTargetFormat(format),
			pipeline.WithTopology(wgpu.PrimitiveTopologyTriangleStrip),
		)
		return p, c.registrar.RegisterRenderPipeline(p)
	})
}

func (c *pipelineCache) getOrCreate(key string, create func() (pipeline.Pipeline, error)) (pipeline.Pipeline, error) {
	if p, ok := c.entries.Get(key); ok {
		c.hits.Add(1)
		return p, nil
	}
	c.misses.Add(1)

	p, err := create()
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("renderer: create pipeline %s: %w", key, err)
	}
	if prev, found, _ := c.entries.PeekOrAdd(key, p); found {
		p.Release()
		return prev, nil
	}
	return p, nil
}

func (c *pipelineCache) onEvict(_ string, p pipeline.Pipeline) {
	c.evictions.Add(1)
	p.Release()
}

func (c *pipelineCache) Len() int {
	return c.entries.Len()
}

func (c *pipelineCache) Stats() PipelineCacheStats {
	return PipelineCacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.entries.Len(),
	}
}

func (c *pipelineCache) Purge() {
	c.entries.Purge()
}
