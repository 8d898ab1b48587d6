package renderer

import (
	"errors"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-varid/common"
	"github.com/Carmen-Shannon/oxy-varid/engine/pass"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-varid/engine/resource"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/require"
)

var testSize = common.IntPoint{X: 128, Y: 64}

func newHostLibrary(t *testing.T) shader.Library {
	t.Helper()
	lib := shader.NewLibrary(shader.NewSourceRegistry())
	require.NoError(t, DefineHostShaders(lib))
	return lib
}

// layoutsFor returns one empty layout slot per group the stages declare.
func layoutsFor(stages ...shader.Shader) []*wgpu.BindGroupLayout {
	n := 0
	for g := range stageLayouts(stages) {
		n = max(n, g+1)
	}
	return make([]*wgpu.BindGroupLayout, n)
}

type drawCall struct {
	key       string
	viewport  common.IntRect
	clear     bool
	vertices  uint32
	providers int
}

// fakeBackend records calls instead of encoding GPU work.
type fakeBackend struct {
	mu sync.Mutex

	computeRegs int
	renderRegs  int
	registerErr error
	dispatchErr error

	begun, ended, aborted int
	dispatches            [][3]uint32
	draws                 []drawCall
	bindGroups            []string
	writes                []bind_group_provider.BufferWrite
}

var _ recordBackend = &fakeBackend{}

func (b *fakeBackend) RegisterComputePipeline(p pipeline.Pipeline) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.computeRegs++
	if b.registerErr != nil {
		return b.registerErr
	}
	p.SetBindGroupLayouts(layoutsFor(p.Shader(shader.ShaderTypeCompute)))
	return nil
}

func (b *fakeBackend) RegisterRenderPipeline(p pipeline.Pipeline) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.renderRegs++
	if b.registerErr != nil {
		return b.registerErr
	}
	p.SetBindGroupLayouts(layoutsFor(p.Shader(shader.ShaderTypeVertex), p.Shader(shader.ShaderTypeFragment)))
	return nil
}

func (b *fakeBackend) CreateSampler(pass.SamplerKind) (*wgpu.Sampler, error) {
	return new(wgpu.Sampler), nil
}

func (b *fakeBackend) InitBindGroup(provider bind_group_provider.BindGroupProvider, _ *wgpu.BindGroupLayout, entries []wgpu.BindGroupLayoutEntry) error {
	if _, err := provider.Entries(entries); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bindGroups = append(b.bindGroups, provider.Label())
	return nil
}

func (b *fakeBackend) WriteBuffers(writes []bind_group_provider.BufferWrite) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes = append(b.writes, writes...)
	return nil
}

func (b *fakeBackend) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.begun++
	return nil
}

func (b *fakeBackend) DispatchCompute(_ pipeline.Pipeline, _ []bind_group_provider.BindGroupProvider, wg [3]uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dispatchErr != nil {
		return b.dispatchErr
	}
	b.dispatches = append(b.dispatches, wg)
	return nil
}

func (b *fakeBackend) DrawCall(p pipeline.Pipeline, providers []bind_group_provider.BindGroupProvider, target *wgpu.TextureView, viewport common.IntRect, clear bool, vertices *wgpu.Buffer, count uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if target == nil || vertices == nil {
		return errors.New("draw without target or vertices")
	}
	b.draws = append(b.draws, drawCall{key: p.PipelineKey(), viewport: viewport, clear: clear, vertices: count, providers: len(providers)})
	return nil
}

func (b *fakeBackend) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ended++
	return nil
}

func (b *fakeBackend) AbortFrame() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.aborted++
}

// fakeResolver hands out placeholder wgpu objects for any handle.
type fakeResolver struct{}

func (fakeResolver) View(h *resource.Handle, _ int) (*wgpu.TextureView, error) {
	if h == nil {
		return nil, ErrNoGPUResource
	}
	return new(wgpu.TextureView), nil
}

func (fakeResolver) Buffer(*resource.Handle) (*wgpu.Buffer, error) {
	return new(wgpu.Buffer), nil
}
