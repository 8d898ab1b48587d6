// Package varid simulates visual impairments in the post-processing chain. A Module loads
// impairment profiles, registers its shaders and installs a callback after tone mapping that
// blurs, reduces contrast, inpaints and warps each view according to the active profile.
package varid

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-varid/common"
	"github.com/Carmen-Shannon/oxy-varid/engine/frame_graph"
	"github.com/Carmen-Shannon/oxy-varid/engine/hook"
	"github.com/Carmen-Shannon/oxy-varid/engine/lifecycle"
	"github.com/Carmen-Shannon/oxy-varid/engine/pass"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-varid/engine/resource"
)

// DefaultDisplayFOV is the display field of view assumed until SetDisplayFOV is called.
var DefaultDisplayFOV = common.Vec2{X: 90, Y: 90}

// renderState is the per-frame copy of everything the render callback reads.
type renderState struct {
	frame       uint64
	profile     Profile
	eyeTracking EyeTracking
}

// module is the implementation of the Module interface.
type module struct {
	mu         *sync.Mutex
	shaders    shader.Library
	hooks      hook.Table
	controller lifecycle.Controller

	shaderDir  string
	contentDir string
	profileExt string
	priority   int

	profile     Profile
	eyeTracking EyeTracking
	fov         common.Vec2

	registration hook.Registration
	rendering    atomic.Bool
	snapshot     atomic.Pointer[renderState]
}

// Module is the VARID extension. Profile, FX, eye tracking and FOV setters may be called
// from any goroutine; the render callback only sees them after the next SetupViewFamily.
type Module interface {
	// Load registers the shader directory, defines the shaders and installs the post-tonemap
	// callback. A failed step undoes the earlier ones.
	//
	// Parameters:
	//   - ctx: passed to every lifecycle step
	//
	// Returns:
	//   - error: lifecycle.ErrInvalidTransition or lifecycle.ErrPartialInitialization
	Load(ctx context.Context) error

	// Unload ends rendering and reverses Load. Unloading twice is a no-op.
	//
	// Parameters:
	//   - ctx: passed to every lifecycle step
	//
	// Returns:
	//   - error: the joined undo errors
	Unload(ctx context.Context) error

	// State returns the lifecycle state.
	State() lifecycle.State

	// BeginRendering lets the installed callback render. Without it every view passes through.
	BeginRendering()

	// EndRendering stops rendering without unloading.
	EndRendering()

	// IsRendering reports whether rendering has begun.
	IsRendering() bool

	// LoadProfile reads a profile using the current display FOV. It does not activate it.
	//
	// Parameters:
	//   - path: the profile file
	//
	// Returns:
	//   - Profile: the valid profile
	//   - error: ErrInvalidFOV or ErrInvalidProfile
	LoadProfile(path string) (Profile, error)

	// SetActiveProfile makes a copy of p the active profile.
	//
	// Parameters:
	//   - p: the profile
	//
	// Returns:
	//   - error: ErrInvalidProfile if p is not valid; the active profile is unchanged
	SetActiveProfile(p Profile) error

	// ActiveProfile returns a copy of the active profile.
	ActiveProfile() Profile

	// ListProfiles lists profile files. An empty root means <content dir>/Profiles and an
	// empty ext means the configured extension.
	//
	// Parameters:
	//   - root: the directory
	//   - ext: the extension
	//
	// Returns:
	//   - []string: the full paths, sorted
	//   - error: if the directory does not exist
	ListProfiles(root, ext string) ([]string, error)

	// FX returns a copy of one effect switch of the active profile.
	//
	// Parameters:
	//   - id: the effect id
	//
	// Returns:
	//   - FX: the switch
	//   - error: ErrInvalidFX
	FX(id FXID) (FX, error)

	// FXList returns copies of every effect switch of the active profile, indexed by FXID.
	FXList() []FX

	// ToggleFX flips one effect of the active profile.
	//
	// Parameters:
	//   - id: the effect id
	//
	// Returns:
	//   - error: ErrInvalidFX
	ToggleFX(id FXID) error

	// EnableAllFX turns every effect of the active profile on.
	EnableAllFX()

	// DisableAllFX turns every effect of the active profile off.
	DisableAllFX()

	// EyeTracking returns the latest gaze points.
	EyeTracking() EyeTracking

	// SetEyeTracking stores new gaze points.
	SetEyeTracking(e EyeTracking)

	// DisplayFOV returns the display field of view used to place profile points.
	DisplayFOV() common.Vec2

	// SetDisplayFOV changes the display field of view. Profiles loaded earlier keep the
	// placement they were loaded with.
	//
	// Parameters:
	//   - fov: the field of view in degrees
	//
	// Returns:
	//   - error: ErrInvalidFOV
	SetDisplayFOV(fov common.Vec2) error

	// SetupViewFamily copies the active profile and eye tracking for the frame about to run.
	//
	// Parameters:
	//   - frame: the frame number
	SetupViewFamily(frame uint64)
}

var _ Module = &module{}
var _ frame_graph.ViewFamilyExtension = &module{}

// NewModule creates an unloaded VARID module. Its shaders are defined in lib and read
// through lib's source registry.
//
// Parameters:
//   - lib: the shader library
//   - hooks: the hook table the callback is installed in
//   - opts: optional builder options
//
// Returns:
//   - Module: the module
func NewModule(lib shader.Library, hooks hook.Table, opts ...ModuleBuilderOption) Module {
	if lib == nil || hooks == nil {
		panic("varid: module requires a shader library and a hook table")
	}
	m := &module{
		mu:         &sync.Mutex{},
		shaders:    lib,
		hooks:      hooks,
		profileExt: ".json",
		profile:    DefaultProfile(),
		fov:        DefaultDisplayFOV,
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := CheckFOV(m.fov); err != nil {
		panic(err)
	}

	m.controller = lifecycle.NewController("VARID", []lifecycle.Step{
		{Name: "register shader directory", Do: m.registerShaderSource, Undo: m.unregisterShaderSource},
		{Name: "define shaders", Do: m.defineShaders, Undo: m.undefineShaders},
		{Name: "install post-tonemap hook", Do: m.installHook, Undo: m.uninstallHook},
	}, lifecycle.WithTransitionHook(func(from, to lifecycle.State) {
		log.Printf("[VARID] %s -> %s", from, to)
	}))
	return m
}

func (m *module) registerShaderSource(context.Context) error {
	reg := m.shaders.Registry()
	if m.shaderDir != "" {
		return reg.Register(ShaderMount, m.shaderDir)
	}
	return reg.RegisterFS(ShaderMount, ShaderFS())
}

func (m *module) unregisterShaderSource(context.Context) error {
	return m.shaders.Registry().Unregister(ShaderMount)
}

func (m *module) defineShaders(context.Context) error {
	return defineShaders(m.shaders)
}

func (m *module) undefineShaders(context.Context) error {
	return undefineShaders(m.shaders, shaderDescriptors)
}

func (m *module) installHook(context.Context) error {
	reg, err := m.hooks.Install(hook.PointAfterTonemap, m.postTonemap, m.priority, hook.WithName("VARID"))
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.registration = reg
	m.mu.Unlock()
	return nil
}

func (m *module) uninstallHook(context.Context) error {
	m.mu.Lock()
	reg := m.registration
	m.mu.Unlock()
	return m.hooks.Uninstall(hook.PointAfterTonemap, reg)
}

func (m *module) Load(ctx context.Context) error {
	return m.controller.Load(ctx)
}

func (m *module) Unload(ctx context.Context) error {
	m.EndRendering()
	return m.controller.Unload(ctx)
}

func (m *module) State() lifecycle.State {
	return m.controller.State()
}

func (m *module) BeginRendering() {
	m.rendering.Store(true)
}

func (m *module) EndRendering() {
	if m.rendering.Swap(false) {
		m.snapshot.Store(nil)
	}
}

func (m *module) IsRendering() bool {
	return m.rendering.Load()
}

func (m *module) LoadProfile(path string) (Profile, error) {
	return LoadProfile(path, m.DisplayFOV())
}

func (m *module) SetActiveProfile(p Profile) error {
	if !p.Valid {
		return fmt.Errorf("%w: %q is not a valid profile", ErrInvalidProfile, p.Name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile = p.Clone()
	return nil
}

func (m *module) ActiveProfile() Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile.Clone()
}

func (m *module) ListProfiles(root, ext string) ([]string, error) {
	root = common.Coalesce(root, filepath.Join(m.contentDir, "Profiles"))
	return ListProfiles(root, common.Coalesce(ext, m.profileExt))
}

func (m *module) FX(id FXID) (FX, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fx, err := m.profile.FX(id)
	if err != nil {
		return FX{}, err
	}
	return *fx, nil
}

func (m *module) FXList() []FX {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.profile.FXList()
	out := make([]FX, len(list))
	for i, fx := range list {
		out[i] = *fx
	}
	return out
}

func (m *module) ToggleFX(id FXID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile.ToggleFX(id)
}

func (m *module) EnableAllFX() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile.EnableAllFX()
}

func (m *module) DisableAllFX() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile.DisableAllFX()
}

func (m *module) EyeTracking() EyeTracking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.eyeTracking
}

func (m *module) SetEyeTracking(e EyeTracking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eyeTracking = e
}

func (m *module) DisplayFOV() common.Vec2 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fov
}

func (m *module) SetDisplayFOV(fov common.Vec2) error {
	if err := CheckFOV(fov); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fov = fov
	return nil
}

func (m *module) SetupViewFamily(frame uint64) {
	if !m.rendering.Load() {
		return
	}
	m.mu.Lock()
	st := &renderState{
		frame:       frame,
		profile:     m.profile.Clone(),
		eyeTracking: m.eyeTracking,
	}
	m.mu.Unlock()
	m.snapshot.Store(st)
}

// postTonemap is the AfterTonemap callback. Views it cannot render pass through untouched.
func (m *module) postTonemap(ctx *pass.Context) (pass.Output, error) {
	if !m.controller.IsActive() || !m.rendering.Load() {
		return pass.PassThrough(ctx), nil
	}
	sc := ctx.SceneColor
	if sc == nil || !sc.Valid() || !sc.Descriptor().Usage.Has(resource.UsageSampled) {
		return pass.PassThrough(ctx), nil
	}
	st := m.snapshot.Load()
	if st == nil || !st.profile.Valid {
		return pass.PassThrough(ctx), nil
	}

	local := *ctx
	if local.Shaders == nil {
		local.Shaders = m.shaders
	}
	out, err := renderView(&local, st)
	if err != nil {
		return pass.PassThrough(ctx), fmt.Errorf("varid: frame %d view %d: %w", ctx.Frame, ctx.View.Index, err)
	}
	return out, nil
}
