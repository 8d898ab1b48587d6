package pass

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-varid/engine/resource"
)

var (
	// ErrInvalidBinding is returned when a pass references a resource it cannot read or write,
	// or a binding its shader does not declare.
	ErrInvalidBinding = errors.New("pass: invalid binding")
	// ErrInvalidDescription is returned for a structurally incomplete pass description.
	ErrInvalidDescription = errors.New("pass: invalid description")
)

// Builder validates pass descriptions against the resources of one invocation and collects
// them into a CommandList. A failed Add leaves the builder unchanged; the caller skips the
// pass chain for the frame rather than retrying. A Builder is not safe for concurrent use.
type Builder struct {
	ctx  *Context
	cmds []Command
}

// NewBuilder creates a Builder for one hook invocation.
//
// Parameters:
//   - ctx: the invocation context
//
// Returns:
//   - *Builder: the builder
func NewBuilder(ctx *Context) *Builder {
	if ctx == nil {
		panic("pass: builder requires a context")
	}
	return &Builder{ctx: ctx}
}

// Len returns the number of passes added so far.
func (b *Builder) Len() int {
	return len(b.cmds)
}

// Add validates a pass and appends it. On success every output handle becomes readable
// for the passes added after it.
//
// Parameters:
//   - desc: the pass description
//
// Returns:
//   - error: ErrInvalidDescription, ErrInvalidBinding, or a shader compile error
func (b *Builder) Add(desc Description) error {
	if err := validateShape(desc); err != nil {
		return err
	}
	for _, in := range desc.Inputs {
		if err := checkInput(desc.Name, in); err != nil {
			return err
		}
	}
	for _, out := range desc.Outputs {
		if err := checkOutput(desc, out); err != nil {
			return err
		}
	}

	cmd := Command{Description: desc}
	if b.ctx.Shaders != nil {
		if err := b.resolveShaders(&cmd); err != nil {
			return err
		}
	}

	for _, out := range desc.Outputs {
		out.Handle.MarkInitialized()
	}
	b.cmds = append(b.cmds, cmd)
	return nil
}

// Build returns the collected command list.
//
// Returns:
//   - *CommandList: the passes in the order they were added
func (b *Builder) Build() *CommandList {
	return &CommandList{
		Frame:    b.ctx.Frame,
		View:     b.ctx.View,
		Commands: append([]Command(nil), b.cmds...),
	}
}

func validateShape(desc Description) error {
	if desc.Name == "" || desc.Shader == "" {
		return fmt.Errorf("%w: pass needs a name and a shader", ErrInvalidDescription)
	}
	switch desc.Kind {
	case KindCompute:
		if desc.Dispatch[0] == 0 || desc.Dispatch[1] == 0 || desc.Dispatch[2] == 0 {
			return fmt.Errorf("%w: %s: empty dispatch %v", ErrInvalidDescription, desc.Name, desc.Dispatch)
		}
		if len(desc.Outputs) == 0 {
			return fmt.Errorf("%w: %s: compute pass writes nothing", ErrInvalidDescription, desc.Name)
		}
	case KindRaster:
		if desc.VertexShader == "" {
			return fmt.Errorf("%w: %s: raster pass needs a vertex shader", ErrInvalidDescription, desc.Name)
		}
		if len(desc.Outputs) != 1 {
			return fmt.Errorf("%w: %s: raster pass needs exactly one color target, got %d", ErrInvalidDescription, desc.Name, len(desc.Outputs))
		}
		if desc.Draw.VertexCount == 0 || desc.Draw.Viewport.Empty() {
			return fmt.Errorf("%w: %s: empty draw", ErrInvalidDescription, desc.Name)
		}
	default:
		return fmt.Errorf("%w: %s: unknown kind %d", ErrInvalidDescription, desc.Name, desc.Kind)
	}
	return nil
}

func checkMip(pass string, bind Binding, allowAll bool) error {
	mips := int(bind.Handle.Descriptor().MipLevels)
	if bind.Handle.Descriptor().Kind == resource.KindBuffer {
		mips = 1
	}
	if bind.Mip == AllMips && allowAll {
		return nil
	}
	if bind.Mip < 0 || bind.Mip >= max(mips, 1) {
		return fmt.Errorf("%w: %s.%s: mip %d outside %d levels", ErrInvalidBinding, pass, bind.Name, bind.Mip, mips)
	}
	return nil
}

func checkInput(pass string, in Binding) error {
	switch {
	case in.Handle == nil:
		return fmt.Errorf("%w: %s.%s: no resource", ErrInvalidBinding, pass, in.Name)
	case !in.Handle.Valid():
		return fmt.Errorf("%w: %s.%s: %s is released", ErrInvalidBinding, pass, in.Name, in.Handle.Descriptor().Label)
	case !in.Handle.Readable():
		return fmt.Errorf("%w: %s.%s: %s has not been written", ErrInvalidBinding, pass, in.Name, in.Handle.Descriptor().Label)
	case !in.Handle.Descriptor().Usage.Has(resource.UsageSampled):
		return fmt.Errorf("%w: %s.%s: %s is not sampleable (%s)", ErrInvalidBinding, pass, in.Name, in.Handle.Descriptor().Label, in.Handle.Descriptor().Usage)
	}
	return checkMip(pass, in, true)
}

func checkOutput(desc Description, out Binding) error {
	if out.Handle == nil {
		return fmt.Errorf("%w: %s.%s: no resource", ErrInvalidBinding, desc.Name, out.Name)
	}
	d := out.Handle.Descriptor()
	if !out.Handle.Valid() {
		return fmt.Errorf("%w: %s.%s: %s is released", ErrInvalidBinding, desc.Name, out.Name, d.Label)
	}
	need := resource.UsageStorage
	if desc.Kind == KindRaster {
		need = resource.UsageRenderTarget
	}
	if !d.Usage.Has(need) {
		return fmt.Errorf("%w: %s.%s: %s is not writable as %s (%s)", ErrInvalidBinding, desc.Name, out.Name, d.Label, need, d.Usage)
	}
	return checkMip(desc.Name, out, false)
}

// resolveShaders compiles the pass shaders and checks the description binds exactly the
// resources they declare.
func (b *Builder) resolveShaders(cmd *Command) error {
	lib := b.ctx.Shaders
	var stages []shader.Shader

	if cmd.Kind == KindRaster {
		vs, err := lib.Shader(cmd.VertexShader, cmd.Permutation)
		if err != nil {
			return fmt.Errorf("%s: %w", cmd.Name, err)
		}
		fs, err := lib.Shader(cmd.Shader, cmd.Permutation)
		if err != nil {
			return fmt.Errorf("%s: %w", cmd.Name, err)
		}
		cmd.Vertex, cmd.Fragment = vs, fs
		stages = []shader.Shader{vs, fs}
	} else {
		cs, err := lib.Shader(cmd.Shader, cmd.Permutation)
		if err != nil {
			return fmt.Errorf("%s: %w", cmd.Name, err)
		}
		cmd.Compute = cs
		stages = []shader.Shader{cs}
	}

	lookup := func(name string) (shader.ResourceBinding, bool) {
		for _, s := range stages {
			if rb, ok := s.Binding(name); ok {
				return rb, true
			}
		}
		return shader.ResourceBinding{}, false
	}

	supplied := make(map[string]bool)
	check := func(name string, ok func(shader.ResourceBinding) bool, what string) error {
		if supplied[name] {
			return fmt.Errorf("%w: %s.%s: bound twice", ErrInvalidBinding, cmd.Name, name)
		}
		supplied[name] = true
		rb, found := lookup(name)
		if !found {
			return fmt.Errorf("%w: %s.%s: not declared by the shader", ErrInvalidBinding, cmd.Name, name)
		}
		if !ok(rb) {
			return fmt.Errorf("%w: %s.%s: declared as %s, bound as %s", ErrInvalidBinding, cmd.Name, name, rb.Kind, what)
		}
		return nil
	}

	for _, in := range cmd.Inputs {
		if err := check(in.Name, func(rb shader.ResourceBinding) bool { return rb.IsTexture() && rb.Readable() }, "input"); err != nil {
			return err
		}
	}
	if cmd.Kind == KindCompute {
		for _, out := range cmd.Outputs {
			if err := check(out.Name, shader.ResourceBinding.Writable, "output"); err != nil {
				return err
			}
		}
	}
	for _, s := range cmd.Samplers {
		if err := check(s.Name, func(rb shader.ResourceBinding) bool { return rb.Kind == shader.BindingKindSampler }, "sampler"); err != nil {
			return err
		}
	}
	for _, u := range cmd.Uniforms {
		if err := check(u.Name, func(rb shader.ResourceBinding) bool { return rb.Kind == shader.BindingKindUniformBuffer }, "uniform"); err != nil {
			return err
		}
	}
	for _, buf := range cmd.Buffers {
		if err := check(buf.Name, func(rb shader.ResourceBinding) bool {
			return rb.Kind == shader.BindingKindStorageBuffer && !rb.Writable()
		}, "buffer"); err != nil {
			return err
		}
	}

	for _, s := range stages {
		for _, rb := range s.Bindings() {
			if !supplied[rb.Name] {
				return fmt.Errorf("%w: %s.%s: declared by %s but not bound", ErrInvalidBinding, cmd.Name, rb.Name, s.Key())
			}
		}
	}
	return nil
}
