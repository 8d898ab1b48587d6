package renderer

import (
	"embed"
	"encoding/binary"
	"errors"
	"io/fs"
	"math"
	"time"

	"github.com/Carmen-Shannon/oxy-varid/common"
	"github.com/Carmen-Shannon/oxy-varid/engine/pass"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-varid/engine/resource"
)

// HostShaderMount is the logical name the host's own shaders are registered under.
const HostShaderMount = "/Engine"

// Shader keys of the host passes.
const (
	ShaderTestPattern = "Engine.TestPattern"
	ShaderBlitVS      = "Engine.BlitVS"
	ShaderBlitPS      = "Engine.BlitPS"
)

// blitVertexStride is the size of one BlitVertexInput: vec2 position, vec2 uv.
const blitVertexStride = 16

//go:embed shaders
var hostShaders embed.FS

var hostShaderDescriptors = []shader.Descriptor{
	{Key: ShaderTestPattern, VirtualPath: HostShaderMount + "/Private/TestPatternCS.wgsl", Type: shader.ShaderTypeCompute},
	{Key: ShaderBlitVS, VirtualPath: HostShaderMount + "/Private/BlitVS.wgsl", Type: shader.ShaderTypeVertex},
	{Key: ShaderBlitPS, VirtualPath: HostShaderMount + "/Private/BlitPS.wgsl", Type: shader.ShaderTypeFragment},
}

// DefineHostShaders registers the embedded host shader tree under HostShaderMount and
// defines the test pattern and blit shaders in lib.
//
// Parameters:
//   - lib: the shader library
//
// Returns:
//   - error: a registration or definition error; nothing is left registered on failure
func DefineHostShaders(lib shader.Library) error {
	sub, err := fs.Sub(hostShaders, "shaders")
	if err != nil {
		return err
	}
	if err := lib.Registry().RegisterFS(HostShaderMount, sub); err != nil {
		return err
	}
	for i, d := range hostShaderDescriptors {
		if err := lib.Define(d); err != nil {
			errs := []error{err}
			for _, prev := range hostShaderDescriptors[:i] {
				errs = append(errs, lib.Undefine(prev.Key))
			}
			errs = append(errs, lib.Registry().Unregister(HostShaderMount))
			return errors.Join(errs...)
		}
	}
	return nil
}

// GPUTestPatternParams matches the WGSL TestPatternParams struct. Size: 32 bytes.
type GPUTestPatternParams struct {
	Offset [2]int32   // offset  0: viewport origin (vec2<i32>)
	Size   [2]int32   // offset  8: viewport size (vec2<i32>)
	Time   float32    // offset 16: seconds since start (f32)
	Cell   float32    // offset 20: checker cell size in texels (f32)
	_      [2]float32 // offset 24: padding (vec2<f32>)
}

// Marshal serializes the params for upload.
func (g *GPUTestPatternParams) Marshal() []byte {
	buf := make([]byte, 32)
	binary.LittleEndian.PutUint32(buf[0:], uint32(g.Offset[0]))
	binary.LittleEndian.PutUint32(buf[4:], uint32(g.Offset[1]))
	binary.LittleEndian.PutUint32(buf[8:], uint32(g.Size[0]))
	binary.LittleEndian.PutUint32(buf[12:], uint32(g.Size[1]))
	binary.LittleEndian.PutUint32(buf[16:], math.Float32bits(g.Time))
	binary.LittleEndian.PutUint32(buf[20:], math.Float32bits(g.Cell))
	return buf
}

// TestPattern returns a hook callback that fills each view's viewport of the scene colour
// with an animated gradient. It stands in for the base pass the host does not have.
//
// Parameters:
//   - start: the time the animation is measured from
//
// Returns:
//   - func(*pass.Context) (pass.Output, error): the callback
func TestPattern(start time.Time) func(ctx *pass.Context) (pass.Output, error) {
	return func(ctx *pass.Context) (pass.Output, error) {
		vp := ctx.View.Viewport
		params := GPUTestPatternParams{
			Offset: [2]int32{int32(vp.Min.X), int32(vp.Min.Y)},
			Size:   [2]int32{int32(vp.Width()), int32(vp.Height())},
			Time:   float32(time.Since(start).Seconds()),
			Cell:   32,
		}
		b := pass.NewBuilder(ctx)
		err := b.Add(pass.Description{
			Name:   "Engine.TestPattern",
			Kind:   pass.KindCompute,
			Shader: ShaderTestPattern,
			Outputs: []pass.Binding{
				{Name: "out_tex", Handle: ctx.SceneColor},
			},
			Uniforms: []pass.DataBinding{{Name: "params", Data: params.Marshal()}},
			Dispatch: [3]uint32{
				uint32(common.DivCeil(vp.Width(), pass.GroupSize)),
				uint32(common.DivCeil(vp.Height(), pass.GroupSize)),
				1,
			},
		})
		if err != nil {
			return pass.PassThrough(ctx), err
		}
		return pass.Output{Commands: b.Build(), SceneColor: ctx.SceneColor}, nil
	}
}

// blitDescription describes the copy of a view's final scene colour into its viewport of
// the presentation target.
func blitDescription(view pass.View, textureSize common.IntPoint, src, dst *resource.Handle, clear bool) pass.Description {
	return pass.Description{
		Name:         "Engine.Blit",
		Kind:         pass.KindRaster,
		Shader:       ShaderBlitPS,
		VertexShader: ShaderBlitVS,
		Inputs:       []pass.Binding{{Name: "in_tex", Handle: src}},
		Outputs:      []pass.Binding{{Name: "color_target", Handle: dst}},
		Samplers:     []pass.SamplerBinding{{Name: "in_sampler", Sampler: pass.SamplerBilinear}},
		Draw: pass.Draw{
			VertexCount: 4,
			Vertices:    blitVertices(view.Viewport, textureSize),
			Viewport:    view.Viewport,
			Clear:       clear,
		},
	}
}

// blitVertices returns a full viewport triangle strip sampling the viewport's region of the source.
func blitVertices(vp common.IntRect, size common.IntPoint) []byte {
	u0 := float32(vp.Min.X) / float32(size.X)
	u1 := float32(vp.Max.X) / float32(size.X)
	v0 := float32(vp.Min.Y) / float32(size.Y)
	v1 := float32(vp.Max.Y) / float32(size.Y)
	verts := [4][4]float32{
		{-1, 1, u0, v0},
		{1, 1, u1, v0},
		{-1, -1, u0, v1},
		{1, -1, u1, v1},
	}
	return common.SliceToBytes(verts[:])
}
