package varid

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-varid/common"
	"github.com/Carmen-Shannon/oxy-varid/engine/pass"
	"github.com/Carmen-Shannon/oxy-varid/engine/resource"
	"github.com/cogentcore/webgpu/wgpu"
)

const (
	// NumInpaintPasses is the number of fill iterations the inpainter runs.
	NumInpaintPasses = 20
	// MaxInpaintMip is the coarsest pyramid level the inpainter fills at.
	MaxInpaintMip = 4

	warpOriginOffset = 0.5
	quadVertexStride = 24
)

var (
	usageIntermediate = resource.UsageSampled | resource.UsageStorage
	usageTarget       = resource.UsageSampled | resource.UsageRenderTarget
)

// NumPasses returns how many passes one view renders with a given number of pyramid levels.
func NumPasses(mips int) int {
	return 10*mips + 2 + NumInpaintPasses
}

// PyramidLevels returns the number of mip levels the pyramids of a texture are built with.
func PyramidLevels(size common.IntPoint) int {
	return max(1, min(common.NumMips2D(size), common.MaxMipLevels))
}

// chain records the passes of one view.
type chain struct {
	b      *pass.Builder
	ctx    *pass.Context
	vp     common.IntRect
	size   common.IntPoint
	mips   int
	eye    *Eye
	gaze   common.Vec2
	stereo pass.StereoPass
}

// renderView builds the full pass chain of one view: visual field maps, the gaussian,
// laplacian and contrast pyramids, the inpainter and the compositor.
func renderView(ctx *pass.Context, st *renderState) (pass.Output, error) {
	profile := st.profile
	c := &chain{
		b:      pass.NewBuilder(ctx),
		ctx:    ctx,
		vp:     ctx.View.Viewport,
		size:   ctx.TextureSize,
		mips:   PyramidLevels(ctx.TextureSize),
		eye:    profile.Eye(ctx.View.Stereo),
		gaze:   st.eyeTracking.Gaze(ctx.View.Stereo),
		stereo: ctx.View.Stereo,
	}
	if c.vp.Empty() {
		return pass.Output{}, fmt.Errorf("%w: empty viewport", pass.ErrInvalidDescription)
	}

	target, clear, err := c.target()
	if err != nil {
		return pass.Output{}, err
	}
	maps, err := c.visualFieldMaps()
	if err != nil {
		return pass.Output{}, err
	}
	scratch, err := c.scratch()
	if err != nil {
		return pass.Output{}, err
	}
	gauss, err := c.gaussianPyramid(scratch)
	if err != nil {
		return pass.Output{}, err
	}
	lap, err := c.laplacianPyramid(gauss, scratch)
	if err != nil {
		return pass.Output{}, err
	}
	con, err := c.contrastPyramid(lap, maps.contrast, scratch)
	if err != nil {
		return pass.Output{}, err
	}
	position, err := c.inpaint(con, maps.inpaint)
	if err != nil {
		return pass.Output{}, err
	}
	if err := c.composite(target, clear, gauss, con, position, maps); err != nil {
		return pass.Output{}, err
	}

	return pass.Output{Commands: c.b.Build(), SceneColor: target}, nil
}

func (c *chain) acquire(label string, format wgpu.TextureFormat, mips int, usage resource.Usage) (*resource.Handle, error) {
	return c.ctx.Resources.Acquire(resource.Texture2D(label, format, c.size, mips, usage))
}

// target returns the texture the compositor draws into and whether it must be cleared.
func (c *chain) target() (*resource.Handle, bool, error) {
	if c.ctx.Override != nil && c.ctx.Override.Valid() {
		return c.ctx.Override, false, nil
	}
	h, err := c.acquire("VARID.BackBuffer", c.ctx.SceneColor.Descriptor().Format, 1, usageTarget)
	return h, true, err
}

func (c *chain) params(region pass.MipRegion) GPUPassParams {
	ts := region.TexelSize()
	return GPUPassParams{
		Offset:    [2]int32{int32(region.Offset.X), int32(region.Offset.Y)},
		TexelSize: [2]float32{ts.X, ts.Y},
	}
}

func (c *chain) region(mip int) pass.MipRegion {
	return pass.MipDispatch(c.vp, c.size, mip)
}

// compute adds a compute pass over a region with the standard parameter block.
func (c *chain) compute(name, key string, region pass.MipRegion, p GPUPassParams, inputs, outputs []pass.Binding, opts ...func(*pass.Description)) error {
	desc := pass.Description{
		Name:     name,
		Kind:     pass.KindCompute,
		Shader:   key,
		Inputs:   inputs,
		Outputs:  outputs,
		Uniforms: []pass.DataBinding{{Name: "params", Data: p.Marshal()}},
		Dispatch: region.Groups(),
	}
	for _, opt := range opts {
		opt(&desc)
	}
	return c.b.Add(desc)
}

func bind(name string, h *resource.Handle, mip int) pass.Binding {
	return pass.Binding{Name: name, Handle: h, Mip: mip}
}

func withBilinear(name string) func(*pass.Description) {
	return func(d *pass.Description) {
		d.Samplers = append(d.Samplers, pass.SamplerBinding{Name: name, Sampler: pass.SamplerBilinear})
	}
}

func withPermutation(d *pass.Description) {
	d.Permutation = vfMapPermutation
}

type vfMaps struct {
	blur     *resource.Handle
	contrast *resource.Handle
	inpaint  *resource.Handle
	warp     *resource.Handle
}

// heightMap writes one visual field map into a mip of a single channel texture.
func (c *chain) heightMap(name string, enabled bool, m VFMap, origin float32, out *resource.Handle, mip int) error {
	points, originOffset := BuildMapPoints(enabled, m, c.gaze, c.stereo, origin)
	region := c.region(mip)
	p := c.params(region)
	p.OriginOffset = originOffset
	p.NumPoints = uint32(len(points))
	return c.compute(name, ShaderHeightMap, region, p, nil, []pass.Binding{bind("out_tex", out, mip)},
		func(d *pass.Description) {
			d.Buffers = []pass.DataBinding{{Name: "points", Data: MarshalMapPoints(points)}}
		})
}

func (c *chain) visualFieldMaps() (vfMaps, error) {
	var maps vfMaps
	var err error
	if maps.blur, err = c.acquire("VARID.BlurVFMap", wgpu.TextureFormatR32Float, 1, usageIntermediate); err != nil {
		return maps, err
	}
	if maps.contrast, err = c.acquire("VARID.ContrastVFMap", wgpu.TextureFormatR32Float, c.mips, usageIntermediate); err != nil {
		return maps, err
	}
	if maps.inpaint, err = c.acquire("VARID.InpaintVFMap", wgpu.TextureFormatR32Float, c.mips, usageIntermediate); err != nil {
		return maps, err
	}
	if maps.warp, err = c.acquire("VARID.WarpVFMap", wgpu.TextureFormatRG32Float, 1, usageIntermediate); err != nil {
		return maps, err
	}
	height, err := c.acquire("VARID.WarpHeightMap", wgpu.TextureFormatR32Float, 1, usageIntermediate)
	if err != nil {
		return maps, err
	}

	eye := c.eye
	if err := c.heightMap("VARID.BlurVFMap", eye.Blur.Enabled, eye.Blur.VFMap, 0, maps.blur, 0); err != nil {
		return maps, err
	}
	for m := range c.mips {
		level := min(m, NumContrastLevels-1)
		name := fmt.Sprintf("VARID.ContrastVFMap[%d]", m)
		if err := c.heightMap(name, eye.Contrast.Enabled, eye.Contrast.VFMaps[level], 0, maps.contrast, m); err != nil {
			return maps, err
		}
	}
	if err := c.heightMap("VARID.InpaintVFMap", eye.Inpaint.Enabled, eye.Inpaint.VFMap, 0, maps.inpaint, 0); err != nil {
		return maps, err
	}
	if err := c.heightMap("VARID.WarpHeightMap", eye.Warp.Enabled, eye.Warp.VFMap, warpOriginOffset, height, 0); err != nil {
		return maps, err
	}
	region := c.region(0)
	err = c.compute("VARID.WarpVFMap", ShaderNormalMap, region, c.params(region),
		[]pass.Binding{bind("in_height", height, 0)},
		[]pass.Binding{bind("out_tex", maps.warp, 0)})
	return maps, err
}

type scratch struct {
	up      *resource.Handle
	blurred *resource.Handle
}

func (c *chain) scratch() (scratch, error) {
	var s scratch
	var err error
	if s.up, err = c.acquire("VARID.Upsampled", wgpu.TextureFormatRGBA16Float, c.mips, usageIntermediate); err != nil {
		return s, err
	}
	s.blurred, err = c.acquire("VARID.Blurred", wgpu.TextureFormatRGBA16Float, c.mips, usageIntermediate)
	return s, err
}

func (c *chain) copyMip(name string, src *resource.Handle, srcMip int, dst *resource.Handle, mip int) error {
	region := c.region(mip)
	return c.compute(name, ShaderDirectCopy, region, c.params(region),
		[]pass.Binding{bind("in_tex", src, srcMip)},
		[]pass.Binding{bind("out_tex", dst, mip)})
}

func (c *chain) blur(name string, src, dst *resource.Handle, mip int) error {
	region := c.region(mip)
	return c.compute(name, ShaderGaussianBlur, region, c.params(region),
		[]pass.Binding{bind("in_tex", src, mip)},
		[]pass.Binding{bind("out_tex", dst, mip)})
}

// resample filters src at srcMip into dst at dstMip, covering the view's region of dstMip.
func (c *chain) resample(name string, src *resource.Handle, srcMip int, dst *resource.Handle, dstMip int, opts ...func(*pass.Description)) error {
	region := c.region(dstMip)
	return c.compute(name, ShaderResample, region, c.params(region),
		[]pass.Binding{bind("in_tex", src, srcMip)},
		[]pass.Binding{bind("out_tex", dst, dstMip)},
		append([]func(*pass.Description){withBilinear("in_sampler")}, opts...)...)
}

func (c *chain) gaussianPyramid(s scratch) (*resource.Handle, error) {
	gauss, err := c.acquire("VARID.Gaussian", wgpu.TextureFormatRGBA16Float, c.mips, usageIntermediate)
	if err != nil {
		return nil, err
	}
	if err := c.copyMip("VARID.Gaussian[0]", c.ctx.SceneColor, 0, gauss, 0); err != nil {
		return nil, err
	}
	for m := 1; m < c.mips; m++ {
		if err := c.blur(fmt.Sprintf("VARID.GaussianBlur[%d]", m-1), gauss, s.blurred, m-1); err != nil {
			return nil, err
		}
		if err := c.resample(fmt.Sprintf("VARID.Gaussian[%d]", m), s.blurred, m-1, gauss, m); err != nil {
			return nil, err
		}
	}
	return gauss, nil
}

// upsample resamples level m+1 of src into level m and blurs it, leaving it in s.blurred.
func (c *chain) upsample(stage string, src *resource.Handle, m int, s scratch) error {
	if err := c.resample(fmt.Sprintf("VARID.%sUpsample[%d]", stage, m), src, m+1, s.up, m); err != nil {
		return err
	}
	return c.blur(fmt.Sprintf("VARID.%sBlur[%d]", stage, m), s.up, s.blurred, m)
}

func (c *chain) laplacianPyramid(gauss *resource.Handle, s scratch) (*resource.Handle, error) {
	lap, err := c.acquire("VARID.Laplacian", wgpu.TextureFormatRGBA16Float, c.mips, usageIntermediate)
	if err != nil {
		return nil, err
	}
	top := c.mips - 1
	if err := c.copyMip(fmt.Sprintf("VARID.Laplacian[%d]", top), gauss, top, lap, top); err != nil {
		return nil, err
	}
	for m := top - 1; m >= 0; m-- {
		if err := c.upsample("Laplacian", gauss, m, s); err != nil {
			return nil, err
		}
		region := c.region(m)
		err := c.compute(fmt.Sprintf("VARID.Laplacian[%d]", m), ShaderLaplacian, region, c.params(region),
			[]pass.Binding{bind("in_lo_res", s.blurred, m), bind("in_hi_res", gauss, m)},
			[]pass.Binding{bind("out_laplacian", lap, m)})
		if err != nil {
			return nil, err
		}
	}
	return lap, nil
}

func (c *chain) contrastPyramid(lap, vf *resource.Handle, s scratch) (*resource.Handle, error) {
	con, err := c.acquire("VARID.Contrast", wgpu.TextureFormatRGBA16Float, c.mips, usageIntermediate)
	if err != nil {
		return nil, err
	}
	top := c.mips - 1
	if err := c.copyMip(fmt.Sprintf("VARID.Contrast[%d]", top), lap, top, con, top); err != nil {
		return nil, err
	}
	for m := top - 1; m >= 0; m-- {
		if err := c.upsample("Contrast", con, m, s); err != nil {
			return nil, err
		}
		region := c.region(m)
		err := c.compute(fmt.Sprintf("VARID.Contrast[%d]", m), ShaderContrast, region, c.params(region),
			[]pass.Binding{bind("in_laplacian", lap, m), bind("in_gaussian", s.blurred, m), bind("in_vf_map", vf, m)},
			[]pass.Binding{bind("out_tex", con, m)})
		if err != nil {
			return nil, err
		}
	}
	return con, nil
}

// inpaintRegion covers the whole eye half of the texture at a mip, so fills can reach
// across the viewport edge of the eye.
func (c *chain) inpaintRegion(mip int) pass.MipRegion {
	offset := 0
	if c.vp.Min.X > 0 {
		offset = c.size.X / 2
	}
	return pass.MipRegion{
		Size:        c.vp.Size().Shr(mip),
		Offset:      common.IntPoint{X: offset >> mip},
		TextureSize: c.size.Shr(mip),
	}
}

func (c *chain) inpaint(con, mask *resource.Handle) (*resource.Handle, error) {
	for m := 1; m < c.mips; m++ {
		if err := c.resample(fmt.Sprintf("VARID.InpaintVFMap[%d]", m), mask, m-1, mask, m, withPermutation); err != nil {
			return nil, err
		}
	}

	meta := min(MaxInpaintMip, c.mips-1)
	var metaData, colour [2]*resource.Handle
	var err error
	for i := range 2 {
		if metaData[i], err = c.acquire(fmt.Sprintf("VARID.InpaintMetaData%d", i+1), wgpu.TextureFormatRGBA32Float, meta+1, usageIntermediate); err != nil {
			return nil, err
		}
		if colour[i], err = c.acquire(fmt.Sprintf("VARID.InpaintColour%d", i+1), wgpu.TextureFormatRGBA16Float, meta+1, usageIntermediate); err != nil {
			return nil, err
		}
	}
	position, err := c.acquire("VARID.InpaintPosition", wgpu.TextureFormatRG32Float, 1, usageIntermediate)
	if err != nil {
		return nil, err
	}

	region := c.inpaintRegion(meta)
	if err := c.compute("VARID.InpaintSeed", ShaderDirectCopy, region, c.params(region),
		[]pass.Binding{bind("in_tex", con, meta)},
		[]pass.Binding{bind("out_tex", colour[0], meta)}); err != nil {
		return nil, err
	}
	if err := c.compute("VARID.InpaintInitialise", ShaderInpaintInitialise, region, c.params(region),
		[]pass.Binding{bind("in_mask", mask, meta)},
		[]pass.Binding{bind("out_meta_data", metaData[0], meta)}); err != nil {
		return nil, err
	}
	for i := range NumInpaintPasses {
		src, dst := i%2, (i+1)%2
		p := c.params(region)
		p.PassCounter = int32(i)
		err := c.compute(fmt.Sprintf("VARID.InpaintFill[%d]", i), ShaderInpaintFill, region, p,
			[]pass.Binding{bind("in_colour", colour[src], meta), bind("in_mask", mask, meta), bind("in_meta_data", metaData[src], meta)},
			[]pass.Binding{bind("out_meta_data", metaData[dst], meta), bind("out_colour", colour[dst], meta)})
		if err != nil {
			return nil, err
		}
	}

	last := metaData[NumInpaintPasses%2]
	full := c.inpaintRegion(0)
	err = c.compute("VARID.InpaintFinalise", ShaderInpaintFinalise, full, c.params(full),
		[]pass.Binding{bind("in_mask", mask, 0), bind("in_meta_data", last, meta)},
		[]pass.Binding{bind("out_position", position, 0)})
	return position, err
}

// quadVertices returns a full target triangle strip whose uvs cover the view's half of
// a side-by-side texture.
func quadVertices(stereo pass.StereoPass) []byte {
	u0, u1 := float32(0), float32(1)
	switch stereo {
	case pass.StereoLeft:
		u1 = 0.5
	case pass.StereoRight:
		u0 = 0.5
	}
	verts := [4][6]float32{
		{-1, 1, 0, 1, u0, 0},
		{1, 1, 0, 1, u1, 0},
		{-1, -1, 0, 1, u0, 1},
		{1, -1, 0, 1, u1, 1},
	}
	buf := make([]byte, 0, len(verts)*quadVertexStride)
	for _, v := range verts {
		for _, f := range v {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
		}
	}
	return buf
}

func (c *chain) composite(target *resource.Handle, clear bool, gauss, con, position *resource.Handle, maps vfMaps) error {
	p := c.params(pass.MipRegion{TextureSize: c.size})
	p.MaxMip = float32(c.mips)
	return c.b.Add(pass.Description{
		Name:         "VARID.Compositor",
		Kind:         pass.KindRaster,
		Shader:       ShaderQuadPS,
		VertexShader: ShaderQuadVS,
		Inputs: []pass.Binding{
			bind("in_gaussian", gauss, pass.AllMips),
			bind("in_contrast", con, pass.AllMips),
			bind("in_inpaint", position, pass.AllMips),
			bind("in_blur_vf_map", maps.blur, pass.AllMips),
			bind("in_inpaint_vf_map", maps.inpaint, pass.AllMips),
			bind("in_warp_vf_map", maps.warp, pass.AllMips),
		},
		Outputs: []pass.Binding{{Name: "color_target", Handle: target}},
		Samplers: []pass.SamplerBinding{
			{Name: "bilinear_sampler", Sampler: pass.SamplerBilinear},
			{Name: "trilinear_sampler", Sampler: pass.SamplerTrilinear},
		},
		Uniforms: []pass.DataBinding{{Name: "params", Data: p.Marshal()}},
		Draw: pass.Draw{
			VertexCount: 4,
			Vertices:    quadVertices(c.stereo),
			Viewport:    c.vp,
			Clear:       clear,
		},
	})
}
