package varid

import (
	"embed"
	"errors"
	"io/fs"

	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/shader"
)

// ShaderMount is the logical name VARID shader sources are registered under.
const ShaderMount = "/Plugin/VARID"

// Shader keys of the VARID passes.
const (
	ShaderHeightMap         = "VARID.HeightMap"
	ShaderNormalMap         = "VARID.NormalMap"
	ShaderDirectCopy        = "VARID.DirectCopy"
	ShaderResample          = "VARID.Resample"
	ShaderGaussianBlur      = "VARID.GaussianBlur"
	ShaderLaplacian         = "VARID.Laplacian"
	ShaderContrast          = "VARID.ContrastReconstruct"
	ShaderInpaintInitialise = "VARID.InpainterInitialise"
	ShaderInpaintFill       = "VARID.InpainterFill"
	ShaderInpaintFinalise   = "VARID.InpainterFinalise"
	ShaderQuadVS            = "VARID.QuadVS"
	ShaderQuadPS            = "VARID.QuadPS"
)

//go:embed shaders
var embedded embed.FS

// ShaderFS returns the bundled shader tree, laid out as it is mounted under ShaderMount.
//
// Returns:
//   - fs.FS: the tree containing Private/*.wgsl
func ShaderFS() fs.FS {
	sub, err := fs.Sub(embedded, "shaders")
	if err != nil {
		panic(err)
	}
	return sub
}

var shaderDescriptors = []shader.Descriptor{
	{Key: ShaderHeightMap, VirtualPath: ShaderMount + "/Private/HeightMapCS.wgsl", Type: shader.ShaderTypeCompute},
	{Key: ShaderNormalMap, VirtualPath: ShaderMount + "/Private/NormalMapCS.wgsl", Type: shader.ShaderTypeCompute},
	{Key: ShaderDirectCopy, VirtualPath: ShaderMount + "/Private/DirectCopyCS.wgsl", Type: shader.ShaderTypeCompute},
	{Key: ShaderResample, VirtualPath: ShaderMount + "/Private/BasicResampleCS.wgsl", Type: shader.ShaderTypeCompute},
	{Key: ShaderGaussianBlur, VirtualPath: ShaderMount + "/Private/GaussianBlurCS.wgsl", Type: shader.ShaderTypeCompute},
	{Key: ShaderLaplacian, VirtualPath: ShaderMount + "/Private/LaplacianCS.wgsl", Type: shader.ShaderTypeCompute},
	{Key: ShaderContrast, VirtualPath: ShaderMount + "/Private/ContrastReconstructCS.wgsl", Type: shader.ShaderTypeCompute},
	{Key: ShaderInpaintInitialise, VirtualPath: ShaderMount + "/Private/InpainterInitialiseCS.wgsl", Type: shader.ShaderTypeCompute},
	{Key: ShaderInpaintFill, VirtualPath: ShaderMount + "/Private/InpainterFillCS.wgsl", Type: shader.ShaderTypeCompute},
	{Key: ShaderInpaintFinalise, VirtualPath: ShaderMount + "/Private/InpainterFinaliseCS.wgsl", Type: shader.ShaderTypeCompute},
	{Key: ShaderQuadVS, VirtualPath: ShaderMount + "/Private/QuadVS.wgsl", Type: shader.ShaderTypeVertex},
	{Key: ShaderQuadPS, VirtualPath: ShaderMount + "/Private/QuadPS.wgsl", Type: shader.ShaderTypeFragment},
}

// vfMapPermutation selects the single channel 32-bit variant of the resample shader.
var vfMapPermutation = shader.Permutation{"VF_MAP": 1}

// defineShaders adds every VARID shader to the library. On failure the shaders defined so
// far are removed again.
func defineShaders(lib shader.Library) error {
	for i, d := range shaderDescriptors {
		if err := lib.Define(d); err != nil {
			return errors.Join(err, undefineShaders(lib, shaderDescriptors[:i]))
		}
	}
	return nil
}

func undefineShaders(lib shader.Library, descs []shader.Descriptor) error {
	var errs []error
	for i := len(descs) - 1; i >= 0; i-- {
		if err := lib.Undefine(descs[i].Key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
