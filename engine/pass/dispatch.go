package pass

import (
	"github.com/Carmen-Shannon/oxy-varid/common"
)

// GroupSize is the workgroup edge length of every 2D compute pass.
const GroupSize = 8

// MipRegion is the part of a mip level a pass covers for one view.
type MipRegion struct {
	// Size is the viewport size at the mip, each axis at least 1.
	Size common.IntPoint
	// Offset is the viewport origin at the mip, added to the dispatch thread id.
	Offset common.IntPoint
	// TextureSize is the full texture extent at the mip.
	TextureSize common.IntPoint
}

// MipDispatch computes the region of a mip level covered by a viewport. It is evaluated
// from the current frame's viewport every time and never cached.
//
// Parameters:
//   - viewport: the view's viewport at mip 0
//   - textureSize: the texture extent at mip 0
//   - mip: the mip level
//
// Returns:
//   - MipRegion: the region at the mip
func MipDispatch(viewport common.IntRect, textureSize common.IntPoint, mip int) MipRegion {
	return MipRegion{
		Size: viewport.Size().Shr(mip),
		Offset: common.IntPoint{
			X: viewport.Min.X >> mip,
			Y: viewport.Min.Y >> mip,
		},
		TextureSize: textureSize.Shr(mip),
	}
}

// TexelSize returns the UV size of one texel of the texture at this mip.
func (r MipRegion) TexelSize() common.Vec2 {
	return common.Vec2{
		X: 1 / float32(max(r.TextureSize.X, 1)),
		Y: 1 / float32(max(r.TextureSize.Y, 1)),
	}
}

// Groups returns the workgroup count covering the region with GroupSize x GroupSize groups.
func (r MipRegion) Groups() [3]uint32 {
	return GroupCount(r.Size, [3]uint32{GroupSize, GroupSize, 1})
}

// GroupCount returns how many workgroups cover a 2D size, rounding up.
//
// Parameters:
//   - size: the number of threads needed per axis
//   - group: the workgroup size
//
// Returns:
//   - [3]uint32: the workgroup count per axis
func GroupCount(size common.IntPoint, group [3]uint32) [3]uint32 {
	return [3]uint32{
		common.DivCeil(uint32(max(size.X, 1)), max(group[0], 1)),
		common.DivCeil(uint32(max(size.Y, 1)), max(group[1], 1)),
		1,
	}
}
