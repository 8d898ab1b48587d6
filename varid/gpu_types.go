package varid

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// GPUCommonSource is the canonical WGSL definition of the PassParams and MapPoint structs
// shared by every VARID shader. Matches GPUPassParams and GPUMapPoint exactly.
//
//go:embed shaders/Private/Common.wgsl
var GPUCommonSource string

// GPUPassParams is the GPU-aligned per-dispatch parameter block.
// Matches the WGSL PassParams struct layout exactly (see GPUCommonSource).
// Size: 32 bytes.
type GPUPassParams struct {
	Offset       [2]int32   // offset  0: dispatch thread id offset (vec2<i32>)
	TexelSize    [2]float32 // offset  8: uv size of one texel of the target mip (vec2<f32>)
	OriginOffset float32    // offset 16: value added to every height map texel (f32)
	NumPoints    uint32     // offset 20: number of valid map points (u32)
	PassCounter  int32      // offset 24: index of an iterative pass (i32)
	MaxMip       float32    // offset 28: number of pyramid levels, for the compositor (f32)
}

// Size returns the size of the GPUPassParams struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (g *GPUPassParams) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUPassParams struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUPassParams) Marshal() []byte {
	buf := make([]byte, g.Size())
	binary.LittleEndian.PutUint32(buf[0:], uint32(g.Offset[0]))
	binary.LittleEndian.PutUint32(buf[4:], uint32(g.Offset[1]))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(g.TexelSize[0]))
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(g.TexelSize[1]))
	binary.LittleEndian.PutUint32(buf[16:], math.Float32bits(g.OriginOffset))
	binary.LittleEndian.PutUint32(buf[20:], g.NumPoints)
	binary.LittleEndian.PutUint32(buf[24:], uint32(g.PassCounter))
	binary.LittleEndian.PutUint32(buf[28:], math.Float32bits(g.MaxMip))
	return buf
}

// GPUMapPoint is one height map sample uploaded in the points storage buffer.
// Matches the WGSL MapPoint struct layout exactly (see GPUCommonSource).
// Size: 16 bytes.
type GPUMapPoint struct {
	X       float32 // offset  0: normalised texture x
	Y       float32 // offset  4: normalised texture y
	Value   float32 // offset  8: normalised impairment
	Padding float32 // offset 12: always 1, pads to 16 bytes
}

// Size returns the size of the GPUMapPoint struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (16)
func (g *GPUMapPoint) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUMapPoint struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUMapPoint) Marshal() []byte {
	buf := make([]byte, g.Size())
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(g.X))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(g.Y))
	binary.LittleEndian.PutUint32(buf[8:], math.Float32bits(g.Value))
	binary.LittleEndian.PutUint32(buf[12:], math.Float32bits(g.Padding))
	return buf
}

// MarshalMapPoints serializes a point list for the points buffer. A storage buffer cannot
// be empty, so an empty list uploads a single zero point; the shader reads NumPoints.
//
// Parameters:
//   - points: the points
//
// Returns:
//   - []byte: the serialized byte buffer, at least one point long
func MarshalMapPoints(points []GPUMapPoint) []byte {
	if len(points) == 0 {
		var dummy GPUMapPoint
		return dummy.Marshal()
	}
	buf := make([]byte, 0, len(points)*points[0].Size())
	for i := range points {
		buf = append(buf, points[i].Marshal()...)
	}
	return buf
}
