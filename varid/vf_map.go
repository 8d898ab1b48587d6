package varid

import (
	"log"

	"github.com/Carmen-Shannon/oxy-varid/common"
	"github.com/Carmen-Shannon/oxy-varid/engine/pass"
)

// MaxMapPoints is the most points a single height map pass interpolates.
const MaxMapPoints = 256

// stereoPlacement returns how normalised x coordinates map into a side-by-side target.
func stereoPlacement(stereo pass.StereoPass) (scale, offset float32) {
	switch stereo {
	case pass.StereoLeft:
		return 0.5, 0
	case pass.StereoRight:
		return 0.5, 0.5
	default:
		return 1, 0
	}
}

// BuildMapPoints places a visual field map in texture space for one view.
//
// A disabled effect yields no points and the given origin offset, i.e. a flat map. A
// full-field map with a single point yields no points and that point's value as the origin
// offset. Otherwise every point is shifted by the gaze and squeezed into the view's half of
// a stereo target. Points beyond MaxMapPoints are dropped.
//
// Parameters:
//   - enabled: whether the effect is on
//   - m: the visual field map
//   - gaze: the gaze offset of the view's eye
//   - stereo: the eye the view renders
//   - originOffset: the flat value of the map
//
// Returns:
//   - []GPUMapPoint: the points to upload
//   - float32: the origin offset to use
func BuildMapPoints(enabled bool, m VFMap, gaze common.Vec2, stereo pass.StereoPass, originOffset float32) ([]GPUMapPoint, float32) {
	if !enabled {
		return nil, originOffset
	}
	if m.FullField && len(m.Data) == 1 {
		return nil, m.Data[0].NormValue
	}

	data := m.Data
	if len(data) > MaxMapPoints {
		log.Printf("[VARID] visual field map has %d points, using the first %d", len(data), MaxMapPoints)
		data = data[:MaxMapPoints]
	}

	scale, offset := stereoPlacement(stereo)
	points := make([]GPUMapPoint, len(data))
	for i, d := range data {
		points[i] = GPUMapPoint{
			X:       (d.NormX+gaze.X)*scale + offset,
			Y:       d.NormY + gaze.Y,
			Value:   d.NormValue,
			Padding: 1,
		}
	}
	return points, originOffset
}
