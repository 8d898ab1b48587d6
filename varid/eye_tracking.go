package varid

import (
	"github.com/Carmen-Shannon/oxy-varid/common"
	"github.com/Carmen-Shannon/oxy-varid/engine/pass"
)

// EyeTracking holds the latest gaze offsets in normalised screen units. The zero value looks
// straight ahead.
type EyeTracking struct {
	LeftEyeGazePoint  common.Vec2
	RightEyeGazePoint common.Vec2
}

// Gaze returns the gaze point used by a view. Mono views follow the left eye.
//
// Parameters:
//   - stereo: the eye the view renders
//
// Returns:
//   - common.Vec2: the gaze offset
func (e EyeTracking) Gaze(stereo pass.StereoPass) common.Vec2 {
	if stereo == pass.StereoRight {
		return e.RightEyeGazePoint
	}
	return e.LeftEyeGazePoint
}
