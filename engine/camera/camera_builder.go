package camera

import "github.com/Carmen-Shannon/oxy-varid/common"

// CameraBuilderOption is a functional option for configuring a Camera.
type CameraBuilderOption func(*cameraImpl)

// WithMode sets the initial view mode.
//
// Parameters:
//   - mode: ModeMono or ModeStereo
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's mode
func WithMode(mode Mode) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.mode = mode
	}
}

// WithFOV sets the display field of view in degrees. NewCamera panics if either axis is not positive.
//
// Parameters:
//   - fov: horizontal and vertical field of view
//
// Returns:
//   - CameraBuilderOption: a function that sets the camera's field of view
func WithFOV(fov common.Vec2) CameraBuilderOption {
	return func(c *cameraImpl) {
		c.fov = fov
	}
}
