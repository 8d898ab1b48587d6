package camera

// GazeControllerOption is a functional option for configuring a GazeController.
type GazeControllerOption func(*gazeControllerImpl)

// WithGazeSpeed sets how far a held arrow key moves the gaze per second.
//
// Parameters:
//   - speed: normalised screen units per second
//
// Returns:
//   - GazeControllerOption: functional option to set the speed
func WithGazeSpeed(speed float32) GazeControllerOption {
	return func(gc *gazeControllerImpl) {
		gc.speed = speed
	}
}

// WithGazeLimit sets the largest gaze offset on either axis.
//
// Parameters:
//   - limit: the bound, in normalised screen units
//
// Returns:
//   - GazeControllerOption: functional option to set the limit
func WithGazeLimit(limit float32) GazeControllerOption {
	return func(gc *gazeControllerImpl) {
		if limit > 0 {
			gc.limit = limit
		}
	}
}
