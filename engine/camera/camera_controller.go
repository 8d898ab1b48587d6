package camera

import "github.com/Carmen-Shannon/oxy-varid/common"

// GazeController steers simulated eye tracking from the keyboard when no tracker is attached.
// Held arrow keys move the gaze of both eyes at a constant speed in normalised screen units;
// the host feeds the result to whatever consumes eye tracking once per tick.
type GazeController interface {
	// KeyDown records a pressed key. Keys the controller does not use are ignored.
	//
	// Parameters:
	//   - keyCode: the virtual key code
	//
	// Returns:
	//   - bool: true if the key is a gaze key
	KeyDown(keyCode uint32) bool

	// KeyUp records a released key.
	//
	// Parameters:
	//   - keyCode: the virtual key code
	KeyUp(keyCode uint32)

	// Update moves the gaze by the held keys over dt seconds.
	//
	// Parameters:
	//   - dt: elapsed time in seconds
	//
	// Returns:
	//   - bool: true if the gaze moved
	Update(dt float32) bool

	// Gaze returns the current gaze offsets of the left and right eye.
	//
	// Returns:
	//   - left, right: gaze offsets in normalised screen units
	Gaze() (left, right common.Vec2)

	// SetGaze sets both gaze offsets, clamped to the controller limit.
	//
	// Parameters:
	//   - left, right: gaze offsets in normalised screen units
	SetGaze(left, right common.Vec2)

	// Reset centres both eyes.
	Reset()

	// Speed returns the gaze speed in normalised units per second.
	//
	// Returns:
	//   - float32: the speed
	Speed() float32

	// Limit returns the largest gaze offset on either axis.
	//
	// Returns:
	//   - float32: the limit
	Limit() float32
}
