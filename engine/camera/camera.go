package camera

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/oxy-varid/common"
	"github.com/Carmen-Shannon/oxy-varid/engine/pass"
)

// ErrInvalidFOV is returned for a display field of view that is not positive on both axes.
var ErrInvalidFOV = errors.New("camera: field of view must be positive on both axes")

// Mode selects how the camera splits the scene colour into views.
type Mode int

const (
	// ModeMono renders one view covering the whole target.
	ModeMono Mode = iota
	// ModeStereo renders a side-by-side pair, left eye in the left half.
	ModeStereo
)

// String returns the lower-case mode name.
func (m Mode) String() string {
	if m == ModeStereo {
		return "stereo"
	}
	return "mono"
}

type cameraImpl struct {
	mu *sync.Mutex

	mode Mode
	// fov is the display field of view in degrees.
	fov common.Vec2
}

// Camera describes the head-mounted display the host renders for: whether it is stereo and the
// field of view of each eye's display. It turns a scene colour extent into the views of a frame.
type Camera interface {
	// Mode returns the current view mode.
	//
	// Returns:
	//   - Mode: mono or stereo
	Mode() Mode

	// SetMode switches between mono and stereo views. Takes effect on the next frame.
	//
	// Parameters:
	//   - mode: the new view mode
	SetMode(mode Mode)

	// ToggleStereo flips between mono and stereo.
	//
	// Returns:
	//   - Mode: the mode after the toggle
	ToggleStereo() Mode

	// FOV returns the display field of view in degrees.
	//
	// Returns:
	//   - common.Vec2: horizontal and vertical field of view
	FOV() common.Vec2

	// SetFOV sets the display field of view.
	//
	// Parameters:
	//   - fov: horizontal and vertical field of view in degrees
	//
	// Returns:
	//   - error: ErrInvalidFOV if either axis is not positive
	SetFOV(fov common.Vec2) error

	// Views returns the views of a frame rendered into a scene colour of the given size.
	// Stereo views split the width; an odd column goes to the right eye.
	//
	// Parameters:
	//   - size: the scene colour extent
	//
	// Returns:
	//   - []pass.View: the views in family order
	Views(size common.IntPoint) []pass.View
}

var _ Camera = &cameraImpl{}

// NewCamera creates a mono camera with a 90x90 degree display field of view.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:   &sync.Mutex{},
		mode: ModeMono,
		fov:  common.Vec2{X: 90, Y: 90},
	}
	for _, opt := range options {
		opt(c)
	}
	if err := CheckFOV(c.fov); err != nil {
		panic(fmt.Sprintf("camera: %v", err))
	}
	return c
}

// CheckFOV validates a display field of view.
//
// Parameters:
//   - fov: the field of view in degrees
//
// Returns:
//   - error: ErrInvalidFOV if either axis is not positive
func CheckFOV(fov common.Vec2) error {
	if fov.X <= 0 || fov.Y <= 0 {
		return fmt.Errorf("%w: got %gx%g", ErrInvalidFOV, fov.X, fov.Y)
	}
	return nil
}

func (c *cameraImpl) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *cameraImpl) SetMode(mode Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = mode
}

func (c *cameraImpl) ToggleStereo() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == ModeStereo {
		c.mode = ModeMono
	} else {
		c.mode = ModeStereo
	}
	return c.mode
}

func (c *cameraImpl) FOV() common.Vec2 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) SetFOV(fov common.Vec2) error {
	if err := CheckFOV(fov); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	return nil
}

func (c *cameraImpl) Views(size common.IntPoint) []pass.View {
	if size.X <= 0 || size.Y <= 0 {
		return nil
	}
	if c.Mode() == ModeMono || size.X < 2 {
		return []pass.View{{Index: 0, Stereo: pass.StereoFull, Viewport: common.RectFromSize(size)}}
	}
	half := size.X / 2
	return []pass.View{
		{
			Index:    0,
			Stereo:   pass.StereoLeft,
			Viewport: common.IntRect{Max: common.IntPoint{X: half, Y: size.Y}},
		},
		{
			Index:    1,
			Stereo:   pass.StereoRight,
			Viewport: common.IntRect{Min: common.IntPoint{X: half}, Max: size},
		},
	}
}
