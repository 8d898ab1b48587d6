package camera

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-varid/common"
)

// gazeControllerImpl is the implementation of GazeController.
type gazeControllerImpl struct {
	mu *sync.Mutex

	left, right common.Vec2

	// held arrow keys
	keys map[uint32]bool

	speed float32
	limit float32
}

// Compile-time interface compliance check
var _ GazeController = &gazeControllerImpl{}

// NewGazeController creates a controller with both eyes centred.
//
// Parameters:
//   - options: functional options to configure the controller
//
// Returns:
//   - GazeController: the controller
func NewGazeController(options ...GazeControllerOption) GazeController {
	gc := &gazeControllerImpl{
		mu:    &sync.Mutex{},
		keys:  make(map[uint32]bool),
		speed: 0.25,
		limit: 0.5,
	}
	for _, option := range options {
		option(gc)
	}
	return gc
}

func isGazeKey(keyCode uint32) bool {
	switch keyCode {
	case common.KeyLeft, common.KeyRight, common.KeyUp, common.KeyDown:
		return true
	}
	return false
}

func (gc *gazeControllerImpl) KeyDown(keyCode uint32) bool {
	if !isGazeKey(keyCode) {
		return false
	}
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.keys[keyCode] = true
	return true
}

func (gc *gazeControllerImpl) KeyUp(keyCode uint32) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	delete(gc.keys, keyCode)
}

func (gc *gazeControllerImpl) Update(dt float32) bool {
	gc.mu.Lock()
	defer gc.mu.Unlock()

	var dx, dy float32
	if gc.keys[common.KeyLeft] {
		dx--
	}
	if gc.keys[common.KeyRight] {
		dx++
	}
	// screen Y grows downwards
	if gc.keys[common.KeyUp] {
		dy--
	}
	if gc.keys[common.KeyDown] {
		dy++
	}
	if (dx == 0 && dy == 0) || dt <= 0 {
		return false
	}

	step := gc.speed * dt
	prevL, prevR := gc.left, gc.right
	gc.left = gc.clamp(common.Vec2{X: gc.left.X + dx*step, Y: gc.left.Y + dy*step})
	gc.right = gc.clamp(common.Vec2{X: gc.right.X + dx*step, Y: gc.right.Y + dy*step})
	return gc.left != prevL || gc.right != prevR
}

// clamp keeps a gaze point inside the limit. Caller must hold the mutex.
func (gc *gazeControllerImpl) clamp(v common.Vec2) common.Vec2 {
	return common.Vec2{
		X: common.Clamp(v.X, -gc.limit, gc.limit),
		Y: common.Clamp(v.Y, -gc.limit, gc.limit),
	}
}

func (gc *gazeControllerImpl) Gaze() (left, right common.Vec2) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	return gc.left, gc.right
}

func (gc *gazeControllerImpl) SetGaze(left, right common.Vec2) {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.left, gc.right = gc.clamp(left), gc.clamp(right)
}

func (gc *gazeControllerImpl) Reset() {
	gc.mu.Lock()
	defer gc.mu.Unlock()
	gc.left, gc.right = common.Vec2{}, common.Vec2{}
}

func (gc *gazeControllerImpl) Speed() float32 {
	return gc.speed
}

func (gc *gazeControllerImpl) Limit() float32 {
	return gc.limit
}
