package hook

import "fmt"

// Point is a fixed position in the host frame sequence where callbacks may be installed.
// Points are listed in the order the host reaches them within a frame.
type Point int

const (
	// PointPostBasePass runs after the main geometry pass has written scene colour.
	PointPostBasePass Point = iota
	// PointPostOpaque runs after opaque lighting.
	PointPostOpaque
	// PointPrePostProcess runs before the post-process chain.
	PointPrePostProcess
	// PointAfterMotionBlur runs after motion blur.
	PointAfterMotionBlur
	// PointAfterTonemap runs after tone mapping.
	PointAfterTonemap
	// PointAfterFXAA runs after anti-aliasing.
	PointAfterFXAA
	// PointPostRenderView runs once the view is complete.
	PointPostRenderView

	numPoints
)

var pointNames = [numPoints]string{
	"PostBasePass",
	"PostOpaque",
	"PrePostProcess",
	"AfterMotionBlur",
	"AfterTonemap",
	"AfterFXAA",
	"PostRenderView",
}

// Valid reports whether p names a host hook point.
func (p Point) Valid() bool {
	return p >= 0 && p < numPoints
}

// String returns the point name.
func (p Point) String() string {
	if !p.Valid() {
		return fmt.Sprintf("Point(%d)", int(p))
	}
	return pointNames[p]
}

// Points returns every hook point in frame order.
func Points() []Point {
	out := make([]Point, numPoints)
	for i := range out {
		out[i] = Point(i)
	}
	return out
}

// ParsePoint returns the point with the given name.
//
// Parameters:
//   - name: a point name such as "AfterTonemap"
//
// Returns:
//   - Point: the point
//   - error: ErrInvalidPoint if no point has that name
func ParsePoint(name string) (Point, error) {
	for i, n := range pointNames {
		if n == name {
			return Point(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidPoint, name)
}
