// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import "fmt"

// IntPoint is an integer 2D coordinate or extent in pixels.
type IntPoint struct {
	X int
	Y int
}

// Shr shifts both components right by the given mip level, clamping each to at least 1.
// This is the size of a mip level of an extent, and matches how dispatch sizes shrink per mip.
//
// Parameters:
//   - mip: the mip level to shift by
//
// Returns:
//   - IntPoint: the shifted extent
func (p IntPoint) Shr(mip int) IntPoint {
	return IntPoint{X: MipExtent(p.X, mip), Y: MipExtent(p.Y, mip)}
}

// String returns the point formatted as "XxY".
func (p IntPoint) String() string {
	return fmt.Sprintf("%dx%d", p.X, p.Y)
}

// IntRect is an axis aligned integer rectangle with an inclusive Min and exclusive Max.
// Viewports inside a shared scene colour texture are expressed with IntRect.
type IntRect struct {
	// Min is the top-left corner of the rectangle.
	Min IntPoint
	// Max is the bottom-right corner of the rectangle, exclusive.
	Max IntPoint
}

// RectFromSize creates an IntRect at the origin spanning the given size.
//
// Parameters:
//   - size: the width and height of the rectangle
//
// Returns:
//   - IntRect: the rectangle [0, size)
func RectFromSize(size IntPoint) IntRect {
	return IntRect{Max: size}
}

// Width returns the horizontal extent of the rectangle.
func (r IntRect) Width() int {
	return r.Max.X - r.Min.X
}

// Height returns the vertical extent of the rectangle.
func (r IntRect) Height() int {
	return r.Max.Y - r.Min.Y
}

// Size returns the rectangle extent as an IntPoint.
func (r IntRect) Size() IntPoint {
	return IntPoint{X: r.Width(), Y: r.Height()}
}

// Empty reports whether the rectangle covers no pixels.
func (r IntRect) Empty() bool {
	return r.Width() <= 0 || r.Height() <= 0
}

// Vec2 is a 2 component float vector. Gaze points and display field of view use it.
type Vec2 struct {
	X float32
	Y float32
}
