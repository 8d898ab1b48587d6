// Package pass turns declarative pass descriptions into validated command lists that a
// recorder can translate into GPU work.
package pass

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-varid/common"
	"github.com/Carmen-Shannon/oxy-varid/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-varid/engine/resource"
)

// StereoPass identifies which eye a view renders.
type StereoPass int

const (
	// StereoFull is a mono view covering the whole target.
	StereoFull StereoPass = iota
	// StereoLeft is the left eye of a side-by-side stereo target.
	StereoLeft
	// StereoRight is the right eye of a side-by-side stereo target.
	StereoRight
)

// String returns the lower-case stereo pass name.
func (s StereoPass) String() string {
	switch s {
	case StereoFull:
		return "full"
	case StereoLeft:
		return "left"
	case StereoRight:
		return "right"
	default:
		return fmt.Sprintf("StereoPass(%d)", int(s))
	}
}

// View is one view of the frame: a viewport inside the shared scene colour texture.
type View struct {
	// Index is the position of the view in the frame's view family.
	Index int
	// Stereo is the eye the view renders.
	Stereo StereoPass
	// Viewport is the region of the scene colour texture the view covers.
	Viewport common.IntRect
}

// Context is the read-only state a hook callback receives for one view of one frame.
// It is assembled per invocation and must not be retained after the callback returns.
type Context struct {
	// Frame is the frame number.
	Frame uint64
	// View is the view being processed.
	View View
	// TextureSize is the extent of the scene colour texture, which may be larger than the viewport.
	TextureSize common.IntPoint
	// SceneColor is the current scene colour. Callbacks return it untouched to pass through.
	SceneColor *resource.Handle
	// Override is an optional target the final pass must write into instead of a new texture.
	Override *resource.Handle
	// Resources acquires transient resources released at the end of the frame.
	Resources *resource.FrameScope
	// Shaders compiles and reflects shaders for binding validation. May be nil.
	Shaders shader.Library
}

// Output is what a hook callback hands back to the frame graph.
type Output struct {
	// Commands is the recorded pass sequence, nil for pass-through.
	Commands *CommandList
	// SceneColor is the scene colour seen by the next callback.
	SceneColor *resource.Handle
}

// PassThrough returns an Output that records nothing and keeps the incoming scene colour.
//
// Parameters:
//   - ctx: the invocation context
//
// Returns:
//   - Output: the pass-through output
func PassThrough(ctx *Context) Output {
	return Output{SceneColor: ctx.SceneColor}
}

// IsPassThrough reports whether the output records no work.
func (o Output) IsPassThrough() bool {
	return o.Commands == nil || len(o.Commands.Commands) == 0
}
