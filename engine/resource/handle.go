package resource

import (
	"fmt"
	"sync/atomic"
)

// State is the lifecycle state of a Handle.
type State int32

const (
	// StateUndefined is a freshly acquired resource whose contents have not been written.
	StateUndefined State = iota
	// StateInitialized is a resource a pass has written, or an imported resource with valid contents.
	StateInitialized
	// StateReleased is a handle whose resource went back to the pool. It must not be used.
	StateReleased
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateUndefined:
		return "undefined"
	case StateInitialized:
		return "initialized"
	case StateReleased:
		return "released"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Handle refers to a pooled or imported resource for the duration of one frame.
// Handles are created by a Pool or by Import and are safe to share between goroutines.
type Handle struct {
	desc  Descriptor
	res   Resource
	pool  *pool
	frame uint64
	state atomic.Int32
}

// Import wraps a resource owned by the host, such as the scene colour or the back buffer.
// Imported handles are never returned to a pool.
//
// Parameters:
//   - desc: the descriptor of the resource
//   - res: the resource, may be nil when only the descriptor matters
//   - initialized: whether the resource already holds valid contents
//
// Returns:
//   - *Handle: the handle
func Import(desc Descriptor, res Resource, initialized bool) *Handle {
	h := &Handle{desc: desc, res: res}
	if initialized {
		h.state.Store(int32(StateInitialized))
	}
	return h
}

// Descriptor returns the descriptor the handle was acquired with.
func (h *Handle) Descriptor() Descriptor {
	return h.desc
}

// Resource returns the resource behind the handle.
func (h *Handle) Resource() Resource {
	return h.res
}

// Texture returns the wgpu texture behind the handle, if there is one.
func (h *Handle) Texture() (*GPUTexture, bool) {
	t, ok := h.res.(*GPUTexture)
	return t, ok
}

// Buffer returns the wgpu buffer behind the handle, if there is one.
func (h *Handle) Buffer() (*GPUBuffer, bool) {
	b, ok := h.res.(*GPUBuffer)
	return b, ok
}

// Frame returns the frame number the handle was acquired for. Zero for imported handles.
func (h *Handle) Frame() uint64 {
	return h.frame
}

// Imported reports whether the handle wraps a host-owned resource.
func (h *Handle) Imported() bool {
	return h.pool == nil
}

// State returns the current lifecycle state.
func (h *Handle) State() State {
	return State(h.state.Load())
}

// Valid reports whether the handle exists and has not been released.
func (h *Handle) Valid() bool {
	return h != nil && h.State() != StateReleased
}

// Readable reports whether a pass may bind the handle as an input.
func (h *Handle) Readable() bool {
	return h != nil && h.State() == StateInitialized
}

// MarkInitialized records that a pass has written the resource.
// It has no effect on released handles.
func (h *Handle) MarkInitialized() {
	h.state.CompareAndSwap(int32(StateUndefined), int32(StateInitialized))
}

// Invalidate marks an imported handle as released, so passes treat it as unusable.
// Pooled handles must be released through their pool instead.
func (h *Handle) Invalidate() {
	if h.Imported() {
		h.state.Store(int32(StateReleased))
	}
}

// String returns the label, shape and state for logs.
func (h *Handle) String() string {
	if h == nil {
		return "<nil handle>"
	}
	return fmt.Sprintf("%s %s (%s)", h.desc.Label, h.desc.Shape(), h.State())
}
