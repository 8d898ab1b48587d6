package frame_graph

import "github.com/Carmen-Shannon/oxy-varid/engine/renderer/shader"

// FrameGraphBuilderOption is a function that configures a frameGraph.
type FrameGraphBuilderOption func(*frameGraph)

// WithWorkers sets the number of workers recording views concurrently.
//
// Parameters:
//   - n: the worker count, values below 1 are ignored
//
// Returns:
//   - FrameGraphBuilderOption: a function that applies the worker count
func WithWorkers(n int) FrameGraphBuilderOption {
	return func(g *frameGraph) {
		if n > 0 {
			g.workerCount = n
		}
	}
}

// WithRecorder sets the recorder frames are submitted to. Without one, frames are
// executed and their resources released without submission.
//
// Parameters:
//   - r: the recorder
//
// Returns:
//   - FrameGraphBuilderOption: a function that applies the recorder
func WithRecorder(r Recorder) FrameGraphBuilderOption {
	return func(g *frameGraph) {
		g.recorder = r
	}
}

// WithShaderLibrary attaches the library callbacks validate their bindings against.
//
// Parameters:
//   - lib: the shader library
//
// Returns:
//   - FrameGraphBuilderOption: a function that applies the library
func WithShaderLibrary(lib shader.Library) FrameGraphBuilderOption {
	return func(g *frameGraph) {
		g.shaders = lib
	}
}

// WithExtension registers a view family extension notified at the start of every frame.
//
// Parameters:
//   - ext: the extension
//
// Returns:
//   - FrameGraphBuilderOption: a function that appends the extension
func WithExtension(ext ViewFamilyExtension) FrameGraphBuilderOption {
	return func(g *frameGraph) {
		if ext != nil {
			g.extensions = append(g.extensions, ext)
		}
	}
}
