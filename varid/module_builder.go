package varid

import "github.com/Carmen-Shannon/oxy-varid/common"

// ModuleBuilderOption is a function that configures a module.
type ModuleBuilderOption func(*module)

// WithShaderDir mounts shader sources from a directory on disk instead of the bundled copy.
//
// Parameters:
//   - dir: an absolute directory containing Private/*.wgsl
//
// Returns:
//   - ModuleBuilderOption: a function that applies the directory
func WithShaderDir(dir string) ModuleBuilderOption {
	return func(m *module) {
		m.shaderDir = dir
	}
}

// WithContentDir sets the directory whose Profiles subdirectory ListProfiles searches by default.
//
// Parameters:
//   - dir: the content directory
//
// Returns:
//   - ModuleBuilderOption: a function that applies the directory
func WithContentDir(dir string) ModuleBuilderOption {
	return func(m *module) {
		m.contentDir = dir
	}
}

// WithProfileExtension sets the default profile file extension.
//
// Parameters:
//   - ext: the extension, with or without a leading dot
//
// Returns:
//   - ModuleBuilderOption: a function that applies the extension
func WithProfileExtension(ext string) ModuleBuilderOption {
	return func(m *module) {
		if ext != "" {
			m.profileExt = ext
		}
	}
}

// WithHookPriority sets the priority of the post-tonemap callback. Lower runs first.
//
// Parameters:
//   - priority: the priority
//
// Returns:
//   - ModuleBuilderOption: a function that applies the priority
func WithHookPriority(priority int) ModuleBuilderOption {
	return func(m *module) {
		m.priority = priority
	}
}

// WithDisplayFOV sets the initial display field of view. NewModule panics if it is invalid.
//
// Parameters:
//   - fov: the field of view in degrees
//
// Returns:
//   - ModuleBuilderOption: a function that applies the field of view
func WithDisplayFOV(fov common.Vec2) ModuleBuilderOption {
	return func(m *module) {
		m.fov = fov
	}
}
