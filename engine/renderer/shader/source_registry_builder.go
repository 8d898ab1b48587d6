package shader

import "io/fs"

// SourceRegistryBuilderOption is a functional option for configuring a SourceRegistry.
type SourceRegistryBuilderOption func(*sourceRegistry)

// WithDirOpener replaces the function used to open registered directories.
// Tests use it to back absolute directories with an in-memory filesystem.
//
// Parameters:
//   - open: function returning the filesystem rooted at a registered directory
//
// Returns:
//   - SourceRegistryBuilderOption: option function to apply
func WithDirOpener(open func(dir string) fs.FS) SourceRegistryBuilderOption {
	return func(r *sourceRegistry) {
		if open != nil {
			r.openDir = open
		}
	}
}
