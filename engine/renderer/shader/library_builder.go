package shader

// LibraryBuilderOption is a functional option for configuring a Library.
type LibraryBuilderOption func(*library)

// WithCompiledCacheSize bounds how many compiled permutations are kept.
// The least recently used variant is dropped once the bound is reached.
//
// Parameters:
//   - size: the maximum number of cached variants, must be positive
//
// Returns:
//   - LibraryBuilderOption: a function that applies the cache size
func WithCompiledCacheSize(size int) LibraryBuilderOption {
	return func(l *library) {
		l.cacheSize = size
	}
}
