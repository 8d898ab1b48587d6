package resource

// PoolBuilderOption is a functional option for configuring a Pool.
type PoolBuilderOption func(*pool)

// WithMaxShapes bounds how many distinct shapes keep idle resources.
// The least recently used shape is evicted, destroying its idle resources.
//
// Parameters:
//   - n: the shape limit, must be positive
//
// Returns:
//   - PoolBuilderOption: a function that applies the limit
func WithMaxShapes(n int) PoolBuilderOption {
	return func(p *pool) {
		p.maxShapes = n
	}
}

// WithMaxIdlePerShape bounds how many idle resources of one shape are kept.
// Releases above the bound destroy the resource.
//
// Parameters:
//   - n: the idle limit, zero disables recycling
//
// Returns:
//   - PoolBuilderOption: a function that applies the limit
func WithMaxIdlePerShape(n int) PoolBuilderOption {
	return func(p *pool) {
		p.maxIdle = max(n, 0)
	}
}

// WithMemoryBudget caps the bytes held by live resources, outstanding and idle.
// An acquire that would exceed the budget fails with ErrAllocationFailed.
//
// Parameters:
//   - bytes: the budget, zero for unlimited
//
// Returns:
//   - PoolBuilderOption: a function that applies the budget
func WithMemoryBudget(bytes uint64) PoolBuilderOption {
	return func(p *pool) {
		p.budget = bytes
	}
}
