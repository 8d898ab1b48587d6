package lifecycle

// ControllerBuilderOption is a functional option for configuring a Controller.
type ControllerBuilderOption func(*controller)

// WithTransitionHook registers a function called on every state change.
// It runs while the controller is locked and must not call back into it.
//
// Parameters:
//   - fn: receives the previous and the new state
//
// Returns:
//   - ControllerBuilderOption: a function that installs the hook
func WithTransitionHook(fn func(from, to State)) ControllerBuilderOption {
	return func(c *controller) {
		c.onTransition = fn
	}
}
