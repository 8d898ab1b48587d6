// Package lifecycle drives a module through load and unload, undoing partial loads.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
)

var (
	// ErrInvalidTransition is returned when Load or Unload is called from a state that does not allow it.
	ErrInvalidTransition = errors.New("lifecycle: invalid transition")
	// ErrPartialInitialization is returned by Load when a step failed and the completed steps were undone.
	ErrPartialInitialization = errors.New("lifecycle: partial initialization rolled back")
)

// State is a lifecycle state.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateActive
	StateUnloading
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "Unloaded"
	case StateLoading:
		return "Loading"
	case StateActive:
		return "Active"
	case StateUnloading:
		return "Unloading"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Step is one registration performed while loading and reversed while unloading.
type Step struct {
	// Name labels the step in logs and errors.
	Name string
	// Do performs the registration.
	Do func(ctx context.Context) error
	// Undo reverses a successful Do. May be nil when there is nothing to reverse.
	Undo func(ctx context.Context) error
}

// controller is the implementation of the Controller interface.
type controller struct {
	mu    *sync.Mutex
	name  string
	steps []Step
	state atomic.Int32
	done  int

	onTransition func(from, to State)
}

// Controller moves a module through Unloaded → Loading → Active → Unloading → Unloaded.
// Transitions are serialised. State never blocks, so frames can check it at any time.
type Controller interface {
	// Load runs every step in order. If a step fails, the steps already done are undone in
	// reverse order and the controller ends Unloaded.
	//
	// Parameters:
	//   - ctx: passed to every step
	//
	// Returns:
	//   - error: ErrInvalidTransition unless Unloaded, or ErrPartialInitialization wrapping the cause
	Load(ctx context.Context) error

	// Unload undoes every step in reverse order. Unloading an Unloaded controller is a no-op.
	// Every Undo runs even if an earlier one fails.
	//
	// Parameters:
	//   - ctx: passed to every undo
	//
	// Returns:
	//   - error: ErrInvalidTransition while Loading or Unloading, or the joined undo errors
	Unload(ctx context.Context) error

	// State returns the current state.
	//
	// Returns:
	//   - State: the state
	State() State

	// IsActive reports whether the module is Active, the only state frames run in.
	//
	// Returns:
	//   - bool: true when Active
	IsActive() bool
}

var _ Controller = &controller{}

// NewController creates a Controller in StateUnloaded.
//
// Parameters:
//   - name: the module name used in logs
//   - steps: the load steps in order
//   - opts: optional builder options
//
// Returns:
//   - Controller: the controller
func NewController(name string, steps []Step, opts ...ControllerBuilderOption) Controller {
	for i, s := range steps {
		if s.Do == nil {
			panic(fmt.Sprintf("lifecycle: step %d (%s) of %s has no Do", i, s.Name, name))
		}
	}
	c := &controller{
		mu:    &sync.Mutex{},
		name:  name,
		steps: append([]Step(nil), steps...),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// setState must be called with mu held.
func (c *controller) setState(to State) {
	from := State(c.state.Swap(int32(to)))
	if c.onTransition != nil {
		c.onTransition(from, to)
	}
}

func (c *controller) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur := c.State(); cur != StateUnloaded {
		return fmt.Errorf("%w: load %s while %s", ErrInvalidTransition, c.name, cur)
	}
	c.setState(StateLoading)

	for i, s := range c.steps {
		if err := ctx.Err(); err != nil {
			return c.rollback(ctx, s.Name, err)
		}
		if err := s.Do(ctx); err != nil {
			return c.rollback(ctx, s.Name, err)
		}
		c.done = i + 1
	}

	c.setState(StateActive)
	log.Printf("[Lifecycle] %s active (%d steps)", c.name, len(c.steps))
	return nil
}

// rollback must be called with mu held while Loading.
func (c *controller) rollback(ctx context.Context, step string, cause error) error {
	c.setState(StateUnloading)
	undoErr := c.undoAll(context.WithoutCancel(ctx))
	c.setState(StateUnloaded)

	log.Printf("[Lifecycle] %s failed at %q, rolled back: %v", c.name, step, cause)
	err := fmt.Errorf("%w: %s: step %q: %w", ErrPartialInitialization, c.name, step, cause)
	if undoErr != nil {
		err = errors.Join(err, undoErr)
	}
	return err
}

// undoAll must be called with mu held.
func (c *controller) undoAll(ctx context.Context) error {
	var errs []error
	for i := c.done - 1; i >= 0; i-- {
		s := c.steps[i]
		if s.Undo == nil {
			continue
		}
		if err := s.Undo(ctx); err != nil {
			errs = append(errs, fmt.Errorf("undo %q: %w", s.Name, err))
		}
	}
	c.done = 0
	return errors.Join(errs...)
}

func (c *controller) Unload(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch cur := c.State(); cur {
	case StateUnloaded:
		return nil
	case StateActive:
	default:
		return fmt.Errorf("%w: unload %s while %s", ErrInvalidTransition, c.name, cur)
	}

	c.setState(StateUnloading)
	err := c.undoAll(ctx)
	c.setState(StateUnloaded)
	if err != nil {
		log.Printf("[Lifecycle] %s unloaded with errors: %v", c.name, err)
		return err
	}
	log.Printf("[Lifecycle] %s unloaded", c.name)
	return nil
}

func (c *controller) State() State {
	return State(c.state.Load())
}

func (c *controller) IsActive() bool {
	return c.State() == StateActive
}
