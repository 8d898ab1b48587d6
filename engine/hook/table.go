// Package hook holds the table of callbacks installed at the host's frame graph hook points.
package hook

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-varid/engine/pass"
)

var (
	// ErrInvalidPoint is returned for a hook point the host does not have.
	ErrInvalidPoint = errors.New("hook: invalid hook point")
	// ErrNotInstalled is returned when uninstalling a registration that is not installed.
	ErrNotInstalled = errors.New("hook: callback not installed")
	// ErrNilCallback is returned when installing a nil callback.
	ErrNilCallback = errors.New("hook: nil callback")
)

// Callback is invoked once per frame per view at its hook point. It may run on any goroutine
// and must not retain ctx. Returning an error makes the host pass the scene colour through.
type Callback func(ctx *pass.Context) (pass.Output, error)

// Registration identifies one installed callback. Install returns it and Uninstall takes it.
type Registration struct {
	point Point
	id    uint64
}

// Point returns the hook point of the registration.
func (r Registration) Point() Point {
	return r.point
}

// ID returns the install sequence number, unique within a table.
func (r Registration) ID() uint64 {
	return r.id
}

// Entry is an installed callback as seen by the host when it runs a hook point.
type Entry struct {
	Registration

	Name     string
	Priority int
	Callback Callback
}

// InstallOption configures an installed entry.
type InstallOption func(*Entry)

// WithName labels the entry in logs and statistics.
//
// Parameters:
//   - name: the label
//
// Returns:
//   - InstallOption: a function that applies the label
func WithName(name string) InstallOption {
	return func(e *Entry) {
		e.Name = name
	}
}

// table is the implementation of the Table interface.
//
// Each point holds an immutable, sorted slice published through an atomic pointer. Writers
// serialise on mu and publish a new slice; readers load the current one without locking.
type table struct {
	mu     *sync.Mutex
	points [numPoints]atomic.Pointer[[]Entry]
	seq    atomic.Uint64
}

// Table is the process-wide set of callbacks installed at hook points. It is written during
// module load and unload and read every frame. Safe for concurrent use.
type Table interface {
	// Install adds a callback at a hook point. Callbacks at one point run in ascending
	// priority order; equal priorities run in installation order.
	//
	// Parameters:
	//   - point: the hook point
	//   - cb: the callback
	//   - priority: the order key, lower runs first
	//   - opts: optional entry options
	//
	// Returns:
	//   - Registration: the token that removes the callback again
	//   - error: ErrInvalidPoint or ErrNilCallback
	Install(point Point, cb Callback, priority int, opts ...InstallOption) (Registration, error)

	// Uninstall removes a callback. Frames that already took a snapshot of the point
	// still run it.
	//
	// Parameters:
	//   - point: the hook point the callback was installed at
	//   - reg: the registration returned by Install
	//
	// Returns:
	//   - error: ErrNotInstalled if the registration is not installed at the point
	Uninstall(point Point, reg Registration) error

	// Snapshot returns the entries installed at a point, in execution order.
	// The returned slice must not be modified.
	//
	// Parameters:
	//   - point: the hook point
	//
	// Returns:
	//   - []Entry: the entries, nil for an invalid or empty point
	Snapshot(point Point) []Entry

	// Len returns the number of callbacks installed across all points.
	//
	// Returns:
	//   - int: the count
	Len() int
}

var _ Table = &table{}

// NewTable creates an empty hook table.
//
// Returns:
//   - Table: the table
func NewTable() Table {
	return &table{mu: &sync.Mutex{}}
}

func (t *table) Install(point Point, cb Callback, priority int, opts ...InstallOption) (Registration, error) {
	if !point.Valid() {
		return Registration{}, fmt.Errorf("%w: %d", ErrInvalidPoint, int(point))
	}
	if cb == nil {
		return Registration{}, ErrNilCallback
	}

	e := Entry{
		Registration: Registration{point: point, id: t.seq.Add(1)},
		Priority:     priority,
		Callback:     cb,
	}
	for _, opt := range opts {
		opt(&e)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.Snapshot(point)
	next := make([]Entry, 0, len(cur)+1)
	at := len(cur)
	for i, c := range cur {
		if c.Priority > priority {
			at = i
			break
		}
	}
	next = append(next, cur[:at]...)
	next = append(next, e)
	next = append(next, cur[at:]...)
	t.points[point].Store(&next)
	return e.Registration, nil
}

func (t *table) Uninstall(point Point, reg Registration) error {
	if !point.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPoint, int(point))
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.Snapshot(point)
	for i, c := range cur {
		if c.Registration != reg {
			continue
		}
		next := make([]Entry, 0, len(cur)-1)
		next = append(next, cur[:i]...)
		next = append(next, cur[i+1:]...)
		t.points[point].Store(&next)
		return nil
	}
	return fmt.Errorf("%w: %s #%d", ErrNotInstalled, point, reg.id)
}

func (t *table) Snapshot(point Point) []Entry {
	if !point.Valid() {
		return nil
	}
	if p := t.points[point].Load(); p != nil {
		return *p
	}
	return nil
}

func (t *table) Len() int {
	n := 0
	for _, p := range Points() {
		n += len(t.Snapshot(p))
	}
	return n
}
