package resource

import (
	"errors"
	"fmt"
	"sync"
)

// ErrScopeClosed is returned by Acquire on a closed FrameScope.
var ErrScopeClosed = errors.New("resource: frame scope closed")

// FrameScope tracks every handle acquired for one view of one frame so they can be
// released together once the frame's commands are submitted or the frame is cancelled.
type FrameScope struct {
	mu      *sync.Mutex
	pool    Pool
	frame   uint64
	handles []*Handle
	closed  bool
}

// NewFrameScope creates a scope that acquires from the given pool.
//
// Parameters:
//   - pool: the pool handles are acquired from
//   - frame: the frame number tagged on every handle
//
// Returns:
//   - *FrameScope: the scope
func NewFrameScope(pool Pool, frame uint64) *FrameScope {
	return &FrameScope{mu: &sync.Mutex{}, pool: pool, frame: frame}
}

// Frame returns the frame number of the scope.
func (s *FrameScope) Frame() uint64 {
	return s.frame
}

// Acquire gets a handle from the pool and tracks it for release on Close.
//
// Parameters:
//   - desc: the resource descriptor
//
// Returns:
//   - *Handle: the handle, in StateUndefined
//   - error: ErrScopeClosed, or the pool's error
func (s *FrameScope) Acquire(desc Descriptor) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("%w: frame %d", ErrScopeClosed, s.frame)
	}
	h, err := s.pool.Acquire(desc, s.frame)
	if err != nil {
		return nil, err
	}
	s.handles = append(s.handles, h)
	return h, nil
}

// Len returns the number of handles tracked by the scope.
func (s *FrameScope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Close releases every handle still held. Handles already released elsewhere are skipped.
// Closing twice is a no-op.
//
// Returns:
//   - error: the joined release errors, nil on success
func (s *FrameScope) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	handles := s.handles
	s.handles = nil
	s.mu.Unlock()

	var errs []error
	for _, h := range handles {
		if h.State() == StateReleased {
			continue
		}
		if err := s.pool.Release(h); err != nil && !errors.Is(err, ErrAlreadyReleased) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
