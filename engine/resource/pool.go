package resource

import (
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// ErrAllocationFailed is returned when the device cannot create a resource or the memory
	// budget would be exceeded.
	ErrAllocationFailed = errors.New("resource: allocation failed")
	// ErrAlreadyReleased is returned when a handle is released twice.
	ErrAlreadyReleased = errors.New("resource: handle already released")
	// ErrForeignHandle is returned when a handle is released to a pool that did not create it.
	ErrForeignHandle = errors.New("resource: handle does not belong to this pool")
	// ErrPoolClosed is returned by Acquire after Close.
	ErrPoolClosed = errors.New("resource: pool closed")
)

// Stats is a snapshot of pool counters.
type Stats struct {
	// Allocations counts resources created through the allocator.
	Allocations uint64
	// Reuses counts acquires served from an idle resource.
	Reuses uint64
	// Destructions counts resources released back to the device.
	Destructions uint64
	// Evictions counts shapes dropped from the shape cache.
	Evictions uint64
	// Outstanding is the number of acquired handles not yet released.
	Outstanding int
	// Idle is the number of resources waiting for reuse.
	Idle int
	// Shapes is the number of shapes currently cached.
	Shapes int
	// LiveBytes is the estimated memory of outstanding and idle resources.
	LiveBytes uint64
}

// bucket holds idle resources of one shape.
type bucket struct {
	idle   chan Resource
	closed atomic.Bool
}

// pool is the implementation of the Pool interface.
//
// The pool itself holds no lock. The shape cache synchronises internally, each bucket is a
// buffered channel, and counters are atomics.
type pool struct {
	allocator Allocator
	shapes    *lru.Cache[Shape, *bucket]

	maxShapes int
	maxIdle   int
	budget    uint64

	liveBytes    atomic.Uint64
	outstanding  atomic.Int64
	idle         atomic.Int64
	allocations  atomic.Uint64
	reuses       atomic.Uint64
	destructions atomic.Uint64
	evictions    atomic.Uint64
	closed       atomic.Bool
}

// Pool hands out transient textures and buffers for the duration of a frame and recycles
// them afterwards. Acquire never blocks: it reuses an idle resource of the same shape or
// allocates a new one. Safe for concurrent use.
type Pool interface {
	// Acquire returns a handle to a resource matching the descriptor, in StateUndefined.
	//
	// Parameters:
	//   - desc: the resource descriptor
	//   - frame: the frame number the handle is used for
	//
	// Returns:
	//   - *Handle: the handle
	//   - error: ErrAllocationFailed (wrapping ErrInvalidDescriptor for bad descriptors), or ErrPoolClosed
	Acquire(desc Descriptor, frame uint64) (*Handle, error)

	// Release returns a handle's resource to the pool. The handle moves to StateReleased.
	//
	// Parameters:
	//   - h: a handle acquired from this pool
	//
	// Returns:
	//   - error: ErrAlreadyReleased, or ErrForeignHandle for imported or foreign handles
	Release(h *Handle) error

	// Outstanding returns the number of acquired handles not yet released.
	//
	// Returns:
	//   - int: the outstanding count
	Outstanding() int

	// Idle returns the number of resources waiting for reuse.
	//
	// Returns:
	//   - int: the idle count
	Idle() int

	// Stats returns a snapshot of the pool counters.
	//
	// Returns:
	//   - Stats: the counters
	Stats() Stats

	// Trim destroys every idle resource. Outstanding handles are unaffected.
	Trim()

	// Close trims the pool and rejects further acquires. Handles released after Close
	// destroy their resource.
	Close()
}

var _ Pool = &pool{}

// NewPool creates a Pool that creates resources through the given allocator.
//
// Parameters:
//   - allocator: the allocator used for new resources
//   - opts: optional builder options
//
// Returns:
//   - Pool: the new pool
func NewPool(allocator Allocator, opts ...PoolBuilderOption) Pool {
	if allocator == nil {
		panic("resource: pool requires an allocator")
	}
	p := &pool{
		allocator: allocator,
		maxShapes: 64,
		maxIdle:   4,
	}
	for _, opt := range opts {
		opt(p)
	}

	shapes, err := lru.NewWithEvict[Shape, *bucket](p.maxShapes, p.onEvict)
	if err != nil {
		panic(fmt.Sprintf("resource: invalid shape limit %d: %v", p.maxShapes, err))
	}
	p.shapes = shapes
	return p
}

func (p *pool) Acquire(desc Descriptor, frame uint64) (*Handle, error) {
	if p.closed.Load() {
		return nil, ErrPoolClosed
	}
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
	}

	b := p.bucketFor(desc.Shape())
	select {
	case res := <-b.idle:
		p.idle.Add(-1)
		p.reuses.Add(1)
		return p.newHandle(desc, res, frame), nil
	default:
	}

	size := desc.ByteSize()
	if !p.reserve(size) && !p.reclaim(size) {
		return nil, fmt.Errorf("%w: %q needs %d bytes, budget %d with %d live", ErrAllocationFailed, desc.Label, size, p.budget, p.liveBytes.Load())
	}
	res, err := p.allocator.Allocate(desc)
	if err != nil {
		p.liveBytes.Add(^(size - 1))
		return nil, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
	}
	p.allocations.Add(1)
	return p.newHandle(desc, res, frame), nil
}

// bucketFor returns the bucket of a shape, creating it if needed and marking it recently used.
func (p *pool) bucketFor(shape Shape) *bucket {
	if b, ok := p.shapes.Get(shape); ok {
		return b
	}
	nb := &bucket{idle: make(chan Resource, p.maxIdle)}
	if prev, found, _ := p.shapes.PeekOrAdd(shape, nb); found {
		return prev
	}
	return nb
}

// reserve adds size to the live byte count unless that would exceed the budget.
func (p *pool) reserve(size uint64) bool {
	for {
		cur := p.liveBytes.Load()
		if p.budget > 0 && cur+size > p.budget {
			return false
		}
		if p.liveBytes.CompareAndSwap(cur, cur+size) {
			return true
		}
	}
}

// reclaim destroys idle resources, least recently used shapes first, until size fits the budget.
// It fails only when outstanding resources alone leave no room.
func (p *pool) reclaim(size uint64) bool {
	for _, shape := range p.shapes.Keys() {
		b, ok := p.shapes.Peek(shape)
		if !ok {
			continue
		}
		for p.destroyIdle(b) {
			if p.reserve(size) {
				return true
			}
		}
	}
	return p.reserve(size)
}

// destroyIdle destroys one idle resource of a bucket, reporting whether there was one.
func (p *pool) destroyIdle(b *bucket) bool {
	select {
	case res := <-b.idle:
		p.idle.Add(-1)
		p.destroy(res)
		return true
	default:
		return false
	}
}

func (p *pool) newHandle(desc Descriptor, res Resource, frame uint64) *Handle {
	p.outstanding.Add(1)
	return &Handle{desc: desc, res: res, pool: p, frame: frame}
}

func (p *pool) Release(h *Handle) error {
	if h == nil || h.pool != p {
		return ErrForeignHandle
	}
	if State(h.state.Swap(int32(StateReleased))) == StateReleased {
		return fmt.Errorf("%w: %s", ErrAlreadyReleased, h.desc.Label)
	}
	p.outstanding.Add(-1)

	b, ok := p.shapes.Peek(h.desc.Shape())
	if !ok || b.closed.Load() || p.closed.Load() {
		p.destroy(h.res)
		return nil
	}

	select {
	case b.idle <- h.res:
		p.idle.Add(1)
		// an eviction may have drained the bucket between the check and the send
		if b.closed.Load() {
			p.drain(b)
		}
	default:
		p.destroy(h.res)
	}
	return nil
}

func (p *pool) onEvict(shape Shape, b *bucket) {
	b.closed.Store(true)
	p.evictions.Add(1)
	p.drain(b)
}

func (p *pool) drain(b *bucket) {
	for p.destroyIdle(b) {
	}
}

func (p *pool) destroy(res Resource) {
	res.Release()
	p.liveBytes.Add(^(res.Descriptor().ByteSize() - 1))
	p.destructions.Add(1)
}

func (p *pool) Outstanding() int {
	return int(p.outstanding.Load())
}

func (p *pool) Idle() int {
	return int(p.idle.Load())
}

func (p *pool) Stats() Stats {
	return Stats{
		Allocations:  p.allocations.Load(),
		Reuses:       p.reuses.Load(),
		Destructions: p.destructions.Load(),
		Evictions:    p.evictions.Load(),
		Outstanding:  p.Outstanding(),
		Idle:         p.Idle(),
		Shapes:       p.shapes.Len(),
		LiveBytes:    p.liveBytes.Load(),
	}
}

func (p *pool) Trim() {
	p.shapes.Purge()
}

func (p *pool) Close() {
	if p.closed.Swap(true) {
		return
	}
	p.shapes.Purge()
	if n := p.Outstanding(); n > 0 {
		log.Printf("[ResourcePool] closed with %d outstanding handles", n)
	}
}
