package resource

import (
	"sync/atomic"
)

// Resource is a device object created by an Allocator.
type Resource interface {
	// Descriptor returns the descriptor the resource was created with.
	//
	// Returns:
	//   - Descriptor: the creation descriptor
	Descriptor() Descriptor

	// Release frees the device object. Calling it more than once has no effect.
	Release()
}

// Allocator creates resources on a device.
type Allocator interface {
	// Allocate creates a resource matching the descriptor.
	//
	// Parameters:
	//   - desc: a validated descriptor
	//
	// Returns:
	//   - Resource: the new resource
	//   - error: non-nil when the device cannot create it
	Allocate(desc Descriptor) (Resource, error)
}

// VirtualResource is a resource with no device object behind it.
type VirtualResource struct {
	desc     Descriptor
	released atomic.Bool
}

var _ Resource = &VirtualResource{}

func (r *VirtualResource) Descriptor() Descriptor {
	return r.desc
}

func (r *VirtualResource) Release() {
	r.released.Store(true)
}

// Released reports whether Release has been called.
func (r *VirtualResource) Released() bool {
	return r.released.Load()
}

// virtualAllocator is the implementation of a descriptor-only Allocator.
type virtualAllocator struct {
	created atomic.Uint64
}

var _ Allocator = &virtualAllocator{}

// NewVirtualAllocator creates an Allocator whose resources carry only their descriptor.
// Pass chains can be planned and validated against it without a GPU device.
//
// Returns:
//   - Allocator: the allocator
func NewVirtualAllocator() Allocator {
	return &virtualAllocator{}
}

func (a *virtualAllocator) Allocate(desc Descriptor) (Resource, error) {
	a.created.Add(1)
	return &VirtualResource{desc: desc}, nil
}
