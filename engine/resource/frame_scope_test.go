package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameScope_CloseReleasesEverything(t *testing.T) {
	p := NewPool(&fakeAllocator{})
	scope := NewFrameScope(p, 12)

	a, err := scope.Acquire(testTexture("a", 8, 8))
	require.NoError(t, err)
	b, err := scope.Acquire(testTexture("b", 16, 16))
	require.NoError(t, err)
	assert.Equal(t, uint64(12), a.Frame())
	assert.Equal(t, 2, scope.Len())
	assert.Equal(t, 2, p.Outstanding())

	require.NoError(t, p.Release(b), "handles released early are skipped on close")

	require.NoError(t, scope.Close())
	assert.Equal(t, StateReleased, a.State())
	assert.Equal(t, 0, p.Outstanding())

	require.NoError(t, scope.Close(), "close is idempotent")
	_, err = scope.Acquire(testTexture("c", 8, 8))
	assert.ErrorIs(t, err, ErrScopeClosed)
}

func TestFrameScope_CancelledFrameLeaksNothing(t *testing.T) {
	p := NewPool(&fakeAllocator{})

	for frame := uint64(1); frame <= 3; frame++ {
		scope := NewFrameScope(p, frame)
		for i := range 5 {
			h, err := scope.Acquire(testTexture("t", 8<<i, 8))
			require.NoError(t, err)
			if i%2 == 0 {
				h.MarkInitialized()
			}
		}
		// the frame is abandoned before anything is submitted
		require.NoError(t, scope.Close())
		assert.Equal(t, 0, p.Outstanding(), "frame %d", frame)
	}

	stats := p.Stats()
	assert.Equal(t, uint64(5), stats.Allocations)
	assert.Equal(t, uint64(10), stats.Reuses)
}

func TestFrameScope_PropagatesPoolErrors(t *testing.T) {
	alloc := &fakeAllocator{}
	alloc.fail.Store(true)
	scope := NewFrameScope(NewPool(alloc), 1)

	_, err := scope.Acquire(testTexture("t", 8, 8))
	assert.ErrorIs(t, err, ErrAllocationFailed)
	assert.Equal(t, 0, scope.Len())
	assert.NoError(t, scope.Close())
}
