package profiler

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-varid/engine/frame_graph"
	"github.com/Carmen-Shannon/oxy-varid/engine/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when told to.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestProfiler_ReportsPerInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	var reports []Report
	p := NewProfiler(
		WithClock(clock.now),
		WithInterval(time.Second),
		WithPool(resource.NewPool(resource.NewVirtualAllocator())),
		WithOutput(func(r Report) { reports = append(reports, r) }),
	)

	for i := 0; i < 3; i++ {
		clock.t = clock.t.Add(250 * time.Millisecond)
		assert.False(t, p.Observe(frame_graph.Result{Passes: 10, Dropped: 1, Duration: time.Duration(i+1) * time.Millisecond}))
	}
	clock.t = clock.t.Add(250 * time.Millisecond)
	require.True(t, p.Observe(frame_graph.Result{Passes: 10, Duration: 4 * time.Millisecond}))

	require.Len(t, reports, 1)
	r := reports[0]
	assert.Equal(t, 4, r.Frames)
	assert.InDelta(t, 4.0, r.FPS, 1e-9)
	assert.Equal(t, 40, r.Passes)
	assert.Equal(t, 3, r.Dropped)
	assert.Equal(t, 4*time.Millisecond, r.MaxFrame)
	assert.Equal(t, 2500*time.Microsecond, r.AvgFrame)
	require.NotNil(t, r.Pool)
	assert.Contains(t, r.String(), "Pool: 0 out")

	// counters restart after a report
	clock.t = clock.t.Add(time.Second)
	require.True(t, p.Tick())
	assert.Equal(t, 1, reports[1].Frames)
	assert.Zero(t, reports[1].Passes)
}
