package hook

import (
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-varid/engine/pass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func noop(ctx *pass.Context) (pass.Output, error) {
	return pass.PassThrough(ctx), nil
}

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestTable_PriorityThenInstallOrder(t *testing.T) {
	tbl := NewTable()

	_, err := tbl.Install(PointAfterTonemap, noop, 2, WithName("B"))
	require.NoError(t, err)
	_, err = tbl.Install(PointAfterTonemap, noop, 1, WithName("A"))
	require.NoError(t, err)
	_, err = tbl.Install(PointAfterTonemap, noop, 2, WithName("C"))
	require.NoError(t, err)
	_, err = tbl.Install(PointAfterTonemap, noop, -5, WithName("First"))
	require.NoError(t, err)
	_, err = tbl.Install(PointPostOpaque, noop, 0, WithName("Other"))
	require.NoError(t, err)

	assert.Equal(t, []string{"First", "A", "B", "C"}, names(tbl.Snapshot(PointAfterTonemap)))
	assert.Equal(t, []string{"Other"}, names(tbl.Snapshot(PointPostOpaque)))
	assert.Empty(t, tbl.Snapshot(PointAfterFXAA))
	assert.Equal(t, 5, tbl.Len())
}

func TestTable_LaterPriorityObservesEarlierState(t *testing.T) {
	tbl := NewTable()

	var log []string
	_, err := tbl.Install(PointPostOpaque, func(ctx *pass.Context) (pass.Output, error) {
		log = append(log, "B saw "+log[len(log)-1])
		return pass.PassThrough(ctx), nil
	}, 2)
	require.NoError(t, err)
	_, err = tbl.Install(PointPostOpaque, func(ctx *pass.Context) (pass.Output, error) {
		log = append(log, "A")
		return pass.PassThrough(ctx), nil
	}, 1)
	require.NoError(t, err)

	ctx := &pass.Context{}
	for _, e := range tbl.Snapshot(PointPostOpaque) {
		_, err := e.Callback(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"A", "B saw A"}, log)
}

func TestTable_UninstallKeepsInFlightSnapshot(t *testing.T) {
	tbl := NewTable()

	a, err := tbl.Install(PointAfterTonemap, noop, 0, WithName("A"))
	require.NoError(t, err)
	_, err = tbl.Install(PointAfterTonemap, noop, 0, WithName("B"))
	require.NoError(t, err)

	inFlight := tbl.Snapshot(PointAfterTonemap)
	require.NoError(t, tbl.Uninstall(PointAfterTonemap, a))

	assert.Equal(t, []string{"A", "B"}, names(inFlight))
	assert.Equal(t, []string{"B"}, names(tbl.Snapshot(PointAfterTonemap)))

	assert.ErrorIs(t, tbl.Uninstall(PointAfterTonemap, a), ErrNotInstalled)
}

func TestTable_Errors(t *testing.T) {
	tbl := NewTable()

	_, err := tbl.Install(Point(99), noop, 0)
	assert.ErrorIs(t, err, ErrInvalidPoint)
	_, err = tbl.Install(PointPostOpaque, nil, 0)
	assert.ErrorIs(t, err, ErrNilCallback)

	reg, err := tbl.Install(PointPostOpaque, noop, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, tbl.Uninstall(PointAfterTonemap, reg), ErrNotInstalled, "wrong point")
	assert.ErrorIs(t, tbl.Uninstall(Point(-1), reg), ErrInvalidPoint)
	assert.NoError(t, tbl.Uninstall(PointPostOpaque, reg))
	assert.Equal(t, PointPostOpaque, reg.Point())
}

func TestTable_ConcurrentReadersDuringWrites(t *testing.T) {
	tbl := NewTable()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				entries := tbl.Snapshot(PointAfterTonemap)
				for i := 1; i < len(entries); i++ {
					if entries[i].Priority < entries[i-1].Priority {
						t.Errorf("snapshot out of order")
						return
					}
				}
			}
		}()
	}

	var regs []Registration
	for i := range 100 {
		reg, err := tbl.Install(PointAfterTonemap, noop, i%7)
		require.NoError(t, err)
		regs = append(regs, reg)
	}
	for _, reg := range regs {
		require.NoError(t, tbl.Uninstall(PointAfterTonemap, reg))
	}
	close(stop)
	wg.Wait()

	assert.Zero(t, tbl.Len())
}

// TestTable_SnapshotIsStablySorted checks ordering over random install and uninstall sequences.
func TestTable_SnapshotIsStablySorted(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tbl := NewTable()
		var live []Registration

		steps := rapid.IntRange(1, 50).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if len(live) > 0 && rapid.IntRange(0, 3).Draw(t, "op") == 0 {
				idx := rapid.IntRange(0, len(live)-1).Draw(t, "victim")
				if err := tbl.Uninstall(PointPrePostProcess, live[idx]); err != nil {
					t.Fatalf("uninstall: %v", err)
				}
				live = append(live[:idx], live[idx+1:]...)
				continue
			}
			reg, err := tbl.Install(PointPrePostProcess, noop, rapid.IntRange(-3, 3).Draw(t, "priority"))
			if err != nil {
				t.Fatalf("install: %v", err)
			}
			live = append(live, reg)
		}

		entries := tbl.Snapshot(PointPrePostProcess)
		if len(entries) != len(live) {
			t.Fatalf("got %d entries, want %d", len(entries), len(live))
		}
		for i := 1; i < len(entries); i++ {
			a, b := entries[i-1], entries[i]
			if a.Priority > b.Priority || (a.Priority == b.Priority && a.ID() > b.ID()) {
				t.Fatalf("entries %d and %d out of order: %+v %+v", i-1, i, a.Registration, b.Registration)
			}
		}
	})
}

func TestParsePoint(t *testing.T) {
	for _, p := range Points() {
		got, err := ParsePoint(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParsePoint("BeforeEverything")
	assert.ErrorIs(t, err, ErrInvalidPoint)
}
