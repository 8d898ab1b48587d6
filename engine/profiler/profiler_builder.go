package profiler

import (
	"time"

	"github.com/Carmen-Shannon/oxy-varid/engine/resource"
)

// ProfilerBuilderOption is a functional option for configuring a Profiler.
type ProfilerBuilderOption func(*Profiler)

// WithInterval sets how often a report is emitted.
//
// Parameters:
//   - interval: the report interval, ignored if not positive
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithInterval(interval time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if interval > 0 {
			p.updateInterval = interval
		}
	}
}

// WithPool adds the resource pool counters to every report.
func WithPool(pool resource.Pool) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.pool = pool
	}
}

// WithOutput replaces the log output with a custom sink, e.g. a TUI.
func WithOutput(output func(Report)) ProfilerBuilderOption {
	return func(p *Profiler) {
		if output != nil {
			p.output = output
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.now = now
	}
}
