package profiler

import (
	"fmt"
	"log"
	"runtime"
	"strings"
	"time"

	"github.com/Carmen-Shannon/oxy-varid/engine/frame_graph"
	"github.com/Carmen-Shannon/oxy-varid/engine/resource"
)

// Report is one interval of profiling data.
type Report struct {
	FPS         float64
	Frames      int
	Passes      int
	Dropped     int
	MaxFrame    time.Duration
	AvgFrame    time.Duration
	HeapMB      float64
	AllocRateMB float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
	SysMB       float64
	Pool        *resource.Stats
}

// String formats the report as a single log line.
func (r Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "FPS: %.2f | Frame: avg %s max %s | Passes: %d (dropped %d)",
		r.FPS, r.AvgFrame.Round(time.Microsecond), r.MaxFrame.Round(time.Microsecond), r.Passes, r.Dropped)
	if r.Pool != nil {
		fmt.Fprintf(&sb, " | Pool: %d out, %d idle, %d shapes, %.2f MB",
			r.Pool.Outstanding, r.Pool.Idle, r.Pool.Shapes, float64(r.Pool.LiveBytes)/1024/1024)
	}
	fmt.Fprintf(&sb, " | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
		r.HeapMB, r.AllocRateMB, r.GCCount, r.LastPauseUs, r.MaxPauseUs, r.SysMB)
	return sb.String()
}

// Profiler tracks frame rate, frame graph work and memory statistics.
// Outputs a Report to the log at a configurable interval.
type Profiler struct {
	frameCount     int
	passes         int
	dropped        int
	frameTime      time.Duration
	maxFrameTime   time.Duration
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	pool   resource.Pool
	now    func() time.Time
	output func(Report)
}

// NewProfiler creates a new Profiler. Update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		now:            time.Now,
		output: func(r Report) {
			log.Printf("[Profiler] %s", r)
		},
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Observe records the result of one executed frame and ticks the profiler.
//
// Parameters:
//   - res: the frame graph result of the frame
//
// Returns:
//   - bool: true if a report was emitted
func (p *Profiler) Observe(res frame_graph.Result) bool {
	p.passes += res.Passes
	p.dropped += res.Dropped
	p.frameTime += res.Duration
	p.maxFrameTime = max(p.maxFrameTime, res.Duration)
	return p.Tick()
}

// Tick should be called once per frame to track frame timing.
// Emits a Report when the update interval has elapsed.
//
// Returns:
//   - bool: true if a report was emitted this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	r := Report{
		FPS:      float64(p.frameCount) / elapsed.Seconds(),
		Frames:   p.frameCount,
		Passes:   p.passes,
		Dropped:  p.dropped,
		MaxFrame: p.maxFrameTime,
		AvgFrame: p.frameTime / time.Duration(p.frameCount),
	}

	runtime.ReadMemStats(&p.memStats)
	r.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	r.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	r.AllocRateMB = float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	// PauseNs is a circular buffer of the last 256 GC pauses
	r.GCCount = p.memStats.NumGC
	if r.GCCount > 0 {
		r.LastPauseUs = p.memStats.PauseNs[(r.GCCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if r.GCCount-startIdx > 256 {
			startIdx = r.GCCount - 256
		}
		for i := startIdx; i < r.GCCount; i++ {
			r.MaxPauseUs = max(r.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	if p.pool != nil {
		stats := p.pool.Stats()
		r.Pool = &stats
	}

	p.output(r)

	p.frameCount, p.passes, p.dropped = 0, 0, 0
	p.frameTime, p.maxFrameTime = 0, 0
	p.lastTime = currentTime
	p.lastGCCount = r.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}
