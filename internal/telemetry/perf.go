// Package telemetry measures the host loop and the simulated fields and
// writes both to CSV.
package telemetry

import (
	"time"

	"github.com/charmbracelet/log"
)

// TickSample holds timing data for a single host tick.
type TickSample struct {
	Steps    int
	Compute  time.Duration
	Readback time.Duration
}

// PerfCollector tracks host timings over a rolling window of ticks.
type PerfCollector struct {
	windowSize  int
	samples     []TickSample
	writeIndex  int
	sampleCount int

	tickStart time.Time
	current   TickSample
	// unread is set by EndTick and cleared by the first readback after it.
	unread bool

	lastFrameTime time.Time
	frameDuration time.Duration
}

// NewPerfCollector creates a collector averaging over windowSize ticks.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		windowSize: windowSize,
		samples:    make([]TickSample, windowSize),
	}
}

// StartTick begins timing the compute part of a tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	p.current = TickSample{}
}

// EndTick records a tick that issued steps dispatches.
func (p *PerfCollector) EndTick(steps int) {
	p.current.Steps = steps
	p.current.Compute = time.Since(p.tickStart)
	p.samples[p.writeIndex] = p.current
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
	p.unread = true
}

// RecordReadback attributes a field readback to the most recent tick. Only
// the first readback after each tick counts; later ones, and any before the
// first tick, are ignored.
func (p *PerfCollector) RecordReadback(d time.Duration) {
	if !p.unread {
		return
	}
	p.unread = false
	last := (p.writeIndex - 1 + p.windowSize) % p.windowSize
	p.samples[last].Readback = d
}

// RecordFrame records presentation frame timing.
func (p *PerfCollector) RecordFrame() {
	now := time.Now()
	if !p.lastFrameTime.IsZero() {
		p.frameDuration = now.Sub(p.lastFrameTime)
	}
	p.lastFrameTime = now
}

// PerfStats holds aggregated timings over the current window.
type PerfStats struct {
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration
	AvgReadback     time.Duration
	StepsPerSecond  float64

	FrameDuration time.Duration
	FPS           float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	var fps float64
	if p.frameDuration > 0 {
		fps = float64(time.Second) / float64(p.frameDuration)
	}
	s := PerfStats{FrameDuration: p.frameDuration, FPS: fps}
	if p.sampleCount == 0 {
		return s
	}

	var total, readback time.Duration
	steps := 0
	for i := 0; i < p.sampleCount; i++ {
		smp := p.samples[i]
		total += smp.Compute
		readback += smp.Readback
		steps += smp.Steps
		if i == 0 || smp.Compute < s.MinTickDuration {
			s.MinTickDuration = smp.Compute
		}
		if smp.Compute > s.MaxTickDuration {
			s.MaxTickDuration = smp.Compute
		}
	}
	n := time.Duration(p.sampleCount)
	s.AvgTickDuration = total / n
	s.AvgReadback = readback / n
	if total > 0 {
		s.StepsPerSecond = float64(steps) / total.Seconds()
	}
	return s
}

// Log writes the statistics as one structured line.
func (s PerfStats) Log(logger *log.Logger) {
	kv := []any{
		"avg_tick_us", s.AvgTickDuration.Microseconds(),
		"min_tick_us", s.MinTickDuration.Microseconds(),
		"max_tick_us", s.MaxTickDuration.Microseconds(),
		"readback_us", s.AvgReadback.Microseconds(),
		"steps_per_sec", int(s.StepsPerSecond),
	}
	if s.FPS > 0 {
		kv = append(kv, "fps", int(s.FPS))
	}
	logger.Info("perf", kv...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	Step        uint64  `csv:"step"`
	AvgTickUS   int64   `csv:"avg_tick_us"`
	MinTickUS   int64   `csv:"min_tick_us"`
	MaxTickUS   int64   `csv:"max_tick_us"`
	ReadbackUS  int64   `csv:"readback_us"`
	StepsPerSec float64 `csv:"steps_per_sec"`
	FPS         float64 `csv:"fps"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(step uint64) PerfStatsCSV {
	return PerfStatsCSV{
		Step:        step,
		AvgTickUS:   s.AvgTickDuration.Microseconds(),
		MinTickUS:   s.MinTickDuration.Microseconds(),
		MaxTickUS:   s.MaxTickDuration.Microseconds(),
		ReadbackUS:  s.AvgReadback.Microseconds(),
		StepsPerSec: s.StepsPerSecond,
		FPS:         s.FPS,
	}
}
