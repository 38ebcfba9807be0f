package host

import (
	"github.com/charmbracelet/log"

	"RDS/internal/telemetry"
)

// Recorder samples field statistics and timings every interval steps and
// forwards them to the log and the output files.
type Recorder struct {
	interval uint64
	next     uint64
	sampler  telemetry.FieldSampler
	perf     *telemetry.PerfCollector
	out      *telemetry.OutputManager
	logger   *log.Logger
	last     telemetry.FieldStats
}

// NewRecorder returns a recorder firing every interval steps. An interval
// of zero disables sampling. out may be nil.
func NewRecorder(interval uint64, perf *telemetry.PerfCollector, out *telemetry.OutputManager, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{
		interval: interval,
		next:     interval,
		perf:     perf,
		out:      out,
		logger:   logger,
	}
}

// Due reports whether step has reached the next sampling point.
func (r *Recorder) Due(step uint64) bool {
	return r != nil && r.interval > 0 && step >= r.next
}

// Observe records the fields at step when a sample is due.
func (r *Recorder) Observe(step uint64, a, b []float32) error {
	if !r.Due(step) {
		return nil
	}
	r.next = (step/r.interval + 1) * r.interval

	stats := r.sampler.Sample(step, a, b)
	r.last = stats
	stats.Log(r.logger)
	if err := r.out.WriteField(stats); err != nil {
		return err
	}
	if r.perf != nil {
		ps := r.perf.Stats()
		ps.Log(r.logger)
		if err := r.out.WritePerf(ps, step); err != nil {
			return err
		}
	}
	return nil
}

// Last returns the most recent sample.
func (r *Recorder) Last() telemetry.FieldStats {
	if r == nil {
		return telemetry.FieldStats{}
	}
	return r.last
}
