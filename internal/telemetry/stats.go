package telemetry

import (
	"github.com/charmbracelet/log"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// CoverageThreshold is the B concentration above which a cell counts as
// occupied by the pattern.
const CoverageThreshold = 0.25

// FieldStats summarises the concentration fields at one step.
type FieldStats struct {
	Step     uint64  `csv:"step"`
	MeanA    float64 `csv:"mean_a"`
	MeanB    float64 `csv:"mean_b"`
	StdDevB  float64 `csv:"stddev_b"`
	MinB     float64 `csv:"min_b"`
	MaxB     float64 `csv:"max_b"`
	Coverage float64 `csv:"coverage"`
}

// FieldSampler computes FieldStats, reusing its scratch buffers between
// calls.
type FieldSampler struct {
	a, b []float64
}

// Sample converts a and b to float64 and computes their statistics. Empty
// fields yield zero statistics.
func (s *FieldSampler) Sample(step uint64, a, b []float32) FieldStats {
	fs := FieldStats{Step: step}
	if len(a) == 0 || len(b) == 0 {
		return fs
	}
	s.a = widen(s.a, a)
	s.b = widen(s.b, b)

	fs.MeanA = stat.Mean(s.a, nil)
	fs.MeanB, fs.StdDevB = stat.MeanStdDev(s.b, nil)
	fs.MinB = floats.Min(s.b)
	fs.MaxB = floats.Max(s.b)

	covered := 0
	for _, v := range s.b {
		if v > CoverageThreshold {
			covered++
		}
	}
	fs.Coverage = float64(covered) / float64(len(s.b))
	return fs
}

func widen(dst []float64, src []float32) []float64 {
	if cap(dst) < len(src) {
		dst = make([]float64, len(src))
	}
	dst = dst[:len(src)]
	for i, v := range src {
		dst[i] = float64(v)
	}
	return dst
}

// Log writes the statistics as one structured line.
func (fs FieldStats) Log(logger *log.Logger) {
	logger.Info("field",
		"step", fs.Step,
		"mean_a", fs.MeanA,
		"mean_b", fs.MeanB,
		"stddev_b", fs.StdDevB,
		"max_b", fs.MaxB,
		"coverage", fs.Coverage,
	)
}
