package host

import (
	"errors"

	"RDS/internal/diffusion"
)

// Severity tells the host how to react to an error from the engine or the
// presentation path.
type Severity int

const (
	SeverityNone Severity = iota
	// SeverityTransient errors are logged and the frame is skipped.
	SeverityTransient
	// SeverityFatal errors end the session.
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityTransient:
		return "transient"
	case SeverityFatal:
		return "fatal"
	}
	return "unknown"
}

// Classify maps an error onto a Severity. Device loss, allocation failure
// and configuration errors are fatal; everything else is transient.
func Classify(err error) Severity {
	switch {
	case err == nil:
		return SeverityNone
	case errors.Is(err, diffusion.ErrDeviceLost),
		errors.Is(err, diffusion.ErrOutOfMemory),
		errors.Is(err, diffusion.ErrInvalidConfig):
		return SeverityFatal
	default:
		return SeverityTransient
	}
}
