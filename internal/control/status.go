package control

import "sync/atomic"

// Status is a snapshot of the host loop, published after every tick.
type Status struct {
	StepNumber    uint64
	Generation    uint8
	Paused        bool
	StepsPerFrame uint32
	QueuedCmds    int

	Width      uint32
	Height     uint32
	Timestep   float32
	DiffusionA float32
	DiffusionB float32
	Feed       float32
	Kill       float32
}

// StatusSource provides the latest published status.
type StatusSource interface {
	Status() Status
}

// StatusBoard holds the most recent Status for concurrent readers.
type StatusBoard struct {
	p atomic.Pointer[Status]
}

// Publish replaces the current snapshot.
func (b *StatusBoard) Publish(s Status) {
	b.p.Store(&s)
}

// Status returns the latest snapshot, or the zero Status before the first
// Publish.
func (b *StatusBoard) Status() Status {
	if s := b.p.Load(); s != nil {
		return *s
	}
	return Status{}
}
