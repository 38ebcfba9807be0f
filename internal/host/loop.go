// Package host drives the simulation engine once per frame: it applies
// queued control commands, issues the frame's steps and reads the current
// generation back for presentation.
package host

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"RDS/internal/control"
	"RDS/internal/diffusion"
	"RDS/internal/telemetry"
)

// pausePoll is how long RunHeadless sleeps between ticks while paused.
const pausePoll = 10 * time.Millisecond

// Options configures a Loop.
type Options struct {
	StepsPerFrame uint32
	Paused        bool
	Logger        *log.Logger
	Perf          *telemetry.PerfCollector
	Recorder      *Recorder
}

// Loop owns the engine for the lifetime of a session. Tick and Frame must
// be called from one goroutine; Status may be called from any.
type Loop struct {
	engine *diffusion.Engine
	queue  *control.Queue
	logger *log.Logger
	perf   *telemetry.PerfCollector
	rec    *Recorder

	stepsPerFrame uint32
	paused        bool
	ticks         uint64

	pending []control.Command
	board   control.StatusBoard
}

func New(engine *diffusion.Engine, queue *control.Queue, opts Options) *Loop {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.StepsPerFrame == 0 {
		opts.StepsPerFrame = 1
	}
	l := &Loop{
		engine:        engine,
		queue:         queue,
		logger:        opts.Logger,
		perf:          opts.Perf,
		rec:           opts.Recorder,
		stepsPerFrame: opts.StepsPerFrame,
		paused:        opts.Paused,
	}
	l.publish()
	return l
}

// Tick drains the control queue, applies the commands in arrival order and,
// unless paused, issues StepsPerFrame steps. It stops at the first failed
// step and returns its error.
func (l *Loop) Tick() error {
	return l.tick(0)
}

// tick issues at most limit steps when limit is positive.
func (l *Loop) tick(limit uint64) error {
	l.applyPending()
	defer l.publish()
	l.ticks++
	if l.paused {
		return nil
	}

	n := uint64(l.stepsPerFrame)
	if limit > 0 && limit < n {
		n = limit
	}
	if l.perf != nil {
		l.perf.StartTick()
	}
	var done uint64
	var err error
	for ; done < n; done++ {
		if err = l.engine.Step(); err != nil {
			break
		}
	}
	if l.perf != nil {
		l.perf.EndTick(int(done))
	}
	if err != nil {
		return fmt.Errorf("tick %d: %w", l.ticks, err)
	}
	return nil
}

func (l *Loop) applyPending() {
	if l.queue == nil {
		return
	}
	l.pending = l.queue.Drain(l.pending[:0])
	for _, cmd := range l.pending {
		l.apply(cmd)
	}
}

func (l *Loop) apply(cmd control.Command) {
	e := l.engine
	switch cmd.Kind {
	case control.KindSetDiffusionA:
		e.SetDiffusionA(cmd.Value)
	case control.KindSetDiffusionB:
		e.SetDiffusionB(cmd.Value)
	case control.KindSetFeed:
		e.SetFeed(cmd.Value)
	case control.KindSetKill:
		e.SetKill(cmd.Value)
	case control.KindSetTimestep:
		e.SetTimestep(cmd.Value)
	case control.KindSetStepsPerFrame:
		if cmd.Steps == 0 {
			l.logger.Warn("ignoring zero steps per frame")
			return
		}
		l.stepsPerFrame = cmd.Steps
	case control.KindReset:
		e.Reset()
	case control.KindStart:
		l.paused = false
	case control.KindPause:
		l.paused = true
	default:
		l.logger.Warn("ignoring unknown command", "cmd", cmd)
		return
	}
	l.logger.Debug("applied command", "cmd", cmd, "step", e.StepNumber())
}

// Frame copies the current generation into a and b, which must each hold
// Size() values, and hands them to the recorder.
func (l *Loop) Frame(a, b []float32) error {
	start := time.Now()
	if err := l.engine.ReadCurrent(a, b); err != nil {
		return fmt.Errorf("reading frame: %w", err)
	}
	if l.perf != nil {
		l.perf.RecordReadback(time.Since(start))
	}
	if err := l.rec.Observe(l.engine.StepNumber(), a, b); err != nil {
		l.logger.Warn("writing telemetry", "err", err)
	}
	return nil
}

// RunHeadless ticks until maxSteps steps have completed (zero means no
// limit), ctx is done or a fatal error occurs. Transient errors are logged.
// Fields are read back only when the recorder wants a sample.
func (l *Loop) RunHeadless(ctx context.Context, maxSteps uint64) error {
	var a, b []float32
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		step := l.engine.StepNumber()
		if maxSteps > 0 && step >= maxSteps {
			return nil
		}
		var limit uint64
		if maxSteps > 0 {
			limit = maxSteps - step
		}
		err := l.tick(limit)
		switch Classify(err) {
		case SeverityFatal:
			return err
		case SeverityTransient:
			l.logger.Warn("step failed", "err", err)
		}
		if l.paused {
			time.Sleep(pausePoll)
			continue
		}
		if l.rec.Due(l.engine.StepNumber()) {
			if a == nil {
				a = make([]float32, l.engine.Size())
				b = make([]float32, l.engine.Size())
			}
			if err := l.Frame(a, b); err != nil {
				if Classify(err) == SeverityFatal {
					return err
				}
				l.logger.Warn("skipping sample", "err", err)
			}
		}
	}
}

func (l *Loop) publish() {
	p := l.engine.Params()
	queued := 0
	if l.queue != nil {
		queued = l.queue.Len()
	}
	l.board.Publish(control.Status{
		StepNumber:    l.engine.StepNumber(),
		Generation:    uint8(l.engine.CurrentGeneration()),
		Paused:        l.paused,
		StepsPerFrame: l.stepsPerFrame,
		QueuedCmds:    queued,
		Width:         p.Width,
		Height:        p.Height,
		Timestep:      p.Timestep,
		DiffusionA:    p.DiffusionA,
		DiffusionB:    p.DiffusionB,
		Feed:          p.Feed,
		Kill:          p.Kill,
	})
}

// Status returns the snapshot published after the last tick. It is safe
// for concurrent use and makes Loop a control.StatusSource.
func (l *Loop) Status() control.Status { return l.board.Status() }

func (l *Loop) Paused() bool              { return l.paused }
func (l *Loop) StepsPerFrame() uint32     { return l.stepsPerFrame }
func (l *Loop) Engine() *diffusion.Engine { return l.engine }

// Recorder returns the loop's recorder, which may be nil.
func (l *Loop) Recorder() *Recorder { return l.rec }
