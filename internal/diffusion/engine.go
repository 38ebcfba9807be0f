package diffusion

import (
	"fmt"

	"RDS/internal/config"
)

// Generation names one of the two physical copies of each field.
type Generation uint8

const (
	Gen0 Generation = 0
	Gen1 Generation = 1
)

func (g Generation) String() string {
	return fmt.Sprintf("gen%d", uint8(g))
}

// Engine owns the field buffers, the parameter block and the step counter.
// It is driven from a single goroutine.
type Engine struct {
	backend Backend

	width, height int
	size          int
	groups        int

	params   ParameterBlock
	paramBuf Buffer

	// a[g] and b[g] are generation g of fields A and B.
	a, b     [2]Buffer
	bindings [2]Binding

	stepNumber   uint64
	paramsDirty  bool
	resetPending bool
}

// New validates cfg, allocates both generations of both fields on backend
// and seeds them identically. The parameter buffer starts current, so
// neither flag is set.
func New(cfg config.Config, backend Backend) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if limit := backend.MaxBufferLen(); cfg.Size() > uint64(limit) {
		return nil, fmt.Errorf("%w: grid %dx%d exceeds %s buffer limit of %d cells",
			ErrInvalidConfig, cfg.Width, cfg.Height, backend.Name(), limit)
	}

	e := &Engine{
		backend: backend,
		width:   int(cfg.Width),
		height:  int(cfg.Height),
		size:    int(cfg.Size()),
		params:  NewParameterBlock(cfg),
	}
	e.groups = groupCount(e.size)

	seedA, seedB := Seed(e.width, e.height)
	var err error
	if e.paramBuf, err = backend.NewParams("Config", e.params); err != nil {
		return nil, fmt.Errorf("allocating parameter buffer: %w", err)
	}
	for g := range e.a {
		label := fmt.Sprintf("Buffer A%d", g)
		if e.a[g], err = backend.NewField(label, seedA); err != nil {
			e.Close()
			return nil, fmt.Errorf("allocating %s: %w", label, err)
		}
		label = fmt.Sprintf("Buffer B%d", g)
		if e.b[g], err = backend.NewField(label, seedB); err != nil {
			e.Close()
			return nil, fmt.Errorf("allocating %s: %w", label, err)
		}
	}

	// Generation g is read by steps with stepNumber%2 == g and written by the others.
	for g := range e.bindings {
		other := 1 - g
		e.bindings[g] = Binding{
			Params: e.paramBuf,
			AIn:    e.a[g],
			BIn:    e.b[g],
			AOut:   e.a[other],
			BOut:   e.b[other],
		}
		if err := e.bindings[g].check(); err != nil {
			e.Close()
			return nil, err
		}
	}
	return e, nil
}

// SetFeed updates the feed rate used from the next step on.
func (e *Engine) SetFeed(feed float32) {
	e.params.Feed = feed
	e.paramsDirty = true
}

// SetKill updates the kill rate used from the next step on.
func (e *Engine) SetKill(kill float32) {
	e.params.Kill = kill
	e.paramsDirty = true
}

// SetDiffusionA updates the diffusion rate of species A.
func (e *Engine) SetDiffusionA(d float32) {
	e.params.DiffusionA = d
	e.paramsDirty = true
}

// SetDiffusionB updates the diffusion rate of species B.
func (e *Engine) SetDiffusionB(d float32) {
	e.params.DiffusionB = d
	e.paramsDirty = true
}

// SetTimestep updates the integration timestep.
func (e *Engine) SetTimestep(t float32) {
	e.params.Timestep = t
	e.paramsDirty = true
}

// Reset schedules a reseed of every field buffer before the next dispatch.
func (e *Engine) Reset() {
	e.resetPending = true
}

// Step flushes pending parameters, applies a pending reset, dispatches one
// kernel invocation and advances the step counter, strictly in that order.
// On error the counter is left unchanged and the error is returned wrapped.
func (e *Engine) Step() error {
	if e.paramsDirty {
		if err := e.backend.WriteParams(e.paramBuf, e.params); err != nil {
			return fmt.Errorf("flushing parameters: %w", err)
		}
		e.paramsDirty = false
	}
	if e.resetPending {
		if err := e.reseed(); err != nil {
			return fmt.Errorf("applying reset: %w", err)
		}
		e.resetPending = false
	}
	if err := e.backend.Dispatch(e.bindings[e.CurrentGeneration()], e.groups); err != nil {
		return fmt.Errorf("dispatching step %d: %w", e.stepNumber, err)
	}
	e.stepNumber++
	return nil
}

func (e *Engine) reseed() error {
	seedA, seedB := Seed(e.width, e.height)
	for g := range e.a {
		if err := e.backend.WriteField(e.a[g], seedA); err != nil {
			return fmt.Errorf("writing %s: %w", e.a[g].Label(), err)
		}
		if err := e.backend.WriteField(e.b[g], seedB); err != nil {
			return fmt.Errorf("writing %s: %w", e.b[g].Label(), err)
		}
	}
	return nil
}

// StepNumber returns the number of completed steps.
func (e *Engine) StepNumber() uint64 { return e.stepNumber }

// CurrentGeneration returns the generation holding the output of the most
// recently completed step, which is also the input of the next one.
func (e *Engine) CurrentGeneration() Generation {
	return Generation(e.stepNumber % 2)
}

// Current returns read-only handles to the current generation of A and B.
func (e *Engine) Current() (a, b Buffer) {
	g := e.CurrentGeneration()
	return e.a[g], e.b[g]
}

// ReadCurrent copies the current generation of both fields into a and b,
// which must each hold Size() values.
func (e *Engine) ReadCurrent(a, b []float32) error {
	if len(a) != e.size || len(b) != e.size {
		return fmt.Errorf("read buffers hold %d and %d values, grid has %d", len(a), len(b), e.size)
	}
	bufA, bufB := e.Current()
	if err := e.backend.ReadField(bufA, a); err != nil {
		return fmt.Errorf("reading %s: %w", bufA.Label(), err)
	}
	if err := e.backend.ReadField(bufB, b); err != nil {
		return fmt.Errorf("reading %s: %w", bufB.Label(), err)
	}
	return nil
}

// Params returns the in-memory parameter block, including unflushed changes.
func (e *Engine) Params() ParameterBlock { return e.params }

// ParametersDirty reports whether the parameter block awaits a flush.
func (e *Engine) ParametersDirty() bool { return e.paramsDirty }

// ResetPending reports whether a reseed awaits the next step.
func (e *Engine) ResetPending() bool { return e.resetPending }

func (e *Engine) Width() int  { return e.width }
func (e *Engine) Height() int { return e.height }

// Size returns width*height.
func (e *Engine) Size() int { return e.size }

// Groups returns the number of work groups per dispatch.
func (e *Engine) Groups() int { return e.groups }

// Backend returns the backend the engine dispatches to.
func (e *Engine) Backend() Backend { return e.backend }

// Close releases the engine's buffers. The backend stays open.
func (e *Engine) Close() {
	for g := range e.a {
		if e.a[g] != nil {
			e.a[g].Release()
			e.a[g] = nil
		}
		if e.b[g] != nil {
			e.b[g].Release()
			e.b[g] = nil
		}
	}
	if e.paramBuf != nil {
		e.paramBuf.Release()
		e.paramBuf = nil
	}
}
