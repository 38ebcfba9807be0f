package diffusion

import (
	"errors"
	"slices"
	"testing"

	"RDS/internal/config"
)

func newTestEngine(t *testing.T, w, h uint32) (*Engine, *fakeBackend) {
	t.Helper()
	fb := newFakeBackend()
	e, err := New(config.WithSize(w, h), fb)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(e.Close)
	return e, fb
}

func TestNewSeedsBothGenerations(t *testing.T) {
	e, fb := newTestEngine(t, 10, 10)
	if len(fb.fields) != 4 {
		t.Fatalf("allocated %d field buffers, want 4", len(fb.fields))
	}
	wantA, wantB := Seed(10, 10)
	for _, label := range []string{"Buffer A0", "Buffer A1"} {
		if got := fb.field(label); got == nil || !slices.Equal(got.data, wantA) {
			t.Fatalf("%s not seeded with A", label)
		}
	}
	for _, label := range []string{"Buffer B0", "Buffer B1"} {
		if got := fb.field(label); got == nil || !slices.Equal(got.data, wantB) {
			t.Fatalf("%s not seeded with B", label)
		}
	}
	if e.StepNumber() != 0 || e.CurrentGeneration() != Gen0 {
		t.Fatalf("fresh engine at step %d %v", e.StepNumber(), e.CurrentGeneration())
	}
	if e.ParametersDirty() || e.ResetPending() {
		t.Fatal("fresh engine has pending flags")
	}
	if fb.params.block != NewParameterBlock(config.WithSize(10, 10)) {
		t.Fatalf("parameter buffer initialised with %+v", fb.params.block)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	for _, cfg := range []config.Config{
		config.WithSize(0, 10),
		config.WithSize(10, 0),
		config.WithSize(1<<16, 1<<16),
	} {
		fb := newFakeBackend()
		if _, err := New(cfg, fb); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%dx%d: got %v, want ErrInvalidConfig", cfg.Width, cfg.Height, err)
		}
		if len(fb.fields) != 0 {
			t.Fatalf("%dx%d: buffers allocated for invalid config", cfg.Width, cfg.Height)
		}
	}
}

func TestNewRejectsGridAboveBackendLimit(t *testing.T) {
	fb := newFakeBackend()
	fb.maxLen = 99
	if _, err := New(config.WithSize(10, 10), fb); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("got %v, want ErrInvalidConfig", err)
	}
}

func TestNewReleasesOnAllocationFailure(t *testing.T) {
	fb := newFakeBackend()
	fb.failNewField = 3
	if _, err := New(config.WithSize(8, 8), fb); !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("got %v, want ErrOutOfMemory", err)
	}
	for _, b := range fb.fields {
		if !b.released {
			t.Fatalf("%s leaked after failed construction", b.label)
		}
	}
	if !fb.params.released {
		t.Fatal("parameter buffer leaked after failed construction")
	}
}

func TestStepCounterAndParity(t *testing.T) {
	e, fb := newTestEngine(t, 8, 8)
	for i := 1; i <= 7; i++ {
		before := e.CurrentGeneration()
		if err := e.Step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if e.StepNumber() != uint64(i) {
			t.Fatalf("after %d steps counter is %d", i, e.StepNumber())
		}
		if e.CurrentGeneration() == before {
			t.Fatalf("step %d did not alternate generation", i)
		}
		if want := Generation(i % 2); e.CurrentGeneration() != want {
			t.Fatalf("step %d: generation %v, want %v", i, e.CurrentGeneration(), want)
		}
	}
	if len(fb.dispatches) != 7 {
		t.Fatalf("dispatched %d times, want 7", len(fb.dispatches))
	}
}

func TestStepReadsCurrentWritesOther(t *testing.T) {
	e, fb := newTestEngine(t, 8, 8)
	for i := 0; i < 4; i++ {
		inA, inB := e.Current()
		if err := e.Step(); err != nil {
			t.Fatal(err)
		}
		bind := fb.dispatches[i]
		if bind.AIn != inA || bind.BIn != inB {
			t.Fatalf("step %d read %s/%s, want %s/%s", i, bind.AIn.Label(), bind.BIn.Label(), inA.Label(), inB.Label())
		}
		outA, outB := e.Current()
		if bind.AOut != outA || bind.BOut != outB {
			t.Fatalf("step %d wrote %s/%s, but current is now %s/%s", i, bind.AOut.Label(), bind.BOut.Label(), outA.Label(), outB.Label())
		}
	}
}

func TestDispatchGroupCount(t *testing.T) {
	cases := []struct {
		w, h   uint32
		groups int
	}{
		{4, 4, 1},
		{8, 8, 1},
		{10, 10, 2},
		{512, 512, 4096},
		{3, 43, 3},
	}
	for _, c := range cases {
		e, fb := newTestEngine(t, c.w, c.h)
		if err := e.Step(); err != nil {
			t.Fatal(err)
		}
		if fb.dispatchSizes[0] != c.groups || e.Groups() != c.groups {
			t.Fatalf("%dx%d: dispatched %d groups, want %d", c.w, c.h, fb.dispatchSizes[0], c.groups)
		}
	}
}

func TestParameterFlushOncePerDirtyStep(t *testing.T) {
	e, fb := newTestEngine(t, 8, 8)
	if err := e.Step(); err != nil {
		t.Fatal(err)
	}
	if len(fb.paramWrites) != 0 {
		t.Fatalf("clean step flushed %d times", len(fb.paramWrites))
	}

	e.SetFeed(0.055)
	e.SetKill(0.062)
	e.SetFeed(0.056)
	if !e.ParametersDirty() {
		t.Fatal("setter did not mark parameters dirty")
	}
	if err := e.Step(); err != nil {
		t.Fatal(err)
	}
	if len(fb.paramWrites) != 1 {
		t.Fatalf("dirty step flushed %d times, want 1", len(fb.paramWrites))
	}
	if got := fb.paramWrites[0]; got.Feed != 0.056 || got.Kill != 0.062 {
		t.Fatalf("flushed block %+v does not carry latest values", got)
	}
	if e.ParametersDirty() {
		t.Fatal("flag still set after flush")
	}

	if err := e.Step(); err != nil {
		t.Fatal(err)
	}
	if len(fb.paramWrites) != 1 {
		t.Fatalf("step after flush wrote parameters again")
	}
}

func TestSettersAlwaysMarkDirty(t *testing.T) {
	setters := map[string]func(*Engine){
		"feed":        func(e *Engine) { e.SetFeed(0.03) },
		"kill":        func(e *Engine) { e.SetKill(0.09) },
		"diffusion-a": func(e *Engine) { e.SetDiffusionA(1.0) },
		"diffusion-b": func(e *Engine) { e.SetDiffusionB(0.5) },
		"timestep":    func(e *Engine) { e.SetTimestep(1.0) },
	}
	for name, set := range setters {
		e, fb := newTestEngine(t, 8, 8)
		// Same value as the default still counts as a change.
		set(e)
		if !e.ParametersDirty() {
			t.Fatalf("%s: setter did not mark dirty", name)
		}
		if err := e.Step(); err != nil {
			t.Fatal(err)
		}
		if len(fb.paramWrites) != 1 {
			t.Fatalf("%s: %d flushes, want 1", name, len(fb.paramWrites))
		}
	}
}

func TestResetRestoresAllBuffers(t *testing.T) {
	e, fb := newTestEngine(t, 10, 10)
	for _, b := range fb.fields {
		for i := range b.data {
			b.data[i] = 0.5
		}
	}
	e.Reset()
	if !e.ResetPending() {
		t.Fatal("Reset did not set the pending flag")
	}
	if len(fb.fieldWrites) != 0 {
		t.Fatal("Reset wrote buffers before the next step")
	}
	if err := e.Step(); err != nil {
		t.Fatal(err)
	}
	wantA, wantB := Seed(10, 10)
	for _, b := range fb.fields {
		want := wantA
		if b.label[len(b.label)-2] == 'B' {
			want = wantB
		}
		if !slices.Equal(b.data, want) {
			t.Fatalf("%s not reseeded", b.label)
		}
	}
	if e.ResetPending() {
		t.Fatal("pending flag survived the step")
	}
	if e.StepNumber() != 1 {
		t.Fatalf("reset step left counter at %d", e.StepNumber())
	}
}

func TestDoubleResetAppliesOnce(t *testing.T) {
	e, fb := newTestEngine(t, 8, 8)
	e.Reset()
	e.Reset()
	if err := e.Step(); err != nil {
		t.Fatal(err)
	}
	if len(fb.fieldWrites) != 4 {
		t.Fatalf("double reset wrote %d buffers, want 4", len(fb.fieldWrites))
	}
	if err := e.Step(); err != nil {
		t.Fatal(err)
	}
	if len(fb.fieldWrites) != 4 {
		t.Fatal("reset applied again on the following step")
	}
}

func TestStepOrdering(t *testing.T) {
	e, fb := newTestEngine(t, 8, 8)
	e.Reset()
	e.SetKill(0.07)
	if err := e.Step(); err != nil {
		t.Fatal(err)
	}
	want := []string{"params", "write Buffer A0", "write Buffer B0", "write Buffer A1", "write Buffer B1", "dispatch"}
	if !slices.Equal(fb.calls, want) {
		t.Fatalf("call order %v, want %v", fb.calls, want)
	}
}

func TestFourByFourScenario(t *testing.T) {
	e, fb := newTestEngine(t, 4, 4)
	for i := 0; i < 3; i++ {
		if err := e.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if e.StepNumber() != 3 || e.CurrentGeneration() != Gen1 {
		t.Fatalf("after 3 steps: step %d %v, want 3 gen1", e.StepNumber(), e.CurrentGeneration())
	}
	for i, n := range fb.dispatchSizes {
		if n != 1 {
			t.Fatalf("dispatch %d used %d groups, want 1", i, n)
		}
	}
	a, _ := e.Current()
	if a.Label() != "Buffer A1" {
		t.Fatalf("current A is %s", a.Label())
	}
}

func TestStepErrorLeavesCounter(t *testing.T) {
	e, fb := newTestEngine(t, 8, 8)
	fb.failDispatch = ErrDeviceLost
	if err := e.Step(); !errors.Is(err, ErrDeviceLost) {
		t.Fatalf("got %v, want ErrDeviceLost", err)
	}
	if e.StepNumber() != 0 {
		t.Fatalf("failed step advanced counter to %d", e.StepNumber())
	}

	fb.failDispatch = nil
	fb.failWriteParams = errInjected
	e.SetFeed(0.04)
	if err := e.Step(); !errors.Is(err, errInjected) {
		t.Fatalf("got %v, want injected error", err)
	}
	if !e.ParametersDirty() {
		t.Fatal("failed flush cleared the dirty flag")
	}
	if len(fb.dispatches) != 0 {
		t.Fatal("dispatch ran after a failed flush")
	}
}

func TestReadCurrent(t *testing.T) {
	e, _ := newTestEngine(t, 10, 10)
	a := make([]float32, e.Size())
	b := make([]float32, e.Size())
	if err := e.ReadCurrent(a, b); err != nil {
		t.Fatal(err)
	}
	wantA, wantB := Seed(10, 10)
	if !slices.Equal(a, wantA) || !slices.Equal(b, wantB) {
		t.Fatal("ReadCurrent did not return the seeded fields")
	}
	if err := e.ReadCurrent(a[:5], b); err == nil {
		t.Fatal("expected error for short destination")
	}
}

func TestBindingRejectsAliasing(t *testing.T) {
	x := &fakeBuffer{label: "x"}
	y := &fakeBuffer{label: "y"}
	z := &fakeBuffer{label: "z"}
	if err := (Binding{AIn: x, BIn: y, AOut: x, BOut: z}).check(); err == nil {
		t.Fatal("aliased in/out accepted")
	}
	if err := (Binding{AIn: x, BIn: y, AOut: z, BOut: z}).check(); err == nil {
		t.Fatal("aliased outputs accepted")
	}
	w := &fakeBuffer{label: "w"}
	if err := (Binding{AIn: x, BIn: y, AOut: z, BOut: w}).check(); err != nil {
		t.Fatalf("disjoint binding rejected: %v", err)
	}
}
