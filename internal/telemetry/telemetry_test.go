package telemetry

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"RDS/internal/config"
)

func TestPerfCollectorRollingWindow(t *testing.T) {
	pc := NewPerfCollector(5)
	for i := 0; i < 10; i++ {
		pc.StartTick()
		time.Sleep(50 * time.Microsecond)
		pc.EndTick(20)
		pc.RecordReadback(time.Millisecond)
	}
	stats := pc.Stats()
	if stats.AvgTickDuration <= 0 {
		t.Error("expected positive average tick duration")
	}
	if stats.StepsPerSecond <= 0 {
		t.Error("expected positive steps per second")
	}
	if stats.MinTickDuration > stats.MaxTickDuration {
		t.Errorf("min %v above max %v", stats.MinTickDuration, stats.MaxTickDuration)
	}
	if stats.AvgReadback != time.Millisecond {
		t.Errorf("avg readback = %v, want 1ms", stats.AvgReadback)
	}
}

func TestPerfCollectorOneReadbackPerTick(t *testing.T) {
	pc := NewPerfCollector(4)
	pc.RecordReadback(time.Second)
	for i := 0; i < 2; i++ {
		pc.StartTick()
		pc.EndTick(1)
		pc.RecordReadback(2 * time.Millisecond)
		pc.RecordReadback(5 * time.Millisecond)
	}
	if got := pc.Stats().AvgReadback; got != 2*time.Millisecond {
		t.Errorf("avg readback = %v, want 2ms", got)
	}
}

func TestPerfCollectorEmpty(t *testing.T) {
	stats := NewPerfCollector(0).Stats()
	if stats.AvgTickDuration != 0 || stats.StepsPerSecond != 0 {
		t.Errorf("empty collector reported %+v", stats)
	}
}

func TestFieldSampler(t *testing.T) {
	a := []float32{1, 1, 0.5, 0}
	b := []float32{0, 0, 0.5, 1}
	var s FieldSampler
	fs := s.Sample(9, a, b)
	if fs.Step != 9 {
		t.Fatalf("step = %d", fs.Step)
	}
	if fs.MeanA != 0.625 || fs.MeanB != 0.375 {
		t.Errorf("means = %v/%v, want 0.625/0.375", fs.MeanA, fs.MeanB)
	}
	if fs.MinB != 0 || fs.MaxB != 1 {
		t.Errorf("range = [%v, %v]", fs.MinB, fs.MaxB)
	}
	if fs.Coverage != 0.5 {
		t.Errorf("coverage = %v, want 0.5", fs.Coverage)
	}
	// Unbiased sample standard deviation of {0,0,0.5,1}.
	want := math.Sqrt((2*0.375*0.375 + 0.125*0.125 + 0.625*0.625) / 3)
	if math.Abs(fs.StdDevB-want) > 1e-12 {
		t.Errorf("stddev = %v, want %v", fs.StdDevB, want)
	}

	if got := s.Sample(1, nil, nil); got != (FieldStats{Step: 1}) {
		t.Errorf("empty sample = %+v", got)
	}
}

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("got %v, %v; want nil, nil", om, err)
	}
	if err := om.WriteField(FieldStats{}); err != nil {
		t.Fatal(err)
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutputManagerWritesHeaderOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	for i := uint64(1); i <= 3; i++ {
		if err := om.WriteField(FieldStats{Step: i, MeanB: 0.1}); err != nil {
			t.Fatal(err)
		}
		if err := om.WritePerf(PerfStats{StepsPerSecond: 100}, i); err != nil {
			t.Fatal(err)
		}
	}
	if err := om.WriteConfig(config.Default()); err != nil {
		t.Fatal(err)
	}
	if err := om.Close(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"telemetry.csv", "perf.csv"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		if len(lines) != 4 {
			t.Fatalf("%s has %d lines, want header + 3", name, len(lines))
		}
		if !strings.HasPrefix(lines[0], "step,") {
			t.Fatalf("%s header = %q", name, lines[0])
		}
		for _, l := range lines[1:] {
			if strings.HasPrefix(l, "step") {
				t.Fatalf("%s repeats its header", name)
			}
		}
	}

	cfg, err := config.Load(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg != config.Default() {
		t.Fatalf("snapshot = %+v", cfg)
	}
}
