package main

import (
	"time"

	"github.com/charmbracelet/log"

	"RDS/internal/control"
	"RDS/internal/host"
	"RDS/internal/render"
	"RDS/internal/telemetry"
)

// Game adapts the host loop to ebiten: Update ticks the simulation and
// Draw presents the current generation.
type Game struct {
	loop    *host.Loop
	queue   *control.Queue
	perf    *telemetry.PerfCollector
	logger  *log.Logger
	palette *render.Palette

	width, height int
	a, b          []float32
	pixels        []byte
	havePixels    bool

	// fatal is set by Draw and returned by the next Update.
	fatal       error
	lastPerfLog time.Time
	lastTick    time.Duration
}

// newGame constructs a Game over an initialised loop.
func newGame(loop *host.Loop, queue *control.Queue, perf *telemetry.PerfCollector, logger *log.Logger) *Game {
	e := loop.Engine()
	size := e.Size()
	return &Game{
		loop:        loop,
		queue:       queue,
		perf:        perf,
		logger:      logger,
		palette:     render.Default(),
		width:       e.Width(),
		height:      e.Height(),
		a:           make([]float32, size),
		b:           make([]float32, size),
		pixels:      make([]byte, size*4),
		lastPerfLog: time.Now(),
	}
}

// Update applies keyboard input, then ticks the host loop. Fatal errors end
// the game; transient ones are logged.
func (g *Game) Update() error {
	if g.fatal != nil {
		return g.fatal
	}
	if err := g.handleInput(); err != nil {
		return err
	}

	start := time.Now()
	err := g.loop.Tick()
	g.lastTick = time.Since(start)
	switch host.Classify(err) {
	case host.SeverityFatal:
		return err
	case host.SeverityTransient:
		g.logger.Warn("tick failed", "err", err)
	}

	if *statsLogIntervalFlag > 0 && time.Since(g.lastPerfLog) >= *statsLogIntervalFlag {
		g.perf.Stats().Log(g.logger)
		g.lastPerfLog = time.Now()
	}
	return nil
}

// Layout reports the logical screen size used by Ebiten: one pixel per cell.
func (g *Game) Layout(_, _ int) (int, int) { return g.width, g.height }
