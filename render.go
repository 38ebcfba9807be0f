package main

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"

	"RDS/internal/host"
	"RDS/internal/render"
)

// Draw reads the current generation back and writes it to the screen. A
// transient read failure keeps the previous frame on screen.
func (g *Game) Draw(screen *ebiten.Image) {
	g.perf.RecordFrame()
	err := g.loop.Frame(g.a, g.b)
	if err == nil {
		err = render.FillRGBA(g.pixels, g.a, g.b, g.palette)
	}
	switch host.Classify(err) {
	case host.SeverityNone:
		g.havePixels = true
	case host.SeverityFatal:
		g.fatal = err
		return
	case host.SeverityTransient:
		g.logger.Warn("skipping frame", "err", err)
	}
	if g.havePixels {
		screen.WritePixels(g.pixels)
	}

	if *debugFlag {
		g.drawOverlay(screen)
	}
}

// drawOverlay prints timing, step and parameter information.
func (g *Game) drawOverlay(screen *ebiten.Image) {
	st := g.loop.Status()
	ps := g.perf.Stats()
	state := "running"
	if st.Paused {
		state = "paused (space)"
	}
	msg := fmt.Sprintf("FPS: %.1f  TPS: %.1f\nStep: %d (gen%d) %s\nSteps/frame: %d (+/-)  %.0f steps/s\nTick: %.2f ms  readback: %.2f ms\nFeed: %.4f (F/G)  Kill: %.4f (K/L)\nDa: %.3f  Db: %.3f  dt: %.3f",
		ebiten.ActualFPS(), ebiten.ActualTPS(),
		st.StepNumber, st.Generation, state,
		st.StepsPerFrame, ps.StepsPerSecond,
		g.lastTick.Seconds()*1000, ps.AvgReadback.Seconds()*1000,
		st.Feed, st.Kill,
		st.DiffusionA, st.DiffusionB, st.Timestep)
	if rec := g.loop.Recorder(); rec != nil {
		if last := rec.Last(); last.Step > 0 {
			msg += fmt.Sprintf("\nCoverage: %.1f%%  mean B: %.3f", last.Coverage*100, last.MeanB)
		}
	}
	ebitenutil.DebugPrint(screen, msg)
}
