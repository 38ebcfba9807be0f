package main

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"RDS/internal/control"
)

// handleInput turns key presses into control commands. Commands go through
// the same queue as remote ones, so they apply at the start of this tick.
func (g *Game) handleInput() error {
	if inpututil.IsKeyJustPressed(ebiten.KeyQ) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		if g.loop.Paused() {
			g.send(control.Start())
		} else {
			g.send(control.Pause())
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		g.send(control.Reset())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyMinus) || inpututil.IsKeyJustPressed(ebiten.KeyKPSubtract) {
		g.adjustStepsPerFrame(-stepsPerFrameStep)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEqual) || inpututil.IsKeyJustPressed(ebiten.KeyKPAdd) {
		g.adjustStepsPerFrame(stepsPerFrameStep)
	}

	p := g.loop.Engine().Params()
	if inpututil.IsKeyJustPressed(ebiten.KeyF) {
		g.send(control.SetFeed(max(p.Feed-feedStep, 0)))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyG) {
		g.send(control.SetFeed(p.Feed + feedStep))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyK) {
		g.send(control.SetKill(max(p.Kill-killStep, 0)))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyL) {
		g.send(control.SetKill(p.Kill + killStep))
	}
	return nil
}

// adjustStepsPerFrame clamps the per-frame step count delta within bounds.
func (g *Game) adjustStepsPerFrame(delta int) {
	n := int(g.loop.StepsPerFrame()) + delta
	n = min(max(n, minStepsPerFrame), maxStepsPerFrame)
	g.send(control.SetStepsPerFrame(uint32(n)))
}

// send queues cmd without blocking the frame; a full queue drops it.
func (g *Game) send(cmd control.Command) {
	if !g.queue.TrySend(cmd) {
		g.logger.Warn("control queue full, dropping command", "cmd", cmd)
	}
}
