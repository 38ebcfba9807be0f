package main

// Host-side constants for the window, the key bindings and the backend
// selection. Simulation defaults live in internal/config.
const (
	defaultWindowScale = 2
	defaultTPS         = 60.0
	windowTitle        = "Gray-Scott Reaction Diffusion"

	stepsPerFrameStep = 5
	minStepsPerFrame  = 1
	maxStepsPerFrame  = 1000

	feedStep = 0.001
	killStep = 0.001

	perfWindowTicks = 120

	backendAuto   = "auto"
	backendOpenCL = "opencl"
	backendCPU    = "cpu"
)
