package main

import (
	"flag"
	"time"
)

// Command-line flags that control the backend, the host loop and runtime
// behaviour. The simulation parameters themselves are registered by
// config.RegisterFlags.
var (
	// configPathFlag names a YAML file overlaid on the embedded defaults.
	configPathFlag = flag.String("config", "", "YAML configuration file overlaid on the built-in defaults")

	// backendFlag selects the compute backend.
	backendFlag = flag.String("backend", backendAuto, "compute backend: auto, opencl or cpu")

	// workersFlag sets the CPU backend's goroutine count.
	workersFlag = flag.Int("workers", 0, "CPU backend worker goroutines (0 = GOMAXPROCS)")

	// headlessFlag runs the simulation without a window.
	headlessFlag = flag.Bool("headless", false, "run without a window until -max-steps or interrupt")

	maxStepsFlag = flag.Uint64("max-steps", 0, "stop after this many steps in headless mode (0 = unlimited)")

	// controlAddrFlag enables the remote control service.
	controlAddrFlag = flag.String("control-addr", "", "listen address for the rdctl control service, e.g. 127.0.0.1:7070")

	// outputDirFlag enables CSV telemetry and a config snapshot.
	outputDirFlag = flag.String("output-dir", "", "directory for telemetry.csv, perf.csv and config.yaml")

	statsIntervalFlag = flag.Uint64("stats-interval", 1000, "steps between field statistics samples (0 disables)")

	// debugFlag enables the FPS and simulation overlay.
	debugFlag = flag.Bool("debug", false, "show FPS, step and parameter overlay")

	verifyOpenCLSyncFlag = flag.Bool("verify-opencl-sync", false, "read back every OpenCL field upload and compare it with the host copy")

	// cpuProfileFlag writes a pprof CPU profile for the whole run.
	cpuProfileFlag = flag.String("cpuprofile", "", "write a CPU profile to this file")

	scaleFlag = flag.Int("scale", defaultWindowScale, "window pixels per grid cell")

	logLevelFlag = flag.String("log-level", "info", "log level: debug, info, warn or error")

	statsLogIntervalFlag = flag.Duration("perf-log-interval", 5*time.Second, "interval between perf log lines in windowed mode")
)
