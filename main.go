package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/hajimehoshi/ebiten/v2"

	"RDS/internal/config"
	"RDS/internal/control"
	"RDS/internal/diffusion"
	"RDS/internal/host"
	"RDS/internal/telemetry"
)

func main() {
	flagCfg := config.Default()
	flagCfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "rds",
	})
	if lvl, err := log.ParseLevel(*logLevelFlag); err != nil {
		logger.Warn("unknown log level, using info", "level", *logLevelFlag)
	} else {
		logger.SetLevel(lvl)
	}

	if err := run(logger); err != nil {
		logger.Error("exiting", "err", err)
		os.Exit(1)
	}
}

func run(logger *log.Logger) error {
	if *cpuProfileFlag != "" {
		prof, err := startCPUProfile(*cpuProfileFlag, logger)
		if err != nil {
			return fmt.Errorf("starting CPU profile: %w", err)
		}
		defer prof.Stop()
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	backend, err := newBackend(*backendFlag, *workersFlag, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	engine, err := diffusion.New(cfg, backend)
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	defer engine.Close()
	logger.Info("engine ready",
		"backend", backend.Name(),
		"width", cfg.Width,
		"height", cfg.Height,
		"groups", engine.Groups(),
	)

	out, err := telemetry.NewOutputManager(*outputDirFlag)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := out.WriteConfig(cfg); err != nil {
		return err
	}

	perf := telemetry.NewPerfCollector(perfWindowTicks)
	queue := control.NewQueue(control.DefaultQueueSize)
	defer queue.Close()
	loop := host.New(engine, queue, host.Options{
		StepsPerFrame: cfg.StepsPerFrame,
		Logger:        logger,
		Perf:          perf,
		Recorder:      host.NewRecorder(*statsIntervalFlag, perf, out, logger),
	})

	if *controlAddrFlag != "" {
		srv, err := control.Listen(*controlAddrFlag, control.NewService(queue, loop, logger))
		if err != nil {
			return err
		}
		defer srv.Close()
		logger.Info("control service listening", "addr", srv.Addr())
		go func() {
			if err := srv.Serve(); err != nil {
				logger.Error("control service stopped", "err", err)
			}
		}()
	}

	if *headlessFlag {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		if err := loop.RunHeadless(ctx, *maxStepsFlag); err != nil {
			return err
		}
		logger.Info("headless run finished", "steps", engine.StepNumber())
		return nil
	}

	g := newGame(loop, queue, perf, logger)
	scale := max(*scaleFlag, 1)
	ebiten.SetWindowSize(int(cfg.Width)*scale, int(cfg.Height)*scale)
	ebiten.SetWindowTitle(windowTitle)
	ebiten.SetTPS(int(defaultTPS))
	if err := ebiten.RunGame(g); err != nil && !errors.Is(err, ebiten.Termination) {
		return err
	}
	return nil
}

// loadConfig overlays the optional config file on the defaults, then
// re-applies explicitly set flags so the command line wins.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(*configPathFlag)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.ApplySetFlags(flag.CommandLine); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newBackend opens the requested compute backend. auto prefers OpenCL and
// falls back to the CPU when no device or no OpenCL build is available.
func newBackend(name string, workers int, logger *log.Logger) (diffusion.Backend, error) {
	switch name {
	case backendCPU:
		return diffusion.NewCPUBackend(workers), nil
	case backendOpenCL, backendAuto:
		cl, err := diffusion.NewOpenCLBackend(diffusion.OpenCLOptions{
			Verify: *verifyOpenCLSyncFlag,
			Logger: logger,
		})
		if err == nil {
			logger.Info("OpenCL backend enabled", "device", cl.DeviceName())
			return cl, nil
		}
		if name == backendOpenCL {
			return nil, fmt.Errorf("OpenCL initialization failed: %w", err)
		}
		logger.Warn("OpenCL unavailable, falling back to CPU", "err", err)
		return diffusion.NewCPUBackend(workers), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}
