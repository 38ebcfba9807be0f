package main

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/charmbracelet/log"
)

// cpuProfile is an active CPU profile writing to a file.
type cpuProfile struct {
	f      *os.File
	logger *log.Logger
}

func startCPUProfile(path string, logger *log.Logger) (*cpuProfile, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return nil, err
	}
	logger.Info("writing CPU profile", "path", path)
	return &cpuProfile{f: f, logger: logger}, nil
}

// Stop flushes the profile and closes its file. Later calls do nothing.
func (p *cpuProfile) Stop() {
	if p == nil || p.f == nil {
		return
	}
	pprof.StopCPUProfile()
	if err := p.f.Close(); err != nil {
		p.logger.Warn("closing CPU profile", "path", p.f.Name(), "err", err)
	} else {
		p.logger.Debug("CPU profile written", "path", p.f.Name())
	}
	p.f = nil
}
