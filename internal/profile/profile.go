// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package profile writes pprof profiles around a simulation run.
package profile

import (
	"flag"
	"fmt"
	"log"
	"os"
	"runtime"
	"runtime/pprof"
	"time"
)

// Config names the profile files to write. Empty names are skipped.
type Config struct {
	CPUProfile   string
	MemProfile   string
	BlockProfile string
	MutexProfile string
}

// RegisterFlags binds the profile flags on fs.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.CPUProfile, "cpuprofile", "", "write a CPU profile to `file`")
	fs.StringVar(&c.MemProfile, "memprofile", "", "write a heap profile to `file` on exit")
	fs.StringVar(&c.BlockProfile, "blockprofile", "", "write a goroutine blocking profile to `file` on exit")
	fs.StringVar(&c.MutexProfile, "mutexprofile", "", "write a mutex contention profile to `file` on exit")
}

// Enabled reports whether any profile was requested.
func (c Config) Enabled() bool {
	return c.CPUProfile != "" || c.MemProfile != "" || c.BlockProfile != "" || c.MutexProfile != ""
}

// Profiler collects the profiles named in its Config.
type Profiler struct {
	config  Config
	logger  *log.Logger
	cpuFile *os.File
	start   time.Time
}

// Start enables the requested profiles. Stop must be called to write them.
func Start(config Config, logger *log.Logger) (*Profiler, error) {
	if logger == nil {
		logger = log.Default()
	}
	p := &Profiler{config: config, logger: logger, start: time.Now()}

	if config.BlockProfile != "" {
		runtime.SetBlockProfileRate(1)
	}
	if config.MutexProfile != "" {
		runtime.SetMutexProfileFraction(1)
	}

	if config.CPUProfile != "" {
		f, err := os.Create(config.CPUProfile)
		if err != nil {
			return nil, fmt.Errorf("create CPU profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("start CPU profile: %w", err)
		}
		p.cpuFile = f
	}
	return p, nil
}

// Stop ends CPU profiling and writes the remaining profiles.
func (p *Profiler) Stop() error {
	p.logger.Printf("Profiled %v", time.Since(p.start))

	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		if err := p.cpuFile.Close(); err != nil {
			return fmt.Errorf("close CPU profile: %w", err)
		}
		p.logger.Printf("CPU profile written to %s", p.config.CPUProfile)
		p.cpuFile = nil
	}

	if p.config.MemProfile != "" {
		runtime.GC()
		if err := writeProfile("heap", p.config.MemProfile); err != nil {
			return err
		}
		p.logger.Printf("Heap profile written to %s", p.config.MemProfile)
	}

	if p.config.BlockProfile != "" {
		err := writeProfile("block", p.config.BlockProfile)
		runtime.SetBlockProfileRate(0)
		if err != nil {
			return err
		}
		p.logger.Printf("Block profile written to %s", p.config.BlockProfile)
	}

	if p.config.MutexProfile != "" {
		err := writeProfile("mutex", p.config.MutexProfile)
		runtime.SetMutexProfileFraction(0)
		if err != nil {
			return err
		}
		p.logger.Printf("Mutex profile written to %s", p.config.MutexProfile)
	}
	return nil
}

func writeProfile(name, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s profile: %w", name, err)
	}
	defer f.Close()

	if err := pprof.Lookup(name).WriteTo(f, 0); err != nil {
		return fmt.Errorf("write %s profile: %w", name, err)
	}
	return nil
}

// LogMemStats logs a one-line summary of heap usage.
func LogMemStats(logger *log.Logger) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	logger.Printf("Memory: alloc=%dMB total=%dMB sys=%dMB gc=%d",
		m.Alloc>>20, m.TotalAlloc>>20, m.Sys>>20, m.NumGC)
}
