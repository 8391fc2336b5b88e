// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package config loads worker and client settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config is shared by life-worker and life-client. Command-line flags
// override values loaded from a file.
type Config struct {
	// Scheme and Params select the homomorphic backend.
	Scheme string `yaml:"scheme"`
	Params string `yaml:"params"`

	// Workers is the number of evaluation goroutines per job (0 = GOMAXPROCS).
	Workers int `yaml:"workers"`
	// Concurrency is the number of jobs a worker process runs at once.
	Concurrency int `yaml:"concurrency"`
	// StepBudget is the step count above which results are flagged (0 = unbounded).
	StepBudget int `yaml:"step_budget"`

	Redis   Redis   `yaml:"redis"`
	Queue   string  `yaml:"queue"`
	Storage Storage `yaml:"storage"`

	MetricsAddr  string        `yaml:"metrics_addr"`
	PollInterval time.Duration `yaml:"poll_interval"`
	JobTimeout   time.Duration `yaml:"job_timeout"`
}

// Redis holds connection settings.
type Redis struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Storage selects the blob store.
type Storage struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	CapacityMB int64  `yaml:"capacity_mb"`
}

// Storage backends.
const (
	StorageFile   = "file"
	StorageMemory = "memory"
)

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Scheme:      "tfhe",
		Params:      "PN10QP27",
		Concurrency: 1,
		Redis: Redis{
			Addr: "localhost:6379",
		},
		Queue: "default",
		Storage: Storage{
			Backend:    StorageFile,
			Path:       "/tmp/life-storage",
			CapacityMB: 1024,
		},
		MetricsAddr:  ":9090",
		PollInterval: time.Second,
		JobTimeout:   time.Hour,
	}
}

// Load reads path over Default. Unknown keys are rejected.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads YAML from r over Default and validates the result.
func Decode(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field ranges. It does not check that the scheme is
// registered; that happens when the scheme is looked up.
func (c Config) Validate() error {
	switch {
	case c.Scheme == "":
		return fmt.Errorf("%w: scheme is empty", ErrInvalid)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers = %d", ErrInvalid, c.Workers)
	case c.Concurrency <= 0:
		return fmt.Errorf("%w: concurrency = %d", ErrInvalid, c.Concurrency)
	case c.StepBudget < 0:
		return fmt.Errorf("%w: step_budget = %d", ErrInvalid, c.StepBudget)
	case c.Queue == "":
		return fmt.Errorf("%w: queue is empty", ErrInvalid)
	case c.PollInterval <= 0:
		return fmt.Errorf("%w: poll_interval = %v", ErrInvalid, c.PollInterval)
	case c.JobTimeout < 0:
		return fmt.Errorf("%w: job_timeout = %v", ErrInvalid, c.JobTimeout)
	}

	switch c.Storage.Backend {
	case StorageFile:
		if c.Storage.Path == "" {
			return fmt.Errorf("%w: storage.path is empty", ErrInvalid)
		}
	case StorageMemory:
		if c.Storage.CapacityMB <= 0 {
			return fmt.Errorf("%w: storage.capacity_mb = %d", ErrInvalid, c.Storage.CapacityMB)
		}
	default:
		return fmt.Errorf("%w: storage.backend %q", ErrInvalid, c.Storage.Backend)
	}
	return nil
}

// String renders the configuration as YAML with the Redis password masked.
func (c Config) String() string {
	if c.Redis.Password != "" {
		c.Redis.Password = "****"
	}
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(out)
}
