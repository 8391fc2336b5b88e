// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Command life-client encrypts a random grid, has a worker advance it and
// verifies the result against a plaintext simulation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/luxfi/fhe-life/internal/config"
	"github.com/luxfi/fhe-life/internal/profile"
	"github.com/luxfi/fhe-life/internal/queue"
	"github.com/luxfi/fhe-life/internal/storage"
	"github.com/luxfi/fhe-life/internal/worker"
	"github.com/luxfi/fhe-life/life"
)

var errVerification = errors.New("verification failed")

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "YAML configuration file")
		rows       = flag.Int("rows", 3, "grid rows")
		cols       = flag.Int("cols", 3, "grid columns")
		steps      = flag.Int("steps", 1, "generations to evaluate")
		schemeName = flag.String("scheme", "", "homomorphic scheme: tfhe or cleartext (overrides config)")
		params     = flag.String("params", "", "scheme parameter set (overrides config)")
		workers    = flag.Int("workers", -1, "evaluation goroutines, 0 = GOMAXPROCS (overrides config)")
		local      = flag.Bool("local", false, "run the worker in-process instead of using Redis")
		profiling  profile.Config
	)
	profiling.RegisterFlags(flag.CommandLine)
	flag.Parse()

	if profiling.Enabled() {
		prof, err := profile.Start(profiling, nil)
		if err != nil {
			return err
		}
		defer func() {
			if err := prof.Stop(); err != nil {
				log.Printf("Profiling: %v", err)
			}
		}()
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	if *schemeName != "" {
		cfg.Scheme = *schemeName
	}
	if *params != "" {
		cfg.Params = *params
	}
	if *workers >= 0 {
		cfg.Workers = *workers
	}
	if *local {
		cfg.Storage.Backend = config.StorageMemory
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	scheme, err := life.LookupScheme(cfg.Scheme, cfg.Params)
	if err != nil {
		return err
	}

	log.Printf("Generating %s key and %dx%d grid...", scheme.Name(), *rows, *cols)
	start := time.Now()
	client, err := life.NewClient(scheme, *rows, *cols, life.WithWorkers(cfg.Workers))
	if err != nil {
		return err
	}
	log.Printf("Key generated in %v", time.Since(start))
	fmt.Printf("Initial grid:\n%s\n", client.Grid())

	start = time.Now()
	key, grid, err := client.Encrypt()
	if err != nil {
		return err
	}
	log.Printf("Grid encrypted in %v", time.Since(start))

	q, store, stop, err := connect(cfg, *local)
	if err != nil {
		return err
	}
	defer stop()

	ctx := context.Background()
	if cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.JobTimeout)
		defer cancel()
	}

	job, err := worker.Submit(ctx, q, store, scheme, cfg.Params, key, grid, *steps)
	if err != nil {
		return fmt.Errorf("submit job: %w", err)
	}
	log.Printf("Submitted job %s (%d steps)", job.ID, *steps)

	start = time.Now()
	result, err := worker.Await(ctx, q, store, scheme, job.ID, cfg.PollInterval)
	if err != nil {
		return err
	}
	log.Printf("Job %s finished in %v", job.ID, time.Since(start))
	profile.LogMemStats(log.Default())

	report, err := client.Compare(result, *steps)
	if err != nil {
		return err
	}
	fmt.Printf("Expected after %d steps:\n%s\n", *steps, report.Expected)
	for _, m := range report.Mismatches {
		fmt.Printf("Cell (%d, %d): expected %d, got %d\n", m.X, m.Y, m.Expected, m.Got)
	}
	if !report.OK() {
		return fmt.Errorf("%w: %d of %d cells differ", errVerification, len(report.Mismatches), *rows**cols)
	}

	fmt.Println("Verification succeeded")
	return nil
}

// connect returns the queue and storage shared with the worker. In local
// mode a worker pool runs in-process on memory backends.
func connect(cfg config.Config, local bool) (queue.Queue, storage.Storage, func(), error) {
	if local {
		q := queue.NewMemoryQueue(1)
		store := storage.NewMemoryStorage(cfg.Storage.CapacityMB)
		pool := worker.NewPool(q, store, worker.Options{
			Concurrency: 1,
			Workers:     cfg.Workers,
			StepBudget:  cfg.StepBudget,
		})
		if err := pool.Start(context.Background()); err != nil {
			return nil, nil, nil, err
		}
		stop := func() {
			pool.Stop(10 * time.Second)
			q.Close()
		}
		return q, store, stop, nil
	}

	q, err := queue.NewRedisQueue(queue.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Queue)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create queue: %w", err)
	}
	store, err := storage.NewFileStorage(cfg.Storage.Path)
	if err != nil {
		q.Close()
		return nil, nil, nil, fmt.Errorf("create storage: %w", err)
	}
	return q, store, func() { q.Close() }, nil
}
