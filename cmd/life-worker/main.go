// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Command life-worker advances encrypted Game of Life grids submitted
// through the job queue.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/luxfi/fhe-life/internal/config"
	"github.com/luxfi/fhe-life/internal/profile"
	"github.com/luxfi/fhe-life/internal/queue"
	"github.com/luxfi/fhe-life/internal/storage"
	"github.com/luxfi/fhe-life/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", "", "YAML configuration file")
		concurrency = flag.Int("concurrency", 0, "jobs processed at once (overrides config)")
		workers     = flag.Int("workers", -1, "evaluation goroutines per job, 0 = GOMAXPROCS (overrides config)")
		redisAddr   = flag.String("redis", "", "Redis address (overrides config)")
		queueName   = flag.String("queue", "", "queue name (overrides config)")
		storagePath = flag.String("storage", "", "blob storage path (overrides config)")
		metricsAddr = flag.String("metrics", "", "metrics server address (overrides config)")
		profiling   profile.Config
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
	if *concurrency > 0 {
		cfg.Concurrency = *concurrency
	}
	if *workers >= 0 {
		cfg.Workers = *workers
	}
	if *redisAddr != "" {
		cfg.Redis.Addr = *redisAddr
	}
	if *queueName != "" {
		cfg.Queue = *queueName
	}
	if *storagePath != "" {
		cfg.Storage.Backend = config.StorageFile
		cfg.Storage.Path = *storagePath
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Storage.Backend != config.StorageFile {
		return errors.New("life-worker shares blobs with clients and needs file storage")
	}

	log.Printf("Life worker starting...")
	log.Printf("  Concurrency: %d", cfg.Concurrency)
	log.Printf("  Workers per job: %d", cfg.Workers)
	log.Printf("  Redis: %s", cfg.Redis.Addr)
	log.Printf("  Queue: %s", cfg.Queue)
	log.Printf("  Storage: %s", cfg.Storage.Path)
	log.Printf("  Metrics: %s", cfg.MetricsAddr)

	q, err := queue.NewRedisQueue(queue.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Queue)
	if err != nil {
		return fmt.Errorf("create queue: %w", err)
	}
	defer q.Close()

	store, err := storage.NewFileStorage(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}

	pool := worker.NewPool(q, store, worker.Options{
		Concurrency: cfg.Concurrency,
		Workers:     cfg.Workers,
		StepBudget:  cfg.StepBudget,
		JobTimeout:  cfg.JobTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("start workers: %w", err)
	}

	server := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           pool.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Printf("Metrics server starting on %s", cfg.MetricsAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Printf("Received signal: %s", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Metrics server shutdown error: %v", err)
	}
	if err := pool.Stop(30 * time.Second); err != nil {
		log.Printf("Worker pool shutdown error: %v", err)
	}

	profile.LogMemStats(log.Default())
	log.Println("Shutdown complete")
	return nil
}
