// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package worker runs simulation jobs popped from a queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/fhe-life/internal/queue"
	"github.com/luxfi/fhe-life/internal/storage"
	"github.com/luxfi/fhe-life/life"
)

// ErrShutdownTimeout is returned by Stop when job loops outlive the timeout.
var ErrShutdownTimeout = errors.New("worker: shutdown timeout")

// Options configures a Pool.
type Options struct {
	// Concurrency is the number of jobs processed at once.
	Concurrency int
	// Workers is the number of evaluation goroutines per job.
	Workers int
	// StepBudget is passed to every Server.
	StepBudget int
	// JobTimeout bounds a single job; 0 disables it.
	JobTimeout time.Duration
	Logger     *log.Logger
}

// Pool pops jobs, advances their grids and stores the results.
type Pool struct {
	opts    Options
	queue   queue.Queue
	storage storage.Storage
	keys    *keyCache

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	running atomic.Bool

	successCount atomic.Int64
	failureCount atomic.Int64
	stepCount    atomic.Int64
}

// NewPool creates a stopped pool.
func NewPool(q queue.Queue, store storage.Storage, opts Options) *Pool {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Pool{opts: opts, queue: q, storage: store, keys: newKeyCache()}
}

// Start launches the job loops.
func (p *Pool) Start(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return errors.New("pool already running")
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.opts.Logger.Printf("Starting %d job loops", p.opts.Concurrency)

	for i := 0; i < p.opts.Concurrency; i++ {
		p.wg.Add(1)
		go p.loop(ctx, i)
	}
	return nil
}

// Stop cancels running jobs and waits up to timeout for the loops to exit.
func (p *Pool) Stop(timeout time.Duration) error {
	if !p.running.Load() {
		return nil
	}

	p.opts.Logger.Println("Stopping worker pool...")
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	defer p.running.Store(false)
	select {
	case <-done:
		p.opts.Logger.Println("Worker pool stopped")
		return nil
	case <-time.After(timeout):
		return ErrShutdownTimeout
	}
}

func (p *Pool) loop(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		job, err := p.queue.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return
			}
			p.opts.Logger.Printf("Loop %d: failed to pop job: %v", id, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		p.Process(ctx, job)
	}
}

// Process runs one job to a terminal state and records it in the queue.
func (p *Pool) Process(ctx context.Context, job *queue.Job) {
	p.opts.Logger.Printf("Job %s: %s, %d steps", job.ID, job.Scheme, job.Steps)
	start := time.Now()

	job.Status = queue.StatusProcessing
	if err := p.queue.Update(ctx, job); err != nil {
		p.opts.Logger.Printf("Job %s: failed to update status: %v", job.ID, err)
	}

	if p.opts.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.JobTimeout)
		defer cancel()
	}

	handle, err := p.run(ctx, job)
	if err != nil {
		job.Status = queue.StatusFailed
		job.Error = err.Error()
		p.failureCount.Add(1)
		p.opts.Logger.Printf("Job %s failed: %v", job.ID, err)
	} else {
		job.Status = queue.StatusCompleted
		job.ResultHandle = string(handle)
		p.successCount.Add(1)
		p.stepCount.Add(int64(job.Steps))
		p.opts.Logger.Printf("Job %s completed in %v", job.ID, time.Since(start))
	}

	// Record the outcome even if the job context was cancelled.
	if err := p.queue.Update(context.WithoutCancel(ctx), job); err != nil {
		p.opts.Logger.Printf("Job %s: failed to record result: %v", job.ID, err)
	}
}

func (p *Pool) run(ctx context.Context, job *queue.Job) (storage.Handle, error) {
	if job.Steps < 0 {
		return "", fmt.Errorf("%w: %d", life.ErrInvalidSteps, job.Steps)
	}

	scheme, err := life.LookupScheme(job.Scheme, job.Params)
	if err != nil {
		return "", err
	}

	key, err := p.evaluationKey(ctx, scheme, job)
	if err != nil {
		return "", err
	}

	gridHandle := storage.Handle(job.GridHandle)
	gridData, err := p.storage.Load(ctx, gridHandle)
	if err != nil {
		return "", fmt.Errorf("load grid: %w", err)
	}
	grid, err := life.UnmarshalEncryptedGrid(scheme, gridData)
	if err != nil {
		return "", fmt.Errorf("decode grid: %w", err)
	}

	srv := life.NewServer(key, grid,
		life.WithWorkers(p.opts.Workers),
		life.WithLogger(p.opts.Logger),
		life.WithStepBudget(p.opts.StepBudget),
	)
	result, err := srv.RunContext(ctx, job.Steps)
	if err != nil {
		return "", err
	}

	data, err := result.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	handle, err := p.storage.Store(ctx, data)
	if err != nil {
		return "", fmt.Errorf("store result: %w", err)
	}
	return handle, nil
}

func (p *Pool) evaluationKey(ctx context.Context, scheme life.Scheme, job *queue.Job) (life.EvaluationKey, error) {
	id := keyCacheID{scheme: scheme.Name(), params: job.Params, handle: job.KeyHandle}
	if key, ok := p.keys.get(id); ok {
		return key, nil
	}

	data, err := p.storage.Load(ctx, storage.Handle(job.KeyHandle))
	if err != nil {
		return nil, fmt.Errorf("load evaluation key: %w", err)
	}
	key, err := scheme.UnmarshalEvaluationKey(data)
	if err != nil {
		return nil, fmt.Errorf("decode evaluation key: %w", err)
	}
	p.keys.put(id, key)
	return key, nil
}

// Stats is a snapshot of the pool counters.
type Stats struct {
	Succeeded int64
	Failed    int64
	Steps     int64
	Keys      int
}

// Stats returns the current counters.
func (p *Pool) Stats() Stats {
	return Stats{
		Succeeded: p.successCount.Load(),
		Failed:    p.failureCount.Load(),
		Steps:     p.stepCount.Load(),
		Keys:      p.keys.len(),
	}
}

// Handler serves /health and /metrics in the Prometheus text format.
func (p *Pool) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if !p.running.Load() {
			http.Error(w, "stopped", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		s := p.Stats()
		fmt.Fprintf(w, "# HELP life_jobs_total Simulation jobs processed\n")
		fmt.Fprintf(w, "# TYPE life_jobs_total counter\n")
		fmt.Fprintf(w, "life_jobs_total{status=\"success\"} %d\n", s.Succeeded)
		fmt.Fprintf(w, "life_jobs_total{status=\"failure\"} %d\n", s.Failed)
		fmt.Fprintf(w, "# HELP life_steps_total Generations evaluated by successful jobs\n")
		fmt.Fprintf(w, "# TYPE life_steps_total counter\n")
		fmt.Fprintf(w, "life_steps_total %d\n", s.Steps)
		fmt.Fprintf(w, "# HELP life_cached_keys Evaluation keys held in memory\n")
		fmt.Fprintf(w, "# TYPE life_cached_keys gauge\n")
		fmt.Fprintf(w, "life_cached_keys %d\n", s.Keys)
	})
	return mux
}

type keyCacheID struct {
	scheme, params, handle string
}

// keyCache holds decoded evaluation keys. Keys are immutable and shared by
// all jobs that reference the same blob.
// TODO: evict by last use; every distinct client key currently stays resident.
type keyCache struct {
	mu   sync.Mutex
	keys map[keyCacheID]life.EvaluationKey
}

func newKeyCache() *keyCache {
	return &keyCache{keys: make(map[keyCacheID]life.EvaluationKey)}
}

func (c *keyCache) get(id keyCacheID) (life.EvaluationKey, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k, ok := c.keys[id]
	return k, ok
}

func (c *keyCache) put(id keyCacheID, key life.EvaluationKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[id] = key
}

func (c *keyCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}
