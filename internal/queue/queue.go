// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package queue carries simulation jobs from clients to workers.
package queue

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Common errors.
var (
	ErrQueueEmpty  = errors.New("queue: empty")
	ErrJobNotFound = errors.New("queue: job not found")
	ErrJobFailed   = errors.New("queue: job failed")
	ErrClosed      = errors.New("queue: closed")
)

// JobStatus is the lifecycle state of a job.
type JobStatus uint8

const (
	StatusPending JobStatus = iota
	StatusProcessing
	StatusCompleted
	StatusFailed
)

func (s JobStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("JobStatus(%d)", uint8(s))
}

// Terminal reports whether the job will not change state again.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job asks a worker to advance an encrypted grid. Keys and grids travel by
// storage handle; the queue only carries references.
type Job struct {
	ID           string    `json:"id"`
	Scheme       string    `json:"scheme"`
	Params       string    `json:"params,omitempty"`
	KeyHandle    string    `json:"key_handle"`
	GridHandle   string    `json:"grid_handle"`
	Steps        int       `json:"steps"`
	ResultHandle string    `json:"result_handle,omitempty"`
	Status       JobStatus `json:"status"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewJobID returns a random 128-bit job identifier.
func NewJobID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("queue: read random job id: %v", err))
	}
	return hex.EncodeToString(b[:])
}

// Queue is a FIFO of jobs plus a job-state table.
type Queue interface {
	// Push stores the job as pending and enqueues it.
	Push(ctx context.Context, job *Job) error
	// Pop blocks until a job is available or ctx is done.
	Pop(ctx context.Context) (*Job, error)
	// Update stores the job's current state.
	Update(ctx context.Context, job *Job) error
	// Get returns the stored state of a job.
	Get(ctx context.Context, id string) (*Job, error)
	Close() error
}

// Wait polls id every interval until the job reaches a terminal state. A
// failed job is returned together with an error wrapping ErrJobFailed.
func Wait(ctx context.Context, q Queue, id string, interval time.Duration) (*Job, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		job, err := q.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		switch job.Status {
		case StatusCompleted:
			return job, nil
		case StatusFailed:
			return job, fmt.Errorf("%w: job %s: %s", ErrJobFailed, job.ID, job.Error)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// jobTTL bounds how long job state is kept in Redis.
const jobTTL = 24 * time.Hour

// RedisQueue implements Queue with a Redis list and one key per job.
type RedisQueue struct {
	client    redis.UniversalClient
	queueKey  string
	jobPrefix string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisQueue connects to Redis and checks the connection.
func NewRedisQueue(cfg RedisConfig, queueName string) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisQueueFromClient(client, queueName), nil
}

// NewRedisQueueFromClient wraps an existing client.
func NewRedisQueueFromClient(client redis.UniversalClient, queueName string) *RedisQueue {
	return &RedisQueue{
		client:    client,
		queueKey:  "life:queue:" + queueName,
		jobPrefix: "life:job:",
	}
}

func (q *RedisQueue) Push(ctx context.Context, job *Job) error {
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	job.Status = StatusPending

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, q.jobPrefix+job.ID, data, jobTTL)
	pipe.LPush(ctx, q.queueKey, job.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context) (*Job, error) {
	result, err := q.client.BRPop(ctx, 0, q.queueKey).Result()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if errors.Is(err, redis.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("pop job: %w", err)
	}
	if len(result) < 2 {
		return nil, ErrQueueEmpty
	}
	return q.Get(ctx, result[1])
}

func (q *RedisQueue) Update(ctx context.Context, job *Job) error {
	job.UpdatedAt = time.Now()

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.Set(ctx, q.jobPrefix+job.ID, data, jobTTL).Err(); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Get(ctx context.Context, id string) (*Job, error) {
	data, err := q.client.Get(ctx, q.jobPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal job: %w", err)
	}
	return &job, nil
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
