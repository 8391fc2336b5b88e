// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// queues returns the backends under test. Redis is exercised only when
// LIFE_TEST_REDIS names a server.
func queues(t *testing.T) map[string]Queue {
	t.Helper()
	qs := map[string]Queue{"memory": NewMemoryQueue(16)}

	if addr := os.Getenv("LIFE_TEST_REDIS"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		require.NoError(t, client.Ping(context.Background()).Err())
		qs["redis"] = NewRedisQueueFromClient(client, "test-"+NewJobID())
	}
	return qs
}

func newJob() *Job {
	return &Job{
		ID:         NewJobID(),
		Scheme:     "cleartext",
		KeyHandle:  "key",
		GridHandle: "grid",
		Steps:      3,
	}
}

func TestQueueLifecycle(t *testing.T) {
	ctx := context.Background()

	for name, q := range queues(t) {
		t.Run(name, func(t *testing.T) {
			defer q.Close()

			first, second := newJob(), newJob()
			require.NoError(t, q.Push(ctx, first))
			require.NoError(t, q.Push(ctx, second))
			require.Equal(t, StatusPending, first.Status)
			require.False(t, first.CreatedAt.IsZero())

			got, err := q.Pop(ctx)
			require.NoError(t, err)
			require.Equal(t, first.ID, got.ID)
			require.Equal(t, "grid", got.GridHandle)
			require.Equal(t, 3, got.Steps)

			got.Status = StatusCompleted
			got.ResultHandle = "result"
			require.NoError(t, q.Update(ctx, got))

			stored, err := q.Get(ctx, first.ID)
			require.NoError(t, err)
			require.Equal(t, StatusCompleted, stored.Status)
			require.Equal(t, "result", stored.ResultHandle)

			got, err = q.Pop(ctx)
			require.NoError(t, err)
			require.Equal(t, second.ID, got.ID)

			_, err = q.Get(ctx, "missing")
			require.ErrorIs(t, err, ErrJobNotFound)
		})
	}
}

func TestPopCancelled(t *testing.T) {
	for name, q := range queues(t) {
		t.Run(name, func(t *testing.T) {
			defer q.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()

			_, err := q.Pop(ctx)
			require.ErrorIs(t, err, context.DeadlineExceeded)
		})
	}
}

func TestMemoryQueueClose(t *testing.T) {
	q := NewMemoryQueue(1)

	done := make(chan error, 1)
	go func() {
		_, err := q.Pop(context.Background())
		done <- err
	}()

	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
	require.ErrorIs(t, <-done, ErrClosed)
}

func TestMemoryQueuePushFailed(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(1)
	queued := newJob()
	require.NoError(t, q.Push(ctx, queued))

	// The queue is full, so these pushes block until they fail.
	cancelled := newJob()
	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, q.Push(cctx, cancelled), context.DeadlineExceeded)
	_, err := q.Get(ctx, cancelled.ID)
	require.ErrorIs(t, err, ErrJobNotFound)

	require.NoError(t, q.Close())
	closed := newJob()
	require.ErrorIs(t, q.Push(ctx, closed), ErrClosed)
	_, err = q.Get(ctx, closed.ID)
	require.ErrorIs(t, err, ErrJobNotFound)

	stored, err := q.Get(ctx, queued.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, stored.Status)
}

func TestMemoryQueueIsolation(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(1)
	job := newJob()
	require.NoError(t, q.Push(ctx, job))

	job.Steps = 99
	stored, err := q.Get(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, 3, stored.Steps)

	require.ErrorIs(t, q.Update(ctx, newJob()), ErrJobNotFound)
}

func TestWait(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(4)

	job := newJob()
	require.NoError(t, q.Push(ctx, job))

	go func() {
		popped, err := q.Pop(ctx)
		if err != nil {
			return
		}
		popped.Status = StatusProcessing
		q.Update(ctx, popped)
		time.Sleep(20 * time.Millisecond)
		popped.Status = StatusCompleted
		popped.ResultHandle = "done"
		q.Update(ctx, popped)
	}()

	got, err := Wait(ctx, q, job.ID, 5*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)
	require.Equal(t, "done", got.ResultHandle)
}

func TestWaitFailed(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue(2)

	job := newJob()
	require.NoError(t, q.Push(ctx, job))
	job.Status = StatusFailed
	job.Error = "life: evaluation key is not active"
	require.NoError(t, q.Update(ctx, job))

	got, err := Wait(ctx, q, job.ID, time.Millisecond)
	require.ErrorIs(t, err, ErrJobFailed)
	require.Contains(t, err.Error(), "evaluation key")
	require.Equal(t, StatusFailed, got.Status)

	_, err = Wait(ctx, q, "missing", time.Millisecond)
	require.ErrorIs(t, err, ErrJobNotFound)

	timeout, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	pending := newJob()
	require.NoError(t, q.Push(ctx, pending))
	_, err = Wait(timeout, q, pending.ID, time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestJobStatus(t *testing.T) {
	require.Equal(t, "pending", StatusPending.String())
	require.Equal(t, "failed", StatusFailed.String())
	require.Equal(t, "JobStatus(9)", JobStatus(9).String())
	require.True(t, StatusCompleted.Terminal())
	require.False(t, StatusProcessing.Terminal())
	require.Len(t, NewJobID(), 32)
	require.NotEqual(t, NewJobID(), NewJobID())
}
