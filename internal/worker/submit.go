// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/luxfi/fhe-life/internal/queue"
	"github.com/luxfi/fhe-life/internal/storage"
	"github.com/luxfi/fhe-life/life"
)

// Submit stores the evaluation key and grid and enqueues a job advancing the
// grid by steps generations.
func Submit(ctx context.Context, q queue.Queue, store storage.Storage, scheme life.Scheme, params string,
	key life.EvaluationKey, grid *life.EncryptedGrid, steps int) (*queue.Job, error) {
	keyData, err := key.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode evaluation key: %w", err)
	}
	keyHandle, err := store.Store(ctx, keyData)
	if err != nil {
		return nil, fmt.Errorf("store evaluation key: %w", err)
	}

	gridData, err := grid.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode grid: %w", err)
	}
	gridHandle, err := store.Store(ctx, gridData)
	if err != nil {
		return nil, fmt.Errorf("store grid: %w", err)
	}

	job := &queue.Job{
		ID:         queue.NewJobID(),
		Scheme:     scheme.Name(),
		Params:     params,
		KeyHandle:  string(keyHandle),
		GridHandle: string(gridHandle),
		Steps:      steps,
	}
	if err := q.Push(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Await waits for the job to finish and loads its result grid.
func Await(ctx context.Context, q queue.Queue, store storage.Storage, scheme life.Scheme,
	id string, interval time.Duration) (*life.EncryptedGrid, error) {
	job, err := queue.Wait(ctx, q, id, interval)
	if err != nil {
		return nil, err
	}

	data, err := store.Load(ctx, storage.Handle(job.ResultHandle))
	if err != nil {
		return nil, fmt.Errorf("load result: %w", err)
	}
	return life.UnmarshalEncryptedGrid(scheme, data)
}
