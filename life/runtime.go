// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package life

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Runtime is a fixed pool of worker contexts, each holding its own evaluator
// activated from the same evaluation key.
type Runtime struct {
	key        EvaluationKey
	evaluators []Evaluator
	constants  []*constants
}

// NewRuntime activates key once per worker. workers <= 0 selects GOMAXPROCS.
func NewRuntime(key EvaluationKey, workers int) (*Runtime, error) {
	if key == nil {
		return nil, ErrEvaluationKeyMissing
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	rt := &Runtime{
		key:        key,
		evaluators: make([]Evaluator, workers),
		constants:  make([]*constants, workers),
	}
	for w := range rt.evaluators {
		ev, err := key.Activate()
		if err != nil {
			return nil, fmt.Errorf("activate worker %d: %w", w, err)
		}
		if ev == nil {
			return nil, fmt.Errorf("activate worker %d: %w", w, ErrEvaluationKeyMissing)
		}
		c, err := newConstants(ev)
		if err != nil {
			return nil, fmt.Errorf("worker %d: %w", w, err)
		}
		rt.evaluators[w] = ev
		rt.constants[w] = c
	}
	return rt, nil
}

// Workers returns the number of worker contexts.
func (rt *Runtime) Workers() int { return len(rt.evaluators) }

// Key returns the evaluation key the workers were activated with.
func (rt *Runtime) Key() EvaluationKey { return rt.key }

// Do calls fn for every index in [0, n), spreading the indices over the
// workers. Each call receives the evaluator owned by the calling worker. Do
// returns once every call has finished, or with the first error; remaining
// indices are skipped after a failure or cancellation.
func (rt *Runtime) Do(ctx context.Context, n int, fn func(ev Evaluator, i int) error) error {
	return rt.do(ctx, n, func(w, i int) error {
		return fn(rt.evaluators[w], i)
	})
}

func (rt *Runtime) do(ctx context.Context, n int, fn func(w, i int) error) error {
	g, ctx := errgroup.WithContext(ctx)

	var next atomic.Int64
	workers := min(len(rt.evaluators), n)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for {
				i := int(next.Add(1) - 1)
				if i >= n {
					return nil
				}
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := fn(w, i); err != nil {
					return err
				}
			}
		})
	}
	return g.Wait()
}

// Step computes one generation from snapshot g. The returned grid is
// assembled separately and is complete when Step returns.
func (rt *Runtime) Step(ctx context.Context, g *EncryptedGrid) (*EncryptedGrid, error) {
	next := newEncryptedGrid(g.rows, g.cols)
	err := rt.do(ctx, len(g.cells), func(w, i int) error {
		x, y := i/g.cols, i%g.cols
		ct, err := updateCell(rt.evaluators[w], rt.constants[w], g, x, y)
		if err != nil {
			return fmt.Errorf("cell (%d,%d): %w", x, y, err)
		}
		next.cells[i] = ct
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}
