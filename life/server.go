// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package life

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"
)

type options struct {
	workers    int
	logger     *log.Logger
	stepBudget int
}

func newOptions(opts []Option) options {
	o := options{logger: log.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures a Client or a Server.
type Option func(*options)

// WithWorkers sets the number of parallel workers. n <= 0 selects GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithLogger sets the progress logger. A nil logger discards output.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		if l == nil {
			l = log.New(io.Discard, "", 0)
		}
		o.logger = l
	}
}

// WithStepBudget sets the number of steps the scheme is trusted to evaluate
// correctly. Longer runs still execute but are logged as exceeding it; 0
// means unbounded.
func WithStepBudget(n int) Option {
	return func(o *options) { o.stepBudget = n }
}

// Server advances an encrypted grid without ever decrypting it.
type Server struct {
	key  EvaluationKey
	grid *EncryptedGrid
	opts options
}

// NewServer stores the evaluation key and the initial grid. No homomorphic
// operation is performed until Run.
func NewServer(key EvaluationKey, grid *EncryptedGrid, opts ...Option) *Server {
	return &Server{key: key, grid: grid, opts: newOptions(opts)}
}

// Run applies steps generations and returns the final grid.
func (s *Server) Run(steps int) (*EncryptedGrid, error) {
	return s.RunContext(context.Background(), steps)
}

// RunContext is Run with cancellation checked before every step. Any fault
// fails the whole run; no partial grid is returned.
func (s *Server) RunContext(ctx context.Context, steps int) (*EncryptedGrid, error) {
	if steps < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSteps, steps)
	}
	if s.grid == nil || s.grid.Len() == 0 {
		return nil, fmt.Errorf("%w: empty encrypted grid", ErrInvalidDimensions)
	}
	if s.opts.stepBudget > 0 && steps > s.opts.stepBudget {
		s.opts.logger.Printf("Warning: %d steps exceed the budget of %d; verify the result", steps, s.opts.stepBudget)
	}

	rt, err := NewRuntime(s.key, s.opts.workers)
	if err != nil {
		return nil, err
	}

	current := s.grid.Clone()
	for step := 0; step < steps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("step %d/%d: %w", step+1, steps, err)
		}

		s.opts.logger.Printf("Running step %d/%d", step+1, steps)
		start := time.Now()

		next, err := rt.Step(ctx, current)
		if err != nil {
			return nil, fmt.Errorf("step %d/%d: %w", step+1, steps, err)
		}
		current = next

		s.opts.logger.Printf("Step %d/%d done in %v", step+1, steps, time.Since(start))
	}
	return current, nil
}
