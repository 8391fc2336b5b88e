// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package life

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Client owns the plaintext ground truth and the secret key. It is the only
// party able to decrypt, and therefore the only verifier.
type Client struct {
	scheme Scheme
	sk     SecretKey
	grid   *Grid
	opts   options
}

// NewClient generates a fresh key and a uniformly random rows×cols grid.
func NewClient(scheme Scheme, rows, cols int, opts ...Option) (*Client, error) {
	grid, err := RandomGrid(rows, cols)
	if err != nil {
		return nil, err
	}
	return NewClientWithGrid(scheme, grid, opts...)
}

// NewClientWithGrid generates a fresh key for a caller-chosen initial grid.
func NewClientWithGrid(scheme Scheme, grid *Grid, opts ...Option) (*Client, error) {
	if grid == nil {
		return nil, fmt.Errorf("%w: nil grid", ErrInvalidDimensions)
	}
	sk, err := scheme.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate %s key: %w", scheme.Name(), err)
	}
	return &Client{scheme: scheme, sk: sk, grid: grid, opts: newOptions(opts)}, nil
}

// Grid returns the initial plaintext grid.
func (c *Client) Grid() *Grid { return c.grid }

// Scheme returns the scheme the client's key belongs to.
func (c *Client) Scheme() Scheme { return c.scheme }

func (c *Client) workers() int {
	if c.opts.workers > 0 {
		return c.opts.workers
	}
	return runtime.GOMAXPROCS(0)
}

// Encrypt encrypts every cell of the initial grid independently and returns
// the evaluation key alongside the encrypted grid.
func (c *Client) Encrypt() (EvaluationKey, *EncryptedGrid, error) {
	eg := newEncryptedGrid(c.grid.rows, c.grid.cols)

	var g errgroup.Group
	g.SetLimit(c.workers())
	for i, v := range c.grid.cells {
		g.Go(func() error {
			ct, err := c.sk.Encrypt(v)
			if err != nil {
				return fmt.Errorf("encrypt cell (%d,%d): %w", i/c.grid.cols, i%c.grid.cols, err)
			}
			eg.cells[i] = ct
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return c.sk.EvaluationKey(), eg, nil
}

// decrypt opens every cell. Values are returned raw, so a noisy ciphertext
// shows up as a wrong value rather than an error.
func (c *Client) decrypt(eg *EncryptedGrid) ([]uint8, error) {
	out := make([]uint8, len(eg.cells))

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(c.workers())
	for i, ct := range eg.cells {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			v, err := c.sk.Decrypt(ct)
			if err != nil {
				return fmt.Errorf("decrypt cell (%d,%d): %w", i/eg.cols, i%eg.cols, err)
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Mismatch is a cell whose decrypted value differs from the reference.
type Mismatch struct {
	X, Y     int
	Expected uint8
	Got      uint8
}

// Report is the cell-by-cell outcome of a verification.
type Report struct {
	Steps      int
	Expected   *Grid
	Actual     [][]uint8
	Mismatches []Mismatch
}

// OK reports whether every cell matched.
func (r *Report) OK() bool { return len(r.Mismatches) == 0 }

// Compare decrypts eg and checks it against the reference simulator run
// steps times from the initial grid. Infrastructure faults are returned as
// errors, never as mismatches.
func (c *Client) Compare(eg *EncryptedGrid, steps int) (*Report, error) {
	if steps < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSteps, steps)
	}
	if eg == nil || eg.rows != c.grid.rows || eg.cols != c.grid.cols {
		return nil, fmt.Errorf("%w: encrypted grid does not match %dx%d", ErrDimensionMismatch, c.grid.rows, c.grid.cols)
	}

	got, err := c.decrypt(eg)
	if err != nil {
		return nil, err
	}
	expected := StepN(c.grid, steps)

	report := &Report{Steps: steps, Expected: expected, Actual: make([][]uint8, eg.rows)}
	for x := 0; x < eg.rows; x++ {
		report.Actual[x] = got[x*eg.cols : (x+1)*eg.cols]
		for y := 0; y < eg.cols; y++ {
			if want, have := expected.At(x, y), got[x*eg.cols+y]; want != have {
				report.Mismatches = append(report.Mismatches, Mismatch{X: x, Y: y, Expected: want, Got: have})
			}
		}
	}
	return report, nil
}

// Verify reports whether eg decrypts to the initial grid advanced steps
// times. Each mismatching cell is logged.
func (c *Client) Verify(eg *EncryptedGrid, steps int) (bool, error) {
	report, err := c.Compare(eg, steps)
	if err != nil {
		return false, err
	}
	for _, m := range report.Mismatches {
		c.opts.logger.Printf("Cell (%d, %d): expected %d, got %d", m.X, m.Y, m.Expected, m.Got)
	}
	return report.OK(), nil
}
