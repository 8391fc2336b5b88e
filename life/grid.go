// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package life

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// Grid is an immutable rectangular plaintext board. Cells are stored row-major
// and hold 1 (alive) or 0 (dead).
type Grid struct {
	rows, cols int
	cells      []uint8
}

func newGrid(rows, cols int) *Grid {
	return &Grid{rows: rows, cols: cols, cells: make([]uint8, rows*cols)}
}

// NewGrid returns an all-dead grid.
func NewGrid(rows, cols int) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, rows, cols)
	}
	return newGrid(rows, cols), nil
}

// GridFromRows copies rows into a new grid. Rows must be non-empty, of equal
// length, and contain only 0 and 1.
func GridFromRows(rows [][]uint8) (*Grid, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: empty grid", ErrInvalidDimensions)
	}

	g := newGrid(len(rows), len(rows[0]))
	for x, row := range rows {
		if len(row) != g.cols {
			return nil, fmt.Errorf("%w: row %d has %d cells, want %d", ErrInvalidDimensions, x, len(row), g.cols)
		}
		for y, v := range row {
			if v > 1 {
				return nil, fmt.Errorf("%w: (%d,%d) = %d", ErrInvalidCell, x, y, v)
			}
			g.cells[x*g.cols+y] = v
		}
	}
	return g, nil
}

// RandomGrid draws every cell independently and uniformly from {0, 1}.
func RandomGrid(rows, cols int) (*Grid, error) {
	g, err := NewGrid(rows, cols)
	if err != nil {
		return nil, err
	}
	for i := range g.cells {
		g.cells[i] = uint8(rand.IntN(2))
	}
	return g, nil
}

// Rows returns the number of rows.
func (g *Grid) Rows() int { return g.rows }

// Cols returns the number of columns.
func (g *Grid) Cols() int { return g.cols }

// At returns the cell at row x, column y.
func (g *Grid) At(x, y int) uint8 { return g.cells[x*g.cols+y] }

// ToRows returns a copy of the grid as a slice of rows.
func (g *Grid) ToRows() [][]uint8 {
	out := make([][]uint8, g.rows)
	for x := range out {
		out[x] = append([]uint8(nil), g.cells[x*g.cols:(x+1)*g.cols]...)
	}
	return out
}

// Alive returns the number of live cells.
func (g *Grid) Alive() int {
	n := 0
	for _, c := range g.cells {
		n += int(c)
	}
	return n
}

// Equal reports whether both grids have the same shape and cells.
func (g *Grid) Equal(o *Grid) bool {
	if g.rows != o.rows || g.cols != o.cols {
		return false
	}
	for i := range g.cells {
		if g.cells[i] != o.cells[i] {
			return false
		}
	}
	return true
}

func (g *Grid) String() string {
	var sb strings.Builder
	for x := 0; x < g.rows; x++ {
		for y := 0; y < g.cols; y++ {
			if g.At(x, y) == 1 {
				sb.WriteByte('#')
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// neighborOffsets lists the 8 grid-adjacent offsets.
var neighborOffsets = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// neighbors returns the in-bounds neighbor coordinates of (x, y). The board
// does not wrap around, so edge and corner cells have fewer than 8.
func neighbors(rows, cols, x, y int) [][2]int {
	out := make([][2]int, 0, len(neighborOffsets))
	for _, d := range neighborOffsets {
		nx, ny := x+d[0], y+d[1]
		if nx >= 0 && nx < rows && ny >= 0 && ny < cols {
			out = append(out, [2]int{nx, ny})
		}
	}
	return out
}

// Step computes the next generation with the classical rule: a live cell
// with 2 or 3 live neighbors survives, a dead cell with exactly 3 is born.
func Step(g *Grid) *Grid {
	next := newGrid(g.rows, g.cols)
	for x := 0; x < g.rows; x++ {
		for y := 0; y < g.cols; y++ {
			live := 0
			for _, n := range neighbors(g.rows, g.cols, x, y) {
				live += int(g.At(n[0], n[1]))
			}

			alive := g.At(x, y) == 1
			if (alive && (live == 2 || live == 3)) || (!alive && live == 3) {
				next.cells[x*g.cols+y] = 1
			}
		}
	}
	return next
}

// StepN applies Step n times, each time reading the preceding generation.
func StepN(g *Grid, n int) *Grid {
	cur := g
	for i := 0; i < n; i++ {
		cur = Step(cur)
	}
	return cur
}
