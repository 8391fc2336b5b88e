// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package life

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustGrid(t testing.TB, rows [][]uint8) *Grid {
	t.Helper()
	g, err := GridFromRows(rows)
	require.NoError(t, err)
	return g
}

var (
	blinkerH = [][]uint8{{0, 0, 0}, {1, 1, 1}, {0, 0, 0}}
	blinkerV = [][]uint8{{0, 1, 0}, {0, 1, 0}, {0, 1, 0}}
)

func TestGridValidation(t *testing.T) {
	testCases := []struct {
		name string
		rows [][]uint8
		err  error
	}{
		{"empty", nil, ErrInvalidDimensions},
		{"empty row", [][]uint8{{}}, ErrInvalidDimensions},
		{"ragged", [][]uint8{{0, 1}, {1}}, ErrInvalidDimensions},
		{"bad cell", [][]uint8{{0, 2}}, ErrInvalidCell},
		{"ok", [][]uint8{{0, 1}, {1, 0}}, nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := GridFromRows(tc.rows)
			if tc.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.err)
		})
	}

	for _, dims := range [][2]int{{0, 3}, {3, 0}, {-1, 2}} {
		_, err := NewGrid(dims[0], dims[1])
		require.ErrorIs(t, err, ErrInvalidDimensions)
		_, err = RandomGrid(dims[0], dims[1])
		require.True(t, errors.Is(err, ErrInvalidDimensions))
	}
}

func TestGridFromRowsCopies(t *testing.T) {
	rows := [][]uint8{{1, 0}, {0, 1}}
	g := mustGrid(t, rows)
	rows[0][0] = 0

	require.Equal(t, uint8(1), g.At(0, 0))
	require.Equal(t, [][]uint8{{1, 0}, {0, 1}}, g.ToRows())
	require.Equal(t, 2, g.Alive())
	require.Equal(t, "#.\n.#\n", g.String())
}

func TestRandomGridCells(t *testing.T) {
	g, err := RandomGrid(16, 16)
	require.NoError(t, err)
	require.Equal(t, 16, g.Rows())
	require.Equal(t, 16, g.Cols())
	for _, row := range g.ToRows() {
		for _, v := range row {
			require.LessOrEqual(t, v, uint8(1))
		}
	}
}

func TestNeighbors(t *testing.T) {
	require.Len(t, neighbors(3, 3, 1, 1), 8)
	require.Len(t, neighbors(3, 3, 0, 0), 3)
	require.Len(t, neighbors(3, 3, 0, 1), 5)
	require.Len(t, neighbors(3, 3, 2, 2), 3)
	require.Empty(t, neighbors(1, 1, 0, 0))
	require.Len(t, neighbors(1, 3, 0, 1), 2)
}

func TestStepLoneCellDies(t *testing.T) {
	g := mustGrid(t, [][]uint8{{0, 0, 0}, {0, 1, 0}, {0, 0, 0}})
	require.Equal(t, 0, Step(g).Alive())
}

func TestStepBlinker(t *testing.T) {
	h := mustGrid(t, blinkerH)
	v := mustGrid(t, blinkerV)

	require.True(t, Step(h).Equal(v))
	require.True(t, StepN(h, 2).Equal(h))
	require.True(t, StepN(h, 7).Equal(v))
}

func TestStepAllDead(t *testing.T) {
	for _, dims := range [][2]int{{1, 1}, {3, 3}, {4, 7}} {
		g, err := NewGrid(dims[0], dims[1])
		require.NoError(t, err)
		for _, n := range []int{0, 1, 5} {
			require.Zero(t, StepN(g, n).Alive(), "%dx%d after %d steps", dims[0], dims[1], n)
		}
	}
}

func TestStepSingleCell(t *testing.T) {
	for _, v := range []uint8{0, 1} {
		g := mustGrid(t, [][]uint8{{v}})
		require.Zero(t, Step(g).Alive())
	}
}

func TestStepRules(t *testing.T) {
	// Block is a still life; a live cell with 4 neighbors dies.
	block := mustGrid(t, [][]uint8{{0, 0, 0, 0}, {0, 1, 1, 0}, {0, 1, 1, 0}, {0, 0, 0, 0}})
	require.True(t, Step(block).Equal(block))

	crowded := mustGrid(t, [][]uint8{{1, 1, 1}, {1, 1, 0}, {0, 0, 0}})
	require.Equal(t, uint8(0), Step(crowded).At(1, 1))
}

func TestStepDeterministic(t *testing.T) {
	g, err := RandomGrid(8, 8)
	require.NoError(t, err)
	require.True(t, StepN(g, 4).Equal(StepN(g, 4)))
	require.True(t, StepN(g, 0).Equal(g))
}
