// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package life

import "fmt"

// constants holds the trivially encrypted values the cell circuit compares
// and selects against. They are built once per evaluator.
type constants struct {
	zero, one, two, three Ciphertext
}

func newConstants(ev Evaluator) (*constants, error) {
	var (
		c   constants
		err error
	)
	for v, dst := range []*Ciphertext{&c.zero, &c.one, &c.two, &c.three} {
		if *dst, err = ev.Trivial(uint8(v)); err != nil {
			return nil, fmt.Errorf("trivial %d: %w", v, err)
		}
	}
	return &c, nil
}

// NeighborCount homomorphically sums the in-bounds neighbors of (x, y). A
// cell with no neighbors counts as a trivial 0.
func NeighborCount(ev Evaluator, g *EncryptedGrid, x, y int) (Ciphertext, error) {
	ns := neighbors(g.rows, g.cols, x, y)
	if len(ns) == 0 {
		return ev.Trivial(0)
	}

	count := g.At(ns[0][0], ns[0][1])
	for _, n := range ns[1:] {
		sum, err := ev.Add(count, g.At(n[0], n[1]))
		if err != nil {
			return nil, fmt.Errorf("neighbor (%d,%d): %w", n[0], n[1], err)
		}
		count = sum
	}
	return count, nil
}

// UpdateCell computes the next value of cell (x, y) from snapshot g:
//
//	alive        = g[x][y] == 1
//	eqThree      = count == 3 ? 1 : 0
//	eqTwoOrThree = (count == 2 || count == 3) ? 1 : 0
//	next         = alive ? eqTwoOrThree : eqThree
func UpdateCell(ev Evaluator, g *EncryptedGrid, x, y int) (Ciphertext, error) {
	c, err := newConstants(ev)
	if err != nil {
		return nil, err
	}
	return updateCell(ev, c, g, x, y)
}

func updateCell(ev Evaluator, c *constants, g *EncryptedGrid, x, y int) (Ciphertext, error) {
	count, err := NeighborCount(ev, g, x, y)
	if err != nil {
		return nil, err
	}

	alive, err := ev.Eq(g.At(x, y), c.one)
	if err != nil {
		return nil, err
	}

	isThree, err := ev.Eq(count, c.three)
	if err != nil {
		return nil, err
	}
	eqThree, err := ev.Select(isThree, c.one, c.zero)
	if err != nil {
		return nil, err
	}

	// count == 3 is evaluated a second time for the survival branch.
	isTwo, err := ev.Eq(count, c.two)
	if err != nil {
		return nil, err
	}
	isThreeAgain, err := ev.Eq(count, c.three)
	if err != nil {
		return nil, err
	}
	twoOrThree, err := ev.Or(isTwo, isThreeAgain)
	if err != nil {
		return nil, err
	}
	eqTwoOrThree, err := ev.Select(twoOrThree, c.one, c.zero)
	if err != nil {
		return nil, err
	}

	return ev.Select(alive, eqTwoOrThree, eqThree)
}
