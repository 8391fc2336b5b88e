// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package life

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// EncryptedGrid is a rows×cols board of ciphertexts in row-major order. A
// published generation is never modified; each step builds a new grid.
type EncryptedGrid struct {
	rows, cols int
	cells      []Ciphertext
}

func newEncryptedGrid(rows, cols int) *EncryptedGrid {
	return &EncryptedGrid{rows: rows, cols: cols, cells: make([]Ciphertext, rows*cols)}
}

// Rows returns the number of rows.
func (g *EncryptedGrid) Rows() int { return g.rows }

// Cols returns the number of columns.
func (g *EncryptedGrid) Cols() int { return g.cols }

// At returns the ciphertext at row x, column y.
func (g *EncryptedGrid) At(x, y int) Ciphertext { return g.cells[x*g.cols+y] }

// Len returns the number of cells.
func (g *EncryptedGrid) Len() int { return len(g.cells) }

// Clone returns a shallow copy sharing the (immutable) ciphertexts.
func (g *EncryptedGrid) Clone() *EncryptedGrid {
	return &EncryptedGrid{rows: g.rows, cols: g.cols, cells: append([]Ciphertext(nil), g.cells...)}
}

// MarshalBinary writes rows and cols as little-endian uint32 followed by one
// length-prefixed ciphertext per cell.
func (g *EncryptedGrid) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, [2]uint32{uint32(g.rows), uint32(g.cols)}); err != nil {
		return nil, err
	}

	for i, ct := range g.cells {
		data, err := ct.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("cell (%d,%d): %w", i/g.cols, i%g.cols, err)
		}
		if err := binary.Write(&buf, binary.LittleEndian, uint32(len(data))); err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

// UnmarshalEncryptedGrid decodes a grid written by MarshalBinary, restoring
// each cell with scheme.
func UnmarshalEncryptedGrid(scheme Scheme, data []byte) (*EncryptedGrid, error) {
	r := bytes.NewReader(data)

	var dims [2]uint32
	if err := binary.Read(r, binary.LittleEndian, &dims); err != nil {
		return nil, fmt.Errorf("%w: grid header: %v", ErrMalformed, err)
	}
	rows, cols := int(dims[0]), int(dims[1])
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, rows, cols)
	}
	// Every cell needs at least its length prefix.
	if uint64(rows)*uint64(cols) > uint64(r.Len())/4 {
		return nil, fmt.Errorf("%w: %dx%d grid in %d bytes", ErrMalformed, rows, cols, len(data))
	}

	g := newEncryptedGrid(rows, cols)
	for i := range g.cells {
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("%w: cell %d: %v", ErrMalformed, i, err)
		}
		if int64(n) > int64(r.Len()) {
			return nil, fmt.Errorf("%w: cell %d: length %d exceeds remaining %d bytes", ErrMalformed, i, n, r.Len())
		}
		blob := make([]byte, n)
		if _, err := io.ReadFull(r, blob); err != nil {
			return nil, fmt.Errorf("%w: cell %d: %v", ErrMalformed, i, err)
		}

		ct, err := scheme.UnmarshalCiphertext(blob)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
		g.cells[i] = ct
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, r.Len())
	}
	return g, nil
}
