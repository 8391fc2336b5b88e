// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package tfhe

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"slices"

	"github.com/luxfi/lattice/v7/core/rgsw"
	"github.com/luxfi/lattice/v7/core/rlwe"
)

// blindRotationKeys is the deserialized form of a blind rotation key set.
type blindRotationKeys struct {
	brk []*rgsw.Ciphertext
	evk *rlwe.MemEvaluationKeySet
}

func (k *blindRotationKeys) GetBlindRotationKey(i int) (*rgsw.Ciphertext, error) {
	if i < 0 || i >= len(k.brk) {
		return nil, fmt.Errorf("blind rotation key %d out of range [0, %d)", i, len(k.brk))
	}
	return k.brk[i], nil
}

func (k *blindRotationKeys) GetEvaluationKeySet() (rlwe.EvaluationKeySet, error) {
	return k.evk, nil
}

// ========== Framing helpers ==========

func writeBlob(w io.Writer, data []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readBlob(r *bytes.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("%w: blob length: %v", ErrMalformed, err)
	}
	if int64(n) > int64(r.Len()) {
		return nil, fmt.Errorf("%w: length %d exceeds remaining %d bytes", ErrMalformed, n, r.Len())
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return data, nil
}

// ========== Ciphertext Serialization ==========

// MarshalBinary serializes a ciphertext to binary format
func (ct *Ciphertext) MarshalBinary() ([]byte, error) {
	return ct.Ciphertext.MarshalBinary()
}

// UnmarshalBinary deserializes a ciphertext from binary format
func (ct *Ciphertext) UnmarshalBinary(data []byte) error {
	ct.Ciphertext = new(rlwe.Ciphertext)
	return ct.Ciphertext.UnmarshalBinary(data)
}

// MarshalBinary serializes a Uint4: key fingerprint followed by four
// length-prefixed bit ciphertexts.
func (v *Uint4) MarshalBinary() ([]byte, error) {
	if err := v.check(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(v.id[:])

	for i, bit := range v.bits {
		data, err := bit.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("bit %d: %w", i, err)
		}
		if err := writeBlob(&buf, data); err != nil {
			return nil, fmt.Errorf("bit %d: %w", i, err)
		}
	}

	return buf.Bytes(), nil
}

// UnmarshalBinary deserializes a Uint4
func (v *Uint4) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)

	if _, err := io.ReadFull(r, v.id[:]); err != nil {
		return fmt.Errorf("%w: key id: %v", ErrMalformed, err)
	}

	for i := range v.bits {
		bitData, err := readBlob(r)
		if err != nil {
			return fmt.Errorf("bit %d: %w", i, err)
		}
		v.bits[i] = new(Ciphertext)
		if err := v.bits[i].UnmarshalBinary(bitData); err != nil {
			return fmt.Errorf("%w: bit %d: %v", ErrMalformed, i, err)
		}
	}

	if r.Len() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrMalformed, r.Len())
	}
	return nil
}

// ========== Bootstrap Key Serialization ==========

// MarshalBinary serializes the bootstrap key. Test polynomials are not
// written; they are rebuilt from the parameters on load.
func (bsk *BootstrapKey) MarshalBinary() ([]byte, error) {
	if bsk.BRK == nil {
		return nil, ErrMissingKey
	}

	var buf bytes.Buffer

	lit := bsk.params.lit
	header := []uint64{
		uint64(lit.LogNLWE), uint64(lit.LogNBR),
		lit.QLWE, lit.QBR,
		uint64(lit.BaseTwoDecomposition),
	}
	if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("write parameters: %w", err)
	}
	buf.Write(bsk.id[:])

	// One RGSW ciphertext per LWE secret coefficient
	n := bsk.params.N()
	if err := binary.Write(&buf, binary.LittleEndian, uint32(n)); err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		brk, err := bsk.BRK.GetBlindRotationKey(i)
		if err != nil {
			return nil, fmt.Errorf("blind rotation key %d: %w", i, err)
		}
		data, err := brk.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("serialize BRK %d: %w", i, err)
		}
		if err := writeBlob(&buf, data); err != nil {
			return nil, err
		}
	}

	evk, err := bsk.BRK.GetEvaluationKeySet()
	if err != nil {
		return nil, fmt.Errorf("automorphism keys: %w", err)
	}
	galEls := evk.GetGaloisKeysList()
	slices.Sort(galEls)

	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(galEls))); err != nil {
		return nil, err
	}
	for _, galEl := range galEls {
		gk, err := evk.GetGaloisKey(galEl)
		if err != nil {
			return nil, fmt.Errorf("galois key %d: %w", galEl, err)
		}
		data, err := gk.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("serialize galois key %d: %w", galEl, err)
		}
		if err := writeBlob(&buf, data); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// UnmarshalBootstrapKey deserializes a bootstrap key and rebuilds its test polynomials
func UnmarshalBootstrapKey(data []byte) (*BootstrapKey, error) {
	r := bytes.NewReader(data)

	header := make([]uint64, 5)
	if err := binary.Read(r, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("%w: parameters: %v", ErrMalformed, err)
	}
	lit := ParametersLiteral{
		LogNLWE:              int(header[0]),
		LogNBR:               int(header[1]),
		QLWE:                 header[2],
		QBR:                  header[3],
		BaseTwoDecomposition: int(header[4]),
	}
	params, err := NewParametersFromLiteral(lit)
	if err != nil {
		return nil, fmt.Errorf("parameters: %w", err)
	}

	var id KeyID
	if _, err := io.ReadFull(r, id[:]); err != nil {
		return nil, fmt.Errorf("%w: key id: %v", ErrMalformed, err)
	}

	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("%w: blind rotation key count: %v", ErrMalformed, err)
	}
	if int(n) != params.N() {
		return nil, fmt.Errorf("%w: blind rotation key count %d, expected %d", ErrMalformed, n, params.N())
	}

	keys := &blindRotationKeys{brk: make([]*rgsw.Ciphertext, n)}
	for i := range keys.brk {
		blob, err := readBlob(r)
		if err != nil {
			return nil, fmt.Errorf("read BRK %d: %w", i, err)
		}
		keys.brk[i] = new(rgsw.Ciphertext)
		if err := keys.brk[i].UnmarshalBinary(blob); err != nil {
			return nil, fmt.Errorf("deserialize BRK %d: %w", i, err)
		}
	}

	var numGal uint32
	if err := binary.Read(r, binary.LittleEndian, &numGal); err != nil {
		return nil, fmt.Errorf("%w: galois key count: %v", ErrMalformed, err)
	}
	// Every key needs at least its length prefix.
	if uint64(numGal) > uint64(r.Len())/4 {
		return nil, fmt.Errorf("%w: %d galois keys in %d bytes", ErrMalformed, numGal, r.Len())
	}
	galKeys := make([]*rlwe.GaloisKey, numGal)
	for i := range galKeys {
		blob, err := readBlob(r)
		if err != nil {
			return nil, fmt.Errorf("read galois key %d: %w", i, err)
		}
		galKeys[i] = new(rlwe.GaloisKey)
		if err := galKeys[i].UnmarshalBinary(blob); err != nil {
			return nil, fmt.Errorf("deserialize galois key %d: %w", i, err)
		}
	}
	keys.evk = rlwe.NewMemEvaluationKeySet(nil, galKeys...)

	bsk := newTestPolynomials(params, params.paramsBR.RingQ())
	bsk.BRK = keys
	bsk.id = id
	return bsk, nil
}
