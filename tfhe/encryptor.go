// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package tfhe

import (
	"fmt"

	"github.com/luxfi/lattice/v7/core/rlwe"
)

// Encryptor encrypts bits and small integers under a secret key.
// It is not safe for concurrent use.
type Encryptor struct {
	params    Parameters
	encryptor *rlwe.Encryptor
	id        KeyID
}

// NewEncryptor creates a new encryptor from secret key
func NewEncryptor(params Parameters, sk *SecretKey) *Encryptor {
	return &Encryptor{
		params:    params,
		encryptor: rlwe.NewEncryptor(params.paramsLWE, sk.SK),
		id:        sk.id,
	}
}

// encodeBit writes the Q/8 encoding of a bit into the constant term of pt.
// Sums of two encoded bits stay in distinguishable ranges:
// (0,0) -> -Q/4, (0,1) -> 0, (1,1) -> +Q/4.
func encodeBit(params Parameters, pt *rlwe.Plaintext, value bool) {
	q := params.QLWE()
	if value {
		pt.Value.Coeffs[0][0] = q / 8
	} else {
		pt.Value.Coeffs[0][0] = q - (q / 8) // -Q/8 mod Q
	}
	params.paramsLWE.RingQ().NTT(pt.Value, pt.Value)
}

// Encrypt encrypts a single bit
func (enc *Encryptor) Encrypt(value bool) (*Ciphertext, error) {
	pt := rlwe.NewPlaintext(enc.params.paramsLWE, enc.params.paramsLWE.MaxLevel())
	encodeBit(enc.params, pt, value)

	ct := rlwe.NewCiphertext(enc.params.paramsLWE, 1, enc.params.paramsLWE.MaxLevel())
	if err := enc.encryptor.Encrypt(pt, ct); err != nil {
		return nil, fmt.Errorf("encrypt bit: %w", err)
	}

	return &Ciphertext{ct}, nil
}

// EncryptUint4 encrypts a value in [0, 16) as four bits, LSB first
func (enc *Encryptor) EncryptUint4(value uint8) (*Uint4, error) {
	if value >= 1<<Uint4Bits {
		return nil, fmt.Errorf("%w: %d does not fit in %d bits", ErrValueOutOfRange, value, Uint4Bits)
	}

	out := &Uint4{id: enc.id}
	for i := 0; i < Uint4Bits; i++ {
		ct, err := enc.Encrypt((value>>i)&1 == 1)
		if err != nil {
			return nil, fmt.Errorf("bit %d: %w", i, err)
		}
		out.bits[i] = ct
	}

	return out, nil
}
