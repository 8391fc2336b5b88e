// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package tfhe

import (
	"fmt"

	"github.com/luxfi/lattice/v7/core/rlwe"
	"github.com/luxfi/lattice/v7/ring"
)

// Decryptor decrypts bits and small integers. It is not safe for concurrent use.
type Decryptor struct {
	params    Parameters
	decryptor *rlwe.Decryptor
	ringQ     *ring.Ring
	id        KeyID
}

// NewDecryptor creates a new decryptor from secret key
func NewDecryptor(params Parameters, sk *SecretKey) *Decryptor {
	return &Decryptor{
		params:    params,
		decryptor: rlwe.NewDecryptor(params.paramsLWE, sk.SK),
		ringQ:     params.paramsLWE.RingQ(),
		id:        sk.id,
	}
}

// Decrypt decrypts a single bit
func (dec *Decryptor) Decrypt(ct *Ciphertext) bool {
	pt := rlwe.NewPlaintext(dec.params.paramsLWE, ct.Level())
	dec.decryptor.Decrypt(ct.Ciphertext, pt)

	if pt.IsNTT {
		dec.ringQ.INTT(pt.Value, pt.Value)
	}

	// true was encoded as Q/8 and false as 7Q/8
	c := pt.Value.Coeffs[0][0]
	return c < dec.params.QLWE()>>1
}

// DecryptUint4 decrypts a 4-bit integer
func (dec *Decryptor) DecryptUint4(v *Uint4) (uint8, error) {
	if err := v.check(); err != nil {
		return 0, err
	}
	if v.id != dec.id {
		return 0, fmt.Errorf("%w: ciphertext %s, secret key %s", ErrKeyMismatch, v.id, dec.id)
	}

	var out uint8
	for i := 0; i < Uint4Bits; i++ {
		if dec.Decrypt(v.bits[i]) {
			out |= 1 << i
		}
	}
	return out, nil
}

// DecryptBool decrypts an encrypted boolean
func (dec *Decryptor) DecryptBool(b *Bool) (bool, error) {
	if b == nil || b.bit == nil {
		return false, fmt.Errorf("%w: nil boolean", ErrMalformed)
	}
	if b.id != dec.id {
		return false, fmt.Errorf("%w: ciphertext %s, secret key %s", ErrKeyMismatch, b.id, dec.id)
	}
	return dec.Decrypt(b.bit), nil
}
