// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Integer operations on 4-bit values built from the bootstrapped boolean
// gates. Arithmetic wraps modulo 16.

package tfhe

import (
	"fmt"
)

// Uint4Bits is the width of a Uint4 in bits.
const Uint4Bits = 4

// Uint4 is an encrypted 4-bit unsigned integer, LSB at index 0.
type Uint4 struct {
	bits [Uint4Bits]*Ciphertext
	id   KeyID
}

// KeyID returns the fingerprint of the key the value was produced under
func (v *Uint4) KeyID() KeyID {
	return v.id
}

func (v *Uint4) check() error {
	if v == nil {
		return fmt.Errorf("%w: nil integer", ErrMalformed)
	}
	for i, b := range v.bits {
		if b == nil || b.Ciphertext == nil {
			return fmt.Errorf("%w: bit %d missing", ErrMalformed, i)
		}
	}
	return nil
}

// Bool is an encrypted boolean produced by comparisons.
type Bool struct {
	bit *Ciphertext
	id  KeyID
}

// KeyID returns the fingerprint of the key the value was produced under
func (b *Bool) KeyID() KeyID {
	return b.id
}

// IntegerEvaluator performs Uint4 arithmetic with boolean circuits.
// Like Evaluator it must not be shared between goroutines.
type IntegerEvaluator struct {
	eval *Evaluator
}

// NewIntegerEvaluator creates an integer evaluator bound to a bootstrap key
func NewIntegerEvaluator(bsk *BootstrapKey) (*IntegerEvaluator, error) {
	eval, err := NewEvaluator(bsk)
	if err != nil {
		return nil, err
	}
	return &IntegerEvaluator{eval: eval}, nil
}

// KeyID returns the fingerprint of the bound key
func (ie *IntegerEvaluator) KeyID() KeyID {
	return ie.eval.KeyID()
}

func (ie *IntegerEvaluator) checkUint4(vs ...*Uint4) error {
	for _, v := range vs {
		if err := v.check(); err != nil {
			return err
		}
		if v.id != ie.eval.bsk.id {
			return fmt.Errorf("%w: ciphertext %s, evaluation key %s", ErrKeyMismatch, v.id, ie.eval.bsk.id)
		}
	}
	return nil
}

func (ie *IntegerEvaluator) checkBool(bs ...*Bool) error {
	for _, b := range bs {
		if b == nil || b.bit == nil {
			return fmt.Errorf("%w: nil boolean", ErrMalformed)
		}
		if b.id != ie.eval.bsk.id {
			return fmt.Errorf("%w: ciphertext %s, evaluation key %s", ErrKeyMismatch, b.id, ie.eval.bsk.id)
		}
	}
	return nil
}

// Trivial encodes a public constant as a Uint4 without secrecy
func (ie *IntegerEvaluator) Trivial(value uint8) (*Uint4, error) {
	if value >= 1<<Uint4Bits {
		return nil, fmt.Errorf("%w: %d does not fit in %d bits", ErrValueOutOfRange, value, Uint4Bits)
	}

	out := &Uint4{id: ie.eval.bsk.id}
	for i := 0; i < Uint4Bits; i++ {
		out.bits[i] = ie.eval.trivialBit((value>>i)&1 == 1)
	}
	return out, nil
}

// fullAdder computes sum and carry for a + b + cin
// sum = a XOR b XOR cin
// cout = (a AND b) OR (cin AND (a XOR b))
func (ie *IntegerEvaluator) fullAdder(a, b, cin *Ciphertext) (sum, cout *Ciphertext, err error) {
	axorb, err := ie.eval.XOR(a, b)
	if err != nil {
		return nil, nil, fmt.Errorf("xor(a,b): %w", err)
	}

	sum, err = ie.eval.XOR(axorb, cin)
	if err != nil {
		return nil, nil, fmt.Errorf("xor(axorb,cin): %w", err)
	}

	aandb, err := ie.eval.AND(a, b)
	if err != nil {
		return nil, nil, fmt.Errorf("and(a,b): %w", err)
	}

	cinAndAxorb, err := ie.eval.AND(cin, axorb)
	if err != nil {
		return nil, nil, fmt.Errorf("and(cin,axorb): %w", err)
	}

	cout, err = ie.eval.OR(aandb, cinAndAxorb)
	if err != nil {
		return nil, nil, fmt.Errorf("or: %w", err)
	}

	return sum, cout, nil
}

// Add performs ripple-carry addition modulo 16
func (ie *IntegerEvaluator) Add(a, b *Uint4) (*Uint4, error) {
	if err := ie.checkUint4(a, b); err != nil {
		return nil, err
	}

	out := &Uint4{id: a.id}

	// First bit: half adder
	sum, err := ie.eval.XOR(a.bits[0], b.bits[0])
	if err != nil {
		return nil, fmt.Errorf("bit 0: %w", err)
	}
	carry, err := ie.eval.AND(a.bits[0], b.bits[0])
	if err != nil {
		return nil, fmt.Errorf("bit 0 carry: %w", err)
	}
	out.bits[0] = sum

	for i := 1; i < Uint4Bits; i++ {
		if i == Uint4Bits-1 {
			// The final carry is discarded, only the sum bit is needed
			axorb, err := ie.eval.XOR(a.bits[i], b.bits[i])
			if err != nil {
				return nil, fmt.Errorf("bit %d: %w", i, err)
			}
			out.bits[i], err = ie.eval.XOR(axorb, carry)
			if err != nil {
				return nil, fmt.Errorf("bit %d: %w", i, err)
			}
			break
		}

		out.bits[i], carry, err = ie.fullAdder(a.bits[i], b.bits[i], carry)
		if err != nil {
			return nil, fmt.Errorf("bit %d: %w", i, err)
		}
	}

	return out, nil
}

// Eq returns an encrypted true iff a == b
func (ie *IntegerEvaluator) Eq(a, b *Uint4) (*Bool, error) {
	if err := ie.checkUint4(a, b); err != nil {
		return nil, err
	}

	// a == b iff every bit pair is equal: AND over XNOR(a[i], b[i])
	result, err := ie.eval.XNOR(a.bits[0], b.bits[0])
	if err != nil {
		return nil, err
	}

	for i := 1; i < Uint4Bits; i++ {
		bitEq, err := ie.eval.XNOR(a.bits[i], b.bits[i])
		if err != nil {
			return nil, err
		}
		result, err = ie.eval.AND(result, bitEq)
		if err != nil {
			return nil, err
		}
	}

	return &Bool{bit: result, id: a.id}, nil
}

// Or returns the logical OR of two encrypted booleans
func (ie *IntegerEvaluator) Or(a, b *Bool) (*Bool, error) {
	if err := ie.checkBool(a, b); err != nil {
		return nil, err
	}

	bit, err := ie.eval.OR(a.bit, b.bit)
	if err != nil {
		return nil, err
	}
	return &Bool{bit: bit, id: a.id}, nil
}

// Select returns a where cond is true and b otherwise, bit by bit
func (ie *IntegerEvaluator) Select(cond *Bool, a, b *Uint4) (*Uint4, error) {
	if err := ie.checkBool(cond); err != nil {
		return nil, err
	}
	if err := ie.checkUint4(a, b); err != nil {
		return nil, err
	}

	out := &Uint4{id: a.id}
	for i := 0; i < Uint4Bits; i++ {
		bit, err := ie.eval.MUX(cond.bit, a.bits[i], b.bits[i])
		if err != nil {
			return nil, fmt.Errorf("bit %d: %w", i, err)
		}
		out.bits[i] = bit
	}
	return out, nil
}
