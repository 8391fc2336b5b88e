// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package tfhe

import (
	"fmt"

	"github.com/luxfi/lattice/v7/core/rgsw/blindrot"
	"github.com/luxfi/lattice/v7/core/rlwe"
	"github.com/luxfi/lattice/v7/ring"
)

// Evaluator evaluates boolean gates on encrypted bits.
// It does not require the secret key. It owns scratch buffers and must not
// be shared between goroutines; create one per worker.
type Evaluator struct {
	params   Parameters
	eval     *blindrot.Evaluator
	bsk      *BootstrapKey
	ringQLWE *ring.Ring
}

// NewEvaluator creates a new evaluator bound to a bootstrap key
func NewEvaluator(bsk *BootstrapKey) (*Evaluator, error) {
	if bsk == nil || bsk.BRK == nil {
		return nil, ErrMissingKey
	}

	params := bsk.params
	return &Evaluator{
		params:   params,
		eval:     blindrot.NewEvaluator(params.paramsBR, params.paramsLWE),
		bsk:      bsk,
		ringQLWE: params.paramsLWE.RingQ(),
	}, nil
}

// KeyID returns the fingerprint of the bound key
func (eval *Evaluator) KeyID() KeyID {
	return eval.bsk.id
}

// bootstrap performs programmable bootstrapping with the given test polynomial
// and returns a fresh LWE ciphertext with the result.
// LWE and blind rotation share one ring, so the slot 0 output of the blind
// rotation is already a valid LWE ciphertext under the same key.
func (eval *Evaluator) bootstrap(ct *Ciphertext, testPoly *ring.Poly) (*Ciphertext, error) {
	results, err := eval.eval.Evaluate(ct.Ciphertext, map[int]*ring.Poly{0: testPoly}, eval.bsk.BRK)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	ctBR, ok := results[0]
	if !ok {
		return nil, fmt.Errorf("bootstrap: no result for slot 0")
	}

	return &Ciphertext{ctBR.CopyNew()}, nil
}

// addCiphertexts adds two ciphertexts element-wise
func (eval *Evaluator) addCiphertexts(ct1, ct2 *Ciphertext) *Ciphertext {
	result := rlwe.NewCiphertext(eval.params.paramsLWE, 1, ct1.Level())

	eval.ringQLWE.Add(ct1.Value[0], ct2.Value[0], result.Value[0])
	eval.ringQLWE.Add(ct1.Value[1], ct2.Value[1], result.Value[1])

	result.IsNTT = ct1.IsNTT

	return &Ciphertext{result}
}

// doubleCiphertext multiplies a ciphertext by 2.
// 2*(ct1+ct2) makes (T,T) wrap around onto (F,F), which is what XOR needs.
func (eval *Evaluator) doubleCiphertext(ct *Ciphertext) *Ciphertext {
	return eval.addCiphertexts(ct, ct)
}

// trivialBit encodes a public constant bit as a noiseless ciphertext (a = 0, b = m)
func (eval *Evaluator) trivialBit(value bool) *Ciphertext {
	pt := rlwe.NewPlaintext(eval.params.paramsLWE, eval.params.paramsLWE.MaxLevel())
	encodeBit(eval.params, pt, value)

	ct := rlwe.NewCiphertext(eval.params.paramsLWE, 1, eval.params.paramsLWE.MaxLevel())
	ct.Value[0] = *pt.Value.CopyNew()
	ct.IsNTT = true

	return &Ciphertext{ct}
}

// NOT computes the logical NOT of the input. Negation needs no bootstrap.
func (eval *Evaluator) NOT(ct *Ciphertext) *Ciphertext {
	result := rlwe.NewCiphertext(eval.params.paramsLWE, 1, ct.Level())

	eval.ringQLWE.Neg(ct.Value[0], result.Value[0])
	eval.ringQLWE.Neg(ct.Value[1], result.Value[1])

	result.IsNTT = ct.IsNTT

	return &Ciphertext{result}
}

// AND computes the logical AND of two inputs
func (eval *Evaluator) AND(ct1, ct2 *Ciphertext) (*Ciphertext, error) {
	return eval.bootstrap(eval.addCiphertexts(ct1, ct2), eval.bsk.TestPolyAND)
}

// OR computes the logical OR of two inputs
func (eval *Evaluator) OR(ct1, ct2 *Ciphertext) (*Ciphertext, error) {
	return eval.bootstrap(eval.addCiphertexts(ct1, ct2), eval.bsk.TestPolyOR)
}

// XOR computes the logical XOR of two inputs with a single bootstrap
func (eval *Evaluator) XOR(ct1, ct2 *Ciphertext) (*Ciphertext, error) {
	doubled := eval.doubleCiphertext(eval.addCiphertexts(ct1, ct2))
	return eval.bootstrap(doubled, eval.bsk.TestPolyXOR)
}

// XNOR computes the logical XNOR of two inputs with a single bootstrap
func (eval *Evaluator) XNOR(ct1, ct2 *Ciphertext) (*Ciphertext, error) {
	doubled := eval.doubleCiphertext(eval.addCiphertexts(ct1, ct2))
	return eval.bootstrap(doubled, eval.bsk.TestPolyXNOR)
}

// MUX computes: if sel then a else b
// MUX(sel, a, b) = (sel AND a) OR (NOT(sel) AND b)
func (eval *Evaluator) MUX(sel, ctTrue, ctFalse *Ciphertext) (*Ciphertext, error) {
	selAndTrue, err := eval.AND(sel, ctTrue)
	if err != nil {
		return nil, err
	}

	notSelAndFalse, err := eval.AND(eval.NOT(sel), ctFalse)
	if err != nil {
		return nil, err
	}

	return eval.OR(selAndTrue, notSelAndFalse)
}
