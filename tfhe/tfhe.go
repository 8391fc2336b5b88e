// Package tfhe implements a gate-bootstrapped TFHE scheme for small encrypted
// unsigned integers.
//
// Every boolean gate is followed by a programmable bootstrap, so ciphertext
// noise is reset after each gate and circuit depth is not bounded by the
// parameters. Integers are vectors of encrypted bits, LSB first.
//
// This implementation is built on luxfi/lattice primitives:
//   - LWE encryption for bits
//   - RGSW for bootstrap keys
//   - Blind rotations for programmable bootstrapping
//
// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause
package tfhe

import (
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/luxfi/lattice/v7/core/rgsw/blindrot"
	"github.com/luxfi/lattice/v7/core/rlwe"
	"github.com/luxfi/lattice/v7/ring"
	"github.com/luxfi/lattice/v7/utils"
	"golang.org/x/crypto/sha3"
)

// Common errors.
var (
	ErrKeyMismatch      = errors.New("tfhe: ciphertext key does not match")
	ErrMissingKey       = errors.New("tfhe: bootstrap key is nil")
	ErrMalformed        = errors.New("tfhe: malformed ciphertext")
	ErrValueOutOfRange  = errors.New("tfhe: value out of range")
	ErrUnsupportedParam = errors.New("tfhe: unsupported parameter set")
)

// Parameters defines the TFHE parameter set
type Parameters struct {
	lit ParametersLiteral
	// paramsLWE defines parameters for LWE samples (encrypted bits)
	paramsLWE rlwe.Parameters
	// paramsBR defines parameters for blind rotation (bootstrapping)
	paramsBR rlwe.Parameters
	// evkParams defines evaluation key decomposition
	evkParams rlwe.EvaluationKeyParameters
}

// ParametersLiteral is a user-friendly parameter specification
type ParametersLiteral struct {
	// LogNLWE is log2 of the LWE dimension
	LogNLWE int
	// LogNBR is log2 of the blind rotation dimension
	LogNBR int
	// QLWE is the LWE modulus
	QLWE uint64
	// QBR is the blind rotation modulus
	QBR uint64
	// BaseTwoDecomposition for the blind rotation keys (typically 7-10)
	BaseTwoDecomposition int
}

// Standard parameter sets. Both use the same dimension and modulus for LWE
// and blind rotation, so the bootstrapped ciphertext is directly a valid
// LWE input and no key switching is needed.
var (
	// PN10QP27 provides ~128-bit security with good performance.
	// N=1024, Q=134215681
	PN10QP27 = ParametersLiteral{
		LogNLWE:              10,
		LogNBR:               10,
		QLWE:                 0x7fff801,
		QBR:                  0x7fff801,
		BaseTwoDecomposition: 7,
	}

	// PN11QP54 provides ~128-bit security with higher precision.
	// N=2048, Q=~2^54
	PN11QP54 = ParametersLiteral{
		LogNLWE:              11,
		LogNBR:               11,
		QLWE:                 0x3FFFFFFFFFC0001,
		QBR:                  0x3FFFFFFFFFC0001,
		BaseTwoDecomposition: 10,
	}
)

// ParametersByName resolves a named parameter set.
func ParametersByName(name string) (ParametersLiteral, error) {
	switch name {
	case "", "PN10QP27":
		return PN10QP27, nil
	case "PN11QP54":
		return PN11QP54, nil
	}
	return ParametersLiteral{}, fmt.Errorf("%w: %q", ErrUnsupportedParam, name)
}

// NewParametersFromLiteral creates Parameters from a literal specification
func NewParametersFromLiteral(lit ParametersLiteral) (params Parameters, err error) {
	if lit.LogNLWE != lit.LogNBR || lit.QLWE != lit.QBR {
		return params, fmt.Errorf("%w: LWE and blind rotation rings must match", ErrUnsupportedParam)
	}

	params.lit = lit

	params.paramsLWE, err = rlwe.NewParametersFromLiteral(rlwe.ParametersLiteral{
		LogN:    lit.LogNLWE,
		Q:       []uint64{lit.QLWE},
		NTTFlag: true,
	})
	if err != nil {
		return
	}

	params.paramsBR, err = rlwe.NewParametersFromLiteral(rlwe.ParametersLiteral{
		LogN:    lit.LogNBR,
		Q:       []uint64{lit.QBR},
		NTTFlag: true,
	})
	if err != nil {
		return
	}

	params.evkParams = rlwe.EvaluationKeyParameters{
		BaseTwoDecomposition: utils.Pointy(lit.BaseTwoDecomposition),
	}

	return
}

// Literal returns the literal the parameters were built from
func (p Parameters) Literal() ParametersLiteral {
	return p.lit
}

// N returns the LWE dimension
func (p Parameters) N() int {
	return p.paramsLWE.N()
}

// QLWE returns the LWE modulus
func (p Parameters) QLWE() uint64 {
	return p.paramsLWE.Q()[0]
}

// QBR returns the blind rotation modulus
func (p Parameters) QBR() uint64 {
	return p.paramsBR.Q()[0]
}

// KeyID fingerprints a secret key. It is carried by every integer ciphertext
// and by the bootstrap key so that operands from different sessions are
// rejected instead of silently producing garbage.
type KeyID [32]byte

// String returns a short hex form of the fingerprint
func (id KeyID) String() string {
	return hex.EncodeToString(id[:8])
}

// IsZero reports whether the fingerprint is unset
func (id KeyID) IsZero() bool {
	return id == KeyID{}
}

// SecretKey holds the LWE secret key. LWE and blind rotation share one key
// since the standard parameter sets use the same ring for both.
type SecretKey struct {
	SK *rlwe.SecretKey
	id KeyID
}

// ID returns the key fingerprint
func (sk *SecretKey) ID() KeyID {
	return sk.id
}

// BootstrapKey contains the public material needed to evaluate gates.
// It holds no decryption capability.
type BootstrapKey struct {
	// BRK is the blind rotation key (RGSW encryptions of LWE secret key bits)
	BRK blindrot.BlindRotationEvaluationKeySet
	// TestPolyAND is the test polynomial for AND gate
	TestPolyAND *ring.Poly
	// TestPolyOR is the test polynomial for OR gate
	TestPolyOR *ring.Poly
	// TestPolyXOR is the test polynomial for XOR gate
	TestPolyXOR *ring.Poly
	// TestPolyXNOR is the test polynomial for XNOR gate
	TestPolyXNOR *ring.Poly

	params Parameters
	id     KeyID
}

// ID returns the fingerprint of the secret key this bootstrap key was derived from
func (bsk *BootstrapKey) ID() KeyID {
	return bsk.id
}

// Parameters returns the parameter set of the key
func (bsk *BootstrapKey) Parameters() Parameters {
	return bsk.params
}

// Ciphertext represents an encrypted bit
type Ciphertext struct {
	*rlwe.Ciphertext
}

// KeyGenerator generates TFHE keys
type KeyGenerator struct {
	params  Parameters
	kgen    *rlwe.KeyGenerator
	ringQBR *ring.Ring
}

// NewKeyGenerator creates a new key generator
func NewKeyGenerator(params Parameters) *KeyGenerator {
	return &KeyGenerator{
		params:  params,
		kgen:    rlwe.NewKeyGenerator(params.paramsBR),
		ringQBR: params.paramsBR.RingQ(),
	}
}

// GenSecretKey generates a new secret key and its fingerprint
func (kg *KeyGenerator) GenSecretKey() (*SecretKey, error) {
	sk := kg.kgen.GenSecretKeyNew()

	h := sha3.New256()
	if err := gob.NewEncoder(h).Encode(sk); err != nil {
		return nil, fmt.Errorf("fingerprint secret key: %w", err)
	}

	var id KeyID
	copy(id[:], h.Sum(nil))

	return &SecretKey{SK: sk, id: id}, nil
}

// GenBootstrapKey derives the bootstrap key from the secret key
func (kg *KeyGenerator) GenBootstrapKey(sk *SecretKey) *BootstrapKey {
	brk := blindrot.GenEvaluationKeyNew(kg.params.paramsBR, sk.SK, kg.params.paramsLWE, sk.SK, kg.params.evkParams)

	bsk := newTestPolynomials(kg.params, kg.ringQBR)
	bsk.BRK = brk
	bsk.id = sk.id
	return bsk
}

// newTestPolynomials builds the gate lookup tables. They depend only on the
// parameters, so a deserialized key rebuilds them locally.
func newTestPolynomials(params Parameters, ringQBR *ring.Ring) *BootstrapKey {
	// Scale for [-1, 1] -> [-Q/8, Q/8]
	scale := rlwe.NewScale(float64(params.QBR()) / 8.0)

	// With Q/8 encoding, after adding two bits the normalized positions are:
	// - true+true:   highest x (> 0.25)
	// - true+false:  middle x (in [-0.25, 0.25])
	// - false+false: lowest x (< -0.25)

	// AND: output 1 only when both inputs are 1.
	// >= handles the exact boundary when the sum of two TRUE is 0.25.
	testPolyAND := blindrot.InitTestPolynomial(func(x float64) float64 {
		if x >= 0.25 {
			return 1.0
		}
		return -1.0
	}, scale, ringQBR, -1, 1)

	// OR: output 1 when at least one input is 1
	testPolyOR := blindrot.InitTestPolynomial(func(x float64) float64 {
		if x > -0.25 {
			return 1.0
		}
		return -1.0
	}, scale, ringQBR, -1, 1)

	// XOR is evaluated on 2*(ct1+ct2):
	// - (F,F): -0.5
	// - (T,F) or (F,T): 0
	// - (T,T): 0.5, which wraps to -0.5
	// 0.30 boundaries leave noise margin in carry chains.
	testPolyXOR := blindrot.InitTestPolynomial(func(x float64) float64 {
		if x > -0.30 && x < 0.30 {
			return 1.0
		}
		return -1.0
	}, scale, ringQBR, -1, 1)

	// XNOR is the inverted XOR table on the same pre-processing
	testPolyXNOR := blindrot.InitTestPolynomial(func(x float64) float64 {
		if x > -0.30 && x < 0.30 {
			return -1.0
		}
		return 1.0
	}, scale, ringQBR, -1, 1)

	return &BootstrapKey{
		TestPolyAND:  &testPolyAND,
		TestPolyOR:   &testPolyOR,
		TestPolyXOR:  &testPolyXOR,
		TestPolyXNOR: &testPolyXNOR,
		params:       params,
	}
}
