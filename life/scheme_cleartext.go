// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package life

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// CleartextScheme is the registry name of the debug backend.
const CleartextScheme = "cleartext"

const cleartextIDSize = 16

type cleartextID [cleartextIDSize]byte

// Cleartext is a debug scheme with the same semantics as TFHE (values mod 16,
// per-key fingerprints) and no secrecy at all. It exercises circuits, the
// runtime and the job pipeline at plaintext speed.
type Cleartext struct{}

// NewCleartext returns the debug scheme.
func NewCleartext() *Cleartext { return &Cleartext{} }

// Name implements Scheme.
func (Cleartext) Name() string { return CleartextScheme }

// GenerateKey draws a random key fingerprint.
func (Cleartext) GenerateKey() (SecretKey, error) {
	var id cleartextID
	if _, err := rand.Read(id[:]); err != nil {
		return nil, fmt.Errorf("generate key id: %w", err)
	}
	return &cleartextSecretKey{id: id}, nil
}

// UnmarshalEvaluationKey restores a key from its fingerprint.
func (Cleartext) UnmarshalEvaluationKey(data []byte) (EvaluationKey, error) {
	if len(data) != cleartextIDSize {
		return nil, fmt.Errorf("%w: cleartext key is %d bytes, want %d", ErrMalformed, len(data), cleartextIDSize)
	}
	k := &cleartextKey{}
	copy(k.id[:], data)
	return k, nil
}

// UnmarshalCiphertext restores a value encoded as fingerprint || value.
func (Cleartext) UnmarshalCiphertext(data []byte) (Ciphertext, error) {
	if len(data) != cleartextIDSize+1 {
		return nil, fmt.Errorf("%w: cleartext value is %d bytes, want %d", ErrMalformed, len(data), cleartextIDSize+1)
	}
	if data[cleartextIDSize] >= 16 {
		return nil, fmt.Errorf("%w: cleartext value %d out of range", ErrMalformed, data[cleartextIDSize])
	}
	v := &cleartextValue{v: data[cleartextIDSize]}
	copy(v.id[:], data)
	return v, nil
}

type cleartextValue struct {
	id cleartextID
	v  uint8
}

func (c *cleartextValue) MarshalBinary() ([]byte, error) {
	return append(append([]byte(nil), c.id[:]...), c.v), nil
}

type cleartextBool struct {
	id cleartextID
	v  bool
}

type cleartextSecretKey struct {
	id cleartextID
}

func (k *cleartextSecretKey) EvaluationKey() EvaluationKey { return &cleartextKey{id: k.id} }

func (k *cleartextSecretKey) Encrypt(v uint8) (Ciphertext, error) {
	if v >= 16 {
		return nil, fmt.Errorf("%w: %d does not fit in 4 bits", ErrInvalidCell, v)
	}
	return &cleartextValue{id: k.id, v: v}, nil
}

func (k *cleartextSecretKey) Decrypt(ct Ciphertext) (uint8, error) {
	c, ok := ct.(*cleartextValue)
	if !ok || c == nil {
		return 0, fmt.Errorf("%w: not a cleartext value (%T)", ErrDecryption, ct)
	}
	if c.id != k.id {
		return 0, fmt.Errorf("%w: %w", ErrDecryption, ErrKeyMismatch)
	}
	return c.v, nil
}

type cleartextKey struct {
	id cleartextID
}

func (k *cleartextKey) ID() string { return hex.EncodeToString(k.id[:]) }

func (k *cleartextKey) Activate() (Evaluator, error) {
	if k == nil {
		return nil, ErrEvaluationKeyMissing
	}
	return &cleartextEvaluator{id: k.id}, nil
}

func (k *cleartextKey) MarshalBinary() ([]byte, error) {
	return append([]byte(nil), k.id[:]...), nil
}

type cleartextEvaluator struct {
	id cleartextID
}

func (e *cleartextEvaluator) value(ct Ciphertext) (uint8, error) {
	c, ok := ct.(*cleartextValue)
	if !ok || c == nil {
		return 0, fmt.Errorf("%w: %T is not a cleartext value", ErrKeyMismatch, ct)
	}
	if c.id != e.id {
		return 0, ErrKeyMismatch
	}
	return c.v, nil
}

func (e *cleartextEvaluator) boolean(b Bool) (bool, error) {
	c, ok := b.(*cleartextBool)
	if !ok || c == nil {
		return false, fmt.Errorf("%w: %T is not a cleartext boolean", ErrKeyMismatch, b)
	}
	if c.id != e.id {
		return false, ErrKeyMismatch
	}
	return c.v, nil
}

func (e *cleartextEvaluator) Trivial(v uint8) (Ciphertext, error) {
	if v >= 16 {
		return nil, fmt.Errorf("%w: %d does not fit in 4 bits", ErrInvalidCell, v)
	}
	return &cleartextValue{id: e.id, v: v}, nil
}

func (e *cleartextEvaluator) Add(a, b Ciphertext) (Ciphertext, error) {
	va, err := e.value(a)
	if err != nil {
		return nil, err
	}
	vb, err := e.value(b)
	if err != nil {
		return nil, err
	}
	return &cleartextValue{id: e.id, v: (va + vb) & 0xf}, nil
}

func (e *cleartextEvaluator) Eq(a, b Ciphertext) (Bool, error) {
	va, err := e.value(a)
	if err != nil {
		return nil, err
	}
	vb, err := e.value(b)
	if err != nil {
		return nil, err
	}
	return &cleartextBool{id: e.id, v: va == vb}, nil
}

func (e *cleartextEvaluator) Or(a, b Bool) (Bool, error) {
	va, err := e.boolean(a)
	if err != nil {
		return nil, err
	}
	vb, err := e.boolean(b)
	if err != nil {
		return nil, err
	}
	return &cleartextBool{id: e.id, v: va || vb}, nil
}

func (e *cleartextEvaluator) Select(cond Bool, a, b Ciphertext) (Ciphertext, error) {
	c, err := e.boolean(cond)
	if err != nil {
		return nil, err
	}
	va, err := e.value(a)
	if err != nil {
		return nil, err
	}
	vb, err := e.value(b)
	if err != nil {
		return nil, err
	}
	if c {
		return &cleartextValue{id: e.id, v: va}, nil
	}
	return &cleartextValue{id: e.id, v: vb}, nil
}
