// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package life

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/luxfi/fhe-life/tfhe"
)

// TFHEScheme is the registry name of the gate-bootstrapped TFHE backend.
const TFHEScheme = "tfhe"

// TFHE encrypts each cell as four TFHE bits. Every gate is bootstrapped, so
// noise does not accumulate across steps.
type TFHE struct {
	params tfhe.Parameters
}

// NewTFHE builds the scheme for a named parameter set ("" selects PN10QP27).
func NewTFHE(paramName string) (*TFHE, error) {
	lit, err := tfhe.ParametersByName(paramName)
	if err != nil {
		return nil, err
	}
	params, err := tfhe.NewParametersFromLiteral(lit)
	if err != nil {
		return nil, fmt.Errorf("tfhe parameters: %w", err)
	}
	return &TFHE{params: params}, nil
}

// Name implements Scheme.
func (s *TFHE) Name() string { return TFHEScheme }

// GenerateKey samples a secret key and derives its bootstrap key.
func (s *TFHE) GenerateKey() (SecretKey, error) {
	kgen := tfhe.NewKeyGenerator(s.params)
	sk, err := kgen.GenSecretKey()
	if err != nil {
		return nil, err
	}

	key := &tfheSecretKey{
		params: s.params,
		sk:     sk,
		ek:     &tfheEvaluationKey{bsk: kgen.GenBootstrapKey(sk)},
	}
	key.encryptors.New = func() any { return tfhe.NewEncryptor(key.params, key.sk) }
	key.decryptors.New = func() any { return tfhe.NewDecryptor(key.params, key.sk) }
	return key, nil
}

// UnmarshalEvaluationKey restores a serialized bootstrap key.
func (s *TFHE) UnmarshalEvaluationKey(data []byte) (EvaluationKey, error) {
	bsk, err := tfhe.UnmarshalBootstrapKey(data)
	if err != nil {
		return nil, fmt.Errorf("%w: evaluation key: %w", ErrMalformed, err)
	}
	if bsk.Parameters().Literal() != s.params.Literal() {
		return nil, fmt.Errorf("%w: evaluation key parameters %+v, scheme %+v",
			ErrMalformed, bsk.Parameters().Literal(), s.params.Literal())
	}
	return &tfheEvaluationKey{bsk: bsk}, nil
}

// UnmarshalCiphertext restores a serialized 4-bit ciphertext.
func (s *TFHE) UnmarshalCiphertext(data []byte) (Ciphertext, error) {
	ct := new(tfhe.Uint4)
	if err := ct.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return ct, nil
}

// tfheSecretKey pools encryptors and decryptors since neither is safe for
// concurrent use.
type tfheSecretKey struct {
	params     tfhe.Parameters
	sk         *tfhe.SecretKey
	ek         *tfheEvaluationKey
	encryptors sync.Pool
	decryptors sync.Pool
}

func (k *tfheSecretKey) EvaluationKey() EvaluationKey { return k.ek }

func (k *tfheSecretKey) Encrypt(v uint8) (Ciphertext, error) {
	enc := k.encryptors.Get().(*tfhe.Encryptor)
	defer k.encryptors.Put(enc)

	ct, err := enc.EncryptUint4(v)
	if err != nil {
		return nil, err
	}
	return ct, nil
}

func (k *tfheSecretKey) Decrypt(ct Ciphertext) (uint8, error) {
	v, ok := ct.(*tfhe.Uint4)
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: not a tfhe ciphertext (%T)", ErrDecryption, ct)
	}

	dec := k.decryptors.Get().(*tfhe.Decryptor)
	defer k.decryptors.Put(dec)

	out, err := dec.DecryptUint4(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrDecryption, tfheError(err))
	}
	return out, nil
}

type tfheEvaluationKey struct {
	bsk *tfhe.BootstrapKey
}

func (k *tfheEvaluationKey) ID() string {
	id := k.bsk.ID()
	return hex.EncodeToString(id[:])
}

func (k *tfheEvaluationKey) Activate() (Evaluator, error) {
	if k == nil || k.bsk == nil {
		return nil, ErrEvaluationKeyMissing
	}
	ie, err := tfhe.NewIntegerEvaluator(k.bsk)
	if err != nil {
		return nil, tfheError(err)
	}
	return &tfheEvaluator{ie: ie}, nil
}

func (k *tfheEvaluationKey) MarshalBinary() ([]byte, error) {
	return k.bsk.MarshalBinary()
}

type tfheEvaluator struct {
	ie *tfhe.IntegerEvaluator
}

// tfheError joins scheme-level sentinels to the life ones.
func tfheError(err error) error {
	switch {
	case errors.Is(err, tfhe.ErrKeyMismatch):
		return fmt.Errorf("%w: %w", ErrKeyMismatch, err)
	case errors.Is(err, tfhe.ErrMissingKey):
		return fmt.Errorf("%w: %w", ErrEvaluationKeyMissing, err)
	case errors.Is(err, tfhe.ErrMalformed):
		return fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return err
}

func asUint4(cts ...Ciphertext) ([]*tfhe.Uint4, error) {
	out := make([]*tfhe.Uint4, len(cts))
	for i, ct := range cts {
		v, ok := ct.(*tfhe.Uint4)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not a tfhe ciphertext", ErrKeyMismatch, ct)
		}
		out[i] = v
	}
	return out, nil
}

func asTFHEBool(bs ...Bool) ([]*tfhe.Bool, error) {
	out := make([]*tfhe.Bool, len(bs))
	for i, b := range bs {
		v, ok := b.(*tfhe.Bool)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not a tfhe boolean", ErrKeyMismatch, b)
		}
		out[i] = v
	}
	return out, nil
}

func (e *tfheEvaluator) Trivial(v uint8) (Ciphertext, error) {
	ct, err := e.ie.Trivial(v)
	if err != nil {
		return nil, err
	}
	return ct, nil
}

func (e *tfheEvaluator) Add(a, b Ciphertext) (Ciphertext, error) {
	vs, err := asUint4(a, b)
	if err != nil {
		return nil, err
	}
	sum, err := e.ie.Add(vs[0], vs[1])
	if err != nil {
		return nil, tfheError(err)
	}
	return sum, nil
}

func (e *tfheEvaluator) Eq(a, b Ciphertext) (Bool, error) {
	vs, err := asUint4(a, b)
	if err != nil {
		return nil, err
	}
	eq, err := e.ie.Eq(vs[0], vs[1])
	if err != nil {
		return nil, tfheError(err)
	}
	return eq, nil
}

func (e *tfheEvaluator) Or(a, b Bool) (Bool, error) {
	bs, err := asTFHEBool(a, b)
	if err != nil {
		return nil, err
	}
	or, err := e.ie.Or(bs[0], bs[1])
	if err != nil {
		return nil, tfheError(err)
	}
	return or, nil
}

func (e *tfheEvaluator) Select(cond Bool, a, b Ciphertext) (Ciphertext, error) {
	bs, err := asTFHEBool(cond)
	if err != nil {
		return nil, err
	}
	vs, err := asUint4(a, b)
	if err != nil {
		return nil, err
	}
	sel, err := e.ie.Select(bs[0], vs[0], vs[1])
	if err != nil {
		return nil, tfheError(err)
	}
	return sel, nil
}
