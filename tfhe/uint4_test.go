// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package tfhe

import (
	"errors"
	"testing"
)

func TestUint4EncryptDecrypt(t *testing.T) {
	tc := newTestContext(t)
	enc := NewEncryptor(tc.params, tc.sk)
	dec := NewDecryptor(tc.params, tc.sk)

	for v := uint8(0); v < 16; v++ {
		ct, err := enc.EncryptUint4(v)
		if err != nil {
			t.Fatalf("EncryptUint4(%d): %v", v, err)
		}
		got, err := dec.DecryptUint4(ct)
		if err != nil {
			t.Fatalf("DecryptUint4: %v", err)
		}
		if got != v {
			t.Errorf("Encrypt/Decrypt(%d): got %d", v, got)
		}
	}

	if _, err := enc.EncryptUint4(16); !errors.Is(err, ErrValueOutOfRange) {
		t.Errorf("expected ErrValueOutOfRange, got %v", err)
	}
}

func TestUint4Add(t *testing.T) {
	tc := newTestContext(t)
	enc := NewEncryptor(tc.params, tc.sk)
	dec := NewDecryptor(tc.params, tc.sk)
	eval, err := NewIntegerEvaluator(tc.bsk)
	if err != nil {
		t.Fatalf("NewIntegerEvaluator: %v", err)
	}

	testCases := []struct {
		a, b   uint8
		expect uint8
	}{
		{0, 0, 0},
		{1, 1, 2},
		{3, 2, 5},
		{7, 1, 8},
		{15, 1, 0}, // Overflow: 15 + 1 = 0 mod 16
	}

	for _, tc := range testCases {
		ctA, _ := enc.EncryptUint4(tc.a)
		ctB, _ := enc.EncryptUint4(tc.b)

		result, err := eval.Add(ctA, ctB)
		if err != nil {
			t.Fatalf("Add(%d, %d): %v", tc.a, tc.b, err)
		}

		got, err := dec.DecryptUint4(result)
		if err != nil {
			t.Fatalf("DecryptUint4: %v", err)
		}
		if got != tc.expect {
			t.Errorf("Add(%d, %d): expected %d, got %d", tc.a, tc.b, tc.expect, got)
		}
	}
}

func TestUint4AddTrivial(t *testing.T) {
	tc := newTestContext(t)
	enc := NewEncryptor(tc.params, tc.sk)
	dec := NewDecryptor(tc.params, tc.sk)
	eval, err := NewIntegerEvaluator(tc.bsk)
	if err != nil {
		t.Fatalf("NewIntegerEvaluator: %v", err)
	}

	zero, err := eval.Trivial(0)
	if err != nil {
		t.Fatalf("Trivial: %v", err)
	}
	one, _ := enc.EncryptUint4(1)

	sum, err := eval.Add(zero, one)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got, _ := dec.DecryptUint4(sum); got != 1 {
		t.Errorf("0 + 1 = %d", got)
	}
}

func TestUint4EqSelectOr(t *testing.T) {
	tc := newTestContext(t)
	enc := NewEncryptor(tc.params, tc.sk)
	dec := NewDecryptor(tc.params, tc.sk)
	eval, err := NewIntegerEvaluator(tc.bsk)
	if err != nil {
		t.Fatalf("NewIntegerEvaluator: %v", err)
	}

	three, _ := eval.Trivial(3)
	two, _ := eval.Trivial(2)
	one, _ := eval.Trivial(1)
	zero, _ := eval.Trivial(0)

	for _, v := range []uint8{2, 3, 8} {
		ct, _ := enc.EncryptUint4(v)

		isThree, err := eval.Eq(ct, three)
		if err != nil {
			t.Fatalf("Eq: %v", err)
		}
		if got, _ := dec.DecryptBool(isThree); got != (v == 3) {
			t.Errorf("%d == 3: got %v", v, got)
		}

		isTwo, err := eval.Eq(ct, two)
		if err != nil {
			t.Fatalf("Eq: %v", err)
		}
		either, err := eval.Or(isTwo, isThree)
		if err != nil {
			t.Fatalf("Or: %v", err)
		}

		sel, err := eval.Select(either, one, zero)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		want := uint8(0)
		if v == 2 || v == 3 {
			want = 1
		}
		if got, _ := dec.DecryptUint4(sel); got != want {
			t.Errorf("(%d in {2,3}) ? 1 : 0 = %d, want %d", v, got, want)
		}
	}
}

func TestUint4KeyMismatch(t *testing.T) {
	tc := newTestContext(t)

	kgen := NewKeyGenerator(tc.params)
	foreign, err := kgen.GenSecretKey()
	if err != nil {
		t.Fatalf("GenSecretKey: %v", err)
	}

	ct, err := NewEncryptor(tc.params, foreign).EncryptUint4(1)
	if err != nil {
		t.Fatalf("EncryptUint4: %v", err)
	}

	eval, err := NewIntegerEvaluator(tc.bsk)
	if err != nil {
		t.Fatalf("NewIntegerEvaluator: %v", err)
	}
	one, _ := eval.Trivial(1)

	if _, err := eval.Add(ct, one); !errors.Is(err, ErrKeyMismatch) {
		t.Errorf("Add: expected ErrKeyMismatch, got %v", err)
	}
	if _, err := eval.Eq(one, ct); !errors.Is(err, ErrKeyMismatch) {
		t.Errorf("Eq: expected ErrKeyMismatch, got %v", err)
	}
	if _, err := NewDecryptor(tc.params, tc.sk).DecryptUint4(ct); !errors.Is(err, ErrKeyMismatch) {
		t.Errorf("DecryptUint4: expected ErrKeyMismatch, got %v", err)
	}
}

func TestUint4Malformed(t *testing.T) {
	tc := newTestContext(t)
	eval, err := NewIntegerEvaluator(tc.bsk)
	if err != nil {
		t.Fatalf("NewIntegerEvaluator: %v", err)
	}
	one, _ := eval.Trivial(1)

	if _, err := eval.Add(&Uint4{id: tc.sk.ID()}, one); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
	if _, err := eval.Or(nil, nil); !errors.Is(err, ErrMalformed) {
		t.Errorf("expected ErrMalformed, got %v", err)
	}
}
