// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package tfhe

import (
	"errors"
	"sync"
	"testing"
)

type testContext struct {
	params Parameters
	sk     *SecretKey
	bsk    *BootstrapKey
}

var (
	testCtxOnce sync.Once
	testCtx     *testContext
	testCtxErr  error
)

// newTestContext generates one key pair for the whole package; bootstrap key
// generation dominates test time otherwise.
func newTestContext(t testing.TB) *testContext {
	t.Helper()

	testCtxOnce.Do(func() {
		params, err := NewParametersFromLiteral(PN10QP27)
		if err != nil {
			testCtxErr = err
			return
		}
		kgen := NewKeyGenerator(params)
		sk, err := kgen.GenSecretKey()
		if err != nil {
			testCtxErr = err
			return
		}
		testCtx = &testContext{
			params: params,
			sk:     sk,
			bsk:    kgen.GenBootstrapKey(sk),
		}
	})

	if testCtxErr != nil {
		t.Fatalf("failed to create test context: %v", testCtxErr)
	}
	return testCtx
}

func TestParametersByName(t *testing.T) {
	for _, name := range []string{"", "PN10QP27", "PN11QP54"} {
		if _, err := ParametersByName(name); err != nil {
			t.Errorf("ParametersByName(%q): %v", name, err)
		}
	}

	if _, err := ParametersByName("PN9QP28_STD128"); !errors.Is(err, ErrUnsupportedParam) {
		t.Errorf("expected ErrUnsupportedParam, got %v", err)
	}
}

func TestMismatchedRingsRejected(t *testing.T) {
	lit := PN10QP27
	lit.LogNLWE = 9
	if _, err := NewParametersFromLiteral(lit); !errors.Is(err, ErrUnsupportedParam) {
		t.Fatalf("expected ErrUnsupportedParam, got %v", err)
	}
}

func TestKeyFingerprint(t *testing.T) {
	tc := newTestContext(t)

	if tc.sk.ID().IsZero() {
		t.Fatal("secret key fingerprint is zero")
	}
	if tc.bsk.ID() != tc.sk.ID() {
		t.Errorf("bootstrap key id %s, secret key id %s", tc.bsk.ID(), tc.sk.ID())
	}

	other, err := NewKeyGenerator(tc.params).GenSecretKey()
	if err != nil {
		t.Fatalf("GenSecretKey: %v", err)
	}
	if other.ID() == tc.sk.ID() {
		t.Error("two fresh secret keys share a fingerprint")
	}
}

func TestEncryptDecryptBit(t *testing.T) {
	tc := newTestContext(t)
	enc := NewEncryptor(tc.params, tc.sk)
	dec := NewDecryptor(tc.params, tc.sk)

	for _, v := range []bool{false, true} {
		ct, err := enc.Encrypt(v)
		if err != nil {
			t.Fatalf("Encrypt(%v): %v", v, err)
		}
		if got := dec.Decrypt(ct); got != v {
			t.Errorf("Decrypt(Encrypt(%v)) = %v", v, got)
		}
	}
}

func TestGates(t *testing.T) {
	tc := newTestContext(t)
	enc := NewEncryptor(tc.params, tc.sk)
	dec := NewDecryptor(tc.params, tc.sk)
	eval, err := NewEvaluator(tc.bsk)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	gates := []struct {
		name string
		fn   func(a, b *Ciphertext) (*Ciphertext, error)
		want func(a, b bool) bool
	}{
		{"AND", eval.AND, func(a, b bool) bool { return a && b }},
		{"OR", eval.OR, func(a, b bool) bool { return a || b }},
		{"XOR", eval.XOR, func(a, b bool) bool { return a != b }},
		{"XNOR", eval.XNOR, func(a, b bool) bool { return a == b }},
	}

	for _, g := range gates {
		t.Run(g.name, func(t *testing.T) {
			for _, a := range []bool{false, true} {
				for _, b := range []bool{false, true} {
					ctA, _ := enc.Encrypt(a)
					ctB, _ := enc.Encrypt(b)
					res, err := g.fn(ctA, ctB)
					if err != nil {
						t.Fatalf("%s(%v, %v): %v", g.name, a, b, err)
					}
					if got := dec.Decrypt(res); got != g.want(a, b) {
						t.Errorf("%s(%v, %v) = %v, want %v", g.name, a, b, got, g.want(a, b))
					}
				}
			}
		})
	}

	t.Run("NOT", func(t *testing.T) {
		for _, a := range []bool{false, true} {
			ct, _ := enc.Encrypt(a)
			if got := dec.Decrypt(eval.NOT(ct)); got != !a {
				t.Errorf("NOT(%v) = %v", a, got)
			}
		}
	})

	t.Run("MUX", func(t *testing.T) {
		for _, sel := range []bool{false, true} {
			ctSel, _ := enc.Encrypt(sel)
			ctT, _ := enc.Encrypt(true)
			ctF, _ := enc.Encrypt(false)
			res, err := eval.MUX(ctSel, ctT, ctF)
			if err != nil {
				t.Fatalf("MUX: %v", err)
			}
			if got := dec.Decrypt(res); got != sel {
				t.Errorf("MUX(%v, 1, 0) = %v", sel, got)
			}
		}
	})
}

func TestNewEvaluatorMissingKey(t *testing.T) {
	if _, err := NewEvaluator(nil); !errors.Is(err, ErrMissingKey) {
		t.Errorf("expected ErrMissingKey, got %v", err)
	}
	if _, err := NewIntegerEvaluator(&BootstrapKey{}); !errors.Is(err, ErrMissingKey) {
		t.Errorf("expected ErrMissingKey, got %v", err)
	}
}
