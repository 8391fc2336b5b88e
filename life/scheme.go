// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package life

import (
	"encoding"
	"fmt"
	"sort"
	"sync"
)

// Ciphertext is an encrypted unsigned integer in [0, 16). Cells only ever
// decrypt to 0 or 1; neighbor counts use the wider range.
type Ciphertext interface {
	encoding.BinaryMarshaler
}

// Bool is an encrypted boolean returned by equality tests.
type Bool interface{}

// Evaluator performs homomorphic operations under the evaluation key it was
// activated from. An Evaluator is an execution context: it is owned by one
// goroutine at a time and is never shared between concurrent workers.
type Evaluator interface {
	// Trivial encodes a public constant as a ciphertext. It carries no secrecy.
	Trivial(v uint8) (Ciphertext, error)
	// Add returns a + b modulo 16.
	Add(a, b Ciphertext) (Ciphertext, error)
	// Eq returns an encrypted a == b.
	Eq(a, b Ciphertext) (Bool, error)
	// Or returns an encrypted a || b.
	Or(a, b Bool) (Bool, error)
	// Select returns a where cond is true and b otherwise.
	Select(cond Bool, a, b Ciphertext) (Ciphertext, error)
}

// EvaluationKey is the shareable half of the key material. It permits
// homomorphic evaluation and nothing else, and is safe for concurrent use.
type EvaluationKey interface {
	encoding.BinaryMarshaler
	// ID fingerprints the secret key the evaluation key was derived from.
	ID() string
	// Activate binds the key to a new execution context.
	Activate() (Evaluator, error)
}

// SecretKey never leaves the Client.
type SecretKey interface {
	// EvaluationKey returns the evaluation key derived from this secret key.
	EvaluationKey() EvaluationKey
	Encrypt(v uint8) (Ciphertext, error)
	// Decrypt fails with ErrDecryption for ciphertexts it cannot open.
	Decrypt(ct Ciphertext) (uint8, error)
}

// Scheme is a homomorphic encryption backend.
type Scheme interface {
	Name() string
	GenerateKey() (SecretKey, error)
	UnmarshalEvaluationKey(data []byte) (EvaluationKey, error)
	UnmarshalCiphertext(data []byte) (Ciphertext, error)
}

// SchemeFactory builds a scheme from a backend-specific parameter name.
type SchemeFactory func(params string) (Scheme, error)

var (
	schemesMu sync.RWMutex
	schemes   = map[string]SchemeFactory{}
)

// RegisterScheme makes a scheme available by name. It panics on duplicates.
func RegisterScheme(name string, factory SchemeFactory) {
	schemesMu.Lock()
	defer schemesMu.Unlock()

	if _, dup := schemes[name]; dup {
		panic("life: scheme registered twice: " + name)
	}
	schemes[name] = factory
}

// LookupScheme builds the named scheme.
func LookupScheme(name, params string) (Scheme, error) {
	schemesMu.RLock()
	factory, ok := schemes[name]
	schemesMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, name)
	}
	return factory(params)
}

// Schemes lists the registered scheme names.
func Schemes() []string {
	schemesMu.RLock()
	defer schemesMu.RUnlock()

	names := make([]string, 0, len(schemes))
	for name := range schemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	RegisterScheme(TFHEScheme, func(params string) (Scheme, error) {
		return NewTFHE(params)
	})
	RegisterScheme(CleartextScheme, func(string) (Scheme, error) {
		return NewCleartext(), nil
	})
}
