// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package life

import "errors"

// Precondition violations are rejected at construction and encryption.
// Key faults are fatal configuration errors: no partial result is returned.
// None of these is ever reported as a failed verification.
var (
	ErrInvalidDimensions    = errors.New("life: grid dimensions must be positive")
	ErrInvalidCell          = errors.New("life: cell value must be 0 or 1")
	ErrInvalidSteps         = errors.New("life: step count must be non-negative")
	ErrDimensionMismatch    = errors.New("life: grid dimensions do not match")
	ErrEvaluationKeyMissing = errors.New("life: evaluation key is not active")
	ErrKeyMismatch          = errors.New("life: ciphertext belongs to a different key")
	ErrDecryption           = errors.New("life: decryption fault")
	ErrMalformed            = errors.New("life: malformed encoding")
	ErrUnknownScheme        = errors.New("life: unknown scheme")
)
