// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package tfhe

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestUint4Serialization(t *testing.T) {
	tc := newTestContext(t)
	enc := NewEncryptor(tc.params, tc.sk)
	dec := NewDecryptor(tc.params, tc.sk)

	ct, err := enc.EncryptUint4(9)
	if err != nil {
		t.Fatalf("EncryptUint4: %v", err)
	}

	data, err := ct.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	restored := new(Uint4)
	if err := restored.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if restored.KeyID() != tc.sk.ID() {
		t.Errorf("key id changed: %s vs %s", restored.KeyID(), tc.sk.ID())
	}

	got, err := dec.DecryptUint4(restored)
	if err != nil {
		t.Fatalf("DecryptUint4: %v", err)
	}
	if got != 9 {
		t.Errorf("expected 9, got %d", got)
	}
}

func TestUint4UnmarshalTruncated(t *testing.T) {
	tc := newTestContext(t)
	ct, _ := NewEncryptor(tc.params, tc.sk).EncryptUint4(5)
	data, err := ct.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	for _, n := range []int{0, 10, len(data) / 2, len(data) - 1} {
		if err := new(Uint4).UnmarshalBinary(data[:n]); !errors.Is(err, ErrMalformed) {
			t.Errorf("truncated to %d bytes: expected ErrMalformed, got %v", n, err)
		}
	}

	if err := new(Uint4).UnmarshalBinary(append(data, 0)); !errors.Is(err, ErrMalformed) {
		t.Errorf("trailing byte: expected ErrMalformed, got %v", err)
	}
}

func TestBootstrapKeySerialization(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping bootstrap key round trip in short mode")
	}

	tc := newTestContext(t)

	data, err := tc.bsk.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}

	bsk, err := UnmarshalBootstrapKey(data)
	if err != nil {
		t.Fatalf("UnmarshalBootstrapKey: %v", err)
	}
	if bsk.ID() != tc.bsk.ID() {
		t.Errorf("key id changed: %s vs %s", bsk.ID(), tc.bsk.ID())
	}
	if bsk.Parameters().Literal() != PN10QP27 {
		t.Errorf("parameters changed: %+v", bsk.Parameters().Literal())
	}

	// The restored key must still evaluate gates on fresh ciphertexts
	enc := NewEncryptor(tc.params, tc.sk)
	dec := NewDecryptor(tc.params, tc.sk)
	eval, err := NewEvaluator(bsk)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}

	a, _ := enc.Encrypt(true)
	b, _ := enc.Encrypt(true)
	res, err := eval.AND(a, b)
	if err != nil {
		t.Fatalf("AND: %v", err)
	}
	if !dec.Decrypt(res) {
		t.Error("AND(1, 1) with restored key = 0")
	}

	// Skip over the blind rotation keys to reach the galois key count
	off := 5*8 + len(KeyID{}) + 4
	for i := 0; i < tc.params.N(); i++ {
		off += 4 + int(binary.LittleEndian.Uint32(data[off:]))
	}
	corrupt := append([]byte(nil), data[:off+4]...)
	binary.LittleEndian.PutUint32(corrupt[off:], 0xFFFFFFFF)
	if _, err := UnmarshalBootstrapKey(corrupt); !errors.Is(err, ErrMalformed) {
		t.Errorf("oversized galois key count: expected ErrMalformed, got %v", err)
	}
	if _, err := UnmarshalBootstrapKey(data[:len(data)-1]); !errors.Is(err, ErrMalformed) {
		t.Errorf("truncated key: expected ErrMalformed, got %v", err)
	}
}

// bootstrapKeyHeader writes a PN10QP27 key header followed by the blind
// rotation key count.
func bootstrapKeyHeader(t *testing.T, count uint32) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	lit := PN10QP27
	header := []uint64{
		uint64(lit.LogNLWE), uint64(lit.LogNBR),
		lit.QLWE, lit.QBR,
		uint64(lit.BaseTwoDecomposition),
	}
	if err := binary.Write(&buf, binary.LittleEndian, header); err != nil {
		t.Fatal(err)
	}
	buf.Write(make([]byte, len(KeyID{})))
	if err := binary.Write(&buf, binary.LittleEndian, count); err != nil {
		t.Fatal(err)
	}
	return &buf
}

func TestBootstrapKeyUnmarshalMalformed(t *testing.T) {
	oversized := bootstrapKeyHeader(t, 1024)
	binary.Write(oversized, binary.LittleEndian, uint32(0xFFFFFFFF))
	oversized.Write(make([]byte, 16))

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", make([]byte, 12)},
		{"missing key id", bootstrapKeyHeader(t, 1024).Bytes()[:44]},
		{"wrong key count", bootstrapKeyHeader(t, 7).Bytes()},
		{"missing keys", bootstrapKeyHeader(t, 1024).Bytes()},
		{"oversized blob", oversized.Bytes()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := UnmarshalBootstrapKey(tt.data); !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}
