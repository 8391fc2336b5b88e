// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Storage {
	t.Helper()
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	return map[string]Storage{
		"memory": NewMemoryStorage(1),
		"file":   fs,
	}
}

func TestStorageRoundTrip(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			defer s.Close()

			h, err := s.Store(ctx, []byte("evaluation key"))
			require.NoError(t, err)
			require.NoError(t, h.Validate())
			require.Equal(t, ComputeHandle([]byte("evaluation key")), h)

			again, err := s.Store(ctx, []byte("evaluation key"))
			require.NoError(t, err)
			require.Equal(t, h, again)

			ok, err := s.Exists(ctx, h)
			require.NoError(t, err)
			require.True(t, ok)

			data, err := s.Load(ctx, h)
			require.NoError(t, err)
			require.Equal(t, []byte("evaluation key"), data)

			require.NoError(t, s.Delete(ctx, h))
			_, err = s.Load(ctx, h)
			require.ErrorIs(t, err, ErrNotFound)
			require.ErrorIs(t, s.Delete(ctx, h), ErrNotFound)

			ok, err = s.Exists(ctx, h)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestStorageCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Store(ctx, []byte("grid"))
			require.ErrorIs(t, err, context.Canceled)
		})
	}
}

func TestMemoryStorageCapacity(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage(1)

	_, err := s.Store(ctx, make([]byte, 1<<20))
	require.NoError(t, err)
	require.Equal(t, int64(1<<20), s.Size())

	_, err = s.Store(ctx, []byte{1})
	require.ErrorIs(t, err, ErrStorageFull)

	// Loaded blobs are copies.
	h := ComputeHandle(make([]byte, 1<<20))
	data, err := s.Load(ctx, h)
	require.NoError(t, err)
	data[0] = 0xff
	data, err = s.Load(ctx, h)
	require.NoError(t, err)
	require.Zero(t, data[0])

	require.NoError(t, s.Close())
	require.Zero(t, s.Size())
}

func TestFileStorageLayout(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStorage(dir)
	require.NoError(t, err)

	h, err := s.Store(context.Background(), []byte("sharded"))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, string(h[:2]), string(h)))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, string(h[:2])))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp file left behind")
}

func TestInvalidHandle(t *testing.T) {
	s, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, h := range []Handle{"", "abc", "../../etc/passwd", Handle(string(make([]byte, handleLen)))} {
		_, err := s.Load(ctx, h)
		require.ErrorIs(t, err, ErrInvalidHandle, "handle %q", h)
		_, err = s.Exists(ctx, h)
		require.ErrorIs(t, err, ErrInvalidHandle)
		require.ErrorIs(t, s.Delete(ctx, h), ErrInvalidHandle)
	}
}
