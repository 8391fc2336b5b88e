// Copyright (c) 2025, Lux Industries Inc
// SPDX-License-Identifier: BSD-3-Clause

// Package storage keeps serialized evaluation keys and encrypted grids,
// addressed by the hash of their content.
package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/sha3"
)

// Common errors.
var (
	ErrNotFound      = errors.New("storage: blob not found")
	ErrStorageFull   = errors.New("storage: capacity exceeded")
	ErrInvalidHandle = errors.New("storage: invalid handle")
)

// Handle is the hex SHA3-256 digest of a blob.
type Handle string

// handleLen is the length of a hex-encoded SHA3-256 digest.
const handleLen = 2 * 32

// ComputeHandle returns the content address of data.
func ComputeHandle(data []byte) Handle {
	sum := sha3.Sum256(data)
	return Handle(hex.EncodeToString(sum[:]))
}

// Validate rejects handles that are not a well-formed digest. Handles come
// from job payloads, so they are checked before touching the filesystem.
func (h Handle) Validate() error {
	if len(h) != handleLen {
		return fmt.Errorf("%w: %q", ErrInvalidHandle, string(h))
	}
	if _, err := hex.DecodeString(string(h)); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidHandle, string(h))
	}
	return nil
}

// Short returns an abbreviated handle for logs.
func (h Handle) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// Storage is a content-addressed blob store. Storing the same content twice
// yields the same handle and keeps a single copy.
type Storage interface {
	Store(ctx context.Context, data []byte) (Handle, error)
	Load(ctx context.Context, handle Handle) ([]byte, error)
	Delete(ctx context.Context, handle Handle) error
	Exists(ctx context.Context, handle Handle) (bool, error)
	Close() error
}

// MemoryStorage keeps blobs in memory up to a fixed capacity.
type MemoryStorage struct {
	mu       sync.RWMutex
	blobs    map[Handle][]byte
	capacity int64
	size     int64
}

// NewMemoryStorage creates an in-memory store holding at most capacityMB
// megabytes.
func NewMemoryStorage(capacityMB int64) *MemoryStorage {
	return &MemoryStorage{
		blobs:    make(map[Handle][]byte),
		capacity: capacityMB << 20,
	}
}

func (s *MemoryStorage) Store(ctx context.Context, data []byte) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	handle := ComputeHandle(data)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[handle]; ok {
		return handle, nil
	}
	if s.size+int64(len(data)) > s.capacity {
		return "", fmt.Errorf("%w: %d + %d bytes > %d", ErrStorageFull, s.size, len(data), s.capacity)
	}

	s.blobs[handle] = append([]byte(nil), data...)
	s.size += int64(len(data))
	return handle, nil
}

func (s *MemoryStorage) Load(ctx context.Context, handle Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.blobs[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, handle.Short())
	}
	return append([]byte(nil), data...), nil
}

func (s *MemoryStorage) Delete(ctx context.Context, handle Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.blobs[handle]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, handle.Short())
	}
	s.size -= int64(len(data))
	delete(s.blobs, handle)
	return nil
}

func (s *MemoryStorage) Exists(ctx context.Context, handle Handle) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.blobs[handle]
	return ok, nil
}

// Size returns the number of bytes currently held.
func (s *MemoryStorage) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blobs = make(map[Handle][]byte)
	s.size = 0
	return nil
}

// FileStorage keeps one file per blob under baseDir, sharded by the first
// two characters of the handle.
type FileStorage struct {
	baseDir string
}

// NewFileStorage creates baseDir if needed.
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0750); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStorage{baseDir: baseDir}, nil
}

func (s *FileStorage) path(handle Handle) (string, error) {
	if err := handle.Validate(); err != nil {
		return "", err
	}
	h := string(handle)
	return filepath.Join(s.baseDir, h[:2], h), nil
}

func (s *FileStorage) Store(ctx context.Context, data []byte) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	handle := ComputeHandle(data)
	path, err := s.path(handle)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return handle, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return "", fmt.Errorf("create shard dir: %w", err)
	}

	// Concurrent writers of the same content race only on the rename.
	tmp, err := os.CreateTemp(filepath.Dir(path), handle.Short()+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("rename temp file: %w", err)
	}
	return handle, nil
}

func (s *FileStorage) Load(ctx context.Context, handle Handle) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.path(handle)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, handle.Short())
		}
		return nil, fmt.Errorf("read blob: %w", err)
	}
	return data, nil
}

func (s *FileStorage) Delete(ctx context.Context, handle Handle) error {
	path, err := s.path(handle)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, handle.Short())
		}
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

func (s *FileStorage) Exists(ctx context.Context, handle Handle) (bool, error) {
	path, err := s.path(handle)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat blob: %w", err)
}

func (s *FileStorage) Close() error { return nil }
