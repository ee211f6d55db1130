// Package memory implements an in-process key-value Store.
package memory

import (
	"context"
	"sync"

	"virgil/internal/kv/core"
)

// Store implements core.Store backed by process memory. An optional byte
// quota bounds the total size of keys plus values, mirroring the capacity
// limit of browser storage.
type Store struct {
	mu    sync.RWMutex
	objs  map[string][]byte
	used  int64
	quota int64
}

// Option configures a Store.
type Option func(*Store)

// WithQuota bounds the total stored bytes. Zero or negative disables the limit.
func WithQuota(bytes int64) Option {
	return func(s *Store) { s.quota = bytes }
}

// New returns an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{objs: make(map[string][]byte)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Driver returns the backend driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverMemory }

// Get returns a copy of the stored value.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	v, ok := s.objs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, core.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set replaces the value under key. Fails with core.ErrQuotaExceeded when the
// write would exceed the quota, leaving the previous value in place.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := core.ValidateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	used := s.used
	if prev, ok := s.objs[key]; ok {
		used -= entrySize(key, prev)
	}
	used += entrySize(key, value)
	if s.quota > 0 && used > s.quota {
		return core.ErrQuotaExceeded
	}
	buf := make([]byte, len(value))
	copy(buf, value)
	s.objs[key] = buf
	s.used = used
	return nil
}

// Remove deletes key if present.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.objs[key]; ok {
		s.used -= entrySize(key, prev)
		delete(s.objs, key)
	}
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objs)
}

// Used returns the bytes currently counted against the quota.
func (s *Store) Used() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.used
}

func entrySize(key string, value []byte) int64 {
	return int64(len(key) + len(value))
}
