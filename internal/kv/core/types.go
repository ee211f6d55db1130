// Package core defines the byte-oriented key-value abstraction that backs
// collection persistence.
package core

import (
	"context"
	"errors"
	"strings"
)

// Driver identifies a concrete key-value backend implementation.
type Driver string

const (
	// DriverMemory represents the in-process implementation (tests, ephemeral use).
	DriverMemory Driver = "memory"
	// DriverFilesystem stores one file per key under a root directory.
	DriverFilesystem Driver = "fs"
	// DriverS3 represents an S3 / MinIO compatible implementation.
	DriverS3 Driver = "s3"
	// DriverSQLite stores values in a single SQLite table.
	DriverSQLite Driver = "sqlite"
	// DriverPostgres stores values in a single Postgres table.
	DriverPostgres Driver = "postgres"
)

// Store is a persistent string-keyed byte store. Set replaces the value for
// a key as a single unit: readers observe either the old or the new value.
type Store interface {
	// Get returns the stored value or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	// Driver returns the configured backend driver.
	Driver() Driver
}

var (
	// ErrNotFound is returned by Get when the key holds no value.
	ErrNotFound = errors.New("kv: key not found")
	// ErrQuotaExceeded is returned by Set when the medium is out of capacity.
	ErrQuotaExceeded = errors.New("kv: quota exceeded")
	// ErrInvalidKey is returned for empty or otherwise unusable keys.
	ErrInvalidKey = errors.New("kv: invalid key")
)

// ValidateKey rejects empty or whitespace-only keys.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	return nil
}
