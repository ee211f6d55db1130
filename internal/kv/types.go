// Package kv re-exports the key-value abstractions and selects a backend
// implementation from configuration.
package kv

import (
	"virgil/internal/kv/core"
)

type (
	// Driver identifies a key-value backend driver.
	Driver = core.Driver
	// Store is the interface for key-value backends.
	Store = core.Store
)

const (
	// DriverMemory is the in-process driver.
	DriverMemory = core.DriverMemory
	// DriverFilesystem is the local filesystem driver.
	DriverFilesystem = core.DriverFilesystem
	// DriverS3 is the S3-compatible driver.
	DriverS3 = core.DriverS3
	// DriverSQLite is the embedded SQLite driver.
	DriverSQLite = core.DriverSQLite
	// DriverPostgres is the Postgres driver.
	DriverPostgres = core.DriverPostgres
)

var (
	// ErrNotFound indicates the key holds no value.
	ErrNotFound = core.ErrNotFound
	// ErrQuotaExceeded indicates the medium rejected a write for capacity.
	ErrQuotaExceeded = core.ErrQuotaExceeded
	// ErrInvalidKey indicates an empty or unusable key.
	ErrInvalidKey = core.ErrInvalidKey
)

// ValidateKey rejects empty or whitespace-only keys with ErrInvalidKey.
func ValidateKey(key string) error { return core.ValidateKey(key) }
