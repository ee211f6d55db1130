package collection

import (
	"errors"
	"fmt"

	"virgil/internal/kv"
)

// Error classes. Every typed error below matches exactly one class with
// errors.Is, plus whatever underlying cause it carries.
var (
	ErrSerialization      = errors.New("collection: serialization failed")
	ErrDeserialization    = errors.New("collection: stored data is corrupt")
	ErrStoreWrite         = errors.New("collection: store rejected write")
	ErrStoreRead          = errors.New("collection: store read failed")
	ErrCollectionNotFound = errors.New("collection: not found")
	ErrRecordNotFound     = errors.New("collection: record not found")
	// ErrInvalidKey is returned for empty keys before the backend is touched.
	ErrInvalidKey = kv.ErrInvalidKey
)

// SerializationError reports a value that cannot be encoded as a collection.
type SerializationError struct {
	Key string
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialize %s: %v", e.Key, e.Err)
}

func (e *SerializationError) Unwrap() []error { return []error{ErrSerialization, e.Err} }

// DeserializationError reports stored bytes that are not a valid collection
// of the expected shape.
type DeserializationError struct {
	Key string
	Err error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("deserialize %s: %v", e.Key, e.Err)
}

func (e *DeserializationError) Unwrap() []error { return []error{ErrDeserialization, e.Err} }

// StoreWriteError reports a write or removal rejected by the backend, such
// as kv.ErrQuotaExceeded.
type StoreWriteError struct {
	Key string
	Err error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Key, e.Err)
}

func (e *StoreWriteError) Unwrap() []error { return []error{ErrStoreWrite, e.Err} }

// StoreReadError reports a backend read failure other than a missing key.
type StoreReadError struct {
	Key string
	Err error
}

func (e *StoreReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Key, e.Err)
}

func (e *StoreReadError) Unwrap() []error { return []error{ErrStoreRead, e.Err} }

// CollectionNotFoundError is returned when Update, Delete or Get target a
// key that holds no collection.
type CollectionNotFoundError struct {
	Key string
}

func (e *CollectionNotFoundError) Error() string {
	return fmt.Sprintf("no collection stored under %s", e.Key)
}

func (e *CollectionNotFoundError) Unwrap() error { return ErrCollectionNotFound }

// RecordNotFoundError is returned when Update or Get cannot find id in a
// present collection.
type RecordNotFoundError struct {
	Key string
	ID  string
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("record %s not found in %s", e.ID, e.Key)
}

func (e *RecordNotFoundError) Unwrap() error { return ErrRecordNotFound }

// DuplicateIDError is the cause inside a SerializationError when a
// collection would hold two records with the same id.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate record id %q", e.ID)
}
