// Package collection persists ordered collections of identified records as
// JSON arrays in a key-value store.
//
// Every operation reads from and writes to the backend; nothing is cached
// between calls. Update, Delete and Append are read-modify-write cycles that
// are not serialized across callers: two concurrent mutations of the same key
// can both read the old collection, and the later write silently replaces
// the earlier one. Callers that mutate one key from several goroutines must
// serialize those calls themselves.
package collection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"virgil/internal/kv"
	"virgil/pkg/domain"
)

const (
	opSave   = "save"
	opLoad   = "load"
	opUpdate = "update"
	opDelete = "delete"
	opClear  = "clear"
	opGet    = "get"
	opAppend = "append"
)

// Store provides typed CRUD over collections of T held in a kv.Store.
type Store[T domain.Record] struct {
	backend kv.Store
	options
}

// New returns a Store writing through backend.
func New[T domain.Record](backend kv.Store, opts ...Option) *Store[T] {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[T]{backend: backend, options: o}
}

// Save replaces the collection under key with records. A nil slice is
// stored as an empty collection. On failure the previous value is untouched.
func (s *Store[T]) Save(ctx context.Context, key string, records []T) error {
	return s.run(ctx, opSave, key, "", func(ctx context.Context) error {
		docs, err := encodeRecords(key, records)
		if err != nil {
			return err
		}
		return s.write(ctx, key, docs, records)
	})
}

// Load returns the collection under key. ok is false when the key has never
// been saved or was cleared; a present but empty collection returns ok true.
func (s *Store[T]) Load(ctx context.Context, key string) ([]T, bool, error) {
	var (
		records []T
		ok      bool
	)
	err := s.run(ctx, opLoad, key, "", func(ctx context.Context) error {
		var err error
		_, records, ok, err = s.read(ctx, key)
		var de *DeserializationError
		if errors.As(err, &de) && s.policy == TreatCorruptionAsAbsent {
			s.logger.WarnContext(ctx, "treating corrupt collection as absent", "key", key, "error", err)
			records, ok = nil, false
			return nil
		}
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return records, ok, nil
}

// Update shallow-merges patch into the record with the given id and writes
// the collection back. Fields missing from patch keep their stored bytes.
// Each check runs on the merged record before anything is written; the first
// error is returned unchanged. The merged record is returned.
func (s *Store[T]) Update(ctx context.Context, key, id string, patch Patch, checks ...func(T) error) (T, error) {
	var updated T
	err := s.run(ctx, opUpdate, key, id, func(ctx context.Context) error {
		docs, records, err := s.readPresent(ctx, key)
		if err != nil {
			return err
		}
		idx := indexOf(records, id)
		if idx < 0 {
			return &RecordNotFoundError{Key: key, ID: id}
		}
		merged, err := mergeObject(docs[idx], patch)
		if err != nil {
			if errors.Is(err, errNotObject) {
				return &DeserializationError{Key: key, Err: err}
			}
			return &SerializationError{Key: key, Err: err}
		}
		var rec T
		if err := json.Unmarshal(merged, &rec); err != nil {
			return &SerializationError{Key: key, Err: err}
		}
		for _, check := range checks {
			if err := check(rec); err != nil {
				return err
			}
		}
		docs[idx] = merged
		records[idx] = rec
		if err := s.write(ctx, key, docs, records); err != nil {
			return err
		}
		updated = rec
		return nil
	})
	return updated, err
}

// Delete removes every record with the given id and writes the collection
// back. A missing id leaves the collection unchanged and is not an error.
func (s *Store[T]) Delete(ctx context.Context, key, id string) error {
	return s.run(ctx, opDelete, key, id, func(ctx context.Context) error {
		docs, records, err := s.readPresent(ctx, key)
		if err != nil {
			return err
		}
		keptDocs := docs[:0:0]
		kept := records[:0:0]
		for i, rec := range records {
			if rec.RecordID() == id {
				continue
			}
			keptDocs = append(keptDocs, docs[i])
			kept = append(kept, rec)
		}
		return s.write(ctx, key, keptDocs, kept)
	})
}

// Clear removes the collection. Clearing an absent key succeeds.
func (s *Store[T]) Clear(ctx context.Context, key string) error {
	return s.run(ctx, opClear, key, "", func(ctx context.Context) error {
		if err := s.backend.Remove(ctx, key); err != nil {
			return &StoreWriteError{Key: key, Err: err}
		}
		return nil
	})
}

// Get returns the record with the given id.
func (s *Store[T]) Get(ctx context.Context, key, id string) (T, error) {
	var found T
	err := s.run(ctx, opGet, key, id, func(ctx context.Context) error {
		_, records, err := s.readPresent(ctx, key)
		if err != nil {
			return err
		}
		idx := indexOf(records, id)
		if idx < 0 {
			return &RecordNotFoundError{Key: key, ID: id}
		}
		found = records[idx]
		return nil
	})
	return found, err
}

// Append adds records to the end of the collection, creating it when absent.
func (s *Store[T]) Append(ctx context.Context, key string, records ...T) error {
	return s.run(ctx, opAppend, key, "", func(ctx context.Context) error {
		docs, existing, _, err := s.read(ctx, key)
		if err != nil {
			return err
		}
		added, err := encodeRecords(key, records)
		if err != nil {
			return err
		}
		return s.write(ctx, key, append(docs, added...), append(existing, records...))
	})
}

// run validates the key and context, then wraps fn with tracing, metrics and
// failure logging.
func (s *Store[T]) run(ctx context.Context, op, key, id string, fn func(context.Context) error) error {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, op)
	err := kv.ValidateKey(key)
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		err = fn(ctx)
	}
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	if err != nil {
		attrs := []any{"op", op, "key", key, "error", err}
		if id != "" {
			attrs = append(attrs, "id", id)
		}
		s.logger.Log(ctx, levelFor(err), "collection operation failed", attrs...)
	}
	return err
}

func levelFor(err error) slog.Level {
	if errors.Is(err, ErrCollectionNotFound) || errors.Is(err, ErrRecordNotFound) {
		return slog.LevelWarn
	}
	return slog.LevelError
}

// read loads the raw record documents and their decoded form. ok is false
// for a missing key, an empty value or a literal JSON null.
func (s *Store[T]) read(ctx context.Context, key string) ([]json.RawMessage, []T, bool, error) {
	payload, err := s.backend.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, false, &StoreReadError{Key: key, Err: err}
	}
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil, false, nil
	}
	var docs []json.RawMessage
	if err := json.Unmarshal(trimmed, &docs); err != nil {
		return nil, nil, false, &DeserializationError{Key: key, Err: err}
	}
	records := make([]T, len(docs))
	for i, doc := range docs {
		if err := json.Unmarshal(doc, &records[i]); err != nil {
			return nil, nil, false, &DeserializationError{Key: key, Err: err}
		}
	}
	if docs == nil {
		docs = []json.RawMessage{}
	}
	return docs, records, true, nil
}

func (s *Store[T]) readPresent(ctx context.Context, key string) ([]json.RawMessage, []T, error) {
	docs, records, ok, err := s.read(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, &CollectionNotFoundError{Key: key}
	}
	return docs, records, nil
}

// write enforces id uniqueness and stores docs as one JSON array.
func (s *Store[T]) write(ctx context.Context, key string, docs []json.RawMessage, records []T) error {
	if err := checkUnique(records); err != nil {
		return &SerializationError{Key: key, Err: err}
	}
	if docs == nil {
		docs = []json.RawMessage{}
	}
	payload, err := json.Marshal(docs)
	if err != nil {
		return &SerializationError{Key: key, Err: err}
	}
	if err := s.backend.Set(ctx, key, payload); err != nil {
		return &StoreWriteError{Key: key, Err: err}
	}
	return nil
}

func encodeRecords[T domain.Record](key string, records []T) ([]json.RawMessage, error) {
	docs := make([]json.RawMessage, len(records))
	for i, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			return nil, &SerializationError{Key: key, Err: err}
		}
		docs[i] = raw
	}
	return docs, nil
}

func checkUnique[T domain.Record](records []T) error {
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		id := rec.RecordID()
		if _, dup := seen[id]; dup {
			return &DuplicateIDError{ID: id}
		}
		seen[id] = struct{}{}
	}
	return nil
}

func indexOf[T domain.Record](records []T, id string) int {
	for i, rec := range records {
		if rec.RecordID() == id {
			return i
		}
	}
	return -1
}
