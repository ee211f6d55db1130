// Package fs implements a key-value Store on the local filesystem.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"virgil/internal/kv/core"
)

// Store maps each key to one file under root. Writes go to a temp file in
// the same directory and are renamed into place, so a reader never sees a
// partially written value. Not safe for multiple processes writing one key.
type Store struct {
	root string
}

// New returns a filesystem-backed store rooted at path, creating it if needed.
func New(root string) (*Store, error) {
	if root == "" {
		root = "./virgildata"
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create root: %w", err)
	}
	return &Store{root: root}, nil
}

// Driver returns the backend driver identifier.
func (s *Store) Driver() core.Driver { return core.DriverFilesystem }

// Root returns the directory holding the stored values.
func (s *Store) Root() string { return s.root }

// sanitizeKey ensures key doesn't escape root. It rejects '..' segments and
// absolute paths; '..' inside a segment such as "a..b" is allowed.
func sanitizeKey(key string) (string, error) {
	if err := core.ValidateKey(key); err != nil {
		return "", err
	}
	for _, seg := range strings.Split(filepath.ToSlash(key), "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: '..' path segment", core.ErrInvalidKey)
		}
	}
	if strings.HasPrefix(key, "/") || filepath.IsAbs(key) {
		return "", fmt.Errorf("%w: absolute key", core.ErrInvalidKey)
	}
	clean := filepath.ToSlash(filepath.Clean(key))
	if clean == "." || strings.HasPrefix(filepath.Base(clean), ".tmp-") {
		return "", fmt.Errorf("%w: reserved path", core.ErrInvalidKey)
	}
	return clean, nil
}

func (s *Store) pathFor(key string) (string, error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(k)), nil
}

// Get reads the file for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.pathFor(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Set writes value through a synced temp file and renames it over the target.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		return translateWriteErr(err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return translateWriteErr(err)
	}
	if err := tmp.Close(); err != nil {
		return translateWriteErr(err)
	}
	return os.Rename(tmp.Name(), path)
}

// Remove deletes the file for key if it exists.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// translateWriteErr maps out-of-space conditions onto core.ErrQuotaExceeded.
func translateWriteErr(err error) error {
	if errors.Is(err, syscall.ENOSPC) {
		return fmt.Errorf("%w: %v", core.ErrQuotaExceeded, err)
	}
	return err
}
