// Package store provides the durable blob backends that hold file system
// snapshots, plus the envelope codec used to write them.
package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get when the key has never been written.
	ErrNotFound = errors.New("store: key not found")
	// ErrCorrupt is returned by Decode when a blob fails validation.
	ErrCorrupt = errors.New("store: corrupt blob")
)

// Backend is a durable key/blob store.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, blob []byte) error
	Close() error
}

// Open returns a buntdb backend for path, or an in-memory backend when path is empty.
func Open(path string) (Backend, error) {
	if path == "" {
		return NewMemory(), nil
	}
	b, err := NewBunt(path)
	if err != nil {
		return nil, fmt.Errorf("open store %q: %w", path, err)
	}
	return b, nil
}

// IsNotFound reports whether err means the key is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
