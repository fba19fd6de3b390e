package store

import (
	"context"

	"github.com/puzpuzpuz/xsync/v4"
)

// Memory keeps blobs in process memory. Used for tests and throwaway sessions.
type Memory struct {
	blobs *xsync.Map[string, []byte]
}

var _ Backend = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{blobs: xsync.NewMap[string, []byte]()}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blob, ok := m.blobs.Load(key)
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), blob...), nil
}

func (m *Memory) Put(ctx context.Context, key string, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.blobs.Store(key, append([]byte(nil), blob...))
	return nil
}

func (m *Memory) Close() error { return nil }
