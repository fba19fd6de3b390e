package store

import (
	"context"
	"errors"

	"github.com/tidwall/buntdb"
)

// Bunt stores blobs in a buntdb database file. The path ":memory:" gives a
// non-persistent database.
type Bunt struct {
	db *buntdb.DB
}

var _ Backend = (*Bunt)(nil)

func NewBunt(path string) (*Bunt, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, err
	}
	return &Bunt{db: db}, nil
}

func (b *Bunt) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var blob []byte
	err := b.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		blob = []byte(v)
		return nil
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return blob, err
}

func (b *Bunt) Put(ctx context.Context, key string, blob []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(blob), nil)
		return err
	})
}

func (b *Bunt) Close() error {
	return b.db.Close()
}
