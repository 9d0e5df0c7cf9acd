package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/buntdb"

	"github.com/kjannette/moverbot/internal/models"
)

type BuntStore struct {
	db *buntdb.DB
}

// OpenBuntStore opens (or creates) a buntdb file. ":memory:" gives an
// in-process store.
func OpenBuntStore(path string) (*BuntStore, error) {
	bdb, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open buntdb: %w", models.ErrPersistence, err)
	}
	return &BuntStore{db: bdb}, nil
}

func (b *BuntStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	var value string
	err := b.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if errors.Is(err, buntdb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: load %s: %w", models.ErrPersistence, key, err)
	}
	return []byte(value), true, nil
}

func (b *BuntStore) Save(_ context.Context, key string, data []byte) error {
	err := b.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(data), nil)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: save %s: %w", models.ErrPersistence, key, err)
	}
	return nil
}

func (b *BuntStore) Close() error {
	return b.db.Close()
}
