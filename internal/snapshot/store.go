// Package snapshot persists small named blobs (exclusion list, valid
// pairs) so they survive restarts. Every backend stores whole values under
// a key; there is no partial update.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/kjannette/moverbot/internal/config"
	"github.com/kjannette/moverbot/internal/db"
	"github.com/kjannette/moverbot/internal/models"
)

const (
	KeyExclusions = "exclusions"
	KeyValidPairs = "valid_pairs"
)

type Store interface {
	// Load returns ok=false when the key has never been saved.
	Load(ctx context.Context, key string) (data []byte, ok bool, err error)
	Save(ctx context.Context, key string, data []byte) error
	Close() error
}

// New opens the backend selected by SNAPSHOT_BACKEND.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.SnapshotBackend {
	case "", "file":
		return NewFileStore(cfg.DataDir)
	case "bunt":
		return OpenBuntStore(cfg.BuntPath)
	case "redis":
		return NewRedisStore(ctx, RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	case "postgres":
		pool, err := db.Connect(ctx, cfg.DSN(), cfg.DBMaxConns)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrPersistence, err)
		}
		if err := db.TestConnection(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("%w: %w", models.ErrPersistence, err)
		}
		st := NewPGStore(pool, true)
		if err := st.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown snapshot backend %q", cfg.SnapshotBackend)
	}
}

// setDoc is the persisted form of a symbol set.
type setDoc struct {
	Items     []string  `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SaveSet writes items sorted, so equal sets produce equal snapshots.
func SaveSet(ctx context.Context, s Store, key string, items []string, at time.Time) error {
	sorted := append([]string(nil), items...)
	sort.Strings(sorted)
	data, err := json.Marshal(setDoc{Items: sorted, UpdatedAt: at.UTC()})
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", models.ErrPersistence, key, err)
	}
	return s.Save(ctx, key, data)
}

// LoadSet reads a set written by SaveSet. A bare JSON array is accepted
// too, which is how hand-edited blacklist files usually look.
func LoadSet(ctx context.Context, s Store, key string) (items []string, at time.Time, ok bool, err error) {
	data, ok, err := s.Load(ctx, key)
	if err != nil || !ok {
		return nil, time.Time{}, ok, err
	}

	var doc setDoc
	if err := json.Unmarshal(data, &doc); err == nil {
		return doc.Items, doc.UpdatedAt, true, nil
	}
	var bare []string
	if err := json.Unmarshal(data, &bare); err != nil {
		return nil, time.Time{}, false, fmt.Errorf("%w: decode %s: %w", models.ErrPersistence, key, err)
	}
	return bare, time.Time{}, true, nil
}
