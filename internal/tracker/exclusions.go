package tracker

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/StudioSol/set"
	"go.uber.org/zap"

	"github.com/kjannette/moverbot/internal/logx"
	"github.com/kjannette/moverbot/internal/snapshot"
)

// ExclusionReader answers whether a base symbol is known to have no pair.
type ExclusionReader interface {
	Contains(symbol string) bool
}

// ExclusionRegistry is the persisted denylist of base symbols. It only
// grows during a run.
type ExclusionRegistry struct {
	store snapshot.Store
	log   *zap.Logger

	mu      sync.RWMutex
	symbols *set.LinkedHashSetString
}

func NewExclusionRegistry(store snapshot.Store) *ExclusionRegistry {
	return &ExclusionRegistry{
		store:   store,
		log:     logx.Named("exclusions"),
		symbols: set.NewLinkedHashSetString(),
	}
}

// Load unions the persisted list into memory. A missing snapshot is not an
// error.
func (r *ExclusionRegistry) Load(ctx context.Context) error {
	items, _, ok, err := snapshot.LoadSet(ctx, r.store, snapshot.KeyExclusions)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	r.mu.Lock()
	for _, s := range items {
		if s = normalize(s); s != "" {
			r.symbols.Add(s)
		}
	}
	n := r.symbols.Length()
	r.mu.Unlock()

	r.log.Info("exclusions.loaded", zap.Int("count", n))
	return nil
}

func (r *ExclusionRegistry) Contains(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.symbols.InArray(normalize(symbol))
}

// Merge adds symbols and persists the registry when anything new was added.
// A failed save leaves the in-memory set updated and returns the error.
func (r *ExclusionRegistry) Merge(ctx context.Context, symbols []string) (int, error) {
	r.mu.Lock()
	added := 0
	for _, s := range symbols {
		s = normalize(s)
		if s == "" || r.symbols.InArray(s) {
			continue
		}
		r.symbols.Add(s)
		added++
	}
	var items []string
	if added > 0 {
		items = r.listLocked()
	}
	r.mu.Unlock()

	if added == 0 {
		return 0, nil
	}

	r.log.Info("exclusions.added", zap.Int("added", added), zap.Int("total", len(items)))
	if err := snapshot.SaveSet(ctx, r.store, snapshot.KeyExclusions, items, time.Now()); err != nil {
		r.log.Error("exclusions.save_failed", zap.Error(err))
		return added, err
	}
	return added, nil
}

// List returns the excluded symbols sorted alphabetically.
func (r *ExclusionRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked()
}

func (r *ExclusionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.symbols.Length()
}

func (r *ExclusionRegistry) listLocked() []string {
	out := make([]string, 0, r.symbols.Length())
	for s := range r.symbols.Iter() {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func normalize(symbol string) string {
	return strings.ToLower(strings.TrimSpace(symbol))
}
