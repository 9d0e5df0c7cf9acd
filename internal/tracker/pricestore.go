package tracker

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kjannette/moverbot/internal/models"
)

// PriceStore holds the last observed price of every tracked symbol.
// Different symbols never contend on the same lock; calls for one symbol
// are serialized and the last write wins.
type PriceStore struct {
	mu    sync.RWMutex
	slots map[string]*priceSlot
}

type priceSlot struct {
	mu  sync.Mutex
	rec models.PriceRecord
}

func NewPriceStore() *PriceStore {
	return &PriceStore{slots: make(map[string]*priceSlot)}
}

func (s *PriceStore) lookup(symbol string) *priceSlot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slots[symbol]
}

func (s *PriceStore) Get(symbol string) (models.PriceRecord, bool) {
	slot := s.lookup(symbol)
	if slot == nil {
		return models.PriceRecord{}, false
	}
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.rec, true
}

// Update overwrites the record for symbol. Non-positive prices are rejected.
func (s *PriceStore) Update(symbol string, price decimal.Decimal, ts time.Time) error {
	if !price.IsPositive() {
		return fmt.Errorf("%w: %s price %s", models.ErrInvalidPrice, symbol, price)
	}

	slot := s.lookup(symbol)
	if slot == nil {
		s.mu.Lock()
		slot = s.slots[symbol]
		if slot == nil {
			slot = &priceSlot{}
			s.slots[symbol] = slot
		}
		s.mu.Unlock()
	}

	slot.mu.Lock()
	slot.rec = models.PriceRecord{Symbol: symbol, Price: price, ObservedAt: ts}
	slot.mu.Unlock()
	return nil
}

func (s *PriceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}

// Snapshot returns a copy of every record, ordered by symbol.
func (s *PriceStore) Snapshot() []models.PriceRecord {
	s.mu.RLock()
	slots := make([]*priceSlot, 0, len(s.slots))
	for _, slot := range s.slots {
		slots = append(slots, slot)
	}
	s.mu.RUnlock()

	out := make([]models.PriceRecord, 0, len(slots))
	for _, slot := range slots {
		slot.mu.Lock()
		out = append(out, slot.rec)
		slot.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
