package tracker

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/kjannette/moverbot/internal/models"
)

type fakeCandidates struct {
	mu    sync.Mutex
	coins []models.Candidate
	err   error
}

func (f *fakeCandidates) FetchCandidates(context.Context) ([]models.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.coins, f.err
}

type fakePrices struct {
	mu     sync.Mutex
	prices map[string]float64
	errs   map[string]error
	calls  int
	// block, when set, holds every fetch until closed; entered is
	// signalled on the first blocked call.
	block   chan struct{}
	entered chan struct{}
	once    sync.Once
}

func newFakePrices(prices map[string]float64) *fakePrices {
	return &fakePrices{prices: prices, errs: map[string]error{}}
}

func (f *fakePrices) set(pair string, price float64) {
	f.mu.Lock()
	f.prices[pair] = price
	f.mu.Unlock()
}

func (f *fakePrices) FetchPrice(ctx context.Context, pair string) (decimal.Decimal, error) {
	if f.block != nil {
		f.once.Do(func() { close(f.entered) })
		select {
		case <-f.block:
		case <-ctx.Done():
			return decimal.Zero, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[pair]; ok {
		return decimal.Zero, err
	}
	p, ok := f.prices[pair]
	if !ok {
		return decimal.Zero, models.ErrDataUnavailable
	}
	return decimal.NewFromFloat(p), nil
}

type fakeVolumes struct {
	mu      sync.Mutex
	volumes map[string]decimal.Decimal
	err     error
	calls   int
}

func (f *fakeVolumes) FetchQuoteVolumes(context.Context) (map[string]decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.volumes, f.err
}

type fakePairs struct {
	mu    sync.Mutex
	pairs map[string]struct{}
	err   error
	calls int
}

func (f *fakePairs) FetchValidPairs(context.Context) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.pairs, nil
}

func (f *fakePairs) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, _ string, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.msgs)
}

// countingStore is an in-memory snapshot.Store that counts saves.
type countingStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	saves   int
	saveErr error
}

func newCountingStore() *countingStore {
	return &countingStore{data: map[string][]byte{}}
}

func (s *countingStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[key]
	return d, ok, nil
}

func (s *countingStore) Save(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.data[key] = append([]byte(nil), data...)
	return nil
}

func (s *countingStore) Close() error { return nil }

var errBoom = errors.New("boom")
