// Package tracker keeps per-symbol price state across poll cycles, decides
// when a move is worth an alert and rolls moves up into a top-movers
// window.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kjannette/moverbot/internal/alertguard"
	"github.com/kjannette/moverbot/internal/logx"
	"github.com/kjannette/moverbot/internal/models"
	"github.com/kjannette/moverbot/internal/notifications"
)

type PriceFeed interface {
	FetchPrice(ctx context.Context, pair string) (decimal.Decimal, error)
}

type CandidateFeed interface {
	FetchCandidates(ctx context.Context) ([]models.Candidate, error)
}

// VolumeFeed reports the rolling 24h quote volume of every pair.
type VolumeFeed interface {
	FetchQuoteVolumes(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Diagnoser is optionally implemented by a PriceFeed with its own probe.
type Diagnoser interface {
	Diagnose(ctx context.Context) models.ExchangeHealth
}

type Deps struct {
	Candidates CandidateFeed
	Prices     PriceFeed
	Pairs      *PairsCache
	Volumes    VolumeFeed
	Exclusions *ExclusionRegistry
	Guard      *alertguard.Guardian
	Notifier   notifications.Notifier
}

type Options struct {
	Quote        string
	QuoteAssets  []string
	Threshold    float64
	Workers      int
	FetchTimeout time.Duration
	SendGap      time.Duration
	ChannelID    string
	MoversWindow time.Duration
	MoversTopN   int
	Location     *time.Location

	// MinQuoteVolume drops pairs that traded less over 24h. Zero disables
	// the floor.
	MinQuoteVolume decimal.Decimal
}

type Tracker struct {
	deps    Deps
	opts    Options
	prices  *PriceStore
	movers  *MoversWindow
	log     *zap.Logger
	now     func() time.Time
	running atomic.Bool

	mu        sync.RWMutex
	lastPoll  time.Time
	lastCycle *models.CycleReport
}

func New(deps Deps, opts Options) *Tracker {
	if opts.Quote == "" {
		opts.Quote = "USDT"
	}
	if opts.Threshold <= 0 {
		opts.Threshold = 1.5
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	if opts.MoversWindow <= 0 {
		opts.MoversWindow = time.Hour
	}
	if opts.MoversTopN <= 0 {
		opts.MoversTopN = 5
	}
	if deps.Guard == nil {
		deps.Guard = alertguard.NewGuardian(alertguard.Limits{})
	}
	return &Tracker{
		deps:   deps,
		opts:   opts,
		prices: NewPriceStore(),
		movers: NewMoversWindow(),
		log:    logx.Named("tracker"),
		now:    time.Now,
	}
}

type pollResult struct {
	candidate models.Candidate
	price     decimal.Decimal
	event     *models.ChangeEvent
	decision  models.AlertDecision
	err       error
}

// RunCycle performs one poll: fetch candidates, filter them, poll every
// accepted symbol, evaluate moves and send alerts. Only one cycle runs at
// a time; a concurrent call returns ErrCycleInProgress. A cycle that could
// not obtain candidates or pairs is reported with outcome skip.
func (t *Tracker) RunCycle(ctx context.Context) (*models.CycleReport, error) {
	if !t.running.CompareAndSwap(false, true) {
		return nil, models.ErrCycleInProgress
	}
	defer t.running.Store(false)

	rep := &models.CycleReport{ID: uuid.NewString(), StartedAt: t.now()}
	log := t.log.With(zap.String("cycle", rep.ID))
	defer t.finish(rep, log)

	candidates, err := t.deps.Candidates.FetchCandidates(ctx)
	if err != nil {
		return t.skip(rep, fmt.Errorf("candidates: %w", err))
	}
	rep.Candidates = len(candidates)

	pairs, err := t.deps.Pairs.Get(ctx, t.now())
	if err != nil {
		return t.skip(rep, err)
	}

	res := Filter(candidates, pairs, t.deps.Exclusions, t.opts.Quote, t.opts.QuoteAssets)
	rep.Accepted = len(res.Accepted)
	if len(res.NewlyExcluded) > 0 {
		rep.NewlyExcluded = res.NewlyExcluded
		if _, err := t.deps.Exclusions.Merge(ctx, res.NewlyExcluded); err != nil {
			log.Warn("cycle.exclusions_not_persisted", zap.Error(err))
		}
	}

	accepted := t.applyVolumeFloor(ctx, res.Accepted, rep, log)
	results := t.pollAll(ctx, accepted)

	var alerts []pollResult
	for _, r := range results {
		switch {
		case r.err != nil:
			rep.Skipped++
			log.Warn("cycle.symbol_skipped",
				zap.String("symbol", r.candidate.Symbol),
				zap.String("kind", models.Classify(r.err).Error()),
				zap.Error(r.err))
		case r.event == nil:
			rep.Polled++
			rep.Seeded++
		default:
			rep.Polled++
			if r.decision.ShouldAlert {
				alerts = append(alerts, r)
			}
		}
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].event.Magnitude() > alerts[j].event.Magnitude()
	})
	t.sendAlerts(ctx, alerts, rep, log)

	t.mu.Lock()
	t.lastPoll = t.now()
	t.mu.Unlock()

	if err := ctx.Err(); err != nil {
		rep.Outcome = models.OutcomeError
		rep.Error = err.Error()
		return rep, err
	}
	rep.Outcome = models.OutcomeSuccess
	return rep, nil
}

// applyVolumeFloor drops low-volume pairs for this cycle. When the 24h
// stats are unavailable the floor is not applied.
func (t *Tracker) applyVolumeFloor(ctx context.Context, accepted []models.Candidate, rep *models.CycleReport, log *zap.Logger) []models.Candidate {
	if t.deps.Volumes == nil || !t.opts.MinQuoteVolume.IsPositive() || len(accepted) == 0 {
		return accepted
	}
	volumes, err := t.deps.Volumes.FetchQuoteVolumes(ctx)
	if err != nil {
		log.Warn("cycle.volume_floor_skipped", zap.Error(err))
		return accepted
	}
	kept, low := VolumeFloor(accepted, volumes, t.opts.MinQuoteVolume, t.opts.Quote)
	rep.LowVolume = len(low)
	if len(low) > 0 {
		log.Debug("cycle.low_volume", zap.Strings("symbols", low))
	}
	return kept
}

func (t *Tracker) skip(rep *models.CycleReport, err error) (*models.CycleReport, error) {
	rep.Outcome = models.OutcomeSkip
	rep.Error = err.Error()
	if !errors.Is(err, models.ErrDataUnavailable) {
		err = fmt.Errorf("%w: %w", models.ErrDataUnavailable, err)
	}
	return rep, err
}

func (t *Tracker) finish(rep *models.CycleReport, log *zap.Logger) {
	rep.FinishedAt = t.now()

	t.mu.Lock()
	cp := *rep
	t.lastCycle = &cp
	t.mu.Unlock()

	log.Info("cycle.finished",
		zap.String("outcome", string(rep.Outcome)),
		zap.Int("candidates", rep.Candidates),
		zap.Int("accepted", rep.Accepted),
		zap.Int("lowVolume", rep.LowVolume),
		zap.Int("newlyExcluded", len(rep.NewlyExcluded)),
		zap.Int("polled", rep.Polled),
		zap.Int("seeded", rep.Seeded),
		zap.Int("skipped", rep.Skipped),
		zap.Int("alerts", rep.Alerts),
		zap.Int("suppressed", rep.Suppressed),
		zap.Duration("duration", rep.Duration()))
}

// pollAll fetches prices on a bounded worker pool.
func (t *Tracker) pollAll(ctx context.Context, accepted []models.Candidate) []pollResult {
	jobs := make(chan models.Candidate)
	out := make(chan pollResult, len(accepted))

	var wg sync.WaitGroup
	for i := 0; i < t.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				out <- t.pollOne(ctx, c)
			}
		}()
	}

feed:
	for _, c := range accepted {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- c:
		}
	}
	close(jobs)
	wg.Wait()
	close(out)

	results := make([]pollResult, 0, len(accepted))
	for r := range out {
		results = append(results, r)
	}
	return results
}

// pollOne reads the previous record, evaluates, then writes the new price.
func (t *Tracker) pollOne(ctx context.Context, c models.Candidate) pollResult {
	res := pollResult{candidate: c}

	fctx, cancel := context.WithTimeout(ctx, t.opts.FetchTimeout)
	defer cancel()

	price, err := t.deps.Prices.FetchPrice(fctx, PairFor(c.Symbol, t.opts.Quote))
	if err != nil {
		res.err = err
		return res
	}
	if !price.IsPositive() {
		res.err = fmt.Errorf("%w: %s reported %s", models.ErrInvalidPrice, c.Symbol, price)
		return res
	}
	res.price = price

	now := t.now()
	var prev *models.PriceRecord
	if rec, ok := t.prices.Get(c.Symbol); ok {
		prev = &rec
	}

	res.event, res.decision = Evaluate(c.Symbol, prev, price, now, t.opts.Threshold)
	if err := t.prices.Update(c.Symbol, price, now); err != nil {
		res.err = err
		return res
	}
	if res.event != nil {
		t.movers.Record(*res.event)
	}
	return res
}

func (t *Tracker) sendAlerts(ctx context.Context, alerts []pollResult, rep *models.CycleReport, log *zap.Logger) {
	if t.deps.Notifier == nil {
		return
	}

	for _, a := range alerts {
		sym := a.event.Symbol
		if err := t.deps.Guard.Check(sym, rep.Alerts); err != nil {
			rep.Suppressed++
			log.Info("alert.suppressed", zap.String("symbol", sym), zap.Error(err))
			continue
		}

		if rep.Alerts > 0 && t.opts.SendGap > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(t.opts.SendGap):
			}
		}

		msg := notifications.FormatAlert(models.Alert{
			Event:       *a.event,
			Direction:   a.decision.Direction,
			Price:       a.price,
			AlertsToday: t.deps.Guard.Count(sym) + 1,
		}, t.opts.Location)

		if err := t.deps.Notifier.Send(ctx, t.opts.ChannelID, msg); err != nil {
			log.Error("alert.send_failed", zap.String("symbol", sym), zap.Error(err))
			continue
		}
		count := t.deps.Guard.Record(sym)
		rep.Alerts++
		log.Info("alert.sent",
			zap.String("symbol", sym),
			zap.Float64("changePercent", a.event.ChangePercent),
			zap.Int("alertsToday", count))
	}
}

// FlushMovers returns the top movers of the window and empties it.
func (t *Tracker) FlushMovers(n int) []models.ChangeEvent {
	return t.movers.FlushTop(n, t.now(), t.opts.MoversWindow)
}

// TopMovers peeks at the current window without consuming it.
func (t *Tracker) TopMovers(n int) []models.ChangeEvent {
	return t.movers.PeekTop(n, t.now(), t.opts.MoversWindow)
}

func (t *Tracker) CurrentTrackedCount() int {
	return t.prices.Len()
}

func (t *Tracker) LastPollTime() (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastPoll, !t.lastPoll.IsZero()
}

func (t *Tracker) LastCycle() (models.CycleReport, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.lastCycle == nil {
		return models.CycleReport{}, false
	}
	return *t.lastCycle, true
}

func (t *Tracker) ExclusionList() []string {
	return t.deps.Exclusions.List()
}

// Price returns the last observed record of symbol.
func (t *Tracker) Price(symbol string) (models.PriceRecord, bool) {
	return t.prices.Get(normalize(symbol))
}

func (t *Tracker) Prices() []models.PriceRecord {
	return t.prices.Snapshot()
}

// ResetDaily clears the per-symbol alert counters.
func (t *Tracker) ResetDaily() int {
	total := t.deps.Guard.Reset()
	t.log.Info("alerts.daily_reset", zap.Int("alertsSent", total))
	return total
}

func (t *Tracker) Status() models.Status {
	st := models.Status{
		TrackedCount:  t.prices.Len(),
		ExcludedCount: t.deps.Exclusions.Len(),
		TopMovers:     t.TopMovers(t.opts.MoversTopN),
		CycleRunning:  t.running.Load(),
	}
	if lp, ok := t.LastPollTime(); ok {
		st.LastPoll = &lp
	}
	if lc, ok := t.LastCycle(); ok {
		st.LastCycle = &lc
	}
	return st
}

// Diagnose probes the price feed so "no data" can be told apart from
// "network down".
func (t *Tracker) Diagnose(ctx context.Context) models.ExchangeHealth {
	if d, ok := t.deps.Prices.(Diagnoser); ok {
		return d.Diagnose(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, t.opts.FetchTimeout)
	defer cancel()
	price, err := t.deps.Prices.FetchPrice(ctx, PairFor("btc", t.opts.Quote))
	switch {
	case err == nil && price.IsPositive():
		return models.ExchangeOK
	case err != nil && errors.Is(models.Classify(err), models.ErrTransientNetwork):
		return models.ExchangeNetworkDown
	default:
		return models.ExchangeNoData
	}
}
