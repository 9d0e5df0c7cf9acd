package bot

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kjannette/moverbot/internal/alertguard"
	"github.com/kjannette/moverbot/internal/config"
	"github.com/kjannette/moverbot/internal/external"
	"github.com/kjannette/moverbot/internal/logx"
	"github.com/kjannette/moverbot/internal/models"
	"github.com/kjannette/moverbot/internal/notifications"
	"github.com/kjannette/moverbot/internal/scheduler"
	"github.com/kjannette/moverbot/internal/snapshot"
	"github.com/kjannette/moverbot/internal/tracker"
)

const (
	TaskPoll       = "poll"
	TaskMovers     = "movers"
	TaskDailyReset = "daily-reset"
)

// Service owns the tracker, the notifiers and the periodic tasks.
type Service struct {
	cfg      *config.Config
	loc      *time.Location
	store    snapshot.Store
	tracker  *tracker.Tracker
	notifier notifications.Notifier
	telegram *notifications.Telegram
	sched    *scheduler.Scheduler
	log      *zap.Logger

	mu      sync.Mutex
	running bool
}

// NewService opens the snapshot store, builds the notifiers selected by
// the config and restores persisted state.
func NewService(ctx context.Context, cfg *config.Config) (*Service, error) {
	store, err := snapshot.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("snapshot store: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		store.Close()
		return nil, err
	}

	var (
		multi notifications.Multi
		tg    *notifications.Telegram
	)
	if cfg.TelegramBotToken != "" {
		tg, err = notifications.NewTelegram(notifications.TelegramOptions{
			Token:        cfg.TelegramBotToken,
			BotName:      cfg.BotName,
			Threshold:    cfg.AlertThresholdPercent,
			PollInterval: cfg.PollInterval,
			MoversTopN:   cfg.MoversTopN,
			MoversWindow: cfg.MoversWindow,
			Location:     loc,
		})
		if err != nil {
			store.Close()
			return nil, err
		}
		multi = append(multi, tg)
	}
	if cfg.WebhookURL != "" {
		multi = append(multi, notifications.NewSender(cfg.WebhookURL, cfg.BotName))
	}

	var notifier notifications.Notifier = multi
	if len(multi) == 1 {
		notifier = multi[0]
	}

	s, err := newService(ctx, cfg, store, notifier, tg)
	if err != nil {
		store.Close()
		return nil, err
	}
	return s, nil
}

func newService(ctx context.Context, cfg *config.Config, store snapshot.Store,
	notifier notifications.Notifier, tg *notifications.Telegram,
) (*Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	log := logx.Named("bot")

	exclusions := tracker.NewExclusionRegistry(store)
	if err := exclusions.Load(ctx); err != nil {
		// Symbols get re-excluded on the next cycle.
		log.Warn("exclusions.load_failed", zap.Error(err))
	}

	binance := external.NewBinanceClient(external.BinanceOptions{
		BaseURL: cfg.BinanceAPIURL,
		Timeout: cfg.PriceFetchTimeout,
	})
	pairs := tracker.NewPairsCache(binance, store, cfg.PairsCacheTTL)
	if ok, err := pairs.SeedFromSnapshot(ctx); err != nil {
		log.Warn("pairs.seed_failed", zap.Error(err))
	} else if ok {
		log.Info("pairs.seeded_from_snapshot")
	}

	coingecko := external.NewCoinGeckoClient(external.CoinGeckoOptions{
		BaseURL:   cfg.CoinGeckoAPIURL,
		Pages:     cfg.CandidatePages,
		PerPage:   cfg.CandidatePerPage,
		PagePause: cfg.CandidatePagePause,
	})

	tr := tracker.New(tracker.Deps{
		Candidates: coingecko,
		Prices:     binance,
		Pairs:      pairs,
		Exclusions: exclusions,
		Guard: alertguard.NewGuardian(alertguard.Limits{
			MaxPerSymbolPerDay: cfg.MaxAlertsPerSymbolPerDay,
			MaxPerCycle:        cfg.MaxAlertsPerCycle,
		}),
		Notifier: notifier,
	}, tracker.Options{
		Quote:          cfg.QuoteAsset,
		QuoteAssets:    cfg.StableAssets,
		Threshold:      cfg.AlertThresholdPercent,
		Workers:        cfg.PollWorkers,
		FetchTimeout:   cfg.PriceFetchTimeout,
		SendGap:        cfg.AlertSendGap,
		ChannelID:      cfg.TelegramChatID,
		MoversWindow:   cfg.MoversWindow,
		MoversTopN:     cfg.MoversTopN,
		Location:       loc,
		MinQuoteVolume: decimal.NewFromFloat(cfg.MinQuoteVolume),
	})
	if tg != nil {
		tg.Attach(tr)
	}

	s := &Service{
		cfg:      cfg,
		loc:      loc,
		store:    store,
		tracker:  tr,
		notifier: notifier,
		telegram: tg,
		log:      log,
	}

	s.sched = scheduler.New(nil,
		scheduler.Task{
			Name:         TaskPoll,
			Schedule:     scheduler.Every(cfg.PollInterval),
			InitialDelay: cfg.PollInitialDelay,
			Timeout:      cfg.PollInterval,
			Manual:       true,
			Run:          s.poll,
		},
		scheduler.Task{
			Name:     TaskMovers,
			Schedule: scheduler.Every(cfg.MoversInterval),
			Timeout:  time.Minute,
			Run:      s.postMovers,
		},
		scheduler.Task{
			Name:     TaskDailyReset,
			Schedule: scheduler.DailyAt(0, 0, loc),
			Timeout:  5 * time.Minute,
			Run:      s.dailyReset,
		},
	)

	return s, nil
}

func (s *Service) Tracker() *tracker.Tracker {
	return s.tracker
}

func (s *Service) Scheduler() *scheduler.Scheduler {
	return s.sched
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		fmt.Println("[BOT] Already running")
		return
	}

	if s.telegram != nil {
		s.telegram.Start()
	}

	msg := fmt.Sprintf("🚀 <b>%s</b> started. Alerting on moves of %.2f%% or more, polling every %s.",
		s.cfg.BotName, s.cfg.AlertThresholdPercent, s.cfg.PollInterval)
	if err := s.notifier.Send(ctx, s.cfg.TelegramChatID, msg); err != nil {
		s.log.Warn("bot.startup_message_failed", zap.Error(err))
	}

	s.sched.Start()
	s.running = true
	fmt.Println("[BOT] Started successfully")
}

// Stop halts the scheduler, waiting for a running cycle, then releases
// the notifiers and the snapshot store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sched.Stop()
	if s.telegram != nil && s.running {
		s.telegram.Stop()
	}
	s.running = false

	if err := s.store.Close(); err != nil {
		s.log.Warn("snapshot.close_failed", zap.Error(err))
	}
	fmt.Println("[BOT] Stopped")
}

func (s *Service) poll(ctx context.Context) error {
	rep, err := s.tracker.RunCycle(ctx)
	if rep != nil && rep.Outcome == models.OutcomeSkip {
		return fmt.Errorf("%w: %s", scheduler.ErrSkip, rep.Error)
	}
	return err
}

// postMovers flushes the movers window and posts the summary. An empty
// window sends nothing.
func (s *Service) postMovers(ctx context.Context) error {
	events := s.tracker.FlushMovers(s.cfg.MoversTopN)
	if len(events) == 0 {
		return fmt.Errorf("%w: no moves in window", scheduler.ErrSkip)
	}
	msg := notifications.FormatTopMovers(events, s.cfg.MoversWindow, time.Now(), s.loc)
	if err := s.notifier.Send(ctx, s.cfg.TelegramChatID, msg); err != nil {
		return fmt.Errorf("send top movers: %w", err)
	}
	return nil
}

func (s *Service) dailyReset(ctx context.Context) error {
	s.tracker.ResetDaily()
	if s.cfg.LogFile == "" {
		return nil
	}
	return s.shipLog(ctx, time.Now())
}

// shipLog uploads the log file to the chat and truncates it. The file is
// kept when the upload fails.
func (s *Service) shipLog(ctx context.Context, now time.Time) error {
	docs, ok := s.notifier.(notifications.DocumentSender)
	if !ok {
		return nil
	}

	info, err := os.Stat(s.cfg.LogFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat log file: %w", err)
	}
	if info.Size() == 0 {
		return nil
	}

	logx.Sync()
	caption := fmt.Sprintf("📄 %s log for %s", s.cfg.BotName, now.In(s.loc).AddDate(0, 0, -1).Format("2006-01-02"))
	if err := docs.SendDocument(ctx, s.cfg.TelegramChatID, s.cfg.LogFile, caption); err != nil {
		return fmt.Errorf("ship log: %w", err)
	}
	if err := os.Truncate(s.cfg.LogFile, 0); err != nil {
		return fmt.Errorf("truncate log: %w", err)
	}
	s.log.Info("logs.shipped", zap.String("file", s.cfg.LogFile), zap.Int64("bytes", info.Size()))
	return nil
}
