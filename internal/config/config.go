package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	str2duration "github.com/xhit/go-str2duration/v2"
)

type Config struct {
	// Secrets (from .env)
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string
	BotName          string
	APIKey           string
	CORSAllowOrigin  string

	// API
	APIEnabled bool
	APIPort    int

	// Upstreams
	CoinGeckoAPIURL string
	BinanceAPIURL   string
	QuoteAsset      string
	StableAssets    []string
	MinQuoteVolume  float64

	// Alerting
	AlertThresholdPercent    float64
	MaxAlertsPerSymbolPerDay int
	MaxAlertsPerCycle        int
	AlertSendGap             time.Duration

	// Timing
	PollInterval      time.Duration
	PollInitialDelay  time.Duration
	PollWorkers       int
	PriceFetchTimeout time.Duration
	MoversInterval    time.Duration
	MoversWindow      time.Duration
	MoversTopN        int
	PairsCacheTTL     time.Duration

	// Candidate list pagination
	CandidatePages     int
	CandidatePerPage   int
	CandidatePagePause time.Duration

	// Snapshot storage
	SnapshotBackend string
	DataDir         string
	BuntPath        string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	// Database
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBMaxConns int

	// Logging
	LogLevel string
	LogFile  string
	Timezone string
}

var snapshotBackends = []string{"file", "bunt", "redis", "postgres"}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		// Secrets
		TelegramBotToken: envStr("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   envStr("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       envStr("WEBHOOK_URL", ""),
		BotName:          envStr("BOT_NAME", "MoverBot"),
		APIKey:           envStr("API_KEY", ""),
		CORSAllowOrigin:  envStr("CORS_ALLOW_ORIGIN", "*"),

		APIEnabled: envBool("API_ENABLED", true),
		APIPort:    envInt("API_PORT", 3001),

		// Upstreams
		CoinGeckoAPIURL: envStr("COINGECKO_API_URL", "https://api.coingecko.com/api/v3"),
		BinanceAPIURL:   envStr("BINANCE_API_URL", "https://api.binance.com"),
		QuoteAsset:      strings.ToUpper(envStr("QUOTE_ASSET", "USDT")),
		StableAssets:    envList("STABLE_ASSETS", []string{"usdt", "usdc", "busd"}),
		MinQuoteVolume:  envFloat("MIN_QUOTE_VOLUME", 0),

		// Alerting
		AlertThresholdPercent:    envFloat("ALERT_THRESHOLD_PERCENT", 1.5),
		MaxAlertsPerSymbolPerDay: envInt("MAX_ALERTS_PER_SYMBOL_PER_DAY", 0),
		MaxAlertsPerCycle:        envInt("MAX_ALERTS_PER_CYCLE", 0),
		AlertSendGap:             envDuration("ALERT_SEND_GAP", time.Second),

		// Timing
		PollInterval:      envDuration("POLL_INTERVAL", 15*time.Minute),
		PollInitialDelay:  envDuration("POLL_INITIAL_DELAY", 10*time.Second),
		PollWorkers:       envInt("POLL_WORKERS", 4),
		PriceFetchTimeout: envDuration("PRICE_FETCH_TIMEOUT", 10*time.Second),
		MoversInterval:    envDuration("MOVERS_INTERVAL", time.Hour),
		MoversWindow:      envDuration("MOVERS_WINDOW", time.Hour),
		MoversTopN:        envInt("MOVERS_TOP_N", 5),
		PairsCacheTTL:     envDuration("PAIRS_CACHE_TTL", 10*time.Minute),

		// Candidates
		CandidatePages:     envInt("CANDIDATE_PAGES", 3),
		CandidatePerPage:   envInt("CANDIDATE_PER_PAGE", 100),
		CandidatePagePause: envDuration("CANDIDATE_PAGE_PAUSE", 2*time.Second),

		// Snapshots
		SnapshotBackend: strings.ToLower(envStr("SNAPSHOT_BACKEND", "file")),
		DataDir:         envStr("DATA_DIR", "data"),
		BuntPath:        envStr("BUNT_PATH", "data/moverbot.db"),
		RedisAddr:       envStr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   envStr("REDIS_PASSWORD", ""),
		RedisDB:         envInt("REDIS_DB", 0),

		// Database
		DBHost:     envStr("DB_HOST", "localhost"),
		DBPort:     envInt("DB_PORT", 5432),
		DBName:     envStr("DB_NAME", "moverbot"),
		DBUser:     envStr("DB_USER", ""),
		DBPassword: envStr("DB_PASSWORD", ""),
		DBMaxConns: envInt("DB_MAX_CONNS", 4),

		// Logging
		LogLevel: envStr("LOG_LEVEL", "info"),
		LogFile:  envStr("LOG_FILE", ""),
		Timezone: envStr("TIMEZONE", "Local"),
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	if c.TelegramBotToken == "" && c.WebhookURL == "" {
		errs = append(errs, "TELEGRAM_BOT_TOKEN or WEBHOOK_URL is required")
	}
	if c.TelegramBotToken != "" && c.TelegramChatID == "" {
		errs = append(errs, "TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	if c.AlertThresholdPercent <= 0 {
		errs = append(errs, "ALERT_THRESHOLD_PERCENT must be positive")
	}
	if c.MinQuoteVolume < 0 {
		errs = append(errs, "MIN_QUOTE_VOLUME must not be negative")
	}
	if c.PollInterval <= 0 {
		errs = append(errs, "POLL_INTERVAL must be positive")
	}
	if c.PollWorkers <= 0 {
		errs = append(errs, "POLL_WORKERS must be positive")
	}
	if c.MoversTopN <= 0 {
		errs = append(errs, "MOVERS_TOP_N must be positive")
	}
	if c.CandidatePages <= 0 || c.CandidatePerPage <= 0 {
		errs = append(errs, "CANDIDATE_PAGES and CANDIDATE_PER_PAGE must be positive")
	}
	if !lo.Contains(snapshotBackends, c.SnapshotBackend) {
		errs = append(errs, fmt.Sprintf("SNAPSHOT_BACKEND must be one of %s", strings.Join(snapshotBackends, ", ")))
	}
	if c.SnapshotBackend == "postgres" && c.DBMaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("TIMEZONE: %v", err))
	}

	if c.MaxAlertsPerSymbolPerDay == 0 && c.MaxAlertsPerCycle == 0 {
		fmt.Println("[WARN] MAX_ALERTS_PER_SYMBOL_PER_DAY and MAX_ALERTS_PER_CYCLE are both 0 — alerts are not rate limited")
	}
	if c.APIKey == "" {
		fmt.Println("[WARN] API_KEY not set — REST API has no authentication")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// Location resolves TIMEZONE; "Local" and "" map to the host zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func (c *Config) Print() {
	fmt.Println("=== Crypto Mover Alert Bot Configuration ===")
	fmt.Printf("Bot Name: %s\n", c.BotName)
	fmt.Printf("Telegram: %s\n", boolLabel(c.TelegramBotToken != "", "configured", "not set"))
	fmt.Printf("Webhook: %s\n", boolLabel(c.WebhookURL != "", "configured", "not set"))
	fmt.Println("--------------------------------------")
	fmt.Printf("Quote Asset: %s\n", c.QuoteAsset)
	fmt.Printf("Stable Assets: %s\n", strings.Join(c.StableAssets, ", "))
	if c.MinQuoteVolume > 0 {
		fmt.Printf("Min 24h Volume: %.0f %s\n", c.MinQuoteVolume, c.QuoteAsset)
	}
	fmt.Printf("Alert Threshold: %.2f%%\n", c.AlertThresholdPercent)
	fmt.Printf("Max Alerts/Symbol/Day: %s\n", limitLabel(c.MaxAlertsPerSymbolPerDay))
	fmt.Printf("Max Alerts/Cycle: %s\n", limitLabel(c.MaxAlertsPerCycle))
	fmt.Println("--------------------------------------")
	fmt.Println("Schedule:")
	fmt.Printf("  Poll: every %s (first after %s, %d workers)\n", c.PollInterval, c.PollInitialDelay, c.PollWorkers)
	fmt.Printf("  Top Movers: every %s, top %d over %s\n", c.MoversInterval, c.MoversTopN, c.MoversWindow)
	fmt.Printf("  Candidates: %d pages x %d\n", c.CandidatePages, c.CandidatePerPage)
	fmt.Printf("  Pairs Cache TTL: %s\n", c.PairsCacheTTL)
	fmt.Printf("  Timezone: %s\n", c.Timezone)
	fmt.Println("--------------------------------------")
	fmt.Printf("Snapshot Backend: %s\n", c.SnapshotBackend)
	fmt.Printf("Log Level: %s\n", c.LogLevel)
	if c.LogFile != "" {
		fmt.Printf("Log File: %s\n", c.LogFile)
	}
	fmt.Println("======================================")
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

// envDuration accepts Go durations plus day/week units ("1d", "2w").
func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := str2duration.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func limitLabel(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return strconv.Itoa(n)
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
