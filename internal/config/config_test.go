package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 1.5, cfg.AlertThresholdPercent)
	require.Equal(t, 15*time.Minute, cfg.PollInterval)
	require.Equal(t, 10*time.Second, cfg.PollInitialDelay)
	require.Equal(t, time.Hour, cfg.MoversWindow)
	require.Equal(t, 5, cfg.MoversTopN)
	require.Equal(t, 10*time.Minute, cfg.PairsCacheTTL)
	require.Equal(t, "USDT", cfg.QuoteAsset)
	require.Equal(t, []string{"usdt", "usdc", "busd"}, cfg.StableAssets)
	require.Equal(t, "file", cfg.SnapshotBackend)
	require.Zero(t, cfg.MinQuoteVolume)
	require.Equal(t, 4, cfg.DBMaxConns)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ALERT_THRESHOLD_PERCENT", "2")
	t.Setenv("POLL_INTERVAL", "5m")
	t.Setenv("MOVERS_WINDOW", "1d")
	t.Setenv("QUOTE_ASSET", "busd")
	t.Setenv("STABLE_ASSETS", " DAI, tusd ,,")
	t.Setenv("SNAPSHOT_BACKEND", "Redis")
	t.Setenv("POLL_WORKERS", "not-a-number")
	t.Setenv("MIN_QUOTE_VOLUME", "2000000")
	t.Setenv("DB_MAX_CONNS", "10")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 2.0, cfg.AlertThresholdPercent)
	require.Equal(t, 5*time.Minute, cfg.PollInterval)
	require.Equal(t, 24*time.Hour, cfg.MoversWindow)
	require.Equal(t, "BUSD", cfg.QuoteAsset)
	require.Equal(t, []string{"dai", "tusd"}, cfg.StableAssets)
	require.Equal(t, "redis", cfg.SnapshotBackend)
	require.Equal(t, 4, cfg.PollWorkers)
	require.Equal(t, 2000000.0, cfg.MinQuoteVolume)
	require.Equal(t, 10, cfg.DBMaxConns)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		cfg.WebhookURL = "https://hooks.example.com/x"
		return cfg
	}

	require.NoError(t, base().Validate())

	cfg := base()
	cfg.WebhookURL = ""
	require.ErrorContains(t, cfg.Validate(), "TELEGRAM_BOT_TOKEN or WEBHOOK_URL")

	cfg = base()
	cfg.TelegramBotToken = "token"
	require.ErrorContains(t, cfg.Validate(), "TELEGRAM_CHAT_ID")

	cfg = base()
	cfg.AlertThresholdPercent = 0
	require.ErrorContains(t, cfg.Validate(), "ALERT_THRESHOLD_PERCENT")

	cfg = base()
	cfg.MinQuoteVolume = -1
	require.ErrorContains(t, cfg.Validate(), "MIN_QUOTE_VOLUME")

	cfg = base()
	cfg.SnapshotBackend = "postgres"
	cfg.DBMaxConns = 0
	require.ErrorContains(t, cfg.Validate(), "DB_MAX_CONNS")

	cfg = base()
	cfg.SnapshotBackend = "sqlite"
	require.ErrorContains(t, cfg.Validate(), "SNAPSHOT_BACKEND")

	cfg = base()
	cfg.Timezone = "Mars/Olympus"
	require.ErrorContains(t, cfg.Validate(), "TIMEZONE")
}

func TestDSN(t *testing.T) {
	cfg := &Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: 5433, DBName: "d"}
	require.Equal(t, "postgres://u:p@h:5433/d?sslmode=disable", cfg.DSN())
}
