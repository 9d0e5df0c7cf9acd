package notifications

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/kjannette/moverbot/internal/models"
)

func TestFormatAlert(t *testing.T) {
	at := time.Date(2025, 4, 5, 12, 30, 0, 0, time.UTC)

	up := FormatAlert(models.Alert{
		Event:       models.ChangeEvent{Symbol: "btc", ChangePercent: 3, OccurredAt: at},
		Direction:   models.DirectionPositive,
		Price:       decimal.RequireFromString("65000.5"),
		AlertsToday: 2,
	}, time.UTC)
	require.Contains(t, up, "🟢")
	require.Contains(t, up, "BTC")
	require.Contains(t, up, "+3.00%")
	require.Contains(t, up, "$65000.50")
	require.Contains(t, up, "2025-04-05 12:30")
	require.Contains(t, up, "Alerts today: <b>2</b>")

	down := FormatAlert(models.Alert{
		Event:     models.ChangeEvent{Symbol: "pepe", ChangePercent: -2.1, OccurredAt: at},
		Direction: models.DirectionNegative,
		Price:     decimal.RequireFromString("0.0000012"),
	}, time.UTC)
	require.Contains(t, down, "🔴")
	require.Contains(t, down, "-2.10%")
	require.Contains(t, down, "$0.00000120")
	require.NotContains(t, down, "Alerts today")
}

func TestFormatTopMovers(t *testing.T) {
	require.Equal(t, "📉 No significant moves in the last hour.", FormatTopMovers(nil, time.Hour, time.Now(), nil))

	msg := FormatTopMovers([]models.ChangeEvent{
		{Symbol: "sol", ChangePercent: -5},
		{Symbol: "eth", ChangePercent: 2.5},
	}, 2*time.Hour, time.Now(), nil)
	require.Contains(t, msg, "Top 2 moves in the last 2 hours")
	require.Contains(t, msg, "1. 🔴 <b>SOL</b>: <code>-5.00%</code>")
	require.Contains(t, msg, "2. 🟢 <b>ETH</b>")
}

func TestFormatExclusions(t *testing.T) {
	require.Equal(t, "The exclusion list is empty.", FormatExclusions(nil))
	require.Contains(t, FormatExclusions([]string{"<x>"}), "&lt;X&gt;")
}

func TestFormatStatus_Health(t *testing.T) {
	st := models.Status{}
	require.Contains(t, FormatStatus(st, models.ExchangeNoData, "b", nil), "no data")
	require.Contains(t, FormatStatus(st, models.ExchangeNetworkDown, "b", nil), "network unreachable")
	require.Contains(t, FormatStatus(st, models.ExchangeOK, "b", nil), "Last poll: not yet")
}

func TestFormatStatus_TopMovers(t *testing.T) {
	empty := FormatStatus(models.Status{}, models.ExchangeOK, "b", nil)
	require.Contains(t, empty, "No significant moves yet")
	require.NotContains(t, empty, "Top moves")

	msg := FormatStatus(models.Status{
		TrackedCount: 3,
		TopMovers: []models.ChangeEvent{
			{Symbol: "sol", ChangePercent: -5},
			{Symbol: "btc", ChangePercent: 3},
		},
	}, models.ExchangeOK, "b", nil)
	require.Contains(t, msg, "Top moves:")
	require.Contains(t, msg, "1. 🔴 <b>SOL</b>: <code>-5.00%</code>")
	require.Contains(t, msg, "2. 🟢 <b>BTC</b>: <code>3.00%</code>")
	require.True(t, strings.HasSuffix(msg, "Exchange: ✅ available"))
}

func TestFormatPrice(t *testing.T) {
	require.Equal(t, "$1.01", formatPrice(decimal.RequireFromString("1.005")))
	require.Equal(t, "$0.0500", formatPrice(decimal.RequireFromString("0.05")))
	require.Equal(t, "$0.00000001", formatPrice(decimal.RequireFromString("0.000000005")))
}

type recordingNotifier struct {
	msgs []string
	err  error
}

func (r *recordingNotifier) Send(_ context.Context, _ string, msg string) error {
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func TestMulti(t *testing.T) {
	ok := &recordingNotifier{}
	bad := &recordingNotifier{err: errors.New("down")}

	require.NoError(t, Multi{ok, bad}.Send(context.Background(), "1", "hello"))
	require.Equal(t, []string{"hello"}, ok.msgs)

	require.Error(t, Multi{bad, bad}.Send(context.Background(), "1", "hello"))
	require.NoError(t, Multi{}.Send(context.Background(), "1", "hello"))

	require.Error(t, Multi{ok}.SendDocument(context.Background(), "1", "/tmp/x.log", ""))
}
