package notifications

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kjannette/moverbot/internal/models"
)

const timeLayout = "2006-01-02 15:04"

// FormatAlert renders a single price-move alert as Telegram HTML.
func FormatAlert(a models.Alert, loc *time.Location) string {
	emoji, verb, sign := "🔴", "📉 Drop", ""
	if a.Direction == models.DirectionPositive {
		emoji, verb, sign = "🟢", "📈 Rise", "+"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s of %s!</b>\n", emoji, verb, html.EscapeString(strings.ToUpper(a.Event.Symbol)))
	fmt.Fprintf(&b, "📊 Change: <b>%s%.2f%%</b>\n", sign, a.Event.ChangePercent)
	if a.Price.IsPositive() {
		fmt.Fprintf(&b, "💵 Price: <code>%s</code>\n", formatPrice(a.Price))
	}
	fmt.Fprintf(&b, "🕒 Time: %s\n", inLoc(a.Event.OccurredAt, loc).Format(timeLayout))
	if a.AlertsToday > 0 {
		fmt.Fprintf(&b, "🔔 Alerts today: <b>%d</b>", a.AlertsToday)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatTopMovers renders the periodic top-movers summary.
func FormatTopMovers(events []models.ChangeEvent, window time.Duration, at time.Time, loc *time.Location) string {
	if len(events) == 0 {
		return "📉 No significant moves in the last " + humanWindow(window) + "."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔥 <b>Top %d moves in the last %s:</b>\n\n", len(events), humanWindow(window))
	writeMovers(&b, events)
	fmt.Fprintf(&b, "\n🕒 Updated: %s", inLoc(at, loc).Format(timeLayout))
	return b.String()
}

func writeMovers(b *strings.Builder, events []models.ChangeEvent) {
	for i, ev := range events {
		emoji := "🔴"
		if ev.Direction() == models.DirectionPositive {
			emoji = "🟢"
		}
		fmt.Fprintf(b, "%d. %s <b>%s</b>: <code>%.2f%%</code>\n",
			i+1, emoji, html.EscapeString(strings.ToUpper(ev.Symbol)), ev.ChangePercent)
	}
}

// FormatStatus renders the /status reply, including the current top moves
// of the window.
func FormatStatus(st models.Status, health models.ExchangeHealth, botName string, loc *time.Location) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🤖 <b>%s status</b>\n\n", html.EscapeString(botName))
	fmt.Fprintf(&b, "📊 Tracked coins: <b>%d</b>\n", st.TrackedCount)
	fmt.Fprintf(&b, "🗑️ Excluded coins: <b>%d</b>\n", st.ExcludedCount)
	if st.LastPoll != nil {
		fmt.Fprintf(&b, "⏱ Last poll: %s\n", inLoc(*st.LastPoll, loc).Format("2006-01-02 15:04:05"))
	} else {
		b.WriteString("⏱ Last poll: not yet\n")
	}
	if st.LastCycle != nil {
		fmt.Fprintf(&b, "🔁 Last cycle: %s (%d polled, %d alerts)\n",
			st.LastCycle.Outcome, st.LastCycle.Polled, st.LastCycle.Alerts)
	}
	if st.CycleRunning {
		b.WriteString("⏳ A poll cycle is running\n")
	}
	if len(st.TopMovers) > 0 {
		b.WriteString("\n🔥 <b>Top moves:</b>\n")
		writeMovers(&b, st.TopMovers)
		b.WriteString("\n")
	} else {
		b.WriteString("📉 No significant moves yet\n")
	}
	fmt.Fprintf(&b, "🌐 Exchange: %s", healthLabel(health))
	return b.String()
}

func FormatExclusions(symbols []string) string {
	if len(symbols) == 0 {
		return "The exclusion list is empty."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🗑️ <b>Excluded coins (%d):</b>\n\n", len(symbols))
	for _, s := range symbols {
		fmt.Fprintf(&b, "• %s\n", html.EscapeString(strings.ToUpper(s)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func FormatHelp(threshold float64, pollInterval time.Duration) string {
	return fmt.Sprintf(`📚 <b>Commands</b>

/start - greeting
/online - check the bot is alive
/status - tracking and exchange status
/top - current top movers
/blacklist - coins without a tradable pair
/help - this message

Alerts fire on moves of %.2f%% or more between polls (every %s).`, threshold, pollInterval)
}

func healthLabel(h models.ExchangeHealth) string {
	switch h {
	case models.ExchangeOK:
		return "✅ available"
	case models.ExchangeNetworkDown:
		return "❌ network unreachable"
	default:
		return "⚠️ no data"
	}
}

func humanWindow(d time.Duration) string {
	switch {
	case d == time.Hour:
		return "hour"
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	default:
		return d.String()
	}
}

var (
	one  = decimal.NewFromInt(1)
	cent = decimal.New(1, -2)
)

func formatPrice(p decimal.Decimal) string {
	switch {
	case p.GreaterThanOrEqual(one):
		return "$" + p.StringFixed(2)
	case p.GreaterThanOrEqual(cent):
		return "$" + p.StringFixed(4)
	default:
		return "$" + p.StringFixed(8)
	}
}

func inLoc(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		return t
	}
	return t.In(loc)
}
