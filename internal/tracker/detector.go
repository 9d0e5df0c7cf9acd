package tracker

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kjannette/moverbot/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Evaluate compares current against the previous observation. There is no
// event on a seeding poll (no previous record or a zero previous price).
// The change is rounded to two decimals, half away from zero; zero change
// never alerts.
func Evaluate(symbol string, prev *models.PriceRecord, current decimal.Decimal, now time.Time, threshold float64) (*models.ChangeEvent, models.AlertDecision) {
	if prev == nil || prev.Price.IsZero() {
		return nil, models.AlertDecision{}
	}

	change := ChangePercent(prev.Price, current)
	ev := &models.ChangeEvent{Symbol: symbol, ChangePercent: change, OccurredAt: now}

	return ev, models.AlertDecision{
		ShouldAlert: change != 0 && math.Abs(change) >= threshold,
		Direction:   ev.Direction(),
	}
}

// ChangePercent returns (current-prev)/prev*100 rounded to two decimals.
// prev must be non-zero.
func ChangePercent(prev, current decimal.Decimal) float64 {
	return current.Sub(prev).Div(prev).Mul(hundred).Round(2).InexactFloat64()
}
