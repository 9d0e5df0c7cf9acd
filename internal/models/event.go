package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionPositive Direction = "positive"
	DirectionNegative Direction = "negative"
)

// ChangeEvent is a computed price move between two consecutive polls.
type ChangeEvent struct {
	Symbol        string    `json:"symbol"`
	ChangePercent float64   `json:"changePercent"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// Magnitude returns the absolute change percentage.
func (e ChangeEvent) Magnitude() float64 {
	return math.Abs(e.ChangePercent)
}

func (e ChangeEvent) Direction() Direction {
	if e.ChangePercent > 0 {
		return DirectionPositive
	}
	return DirectionNegative
}

type AlertDecision struct {
	ShouldAlert bool      `json:"shouldAlert"`
	Direction   Direction `json:"direction"`
}

// Alert is a decided alert ready for formatting.
type Alert struct {
	Event       ChangeEvent
	Direction   Direction
	Price       decimal.Decimal
	AlertsToday int
}
