package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceRecord is the last observed price of a tracked symbol.
type PriceRecord struct {
	Symbol     string          `json:"symbol"`
	Price      decimal.Decimal `json:"price"`
	ObservedAt time.Time       `json:"observedAt"`
}

// Candidate is one entry of the ranked coin listing.
type Candidate struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
}
