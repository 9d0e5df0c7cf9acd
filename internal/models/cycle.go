package models

import "time"

type TaskOutcome string

const (
	OutcomeSuccess TaskOutcome = "success"
	OutcomeSkip    TaskOutcome = "skip"
	OutcomeError   TaskOutcome = "error"
)

// CycleReport summarizes one poll cycle.
type CycleReport struct {
	ID            string      `json:"id"`
	StartedAt     time.Time   `json:"startedAt"`
	FinishedAt    time.Time   `json:"finishedAt"`
	Candidates    int         `json:"candidates"`
	Accepted      int         `json:"accepted"`
	LowVolume     int         `json:"lowVolume"`
	NewlyExcluded []string    `json:"newlyExcluded,omitempty"`
	Polled        int         `json:"polled"`
	Seeded        int         `json:"seeded"`
	Skipped       int         `json:"skipped"`
	Alerts        int         `json:"alerts"`
	Suppressed    int         `json:"suppressed"`
	Outcome       TaskOutcome `json:"outcome"`
	Error         string      `json:"error,omitempty"`
}

func (r *CycleReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// ExchangeHealth is the result of a connectivity probe against the price feed.
type ExchangeHealth string

const (
	ExchangeOK          ExchangeHealth = "ok"
	ExchangeNoData      ExchangeHealth = "no_data"
	ExchangeNetworkDown ExchangeHealth = "network_down"
)

// Status is the aggregate view served to the command and HTTP surfaces.
type Status struct {
	TrackedCount  int           `json:"trackedCount"`
	ExcludedCount int           `json:"excludedCount"`
	LastPoll      *time.Time    `json:"lastPoll,omitempty"`
	LastCycle     *CycleReport  `json:"lastCycle,omitempty"`
	TopMovers     []ChangeEvent `json:"topMovers"`
	CycleRunning  bool          `json:"cycleRunning"`
}
