package alertguard

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrSymbolLimit = errors.New("daily symbol alert limit reached")
	ErrCycleLimit  = errors.New("cycle alert limit reached")
)

// Limits holds the alert thresholds from config.
// A zero value for any field means that check is disabled.
type Limits struct {
	MaxPerSymbolPerDay int
	MaxPerCycle        int
}

// Guardian counts alerts per symbol for the current day and decides
// whether another alert may go out.
type Guardian struct {
	limits Limits

	mu     sync.Mutex
	counts map[string]int
}

func NewGuardian(limits Limits) *Guardian {
	return &Guardian{limits: limits, counts: make(map[string]int)}
}

// Check validates an alert for symbol before it is sent.
// sentThisCycle is the number of alerts already sent in the running cycle.
// Returns nil if the alert is allowed, a descriptive error if blocked.
func (g *Guardian) Check(symbol string, sentThisCycle int) error {
	if g.limits.MaxPerCycle > 0 && sentThisCycle >= g.limits.MaxPerCycle {
		return fmt.Errorf("%w: %d alerts already sent this cycle", ErrCycleLimit, sentThisCycle)
	}

	if g.limits.MaxPerSymbolPerDay > 0 {
		g.mu.Lock()
		count := g.counts[symbol]
		g.mu.Unlock()
		if count >= g.limits.MaxPerSymbolPerDay {
			return fmt.Errorf("%w: %s alerted %d times today (max %d)",
				ErrSymbolLimit, symbol, count, g.limits.MaxPerSymbolPerDay)
		}
	}

	return nil
}

// Record counts a sent alert and returns the symbol's count for today.
func (g *Guardian) Record(symbol string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counts[symbol]++
	return g.counts[symbol]
}

func (g *Guardian) Count(symbol string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counts[symbol]
}

// Reset clears the daily counters and returns how many alerts were sent
// since the previous reset.
func (g *Guardian) Reset() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	total := 0
	for _, n := range g.counts {
		total += n
	}
	g.counts = make(map[string]int)
	return total
}
