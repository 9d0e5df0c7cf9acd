package tracker

import (
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/kjannette/moverbot/internal/models"
)

// MoversWindow keeps recent change events in arrival order for the
// periodic top-movers summary.
type MoversWindow struct {
	mu     sync.Mutex
	events []models.ChangeEvent
}

func NewMoversWindow() *MoversWindow {
	return &MoversWindow{}
}

func (w *MoversWindow) Record(ev models.ChangeEvent) {
	w.mu.Lock()
	w.events = append(w.events, ev)
	w.mu.Unlock()
}

// FlushTop returns up to n in-window events ranked by magnitude and empties
// the window.
func (w *MoversWindow) FlushTop(n int, now time.Time, window time.Duration) []models.ChangeEvent {
	w.mu.Lock()
	events := w.events
	w.events = nil
	w.mu.Unlock()

	return rank(inWindow(events, now, window), n)
}

// PeekTop ranks like FlushTop but keeps the window, dropping only expired
// events.
func (w *MoversWindow) PeekTop(n int, now time.Time, window time.Duration) []models.ChangeEvent {
	w.mu.Lock()
	w.events = inWindow(w.events, now, window)
	events := append([]models.ChangeEvent(nil), w.events...)
	w.mu.Unlock()

	return rank(events, n)
}

func (w *MoversWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.events)
}

func inWindow(events []models.ChangeEvent, now time.Time, window time.Duration) []models.ChangeEvent {
	cutoff := now.Add(-window)
	return lo.Filter(events, func(ev models.ChangeEvent, _ int) bool {
		return !ev.OccurredAt.Before(cutoff)
	})
}

// rank sorts by magnitude descending; equal magnitudes keep arrival order.
func rank(events []models.ChangeEvent, n int) []models.ChangeEvent {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Magnitude() > events[j].Magnitude()
	})
	if n >= 0 && len(events) > n {
		events = events[:n]
	}
	return events
}
