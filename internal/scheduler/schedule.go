package scheduler

import "time"

// Schedule yields the next run time strictly after prev.
type Schedule interface {
	Next(prev time.Time) time.Time
	String() string
}

type every struct {
	d time.Duration
}

// Every runs a task at a fixed interval.
func Every(d time.Duration) Schedule {
	if d <= 0 {
		d = time.Minute
	}
	return every{d: d}
}

func (e every) Next(prev time.Time) time.Time {
	return prev.Add(e.d)
}

func (e every) String() string {
	return "every " + e.d.String()
}

type dailyAt struct {
	hour, minute int
	loc          *time.Location
}

// DailyAt runs a task once a day at hour:min in loc.
func DailyAt(hour, minute int, loc *time.Location) Schedule {
	if loc == nil {
		loc = time.Local
	}
	return dailyAt{hour: hour, minute: minute, loc: loc}
}

func (d dailyAt) Next(prev time.Time) time.Time {
	p := prev.In(d.loc)
	next := time.Date(p.Year(), p.Month(), p.Day(), d.hour, d.minute, 0, 0, d.loc)
	if !next.After(p) {
		next = time.Date(p.Year(), p.Month(), p.Day()+1, d.hour, d.minute, 0, 0, d.loc)
	}
	return next
}

func (d dailyAt) String() string {
	return "daily at " + time.Date(2000, 1, 1, d.hour, d.minute, 0, 0, d.loc).Format("15:04 MST")
}
