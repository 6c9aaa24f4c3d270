package stay

import (
	"time"

	"staytrack/internal/entry"
)

const (
	// WindowDays is the length of the trailing window for annual statistics.
	WindowDays = 365
	// MaxGapDays is the largest gap between stays that still merges them.
	MaxGapDays = 1
)

// Window is an inclusive range of calendar days.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// TrailingWindow is [asOf-365d, asOf], snapped to whole days.
func TrailingWindow(asOf time.Time) Window {
	end := entry.Day(asOf)
	return Window{Start: end.AddDate(0, 0, -WindowDays), End: end}
}

// Contains reports whether day t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	t = entry.Day(t)
	return !t.Before(w.Start) && !t.After(w.End)
}

// Overlap counts the days shared by the window and the inclusive range [start, end].
func (w Window) Overlap(start, end time.Time) int {
	lo := entry.Day(start)
	if w.Start.After(lo) {
		lo = w.Start
	}
	hi := entry.Day(end)
	if w.End.Before(hi) {
		hi = w.End
	}
	if hi.Before(lo) {
		return 0
	}
	return entry.DaysBetween(lo, hi) + 1
}
