package stay

import (
	"time"
)

// Stats are the residence figures for one passport as of a given day.
type Stats struct {
	// EntriesLast365 counts deduplicated arrivals on or after asOf-365d.
	EntriesLast365 int `json:"entries_last_365d"`
	// DaysLast365 sums each stay's overlap with [asOf-365d, asOf].
	DaysLast365 int `json:"days_last_365d"`
	// LifetimeDays sums every stay's inclusive length up to asOf.
	LifetimeDays int `json:"lifetime_days"`
}

// ComputeStats derives statistics from merged stays, never from raw rows, so a
// re-entry inside one continuous visit is counted once.
func ComputeStats(stays []Stay, asOf time.Time) Stats {
	w := TrailingWindow(asOf)
	var st Stats
	for _, s := range stays {
		for _, m := range s.Members {
			if !m.ArrivalDate.Before(w.Start) {
				st.EntriesLast365++
			}
		}
		st.DaysLast365 += w.Overlap(s.Start, s.EndEffective)
		st.LifetimeDays += s.Days(asOf)
	}
	return st
}
