// Package stay rebuilds continuous residence stays from raw immigration-log rows
// and derives day statistics from them.
package stay

import (
	"sort"

	"github.com/rs/zerolog/log"

	"staytrack/internal/entry"
)

// Preferred reports whether a ranks above b when both describe the same arrival:
// newer capture first, then an open stay over a closed one, then the later departure.
func Preferred(a, b entry.RawEntry) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	if a.IsOpen() != b.IsOpen() {
		return a.IsOpen()
	}
	if a.IsOpen() {
		return false
	}
	return a.DepartureDate.After(*b.DepartureDate)
}

// Deduplicate keeps exactly one row per (normalised passport, arrival day).
// Rows without a usable passport or arrival are dropped and counted as skipped.
// The result carries normalised passports and is ordered by passport, then arrival.
func Deduplicate(rows []entry.RawEntry) ([]entry.RawEntry, int) {
	best := make(map[entry.Key]entry.RawEntry, len(rows))
	skipped := 0

	for _, r := range rows {
		r.Passport = entry.NormalizePassport(r.Passport)
		if r.Passport == "" || r.ArrivalDate.IsZero() {
			skipped++
			continue
		}
		r.ArrivalDate = entry.Day(r.ArrivalDate)
		k := r.Key()
		if cur, ok := best[k]; !ok || Preferred(r, cur) {
			best[k] = r
		}
	}

	out := make([]entry.RawEntry, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Passport != out[j].Passport {
			return out[i].Passport < out[j].Passport
		}
		return out[i].ArrivalDate.Before(out[j].ArrivalDate)
	})

	log.Debug().Int("input", len(rows)).Int("kept", len(out)).Int("skipped", skipped).Msg("Deduplicated entries")
	return out, skipped
}

// GroupByPassport partitions rows by normalised passport, preserving input order
// inside each group.
func GroupByPassport(rows []entry.RawEntry) map[string][]entry.RawEntry {
	groups := make(map[string][]entry.RawEntry)
	for _, r := range rows {
		p := entry.NormalizePassport(r.Passport)
		groups[p] = append(groups[p], r)
	}
	return groups
}
