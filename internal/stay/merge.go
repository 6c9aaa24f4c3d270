package stay

import (
	"sort"
	"strings"
	"time"

	"staytrack/internal/entry"
)

// Stay is a maximal merged interval of presence for one passport.
type Stay struct {
	Passport string    `json:"passport"`
	Start    time.Time `json:"start_date"`
	// EndEffective is the latest effective end; open members resolve to the as-of day.
	EndEffective time.Time `json:"end_date_effective"`
	// EndReal is the latest real departure among members, nil if none departed.
	EndReal *time.Time `json:"end_date_real,omitempty"`
	// Open is true when the most recently updated member has no departure.
	Open               bool             `json:"open"`
	Addresses          []string         `json:"addresses,omitempty"`
	VerificationResult string           `json:"verification_result,omitempty"`
	Members            []entry.RawEntry `json:"members"`
}

// Departure is the departure to display: nil while the person is still present.
func (s Stay) Departure() *time.Time {
	if s.Open {
		return nil
	}
	return s.EndReal
}

// Days is the inclusive length of the stay, counted up to asOf.
func (s Stay) Days(asOf time.Time) int {
	end := s.EndEffective
	if day := entry.Day(asOf); day.Before(end) {
		end = day
	}
	n := entry.DaysBetween(s.Start, end) + 1
	if n < 0 {
		return 0
	}
	return n
}

// Latest returns the member captured most recently, using the dedup preference
// order and then the later arrival to break ties.
func (s Stay) Latest() entry.RawEntry {
	var best entry.RawEntry
	for i, m := range s.Members {
		if i == 0 || Preferred(m, best) || (!Preferred(best, m) && m.ArrivalDate.After(best.ArrivalDate)) {
			best = m
		}
	}
	return best
}

// MergeStays coalesces one passport's deduplicated rows into stays. A row opens a
// new stay only when its arrival is more than MaxGapDays after every earlier
// row's effective end; otherwise it joins the current stay.
func MergeStays(rows []entry.RawEntry, asOf time.Time) []Stay {
	if len(rows) == 0 {
		return nil
	}

	sorted := make([]entry.RawEntry, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].ArrivalDate.Equal(sorted[j].ArrivalDate) {
			return sorted[i].ArrivalDate.Before(sorted[j].ArrivalDate)
		}
		return Preferred(sorted[i], sorted[j])
	})

	var (
		stays      []Stay
		current    []entry.RawEntry
		runningMax time.Time
	)
	for i, r := range sorted {
		arrival := entry.Day(r.ArrivalDate)
		if i > 0 && arrival.After(runningMax.AddDate(0, 0, MaxGapDays)) {
			stays = append(stays, buildStay(current, asOf))
			current = nil
		}
		current = append(current, r)
		if end := r.EffectiveEnd(asOf); i == 0 || end.After(runningMax) {
			runningMax = end
		}
	}
	return append(stays, buildStay(current, asOf))
}

func buildStay(members []entry.RawEntry, asOf time.Time) Stay {
	s := Stay{
		Passport: entry.NormalizePassport(members[0].Passport),
		Start:    entry.Day(members[0].ArrivalDate),
		Members:  members,
	}

	seen := make(map[string]bool)
	var verifiedAt time.Time
	for _, m := range members {
		if a := entry.Day(m.ArrivalDate); a.Before(s.Start) {
			s.Start = a
		}
		if end := m.EffectiveEnd(asOf); end.After(s.EndEffective) {
			s.EndEffective = end
		}
		if m.DepartureDate != nil {
			dep := entry.Day(*m.DepartureDate)
			if s.EndReal == nil || dep.After(*s.EndReal) {
				s.EndReal = &dep
			}
		}
		if addr := strings.TrimSpace(m.Address); addr != "" && !seen[addr] {
			seen[addr] = true
			s.Addresses = append(s.Addresses, addr)
		}
		if m.HasVerification() && (s.VerificationResult == "" || m.UpdatedAt.After(verifiedAt)) {
			s.VerificationResult = strings.TrimSpace(m.VerificationResult)
			verifiedAt = m.UpdatedAt
		}
	}

	s.Open = s.Latest().IsOpen()
	return s
}

// MergeAll deduplicates rows and merges them per passport.
func MergeAll(rows []entry.RawEntry, asOf time.Time) map[string][]Stay {
	deduped, _ := Deduplicate(rows)
	out := make(map[string][]Stay)
	for passport, group := range GroupByPassport(deduped) {
		out[passport] = MergeStays(group, asOf)
	}
	return out
}
