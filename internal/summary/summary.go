// Package summary materialises one PersonSummary per passport from raw rows and
// reference registries.
package summary

import (
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"staytrack/internal/entry"
	"staytrack/internal/registry"
	"staytrack/internal/stay"
)

// AddressSeparator joins the distinct addresses of a stay.
const AddressSeparator = " | "

// PersonSummary is the queryable record for one person.
type PersonSummary struct {
	Passport    string     `json:"passport"`
	FullName    string     `json:"full_name"`
	BirthDate   *time.Time `json:"birth_date,omitempty"`
	Nationality string     `json:"nationality"`

	// ArrivalDate and DepartureDate describe the most recent stay; DepartureDate
	// is nil while the person is still present.
	ArrivalDate   time.Time  `json:"arrival_date"`
	DepartureDate *time.Time `json:"departure_date,omitempty"`
	EndEffective  time.Time  `json:"end_date_effective"`
	Address       string     `json:"address"`

	stay.Stats
	StayCount int `json:"stay_count"`

	VerificationResult string `json:"verification_result,omitempty"`
	SystemPurpose      string `json:"system_purpose,omitempty"`
	FinalStatus        string `json:"final_status,omitempty"`

	LaborDetail     string `json:"labor_detail,omitempty"`
	MarriageDetail  string `json:"marriage_detail,omitempty"`
	WatchlistDetail string `json:"watchlist_detail,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// StillPresent reports whether the person had not departed as of the given day.
func (p PersonSummary) StillPresent(asOf time.Time) bool {
	return p.DepartureDate == nil || p.DepartureDate.After(entry.Day(asOf))
}

// Build runs dedup, merge, statistics and status resolution for every passport.
// The result is ordered by passport and is a pure function of its inputs.
func Build(rows []entry.RawEntry, set registry.Set, asOf time.Time) []PersonSummary {
	asOf = entry.Day(asOf)
	deduped, skipped := stay.Deduplicate(rows)
	groups := stay.GroupByPassport(deduped)

	out := make([]PersonSummary, 0, len(groups))
	for passport, group := range groups {
		stays := stay.MergeStays(group, asOf)
		out = append(out, summarize(passport, group, stays, set, asOf))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Passport < out[j].Passport })

	log.Debug().
		Int("rows", len(rows)).
		Int("skipped", skipped).
		Int("persons", len(out)).
		Str("as_of", entry.FormatISO(asOf)).
		Msg("Materialised person summaries")
	return out
}

func summarize(passport string, rows []entry.RawEntry, stays []stay.Stay, set registry.Set, asOf time.Time) PersonSummary {
	identity := latestIdentity(rows)
	last := LatestStay(stays)
	res := registry.Resolve(passport, last.VerificationResult, set)

	return PersonSummary{
		Passport:           passport,
		FullName:           identity.FullName,
		BirthDate:          identity.BirthDate,
		Nationality:        identity.Nationality,
		ArrivalDate:        last.Start,
		DepartureDate:      last.Departure(),
		EndEffective:       last.EndEffective,
		Address:            strings.Join(last.Addresses, AddressSeparator),
		Stats:              stay.ComputeStats(stays, asOf),
		StayCount:          len(stays),
		VerificationResult: last.VerificationResult,
		SystemPurpose:      res.SystemPurpose,
		FinalStatus:        res.FinalStatus,
		LaborDetail:        res.Details[registry.Labor],
		MarriageDetail:     res.Details[registry.Marriage],
		WatchlistDetail:    res.Details[registry.Watchlist],
		UpdatedAt:          identity.UpdatedAt,
	}
}

// latestIdentity picks the row whose personal fields are shown: newest capture,
// then latest arrival.
func latestIdentity(rows []entry.RawEntry) entry.RawEntry {
	best := rows[0]
	for _, r := range rows[1:] {
		if r.UpdatedAt.After(best.UpdatedAt) ||
			(r.UpdatedAt.Equal(best.UpdatedAt) && r.ArrivalDate.After(best.ArrivalDate)) {
			best = r
		}
	}
	return best
}

// LatestStay is the stay with the latest effective end, then the latest start.
func LatestStay(stays []stay.Stay) stay.Stay {
	best := stays[0]
	for _, s := range stays[1:] {
		if s.EndEffective.After(best.EndEffective) ||
			(s.EndEffective.Equal(best.EndEffective) && s.Start.After(best.Start)) {
			best = s
		}
	}
	return best
}

// Index maps passports to their summaries.
func Index(people []PersonSummary) map[string]PersonSummary {
	idx := make(map[string]PersonSummary, len(people))
	for _, p := range people {
		idx[p.Passport] = p
	}
	return idx
}
