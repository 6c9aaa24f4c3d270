package query

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"staytrack/internal/registry"
	"staytrack/internal/textnorm"
)

// Summary aggregates a filtered population.
type Summary struct {
	TotalPersons       int     `json:"total_persons"`
	TotalNationalities int     `json:"total_nationalities"`
	Labor              int     `json:"labor_count"`
	Marriage           int     `json:"marriage_count"`
	Student            int     `json:"student_count"`
	Watchlist          int     `json:"watchlist_count"`
	CurrentlyResiding  int     `json:"currently_residing"`
	AvgAnnualDays      float64 `json:"avg_days"`
}

// Statistics summarises everyone matching f; paging fields are ignored.
func (e *Engine) Statistics(f Filter) (Summary, error) {
	if err := f.Validate(); err != nil {
		return Summary{}, err
	}
	var s Summary
	nats := make(map[string]bool)
	totalDays := 0
	for _, p := range e.Select(f) {
		s.TotalPersons++
		nats[p.Nationality] = true
		totalDays += p.DaysLast365
		if p.DepartureDate == nil {
			s.CurrentlyResiding++
		}
		switch p.FinalStatus {
		case registry.LabelLabor:
			s.Labor++
		case registry.LabelMarriage:
			s.Marriage++
		case registry.LabelStudent:
			s.Student++
		case registry.LabelWatchlist:
			s.Watchlist++
		}
	}
	s.TotalNationalities = len(nats)
	if s.TotalPersons > 0 {
		s.AvgAnnualDays = math.Round(float64(totalDays)/float64(s.TotalPersons)*10) / 10
	}
	return s, nil
}

// NationalityCount is one row of the per-nationality breakdown.
type NationalityCount struct {
	Nationality string `json:"nationality"`
	Count       int    `json:"count"`
	StillHere   int    `json:"still_here"`
}

// ByNationality counts matches per nationality, largest first.
func (e *Engine) ByNationality(f Filter, limit int) ([]NationalityCount, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	counts := make(map[string]*NationalityCount)
	for _, p := range e.Select(f) {
		c, ok := counts[p.Nationality]
		if !ok {
			c = &NationalityCount{Nationality: p.Nationality}
			counts[p.Nationality] = c
		}
		c.Count++
		if p.DepartureDate == nil {
			c.StillHere++
		}
	}
	out := make([]NationalityCount, 0, len(counts))
	for _, c := range counts {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Nationality < out[j].Nationality
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Narrative renders the summary as Vietnamese report text.
func (e *Engine) Narrative(f Filter) (string, error) {
	s, err := e.Statistics(f)
	if err != nil {
		return "", err
	}
	top, err := e.ByNationality(f, 5)
	if err != nil {
		return "", err
	}

	var lines []string
	if period := f.Describe(); period != "" {
		lines = append(lines, "**Thời gian**: "+period, "")
	}
	lines = append(lines,
		fmt.Sprintf("**Tổng số người nước ngoài**: %s người", humanize.Comma(int64(s.TotalPersons))),
		fmt.Sprintf("- Đến từ %d quốc tịch khác nhau", s.TotalNationalities),
		fmt.Sprintf("- Đang lưu trú: %s người", humanize.Comma(int64(s.CurrentlyResiding))),
		fmt.Sprintf("- Thời gian lưu trú trung bình: %s ngày", strconv.FormatFloat(s.AvgAnnualDays, 'f', 1, 64)),
		"",
		"**Phân loại theo mục đích**:",
	)
	for _, c := range []struct {
		label string
		n     int
	}{
		{registry.LabelLabor, s.Labor},
		{registry.LabelMarriage, s.Marriage},
		{registry.LabelStudent, s.Student},
		{"⚠️ " + registry.LabelWatchlist, s.Watchlist},
	} {
		if c.n > 0 {
			lines = append(lines, fmt.Sprintf("- %s: %s người", c.label, humanize.Comma(int64(c.n))))
		}
	}
	if len(top) > 0 {
		lines = append(lines, "", "**Top quốc tịch**:")
		for i, n := range top {
			lines = append(lines, fmt.Sprintf("%d. %s: %s người (còn ở: %d)", i+1, n.Nationality, humanize.Comma(int64(n.Count)), n.StillHere))
		}
	}
	return strings.Join(lines, "\n"), nil
}

// Purpose groups used by the purpose narrative.
const (
	GroupLabor  = "Lao động"
	GroupFamily = "Thăm thân, mđk"
)

// purposeGroup buckets a free-text status; "" when it belongs to neither group.
func purposeGroup(status string) string {
	s := textnorm.Lower(status)
	switch {
	case strings.Contains(s, "lao động"):
		return GroupLabor
	case strings.Contains(s, "thăm thân"), strings.Contains(s, "mđk"), strings.Contains(s, "kết hôn"):
		return GroupFamily
	default:
		return ""
	}
}

// PurposeNarrative lists, per purpose group, the head count of each nationality:
// "Lao động: CHN: 05 người; KOR: 03 người. Tổng số: 8 người."
func (e *Engine) PurposeNarrative(f Filter) (string, error) {
	if err := f.Validate(); err != nil {
		return "", err
	}
	groups := map[string]map[string]int{}
	for _, p := range e.Select(f) {
		g := purposeGroup(p.FinalStatus)
		if g == "" {
			continue
		}
		if groups[g] == nil {
			groups[g] = map[string]int{}
		}
		groups[g][p.Nationality]++
	}

	var paragraphs []string
	for _, g := range []string{GroupLabor, GroupFamily} {
		counts := groups[g]
		if len(counts) == 0 {
			continue
		}
		nats := make([]string, 0, len(counts))
		total := 0
		for n, c := range counts {
			nats = append(nats, n)
			total += c
		}
		sort.Slice(nats, func(i, j int) bool {
			if counts[nats[i]] != counts[nats[j]] {
				return counts[nats[i]] > counts[nats[j]]
			}
			return nats[i] < nats[j]
		})
		details := make([]string, len(nats))
		for i, n := range nats {
			details[i] = fmt.Sprintf("%s: %02d người", n, counts[n])
		}
		paragraphs = append(paragraphs, fmt.Sprintf("%s: %s. Tổng số: %d người.", g, strings.Join(details, "; "), total))
	}
	return strings.Join(paragraphs, "\n\n"), nil
}
