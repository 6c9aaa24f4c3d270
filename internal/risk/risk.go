// Package risk scores persons with advisory, rule-based points. Scores are
// descriptive only and never change a person's final status.
package risk

import (
	"fmt"
	"sort"
	"strings"

	"staytrack/internal/summary"
	"staytrack/internal/textnorm"
)

// Level buckets a score.
type Level string

const (
	High   Level = "HIGH"
	Medium Level = "MEDIUM"
	Low    Level = "LOW"
)

// ParseLevel accepts a level name in any case; "" means no level.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToUpper(strings.TrimSpace(s))); l {
	case "", High, Medium, Low:
		return l, nil
	default:
		return "", fmt.Errorf("unknown risk level %q", s)
	}
}

// LevelFor maps a score onto HIGH (>=6), MEDIUM (3..5) or LOW.
func LevelFor(score int) Level {
	switch {
	case score >= 6:
		return High
	case score >= 3:
		return Medium
	default:
		return Low
	}
}

type addressClass struct {
	keywords []string
	points   int
	reason   string
}

// First matching class scores.
var addressClasses = []addressClass{
	{[]string{"kcn", "ccn", "khu công nghiệp", "cụm công nghiệp"}, 3, "Địa chỉ KCN/CCN"},
	{[]string{"công ty", "cty"}, 2, "Địa chỉ công ty"},
	{[]string{"bảo yên", "lô cc", "kdc", "đồng trung", "nà chiềng"}, 2, ""},
	{[]string{"homestay", "resort"}, 1, ""},
}

type threshold struct {
	min    int
	points int
}

var (
	dayThresholds   = []threshold{{90, 3}, {30, 2}, {8, 1}}
	entryThresholds = []threshold{{5, 2}, {3, 1}}
)

func thresholdPoints(v int, ts []threshold) int {
	for _, t := range ts {
		if v >= t.min {
			return t.points
		}
	}
	return 0
}

func addressPoints(address string) (int, string) {
	a := textnorm.Lower(address)
	for _, c := range addressClasses {
		for _, kw := range c.keywords {
			if strings.Contains(a, kw) {
				return c.points, c.reason
			}
		}
	}
	return 0, ""
}

func statusPoints(status string) int {
	s := textnorm.Lower(status)
	switch {
	case strings.Contains(s, "lao động"):
		return 2
	case strings.Contains(s, "kết hôn"), strings.Contains(s, "thăm thân"):
		return 1
	default:
		return 0
	}
}

// Assessment is the scored view of one person.
type Assessment struct {
	Passport    string `json:"passport"`
	FullName    string `json:"full_name"`
	Nationality string `json:"nationality"`
	Address     string `json:"address"`
	FinalStatus string `json:"final_status,omitempty"`
	DaysLast365 int    `json:"days_last_365d"`
	Entries     int    `json:"entries_last_365d"`
	Score       int    `json:"score"`
	Level       Level  `json:"level"`
	Reason      string `json:"reason"`
}

// Score assesses one person.
func Score(p summary.PersonSummary) Assessment {
	addrPts, addrReason := addressPoints(p.Address)
	score := addrPts +
		thresholdPoints(p.DaysLast365, dayThresholds) +
		thresholdPoints(p.EntriesLast365, entryThresholds) +
		statusPoints(p.FinalStatus)

	var reasons []string
	if addrReason != "" {
		reasons = append(reasons, addrReason)
	}
	if p.DaysLast365 >= 30 {
		reasons = append(reasons, fmt.Sprintf("Tạm trú %d ngày", p.DaysLast365))
	}
	if p.EntriesLast365 >= 3 {
		reasons = append(reasons, fmt.Sprintf("Nhập cảnh %d lần", p.EntriesLast365))
	}
	reason := strings.Join(reasons, "; ")
	if reason == "" {
		reason = "Nhiều yếu tố"
	}

	return Assessment{
		Passport:    p.Passport,
		FullName:    p.FullName,
		Nationality: p.Nationality,
		Address:     p.Address,
		FinalStatus: p.FinalStatus,
		DaysLast365: p.DaysLast365,
		Entries:     p.EntriesLast365,
		Score:       score,
		Level:       LevelFor(score),
		Reason:      reason,
	}
}

// Predictions scores everyone, keeps positive scores, orders by score descending
// (passport ascending on ties), filters by level when given, then applies limit
// (limit <= 0 means no limit).
func Predictions(people []summary.PersonSummary, level Level, limit int) []Assessment {
	var out []Assessment
	for _, p := range people {
		a := Score(p)
		if a.Score <= 0 {
			continue
		}
		if level != "" && a.Level != level {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Passport < out[j].Passport
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
