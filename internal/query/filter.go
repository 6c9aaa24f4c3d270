// Package query filters, orders and aggregates materialised person summaries.
// It holds no business rules beyond selection and presentation.
package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"staytrack/internal/entry"
	"staytrack/internal/nationality"
	"staytrack/internal/summary"
	"staytrack/internal/textnorm"
)

// Residence status pseudo-values accepted in Filter.Status.
const (
	StatusPresent = "dang_tam_tru"
	StatusEnded   = "da_ket_thuc"
)

// Comparison operators for Filter.DaysOp.
const (
	OpAtLeast = ">="
	OpAtMost  = "<="
)

// Filter selects persons. Zero values disable a criterion.
type Filter struct {
	// DateFrom and DateTo bound the latest stay's arrival, inclusive.
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`
	// Continents restricts nationalities to continent groups.
	Continents []string `json:"continents,omitempty"`
	// MinTotalDays is a minimum of annual days and keeps only people still present.
	MinTotalDays *int `json:"min_total_days,omitempty"`
	// MinLifetimeDays is a minimum of lifetime days.
	MinLifetimeDays *int `json:"min_lifetime_days,omitempty"`
	// DaysOp compares annual days with DaysValue.
	DaysOp    string `json:"days_op,omitempty"`
	DaysValue *int   `json:"days_value,omitempty"`
	// Status matches final status exactly, or one of the residence pseudo-values.
	Status   string `json:"status,omitempty"`
	FreeText string `json:"free_text,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

// Validate rejects inconsistent filters.
func (f Filter) Validate() error {
	if f.DaysOp != "" && f.DaysOp != OpAtLeast && f.DaysOp != OpAtMost {
		return fmt.Errorf("invalid days operator %q", f.DaysOp)
	}
	if f.DateFrom != nil && f.DateTo != nil && f.DateTo.Before(*f.DateFrom) {
		return fmt.Errorf("date_to %s precedes date_from %s", entry.FormatISO(*f.DateTo), entry.FormatISO(*f.DateFrom))
	}
	if f.Limit < 0 || f.Offset < 0 {
		return fmt.Errorf("limit and offset must not be negative")
	}
	return nil
}

// Match reports whether a person satisfies every criterion as of asOf.
func (f Filter) Match(p summary.PersonSummary, asOf time.Time) bool {
	asOf = entry.Day(asOf)
	if f.DateFrom != nil && p.ArrivalDate.Before(entry.Day(*f.DateFrom)) {
		return false
	}
	if f.DateTo != nil && p.ArrivalDate.After(entry.Day(*f.DateTo)) {
		return false
	}
	if !nationality.Matches(p.Nationality, f.Continents) {
		return false
	}
	if f.MinTotalDays != nil {
		if p.DaysLast365 < *f.MinTotalDays {
			return false
		}
		if p.DepartureDate != nil && p.DepartureDate.Before(asOf) {
			return false
		}
	}
	if f.MinLifetimeDays != nil && p.LifetimeDays < *f.MinLifetimeDays {
		return false
	}
	if f.DaysValue != nil {
		if f.DaysOp == OpAtMost {
			if p.DaysLast365 > *f.DaysValue {
				return false
			}
		} else if p.DaysLast365 < *f.DaysValue {
			return false
		}
	}
	switch f.Status {
	case "":
	case StatusPresent:
		if !p.StillPresent(asOf) {
			return false
		}
	case StatusEnded:
		if p.StillPresent(asOf) {
			return false
		}
	default:
		if p.FinalStatus != f.Status {
			return false
		}
	}
	if f.FreeText != "" && !MatchText(p, f.FreeText) {
		return false
	}
	return true
}

// MatchText folds keyword, passport and name (no diacritics, upper case, no
// spaces) and tests for a substring.
func MatchText(p summary.PersonSummary, keyword string) bool {
	k := textnorm.SearchKey(keyword)
	if k == "" {
		return true
	}
	return strings.Contains(textnorm.SearchKey(p.Passport), k) ||
		strings.Contains(textnorm.SearchKey(p.FullName), k)
}

// Describe renders the active period criteria in Vietnamese, "" when none.
func (f Filter) Describe() string {
	var period string
	switch {
	case f.DateFrom != nil && f.DateTo != nil:
		period = "từ " + entry.FormatVN(f.DateFrom) + " đến " + entry.FormatVN(f.DateTo)
	case f.DateFrom != nil:
		period = "từ " + entry.FormatVN(f.DateFrom)
	case f.DateTo != nil:
		period = "đến " + entry.FormatVN(f.DateTo)
	}
	if f.MinTotalDays != nil && *f.MinTotalDays > 0 {
		period += " (Tổng ngày lưu trú >= " + strconv.Itoa(*f.MinTotalDays) + " ngày)"
	}
	return strings.TrimSpace(period)
}
