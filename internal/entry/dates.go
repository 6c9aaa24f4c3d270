package entry

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	isoLayout = "2006-01-02"
	vnLayout  = "02/01/2006"
)

// Layouts are tried in order; day-first wins over the US month-first form.
var dateLayouts = []string{
	"02/01/2006",
	"02-01-2006",
	"2006-01-02",
	"2006/01/02",
	"02.01.2006",
	"01/02/2006",
	"2/1/2006",
	"2-1-2006",
}

var looseDate = regexp.MustCompile(`^(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2,4})`)

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts calendar days from a to b (negative when b precedes a).
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// AddDays shifts a calendar day.
func AddDays(t time.Time, n int) time.Time {
	return Day(t).AddDate(0, 0, n)
}

// ParseDate accepts the date forms seen in immigration spreadsheets.
// The second return is false when s is non-empty but unparseable.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Day(t), true
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Day(t), true
	}
	// "2024-01-05 00:00:00" as written by spreadsheet exports
	if len(s) > 10 {
		if t, err := time.Parse(isoLayout, s[:10]); err == nil {
			return Day(t), true
		}
	}

	m := looseDate.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if year < 100 {
		if year < 50 {
			year += 2000
		} else {
			year += 1900
		}
	}
	if t, ok := validDate(year, month, day); ok {
		return t, true
	}
	// day and month swapped
	return validDate(year, day, month)
}

func validDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// FormatISO renders a day as YYYY-MM-DD; the zero time renders empty.
func FormatISO(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(isoLayout)
}

// FormatVN renders a day as DD/MM/YYYY; nil renders empty.
func FormatVN(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(vnLayout)
}

// DatePtr is a convenience for optional date fields.
func DatePtr(t time.Time) *time.Time {
	return &t
}
