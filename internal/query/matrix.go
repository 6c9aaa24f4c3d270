package query

import (
	"math"
	"sort"
	"strings"
	"time"

	"staytrack/internal/summary"
	"staytrack/internal/textnorm"
)

// Predicted purposes produced by the matrix heuristics.
const (
	PredictedFamily = "Thăm thân (dự đoán)"
	PredictedLabor  = "Lao động (dự đoán)"
	PredictedOther  = "Khác"
	unknownNat      = "Không rõ"
	matrixRowLimit  = 50
	adultAge        = 18
)

var (
	laborAddressKeywords = []string{"kcn", "ccn", "công ty", "cty", "khu công nghiệp", "bảo yên", "lô cc", "kdc", "đồng trung", "nà chiềng"}
	leisureKeywords      = []string{"homestay", "resort", "khách sạn"}
)

func containsAny(s string, kws []string) bool {
	for _, kw := range kws {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Predict guesses a purpose: manual verification, then final status, then
// travelling with a minor, then address keywords, then annual days.
func Predict(p summary.PersonSummary, childInGroup bool) string {
	if v := strings.TrimSpace(p.VerificationResult); v != "" {
		return v
	}
	if s := strings.TrimSpace(p.FinalStatus); s != "" {
		return s
	}
	if childInGroup {
		return PredictedFamily
	}
	addr := textnorm.Lower(p.Address)
	switch {
	case containsAny(addr, laborAddressKeywords):
		return PredictedLabor
	case containsAny(addr, leisureKeywords):
		return PredictedOther
	case p.DaysLast365 >= 3:
		return PredictedLabor
	default:
		return PredictedOther
	}
}

func ageInYears(birth *time.Time, asOf time.Time) (int, bool) {
	if birth == nil {
		return 0, false
	}
	return asOf.Year() - birth.Year(), true
}

// MatrixRow counts predicted purposes for one nationality.
type MatrixRow struct {
	Nationality string  `json:"nationality"`
	Total       int     `json:"total"`
	Labor       int     `json:"labor"`
	Family      int     `json:"family"`
	Other       int     `json:"other"`
	Percent     float64 `json:"percent"`
}

// Matrix is the nationality by predicted purpose report.
type Matrix struct {
	Rows                []MatrixRow `json:"rows"`
	Totals              MatrixRow   `json:"totals"`
	TotalRecords        int         `json:"total_records"`
	UniqueNationalities int         `json:"unique_nationalities"`
}

// Matrix pivots predicted purposes by nationality for everyone matching f.
// At most 50 nationalities are returned, largest first.
func (e *Engine) Matrix(f Filter) (Matrix, error) {
	if err := f.Validate(); err != nil {
		return Matrix{}, err
	}
	people := e.Select(f)

	// A group is everyone sharing an arrival day and address.
	groupKey := func(p summary.PersonSummary) string {
		return p.ArrivalDate.Format(time.DateOnly) + "|" + p.Address
	}
	hasChild := make(map[string]bool)
	for _, p := range people {
		if age, ok := ageInYears(p.BirthDate, e.asOf); ok && age < adultAge {
			hasChild[groupKey(p)] = true
		}
	}

	rows := make(map[string]*MatrixRow)
	grand := 0
	for _, p := range people {
		nat := strings.ToUpper(strings.TrimSpace(p.Nationality))
		if nat == "" {
			nat = unknownNat
		}
		r, ok := rows[nat]
		if !ok {
			r = &MatrixRow{Nationality: nat}
			rows[nat] = r
		}
		r.Total++
		grand++
		switch purposeGroup(Predict(p, hasChild[groupKey(p)])) {
		case GroupLabor:
			r.Labor++
		case GroupFamily:
			r.Family++
		default:
			r.Other++
		}
	}

	m := Matrix{Rows: []MatrixRow{}, Totals: MatrixRow{Nationality: "Tổng"}}
	for _, r := range rows {
		if grand > 0 {
			r.Percent = math.Round(float64(r.Total)*10000/float64(grand)) / 100
		}
		m.Rows = append(m.Rows, *r)
	}
	sort.Slice(m.Rows, func(i, j int) bool {
		if m.Rows[i].Total != m.Rows[j].Total {
			return m.Rows[i].Total > m.Rows[j].Total
		}
		return m.Rows[i].Nationality < m.Rows[j].Nationality
	})
	if len(m.Rows) > matrixRowLimit {
		m.Rows = m.Rows[:matrixRowLimit]
	}
	for _, r := range m.Rows {
		m.Totals.Total += r.Total
		m.Totals.Labor += r.Labor
		m.Totals.Family += r.Family
		m.Totals.Other += r.Other
		m.Totals.Percent += r.Percent
	}
	m.Totals.Percent = math.Round(m.Totals.Percent*100) / 100
	m.TotalRecords = m.Totals.Total
	m.UniqueNationalities = len(m.Rows)
	return m, nil
}
