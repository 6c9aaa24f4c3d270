package entry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"staytrack/internal/nationality"
	"staytrack/internal/textnorm"
)

// ErrMissingPassportColumn rejects a table before any row is processed.
var ErrMissingPassportColumn = errors.New("missing required passport column")

// Canonical field names a table column can map onto.
const (
	FieldPassport     = "passport"
	FieldFullName     = "full_name"
	FieldBirthDate    = "birth_date"
	FieldNationality  = "nationality"
	FieldArrival      = "arrival_date"
	FieldDeparture    = "departure_date"
	FieldAddress      = "address"
	FieldVerification = "verification_result"
	FieldUpdatedAt    = "updated_at"
)

// headerAliases maps normalised spreadsheet headers to canonical fields.
var headerAliases = map[string]string{
	"so_ho_chieu":         FieldPassport,
	"sohochieu":           FieldPassport,
	"passport":            FieldPassport,
	"ho_ten":              FieldFullName,
	"ho_va_ten":           FieldFullName,
	"full_name":           FieldFullName,
	"ngay_sinh":           FieldBirthDate,
	"ngaysinh":            FieldBirthDate,
	"birth_date":          FieldBirthDate,
	"quoc_tich":           FieldNationality,
	"quoctich":            FieldNationality,
	"nationality":         FieldNationality,
	"ngay_den":            FieldArrival,
	"ngayden":             FieldArrival,
	"arrival_date":        FieldArrival,
	"ngay_di":             FieldDeparture,
	"ngaydi":              FieldDeparture,
	"departure_date":      FieldDeparture,
	"dia_chi":             FieldAddress,
	"dia_chi_tam_tru":     FieldAddress,
	"diachi":              FieldAddress,
	"address":             FieldAddress,
	"ket_qua_xac_minh":    FieldVerification,
	"ketquaxacminh":       FieldVerification,
	"xac_minh":            FieldVerification,
	"ket_qua":             FieldVerification,
	"verification_result": FieldVerification,
	"thoi_diem_cap_nhat":  FieldUpdatedAt,
	"updated_at":          FieldUpdatedAt,
}

// CanonicalField maps a raw header to its canonical field, or "" if unknown.
func CanonicalField(header string) string {
	return headerAliases[textnorm.Header(header)]
}

// Table is extracted tabular data: a header row and string cells.
type Table struct {
	Columns []string
	Rows    [][]string
	Source  string
}

// Severity of an ingestion issue.
const (
	SeveritySkip    = "skip"
	SeverityWarning = "warning"
)

const maxIssues = 50

// Issue describes one row-level problem.
type Issue struct {
	Row      int    `json:"row"`
	Column   string `json:"column"`
	Message  string `json:"message"`
	Value    string `json:"value,omitempty"`
	Severity string `json:"severity"`
}

// Report tallies the outcome of one ingestion batch.
type Report struct {
	BatchID   string  `json:"batch_id"`
	Source    string  `json:"source"`
	Processed int     `json:"processed"`
	Skipped   int     `json:"skipped"`
	Warned    int     `json:"warned"`
	Inserted  int     `json:"inserted"`
	Updated   int     `json:"updated"`
	Issues    []Issue `json:"issues,omitempty"`
}

// AddIssue records an issue, keeping at most the first 50.
func (r *Report) AddIssue(is Issue) {
	if len(r.Issues) < maxIssues {
		r.Issues = append(r.Issues, is)
	}
}

// Ingest converts a table into normalised rows. Rows that cannot be keyed are
// skipped; other bad cells become empty values with a warning.
func Ingest(t Table, now time.Time) ([]RawEntry, Report, error) {
	report := Report{BatchID: uuid.NewString(), Source: t.Source}

	// 1. Map headers
	cols := make(map[string]int)
	for i, h := range t.Columns {
		if f := CanonicalField(h); f != "" {
			if _, dup := cols[f]; !dup {
				cols[f] = i
			}
		}
	}
	if _, ok := cols[FieldPassport]; !ok {
		return nil, report, fmt.Errorf("%w (columns: %s)", ErrMissingPassportColumn, strings.Join(t.Columns, ", "))
	}

	cell := func(row []string, field string) string {
		i, ok := cols[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	// 2. Convert rows
	var out []RawEntry
	for idx, row := range t.Rows {
		rowNum := idx + 2 // header is spreadsheet row 1
		warned := false
		warn := func(col, msg, val string) {
			warned = true
			report.AddIssue(Issue{Row: rowNum, Column: col, Message: msg, Value: val, Severity: SeverityWarning})
			log.Debug().Int("row", rowNum).Str("column", col).Str("value", val).Msg(msg)
		}
		skip := func(col, msg, val string) {
			report.Skipped++
			report.AddIssue(Issue{Row: rowNum, Column: col, Message: msg, Value: val, Severity: SeveritySkip})
			log.Debug().Int("row", rowNum).Str("column", col).Str("value", val).Msg(msg)
		}

		rawPassport := cell(row, FieldPassport)
		passport := NormalizePassport(rawPassport)
		if passport == "" {
			skip(FieldPassport, "empty passport", rawPassport)
			continue
		}
		if !ValidPassport(passport) {
			skip(FieldPassport, "invalid passport", rawPassport)
			continue
		}

		rawArrival := cell(row, FieldArrival)
		arrival, ok := ParseDate(rawArrival)
		if !ok {
			skip(FieldArrival, "missing or invalid arrival date", rawArrival)
			continue
		}

		e := RawEntry{
			Passport:           passport,
			FullName:           cell(row, FieldFullName),
			Nationality:        strings.ToUpper(cell(row, FieldNationality)),
			ArrivalDate:        arrival,
			Address:            cell(row, FieldAddress),
			VerificationResult: cell(row, FieldVerification),
			UpdatedAt:          now,
			SourceFile:         t.Source,
		}

		if raw := cell(row, FieldBirthDate); raw != "" {
			if d, ok := ParseDate(raw); ok {
				e.BirthDate = &d
			} else {
				warn(FieldBirthDate, "invalid birth date", raw)
			}
		}
		if raw := cell(row, FieldDeparture); raw != "" {
			if d, ok := ParseDate(raw); ok {
				e.DepartureDate = &d
				if d.Before(arrival) {
					warn(FieldDeparture, "departure before arrival", raw)
				}
			} else {
				warn(FieldDeparture, "invalid departure date", raw)
			}
		}
		if raw := cell(row, FieldUpdatedAt); raw != "" {
			if ts, err := time.Parse(time.RFC3339, raw); err == nil {
				e.UpdatedAt = ts
			} else if d, ok := ParseDate(raw); ok {
				e.UpdatedAt = d
			}
		}
		if e.Nationality != "" && !nationality.Known(e.Nationality) {
			warn(FieldNationality, "unknown nationality", e.Nationality)
		}

		if warned {
			report.Warned++
		}
		report.Processed++
		out = append(out, e)
	}

	log.Info().
		Str("batch", report.BatchID).
		Str("source", t.Source).
		Int("processed", report.Processed).
		Int("skipped", report.Skipped).
		Int("warned", report.Warned).
		Msg("Ingested table")
	return out, report, nil
}

// Verification is one manual verification result for a passport.
type Verification struct {
	Passport string `json:"passport"`
	Result   string `json:"verification_result"`
}

// VerificationsFromTable reads a passport plus verification-result sheet.
// Rows with an invalid passport or a blank result are skipped.
func VerificationsFromTable(t Table) ([]Verification, Report, error) {
	report := Report{BatchID: uuid.NewString(), Source: t.Source}
	passportCol, resultCol := -1, -1
	for i, h := range t.Columns {
		switch CanonicalField(h) {
		case FieldPassport:
			if passportCol < 0 {
				passportCol = i
			}
		case FieldVerification:
			if resultCol < 0 {
				resultCol = i
			}
		}
	}
	if passportCol < 0 {
		return nil, report, fmt.Errorf("%w (columns: %s)", ErrMissingPassportColumn, strings.Join(t.Columns, ", "))
	}
	if resultCol < 0 {
		return nil, report, fmt.Errorf("missing required verification column (columns: %s)", strings.Join(t.Columns, ", "))
	}

	var out []Verification
	for idx, row := range t.Rows {
		var raw, result string
		if passportCol < len(row) {
			raw = row[passportCol]
		}
		if resultCol < len(row) {
			result = strings.TrimSpace(row[resultCol])
		}
		p := NormalizePassport(raw)
		switch {
		case !ValidPassport(p):
			report.Skipped++
			report.AddIssue(Issue{Row: idx + 2, Column: FieldPassport, Message: "invalid passport", Value: raw, Severity: SeveritySkip})
		case result == "":
			report.Skipped++
			report.AddIssue(Issue{Row: idx + 2, Column: FieldVerification, Message: "empty verification result", Value: raw, Severity: SeveritySkip})
		default:
			report.Processed++
			out = append(out, Verification{Passport: p, Result: result})
		}
	}
	return out, report, nil
}
