package registry

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"staytrack/internal/entry"
	"staytrack/internal/textnorm"
)

// FromTable converts an extracted reference sheet into records of one kind.
// Rows without a valid passport are skipped; unknown columns are ignored.
func FromTable(kind Kind, t entry.Table, now time.Time) ([]Record, entry.Report, error) {
	report := entry.Report{BatchID: uuid.NewString(), Source: t.Source}
	rule, ok := ruleFor(kind)
	if !ok {
		return nil, report, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	passportCol := -1
	fields := make(map[int]string)
	for i, h := range t.Columns {
		if passportCol < 0 && entry.CanonicalField(h) == entry.FieldPassport {
			passportCol = i
			continue
		}
		if f, ok := rule.Columns[textnorm.Header(h)]; ok {
			fields[i] = f
		}
	}
	if passportCol < 0 {
		return nil, report, fmt.Errorf("%w (columns: %s)", entry.ErrMissingPassportColumn, strings.Join(t.Columns, ", "))
	}

	var out []Record
	for idx, row := range t.Rows {
		var raw string
		if passportCol < len(row) {
			raw = row[passportCol]
		}
		p := entry.NormalizePassport(raw)
		if !entry.ValidPassport(p) {
			report.Skipped++
			report.AddIssue(entry.Issue{
				Row: idx + 2, Column: entry.FieldPassport, Message: "invalid passport", Value: raw, Severity: entry.SeveritySkip,
			})
			continue
		}
		rec := Record{Passport: p, Fields: make(map[string]string), UpdatedAt: now}
		for i, f := range fields {
			if i < len(row) {
				if v := strings.TrimSpace(row[i]); v != "" {
					rec.Fields[f] = v
				}
			}
		}
		out = append(out, rec)
		report.Processed++
	}

	log.Info().Str("kind", string(kind)).Str("batch", report.BatchID).
		Int("processed", report.Processed).Int("skipped", report.Skipped).
		Msg("Ingested registry table")
	return out, report, nil
}
