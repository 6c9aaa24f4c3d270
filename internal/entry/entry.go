package entry

import (
	"strings"
	"time"
)

// RawEntry is one immigration-log row: a single arrival of a foreign national,
// with an optional departure.
type RawEntry struct {
	// Passport is the passport number as captured; identity uses NormalizePassport.
	Passport string `json:"passport"`
	FullName string `json:"full_name"`
	// BirthDate is nil when unknown or unparseable.
	BirthDate   *time.Time `json:"birth_date,omitempty"`
	Nationality string     `json:"nationality"`
	// ArrivalDate is a calendar day (UTC midnight).
	ArrivalDate time.Time `json:"arrival_date"`
	// DepartureDate is nil while the person is still present.
	DepartureDate *time.Time `json:"departure_date,omitempty"`
	Address       string     `json:"address"`
	// VerificationResult is a free-text manual override of the derived status.
	VerificationResult string    `json:"verification_result,omitempty"`
	UpdatedAt          time.Time `json:"updated_at"`
	SourceFile         string    `json:"source_file,omitempty"`
}

// Key identifies an arrival: normalised passport plus arrival day.
type Key struct {
	Passport string
	Arrival  string
}

func (k Key) String() string {
	return k.Passport + "|" + k.Arrival
}

// Key returns the identity of the row.
func (e RawEntry) Key() Key {
	return Key{Passport: NormalizePassport(e.Passport), Arrival: FormatISO(e.ArrivalDate)}
}

// IsOpen reports whether the row describes an ongoing stay.
func (e RawEntry) IsOpen() bool {
	return e.DepartureDate == nil
}

// EffectiveEnd is the departure day, or asOf for an open stay.
func (e RawEntry) EffectiveEnd(asOf time.Time) time.Time {
	if e.DepartureDate == nil {
		return Day(asOf)
	}
	return Day(*e.DepartureDate)
}

// HasVerification reports whether a non-blank manual verification is present.
func (e RawEntry) HasVerification() bool {
	return strings.TrimSpace(e.VerificationResult) != ""
}

// Merge combines an existing stored row with an incoming row for the same key.
// The newer row supplies identity fields; departure and verification fall back to
// the other row's value instead of being cleared.
func Merge(existing, incoming RawEntry) RawEntry {
	newer, older := incoming, existing
	if existing.UpdatedAt.After(incoming.UpdatedAt) {
		newer, older = existing, incoming
	}

	out := newer
	if out.DepartureDate == nil {
		out.DepartureDate = older.DepartureDate
	}
	if !out.HasVerification() {
		out.VerificationResult = older.VerificationResult
	}
	if out.BirthDate == nil {
		out.BirthDate = older.BirthDate
	}
	return out
}
