// Package registry holds the reference tables (watchlist, labor, marriage,
// student) and resolves a person's status from them.
package registry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"staytrack/internal/entry"
)

// ErrUnknownKind is returned for a registry name outside Kinds().
var ErrUnknownKind = errors.New("unknown registry kind")

// Kind names a reference registry.
type Kind string

const (
	Watchlist Kind = "watchlist"
	Labor     Kind = "labor"
	Marriage  Kind = "marriage"
	Student   Kind = "student"
)

// Record is one registry row, keyed by normalised passport.
type Record struct {
	Passport  string            `json:"passport"`
	Fields    map[string]string `json:"fields,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Field returns a trimmed field value, "" when absent.
func (r Record) Field(name string) string {
	return strings.TrimSpace(r.Fields[name])
}

// Registry indexes one kind's records by normalised passport.
type Registry map[string]Record

// NewRegistry indexes records; a later record for the same passport replaces an earlier one.
func NewRegistry(records []Record) Registry {
	reg := make(Registry, len(records))
	for _, r := range records {
		p := entry.NormalizePassport(r.Passport)
		if p == "" {
			continue
		}
		r.Passport = p
		reg[p] = r
	}
	return reg
}

// Lookup finds the record for a passport in any spelling.
func (r Registry) Lookup(passport string) (Record, bool) {
	rec, ok := r[entry.NormalizePassport(passport)]
	return rec, ok
}

// Set is the full collection of registries consulted by the resolver.
type Set map[Kind]Registry

// ParseKind validates a registry name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := ruleFor(k); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Kinds lists registries in priority order.
func Kinds() []Kind {
	out := make([]Kind, len(Rules))
	for i, r := range Rules {
		out[i] = r.Kind
	}
	return out
}
