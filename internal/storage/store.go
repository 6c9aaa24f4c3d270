// Package storage persists immigration-log rows and registry records.
//
// Three backends share the Store interface: JSON Lines files, SQLite and
// PostgreSQL. All of them upsert rows by (normalised passport, arrival day)
// using entry.Merge, and expose a Version that changes on every write.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"staytrack/internal/entry"
	"staytrack/internal/registry"
)

// Supported drivers.
const (
	DriverJSONL    = "jsonl"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrUnknownDriver is returned by Open for a driver outside the supported set.
var ErrUnknownDriver = errors.New("unknown storage driver")

// UpsertResult counts what an upsert did.
type UpsertResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// Store is the persistence boundary.
type Store interface {
	LoadEntries(ctx context.Context) ([]entry.RawEntry, error)
	UpsertEntries(ctx context.Context, rows []entry.RawEntry) (UpsertResult, error)
	// ApplyVerification sets the verification result on every row of a passport
	// and returns the number of rows touched.
	ApplyVerification(ctx context.Context, passport, result string, at time.Time) (int, error)
	LoadRegistry(ctx context.Context, kind registry.Kind) ([]registry.Record, error)
	UpsertRegistry(ctx context.Context, kind registry.Kind, records []registry.Record) (int, error)
	// Version changes whenever any stored data changes.
	Version(ctx context.Context) (string, error)
	Close() error
}

// Config selects and locates a backend.
type Config struct {
	Driver      string
	DataPath    string
	SQLitePath  string
	PostgresURL string
}

// Open opens the backend named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case DriverJSONL:
		return OpenJSONL(filepath.Join(cfg.DataPath, "store"))
	case DriverSQLite, "":
		path := cfg.SQLitePath
		if path == "" {
			path = filepath.Join(cfg.DataPath, "staytrack.db")
		}
		return OpenSQLite(path)
	case DriverPostgres:
		if cfg.PostgresURL == "" {
			return nil, fmt.Errorf("postgres driver requires POSTGRES_URL")
		}
		return OpenPostgres(ctx, cfg.PostgresURL)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// normalizeRow puts a row into its stored form: normalised passport and an
// arrival at day precision.
func normalizeRow(r entry.RawEntry) entry.RawEntry {
	r.Passport = entry.NormalizePassport(r.Passport)
	r.ArrivalDate = entry.Day(r.ArrivalDate)
	if r.DepartureDate != nil {
		r.DepartureDate = entry.DatePtr(entry.Day(*r.DepartureDate))
	}
	if r.BirthDate != nil {
		r.BirthDate = entry.DatePtr(entry.Day(*r.BirthDate))
	}
	return r
}

// collapse folds a batch onto one row per key so that duplicates inside a
// single import merge the same way as against stored rows.
func collapse(rows []entry.RawEntry) []entry.RawEntry {
	index := make(map[entry.Key]int, len(rows))
	out := make([]entry.RawEntry, 0, len(rows))
	for _, r := range rows {
		r = normalizeRow(r)
		if r.Passport == "" || r.ArrivalDate.IsZero() {
			continue
		}
		k := r.Key()
		if i, ok := index[k]; ok {
			out[i] = entry.Merge(out[i], r)
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}

func normalizeRecords(records []registry.Record) []registry.Record {
	out := make([]registry.Record, 0, len(records))
	for _, r := range records {
		r.Passport = entry.NormalizePassport(r.Passport)
		if r.Passport == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
