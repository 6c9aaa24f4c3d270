package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"staytrack/internal/entry"
	"staytrack/internal/registry"
)

// SQLiteStore is the default single-file backend.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates a SQLite database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection serialises writers and keeps per-connection pragmas in effect.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := createSQLiteSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func createSQLiteSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		passport            TEXT NOT NULL,
		arrival_date        TEXT NOT NULL,
		full_name           TEXT NOT NULL DEFAULT '',
		birth_date          TEXT,
		nationality         TEXT NOT NULL DEFAULT '',
		departure_date      TEXT,
		address             TEXT NOT NULL DEFAULT '',
		verification_result TEXT NOT NULL DEFAULT '',
		updated_at          TEXT NOT NULL,
		source_file         TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (passport, arrival_date)
	);

	CREATE INDEX IF NOT EXISTS idx_entries_arrival ON entries(arrival_date);

	CREATE TABLE IF NOT EXISTS registry (
		kind       TEXT NOT NULL,
		passport   TEXT NOT NULL,
		fields     TEXT NOT NULL DEFAULT '{}',
		updated_at TEXT NOT NULL,
		PRIMARY KEY (kind, passport)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: entry.FormatISO(*t), Valid: true}
}

func parseNullDate(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.DateOnly, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

type rowScanner interface {
	Scan(dest ...any) error
}

const sqliteEntryColumns = `passport, arrival_date, full_name, birth_date, nationality,
	departure_date, address, verification_result, updated_at, source_file`

func scanSQLiteEntry(sc rowScanner) (entry.RawEntry, error) {
	var (
		r                entry.RawEntry
		arrival, updated string
		birth, departure sql.NullString
	)
	if err := sc.Scan(&r.Passport, &arrival, &r.FullName, &birth, &r.Nationality,
		&departure, &r.Address, &r.VerificationResult, &updated, &r.SourceFile); err != nil {
		return r, err
	}
	var err error
	if r.ArrivalDate, err = time.Parse(time.DateOnly, arrival); err != nil {
		return r, fmt.Errorf("bad arrival_date %q: %w", arrival, err)
	}
	if r.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return r, fmt.Errorf("bad updated_at %q: %w", updated, err)
	}
	r.BirthDate = parseNullDate(birth)
	r.DepartureDate = parseNullDate(departure)
	return r, nil
}

func (s *SQLiteStore) LoadEntries(ctx context.Context) ([]entry.RawEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sqliteEntryColumns+` FROM entries ORDER BY passport, arrival_date`)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []entry.RawEntry
	for rows.Next() {
		r, err := scanSQLiteEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func bumpSQLiteRevision(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES ('revision', 1)
		ON CONFLICT(key) DO UPDATE SET value = value + 1`)
	return err
}

func (s *SQLiteStore) UpsertEntries(ctx context.Context, rows []entry.RawEntry) (UpsertResult, error) {
	var res UpsertResult
	rows = collapse(rows)
	if len(rows) == 0 {
		return res, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, r := range rows {
		inserted, err := upsertSQLiteEntry(ctx, tx, r)
		if err != nil {
			return UpsertResult{}, err
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}
	if err := bumpSQLiteRevision(ctx, tx); err != nil {
		return UpsertResult{}, fmt.Errorf("bump revision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return UpsertResult{}, fmt.Errorf("commit: %w", err)
	}
	log.Info().Int("inserted", res.Inserted).Int("updated", res.Updated).Msg("Upserted entries")
	return res, nil
}

// upsertSQLiteEntry inserts r, or merges it into the stored row for its key.
// The insert comes first so the transaction holds the write lock before it
// reads anything another process could still change.
func upsertSQLiteEntry(ctx context.Context, tx *sql.Tx, r entry.RawEntry) (bool, error) {
	k := r.Key()
	updated := r.UpdatedAt.UTC().Format(time.RFC3339Nano)
	res, err := tx.ExecContext(ctx, `
		INSERT INTO entries (`+sqliteEntryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(passport, arrival_date) DO NOTHING`,
		k.Passport, k.Arrival, r.FullName, nullDate(r.BirthDate), r.Nationality,
		nullDate(r.DepartureDate), r.Address, r.VerificationResult, updated, r.SourceFile)
	if err != nil {
		return false, fmt.Errorf("insert %s: %w", k, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return true, nil
	}

	existing, err := scanSQLiteEntry(tx.QueryRowContext(ctx,
		`SELECT `+sqliteEntryColumns+` FROM entries WHERE passport = ? AND arrival_date = ?`, k.Passport, k.Arrival))
	if err != nil {
		return false, fmt.Errorf("select %s: %w", k, err)
	}
	r = entry.Merge(existing, r)
	if _, err := tx.ExecContext(ctx, `
		UPDATE entries SET full_name = ?, birth_date = ?, nationality = ?, departure_date = ?,
			address = ?, verification_result = ?, updated_at = ?, source_file = ?
		WHERE passport = ? AND arrival_date = ?`,
		r.FullName, nullDate(r.BirthDate), r.Nationality, nullDate(r.DepartureDate),
		r.Address, r.VerificationResult, r.UpdatedAt.UTC().Format(time.RFC3339Nano), r.SourceFile,
		k.Passport, k.Arrival); err != nil {
		return false, fmt.Errorf("update %s: %w", k, err)
	}
	return false, nil
}

func (s *SQLiteStore) ApplyVerification(ctx context.Context, passport, result string, at time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE entries SET verification_result = ?, updated_at = ? WHERE passport = ?`,
		result, at.UTC().Format(time.RFC3339Nano), entry.NormalizePassport(passport))
	if err != nil {
		return 0, fmt.Errorf("update verification: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return 0, nil
	}
	if err := bumpSQLiteRevision(ctx, tx); err != nil {
		return 0, fmt.Errorf("bump revision: %w", err)
	}
	return int(n), tx.Commit()
}

func (s *SQLiteStore) LoadRegistry(ctx context.Context, kind registry.Kind) ([]registry.Record, error) {
	if _, err := registry.ParseKind(string(kind)); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT passport, fields, updated_at FROM registry WHERE kind = ? ORDER BY passport`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("query registry: %w", err)
	}
	defer rows.Close()

	var out []registry.Record
	for rows.Next() {
		var (
			r               registry.Record
			fields, updated string
		)
		if err := rows.Scan(&r.Passport, &fields, &updated); err != nil {
			return nil, fmt.Errorf("scan registry: %w", err)
		}
		if err := json.Unmarshal([]byte(fields), &r.Fields); err != nil {
			return nil, fmt.Errorf("decode fields for %s: %w", r.Passport, err)
		}
		r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpsertRegistry(ctx context.Context, kind registry.Kind, records []registry.Record) (int, error) {
	if _, err := registry.ParseKind(string(kind)); err != nil {
		return 0, err
	}
	records = normalizeRecords(records)
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, r := range records {
		fields, err := json.Marshal(r.Fields)
		if err != nil {
			return 0, fmt.Errorf("encode fields for %s: %w", r.Passport, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO registry (kind, passport, fields, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(kind, passport) DO UPDATE SET fields = excluded.fields, updated_at = excluded.updated_at`,
			string(kind), r.Passport, string(fields), r.UpdatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return 0, fmt.Errorf("write registry %s: %w", r.Passport, err)
		}
	}
	if err := bumpSQLiteRevision(ctx, tx); err != nil {
		return 0, fmt.Errorf("bump revision: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(records), nil
}

func (s *SQLiteStore) Version(ctx context.Context) (string, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'revision'`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "0", nil
	}
	if err != nil {
		return "", fmt.Errorf("read revision: %w", err)
	}
	return fmt.Sprint(v), nil
}
