package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"staytrack/internal/entry"
	"staytrack/internal/registry"
)

// PostgresStore is the shared multi-user backend.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to url and ensures the schema exists.
func OpenPostgres(ctx context.Context, url string) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 1
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.CreateSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return s, nil
}

// CreateSchema creates the tables if missing.
func (s *PostgresStore) CreateSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		passport            TEXT NOT NULL,
		arrival_date        DATE NOT NULL,
		full_name           TEXT NOT NULL DEFAULT '',
		birth_date          DATE,
		nationality         TEXT NOT NULL DEFAULT '',
		departure_date      DATE,
		address             TEXT NOT NULL DEFAULT '',
		verification_result TEXT NOT NULL DEFAULT '',
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		source_file         TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (passport, arrival_date)
	);

	CREATE INDEX IF NOT EXISTS idx_entries_arrival ON entries(arrival_date);

	CREATE TABLE IF NOT EXISTS registry (
		kind       TEXT NOT NULL,
		passport   TEXT NOT NULL,
		fields     JSONB NOT NULL DEFAULT '{}',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (kind, passport)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value BIGINT NOT NULL
	);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const pgEntryColumns = `passport, arrival_date, full_name, birth_date, nationality,
	departure_date, address, verification_result, updated_at, source_file`

func scanPgEntry(row pgx.Row) (entry.RawEntry, error) {
	var r entry.RawEntry
	err := row.Scan(&r.Passport, &r.ArrivalDate, &r.FullName, &r.BirthDate, &r.Nationality,
		&r.DepartureDate, &r.Address, &r.VerificationResult, &r.UpdatedAt, &r.SourceFile)
	return r, err
}

func (s *PostgresStore) LoadEntries(ctx context.Context) ([]entry.RawEntry, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+pgEntryColumns+` FROM entries ORDER BY passport, arrival_date`)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var out []entry.RawEntry
	for rows.Next() {
		r, err := scanPgEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		r.ArrivalDate = entry.Day(r.ArrivalDate)
		out = append(out, r)
	}
	return out, rows.Err()
}

func bumpPgRevision(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx, `INSERT INTO meta(key, value) VALUES ('revision', 1)
		ON CONFLICT(key) DO UPDATE SET value = meta.value + 1`)
	return err
}

func (s *PostgresStore) UpsertEntries(ctx context.Context, rows []entry.RawEntry) (UpsertResult, error) {
	var res UpsertResult
	rows = collapse(rows)
	if len(rows) == 0 {
		return res, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range rows {
		inserted, err := s.upsertEntry(ctx, tx, r)
		if err != nil {
			return UpsertResult{}, err
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}
	if err := bumpPgRevision(ctx, tx); err != nil {
		return UpsertResult{}, fmt.Errorf("bump revision: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return UpsertResult{}, fmt.Errorf("commit: %w", err)
	}
	log.Info().Int("inserted", res.Inserted).Int("updated", res.Updated).Msg("Upserted entries")
	return res, nil
}

// upsertEntry inserts r, or merges it into the stored row for its key. The
// insert waits on any concurrent insert of the same key, and the row lock held
// from the re-read to the update keeps the merge atomic.
func (s *PostgresStore) upsertEntry(ctx context.Context, tx pgx.Tx, r entry.RawEntry) (bool, error) {
	k := r.Key()
	tag, err := tx.Exec(ctx, `
		INSERT INTO entries (`+pgEntryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (passport, arrival_date) DO NOTHING`,
		k.Passport, r.ArrivalDate, r.FullName, r.BirthDate, r.Nationality,
		r.DepartureDate, r.Address, r.VerificationResult, r.UpdatedAt, r.SourceFile)
	if err != nil {
		return false, fmt.Errorf("insert %s: %w", k, err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	existing, err := scanPgEntry(tx.QueryRow(ctx,
		`SELECT `+pgEntryColumns+` FROM entries WHERE passport = $1 AND arrival_date = $2 FOR UPDATE`,
		k.Passport, r.ArrivalDate))
	if err != nil {
		return false, fmt.Errorf("select %s: %w", k, err)
	}
	r = entry.Merge(existing, r)
	if _, err := tx.Exec(ctx, `
		UPDATE entries SET full_name = $3, birth_date = $4, nationality = $5, departure_date = $6,
			address = $7, verification_result = $8, updated_at = $9, source_file = $10
		WHERE passport = $1 AND arrival_date = $2`,
		k.Passport, r.ArrivalDate, r.FullName, r.BirthDate, r.Nationality,
		r.DepartureDate, r.Address, r.VerificationResult, r.UpdatedAt, r.SourceFile); err != nil {
		return false, fmt.Errorf("update %s: %w", k, err)
	}
	return false, nil
}

func (s *PostgresStore) ApplyVerification(ctx context.Context, passport, result string, at time.Time) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE entries SET verification_result = $1, updated_at = $2 WHERE passport = $3`,
		result, at, entry.NormalizePassport(passport))
	if err != nil {
		return 0, fmt.Errorf("update verification: %w", err)
	}
	n := int(tag.RowsAffected())
	if n == 0 {
		return 0, nil
	}
	if err := bumpPgRevision(ctx, tx); err != nil {
		return 0, fmt.Errorf("bump revision: %w", err)
	}
	return n, tx.Commit(ctx)
}

func (s *PostgresStore) LoadRegistry(ctx context.Context, kind registry.Kind) ([]registry.Record, error) {
	if _, err := registry.ParseKind(string(kind)); err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, `SELECT passport, fields, updated_at FROM registry WHERE kind = $1 ORDER BY passport`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("query registry: %w", err)
	}
	defer rows.Close()

	var out []registry.Record
	for rows.Next() {
		var (
			r      registry.Record
			fields []byte
		)
		if err := rows.Scan(&r.Passport, &fields, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan registry: %w", err)
		}
		if err := json.Unmarshal(fields, &r.Fields); err != nil {
			return nil, fmt.Errorf("decode fields for %s: %w", r.Passport, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertRegistry(ctx context.Context, kind registry.Kind, records []registry.Record) (int, error) {
	if _, err := registry.ParseKind(string(kind)); err != nil {
		return 0, err
	}
	records = normalizeRecords(records)
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		fields, err := json.Marshal(r.Fields)
		if err != nil {
			return 0, fmt.Errorf("encode fields for %s: %w", r.Passport, err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO registry (kind, passport, fields, updated_at) VALUES ($1, $2, $3, $4)
			ON CONFLICT (kind, passport) DO UPDATE SET fields = EXCLUDED.fields, updated_at = EXCLUDED.updated_at`,
			string(kind), r.Passport, json.RawMessage(fields), r.UpdatedAt); err != nil {
			return 0, fmt.Errorf("write registry %s: %w", r.Passport, err)
		}
	}
	if err := bumpPgRevision(ctx, tx); err != nil {
		return 0, fmt.Errorf("bump revision: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(records), nil
}

func (s *PostgresStore) Version(ctx context.Context) (string, error) {
	var v int64
	err := s.pool.QueryRow(ctx, `SELECT value FROM meta WHERE key = 'revision'`).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "0", nil
	}
	if err != nil {
		return "", fmt.Errorf("read revision: %w", err)
	}
	return fmt.Sprint(v), nil
}
