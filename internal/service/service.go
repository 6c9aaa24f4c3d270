// Package service wires storage, caching and metrics around the stay
// pipeline. Every outward surface (CLI, HTTP, MCP) goes through a Service.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"staytrack/internal/cache"
	"staytrack/internal/entry"
	"staytrack/internal/export"
	"staytrack/internal/metrics"
	"staytrack/internal/query"
	"staytrack/internal/registry"
	"staytrack/internal/risk"
	"staytrack/internal/storage"
	"staytrack/internal/summary"
)

// Options configure a Service.
type Options struct {
	CacheTTL time.Duration
	Query    query.Options
	// Today returns the reporting day; defaults to the current UTC day.
	Today func() time.Time
	// Now stamps imported rows; defaults to time.Now.
	Now func() time.Time
}

// Service answers queries over the current store contents.
type Service struct {
	store   storage.Store
	cache   cache.Cache
	metrics *metrics.Metrics
	opts    Options
	// guards concurrent snapshot builds for the same key
	mu sync.Mutex
}

// New creates a Service. A nil cache disables snapshot caching and nil
// metrics records nothing.
func New(store storage.Store, c cache.Cache, m *metrics.Metrics, opts Options) *Service {
	if opts.Today == nil {
		opts.Today = func() time.Time { return entry.Day(time.Now()) }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{store: store, cache: c, metrics: m, opts: opts}
}

// Today is the default reporting day.
func (s *Service) Today() time.Time {
	return entry.Day(s.opts.Today())
}

// Metrics returns the recorder, possibly nil.
func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// SnapshotKey names the cached snapshot for a day and store version.
func SnapshotKey(asOf time.Time, version string) string {
	return fmt.Sprintf("staytrack:snapshot:%s:%s", entry.FormatISO(asOf), version)
}

// Snapshot returns every person's summary as of asOf, from cache when the
// store has not changed since it was built.
func (s *Service) Snapshot(ctx context.Context, asOf time.Time) ([]summary.PersonSummary, error) {
	asOf = entry.Day(asOf)

	s.mu.Lock()
	defer s.mu.Unlock()

	version, err := s.store.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("store version: %w", err)
	}
	key := SnapshotKey(asOf, version)

	// 1. Cache
	if s.cache != nil {
		b, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Snapshot cache read failed")
		}
		if ok {
			var people []summary.PersonSummary
			if err := json.Unmarshal(b, &people); err == nil {
				s.metrics.CacheResult(true)
				log.Debug().Str("key", key).Int("persons", len(people)).Msg("Snapshot served from cache")
				return people, nil
			}
			log.Warn().Str("key", key).Msg("Discarding undecodable cached snapshot")
		}
		s.metrics.CacheResult(false)
	}

	// 2. Load rows and registries concurrently
	start := time.Now()
	var rows []entry.RawEntry
	regs := make([][]registry.Record, len(registry.Kinds()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rows, err = s.store.LoadEntries(gctx)
		return err
	})
	for i, kind := range registry.Kinds() {
		g.Go(func() error {
			recs, err := s.store.LoadRegistry(gctx, kind)
			if err != nil {
				return fmt.Errorf("load %s registry: %w", kind, err)
			}
			regs[i] = recs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	set := make(registry.Set, len(regs))
	for i, kind := range registry.Kinds() {
		set[kind] = registry.NewRegistry(regs[i])
	}

	// 3. Build
	people := summary.Build(rows, set, asOf)
	s.metrics.ObserveBuild(time.Since(start), len(people))
	log.Info().
		Str("as_of", entry.FormatISO(asOf)).
		Int("rows", len(rows)).
		Int("persons", len(people)).
		Dur("took", time.Since(start)).
		Msg("Built snapshot")

	// 4. Store in cache
	if s.cache != nil {
		if b, err := json.Marshal(people); err == nil {
			if err := s.cache.Set(ctx, key, b, s.opts.CacheTTL); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("Snapshot cache write failed")
			}
		}
	}
	return people, nil
}

// Engine returns a query engine over today's snapshot.
func (s *Service) Engine(ctx context.Context) (*query.Engine, error) {
	return s.EngineAt(ctx, s.Today())
}

// EngineAt returns a query engine over the snapshot for asOf.
func (s *Service) EngineAt(ctx context.Context, asOf time.Time) (*query.Engine, error) {
	people, err := s.Snapshot(ctx, asOf)
	if err != nil {
		return nil, err
	}
	return query.NewEngine(people, asOf, s.opts.Query), nil
}

// ImportEntries ingests an immigration-log table and upserts its rows.
func (s *Service) ImportEntries(ctx context.Context, t entry.Table) (entry.Report, error) {
	rows, report, err := entry.Ingest(t, s.opts.Now())
	if err != nil {
		return report, err
	}
	res, err := s.store.UpsertEntries(ctx, rows)
	if err != nil {
		return report, fmt.Errorf("upsert entries: %w", err)
	}
	report.Inserted, report.Updated = res.Inserted, res.Updated
	s.metrics.AddImported(res.Inserted, res.Updated, report.Skipped)
	return report, nil
}

// ImportRegistry replaces or adds records of one registry kind.
func (s *Service) ImportRegistry(ctx context.Context, kind registry.Kind, t entry.Table) (entry.Report, error) {
	records, report, err := registry.FromTable(kind, t, s.opts.Now())
	if err != nil {
		return report, err
	}
	n, err := s.store.UpsertRegistry(ctx, kind, records)
	if err != nil {
		return report, fmt.Errorf("upsert %s registry: %w", kind, err)
	}
	report.Processed = len(records)
	report.Updated = n
	log.Info().Str("kind", string(kind)).Int("records", n).Int("skipped", report.Skipped).Msg("Imported registry")
	return report, nil
}

// ImportVerifications applies manual verification results per passport.
// Passports with no stored rows are reported as warnings.
func (s *Service) ImportVerifications(ctx context.Context, t entry.Table) (entry.Report, error) {
	items, report, err := entry.VerificationsFromTable(t)
	if err != nil {
		return report, err
	}
	at := s.opts.Now()
	for i, v := range items {
		n, err := s.store.ApplyVerification(ctx, v.Passport, v.Result, at)
		if err != nil {
			return report, fmt.Errorf("apply verification for %s: %w", v.Passport, err)
		}
		if n == 0 {
			report.Warned++
			report.AddIssue(entry.Issue{Row: i + 2, Column: entry.FieldPassport, Message: "passport not found", Value: v.Passport, Severity: entry.SeverityWarning})
			continue
		}
		report.Updated += n
	}
	log.Info().Int("results", len(items)).Int("rows_updated", report.Updated).Int("not_found", report.Warned).Msg("Applied verification results")
	return report, nil
}

// Risk scores everyone in today's snapshot.
func (s *Service) Risk(ctx context.Context, level risk.Level, limit int) ([]risk.Assessment, error) {
	people, err := s.Snapshot(ctx, s.Today())
	if err != nil {
		return nil, err
	}
	return risk.Predictions(people, level, limit), nil
}

// ExportXLSX writes everyone matching f to an XLSX workbook and returns the
// number of rows written. Paging fields of f are ignored.
func (s *Service) ExportXLSX(ctx context.Context, w io.Writer, f query.Filter) (int, error) {
	eng, err := s.Engine(ctx)
	if err != nil {
		return 0, err
	}
	if err := f.Validate(); err != nil {
		return 0, err
	}
	people := eng.Select(f)
	if err := export.WriteXLSX(w, people); err != nil {
		return 0, err
	}
	return len(people), nil
}

// ExportReport writes the statistics workbook for everyone matching f.
func (s *Service) ExportReport(ctx context.Context, w io.Writer, f query.Filter) error {
	eng, err := s.Engine(ctx)
	if err != nil {
		return err
	}
	sum, err := eng.Statistics(f)
	if err != nil {
		return err
	}
	nats, err := eng.ByNationality(f, 0)
	if err != nil {
		return err
	}
	matrix, err := eng.Matrix(f)
	if err != nil {
		return err
	}
	return export.WriteReport(w, export.Report{
		Period:        f.Describe(),
		Summary:       sum,
		ByNationality: nats,
		Matrix:        &matrix,
		People:        eng.Select(f),
	})
}
