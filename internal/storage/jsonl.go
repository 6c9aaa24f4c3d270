package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"staytrack/internal/entry"
	"staytrack/internal/registry"
)

const (
	entriesFile  = "entries.jsonl"
	revisionFile = "REVISION"
)

// JSONLStore keeps everything in memory and persists each table as a JSON Lines
// file under dir. Writes replace files atomically.
type JSONLStore struct {
	mu       sync.RWMutex
	dir      string
	entries  map[entry.Key]entry.RawEntry
	records  map[registry.Kind]map[string]registry.Record
	revision int64
}

// OpenJSONL loads (or creates) a store rooted at dir.
func OpenJSONL(dir string) (*JSONLStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	s := &JSONLStore{
		dir:     dir,
		entries: make(map[entry.Key]entry.RawEntry),
		records: make(map[registry.Kind]map[string]registry.Record),
	}

	// 1. Entries
	var rows []entry.RawEntry
	if err := readJSONL(filepath.Join(dir, entriesFile), &rows); err != nil {
		return nil, err
	}
	for _, r := range rows {
		s.entries[r.Key()] = r
	}

	// 2. Registries
	for _, kind := range registry.Kinds() {
		var recs []registry.Record
		if err := readJSONL(s.registryPath(kind), &recs); err != nil {
			return nil, err
		}
		m := make(map[string]registry.Record, len(recs))
		for _, r := range recs {
			m[r.Passport] = r
		}
		s.records[kind] = m
	}

	// 3. Revision
	if b, err := os.ReadFile(filepath.Join(dir, revisionFile)); err == nil {
		s.revision, _ = strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	}

	log.Info().Str("dir", dir).Int("entries", len(s.entries)).Msg("Loaded JSONL store")
	return s, nil
}

func (s *JSONLStore) registryPath(kind registry.Kind) string {
	return filepath.Join(s.dir, fmt.Sprintf("registry_%s.jsonl", kind))
}

// readJSONL decodes one value per line into *[]T. A missing file is empty.
func readJSONL[T any](path string, out *[]T) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(strings.TrimSpace(scanner.Text())) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(scanner.Bytes(), &v); err != nil {
			log.Warn().Err(err).Str("file", filepath.Base(path)).Msg("Skipping invalid JSON line")
			continue
		}
		*out = append(*out, v)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSONL writes values to path through a temp file and an atomic rename.
func writeJSONL[T any](path string, values []T) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)
	for _, v := range values {
		if err := encoder.Encode(v); err != nil {
			file.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("failed to encode row: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// saveEntries writes entries to disk and, once the file is in place, makes
// them the live set. The save helpers require s.mu held for writing.
func (s *JSONLStore) saveEntries(entries map[entry.Key]entry.RawEntry) error {
	rows := make([]entry.RawEntry, 0, len(entries))
	for _, r := range entries {
		rows = append(rows, r)
	}
	sortEntries(rows)
	if err := writeJSONL(filepath.Join(s.dir, entriesFile), rows); err != nil {
		return err
	}
	s.entries = entries
	return s.bump()
}

func (s *JSONLStore) saveRegistry(kind registry.Kind, m map[string]registry.Record) error {
	recs := make([]registry.Record, 0, len(m))
	for _, r := range m {
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Passport < recs[j].Passport })
	if err := writeJSONL(s.registryPath(kind), recs); err != nil {
		return err
	}
	s.records[kind] = m
	return s.bump()
}

func (s *JSONLStore) bump() error {
	s.revision++
	path := filepath.Join(s.dir, revisionFile)
	if err := os.WriteFile(path+".tmp", []byte(strconv.FormatInt(s.revision, 10)), 0644); err != nil {
		return fmt.Errorf("failed to write revision: %w", err)
	}
	return os.Rename(path+".tmp", path)
}

func sortEntries(rows []entry.RawEntry) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Passport != rows[j].Passport {
			return rows[i].Passport < rows[j].Passport
		}
		return rows[i].ArrivalDate.Before(rows[j].ArrivalDate)
	})
}

// LoadEntries returns a copy of all rows ordered by passport and arrival.
func (s *JSONLStore) LoadEntries(_ context.Context) ([]entry.RawEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := make([]entry.RawEntry, 0, len(s.entries))
	for _, r := range s.entries {
		rows = append(rows, r)
	}
	sortEntries(rows)
	return rows, nil
}

func (s *JSONLStore) UpsertEntries(_ context.Context, rows []entry.RawEntry) (UpsertResult, error) {
	var res UpsertResult
	rows = collapse(rows)
	if len(rows) == 0 {
		return res, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := maps.Clone(s.entries)
	for _, r := range rows {
		k := r.Key()
		if existing, ok := next[k]; ok {
			next[k] = entry.Merge(existing, r)
			res.Updated++
			continue
		}
		next[k] = r
		res.Inserted++
	}
	if err := s.saveEntries(next); err != nil {
		return UpsertResult{}, err
	}
	log.Info().Int("inserted", res.Inserted).Int("updated", res.Updated).Msg("Upserted entries")
	return res, nil
}

func (s *JSONLStore) ApplyVerification(_ context.Context, passport, result string, at time.Time) (int, error) {
	p := entry.NormalizePassport(passport)
	s.mu.Lock()
	defer s.mu.Unlock()

	next := maps.Clone(s.entries)
	n := 0
	for k, r := range next {
		if k.Passport != p {
			continue
		}
		r.VerificationResult = result
		r.UpdatedAt = at
		next[k] = r
		n++
	}
	if n == 0 {
		return 0, nil
	}
	if err := s.saveEntries(next); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *JSONLStore) LoadRegistry(_ context.Context, kind registry.Kind) ([]registry.Record, error) {
	if _, err := registry.ParseKind(string(kind)); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := make([]registry.Record, 0, len(s.records[kind]))
	for _, r := range s.records[kind] {
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Passport < recs[j].Passport })
	return recs, nil
}

func (s *JSONLStore) UpsertRegistry(_ context.Context, kind registry.Kind, records []registry.Record) (int, error) {
	if _, err := registry.ParseKind(string(kind)); err != nil {
		return 0, err
	}
	records = normalizeRecords(records)
	if len(records) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	m := maps.Clone(s.records[kind])
	if m == nil {
		m = make(map[string]registry.Record)
	}
	for _, r := range records {
		m[r.Passport] = r
	}
	if err := s.saveRegistry(kind, m); err != nil {
		return 0, err
	}
	return len(records), nil
}

func (s *JSONLStore) Version(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return strconv.FormatInt(s.revision, 10), nil
}

func (s *JSONLStore) Close() error { return nil }
