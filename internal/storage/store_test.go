package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"staytrack/internal/entry"
	"staytrack/internal/registry"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dp(s string) *time.Time {
	t := day(s)
	return &t
}

var clock = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	v0, err := s.Version(ctx)
	require.NoError(t, err)

	// 1. Insert, with an in-batch duplicate key in another spelling.
	res, err := s.UpsertEntries(ctx, []entry.RawEntry{
		{Passport: "e-123456", FullName: "Wang Wei", Nationality: "CHN", ArrivalDate: day("2024-01-01"),
			DepartureDate: dp("2024-01-10"), Address: "KCN A", UpdatedAt: clock},
		{Passport: "E123456", FullName: "Wang Wei", Nationality: "CHN", ArrivalDate: day("2024-03-01"),
			Address: "KCN B", UpdatedAt: clock},
		{Passport: "E123456", FullName: "WANG WEI", Nationality: "CHN", ArrivalDate: day("2024-03-01"),
			Address: "KCN B", VerificationResult: "Lao động", UpdatedAt: clock.Add(time.Hour)},
	})
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Inserted: 2}, res)

	v1, err := s.Version(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, v0, v1)

	rows, err := s.LoadEntries(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "E123456", rows[0].Passport)
	assert.True(t, rows[0].ArrivalDate.Equal(day("2024-01-01")))
	require.NotNil(t, rows[0].DepartureDate)
	assert.True(t, rows[0].DepartureDate.Equal(day("2024-01-10")))
	assert.Nil(t, rows[1].DepartureDate)
	assert.Equal(t, "WANG WEI", rows[1].FullName)
	assert.Equal(t, "Lao động", rows[1].VerificationResult)

	// 2. A newer capture without departure or verification keeps both.
	res, err = s.UpsertEntries(ctx, []entry.RawEntry{
		{Passport: "E123456", FullName: "Wang Wei Jr", Nationality: "CHN", ArrivalDate: day("2024-01-01"),
			Address: "KCN C", UpdatedAt: clock.Add(2 * time.Hour)},
	})
	require.NoError(t, err)
	assert.Equal(t, UpsertResult{Updated: 1}, res)

	rows, err = s.LoadEntries(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Wang Wei Jr", rows[0].FullName)
	assert.Equal(t, "KCN C", rows[0].Address)
	require.NotNil(t, rows[0].DepartureDate)
	assert.True(t, rows[0].DepartureDate.Equal(day("2024-01-10")))

	// 3. Verification touches every row of the passport.
	n, err := s.ApplyVerification(ctx, "e123456", "Kết hôn", clock.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	n, err = s.ApplyVerification(ctx, "NOPE999", "Kết hôn", clock)
	require.NoError(t, err)
	assert.Zero(t, n)

	rows, err = s.LoadEntries(ctx)
	require.NoError(t, err)
	for _, r := range rows {
		assert.Equal(t, "Kết hôn", r.VerificationResult)
		assert.True(t, r.UpdatedAt.Equal(clock.Add(3*time.Hour)))
	}

	// 4. Registries: last write wins per passport.
	count, err := s.UpsertRegistry(ctx, registry.Labor, []registry.Record{
		{Passport: "e 123456", Fields: map[string]string{"workplace": "Cty A"}, UpdatedAt: clock},
		{Passport: "B000001", Fields: map[string]string{"workplace": "Cty B"}, UpdatedAt: clock},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	_, err = s.UpsertRegistry(ctx, registry.Labor, []registry.Record{
		{Passport: "E123456", Fields: map[string]string{"workplace": "Cty Z"}, UpdatedAt: clock},
	})
	require.NoError(t, err)

	recs, err := s.LoadRegistry(ctx, registry.Labor)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "B000001", recs[0].Passport)
	assert.Equal(t, "Cty Z", recs[1].Field("workplace"))

	empty, err := s.LoadRegistry(ctx, registry.Watchlist)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = s.LoadRegistry(ctx, registry.Kind("bogus"))
	assert.ErrorIs(t, err, registry.ErrUnknownKind)

	v2, err := s.Version(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2)
}

// exerciseConcurrentFirstInsert upserts the same new key through a and b at
// once. Whichever lands second must merge with the first, not overwrite it.
func exerciseConcurrentFirstInsert(t *testing.T, a, b Store) {
	t.Helper()
	ctx := context.Background()
	verified := entry.RawEntry{Passport: "C777777", FullName: "Kim Min", Nationality: "KOR",
		ArrivalDate: day("2024-05-01"), DepartureDate: dp("2024-05-20"), VerificationResult: "Lao động",
		UpdatedAt: clock}
	recapture := entry.RawEntry{Passport: "C777777", FullName: "KIM MIN", Nationality: "KOR",
		ArrivalDate: day("2024-05-01"), Address: "KCN Bảo Yên", UpdatedAt: clock.Add(time.Hour)}

	var g errgroup.Group
	results := make([]UpsertResult, 2)
	g.Go(func() (err error) {
		results[0], err = a.UpsertEntries(ctx, []entry.RawEntry{verified})
		return err
	})
	g.Go(func() (err error) {
		results[1], err = b.UpsertEntries(ctx, []entry.RawEntry{recapture})
		return err
	})
	require.NoError(t, g.Wait())
	assert.Equal(t, 1, results[0].Inserted+results[1].Inserted)
	assert.Equal(t, 1, results[0].Updated+results[1].Updated)

	rows, err := a.LoadEntries(ctx)
	require.NoError(t, err)
	var got *entry.RawEntry
	for i := range rows {
		if rows[i].Passport == "C777777" {
			got = &rows[i]
		}
	}
	require.NotNil(t, got)
	assert.Equal(t, "KIM MIN", got.FullName)
	assert.Equal(t, "KCN Bảo Yên", got.Address)
	assert.Equal(t, "Lao động", got.VerificationResult)
	require.NotNil(t, got.DepartureDate)
	assert.True(t, got.DepartureDate.Equal(day("2024-05-20")))
	assert.True(t, got.UpdatedAt.Equal(clock.Add(time.Hour)))
}

func TestJSONLStore(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenJSONL(dir)
	require.NoError(t, err)
	exerciseStore(t, s)
	require.NoError(t, s.Close())

	// Reopening reads back the same state.
	reopened, err := OpenJSONL(dir)
	require.NoError(t, err)
	rows, err := reopened.LoadEntries(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	v, err := reopened.Version(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, "0", v)

	_, err = os.Stat(filepath.Join(dir, entriesFile+".tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestJSONLStore_ConcurrentFirstInsert(t *testing.T) {
	s, err := OpenJSONL(t.TempDir())
	require.NoError(t, err)
	exerciseConcurrentFirstInsert(t, s, s)
}

func TestJSONLStore_FailedWriteKeepsState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := OpenJSONL(dir)
	require.NoError(t, err)
	_, err = s.UpsertEntries(ctx, []entry.RawEntry{
		{Passport: "E123456", ArrivalDate: day("2024-01-01"), UpdatedAt: clock},
	})
	require.NoError(t, err)
	_, err = s.UpsertRegistry(ctx, registry.Labor, []registry.Record{{Passport: "E123456", UpdatedAt: clock}})
	require.NoError(t, err)
	v, err := s.Version(ctx)
	require.NoError(t, err)

	// A directory in the way of the temp files makes every write fail.
	require.NoError(t, os.Mkdir(filepath.Join(dir, entriesFile+".tmp"), 0755))
	require.NoError(t, os.Mkdir(s.registryPath(registry.Labor)+".tmp", 0755))

	_, err = s.UpsertEntries(ctx, []entry.RawEntry{
		{Passport: "B000001", ArrivalDate: day("2024-02-01"), UpdatedAt: clock},
	})
	assert.Error(t, err)
	_, err = s.ApplyVerification(ctx, "E123456", "Kết hôn", clock.Add(time.Hour))
	assert.Error(t, err)
	_, err = s.UpsertRegistry(ctx, registry.Labor, []registry.Record{{Passport: "B000001", UpdatedAt: clock}})
	assert.Error(t, err)

	rows, err := s.LoadEntries(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].VerificationResult)
	recs, err := s.LoadRegistry(ctx, registry.Labor)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	after, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, v, after)
}

func TestJSONLStore_SkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	content := `{"passport":"E123456","arrival_date":"2024-01-01T00:00:00Z","updated_at":"2024-01-01T00:00:00Z"}
not json

{"passport":"B000001","arrival_date":"2024-02-01T00:00:00Z","updated_at":"2024-01-01T00:00:00Z"}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, entriesFile), []byte(content), 0644))
	s, err := OpenJSONL(dir)
	require.NoError(t, err)
	rows, err := s.LoadEntries(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStore_ConcurrentFirstInsert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	a, err := OpenSQLite(path)
	require.NoError(t, err)
	defer a.Close()
	b, err := OpenSQLite(path)
	require.NoError(t, err)
	defer b.Close()
	exerciseConcurrentFirstInsert(t, a, b)
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		t.Skip("POSTGRES_URL not set")
	}
	ctx := context.Background()
	s, err := OpenPostgres(ctx, url)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.pool.Exec(ctx, `TRUNCATE entries, registry, meta`)
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, Config{Driver: DriverJSONL, DataPath: dir})
	require.NoError(t, err)
	assert.IsType(t, &JSONLStore{}, s)

	s, err = Open(ctx, Config{Driver: DriverSQLite, DataPath: dir})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())
	assert.FileExists(t, filepath.Join(dir, "staytrack.db"))

	_, err = Open(ctx, Config{Driver: DriverPostgres})
	assert.Error(t, err)

	_, err = Open(ctx, Config{Driver: "mongo"})
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestPostgresStore_ConcurrentFirstInsert(t *testing.T) {
	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		t.Skip("POSTGRES_URL not set")
	}
	ctx := context.Background()
	a, err := OpenPostgres(ctx, url)
	require.NoError(t, err)
	defer a.Close()
	b, err := OpenPostgres(ctx, url)
	require.NoError(t, err)
	defer b.Close()
	_, err = a.pool.Exec(ctx, `TRUNCATE entries, registry, meta`)
	require.NoError(t, err)
	exerciseConcurrentFirstInsert(t, a, b)
}
