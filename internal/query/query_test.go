package query

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staytrack/internal/registry"
	"staytrack/internal/stay"
	"staytrack/internal/summary"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func dp(s string) *time.Time {
	t := day(s)
	return &t
}

func intp(n int) *int { return &n }

var asOf = day("2024-12-31")

func people() []summary.PersonSummary {
	return []summary.PersonSummary{
		{Passport: "E123456", FullName: "He Wuyang", Nationality: "CHN", ArrivalDate: day("2024-12-01"),
			Address: "KCN Đồng Trung", FinalStatus: registry.LabelLabor,
			Stats: stay.Stats{DaysLast365: 120, LifetimeDays: 400, EntriesLast365: 4}, UpdatedAt: day("2024-12-02")},
		{Passport: "W000001", FullName: "Nguyễn Thị Lan", Nationality: "KOR", ArrivalDate: day("2024-11-01"),
			DepartureDate: dp("2024-11-05"), FinalStatus: registry.LabelWatchlist,
			Stats: stay.Stats{DaysLast365: 5, LifetimeDays: 5, EntriesLast365: 1}, UpdatedAt: day("2024-11-06")},
		{Passport: "F000001", FullName: "Anna Smith", Nationality: "FRA", ArrivalDate: day("2024-06-01"),
			DepartureDate: dp("2024-06-10"), Address: "Sapa Homestay",
			Stats: stay.Stats{DaysLast365: 10, LifetimeDays: 10, EntriesLast365: 1}, UpdatedAt: day("2024-06-11")},
		{Passport: "A000001", FullName: "Jack Brown", Nationality: "AUS", ArrivalDate: day("2024-12-01"),
			Address: "Lô CC 2", VerificationResult: "Thăm thân", FinalStatus: "Thăm thân",
			Stats: stay.Stats{DaysLast365: 31, LifetimeDays: 31, EntriesLast365: 1}, UpdatedAt: day("2024-12-03")},
		{Passport: "K000001", FullName: "Kid Brown", Nationality: "AUS", BirthDate: dp("2015-03-03"), ArrivalDate: day("2024-12-01"),
			Address: "Lô CC 2", Stats: stay.Stats{DaysLast365: 31, LifetimeDays: 31, EntriesLast365: 1}, UpdatedAt: day("2024-12-03")},
		{Passport: "X000001", FullName: "Unknown Land", Nationality: "ATLANTIS", ArrivalDate: day("2023-01-01"),
			DepartureDate: dp("2025-02-01"), FinalStatus: registry.LabelStudent,
			Stats: stay.Stats{DaysLast365: 366, LifetimeDays: 731}, UpdatedAt: day("2023-01-02")},
	}
}

func engine() *Engine {
	return NewEngine(people(), asOf, Options{PageSize: 2, MaxBatch: 3})
}

func passports(ps []summary.PersonSummary) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Passport
	}
	return out
}

func TestList_OrderAndPaging(t *testing.T) {
	e := engine()
	page, err := e.List(Filter{})
	require.NoError(t, err)
	assert.Equal(t, 6, page.TotalCount)
	assert.True(t, page.HasMore)
	assert.Equal(t, 2, page.Limit)
	assert.Equal(t, []string{"A000001", "E123456"}, passports(page.Results))

	last, err := e.List(Filter{Limit: 10, Offset: 4})
	require.NoError(t, err)
	assert.False(t, last.HasMore)
	assert.Equal(t, []string{"F000001", "X000001"}, passports(last.Results))

	beyond, err := e.List(Filter{Offset: 50})
	require.NoError(t, err)
	assert.Empty(t, beyond.Results)
	assert.Equal(t, 6, beyond.TotalCount)

	huge, err := e.List(Filter{Limit: math.MaxInt, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, huge.Results, 5)
	assert.False(t, huge.HasMore)

	batch := e.Batch("E123456, F000001, X000001", math.MaxInt, 2)
	assert.Equal(t, 3, batch.TotalCount)
	assert.Len(t, batch.Results, 1)
}

func TestList_Filters(t *testing.T) {
	e := engine()
	tests := []struct {
		name string
		f    Filter
		want []string
	}{
		{"arrival range", Filter{DateFrom: dp("2024-06-01"), DateTo: dp("2024-11-30")}, []string{"W000001", "F000001"}},
		{"asia oceania", Filter{Continents: []string{"ASIA_OCEANIA"}}, []string{"A000001", "E123456", "K000001", "W000001"}},
		{"other continent", Filter{Continents: []string{"OTHER"}}, []string{"X000001"}},
		{"min total days keeps present only", Filter{MinTotalDays: intp(30)}, []string{"A000001", "E123456", "K000001", "X000001"}},
		{"min lifetime", Filter{MinLifetimeDays: intp(400)}, []string{"E123456", "X000001"}},
		{"days at most", Filter{DaysOp: OpAtMost, DaysValue: intp(10)}, []string{"W000001", "F000001"}},
		{"days at least", Filter{DaysOp: OpAtLeast, DaysValue: intp(121)}, []string{"X000001"}},
		{"status equality", Filter{Status: registry.LabelWatchlist}, []string{"W000001"}},
		{"still present", Filter{Status: StatusPresent}, []string{"A000001", "E123456", "K000001", "X000001"}},
		{"departed", Filter{Status: StatusEnded}, []string{"W000001", "F000001"}},
		{"free text name without accents", Filter{FreeText: "nguyen thi"}, []string{"W000001"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := e.List(tt.f.withLimit(100))
			require.NoError(t, err)
			assert.Equal(t, tt.want, passports(page.Results))
			assert.Equal(t, len(tt.want), page.TotalCount)
		})
	}
}

func (f Filter) withLimit(n int) Filter {
	f.Limit = n
	return f
}

func TestList_InvalidFilter(t *testing.T) {
	_, err := engine().List(Filter{DaysOp: "=="})
	assert.Error(t, err)
	_, err = engine().List(Filter{DateFrom: dp("2024-02-01"), DateTo: dp("2024-01-01")})
	assert.Error(t, err)
}

func TestSearch(t *testing.T) {
	e := engine()
	got, err := e.Search("hewu")
	require.NoError(t, err)
	assert.Equal(t, []string{"E123456"}, passports(got))

	got, err = e.Search("e 123")
	require.NoError(t, err)
	assert.Equal(t, []string{"E123456"}, passports(got))

	got, err = e.Search("brown")
	require.NoError(t, err)
	assert.Equal(t, []string{"A000001", "K000001"}, passports(got))

	_, err = e.Search(" x ")
	assert.ErrorIs(t, err, ErrKeywordTooShort)
}

func TestSearch_CapsResults(t *testing.T) {
	var many []summary.PersonSummary
	for i := 0; i < 150; i++ {
		many = append(many, summary.PersonSummary{Passport: fmt.Sprintf("P%05d", i), FullName: "Same Name"})
	}
	got, err := NewEngine(many, asOf, Options{}).Search("same")
	require.NoError(t, err)
	assert.Len(t, got, MaxSearchResults)
}

func TestBatch(t *testing.T) {
	e := NewEngine(people(), asOf, Options{})
	page := e.Batch("x000001, e 123-456; w000001\nmissing99\nE123456", 0, 0)
	assert.Equal(t, []string{"W000001", "E123456", "X000001"}, passports(page.Results), "watchlist, labor, student")
	assert.Equal(t, []string{"MISSING99"}, page.NotFound)
	assert.Equal(t, 3, page.TotalCount)
	assert.False(t, page.HasMore)

	paged := e.Batch("x000001, e123456, w000001", 1, 1)
	assert.Equal(t, []string{"E123456"}, passports(paged.Results))
	assert.True(t, paged.HasMore)
}

func TestBatch_CapsInput(t *testing.T) {
	page := engine().Batch("E123456,W000001,F000001,A000001", 10, 0)
	assert.Equal(t, 3, page.TotalCount, "only the first MaxBatch passports are looked up")
}

func TestGet(t *testing.T) {
	p, ok := engine().Get("e-123 456")
	require.True(t, ok)
	assert.Equal(t, "He Wuyang", p.FullName)
	_, ok = engine().Get("nope")
	assert.False(t, ok)
}

func TestStatistics(t *testing.T) {
	s, err := engine().Statistics(Filter{})
	require.NoError(t, err)
	assert.Equal(t, 6, s.TotalPersons)
	assert.Equal(t, 5, s.TotalNationalities)
	assert.Equal(t, 1, s.Labor)
	assert.Equal(t, 1, s.Watchlist)
	assert.Equal(t, 1, s.Student)
	assert.Equal(t, 0, s.Marriage)
	assert.Equal(t, 3, s.CurrentlyResiding)
	assert.Equal(t, 93.8, s.AvgAnnualDays)
}

func TestByNationality(t *testing.T) {
	rows, err := engine().ByNationality(Filter{}, 2)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, NationalityCount{Nationality: "AUS", Count: 2, StillHere: 2}, rows[0])
	assert.Equal(t, "ATLANTIS", rows[1].Nationality)
}

func TestNarrative(t *testing.T) {
	text, err := engine().Narrative(Filter{DateFrom: dp("2024-01-01"), MinTotalDays: intp(30)})
	require.NoError(t, err)
	assert.Contains(t, text, "**Thời gian**: từ 01/01/2024 (Tổng ngày lưu trú >= 30 ngày)")
	assert.Contains(t, text, "**Tổng số người nước ngoài**: 3 người")
	assert.Contains(t, text, "- Lao động: 1 người")
	assert.Contains(t, text, "1. AUS: 2 người (còn ở: 2)")
	assert.NotContains(t, text, "Đối tượng chú ý")
}

func TestPurposeNarrative(t *testing.T) {
	text, err := engine().PurposeNarrative(Filter{})
	require.NoError(t, err)
	assert.Equal(t, "Lao động: CHN: 01 người. Tổng số: 1 người.\n\nThăm thân, mđk: AUS: 01 người. Tổng số: 1 người.", text)
}

func TestPredict(t *testing.T) {
	p := summary.PersonSummary{Address: "Hà Nội", Stats: stay.Stats{DaysLast365: 2}}
	assert.Equal(t, PredictedOther, Predict(p, false))
	assert.Equal(t, PredictedFamily, Predict(p, true))

	p.DaysLast365 = 3
	assert.Equal(t, PredictedLabor, Predict(p, false))

	p.Address = "Resort ven hồ"
	assert.Equal(t, PredictedOther, Predict(p, false))

	p.Address = "Cty May"
	assert.Equal(t, PredictedLabor, Predict(p, false))

	p.FinalStatus = registry.LabelStudent
	assert.Equal(t, registry.LabelStudent, Predict(p, true))

	p.VerificationResult = "Kết hôn"
	assert.Equal(t, "Kết hôn", Predict(p, false))
}

func TestMatrix(t *testing.T) {
	m, err := engine().Matrix(Filter{})
	require.NoError(t, err)
	assert.Equal(t, 6, m.TotalRecords)
	assert.Equal(t, 5, m.UniqueNationalities)

	require.NotEmpty(t, m.Rows)
	aus := m.Rows[0]
	assert.Equal(t, "AUS", aus.Nationality)
	// The adult is verified; the child shares arrival and address with a minor (itself).
	assert.Equal(t, 2, aus.Family)
	assert.Equal(t, 33.33, aus.Percent)

	byNat := map[string]MatrixRow{}
	for _, r := range m.Rows {
		byNat[r.Nationality] = r
	}
	assert.Equal(t, 1, byNat["CHN"].Labor)
	assert.Equal(t, 1, byNat["FRA"].Other, "homestay counts as other")
	assert.Equal(t, 1, byNat["KOR"].Other, "watchlist label is neither labor nor family")
	assert.Equal(t, 1, byNat["ATLANTIS"].Other)
	assert.Equal(t, 6, m.Totals.Total)
	assert.InDelta(t, 100.0, m.Totals.Percent, 0.05)
}

func TestLastUpdate(t *testing.T) {
	assert.Equal(t, day("2024-12-03"), engine().LastUpdate())
	assert.True(t, NewEngine(nil, asOf, Options{}).LastUpdate().IsZero())
}
