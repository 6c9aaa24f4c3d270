package entry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestNormalizePassport(t *testing.T) {
	assert.Equal(t, "E123456", NormalizePassport("E 123-456"))
	assert.Equal(t, "E123456", NormalizePassport("e123456"))
	assert.Equal(t, "AB12345", NormalizePassport(" ab.12_345 "))
	assert.Equal(t, "", NormalizePassport("  - "))
}

func TestValidPassport(t *testing.T) {
	assert.True(t, ValidPassport("E1234"))
	assert.False(t, ValidPassport("E123"))
	assert.False(t, ValidPassport("E12#45"))
}

func TestSplitPassports(t *testing.T) {
	got := SplitPassports("e 123-456, E123456;B99999\nshort\tC7777777\r\n")
	assert.Equal(t, []string{"E123456", "B99999", "C7777777"}, got)
	assert.Empty(t, SplitPassports(" , ; "))
}

func TestParseDate(t *testing.T) {
	cases := map[string]string{
		"05/01/2024":           "2024-01-05",
		"05-01-2024":           "2024-01-05",
		"2024-01-05":           "2024-01-05",
		"2024/01/05":           "2024-01-05",
		"05.01.2024":           "2024-01-05",
		"01/13/2024":           "2024-01-13",
		"5/1/2024":             "2024-01-05",
		"05/01/24":             "2024-01-05",
		"05/01/99":             "1999-01-05",
		"2024-01-05T10:00:00Z": "2024-01-05",
		"2024-01-05 00:00:00":  "2024-01-05",
	}
	for in, want := range cases {
		got, ok := ParseDate(in)
		require.True(t, ok, in)
		assert.Equal(t, want, FormatISO(got), in)
	}

	for _, bad := range []string{"", "nan", "not a date", "31/02/2024"} {
		_, ok := ParseDate(bad)
		assert.False(t, ok, bad)
	}
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 4, DaysBetween(d("2024-01-01"), d("2024-01-05")))
	assert.Equal(t, -1, DaysBetween(d("2024-01-02"), d("2024-01-01")))
	assert.Equal(t, 366, DaysBetween(d("2024-01-01"), d("2025-01-01")))
}

func TestEffectiveEnd(t *testing.T) {
	asOf := d("2024-06-01")
	open := RawEntry{ArrivalDate: d("2024-05-01")}
	assert.True(t, open.IsOpen())
	assert.Equal(t, asOf, open.EffectiveEnd(asOf.Add(15*time.Hour)))

	closed := RawEntry{ArrivalDate: d("2024-05-01"), DepartureDate: DatePtr(d("2024-05-03"))}
	assert.Equal(t, d("2024-05-03"), closed.EffectiveEnd(asOf))
}

func TestMerge_NewerWinsButKeepsDepartureAndVerification(t *testing.T) {
	t1 := d("2024-01-01")
	t2 := d("2024-02-01")
	existing := RawEntry{
		Passport: "P12345", FullName: "Old Name", ArrivalDate: d("2024-01-10"),
		DepartureDate: DatePtr(d("2024-01-20")), VerificationResult: "Lao động", UpdatedAt: t1,
	}
	incoming := RawEntry{
		Passport: "P12345", FullName: "New Name", ArrivalDate: d("2024-01-10"),
		Address: "Lô CC", UpdatedAt: t2,
	}

	got := Merge(existing, incoming)
	assert.Equal(t, "New Name", got.FullName)
	assert.Equal(t, "Lô CC", got.Address)
	require.NotNil(t, got.DepartureDate)
	assert.Equal(t, d("2024-01-20"), *got.DepartureDate)
	assert.Equal(t, "Lao động", got.VerificationResult)
	assert.Equal(t, t2, got.UpdatedAt)

	incoming.VerificationResult = "Kết hôn"
	assert.Equal(t, "Kết hôn", Merge(existing, incoming).VerificationResult)

	// Argument order does not matter; recency decides.
	assert.Equal(t, "New Name", Merge(incoming, existing).FullName)
}

func TestIngest(t *testing.T) {
	now := d("2024-03-01")
	table := Table{
		Source:  "march.xlsx",
		Columns: []string{"STT", "Họ tên", "Số hộ chiếu", "Quốc tịch", "Ngày đến", "Ngày đi", "Ngày sinh", "Địa chỉ tạm trú"},
		Rows: [][]string{
			{"1", "Wang Wei", "e 123-456", "chn", "01/02/2024", "", "12/12/1990", "KCN Bảo Yên"},
			{"2", "No Passport", "", "CHN", "01/02/2024", "", "", ""},
			{"3", "Short", "AB1", "CHN", "01/02/2024", "", "", ""},
			{"4", "No Arrival", "F999999", "CHN", "", "", "", ""},
			{"5", "Bad Dates", "G888888", "ATLANTIS", "03/02/2024", "soon", "yesterday", ""},
			{"6", "Backwards", "H777777", "FRA", "10/02/2024", "05/02/2024"},
		},
	}

	rows, report, err := Ingest(table, now)
	require.NoError(t, err)
	assert.NotEmpty(t, report.BatchID)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 3, report.Skipped)
	assert.Equal(t, 2, report.Warned)
	require.Len(t, rows, 3)

	first := rows[0]
	assert.Equal(t, "E123456", first.Passport)
	assert.Equal(t, "CHN", first.Nationality)
	assert.Equal(t, d("2024-02-01"), first.ArrivalDate)
	assert.True(t, first.IsOpen())
	require.NotNil(t, first.BirthDate)
	assert.Equal(t, now, first.UpdatedAt)
	assert.Equal(t, "march.xlsx", first.SourceFile)

	bad := rows[1]
	assert.Nil(t, bad.DepartureDate)
	assert.Nil(t, bad.BirthDate)

	var warnings int
	for _, is := range report.Issues {
		if is.Severity == SeverityWarning {
			warnings++
		}
	}
	// invalid departure, invalid birth date, unknown nationality, departure before arrival
	assert.Equal(t, 4, warnings)
}

func TestIngest_MissingPassportColumn(t *testing.T) {
	_, _, err := Ingest(Table{Columns: []string{"Họ tên", "Ngày đến"}, Rows: [][]string{{"A", "01/01/2024"}}}, time.Now())
	require.ErrorIs(t, err, ErrMissingPassportColumn)
}

func TestVerificationsFromTable(t *testing.T) {
	table := Table{
		Columns: []string{"Số hộ chiếu", "Kết quả xác minh"},
		Rows: [][]string{
			{"e123456", " Lao động "},
			{"X1", "Kết hôn"},
			{"B000001", ""},
			{"C000002"},
		},
	}
	got, report, err := VerificationsFromTable(table)
	require.NoError(t, err)
	assert.Equal(t, []Verification{{Passport: "E123456", Result: "Lao động"}}, got)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 3, report.Skipped)
	assert.Len(t, report.Issues, 3)

	_, _, err = VerificationsFromTable(Table{Columns: []string{"Ghi chú", "Kết quả xác minh"}})
	assert.ErrorIs(t, err, ErrMissingPassportColumn)
	_, _, err = VerificationsFromTable(Table{Columns: []string{"Số hộ chiếu"}})
	assert.Error(t, err)
}
