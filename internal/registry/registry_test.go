package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staytrack/internal/entry"
)

func rec(passport string, fields map[string]string) Record {
	return Record{Passport: passport, Fields: fields}
}

func fullSet() Set {
	return Set{
		Labor: NewRegistry([]Record{
			rec("E123456", map[string]string{"position": "Kỹ sư", "workplace": "Công ty ABC"}),
			rec("L000001", map[string]string{"position": "Thợ hàn", "workplace": "KCN Đồng Trung"}),
		}),
		Watchlist: NewRegistry([]Record{
			rec("e 123-456", map[string]string{"category": "A1", "dispatch_no": "12/CV"}),
		}),
		Marriage: NewRegistry([]Record{
			rec("M000001", map[string]string{"spouse_name": "Nguyễn Thị B", "spouse_address": "Lào Cai"}),
			rec("L000001", nil),
		}),
		Student: NewRegistry([]Record{
			rec("S000001", map[string]string{"school": "ĐH Y"}),
			rec("M000001", nil),
		}),
	}
}

func TestResolve_Priority(t *testing.T) {
	set := fullSet()

	r := Resolve("E123456", "", set)
	assert.Equal(t, LabelWatchlist, r.SystemPurpose, "watchlist outranks labor")
	assert.Equal(t, LabelWatchlist, r.FinalStatus)
	assert.Equal(t, []Kind{Watchlist, Labor}, r.Matched)
	assert.Equal(t, "Diện: A1 - CV: 12/CV", r.Details[Watchlist])
	assert.Equal(t, "Kỹ sư tại Công ty ABC", r.Details[Labor])

	assert.Equal(t, LabelLabor, Resolve("L000001", "", set).SystemPurpose)
	m := Resolve("m000001", "", set)
	assert.Equal(t, LabelMarriage, m.SystemPurpose)
	assert.Equal(t, "Vợ/Chồng: Nguyễn Thị B - Lào Cai", m.Details[Marriage])
	assert.Equal(t, LabelStudent, Resolve("S000001", "", set).SystemPurpose)
	assert.Empty(t, Resolve("Z999999", "", set).SystemPurpose)
	assert.Empty(t, Resolve("Z999999", "", nil).FinalStatus)
}

func TestResolve_RegistryOrderIrrelevant(t *testing.T) {
	forward := NewRegistry([]Record{rec("A11111", nil), rec("B22222", nil)})
	backward := NewRegistry([]Record{rec("B22222", nil), rec("A11111", nil)})
	for _, labor := range []Registry{forward, backward} {
		set := Set{Labor: labor, Watchlist: NewRegistry([]Record{rec("A11111", nil)})}
		assert.Equal(t, LabelWatchlist, Resolve("A11111", "", set).SystemPurpose)
	}
}

func TestResolve_ManualOverride(t *testing.T) {
	r := Resolve("E123456", "  Thăm thân  ", fullSet())
	assert.Equal(t, LabelWatchlist, r.SystemPurpose)
	assert.Equal(t, "Thăm thân", r.FinalStatus)

	blank := Resolve("E123456", "   ", fullSet())
	assert.Equal(t, LabelWatchlist, blank.FinalStatus)
}

func TestPriority(t *testing.T) {
	assert.Less(t, Priority(LabelWatchlist), Priority(LabelLabor))
	assert.Less(t, Priority(LabelLabor), Priority(LabelMarriage))
	assert.Less(t, Priority(LabelMarriage), Priority(LabelStudent))
	assert.Less(t, Priority(LabelStudent), Priority("Du lịch"))
	assert.Equal(t, Priority(""), Priority("Du lịch"))
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Labor ")
	require.NoError(t, err)
	assert.Equal(t, Labor, k)

	_, err = ParseKind("tourism")
	require.ErrorIs(t, err, ErrUnknownKind)
	assert.Equal(t, []Kind{Watchlist, Labor, Marriage, Student}, Kinds())
}

func TestFromTable(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	table := entry.Table{
		Source:  "labor.xlsx",
		Columns: []string{"Số hộ chiếu", "Vị trí", "Nơi làm việc", "Ghi chú"},
		Rows: [][]string{
			{"e 123-456", "Kỹ sư", "Công ty ABC", "x"},
			{"bad", "Thợ", "", ""},
			{"L000001", "Thợ hàn"},
		},
	}
	recs, report, err := FromTable(Labor, table, now)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, recs, 2)
	assert.Equal(t, "E123456", recs[0].Passport)
	assert.Equal(t, map[string]string{"position": "Kỹ sư", "workplace": "Công ty ABC"}, recs[0].Fields)
	assert.Equal(t, map[string]string{"position": "Thợ hàn"}, recs[1].Fields)
	assert.Equal(t, now, recs[1].UpdatedAt)

	_, _, err = FromTable("tourism", table, now)
	require.ErrorIs(t, err, ErrUnknownKind)

	_, _, err = FromTable(Labor, entry.Table{Columns: []string{"Vị trí"}}, now)
	require.ErrorIs(t, err, entry.ErrMissingPassportColumn)
}
