package tableio

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"staytrack/internal/entry"
)

func TestReadJSONL(t *testing.T) {
	in := strings.Join([]string{
		`{"so_ho_chieu": "E123456", "ngay_den": "01/12/2024"}`,
		``,
		`not json`,
		`{"so_ho_chieu": "B000001", "ngay_den": "20/12/2024", "ngay_di": "22/12/2024", "so_lan": 3, "ghi_chu": null}`,
	}, "\n")

	tbl, err := ReadJSONL(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"ngay_den", "so_ho_chieu", "ghi_chu", "ngay_di", "so_lan"}, tbl.Columns)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"01/12/2024", "E123456", "", "", ""}, tbl.Rows[0])
	assert.Equal(t, []string{"20/12/2024", "B000001", "", "22/12/2024", "3"}, tbl.Rows[1])
}

func TestJSONLRoundTrip(t *testing.T) {
	src := entry.Table{
		Columns: []string{"passport", "arrival_date"},
		Rows:    [][]string{{"E123456", "2024-12-01"}, {"B000001", ""}},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteJSONL(&buf, src))

	got, err := ReadJSONL(&buf)
	require.NoError(t, err)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, []string{"arrival_date", "passport"}, got.Columns)
	assert.Equal(t, []string{"", "B000001"}, got.Rows[1])
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]string{"Số hộ chiếu", "Họ tên", "Ngày đến"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]string{"E123456", "Wang Wei", "01/12/2024"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A5", &[]string{"B000001"}))
	path := filepath.Join(t.TempDir(), "log.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	tbl, err := ReadFile(path, "")
	require.NoError(t, err)
	assert.Equal(t, "log.xlsx", tbl.Source)
	assert.Equal(t, []string{"Số hộ chiếu", "Họ tên", "Ngày đến"}, tbl.Columns)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, []string{"B000001", "", ""}, tbl.Rows[1])

	rows, report, err := entry.Ingest(tbl, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, report.Skipped)
}

func TestReadFile_Unsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n"), 0o644))
	_, err := ReadFile(path, "")
	assert.ErrorContains(t, err, "unsupported")
}
