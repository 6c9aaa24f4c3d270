// Package tableio reads entry.Tables from the file formats the CLI accepts:
// JSON Lines with one object per row, and XLSX workbooks.
package tableio

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"staytrack/internal/entry"
)

// ReadFile picks the reader from the file extension. sheet selects an XLSX
// sheet; empty means the first one.
func ReadFile(path, sheet string) (entry.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return entry.Table{}, err
	}
	defer f.Close()

	var t entry.Table
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		t, err = ReadXLSX(f, sheet)
	case ".jsonl", ".ndjson", ".json":
		t, err = ReadJSONL(f)
	default:
		return entry.Table{}, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return entry.Table{}, fmt.Errorf("read %s: %w", path, err)
	}
	t.Source = filepath.Base(path)
	return t, nil
}

// ReadJSONL reads one JSON object per line. Columns appear in first-seen
// order; keys within one object are taken alphabetically. Undecodable lines
// are logged and skipped.
func ReadJSONL(r io.Reader) (entry.Table, error) {
	var t entry.Table
	index := make(map[string]int)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(line, &obj); err != nil {
			log.Warn().Err(err).Int("line", lineNum).Msg("Skipping undecodable JSONL row")
			continue
		}
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		row := make([]string, len(t.Columns))
		for _, k := range keys {
			i, ok := index[k]
			if !ok {
				i = len(t.Columns)
				index[k] = i
				t.Columns = append(t.Columns, k)
				for j := range t.Rows {
					t.Rows[j] = append(t.Rows[j], "")
				}
				row = append(row, "")
			}
			row[i] = cell(obj[k])
		}
		t.Rows = append(t.Rows, row)
	}
	if err := scanner.Err(); err != nil {
		return t, err
	}
	return t, nil
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

// ReadXLSX reads a sheet whose first non-empty row holds the headers.
// Short rows are padded to the header width.
func ReadXLSX(r io.Reader, sheet string) (entry.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return entry.Table{}, err
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return entry.Table{}, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return entry.Table{}, err
	}

	var t entry.Table
	for _, row := range rows {
		if t.Columns == nil {
			if blank(row) {
				continue
			}
			t.Columns = row
			continue
		}
		if blank(row) {
			continue
		}
		if len(row) < len(t.Columns) {
			row = append(row, make([]string, len(t.Columns)-len(row))...)
		}
		t.Rows = append(t.Rows, row)
	}
	log.Debug().Str("sheet", sheet).Int("columns", len(t.Columns)).Int("rows", len(t.Rows)).Msg("Read worksheet")
	return t, nil
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// WriteJSONL writes t as one object per row, the inverse of ReadJSONL.
func WriteJSONL(w io.Writer, t entry.Table) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for _, row := range t.Rows {
		obj := make(map[string]string, len(t.Columns))
		for i, c := range t.Columns {
			if i < len(row) && row[i] != "" {
				obj[c] = row[i]
			}
		}
		if err := enc.Encode(obj); err != nil {
			return err
		}
	}
	return bw.Flush()
}
