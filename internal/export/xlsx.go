package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"staytrack/internal/query"
	"staytrack/internal/registry"
	"staytrack/internal/summary"
)

const (
	PersonSheet      = "Kết quả tra cứu"
	SummarySheet     = "Tổng hợp"
	NationalitySheet = "Theo quốc tịch"
	MatrixSheet      = "Ma trận"
)

// ContentType is the MIME type of the workbooks written here.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// FileName is the default download name for a result export made at t.
func FileName(t time.Time) string {
	return "tra_cuu_" + t.Format("2006-01-02_150405") + ".xlsx"
}

// Row fill colours by final status.
var statusFills = map[string]string{
	registry.LabelWatchlist: "#FFCCCC",
	registry.LabelLabor:     "#FFFFCC",
	registry.LabelMarriage:  "#CCFFCC",
	registry.LabelStudent:   "#CCE5FF",
}

func thinBorder() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
	}
}

type styles struct {
	header int
	cell   int
	status map[string]int
	bold   int
}

func newStyles(f *excelize.File) (styles, error) {
	var s styles
	var err error
	s.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#0066CC"}, Pattern: 1},
		Border:    thinBorder(),
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return s, fmt.Errorf("failed to create header style: %w", err)
	}
	s.cell, err = f.NewStyle(&excelize.Style{
		Border:    thinBorder(),
		Alignment: &excelize.Alignment{Vertical: "center", WrapText: true},
	})
	if err != nil {
		return s, fmt.Errorf("failed to create cell style: %w", err)
	}
	s.bold, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return s, fmt.Errorf("failed to create bold style: %w", err)
	}
	s.status = make(map[string]int, len(statusFills))
	for status, color := range statusFills {
		id, err := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Border:    thinBorder(),
			Alignment: &excelize.Alignment{Vertical: "center", WrapText: true},
		})
		if err != nil {
			return s, fmt.Errorf("failed to create status style: %w", err)
		}
		s.status[status] = id
	}
	return s, nil
}

// newWorkbook creates a file whose only sheet is named first.
func newWorkbook(first string) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(first)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)
	return f, nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, widths []float64, style int) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return fmt.Errorf("failed to set header style: %w", err)
		}
		if i < len(widths) && widths[i] > 0 {
			col, err := excelize.ColumnNumberToName(i + 1)
			if err != nil {
				return fmt.Errorf("failed to convert column number: %w", err)
			}
			if err := f.SetColWidth(sheet, col, col, widths[i]); err != nil {
				return fmt.Errorf("failed to set column width: %w", err)
			}
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

func writeRow(f *excelize.File, sheet string, rowNum int, values []any, style int) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("failed to set cell %s: %w", cell, err)
		}
		if style > 0 {
			if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
				return fmt.Errorf("failed to set cell style: %w", err)
			}
		}
	}
	return nil
}

func writePeople(f *excelize.File, st styles, sheet string, people []summary.PersonSummary) error {
	widths := make([]float64, len(Columns))
	for i, c := range Columns {
		widths[i] = c.Width
	}
	if err := writeHeader(f, sheet, Headers(), widths, st.header); err != nil {
		return err
	}
	for i, p := range people {
		style := st.cell
		if s, ok := st.status[p.FinalStatus]; ok {
			style = s
		}
		if err := writeRow(f, sheet, i+2, Row(p), style); err != nil {
			return err
		}
	}
	return nil
}

// WriteXLSX writes people to a single-sheet workbook, one row per person,
// rows coloured by final status.
func WriteXLSX(w io.Writer, people []summary.PersonSummary) error {
	f, err := newWorkbook(PersonSheet)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return err
	}
	if err := writePeople(f, st, PersonSheet, people); err != nil {
		return err
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Report is the content of a statistics workbook.
type Report struct {
	Period        string
	Summary       query.Summary
	ByNationality []query.NationalityCount
	Matrix        *query.Matrix
	People        []summary.PersonSummary
}

// WriteReport writes a multi-sheet statistics workbook: summary, per-nationality
// counts, the optional purpose matrix and the person list.
func WriteReport(w io.Writer, r Report) error {
	f, err := newWorkbook(SummarySheet)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return err
	}

	// 1. Summary
	if err := f.SetCellValue(SummarySheet, "A1", "BÁO CÁO THỐNG KÊ NGƯỜI NƯỚC NGOÀI"); err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheet, "A1", "A1", st.bold); err != nil {
		return err
	}
	lines := [][]any{}
	if r.Period != "" {
		lines = append(lines, []any{"Thời gian", r.Period})
	}
	s := r.Summary
	lines = append(lines,
		[]any{"Tổng số người", s.TotalPersons},
		[]any{"Số quốc tịch", s.TotalNationalities},
		[]any{"Đang lưu trú", s.CurrentlyResiding},
		[]any{"Thời gian lưu trú TB (ngày)", s.AvgAnnualDays},
		[]any{registry.LabelLabor, s.Labor},
		[]any{registry.LabelMarriage, s.Marriage},
		[]any{registry.LabelStudent, s.Student},
		[]any{registry.LabelWatchlist, s.Watchlist},
	)
	for i, l := range lines {
		if err := writeRow(f, SummarySheet, i+3, l, 0); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(SummarySheet, "A", "A", 30); err != nil {
		return err
	}

	// 2. Nationalities
	if _, err := f.NewSheet(NationalitySheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := writeHeader(f, NationalitySheet, []string{"Quốc tịch", "Số người", "Còn ở"}, []float64{20, 12, 12}, st.header); err != nil {
		return err
	}
	for i, n := range r.ByNationality {
		if err := writeRow(f, NationalitySheet, i+2, []any{n.Nationality, n.Count, n.StillHere}, st.cell); err != nil {
			return err
		}
	}

	// 3. Matrix
	if r.Matrix != nil {
		if _, err := f.NewSheet(MatrixSheet); err != nil {
			return fmt.Errorf("failed to create sheet: %w", err)
		}
		headers := []string{"Quốc tịch", "Tổng", "Lao động", "Thăm thân", "Khác", "%"}
		if err := writeHeader(f, MatrixSheet, headers, []float64{20, 10, 10, 10, 10, 10}, st.header); err != nil {
			return err
		}
		rows := append(append([]query.MatrixRow{}, r.Matrix.Rows...), r.Matrix.Totals)
		for i, m := range rows {
			values := []any{m.Nationality, m.Total, m.Labor, m.Family, m.Other, m.Percent}
			if err := writeRow(f, MatrixSheet, i+2, values, st.cell); err != nil {
				return err
			}
		}
	}

	// 4. People
	if _, err := f.NewSheet(PersonSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := writePeople(f, st, PersonSheet, r.People); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
