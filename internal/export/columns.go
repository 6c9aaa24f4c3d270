// Package export renders person summaries into the fixed report column layout
// and writes them as XLSX workbooks.
package export

import (
	"strconv"

	"staytrack/internal/entry"
	"staytrack/internal/summary"
)

// Column is one export column: header text, width and a cell renderer.
type Column struct {
	Header string
	Width  float64
	Value  func(summary.PersonSummary) any
}

// Columns is the export schema, in output order.
var Columns = []Column{
	{"Họ và tên", 25, func(p summary.PersonSummary) any { return p.FullName }},
	{"Ngày sinh", 12, func(p summary.PersonSummary) any { return entry.FormatVN(p.BirthDate) }},
	{"Quốc tịch", 15, func(p summary.PersonSummary) any { return p.Nationality }},
	{"Số hộ chiếu", 15, func(p summary.PersonSummary) any { return p.Passport }},
	{"Ngày đến", 12, func(p summary.PersonSummary) any { return entry.FormatVN(&p.ArrivalDate) }},
	{"Ngày đi", 12, func(p summary.PersonSummary) any { return entry.FormatVN(p.DepartureDate) }},
	{"Địa chỉ tạm trú", 40, func(p summary.PersonSummary) any { return p.Address }},
	{"Số lần NC", 10, func(p summary.PersonSummary) any { return p.EntriesLast365 }},
	{"Tổng ngày (năm)", 12, func(p summary.PersonSummary) any { return p.DaysLast365 }},
	{"Tổng ngày (tích lũy)", 12, func(p summary.PersonSummary) any { return p.LifetimeDays }},
	{"Mục đích/Trạng thái", 20, func(p summary.PersonSummary) any { return p.FinalStatus }},
	{"Kết quả xác minh", 25, func(p summary.PersonSummary) any { return p.VerificationResult }},
}

// Headers lists the column headers.
func Headers() []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = c.Header
	}
	return out
}

// Row renders one person as cell values in column order.
func Row(p summary.PersonSummary) []any {
	out := make([]any, len(Columns))
	for i, c := range Columns {
		out[i] = c.Value(p)
	}
	return out
}

// Strings renders one person as display strings, for text sinks.
func Strings(p summary.PersonSummary) []string {
	row := Row(p)
	out := make([]string, len(row))
	for i, v := range row {
		switch x := v.(type) {
		case string:
			out[i] = x
		case int:
			out[i] = strconv.Itoa(x)
		}
	}
	return out
}
