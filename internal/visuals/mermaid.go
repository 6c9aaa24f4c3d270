// Package visuals renders query results as Mermaid charts for MCP clients.
package visuals

import (
	"fmt"
	"math"
	"strings"

	"staytrack/internal/query"
	"staytrack/internal/registry"
	"staytrack/internal/risk"
)

// GenerateNationalityChart creates a Mermaid bar chart of persons per nationality.
func GenerateNationalityChart(counts []query.NationalityCount) string {
	if len(counts) == 0 {
		return ""
	}

	// Mermaid's xychart gets unreadable past ~20 bars
	limit := min(len(counts), 20)

	var labels []string
	var totals []string
	var present []string
	maxVal := 0
	for _, c := range counts[:limit] {
		labels = append(labels, fmt.Sprintf("\"%s\"", c.Nationality))
		totals = append(totals, fmt.Sprintf("%d", c.Count))
		present = append(present, fmt.Sprintf("%d", c.StillHere))
		maxVal = max(maxVal, c.Count)
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Persons by Nationality\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Persons\" 0 --> %d\n", maxVal+int(math.Max(1, float64(maxVal)*0.2))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(totals, ", ")))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(present, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// GenerateStatusPie creates a Mermaid pie of final statuses.
func GenerateStatusPie(s query.Summary) string {
	if s.TotalPersons == 0 {
		return ""
	}
	other := s.TotalPersons - s.Labor - s.Marriage - s.Student - s.Watchlist

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("pie title Final Status\n")
	for _, slice := range []struct {
		label string
		n     int
	}{
		{registry.LabelLabor, s.Labor},
		{registry.LabelMarriage, s.Marriage},
		{registry.LabelStudent, s.Student},
		{registry.LabelWatchlist, s.Watchlist},
		{"Khác", other},
	} {
		if slice.n > 0 {
			sb.WriteString(fmt.Sprintf("    \"%s\" : %d\n", slice.label, slice.n))
		}
	}
	sb.WriteString("```")
	return sb.String()
}

// GenerateMatrixChart creates a Mermaid bar chart with one series per
// predicted purpose.
func GenerateMatrixChart(m query.Matrix) string {
	if len(m.Rows) == 0 {
		return ""
	}
	limit := min(len(m.Rows), 15)

	var labels, labor, family, other []string
	maxVal := 0
	for _, r := range m.Rows[:limit] {
		labels = append(labels, fmt.Sprintf("\"%s\"", r.Nationality))
		labor = append(labor, fmt.Sprintf("%d", r.Labor))
		family = append(family, fmt.Sprintf("%d", r.Family))
		other = append(other, fmt.Sprintf("%d", r.Other))
		maxVal = max(maxVal, r.Labor, r.Family, r.Other)
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("xychart-beta\n")
	sb.WriteString("    title \"Predicted Purpose by Nationality (labor, family, other)\"\n")
	sb.WriteString(fmt.Sprintf("    x-axis [%s]\n", strings.Join(labels, ", ")))
	sb.WriteString(fmt.Sprintf("    y-axis \"Persons\" 0 --> %d\n", maxVal+int(math.Max(1, float64(maxVal)*0.2))))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(labor, ", ")))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(family, ", ")))
	sb.WriteString(fmt.Sprintf("    bar [%s]\n", strings.Join(other, ", ")))
	sb.WriteString("```")
	return sb.String()
}

// GenerateRiskPie creates a Mermaid pie of assessments per risk level.
func GenerateRiskPie(assessments []risk.Assessment) string {
	if len(assessments) == 0 {
		return ""
	}
	counts := make(map[risk.Level]int)
	for _, a := range assessments {
		counts[a.Level]++
	}

	var sb strings.Builder
	sb.WriteString("```mermaid\n")
	sb.WriteString("pie title Risk Levels\n")
	for _, l := range []risk.Level{risk.High, risk.Medium, risk.Low} {
		if counts[l] > 0 {
			sb.WriteString(fmt.Sprintf("    \"%s\" : %d\n", l, counts[l]))
		}
	}
	sb.WriteString("```")
	return sb.String()
}
