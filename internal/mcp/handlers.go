package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"staytrack/internal/entry"
	"staytrack/internal/query"
	"staytrack/internal/risk"
	"staytrack/internal/visuals"
)

// Filter converts tool arguments into a validated query filter.
func (in FilterInput) Filter() (query.Filter, error) {
	f := query.Filter{
		MinTotalDays:    in.MinTotalDays,
		MinLifetimeDays: in.MinLifetimeDays,
		DaysOp:          strings.TrimSpace(in.DaysOp),
		DaysValue:       in.DaysValue,
		Status:          strings.TrimSpace(in.Status),
		FreeText:        strings.TrimSpace(in.FreeText),
		Limit:           in.Limit,
		Offset:          in.Offset,
	}
	for _, c := range in.Continents {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			f.Continents = append(f.Continents, c)
		}
	}
	var err error
	if f.DateFrom, err = optDate("date_from", in.DateFrom); err != nil {
		return f, err
	}
	if f.DateTo, err = optDate("date_to", in.DateTo); err != nil {
		return f, err
	}
	return f, f.Validate()
}

func optDate(name, v string) (*time.Time, error) {
	if v = strings.TrimSpace(v); v == "" {
		return nil, nil
	}
	d, ok := entry.ParseDate(v)
	if !ok {
		return nil, fmt.Errorf("%s: unrecognised date %q", name, v)
	}
	return &d, nil
}

func (s *Server) engine(ctx context.Context, op string) (*query.Engine, error) {
	eng, err := s.svc.Engine(ctx)
	if err != nil {
		return nil, err
	}
	s.svc.Metrics().IncQuery("mcp_" + op)
	return eng, nil
}

func (s *Server) handleSearch(ctx context.Context, in SearchInput) (any, error) {
	eng, err := s.engine(ctx, "search")
	if err != nil {
		return nil, err
	}
	results, err := eng.Search(in.Keyword)
	if err != nil {
		return nil, err
	}
	return map[string]any{"keyword": in.Keyword, "count": len(results), "results": results}, nil
}

func (s *Server) handleBatch(ctx context.Context, in BatchInput) (any, error) {
	if strings.TrimSpace(in.Passports) == "" {
		return nil, fmt.Errorf("passports is required")
	}
	eng, err := s.engine(ctx, "batch")
	if err != nil {
		return nil, err
	}
	return eng.Batch(in.Passports, in.Limit, in.Offset), nil
}

func (s *Server) handleList(ctx context.Context, in FilterInput) (any, error) {
	f, err := in.Filter()
	if err != nil {
		return nil, err
	}
	eng, err := s.engine(ctx, "list")
	if err != nil {
		return nil, err
	}
	return eng.List(f)
}

// statistics bundles everything get_statistics reports.
type statistics struct {
	AsOf             string                   `json:"as_of"`
	Filter           string                   `json:"filter"`
	Summary          query.Summary            `json:"summary"`
	ByNationality    []query.NationalityCount `json:"by_nationality"`
	Narrative        string                   `json:"narrative"`
	PurposeNarrative string                   `json:"purpose_narrative"`
	StatusChart      string                   `json:"status_chart,omitempty"`
	NationalityChart string                   `json:"nationality_chart,omitempty"`
}

func (s *Server) handleStatistics(ctx context.Context, in FilterInput) (any, error) {
	f, err := in.Filter()
	if err != nil {
		return nil, err
	}
	eng, err := s.engine(ctx, "statistics")
	if err != nil {
		return nil, err
	}
	out := statistics{AsOf: entry.FormatISO(eng.AsOf()), Filter: f.Describe()}
	if out.Summary, err = eng.Statistics(f); err != nil {
		return nil, err
	}
	if out.ByNationality, err = eng.ByNationality(f, f.Limit); err != nil {
		return nil, err
	}
	if out.Narrative, err = eng.Narrative(f); err != nil {
		return nil, err
	}
	if out.PurposeNarrative, err = eng.PurposeNarrative(f); err != nil {
		return nil, err
	}
	out.StatusChart = visuals.GenerateStatusPie(out.Summary)
	out.NationalityChart = visuals.GenerateNationalityChart(out.ByNationality)
	return out, nil
}

func (s *Server) handleRisk(ctx context.Context, in RiskInput) (any, error) {
	level, err := risk.ParseLevel(in.Level)
	if err != nil {
		return nil, err
	}
	s.svc.Metrics().IncQuery("mcp_risk")
	out, err := s.svc.Risk(ctx, level, in.Limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"count": len(out), "predictions": out, "chart": visuals.GenerateRiskPie(out)}, nil
}

func (s *Server) handleMatrix(ctx context.Context, in FilterInput) (any, error) {
	f, err := in.Filter()
	if err != nil {
		return nil, err
	}
	eng, err := s.engine(ctx, "matrix")
	if err != nil {
		return nil, err
	}
	m, err := eng.Matrix(f)
	if err != nil {
		return nil, err
	}
	return matrixReport{Matrix: m, Chart: visuals.GenerateMatrixChart(m)}, nil
}

type matrixReport struct {
	query.Matrix
	Chart string `json:"chart,omitempty"`
}
