package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"

	"staytrack/internal/nationality"
	"staytrack/internal/risk"
)

// SearchInput is the argument of search_person.
type SearchInput struct {
	Keyword string `json:"keyword" jsonschema:"Name or passport fragment, at least 2 characters. Diacritics and case are ignored."`
}

// BatchInput is the argument of batch_lookup.
type BatchInput struct {
	Passports string `json:"passports" jsonschema:"Passport numbers separated by commas, semicolons or new lines"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Page size"`
	Offset    int    `json:"offset,omitempty" jsonschema:"Number of results to skip"`
}

// FilterInput narrows list_persons, get_statistics and matrix_report.
type FilterInput struct {
	DateFrom        string   `json:"date_from,omitempty" jsonschema:"Earliest arrival of the latest stay (YYYY-MM-DD or DD/MM/YYYY)"`
	DateTo          string   `json:"date_to,omitempty" jsonschema:"Latest arrival of the latest stay (YYYY-MM-DD or DD/MM/YYYY)"`
	Continents      []string `json:"continents,omitempty" jsonschema:"Continent groups to keep"`
	MinTotalDays    *int     `json:"min_total_days,omitempty" jsonschema:"Minimum days in the trailing 365-day window. Keeps only people still present."`
	MinLifetimeDays *int     `json:"min_lifetime_days,omitempty" jsonschema:"Minimum days across all recorded stays"`
	DaysOp          string   `json:"days_op,omitempty" jsonschema:"Comparison applied to annual days together with days_value"`
	DaysValue       *int     `json:"days_value,omitempty" jsonschema:"Annual day count compared with days_op"`
	Status          string   `json:"status,omitempty" jsonschema:"Exact final status, or dang_tam_tru / da_ket_thuc"`
	FreeText        string   `json:"free_text,omitempty" jsonschema:"Matches name, passport, nationality or address"`
	Limit           int      `json:"limit,omitempty" jsonschema:"Page size"`
	Offset          int      `json:"offset,omitempty" jsonschema:"Number of results to skip"`
}

// RiskInput is the argument of risk_predictions.
type RiskInput struct {
	Level string `json:"level,omitempty" jsonschema:"Only return this level"`
	Limit int    `json:"limit,omitempty" jsonschema:"Maximum number of assessments"`
}

// inputSchema infers the schema for In; edit may add constraints the
// struct tags cannot express.
func inputSchema[In any](edit func(*jsonschema.Schema)) *jsonschema.Schema {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		panic(fmt.Sprintf("infer input schema: %v", err))
	}
	if edit != nil {
		edit(schema)
	}
	return schema
}

func filterSchema(s *jsonschema.Schema) {
	if p := s.Properties["continents"]; p != nil && p.Items != nil {
		p.Items.Enum = stringsToAny(nationality.Groups())
	}
	if p := s.Properties["days_op"]; p != nil {
		p.Enum = []any{">=", "<="}
	}
}

func stringsToAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// addTool registers h under name. Results are returned as indented JSON
// text; handler errors become tool errors the client can read.
func addTool[In any](s *Server, name, description string, schema *jsonschema.Schema, h func(context.Context, In) (any, error)) {
	tool := &sdk.Tool{Name: name, Description: description, InputSchema: schema}
	sdk.AddTool(s.srv, tool, func(ctx context.Context, _ *sdk.CallToolRequest, in In) (*sdk.CallToolResult, any, error) {
		start := time.Now()
		out, err := h(ctx, in)
		if err != nil {
			log.Warn().Err(err).Str("tool", name).Msg("Tool call failed")
			return nil, nil, err
		}
		b, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return nil, nil, fmt.Errorf("encode %s result: %w", name, err)
		}
		log.Debug().Str("tool", name).Dur("took", time.Since(start)).Int("bytes", len(b)).Msg("Tool call")
		return &sdk.CallToolResult{Content: []sdk.Content{&sdk.TextContent{Text: string(b)}}}, nil, nil
	})
}

func (s *Server) registerTools() {
	addTool(s, "search_person",
		"Find foreigners by name or passport fragment. Matching ignores Vietnamese diacritics and case. "+
			"Guidance: use 'batch_lookup' instead when the user already has a list of full passport numbers.",
		inputSchema[SearchInput](nil), s.handleSearch)

	addTool(s, "batch_lookup",
		"Look up many passports at once. Results keep the input order and unknown passports are listed under not_found. "+
			"Entries shorter than 5 characters are ignored.",
		inputSchema[BatchInput](nil), s.handleBatch)

	addTool(s, "list_persons",
		"List person summaries matching a filter, newest arrival first. "+
			"Day counts cover the trailing 365 days ending on the reporting day. "+
			"Guidance: use 'get_statistics' for totals instead of paging through every person.",
		inputSchema[FilterInput](filterSchema), s.handleList)

	addTool(s, "get_statistics",
		"Summarize the population matching a filter: totals, counts by nationality and a Vietnamese narrative. "+
			"STRICT GUARDRAIL: quote the narrative and counts as returned; do not extrapolate figures the tool did not report.",
		inputSchema[FilterInput](filterSchema), s.handleStatistics)

	addTool(s, "risk_predictions",
		"Score residents with rule-based risk points (HIGH, MEDIUM, LOW). "+
			"Scores are advisory and never change a person's final status.",
		inputSchema[RiskInput](func(s *jsonschema.Schema) {
			s.Properties["level"].Enum = []any{string(risk.High), string(risk.Medium), string(risk.Low)}
		}), s.handleRisk)

	addTool(s, "matrix_report",
		"Cross-tabulate nationalities by predicted purpose of stay (labor, family, other). "+
			"Predictions are heuristic; confirmed statuses come from the registries.",
		inputSchema[FilterInput](filterSchema), s.handleMatrix)
}
