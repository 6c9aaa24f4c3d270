package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staytrack/internal/cache"
	"staytrack/internal/entry"
	"staytrack/internal/metrics"
	"staytrack/internal/query"
	"staytrack/internal/registry"
	"staytrack/internal/service"
	"staytrack/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()
	store, err := storage.OpenJSONL(t.TempDir())
	require.NoError(t, err)
	asOf := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	svc := service.New(store, cache.NewMemory(), metrics.New(), service.Options{
		Today: func() time.Time { return asOf },
		Now:   func() time.Time { return asOf },
	})
	_, err = svc.ImportEntries(ctx, entry.Table{
		Columns: []string{"Họ tên", "Số hộ chiếu", "Quốc tịch", "Ngày đến", "Ngày đi", "Địa chỉ"},
		Rows: [][]string{
			{"Wang Wei", "E123456", "CHN", "01/12/2024", "", "KCN Bảo Yên"},
			{"Anna Smith", "B000001", "FRA", "20/12/2024", "22/12/2024", "Homestay"},
			{"Nguyễn Thị Lan", "L000001", "USA", "01/06/2024", "", "Cty XYZ"},
		},
	})
	require.NoError(t, err)
	_, err = svc.ImportRegistry(ctx, registry.Labor, entry.Table{
		Columns: []string{"Số hộ chiếu", "Vị trí", "Nơi làm việc"},
		Rows:    [][]string{{"E123456", "Kỹ sư", "Cty ABC"}},
	})
	require.NoError(t, err)
	return NewServer(svc, "test")
}

func TestFilterInput(t *testing.T) {
	days := 30
	f, err := FilterInput{
		DateFrom:     "01/01/2024",
		DateTo:       "2024-12-31",
		Continents:   []string{" asia", "", "Europe"},
		MinTotalDays: &days,
		Status:       " Lao động ",
	}.Filter()
	require.NoError(t, err)
	require.NotNil(t, f.DateFrom)
	assert.Equal(t, "2024-01-01", entry.FormatISO(*f.DateFrom))
	assert.Equal(t, []string{"ASIA", "EUROPE"}, f.Continents)
	assert.Equal(t, 30, *f.MinTotalDays)
	assert.Equal(t, "Lao động", f.Status)

	_, err = FilterInput{DateFrom: "yesterday"}.Filter()
	assert.ErrorContains(t, err, "date_from")

	_, err = FilterInput{DaysOp: "=="}.Filter()
	assert.Error(t, err)
}

func TestHandlers(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	out, err := s.handleSearch(ctx, SearchInput{Keyword: "nguyen"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.(map[string]any)["count"])

	_, err = s.handleSearch(ctx, SearchInput{Keyword: "x"})
	assert.ErrorIs(t, err, query.ErrKeywordTooShort)

	out, err = s.handleBatch(ctx, BatchInput{Passports: "e123456\nZZZ99999"})
	require.NoError(t, err)
	page := out.(query.Page)
	assert.Equal(t, 1, page.TotalCount)
	assert.Equal(t, []string{"ZZZ99999"}, page.NotFound)

	_, err = s.handleBatch(ctx, BatchInput{})
	assert.Error(t, err)

	out, err = s.handleList(ctx, FilterInput{Status: query.StatusPresent})
	require.NoError(t, err)
	assert.Equal(t, 2, out.(query.Page).TotalCount)

	out, err = s.handleStatistics(ctx, FilterInput{})
	require.NoError(t, err)
	st := out.(statistics)
	assert.Equal(t, "2024-12-31", st.AsOf)
	assert.Equal(t, 3, st.Summary.TotalPersons)
	assert.Equal(t, 1, st.Summary.Labor)
	assert.NotEmpty(t, st.Narrative)
	assert.Contains(t, st.StatusChart, "pie title")

	_, err = s.handleRisk(ctx, RiskInput{Level: "EXTREME"})
	assert.Error(t, err)

	out, err = s.handleMatrix(ctx, FilterInput{})
	require.NoError(t, err)
	report := out.(matrixReport)
	assert.Equal(t, 3, report.TotalRecords)
	assert.Contains(t, report.Chart, "xychart-beta")
}

func connect(t *testing.T, s *Server) *sdk.ClientSession {
	t.Helper()
	ctx := context.Background()
	clientT, serverT := sdk.NewInMemoryTransports()
	_, err := s.Connect(ctx, serverT)
	require.NoError(t, err)
	client := sdk.NewClient(&sdk.Implementation{Name: "client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func TestSession_ListTools(t *testing.T) {
	cs := connect(t, newTestServer(t))
	res, err := cs.ListTools(context.Background(), &sdk.ListToolsParams{})
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"search_person", "batch_lookup", "list_persons",
		"get_statistics", "risk_predictions", "matrix_report",
	}, names)
}

func TestSession_CallTool(t *testing.T) {
	ctx := context.Background()
	cs := connect(t, newTestServer(t))

	res, err := cs.CallTool(ctx, &sdk.CallToolParams{
		Name:      "batch_lookup",
		Arguments: map[string]any{"passports": "E123456, L000001"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*sdk.TextContent)
	require.True(t, ok)

	var page query.Page
	require.NoError(t, json.Unmarshal([]byte(text.Text), &page))
	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, "E123456", page.Results[0].Passport)

	res, err = cs.CallTool(ctx, &sdk.CallToolParams{
		Name:      "search_person",
		Arguments: map[string]any{"keyword": "w"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
