package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"staytrack/internal/entry"
	"staytrack/internal/query"
	"staytrack/internal/risk"
)

// filterFlags binds query.Filter fields to command flags.
type filterFlags struct {
	from, to        string
	continents      []string
	minDays         int
	minLifetimeDays int
	daysOp          string
	daysValue       int
	status          string
	text            string
	limit, offset   int
}

func (ff *filterFlags) bind(cmd *cobra.Command, paging bool) {
	fs := cmd.Flags()
	fs.StringVar(&ff.from, "from", "", "earliest arrival of the latest stay")
	fs.StringVar(&ff.to, "to", "", "latest arrival of the latest stay")
	fs.StringSliceVar(&ff.continents, "continent", nil, "continent groups (ASIA, EUROPE, AMERICA, OCEANIA, AFRICA, ASIA_OCEANIA, OTHER)")
	fs.IntVar(&ff.minDays, "min-days", 0, "minimum days in the last 365, people still present only")
	fs.IntVar(&ff.minLifetimeDays, "min-lifetime-days", 0, "minimum days across all stays")
	fs.StringVar(&ff.daysOp, "days-op", "", "compare annual days with --days-value (>= or <=)")
	fs.IntVar(&ff.daysValue, "days-value", 0, "annual day count for --days-op")
	fs.StringVar(&ff.status, "status", "", "final status, or dang_tam_tru / da_ket_thuc")
	fs.StringVar(&ff.text, "text", "", "free text over name, passport, nationality and address")
	if paging {
		fs.IntVar(&ff.limit, "limit", 0, "page size (default PAGE_SIZE)")
		fs.IntVar(&ff.offset, "offset", 0, "results to skip")
	}
}

// filter builds the query filter; numeric criteria apply only when their
// flag was given.
func (ff *filterFlags) filter(cmd *cobra.Command) (query.Filter, error) {
	f := query.Filter{
		DaysOp:   ff.daysOp,
		Status:   ff.status,
		FreeText: ff.text,
		Limit:    ff.limit,
		Offset:   ff.offset,
	}
	for _, c := range ff.continents {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			f.Continents = append(f.Continents, c)
		}
	}
	for _, d := range []struct {
		name string
		raw  string
		dst  **time.Time
	}{{"from", ff.from, &f.DateFrom}, {"to", ff.to, &f.DateTo}} {
		if d.raw == "" {
			continue
		}
		t, ok := entry.ParseDate(d.raw)
		if !ok {
			return f, fmt.Errorf("--%s: unrecognised date %q", d.name, d.raw)
		}
		*d.dst = &t
	}
	fs := cmd.Flags()
	if fs.Changed("min-days") {
		f.MinTotalDays = &ff.minDays
	}
	if fs.Changed("min-lifetime-days") {
		f.MinLifetimeDays = &ff.minLifetimeDays
	}
	if fs.Changed("days-value") {
		f.DaysValue = &ff.daysValue
	}
	return f, f.Validate()
}

var (
	listFilter   filterFlags
	statsFilter  filterFlags
	matrixFilter filterFlags

	batchLimit  int
	batchOffset int
	riskLevel   string
	riskLimit   int
)

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Find persons by name or passport fragment",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := svc.Engine(cmd.Context())
		if err != nil {
			return err
		}
		results, err := eng.Search(strings.Join(args, " "))
		if err != nil {
			return err
		}
		return printJSON(results)
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch <passport>...",
	Short: "Look up a list of passports; use - to read them from stdin",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, "\n")
		if len(args) == 1 && args[0] == "-" {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			text = string(b)
		}
		eng, err := svc.Engine(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(eng.Batch(text, batchLimit, batchOffset))
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List person summaries matching a filter",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := listFilter.filter(cmd)
		if err != nil {
			return err
		}
		eng, err := svc.Engine(cmd.Context())
		if err != nil {
			return err
		}
		page, err := eng.List(f)
		if err != nil {
			return err
		}
		return printJSON(page)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print statistics and the narrative report",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := statsFilter.filter(cmd)
		if err != nil {
			return err
		}
		eng, err := svc.Engine(cmd.Context())
		if err != nil {
			return err
		}
		text, err := eng.Narrative(f)
		if err != nil {
			return err
		}
		purpose, err := eng.PurposeNarrative(f)
		if err != nil {
			return err
		}
		fmt.Printf("Số liệu tính đến %s (%s)\n\n%s\n\n%s\n", entry.FormatVN(ptr(eng.AsOf())), f.Describe(), text, purpose)
		return nil
	},
}

var riskCmd = &cobra.Command{
	Use:   "risk",
	Short: "Score residents with advisory risk points",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := risk.ParseLevel(riskLevel)
		if err != nil {
			return err
		}
		out, err := svc.Risk(cmd.Context(), level, riskLimit)
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Cross-tabulate nationalities by predicted purpose",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := matrixFilter.filter(cmd)
		if err != nil {
			return err
		}
		eng, err := svc.Engine(cmd.Context())
		if err != nil {
			return err
		}
		m, err := eng.Matrix(f)
		if err != nil {
			return err
		}
		return printJSON(m)
	},
}

func ptr[T any](v T) *T { return &v }

func init() {
	listFilter.bind(listCmd, true)
	statsFilter.bind(statsCmd, false)
	matrixFilter.bind(matrixCmd, false)

	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "page size (default PAGE_SIZE)")
	batchCmd.Flags().IntVar(&batchOffset, "offset", 0, "results to skip")
	riskCmd.Flags().StringVar(&riskLevel, "level", "", "only HIGH, MEDIUM or LOW")
	riskCmd.Flags().IntVar(&riskLimit, "limit", 0, "maximum number of assessments")

	rootCmd.AddCommand(searchCmd, batchCmd, listCmd, statsCmd, riskCmd, matrixCmd)
}
