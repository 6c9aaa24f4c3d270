package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"staytrack/internal/entry"
	"staytrack/internal/registry"
	"staytrack/internal/tableio"
)

var (
	sheetName  string
	showIssues bool
)

var importCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Import immigration log rows from .xlsx or .jsonl files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			t, err := tableio.ReadFile(path, sheetName)
			if err != nil {
				return err
			}
			report, err := svc.ImportEntries(cmd.Context(), t)
			if err != nil {
				return fmt.Errorf("import %s: %w", path, err)
			}
			printReport(os.Stdout, report)
		}
		return nil
	},
}

var importRegistryCmd = &cobra.Command{
	Use:   "import-registry <labor|student|watchlist|marriage> <file>",
	Short: "Import one reference registry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := registry.ParseKind(args[0])
		if err != nil {
			return err
		}
		t, err := tableio.ReadFile(args[1], sheetName)
		if err != nil {
			return err
		}
		report, err := svc.ImportRegistry(cmd.Context(), kind, t)
		if err != nil {
			return err
		}
		printReport(os.Stdout, report)
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Apply manual verification results by passport",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := tableio.ReadFile(args[0], sheetName)
		if err != nil {
			return err
		}
		report, err := svc.ImportVerifications(cmd.Context(), t)
		if err != nil {
			return err
		}
		printReport(os.Stdout, report)
		return nil
	},
}

func printReport(w io.Writer, r entry.Report) {
	fmt.Fprintf(w, "%s: %s processed, %s inserted, %s updated, %s skipped, %s warnings (batch %s)\n",
		r.Source,
		humanize.Comma(int64(r.Processed)),
		humanize.Comma(int64(r.Inserted)),
		humanize.Comma(int64(r.Updated)),
		humanize.Comma(int64(r.Skipped)),
		humanize.Comma(int64(r.Warned)),
		r.BatchID)
	if !showIssues {
		return
	}
	for _, is := range r.Issues {
		fmt.Fprintf(w, "  row %d [%s] %s: %s %q\n", is.Row, is.Severity, is.Column, is.Message, is.Value)
	}
}

func init() {
	for _, c := range []*cobra.Command{importCmd, importRegistryCmd, verifyCmd} {
		c.Flags().StringVar(&sheetName, "sheet", "", "XLSX sheet to read (default first sheet)")
		c.Flags().BoolVar(&showIssues, "issues", false, "print row-level issues")
		rootCmd.AddCommand(c)
	}
}
