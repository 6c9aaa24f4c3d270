package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"staytrack/internal/export"
)

var (
	exportFilter filterFlags
	exportReport bool
	exportOpen   bool
)

var exportCmd = &cobra.Command{
	Use:   "export [file.xlsx]",
	Short: "Write matching persons (or the statistics report) to an XLSX workbook",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := exportFilter.filter(cmd)
		if err != nil {
			return err
		}
		path := filepath.Join(cfg.DataPath, export.FileName(time.Now()))
		if len(args) == 1 {
			path = args[0]
		}

		out, err := os.Create(path)
		if err != nil {
			return err
		}
		if exportReport {
			err = svc.ExportReport(cmd.Context(), out, f)
		} else {
			var n int
			n, err = svc.ExportXLSX(cmd.Context(), out, f)
			log.Info().Int("rows", n).Str("path", path).Msg("Exported persons")
		}
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("export %s: %w", path, err)
		}
		fmt.Println(path)

		if exportOpen {
			return browser.OpenFile(path)
		}
		return nil
	},
}

func init() {
	exportFilter.bind(exportCmd, false)
	exportCmd.Flags().BoolVar(&exportReport, "report", false, "write the statistics report instead of the person list")
	exportCmd.Flags().BoolVar(&exportOpen, "open", false, "open the workbook when done")
	rootCmd.AddCommand(exportCmd)
}
