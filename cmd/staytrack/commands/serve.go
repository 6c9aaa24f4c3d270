package commands

import (
	"github.com/spf13/cobra"

	"staytrack/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcp.NewServer(svc, Version).Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
