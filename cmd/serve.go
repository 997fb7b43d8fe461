// File: cmd/serve.go
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/vatsal-bst/bluestacksmcp/internal/mcp"
	"github.com/vatsal-bst/bluestacksmcp/internal/observability"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the tool dispatch server.",
	Long: `Starts the HTTP server exposing device tools, task orchestration and
report retrieval. The server runs until it receives SIGINT or SIGTERM, then
drains in-flight sessions before exiting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, err := mcp.NewServer(appConfig, observability.GetLogger())
		if err != nil {
			return err
		}
		return server.Start()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
