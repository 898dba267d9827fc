package commands

import (
	"github.com/spf13/cobra"

	"github.com/erraggy/paramcontract/internal/mcpserver"
)

func newMCPCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the paramcontract tools over MCP on stdio",
		Long: `Start a Model Context Protocol server on stdin/stdout exposing the
check_contracts, validate_request and list_operations tools. Configure it
with PARAMCONTRACT_* environment variables in the MCP client.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return mcpserver.Run(cmd.Context())
		},
	}
}
