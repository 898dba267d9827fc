package commands

import (
	"log/slog"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	verbose bool
	logger  *slog.Logger
}

// NewRootCommand assembles the paramcontract command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{logger: slog.New(slog.DiscardHandler)}

	root := &cobra.Command{
		Use:   "paramcontract",
		Short: "Check parameter contracts and validate HTTP requests against them",
		Long: `paramcontract loads parameter contract documents (YAML, JSON, TOML or
OpenAPI 3) and validates HTTP requests against the operations they declare.

Defaults for request validation come from PARAMCONTRACT_* environment
variables; command flags override them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			opts.logger = newLogger(cmd.ErrOrStderr(), opts.verbose)
		},
	}
	root.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "log debug output to stderr")

	root.AddCommand(
		newCheckCommand(opts),
		newOperationsCommand(opts),
		newValidateCommand(opts),
		newMCPCommand(),
		newVersionCommand(),
	)
	return root
}
