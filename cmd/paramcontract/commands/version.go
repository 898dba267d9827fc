package commands

import (
	"github.com/spf13/cobra"

	"github.com/erraggy/paramcontract"
	"github.com/erraggy/paramcontract/internal/cliutil"
)

func newVersionCommand() *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the paramcontract version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			if full {
				cliutil.Writef(cmd.OutOrStdout(), "%s\n", paramcontract.BuildInfo())
				return
			}
			cliutil.Writef(cmd.OutOrStdout(), "paramcontract %s\n", paramcontract.Version())
		},
	}
	cmd.Flags().BoolVar(&full, "build-info", false, "print commit, build time and Go version too")
	return cmd
}
