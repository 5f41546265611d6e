package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teamcutter/huber/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of huber",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", bold("huber"), bold(version.String()))
		},
	}
}
