package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teamcutter/huber/internal/platform"
)

func newUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "uninstall <name>...",
		Aliases: []string{"remove", "rm"},
		Short:   "Uninstall packages",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}

			mgr, st, err := newManager(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer st.Close()

			host := platform.Detect(ctx)

			var errs []error
			for _, name := range args {
				res, err := mgr.Uninstall(ctx, name, host)
				if err != nil {
					printError(cmd.ErrOrStderr(), fmt.Errorf("%s: %w", name, err))
					errs = append(errs, err)
					continue
				}
				printResult(cmd.OutOrStdout(), res, cfg.BinDir)
			}

			if len(errs) > 0 {
				return &batchError{verb: "uninstall", errs: errs}
			}
			return nil
		},
	}
}
