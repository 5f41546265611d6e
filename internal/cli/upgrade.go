package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/teamcutter/huber/internal/manager"
	"github.com/teamcutter/huber/internal/platform"
)

func newUpgradeCmd() *cobra.Command {
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "upgrade [name...]",
		Short: "Upgrade installed packages to the newest version",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}

			var progress io.Writer = os.Stderr
			if noProgress {
				progress = nil
			}
			mgr, st, err := newManager(ctx, cfg, progress)
			if err != nil {
				return err
			}
			defer st.Close()

			out := cmd.OutOrStdout()

			names := args
			if len(names) == 0 {
				installed, err := st.List()
				if err != nil {
					return err
				}
				for _, pkg := range installed {
					names = append(names, pkg.Name)
				}
			}

			if len(names) == 0 {
				fmt.Fprintf(out, "%s No packages installed\n", dim("○"))
				return nil
			}

			host := platform.Detect(ctx)

			var errs []error
			for _, name := range names {
				res, err := mgr.Upgrade(ctx, name, host)
				if err != nil {
					printError(cmd.ErrOrStderr(), fmt.Errorf("%s: %w", name, err))
					errs = append(errs, err)
					continue
				}
				if res.Outcome == manager.OutcomeUnchanged {
					fmt.Fprintf(out, "%s %s already up-to-date\n", dim("○"), name)
					continue
				}
				printResult(out, res, cfg.BinDir)
			}

			if len(errs) > 0 {
				return &batchError{verb: "upgrade", errs: errs}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Hide download progress bars")
	return cmd
}
