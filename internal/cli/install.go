package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/teamcutter/huber/internal/manager"
	"github.com/teamcutter/huber/internal/platform"
)

func newInstallCmd() *cobra.Command {
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "install <name[@version]>...",
		Short: "Install packages",
		Args:  cobra.MinimumNArgs(1),
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
			host := platform.Detect(ctx)

			var errs []error
			for _, ref := range args {
				name, version := splitRef(ref)

				res, err := mgr.Install(ctx, manager.Request{Name: name, Version: version, Host: host})
				if err != nil {
					printError(cmd.ErrOrStderr(), fmt.Errorf("%s: %w", ref, err))
					errs = append(errs, err)
					continue
				}
				printResult(out, res, cfg.BinDir)
			}

			if len(errs) > 0 {
				return &batchError{verb: "install", errs: errs}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Hide download progress bars")
	return cmd
}

func printResult(w io.Writer, res *manager.Result, binDir string) {
	pkg := res.Package

	switch res.Outcome {
	case manager.OutcomeUnchanged:
		fmt.Fprintf(w, "%s %s%s%s already installed\n", dim("○"), bold(pkg.Name), bold("@"), bold(pkg.Version))
		return
	case manager.OutcomeRemoved:
		fmt.Fprintf(w, "%s %s%s%s removed\n", green("✓"), bold(pkg.Name), bold("@"), bold(pkg.Version))
		return
	case manager.OutcomeUpgraded:
		fmt.Fprintf(w, "%s %s%s%s → %s\n", green("✓"), bold(pkg.Name), bold("@"), bold(res.Previous), bold(pkg.Version))
	default:
		fmt.Fprintf(w, "%s %s%s%s\n", green("✓"), bold(pkg.Name), bold("@"), bold(pkg.Version))
	}

	fmt.Fprintf(w, "  %s %s\n", cyan("path:"), pkg.Root)
	for _, exe := range pkg.Executables {
		fmt.Fprintf(w, "  %s %s\n", cyan("bin:"), filepath.Join(binDir, exe))
	}
}
