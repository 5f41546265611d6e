package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teamcutter/huber/internal/domain"
)

type listEntry struct {
	Name        string          `json:"name" yaml:"name"`
	Version     string          `json:"version" yaml:"version"`
	Latest      string          `json:"latest,omitempty" yaml:"latest,omitempty"`
	Platform    domain.Platform `json:"platform" yaml:"platform"`
	Root        string          `json:"root" yaml:"root"`
	Executables []string        `json:"executables" yaml:"executables"`
}

func (e listEntry) outdated() bool {
	return e.Latest != "" && domain.CompareVersions(e.Latest, e.Version) > 0
}

func newListCmd() *cobra.Command {
	var (
		output  string
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFormat(output)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}

			st, err := openState(ctx, cfg)
			if err != nil {
				return err
			}
			installed, err := st.List()
			st.Close()
			if err != nil {
				return err
			}

			entries := make([]listEntry, len(installed))
			for i, pkg := range installed {
				entries[i] = listEntry{
					Name:        pkg.Name,
					Version:     pkg.Version,
					Platform:    pkg.Platform,
					Root:        pkg.Root,
					Executables: pkg.Executables,
				}
			}

			if !offline && len(entries) > 0 {
				catalog := newCatalog(ctx, cfg)
				logger := loggerFromContext(ctx)
				mu := &sync.Mutex{}

				g, gctx := errgroup.WithContext(ctx)
				g.SetLimit(cfg.MaxParallel)

				for i := range entries {
					g.Go(func() error {
						latest, err := catalog.Latest(gctx, entries[i].Name)
						if err != nil {
							logger.Debug("latest version lookup failed", "package", entries[i].Name, "err", err)
							return nil
						}
						mu.Lock()
						entries[i].Latest = latest
						mu.Unlock()
						return nil
					})
				}
				_ = g.Wait()
			}

			return listView(entries).render(cmd.OutOrStdout(), f)
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the newest version lookup")
	addOutputFlag(cmd, &output)
	return cmd
}

func listView(entries []listEntry) view {
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{e.Name, e.Version, e.Latest, string(e.Platform), strings.Join(e.Executables, ", ")}
	}

	return view{
		data:    entries,
		headers: []string{"Name", "Version", "Latest", "Platform", "Executables"},
		rows:    rows,
		text: func(w io.Writer) {
			if len(entries) == 0 {
				fmt.Fprintf(w, "%s No packages installed\n", dim("○"))
				return
			}
			fmt.Fprintf(w, "Installed packages:\n\n")
			for _, e := range entries {
				line := fmt.Sprintf(" %s", bold(e.Name+"@"+e.Version))
				if e.outdated() {
					line += fmt.Sprintf("  %s", yellow("↑ "+e.Latest))
				}
				fmt.Fprintln(w, line)
			}
		},
	}
}
