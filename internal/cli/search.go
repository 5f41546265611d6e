package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teamcutter/huber/internal/domain"
	"github.com/teamcutter/huber/internal/resolver"
)

func newSearchCmd() *cobra.Command {
	var (
		req    resolver.Request
		output string
	)

	cmd := &cobra.Command{
		Use:   "search [pattern]",
		Short: "Search the package repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFormat(output)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				req.Pattern = args[0]
			}

			ctx := cmd.Context()
			cfg, err := configFromContext(ctx)
			if err != nil {
				return err
			}

			stop := func() {}
			if f == formatText {
				stop = withSpinner(ctx, "Searching...")
			}
			results, err := newCatalog(ctx, cfg).Search(ctx, req)
			stop()
			if err != nil {
				return err
			}

			return summaryView(results, req).render(cmd.OutOrStdout(), f)
		},
	}

	cmd.Flags().StringVarP(&req.Name, "name", "n", "", "Exact package name")
	cmd.Flags().StringVar(&req.Owner, "owner", "", "Exact package owner")
	cmd.Flags().BoolVarP(&req.All, "all", "a", false, "List every version of --name")
	addOutputFlag(cmd, &output)
	return cmd
}

func summaryView(results []domain.PackageSummary, req resolver.Request) view {
	rows := make([][]string, len(results))
	for i, r := range results {
		rows[i] = []string{r.Name, r.Version, r.Owner, r.Description, r.Source}
	}

	return view{
		data:    results,
		headers: []string{"Name", "Version", "Owner", "Description", "Source"},
		rows:    rows,
		text: func(w io.Writer) {
			if len(results) == 0 {
				fmt.Fprintf(w, "%s No results found\n", dim("○"))
				return
			}
			for _, r := range results {
				fmt.Fprintf(w, "%s %s\n", green("●"), bold(r.Name))
				if r.Version != "" {
					fmt.Fprintf(w, "  %s %s\n", cyan("version:"), r.Version)
				}
				if r.Description != "" {
					fmt.Fprintf(w, "  %s %s\n", cyan("desc:"), r.Description)
				}
				if r.Owner != "" {
					fmt.Fprintf(w, "  %s %s\n", cyan("owner:"), r.Owner)
				}
				switch {
				case strings.Contains(r.Source, "://"):
					fmt.Fprintf(w, "  %s %s\n", cyan("url:"), dim(r.Source))
				case r.Source != "":
					fmt.Fprintf(w, "  %s %s\n", cyan("source:"), dim(r.Source))
				}
			}
			if !req.All {
				fmt.Fprintf(w, "\n%s %d result(s)\n", dim("○"), len(results))
			}
		},
	}
}
