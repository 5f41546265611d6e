package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teamcutter/huber/internal/domain"
)

func newShowCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show a package's versions and supported platforms",
		Args:  cobra.ExactArgs(1),
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

			pkgs, err := newCatalog(ctx, cfg).Packages(ctx, args[0])
			if err != nil {
				return err
			}

			return showView(pkgs).render(cmd.OutOrStdout(), f)
		},
	}

	addOutputFlag(cmd, &output)
	return cmd
}

func platforms(pkg *domain.Package) []string {
	out := make([]string, len(pkg.Targets))
	for i, t := range pkg.Targets {
		out[i] = string(t.Platform)
	}
	return out
}

func showView(pkgs []domain.Package) view {
	rows := make([][]string, len(pkgs))
	for i := range pkgs {
		version := pkgs[i].Version
		if version == "" {
			version = "(any)"
		}
		source := ""
		if pkgs[i].Source != nil {
			source = pkgs[i].Source.URL()
		}
		rows[i] = []string{pkgs[i].Name, version, strings.Join(platforms(&pkgs[i]), ", "), source}
	}

	return view{
		data:    pkgs,
		headers: []string{"Name", "Version", "Platforms", "Source"},
		rows:    rows,
		text: func(w io.Writer) {
			for i := range pkgs {
				pkg := &pkgs[i]
				fmt.Fprintf(w, "%s %s\n", green("●"), bold(pkg.String()))
				if pkg.Description != "" {
					fmt.Fprintf(w, "  %s %s\n", cyan("desc:"), pkg.Description)
				}
				if pkg.Source != nil {
					fmt.Fprintf(w, "  %s %s\n", cyan("url:"), dim(pkg.Source.URL()))
				}
				for _, t := range pkg.Targets {
					fmt.Fprintf(w, "  %s %s\n", cyan("target:"), t.Platform)
					for _, a := range t.Management.ArtifactTemplates {
						fmt.Fprintf(w, "    %s\n", dim(a))
					}
				}
				if pkg.Detail != nil && pkg.Detail.Github != nil {
					rel := pkg.Detail.Github
					fmt.Fprintf(w, "  %s %s", cyan("release:"), rel.TagName)
					if rel.Prerelease {
						fmt.Fprintf(w, " %s", yellow("(prerelease)"))
					}
					if rel.PublishedAt != "" {
						fmt.Fprintf(w, " %s", dim(rel.PublishedAt))
					}
					fmt.Fprintln(w)
				}
				fmt.Fprintln(w)
			}
		},
	}
}
