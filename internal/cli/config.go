package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/teamcutter/huber/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or initialize the huber configuration",
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigInitCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFormat(output)
			if err != nil {
				return err
			}
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			return configView(cfg).render(cmd.OutOrStdout(), f)
		},
	}

	addOutputFlag(cmd, &output)
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config.toml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.Path()
			if err != nil {
				return err
			}

			if _, err := os.Stat(path); err == nil && !force {
				return &usageError{fmt.Errorf("%s already exists (use --force to overwrite)", path)}
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}

			cfg, err := config.DefaultConfig()
			if err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote %s\n", green("✓"), path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")
	return cmd
}

type configEntry struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

func configEntries(cfg *config.Config) []configEntry {
	return []configEntry{
		{"huber_dir", cfg.HuberDir},
		{"bin_dir", cfg.BinDir},
		{"packages_dir", cfg.PackagesDir},
		{"cache_dir", cfg.CacheDir},
		{"state_file", cfg.StateFile},
		{"state_backend", cfg.StateBackend},
		{"lock_file", cfg.LockFile},
		{"keyring_dir", cfg.KeyringDir},
		{"repository", cfg.Repository},
		{"index_ttl", cfg.IndexTTL.String()},
		{"github_token_env", cfg.GithubTokenEnv},
		{"max_parallel", fmt.Sprint(cfg.MaxParallel)},
		{"log_level", cfg.LogLevel},
	}
}

func configView(cfg *config.Config) view {
	entries := configEntries(cfg)

	data := make(map[string]string, len(entries))
	rows := make([][]string, len(entries))
	for i, e := range entries {
		data[e.Key] = e.Value
		rows[i] = []string{e.Key, e.Value}
	}

	return view{
		data:    data,
		headers: []string{"Key", "Value"},
		rows:    rows,
		text: func(w io.Writer) {
			toml.NewEncoder(w).Encode(cfg)
		},
	}
}
