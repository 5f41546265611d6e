package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teamcutter/huber/internal/cache"
	"github.com/teamcutter/huber/internal/lock"
)

func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Clear the artifact cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}

			// No install may run while the cache is cleared.
			held, err := lock.New(cfg.LockFile).Acquire()
			if err != nil {
				return err
			}
			defer held.Release()

			c, err := cache.New(cfg.CacheDir)
			if err != nil {
				return err
			}

			size, _ := c.Size()

			if err := c.Clear(); err != nil {
				return fmt.Errorf("failed to clear cache: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Cache cleared (%s freed)\n", green("✓"), formatSize(size))
			return nil
		},
	}
}
