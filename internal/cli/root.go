package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/teamcutter/huber/internal/cache"
	"github.com/teamcutter/huber/internal/config"
	"github.com/teamcutter/huber/internal/extractor"
	"github.com/teamcutter/huber/internal/fetcher"
	"github.com/teamcutter/huber/internal/lock"
	"github.com/teamcutter/huber/internal/manager"
	"github.com/teamcutter/huber/internal/registry"
	"github.com/teamcutter/huber/internal/resolver"
	"github.com/teamcutter/huber/internal/runner"
	"github.com/teamcutter/huber/internal/state"
	"github.com/teamcutter/huber/internal/verify"
	"github.com/teamcutter/huber/internal/version"
)

const downloadTimeout = time.Hour

// Execute runs the huber CLI. Errors are printed before they are
// returned; use ExitCode for the process status.
func Execute() error {
	cmd := newRootCmd()
	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		var be *batchError
		if !errors.As(err, &be) {
			printError(cmd.ErrOrStderr(), err)
		} else {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %v\n", red("✗"), be)
		}
	}
	return err
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:           "huber",
		Short:         "Install and manage prebuilt release binaries",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			level, err := logLevel(cfg.LogLevel, verbose)
			if err != nil {
				return err
			}

			ctx := withLogger(cmd.Context(), newLogger(cmd.ErrOrStderr(), level))
			cmd.SetContext(withConfig(ctx, cfg))
			return nil
		},
	}

	root.SetVersionTemplate("huber {{.Version}}\n")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err}
	})
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(
		newInstallCmd(),
		newUninstallCmd(),
		newUpgradeCmd(),
		newSearchCmd(),
		newListCmd(),
		newShowCmd(),
		newClearCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

func withConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// configFromContext falls back to the on-disk config when the root
// pre-run did not attach one.
func configFromContext(ctx context.Context) (*config.Config, error) {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg, nil
	}
	return config.Load()
}

func newCatalog(ctx context.Context, cfg *config.Config) *resolver.Resolver {
	loader := registry.NewLoader(
		cfg.Repository,
		filepath.Join(cfg.CacheDir, "repository"),
		cfg.IndexTTL.Duration,
		cfg.GithubToken(),
	)
	return resolver.New(registry.New(loader, loggerFromContext(ctx), cfg.MaxParallel))
}

func openState(ctx context.Context, cfg *config.Config) (state.Store, error) {
	return state.Open(
		cfg.StateBackend,
		filepath.Join(cfg.HuberDir, "installed.json"),
		cfg.StateFile,
		loggerFromContext(ctx),
	)
}

// newManager wires the installer. The caller closes the returned state.
func newManager(ctx context.Context, cfg *config.Config, progress io.Writer) (*manager.Manager, state.Store, error) {
	logger := loggerFromContext(ctx)

	c, err := cache.New(cfg.CacheDir)
	if err != nil {
		return nil, nil, err
	}

	st, err := openState(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	opts := []fetcher.Option{fetcher.WithGithubToken(cfg.GithubToken())}
	if progress != nil {
		opts = append(opts, fetcher.WithProgress(progress))
	}
	f := fetcher.New(downloadTimeout, opts...)

	var commandOutput io.Writer
	if logger.GetLevel() <= log.DebugLevel {
		commandOutput = os.Stderr
	}

	mgr := manager.New(
		newCatalog(ctx, cfg),
		lock.New(cfg.LockFile),
		f,
		c,
		extractor.New(),
		verify.New(f, cfg.KeyringDir),
		runner.New(commandOutput),
		st,
		cfg.PackagesDir,
		cfg.BinDir,
		logger,
	)
	return mgr, st, nil
}
