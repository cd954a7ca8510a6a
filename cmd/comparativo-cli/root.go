package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"comparativo/internal/backend"
	"comparativo/internal/cli"
	"comparativo/internal/config"
	"comparativo/internal/storage"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

type cliContextKey struct{}

// cliContext carries the loaded configuration through the command tree.
type cliContext struct {
	cfg     *config.Config
	logger  *slog.Logger
	timeout time.Duration
}

type rootOptions struct {
	logLevel string
	backend  string
	timeout  time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:     "comparativo-cli",
		Short:   "Compare debt-portfolio snapshots from the terminal",
		Version: fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVar(&opts.backend, "backend", "", "data backend, overrides DATA_BACKEND (memory, sqlite, postgres, sqlserver)")
	pf.DurationVar(&opts.timeout, "timeout", 0, "operation timeout (default QUERY_TIMEOUT)")

	cmd.AddCommand(
		newSnapshotsCmd(),
		newCompareCmd(),
		newSeedCmd(),
		newMigrateCmd(),
		newHistoryCmd(),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *rootOptions) error {
	if err := cli.LoadEnvFile(); err != nil {
		return err
	}

	cfg := config.Load()
	logger := slog.New(cli.NewHandler(cmd.ErrOrStderr(), opts.logLevel, cfg.LogFormat))
	slog.SetDefault(logger)

	cfg.LogLevel = opts.logLevel
	if opts.backend != "" {
		cfg.DataBackend = opts.backend
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	timeout := opts.timeout
	if timeout <= 0 {
		timeout = cfg.QueryTimeout
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, &cliContext{cfg: cfg, logger: logger, timeout: timeout}))
	return nil
}

func getCLIContext(cmd *cobra.Command) (*cliContext, error) {
	cc, ok := cmd.Context().Value(cliContextKey{}).(*cliContext)
	if !ok || cc == nil {
		return nil, fmt.Errorf("cli context not initialized")
	}
	return cc, nil
}

// openBackend opens the configured snapshot source. The caller must Close it.
func (cc *cliContext) openBackend(ctx context.Context) (*backend.Source, error) {
	bc, err := backend.FromAppConfig(cc.cfg)
	if err != nil {
		return nil, err
	}
	return backend.Open(ctx, bc, cc.logger)
}

// openSQLite opens the local database used by seed, migrate and history.
func (cc *cliContext) openSQLite() (*storage.SQLiteRepository, error) {
	return storage.NewSQLiteRepository(cc.cfg.SQLiteDBPath)
}

func newSnapshotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots",
		Short: "List the available snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := getCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cc.timeout)
			defer cancel()

			src, err := cc.openBackend(ctx)
			if err != nil {
				return err
			}
			defer src.Close()

			ids, err := src.ListSnapshots(ctx)
			if err != nil {
				return fmt.Errorf("list snapshots: %w", err)
			}
			return printLines(cmd.OutOrStdout(), ids)
		},
	}
}

func printLines(w io.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
