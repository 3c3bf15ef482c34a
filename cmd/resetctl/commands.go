package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/atomickids/internal/catalog"
	"github.com/dukerupert/atomickids/internal/config"
	"github.com/dukerupert/atomickids/internal/database"
	"github.com/dukerupert/atomickids/internal/logging"
	"github.com/dukerupert/atomickids/internal/pgstore"
	"github.com/dukerupert/atomickids/internal/store"
	"github.com/dukerupert/atomickids/internal/streak"
)

// gateway is what every resetctl command needs from a backend.
type gateway interface {
	streak.Gateway
	catalog.Upserter
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "resetctl",
		Short:         "Run and inspect the atomickids daily reset",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newPreviewCmd(), newSeedCatalogCmd(), newHashTokenCmd())
	return root
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the daily reset once and print the summary",
		Long: `Runs the daily reset against ATOMICKIDS_DATABASE_URL (Postgres) when set,
otherwise against ATOMICKIDS_DB_PATH (SQLite).

Exits 0 when every child was processed and tasks were reset, 1 otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrchestrator(cmd.Context(), func(o *streak.Orchestrator) error {
				sum, err := o.Run(cmd.Context())
				if sum == nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), sum); err != nil {
					return err
				}
				if code := sum.StatusCode(); code < 200 || code > 299 {
					return &exitError{status: code}
				}
				return nil
			})
		},
	}
}

func newPreviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Show what the daily reset would do without writing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrchestrator(cmd.Context(), func(o *streak.Orchestrator) error {
				plan, err := o.Plan(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), plan)
			})
		},
	}
}

func newSeedCatalogCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "seed-catalog",
		Short: "Insert or update the reward catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			if path == "" {
				path = cfg.CatalogPath
			}
			entries, err := catalog.Load(path)
			if err != nil {
				return err
			}
			gw, closeFn, err := openGateway(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer closeFn()

			rewards, err := catalog.Seed(cmd.Context(), gw, entries)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rewards)
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "", "catalog YAML file (default: ATOMICKIDS_CATALOG_PATH or the built-in catalog)")
	return cmd
}

func newHashTokenCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-token [token]",
		Short: "Print the bcrypt hash for ATOMICKIDS_JOB_TOKEN_HASH",
		Long:  "Hashes the token given as argument, or the first line of stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("read token: %w", err)
				}
				token = strings.TrimSpace(line)
			}
			if token == "" {
				return errors.New("token is empty")
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(token), cost)
			if err != nil {
				return fmt.Errorf("hash token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}

func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logging.Setup(cfg.LogLevel, cfg.LogFormat), nil
}

func withOrchestrator(ctx context.Context, fn func(*streak.Orchestrator) error) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	boundary, err := streak.NewBoundary(cfg.Timezone)
	if err != nil {
		return err
	}
	gw, closeFn, err := openGateway(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeFn()

	return fn(streak.NewOrchestrator(gw, boundary,
		streak.WithPolicy(cfg.Policy()),
		streak.WithConcurrency(cfg.ResetConcurrency),
		streak.WithLogger(logger.With("component", "daily_reset")),
	))
}

func openGateway(ctx context.Context, cfg *config.Config, logger *slog.Logger) (gateway, func(), error) {
	if cfg.DatabaseURL != "" {
		pool, err := pgstore.Open(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("using postgres gateway")
		return pgstore.NewGateway(pool), pool.Close, nil
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("using sqlite gateway", "path", cfg.DBPath)
	return store.NewGateway(db), func() { db.Close() }, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
