package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/atomickids/internal/catalog"
	"github.com/dukerupert/atomickids/internal/config"
	"github.com/dukerupert/atomickids/internal/database"
	"github.com/dukerupert/atomickids/internal/jobs"
	"github.com/dukerupert/atomickids/internal/logging"
	"github.com/dukerupert/atomickids/internal/server"
	"github.com/dukerupert/atomickids/internal/store"
	"github.com/dukerupert/atomickids/internal/streak"
	ws "github.com/dukerupert/atomickids/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "atomickids: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting", "config", cfg)
	if cfg.DatabaseURL != "" {
		logger.Warn("ATOMICKIDS_DATABASE_URL is only used by resetctl; the server runs on SQLite")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	gw := store.NewGateway(db)

	entries, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	if _, err := catalog.Seed(ctx, gw, entries); err != nil {
		return fmt.Errorf("seed catalog: %w", err)
	}

	boundary, err := streak.NewBoundary(cfg.Timezone)
	if err != nil {
		return err
	}
	policy := cfg.Policy()

	orch := streak.NewOrchestrator(gw, boundary,
		streak.WithPolicy(policy),
		streak.WithConcurrency(cfg.ResetConcurrency),
		streak.WithLogger(logger.With("component", "daily_reset")),
	)
	completer := streak.NewCompleter(gw, boundary, policy, logger.With("component", "completion"))

	hub := ws.NewHub(logger.With("component", "websocket"))
	sched, err := jobs.NewScheduler(orch, cfg.ResetSchedule, boundary.Location(), logger.With("component", "scheduler"),
		jobs.OnComplete(func(sum *streak.Summary) {
			if sum.State != streak.StateDone {
				return
			}
			hub.Broadcast(ws.NewMessage("daily_reset", "done", 0, map[string]any{
				"run_id": sum.RunID,
				"day":    sum.Day,
			}))
		}),
	)
	if err != nil {
		return err
	}
	if cfg.ResetEnabled {
		sched.Start(ctx)
		defer sched.Stop()
	}

	srv := server.New(db, hub, server.Options{
		Trigger:       sched,
		Planner:       orch,
		Completer:     completer,
		JobTokenHash:  cfg.JobTokenHash,
		JobRateLimit:  cfg.JobRateLimit,
		JobRateWindow: cfg.JobRateWindow,
		TrustProxy:    cfg.TrustProxy,
		WSOrigins:     cfg.AllowedWSOrigins,
	}, logger)
	go srv.RateLimiter().RunCleanup(ctx, 5*time.Minute)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
