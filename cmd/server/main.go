/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the commission engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, .env, environment, flags)
  2. Build the logger
  3. Initialize SQLite store
  4. Seed default managers on an empty store
  5. Apply the optional YAML rules file
  6. Configure HTTP router
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  --port          HTTP server port (default: 8080)
  --db            SQLite database path (default: commission.db)
                  Use ":memory:" for in-memory database
  --log-level     debug|info|warn|error
  --log-format    text|json
  --log-file      Rotated log file in addition to stdout
  --seed          Random seed for source distribution (0 = time-based)
  --cors-origins  Comma-separated allowed origins
  --rules         YAML rules file applied on start
  --fuzzy-agents  Group report agents by similar names

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database
  ./server --db="./data/commission.db"

  # Run with in-memory database and a rules file
  ./server --db=":memory:" --rules=rules.yaml

  # Run on different port
  COMMISSION_PORT=3000 ./server

SEE ALSO:
  - config/config.go: Configuration sources
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/commission-engine/api"
	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/config"
	"github.com/warp/commission-engine/logging"
	"github.com/warp/commission-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	svc := commission.NewService(store, commission.NewDistributor(rand.New(rand.NewSource(seed))), logger)
	if cfg.FuzzyAgents {
		svc.Engine.Group = commission.FuzzyGrouping(commission.DefaultFuzzyDistance)
	}

	created, err := commission.SeedDefaults(ctx, store)
	if err != nil {
		return fmt.Errorf("failed to seed default managers: %w", err)
	}
	if created > 0 {
		logger.Info("default managers created", "count", created)
	}

	// Initialize handler
	handler := api.NewHandler(svc, logger)

	if cfg.RulesFile != "" {
		rc, err := handler.Factory.LoadConfigFile(cfg.RulesFile)
		if err != nil {
			return err
		}
		if err := svc.ApplyConfig(ctx, rc.Managers, rc.Rules, rc.Milestones); err != nil {
			return fmt.Errorf("failed to apply rules file: %w", err)
		}
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(handler, cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "db", cfg.DBPath)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
