// Package server provides the main server initialization and run logic.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/squadops/squadconf/internal/api"
	"github.com/squadops/squadconf/internal/config"
	"github.com/squadops/squadconf/internal/db"
	"github.com/squadops/squadconf/internal/logger"
	"github.com/squadops/squadconf/internal/notify"
	"github.com/squadops/squadconf/internal/scheduler"
)

// Config holds the server configuration options.
type Config struct {
	Port    int    // Port to run the server on (0 = use config default)
	Mode    string // Run mode: server, jobs, or both
	Version string // Version string to report
}

// Run starts the server with the given configuration and blocks until the context is canceled.
func Run(ctx context.Context, cfg Config) error {
	// Load configuration
	appCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Override port from CLI flag if provided
	if cfg.Port != 0 {
		appCfg.Server.Port = cfg.Port
	}

	// Initialize logger
	logger.Init(appCfg.Log.Format, appCfg.Log.Level)
	slog.Info("Starting squadconf", "version", cfg.Version, "mode", appCfg.Server.Mode)

	// Initialize database
	database, err := db.New(appCfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("Database initialized", "driver", appCfg.Database.Driver)

	// Run migrations
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Database migrations completed")

	// Initialize the expiry notification sink
	var notifier notify.Notifier = notify.Nop{}
	if appCfg.Notify.Enabled {
		tg, err := notify.NewTelegram(appCfg.Notify.TelegramToken, appCfg.Notify.TelegramChat)
		if err != nil {
			return fmt.Errorf("failed to initialize telegram notifier: %w", err)
		}
		notifier = tg
		slog.Info("Telegram notifier initialized", "chat", appCfg.Notify.TelegramChat)
	}

	mode := cfg.Mode
	if mode == "" {
		mode = "both"
	}

	runServer := mode == "server" || mode == "both"
	runJobs := mode == "jobs" || mode == "both"

	if !runServer && !runJobs {
		return fmt.Errorf("invalid mode %q: valid modes are server, jobs, both", mode)
	}

	var sched *scheduler.Scheduler
	var srv *http.Server

	// Start the periodic jobs if needed
	if runJobs {
		sched = scheduler.New(database, appCfg, notifier)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		slog.Info("Scheduler started")
	}

	// Initialize and start API server if needed
	if runServer {
		router := api.NewRouter(appCfg, database)

		addr := fmt.Sprintf(":%d", appCfg.Server.Port)
		srv = &http.Server{
			Addr:    addr,
			Handler: router,
		}

		go func() {
			slog.Info("Server listening", "address", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Server failed", "error", err)
			}
		}()
	}

	// Wait for context cancellation
	<-ctx.Done()
	slog.Info("Shutting down...")

	// Stop scheduler if running
	if sched != nil {
		sched.Stop()
	}

	// Shutdown server if running
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		slog.Info("Server stopped")
	}

	slog.Info("squadconf exited")
	return nil
}

// RunWithSignalHandling starts the server and handles OS signals for graceful shutdown.
func RunWithSignalHandling(cfg Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Run server in goroutine
	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, cfg)
	}()

	// Wait for signal or error
	select {
	case sig := <-quit:
		slog.Info("Received signal", "signal", sig)
		cancel()
		// Wait for server to finish
		return <-errCh
	case err := <-errCh:
		return err
	}
}
