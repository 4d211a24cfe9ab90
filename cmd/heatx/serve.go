package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/heatx/energy-engine/api"
	"github.com/heatx/energy-engine/backend"
	"github.com/heatx/energy-engine/config"
	"github.com/heatx/energy-engine/export"
	"github.com/heatx/energy-engine/logger"
	"github.com/heatx/energy-engine/store/sqlite"
)

const shutdownTimeout = 30 * time.Second

// The SQLite archive backs the health check's database ping.
var _ api.Pinger = (*sqlite.Store)(nil)

func newServeCmd() *cobra.Command {
	var (
		port   int
		dbPath string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = dbPath
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
			logger.SetGlobalLogger(log)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8080, "HTTP server port (overrides HEATX_PORT)")
	cmd.Flags().StringVar(&dbPath, "db", "heatx.db", `SQLite database path, ":memory:" for in-memory (overrides HEATX_DB_PATH)`)
	return cmd
}

// serve runs the API until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	opts := backend.Options{
		BaseURL:           cfg.BackendURL,
		RequestsPerSecond: cfg.BackendRPS,
		Timeout:           cfg.Timeout,
	}
	chatOpts := opts
	chatOpts.BaseURL = cfg.ChatURL

	handler := api.NewHandler(store, api.Services{
		Analysis: backend.NewAnalysisClient(opts, log),
		Ledger:   backend.NewLedgerClient(opts, log),
		Chat:     backend.NewChatClient(chatOpts, log),
	}, nil, log)
	handler.AllowedOrigins = cfg.AllowedOrigins
	if cfg.ExportDir != "" {
		handler.BillExporter = export.NewFileExporter(cfg.ExportDir, export.FormatText, log)
	}

	sweeper := api.NewSessionSweeper(handler.Sessions, cfg.SessionTTL, cfg.SweepSchedule, log)
	if err := sweeper.Start(); err != nil {
		return err
	}
	defer sweeper.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().
			Int("port", cfg.Port).
			Str("db", cfg.DBPath).
			Str("backend", cfg.BackendURL).
			Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	log.Info().Msg("Server stopped")
	return err
}
