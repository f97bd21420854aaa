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

	"github.com/fentz26/cadence/internal/audit"
	"github.com/fentz26/cadence/internal/calendar"
	"github.com/fentz26/cadence/internal/config"
	"github.com/fentz26/cadence/internal/controlplane"
	"github.com/fentz26/cadence/internal/learner"
	"github.com/fentz26/cadence/internal/logging"
	"github.com/fentz26/cadence/internal/planner"
	"github.com/fentz26/cadence/internal/store"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	listenAddr string
	dbPath     string
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Start the Cadence daemon",
	Long:  `Starts the Cadence daemon which serves the HTTP API and runs the schedule monitor.`,
	RunE:  runDaemon,
}

func init() {
	daemonCmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address for the API server (overrides config)")
	daemonCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database (overrides config)")
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadConfig(configPath)
	}
	return config.LoadConfigFromHome()
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}
	if dbPath != "" {
		cfg.Database = dbPath
	}

	log, logCloser, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := store.New(cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Error().Err(err).Msg("database close")
		}
	}()

	service, err := buildService(ctx, cfg, s, log)
	if err != nil {
		return err
	}
	defer service.Close()

	if cfg.Monitor.AutoStart {
		service.StartMonitoring(cfg.Monitor.Interval)
	}

	server := controlplane.NewServer(service, s, cfg.Listen, log)
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("signal received, shutting down")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("api server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown")
	}
	log.Info().Msg("shutdown complete")
	return nil
}

// buildService wires the store into the learner, planner, calendar and
// decision log.
func buildService(ctx context.Context, cfg *config.Config, s *store.Store, log zerolog.Logger) (*controlplane.Service, error) {
	log.Info().Str("db", cfg.Database).Str("planner", cfg.Planning.Planner).
		Str("calendar", cfg.Calendar.Provider).Msg("loading components")

	samples, err := s.ListCompletionSamples(cfg.UserID)
	if err != nil {
		return nil, fmt.Errorf("load completion history: %w", err)
	}
	lr := learner.New(samples)

	pl, err := planner.New(cfg.Planning, lr, log)
	if err != nil {
		return nil, err
	}
	gw, err := calendar.New(ctx, cfg.Calendar, s, log)
	if err != nil {
		return nil, err
	}

	return controlplane.NewService(s, audit.NewPDRWriter(s, log), gw, pl, lr, controlplane.Options{
		UserID:        cfg.UserID,
		DefaultWindow: cfg.Planning.DefaultWindow,
		Monitor:       cfg.Monitor,
		Profile:       cfg.NewProfile(),
	}, log)
}
