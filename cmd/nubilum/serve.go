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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nubilum/nubilum/comm"
	"github.com/nubilum/nubilum/internal/config"
	"github.com/nubilum/nubilum/internal/logging"
	"github.com/nubilum/nubilum/internal/metrics"
	"github.com/nubilum/nubilum/internal/store"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the push server",
	Long: `Start the nubilum push server.

The server will:
  - Load configuration from nubilum.yaml (or --config)
  - Or load configuration from NUBILUM_* environment variables
  - Open the message history database
  - Accept envelopes over TCP, acknowledge and store them
  - Serve /healthz, /metrics and /messages on the admin listener

With a config file, edits to logging.level and server.max_message_bytes
apply without a restart (on save or SIGHUP).

Examples:
  nubilum serve
  nubilum serve --config /etc/nubilum/config.yaml
  NUBILUM_SERVER_PORT=7000 NUBILUM_DATABASE_DRIVER=memory nubilum serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)

	strategy, err := config.ParseStrategy(cfg.Server.Strategy)
	if err != nil {
		return err
	}

	st, err := store.New(cfg.Database)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	m := metrics.New()

	srv, err := comm.NewServer(comm.ServerOptions{
		Strategy:        strategy,
		ReadBufferBytes: cfg.Server.ReadBufferBytes,
		MaxMessageBytes: cfg.Server.MaxMessageBytes,
		DedupeSize:      cfg.Server.DedupeSize,
		IdleTimeout:     cfg.Server.IdleTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
	}, st, m, logger)
	if err != nil {
		return err
	}

	if _, statErr := os.Stat(cfgFile); statErr == nil && hotReload {
		holder, err := config.NewHolder(cfgFile, logger)
		if err != nil {
			return err
		}
		holder.OnChange(func(c *config.Config) {
			logging.SetLevel(c.Logging.Level)
			srv.SetMaxMessageBytes(c.Server.MaxMessageBytes)
			m.ConfigReloads.Inc()
		})
		holder.OnError(func(error) {
			m.ConfigReloadErrors.Inc()
		})
		if err := holder.WatchFile(); err != nil {
			logger.Warn().Err(err).Msg("config file watch disabled")
		}
		holder.WatchSignals()
		defer holder.Stop()
	}

	var admin *http.Server
	if cfg.Admin.Enabled {
		adminCfg := comm.AdminConfig{Gatherer: prometheus.DefaultGatherer}
		if cfg.Metrics.Enabled {
			adminCfg.MetricsPath = cfg.Metrics.Path
		}
		admin = &http.Server{
			Addr:              cfg.Admin.Addr,
			Handler:           comm.NewAdminRouter(st, logging.Component(logger, "admin"), adminCfg),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info().Str("addr", admin.Addr).Msg("admin listener started")
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("admin listener failed")
			}
		}()
	}

	served := make(chan error, 1)
	go func() {
		served <- srv.ListenAndServe(cfg.Server.Address())
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if admin != nil {
		if err := admin.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("admin shutdown")
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
