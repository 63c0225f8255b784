package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"loanrisk-api/internal/api"
	"loanrisk-api/internal/cfg"
	"loanrisk-api/internal/dashboard"
	"loanrisk-api/internal/metrics"
	"loanrisk-api/internal/ml"
	"loanrisk-api/internal/storage"
)

func main() {
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	setupLogging(*logLevel)

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment")
	}

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	mw := metrics.NewWrapper(m)

	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
	}

	predictor, err := ml.New(ml.Config{
		ModelPath:      c.ModelPath,
		Timeout:        c.InferenceTimeout,
		EnableFallback: c.EnableFallback,
	}, mw)
	if err != nil {
		log.Fatal().Err(err).Msg("predictor initialization failed")
	}

	startMetricsServer(ctx, c)
	startDashboard(c, store)

	server := api.NewServer(c, predictor, mw, store)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("prediction server failed")
			cancel()
		}
	}()

	waitForShutdown(ctx, server)
}

func setupLogging(logLevel string) {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// initializeStorage opens the audit store if DATA_PATH is configured.
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		return nil
	}
	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("audit storage initialization failed, continuing without persistence")
		return nil
	}
	return store
}

// startMetricsServer starts the Prometheus metrics HTTP server.
func startMetricsServer(ctx context.Context, c cfg.Settings) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", c.MetricsPort),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			if err := server.Shutdown(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to shutdown metrics server")
			}
		}()

		log.Info().Str("addr", server.Addr).Msg("starting metrics server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// startDashboard starts the decision monitor when a dashboard port and the
// audit store are both configured.
func startDashboard(c cfg.Settings, store *storage.Store) {
	if c.DashboardPort == 0 {
		return
	}
	if store == nil {
		log.Warn().Msg("dashboard requires DATA_PATH, skipping")
		return
	}
	if err := dashboard.New(store, c.DashboardPort).Start(); err != nil {
		log.Error().Err(err).Msg("dashboard failed to start")
	}
}

// waitForShutdown blocks until a signal arrives, then drains the API server.
func waitForShutdown(ctx context.Context, server *api.Server) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutdown signal received")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}
