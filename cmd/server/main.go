package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"task-run-history/internal/api"
	"task-run-history/internal/config"
	"task-run-history/internal/eventlog"
	"task-run-history/internal/monitor"
	"task-run-history/internal/report"
	"task-run-history/internal/resultcode"
	"task-run-history/internal/storage"
)

func main() {
	// Structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	if os.Getenv("ENV") != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	var cfg *config.Config
	var err error

	if _, statErr := os.Stat(configPath); statErr == nil {
		cfg, err = config.Load(configPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", configPath).Msg("failed to load config")
		}
	} else {
		log.Info().Msg("no config file found, using defaults")
		cfg = config.DefaultConfig()
	}

	if p := os.Getenv("EVENT_LOG_PATH"); p != "" {
		cfg.EventLog.Path = p
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := monitor.NewMetrics()

	var translatorOpts []resultcode.Option
	if cfg.Translator.Memoize {
		translatorOpts = append(translatorOpts, resultcode.WithMemo())
	}
	translator := resultcode.New(translatorOpts...)

	// Event source (optional; posted batches work without it)
	var source eventlog.Source
	if cfg.EventLog.Path != "" {
		source = eventlog.NewFileSource(cfg.EventLog.Path)
		log.Info().Str("path", cfg.EventLog.Path).Msg("reading task history from exported event files")
	} else {
		log.Warn().Msg("no event_log.path configured, only posted event batches can be correlated")
	}

	// Initialize database (optional, runs without it for development)
	var db *storage.DB
	if cfg.Database.DSN != "" {
		db, err = storage.New(ctx, cfg.Database.DSN, storage.PoolOptions{
			MaxConns:        int32(cfg.Database.MaxOpenConns),
			MinConns:        int32(cfg.Database.MaxIdleConns),
			MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			log.Warn().Err(err).Msg("database unavailable, run archive disabled")
			db = nil
		} else {
			defer db.Close()
			if cfg.Database.AutoMigrate {
				if err := db.EnsureSchema(ctx); err != nil {
					log.Fatal().Err(err).Msg("failed to prepare run archive schema")
				}
			}
		}
	}

	// Archive writer (buffered, retried)
	var archive report.Archiver
	if db != nil {
		writer := storage.NewRunWriter(db, cfg.Database.ArchiveBuffer)
		writer.Start()
		defer writer.Flush(10 * time.Second)
		archive = writer
	}

	svc := report.NewService(source, translator, metrics, archive, report.Options{
		Correlation:    cfg.CorrelationOptions(),
		DefaultMaxRuns: cfg.Correlator.DefaultMaxRuns,
		Workers:        cfg.Correlator.Workers,
	})

	server := api.NewServer(cfg, svc, db, metrics)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		log.Info().Str("signal", sig.String()).Msg("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}

		cancel()
	}()

	log.Info().
		Str("addr", cfg.Address()).
		Bool("db_enabled", db != nil).
		Bool("event_source", source != nil).
		Bool("strict", cfg.Correlator.Strict).
		Msg("server starting")

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}

	log.Info().Msg("server stopped")
}
