package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	"chessmate/internal/config"
	"chessmate/internal/engine"
	"chessmate/internal/logger"
	"chessmate/internal/metrics"
	"chessmate/internal/platform"
	"chessmate/internal/processor"
	"chessmate/internal/storage"
)

const shutdownTimeout = 5 * time.Second

// services is the wired pipeline shared by serve, analyse and shell
type services struct {
	cfg       *config.Config
	log       *slog.Logger
	metrics   *metrics.Manager
	registry  *platform.Registry
	pool      *engine.Pool
	store     *storage.Store
	processor *processor.Processor
}

func openServices(cfg *config.Config, log *slog.Logger) (*services, error) {
	m := metrics.NewManager()

	registry, err := platform.NewRegistry(cfg.Platforms, cfg.Client.Deps(logger.Component(log, "platform"), m))
	if err != nil {
		return nil, fmt.Errorf("failed to build platform registry: %w", err)
	}

	s := &services{
		cfg:      cfg,
		log:      log,
		metrics:  m,
		registry: registry,
	}

	opts := []processor.Option{
		processor.WithLogger(logger.Component(log, "processor")),
		processor.WithMetrics(m),
	}
	if cfg.Storage.Enabled {
		store, err := openStore(cfg.Storage.Path, logger.Component(log, "storage"))
		if err != nil {
			return nil, err
		}
		s.store = store
		opts = append(opts, processor.WithRecorder(store))
		log.Info("archive enabled", "path", cfg.Storage.Path)
	}

	engineLog := logger.Component(log, "engine")
	s.pool = engine.NewPool(
		engine.ProcessFactory(cfg.Engine.Options(engineLog)),
		cfg.Engine.Workers,
		engine.WithLogger(engineLog),
		engine.WithMetrics(m),
	)
	s.processor = processor.New(cfg.Analysis, registry, s.pool, opts...)

	log.Info("pipeline ready",
		"engine", cfg.Engine.Path,
		"workers", cfg.Engine.Workers,
		"platforms", len(registry.Platforms()))
	return s, nil
}

// openStore opens the archive and makes sure the schema exists
func openStore(path string, log *slog.Logger) (*storage.Store, error) {
	store, err := storage.NewStore(path, true, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	if err := store.InitDB(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize archive schema: %w", err)
	}
	return store, nil
}

// Close flushes the archive and stops the engines, reporting every failure
func (s *services) Close() error {
	var result *multierror.Error

	if s.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := s.store.Flush(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("flush archive: %w", err))
		}
		cancel()
		if err := s.store.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close archive: %w", err))
		}
	}

	if s.pool != nil {
		if err := s.pool.Close(shutdownTimeout); err != nil {
			result = multierror.Append(result, fmt.Errorf("close engine pool: %w", err))
		}
	}

	return result.ErrorOrNil()
}

// closeLogged is Close for deferred use; failures are logged
func (s *services) closeLogged() {
	if err := s.Close(); err != nil {
		s.log.Warn("shutdown incomplete", "error", err)
	}
}
