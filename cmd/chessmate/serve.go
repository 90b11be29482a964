package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"chessmate/internal/logger"
	"chessmate/internal/server/http"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log := ctx.baseLogger()
			if addr != "" {
				cfg.Server.Addr = addr
			}

			if cfg.Server.PIDLock && cfg.Server.PIDFile == "" {
				return fmt.Errorf("server.pid_lock requires server.pid_file")
			}
			if cfg.Server.PIDFile != "" {
				cleanup, err := managePIDFile(cfg.Server.PIDFile, cfg.Server.PIDLock)
				if err != nil {
					return fmt.Errorf("failed to manage PID file: %w", err)
				}
				defer cleanup()
				log.Info("PID file created", "path", cfg.Server.PIDFile, "lock", cfg.Server.PIDLock)
			}

			svc, err := openServices(cfg, log)
			if err != nil {
				return err
			}
			defer svc.closeLogged()

			deps := http.Deps{
				Analyser:  svc.processor,
				Catalog:   svc.registry,
				Engines:   svc.pool,
				Metrics:   svc.metrics,
				Logger:    logger.Component(log, "http"),
				RateLimit: cfg.Server.RateLimit,
				Timeout:   cfg.Engine.Timeout,
			}
			if svc.store != nil {
				deps.Archive = svc.store
			}
			app := http.NewFiberApp(deps)

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			listenErr := make(chan error, 1)
			go func() {
				log.Info("API listening", "addr", cfg.Server.Addr, "rate_limit", cfg.Server.RateLimit)
				listenErr <- app.Listen(cfg.Server.Addr)
			}()

			select {
			case err := <-listenErr:
				return fmt.Errorf("API server failed: %w", err)
			case <-signalCtx.Done():
			}

			log.Info("shutting down")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			if err := app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			log.Info("server exited")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}
