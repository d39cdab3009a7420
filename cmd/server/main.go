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

	"github.com/rs/zerolog"

	"github.com/cartsmash/resolver/config"
	"github.com/cartsmash/resolver/internal/app"
	httpDelivery "github.com/cartsmash/resolver/internal/delivery/http"
	"github.com/cartsmash/resolver/internal/observability"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		ServiceName: "cartsmash-resolver",
	})

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Str("catalog", cfg.Catalog.BaseURL).
		Msg("starting CartSmash resolver v1.0.0")

	// Initialize infrastructure and usecase layers
	resolver, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("wire resolver: %w", err)
	}
	defer resolver.Close()

	httpLogger := observability.Component(logger, "http")
	handler := httpDelivery.NewHandler(resolver.Resolver, httpDelivery.HandlerConfig{
		MaxBatchSize: cfg.Server.MaxBatchSize,
		Logger:       &httpLogger,
	})

	opts := httpDelivery.RouterOptions{Logger: &httpLogger}
	if resolver.Registry != nil {
		opts.Gatherer = resolver.Registry
	}
	router := httpDelivery.SetupRouter(cfg, handler, opts)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
