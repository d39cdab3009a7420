// Package app wires configuration into a ready resolution service.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/cartsmash/resolver/config"
	"github.com/cartsmash/resolver/internal/domain"
	"github.com/cartsmash/resolver/internal/infrastructure/cache"
	"github.com/cartsmash/resolver/internal/infrastructure/catalog"
	"github.com/cartsmash/resolver/internal/infrastructure/events"
	"github.com/cartsmash/resolver/internal/infrastructure/tiebreaker"
	"github.com/cartsmash/resolver/internal/observability"
	"github.com/cartsmash/resolver/internal/usecase"
)

// App holds the wired resolver and the resources it owns
type App struct {
	Resolver *usecase.ResolutionService
	// Registry is nil when metrics are disabled
	Registry *prometheus.Registry

	closers []func() error
}

// Option customises Build
type Option func(*options)

type options struct {
	catalog domain.CatalogSearcher
}

// WithCatalog replaces the HTTP catalog client
func WithCatalog(c domain.CatalogSearcher) Option {
	return func(o *options) { o.catalog = c }
}

// Build creates the cache, catalog, tie-breaker and event sinks described by cfg
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{}

	repo, err := a.buildCache(ctx, cfg)
	if err != nil {
		return nil, err
	}

	searcher := o.catalog
	if searcher == nil {
		catalogLogger := observability.Component(logger, "catalog")
		searcher = catalog.NewClient(catalog.ClientConfig{
			BaseURL:           cfg.Catalog.BaseURL,
			APIKey:            cfg.Catalog.APIKey,
			Timeout:           cfg.Catalog.Timeout,
			RequestsPerSecond: cfg.Catalog.RequestsPerSecond,
			Burst:             cfg.Catalog.Burst,
			PageSize:          cfg.Catalog.PageSize,
			Logger:            &catalogLogger,
		})
	}

	var tb domain.TieBreaker = tiebreaker.NoopTieBreaker{}
	if cfg.TieBreaker.Enabled {
		tb = tiebreaker.NewChatTieBreaker(tiebreaker.Config{
			BaseURL:           cfg.TieBreaker.BaseURL,
			APIKey:            cfg.TieBreaker.APIKey,
			Model:             cfg.TieBreaker.Model,
			Timeout:           cfg.TieBreaker.Timeout,
			RequestsPerSecond: cfg.TieBreaker.RequestsPerSecond,
		})
	}

	sink, err := a.buildEvents(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	resolverLogger := observability.Component(logger, "resolver")
	tieBreakerLogger := observability.Component(logger, "tiebreaker")
	svc, err := usecase.NewResolutionService(searcher, tb, repo, sink, usecase.ResolutionServiceConfig{
		KeyPrefix:     cfg.Cache.KeyPrefix,
		SuccessTTL:    cfg.Cache.SuccessTTL,
		FailureTTL:    cfg.Cache.FailureTTL,
		Workers:       cfg.Matching.Workers,
		MaxBatchSize:  cfg.Server.MaxBatchSize,
		SearchTimeout: cfg.Catalog.Timeout,
		Match: usecase.MatchConfig{
			TieBreakerTopN:    cfg.TieBreaker.TopN,
			TieBreakerTimeout: cfg.TieBreaker.Timeout,
			Logger:            &tieBreakerLogger,
		},
		Logger: &resolverLogger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Resolver = svc

	logger.Info().
		Str("cache", cfg.Cache.Type).
		Bool("tie_breaker", cfg.TieBreaker.Enabled).
		Bool("metrics", cfg.Events.MetricsEnabled).
		Int("kafka_brokers", len(cfg.Events.KafkaBrokers)).
		Msg("resolver wired")

	return a, nil
}

func (a *App) buildCache(ctx context.Context, cfg *config.Config) (domain.CacheRepository, error) {
	if cfg.Cache.Type == "redis" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisCacheConfig{URL: cfg.Cache.RedisURL, Prefix: cfg.Cache.KeyPrefix})
		if err != nil {
			return nil, fmt.Errorf("connect redis cache: %w", err)
		}
		a.closers = append(a.closers, rc.Close)
		return rc, nil
	}

	mc := cache.NewMemoryCache(cache.MemoryCacheConfig{SweepInterval: cfg.Cache.SweepInterval})
	a.closers = append(a.closers, func() error {
		mc.Stop()
		return nil
	})
	return mc, nil
}

func (a *App) buildEvents(cfg *config.Config, logger zerolog.Logger) (domain.EventSink, error) {
	sinks := []domain.EventSink{events.NewLogSink(observability.Component(logger, "events"))}

	if cfg.Events.MetricsEnabled {
		a.Registry = prometheus.NewRegistry()
		metrics, err := events.NewMetricsSink(a.Registry)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, metrics)
	}

	if len(cfg.Events.KafkaBrokers) > 0 {
		producer, err := events.NewKafkaProducer(cfg.Events.KafkaBrokers)
		if err != nil {
			return nil, fmt.Errorf("connect kafka: %w", err)
		}
		kafka := events.NewKafkaSink(producer, cfg.Events.KafkaTopic, observability.Component(logger, "kafka"))
		a.closers = append(a.closers, kafka.Close)
		sinks = append(sinks, kafka)
	}

	return events.NewFanout(logger, sinks...), nil
}

// Close releases the cache and event sink resources
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.closers = nil
	return firstErr
}
