package events

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cartsmash/resolver/internal/domain"
)

// MetricsSink records resolution events as Prometheus metrics
type MetricsSink struct {
	events         *prometheus.CounterVec
	resolved       *prometheus.CounterVec
	searchDuration prometheus.Histogram
	batchDuration  prometheus.Histogram
	batchSize      prometheus.Histogram
}

// NewMetricsSink creates the collectors and registers them with reg
func NewMetricsSink(reg prometheus.Registerer) (*MetricsSink, error) {
	s := &MetricsSink{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cartsmash",
			Name:      "resolution_events_total",
			Help:      "Resolution pipeline events by type.",
		}, []string{"type"}),
		resolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cartsmash",
			Name:      "items_resolved_total",
			Help:      "Resolved items by confidence tier.",
		}, []string{"confidence"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cartsmash",
			Name:      "catalog_search_duration_seconds",
			Help:      "Catalog search latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cartsmash",
			Name:      "batch_duration_seconds",
			Help:      "Time to resolve a whole batch.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cartsmash",
			Name:      "batch_items",
			Help:      "Items per resolved batch.",
			Buckets:   prometheus.LinearBuckets(5, 10, 10),
		}),
	}

	for _, c := range []prometheus.Collector{s.events, s.resolved, s.searchDuration, s.batchDuration, s.batchSize} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	return s, nil
}

// OnResolutionEvent implements domain.EventSink
func (s *MetricsSink) OnResolutionEvent(_ context.Context, event domain.ResolutionEvent) {
	s.events.WithLabelValues(string(event.Type)).Inc()

	switch event.Type {
	case domain.EventItemResolved:
		s.resolved.WithLabelValues(string(event.Confidence)).Inc()
	case domain.EventSearchCompleted, domain.EventSearchFailed:
		s.searchDuration.Observe(event.Duration.Seconds())
	case domain.EventBatchCompleted:
		s.batchDuration.Observe(event.Duration.Seconds())
		s.batchSize.Observe(float64(event.Total))
	}
}
