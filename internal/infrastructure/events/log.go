package events

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/cartsmash/resolver/internal/domain"
)

// LogSink writes one structured log line per event
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a log sink
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// OnResolutionEvent implements domain.EventSink
func (s *LogSink) OnResolutionEvent(_ context.Context, event domain.ResolutionEvent) {
	var e *zerolog.Event
	switch event.Type {
	case domain.EventSearchFailed, domain.EventTieBreakerFailed, domain.EventTieBreakerRejected, domain.EventItemFailed:
		e = s.logger.Warn()
	case domain.EventBatchCompleted:
		e = s.logger.Info()
	default:
		e = s.logger.Debug()
	}

	e = e.Str("event", string(event.Type))
	if event.BatchID != "" {
		e = e.Str("batch_id", event.BatchID)
	}
	if event.ItemName != "" {
		e = e.Str("item", event.ItemName)
	}
	if event.RetailerID != "" {
		e = e.Str("retailer_id", event.RetailerID)
	}
	if event.Query != "" {
		e = e.Str("query", event.Query)
	}
	if event.ProductID != "" {
		e = e.Str("product_id", event.ProductID)
	}
	if event.Confidence != "" {
		e = e.Str("confidence", string(event.Confidence))
	}
	if event.Reason != "" {
		e = e.Str("reason", event.Reason)
	}
	if event.Error != "" {
		e = e.Str("error", event.Error)
	}
	if event.Candidates > 0 {
		e = e.Int("candidates", event.Candidates)
	}
	if event.Total > 0 {
		e = e.Int("total", event.Total).Int("resolved", event.ResolvedCnt)
	}
	if event.Duration > 0 {
		e = e.Dur("duration", event.Duration)
	}

	e.Msg("resolution event")
}
