// Package events delivers resolution events to logs, metrics and Kafka.
package events

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/cartsmash/resolver/internal/domain"
)

// Fanout forwards every event to each sink in turn. A panicking sink is
// logged and skipped so the others still receive the event.
type Fanout struct {
	sinks  []domain.EventSink
	logger zerolog.Logger
}

// NewFanout combines sinks, ignoring nil ones
func NewFanout(logger zerolog.Logger, sinks ...domain.EventSink) *Fanout {
	f := &Fanout{logger: logger}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// OnResolutionEvent implements domain.EventSink
func (f *Fanout) OnResolutionEvent(ctx context.Context, event domain.ResolutionEvent) {
	for _, s := range f.sinks {
		f.deliver(ctx, s, event)
	}
}

func (f *Fanout) deliver(ctx context.Context, s domain.EventSink, event domain.ResolutionEvent) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error().Interface("panic", r).Str("event", string(event.Type)).Msg("event sink panicked")
		}
	}()
	s.OnResolutionEvent(ctx, event)
}

// Len returns the number of wired sinks
func (f *Fanout) Len() int {
	return len(f.sinks)
}
