package tiebreaker

import (
	"context"

	"github.com/cartsmash/resolver/internal/domain"
)

// NoopTieBreaker is used by deployments without a language-model backend.
// Selection degrades to deterministic scoring.
type NoopTieBreaker struct{}

// SelectBest always reports the tie-breaker as unavailable
func (NoopTieBreaker) SelectBest(context.Context, domain.TieBreakerRequest) (*domain.TieBreakerDecision, error) {
	return nil, domain.ErrTieBreakerUnavailable
}
