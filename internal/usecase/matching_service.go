package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cartsmash/resolver/internal/domain"
)

// Scoring points
const (
	substringMatchBonus = 50.0 // Candidate name contains the clean item name
	tokenMatchBonus     = 10.0 // Per search-query token found in the candidate name
	brandMatchBonus     = 25.0 // Item and candidate brands overlap
	inStockBonus        = 15.0
	limitedStockBonus   = 5.0
	priceRangeBonus     = 5.0 // Price strictly inside (minBonusPrice, maxBonusPrice)

	minBonusPrice = 0.50
	maxBonusPrice = 50.0
)

// Confidence tier thresholds
const (
	highConfidenceScore   = 75.0
	mediumConfidenceScore = 50.0
	lowConfidenceScore    = 25.0
)

// TieBreakerOutcome records what happened to the tie-breaker during a selection
type TieBreakerOutcome string

const (
	TieBreakerSkipped     TieBreakerOutcome = "skipped"
	TieBreakerUsed        TieBreakerOutcome = "used"
	TieBreakerFailed      TieBreakerOutcome = "failed"
	TieBreakerRejected    TieBreakerOutcome = "rejected"
	TieBreakerUnavailable TieBreakerOutcome = "unavailable"
)

// MatchConfig holds configuration for the matching service
type MatchConfig struct {
	TieBreakerTopN    int
	TieBreakerTimeout time.Duration
	Logger            *zerolog.Logger
}

// Selection is the outcome of choosing the best candidate for an item
type Selection struct {
	Best           domain.ScoredCandidate
	Ranked         []domain.ScoredCandidate
	Method         string
	TieBreaker     TieBreakerOutcome
	TieBreakerErr  error
	TieBreakerSent int
}

// MatchingService scores catalog candidates and picks the best one,
// deferring inconclusive cases to the tie-breaker. A top score in the
// high tier is conclusive.
type MatchingService struct {
	tieBreaker domain.TieBreaker
	topN       int
	timeout    time.Duration
	logger     zerolog.Logger
}

// NewMatchingService creates a new matching service with the given configuration.
// A nil tie-breaker means deterministic selection only.
func NewMatchingService(tieBreaker domain.TieBreaker, config MatchConfig) *MatchingService {
	topN := config.TieBreakerTopN
	if topN <= 0 {
		topN = 3 // Bounds prompt size
	}

	timeout := config.TieBreakerTimeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}

	if tieBreaker == nil {
		tieBreaker = noTieBreaker{}
	}

	return &MatchingService{
		tieBreaker: tieBreaker,
		topN:       topN,
		timeout:    timeout,
		logger:     logger,
	}
}

// ScoreCandidate computes the additive deterministic score of a candidate.
// Every applicable rule fires.
func ScoreCandidate(parsed domain.ParsedItemDetails, candidate domain.CandidateProduct) float64 {
	score := 0.0
	nameLower := strings.ToLower(candidate.Name)

	cleanLower := strings.ToLower(strings.TrimSpace(parsed.CleanName))
	if cleanLower != "" && strings.Contains(nameLower, cleanLower) {
		score += substringMatchBonus
	}

	for _, token := range strings.Fields(strings.ToLower(parsed.SearchQuery)) {
		if strings.Contains(nameLower, token) {
			score += tokenMatchBonus
		}
	}

	if brandsOverlap(parsed.Brand, candidate.Brand) {
		score += brandMatchBonus
	}

	switch candidate.Availability {
	case domain.AvailabilityInStock:
		score += inStockBonus
	case domain.AvailabilityLimitedStock:
		score += limitedStockBonus
	}

	if candidate.Price != nil && *candidate.Price > minBonusPrice && *candidate.Price < maxBonusPrice {
		score += priceRangeBonus
	}

	return score
}

// brandsOverlap reports whether both brands are supplied and one contains the other
func brandsOverlap(itemBrand, candidateBrand string) bool {
	a := strings.ToLower(strings.TrimSpace(itemBrand))
	b := strings.ToLower(strings.TrimSpace(candidateBrand))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// ConfidenceForScore converts a numeric score into a confidence tier
func ConfidenceForScore(score float64) domain.Confidence {
	switch {
	case score >= highConfidenceScore:
		return domain.ConfidenceHigh
	case score >= mediumConfidenceScore:
		return domain.ConfidenceMedium
	case score >= lowConfidenceScore:
		return domain.ConfidenceLow
	default:
		return domain.ConfidenceVeryLow
	}
}

// RankCandidates scores every candidate and sorts them by descending score.
// Equal scores keep catalog order.
func RankCandidates(parsed domain.ParsedItemDetails, candidates []domain.CandidateProduct) []domain.ScoredCandidate {
	ranked := make([]domain.ScoredCandidate, len(candidates))
	for i, c := range candidates {
		ranked[i] = domain.ScoredCandidate{
			CandidateProduct: c,
			BasicScore:       ScoreCandidate(parsed, c),
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].BasicScore > ranked[j].BasicScore
	})

	return ranked
}

// SelectBest picks the best candidate for a parsed item.
// A single candidate or a top score at the high-confidence threshold is returned
// directly; otherwise the top candidates go to the tie-breaker. Tie-breaker
// errors, timeouts and unknown selections fall back to the top deterministic candidate.
func (s *MatchingService) SelectBest(
	ctx context.Context,
	parsed domain.ParsedItemDetails,
	candidates []domain.CandidateProduct,
) (*Selection, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates to select from", domain.ErrInvalidRequest)
	}

	ranked := RankCandidates(parsed, candidates)
	selection := &Selection{
		Best:       ranked[0],
		Ranked:     ranked,
		Method:     domain.SelectionDeterministic,
		TieBreaker: TieBreakerSkipped,
	}

	if len(ranked) == 1 || ConfidenceForScore(ranked[0].BasicScore) == domain.ConfidenceHigh {
		return selection, nil
	}

	top := ranked[:min(s.topN, len(ranked))]
	selection.TieBreakerSent = len(top)

	decision, err := s.callTieBreaker(ctx, buildTieBreakerRequest(parsed, top))
	if err != nil {
		selection.TieBreakerErr = err
		if errors.Is(err, domain.ErrTieBreakerUnavailable) {
			selection.TieBreaker = TieBreakerUnavailable
			return selection, nil
		}
		selection.TieBreaker = TieBreakerFailed
		s.logger.Warn().
			Err(err).
			Str("item", parsed.CleanName).
			Msg("tie-breaker failed, using deterministic selection")
		return selection, nil
	}

	idx := matchSelection(decision, top)
	if idx < 0 {
		selection.TieBreaker = TieBreakerRejected
		s.logger.Warn().
			Str("item", parsed.CleanName).
			Str("selected_id", selectedID(decision)).
			Msg("tie-breaker selected an unknown candidate, using deterministic selection")
		return selection, nil
	}

	chosen := top[idx]
	chosen.AIScore = domain.Float(decision.BestMatch.AIScore)
	chosen.AIConfidence = decision.BestMatch.Confidence
	chosen.AIReason = decision.BestMatch.Reason

	selection.Best = chosen
	selection.Method = domain.SelectionTieBreaker
	selection.TieBreaker = TieBreakerUsed

	s.logger.Debug().
		Str("item", parsed.CleanName).
		Str("product_id", chosen.ID).
		Float64("ai_score", decision.BestMatch.AIScore).
		Msg("tie-breaker selection applied")

	return selection, nil
}

// callTieBreaker bounds the tie-breaker call by the configured timeout.
// A panicking tie-breaker is reported as an error.
func (s *MatchingService) callTieBreaker(ctx context.Context, req domain.TieBreakerRequest) (decision *domain.TieBreakerDecision, err error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			decision, err = nil, fmt.Errorf("%w: panic: %v", domain.ErrTieBreakerAPIFailure, r)
		}
	}()

	return s.tieBreaker.SelectBest(callCtx, req)
}

// buildTieBreakerRequest describes the item and its top candidates
func buildTieBreakerRequest(parsed domain.ParsedItemDetails, top []domain.ScoredCandidate) domain.TieBreakerRequest {
	req := domain.TieBreakerRequest{
		Item: domain.TieBreakerItem{
			Name:         parsed.CleanName,
			Quantity:     parsed.Quantity,
			Measurement:  parsed.Measurement,
			Unit:         parsed.Unit,
			OriginalText: parsed.OriginalName,
			SearchQuery:  parsed.SearchQuery,
		},
		Candidates: make([]domain.TieBreakerCandidate, len(top)),
	}

	for i, c := range top {
		req.Candidates[i] = domain.TieBreakerCandidate{
			ID:           candidateKey(c.CandidateProduct),
			Name:         c.Name,
			Brand:        c.Brand,
			Size:         c.Size,
			Price:        c.Price,
			Availability: c.Availability,
			BasicScore:   c.BasicScore,
		}
	}

	return req
}

// matchSelection maps the tie-breaker's choice back to one of the submitted
// candidates by id, sku or name. Returns -1 when nothing matches.
func matchSelection(decision *domain.TieBreakerDecision, top []domain.ScoredCandidate) int {
	id := strings.TrimSpace(selectedID(decision))
	if id == "" {
		return -1
	}

	for i, c := range top {
		if (c.ID != "" && c.ID == id) || (c.SKU != "" && c.SKU == id) {
			return i
		}
	}
	for i, c := range top {
		if strings.EqualFold(strings.TrimSpace(c.Name), id) {
			return i
		}
	}

	return -1
}

func selectedID(decision *domain.TieBreakerDecision) string {
	if decision == nil {
		return ""
	}
	return decision.BestMatch.ID
}

// candidateKey is the identifier the tie-breaker sees for a candidate
func candidateKey(c domain.CandidateProduct) string {
	if c.ID != "" {
		return c.ID
	}
	if c.SKU != "" {
		return c.SKU
	}
	return c.Name
}

// noTieBreaker is used when no tie-breaker is wired in
type noTieBreaker struct{}

func (noTieBreaker) SelectBest(context.Context, domain.TieBreakerRequest) (*domain.TieBreakerDecision, error) {
	return nil, domain.ErrTieBreakerUnavailable
}
