package usecase

import (
	"strings"

	"github.com/cartsmash/resolver/internal/domain"
)

// Price bounds outside which a match is routed to human approval
const (
	minApprovalPrice = 0.99
	maxApprovalPrice = 25.00
)

// Match reasons, in priority order
const (
	ReasonExactMatch     = "Exact product name match"
	ReasonHighConfidence = "High confidence match based on keywords and brand"
	ReasonNameSimilarity = "Good match based on product name similarity"
	ReasonLowConfidence  = "Low confidence match - review recommended"
)

// groceryCategories is checked in order; the first one found in a name wins.
// Synonyms ("beef" for meat) are deliberately not recognised.
var groceryCategories = []string{"meat", "dairy", "produce", "frozen", "canned", "bakery", "snack"}

// MatchConfidence is the confidence tier of a selected candidate. A tie-breaker
// selection carries its own confidence, or the tier of its score when that is
// not a known tier.
func MatchConfidence(best domain.ScoredCandidate) domain.Confidence {
	if best.SelectedByTieBreaker() {
		if best.AIConfidence.Valid() {
			return best.AIConfidence
		}
		return ConfidenceForScore(*best.AIScore)
	}
	return ConfidenceForScore(best.BasicScore)
}

// NeedsApproval decides whether a human must confirm the match
func NeedsApproval(parsed domain.ParsedItemDetails, best domain.ScoredCandidate, confidence domain.Confidence) bool {
	if confidence == domain.ConfidenceLow || confidence == domain.ConfidenceVeryLow {
		return true
	}

	if categoryMismatch(parsed.CleanName, best.Name) {
		return true
	}

	if best.Price != nil {
		total := *best.Price * parsed.Quantity
		if total < minApprovalPrice || total > maxApprovalPrice {
			return true
		}
	}

	return false
}

// MatchReason returns a short explanation keyed to the strongest rule that applies
func MatchReason(parsed domain.ParsedItemDetails, best domain.ScoredCandidate, confidence domain.Confidence) string {
	clean := strings.ToLower(strings.TrimSpace(parsed.CleanName))
	switch {
	case clean != "" && strings.Contains(strings.ToLower(best.Name), clean):
		return ReasonExactMatch
	case confidence == domain.ConfidenceHigh:
		return ReasonHighConfidence
	case confidence == domain.ConfidenceMedium:
		return ReasonNameSimilarity
	default:
		return ReasonLowConfidence
	}
}

// categoryMismatch reports whether both names name a known category and they differ
func categoryMismatch(itemName, candidateName string) bool {
	itemCategory := detectCategory(itemName)
	if itemCategory == "" {
		return false
	}
	candidateCategory := detectCategory(candidateName)
	return candidateCategory != "" && candidateCategory != itemCategory
}

func detectCategory(name string) string {
	lower := strings.ToLower(name)
	for _, category := range groceryCategories {
		if strings.Contains(lower, category) {
			return category
		}
	}
	return ""
}
