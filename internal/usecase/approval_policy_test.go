package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cartsmash/resolver/internal/domain"
)

func scored(name string, price *float64, score float64) domain.ScoredCandidate {
	return domain.ScoredCandidate{
		CandidateProduct: domain.CandidateProduct{ID: "p-" + name, Name: name, Price: price},
		BasicScore:       score,
	}
}

func TestMatchConfidence(t *testing.T) {
	t.Run("deterministic selection uses basic score tier", func(t *testing.T) {
		assert.Equal(t, domain.ConfidenceMedium, MatchConfidence(scored("milk", nil, 60)))
	})

	t.Run("tie-breaker confidence wins when valid", func(t *testing.T) {
		c := scored("milk", nil, 40)
		c.AIScore = domain.Float(90)
		c.AIConfidence = domain.ConfidenceMedium
		assert.Equal(t, domain.ConfidenceMedium, MatchConfidence(c))
	})

	t.Run("unknown tie-breaker confidence falls back to ai score tier", func(t *testing.T) {
		c := scored("milk", nil, 40)
		c.AIScore = domain.Float(90)
		c.AIConfidence = "certain"
		assert.Equal(t, domain.ConfidenceHigh, MatchConfidence(c))
	})
}

func TestNeedsApproval(t *testing.T) {
	testCases := []struct {
		name       string
		parsed     domain.ParsedItemDetails
		best       domain.ScoredCandidate
		confidence domain.Confidence
		want       bool
	}{
		{
			name:       "low confidence always needs approval",
			parsed:     domain.ParsedItemDetails{CleanName: "milk", Quantity: 1},
			best:       scored("Whole Milk", domain.Float(3.49), 30),
			confidence: domain.ConfidenceLow,
			want:       true,
		},
		{
			name:       "very low confidence always needs approval",
			parsed:     domain.ParsedItemDetails{CleanName: "milk", Quantity: 1},
			best:       scored("Whole Milk", domain.Float(3.49), 10),
			confidence: domain.ConfidenceVeryLow,
			want:       true,
		},
		{
			name:       "ordinary high confidence match",
			parsed:     domain.ParsedItemDetails{CleanName: "milk", Quantity: 1},
			best:       scored("Whole Milk", domain.Float(3.49), 80),
			confidence: domain.ConfidenceHigh,
			want:       false,
		},
		{
			name:       "category mismatch",
			parsed:     domain.ParsedItemDetails{CleanName: "frozen peas", Quantity: 1},
			best:       scored("Canned Peas", domain.Float(1.29), 80),
			confidence: domain.ConfidenceHigh,
			want:       true,
		},
		{
			name:       "same category is fine",
			parsed:     domain.ParsedItemDetails{CleanName: "frozen peas", Quantity: 1},
			best:       scored("Frozen Sweet Peas", domain.Float(1.29), 80),
			confidence: domain.ConfidenceHigh,
			want:       false,
		},
		{
			name:       "synonyms are not treated as categories",
			parsed:     domain.ParsedItemDetails{CleanName: "beef", Quantity: 1},
			best:       scored("Dairy Free Beef Strips", domain.Float(5.99), 80),
			confidence: domain.ConfidenceHigh,
			want:       false,
		},
		{
			name:       "cheap total price",
			parsed:     domain.ParsedItemDetails{CleanName: "lime", Quantity: 1},
			best:       scored("Lime", domain.Float(0.45), 80),
			confidence: domain.ConfidenceHigh,
			want:       true,
		},
		{
			name:       "expensive total price",
			parsed:     domain.ParsedItemDetails{CleanName: "steak", Quantity: 2},
			best:       scored("Ribeye Steak", domain.Float(14.99), 80),
			confidence: domain.ConfidenceHigh,
			want:       true,
		},
		{
			name:       "cheap unit price with quantity is fine",
			parsed:     domain.ParsedItemDetails{CleanName: "bananas", Quantity: 6},
			best:       scored("Bananas", domain.Float(0.59), 80),
			confidence: domain.ConfidenceHigh,
			want:       false,
		},
		{
			name:       "unknown price is not an outlier",
			parsed:     domain.ParsedItemDetails{CleanName: "bread", Quantity: 1},
			best:       scored("Sourdough Bread", nil, 60),
			confidence: domain.ConfidenceMedium,
			want:       false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NeedsApproval(tc.parsed, tc.best, tc.confidence))
		})
	}
}

func TestMatchReason(t *testing.T) {
	parsed := domain.ParsedItemDetails{CleanName: "chicken breast"}

	assert.Equal(t, ReasonExactMatch,
		MatchReason(parsed, scored("Boneless Chicken Breast", nil, 30), domain.ConfidenceLow))
	assert.Equal(t, ReasonHighConfidence,
		MatchReason(parsed, scored("Grilled Chicken Fillets", nil, 0), domain.ConfidenceHigh))
	assert.Equal(t, ReasonNameSimilarity,
		MatchReason(parsed, scored("Breast of Chicken", nil, 0), domain.ConfidenceMedium))
	assert.Equal(t, ReasonLowConfidence,
		MatchReason(parsed, scored("Turkey Breast", nil, 0), domain.ConfidenceLow))
	assert.Equal(t, ReasonLowConfidence,
		MatchReason(domain.ParsedItemDetails{}, scored("Anything", nil, 0), domain.ConfidenceVeryLow))
}

func TestDetectCategory(t *testing.T) {
	assert.Equal(t, "frozen", detectCategory("Frozen Pizza"))
	assert.Equal(t, "meat", detectCategory("frozen meatballs"))
	assert.Equal(t, "", detectCategory("apples"))
}
