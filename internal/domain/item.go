package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// RawItem is a free-text shopping list line as entered by the user
type RawItem struct {
	Name     string   `json:"name"`
	Quantity Quantity `json:"quantity,omitzero"`
	Unit     string   `json:"unit,omitempty"`
	Category string   `json:"category,omitempty"`
	Brand    string   `json:"brand,omitempty"`
}

// Quantity is an optional amount that may arrive as a JSON number or a numeric string.
// Values that are not positive numbers are treated as absent.
type Quantity struct {
	value float64
	valid bool
}

// NewQuantity returns a Quantity holding v. Non-positive values yield an absent quantity.
func NewQuantity(v float64) Quantity {
	if v <= 0 {
		return Quantity{}
	}
	return Quantity{value: v, valid: true}
}

// ParseQuantity parses "2", "1.5" or "1/2". Anything else yields an absent quantity.
func ParseQuantity(s string) Quantity {
	s = strings.TrimSpace(s)
	if s == "" {
		return Quantity{}
	}
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(strings.TrimSpace(num), 64)
		d, err2 := strconv.ParseFloat(strings.TrimSpace(den), 64)
		if err1 != nil || err2 != nil || d == 0 {
			return Quantity{}
		}
		return NewQuantity(n / d)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Quantity{}
	}
	return NewQuantity(v)
}

// Value returns the amount and whether one was supplied
func (q Quantity) Value() (float64, bool) {
	return q.value, q.valid
}

// IsZero reports whether the quantity is absent (honoured by omitzero)
func (q Quantity) IsZero() bool {
	return !q.valid
}

// UnmarshalJSON accepts numbers, numeric strings and null. It never fails on bad input.
func (q *Quantity) UnmarshalJSON(data []byte) error {
	*q = Quantity{}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*q = NewQuantity(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*q = ParseQuantity(s)
	}
	return nil
}

// MarshalJSON encodes the amount as a number, or null when absent
func (q Quantity) MarshalJSON() ([]byte, error) {
	if !q.valid {
		return []byte("null"), nil
	}
	return json.Marshal(q.value)
}

// String formats the amount without trailing zeros ("" when absent)
func (q Quantity) String() string {
	if !q.valid {
		return ""
	}
	return strconv.FormatFloat(q.value, 'f', -1, 64)
}

// ParsedItemDetails is the structured form of a RawItem.
// For measurement units Quantity is 1 and Measurement carries the amount;
// for count units Measurement is 1 and Quantity carries the amount.
type ParsedItemDetails struct {
	OriginalName string  `json:"originalName"`
	CleanName    string  `json:"cleanName"`
	Quantity     float64 `json:"quantity"`
	Measurement  float64 `json:"measurement"`
	Unit         string  `json:"unit"`
	SearchQuery  string  `json:"searchQuery"`
	Category     string  `json:"category,omitempty"`
	Brand        string  `json:"brand,omitempty"`
}

// Availability is the stock state reported by the catalog
type Availability string

const (
	AvailabilityInStock      Availability = "in_stock"
	AvailabilityLimitedStock Availability = "limited_stock"
	AvailabilityUnknown      Availability = "unknown"
)

// CandidateProduct is a catalog product returned by a search
type CandidateProduct struct {
	ID           string       `json:"id"`
	SKU          string       `json:"sku,omitempty"`
	Name         string       `json:"name"`
	Brand        string       `json:"brand,omitempty"`
	Size         string       `json:"size,omitempty"`
	Price        *float64     `json:"price,omitempty"`
	Availability Availability `json:"availability,omitempty"`
}

// ScoredCandidate is a candidate annotated with its deterministic score and,
// when the tie-breaker picked it, the tie-breaker's own verdict.
type ScoredCandidate struct {
	CandidateProduct
	BasicScore   float64    `json:"basicScore"`
	AIScore      *float64   `json:"aiScore,omitempty"`
	AIConfidence Confidence `json:"aiConfidence,omitempty"`
	AIReason     string     `json:"aiReason,omitempty"`
}

// SelectedByTieBreaker reports whether the tie-breaker's verdict was applied
func (s *ScoredCandidate) SelectedByTieBreaker() bool {
	return s.AIScore != nil
}

// EffectiveScore is the tie-breaker score when present, else the basic score
func (s *ScoredCandidate) EffectiveScore() float64 {
	if s.AIScore != nil {
		return *s.AIScore
	}
	return s.BasicScore
}

// Confidence is a coarse match quality bucket
type Confidence string

const (
	ConfidenceHigh    Confidence = "high"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceLow     Confidence = "low"
	ConfidenceVeryLow Confidence = "very_low"
)

// Valid reports whether c is one of the known tiers
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow, ConfidenceVeryLow:
		return true
	}
	return false
}

// Float returns a pointer to v, for optional price fields
func Float(v float64) *float64 {
	return &v
}
