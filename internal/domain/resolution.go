package domain

import "time"

// ReasonNoCandidates is the unresolved reason when the catalog returns nothing usable
const ReasonNoCandidates = "No matching products found in catalog"

// Selection methods recorded on a resolved match
const (
	SelectionDeterministic = "deterministic"
	SelectionTieBreaker    = "tie_breaker"
)

// ResolvedMatch is a raw item bound to a concrete catalog product
type ResolvedMatch struct {
	OriginalItem    RawItem          `json:"originalItem"`
	Product         CandidateProduct `json:"instacartProduct"`
	ResolvedDetails ResolvedDetails  `json:"resolvedDetails"`
	VendorSpecific  VendorSpecific   `json:"vendorSpecific"`
	Confidence      Confidence       `json:"confidence"`
}

// ResolvedDetails is the purchasable line derived from the match
type ResolvedDetails struct {
	ProductID   string   `json:"productId"`
	Name        string   `json:"name"`
	Brand       string   `json:"brand,omitempty"`
	Size        string   `json:"size,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Quantity    float64  `json:"quantity"`
	Measurement float64  `json:"measurement"`
	Unit        string   `json:"unit"`
	DisplayName string   `json:"displayName"`
	TotalPrice  *float64 `json:"totalPrice,omitempty"`
}

// VendorSpecific carries retailer context and review hints for the caller
type VendorSpecific struct {
	RetailerID         string            `json:"retailerId,omitempty"`
	SearchQuery        string            `json:"searchQuery"`
	TotalSearchResults int               `json:"totalSearchResults"`
	AlternativeMatches []ScoredCandidate `json:"alternativeMatches"`
	NeedsApproval      bool              `json:"needsApproval"`
	MatchReason        string            `json:"matchReason"`
	SelectionMethod    string            `json:"selectionMethod"`
	AIReason           string            `json:"aiReason,omitempty"`
}

// UnresolvedItem is a raw item that could not be matched
type UnresolvedItem struct {
	OriginalItem RawItem `json:"originalItem"`
	Reason       string  `json:"reason"`
}

// ItemResolution is the outcome for one raw item: exactly one field is set
type ItemResolution struct {
	Match      *ResolvedMatch  `json:"match,omitempty"`
	Unresolved *UnresolvedItem `json:"unresolved,omitempty"`
}

// Resolved reports whether the item was matched
func (r ItemResolution) Resolved() bool {
	return r.Match != nil
}

// BatchResult aggregates the resolutions of a whole shopping list
type BatchResult struct {
	BatchID    string           `json:"batchId"`
	Resolved   []ResolvedMatch  `json:"resolved"`
	Unresolved []UnresolvedItem `json:"unresolved"`
	Stats      BatchStats       `json:"stats"`
}

// BatchStats summarises a batch
type BatchStats struct {
	Total          int    `json:"total"`
	Resolved       int    `json:"resolved"`
	Unresolved     int    `json:"unresolved"`
	ResolutionRate string `json:"resolutionRate"`
	NeedsApproval  int    `json:"needsApproval"`
	CacheHits      int    `json:"cacheHits"`
}

// CacheEntry is a stored resolution with its lifetime
type CacheEntry struct {
	Key        string         `json:"key"`
	Resolution ItemResolution `json:"resolution"`
	InsertedAt time.Time      `json:"insertedAt"`
	TTL        time.Duration  `json:"ttl"`
}

// Expired reports whether the entry has outlived its TTL at now
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.After(e.InsertedAt.Add(e.TTL))
}

// CacheStats is the cache introspection view
type CacheStats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}
