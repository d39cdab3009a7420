package domain

import (
	"context"
	"time"
)

// CacheRepository stores item resolutions with per-entry TTLs
type CacheRepository interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, entry *CacheEntry) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	PurgeExpired(ctx context.Context) (int, error)
}

// SearchResult is the catalog's answer to a product query
type SearchResult struct {
	Products     []CandidateProduct `json:"products"`
	TotalResults int                `json:"totalResults"`
}

// CatalogSearcher queries the retail marketplace catalog
type CatalogSearcher interface {
	Search(ctx context.Context, query, retailerID string) (*SearchResult, error)
}

// TieBreakerItem is the item description sent to the tie-breaker
type TieBreakerItem struct {
	Name         string  `json:"name"`
	Quantity     float64 `json:"quantity"`
	Measurement  float64 `json:"measurement"`
	Unit         string  `json:"unit"`
	OriginalText string  `json:"originalText"`
	SearchQuery  string  `json:"searchQuery"`
}

// TieBreakerCandidate is one candidate sent to the tie-breaker
type TieBreakerCandidate struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Brand        string       `json:"brand,omitempty"`
	Size         string       `json:"size,omitempty"`
	Price        *float64     `json:"price,omitempty"`
	Availability Availability `json:"availability,omitempty"`
	BasicScore   float64      `json:"basicScore"`
}

// TieBreakerRequest asks for one selection among a few close candidates
type TieBreakerRequest struct {
	Item       TieBreakerItem        `json:"item"`
	Candidates []TieBreakerCandidate `json:"candidates"`
}

// TieBreakerSelection is the tie-breaker's verdict
type TieBreakerSelection struct {
	ID         string     `json:"id"`
	AIScore    float64    `json:"aiScore"`
	Confidence Confidence `json:"confidence"`
	Reason     string     `json:"reason"`
}

// TieBreakerDecision wraps the verdict as returned on the wire
type TieBreakerDecision struct {
	BestMatch TieBreakerSelection `json:"bestMatch"`
}

// TieBreaker picks one candidate when deterministic scoring is inconclusive
type TieBreaker interface {
	SelectBest(ctx context.Context, req TieBreakerRequest) (*TieBreakerDecision, error)
}

// EventType names a step of the resolution pipeline
type EventType string

const (
	EventCacheHit           EventType = "cache_hit"
	EventCacheMiss          EventType = "cache_miss"
	EventSearchCompleted    EventType = "search_completed"
	EventSearchFailed       EventType = "search_failed"
	EventTieBreakerInvoked  EventType = "tie_breaker_invoked"
	EventTieBreakerFailed   EventType = "tie_breaker_failed"
	EventTieBreakerRejected EventType = "tie_breaker_rejected"
	EventItemResolved       EventType = "item_resolved"
	EventItemUnresolved     EventType = "item_unresolved"
	EventItemFailed         EventType = "item_failed"
	EventBatchCompleted     EventType = "batch_completed"
)

// ResolutionEvent is emitted at each observable pipeline step
type ResolutionEvent struct {
	Type        EventType     `json:"type"`
	BatchID     string        `json:"batchId,omitempty"`
	ItemName    string        `json:"itemName,omitempty"`
	RetailerID  string        `json:"retailerId,omitempty"`
	CacheKey    string        `json:"cacheKey,omitempty"`
	Query       string        `json:"query,omitempty"`
	Candidates  int           `json:"candidates,omitempty"`
	ProductID   string        `json:"productId,omitempty"`
	Score       float64       `json:"score,omitempty"`
	Confidence  Confidence    `json:"confidence,omitempty"`
	Reason      string        `json:"reason,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Total       int           `json:"total,omitempty"`
	ResolvedCnt int           `json:"resolved,omitempty"`
	At          time.Time     `json:"at"`
}

// EventSink receives resolution events. Implementations must not block for long
// and must not fail the resolution.
type EventSink interface {
	OnResolutionEvent(ctx context.Context, event ResolutionEvent)
}

// EventSinkFunc adapts a function to EventSink
type EventSinkFunc func(ctx context.Context, event ResolutionEvent)

// OnResolutionEvent calls f
func (f EventSinkFunc) OnResolutionEvent(ctx context.Context, event ResolutionEvent) {
	f(ctx, event)
}
