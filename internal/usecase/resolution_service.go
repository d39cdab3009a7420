package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/cartsmash/resolver/internal/domain"
	"github.com/cartsmash/resolver/internal/infrastructure/cache"
)

const maxAlternatives = 3

// ResolutionServiceConfig holds configuration for the resolution service
type ResolutionServiceConfig struct {
	KeyPrefix     string
	SuccessTTL    time.Duration
	FailureTTL    time.Duration
	Workers       int
	MaxBatchSize  int
	SearchTimeout time.Duration
	Match         MatchConfig
	Logger        *zerolog.Logger
}

// ResolutionService drives the per-item resolution pipeline and aggregates batches
type ResolutionService struct {
	catalog       domain.CatalogSearcher
	cache         domain.CacheRepository
	events        domain.EventSink
	matcher       *MatchingService
	keyPrefix     string
	successTTL    time.Duration
	failureTTL    time.Duration
	workers       int
	maxBatchSize  int
	searchTimeout time.Duration
	logger        zerolog.Logger
	now           func() time.Time
}

// NewResolutionService creates a new resolution service with dependencies.
// Only the catalog is required: a nil tie-breaker means deterministic selection,
// a nil cache an in-process memory cache and a nil sink no events.
func NewResolutionService(
	catalog domain.CatalogSearcher,
	tieBreaker domain.TieBreaker,
	cacheRepo domain.CacheRepository,
	events domain.EventSink,
	config ResolutionServiceConfig,
) (*ResolutionService, error) {
	if catalog == nil {
		return nil, domain.ErrCatalogNotConfigured
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}
	if config.Match.Logger == nil {
		config.Match.Logger = &logger
	}

	if cacheRepo == nil {
		cacheRepo = cache.NewMemoryCache(cache.MemoryCacheConfig{})
	}
	if events == nil {
		events = domain.EventSinkFunc(func(context.Context, domain.ResolutionEvent) {})
	}

	keyPrefix := config.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "cartsmash:"
	}

	successTTL := config.SuccessTTL
	if successTTL <= 0 {
		successTTL = 30 * time.Minute
	}

	failureTTL := config.FailureTTL
	if failureTTL <= 0 {
		failureTTL = 5 * time.Minute // Retry catalog gaps sooner
	}

	workers := config.Workers
	if workers <= 0 {
		workers = 4
	}

	searchTimeout := config.SearchTimeout
	if searchTimeout <= 0 {
		searchTimeout = 10 * time.Second
	}

	return &ResolutionService{
		catalog:       catalog,
		cache:         cacheRepo,
		events:        events,
		matcher:       NewMatchingService(tieBreaker, config.Match),
		keyPrefix:     keyPrefix,
		successTTL:    successTTL,
		failureTTL:    failureTTL,
		workers:       workers,
		maxBatchSize:  config.MaxBatchSize,
		searchTimeout: searchTimeout,
		logger:        logger,
		now:           time.Now,
	}, nil
}

// ResolveCartSmashItems resolves a whole shopping list. Items are resolved
// independently on a bounded pool; output order follows input order.
// Cancelling ctx stops scheduling new items but lets in-flight ones finish.
func (s *ResolutionService) ResolveCartSmashItems(
	ctx context.Context,
	items []domain.RawItem,
	retailerID string,
) (*domain.BatchResult, error) {
	if s.maxBatchSize > 0 && len(items) > s.maxBatchSize {
		return nil, fmt.Errorf("%w: %d items, limit is %d", domain.ErrBatchTooLarge, len(items), s.maxBatchSize)
	}

	batchID := uuid.NewString()
	start := s.now()

	results := make([]domain.ItemResolution, len(items))
	cacheHits := make([]bool, len(items))
	detached := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(s.workers)

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			results[i] = unresolved(item, err.Error())
			s.emit(detached, domain.ResolutionEvent{
				Type:       domain.EventItemUnresolved,
				BatchID:    batchID,
				ItemName:   item.Name,
				RetailerID: retailerID,
				Reason:     err.Error(),
			})
			continue
		}

		g.Go(func() error {
			results[i], cacheHits[i] = s.resolve(detached, batchID, item, retailerID)
			return nil
		})
	}
	_ = g.Wait()

	batch := aggregate(batchID, results, cacheHits)

	s.emit(detached, domain.ResolutionEvent{
		Type:        domain.EventBatchCompleted,
		BatchID:     batchID,
		RetailerID:  retailerID,
		Total:       batch.Stats.Total,
		ResolvedCnt: batch.Stats.Resolved,
		Duration:    s.now().Sub(start),
	})

	s.logger.Info().
		Str("batch_id", batchID).
		Int("total", batch.Stats.Total).
		Int("resolved", batch.Stats.Resolved).
		Int("cache_hits", batch.Stats.CacheHits).
		Str("resolution_rate", batch.Stats.ResolutionRate).
		Msg("batch resolved")

	return batch, nil
}

// ResolveItem resolves a single raw item. Failures are reported as an unresolved item.
func (s *ResolutionService) ResolveItem(ctx context.Context, item domain.RawItem, retailerID string) domain.ItemResolution {
	res, _ := s.resolve(ctx, "", item, retailerID)
	return res
}

// GetCacheStats reports the number of cached resolutions and their keys
func (s *ResolutionService) GetCacheStats(ctx context.Context) (*domain.CacheStats, error) {
	keys, err := s.cache.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing cache keys: %w", err)
	}
	sort.Strings(keys)
	return &domain.CacheStats{Size: len(keys), Keys: keys}, nil
}

// ClearExpiredCache purges expired resolutions and returns how many were removed
func (s *ResolutionService) ClearExpiredCache(ctx context.Context) (int, error) {
	purged, err := s.cache.PurgeExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("purging cache: %w", err)
	}
	s.logger.Debug().Int("purged", purged).Msg("expired cache entries cleared")
	return purged, nil
}

// resolve runs the pipeline for one item: cache -> parse -> search -> select -> policy -> cache.
// A panic anywhere in the pipeline becomes an unresolved item.
func (s *ResolutionService) resolve(
	ctx context.Context,
	batchID string,
	item domain.RawItem,
	retailerID string,
) (res domain.ItemResolution, cacheHit bool) {
	event := domain.ResolutionEvent{BatchID: batchID, ItemName: item.Name, RetailerID: retailerID}

	defer func() {
		if r := recover(); r != nil {
			reason := panicMessage(r)
			s.logger.Error().
				Str("item", item.Name).
				Str("panic", reason).
				Msg("item resolution failed")
			res, cacheHit = unresolved(item, reason), false
			s.emit(ctx, withType(event, domain.EventItemFailed, func(e *domain.ResolutionEvent) { e.Error = reason }))
		}
	}()

	key := CacheKey(s.keyPrefix, item, retailerID)
	event.CacheKey = key

	if cached, ok := s.getFromCache(ctx, key); ok {
		s.emit(ctx, withType(event, domain.EventCacheHit, nil))
		return withOriginalItem(cached, item), true
	}
	s.emit(ctx, withType(event, domain.EventCacheMiss, nil))

	parsed := ParseItem(item)
	event.Query = parsed.SearchQuery

	products, total := s.search(ctx, event, parsed.SearchQuery, retailerID)
	if len(products) == 0 {
		res = unresolved(item, domain.ReasonNoCandidates)
		s.setInCache(ctx, key, res, s.failureTTL)
		s.emit(ctx, withType(event, domain.EventItemUnresolved, func(e *domain.ResolutionEvent) { e.Reason = domain.ReasonNoCandidates }))
		return res, false
	}

	selection, err := s.matcher.SelectBest(ctx, parsed, products)
	if err != nil {
		res = unresolved(item, err.Error())
		s.emit(ctx, withType(event, domain.EventItemFailed, func(e *domain.ResolutionEvent) { e.Error = err.Error() }))
		return res, false
	}
	s.emitTieBreaker(ctx, event, selection)

	match := buildMatch(item, parsed, retailerID, total, selection)
	res = domain.ItemResolution{Match: match}
	s.setInCache(ctx, key, res, s.successTTL)

	s.emit(ctx, withType(event, domain.EventItemResolved, func(e *domain.ResolutionEvent) {
		e.ProductID = match.ResolvedDetails.ProductID
		e.Score = selection.Best.EffectiveScore()
		e.Confidence = match.Confidence
		e.Candidates = len(products)
	}))

	return res, false
}

// search queries the catalog with a bounded timeout. Transport errors count as no candidates.
func (s *ResolutionService) search(
	ctx context.Context,
	event domain.ResolutionEvent,
	query, retailerID string,
) ([]domain.CandidateProduct, int) {
	searchCtx, cancel := context.WithTimeout(ctx, s.searchTimeout)
	defer cancel()

	start := s.now()
	result, err := s.catalog.Search(searchCtx, query, retailerID)
	elapsed := s.now().Sub(start)

	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("item", event.ItemName).
			Str("query", query).
			Msg("catalog search failed")
		s.emit(ctx, withType(event, domain.EventSearchFailed, func(e *domain.ResolutionEvent) {
			e.Error = err.Error()
			e.Duration = elapsed
		}))
		return nil, 0
	}
	if result == nil {
		result = &domain.SearchResult{}
	}

	total := result.TotalResults
	if total < len(result.Products) {
		total = len(result.Products)
	}

	s.emit(ctx, withType(event, domain.EventSearchCompleted, func(e *domain.ResolutionEvent) {
		e.Candidates = len(result.Products)
		e.Duration = elapsed
	}))

	return result.Products, total
}

func (s *ResolutionService) emitTieBreaker(ctx context.Context, event domain.ResolutionEvent, selection *Selection) {
	switch selection.TieBreaker {
	case TieBreakerSkipped, TieBreakerUnavailable:
		return
	}

	s.emit(ctx, withType(event, domain.EventTieBreakerInvoked, func(e *domain.ResolutionEvent) {
		e.Candidates = selection.TieBreakerSent
	}))

	switch selection.TieBreaker {
	case TieBreakerFailed:
		s.emit(ctx, withType(event, domain.EventTieBreakerFailed, func(e *domain.ResolutionEvent) {
			e.Error = selection.TieBreakerErr.Error()
		}))
	case TieBreakerRejected:
		s.emit(ctx, withType(event, domain.EventTieBreakerRejected, func(e *domain.ResolutionEvent) {
			e.ProductID = selection.Best.ID
		}))
	}
}

// emit forwards an event to the sink. A panicking sink is logged and ignored.
func (s *ResolutionService) emit(ctx context.Context, event domain.ResolutionEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("event", string(event.Type)).Str("panic", panicMessage(r)).Msg("event sink failed")
		}
	}()
	event.At = s.now()
	s.events.OnResolutionEvent(ctx, event)
}

// getFromCache returns a stored resolution. Cache errors are treated as misses.
func (s *ResolutionService) getFromCache(ctx context.Context, key string) (domain.ItemResolution, bool) {
	entry, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return domain.ItemResolution{}, false
	}
	if entry == nil || (entry.Resolution.Match == nil && entry.Resolution.Unresolved == nil) {
		return domain.ItemResolution{}, false
	}
	return entry.Resolution, true
}

// setInCache stores a resolution. Failures are logged only.
func (s *ResolutionService) setInCache(ctx context.Context, key string, res domain.ItemResolution, ttl time.Duration) {
	entry := &domain.CacheEntry{
		Key:        key,
		Resolution: res,
		InsertedAt: s.now(),
		TTL:        ttl,
	}
	if err := s.cache.Set(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// CacheKey builds the cache key of a raw item against a retailer.
// Format: "{prefix}{normalized_name}:{retailer}:{quantity}:{unit}"
func CacheKey(prefix string, item domain.RawItem, retailerID string) string {
	return fmt.Sprintf("%s%s:%s:%s:%s",
		prefix,
		normalizeForCacheKey(item.Name),
		strings.TrimSpace(retailerID),
		item.Quantity.String(),
		strings.ToLower(strings.TrimSpace(item.Unit)),
	)
}

// normalizeForCacheKey normalizes a string for use as cache key component.
// Letters and digits of any script are kept along with the characters that
// change an amount ("1/2", "1.5", "2%"); other punctuation is dropped and
// whitespace is collapsed.
func normalizeForCacheKey(s string) string {
	if s == "" {
		return ""
	}
	result := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return unicode.ToLower(r)
		case unicode.IsSpace(r):
			return ' '
		case r == '/', r == '.', r == '%', r == '-':
			return r
		default:
			return -1
		}
	}, s)
	return strings.Join(strings.Fields(result), " ")
}

// buildMatch turns a selection into the purchasable match returned to callers
func buildMatch(
	item domain.RawItem,
	parsed domain.ParsedItemDetails,
	retailerID string,
	totalResults int,
	selection *Selection,
) *domain.ResolvedMatch {
	best := selection.Best
	product := ensureIdentifiers(best.CandidateProduct)
	confidence := MatchConfidence(best)

	var totalPrice *float64
	if product.Price != nil {
		totalPrice = domain.Float(math.Round(*product.Price*parsed.Quantity*100) / 100)
	}

	vendor := domain.VendorSpecific{
		RetailerID:         retailerID,
		SearchQuery:        parsed.SearchQuery,
		TotalSearchResults: totalResults,
		AlternativeMatches: alternatives(selection.Ranked, best),
		NeedsApproval:      NeedsApproval(parsed, best, confidence),
		MatchReason:        MatchReason(parsed, best, confidence),
		SelectionMethod:    selection.Method,
	}
	if best.SelectedByTieBreaker() {
		vendor.AIReason = best.AIReason
	}

	return &domain.ResolvedMatch{
		OriginalItem: item,
		Product:      product,
		ResolvedDetails: domain.ResolvedDetails{
			ProductID:   product.ID,
			Name:        product.Name,
			Brand:       product.Brand,
			Size:        product.Size,
			Price:       product.Price,
			Quantity:    parsed.Quantity,
			Measurement: parsed.Measurement,
			Unit:        parsed.Unit,
			DisplayName: displayName(parsed, product.Name),
			TotalPrice:  totalPrice,
		},
		VendorSpecific: vendor,
		Confidence:     confidence,
	}
}

// alternatives are the next ranked candidates after the winner
func alternatives(ranked []domain.ScoredCandidate, best domain.ScoredCandidate) []domain.ScoredCandidate {
	out := make([]domain.ScoredCandidate, 0, maxAlternatives)
	winner := candidateKey(best.CandidateProduct)
	skipped := false

	for _, c := range ranked {
		if !skipped && candidateKey(c.CandidateProduct) == winner {
			skipped = true
			continue
		}
		if len(out) == maxAlternatives {
			break
		}
		out = append(out, c)
	}

	return out
}

// ensureIdentifiers guarantees both id and sku are set. Products with neither
// get a stable name-based id so repeated resolutions agree.
func ensureIdentifiers(p domain.CandidateProduct) domain.CandidateProduct {
	switch {
	case p.ID == "" && p.SKU == "":
		p.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(p.Name+"|"+p.Brand+"|"+p.Size)).String()
		p.SKU = p.ID
	case p.ID == "":
		p.ID = p.SKU
	case p.SKU == "":
		p.SKU = p.ID
	}
	return p
}

func displayName(parsed domain.ParsedItemDetails, productName string) string {
	if IsMeasurementUnit(parsed.Unit) {
		return fmt.Sprintf("%s %s %s", formatAmount(parsed.Measurement), parsed.Unit, productName)
	}
	return fmt.Sprintf("%s x %s", formatAmount(parsed.Quantity), productName)
}

func aggregate(batchID string, results []domain.ItemResolution, cacheHits []bool) *domain.BatchResult {
	batch := &domain.BatchResult{
		BatchID:    batchID,
		Resolved:   make([]domain.ResolvedMatch, 0, len(results)),
		Unresolved: make([]domain.UnresolvedItem, 0),
	}

	for i, res := range results {
		if res.Match != nil {
			batch.Resolved = append(batch.Resolved, *res.Match)
			if res.Match.VendorSpecific.NeedsApproval {
				batch.Stats.NeedsApproval++
			}
		} else if res.Unresolved != nil {
			batch.Unresolved = append(batch.Unresolved, *res.Unresolved)
		}
		if cacheHits[i] {
			batch.Stats.CacheHits++
		}
	}

	batch.Stats.Total = len(results)
	batch.Stats.Resolved = len(batch.Resolved)
	batch.Stats.Unresolved = len(batch.Unresolved)
	batch.Stats.ResolutionRate = resolutionRate(batch.Stats.Resolved, batch.Stats.Total)

	return batch
}

// resolutionRate formats resolved/total as a percentage with one decimal place
func resolutionRate(resolved, total int) string {
	if total == 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(resolved)/float64(total)*100)
}

func unresolved(item domain.RawItem, reason string) domain.ItemResolution {
	return domain.ItemResolution{Unresolved: &domain.UnresolvedItem{OriginalItem: item, Reason: reason}}
}

// withOriginalItem echoes the caller's raw item on a cached resolution
func withOriginalItem(res domain.ItemResolution, item domain.RawItem) domain.ItemResolution {
	if res.Match != nil {
		m := *res.Match
		m.OriginalItem = item
		res.Match = &m
	}
	if res.Unresolved != nil {
		u := *res.Unresolved
		u.OriginalItem = item
		res.Unresolved = &u
	}
	return res
}

func withType(event domain.ResolutionEvent, t domain.EventType, fill func(*domain.ResolutionEvent)) domain.ResolutionEvent {
	event.Type = t
	if fill != nil {
		fill(&event)
	}
	return event
}

func panicMessage(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(r)
}
