package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/cartsmash/resolver/internal/domain"
)

// Resolver is the resolution engine surface exposed over HTTP
type Resolver interface {
	ResolveCartSmashItems(ctx context.Context, items []domain.RawItem, retailerID string) (*domain.BatchResult, error)
	ResolveItem(ctx context.Context, item domain.RawItem, retailerID string) domain.ItemResolution
	GetCacheStats(ctx context.Context) (*domain.CacheStats, error)
	ClearExpiredCache(ctx context.Context) (int, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	resolver     Resolver
	maxBatchSize int
	logger       zerolog.Logger
}

// HandlerConfig holds configuration for the HTTP handler
type HandlerConfig struct {
	MaxBatchSize int
	Logger       *zerolog.Logger
}

// NewHandler creates a new HTTP handler. A nil resolver answers 503 on engine routes.
func NewHandler(resolver Resolver, config HandlerConfig) *Handler {
	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}
	return &Handler{
		resolver:     resolver,
		maxBatchSize: config.MaxBatchSize,
		logger:       logger,
	}
}

// ResolveBatchRequest is the body of POST /api/v1/cart/resolve
type ResolveBatchRequest struct {
	Items      []domain.RawItem `json:"items"`
	RetailerID string           `json:"retailerId"`
}

// ResolveItemRequest is the body of POST /api/v1/cart/items/resolve
type ResolveItemRequest struct {
	Item       domain.RawItem `json:"item"`
	RetailerID string         `json:"retailerId"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "cartsmash-resolver",
		"version": "1.0.0",
	})
}

// ResolveBatch resolves a whole shopping list
func (h *Handler) ResolveBatch(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	var req ResolveBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if len(req.Items) == 0 {
		h.badRequest(c, "items must not be empty")
		return
	}
	if h.maxBatchSize > 0 && len(req.Items) > h.maxBatchSize {
		h.badRequest(c, domain.ErrBatchTooLarge.Error())
		return
	}

	batch, err := h.resolver.ResolveCartSmashItems(c.Request.Context(), req.Items, req.RetailerID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, batch)
}

// ResolveItem resolves one shopping list line
func (h *Handler) ResolveItem(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	var req ResolveItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.Item.Name == "" {
		h.badRequest(c, "item name is required")
		return
	}

	c.JSON(http.StatusOK, h.resolver.ResolveItem(c.Request.Context(), req.Item, req.RetailerID))
}

// CacheStats reports the cached resolutions
func (h *Handler) CacheStats(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	stats, err := h.resolver.GetCacheStats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// PurgeCache removes expired resolutions
func (h *Handler) PurgeCache(c *gin.Context) {
	if !h.ready(c) {
		return
	}

	purged, err := h.resolver.ClearExpiredCache(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"purged": purged})
}

func (h *Handler) ready(c *gin.Context) bool {
	if h.resolver == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "resolver not configured"})
		return false
	}
	return true
}

func (h *Handler) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// respondError maps domain errors to HTTP status codes
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrBatchTooLarge), errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	default:
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
