package domain

import "errors"

var (
	// ErrCacheMiss is returned when a key is absent or expired
	ErrCacheMiss = errors.New("cache miss")

	// ErrCatalogNotConfigured is returned when the resolver is built without a catalog client
	ErrCatalogNotConfigured = errors.New("catalog search client not configured")

	// ErrCatalogAPIFailure is returned when the catalog search request fails
	ErrCatalogAPIFailure = errors.New("catalog API request failed")

	// ErrTieBreakerUnavailable is returned by deployments without a language-model backend
	ErrTieBreakerUnavailable = errors.New("tie-breaker not configured")

	// ErrTieBreakerAPIFailure is returned when the tie-breaker request fails or is unreadable
	ErrTieBreakerAPIFailure = errors.New("tie-breaker request failed")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrBatchTooLarge is returned when a batch exceeds the configured item limit
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")
)
