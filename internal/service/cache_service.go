package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/arbos-dev/arbos-api/pkg/errors"
)

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type cacheMetrics interface {
	RecordCacheOperation(operation, outcome string)
}

// CacheService wraps the cache repository with a kill switch and logging.
type CacheService struct {
	store   cacheStore
	logger  *zap.Logger
	metrics cacheMetrics
	enabled bool
	ttl     time.Duration
}

// CacheServiceOption customises optional collaborators.
type CacheServiceOption func(*CacheService)

// WithCacheMetrics registers an outcome counter for cache operations.
func WithCacheMetrics(m cacheMetrics) CacheServiceOption {
	return func(s *CacheService) { s.metrics = m }
}

// NewCacheService constructs the cache service. A nil store disables caching.
func NewCacheService(store cacheStore, logger *zap.Logger, enabled bool, ttl time.Duration, opts ...CacheServiceOption) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	s := &CacheService{store: store, logger: logger, enabled: enabled && store != nil, ttl: ttl}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether cache reads should be attempted.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled
}

// Get loads a cached value into dest. Returns pkg/errors.ErrCacheMiss when the
// key is absent or caching is disabled.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	if !s.Enabled() {
		return appErrors.ErrCacheMiss
	}
	err := s.store.Get(ctx, key, dest)
	switch {
	case err == nil:
		s.recordOp("get", "hit")
	case errors.Is(err, appErrors.ErrCacheMiss):
		s.recordOp("get", "miss")
	default:
		s.recordOp("get", "error")
	}
	return err
}

// Set stores a value under the configured TTL. Failures are logged, not
// returned; the cache is best effort.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) {
	if !s.Enabled() {
		return
	}
	if err := s.store.Set(ctx, key, value, s.ttl); err != nil {
		s.recordOp("set", "error")
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return
	}
	s.recordOp("set", "ok")
}

// InvalidatePattern drops all keys matching the pattern.
func (s *CacheService) InvalidatePattern(ctx context.Context, pattern string) {
	if !s.Enabled() {
		return
	}
	if err := s.store.DeleteByPattern(ctx, pattern); err != nil {
		s.recordOp("invalidate", "error")
		s.logger.Warn("cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
		return
	}
	s.recordOp("invalidate", "ok")
}

func (s *CacheService) recordOp(operation, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(operation, outcome)
	}
}
