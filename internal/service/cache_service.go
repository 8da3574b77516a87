package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/dat-nglt/cusc-schedule/pkg/errors"
)

// BlacklistCacheRepository abstracts the Redis side of the jti blacklist.
type BlacklistCacheRepository interface {
	MarkBlacklisted(ctx context.Context, jti string, expiresAt time.Time) error
	IsBlacklisted(ctx context.Context, jti string) (bool, error)
}

// CacheService fronts the blacklist cache with metrics. The database stays
// the source of truth; the cache only short-circuits positive lookups.
type CacheService struct {
	repo    BlacklistCacheRepository
	metrics *MetricsService
	logger  *zap.Logger
	enabled bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo BlacklistCacheRepository, metrics *MetricsService, logger *zap.Logger, enabled bool) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Revoked reports a cached revocation. Misses and cache failures both return
// false so the caller consults the database.
func (s *CacheService) Revoked(ctx context.Context, jti string) bool {
	if !s.Enabled() {
		return false
	}
	start := time.Now()
	hit, err := s.repo.IsBlacklisted(ctx, jti)
	duration := time.Since(start)
	if err != nil {
		s.metrics.RecordCacheOperation(false, duration)
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("blacklist cache lookup failed", zap.String("jti", jti), zap.Error(err))
		}
		return false
	}
	s.metrics.RecordCacheOperation(hit, duration)
	return hit
}

// Remember caches a revocation until expiresAt. Failures are logged only.
func (s *CacheService) Remember(ctx context.Context, jti string, expiresAt time.Time) {
	if !s.Enabled() {
		return
	}
	if err := s.repo.MarkBlacklisted(ctx, jti, expiresAt); err != nil {
		s.logger.Warn("blacklist cache write failed", zap.String("jti", jti), zap.Error(err))
	}
}
