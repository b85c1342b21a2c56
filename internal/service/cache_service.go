package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/course-registration/pkg/errors"
)

// reportKeyPrefix namespaces every cached report so a mutation can drop them
// all with one pattern.
const reportKeyPrefix = "registration:"

// CacheRepository stores JSON-encodable report payloads. Get returns
// ErrCacheMiss for absent keys.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService is the report cache used by RegistrationService. A nil or
// disabled service turns every call into a no-op.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// ReportKey builds a namespaced cache key from its parts.
func ReportKey(parts ...string) string {
	return reportKeyPrefix + strings.Join(parts, ":")
}

// Get decodes a cached report into dest and reports whether it was found.
// A miss is not an error; store failures are returned so callers can fall
// back to the repositories.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	switch {
	case err == nil:
		s.metrics.RecordCacheLookup(CacheHit, time.Since(start))
		return true, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		s.metrics.RecordCacheLookup(CacheMiss, time.Since(start))
		return false, nil
	default:
		s.metrics.RecordCacheLookup(CacheError, time.Since(start))
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
}

// Set stores a report under key; a non-positive ttl uses the default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheCall("set", time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Invalidate removes cached reports matching a glob pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	start := time.Now()
	err := s.repo.DeleteByPattern(ctx, pattern)
	s.metrics.ObserveCacheCall("invalidate", time.Since(start))
	if err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}

// InvalidateReports drops every cached report.
func (s *CacheService) InvalidateReports(ctx context.Context) error {
	return s.Invalidate(ctx, reportKeyPrefix+"*")
}
