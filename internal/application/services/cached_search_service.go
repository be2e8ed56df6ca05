package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/to-ny/medsearch-sub001/internal/domain/entities"
	"github.com/to-ny/medsearch-sub001/internal/domain/providers"
	"github.com/to-ny/medsearch-sub001/internal/infrastructure/observability"
	"github.com/to-ny/medsearch-sub001/pkg/utils"
)

// SearchService answers federated search queries
type SearchService interface {
	Search(ctx context.Context, q entities.SearchQuery) (*entities.SearchResponse, error)
}

// CachedSearchService wraps a SearchService with a short-lived response
// cache and collapses identical concurrent queries into one execution.
type CachedSearchService struct {
	next         SearchService
	cache        providers.CacheProvider
	ttl          time.Duration
	defaultLimit int
	group        singleflight.Group
}

var (
	cacheLookupsOnce sync.Once
	cacheLookups     metric.Int64Counter
)

func initCacheLookups() {
	meter := otel.Meter("medsearch-search")
	c, err := meter.Int64Counter(
		"search.cache.lookups",
		metric.WithDescription("Search response cache lookups by outcome"),
	)
	if err != nil {
		return
	}
	cacheLookups = c
}

// NewCachedSearchService creates a caching wrapper around next. A nil cache
// still deduplicates concurrent identical queries.
func NewCachedSearchService(next SearchService, cache providers.CacheProvider, ttl time.Duration, defaultLimit int) *CachedSearchService {
	return &CachedSearchService{
		next:         next,
		cache:        cache,
		ttl:          ttl,
		defaultLimit: defaultLimit,
	}
}

// Search returns a cached response for q when one is fresh, otherwise runs
// the wrapped search once for all concurrent callers with the same key.
func (s *CachedSearchService) Search(ctx context.Context, q entities.SearchQuery) (*entities.SearchResponse, error) {
	logger := observability.LoggerFromContext(ctx)
	key, ok := s.cacheKey(q)
	if !ok {
		return s.next.Search(ctx, q)
	}

	if s.cache != nil {
		data, err := s.cache.Get(ctx, key)
		switch {
		case err == nil:
			var resp entities.SearchResponse
			if err := json.Unmarshal(data, &resp); err == nil {
				recordCacheLookup(ctx, "hit")
				return &resp, nil
			}
			logger.Warn().Str("key", key).Msg("discarding unreadable cached search response")
			if err := s.cache.Delete(ctx, key); err != nil {
				logger.Warn().Err(err).Str("key", key).Msg("failed to evict cached search response")
			}
		case !errors.Is(err, providers.ErrCacheMiss):
			logger.Warn().Err(err).Msg("search cache unavailable")
		}
		recordCacheLookup(ctx, "miss")
	}

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		resp, err := s.next.Search(ctx, q)
		if err != nil {
			return nil, err
		}
		s.store(ctx, key, resp)
		return resp, nil
	})
	if err != nil {
		// The leader's cancellation must not fail a caller that is still
		// waiting with a live context.
		if shared && ctx.Err() == nil && isContextError(err) {
			return s.next.Search(ctx, q)
		}
		return nil, err
	}

	return v.(*entities.SearchResponse), nil
}

func (s *CachedSearchService) store(ctx context.Context, key string, resp *entities.SearchResponse) {
	if s.cache == nil || s.ttl <= 0 || resp.Partial {
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("failed to cache search response")
	}
}

// cacheKey derives a key from the normalized query so that equivalent
// requests share an entry. Queries that cannot be encoded are not cached.
func (s *CachedSearchService) cacheKey(q entities.SearchQuery) (string, bool) {
	q.Text = utils.NormalizeText(q.Text)
	if q.Lang == "" {
		q.Lang = entities.DefaultLanguage
	}
	if q.Limit == 0 {
		q.Limit = s.defaultLimit
	}

	q.Types = append([]entities.EntityKind(nil), q.Types...)
	sort.Slice(q.Types, func(i, j int) bool { return q.Types[i] < q.Types[j] })
	q.Attributes.FormCodes = sortedCopy(q.Attributes.FormCodes)
	q.Attributes.RouteCodes = sortedCopy(q.Attributes.RouteCodes)
	q.Attributes.ReimbursementCategories = sortedCopy(q.Attributes.ReimbursementCategories)

	data, err := json.Marshal(q)
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(data)
	return "search:" + hex.EncodeToString(sum[:]), true
}

func sortedCopy(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := append([]string(nil), values...)
	sort.Strings(out)
	return out
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func recordCacheLookup(ctx context.Context, outcome string) {
	cacheLookupsOnce.Do(initCacheLookups)
	if cacheLookups == nil {
		return
	}
	cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.outcome", outcome)))
}
