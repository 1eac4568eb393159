package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kapu/shortlist-go/internal/constants"
	"github.com/kapu/shortlist-go/internal/domain"
	"github.com/kapu/shortlist-go/internal/metrics"
	"github.com/kapu/shortlist-go/internal/util"
	apperrors "github.com/kapu/shortlist-go/pkg/errors"
)

// CoverCache is the shared second-level cache. *cache.CacheService
// satisfies it.
type CoverCache interface {
	Cover(ctx context.Context, category domain.Category, titleKey string) (string, bool, error)
	StoreCover(ctx context.Context, category domain.Category, titleKey, url string, ttl time.Duration) error
}

type ResolverConfig struct {
	CacheSize     int
	LookupTimeout time.Duration
	CoverTTL      time.Duration
	Workers       int
	Placeholder   string
}

// Resolver maps (title, category) to a cover URL. It never fails: every
// error path ends in the placeholder image.
type Resolver struct {
	table         StrategyTable
	memo          *lru.Cache[string, string]
	cache         CoverCache
	group         singleflight.Group
	lookupTimeout time.Duration
	coverTTL      time.Duration
	workers       int
	placeholder   string
	logger        *zap.Logger
}

// NewResolver builds a resolver. coverCache may be nil.
func NewResolver(table StrategyTable, coverCache CoverCache, cfg ResolverConfig, logger *zap.Logger) (*Resolver, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = constants.CatalogConfig.CacheSize
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = constants.CatalogConfig.LookupTimeout
	}
	if cfg.CoverTTL <= 0 {
		cfg.CoverTTL = constants.CacheTTL.CoverImage
	}
	if cfg.Workers <= 0 {
		cfg.Workers = constants.BatchConfig.Workers
	}
	if cfg.Placeholder == "" {
		cfg.Placeholder = constants.PlaceholderImageURL
	}

	memo, err := lru.New[string, string](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create cover memo: %w", err)
	}

	return &Resolver{
		table:         table,
		memo:          memo,
		cache:         coverCache,
		lookupTimeout: cfg.LookupTimeout,
		coverTTL:      cfg.CoverTTL,
		workers:       cfg.Workers,
		placeholder:   cfg.Placeholder,
		logger:        logger,
	}, nil
}

// Resolve returns a cover URL or the placeholder. Results are memoized for
// the process lifetime and never change once cached.
func (r *Resolver) Resolve(ctx context.Context, title string, category domain.Category) string {
	titleKey := util.TitleKey(title)
	if titleKey == "" {
		return r.placeholder
	}
	key := string(category) + "|" + titleKey

	if cached, ok := r.memo.Get(key); ok {
		metrics.CoverCacheHits.WithLabelValues("memory").Inc()
		return cached
	}

	value, _, _ := r.group.Do(key, func() (any, error) {
		if cached, ok := r.memo.Get(key); ok {
			return cached, nil
		}

		if r.cache != nil {
			cached, found, err := r.cache.Cover(ctx, category, titleKey)
			if err == nil && found {
				metrics.CoverCacheHits.WithLabelValues("redis").Inc()
				r.memo.Add(key, cached)
				return cached, nil
			}
		}

		resolved := r.lookup(ctx, title, category)
		if resolved == r.placeholder && ctx.Err() != nil {
			// caller went away; let the next request retry
			return resolved, nil
		}
		r.memo.Add(key, resolved)

		if resolved == r.placeholder {
			metrics.CoverPlaceholders.WithLabelValues(string(category)).Inc()
		} else if r.cache != nil {
			if err := r.cache.StoreCover(ctx, category, titleKey, resolved, r.coverTTL); err != nil {
				r.logger.Debug("Cover cache write skipped", zap.String("title", title), zap.Error(err))
			}
		}
		return resolved, nil
	})

	resolved, ok := value.(string)
	if !ok || resolved == "" {
		return r.placeholder
	}
	return resolved
}

func (r *Resolver) lookup(ctx context.Context, title string, category domain.Category) string {
	ctx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	for _, strategy := range r.table[category] {
		if ctx.Err() != nil {
			break
		}

		start := time.Now()
		imageURL, err := safeLookup(ctx, strategy, title, category)
		elapsed := time.Since(start)

		switch {
		case err == nil:
			metrics.RecordCatalogLookup(strategy.Name(), "hit", elapsed)
			return imageURL
		case errors.Is(err, ErrNoResult):
			metrics.RecordCatalogLookup(strategy.Name(), "empty", elapsed)
		default:
			metrics.RecordCatalogLookup(strategy.Name(), "error", elapsed)
			lookupErr := apperrors.NewCatalogLookupError("catalog lookup failed", strategy.Name(), title, err)
			r.logger.Debug("Catalog lookup failed, falling through",
				zap.String("category", category.String()),
				zap.Error(lookupErr),
			)
		}
	}

	return r.placeholder
}

func safeLookup(ctx context.Context, strategy Strategy, title string, category domain.Category) (imageURL string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("strategy %s panicked: %v", strategy.Name(), rec)
		}
	}()
	return strategy.Lookup(ctx, title, category)
}
