package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kapu/shortlist-go/internal/domain"
	apperrors "github.com/kapu/shortlist-go/pkg/errors"
)

const keyPrefix = "shortlist:"

// CacheService is the Redis-backed cover store shared by every process.
type CacheService struct {
	client *redis.Client
	logger *zap.Logger
}

type CacheConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewCacheService connects and pings once; an unreachable server is an error.
func NewCacheService(cfg CacheConfig, logger *zap.Logger) (*CacheService, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   2,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, apperrors.NewCacheError("redis unreachable", "ping", addr, err)
	}

	logger.Info("Cover cache connected", zap.String("addr", addr), zap.Int("db", cfg.DB))
	return &CacheService{client: client, logger: logger}, nil
}

// CoverKey is the Redis key of a resolved cover for a folded title.
func CoverKey(category, titleKey string) string {
	return fmt.Sprintf("%scover:%s:%s", keyPrefix, category, titleKey)
}

// Cover returns the cached URL. found is false on a miss.
func (c *CacheService) Cover(ctx context.Context, category domain.Category, titleKey string) (string, bool, error) {
	key := CoverKey(string(category), titleKey)
	url, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		c.logger.Debug("Cover cache read failed", zap.String("key", key), zap.Error(err))
		return "", false, apperrors.NewCacheError("cover read failed", "get", key, err)
	}
	return url, url != "", nil
}

// StoreCover writes url unless a cover is already cached. Covers never
// change once stored.
func (c *CacheService) StoreCover(ctx context.Context, category domain.Category, titleKey, url string, ttl time.Duration) error {
	key := CoverKey(string(category), titleKey)
	err := c.client.SetArgs(ctx, key, url, redis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.logger.Debug("Cover cache write failed", zap.String("key", key), zap.Error(err))
		return apperrors.NewCacheError("cover write failed", "set", key, err)
	}
	return nil
}

func (c *CacheService) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *CacheService) Close() error {
	if err := c.client.Close(); err != nil {
		return apperrors.NewCacheError("close failed", "close", "", err)
	}
	c.logger.Info("Cover cache closed")
	return nil
}
