package app

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/kapu/shortlist-go/internal/command"
	"github.com/kapu/shortlist-go/internal/config"
	"github.com/kapu/shortlist-go/internal/constants"
	"github.com/kapu/shortlist-go/internal/domain"
	"github.com/kapu/shortlist-go/internal/prompt"
	"github.com/kapu/shortlist-go/internal/recommend"
	"github.com/kapu/shortlist-go/internal/server"
	"github.com/kapu/shortlist-go/internal/service/ai"
	"github.com/kapu/shortlist-go/internal/service/cache"
	"github.com/kapu/shortlist-go/internal/service/catalog"
	"github.com/kapu/shortlist-go/internal/service/database"
	"github.com/kapu/shortlist-go/internal/service/history"
)

// Container bundles assembled services for constructing the HTTP server.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	Server   *server.Server
	Sessions *server.SessionManager

	factory server.EngineFactory
	closers []func()
}

// NewEngine builds a standalone engine outside the session manager, as the
// terminal chat does.
func (c *Container) NewEngine(id string, category domain.Category, notifier recommend.Notifier) *recommend.Engine {
	return c.factory(recommend.NewSession(id, category), notifier)
}

// Close releases infrastructure in reverse construction order.
func (c *Container) Close() {
	if c == nil {
		return
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Build assembles all infrastructure services. Heavy initialization
// (database, cache, model clients) happens here so the server only
// orchestrates.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (container *Container, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var closers []func()
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	}()

	health := map[string]server.PingFunc{}

	// Persistence
	dbSvc, err := database.NewService(database.Config{
		Driver:     cfg.Store.Driver,
		Host:       cfg.Store.Host,
		Port:       cfg.Store.Port,
		User:       cfg.Store.User,
		Password:   cfg.Store.Password,
		Database:   cfg.Store.Database,
		SSLMode:    cfg.Store.SSLMode,
		SQLitePath: cfg.Store.SQLitePath,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create database service: %w", err)
	}
	closers = append(closers, func() {
		_ = dbSvc.Close()
	})
	if err := dbSvc.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	health["store"] = dbSvc.Ping
	store := history.NewSQLStore(dbSvc, logger)

	// Cover cache (optional)
	var coverCache catalog.CoverCache
	if cfg.Redis.Enabled {
		cacheSvc, cacheErr := cache.NewCacheService(cache.CacheConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if cacheErr != nil {
			logger.Warn("Redis unavailable, covers will be memoized in-process only", zap.Error(cacheErr))
		} else {
			coverCache = cacheSvc
			health["cache"] = cacheSvc.Ping
			closers = append(closers, func() {
				_ = cacheSvc.Close()
			})
		}
	}

	// Catalog resolver
	fetcher := catalog.NewFetcher(&http.Client{}, catalog.FetcherConfig{
		RequestTimeout: cfg.Catalog.RequestTimeout,
		UserAgent:      constants.CatalogConfig.UserAgent,
	}, logger)
	table, err := catalog.NewStrategyTable(ctx, fetcher, catalog.TableOptions{
		RAWGAPIKey:        cfg.Catalog.RAWGAPIKey,
		TMDBAPIKey:        cfg.Catalog.TMDBAPIKey,
		GoogleBooksAPIKey: cfg.Catalog.GoogleBooksAPIKey,
		EnableWikipedia:   cfg.Catalog.EnableWikipedia,
		Endpoints:         catalog.DefaultEndpoints(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog strategies: %w", err)
	}
	resolver, err := catalog.NewResolver(table, coverCache, catalog.ResolverConfig{
		CacheSize:     cfg.Catalog.CacheSize,
		LookupTimeout: cfg.Catalog.LookupTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog resolver: %w", err)
	}

	// AI stack
	modelManager, err := ai.NewModelManager(ctx, ai.ModelManagerConfig{
		GeminiAPIKey:       cfg.Gemini.APIKey,
		OpenAIAPIKey:       cfg.OpenAI.APIKey,
		DefaultGeminiModel: cfg.Gemini.Model,
		DefaultOpenAIModel: cfg.OpenAI.Model,
		EnableFallback:     cfg.OpenAI.EnableFallback,
		Timeout:            cfg.Recommend.GenerationTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create model manager: %w", err)
	}
	probeCtx, probeCancel := context.WithTimeout(ctx, cfg.Recommend.GenerationTimeout)
	if !modelManager.Ping(probeCtx) {
		logger.Warn("No generation provider answered the startup probe")
	}
	probeCancel()
	health["generator"] = func(context.Context) error {
		states := modelManager.CircuitStates()
		for _, state := range states {
			if state != "open" {
				return nil
			}
		}
		return fmt.Errorf("all generation circuits open: %v", states)
	}

	composer := prompt.NewComposer(prompt.DefaultPromptBuilder(), cfg.Recommend.Language, cfg.Recommend.Market, logger)
	engineCfg := recommend.EngineConfig{
		DislikeWindow:  cfg.Recommend.DislikeWindow,
		FavoriteRating: cfg.Recommend.FavoriteRating,
		FactInterval:   cfg.Recommend.FactInterval,
	}

	factory := func(session *recommend.Session, notifier recommend.Notifier) *recommend.Engine {
		return recommend.NewEngine(session, recommend.EngineDeps{
			Generator: modelManager,
			Resolver:  resolver,
			Store:     store,
			Composer:  composer,
			Notifier:  notifier,
			Logger:    logger,
		}, engineCfg)
	}

	sessions := server.NewSessionManager(factory, cfg.Server.SessionTTL, logger)
	srv := server.New(server.Config{
		Addr:              cfg.Server.Addr,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		RequestsPerMinute: cfg.Server.RequestsPerMinute,
	}, sessions, command.NewDefaultRegistry(), health, logger)

	logger.Info("Application assembled",
		zap.String("store", dbSvc.Driver()),
		zap.Bool("redis", coverCache != nil),
		zap.Int("catalog_categories", len(table)),
	)

	return &Container{
		Config:   cfg,
		Logger:   logger,
		Server:   srv,
		Sessions: sessions,
		factory:  factory,
		closers:  closers,
	}, nil
}
