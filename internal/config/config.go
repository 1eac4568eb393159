package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kapu/shortlist-go/internal/constants"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Redis     RedisConfig
	Gemini    GeminiConfig
	OpenAI    OpenAIConfig
	Catalog   CatalogConfig
	Recommend RecommendConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Addr              string
	AllowedOrigins    []string
	RequestsPerMinute int
	SessionTTL        time.Duration
}

type StoreConfig struct {
	Driver     string // postgres | sqlite
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	SSLMode    string
	SQLitePath string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type OpenAIConfig struct {
	APIKey         string
	Model          string
	EnableFallback bool
}

type CatalogConfig struct {
	RAWGAPIKey        string
	TMDBAPIKey        string
	GoogleBooksAPIKey string
	RequestTimeout    time.Duration
	LookupTimeout     time.Duration
	CacheSize         int
	EnableWikipedia   bool
}

type RecommendConfig struct {
	DislikeWindow     time.Duration
	FavoriteRating    int
	Language          string
	Market            string
	GenerationTimeout time.Duration
	FactInterval      time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
	File   string
}

// Load reads the environment (and .env if present) and validates the result.
func Load() (*Config, error) {
	cfg := Parse()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Parse reads the environment without validating it. The migrate command
// uses it because it needs only the store section.
func Parse() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Addr:              getEnv("SERVER_ADDR", ":8080"),
			AllowedOrigins:    parseCommaSeparated(getEnv("SERVER_ALLOWED_ORIGINS", "*")),
			RequestsPerMinute: getEnvInt("SERVER_REQUESTS_PER_MINUTE", 120),
			SessionTTL:        getEnvDuration("SESSION_TTL", constants.CacheTTL.Session),
		},
		Store: StoreConfig{
			Driver:     strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
			Host:       getEnv("POSTGRES_HOST", "localhost"),
			Port:       getEnvInt("POSTGRES_PORT", 5432),
			User:       getEnv("POSTGRES_USER", "shortlist"),
			Password:   getEnv("POSTGRES_PASSWORD", ""),
			Database:   getEnv("POSTGRES_DB", "shortlist"),
			SSLMode:    getEnv("POSTGRES_SSLMODE", "disable"),
			SQLitePath: getEnv("SQLITE_PATH", "data/shortlist.db"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			Model:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			EnableFallback: getEnvBool("OPENAI_ENABLE_FALLBACK", true),
		},
		Catalog: CatalogConfig{
			RAWGAPIKey:        getEnv("RAWG_API_KEY", ""),
			TMDBAPIKey:        getEnv("TMDB_API_KEY", ""),
			GoogleBooksAPIKey: getEnv("GOOGLE_BOOKS_API_KEY", ""),
			RequestTimeout:    getEnvDuration("CATALOG_REQUEST_TIMEOUT", constants.CatalogConfig.RequestTimeout),
			LookupTimeout:     getEnvDuration("CATALOG_LOOKUP_TIMEOUT", constants.CatalogConfig.LookupTimeout),
			CacheSize:         getEnvInt("CATALOG_CACHE_SIZE", constants.CatalogConfig.CacheSize),
			EnableWikipedia:   getEnvBool("CATALOG_ENABLE_WIKIPEDIA", true),
		},
		Recommend: RecommendConfig{
			DislikeWindow:     time.Duration(getEnvInt("RECOMMEND_DISLIKE_WINDOW_DAYS", 14)) * 24 * time.Hour,
			FavoriteRating:    getEnvInt("RECOMMEND_FAVORITE_RATING", constants.GenerationConfig.FavoriteRating),
			Language:          getEnv("RECOMMEND_LANGUAGE", "français"),
			Market:            getEnv("RECOMMEND_MARKET", "France"),
			GenerationTimeout: getEnvDuration("RECOMMEND_GENERATION_TIMEOUT", constants.GenerationConfig.Timeout),
			FactInterval:      getEnvDuration("RECOMMEND_FACT_INTERVAL", constants.GenerationConfig.FactInterval),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
			File:   getEnv("LOG_FILE", ""),
		},
	}
}

func (c *Config) Validate() error {
	if c.Gemini.APIKey == "" && c.OpenAI.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY or OPENAI_API_KEY is required")
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if c.Recommend.DislikeWindow <= 0 {
		return fmt.Errorf("RECOMMEND_DISLIKE_WINDOW_DAYS must be positive")
	}
	if r := c.Recommend.FavoriteRating; r < 1 || r > constants.GenerationConfig.MaxRating {
		return fmt.Errorf("RECOMMEND_FAVORITE_RATING must be between 1 and %d", constants.GenerationConfig.MaxRating)
	}
	if c.Catalog.CacheSize <= 0 {
		return fmt.Errorf("CATALOG_CACHE_SIZE must be positive")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("SERVER_ADDR is required")
	}
	return nil
}

func (s StoreConfig) Validate() error {
	switch s.Driver {
	case "postgres":
		if s.Host == "" || s.Database == "" {
			return fmt.Errorf("POSTGRES_HOST and POSTGRES_DB are required for the postgres store")
		}
	case "sqlite":
		if s.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite store")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", s.Driver)
	}
	return nil
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func parseCommaSeparated(value string) []string {
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
