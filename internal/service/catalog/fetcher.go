package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/kapu/shortlist-go/internal/constants"
)

const maxBodyBytes = 2 << 20

// StatusError is a non-2xx answer from a catalog.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Fetcher performs rate-limited, breaker-guarded GETs against catalogs.
type Fetcher struct {
	client         *http.Client
	limiter        *keyedLimiter
	userAgent      string
	requestTimeout time.Duration
	logger         *zap.Logger

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[[]byte]
}

type FetcherConfig struct {
	RequestTimeout time.Duration
	UserAgent      string
}

func NewFetcher(client *http.Client, cfg FetcherConfig, logger *zap.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = constants.CatalogConfig.RequestTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = constants.CatalogConfig.UserAgent
	}

	limiter := newKeyedLimiter(constants.RateLimits.DefaultRPS, constants.RateLimits.Burst)
	limiter.setLimit(ProviderJikan, constants.RateLimits.JikanRPS, constants.RateLimits.JikanBurst)

	return &Fetcher{
		client:         client,
		limiter:        limiter,
		userAgent:      cfg.UserAgent,
		requestTimeout: cfg.RequestTimeout,
		logger:         logger,
		breakers:       make(map[string]*gobreaker.CircuitBreaker[[]byte]),
	}
}

// Get returns the body of a 2xx response. Each call has its own timeout.
// Entries in header replace the defaults.
func (f *Fetcher) Get(ctx context.Context, provider, rawURL string, header http.Header) ([]byte, error) {
	return f.Call(ctx, provider, func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", f.userAgent)
		req.Header.Set("Accept", "application/json")
		for key, values := range header {
			req.Header[key] = values
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
			return nil, &StatusError{StatusCode: resp.StatusCode, URL: req.URL.Redacted()}
		}

		return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	})
}

// Call runs fn under the provider's rate limit, breaker and request timeout.
// SDK-backed strategies use it directly.
func (f *Fetcher) Call(ctx context.Context, provider string, fn func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, f.requestTimeout)
	defer cancel()

	if err := f.limiter.Wait(ctx, provider); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	return f.breaker(provider).Execute(func() ([]byte, error) {
		return fn(ctx)
	})
}

// HTTPClient exposes the shared client for SDK-based strategies.
func (f *Fetcher) HTTPClient() *http.Client {
	return f.client
}

func (f *Fetcher) breaker(provider string) *gobreaker.CircuitBreaker[[]byte] {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cb, ok := f.breakers[provider]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        provider,
		MaxRequests: 1,
		Interval:    constants.CircuitBreakerConfig.Interval,
		Timeout:     constants.CircuitBreakerConfig.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= constants.CircuitBreakerConfig.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.logger.Info("Catalog circuit state changed",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isOutage(err)
		},
	})
	f.breakers[provider] = cb
	return cb
}

// isOutage is true for transport errors, timeouts, 5xx and 429.
func isOutage(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled)
}
