package ai

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/kapu/shortlist-go/internal/constants"
	"github.com/kapu/shortlist-go/internal/metrics"
	apperrors "github.com/kapu/shortlist-go/pkg/errors"
)

var (
	statusCodeRegex  = regexp.MustCompile(`\b(5\d{2})\b`)
	geminiCodeRegex  = regexp.MustCompile(`"code":\s*(\d{3})`)
	openaiCodeRegex  = regexp.MustCompile(`^(\d{3})\s`)
	rateLimitMarkers = []string{"429", "Rate limit", "rate limit", "quota", "RESOURCE_EXHAUSTED"}
)

type ModelManager struct {
	primary  *guardedProvider
	fallback *guardedProvider
	timeout  time.Duration
	logger   *zap.Logger
}

type ModelManagerConfig struct {
	GeminiAPIKey       string
	OpenAIAPIKey       string
	DefaultGeminiModel string
	DefaultOpenAIModel string
	EnableFallback     bool
	Timeout            time.Duration
}

// guardedProvider pairs a provider with its own breaker so a failing
// primary does not keep the fallback closed, and vice versa.
type guardedProvider struct {
	provider Provider
	breaker  *gobreaker.CircuitBreaker[Completion]
}

func NewModelManager(ctx context.Context, cfg ModelManagerConfig, logger *zap.Logger) (*ModelManager, error) {
	defaultGemini := cfg.DefaultGeminiModel
	if defaultGemini == "" {
		defaultGemini = "gemini-2.5-flash"
	}

	defaultOpenAI := cfg.DefaultOpenAIModel
	if defaultOpenAI == "" {
		defaultOpenAI = "gpt-4o-mini"
	}

	var primary, fallback Provider

	openaiProvider := NewOpenAIProvider(cfg.OpenAIAPIKey, defaultOpenAI, logger)

	if cfg.GeminiAPIKey != "" {
		geminiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		primary = NewGeminiProvider(geminiClient, defaultGemini, logger)
		if cfg.EnableFallback && openaiProvider != nil {
			fallback = openaiProvider
			logger.Info("OpenAI fallback enabled", zap.String("model", defaultOpenAI))
		} else {
			logger.Info("OpenAI fallback disabled")
		}
	} else if openaiProvider != nil {
		primary = openaiProvider
		logger.Info("Gemini not configured, OpenAI is the primary provider", zap.String("model", defaultOpenAI))
	} else {
		return nil, fmt.Errorf("no text generation provider configured")
	}

	return NewModelManagerWithProviders(primary, fallback, cfg.Timeout, logger), nil
}

// NewModelManagerWithProviders wires explicit providers. fallback may be nil.
func NewModelManagerWithProviders(primary, fallback Provider, timeout time.Duration, logger *zap.Logger) *ModelManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = constants.GenerationConfig.Timeout
	}

	mm := &ModelManager{
		primary: newGuardedProvider(primary, logger),
		timeout: timeout,
		logger:  logger,
	}
	if fallback != nil {
		mm.fallback = newGuardedProvider(fallback, logger)
	}
	return mm
}

func newGuardedProvider(p Provider, logger *zap.Logger) *guardedProvider {
	settings := gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: 1,
		Interval:    constants.CircuitBreakerConfig.Interval,
		Timeout:     constants.CircuitBreakerConfig.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= constants.CircuitBreakerConfig.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("AI circuit state changed",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// Only outages count against the breaker; a 400 is the caller's fault.
		IsSuccessful: func(err error) bool {
			return err == nil || !isServiceFailure(err)
		},
	}
	return &guardedProvider{
		provider: p,
		breaker:  gobreaker.NewCircuitBreaker[Completion](settings),
	}
}

// GenerateBatch completes a batch prompt with the batch preset.
func (mm *ModelManager) GenerateBatch(ctx context.Context, prompt string) (string, error) {
	return mm.generate(ctx, prompt, PresetBatch)
}

// GenerateReplacement completes a single-pick prompt with the tighter preset.
func (mm *ModelManager) GenerateReplacement(ctx context.Context, prompt string) (string, error) {
	return mm.generate(ctx, prompt, PresetReplacement)
}

func (mm *ModelManager) generate(ctx context.Context, prompt string, preset Preset) (string, error) {
	c, err := mm.Complete(ctx, Request{Prompt: prompt, JSON: true, Sampling: SamplingFor(preset)})
	return c.Text, err
}

// Complete returns the first non-empty completion, trying the fallback when
// the primary fails. Any failure is reported as a GenerationTransportError.
func (mm *ModelManager) Complete(ctx context.Context, req Request) (Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, mm.timeout)
	defer cancel()

	c, primaryErr := mm.primary.complete(ctx, req)
	if primaryErr == nil {
		metrics.RecordModelCall(c.Provider, "ok")
		return c, nil
	}
	metrics.RecordModelCall(mm.primary.provider.Name(), "error")

	if mm.fallback == nil {
		return Completion{}, mm.transportError(mm.primary.provider.Name(), primaryErr)
	}

	mm.logger.Warn("Primary provider failed, trying fallback",
		zap.String("provider", mm.primary.provider.Name()),
		zap.Error(primaryErr),
	)

	c, fallbackErr := mm.fallback.complete(ctx, req)
	if fallbackErr == nil {
		metrics.RecordModelCall(c.Provider, "ok")
		c.Fallback = true
		return c, nil
	}
	metrics.RecordModelCall(mm.fallback.provider.Name(), "error")

	return Completion{}, mm.transportError(mm.fallback.provider.Name(), errors.Join(primaryErr, fallbackErr))
}

func (gp *guardedProvider) complete(ctx context.Context, req Request) (Completion, error) {
	return gp.breaker.Execute(func() (Completion, error) {
		c, err := gp.provider.Complete(ctx, req)
		if err != nil {
			return Completion{}, err
		}
		if strings.TrimSpace(c.Text) == "" {
			return Completion{}, fmt.Errorf("%s returned empty response", gp.provider.Name())
		}
		return c, nil
	})
}

func (mm *ModelManager) transportError(provider string, err error) error {
	message := "text generation failed"
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		message = "text generation temporarily unavailable"
	} else if errors.Is(err, context.DeadlineExceeded) {
		message = "text generation timed out"
	}
	mm.logger.Warn("Text generation failed", zap.String("provider", provider), zap.Error(err))
	return apperrors.NewGenerationTransportError(message, provider, err)
}

// CircuitStates reports the breaker state per provider.
func (mm *ModelManager) CircuitStates() map[string]string {
	states := map[string]string{
		mm.primary.provider.Name(): mm.primary.breaker.State().String(),
	}
	if mm.fallback != nil {
		states[mm.fallback.provider.Name()] = mm.fallback.breaker.State().String()
	}
	return states
}

// Ping reports whether any provider answers a tiny probe. It bypasses the
// breakers so a probe never changes their state.
func (mm *ModelManager) Ping(ctx context.Context) bool {
	probe := Request{Prompt: "ping", Sampling: SamplingFor(PresetProbe)}
	for _, gp := range []*guardedProvider{mm.primary, mm.fallback} {
		if gp == nil {
			continue
		}
		if c, err := gp.provider.Complete(ctx, probe); err == nil && strings.TrimSpace(c.Text) != "" {
			return true
		}
	}
	return false
}

func isServiceFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := err.Error()

	if strings.Contains(msg, "timeout") || strings.Contains(msg, "ETIMEDOUT") || strings.Contains(msg, "empty response") {
		return true
	}

	if isRateLimitError(err) {
		return true
	}

	if statusCodeRegex.MatchString(msg) {
		return true
	}

	if code, ok := extractStatusCode(msg); ok {
		return code >= 500 && code < 600
	}

	return false
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}

	code, ok := extractStatusCode(msg)
	return ok && code == 429
}

func extractStatusCode(msg string) (int, bool) {
	for _, re := range []*regexp.Regexp{geminiCodeRegex, openaiCodeRegex} {
		if matches := re.FindStringSubmatch(msg); len(matches) > 1 {
			if code, err := strconv.Atoi(matches[1]); err == nil {
				return code, true
			}
		}
	}
	return 0, false
}
