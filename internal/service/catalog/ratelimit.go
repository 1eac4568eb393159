package catalog

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// keyedLimiter hands out one token bucket per provider. Providers with a
// published quota get an override, the rest share the default rate.
type keyedLimiter struct {
	mu        sync.RWMutex
	limiters  map[string]*rate.Limiter
	limit     rate.Limit
	burst     int
	overrides map[string]override
}

type override struct {
	limit rate.Limit
	burst int
}

func newKeyedLimiter(rps float64, burst int) *keyedLimiter {
	return &keyedLimiter{
		limiters:  make(map[string]*rate.Limiter),
		limit:     rate.Limit(rps),
		burst:     burst,
		overrides: make(map[string]override),
	}
}

func (kl *keyedLimiter) setLimit(key string, rps float64, burst int) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	kl.overrides[key] = override{limit: rate.Limit(rps), burst: burst}
	delete(kl.limiters, key)
}

// Wait blocks until the provider may be called or ctx is done.
func (kl *keyedLimiter) Wait(ctx context.Context, key string) error {
	return kl.getLimiter(key).Wait(ctx)
}

func (kl *keyedLimiter) getLimiter(key string) *rate.Limiter {
	kl.mu.RLock()
	limiter, exists := kl.limiters[key]
	kl.mu.RUnlock()

	if exists {
		return limiter
	}

	kl.mu.Lock()
	defer kl.mu.Unlock()

	if limiter, exists = kl.limiters[key]; exists {
		return limiter
	}

	limit, burst := kl.limit, kl.burst
	if o, ok := kl.overrides[key]; ok {
		limit, burst = o.limit, o.burst
	}
	limiter = rate.NewLimiter(limit, burst)
	kl.limiters[key] = limiter
	return limiter
}
