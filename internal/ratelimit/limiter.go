package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// API represents the different external APIs we interact with
type API string

const (
	// APIDart is the filings service: statements and the corp code archive
	APIDart API = "dart"
)

// Limiter manages rate limits for different APIs. An API without a
// configured limit is not limited.
type Limiter struct {
	limiters map[API]*rate.Limiter
	mu       sync.RWMutex
}

// New returns a Limiter without any configured limit
func New() *Limiter {
	return &Limiter{limiters: make(map[API]*rate.Limiter)}
}

// SetLimit allows perSecond requests per second for api with the given
// burst. A non-positive perSecond removes the limit.
func (l *Limiter) SetLimit(api API, perSecond float64, burst int) {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiters[api] = rate.NewLimiter(limit, burst)
}

// Wait blocks until the rate limiter permits an event for the given API
// It returns an error if the context is canceled before the event can proceed
func (l *Limiter) Wait(ctx context.Context, api API) error {
	limiter := l.get(api)
	if limiter == nil {
		return ctx.Err()
	}
	return limiter.Wait(ctx)
}

// Allow reports whether an event for the given API may happen now
func (l *Limiter) Allow(api API) bool {
	limiter := l.get(api)
	if limiter == nil {
		return true
	}
	return limiter.Allow()
}

func (l *Limiter) get(api API) *rate.Limiter {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.limiters[api]
}
