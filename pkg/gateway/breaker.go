package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrAuthorityUnavailable is returned while the circuit is open, mapped to
// 503 by the pipeline (spec §4.3 "Circuit breaker for Authority lookups").
var ErrAuthorityUnavailable = errors.New("gateway: authority circuit open")

// NewResolveBreaker wraps resolveSession calls: it opens after threshold
// consecutive failures and stays open for resetInterval, matching spec
// §4.3's "first successful call after the window closes resets the
// counter" (gobreaker's half-open probe implements exactly that).
func NewResolveBreaker(threshold uint32, resetInterval time.Duration) *gobreaker.CircuitBreaker[SessionCacheEntry] {
	settings := gobreaker.Settings{
		Name:        "authority-resolve-session",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     resetInterval,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	}
	return gobreaker.NewCircuitBreaker[SessionCacheEntry](settings)
}

// ResolveThroughBreaker calls the Authority client through breaker,
// translating an open circuit to ErrAuthorityUnavailable.
func ResolveThroughBreaker(ctx context.Context, breaker *gobreaker.CircuitBreaker[SessionCacheEntry], client AuthorityResolveClient, token string) (SessionCacheEntry, error) {
	entry, err := breaker.Execute(func() (SessionCacheEntry, error) {
		return client.ResolveSession(ctx, token)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return SessionCacheEntry{}, ErrAuthorityUnavailable
	}
	return entry, err
}
