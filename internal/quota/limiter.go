// Package quota enforces fixed-window request quotas against a shared
// counter store, so every service instance sees the same remaining
// allotment for a key.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrStoreUnavailable wraps any backing-store failure. The limiter
// fails closed: callers must decline the request, never admit it.
var ErrStoreUnavailable = errors.New("quota: store unavailable")

// Decision is the result of one consume attempt.
type Decision struct {
	// Allowed reports whether a point was consumed.
	Allowed bool
	// Remaining is the allotment left in the current window after this
	// consume. Zero when Allowed is false.
	Remaining int64
	// RetryAfter is the time until the current window resets. Set only
	// on rejection; rejections never extend the window.
	RetryAfter time.Duration
}

// Store atomically checks and consumes one point for a key. A key with
// no live window starts a fresh window with the full allotment. The
// check-and-consume must be indivisible across concurrent callers and
// across service instances.
type Store interface {
	Consume(ctx context.Context, key string, points int64, window time.Duration) (Decision, error)
}

// Limiter applies one quota dimension (origin or wallet) by prefixing
// keys into its own namespace within the shared store.
type Limiter struct {
	store  Store
	prefix string
}

// NewLimiter constructs a limiter writing keys under the given prefix.
func NewLimiter(store Store, prefix string) *Limiter {
	return &Limiter{store: store, prefix: prefix}
}

// Consume spends one point for key under the given allotment and
// window. A zero allotment rejects immediately with the full window as
// the retry hint; no counter state is created for it.
func (l *Limiter) Consume(ctx context.Context, key string, points int64, window time.Duration) (Decision, error) {
	if points <= 0 {
		return Decision{Allowed: false, RetryAfter: window}, nil
	}
	d, err := l.store.Consume(ctx, l.prefix+":"+key, points, window)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return d, nil
}
