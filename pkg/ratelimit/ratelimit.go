package ratelimit

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Limiter is an interface for rate limiting functionality.
// Take blocks until the action is allowed or the context is canceled and
// returns how long the caller waited.
type Limiter interface {
	Take(ctx context.Context) time.Duration
}

// Take applies rate limiting to an operation.
func Take(ctx context.Context, l Limiter) {
	l.Take(ctx)
}

// Local is an in-process rate limiter backed by golang.org/x/time/rate.
// A one-shot orchestration run has no peers to coordinate with, so a local
// token bucket is sufficient to stay under the GitLab API limits.
type Local struct {
	*rate.Limiter
}

// NewLocalLimiter creates a local rate limiter with the given sustained and
// burstable requests per second.
func NewLocalLimiter(maximumRPS, burstableRPS int) Limiter {
	return Local{
		Limiter: rate.NewLimiter(rate.Limit(maximumRPS), burstableRPS),
	}
}

// Take blocks until the limiter allows the action to proceed.
func (l Local) Take(ctx context.Context) time.Duration {
	start := time.Now()

	if err := l.Limiter.Wait(ctx); err != nil {
		log.WithContext(ctx).
			WithError(err).
			Fatal()
	}

	return time.Since(start)
}
