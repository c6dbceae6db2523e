package limiter

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Protection composes the global rate limiter, per-worker circuit
// breakers and the retry manager around one worker call.
type Protection struct {
	rate     *RateLimiter
	retry    *RetryManager
	breakers *BreakerGroup
}

// NewProtection wires the three mechanisms together.
func NewProtection(rate *RateLimiter, retryCfg *RetryConfig, breakerCfg *BreakerConfig, logger *zap.Logger) *Protection {
	if rate == nil {
		rate = NewRateLimiter(0, 0)
	}
	return &Protection{
		rate:     rate,
		retry:    NewRetryManager(retryCfg),
		breakers: NewBreakerGroup(breakerCfg, logger),
	}
}

// Execute runs fn for a worker under rate limiting, breaker and retry.
// The returned int is the number of attempts made (0 when the call was
// rejected before the first attempt).
func (p *Protection) Execute(ctx context.Context, workerID string, fn RetryableFunc) (interface{}, int, error) {
	if p.breakers.IsOpen(workerID) {
		return nil, 0, fmt.Errorf("circuit breaker open for worker %s", workerID)
	}

	if err := p.rate.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("rate limit wait: %w", err)
	}

	var attempts int
	result, err := p.breakers.Execute(workerID, func() (interface{}, error) {
		res, n, execErr := p.retry.Execute(ctx, fn)
		attempts = n
		return res, execErr
	})
	if err != nil {
		return nil, attempts, err
	}
	return result, attempts, nil
}

// BreakerOpen reports whether the worker's breaker is open.
func (p *Protection) BreakerOpen(workerID string) bool {
	return p.breakers.IsOpen(workerID)
}
