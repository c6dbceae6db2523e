package limiter

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryConfig holds retry configuration.
type RetryConfig struct {
	MaxRetries      int           `json:"max_retries"`
	BaseDelay       time.Duration `json:"base_delay"`
	MaxDelay        time.Duration `json:"max_delay"`
	BackoffFactor   float64       `json:"backoff_factor"`
	Jitter          bool          `json:"jitter"`
	RetryableStatus []int         `json:"retryable_status"`
	RetryUnknown    bool          `json:"retry_unknown"` // retry errors without a status code
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:      2,
		BaseDelay:       200 * time.Millisecond,
		MaxDelay:        10 * time.Second,
		BackoffFactor:   2.0,
		Jitter:          true,
		RetryableStatus: []int{429, 500, 502, 503, 504},
		RetryUnknown:    true,
	}
}

// RetryableFunc represents a function that can be retried.
type RetryableFunc func(ctx context.Context) (interface{}, error)

// RetryManager executes functions with exponential backoff.
type RetryManager struct {
	config *RetryConfig
}

// NewRetryManager creates a new retry manager.
func NewRetryManager(config *RetryConfig) *RetryManager {
	if config == nil {
		config = DefaultRetryConfig()
	}
	return &RetryManager{config: config}
}

// Execute runs fn until it succeeds, a non-retryable error occurs, or
// attempts are exhausted. It returns the result and how many attempts
// were made.
func (rm *RetryManager) Execute(ctx context.Context, fn RetryableFunc) (interface{}, int, error) {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= rm.config.MaxRetries; attempt++ {
		attempts++
		result, err := fn(ctx)
		if err == nil {
			return result, attempts, nil
		}
		lastErr = err

		if attempt == rm.config.MaxRetries {
			break
		}
		if !rm.isRetryable(err) {
			return nil, attempts, err
		}

		select {
		case <-ctx.Done():
			return nil, attempts, ctx.Err()
		case <-time.After(rm.calculateDelay(attempt)):
		}
	}

	return nil, attempts, fmt.Errorf("max retries exceeded: %w", lastErr)
}

func (rm *RetryManager) isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		for _, code := range rm.config.RetryableStatus {
			if httpErr.StatusCode == code {
				return true
			}
		}
		return false
	}

	// Errors without a status code are usually transport failures.
	return rm.config.RetryUnknown
}

// calculateDelay computes the backoff for the given attempt:
// baseDelay * factor^attempt, capped at MaxDelay, with ±25% jitter.
func (rm *RetryManager) calculateDelay(attempt int) time.Duration {
	delay := float64(rm.config.BaseDelay) * math.Pow(rm.config.BackoffFactor, float64(attempt))
	if delay > float64(rm.config.MaxDelay) {
		delay = float64(rm.config.MaxDelay)
	}
	if rm.config.Jitter {
		jitter := rand.Float64()*0.5 - 0.25
		delay = delay * (1 + jitter)
	}
	return time.Duration(delay)
}

// HTTPError carries the status code of a failed worker call so retry
// logic can classify it.
type HTTPError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// NewHTTPError builds an HTTPError.
func NewHTTPError(statusCode int, message, body string) *HTTPError {
	return &HTTPError{StatusCode: statusCode, Message: message, Body: body}
}
