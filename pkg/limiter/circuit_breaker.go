package limiter

import (
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds circuit breaker configuration.
type BreakerConfig struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	ReadyToTrip func(counts gobreaker.Counts) bool
}

// DefaultBreakerConfig opens the circuit once at least 5 calls were
// made and half of them failed.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
	}
}

// BreakerGroup keeps one circuit breaker per worker so one failing
// worker cannot poison calls to the others.
type BreakerGroup struct {
	config   *BreakerConfig
	logger   *zap.Logger
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewBreakerGroup creates a breaker group with the given config.
func NewBreakerGroup(config *BreakerConfig, logger *zap.Logger) *BreakerGroup {
	if config == nil {
		config = DefaultBreakerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BreakerGroup{
		config:   config,
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (g *BreakerGroup) breaker(workerID string) *gobreaker.CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()

	if b, ok := g.breakers[workerID]; ok {
		return b
	}
	b := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "worker-" + workerID,
		MaxRequests: g.config.MaxRequests,
		Interval:    g.config.Interval,
		Timeout:     g.config.Timeout,
		ReadyToTrip: g.config.ReadyToTrip,
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	g.breakers[workerID] = b
	return b
}

// Execute runs fn through the worker's breaker.
func (g *BreakerGroup) Execute(workerID string, fn func() (interface{}, error)) (interface{}, error) {
	return g.breaker(workerID).Execute(fn)
}

// IsOpen reports whether the worker's breaker is currently open.
func (g *BreakerGroup) IsOpen(workerID string) bool {
	return g.breaker(workerID).State() == gobreaker.StateOpen
}

// State returns the breaker state for a worker.
func (g *BreakerGroup) State(workerID string) gobreaker.State {
	return g.breaker(workerID).State()
}

// Reset drops the breaker for a worker, returning it to closed.
func (g *BreakerGroup) Reset(workerID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.breakers, workerID)
}
