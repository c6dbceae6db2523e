package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/snow-ghost/fusion/core"
	"github.com/snow-ghost/fusion/pkg/cost"
	"github.com/snow-ghost/fusion/pkg/limiter"
	"github.com/snow-ghost/fusion/pkg/metrics"
)

// Config holds dispatch settings.
type Config struct {
	ConcurrencyCap int           // max in-flight invocations, independent of how many workers were selected
	AttemptTimeout time.Duration // budget for a single attempt
	OverallTimeout time.Duration // budget for the whole dispatch
}

// DefaultConfig returns the default dispatch configuration.
func DefaultConfig() Config {
	return Config{
		ConcurrencyCap: 4,
		AttemptTimeout: 60 * time.Second,
		OverallTimeout: 3 * time.Minute,
	}
}

// Dispatcher invokes every selected worker concurrently and always
// settles exactly one InvocationResult per worker. A panic, error or
// timeout in one invocation never disturbs the others.
type Dispatcher struct {
	invoker    core.Invoker
	protection *limiter.Protection
	costs      *cost.Calculator
	metrics    *metrics.PipelineMetrics
	config     Config
	logger     *zap.Logger
}

// New creates a dispatcher. costs and m may be nil.
func New(invoker core.Invoker, protection *limiter.Protection, costs *cost.Calculator, m *metrics.PipelineMetrics, config Config, logger *zap.Logger) *Dispatcher {
	if config.ConcurrencyCap <= 0 {
		config.ConcurrencyCap = DefaultConfig().ConcurrencyCap
	}
	if config.AttemptTimeout <= 0 {
		config.AttemptTimeout = DefaultConfig().AttemptTimeout
	}
	if config.OverallTimeout <= 0 {
		config.OverallTimeout = DefaultConfig().OverallTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		invoker:    invoker,
		protection: protection,
		costs:      costs,
		metrics:    m,
		config:     config,
		logger:     logger,
	}
}

// Dispatch sends the prompt to every worker in the decision. The
// returned slice has one entry per worker, in decision order.
func (d *Dispatcher) Dispatch(ctx context.Context, prompt string, decision core.SelectionDecision) []core.InvocationResult {
	ctx, cancel := context.WithTimeout(ctx, d.config.OverallTimeout)
	defer cancel()

	workers := decision.Workers
	results := make([]core.InvocationResult, len(workers))
	sem := semaphore.NewWeighted(int64(d.config.ConcurrencyCap))

	var wg sync.WaitGroup
	for i, w := range workers {
		wg.Add(1)
		go func(slot int, workerID string) {
			defer wg.Done()
			results[slot] = d.invokeOne(ctx, sem, workerID, prompt)
		}(i, w.WorkerID)
	}
	wg.Wait()

	return results
}

// invokeOne runs a single worker invocation to a settled result. Each
// goroutine writes only its own slot, so no locking is needed.
func (d *Dispatcher) invokeOne(ctx context.Context, sem *semaphore.Weighted, workerID, prompt string) (result core.InvocationResult) {
	start := time.Now()
	result = core.InvocationResult{WorkerID: workerID, Status: core.StatusFailure}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("worker invocation panicked",
				zap.String("worker", workerID),
				zap.Any("panic", r),
			)
			result = core.InvocationResult{
				WorkerID: workerID,
				Status:   core.StatusFailure,
				Error:    "invocation panicked",
				Latency:  time.Since(start),
			}
		}
		if d.metrics != nil {
			d.metrics.ObserveInvocation(workerID, string(result.Status), result.Latency, result.Attempts)
		}
	}()

	if err := sem.Acquire(ctx, 1); err != nil {
		result = d.settle(workerID, core.Answer{}, 0, err, start)
		return result
	}
	defer sem.Release(1)

	fn := func(ctx context.Context) (interface{}, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, d.config.AttemptTimeout)
		defer cancel()
		return d.invoker.Invoke(attemptCtx, workerID, prompt)
	}

	var answer core.Answer
	var raw interface{}
	var attempts int
	var err error
	if d.protection != nil {
		raw, attempts, err = d.protection.Execute(ctx, workerID, fn)
	} else {
		raw, err = fn(ctx)
		attempts = 1
	}
	if raw != nil {
		answer, _ = raw.(core.Answer)
	}

	result = d.settle(workerID, answer, attempts, err, start)
	return result
}

func (d *Dispatcher) settle(workerID string, answer core.Answer, attempts int, err error, start time.Time) core.InvocationResult {
	result := core.InvocationResult{
		WorkerID: workerID,
		Usage:    answer.Usage,
		Latency:  time.Since(start),
		Attempts: attempts,
	}

	switch {
	case err == nil:
		result.Status = core.StatusSuccess
		result.Answer = answer.Text
	case errors.Is(err, context.DeadlineExceeded):
		result.Status = core.StatusTimeout
		result.Error = err.Error()
	default:
		result.Status = core.StatusFailure
		result.Error = err.Error()
	}

	if result.Succeeded() && d.costs != nil {
		if cr, costErr := d.costs.ForWorker(workerID, result.Usage); costErr == nil {
			result.Cost = cr.TotalCost
			if d.metrics != nil {
				d.metrics.ObserveUsage(workerID, cr.InputTokens, cr.OutputTokens, cr.TotalCost, cr.Currency)
			}
		}
	}

	if !result.Succeeded() {
		d.logger.Warn("worker invocation did not succeed",
			zap.String("worker", workerID),
			zap.String("status", string(result.Status)),
			zap.String("error", result.Error),
			zap.Int("attempts", result.Attempts),
		)
	}
	return result
}
