package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/snow-ghost/fusion/core"
	"github.com/snow-ghost/fusion/pkg/cache"
	"github.com/snow-ghost/fusion/pkg/catalog"
	"github.com/snow-ghost/fusion/pkg/config"
	"github.com/snow-ghost/fusion/pkg/cost"
	"github.com/snow-ghost/fusion/pkg/dispatch"
	"github.com/snow-ghost/fusion/pkg/fuse"
	"github.com/snow-ghost/fusion/pkg/limiter"
	"github.com/snow-ghost/fusion/pkg/metrics"
	"github.com/snow-ghost/fusion/pkg/persona"
	"github.com/snow-ghost/fusion/pkg/scoring"
	"github.com/snow-ghost/fusion/pkg/selector"
	"github.com/snow-ghost/fusion/pkg/tracing"
)

// Options bundles the pipeline's dependencies. Catalog, Invoker and
// Config are required; the rest default to no-ops.
type Options struct {
	Config  *config.Config
	Catalog *catalog.Catalog
	Invoker core.Invoker
	Metrics *metrics.PipelineMetrics
	Tracer  *tracing.Tracer
	Logger  *zap.Logger
}

// Pipeline runs a query end to end: selection, dispatch, fusion,
// scoring and persona analysis.
type Pipeline struct {
	config     *config.Config
	selector   *selector.Selector
	dispatcher *dispatch.Dispatcher
	fuser      *fuse.Fuser
	scorer     *scoring.Scorer
	persona    *persona.Analyzer
	cache      *cache.SelectionCache
	metrics    *metrics.PipelineMetrics
	tracer     *tracing.Tracer
	logger     *zap.Logger
}

// New wires a pipeline from options.
func New(opts Options) (*Pipeline, error) {
	if opts.Catalog == nil {
		return nil, fmt.Errorf("pipeline requires a catalog")
	}
	if opts.Invoker == nil {
		return nil, fmt.Errorf("pipeline requires an invoker")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Load()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = tracing.NewNopTracer()
	}

	selectionCache, err := cache.NewSelectionCache(cfg.SelectionCache, cfg.SelectionTTL)
	if err != nil {
		return nil, fmt.Errorf("selection cache: %w", err)
	}

	protection := limiter.NewProtection(
		limiter.NewRateLimiter(cfg.RatePerSecond, cfg.RateBurst),
		&limiter.RetryConfig{
			MaxRetries:      cfg.MaxRetries,
			BaseDelay:       cfg.RetryBaseDelay,
			MaxDelay:        cfg.RetryMaxDelay,
			BackoffFactor:   2.0,
			Jitter:          true,
			RetryableStatus: []int{429, 500, 502, 503, 504},
			RetryUnknown:    true,
		},
		nil,
		logger,
	)

	return &Pipeline{
		config: cfg,
		selector: selector.New(opts.Catalog, opts.Invoker, selector.StrategyFor(cfg.PickStrategy),
			selector.Config{K: cfg.WorkerCount, Analyst: cfg.AnalystWorker}, logger),
		dispatcher: dispatch.New(opts.Invoker, protection, cost.NewCalculator(opts.Catalog), opts.Metrics,
			dispatch.Config{
				ConcurrencyCap: cfg.ConcurrencyCap,
				AttemptTimeout: cfg.AttemptTimeout,
				OverallTimeout: cfg.OverallTimeout,
			}, logger),
		fuser: fuse.New(opts.Invoker, cfg.FusionWorker, logger),
		scorer: scoring.New(opts.Invoker, scoring.Config{
			Judge:     cfg.JudgeWorker,
			MinSpread: cfg.MinSpread,
			Tolerance: cfg.Tolerance,
		}, opts.Metrics, logger),
		persona: persona.New(opts.Invoker, persona.Config{
			Judge:         cfg.JudgeWorker,
			MaxSimilarity: cfg.PersonaMaxSimilarity,
		}, logger),
		cache:   selectionCache,
		metrics: opts.Metrics,
		tracer:  tracer,
		logger:  logger,
	}, nil
}

// Run executes the pipeline for one query. A fatal error (no usable
// workers, every invocation failed) returns the bundle as far as it
// got together with the error; scoring and persona failures only mark
// their stage skipped.
func (p *Pipeline) Run(ctx context.Context, query string) (*core.Bundle, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("empty query")
	}

	ctx, runSpan := p.tracer.StartRunSpan(ctx, query)
	bundle := &core.Bundle{Query: query, StartedAt: time.Now()}
	defer func() {
		bundle.Duration = time.Since(bundle.StartedAt)
		runSpan.End()
	}()

	// Selection
	decision, err := p.selectWorkers(ctx, query)
	if err != nil {
		return bundle, err
	}
	bundle.Decision = decision

	// Dispatch
	bundle.Invocations = p.runStage(ctx, core.StageDispatch, func(ctx context.Context) []core.InvocationResult {
		return p.dispatcher.Dispatch(ctx, query, decision)
	})

	// Fusion
	fusionStart := time.Now()
	ctxF, fusionSpan := p.tracer.StartStageSpan(ctx, core.StageFusion)
	fusion, err := p.fuser.Fuse(ctxF, query, decision, bundle.Invocations)
	tracing.EndSpan(fusionSpan, err)
	p.observeStage(core.StageFusion, fusionStart)
	if err != nil {
		var noSuccess *core.NoSuccessError
		if errors.As(err, &noSuccess) {
			p.aggregate(bundle)
			return bundle, err
		}
		return bundle, err
	}
	bundle.Fusion = fusion
	if p.metrics != nil {
		p.metrics.FusionTotal.WithLabelValues(fusionMode(fusion, len(core.Successes(bundle.Invocations)))).Inc()
	}

	// Scoring
	p.scoreBundle(ctx, bundle)

	// Persona
	p.personaBundle(ctx, bundle)

	p.aggregate(bundle)
	return bundle, nil
}

// Answer returns the end-user text of a finished run.
func Answer(bundle *core.Bundle) string {
	return bundle.Fusion.Text
}

func (p *Pipeline) selectWorkers(ctx context.Context, query string) (core.SelectionDecision, error) {
	start := time.Now()
	ctx, span := p.tracer.StartStageSpan(ctx, core.StageSelection)
	defer p.observeStage(core.StageSelection, start)

	if decision, ok := p.cache.Get(query); ok {
		if p.metrics != nil {
			p.metrics.SelectionCacheHits.Inc()
		}
		tracing.EndSpan(span, nil)
		return decision, nil
	}
	if p.metrics != nil {
		p.metrics.SelectionCacheMiss.Inc()
	}

	decision, err := p.selector.Select(ctx, query)
	tracing.EndSpan(span, err)
	if err != nil {
		return core.SelectionDecision{}, err
	}

	p.cache.Put(query, decision)
	if p.metrics != nil {
		p.metrics.SelectionTotal.WithLabelValues(string(decision.Method)).Inc()
	}
	return decision, nil
}

func (p *Pipeline) scoreBundle(ctx context.Context, bundle *core.Bundle) {
	start := time.Now()
	ctx, span := p.tracer.StartStageSpan(ctx, core.StageScoring)
	defer p.observeStage(core.StageScoring, start)

	subjects := make([]scoring.Subject, 0, len(bundle.Invocations)+1)
	for _, r := range core.Successes(bundle.Invocations) {
		subjects = append(subjects, scoring.Subject{ID: r.WorkerID, Text: r.Answer})
	}
	subjects = append(subjects, scoring.Subject{ID: core.FusedSubjectID, Text: bundle.Fusion.Text})

	records, report, err := p.scorer.Score(ctx, bundle.Query, subjects)
	tracing.EndSpan(span, err)
	if err != nil {
		p.skipStage(bundle, core.StageScoring, err)
		return
	}
	bundle.Scores = records
	bundle.Consistency = report
}

func (p *Pipeline) personaBundle(ctx context.Context, bundle *core.Bundle) {
	if !p.config.PersonaEnabled {
		return
	}

	start := time.Now()
	ctx, span := p.tracer.StartStageSpan(ctx, core.StagePersona)
	defer p.observeStage(core.StagePersona, start)

	profiles, err := p.persona.Analyze(ctx, bundle.Query, bundle.Invocations)
	tracing.EndSpan(span, err)
	if err != nil {
		p.skipStage(bundle, core.StagePersona, err)
		return
	}
	bundle.Personas = profiles
}

func (p *Pipeline) runStage(ctx context.Context, stage string, fn func(context.Context) []core.InvocationResult) []core.InvocationResult {
	start := time.Now()
	ctx, span := p.tracer.StartStageSpan(ctx, stage)
	defer p.observeStage(stage, start)
	results := fn(ctx)
	tracing.EndSpan(span, nil)
	return results
}

// skipStage records an optional stage's internal failure without
// failing the run.
func (p *Pipeline) skipStage(bundle *core.Bundle, stage string, err error) {
	p.logger.Warn("stage skipped",
		zap.String("stage", stage),
		zap.Error(err),
	)
	bundle.SkippedStages = append(bundle.SkippedStages, stage)
	if p.metrics != nil {
		p.metrics.StageSkippedTotal.WithLabelValues(stage).Inc()
	}
}

func (p *Pipeline) observeStage(stage string, start time.Time) {
	if p.metrics != nil {
		p.metrics.ObserveStage(stage, time.Since(start))
	}
}

// aggregate sums usage and cost over everything the run spent.
func (p *Pipeline) aggregate(bundle *core.Bundle) {
	var usage core.Usage
	var totalCost float64
	for _, r := range bundle.Invocations {
		usage = usage.Add(r.Usage)
		totalCost += r.Cost
	}
	usage = usage.Add(bundle.Fusion.Usage)
	bundle.TotalUsage = usage
	bundle.TotalCost = totalCost
}

func fusionMode(f core.FusionResult, successCount int) string {
	if !f.Passthrough {
		return "fused"
	}
	if successCount > 1 {
		return "degraded"
	}
	return "passthrough"
}
