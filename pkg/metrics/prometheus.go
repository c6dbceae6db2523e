package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics holds all Prometheus metrics for the fusion pipeline.
type PipelineMetrics struct {
	InvocationsTotal  *prometheus.CounterVec
	InvocationLatency *prometheus.HistogramVec
	RetriesTotal      *prometheus.CounterVec

	TokensInputTotal  *prometheus.CounterVec
	TokensOutputTotal *prometheus.CounterVec
	CostTotal         *prometheus.CounterVec

	SelectionTotal      *prometheus.CounterVec
	SelectionCacheHits  prometheus.Counter
	SelectionCacheMiss  prometheus.Counter
	FusionTotal         *prometheus.CounterVec
	ScoreCorrections    *prometheus.CounterVec
	StageLatency        *prometheus.HistogramVec
	StageSkippedTotal   *prometheus.CounterVec
}

// New registers pipeline metrics on the given registerer. A nil
// registerer uses the default one.
func New(reg prometheus.Registerer) *PipelineMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PipelineMetrics{
		InvocationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fusion_invocations_total",
				Help: "Total worker invocations by settled status",
			},
			[]string{"worker", "status"},
		),
		InvocationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fusion_invocation_latency_seconds",
				Help:    "Worker invocation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"worker"},
		),
		RetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fusion_retries_total",
				Help: "Retry attempts beyond the first, per worker",
			},
			[]string{"worker"},
		),
		TokensInputTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fusion_tokens_input_total",
				Help: "Prompt tokens sent per worker",
			},
			[]string{"worker"},
		),
		TokensOutputTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fusion_tokens_output_total",
				Help: "Completion tokens received per worker",
			},
			[]string{"worker"},
		),
		CostTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fusion_cost_total",
				Help: "Accumulated cost per worker",
			},
			[]string{"worker", "currency"},
		),
		SelectionTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fusion_selection_total",
				Help: "Selection decisions by method (reasoned or fallback)",
			},
			[]string{"method"},
		),
		SelectionCacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fusion_selection_cache_hits_total",
				Help: "Selection cache hits",
			},
		),
		SelectionCacheMiss: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "fusion_selection_cache_misses_total",
				Help: "Selection cache misses",
			},
		),
		FusionTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fusion_fusion_total",
				Help: "Fusion outcomes by mode (fused, passthrough, degraded)",
			},
			[]string{"mode"},
		),
		ScoreCorrections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fusion_score_corrections_total",
				Help: "Scoring consistency corrections by kind",
			},
			[]string{"kind"},
		),
		StageLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fusion_stage_latency_seconds",
				Help:    "Pipeline stage latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		StageSkippedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fusion_stage_skipped_total",
				Help: "Optional stages skipped after internal failure",
			},
			[]string{"stage"},
		),
	}
}

// ObserveInvocation records one settled invocation.
func (m *PipelineMetrics) ObserveInvocation(worker, status string, latency time.Duration, attempts int) {
	m.InvocationsTotal.WithLabelValues(worker, status).Inc()
	m.InvocationLatency.WithLabelValues(worker).Observe(latency.Seconds())
	if attempts > 1 {
		m.RetriesTotal.WithLabelValues(worker).Add(float64(attempts - 1))
	}
}

// ObserveUsage records token and cost accounting for one successful
// invocation.
func (m *PipelineMetrics) ObserveUsage(worker string, inputTokens, outputTokens int, cost float64, currency string) {
	m.TokensInputTotal.WithLabelValues(worker).Add(float64(inputTokens))
	m.TokensOutputTotal.WithLabelValues(worker).Add(float64(outputTokens))
	if cost > 0 {
		m.CostTotal.WithLabelValues(worker, currency).Add(cost)
	}
}

// ObserveStage records stage duration.
func (m *PipelineMetrics) ObserveStage(stage string, d time.Duration) {
	m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
}
