package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveInvocationCountsRetries(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveInvocation("w1", "success", 100*time.Millisecond, 3)
	m.ObserveInvocation("w1", "failure", 50*time.Millisecond, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.InvocationsTotal.WithLabelValues("w1", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InvocationsTotal.WithLabelValues("w1", "failure")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RetriesTotal.WithLabelValues("w1")))
}

func TestSelectionAndFusionCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SelectionTotal.WithLabelValues("fallback").Inc()
	m.FusionTotal.WithLabelValues("passthrough").Inc()
	m.ScoreCorrections.WithLabelValues("score_spread").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SelectionTotal.WithLabelValues("fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FusionTotal.WithLabelValues("passthrough")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScoreCorrections.WithLabelValues("score_spread")))
}
