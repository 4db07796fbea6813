package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Trigger("namespaces")
	m.Trigger("namespaces")
	m.Trigger("duration")
	m.Submitted()
	m.Coalesced()
	m.Deduplicated()
	m.FetchDone("success", 200*time.Millisecond)
	m.FetchDone("error", time.Second)
	m.RenderError()
	m.SSEClients(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.triggers.WithLabelValues("namespaces")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.triggers.WithLabelValues("duration")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.coalesced))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deduplicated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.results.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.renderErrors))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sseClients))

	n, err := testutil.GatherAndCount(reg, "meshgraph_fetch_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInitTriggers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.InitTriggers("namespaces", "duration")
	n, err := testutil.GatherAndCount(reg, "meshgraph_refresh_triggers_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Zero(t, testutil.ToFloat64(m.triggers.WithLabelValues("namespaces")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.InitTriggers("x")
		m.Trigger("x")
		m.Submitted()
		m.Coalesced()
		m.Deduplicated()
		m.FetchDone("success", time.Second)
		m.RenderError()
		m.SSEClients(1)
	})
}
