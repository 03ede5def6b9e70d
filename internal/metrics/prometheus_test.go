package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.EventDispatched(1, 2)
	m.EventSkipped()
	m.AgentFault()
	m.Order("venue_0", "accepted")
	m.Execution("venue_0", "ABM", 3)
	m.FeeRevenue("venue_0", 4)
}

func TestCountersFromCollector(t *testing.T) {
	m := New(map[string]string{"scenario": "test"})
	c := NewCollector(m)
	for _, r := range sampleRecords() {
		require.NoError(t, c.Write(r))
	}
	m.EventDispatched(500, 7)
	m.EventSkipped()
	m.AgentFault()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsDispatched))
	assert.Equal(t, 500.0, testutil.ToFloat64(m.simTime))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.queueDepth))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.orders.WithLabelValues("venue_0", "accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.executions.WithLabelValues("venue_0", "ABM")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.volume.WithLabelValues("venue_0", "ABM")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.feeRevenue.WithLabelValues("venue_0")))
}

func TestHandlerExposesRunLabels(t *testing.T) {
	m := New(map[string]string{"scenario": "dual", "seed": "7"})
	m.EventDispatched(1, 0)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `marketsim_kernel_events_dispatched_total{scenario="dual",seed="7"} 1`), string(body))
}
