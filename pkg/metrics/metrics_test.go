package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("navigate", "ok", time.Second)
	m.SessionCreated()
	m.SessionClosed(true, true)
	m.ObservePoolWait(time.Millisecond)
}

func TestSessionLifecycleCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SessionCreated()
	m.SessionCreated()
	m.SessionClosed(false, false)
	m.SessionClosed(false, true)

	assert.Equal(t, 0.0, testutil.ToFloat64(m.SessionsLive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SessionsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsFaulted))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SessionsReaped))
}

func TestObserveRequestLabels(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRequest("navigate", "ok", 100*time.Millisecond)
	m.ObserveRequest("navigate", "EngineFault", 50*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("navigate", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("navigate", "EngineFault")))
}
