package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	m := New()
	require.NotNil(t, m)
	assert.NotNil(t, m.Registry())
}

func TestCounters(t *testing.T) {
	m := New()

	m.SessionsTotal.Inc()
	m.SessionsActive.Set(1)
	m.CommandsTotal.WithLabelValues("plain").Inc()
	m.CommandsTotal.WithLabelValues("chdir").Inc()
	m.PublishesTotal.WithLabelValues("final").Inc()
	m.BusyRejectionsTotal.Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SessionsActive))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.CommandsTotal.WithLabelValues("plain")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BusyRejectionsTotal))
}

func TestHandler(t *testing.T) {
	m := New()
	m.SessionsActive.Set(2)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "telsh_sessions_active 2")
}
