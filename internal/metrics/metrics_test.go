package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.Login(true)
	m.Login(false)
	m.Login(false)
	m.TransactionOp("create")
	m.SessionsSwept(3)
	m.SessionsSwept(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.logins.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transactions.WithLabelValues("create")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.swept))
}

func TestHandlerExposesSessionGauge(t *testing.T) {
	m := New()
	m.RegisterSessionGauge(func(context.Context) (int, error) { return 4, nil })
	m.ObserveRequest(http.MethodGet, "/health", http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "finance_tracker_sessions_active 4")
	assert.Contains(t, string(body), `finance_tracker_http_requests_total{code="200",method="GET",route="/health"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.Login(true)
		m.TransactionOp("delete")
		m.SessionsSwept(1)
		m.ObserveRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
		m.RegisterSessionGauge(nil)
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
