package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsAreIndependentPerInstance(t *testing.T) {
	a, b := New(), New()
	a.Cycles.WithLabelValues(CycleInvested).Inc()
	a.InvestmentAttempts.WithLabelValues("rejected").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Cycles.WithLabelValues(CycleInvested)))
	assert.Equal(t, 2.0, testutil.ToFloat64(a.InvestmentAttempts.WithLabelValues("rejected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Cycles.WithLabelValues(CycleInvested)))
}

func TestHandlerServesMetricsAndHealth(t *testing.T) {
	m := New()
	m.LedgerSize.Set(3)
	m.ReconcileDuration.Observe(0.25)

	srv := httptest.NewServer(Handler(m.Registry))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "zonky_ledger_investments 3")
	assert.Contains(t, string(body), "zonky_reconcile_duration_seconds_count 1")
}
