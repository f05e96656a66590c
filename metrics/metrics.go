// metrics/metrics.go
package metrics

import (
	"auto_zonky_go/logs"
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the bot's collectors on a registry of its own, so several instances
// (e.g. in tests) never clash on the global one.
type Metrics struct {
	Registry *prometheus.Registry

	Cycles             *prometheus.CounterVec
	InvestmentAttempts *prometheus.CounterVec
	ReconcileDuration  prometheus.Histogram
	LedgerSize         prometheus.Gauge
	AvailableBalance   prometheus.Gauge
}

// Cycle results.
const (
	CycleInvested = "invested"
	CycleIdle     = "idle"
	CycleFailed   = "failed"
)

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zonky_cycles_total",
			Help: "Investing cycles by result",
		}, []string{"result"}),
		InvestmentAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zonky_investment_attempts_total",
			Help: "Candidate loans by what happened to them",
		}, []string{"outcome"}),
		ReconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "zonky_reconcile_duration_seconds",
			Help:    "Time to rebuild the investment snapshot from blocked amounts",
			Buckets: prometheus.DefBuckets,
		}),
		LedgerSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zonky_ledger_investments",
			Help: "Investments known after the last cycle",
		}),
		AvailableBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "zonky_available_balance",
			Help: "Available wallet balance seen in the last cycle",
		}),
	}
	m.Registry.MustRegister(
		m.Cycles,
		m.InvestmentAttempts,
		m.ReconcileDuration,
		m.LedgerSize,
		m.AvailableBalance,
	)
	return m
}

// Handler serves /metrics for reg and a plain /healthz.
func Handler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var h http.Handler
	if reg != nil {
		h = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		})
	} else {
		h = promhttp.Handler()
	}
	mux.Handle("/metrics", h)
	return mux
}

// Serve runs the metrics server until ctx is done. An empty addr disables it.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry) {
	if addr == "" {
		logs.Info("[Metrics] Disabled: empty address.")
		return
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(reg),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logs.Infof("[Metrics] Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logs.Errorf("[Metrics] Server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logs.Warnf("[Metrics] Server shutdown error: %v", err)
		} else {
			logs.Info("[Metrics] Server stopped.")
		}
	}()
}
