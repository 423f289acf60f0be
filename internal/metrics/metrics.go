// Package metrics provides Prometheus metrics for the screening engine.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"BreakoutScreener/internal/logger"
	"BreakoutScreener/internal/model"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Cycle metrics
	CyclesTotal          *prometheus.CounterVec
	CycleDuration        prometheus.Histogram
	InstrumentsEvaluated prometheus.Counter
	InstrumentsOmitted   *prometheus.CounterVec
	Breakouts            prometheus.Gauge

	// Price cache metrics
	TicksApplied prometheus.Counter
	TicksDropped prometheus.Counter

	// Health metrics
	ConsecutiveFailures prometheus.Gauge
	LastSuccessfulCycle prometheus.Gauge
}

// NewMetrics registers all metrics with reg. A nil reg uses the default registerer.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "breakout_screener"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		CyclesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "cycles_total",
			Help:      "Total number of screening cycles by outcome",
		}, []string{"outcome"}),
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "cycle_duration_seconds",
			Help:      "Screening cycle duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}),
		InstrumentsEvaluated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "instruments_evaluated_total",
			Help:      "Total number of instruments evaluated",
		}),
		InstrumentsOmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "instruments_omitted_total",
			Help:      "Total number of instruments omitted by reason",
		}, []string{"reason"}),
		Breakouts: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "breakouts",
			Help:      "Number of instruments in breakout in the latest snapshot",
		}),

		TicksApplied: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricecache",
			Name:      "ticks_applied_total",
			Help:      "Total number of price updates applied",
		}),
		TicksDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricecache",
			Name:      "ticks_dropped_total",
			Help:      "Total number of late or invalid price updates dropped",
		}),

		ConsecutiveFailures: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "consecutive_failures",
			Help:      "Consecutive cycles that produced no result",
		}),
		LastSuccessfulCycle: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_cycle_timestamp",
			Help:      "Unix timestamp of last successful cycle",
		}),
	}
}

// RecordCycle records a published snapshot and the resulting health.
func (m *Metrics) RecordCycle(snap *model.Snapshot, health model.EngineHealth) {
	if m == nil || snap == nil {
		return
	}
	outcome := "success"
	switch {
	case snap.MarketClosed:
		outcome = "market_closed"
	case len(snap.Results) == 0:
		outcome = "failure"
	case len(snap.Omitted) > 0:
		outcome = "partial"
	}
	m.CyclesTotal.WithLabelValues(outcome).Inc()
	m.ConsecutiveFailures.Set(float64(health.ConsecutiveFailures))
	if snap.MarketClosed {
		return
	}
	m.CycleDuration.Observe(snap.Duration.Seconds())
	m.InstrumentsEvaluated.Add(float64(len(snap.Results)))
	for _, o := range snap.Omitted {
		m.InstrumentsOmitted.WithLabelValues(string(o.Reason)).Inc()
	}
	m.Breakouts.Set(float64(len(snap.Breakouts())))
	if !health.LastSuccessfulCycle.IsZero() {
		m.LastSuccessfulCycle.Set(float64(health.LastSuccessfulCycle.Unix()))
	}
}

// RecordTick counts a price cache update.
func (m *Metrics) RecordTick(applied bool) {
	if m == nil {
		return
	}
	if applied {
		m.TicksApplied.Inc()
	} else {
		m.TicksDropped.Inc()
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(g))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
