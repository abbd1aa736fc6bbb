package engine

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"
)

// Metrics holds the engine's private prometheus registry and the gauges
// it updates while a search runs. It is optional: the driver only builds
// one when `-metrics-addr` is set, so a deadline-driven batch run never
// needs a listener to exit cleanly.
type Metrics struct {
	registry   *prometheus.Registry
	poolHQ     prometheus.Gauge
	poolHD     prometheus.Gauge
	bestObj    prometheus.Gauge
	iterations *prometheus.CounterVec
}

// NewMetrics registers the engine's gauges/counters on a fresh private
// registry -- never the global default registry, so multiple engine
// instances in one process (e.g. under test) never collide.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		poolHQ: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reassign",
			Subsystem: "pool",
			Name:      "high_quality_size",
			Help:      "Current number of entries in the pool's high-quality view.",
		}),
		poolHD: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reassign",
			Subsystem: "pool",
			Name:      "high_diversity_size",
			Help:      "Current number of entries in the pool's high-diversity view.",
		}),
		bestObj: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reassign",
			Name:      "best_objective",
			Help:      "Objective value of the pool's current best solution.",
		}),
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reassign",
			Name:      "heuristic_iterations_total",
			Help:      "Count of outer-loop iterations performed, by heuristic name.",
		}, []string{"heuristic"}),
	}
	reg.MustRegister(m.poolHQ, m.poolHD, m.bestObj, m.iterations)
	return m
}

// IncIterations records one outer-loop iteration for the named heuristic.
func (m *Metrics) IncIterations(name string) {
	if m == nil {
		return
	}
	m.iterations.WithLabelValues(name).Inc()
}

// Sample refreshes the pool-derived gauges; Engine.Run calls this on a
// ticker while a search is running, whenever Config.Metrics is set.
func (m *Metrics) Sample(e *Engine) {
	if m == nil {
		return
	}
	hq, hd := e.Pool().Len()
	m.poolHQ.Set(float64(hq))
	m.poolHD.Set(float64(hd))
	if best, ok := e.Pool().Best(); ok {
		m.bestObj.Set(float64(best.Objective))
	}
}

// Serve starts an HTTP server exposing /metrics on addr (expected to be a
// loopback address) and runs it until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger klog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		logger.V(1).Info("shutting down metrics server", "addr", addr)
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
