package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter publishes crawl metrics in Prometheus format. It owns its
// registry so several crawls in one process (or in tests) never collide.
type Exporter struct {
	registry *prometheus.Registry

	pagesCrawled  prometheus.Counter
	pagesFailed   *prometheus.CounterVec
	fetchErrors   *prometheus.CounterVec
	retries       prometheus.Counter
	fetchDuration prometheus.Histogram
	frontierDepth prometheus.Gauge
	activeWorkers prometheus.Gauge
}

// NewExporter registers the crawl metrics on a fresh registry.
func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		pagesCrawled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wikicrawler_pages_crawled_total",
			Help: "Total number of pages fetched and stored",
		}),
		pagesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wikicrawler_pages_failed_total",
			Help: "Total number of pages that failed",
		}, []string{"stage"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wikicrawler_fetch_errors_total",
			Help: "Total number of fetch failures by error class",
		}, []string{"type"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wikicrawler_fetch_retries_total",
			Help: "Total number of fetch retries",
		}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wikicrawler_fetch_duration_seconds",
			Help:    "Time taken to fetch a page, retries included",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		frontierDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wikicrawler_frontier_depth",
			Help: "Current number of queued crawl tasks",
		}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "wikicrawler_active_workers",
			Help: "Number of workers currently processing a task",
		}),
	}

	e.registry.MustRegister(
		e.pagesCrawled,
		e.pagesFailed,
		e.fetchErrors,
		e.retries,
		e.fetchDuration,
		e.frontierDepth,
		e.activeWorkers,
		collectors.NewGoCollector(),
	)
	return e
}

// Registry returns the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registry.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (e *Exporter) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
