// Package metrics exposes Prometheus metrics for the key server on a
// dedicated listener, separate from the API address.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer serves the /metrics endpoint and owns the service counters.
type MetricsServer struct {
	srv      *http.Server
	registry *prometheus.Registry

	// ChallengesIssued counts successfully issued challenges.
	ChallengesIssued prometheus.Counter

	// Registrations counts registration attempts by outcome:
	// registered, failed_challenge, name_taken, error.
	Registrations *prometheus.CounterVec

	// Lookups counts key lookups by outcome: found, not_found, error.
	Lookups *prometheus.CounterVec
}

// New creates a metrics server for the given namespace listening on addr.
// The server is not started until ListenAndServe is called.
func New(namespace string, addr string) (*MetricsServer, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	m := &MetricsServer{
		registry: registry,
		ChallengesIssued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenges_issued_total",
			Help:      "Number of enrollment challenges issued.",
		}),
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Number of registration attempts by outcome.",
		}, []string{"outcome"}),
		Lookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Number of key lookups by outcome.",
		}, []string{"outcome"}),
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	m.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return m, nil
}

// ListenAndServe starts serving metrics. It blocks like http.Server.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
