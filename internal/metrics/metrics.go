// Package metrics exposes Prometheus instrumentation for the sampling engine.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Error kinds for SampleErrors.
const (
	KindAccessDenied = "access_denied"
	KindNotFound     = "not_found"
	KindUnexpected   = "unexpected"
	KindPanic        = "panic"
)

// DNS lookup results for DNSLookups.
const (
	ResultHit      = "hit"
	ResultResolved = "resolved"
	ResultFallback = "fallback"
)

// Metrics is the set of collectors shared by the resolver, sampler and monitor.
type Metrics struct {
	// Passes completed by the sampler (both cadences)
	SamplesTotal prometheus.Counter

	// Failed or degraded passes by kind
	SampleErrors *prometheus.CounterVec

	SampleDuration prometheus.Histogram

	// Resolver outcomes: hit, resolved, fallback
	DNSLookups *prometheus.CounterVec

	CacheSize prometheus.Gauge

	// Last published summary
	ActiveConnections prometheus.Gauge
	UniqueDomains     prometheus.Gauge

	// Accumulated history since the last clear
	HistoryDomains prometheus.Gauge
	VisitKeys      prometheus.Gauge
}

// NewMetrics registers all collectors on reg.
// A nil reg gets a private registry, so callers and tests never need a nil check.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		SamplesTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ngsn_samples_total",
			Help: "Total number of connection table sampling passes.",
		}),

		SampleErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ngsn_sample_errors_total",
			Help: "Sampling passes that failed or degraded, by kind.",
		}, []string{"kind"}),

		SampleDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "ngsn_sample_duration_seconds",
			Help:    "Time spent reading, filtering and resolving one connection table.",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		}),

		DNSLookups: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ngsn_dns_lookups_total",
			Help: "Domain resolutions by outcome.",
		}, []string{"result"}),

		CacheSize: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "ngsn_domain_cache_entries",
			Help: "Number of IPs in the domain cache.",
		}),

		ActiveConnections: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "ngsn_active_connections",
			Help: "Established outbound connections in the last published summary.",
		}),

		UniqueDomains: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "ngsn_unique_domains",
			Help: "Distinct domains in the last published summary.",
		}),

		HistoryDomains: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "ngsn_history_domains",
			Help: "Domains in the accumulated traffic table.",
		}),

		VisitKeys: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "ngsn_visit_keys",
			Help: "Distinct domain:port keys counted since the last clear.",
		}),
	}
}

// Serve exposes gatherer on addr at /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listener started", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
