// Package metrics holds the prometheus collectors for review, watcher and
// catalog activity.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"adline/internal/catalog"
	"adline/internal/domain"
	"adline/internal/review"
)

const namespace = "adline"

type Metrics struct {
	registry *prometheus.Registry

	ReviewTransitions *prometheus.CounterVec
	ReviewFailures    *prometheus.CounterVec
	WatcherPolls      prometheus.Counter
	WatcherOutcomes   *prometheus.CounterVec
	RPCCalls          *prometheus.CounterVec
	RPCLatency        *prometheus.HistogramVec
	CatalogAds        *prometheus.GaugeVec
}

// New registers every collector on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ReviewTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_transitions_total",
			Help:      "Review workflow transitions by target state.",
		}, []string{"to"}),
		ReviewFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "review_failures_total",
			Help:      "Review failures reported by the state they occurred in.",
		}, []string{"state"}),
		WatcherPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watcher_polls_total",
			Help:      "Transaction lookups issued by the watcher.",
		}),
		WatcherOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watcher_outcomes_total",
			Help:      "Terminal watcher events by kind.",
		}, []string{"kind"}),
		RPCCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_calls_total",
			Help:      "Node RPC calls by method and result.",
		}, []string{"method", "result"}),
		RPCLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_latency_seconds",
			Help:      "Node RPC latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		CatalogAds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_ads",
			Help:      "Ads in the loaded catalog by effective status.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.ReviewTransitions,
		m.ReviewFailures,
		m.WatcherPolls,
		m.WatcherOutcomes,
		m.RPCCalls,
		m.RPCLatency,
		m.CatalogAds,
	)
	return m
}

func (m *Metrics) Gatherer() prometheus.Gatherer { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveTransition(t review.Transition) {
	m.ReviewTransitions.WithLabelValues(string(t.To)).Inc()
}

func (m *Metrics) ObserveFailure(f review.Failure) {
	m.ReviewFailures.WithLabelValues(string(f.State)).Inc()
}

func (m *Metrics) ObservePoll(string) {
	m.WatcherPolls.Inc()
}

func (m *Metrics) ObserveOutcome(kind domain.TxEventKind) {
	m.WatcherOutcomes.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) ObserveRPC(method string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.RPCCalls.WithLabelValues(method, result).Inc()
	m.RPCLatency.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveCatalog replaces the per-status gauge with the view's counts.
func (m *Metrics) ObserveCatalog(v catalog.View) {
	m.CatalogAds.Reset()
	for status, n := range v.StatusCounts {
		m.CatalogAds.WithLabelValues(status).Set(float64(n))
	}
}
