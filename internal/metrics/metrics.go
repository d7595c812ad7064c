// Package metrics exposes pipeline counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalogsync"

// Metrics groups the pipeline counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	pages          *prometheus.CounterVec
	staged         prometheus.Counter
	items          *prometheus.CounterVec
	enrichBatches  *prometheus.CounterVec
	missingVideos  prometheus.Counter
	sideEffectErrs *prometheus.CounterVec
	cycleDuration  *prometheus.HistogramVec
}

// New registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		pages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_pages_total",
			Help:      "Feed pages processed by outcome.",
		}, []string{"outcome"}),
		staged: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "staged_records_total",
			Help:      "Records loaded into staging.",
		}),
		items: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_items_total",
			Help:      "Catalog items by reconciliation action.",
		}, []string{"action"}),
		enrichBatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrich_batches_total",
			Help:      "Statistics batches by outcome.",
		}, []string{"outcome"}),
		missingVideos: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "missing_videos_total",
			Help:      "Videos absent from statistics responses.",
		}),
		sideEffectErrs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "side_effect_failures_total",
			Help:      "Failed notification side effects by channel.",
		}, []string{"channel"}),
		cycleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"stage"}),
	}
}

// PageProcessed counts one feed page.
func (m *Metrics) PageProcessed(ok bool) {
	if m == nil {
		return
	}
	m.pages.WithLabelValues(outcome(ok)).Inc()
}

// Staged counts records written to staging.
func (m *Metrics) Staged(n int) {
	if m == nil {
		return
	}
	m.staged.Add(float64(n))
}

// Items counts catalog items for a reconciliation action.
func (m *Metrics) Items(action string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.items.WithLabelValues(action).Add(float64(n))
}

// EnrichBatch counts one statistics batch.
func (m *Metrics) EnrichBatch(ok bool) {
	if m == nil {
		return
	}
	m.enrichBatches.WithLabelValues(outcome(ok)).Inc()
}

// MissingVideos counts videos the statistics API no longer knows.
func (m *Metrics) MissingVideos(n int) {
	if m == nil {
		return
	}
	m.missingVideos.Add(float64(n))
}

// SideEffectFailed counts a failed notification call.
func (m *Metrics) SideEffectFailed(channel string) {
	if m == nil {
		return
	}
	m.sideEffectErrs.WithLabelValues(channel).Inc()
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.cycleDuration.WithLabelValues(stage).Observe(seconds)
}

// Handler serves /metrics from g and a plain /healthz check.
func Handler(g prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
