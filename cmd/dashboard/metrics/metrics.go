// Package metrics provides Prometheus instrumentation for the dashboard.
//
// Metrics exposed:
//   - gridinsight_upstream_fetch_seconds: Histogram of upstream fetch duration by dataset
//   - gridinsight_cache_requests_total: Counter of cache lookups by dataset and result
//   - gridinsight_classify_seconds: Histogram of classifier inference duration by metric
//   - gridinsight_current_class: Gauge of the current class by metric and zone
//   - gridinsight_predicted_class: Gauge of the predicted class, -1 when unavailable
//   - gridinsight_refresh_seconds: Histogram of refresher tick duration
//   - gridinsight_errors_total: Counter of errors by component and reason
//
// Metrics implements insight.Observer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the dashboard.
type Metrics struct {
	UpstreamFetchSeconds *prometheus.HistogramVec
	CacheRequestsTotal   *prometheus.CounterVec
	ClassifySeconds      *prometheus.HistogramVec
	CurrentClass         *prometheus.GaugeVec
	PredictedClass       *prometheus.GaugeVec
	RefreshSeconds       prometheus.Histogram
	ErrorsTotal          *prometheus.CounterVec
}

// New registers all metrics with the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers all metrics with reg.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		UpstreamFetchSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridinsight_upstream_fetch_seconds",
			Help:    "Time spent fetching history from the upstream API",
			Buckets: prometheus.DefBuckets,
		}, []string{"dataset"}),

		CacheRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gridinsight_cache_requests_total",
			Help: "History cache lookups by result (hit, miss, stale)",
		}, []string{"dataset", "result"}),

		ClassifySeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridinsight_classify_seconds",
			Help:    "Time spent in classifier inference",
			Buckets: prometheus.DefBuckets,
		}, []string{"metric"}),

		CurrentClass: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gridinsight_current_class",
			Help: "Class of the last 24 hours (0-5)",
		}, []string{"metric"}),

		PredictedClass: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gridinsight_predicted_class",
			Help: "Predicted class of the next 24 hours (0-5, -1 when unavailable)",
		}, []string{"metric"}),

		RefreshSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gridinsight_refresh_seconds",
			Help:    "Time spent in one refresher tick",
			Buckets: prometheus.DefBuckets,
		}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gridinsight_errors_total",
			Help: "Total number of errors by component and reason",
		}, []string{"component", "reason"}),
	}
}

// ObserveFetch records an upstream fetch.
func (m *Metrics) ObserveFetch(dataset string, d time.Duration, err error) {
	m.UpstreamFetchSeconds.WithLabelValues(dataset).Observe(d.Seconds())
	if err != nil {
		m.RecordError("upstream", "fetch_failed")
	}
}

// ObserveCache records a cache lookup.
func (m *Metrics) ObserveCache(dataset string, hit, stale bool) {
	result := "miss"
	switch {
	case stale:
		result = "stale"
	case hit:
		result = "hit"
	}
	m.CacheRequestsTotal.WithLabelValues(dataset, result).Inc()
}

// ObserveClassify records one inference.
func (m *Metrics) ObserveClassify(metric string, d time.Duration, err error) {
	m.ClassifySeconds.WithLabelValues(metric).Observe(d.Seconds())
	if err != nil {
		m.RecordError("classifier", "inference_failed")
	}
}

// ObserveClasses sets the class gauges. A nil predicted class sets -1.
func (m *Metrics) ObserveClasses(metric string, current int, predicted *int) {
	m.CurrentClass.WithLabelValues(metric).Set(float64(current))
	if predicted == nil {
		m.PredictedClass.WithLabelValues(metric).Set(-1)
		return
	}
	m.PredictedClass.WithLabelValues(metric).Set(float64(*predicted))
}

// RecordRefresh records the duration of a refresher tick.
func (m *Metrics) RecordRefresh(seconds float64) {
	m.RefreshSeconds.Observe(seconds)
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}
