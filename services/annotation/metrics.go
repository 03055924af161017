package annotation

import (
	"time"

	"pvv/api/models/constants"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the Prometheus collectors for annotation lookups
type Metrics struct {
	outcomesTotal *prometheus.CounterVec
	requestsTotal *prometheus.CounterVec
	retriesTotal  *prometheus.CounterVec
	writesSkipped *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on the given registry
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		outcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pvv_annotation_outcomes_total",
				Help: "Annotation lookups partitioned by source and resulting status.",
			},
			[]string{"source", "status"},
		),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pvv_annotation_requests_total",
				Help: "Outbound HTTP requests to annotation sources.",
			},
			[]string{"source", "status_code"},
		),
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pvv_annotation_retries_total",
				Help: "Retried annotation requests after a transient failure.",
			},
			[]string{"source"},
		),
		writesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pvv_annotation_writes_skipped_total",
				Help: "Annotation results not written because a better result is already stored.",
			},
			[]string{"source"},
		),
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pvv_annotation_fetch_duration_seconds",
				Help:    "Time taken to fetch one annotation, retries included.",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"source"},
		),
	}

	for _, c := range []prometheus.Collector{m.outcomesTotal, m.requestsTotal, m.retriesTotal, m.writesSkipped, m.fetchDuration} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// methods are no-ops on a nil receiver so metrics stay optional

func (m *Metrics) ObserveOutcome(source constants.AnnotationSource, status constants.AnnotationStatus, took time.Duration) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(string(source), string(status)).Inc()
	m.fetchDuration.WithLabelValues(string(source)).Observe(took.Seconds())
}

func (m *Metrics) ObserveRequest(source constants.AnnotationSource, statusCode string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(string(source), statusCode).Inc()
}

func (m *Metrics) ObserveRetry(source constants.AnnotationSource) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(string(source)).Inc()
}

func (m *Metrics) ObserveSkippedWrite(source constants.AnnotationSource) {
	if m == nil {
		return
	}
	m.writesSkipped.WithLabelValues(string(source)).Inc()
}
