package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fxscrape"

// Attempt result labels.
const (
	ResultOK        = "ok"
	ResultNotFound  = "not_found"
	ResultStatus    = "bad_status"
	ResultInvalid   = "invalid_body"
	ResultTransport = "transport_error"
)

type Metrics struct {
	registry *prometheus.Registry

	FetchAttempts      *prometheus.CounterVec
	Fetches            *prometheus.CounterVec
	FetchDuration      prometheus.Histogram
	InFlight           prometheus.Gauge
	DedupSkips         prometheus.Counter
	ValidationFailures prometheus.Counter
	RowsPersisted      prometheus.Counter
	FlushFailures      prometheus.Counter
	MissingDates       prometheus.Counter
	DatesProcessed     prometheus.Counter

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers every collector on a fresh registry, so separate instances
// never collide.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		FetchAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_attempts_total",
				Help:      "HTTP attempts against the rate source by result",
			},
			[]string{"result"},
		),
		Fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetches_total",
				Help:      "Completed fetches by final outcome",
			},
			[]string{"outcome"},
		),
		FetchDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Duration of a fetch including retries and backoff",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
		InFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "tasks_in_flight",
				Help:      "Fetch tasks currently holding an admission slot",
			},
		),
		DedupSkips: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dedup_skips_total",
				Help:      "Tasks skipped because the pair was already persisted",
			},
		),
		ValidationFailures: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validation_failures_total",
				Help:      "Payloads rejected by the validator",
			},
		),
		RowsPersisted: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rows_persisted_total",
				Help:      "Rows written by committed flushes",
			},
		),
		FlushFailures: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flush_failures_total",
				Help:      "Batches rolled back and dropped",
			},
		),
		MissingDates: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "missing_dates_total",
				Help:      "Dates for which no base produced rows",
			},
		),
		DatesProcessed: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dates_processed_total",
				Help:      "Dates whose tasks have all completed",
			},
		),

		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of status server requests",
			},
			[]string{"path", "method", "status_code"},
		),
		HTTPRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Status server request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
