package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jobmetrics "github.com/odyssey-erp/odyssey-utility/internal/jobs"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	reportRuns      *prometheus.CounterVec
	reportDuration  *prometheus.HistogramVec
	skippedRecords  *prometheus.CounterVec
	jobs            *jobmetrics.Metrics
}

// NewMetrics menginisialisasi registry, metrik HTTP, laporan, dan job.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	reportRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_report_runs_total",
		Help: "Jumlah eksekusi laporan berdasarkan laporan dan hasil.",
	}, []string{"report", "outcome"})
	reportDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "odyssey_report_duration_seconds",
		Help:    "Durasi pembuatan laporan, termasuk pengambilan data.",
		Buckets: prometheus.DefBuckets,
	}, []string{"report"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "odyssey_report_skipped_records_total",
		Help: "Record tidak valid yang dilewati saat agregasi.",
	}, []string{"report"})
	registry.MustRegister(requests, duration, reportRuns, reportDuration, skipped)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		reportRuns:      reportRuns,
		reportDuration:  reportDuration,
		skippedRecords:  skipped,
		jobs:            jobmetrics.NewMetrics(registry),
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveReport mencatat satu eksekusi laporan.
func (m *Metrics) ObserveReport(report, outcome string, elapsed time.Duration, skipped int) {
	if m == nil {
		return
	}
	m.reportRuns.WithLabelValues(report, outcome).Inc()
	m.reportDuration.WithLabelValues(report).Observe(elapsed.Seconds())
	if skipped > 0 {
		m.skippedRecords.WithLabelValues(report).Add(float64(skipped))
	}
}

// Jobs mengembalikan metrik job yang terdaftar di registry yang sama.
func (m *Metrics) Jobs() *jobmetrics.Metrics {
	if m == nil {
		return nil
	}
	return m.jobs
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
