package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upload results.
const (
	uploadStored      = "stored"
	uploadInvalidType = "invalid_type"
	uploadTooLarge    = "too_large"
	uploadFailed      = "failed"
)

// Install results.
const (
	installServed   = "served"
	installNotFound = "not_found"
	installMissing  = "missing"
	installDBError  = "db_error"
)

// Metrics holds the Prometheus collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	uploads         *prometheus.CounterVec
	installs        *prometheus.CounterVec
}

// NewMetrics creates and registers the collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waccanda_requests_total",
		Help: "Total HTTP requests",
	}, []string{"route", "status_class"})

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "waccanda_request_duration_seconds",
		Help:    "HTTP request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	uploads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waccanda_uploads_total",
		Help: "Package uploads by result",
	}, []string{"result"})

	installs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "waccanda_installs_total",
		Help: "Package install requests by result",
	}, []string{"result"})

	registry.MustRegister(
		requests, requestDuration, uploads, installs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Metrics{
		registry:        registry,
		requests:        requests,
		requestDuration: requestDuration,
		uploads:         uploads,
		installs:        installs,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished request.
func (m *Metrics) ObserveRequest(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(route, statusClass(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordUpload counts an upload outcome.
func (m *Metrics) RecordUpload(result string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(result).Inc()
}

// RecordInstall counts an install outcome.
func (m *Metrics) RecordInstall(result string) {
	if m == nil {
		return
	}
	m.installs.WithLabelValues(result).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
