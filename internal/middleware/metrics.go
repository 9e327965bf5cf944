package middleware

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPMetrics counts and times requests passing through the pipeline.
type HTTPMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewHTTPMetrics creates the request metrics and registers them on reg.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "groundwork_http_requests_total",
			Help: "Total number of HTTP requests by method and status code",
		}, []string{"method", "code"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "groundwork_http_request_duration_seconds",
			Help:    "HTTP request latency by method",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "groundwork_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		}),
	}

	reg.MustRegister(m.Requests)
	reg.MustRegister(m.Duration)
	reg.MustRegister(m.InFlight)
	return m
}

func (m *HTTPMetrics) Wrap(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerInFlight(m.InFlight,
		promhttp.InstrumentHandlerDuration(m.Duration,
			promhttp.InstrumentHandlerCounter(m.Requests, next)))
}
