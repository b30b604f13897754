// Package metrics exposes Prometheus collectors for the shifttime API.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upstream service labels
const (
	UpstreamSheets  = "sheets"
	UpstreamNetlify = "netlify"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	upstreamRequestsTotal      *prometheus.CounterVec
	deploysTotal               *prometheus.CounterVec
	templateFallbacksTotal     *prometheus.CounterVec
	rateLimitRejectionsTotal   prometheus.Counter

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shifttime_http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shifttime_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route"},
		)

		upstreamRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shifttime_upstream_requests_total",
				Help: "Outbound calls to the data store and hosting provider, labeled by service and code.",
			},
			[]string{"service", "code"},
		)

		deploysTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shifttime_deploys_total",
				Help: "Deploy attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		templateFallbacksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shifttime_template_fallbacks_total",
				Help: "Unknown template ids that fell back to the landing template.",
			},
			[]string{"reason"},
		)

		rateLimitRejectionsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "shifttime_rate_limit_rejections_total",
				Help: "Requests rejected by the API rate limiter.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveUpstream counts one outbound call. code 0 means transport failure.
func ObserveUpstream(service string, code int) {
	if upstreamRequestsTotal == nil {
		return
	}
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	upstreamRequestsTotal.WithLabelValues(service, label).Inc()
}

// ObserveDeploy counts a deploy attempt by outcome (success, rejected, failed)
func ObserveDeploy(outcome string) {
	if deploysTotal == nil {
		return
	}
	deploysTotal.WithLabelValues(outcome).Inc()
}

// Template fallback labels. The raw id is caller-controlled and only goes
// to the log.
const (
	FallbackMissing = "missing"
	FallbackUnknown = "unknown"
)

// ObserveTemplateFallback counts a template id that was not recognised
func ObserveTemplateFallback(templateID string) {
	if templateFallbacksTotal == nil {
		return
	}
	reason := FallbackUnknown
	if templateID == "" {
		reason = FallbackMissing
	}
	templateFallbacksTotal.WithLabelValues(reason).Inc()
}

// ObserveRateLimitRejection counts a request turned away by the limiter
func ObserveRateLimitRejection() {
	if rateLimitRejectionsTotal == nil {
		return
	}
	rateLimitRejectionsTotal.Inc()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if httpRequestsTotal == nil {
			return
		}

		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
		httpRequestDurationSeconds.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
