package httpapi

import (
	"net/http"
	"strconv"
	"time"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billy",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "billy",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
	paysRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billy",
			Name:      "pays_recorded_total",
			Help:      "Entries recorded, by flow and whether the request was a replay",
		},
		[]string{"flow", "outcome"},
	)
	reportsBuilt = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billy",
			Name:      "wallet_reports_total",
			Help:      "Wallet reports requested, by outcome",
		},
		[]string{"outcome"},
	)
	botLogins = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "billy",
			Name:      "bot_logins_total",
			Help:      "Chat sessions opened from a login link",
		},
	)
	emailsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "billy",
			Name:      "emails_sent_total",
			Help:      "Emails handed to the notifier, by outcome",
		},
		[]string{"outcome"},
	)
)

func metricsHandler() http.Handler {
	return promhttp.Handler()
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		// route pattern keeps label cardinality bounded
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := strconv.Itoa(ww.Status())
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
	})
}
