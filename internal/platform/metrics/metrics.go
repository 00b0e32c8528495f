// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package metrics exposes Prometheus collectors for HTTP traffic and authentication outcomes.

Collectors live on an owned registry rather than the global default so that tests
can build an isolated instance and assert on it.
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// # Outcome Labels

const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeDisabled           = "disabled"
	OutcomeInvalidToken       = "invalid_token"
	OutcomeRevoked            = "revoked"
	OutcomeGrace              = "grace"
	OutcomeReused             = "reused"
	OutcomeError              = "error"
)

// Reasons a session is cleared.
const (
	ReasonLogout = "logout"
	ReasonReuse  = "reuse"
)

// Metrics bundles the collectors and the registry they are registered on.
type Metrics struct {
	registry *prometheus.Registry

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	loginTotal      *prometheus.CounterVec
	refreshTotal    *prometheus.CounterVec
	sessionsCleared *prometheus.CounterVec
}

// New creates and registers every collector. Runtime collectors are included.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	metrics := &Metrics{
		registry: registry,

		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),

		loginTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_login_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_refresh_total",
			Help: "Refresh attempts by rotation outcome.",
		}, []string{"outcome"}),
		sessionsCleared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_sessions_cleared_total",
			Help: "Sessions destroyed by reason.",
		}, []string{"reason"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.httpInFlight,
		metrics.httpRequestsTotal,
		metrics.httpRequestDuration,
		metrics.loginTotal,
		metrics.refreshTotal,
		metrics.sessionsCleared,
	)

	return metrics
}

// Registry exposes the underlying registry (tests).
func (metrics *Metrics) Registry() *prometheus.Registry {
	return metrics.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (metrics *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(metrics.registry, promhttp.HandlerOpts{})
}

// # Authentication Outcomes

// ObserveLogin counts a login attempt. Nil receivers are ignored.
func (metrics *Metrics) ObserveLogin(outcome string) {
	if metrics == nil {
		return
	}
	metrics.loginTotal.WithLabelValues(outcome).Inc()
}

// ObserveRefresh counts a refresh attempt.
func (metrics *Metrics) ObserveRefresh(outcome string) {
	if metrics == nil {
		return
	}
	metrics.refreshTotal.WithLabelValues(outcome).Inc()
}

// ObserveSessionCleared counts a destroyed session.
func (metrics *Metrics) ObserveSessionCleared(reason string) {
	if metrics == nil {
		return
	}
	metrics.sessionsCleared.WithLabelValues(reason).Inc()
}

// # Audit Trail

// TrackAuditDropped exports dropped as audit_events_dropped_total. The value is
// read on every scrape.
func (metrics *Metrics) TrackAuditDropped(dropped func() uint64) {
	if metrics == nil {
		return
	}
	metrics.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "audit_events_dropped_total",
		Help: "Audit events discarded because the buffer was full.",
	}, func() float64 {
		return float64(dropped())
	}))
}

// # HTTP Instrumentation

// Instrument records in-flight count, totals and latency per route pattern.
func (metrics *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		metrics.httpInFlight.Inc()
		defer metrics.httpInFlight.Dec()

		start := time.Now()
		recorder := &statusWriter{ResponseWriter: writer, code: http.StatusOK}
		next.ServeHTTP(recorder, request)

		// Route patterns keep label cardinality bounded; raw paths would not.
		route := "unmatched"
		if routeContext := chi.RouteContext(request.Context()); routeContext != nil {
			if pattern := routeContext.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		status := strconv.Itoa(recorder.code)
		metrics.httpRequestDuration.WithLabelValues(request.Method, route, status).Observe(time.Since(start).Seconds())
		metrics.httpRequestsTotal.WithLabelValues(request.Method, route, status).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
