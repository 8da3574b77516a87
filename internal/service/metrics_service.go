package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation. A nil receiver is
// valid and records nothing.
type MetricsService struct {
	registry           *prometheus.Registry
	handler            http.Handler
	requestDuration    *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	cacheLatency       prometheus.Observer
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	blacklistLookups   *prometheus.CounterVec
	notificationsSent  prometheus.Counter
	fanOutRecipients   prometheus.Histogram
	jobsProcessed      *prometheus.CounterVec
	changeRequestTotal *prometheus.CounterVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	blacklistLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "token_blacklist_lookups_total",
		Help: "Access token blacklist lookups by source and outcome",
	}, []string{"source", "revoked"})

	notificationsSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Notifications created",
	})

	fanOutRecipients := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "notification_fanout_recipients",
		Help:    "Recipients per notification fan-out",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})

	jobsProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "background_jobs_total",
		Help: "Background jobs processed by type and outcome",
	}, []string{"type", "outcome"})

	changeRequestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_change_requests_total",
		Help: "Schedule change request transitions by resulting status",
	}, []string{"status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHits, cacheMisses,
		blacklistLookups, notificationsSent, fanOutRecipients, jobsProcessed, changeRequestTotal, goroutines)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		blacklistLookups:   blacklistLookups,
		notificationsSent:  notificationsSent,
		fanOutRecipients:   fanOutRecipients,
		jobsProcessed:      jobsProcessed,
		changeRequestTotal: changeRequestTotal,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordBlacklistLookup counts a jti check answered by source ("cache" or "db").
func (m *MetricsService) RecordBlacklistLookup(source string, revoked bool) {
	if m == nil {
		return
	}
	m.blacklistLookups.WithLabelValues(source, fmt.Sprintf("%t", revoked)).Inc()
}

// RecordNotificationSent tracks one notification and its fan-out size.
func (m *MetricsService) RecordNotificationSent(recipients int64) {
	if m == nil {
		return
	}
	m.notificationsSent.Inc()
	m.fanOutRecipients.Observe(float64(recipients))
}

// RecordJob counts a processed background job.
func (m *MetricsService) RecordJob(jobType string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.jobsProcessed.WithLabelValues(jobType, outcome).Inc()
}

// RecordChangeRequest counts a change request reaching status.
func (m *MetricsService) RecordChangeRequest(status string) {
	if m == nil {
		return
	}
	m.changeRequestTotal.WithLabelValues(status).Inc()
}
