package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the booking
// engine: HTTP traffic, cache effectiveness and the capacity contention
// counters.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	bookingAttempts      prometheus.Counter
	capacityConflicts    prometheus.Counter
	serializationRetries prometheus.Counter
	waitlistPromotions   prometheus.Counter
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

	bookingAttempts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_attempts_total",
		Help: "Total slot booking attempts",
	})

	capacityConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_capacity_conflicts_total",
		Help: "Bookings rejected because the slot was full",
	})

	serializationRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "booking_serialization_retries_total",
		Help: "Serializable transaction retries during booking",
	})

	waitlistPromotions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "waitlist_promotions_total",
		Help: "Waitlist entries promoted to a freed seat",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheHits, cacheMisses,
		bookingAttempts, capacityConflicts, serializationRetries, waitlistPromotions, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:             registry,
		handler:              handler,
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		cacheLatency:         cacheLatency,
		cacheHits:            cacheHits,
		cacheMisses:          cacheMisses,
		bookingAttempts:      bookingAttempts,
		capacityConflicts:    capacityConflicts,
		serializationRetries: serializationRetries,
		waitlistPromotions:   waitlistPromotions,
	}
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

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// BookingAttempt counts one booking request entering the engine.
func (m *MetricsService) BookingAttempt() {
	if m == nil {
		return
	}
	m.bookingAttempts.Inc()
}

// CapacityConflict counts one capacity rejection.
func (m *MetricsService) CapacityConflict() {
	if m == nil {
		return
	}
	m.capacityConflicts.Inc()
}

// SerializationRetry counts one serializable transaction retry.
func (m *MetricsService) SerializationRetry() {
	if m == nil {
		return
	}
	m.serializationRetries.Inc()
}

// WaitlistPromotion counts one waitlist promotion.
func (m *MetricsService) WaitlistPromotion() {
	if m == nil {
		return
	}
	m.waitlistPromotions.Inc()
}
