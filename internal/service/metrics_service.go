package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface and the ledger pipeline.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	feesGenerated   *prometheus.CounterVec
	paymentsTotal   *prometheus.CounterVec
	remindersSent   *prometheus.CounterVec
	statementJobs   *prometheus.CounterVec
	reconcileTime   prometheus.Observer
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

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	feesGenerated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fees_generated_total",
		Help: "Fee rows touched by the monthly generator, by outcome",
	}, []string{"outcome"})

	paymentsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_total",
		Help: "Payment ledger mutations, by action",
	}, []string{"action"})

	remindersSent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reminders_sent_total",
		Help: "Fee reminder SMS dispatches, by result",
	}, []string{"result"})

	statementJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "statement_jobs_total",
		Help: "Statement export jobs processed, by status",
	}, []string{"status"})

	reconcileTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reconciliation_duration_seconds",
		Help:    "Duration of a payment reconciliation transaction",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheHits, cacheMisses,
		feesGenerated, paymentsTotal, remindersSent, statementJobs, reconcileTime, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		feesGenerated:   feesGenerated,
		paymentsTotal:   paymentsTotal,
		remindersSent:   remindersSent,
		statementJobs:   statementJobs,
		reconcileTime:   reconcileTime,
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
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// RecordFeeGeneration counts generator outcomes ("created", "updated",
// "skipped", "failed").
func (m *MetricsService) RecordFeeGeneration(outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.feesGenerated.WithLabelValues(outcome).Add(float64(count))
}

// RecordPaymentAction counts ledger mutations ("recorded", "deleted").
func (m *MetricsService) RecordPaymentAction(action string) {
	if m == nil {
		return
	}
	m.paymentsTotal.WithLabelValues(action).Inc()
}

// ObserveReconciliation records the duration of one reconciliation cycle.
func (m *MetricsService) ObserveReconciliation(duration time.Duration) {
	if m == nil {
		return
	}
	m.reconcileTime.Observe(duration.Seconds())
}

// RecordReminder counts a reminder dispatch result ("sent", "skipped",
// "failed").
func (m *MetricsService) RecordReminder(result string) {
	if m == nil {
		return
	}
	m.remindersSent.WithLabelValues(result).Inc()
}

// RecordStatementJob counts a statement job transition ("done", "failed").
func (m *MetricsService) RecordStatementJob(status string) {
	if m == nil {
		return
	}
	m.statementJobs.WithLabelValues(status).Inc()
}
