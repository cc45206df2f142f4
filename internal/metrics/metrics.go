// Package metrics exposes billing and HTTP counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so tests can create as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	PaymentsRecorded     *prometheus.CounterVec
	PaymentCents         *prometheus.CounterVec
	PaymentsRejected     *prometheus.CounterVec
	NotificationFailures *prometheus.CounterVec
	RemindersSent        prometheus.Counter
	SummaryCache         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		PaymentsRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dormbill",
			Name:      "payments_recorded_total",
			Help:      "Payments committed, by ledger kind and method.",
		}, []string{"kind", "method"}),
		PaymentCents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dormbill",
			Name:      "payment_amount_cents_total",
			Help:      "Sum of committed payment amounts in cents, by ledger kind.",
		}, []string{"kind"}),
		PaymentsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dormbill",
			Name:      "payments_rejected_total",
			Help:      "Payments refused by validation, by error code.",
		}, []string{"code"}),
		NotificationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dormbill",
			Name:      "notification_failures_total",
			Help:      "Notifications that could not be handed off, by message type.",
		}, []string{"type"}),
		RemindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dormbill",
			Name:      "overdue_reminders_total",
			Help:      "Overdue reminders published.",
		}),
		SummaryCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dormbill",
			Name:      "summary_cache_requests_total",
			Help:      "Summary cache lookups, by result.",
		}, []string{"result"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dormbill",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency, by route and status code.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.PaymentsRecorded,
		m.PaymentCents,
		m.PaymentsRejected,
		m.NotificationFailures,
		m.RemindersSent,
		m.SummaryCache,
		m.HTTPDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObservePayment(kind, method string, cents int64) {
	m.PaymentsRecorded.WithLabelValues(kind, method).Inc()
	m.PaymentCents.WithLabelValues(kind).Add(float64(cents))
}

func (m *Metrics) ObserveRejection(code string) {
	m.PaymentsRejected.WithLabelValues(code).Inc()
}

func (m *Metrics) ObserveNotificationFailure(msgType string) {
	m.NotificationFailures.WithLabelValues(msgType).Inc()
}

func (m *Metrics) ObserveCache(hit bool) {
	if hit {
		m.SummaryCache.WithLabelValues("hit").Inc()
		return
	}
	m.SummaryCache.WithLabelValues("miss").Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, code int, d time.Duration) {
	m.HTTPDuration.WithLabelValues(method, route, strconv.Itoa(code)).Observe(d.Seconds())
}

func (m *Metrics) ObserveReminder() {
	m.RemindersSent.Inc()
}
