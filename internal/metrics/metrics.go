// Package metrics holds the Prometheus collectors of the API server.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics is the collector catalogue. All methods are safe on a nil receiver so use cases
// can run without metrics in tests.
type Metrics struct {
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	registrations     *prometheus.CounterVec
	logins            *prometheus.CounterVec
	tokensIssued      *prometheus.CounterVec
	notificationsSent *prometheus.CounterVec
}

// New creates the collectors curried with the service label and registers them with reg.
func New(reg prometheus.Registerer, service string) *Metrics {
	labels := prometheus.Labels{"service": service}
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"service", "method", "route", "status"}).MustCurryWith(labels),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"service", "method", "route"}).MustCurryWith(labels).(*prometheus.HistogramVec),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_registrations_total",
			Help: "Total number of registration attempts.",
		}, []string{"service", "result"}).MustCurryWith(labels),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_logins_total",
			Help: "Total number of login attempts.",
		}, []string{"service", "result"}).MustCurryWith(labels),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_tokens_issued_total",
			Help: "Total number of token pairs issued.",
		}, []string{"service", "flow"}).MustCurryWith(labels),
		notificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of notification writes.",
		}, []string{"service", "type", "result"}).MustCurryWith(labels),
	}
	reg.MustRegister(m.httpRequests, m.httpDuration, m.registrations, m.logins, m.tokensIssued, m.notificationsSent)
	return m
}

// ObserveHTTP records one served request. route is the matched route pattern, not the raw path.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Registration counts a registration attempt.
func (m *Metrics) Registration(result string) {
	if m != nil {
		m.registrations.WithLabelValues(result).Inc()
	}
}

// Login counts a login attempt.
func (m *Metrics) Login(result string) {
	if m != nil {
		m.logins.WithLabelValues(result).Inc()
	}
}

// TokensIssued counts a token pair issued by flow (login, verify_otp, refresh).
func (m *Metrics) TokensIssued(flow string) {
	if m != nil {
		m.tokensIssued.WithLabelValues(flow).Inc()
	}
}

// NotificationSent counts one notification write.
func (m *Metrics) NotificationSent(notificationType, result string) {
	if m != nil {
		m.notificationsSent.WithLabelValues(notificationType, result).Inc()
	}
}
