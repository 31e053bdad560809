package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reply outcomes
const (
	OutcomeQuota      = "quota"
	OutcomeCommand    = "command"
	OutcomeCompletion = "completion"
	OutcomeFallback   = "fallback"
	OutcomeError      = "error"
)

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	MessagesReceivedTotal *prometheus.CounterVec
	RepliesTotal          *prometheus.CounterVec
	CompletionDuration    *prometheus.HistogramVec
	CompletionErrorsTotal *prometheus.CounterVec
	StoreErrorsTotal      *prometheus.CounterVec
	SendErrorsTotal       *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		MessagesReceivedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "textgpt_messages_received_total",
				Help: "Total number of inbound messages",
			},
			[]string{"channel"},
		),
		RepliesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "textgpt_replies_total",
				Help: "Total number of replies produced, by outcome",
			},
			[]string{"outcome"},
		),
		CompletionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "textgpt_completion_duration_seconds",
				Help:    "Duration of completion calls in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		CompletionErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "textgpt_completion_errors_total",
				Help: "Total number of failed completion calls",
			},
			[]string{"provider"},
		),
		StoreErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "textgpt_store_errors_total",
				Help: "Total number of session store errors",
			},
			[]string{"op"},
		),
		SendErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "textgpt_send_errors_total",
				Help: "Total number of failed outbound sends",
			},
			[]string{"channel"},
		),
	}

	m.registry.MustRegister(
		m.MessagesReceivedTotal,
		m.RepliesTotal,
		m.CompletionDuration,
		m.CompletionErrorsTotal,
		m.StoreErrorsTotal,
		m.SendErrorsTotal,
	)

	return m
}

// MessageReceived counts an inbound message on a channel
func (m *Metrics) MessageReceived(channel string) {
	if m == nil {
		return
	}
	m.MessagesReceivedTotal.WithLabelValues(channel).Inc()
}

// Reply counts a reply by outcome
func (m *Metrics) Reply(outcome string) {
	if m == nil {
		return
	}
	m.RepliesTotal.WithLabelValues(outcome).Inc()
}

// Completion records a completion call
func (m *Metrics) Completion(provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.CompletionDuration.WithLabelValues(provider).Observe(d.Seconds())
	if err != nil {
		m.CompletionErrorsTotal.WithLabelValues(provider).Inc()
	}
}

// StoreError counts a failed store operation
func (m *Metrics) StoreError(op string) {
	if m == nil {
		return
	}
	m.StoreErrorsTotal.WithLabelValues(op).Inc()
}

// SendError counts a failed outbound send
func (m *Metrics) SendError(channel string) {
	if m == nil {
		return
	}
	m.SendErrorsTotal.WithLabelValues(channel).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
