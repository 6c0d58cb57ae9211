// Package metrics exposes Prometheus instrumentation for the service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ToolCalls           *prometheus.CounterVec
	ToolCallDuration    *prometheus.HistogramVec
	SessionsActive      prometheus.Gauge
	SessionsTotal       *prometheus.CounterVec
	TranscriptsForwards *prometheus.CounterVec
	DirectoryLookups    *prometheus.CounterVec
	Guardrails          prometheus.Gauge
}

// New creates a Metrics instance with every collector registered.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "voicecall"
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		ToolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Tool invocations by true outcome",
			},
			[]string{"tool", "outcome"},
		),
		ToolCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_call_duration_seconds",
				Help:      "Tool invocation latency in seconds",
				Buckets:   []float64{0.005, 0.05, 0.25, 1, 5, 15, 30},
			},
			[]string{"tool"},
		),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Call sessions currently running",
		}),
		SessionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_total",
				Help:      "Call sessions by result",
			},
			[]string{"result"},
		),
		TranscriptsForwards: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transcripts_forwarded_total",
				Help:      "End-of-call transcript hand-offs by result",
			},
			[]string{"result"},
		),
		DirectoryLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "directory_lookups_total",
				Help:      "User directory resolutions by result",
			},
			[]string{"result"},
		),
		Guardrails: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "guardrails",
			Help:      "Guardrails currently stored",
		}),
	}

	registry.MustRegister(
		m.ToolCalls,
		m.ToolCallDuration,
		m.SessionsActive,
		m.SessionsTotal,
		m.TranscriptsForwards,
		m.DirectoryLookups,
		m.Guardrails,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordToolCall counts one tool invocation.
func (m *Metrics) RecordToolCall(tool, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ToolCalls.WithLabelValues(tool, outcome).Inc()
	m.ToolCallDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// SessionStarted marks a session as running.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

// SessionEnded marks a session as finished with the given result.
func (m *Metrics) SessionEnded(result string) {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	m.SessionsTotal.WithLabelValues(result).Inc()
}

// SessionFailed counts a session that never started running.
func (m *Metrics) SessionFailed() {
	if m == nil {
		return
	}
	m.SessionsTotal.WithLabelValues("failed_to_start").Inc()
}

// RecordTranscriptForward counts a transcript hand-off attempt.
func (m *Metrics) RecordTranscriptForward(result string) {
	if m == nil {
		return
	}
	m.TranscriptsForwards.WithLabelValues(result).Inc()
}

// RecordDirectoryLookup counts a directory resolution.
func (m *Metrics) RecordDirectoryLookup(result string) {
	if m == nil {
		return
	}
	m.DirectoryLookups.WithLabelValues(result).Inc()
}

// SetGuardrails records the current guardrail count.
func (m *Metrics) SetGuardrails(n int) {
	if m == nil {
		return
	}
	m.Guardrails.Set(float64(n))
}
