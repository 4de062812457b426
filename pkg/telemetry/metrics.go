package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics provides Prometheus metrics for executions and work units.
type Metrics struct {
	config MetricsConfig

	// Execution metrics
	executionsStarted   prometheus.Counter
	executionsCompleted *prometheus.CounterVec
	executionDuration   *prometheus.HistogramVec
	stateTransitions    *prometheus.CounterVec
	activeExecutions    prometheus.Gauge

	// Invocation metrics
	invocations        *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec
	inflightEvents     prometheus.Gauge

	// Work unit metrics
	arraysBuilt    prometheus.Counter
	recordsEmitted prometheus.Counter
	lookupDuration *prometheus.HistogramVec
	errorsByKind   *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// no-op instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		executionsStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_started_total",
				Help:      "Total number of workflow executions started",
			},
		),
		executionsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_completed_total",
				Help:      "Total number of workflow executions completed",
			},
			[]string{"status"},
		),
		executionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "execution_duration_seconds",
				Help:      "Duration of workflow executions in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),
		stateTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_transitions_total",
				Help:      "Total number of workflow state transitions",
			},
			[]string{"state"},
		),
		activeExecutions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_executions",
				Help:      "Current number of running workflow executions",
			},
		),

		invocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invocations_total",
				Help:      "Total number of function invocations",
			},
			[]string{"function", "invocation_type", "status"},
		),
		invocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invocation_duration_seconds",
				Help:      "Duration of function invocations in seconds",
				Buckets:   buckets,
			},
			[]string{"function", "invocation_type"},
		),
		inflightEvents: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "inflight_event_invocations",
				Help:      "Event invocations accepted but not yet finished",
			},
		),

		arraysBuilt: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "arrays_built_total",
				Help:      "Total number of number sequences built",
			},
		),
		recordsEmitted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ip_records_emitted_total",
				Help:      "Total number of address records emitted",
			},
		),
		lookupDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "lookup_duration_seconds",
				Help:      "Duration of public address lookups in seconds",
				Buckets:   buckets,
			},
			[]string{"outcome"},
		),
		errorsByKind: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors by kind",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(
		m.executionsStarted,
		m.executionsCompleted,
		m.executionDuration,
		m.stateTransitions,
		m.activeExecutions,
		m.invocations,
		m.invocationDuration,
		m.inflightEvents,
		m.arraysBuilt,
		m.recordsEmitted,
		m.lookupDuration,
		m.errorsByKind,
	)

	return m, nil
}

// RecordExecutionStarted increments the counter for started executions.
func (m *Metrics) RecordExecutionStarted() {
	if m.executionsStarted == nil {
		return
	}
	m.executionsStarted.Inc()
	m.activeExecutions.Inc()
}

// RecordExecutionCompleted records a finished execution with its status and duration.
func (m *Metrics) RecordExecutionCompleted(status string, duration time.Duration) {
	if m.executionsCompleted == nil {
		return
	}
	m.executionsCompleted.WithLabelValues(status).Inc()
	m.executionDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeExecutions.Dec()
}

// RecordStateTransition records entry into a workflow state.
func (m *Metrics) RecordStateTransition(state string) {
	if m.stateTransitions == nil {
		return
	}
	m.stateTransitions.WithLabelValues(state).Inc()
}

// RecordInvocation records a function invocation with its outcome.
func (m *Metrics) RecordInvocation(function, invocationType, status string, duration time.Duration) {
	if m.invocations == nil {
		return
	}
	m.invocations.WithLabelValues(function, invocationType, status).Inc()
	m.invocationDuration.WithLabelValues(function, invocationType).Observe(duration.Seconds())
}

// AddInflightEvents adjusts the number of in-flight event invocations.
func (m *Metrics) AddInflightEvents(delta float64) {
	if m.inflightEvents == nil {
		return
	}
	m.inflightEvents.Add(delta)
}

// RecordArrayBuilt increments the number of built sequences.
func (m *Metrics) RecordArrayBuilt() {
	if m.arraysBuilt == nil {
		return
	}
	m.arraysBuilt.Inc()
}

// RecordReportEmitted increments the number of emitted address records.
func (m *Metrics) RecordReportEmitted() {
	if m.recordsEmitted == nil {
		return
	}
	m.recordsEmitted.Inc()
}

// RecordLookup records the duration of a public address lookup.
func (m *Metrics) RecordLookup(outcome string, duration time.Duration) {
	if m.lookupDuration == nil {
		return
	}
	m.lookupDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordError records an error by kind.
func (m *Metrics) RecordError(kind string) {
	if m.errorsByKind == nil {
		return
	}
	m.errorsByKind.WithLabelValues(kind).Inc()
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Registry returns the underlying registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Str("addr", m.config.ListenAddress).Msg("Metrics server stopped")
		}
	}()

	return nil
}
