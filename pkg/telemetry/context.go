package telemetry

import (
	"context"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides a unified telemetry interface combining logging, tracing, metrics, and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	return newTelemetry(cfg, logger)
}

// NewTelemetryWithWriter creates a telemetry instance whose logger writes to w.
func NewTelemetryWithWriter(cfg *Config, w io.Writer) (*Telemetry, error) {
	return newTelemetry(cfg, NewLoggerWithWriter(cfg.Logging, w))
}

func newTelemetry(cfg *Config, logger *Logger) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	// reverse order of initialization
	if err := t.Events.Shutdown(ctx); err != nil {
		return err
	}
	return t.Tracer.Shutdown(ctx)
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
func (t *Telemetry) StartMetricsServer() error {
	return t.Metrics.StartMetricsServer()
}

// InstrumentedContext bundles a span, a logger and a timer for one operation.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation begins an instrumented operation with logging, tracing, and timing.
func StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *InstrumentedContext {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &InstrumentedContext{
			Ctx:    ctx,
			Logger: FromContext(ctx),
			Timer:  NewTimer(),
		}
	}

	spanCtx, span := tel.Tracer.StartSpan(ctx, operation, attrs...)

	logger := FromContext(ctx).WithField("operation", operation)
	if span.SpanContext().IsValid() {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}

	return &InstrumentedContext{
		Ctx:    logger.WithContext(spanCtx),
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
	}
}

// End finishes the instrumented operation, recording success or failure.
func (ic *InstrumentedContext) End(err error) {
	if ic.Span == nil {
		return
	}
	if err != nil {
		RecordError(ic.Span, err)
	} else {
		RecordSuccess(ic.Span)
	}
	ic.Span.End()
}

// MetricsFromContext returns the metrics of the telemetry in ctx, or a no-op
// instance when there is none.
func MetricsFromContext(ctx context.Context) *Metrics {
	if tel := FromTelemetryContext(ctx); tel != nil && tel.Metrics != nil {
		return tel.Metrics
	}
	return &Metrics{}
}

// EventsFromContext returns the event publisher of the telemetry in ctx, or a
// disabled publisher when there is none.
func EventsFromContext(ctx context.Context) *EventPublisher {
	if tel := FromTelemetryContext(ctx); tel != nil && tel.Events != nil {
		return tel.Events
	}
	return &EventPublisher{}
}

// WithExecutionContext creates a context enriched with execution-specific telemetry.
// The returned span must be ended by the caller.
func WithExecutionContext(ctx context.Context, executionID string) (context.Context, trace.Span) {
	logger := FromContext(ctx).WithExecutionID(executionID)
	ctx = logger.WithContext(ctx)

	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx, noopSpan()
	}

	spanCtx, span := tel.Tracer.StartExecutionSpan(ctx, executionID)
	tel.Metrics.RecordExecutionStarted()
	if err := tel.Events.PublishExecutionStarted(executionID); err != nil {
		logger.WithError(err).Warn("Timeline event dropped")
	}

	return spanCtx, span
}

// StartStateContext starts a span for one workflow state. Without telemetry in
// ctx it returns ctx unchanged and a span that records nothing.
func StartStateContext(ctx context.Context, executionID, state string) (context.Context, trace.Span) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx, noopSpan()
	}
	return tel.Tracer.StartStateSpan(ctx, executionID, state)
}

// StartInvokeContext starts a span for one function invocation.
func StartInvokeContext(ctx context.Context, function, invocationType string) (context.Context, trace.Span) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx, noopSpan()
	}
	return tel.Tracer.StartInvokeSpan(ctx, function, invocationType)
}

func noopSpan() trace.Span {
	return trace.SpanFromContext(context.Background())
}
