package invoke

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/openfroyo/vpclambda/pkg/engine"
	"github.com/openfroyo/vpclambda/pkg/telemetry"
)

// EventFailure records an event invocation that failed after it was accepted.
// The caller that dispatched it never learns about it.
type EventFailure struct {
	Function string
	Payload  json.RawMessage
	Err      error
	At       time.Time
}

// LocalInvoker dispatches invocations to in-process handlers.
type LocalInvoker struct {
	mu       sync.RWMutex
	handlers map[string]engine.HandlerFunc

	inflight sync.WaitGroup

	failMu   sync.Mutex
	failures []EventFailure
}

// NewLocalInvoker creates an invoker with no registered functions.
func NewLocalInvoker() *LocalInvoker {
	return &LocalInvoker{
		handlers: make(map[string]engine.HandlerFunc),
	}
}

// Register binds a function name to a handler, replacing any previous one.
func (l *LocalInvoker) Register(function string, handler engine.HandlerFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[function] = handler
}

// Functions returns the registered function names in sorted order.
func (l *LocalInvoker) Functions() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.handlers))
	for name := range l.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke runs the named handler. Request/response calls return the handler's
// payload or error. Event calls return once the handler has been scheduled;
// the handler runs with a context that keeps ctx's values but not its
// cancellation.
func (l *LocalInvoker) Invoke(ctx context.Context, req *engine.InvokeRequest) (*engine.InvokeResult, error) {
	if req == nil {
		return nil, engine.NewValidationError("invoke request is nil", nil)
	}
	if err := req.Type.Validate(); err != nil {
		return nil, engine.NewValidationError("invalid invocation type", err).WithUnit(req.Function)
	}

	l.mu.RLock()
	handler, ok := l.handlers[req.Function]
	l.mu.RUnlock()
	if !ok {
		return nil, engine.NewUnhandledError(fmt.Sprintf("function %q is not registered", req.Function), nil).
			WithCode(engine.ErrCodeFunctionNotFound).
			WithUnit(req.Function)
	}

	if req.Type == engine.InvocationEvent {
		return l.dispatchEvent(ctx, req, handler)
	}
	return l.invokeSync(ctx, req, handler)
}

func (l *LocalInvoker) invokeSync(ctx context.Context, req *engine.InvokeRequest, handler engine.HandlerFunc) (*engine.InvokeResult, error) {
	ctx, span := telemetry.StartInvokeContext(ctx, req.Function, string(req.Type))
	defer span.End()
	timer := telemetry.NewTimer()

	out, err := handler(ctx, req.Payload)
	status := "success"
	if err != nil {
		status = "failure"
		telemetry.RecordError(span, err)
	}
	telemetry.MetricsFromContext(ctx).RecordInvocation(req.Function, string(req.Type), status, timer.Duration())

	if err != nil {
		classified := engine.AsError(err)
		if classified.Unit == "" {
			classified.Unit = req.Function
		}
		return nil, classified
	}

	return &engine.InvokeResult{
		StatusCode: engine.StatusCodeRequestResponse,
		Accepted:   true,
		Payload:    out,
	}, nil
}

func (l *LocalInvoker) dispatchEvent(ctx context.Context, req *engine.InvokeRequest, handler engine.HandlerFunc) (*engine.InvokeResult, error) {
	payload := append(json.RawMessage(nil), req.Payload...)
	detached := context.WithoutCancel(ctx)
	metrics := telemetry.MetricsFromContext(ctx)

	l.inflight.Add(1)
	metrics.AddInflightEvents(1)

	go func() {
		defer l.inflight.Done()
		defer metrics.AddInflightEvents(-1)

		evCtx, span := telemetry.StartInvokeContext(detached, req.Function, string(engine.InvocationEvent))
		defer span.End()
		timer := telemetry.NewTimer()

		_, err := l.runEvent(evCtx, handler, payload)
		if err == nil {
			metrics.RecordInvocation(req.Function, string(engine.InvocationEvent), "success", timer.Duration())
			return
		}

		telemetry.RecordError(span, err)
		metrics.RecordInvocation(req.Function, string(engine.InvocationEvent), "failure", timer.Duration())
		logger := telemetry.FromContext(evCtx).WithFunction(req.Function, string(engine.InvocationEvent))
		if pErr := telemetry.EventsFromContext(evCtx).PublishInvocationFailed(req.Function, err.Error()); pErr != nil {
			logger.WithError(pErr).Warn("Timeline event dropped")
		}
		logger.WithError(err).Warn("Event invocation failed after acceptance")

		l.failMu.Lock()
		l.failures = append(l.failures, EventFailure{
			Function: req.Function,
			Payload:  payload,
			Err:      err,
			At:       time.Now(),
		})
		l.failMu.Unlock()
	}()

	return &engine.InvokeResult{
		StatusCode: engine.StatusCodeEventAccepted,
		Accepted:   true,
	}, nil
}

// runEvent calls handler and turns a panic into an unhandled error.
func (l *LocalInvoker) runEvent(ctx context.Context, handler engine.HandlerFunc, payload json.RawMessage) (out json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = engine.NewUnhandledError(fmt.Sprintf("handler panicked: %v", r), nil)
		}
	}()
	return handler(ctx, payload)
}

// Drain blocks until every accepted event invocation has finished or ctx is
// done.
func (l *LocalInvoker) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain interrupted: %w", ctx.Err())
	}
}

// Failures returns a copy of the event invocations that failed so far.
func (l *LocalInvoker) Failures() []EventFailure {
	l.failMu.Lock()
	defer l.failMu.Unlock()
	return append([]EventFailure(nil), l.failures...)
}
