package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/openfroyo/vpclambda/pkg/telemetry"
)

// Sequencer runs the workflow BuildArray -> FanOutReport -> Succeed against an
// Invoker. It keeps no state between executions.
type Sequencer struct {
	def     *Definition
	invoker Invoker
}

// NewSequencer creates a sequencer for a validated definition.
func NewSequencer(def *Definition, invoker Invoker) (*Sequencer, error) {
	if def == nil {
		return nil, NewValidationError("definition is nil", nil)
	}
	if invoker == nil {
		return nil, NewValidationError("invoker is nil", nil)
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &Sequencer{def: def, invoker: invoker}, nil
}

// Definition returns the workflow definition the sequencer runs.
func (s *Sequencer) Definition() *Definition {
	return s.def
}

// Start runs one execution to a terminal state and returns it. The returned
// error is non-nil exactly when the execution failed; the execution is
// returned in both cases.
//
// Start returns as soon as every fan-out branch has been accepted by the
// invoker. It never waits for the reporting work itself.
func (s *Sequencer) Start(ctx context.Context, input json.RawMessage) (*Execution, error) {
	exec := &Execution{
		ID:          uuid.New().String(),
		Status:      ExecutionStatusPending,
		Input:       input,
		StartedAt:   time.Now(),
		Transitions: make([]Transition, 0, 3),
	}

	ctx, span := telemetry.WithExecutionContext(ctx, exec.ID)
	defer span.End()
	logger := telemetry.FromContext(ctx)

	exec.Status = ExecutionStatusRunning
	logger.Info("Execution started")

	var current interface{}
	doc, err := decodeDocument(input)
	if err != nil {
		return s.fail(ctx, exec, StateBuildArray, NewValidationError("execution input is not valid JSON", err))
	}
	current = doc

	state := StateBuildArray
	for !state.IsTerminal() {
		idx := s.enter(ctx, exec, state)
		stateCtx, stateSpan := telemetry.StartStateContext(ctx, exec.ID, string(state))

		var out interface{}
		switch state {
		case StateBuildArray:
			out, err = s.buildArray(stateCtx, current)
		case StateFanOutReport:
			out, err = s.fanOut(stateCtx, exec, current)
		default:
			err = NewUnhandledError(fmt.Sprintf("no behaviour for state %s", state), nil)
		}

		s.exit(ctx, exec, idx, out, err)
		if err != nil {
			telemetry.RecordError(stateSpan, err)
			stateSpan.End()
			telemetry.RecordError(span, err)
			return s.fail(ctx, exec, state, err)
		}
		telemetry.RecordSuccess(stateSpan)
		stateSpan.End()

		current = out
		state, _ = state.Next()
	}

	idx := s.enter(ctx, exec, StateSucceed)
	s.exit(ctx, exec, idx, current, nil)

	output, err := json.Marshal(current)
	if err != nil {
		return s.fail(ctx, exec, StateSucceed, NewUnhandledError("failed to encode execution output", err))
	}

	completedAt := time.Now()
	exec.Output = output
	exec.Status = ExecutionStatusSucceeded
	exec.CompletedAt = &completedAt
	exec.Duration = completedAt.Sub(exec.StartedAt)

	telemetry.RecordSuccess(span)
	telemetry.MetricsFromContext(ctx).RecordExecutionCompleted(string(exec.Status), exec.Duration)
	publishEvent(ctx, telemetry.EventsFromContext(ctx).PublishExecutionSucceeded(exec.ID, exec.Dispatched, exec.Duration))
	logger.Infof("Execution succeeded with %d dispatched reports", exec.Dispatched)

	return exec, nil
}

// buildArray invokes ArrayBuilder and waits for its sequence.
func (s *Sequencer) buildArray(ctx context.Context, input interface{}) (interface{}, error) {
	number, err := selectPath(input, s.def.NumberPath)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]interface{}{"number": number})
	if err != nil {
		return nil, NewUnhandledError("failed to encode array request", err)
	}

	res, err := s.invoker.Invoke(ctx, &InvokeRequest{
		Function: s.def.ArrayFunction,
		Type:     InvocationRequestResponse,
		Payload:  payload,
	})
	if err != nil {
		return nil, err
	}

	var body interface{}
	if len(res.Payload) > 0 {
		body, err = decodeDocument(res.Payload)
		if err != nil {
			return nil, NewUnhandledError("array function returned malformed JSON", err)
		}
	}

	return map[string]interface{}{
		"Payload":    body,
		"StatusCode": res.StatusCode,
	}, nil
}

// fanOut dispatches one report invocation per item and returns the list of
// branch outputs in item order.
func (s *Sequencer) fanOut(ctx context.Context, exec *Execution, input interface{}) (interface{}, error) {
	selected, err := selectPath(input, s.def.ItemsPath)
	if err != nil {
		return nil, err
	}
	items, ok := selected.([]interface{})
	if !ok {
		return nil, NewValidationError(fmt.Sprintf("items path %q does not select an array", s.def.ItemsPath), nil).
			WithCode(ErrCodeInvalidPath)
	}

	trace.SpanFromContext(ctx).SetAttributes(telemetry.AttrItemCount.Int(len(items)))

	results := make([]interface{}, len(items))
	if len(items) == 0 {
		return results, nil
	}

	workerCount := len(items)
	if s.def.MaxConcurrency > 0 && s.def.MaxConcurrency < workerCount {
		workerCount = s.def.MaxConcurrency
	}

	workQueue := make(chan int, len(items))
	for i := range items {
		workQueue <- i
	}
	close(workQueue)

	// The first failed branch stops the remaining dispatches.
	branchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg         sync.WaitGroup
		dispatched atomic.Int64
		errMu      sync.Mutex
		firstErr   error
	)

	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for i := range workQueue {
				out, err := s.dispatchBranch(branchCtx, exec.ID, i, items[i])
				if err != nil {
					errMu.Lock()
					if firstErr == nil {
						firstErr = err
						cancel()
					}
					errMu.Unlock()
					continue
				}
				dispatched.Add(1)
				results[i] = out
			}
		}()
	}

	wg.Wait()
	exec.Dispatched = int(dispatched.Load())

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// dispatchBranch hands one item to the report function using the configured
// invocation type.
func (s *Sequencer) dispatchBranch(ctx context.Context, executionID string, index int, item interface{}) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewUnhandledError("execution cancelled before dispatch", err).WithCode(ErrCodeCancelled)
	}

	id, err := selectPath(item, s.def.ItemPath)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]interface{}{"id": id})
	if err != nil {
		return nil, NewUnhandledError("failed to encode report request", err)
	}

	res, err := s.invoker.Invoke(ctx, &InvokeRequest{
		Function: s.def.ReportFunction,
		Type:     s.def.ReportInvocation,
		Payload:  payload,
	})
	if err != nil {
		return nil, err
	}

	var body interface{}
	if len(res.Payload) > 0 {
		if body, err = decodeDocument(res.Payload); err != nil {
			body = string(res.Payload)
		}
	}

	out, err := selectPath(map[string]interface{}{
		"Payload":    body,
		"StatusCode": res.StatusCode,
	}, s.def.BranchOutputPath)
	if err != nil {
		return nil, err
	}

	publishEvent(ctx, telemetry.EventsFromContext(ctx).PublishBranchDispatched(executionID, string(StateFanOutReport), index, res.StatusCode))
	return out, nil
}

// enter appends a transition for state and returns its index.
func (s *Sequencer) enter(ctx context.Context, exec *Execution, state StateName) int {
	exec.Transitions = append(exec.Transitions, Transition{
		State:     state,
		EnteredAt: time.Now(),
	})

	telemetry.MetricsFromContext(ctx).RecordStateTransition(string(state))
	publishEvent(ctx, telemetry.EventsFromContext(ctx).PublishStateEntered(exec.ID, string(state)))
	telemetry.FromContext(ctx).WithState(string(state)).Debug("Entered state")

	return len(exec.Transitions) - 1
}

// exit closes the transition at idx with the state's output or error.
func (s *Sequencer) exit(ctx context.Context, exec *Execution, idx int, out interface{}, err error) {
	tr := &exec.Transitions[idx]
	tr.ExitedAt = time.Now()
	if err != nil {
		tr.Error = err.Error()
	} else if out != nil {
		if raw, mErr := json.Marshal(out); mErr == nil {
			tr.Output = raw
		}
	}

	publishEvent(ctx, telemetry.EventsFromContext(ctx).PublishStateExited(exec.ID, string(tr.State), tr.ExitedAt.Sub(tr.EnteredAt)))
}

// fail moves the execution to the Failed state.
func (s *Sequencer) fail(ctx context.Context, exec *Execution, state StateName, err error) (*Execution, error) {
	classified := AsError(err)
	if classified.Unit == "" {
		classified.Unit = string(state)
	}

	idx := s.enter(ctx, exec, StateFailed)
	s.exit(ctx, exec, idx, nil, classified)

	completedAt := time.Now()
	exec.Status = ExecutionStatusFailed
	exec.Error = classified
	exec.CompletedAt = &completedAt
	exec.Duration = completedAt.Sub(exec.StartedAt)

	metrics := telemetry.MetricsFromContext(ctx)
	metrics.RecordError(string(classified.Kind))
	metrics.RecordExecutionCompleted(string(exec.Status), exec.Duration)
	publishEvent(ctx, telemetry.EventsFromContext(ctx).PublishExecutionFailed(exec.ID, string(state), classified.Error()))
	telemetry.FromContext(ctx).WithError(classified).
		WithState(string(state)).
		Error("Execution failed")

	return exec, classified
}

// publishEvent logs timeline events the publisher could not deliver.
func publishEvent(ctx context.Context, err error) {
	if err != nil {
		telemetry.FromContext(ctx).WithError(err).Warn("Timeline event dropped")
	}
}
