package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event represents a timeline event of a workflow execution.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// ExecutionID is the associated execution ID, if applicable.
	ExecutionID string `json:"execution_id,omitempty"`

	// State is the workflow state the event belongs to, if applicable.
	State string `json:"state,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants.
const (
	EventTypeExecutionStarted   = "execution.started"
	EventTypeExecutionSucceeded = "execution.succeeded"
	EventTypeExecutionFailed    = "execution.failed"
	EventTypeStateEntered       = "state.entered"
	EventTypeStateExited        = "state.exited"
	EventTypeBranchDispatched   = "branch.dispatched"
	EventTypeInvocationFailed   = "invocation.failed"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Errors returned by Publish when an event is not delivered.
var (
	ErrPublisherStopped = errors.New("event publisher stopped")
	ErrEventDropped     = errors.New("event buffer full, event dropped")
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
	dropped     atomic.Uint64
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if ep.config.EnableAsync {
		return ep.enqueue(event)
	}

	ep.deliverEvent(event)
	return nil
}

// enqueue waits for buffer space, at most PublishTimeout when one is set.
func (ep *EventPublisher) enqueue(event Event) error {
	if ep.ctx.Err() != nil {
		ep.dropped.Add(1)
		return ErrPublisherStopped
	}

	select {
	case ep.buffer <- event:
		return nil
	default:
	}

	var timeout <-chan time.Time
	if ep.config.PublishTimeout > 0 {
		timer := time.NewTimer(ep.config.PublishTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case ep.buffer <- event:
		return nil
	case <-ep.ctx.Done():
		ep.dropped.Add(1)
		return ErrPublisherStopped
	case <-timeout:
		ep.dropped.Add(1)
		return ErrEventDropped
	}
}

// Dropped returns how many events were not delivered.
func (ep *EventPublisher) Dropped() uint64 {
	return ep.dropped.Load()
}

// PublishExecutionStarted publishes an execution started event.
func (ep *EventPublisher) PublishExecutionStarted(executionID string) error {
	return ep.Publish(Event{
		Type:        EventTypeExecutionStarted,
		Source:      "sequencer",
		ExecutionID: executionID,
		Message:     fmt.Sprintf("Execution %s started", executionID),
		Level:       EventLevelInfo,
	})
}

// PublishExecutionSucceeded publishes an execution succeeded event.
func (ep *EventPublisher) PublishExecutionSucceeded(executionID string, dispatched int, duration time.Duration) error {
	return ep.Publish(Event{
		Type:        EventTypeExecutionSucceeded,
		Source:      "sequencer",
		ExecutionID: executionID,
		Message:     fmt.Sprintf("Execution %s succeeded after %d dispatches", executionID, dispatched),
		Level:       EventLevelInfo,
		Data: map[string]interface{}{
			"dispatched": dispatched,
			"duration":   duration.Seconds(),
		},
	})
}

// PublishExecutionFailed publishes an execution failed event.
func (ep *EventPublisher) PublishExecutionFailed(executionID, state, reason string) error {
	return ep.Publish(Event{
		Type:        EventTypeExecutionFailed,
		Source:      "sequencer",
		ExecutionID: executionID,
		State:       state,
		Message:     fmt.Sprintf("Execution %s failed in %s: %s", executionID, state, reason),
		Level:       EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishStateEntered publishes a state entered event.
func (ep *EventPublisher) PublishStateEntered(executionID, state string) error {
	return ep.Publish(Event{
		Type:        EventTypeStateEntered,
		Source:      "sequencer",
		ExecutionID: executionID,
		State:       state,
		Message:     fmt.Sprintf("Entered state %s", state),
		Level:       EventLevelInfo,
	})
}

// PublishStateExited publishes a state exited event.
func (ep *EventPublisher) PublishStateExited(executionID, state string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:        EventTypeStateExited,
		Source:      "sequencer",
		ExecutionID: executionID,
		State:       state,
		Message:     fmt.Sprintf("Exited state %s", state),
		Level:       EventLevelInfo,
		Data: map[string]interface{}{
			"duration": duration.Seconds(),
		},
	})
}

// PublishBranchDispatched publishes a fan-out branch dispatch event.
func (ep *EventPublisher) PublishBranchDispatched(executionID, state string, index, statusCode int) error {
	return ep.Publish(Event{
		Type:        EventTypeBranchDispatched,
		Source:      "sequencer",
		ExecutionID: executionID,
		State:       state,
		Message:     fmt.Sprintf("Dispatched branch %d (status %d)", index, statusCode),
		Level:       EventLevelInfo,
		Data: map[string]interface{}{
			"index":       index,
			"status_code": statusCode,
		},
	})
}

// PublishInvocationFailed publishes a failure of an asynchronous invocation.
func (ep *EventPublisher) PublishInvocationFailed(function, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeInvocationFailed,
		Source:  "invoker",
		Message: fmt.Sprintf("Invocation of %s failed: %s", function, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"function": function,
			"reason":   reason,
		},
	})
}

// Subscribe adds a new event subscriber.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// processEvents processes events from the buffer asynchronously.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)

			// Flush when the batch is full or nothing else is queued
			if len(batch) >= ep.config.MaxBatchSize || len(ep.buffer) == 0 {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-ep.ctx.Done():
		drain:
			for {
				select {
				case event := <-ep.buffer:
					batch = append(batch, event)
				default:
					break drain
				}
			}
			if len(batch) > 0 {
				ep.flushBatch(batch)
			}
			return
		}
	}
}

// flushBatch delivers a batch of events to subscribers.
func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent delivers an event to all subscribers in publish order.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown drains buffered events and stops the publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}
