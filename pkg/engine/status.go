package engine

import (
	"encoding/json"
	"fmt"
)

// ExecutionStatus represents the overall status of a workflow execution.
type ExecutionStatus string

const (
	// ExecutionStatusPending indicates the execution has been created but not started.
	ExecutionStatusPending ExecutionStatus = "pending"

	// ExecutionStatusRunning indicates the execution is moving through its states.
	ExecutionStatusRunning ExecutionStatus = "running"

	// ExecutionStatusSucceeded indicates the execution reached the Succeed state.
	ExecutionStatusSucceeded ExecutionStatus = "succeeded"

	// ExecutionStatusFailed indicates a state failed and the execution halted.
	ExecutionStatusFailed ExecutionStatus = "failed"
)

// IsTerminal returns true if the status represents a final state.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusSucceeded || s == ExecutionStatusFailed
}

// Validate checks if the execution status is valid.
func (s ExecutionStatus) Validate() error {
	switch s {
	case ExecutionStatusPending, ExecutionStatusRunning,
		ExecutionStatusSucceeded, ExecutionStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid execution status: %s", s)
	}
}

// StateName identifies a state of the workflow.
type StateName string

const (
	// StateBuildArray invokes ArrayBuilder with the execution input.
	StateBuildArray StateName = "BuildArray"

	// StateFanOutReport dispatches one IpReporter invocation per array element.
	StateFanOutReport StateName = "FanOutReport"

	// StateSucceed is the terminal success state.
	StateSucceed StateName = "Succeed"

	// StateFailed is the terminal failure state.
	StateFailed StateName = "Failed"
)

// Next returns the state that follows s on success. Terminal states have no
// successor.
func (s StateName) Next() (StateName, bool) {
	switch s {
	case StateBuildArray:
		return StateFanOutReport, true
	case StateFanOutReport:
		return StateSucceed, true
	default:
		return "", false
	}
}

// IsTerminal returns true for Succeed and Failed.
func (s StateName) IsTerminal() bool {
	return s == StateSucceed || s == StateFailed
}

// InvocationType selects how a function is invoked.
type InvocationType string

const (
	// InvocationRequestResponse blocks until the function returns its payload.
	InvocationRequestResponse InvocationType = "RequestResponse"

	// InvocationEvent queues the invocation and returns as soon as it has been
	// accepted; the caller never sees the function's result.
	InvocationEvent InvocationType = "Event"
)

// Validate checks if the invocation type is valid.
func (t InvocationType) Validate() error {
	switch t {
	case InvocationRequestResponse, InvocationEvent:
		return nil
	default:
		return fmt.Errorf("invalid invocation type: %s", t)
	}
}

// Status codes returned for accepted invocations, matching the platform's.
const (
	StatusCodeRequestResponse = 200
	StatusCodeEventAccepted   = 202
)

// MarshalJSON implements json.Marshaler for ExecutionStatus.
func (s ExecutionStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler for ExecutionStatus.
func (s *ExecutionStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ExecutionStatus(str)
	return s.Validate()
}
