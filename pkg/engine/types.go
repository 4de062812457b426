package engine

import (
	"encoding/json"
	"time"
)

// ExecutionInput is the payload a caller supplies to start the workflow.
type ExecutionInput struct {
	NumberForInputMap int `json:"numberForInputMap"`
}

// NumberRequest is the ArrayBuilder invocation payload.
type NumberRequest struct {
	Number int `json:"number" validate:"gte=0"`
}

// NumberSequence is the ArrayBuilder result. Array is never nil so that an
// empty sequence encodes as [] rather than null.
type NumberSequence struct {
	Array []int `json:"array"`
}

// IPRequest is the IpReporter invocation payload.
type IPRequest struct {
	ID int `json:"id"`
}

// IPReport is the record IpReporter writes to its log stream.
type IPReport struct {
	ID           int    `json:"id"`
	ResponseData string `json:"response_data"`
}

// ReportOutcome describes what a single IpReporter invocation produced. It is
// separate from dispatch acceptance: a branch can be accepted and never emit.
type ReportOutcome struct {
	Report   IPReport      `json:"report"`
	Emitted  bool          `json:"emitted"`
	Duration time.Duration `json:"duration"`
}

// Transition records one visit of the sequencer to a state.
type Transition struct {
	State     StateName       `json:"state"`
	EnteredAt time.Time       `json:"entered_at"`
	ExitedAt  time.Time       `json:"exited_at"`
	Output    json.RawMessage `json:"output,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Execution is one run of the workflow.
type Execution struct {
	ID          string          `json:"id"`
	Status      ExecutionStatus `json:"status"`
	Input       json.RawMessage `json:"input"`
	Output      json.RawMessage `json:"output,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Duration    time.Duration   `json:"duration"`
	Transitions []Transition    `json:"transitions"`

	// Dispatched counts fan-out branches whose invocation was accepted.
	Dispatched int    `json:"dispatched"`
	Error      *Error `json:"error,omitempty"`
}

// CurrentState returns the last state the execution entered.
func (e *Execution) CurrentState() StateName {
	if len(e.Transitions) == 0 {
		return ""
	}
	return e.Transitions[len(e.Transitions)-1].State
}

// States returns the visited states in order.
func (e *Execution) States() []StateName {
	states := make([]StateName, 0, len(e.Transitions))
	for _, t := range e.Transitions {
		states = append(states, t.State)
	}
	return states
}
