package engine

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// lambdaInvokeResource is the service integration used by both task states.
const lambdaInvokeResource = "arn:aws:states:::lambda:invoke"

// reportStateName names the single state inside the fan-out iterator.
const reportStateName = "ReportIP"

// Definition describes the workflow wiring: which functions the two task
// states call and how payloads are routed between them.
type Definition struct {
	// Comment is copied into the rendered state machine.
	Comment string `json:"comment,omitempty"`

	// ArrayFunction is the function name or ARN of ArrayBuilder.
	ArrayFunction string `json:"arrayFunction" validate:"required"`

	// ReportFunction is the function name or ARN of IpReporter.
	ReportFunction string `json:"reportFunction" validate:"required"`

	// NumberPath selects the number passed to ArrayBuilder from the execution input.
	NumberPath string `json:"numberPath" validate:"required,startswith=$"`

	// ItemsPath selects the array to fan out over from BuildArray's output.
	ItemsPath string `json:"itemsPath" validate:"required,startswith=$"`

	// ItemPath selects the report id from each fan-out item.
	ItemPath string `json:"itemPath" validate:"required,startswith=$"`

	// BranchOutputPath selects each branch's output from its invocation result.
	BranchOutputPath string `json:"branchOutputPath" validate:"required,startswith=$"`

	// MaxConcurrency bounds concurrent fan-out dispatches. Zero means unbounded.
	MaxConcurrency int `json:"maxConcurrency" validate:"gte=0"`

	// ReportInvocation is the invocation type of every fan-out branch.
	ReportInvocation InvocationType `json:"reportInvocation" validate:"oneof=RequestResponse Event"`
}

// DefaultDefinition returns the workflow wiring for the given functions: the
// number comes from $.numberForInputMap, every element of $.Payload.array is
// dispatched as an event with unbounded concurrency, and each branch keeps only
// the dispatch status code.
func DefaultDefinition(arrayFunction, reportFunction string) *Definition {
	return &Definition{
		Comment:          "Build [1..n] and report the public address once per element",
		ArrayFunction:    arrayFunction,
		ReportFunction:   reportFunction,
		NumberPath:       "$.numberForInputMap",
		ItemsPath:        "$.Payload.array",
		ItemPath:         "$",
		BranchOutputPath: "$.StatusCode",
		MaxConcurrency:   0,
		ReportInvocation: InvocationEvent,
	}
}

// Validate checks the definition's fields and reference paths.
func (d *Definition) Validate() error {
	if err := validator.New().Struct(d); err != nil {
		return NewValidationError("invalid workflow definition", err)
	}
	for _, p := range []string{d.NumberPath, d.ItemsPath, d.ItemPath, d.BranchOutputPath} {
		if !validPath(p) {
			return NewValidationError(fmt.Sprintf("invalid reference path %q", p), nil).
				WithCode(ErrCodeInvalidPath)
		}
	}
	return nil
}

type aslMachine struct {
	Comment string              `json:"Comment,omitempty"`
	StartAt string              `json:"StartAt"`
	States  map[string]aslState `json:"States"`
}

type aslState struct {
	Type           string                 `json:"Type"`
	Resource       string                 `json:"Resource,omitempty"`
	Parameters     map[string]interface{} `json:"Parameters,omitempty"`
	ItemsPath      string                 `json:"ItemsPath,omitempty"`
	MaxConcurrency *int                   `json:"MaxConcurrency,omitempty"`
	Iterator       *aslMachine            `json:"Iterator,omitempty"`
	OutputPath     string                 `json:"OutputPath,omitempty"`
	Next           string                 `json:"Next,omitempty"`
	End            bool                   `json:"End,omitempty"`
}

// MarshalASL renders the definition as an Amazon States Language document, the
// form a managed state machine executes.
func (d *Definition) MarshalASL() ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	branchParams := map[string]interface{}{
		"FunctionName": d.ReportFunction,
		"Payload": map[string]interface{}{
			"id.$": d.ItemPath,
		},
	}
	if d.ReportInvocation == InvocationEvent {
		branchParams["InvocationType"] = string(InvocationEvent)
	}

	maxConcurrency := d.MaxConcurrency
	machine := aslMachine{
		Comment: d.Comment,
		StartAt: string(StateBuildArray),
		States: map[string]aslState{
			string(StateBuildArray): {
				Type:     "Task",
				Resource: lambdaInvokeResource,
				Parameters: map[string]interface{}{
					"FunctionName": d.ArrayFunction,
					"Payload": map[string]interface{}{
						"number.$": d.NumberPath,
					},
				},
				Next: string(StateFanOutReport),
			},
			string(StateFanOutReport): {
				Type:           "Map",
				ItemsPath:      d.ItemsPath,
				MaxConcurrency: &maxConcurrency,
				Iterator: &aslMachine{
					StartAt: reportStateName,
					States: map[string]aslState{
						reportStateName: {
							Type:       "Task",
							Resource:   lambdaInvokeResource,
							Parameters: branchParams,
							OutputPath: d.BranchOutputPath,
							End:        true,
						},
					},
				},
				Next: string(StateSucceed),
			},
			string(StateSucceed): {
				Type: "Succeed",
			},
		},
	}

	return json.MarshalIndent(machine, "", "  ")
}
