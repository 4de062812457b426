package invoke

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	sfntypes "github.com/aws/aws-sdk-go-v2/service/sfn/types"

	"github.com/openfroyo/vpclambda/pkg/engine"
	"github.com/openfroyo/vpclambda/pkg/telemetry"
)

// DefaultPollInterval is how often Wait checks a remote execution.
const DefaultPollInterval = 2 * time.Second

// StepFunctionsAPI is the subset of the Step Functions client used here.
type StepFunctionsAPI interface {
	StartExecution(ctx context.Context, params *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error)
	DescribeExecution(ctx context.Context, params *sfn.DescribeExecutionInput, optFns ...func(*sfn.Options)) (*sfn.DescribeExecutionOutput, error)
}

// RemoteExecution is the state of an execution of the deployed state machine.
type RemoteExecution struct {
	ARN       string                 `json:"arn"`
	Name      string                 `json:"name"`
	Status    engine.ExecutionStatus `json:"status"`
	RawStatus string                 `json:"raw_status"`
	Input     json.RawMessage        `json:"input,omitempty"`
	Output    json.RawMessage        `json:"output,omitempty"`
	StartedAt time.Time              `json:"started_at"`
	StoppedAt *time.Time             `json:"stopped_at,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Cause     string                 `json:"cause,omitempty"`
}

// StateMachineClient starts and watches executions of one state machine.
type StateMachineClient struct {
	api          StepFunctionsAPI
	arn          string
	pollInterval time.Duration
}

// NewStateMachineClient creates a client for the state machine arn.
func NewStateMachineClient(cfg aws.Config, arn string) *StateMachineClient {
	return NewStateMachineClientWithAPI(sfn.NewFromConfig(cfg), arn)
}

// NewStateMachineClientWithAPI creates a client around an existing API.
func NewStateMachineClientWithAPI(api StepFunctionsAPI, arn string) *StateMachineClient {
	return &StateMachineClient{
		api:          api,
		arn:          arn,
		pollInterval: DefaultPollInterval,
	}
}

// SetPollInterval changes how often Wait polls.
func (c *StateMachineClient) SetPollInterval(d time.Duration) {
	if d > 0 {
		c.pollInterval = d
	}
}

// Start begins an execution with input and returns its ARN. An empty name
// lets the service generate one.
func (c *StateMachineClient) Start(ctx context.Context, input json.RawMessage, name string) (string, error) {
	if c.arn == "" {
		return "", engine.NewValidationError("state machine ARN is not configured", nil)
	}
	if !json.Valid(input) {
		return "", engine.NewValidationError("execution input is not valid JSON", nil)
	}

	op := telemetry.StartOperation(ctx, "state_machine.start")
	params := &sfn.StartExecutionInput{
		StateMachineArn: aws.String(c.arn),
		Input:           aws.String(string(input)),
	}
	if name != "" {
		params.Name = aws.String(name)
	}

	out, err := c.api.StartExecution(op.Ctx, params)
	if err != nil {
		classified := classifyAWSError(err, c.arn)
		op.End(classified)
		return "", classified
	}
	op.End(nil)

	arn := aws.ToString(out.ExecutionArn)
	op.Logger.WithField("execution_arn", arn).Info("Remote execution started")
	return arn, nil
}

// Describe fetches the current state of an execution.
func (c *StateMachineClient) Describe(ctx context.Context, executionARN string) (*RemoteExecution, error) {
	out, err := c.api.DescribeExecution(ctx, &sfn.DescribeExecutionInput{
		ExecutionArn: aws.String(executionARN),
	})
	if err != nil {
		return nil, classifyAWSError(err, executionARN)
	}

	exec := &RemoteExecution{
		ARN:       aws.ToString(out.ExecutionArn),
		Name:      aws.ToString(out.Name),
		Status:    executionStatus(out.Status),
		RawStatus: string(out.Status),
		Error:     aws.ToString(out.Error),
		Cause:     aws.ToString(out.Cause),
		StoppedAt: out.StopDate,
	}
	if out.StartDate != nil {
		exec.StartedAt = *out.StartDate
	}
	if out.Input != nil {
		exec.Input = json.RawMessage(*out.Input)
	}
	if out.Output != nil {
		exec.Output = json.RawMessage(*out.Output)
	}
	return exec, nil
}

// Wait polls until the execution reaches a terminal status or ctx is done.
func (c *StateMachineClient) Wait(ctx context.Context, executionARN string) (*RemoteExecution, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		exec, err := c.Describe(ctx, executionARN)
		if err != nil {
			return nil, err
		}
		if exec.Status.IsTerminal() {
			return exec, nil
		}

		select {
		case <-ctx.Done():
			return exec, fmt.Errorf("stopped waiting for %s: %w", executionARN, ctx.Err())
		case <-ticker.C:
		}
	}
}

func executionStatus(s sfntypes.ExecutionStatus) engine.ExecutionStatus {
	switch s {
	case sfntypes.ExecutionStatusRunning:
		return engine.ExecutionStatusRunning
	case sfntypes.ExecutionStatusSucceeded:
		return engine.ExecutionStatusSucceeded
	case sfntypes.ExecutionStatusFailed, sfntypes.ExecutionStatusTimedOut,
		sfntypes.ExecutionStatusAborted, "PENDING_REDRIVE":
		return engine.ExecutionStatusFailed
	default:
		return engine.ExecutionStatusPending
	}
}
