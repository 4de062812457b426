package invoke

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	sfntypes "github.com/aws/aws-sdk-go-v2/service/sfn/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfroyo/vpclambda/pkg/engine"
)

// Mock Step Functions API for testing. Each DescribeExecution call returns the
// next status in statuses, repeating the last one.
type mockSFNAPI struct {
	mu        sync.Mutex
	started   []*sfn.StartExecutionInput
	statuses  []sfntypes.ExecutionStatus
	describes int
	startErr  error
}

func (m *mockSFNAPI) StartExecution(ctx context.Context, params *sfn.StartExecutionInput, optFns ...func(*sfn.Options)) (*sfn.StartExecutionOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return nil, m.startErr
	}
	m.started = append(m.started, params)
	return &sfn.StartExecutionOutput{
		ExecutionArn: aws.String("arn:aws:states:eu-west-1:123456789012:execution:sm:run-1"),
		StartDate:    aws.Time(time.Now()),
	}, nil
}

func (m *mockSFNAPI) DescribeExecution(ctx context.Context, params *sfn.DescribeExecutionInput, optFns ...func(*sfn.Options)) (*sfn.DescribeExecutionOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.describes
	if idx >= len(m.statuses) {
		idx = len(m.statuses) - 1
	}
	m.describes++

	status := m.statuses[idx]
	out := &sfn.DescribeExecutionOutput{
		ExecutionArn: params.ExecutionArn,
		Name:         aws.String("run-1"),
		Status:       status,
		StartDate:    aws.Time(time.Now()),
		Input:        aws.String(`{"numberForInputMap":3}`),
	}
	if status == sfntypes.ExecutionStatusSucceeded {
		out.Output = aws.String(`[202,202,202]`)
		out.StopDate = aws.Time(time.Now())
	}
	if status == sfntypes.ExecutionStatusFailed {
		out.Error = aws.String("States.TaskFailed")
		out.Cause = aws.String("boom")
	}
	return out, nil
}

const testStateMachineARN = "arn:aws:states:eu-west-1:123456789012:stateMachine:sm"

func TestStateMachineClient_Start(t *testing.T) {
	api := &mockSFNAPI{}
	client := NewStateMachineClientWithAPI(api, testStateMachineARN)

	arn, err := client.Start(context.Background(), json.RawMessage(`{"numberForInputMap":3}`), "run-1")
	require.NoError(t, err)
	assert.Contains(t, arn, "execution:sm:run-1")

	require.Len(t, api.started, 1)
	assert.Equal(t, testStateMachineARN, aws.ToString(api.started[0].StateMachineArn))
	assert.Equal(t, `{"numberForInputMap":3}`, aws.ToString(api.started[0].Input))
	assert.Equal(t, "run-1", aws.ToString(api.started[0].Name))
}

func TestStateMachineClient_StartValidation(t *testing.T) {
	_, err := NewStateMachineClientWithAPI(&mockSFNAPI{}, "").Start(context.Background(), json.RawMessage(`{}`), "")
	assert.True(t, engine.IsValidation(err))

	_, err = NewStateMachineClientWithAPI(&mockSFNAPI{}, testStateMachineARN).Start(context.Background(), json.RawMessage(`{`), "")
	assert.True(t, engine.IsValidation(err))
}

func TestStateMachineClient_StartRejected(t *testing.T) {
	api := &mockSFNAPI{startErr: &smithy.GenericAPIError{Code: "StateMachineDoesNotExist"}}
	client := NewStateMachineClientWithAPI(api, testStateMachineARN)

	_, err := client.Start(context.Background(), json.RawMessage(`{}`), "")
	require.Error(t, err)
	assert.Equal(t, engine.ErrCodeDispatchRejected, engine.AsError(err).Code)
}

func TestStateMachineClient_WaitSucceeded(t *testing.T) {
	api := &mockSFNAPI{statuses: []sfntypes.ExecutionStatus{
		sfntypes.ExecutionStatusRunning,
		sfntypes.ExecutionStatusRunning,
		sfntypes.ExecutionStatusSucceeded,
	}}
	client := NewStateMachineClientWithAPI(api, testStateMachineARN)
	client.SetPollInterval(time.Millisecond)

	exec, err := client.Wait(context.Background(), "arn:exec")
	require.NoError(t, err)

	assert.Equal(t, engine.ExecutionStatusSucceeded, exec.Status)
	assert.Equal(t, "SUCCEEDED", exec.RawStatus)
	assert.JSONEq(t, `[202,202,202]`, string(exec.Output))
	assert.NotNil(t, exec.StoppedAt)
	assert.Equal(t, 3, api.describes)
}

func TestStateMachineClient_WaitFailed(t *testing.T) {
	api := &mockSFNAPI{statuses: []sfntypes.ExecutionStatus{sfntypes.ExecutionStatusFailed}}
	client := NewStateMachineClientWithAPI(api, testStateMachineARN)

	exec, err := client.Wait(context.Background(), "arn:exec")
	require.NoError(t, err)
	assert.Equal(t, engine.ExecutionStatusFailed, exec.Status)
	assert.Equal(t, "States.TaskFailed", exec.Error)
	assert.Equal(t, "boom", exec.Cause)
}

func TestStateMachineClient_WaitCancelled(t *testing.T) {
	api := &mockSFNAPI{statuses: []sfntypes.ExecutionStatus{sfntypes.ExecutionStatusRunning}}
	client := NewStateMachineClientWithAPI(api, testStateMachineARN)
	client.SetPollInterval(5 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	exec, err := client.Wait(ctx, "arn:exec")
	require.Error(t, err)
	require.NotNil(t, exec)
	assert.Equal(t, engine.ExecutionStatusRunning, exec.Status)
}

func TestExecutionStatusMapping(t *testing.T) {
	assert.Equal(t, engine.ExecutionStatusRunning, executionStatus(sfntypes.ExecutionStatusRunning))
	assert.Equal(t, engine.ExecutionStatusSucceeded, executionStatus(sfntypes.ExecutionStatusSucceeded))
	assert.Equal(t, engine.ExecutionStatusFailed, executionStatus(sfntypes.ExecutionStatusTimedOut))
	assert.Equal(t, engine.ExecutionStatusFailed, executionStatus(sfntypes.ExecutionStatusAborted))
	assert.Equal(t, engine.ExecutionStatusFailed, executionStatus("PENDING_REDRIVE"))
}
