package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateName_Next(t *testing.T) {
	next, ok := StateBuildArray.Next()
	assert.True(t, ok)
	assert.Equal(t, StateFanOutReport, next)

	next, ok = StateFanOutReport.Next()
	assert.True(t, ok)
	assert.Equal(t, StateSucceed, next)

	_, ok = StateSucceed.Next()
	assert.False(t, ok)
	_, ok = StateFailed.Next()
	assert.False(t, ok)

	assert.True(t, StateSucceed.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.False(t, StateBuildArray.IsTerminal())
}

func TestExecutionStatus_JSON(t *testing.T) {
	raw, err := json.Marshal(ExecutionStatusSucceeded)
	require.NoError(t, err)
	assert.Equal(t, `"succeeded"`, string(raw))

	var s ExecutionStatus
	require.NoError(t, json.Unmarshal([]byte(`"failed"`), &s))
	assert.Equal(t, ExecutionStatusFailed, s)
	assert.True(t, s.IsTerminal())

	assert.Error(t, json.Unmarshal([]byte(`"paused"`), &s))
}

func TestInvocationType_Validate(t *testing.T) {
	assert.NoError(t, InvocationEvent.Validate())
	assert.NoError(t, InvocationRequestResponse.Validate())
	assert.Error(t, InvocationType("DryRun").Validate())
}

func TestNumberSequence_EmptyEncodesAsArray(t *testing.T) {
	raw, err := json.Marshal(NumberSequence{Array: []int{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"array":[]}`, string(raw))
}
