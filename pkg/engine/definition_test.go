package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDefinition(t *testing.T) {
	def := DefaultDefinition("CreateArray", "GetMyGlobalIP")

	require.NoError(t, def.Validate())
	assert.Equal(t, "$.numberForInputMap", def.NumberPath)
	assert.Equal(t, "$.Payload.array", def.ItemsPath)
	assert.Equal(t, "$", def.ItemPath)
	assert.Equal(t, "$.StatusCode", def.BranchOutputPath)
	assert.Equal(t, 0, def.MaxConcurrency)
	assert.Equal(t, InvocationEvent, def.ReportInvocation)
}

func TestDefinition_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *Definition)
	}{
		{"missing array function", func(d *Definition) { d.ArrayFunction = "" }},
		{"missing report function", func(d *Definition) { d.ReportFunction = "" }},
		{"path without root", func(d *Definition) { d.ItemsPath = "Payload.array" }},
		{"empty path segment", func(d *Definition) { d.NumberPath = "$..number" }},
		{"index expression", func(d *Definition) { d.ItemsPath = "$.Payload.array[0]" }},
		{"negative concurrency", func(d *Definition) { d.MaxConcurrency = -1 }},
		{"unknown invocation type", func(d *Definition) { d.ReportInvocation = "DryRun" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := DefaultDefinition("a", "b")
			tt.mutate(def)
			err := def.Validate()
			require.Error(t, err)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestDefinition_MarshalASL(t *testing.T) {
	def := DefaultDefinition("CreateArray", "GetMyGlobalIP")

	raw, err := def.MarshalASL()
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.Equal(t, "BuildArray", doc["StartAt"])
	states := doc["States"].(map[string]interface{})
	require.Len(t, states, 3)

	build := states["BuildArray"].(map[string]interface{})
	assert.Equal(t, "Task", build["Type"])
	assert.Equal(t, "arn:aws:states:::lambda:invoke", build["Resource"])
	assert.Equal(t, "FanOutReport", build["Next"])
	params := build["Parameters"].(map[string]interface{})
	assert.Equal(t, "CreateArray", params["FunctionName"])
	assert.Equal(t, map[string]interface{}{"number.$": "$.numberForInputMap"}, params["Payload"])

	fanOut := states["FanOutReport"].(map[string]interface{})
	assert.Equal(t, "Map", fanOut["Type"])
	assert.Equal(t, "$.Payload.array", fanOut["ItemsPath"])
	assert.EqualValues(t, 0, fanOut["MaxConcurrency"])
	assert.Equal(t, "Succeed", fanOut["Next"])

	iterator := fanOut["Iterator"].(map[string]interface{})
	assert.Equal(t, "ReportIP", iterator["StartAt"])
	report := iterator["States"].(map[string]interface{})["ReportIP"].(map[string]interface{})
	assert.Equal(t, "$.StatusCode", report["OutputPath"])
	assert.Equal(t, true, report["End"])
	reportParams := report["Parameters"].(map[string]interface{})
	assert.Equal(t, "GetMyGlobalIP", reportParams["FunctionName"])
	assert.Equal(t, "Event", reportParams["InvocationType"])
	assert.Equal(t, map[string]interface{}{"id.$": "$"}, reportParams["Payload"])

	assert.Equal(t, map[string]interface{}{"Type": "Succeed"}, states["Succeed"])
}

func TestDefinition_MarshalASLRequestResponseBranches(t *testing.T) {
	def := DefaultDefinition("CreateArray", "GetMyGlobalIP")
	def.ReportInvocation = InvocationRequestResponse

	raw, err := def.MarshalASL()
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"InvocationType"`)
}

func TestDefinition_MarshalASLInvalid(t *testing.T) {
	def := DefaultDefinition("", "GetMyGlobalIP")
	_, err := def.MarshalASL()
	assert.Error(t, err)
}
