package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectPath(t *testing.T) {
	doc, err := decodeDocument(json.RawMessage(`{"Payload":{"array":[1,2]},"StatusCode":200}`))
	require.NoError(t, err)

	whole, err := selectPath(doc, "$")
	require.NoError(t, err)
	assert.Equal(t, doc, whole)

	code, err := selectPath(doc, "$.StatusCode")
	require.NoError(t, err)
	assert.Equal(t, json.Number("200"), code)

	arr, err := selectPath(doc, "$.Payload.array")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{json.Number("1"), json.Number("2")}, arr)
}

func TestSelectPath_Errors(t *testing.T) {
	doc, err := decodeDocument(json.RawMessage(`{"a":{"b":1}}`))
	require.NoError(t, err)

	for _, path := range []string{"$.missing", "$.a.b.c", "a.b", "$.", ""} {
		_, err := selectPath(doc, path)
		require.Error(t, err, path)
		assert.Equal(t, ErrCodeInvalidPath, AsError(err).Code, path)
	}
}

func TestValidPath(t *testing.T) {
	assert.True(t, validPath("$"))
	assert.True(t, validPath("$.a"))
	assert.True(t, validPath("$.a.b"))
	assert.False(t, validPath(""))
	assert.False(t, validPath("$a"))
	assert.False(t, validPath("$.a..b"))
	assert.False(t, validPath("$.items[*]"))
}

func TestDecodeDocument(t *testing.T) {
	_, err := decodeDocument(json.RawMessage(`{"a":1} {"b":2}`))
	assert.Error(t, err)

	_, err = decodeDocument(json.RawMessage(`not json`))
	assert.Error(t, err)

	doc, err := decodeDocument(json.RawMessage(` 7 `))
	require.NoError(t, err)
	assert.Equal(t, json.Number("7"), doc)
}
