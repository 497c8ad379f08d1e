package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTool(t *testing.T) {
	tool := Tool{
		Name:        "echo",
		Description: "Echoes its input",
		InputSchema: json.RawMessage(`{"type":"object"}`),
	}

	data, err := json.Marshal(tool)
	require.NoError(t, err)

	var decoded Tool
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, tool, decoded)
}

func TestListToolsParamsRoundTrip(t *testing.T) {
	params := ListToolsParams{Cursor: "page-2"}

	data, err := json.Marshal(params)
	require.NoError(t, err)

	var decoded ListToolsParams
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, params, decoded)
}

func TestListToolsResultTerminatesOnEmptyCursor(t *testing.T) {
	result := ListToolsResult{
		Tools:      []Tool{{Name: "echo"}},
		NextCursor: "",
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "nextCursor")
}

func TestCallToolParamsRoundTrip(t *testing.T) {
	params := CallToolParams{
		Name:      "echo",
		Arguments: json.RawMessage(`{"text":"hi"}`),
	}

	data, err := json.Marshal(params)
	require.NoError(t, err)

	var decoded CallToolParams
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, params.Name, decoded.Name)
	assert.JSONEq(t, string(params.Arguments), string(decoded.Arguments))
}

func TestCallToolResultContent(t *testing.T) {
	result := CallToolResult{
		Content: []Content{NewTextContent("hi")},
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded CallToolResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Content, 1)
	assert.Equal(t, ContentTypeText, decoded.Content[0].Type)
	assert.Equal(t, "hi", decoded.Content[0].Text)
	assert.False(t, decoded.IsError)
}

func TestCallToolResultIsError(t *testing.T) {
	result := CallToolResult{
		Content: []Content{NewTextContent("boom")},
		IsError: true,
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded CallToolResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded.IsError)
}
