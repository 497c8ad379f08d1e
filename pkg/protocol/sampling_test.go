package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateMessageParamsRoundTrip(t *testing.T) {
	params := CreateMessageParams{
		Messages: []SamplingMessage{
			{Role: "user", Content: NewTextContent("summarize this")},
		},
		ModelPreferences: &ModelPreferences{
			Hints:        []ModelHint{{Name: "claude"}},
			CostPriority: 0.2,
		},
		MaxTokens: 256,
	}

	data, err := json.Marshal(params)
	require.NoError(t, err)

	var decoded CreateMessageParams
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, params, decoded)
}

func TestCreateMessageResultRoundTrip(t *testing.T) {
	result := CreateMessageResult{
		Role:       "assistant",
		Content:    NewTextContent("done"),
		Model:      "claude",
		StopReason: "endTurn",
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded CreateMessageResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, result, decoded)
}
