package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodDirectionsCoversEveryClientMethod(t *testing.T) {
	for _, m := range []string{
		MethodInitialize, MethodListTools, MethodCallTool, MethodListPrompts,
		MethodGetPrompt, MethodListResources, MethodListResourceTemplates,
		MethodReadResource, MethodSubscribeResource, MethodUnsubscribeResource,
		MethodSetLogLevel, MethodComplete,
	} {
		assert.Equal(t, ClientToServer, MethodDirections[m], m)
	}
}

func TestMethodDirectionsCoversEveryServerMethod(t *testing.T) {
	for _, m := range []string{MethodListRoots, MethodSample} {
		assert.Equal(t, ServerToClient, MethodDirections[m], m)
	}
}

func TestPingIsEitherDirection(t *testing.T) {
	assert.Equal(t, Either, MethodDirections[MethodPing])
}

func TestInitializeResultRoundTrip(t *testing.T) {
	result := InitializeResult{
		ProtocolVersion: ProtocolRevision,
		Capabilities: ServerCapabilities{
			Tools: &ToolsCapability{ListChanged: true},
		},
		ServerInfo: ServerInfo{Name: "example-server", Version: "1.0.0"},
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded InitializeResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, result, decoded)
}

func TestSetLogLevelParamsRoundTrip(t *testing.T) {
	params := SetLogLevelParams{Level: LogLevelWarning}

	data, err := json.Marshal(params)
	require.NoError(t, err)

	var decoded SetLogLevelParams
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, params, decoded)
}
