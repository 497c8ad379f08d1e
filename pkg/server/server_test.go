package server

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mcpruntime/core/pkg/protocol"
	"github.com/mcpruntime/core/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturingTransport embeds transport.BaseTransport so RegisterRequestHandler
// and HandleRequest/HandleNotification use the real dispatch path; only the
// outbound (server-initiated) methods are overridden to capture traffic and
// script responses.
type capturingTransport struct {
	transport.BaseTransport
	sent      []string
	responses map[string]*protocol.Response
	errs      map[string]error
}

func newCapturingTransport() *capturingTransport {
	return &capturingTransport{
		BaseTransport: *transport.NewBaseTransport(),
		responses:     make(map[string]*protocol.Response),
		errs:          make(map[string]error),
	}
}

func (c *capturingTransport) Initialize(ctx context.Context) error { return nil }
func (c *capturingTransport) Start(ctx context.Context) error       { return nil }
func (c *capturingTransport) Stop(ctx context.Context) error        { return nil }

func (c *capturingTransport) SendRequest(ctx context.Context, method string, params interface{}) (interface{}, error) {
	c.sent = append(c.sent, method)
	if err, ok := c.errs[method]; ok {
		return nil, err
	}
	if resp, ok := c.responses[method]; ok {
		return resp, nil
	}
	return nil, errors.New("no scripted response for " + method)
}

func (c *capturingTransport) SendNotification(ctx context.Context, method string, params interface{}) error {
	c.sent = append(c.sent, method)
	return nil
}

func callResult(t *testing.T, ct *capturingTransport, method string, params interface{}) *protocol.Response {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	resp, err := ct.HandleRequest(context.Background(), &protocol.Request{
		JSONRPCMessage: protocol.JSONRPCMessage{JSONRPC: protocol.JSONRPCVersion},
		ID:             "1",
		Method:         method,
		Params:         raw,
	})
	require.NoError(t, err)
	return resp
}

func TestInitializeAdvertisesConfiguredCapabilities(t *testing.T) {
	ct := newCapturingTransport()
	tools := NewMapToolsProvider(nil)
	s := New(ct, WithName("test-server"), WithVersion("2.0.0"), WithToolsProvider(tools, true))

	resp := callResult(t, ct, protocol.MethodInitialize, &protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolRevision,
		ClientInfo:      protocol.ClientInfo{Name: "test-client", Version: "1.0.0"},
	})
	require.Nil(t, resp.Error)

	var result protocol.InitializeResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, "test-server", result.ServerInfo.Name)
	require.NotNil(t, result.Capabilities.Tools)
	assert.True(t, result.Capabilities.Tools.ListChanged)
	assert.Nil(t, result.Capabilities.Resources)
	_ = s
}

func TestListToolsAndCallToolRouteToProvider(t *testing.T) {
	ct := newCapturingTransport()
	var called string
	tools := NewMapToolsProvider(func(ctx context.Context, name string, args json.RawMessage) (*protocol.CallToolResult, error) {
		called = name
		return &protocol.CallToolResult{Content: []protocol.Content{protocol.NewTextContent("done")}}, nil
	})
	tools.Register(protocol.Tool{Name: "echo"})
	New(ct, WithToolsProvider(tools, false))

	resp := callResult(t, ct, protocol.MethodListTools, &protocol.ListToolsParams{})
	require.Nil(t, resp.Error)
	var listResult protocol.ListToolsResult
	require.NoError(t, json.Unmarshal(resp.Result, &listResult))
	require.Len(t, listResult.Tools, 1)
	assert.Equal(t, "echo", listResult.Tools[0].Name)

	resp = callResult(t, ct, protocol.MethodCallTool, &protocol.CallToolParams{Name: "echo"})
	require.Nil(t, resp.Error)
	assert.Equal(t, "echo", called)
}

func TestCallUnknownToolReturnsError(t *testing.T) {
	ct := newCapturingTransport()
	tools := NewMapToolsProvider(func(ctx context.Context, name string, args json.RawMessage) (*protocol.CallToolResult, error) {
		return nil, nil
	})
	New(ct, WithToolsProvider(tools, false))

	resp := callResult(t, ct, protocol.MethodCallTool, &protocol.CallToolParams{Name: "missing"})
	require.NotNil(t, resp.Error)
}

func TestUnconfiguredCapabilityIsNotImplemented(t *testing.T) {
	ct := newCapturingTransport()
	New(ct)

	resp := callResult(t, ct, protocol.MethodListTools, &protocol.ListToolsParams{})
	require.NotNil(t, resp.Error)
}

func TestPingAlwaysAnswered(t *testing.T) {
	ct := newCapturingTransport()
	New(ct)

	resp := callResult(t, ct, protocol.MethodPing, &protocol.PingParams{})
	require.Nil(t, resp.Error)
}

func TestListRootsIsServerInitiated(t *testing.T) {
	ct := newCapturingTransport()
	s := New(ct)

	raw, _ := json.Marshal(protocol.ListRootsResult{Roots: []protocol.Root{{URI: "file:///a"}}})
	ct.responses[protocol.MethodListRoots] = &protocol.Response{
		JSONRPCMessage: protocol.JSONRPCMessage{JSONRPC: protocol.JSONRPCVersion},
		ID:             "1",
		Result:         raw,
	}

	roots, err := s.ListRoots(context.Background())
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "file:///a", roots[0].URI)
	assert.Contains(t, ct.sent, protocol.MethodListRoots)
}

func TestCreateMessageIsServerInitiated(t *testing.T) {
	ct := newCapturingTransport()
	s := New(ct)

	raw, _ := json.Marshal(protocol.CreateMessageResult{Role: "assistant", Content: protocol.NewTextContent("hi")})
	ct.responses[protocol.MethodSample] = &protocol.Response{
		JSONRPCMessage: protocol.JSONRPCMessage{JSONRPC: protocol.JSONRPCVersion},
		ID:             "1",
		Result:         raw,
	}

	result, err := s.CreateMessage(context.Background(), &protocol.CreateMessageParams{SystemPrompt: "be nice"})
	require.NoError(t, err)
	assert.Equal(t, "hi", result.Content.Text)
}

func TestNotifyResourceUpdatedOnlySendsWhenSubscribed(t *testing.T) {
	resources := NewMapResourcesProvider(func(ctx context.Context, uri string) ([]protocol.ResourceContents, error) {
		return []protocol.ResourceContents{{URI: uri, Text: "data"}}, nil
	})
	resources.Register(protocol.Resource{URI: "file:///a.txt"})
	ct := newCapturingTransport()
	s := New(ct, WithResourcesProvider(resources, true, false))

	require.NoError(t, s.NotifyResourceUpdated(context.Background(), "file:///a.txt"))
	assert.NotContains(t, ct.sent, protocol.NotificationResourcesUpdated)

	resp := callResult(t, ct, protocol.MethodSubscribeResource, &protocol.SubscribeResourceParams{URI: "file:///a.txt"})
	require.Nil(t, resp.Error)

	require.NoError(t, s.NotifyResourceUpdated(context.Background(), "file:///a.txt"))
	assert.Contains(t, ct.sent, protocol.NotificationResourcesUpdated)
}

func TestSetLogLevelGatesLogMessage(t *testing.T) {
	ct := newCapturingTransport()
	s := New(ct, WithLoggingCapability())

	resp := callResult(t, ct, protocol.MethodSetLogLevel, &protocol.SetLogLevelParams{Level: protocol.LogLevelError})
	require.Nil(t, resp.Error)

	require.NoError(t, s.LogMessage(context.Background(), protocol.LogLevelDebug, "test", "ignored"))
	assert.NotContains(t, ct.sent, protocol.NotificationMessage)

	require.NoError(t, s.LogMessage(context.Background(), protocol.LogLevelError, "test", "shown"))
	assert.Contains(t, ct.sent, protocol.NotificationMessage)
}
