// Package client is the client-side facade over pkg/peer: it knows the
// initialize handshake and exposes one typed method per MCP operation a
// client may call. The methods do not check the server's advertised
// capabilities before sending; HasCapability lets callers do that.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	mcperrors "github.com/mcpruntime/core/pkg/errors"
	"github.com/mcpruntime/core/pkg/pagination"
	"github.com/mcpruntime/core/pkg/peer"
	"github.com/mcpruntime/core/pkg/protocol"
	"github.com/mcpruntime/core/pkg/transport"
)

// SamplingCallback is invoked when the server sends a sampling/createMessage
// request. The client's response is returned to the server as the result.
type SamplingCallback func(ctx context.Context, params *protocol.CreateMessageParams) (*protocol.CreateMessageResult, error)

// ResourceChangedCallback is invoked when a subscribed resource changes.
type ResourceChangedCallback func(uri string)

// Option configures a Client during New.
type Option func(*Client)

// WithName sets the client name advertised during the initialize handshake.
func WithName(name string) Option { return func(c *Client) { c.name = name } }

// WithVersion sets the client version advertised during the initialize
// handshake.
func WithVersion(version string) Option { return func(c *Client) { c.version = version } }

// WithRootsCapability advertises roots/list_changed support.
func WithRootsCapability(listChanged bool) Option {
	return func(c *Client) { c.capabilities.Roots = &protocol.RootsCapability{ListChanged: listChanged} }
}

// WithSamplingCapability advertises sampling support; cb answers inbound
// sampling/createMessage requests.
func WithSamplingCapability(cb SamplingCallback) Option {
	return func(c *Client) {
		c.capabilities.Sampling = &struct{}{}
		c.samplingCallback = cb
	}
}

// WithPromptsCapability advertises prompts support.
func WithPromptsCapability(listChanged bool) Option {
	return func(c *Client) {
		c.capabilities.Prompts = &protocol.PromptsCapability{ListChanged: listChanged}
	}
}

// Client is an MCP client: the initialize handshake plus one typed method
// per client-initiated operation, all routed through an embedded peer.Peer.
type Client struct {
	*peer.Peer

	name         string
	version      string
	capabilities protocol.ClientCapabilities

	mu           sync.RWMutex
	initialized  bool
	serverInfo   protocol.ServerInfo
	serverCaps   protocol.ServerCapabilities

	samplingCallback SamplingCallback
	resourceChanged  ResourceChangedCallback
}

// New builds a Client around an already-constructed transport. Call
// Initialize (or InitializeAndStart) before issuing any other request.
func New(t transport.Transport, opts ...Option) *Client {
	c := &Client{
		Peer:    peer.New(t, peer.RoleClient),
		name:    "mcpruntime-client",
		version: "0.1.0",
	}
	for _, opt := range opts {
		opt(c)
	}

	c.Peer.Handle(protocol.MethodSample, c.handleSample)
	c.Peer.HandleNotification(protocol.NotificationResourcesUpdated, c.handleResourceUpdated)

	return c
}

func (c *Client) handleSample(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	if c.samplingCallback == nil {
		return nil, mcperrors.NotImplemented(protocol.MethodSample)
	}
	var params protocol.CreateMessageParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, mcperrors.IllegalArgument("sampling/createMessage: " + err.Error())
	}
	return c.samplingCallback(ctx, &params)
}

func (c *Client) handleResourceUpdated(ctx context.Context, raw json.RawMessage) error {
	if c.resourceChanged == nil {
		return nil
	}
	var params protocol.ResourceUpdatedParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return err
	}
	c.resourceChanged(params.URI)
	return nil
}

// SetResourceChangedCallback installs the callback invoked on
// notifications/resources/updated. Must be called before Start to avoid
// racing the transport's read loop.
func (c *Client) SetResourceChangedCallback(cb ResourceChangedCallback) {
	c.resourceChanged = cb
}

// Initialize performs the initialize handshake and sends the initialized
// notification on success. Idempotent: a second call is a no-op.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.RLock()
	done := c.initialized
	c.mu.RUnlock()
	if done {
		return nil
	}

	params := &protocol.InitializeParams{
		ProtocolVersion: protocol.ProtocolRevision,
		Capabilities:    c.capabilities,
		ClientInfo: protocol.ClientInfo{
			Name:    c.name,
			Version: c.version,
		},
	}

	resp, err := c.SendRequest(ctx, protocol.MethodInitialize, params)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if resp.Error != nil {
		return mcperrors.FromJSONRPCError(resp.Error)
	}

	var result protocol.InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return fmt.Errorf("initialize: parsing result: %w", err)
	}

	c.mu.Lock()
	c.serverInfo = result.ServerInfo
	c.serverCaps = result.Capabilities
	c.initialized = true
	c.mu.Unlock()

	return c.SendNotification(ctx, protocol.NotificationInitialized, nil)
}

// InitializeAndStart performs Initialize then Start in sequence.
func (c *Client) InitializeAndStart(ctx context.Context) error {
	if err := c.Initialize(ctx); err != nil {
		return err
	}
	return c.Start(ctx)
}

// ServerInfo returns the server identity learned during Initialize. Zero
// value before Initialize completes.
func (c *Client) ServerInfo() protocol.ServerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// HasCapability reports whether the server advertised the given capability
// during Initialize.
func (c *Client) HasCapability(capability protocol.CapabilityType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	switch capability {
	case protocol.CapabilityTools:
		return c.serverCaps.Tools != nil
	case protocol.CapabilityResources:
		return c.serverCaps.Resources != nil
	case protocol.CapabilityPrompts:
		return c.serverCaps.Prompts != nil
	case protocol.CapabilityLogging:
		return c.serverCaps.Logging != nil
	default:
		return false
	}
}

// request performs a request and decodes its result, translating a
// protocol-level error into a Go error via the MCPError taxonomy.
func request[T any](ctx context.Context, c *Client, method string, params interface{}) (*T, error) {
	resp, err := c.SendRequest(ctx, method, params)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, mcperrors.FromJSONRPCError(resp.Error)
	}
	var out T
	if err := json.Unmarshal(resp.Result, &out); err != nil {
		return nil, fmt.Errorf("%s: parsing result: %w", method, err)
	}
	return &out, nil
}

// ListTools lists one page of tools, cursor == "" for the first page.
func (c *Client) ListTools(ctx context.Context, cursor string) ([]protocol.Tool, string, error) {
	result, err := request[protocol.ListToolsResult](ctx, c, protocol.MethodListTools, &protocol.ListToolsParams{Cursor: cursor})
	if err != nil {
		return nil, "", err
	}
	return result.Tools, result.NextCursor, nil
}

// ListAllTools pages through tools/list to completion.
func (c *Client) ListAllTools(ctx context.Context) ([]protocol.Tool, error) {
	d := pagination.New(
		func(ctx context.Context, params *protocol.ListToolsParams) (*protocol.ListToolsResult, error) {
			return request[protocol.ListToolsResult](ctx, c, protocol.MethodListTools, params)
		},
		func(cursor string) *protocol.ListToolsParams { return &protocol.ListToolsParams{Cursor: cursor} },
		func(r *protocol.ListToolsResult) ([]protocol.Tool, string) { return r.Tools, r.NextCursor },
	)
	return pagination.Collect(ctx, d)
}

// CallTool invokes a tool by name with the given JSON-marshalable arguments.
func (c *Client) CallTool(ctx context.Context, name string, arguments interface{}) (*protocol.CallToolResult, error) {
	var argsJSON json.RawMessage
	if arguments != nil {
		var err error
		argsJSON, err = json.Marshal(arguments)
		if err != nil {
			return nil, fmt.Errorf("call tool %q: marshaling arguments: %w", name, err)
		}
	}
	return request[protocol.CallToolResult](ctx, c, protocol.MethodCallTool, &protocol.CallToolParams{
		Name:      name,
		Arguments: argsJSON,
	})
}

// ListResources lists one page of resources.
func (c *Client) ListResources(ctx context.Context, cursor string) ([]protocol.Resource, string, error) {
	result, err := request[protocol.ListResourcesResult](ctx, c, protocol.MethodListResources, &protocol.ListResourcesParams{Cursor: cursor})
	if err != nil {
		return nil, "", err
	}
	return result.Resources, result.NextCursor, nil
}

// ListAllResources pages through resources/list to completion.
func (c *Client) ListAllResources(ctx context.Context) ([]protocol.Resource, error) {
	d := pagination.New(
		func(ctx context.Context, params *protocol.ListResourcesParams) (*protocol.ListResourcesResult, error) {
			return request[protocol.ListResourcesResult](ctx, c, protocol.MethodListResources, params)
		},
		func(cursor string) *protocol.ListResourcesParams { return &protocol.ListResourcesParams{Cursor: cursor} },
		func(r *protocol.ListResourcesResult) ([]protocol.Resource, string) { return r.Resources, r.NextCursor },
	)
	return pagination.Collect(ctx, d)
}

// ListResourceTemplates lists one page of resource templates.
func (c *Client) ListResourceTemplates(ctx context.Context, cursor string) ([]protocol.ResourceTemplate, string, error) {
	result, err := request[protocol.ListResourceTemplatesResult](ctx, c, protocol.MethodListResourceTemplates, &protocol.ListResourceTemplatesParams{Cursor: cursor})
	if err != nil {
		return nil, "", err
	}
	return result.ResourceTemplates, result.NextCursor, nil
}

// ReadResource retrieves a resource by URI.
func (c *Client) ReadResource(ctx context.Context, uri string) ([]protocol.ResourceContents, error) {
	result, err := request[protocol.ReadResourceResult](ctx, c, protocol.MethodReadResource, &protocol.ReadResourceParams{URI: uri})
	if err != nil {
		return nil, err
	}
	return result.Contents, nil
}

// SubscribeResource subscribes to update notifications for a resource URI.
func (c *Client) SubscribeResource(ctx context.Context, uri string) error {
	_, err := request[protocol.SubscribeResourceResult](ctx, c, protocol.MethodSubscribeResource, &protocol.SubscribeResourceParams{URI: uri})
	return err
}

// UnsubscribeResource reverses a prior SubscribeResource.
func (c *Client) UnsubscribeResource(ctx context.Context, uri string) error {
	_, err := request[protocol.SubscribeResourceResult](ctx, c, protocol.MethodUnsubscribeResource, &protocol.SubscribeResourceParams{URI: uri})
	return err
}

// ListPrompts lists one page of prompts.
func (c *Client) ListPrompts(ctx context.Context, cursor string) ([]protocol.Prompt, string, error) {
	result, err := request[protocol.ListPromptsResult](ctx, c, protocol.MethodListPrompts, &protocol.ListPromptsParams{Cursor: cursor})
	if err != nil {
		return nil, "", err
	}
	return result.Prompts, result.NextCursor, nil
}

// ListAllPrompts pages through prompts/list to completion.
func (c *Client) ListAllPrompts(ctx context.Context) ([]protocol.Prompt, error) {
	d := pagination.New(
		func(ctx context.Context, params *protocol.ListPromptsParams) (*protocol.ListPromptsResult, error) {
			return request[protocol.ListPromptsResult](ctx, c, protocol.MethodListPrompts, params)
		},
		func(cursor string) *protocol.ListPromptsParams { return &protocol.ListPromptsParams{Cursor: cursor} },
		func(r *protocol.ListPromptsResult) ([]protocol.Prompt, string) { return r.Prompts, r.NextCursor },
	)
	return pagination.Collect(ctx, d)
}

// GetPrompt retrieves and renders a prompt by name with the given
// JSON-marshalable arguments.
func (c *Client) GetPrompt(ctx context.Context, name string, arguments interface{}) (*protocol.GetPromptResult, error) {
	var argsJSON json.RawMessage
	if arguments != nil {
		var err error
		argsJSON, err = json.Marshal(arguments)
		if err != nil {
			return nil, fmt.Errorf("get prompt %q: marshaling arguments: %w", name, err)
		}
	}
	return request[protocol.GetPromptResult](ctx, c, protocol.MethodGetPrompt, &protocol.GetPromptParams{
		Name:      name,
		Arguments: argsJSON,
	})
}

// Complete requests a completion against a prompt or resource argument.
func (c *Client) Complete(ctx context.Context, params *protocol.CompleteParams) (*protocol.CompleteResult, error) {
	return request[protocol.CompleteResult](ctx, c, protocol.MethodComplete, params)
}

// SetLogLevel sets the server's minimum logging level.
func (c *Client) SetLogLevel(ctx context.Context, level protocol.LogLevel) error {
	_, err := request[protocol.SetLogLevelResult](ctx, c, protocol.MethodSetLogLevel, &protocol.SetLogLevelParams{Level: level})
	return err
}

// Ping round-trips a ping to confirm the server is responsive.
func (c *Client) Ping(ctx context.Context) error {
	_, err := request[protocol.PingResult](ctx, c, protocol.MethodPing, &protocol.PingParams{})
	return err
}

// CancelRequest notifies the server that a previously sent request no
// longer needs a reply. The server may or may not honor it.
func (c *Client) CancelRequest(ctx context.Context, requestID interface{}, reason string) error {
	return c.SendNotification(ctx, protocol.NotificationCancelled, &protocol.CancelledParams{
		RequestID: requestID,
		Reason:    reason,
	})
}

// Close stops the underlying transport, failing any in-flight requests.
func (c *Client) Close(ctx context.Context) error {
	return c.Peer.Close(ctx)
}
