// Package server is the server-side facade of the MCP runtime: the
// initialize handshake, one capability-gated handler per operation a client
// may call, and the two server-initiated operations (roots/list and
// sampling/createMessage) that MethodDirections routes the other way.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	mcperrors "github.com/mcpruntime/core/pkg/errors"
	"github.com/mcpruntime/core/pkg/logging"
	"github.com/mcpruntime/core/pkg/peer"
	"github.com/mcpruntime/core/pkg/protocol"
	"github.com/mcpruntime/core/pkg/transport"
)

// DefaultLogger builds the text-formatted stderr logger every server uses
// unless WithLogger overrides it; stderr keeps log lines off a stdio
// transport's framed stdout stream.
func DefaultLogger() logging.Logger {
	return logging.New(os.Stderr, logging.NewTextFormatter())
}

// Option configures a Server during New.
type Option func(*Server)

// WithName sets the server name advertised during the initialize handshake.
func WithName(name string) Option { return func(s *Server) { s.name = name } }

// WithVersion sets the server version advertised during the initialize
// handshake.
func WithVersion(version string) Option { return func(s *Server) { s.version = version } }

// WithLogger overrides the default stderr text logger.
func WithLogger(l logging.Logger) Option { return func(s *Server) { s.logger = l } }

// WithToolsProvider enables the tools capability and registers the handler
// answering tools/list and tools/call.
func WithToolsProvider(p ToolsProvider, listChanged bool) Option {
	return func(s *Server) {
		s.tools = p
		s.capabilities.Tools = &protocol.ToolsCapability{ListChanged: listChanged}
	}
}

// WithResourcesProvider enables the resources capability and registers the
// handler answering resources/list, resources/read, and subscriptions.
func WithResourcesProvider(p ResourcesProvider, subscribe, listChanged bool) Option {
	return func(s *Server) {
		s.resources = p
		s.capabilities.Resources = &protocol.ResourcesCapability{Subscribe: subscribe, ListChanged: listChanged}
	}
}

// WithPromptsProvider enables the prompts capability and registers the
// handler answering prompts/list and prompts/get.
func WithPromptsProvider(p PromptsProvider, listChanged bool) Option {
	return func(s *Server) {
		s.prompts = p
		s.capabilities.Prompts = &protocol.PromptsCapability{ListChanged: listChanged}
	}
}

// WithCompletionProvider registers the handler answering completion/complete.
// Completion has no capability flag of its own in ServerCapabilities; its
// presence is signaled by whether a provider is configured.
func WithCompletionProvider(p CompletionProvider) Option {
	return func(s *Server) { s.completion = p }
}

// WithLoggingCapability enables the logging capability (logging/setLevel).
func WithLoggingCapability() Option {
	return func(s *Server) { s.capabilities.Logging = &struct{}{} }
}

// Server is an MCP server: the initialize handshake, one handler per
// client-initiated operation gated on a configured provider, and outbound
// methods for the two server-initiated operations, all routed through an
// embedded peer.Peer.
type Server struct {
	*peer.Peer

	name    string
	version string
	logger  logging.Logger

	capabilities protocol.ServerCapabilities

	tools      ToolsProvider
	resources  ResourcesProvider
	prompts    PromptsProvider
	completion CompletionProvider

	subscriptions *subscriptionManager

	mu          sync.RWMutex
	initialized bool
	clientInfo  protocol.ClientInfo
	clientCaps  protocol.ClientCapabilities
	logLevel    protocol.LogLevel
}

// New builds a Server around an already-constructed transport and registers
// handlers for every configured provider. Call Start to begin serving.
func New(t transport.Transport, opts ...Option) *Server {
	s := &Server{
		Peer:     peer.New(t, peer.RoleServer),
		name:     "mcpruntime-server",
		version:  "0.1.0",
		logger:   DefaultLogger(),
		logLevel: protocol.LogLevelInfo,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.subscriptions = newSubscriptionManager(s)

	s.Peer.Handle(protocol.MethodInitialize, s.handleInitialize)
	s.Peer.Handle(protocol.MethodPing, s.handlePing)
	s.Peer.HandleNotification(protocol.NotificationInitialized, s.handleInitializedNotification)
	s.Peer.HandleNotification(protocol.NotificationCancelled, s.handleCancelled)

	if s.tools != nil {
		s.Peer.Handle(protocol.MethodListTools, s.handleListTools)
		s.Peer.Handle(protocol.MethodCallTool, s.handleCallTool)
	}
	if s.resources != nil {
		s.Peer.Handle(protocol.MethodListResources, s.handleListResources)
		s.Peer.Handle(protocol.MethodListResourceTemplates, s.handleListResourceTemplates)
		s.Peer.Handle(protocol.MethodReadResource, s.handleReadResource)
		s.Peer.Handle(protocol.MethodSubscribeResource, s.handleSubscribeResource)
		s.Peer.Handle(protocol.MethodUnsubscribeResource, s.handleUnsubscribeResource)
	}
	if s.prompts != nil {
		s.Peer.Handle(protocol.MethodListPrompts, s.handleListPrompts)
		s.Peer.Handle(protocol.MethodGetPrompt, s.handleGetPrompt)
	}
	if s.completion != nil {
		s.Peer.Handle(protocol.MethodComplete, s.handleComplete)
	}
	if s.capabilities.Logging != nil {
		s.Peer.Handle(protocol.MethodSetLogLevel, s.handleSetLogLevel)
	}

	return s
}

// Logger returns the server's configured logger.
func (s *Server) Logger() logging.Logger { return s.logger }

func (s *Server) handleInitialize(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params protocol.InitializeParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, mcperrors.CreateInvalidParamsError(protocol.MethodInitialize, nil, err.Error())
	}

	s.mu.Lock()
	s.clientInfo = params.ClientInfo
	s.clientCaps = params.Capabilities
	s.mu.Unlock()

	s.logger.Info("initialize", logging.String("client", params.ClientInfo.Name), logging.String("version", params.ClientInfo.Version))

	return &protocol.InitializeResult{
		ProtocolVersion: protocol.ProtocolRevision,
		Capabilities:    s.capabilities,
		ServerInfo:      protocol.ServerInfo{Name: s.name, Version: s.version},
	}, nil
}

func (s *Server) handleInitializedNotification(ctx context.Context, raw json.RawMessage) error {
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()
	return nil
}

func (s *Server) handleCancelled(ctx context.Context, raw json.RawMessage) error {
	var params protocol.CancelledParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return err
	}
	s.logger.Debug("request cancelled", logging.Any("requestId", params.RequestID), logging.String("reason", params.Reason))
	return nil
}

func (s *Server) handlePing(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	return &protocol.PingResult{}, nil
}

func (s *Server) handleListTools(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params protocol.ListToolsParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, mcperrors.CreateInvalidParamsError(protocol.MethodListTools, nil, err.Error())
	}
	tools, next, err := s.tools.ListTools(ctx, params.Cursor)
	if err != nil {
		return nil, err
	}
	return &protocol.ListToolsResult{Tools: tools, NextCursor: next}, nil
}

func (s *Server) handleCallTool(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params protocol.CallToolParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, mcperrors.CreateInvalidParamsError(protocol.MethodCallTool, nil, err.Error())
	}
	return s.tools.CallTool(ctx, params.Name, params.Arguments)
}

func (s *Server) handleListResources(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params protocol.ListResourcesParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, mcperrors.CreateInvalidParamsError(protocol.MethodListResources, nil, err.Error())
	}
	resources, next, err := s.resources.ListResources(ctx, params.Cursor)
	if err != nil {
		return nil, err
	}
	return &protocol.ListResourcesResult{Resources: resources, NextCursor: next}, nil
}

func (s *Server) handleListResourceTemplates(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params protocol.ListResourceTemplatesParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, mcperrors.CreateInvalidParamsError(protocol.MethodListResourceTemplates, nil, err.Error())
	}
	templates, next, err := s.resources.ListResourceTemplates(ctx, params.Cursor)
	if err != nil {
		return nil, err
	}
	return &protocol.ListResourceTemplatesResult{ResourceTemplates: templates, NextCursor: next}, nil
}

func (s *Server) handleReadResource(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params protocol.ReadResourceParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, mcperrors.CreateInvalidParamsError(protocol.MethodReadResource, nil, err.Error())
	}
	contents, err := s.resources.ReadResource(ctx, params.URI)
	if err != nil {
		return nil, err
	}
	return &protocol.ReadResourceResult{Contents: contents}, nil
}

func (s *Server) handleSubscribeResource(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params protocol.SubscribeResourceParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, mcperrors.CreateInvalidParamsError(protocol.MethodSubscribeResource, nil, err.Error())
	}
	if err := s.resources.SubscribeResource(ctx, params.URI); err != nil {
		return nil, err
	}
	s.subscriptions.subscribe(params.URI)
	return &protocol.SubscribeResourceResult{}, nil
}

func (s *Server) handleUnsubscribeResource(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params protocol.SubscribeResourceParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, mcperrors.CreateInvalidParamsError(protocol.MethodUnsubscribeResource, nil, err.Error())
	}
	if err := s.resources.UnsubscribeResource(ctx, params.URI); err != nil {
		return nil, err
	}
	s.subscriptions.unsubscribe(params.URI)
	return &protocol.SubscribeResourceResult{}, nil
}

func (s *Server) handleListPrompts(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params protocol.ListPromptsParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, mcperrors.CreateInvalidParamsError(protocol.MethodListPrompts, nil, err.Error())
	}
	prompts, next, err := s.prompts.ListPrompts(ctx, params.Cursor)
	if err != nil {
		return nil, err
	}
	return &protocol.ListPromptsResult{Prompts: prompts, NextCursor: next}, nil
}

func (s *Server) handleGetPrompt(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params protocol.GetPromptParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, mcperrors.CreateInvalidParamsError(protocol.MethodGetPrompt, nil, err.Error())
	}
	return s.prompts.GetPrompt(ctx, params.Name, params.Arguments)
}

func (s *Server) handleComplete(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params protocol.CompleteParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, mcperrors.CreateInvalidParamsError(protocol.MethodComplete, nil, err.Error())
	}
	return s.completion.Complete(ctx, &params)
}

func (s *Server) handleSetLogLevel(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var params protocol.SetLogLevelParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, mcperrors.CreateInvalidParamsError(protocol.MethodSetLogLevel, nil, err.Error())
	}
	s.mu.Lock()
	s.logLevel = params.Level
	s.mu.Unlock()
	return &protocol.SetLogLevelResult{}, nil
}

// ListRoots is a server-initiated request: roots/list travels from server to
// client, the reverse of every other list operation in this package.
func (s *Server) ListRoots(ctx context.Context) ([]protocol.Root, error) {
	resp, err := s.SendRequest(ctx, protocol.MethodListRoots, &protocol.ListRootsParams{})
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, mcperrors.FromJSONRPCError(resp.Error)
	}
	var result protocol.ListRootsResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("roots/list: parsing result: %w", err)
	}
	return result.Roots, nil
}

// CreateMessage is a server-initiated request: sampling/createMessage asks
// the client's model on the server's behalf.
func (s *Server) CreateMessage(ctx context.Context, params *protocol.CreateMessageParams) (*protocol.CreateMessageResult, error) {
	resp, err := s.SendRequest(ctx, protocol.MethodSample, params)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, mcperrors.FromJSONRPCError(resp.Error)
	}
	var result protocol.CreateMessageResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("sampling/createMessage: parsing result: %w", err)
	}
	return &result, nil
}

// NotifyToolsListChanged tells the client the tool set changed.
func (s *Server) NotifyToolsListChanged(ctx context.Context) error {
	return s.SendNotification(ctx, protocol.NotificationToolsListChanged, &protocol.ToolsListChangedParams{})
}

// NotifyPromptsListChanged tells the client the prompt set changed.
func (s *Server) NotifyPromptsListChanged(ctx context.Context) error {
	return s.SendNotification(ctx, protocol.NotificationPromptsListChanged, &protocol.PromptsListChangedParams{})
}

// NotifyResourcesListChanged tells the client the resource set changed.
func (s *Server) NotifyResourcesListChanged(ctx context.Context) error {
	return s.SendNotification(ctx, protocol.NotificationResourcesListChanged, &protocol.ResourcesListChangedParams{})
}

// NotifyResourceUpdated tells the client a subscribed resource's contents
// changed. Only sent for URIs with an active subscription.
func (s *Server) NotifyResourceUpdated(ctx context.Context, uri string) error {
	if !s.subscriptions.isSubscribed(uri) {
		return nil
	}
	return s.SendNotification(ctx, protocol.NotificationResourcesUpdated, &protocol.ResourceUpdatedParams{URI: uri})
}

// LogMessage sends a logging/message notification if level meets or exceeds
// the level the client last set via logging/setLevel.
func (s *Server) LogMessage(ctx context.Context, level protocol.LogLevel, logger string, data interface{}) error {
	s.mu.RLock()
	threshold := s.logLevel
	s.mu.RUnlock()
	if logLevelSeverity(level) < logLevelSeverity(threshold) {
		return nil
	}
	return s.SendNotification(ctx, protocol.NotificationMessage, &protocol.LogMessageParams{
		Level:  level,
		Logger: logger,
		Data:   data,
	})
}

var logLevelOrder = map[protocol.LogLevel]int{
	protocol.LogLevelDebug:     0,
	protocol.LogLevelInfo:      1,
	protocol.LogLevelNotice:    2,
	protocol.LogLevelWarning:   3,
	protocol.LogLevelError:     4,
	protocol.LogLevelCritical:  5,
	protocol.LogLevelAlert:     6,
	protocol.LogLevelEmergency: 7,
}

func logLevelSeverity(l protocol.LogLevel) int {
	if v, ok := logLevelOrder[l]; ok {
		return v
	}
	return logLevelOrder[protocol.LogLevelInfo]
}

// Close stops the underlying transport and the subscription manager.
func (s *Server) Close(ctx context.Context) error {
	s.subscriptions.stop()
	return s.Peer.Close(ctx)
}
