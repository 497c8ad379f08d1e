// Package mcp provides a Golang implementation of the Model Context Protocol (2024-11-05)
package mcp

import (
	"github.com/mcpruntime/core/pkg/client"
	"github.com/mcpruntime/core/pkg/protocol"
	"github.com/mcpruntime/core/pkg/registry"
	"github.com/mcpruntime/core/pkg/server"
	"github.com/mcpruntime/core/pkg/transport"
)

// ProtocolRevision is the protocol version this runtime speaks.
const ProtocolRevision = protocol.ProtocolRevision

// These exports provide direct access to the core SDK components.
var (
	// NewClient creates a new MCP client bound to an existing transport.
	NewClient = client.New

	// NewServer creates a new MCP server bound to an existing transport.
	NewServer = server.New

	// NewTransport builds a Transport from a TransportConfig (stdio, HTTP, or
	// Streamable HTTP, selected by config.Type).
	NewTransport = transport.NewTransport

	// DefaultTransportConfig returns a TransportConfig filled with default
	// timeouts, retry, circuit-breaker and observability settings for the
	// given transport type, ready for NewTransport or further tuning.
	DefaultTransportConfig = transport.DefaultTransportConfig
)

// Transport type selectors, passed to DefaultTransportConfig.
const (
	TransportTypeStdio          = transport.TransportTypeStdio
	TransportTypeHTTP           = transport.TransportTypeHTTP
	TransportTypeStreamableHTTP = transport.TransportTypeStreamableHTTP
)

// Protocol constants for capabilities.
const (
	CapabilityTools     = protocol.CapabilityTools
	CapabilityResources = protocol.CapabilityResources
	CapabilityPrompts   = protocol.CapabilityPrompts
	CapabilityLogging   = protocol.CapabilityLogging
)

// Client options.
var (
	WithClientName               = client.WithName
	WithClientVersion            = client.WithVersion
	WithClientRootsCapability    = client.WithRootsCapability
	WithClientSamplingCapability = client.WithSamplingCapability
	WithClientPromptsCapability  = client.WithPromptsCapability
)

// Server options.
var (
	WithServerName         = server.WithName
	WithServerVersion      = server.WithVersion
	WithServerLogger       = server.WithLogger
	WithToolsProvider      = server.WithToolsProvider
	WithResourcesProvider  = server.WithResourcesProvider
	WithPromptsProvider    = server.WithPromptsProvider
	WithCompletionProvider = server.WithCompletionProvider
	WithLoggingCapability  = server.WithLoggingCapability
)

// In-memory provider constructors, useful for small servers and tests.
var (
	NewMapToolsProvider     = server.NewMapToolsProvider
	NewMapResourcesProvider = server.NewMapResourcesProvider
	NewMapPromptsProvider   = server.NewMapPromptsProvider
)

// Registry bridges build-time generated handlers (see cmd/mcpgen) into a
// server's tools/prompts providers.
var (
	NewRegistryToolsProvider   = server.NewRegistryToolsProvider
	NewRegistryPromptsProvider = server.NewRegistryPromptsProvider
)

// Default is the process-wide handler registry that generated //mcp:tool
// and //mcp:prompt handlers register themselves into via init().
var Default = registry.Default
