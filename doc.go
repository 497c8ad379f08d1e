// Package mcp provides a comprehensive implementation of the Model Context Protocol.
//
// The Model Context Protocol (MCP) is a standardized communication protocol that enables
// AI models to interact with their environment through a well-defined interface. This
// package is the root of the MCP SDK for Go, providing convenient exports of the core
// components from the sub-packages.
//
// # Overview
//
// The MCP SDK consists of several sub-packages:
//
//   - pkg/client: Implements the client-side of the protocol
//   - pkg/server: Implements the server-side of the protocol
//   - pkg/protocol: Defines the core protocol types and messages
//   - pkg/transport: Provides transport mechanisms for communication
//   - pkg/pagination: Utilities for handling paginated results
//
// # Creating a Client
//
// To create a client that connects to an MCP server:
//
//	import (
//	    "context"
//	    "github.com/mcpruntime/core"
//	)
//
//	func main() {
//	    // Create a client with stdio transport
//	    t, _ := mcp.NewTransport(mcp.DefaultTransportConfig(mcp.TransportTypeStdio))
//	    client := mcp.NewClient(t,
//	        mcp.WithClientName("MyClient"),
//	        mcp.WithClientVersion("1.0.0"),
//	    )
//
//	    // Initialize and connect to the server
//	    ctx := context.Background()
//	    if err := client.InitializeAndStart(ctx); err != nil {
//	        // Handle error
//	    }
//	    defer client.Close(ctx)
//
//	    // Use client capabilities...
//	}
//
// # Creating a Server
//
// To create a server that implements the MCP protocol:
//
//	import (
//	    "context"
//	    "encoding/json"
//	    "github.com/mcpruntime/core"
//	    "github.com/mcpruntime/core/pkg/protocol"
//	)
//
//	func main() {
//	    // A minimal in-memory tools provider
//	    tools := mcp.NewMapToolsProvider(func(ctx context.Context, name string, arguments json.RawMessage) (*protocol.CallToolResult, error) {
//	        return &protocol.CallToolResult{
//	            Content: []protocol.Content{protocol.NewTextContent("Hello, World!")},
//	        }, nil
//	    })
//	    tools.Register(protocol.Tool{Name: "hello", Description: "Says hello"})
//
//	    // Create and configure the server
//	    t, _ := mcp.NewTransport(mcp.DefaultTransportConfig(mcp.TransportTypeStdio))
//	    server := mcp.NewServer(t,
//	        mcp.WithServerName("MyServer"),
//	        mcp.WithServerVersion("1.0.0"),
//	        mcp.WithToolsProvider(tools, false),
//	    )
//
//	    // Start the server (blocks until context is canceled)
//	    ctx := context.Background()
//	    if err := server.Start(ctx); err != nil {
//	        // Handle error
//	    }
//	}
//
// # Build-time tool generation
//
// Functions annotated with a "//mcp:tool name" or "//mcp:prompt name" magic
// comment are picked up by cmd/mcpgen, which generates a parameter envelope,
// an optional-argument decision tree, and an init() that registers the
// handler into pkg/registry.Default. Wire a server straight to it with
// mcp.NewRegistryToolsProvider(mcp.Default) / NewRegistryPromptsProvider.
//
// # Examples
//
// The module ships no examples directory; the snippets above and the
// client/server benchmarks in the benchmarks directory show typical use.
package mcp
