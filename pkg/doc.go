// Package pkg is the parent of the Model Context Protocol (MCP) runtime's
// sub-packages: client, server, protocol, transport, registry, codegen, and
// auth/observability support. See the root package (github.com/mcpruntime/core)
// for convenience re-exports and usage examples.
//
// # Sub-packages
//
//   - client: Implements the client side of the protocol
//   - server: Implements the server side of the protocol
//   - protocol: Defines the core JSON-RPC and MCP message types
//   - transport: stdio, HTTP, and Streamable HTTP transports
//   - registry: process-wide handler registry for build-time generated tools/prompts
//   - codegen: the //mcp:tool and //mcp:prompt scanner and generator (see cmd/mcpgen)
//   - auth: bearer token and API key authentication
//   - observability: OpenTelemetry tracing and Prometheus metrics
package pkg
