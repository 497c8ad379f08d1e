// Package protocol defines the wire types and method table for the Model
// Context Protocol (MCP): a JSON-RPC 2.0 based protocol for tool, prompt,
// and resource exchange between a host and a model-backed service.
//
// # Package organization
//
//   - jsonrpc.go: the JSON-RPC 2.0 envelope (Request/Response/Notification)
//     and the Decode dispatch that discriminates a raw frame into one of them.
//   - methods.go: the closed method table, directions, capabilities, and the
//     initialize/ping/logging shapes.
//   - content.go: the Content union (text/image/resource) carried by tool
//     results and prompt messages.
//   - tools.go, prompts.go, resources.go, sampling.go, completion.go,
//     roots.go: params/result types for each method family.
//
// # Message flow
//
//  1. Client connects to server and sends an initialize request.
//  2. Server responds with capabilities and server info.
//  3. Client sends a notifications/initialized notification.
//  4. Client and server exchange requests and responses based on capabilities.
//  5. Either peer closes the transport when done.
//
// Example initialize request:
//
//	{
//	    "jsonrpc": "2.0",
//	    "id": "1",
//	    "method": "initialize",
//	    "params": {
//	        "protocolVersion": "2024-11-05",
//	        "capabilities": {},
//	        "clientInfo": {"name": "ExampleClient", "version": "1.0.0"}
//	    }
//	}
package protocol
