// Package server is the server-side facade of the MCP runtime: the
// initialize handshake, one capability-gated handler per client-initiated
// operation, and outbound methods for the two server-initiated operations
// (roots/list and sampling/createMessage).
//
// A Server embeds a peer.Peer, so SendRequest/SendNotification/Start/Close
// are all available directly; the methods and options this package adds
// layer provider wiring, capability advertisement, and subscription
// batching on top.
//
// # Creating a server
//
//	tools := server.NewMapToolsProvider(callTool)
//	tools.Register(protocol.Tool{Name: "echo"})
//
//	t, err := transport.NewTransport(transport.DefaultTransportConfig(transport.TransportTypeStdio))
//	if err != nil {
//	    // handle error
//	}
//
//	srv := server.New(t,
//	    server.WithName("example-server"),
//	    server.WithVersion("1.0.0"),
//	    server.WithToolsProvider(tools, false),
//	)
//
//	ctx := context.Background()
//	if err := srv.Start(ctx); err != nil {
//	    // handle error
//	}
//	defer srv.Close(ctx)
//
// # Providers
//
// Each capability is backed by a small interface (ToolsProvider,
// ResourcesProvider, PromptsProvider, CompletionProvider) that New wires a
// handler to only when a provider is supplied; the Map*Provider types are
// minimal in-memory implementations suitable for examples and tests.
// RegistryToolsProvider and RegistryPromptsProvider instead adapt a
// pkg/registry.Registry populated by generated //mcp:tool/prompt handlers,
// for servers built entirely from cmd/mcpgen output.
//
// # Server-initiated operations
//
// roots/list and sampling/createMessage travel from server to client, the
// reverse of every other operation in this package — call Server.ListRoots
// or Server.CreateMessage to issue them.
package server
