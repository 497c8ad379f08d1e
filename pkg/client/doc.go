// Package client is the client-side facade of the MCP runtime: the
// initialize handshake plus one typed method per operation a client may
// call on a server.
//
// A Client embeds a peer.Peer, so SendRequest/SendNotification/Start/Close
// are all available directly; the methods this package adds layer
// request/result typing and pagination convenience on top. They do not
// check the server's advertised capabilities before sending a request;
// HasCapability lets callers do that, as in the example below.
//
// # Creating a client
//
//	c, err := client.NewStdio(
//	    client.WithName("example-client"),
//	    client.WithVersion("1.0.0"),
//	    client.WithSamplingCapability(myCallback),
//	)
//	if err != nil {
//	    // handle error
//	}
//
//	ctx := context.Background()
//	if err := c.InitializeAndStart(ctx); err != nil {
//	    // handle error
//	}
//	defer c.Close(ctx)
//
//	if c.HasCapability(protocol.CapabilityTools) {
//	    tools, err := c.ListAllTools(ctx)
//	    // ...
//	}
package client
