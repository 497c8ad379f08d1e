// Package peer implements the symmetric participant core shared by MCP
// clients and servers: the same Peer type sends requests/notifications and
// serves incoming ones, honoring the method registry's declared direction.
//
// A Peer wraps a transport.Transport, which already owns the pending-request
// table, id generation, the read loop, the NotImplemented reply for
// unregistered methods, and the mapping of handler errors onto JSON-RPC error
// codes; Peer adds method-direction enforcement and a typed
// Handle/HandleNotification registration surface.
package peer
