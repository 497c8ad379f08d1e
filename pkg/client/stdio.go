package client

import (
	"github.com/mcpruntime/core/pkg/transport"
)

// NewStdio builds a Client communicating over the process's stdin/stdout,
// the transport every MCP client should support.
func NewStdio(opts ...Option) (*Client, error) {
	t, err := transport.NewTransport(transport.DefaultTransportConfig(transport.TransportTypeStdio))
	if err != nil {
		return nil, err
	}
	return New(t, opts...), nil
}
