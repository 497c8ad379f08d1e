package peer

import (
	"context"
	"encoding/json"
	"fmt"

	mcperrors "github.com/mcpruntime/core/pkg/errors"
	"github.com/mcpruntime/core/pkg/protocol"
	"github.com/mcpruntime/core/pkg/transport"
)

// Role identifies which side of the protocol a Peer plays. It determines
// which method direction the peer may initiate and which direction it must
// serve.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) outbound() protocol.Direction {
	if r == RoleServer {
		return protocol.ServerToClient
	}
	return protocol.ClientToServer
}

func (r Role) inbound() protocol.Direction {
	if r == RoleServer {
		return protocol.ClientToServer
	}
	return protocol.ServerToClient
}

// RequestHandler answers one incoming request's raw params, returning either
// a result to serialize into the response or an error mapped onto the
// response's error field via the errors.MCPError taxonomy.
type RequestHandler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// NotificationHandler handles one incoming notification's raw params. Any
// error it returns is logged (via OnNotificationError) and swallowed —
// notifications never reply.
type NotificationHandler func(ctx context.Context, params json.RawMessage) error

// Peer is a symmetric JSON-RPC 2.0 participant: the same type sends
// requests/notifications to, and serves them from, the other side of a
// transport.Transport. A client Peer and a server Peer share this core;
// they differ only in Role and in which methods they register handlers for.
type Peer struct {
	transport     transport.Transport
	role          Role
	onNotifyError func(method string, err error)
}

// New builds a Peer around an already-constructed transport. The transport
// is not started; call Start to begin its read loop.
func New(t transport.Transport, role Role) *Peer {
	return &Peer{transport: t, role: role}
}

// OnNotificationError installs a callback invoked whenever an inbound
// notification handler returns an error. Notification errors are otherwise
// swallowed per §7's propagation policy (notifications never reply); this
// hook exists so callers can at least log them. nil by default.
func (p *Peer) OnNotificationError(fn func(method string, err error)) {
	p.onNotifyError = fn
}

// Start begins the transport's background read loop.
func (p *Peer) Start(ctx context.Context) error {
	return p.transport.Start(ctx)
}

// Close stops the transport, failing all pending requests with a transport
// error.
func (p *Peer) Close(ctx context.Context) error {
	return p.transport.Stop(ctx)
}

// Handle registers the typed handler invoked when method arrives as an
// incoming request. Registering a method this peer's role may never receive
// is a bootstrap-time programmer error and panics: the callers are the
// client and server constructors, which register fixed method sets, so this
// can never be triggered by network input.
func (p *Peer) Handle(method string, h RequestHandler) {
	if dir, ok := protocol.MethodDirections[method]; ok && dir != protocol.Either && dir != p.role.inbound() {
		panic(fmt.Sprintf("peer: method %q is not inbound for this peer's role", method))
	}
	p.transport.RegisterRequestHandler(method, func(ctx context.Context, params interface{}) (interface{}, error) {
		raw, _ := params.(json.RawMessage)
		return h(ctx, raw)
	})
}

// HandleNotification registers the typed handler invoked when method arrives
// as an incoming notification.
func (p *Peer) HandleNotification(method string, h NotificationHandler) {
	if dir, ok := protocol.MethodDirections[method]; ok && dir != protocol.Either && dir != p.role.inbound() {
		panic(fmt.Sprintf("peer: notification %q is not inbound for this peer's role", method))
	}
	p.transport.RegisterNotificationHandler(method, func(ctx context.Context, params interface{}) error {
		raw, _ := params.(json.RawMessage)
		err := h(ctx, raw)
		if err != nil && p.onNotifyError != nil {
			p.onNotifyError(method, err)
		}
		return err
	})
}

// SendRequest allocates an id, writes the request, and awaits its response.
// The returned Response may itself carry a protocol-level `error` field.
// A Go error means either that method may not be sent by this peer's role
// (a plain error, nothing is written) or an actual transport failure (an
// errors.MCPError with category transport).
func (p *Peer) SendRequest(ctx context.Context, method string, params interface{}) (*protocol.Response, error) {
	if err := p.checkDirection(method, p.role.outbound(), "outbound"); err != nil {
		return nil, err
	}

	result, err := p.transport.SendRequest(ctx, method, params)
	if err != nil {
		return nil, mcperrors.TransportError("peer", "send_request:"+method, err)
	}

	resp, ok := result.(*protocol.Response)
	if !ok {
		return nil, mcperrors.TransportError("peer", "send_request:"+method,
			fmt.Errorf("unexpected transport result type %T", result))
	}
	return resp, nil
}

// SendNotification writes a fire-and-forget notification frame. There is no
// ordering guarantee relative to concurrent SendRequest calls beyond the
// transport's own byte-serialized write path.
func (p *Peer) SendNotification(ctx context.Context, method string, params interface{}) error {
	if err := p.checkDirection(method, p.role.outbound(), "outbound"); err != nil {
		return err
	}
	if err := p.transport.SendNotification(ctx, method, params); err != nil {
		return mcperrors.TransportError("peer", "send_notification:"+method, err)
	}
	return nil
}

func (p *Peer) checkDirection(method string, want protocol.Direction, label string) error {
	dir, ok := protocol.MethodDirections[method]
	if !ok || dir == protocol.Either || dir == want {
		return nil
	}
	return fmt.Errorf("peer: method %q is not %s for this peer's role", method, label)
}
