package transport

import (
	"context"
	"net"

	"nhooyr.io/websocket"
)

// WebSocketDialer dials the server over WebSocket, forcing the "mqtt"
// subprotocol and binary message framing, then wraps the connection as a
// net.Conn so it slots into the same read/write loop as a raw TCP socket.
type WebSocketDialer struct{}

// NewWebSocketDialer returns a WebSocketDialer.
func NewWebSocketDialer() *WebSocketDialer {
	return &WebSocketDialer{}
}

// DialContext implements Dialer. addr is the full "ws://" or "wss://" URL,
// matching how mqtt.Client hands its Server string straight through to a
// custom dialer.
func (d *WebSocketDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	c, _, err := websocket.Dial(ctx, addr, &websocket.DialOptions{
		Subprotocols: []string{"mqtt"},
	})
	if err != nil {
		return nil, err
	}
	return websocket.NetConn(ctx, c, websocket.MessageBinary), nil
}
