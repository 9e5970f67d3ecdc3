package transport

import (
	"context"
	"testing"
	"time"
)

func TestWebSocketDialerRejectsUnreachable(t *testing.T) {
	d := NewWebSocketDialer()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if _, err := d.DialContext(ctx, "tcp", "ws://127.0.0.1:1/"); err == nil {
		t.Fatal("expected an error dialing a WebSocket server that isn't listening")
	}
}
