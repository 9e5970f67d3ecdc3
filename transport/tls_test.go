package transport

import (
	"net"
	"testing"
	"time"
)

func TestTLSDialerWithClientIdentityInvalidBundle(t *testing.T) {
	d := NewTLSDialer(nil)
	if _, err := d.WithClientIdentity([]byte("not a pkcs12 bundle"), "password"); err == nil {
		t.Fatal("expected an error decoding a garbage PKCS#12 bundle")
	}
}

func TestReadTimeoutConnTimesOut(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	wrapped := &readTimeoutConn{Conn: client, timeout: 10 * time.Millisecond}

	buf := make([]byte, 16)
	_, err := wrapped.Read(buf)
	if err == nil {
		t.Fatal("expected a read timeout error since the server never wrote anything")
	}
}
