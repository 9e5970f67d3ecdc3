package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"golang.org/x/crypto/pkcs12"
)

// TLSDialer dials a TLS connection, optionally presenting a client
// certificate loaded from a PKCS#12 bundle (the format Azure IoT Hub's
// x.509 device identities are commonly distributed in). ReadTimeout, when
// set, wraps the returned connection so a stalled server can't block reads
// forever; callers typically set it to twice the client's keep-alive.
type TLSDialer struct {
	Config      *tls.Config
	ReadTimeout time.Duration
}

// NewTLSDialer returns a TLSDialer with no client certificate.
func NewTLSDialer(config *tls.Config) *TLSDialer {
	return &TLSDialer{Config: config}
}

// WithClientIdentity loads a PKCS#12-encoded client certificate and private
// key (DER-encoded bytes plus the bundle's password) and configures the
// dialer to present it during the TLS handshake.
func (d *TLSDialer) WithClientIdentity(der []byte, password string) (*TLSDialer, error) {
	key, cert, err := pkcs12.Decode(der, password)
	if err != nil {
		return nil, fmt.Errorf("could not parse client certificate: %w", err)
	}

	config := d.Config.Clone()
	if config == nil {
		config = &tls.Config{}
	}
	config.Certificates = append(config.Certificates, tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  key,
	})
	d.Config = config
	return d, nil
}

// DialContext implements Dialer.
func (d *TLSDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	if network == "" {
		network = "tcp"
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, DefaultIoTHubPort)
	}

	dialer := &tls.Dialer{Config: d.Config}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	if d.ReadTimeout > 0 {
		return &readTimeoutConn{Conn: conn, timeout: d.ReadTimeout}, nil
	}
	return conn, nil
}

// readTimeoutConn resets a read deadline before every Read, turning a
// connection that would otherwise block forever on a dead peer into one
// that surfaces a timeout error.
type readTimeoutConn struct {
	net.Conn
	timeout time.Duration
}

func (c *readTimeoutConn) Read(b []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}
