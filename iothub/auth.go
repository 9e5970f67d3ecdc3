package iothub

import (
	"fmt"

	mqtt "github.com/gonzalop/iothub-mqtt"
	"github.com/gonzalop/iothub-mqtt/transport"
)

// Transport selects which underlying connection the client dials through.
type Transport int

const (
	// TransportTCP dials a plain TLS connection on port 8883 (the default).
	TransportTCP Transport = iota
	// TransportWebSocket dials over a WebSocket on port 443, for networks
	// that only allow outbound HTTPS traffic.
	TransportWebSocket
)

// Authentication selects how a device or module proves its identity to the
// hub: either a pre-built SAS token used as the CONNECT password, or an
// x.509 client certificate presented during the TLS handshake.
type Authentication interface {
	// apply resolves the CONNECT password (empty for certificate auth,
	// since the identity is proven at the TLS layer instead) and may set
	// cfg.dialerOverride to install a certificate-bearing dialer.
	apply(cfg *config) (password string, err error)
}

type sasTokenAuth struct {
	token string
}

// SASTokenAuthentication authenticates with a pre-built SharedAccessSignature
// token (see GenerateSASToken), used as the MQTT CONNECT password.
func SASTokenAuthentication(token string) Authentication {
	return sasTokenAuth{token: token}
}

func (a sasTokenAuth) apply(cfg *config) (string, error) {
	return a.token, nil
}

type certificateAuth struct {
	der      []byte
	password string
}

// CertificateAuthentication authenticates with an x.509 client certificate
// and private key, PKCS#12-encoded, as issued for the device or module's
// identity. der is the raw PKCS#12 blob; password decrypts it (may be empty).
func CertificateAuthentication(der []byte, password string) Authentication {
	return certificateAuth{der: der, password: password}
}

func (a certificateAuth) apply(cfg *config) (string, error) {
	dialer, err := transport.NewTLSDialer(cfg.tlsConfig).WithClientIdentity(a.der, a.password)
	if err != nil {
		return "", fmt.Errorf("iothub: certificate authentication: %w", err)
	}
	cfg.dialerOverride = dialer
	return "", nil
}

var _ mqtt.ContextDialer = (*transport.TLSDialer)(nil)
