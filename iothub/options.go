package iothub

import (
	"crypto/tls"
	"log/slog"
	"time"

	mqtt "github.com/gonzalop/iothub-mqtt"
)

type config struct {
	logger        *slog.Logger
	keepAlive     time.Duration
	maxBackOff    time.Duration
	transport     Transport
	tlsConfig     *tls.Config
	autoReconnect bool
	extra         []mqtt.Option

	// dialerOverride, when set (by CertificateAuthentication), takes
	// precedence over the dialer the selected Transport would otherwise use.
	dialerOverride mqtt.ContextDialer
}

func defaultConfig() config {
	return config{
		logger:        slog.Default(),
		keepAlive:     60 * time.Second,
		maxBackOff:    2 * time.Minute,
		transport:     TransportTCP,
		autoReconnect: true,
	}
}

// Option configures a DeviceClient or ModuleClient at dial time.
type Option func(*config)

// WithLogger sets the structured logger used for twin, reported-property,
// and direct-method diagnostics. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithKeepAlive sets the MQTT keep-alive interval. Twin and reported-property
// requests time out after twice this duration, per the hub's own convention.
func WithKeepAlive(d time.Duration) Option {
	return func(c *config) { c.keepAlive = d }
}

// WithMaxBackOff caps the exponential back-off used when retrying twin GET
// and reported-property requests after throttling or a server error.
func WithMaxBackOff(d time.Duration) Option {
	return func(c *config) { c.maxBackOff = d }
}

// WithTransport selects the underlying connection kind. Defaults to
// TransportTCP.
func WithTransport(t Transport) Option {
	return func(c *config) { c.transport = t }
}

// WithTLSConfig sets the base TLS configuration. CertificateAuthentication
// clones and extends this with a client certificate; it is used as-is
// otherwise.
func WithTLSConfig(tlsConfig *tls.Config) Option {
	return func(c *config) { c.tlsConfig = tlsConfig }
}

// WithAutoReconnect enables or disables automatic reconnection. Enabled by
// default.
func WithAutoReconnect(enable bool) Option {
	return func(c *config) { c.autoReconnect = enable }
}

// WithClientOptions passes additional options straight through to the
// underlying mqtt.Dial call, for settings this package does not expose
// directly (connect timeout, handler interceptors, and so on).
func WithClientOptions(opts ...mqtt.Option) Option {
	return func(c *config) { c.extra = append(c.extra, opts...) }
}
