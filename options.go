package mqtt

import (
	"context"
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"time"
)

// ContextDialer is an interface for custom network dialing logic.
// It matches the signature of net.Dialer.DialContext.
type ContextDialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// clientOptions holds configuration for the MQTT client.
type clientOptions struct {
	// MQTT server address (e.g., "tcp://localhost:1883")
	Server string

	// Client identifier
	ClientID string

	// Username for authentication (optional)
	Username string

	// Password for authentication (optional)
	Password string

	// Keep alive interval
	KeepAlive time.Duration

	// Clean session flag
	CleanSession bool

	// Auto-reconnect on connection loss
	AutoReconnect bool

	// Connection timeout
	ConnectTimeout time.Duration

	// TLS configuration (optional)
	TLSConfig *tls.Config

	// Logger for client events (optional, defaults to discarding logs)
	Logger *slog.Logger

	// Limits (0 = use MQTT spec defaults)
	MaxTopicLength    int // Maximum topic length (default: 65535)
	MaxPayloadSize    int // Maximum outgoing payload size (default: 256MB)
	MaxIncomingPacket int // Maximum incoming packet size (default: 256MB)

	// Will message (optional)
	will *willMessage

	// Lifecycle hooks (optional)
	OnConnect        func(*Client)
	OnConnectionLost func(*Client, error)

	// Initial subscriptions (optional)
	InitialSubscriptions map[string]MessageHandler

	// Default publish handler (optional)
	// Called when a PUBLISH packet doesn't match any registered subscription.
	DefaultPublishHandler MessageHandler

	// Custom dialer (optional)
	// If set, this is used to establish the connection instead of net.Dialer.
	Dialer ContextDialer

	// HandlerInterceptors wrap every subscription MessageHandler, applied
	// outermost-first, for cross-cutting concerns like logging or metrics.
	HandlerInterceptors []HandlerInterceptor
}

// willMessage represents the Last Will and Testament message.
type willMessage struct {
	Topic    string
	Payload  []byte
	QoS      uint8
	Retained bool
}

// Option is a functional option for configuring the client.
type Option func(*clientOptions)

// WithClientID sets the client identifier.
//
// The client ID uniquely identifies this client to the MQTT server.
//
// Empty client ID behavior (MQTT v3.1.1 spec):
//   - With CleanSession=true: Server will auto-generate a unique ID
//   - With CleanSession=false: Dial returns an error without contacting the server
//
// For persistent sessions (CleanSession=false), you MUST provide a non-empty client ID.
func WithClientID(id string) Option {
	return func(o *clientOptions) {
		o.ClientID = id
	}
}

// WithCredentials sets the username and password for authentication.
func WithCredentials(username, password string) Option {
	return func(o *clientOptions) {
		o.Username = username
		o.Password = password
	}
}

// WithKeepAlive sets the MQTT keep alive interval (default: 60s).
func WithKeepAlive(duration time.Duration) Option {
	return func(o *clientOptions) {
		o.KeepAlive = duration
	}
}

// WithCleanSession sets the clean session flag.
//
// When set to true (default), the server will discard any previous session state
// and subscriptions for this client ID. Each connection starts fresh.
//
// When set to false, the server maintains session state across disconnections:
//   - Subscriptions persist and are restored on reconnect
//   - QoS 1 and 2 messages sent while offline are queued for delivery
//   - The client MUST use a non-empty client ID (via WithClientID)
//   - Dial returns an error before connecting if the client ID is empty
//
// Use false for reliable message delivery across network interruptions.
// Use true for stateless clients or when you don't need message persistence.
//
// Example (persistent session):
//
//	client, err := mqtt.Dial("tcp://localhost:1883",
//	    mqtt.WithClientID("sensor-1"),        // Required for CleanSession=false
//	    mqtt.WithCleanSession(false))
func WithCleanSession(clean bool) Option {
	return func(o *clientOptions) {
		o.CleanSession = clean
	}
}

// WithAutoReconnect enables or disables automatic reconnection (default: true).
func WithAutoReconnect(enable bool) Option {
	return func(o *clientOptions) {
		o.AutoReconnect = enable
	}
}

// WithConnectTimeout sets the connection timeout (default: 30s).
func WithConnectTimeout(duration time.Duration) Option {
	return func(o *clientOptions) {
		o.ConnectTimeout = duration
	}
}

// WithTLS sets the TLS configuration for secure connections.
// Pass nil for default TLS settings, or provide a custom *tls.Config.
// The server URL should use "tls://", "ssl://", or "mqtts://" scheme, or this option
// will enable TLS for "tcp://" URLs as well.
func WithTLS(config *tls.Config) Option {
	return func(o *clientOptions) {
		o.TLSConfig = config
	}
}

// WithDefaultPublishHandler sets a fallback handler for incoming PUBLISH messages
// that do not match any registered subscription.
//
// This is useful for:
//   - Handling messages received during reconnection race conditions
//   - Handling persistent subscriptions restored without a registered handler (orphans)
//   - Debugging or logging unexpected messages
//   - Implementing a catch-all strategy
//
// If not set (default), messages matching no subscription are silently dropped
// (but still acknowledged to comply with the protocol).
//
// Example:
//
//	client, _ := mqtt.Dial(uri,
//	    mqtt.WithDefaultPublishHandler(func(c *mqtt.Client, msg mqtt.Message) {
//	        log.Printf("Unexpected message on %s: %s", msg.Topic, msg.Payload)
//	    }),
//	)
func WithDefaultPublishHandler(handler MessageHandler) Option {
	return func(o *clientOptions) {
		o.DefaultPublishHandler = handler
	}
}

// WithLogger sets a custom logger for the client.
// If not provided, the client will use a logger that discards all output.
// Use this to integrate with your application's logging system.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	}))
//	client, _ := mqtt.Dial("tcp://localhost:1883", mqtt.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		o.Logger = logger
	}
}

// WithDialer sets a custom dialer for establishing the network connection.
// This enables support for alternative transports like WebSockets, Unix sockets,
// or proxying, without adding dependencies to the core library.
//
// If provided, the library will skip its standard scheme validation and
// delegate the connection creation entirely to the dialer.
//
// The dialer's DialContext method receives:
//   - ctx: The context provided to DialContext (or one created from WithConnectTimeout if using Dial)
//   - network: The scheme from the server URL (e.g. "ws", "tcp", "unix")
//   - addr: The original server string passed to Dial
//
// Example (WebSockets, via transport.WebSocketDialer):
//
//	client, _ := mqtt.Dial("ws://server.example.com/mqtt",
//	    mqtt.WithDialer(transport.NewWebSocketDialer()))
func WithDialer(dialer ContextDialer) Option {
	return func(o *clientOptions) {
		o.Dialer = dialer
	}
}

// DialFunc is a helper to convert a function to the ContextDialer interface.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// DialContext implements ContextDialer.
func (f DialFunc) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return f(ctx, network, addr)
}

// WithHandlerInterceptor registers an interceptor that wraps every
// subscription MessageHandler. Interceptors registered earlier wrap those
// registered later, so the first one added runs outermost.
func WithHandlerInterceptor(interceptor HandlerInterceptor) Option {
	return func(o *clientOptions) {
		o.HandlerInterceptors = append(o.HandlerInterceptors, interceptor)
	}
}

// WithWill sets the Last Will and Testament (LWT) message.
//
// The LWT is a message that the MQTT server will automatically publish on behalf
// of the client if the client disconnects unexpectedly (e.g., network failure,
// crash, or power loss). It is NOT sent on graceful disconnects via Disconnect().
//
// This is commonly used to notify other clients that a device has gone offline.
//
// Parameters:
//   - topic: The topic to publish the will message to
//   - payload: The message content (e.g., "offline", "disconnected")
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the will message should be retained by the server
//
// The will message is sent by the server when:
//   - The client fails to send a PINGREQ within the keepalive period
//   - The network connection is lost without a proper DISCONNECT packet
//   - The client crashes or loses power
//
// The will message is NOT sent when:
//   - The client calls Disconnect() normally
//   - The connection is closed gracefully
//
// Example (status monitoring):
//
//	client, err := mqtt.Dial("tcp://localhost:1883",
//	    mqtt.WithClientID("sensor-1"),
//	    mqtt.WithWill("devices/sensor-1/status", []byte("offline"), 1, true))
//
// Other clients can subscribe to "devices/+/status" to monitor device connectivity.
func WithWill(topic string, payload []byte, qos uint8, retained bool) Option {
	return func(o *clientOptions) {
		o.will = &willMessage{
			Topic:    topic,
			Payload:  payload,
			QoS:      qos,
			Retained: retained,
		}
	}
}

// WithOnConnect sets the handler to be called when the client connects.
// This is called for the initial connection and every successful reconnection.
//
// The handler is invoked asynchronously in a separate goroutine. This allows
// implementing complex setup logic (e.g., subscribing, publishing) without
// blocking the connection process or logic loop.
func WithOnConnect(onConnect func(*Client)) Option {
	return func(o *clientOptions) {
		o.OnConnect = onConnect
	}
}

// WithOnConnectionLost sets the handler to be called when the connection is lost.
// The error parameter provides the reason for disconnection.
//
// The handler is invoked asynchronously in a separate goroutine to ensure
// it does not block internal cleanup or reconnection attempts.
func WithOnConnectionLost(onConnectionLost func(*Client, error)) Option {
	return func(o *clientOptions) {
		o.OnConnectionLost = onConnectionLost
	}
}

// WithSubscription defines a subscription that the client should maintain.
//
// This serves two purposes:
//  1. Registers the MessageHandler locally before connection (preventing race conditions).
//  2. Automatically subscribes to the topic on connection/reconnection if needed.
//
// The first connection of a Client always sends a SUBSCRIBE (QoS 0) for it.
//
// For persistent sessions (CleanSession=false), on later connections:
//   - If SessionPresent=true: The server has the subscription; no SUBSCRIBE is sent.
//   - If SessionPresent=false: The client will automatically resubscribe to this topic.
//
// For clean sessions (CleanSession=true):
//   - The client will automatically subscribe to this topic on every connection.
func WithSubscription(topic string, handler MessageHandler) Option {
	return func(o *clientOptions) {
		if o.InitialSubscriptions == nil {
			o.InitialSubscriptions = make(map[string]MessageHandler)
		}
		o.InitialSubscriptions[topic] = handler
	}
}

// defaultOptions returns the default client options.
func defaultOptions(server string) *clientOptions {
	return &clientOptions{
		Server:         server,
		ClientID:       "",
		KeepAlive:      60 * time.Second,
		CleanSession:   true,
		AutoReconnect:  true,
		ConnectTimeout: 30 * time.Second,
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),

		// Use MQTT spec defaults (0 = use defaults in validation functions)
		MaxTopicLength:    0,
		MaxPayloadSize:    0,
		MaxIncomingPacket: 0,
	}
}
