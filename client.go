package mqtt

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gonzalop/iothub-mqtt/internal/packets"
)

// Client represents an MQTT client connection.
type Client struct {
	// Configuration
	opts *clientOptions

	// Connection
	conn     net.Conn
	connLock sync.RWMutex

	// Channels for goroutine communication
	outgoing chan packets.Packet // Packets to send
	incoming chan packets.Packet // Packets received
	stop     chan struct{}       // Shutdown signal

	// sessionLock guards sess and the reconnect-time
	// lastResetSession/forceReset flags. ping carries its own mutex.
	sessionLock sync.Mutex

	// sess holds everything that must survive, or react specifically to, a
	// reconnect: the packet identifier allocator, the in-flight publish
	// sets, and the subscription state.
	sess *session
	ping *pingMachine

	// lastResetSession records whether the most recent connect() started a
	// fresh session, for the reconnect replay that follows it.
	lastResetSession bool
	// forceReset is set by protocolError to force reset_session on the next
	// reconnect, overriding whatever CONNACK would otherwise imply.
	forceReset bool

	// Lifecycle
	connected atomic.Bool
	wg        sync.WaitGroup

	// requestedKeepAlive preserves the original user-requested keepalive value.
	// This is used to send the same request on reconnection.
	requestedKeepAlive time.Duration

	// Stats (atomic)
	packetsSent     atomic.Uint64
	packetsReceived atomic.Uint64
	bytesSent       atomic.Uint64
	bytesReceived   atomic.Uint64
	reconnectCount  atomic.Uint64

	// For reconnection
	disconnected chan struct{}
}

// publishRequest represents a request to publish a message.
type publishRequest struct {
	packet *packets.PublishPacket
	token  *token
}

// MessageHandler is called when a message is received on a subscribed topic.
type MessageHandler func(*Client, Message)

// DialContext establishes a connection to an MQTT server with a context and returns a Client.
//
// The context is used to control the initial connection establishment, including
// the network dial, TLS handshake, and MQTT CONNECT handshake. If the context
// is cancelled or expires before the handshake completes, DialContext returns an error.
//
// When using DialContext, the WithConnectTimeout option is ignored for the initial
// connection (as the provided context takes precedence), but it is still used
// for subsequent automatic reconnection attempts.
//
// Once the initial connection is established, the context's expiration has no
// effect on the ongoing connection or background maintenance.
//
// Example:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//
//	client, err := mqtt.DialContext(ctx, "tcp://localhost:1883",
//	    mqtt.WithClientID("my-client"))
func DialContext(ctx context.Context, server string, opts ...Option) (*Client, error) {
	options := defaultOptions(server)
	for _, opt := range opts {
		opt(options)
	}

	if options.Logger != nil {
		options.Logger = options.Logger.With("lib", "mqtt")
	}

	c := &Client{
		opts:         options,
		outgoing:     make(chan packets.Packet, 1000),
		incoming:     make(chan packets.Packet, 100),
		stop:         make(chan struct{}),
		sess:         newSession(),
		ping:         newPingMachine(options.KeepAlive),
		disconnected: make(chan struct{}, 1),
	}

	for topic, handler := range options.InitialSubscriptions {
		c.sess.subscriptionFIFO = append(c.sess.subscriptionFIFO, subscriptionUpdate{
			topic:      topic,
			handler:    handler,
			persistent: true,
		})
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.sessionLock.Lock()
	c.reconnectSubscriptions(c.lastResetSession)
	c.foldAndDispatchSubscriptions()
	c.sessionLock.Unlock()

	c.wg.Add(1)
	go c.logicLoop()

	if options.AutoReconnect {
		c.wg.Add(1)
		go c.reconnectLoop()
	}

	return c, nil
}

// Dial establishes a connection to an MQTT server and returns a Client.
//
// It is a wrapper around DialContext that uses the configured connection
// timeout (see WithConnectTimeout) to control the initial handshake.
//
// The server parameter specifies the server address with scheme and port.
// Supported schemes:
//   - tcp://  or mqtt://  - Unencrypted connection (default port 1883)
//   - tls://, ssl://, or mqtts:// - TLS encrypted connection (default port 8883)
//
// Options can be provided to configure the client behavior. Common options include
// WithClientID, WithCredentials, WithKeepAlive, WithTLS, and WithAutoReconnect.
//
// The function performs the MQTT handshake and starts background goroutines for
// reading, writing, and managing the connection. If AutoReconnect is enabled
// (default: true), the client will automatically reconnect on connection loss.
//
// Example (basic connection):
//
//	client, err := mqtt.Dial("tcp://localhost:1883",
//	    mqtt.WithClientID("my-client"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Disconnect(context.Background())
//
// Example (TLS connection):
//
//	client, err := mqtt.Dial("tls://server:8883",
//	    mqtt.WithClientID("tls-client"),
//	    mqtt.WithTLS(&tls.Config{
//	        InsecureSkipVerify: false,
//	    }))
func Dial(server string, opts ...Option) (*Client, error) {
	// Parse options purely to get the ConnectTimeout
	options := defaultOptions(server)
	for _, opt := range opts {
		opt(options)
	}

	ctx, cancel := context.WithTimeout(context.Background(), options.ConnectTimeout)
	defer cancel()

	return DialContext(ctx, server, opts...)
}

// connect establishes the TCP connection and performs the MQTT handshake.
func (c *Client) connect(ctx context.Context) error {
	c.opts.Logger.Debug("connecting to MQTT server", "server", c.opts.Server)

	if c.opts.ClientID == "" && !c.opts.CleanSession {
		return fmt.Errorf("mqtt requires a non-empty client id when CleanSession is false")
	}

	if c.requestedKeepAlive == 0 {
		c.requestedKeepAlive = c.opts.KeepAlive
	}

	conn, err := c.dialServer(ctx)
	if err != nil {
		return err
	}

	c.connLock.Lock()
	c.conn = conn
	c.connLock.Unlock()

	cr := &countingReader{Reader: conn, c: c}
	cw := &countingWriter{Writer: conn, c: c}

	connectPkt := c.buildConnectPacket()
	if _, err := connectPkt.WriteTo(cw); err != nil {
		conn.Close()
		return fmt.Errorf("failed to send CONNECT: %w", err)
	}
	c.packetsSent.Add(1)

	connack, err := c.performHandshake(ctx, cr)
	if err != nil {
		return err
	}
	c.packetsReceived.Add(1)

	if connack.ReturnCode != packets.ConnAccepted {
		conn.Close()
		return connackError(connack.ReturnCode)
	}

	c.opts.KeepAlive = c.requestedKeepAlive

	c.opts.Logger.Debug("connection established", "server", c.opts.Server)

	c.sessionLock.Lock()
	resetSession := c.forceReset || c.opts.CleanSession || !connack.SessionPresent
	c.forceReset = false
	c.lastResetSession = resetSession
	c.sessionLock.Unlock()

	c.connected.Store(true)
	c.ping.onConnected(time.Now())

	if c.opts.OnConnect != nil {
		go c.opts.OnConnect(c)
	}

	c.wg.Add(2)
	go c.readLoop()
	go c.writeLoop()

	c.opts.Logger.Debug("client started", "client_id", c.opts.ClientID)
	return nil
}

// dialServer establishes a TCP, TLS, or custom connection to the MQTT server.
func (c *Client) dialServer(ctx context.Context) (net.Conn, error) {
	// If a custom dialer is provided, trust it to handle the scheme and address.
	// Pass the raw server string as the address to allow flexibility (e.g. WebSocket paths).
	if c.opts.Dialer != nil {
		network := "tcp"
		if u, err := url.Parse(c.opts.Server); err == nil && u.Scheme != "" {
			network = u.Scheme
		}

		conn, err := c.opts.Dialer.DialContext(ctx, network, c.opts.Server)
		if err != nil {
			return nil, fmt.Errorf("custom dialer failed: %w", err)
		}
		return conn, nil
	}

	u, err := url.Parse(c.opts.Server)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}

	if u.Port() == "" {
		switch u.Scheme {
		case "tls", "ssl", "mqtts":
			u.Host = net.JoinHostPort(u.Host, "8883")
		case "tcp", "mqtt", "":
			u.Host = net.JoinHostPort(u.Host, "1883")
		}
	}

	useTLS := u.Scheme == "tls" || u.Scheme == "ssl" || u.Scheme == "mqtts" || c.opts.TLSConfig != nil
	if !useTLS && u.Scheme != "tcp" && u.Scheme != "mqtt" {
		return nil, fmt.Errorf("unsupported scheme: %s (supported: tcp, mqtt, tls, ssl, mqtts)", u.Scheme)
	}

	var conn net.Conn
	if useTLS {
		tlsConfig := c.opts.TLSConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{}
		}
		dialer := &tls.Dialer{
			NetDialer: &net.Dialer{},
			Config:    tlsConfig,
		}
		conn, err = dialer.DialContext(ctx, "tcp", u.Host)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", u.Host)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}

	return conn, nil
}

// readLoop continuously reads packets from the network.
func (c *Client) readLoop() {
	defer c.wg.Done()
	defer c.handleDisconnect()

	c.connLock.RLock()
	conn := c.conn
	c.connLock.RUnlock()

	if conn == nil {
		return
	}

	// Wrap connection in buffered reader to reduce syscalls
	cr := &countingReader{Reader: conn, c: c}
	br := bufio.NewReader(cr)

	for {
		pkt, err := packets.ReadPacket(br, c.maxIncomingPacket())
		if err != nil {
			c.opts.Logger.Debug("read error, disconnecting", "error", err)
			return
		}
		c.packetsReceived.Add(1)

		c.opts.Logger.Debug("received packet", "type", packets.PacketNames[pkt.Type()])

		select {
		case c.incoming <- pkt:
		case <-c.stop:
			c.opts.Logger.Debug("readLoop stopped")
			return
		}
	}
}

func (c *Client) maxIncomingPacket() int {
	return getLimit(c.opts.MaxIncomingPacket, DefaultMaxIncomingPacket)
}

// writeLoop continuously writes packets to the network and drives the ping
// machine's keep-alive timer.
func (c *Client) writeLoop() {
	defer c.wg.Done()

	var ticker *time.Ticker
	var tickerCh <-chan time.Time

	if c.opts.KeepAlive > 0 {
		ticker = time.NewTicker(c.ping.pollInterval())
		defer ticker.Stop()
		tickerCh = ticker.C
	}

	c.connLock.RLock()
	conn := c.conn
	c.connLock.RUnlock()

	if conn == nil {
		c.opts.Logger.Debug("writeLoop started but not connected")
		return
	}

	cw := &countingWriter{Writer: conn, c: c}
	bw := bufio.NewWriter(cw)

	for {
		select {
		case pkt := <-c.outgoing:
			c.opts.Logger.Debug("sending packet", "type", packets.PacketNames[pkt.Type()])
			if _, err := pkt.WriteTo(bw); err != nil {
				c.opts.Logger.Debug("write error, disconnecting", "error", err)
				c.handleDisconnect()
				return
			}
			c.packetsSent.Add(1)

			// Batching: try to drain channel to fill buffer
			count := len(c.outgoing)
			for range count {
				pkt := <-c.outgoing
				c.opts.Logger.Debug("sending packet (batch)", "type", packets.PacketNames[pkt.Type()])
				if _, err := pkt.WriteTo(bw); err != nil {
					c.opts.Logger.Debug("write error (batch), disconnecting", "error", err)
					c.handleDisconnect()
					return
				}
				c.packetsSent.Add(1)
			}

			// Flush after batch
			if err := bw.Flush(); err != nil {
				c.opts.Logger.Debug("flush error, disconnecting", "error", err)
				c.handleDisconnect()
				return
			}

		case <-tickerCh:
			now := time.Now()
			sendPing, timedOut := c.ping.poll(now)
			if timedOut {
				c.opts.Logger.Debug("ping timer expired without a PINGRESP")
				c.protocolError(ErrPingTimer)
				return
			}
			if sendPing {
				c.opts.Logger.Debug("sending PINGREQ")
				ping := &packets.PingreqPacket{}
				if _, err := ping.WriteTo(bw); err != nil {
					c.handleDisconnect()
					return
				}
				if err := bw.Flush(); err != nil {
					c.handleDisconnect()
					return
				}
				c.packetsSent.Add(1)
			}

		case <-c.stop:
			c.opts.Logger.Debug("writeLoop stopped")
			return
		}
	}
}

// handleDisconnect handles connection loss.
func (c *Client) handleDisconnect() {
	if !c.connected.Swap(false) {
		return // Already disconnected
	}

	c.connLock.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connLock.Unlock()

	if c.opts.OnConnectionLost != nil {
		go c.opts.OnConnectionLost(c, fmt.Errorf("connection lost"))
	}

	// Signal reconnect loop
	select {
	case c.disconnected <- struct{}{}:
	default:
	}
}

// IsConnected returns true if the client is currently connected to the server.
// This method is thread-safe.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Disconnect gracefully disconnects from the server.
//
// It sends a DISCONNECT packet to the server, stops all background goroutines,
// and closes the network connection. The function blocks until all goroutines
// have exited or the context is cancelled.
//
// If AutoReconnect is enabled, it will be disabled after calling Disconnect.
// To reconnect, create a new client with Dial.
//
// Example:
//
//	client.Disconnect(context.Background())
func (c *Client) Disconnect(ctx context.Context) error {
	c.opts.Logger.Debug("disconnecting from server")

	// Mark as disconnected first
	if !c.connected.Swap(false) {
		return nil // Already disconnected
	}

	select {
	case c.outgoing <- &packets.DisconnectPacket{}:
	case <-time.After(100 * time.Millisecond):
		// Timeout sending disconnect, continue anyway
	}

	// Give it a moment to send
	time.Sleep(100 * time.Millisecond)

	// Stop all goroutines
	close(c.stop)

	// Close connection to unblock readLoop
	c.connLock.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connLock.Unlock()

	// Wait for goroutines with timeout
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.opts.Logger.Debug("disconnected successfully")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for goroutines to exit")
	}
}

// reconnectLoop handles automatic reconnection.
func (c *Client) reconnectLoop() {
	defer c.wg.Done()

	backoff := time.Second
	maxBackoff := 2 * time.Minute

	for {
		select {
		case <-c.disconnected:
			// Wait before reconnecting
			time.Sleep(backoff)

			c.reconnectCount.Add(1)

			// Attempt to reconnect
			ctx, cancel := context.WithTimeout(context.Background(), c.opts.ConnectTimeout)
			err := c.connect(ctx)
			cancel()

			if err != nil {
				disposition := Classify(err)
				if disposition == DispositionFatal {
					c.opts.Logger.Error("giving up reconnecting, fatal error", "error", err)
					return
				}

				// Exponential backoff
				backoff = min(backoff*2, maxBackoff)

				// Signal disconnected again to retry
				select {
				case c.disconnected <- struct{}{}:
				default:
				}
				continue
			}

			backoff = time.Second

			c.sessionLock.Lock()
			resetSession := c.lastResetSession
			c.replaySession(resetSession)
			c.reconnectSubscriptions(resetSession)
			c.foldAndDispatchSubscriptions()
			c.sessionLock.Unlock()

		case <-c.stop:
			c.opts.Logger.Debug("reconnectLoop stopped")
			return
		}
	}
}

// ClientStats holds connection and throughput statistics.
type ClientStats struct {
	PacketsSent     uint64
	PacketsReceived uint64
	BytesSent       uint64
	BytesReceived   uint64
	ReconnectCount  uint64
	Connected       bool
}

// GetStats returns the current client statistics.
func (c *Client) GetStats() ClientStats {
	return ClientStats{
		PacketsSent:     c.packetsSent.Load(),
		PacketsReceived: c.packetsReceived.Load(),
		BytesSent:       c.bytesSent.Load(),
		BytesReceived:   c.bytesReceived.Load(),
		ReconnectCount:  c.reconnectCount.Load(),
		Connected:       c.IsConnected(),
	}
}

type countingReader struct {
	io.Reader
	c *Client
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	if n > 0 {
		r.c.bytesReceived.Add(uint64(n))
	}
	return n, err
}

type countingWriter struct {
	io.Writer
	c *Client
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.Writer.Write(p)
	if n > 0 {
		w.c.bytesSent.Add(uint64(n))
	}
	return n, err
}
