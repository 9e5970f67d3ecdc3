package mqtt

import (
	"context"
	"fmt"
	"io"

	"github.com/gonzalop/iothub-mqtt/internal/packets"
)

// buildConnectPacket assembles the CONNECT packet for the current options.
func (c *Client) buildConnectPacket() *packets.ConnectPacket {
	pkt := &packets.ConnectPacket{
		CleanSession: c.opts.CleanSession,
		ClientID:     c.opts.ClientID,
		KeepAlive:    uint16(c.requestedKeepAlive / 1_000_000_000),
	}

	if c.opts.Username != "" {
		pkt.UsernameFlag = true
		pkt.Username = c.opts.Username
		if c.opts.Password != "" {
			pkt.PasswordFlag = true
			pkt.Password = c.opts.Password
		}
	}

	if c.opts.will != nil {
		pkt.WillFlag = true
		pkt.WillTopic = c.opts.will.Topic
		pkt.WillMessage = c.opts.will.Payload
		pkt.WillQoS = c.opts.will.QoS
		pkt.WillRetain = c.opts.will.Retained
	}

	return pkt
}

// performHandshake reads the CONNACK that must follow the CONNECT packet
// this client just sent, respecting ctx for the initial connection attempt.
func (c *Client) performHandshake(ctx context.Context, r io.Reader) (*packets.ConnackPacket, error) {
	type result struct {
		pkt *packets.ConnackPacket
		err error
	}

	done := make(chan result, 1)
	go func() {
		pkt, err := packets.ReadPacket(r, c.maxIncomingPacket())
		if err != nil {
			done <- result{err: fmt.Errorf("failed to read CONNACK: %w", err)}
			return
		}
		connack, ok := pkt.(*packets.ConnackPacket)
		if !ok {
			done <- result{err: fmt.Errorf("expected CONNACK, got packet type %d", pkt.Type())}
			return
		}
		done <- result{pkt: connack}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			c.connLock.Lock()
			if c.conn != nil {
				c.conn.Close()
			}
			c.connLock.Unlock()
			return nil, res.err
		}
		return res.pkt, nil
	case <-ctx.Done():
		c.connLock.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.connLock.Unlock()
		return nil, ctx.Err()
	}
}
