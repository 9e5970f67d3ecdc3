package mqtt

import (
	"fmt"

	"github.com/gonzalop/iothub-mqtt/internal/packets"
)

// PublishOptions holds configuration for a publish operation.
type PublishOptions struct {
	QoS    uint8
	Retain bool
}

// PublishOption is a functional option for configuring a PUBLISH packet.
type PublishOption func(*PublishOptions)

// WithQoS sets the Quality of Service level for the publish.
//
// QoS levels:
//   - 0: At most once delivery (fire and forget)
//   - 1: At least once delivery (acknowledged)
//   - 2: Exactly once delivery (assured)
//
// Default is QoS 0.
func WithQoS(qos QoS) PublishOption {
	return func(o *PublishOptions) {
		o.QoS = uint8(qos)
	}
}

// WithRetain sets the retain flag for the publish.
//
// When true, the server stores the message and delivers it to future
// subscribers of the topic. Only the most recent retained message per
// topic is stored.
//
// Default is false.
func WithRetain(retain bool) PublishOption {
	return func(o *PublishOptions) {
		o.Retain = retain
	}
}

// Publish publishes a message to the specified topic.
//
// The function returns a Token that can be used to wait for completion.
// For QoS 0, the token completes immediately after sending. For QoS 1 and 2,
// the token completes after receiving the appropriate acknowledgment from the server.
//
// Example (QoS 0 - fire and forget):
//
//	client.Publish("sensors/temp", []byte("22.5"), mqtt.WithQoS(0))
//
// Example (QoS 1 - wait for acknowledgment):
//
//	token := client.Publish("sensors/temp", []byte("22.5"), mqtt.WithQoS(1))
//	if err := token.Wait(context.Background()); err != nil {
//	    log.Printf("Publish failed: %v", err)
//	}
//
// Example (retained message):
//
//	client.Publish("status/online", []byte("true"),
//	    mqtt.WithQoS(1),
//	    mqtt.WithRetain(true))
func (c *Client) Publish(topic string, payload []byte, opts ...PublishOption) Token {
	c.opts.Logger.Debug("publishing message", "topic", topic, "payload_size", len(payload))

	if err := validatePublishTopic(topic, c.opts); err != nil {
		tok := newToken()
		tok.complete(fmt.Errorf("invalid topic: %w", err))
		return tok
	}

	if err := validatePayload(payload, c.opts); err != nil {
		tok := newToken()
		tok.complete(fmt.Errorf("invalid payload: %w", err))
		return tok
	}

	pubOpts := &PublishOptions{}
	for _, opt := range opts {
		opt(pubOpts)
	}

	pkt := &packets.PublishPacket{
		Topic:   topic,
		Payload: payload,
		QoS:     pubOpts.QoS,
		Retain:  pubOpts.Retain,
	}

	tok := newToken()
	req := &publishRequest{
		packet: pkt,
		token:  tok,
	}
	c.internalPublish(req)

	return tok
}
