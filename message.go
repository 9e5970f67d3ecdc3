package mqtt

// Message represents an MQTT message delivered on a subscribed topic. It is
// passed to subscription handlers and carries everything the handler needs
// to know about the delivery.
type Message struct {
	// Topic the message was published to.
	Topic string

	// Payload is the raw message body.
	Payload []byte

	// QoS is the delivery quality of service the message arrived with.
	QoS QoS

	// Retained reports whether the server delivered this as a retained message.
	Retained bool

	// Duplicate reports whether the server set the DUP flag on redelivery.
	Duplicate bool
}
