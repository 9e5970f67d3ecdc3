package mqtt_test

import (
	"bytes"

	"github.com/gonzalop/iothub-mqtt/internal/packets"
)

func encodeToBytes(pkt packets.Packet) []byte {
	var buf bytes.Buffer
	if _, err := pkt.WriteTo(&buf); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
