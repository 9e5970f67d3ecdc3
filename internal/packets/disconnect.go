package packets

import (
	"fmt"
	"io"
)

// DisconnectPacket represents an MQTT v3.1.1 DISCONNECT control packet. It
// carries no variable header or payload.
type DisconnectPacket struct{}

func (p *DisconnectPacket) Type() uint8 { return DISCONNECT }

func (p *DisconnectPacket) WriteTo(w io.Writer) (int64, error) {
	header := &FixedHeader{PacketType: DISCONNECT, Flags: 0, RemainingLength: 0}
	return header.WriteTo(w)
}

// DecodeDisconnect decodes a DISCONNECT packet.
func DecodeDisconnect(buf []byte) (*DisconnectPacket, error) {
	if len(buf) != 0 {
		return nil, fmt.Errorf("packets: DISCONNECT must carry no payload")
	}
	return &DisconnectPacket{}, nil
}
