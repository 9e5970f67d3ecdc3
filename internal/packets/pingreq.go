package packets

import (
	"fmt"
	"io"
)

// PingreqPacket represents an MQTT PINGREQ control packet.
type PingreqPacket struct{}

func (p *PingreqPacket) Type() uint8 { return PINGREQ }

func (p *PingreqPacket) WriteTo(w io.Writer) (int64, error) {
	header := &FixedHeader{PacketType: PINGREQ, Flags: 0, RemainingLength: 0}
	return header.WriteTo(w)
}

// DecodePingreq decodes a PINGREQ packet, which carries no payload.
func DecodePingreq(buf []byte) (*PingreqPacket, error) {
	if len(buf) != 0 {
		return nil, fmt.Errorf("packets: PINGREQ must carry no payload")
	}
	return &PingreqPacket{}, nil
}
