package packets

import (
	"encoding/binary"
	"fmt"
	"io"
)

// SubackPacket represents an MQTT v3.1.1 SUBACK control packet.
type SubackPacket struct {
	PacketID    uint16
	ReturnCodes []uint8
}

func (p *SubackPacket) Type() uint8 { return SUBACK }

func (p *SubackPacket) WriteTo(w io.Writer) (int64, error) {
	header := &FixedHeader{
		PacketType:      SUBACK,
		Flags:           0,
		RemainingLength: 2 + len(p.ReturnCodes),
	}

	var total int64
	hN, err := header.WriteTo(w)
	total += hN
	if err != nil {
		return total, err
	}

	var idBytes [2]byte
	binary.BigEndian.PutUint16(idBytes[:], p.PacketID)
	n, err := w.Write(idBytes[:])
	total += int64(n)
	if err != nil {
		return total, err
	}

	n, err = w.Write(p.ReturnCodes)
	total += int64(n)
	return total, err
}

// isValidSubackReturnCode reports whether code is one of the four values
// MQTT v3.1.1 permits in a SUBACK payload.
func isValidSubackReturnCode(code uint8) bool {
	switch code {
	case SubackQoS0, SubackQoS1, SubackQoS2, SubackFailure:
		return true
	default:
		return false
	}
}

// DecodeSuback decodes a SUBACK packet from buf, validating that every
// return code is one of {0x00, 0x01, 0x02, 0x80}.
func DecodeSuback(buf []byte) (*SubackPacket, error) {
	if len(buf) < 2 {
		return nil, fmt.Errorf("packets: buffer too short for SUBACK packet")
	}

	pkt := &SubackPacket{
		PacketID: binary.BigEndian.Uint16(buf[0:2]),
	}

	codes := buf[2:]
	if len(codes) == 0 {
		return nil, fmt.Errorf("packets: SUBACK must carry at least one return code")
	}
	for _, code := range codes {
		if !isValidSubackReturnCode(code) {
			return nil, fmt.Errorf("packets: invalid SUBACK return code %#x", code)
		}
	}
	pkt.ReturnCodes = append([]uint8(nil), codes...)

	return pkt, nil
}
