package packets

import (
	"encoding/binary"
	"fmt"
	"io"
)

// UnsubscribePacket represents an MQTT v3.1.1 UNSUBSCRIBE control packet.
type UnsubscribePacket struct {
	PacketID uint16
	Topics   []string
}

func (p *UnsubscribePacket) Type() uint8 { return UNSUBSCRIBE }

// WriteTo writes the UNSUBSCRIBE packet to w. The fixed header flags are
// fixed to 0b0010 (section 3.10.1).
func (p *UnsubscribePacket) WriteTo(w io.Writer) (int64, error) {
	var payloadLen int
	topicBytesList := make([][]byte, len(p.Topics))
	for i, topic := range p.Topics {
		tb := encodeString(topic)
		topicBytesList[i] = tb
		payloadLen += len(tb)
	}

	header := &FixedHeader{
		PacketType:      UNSUBSCRIBE,
		Flags:           0x02,
		RemainingLength: 2 + payloadLen,
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

	for _, tb := range topicBytesList {
		n, err = w.Write(tb)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

// DecodeUnsubscribe decodes an UNSUBSCRIBE packet from buf using the flags
// carried in the fixed header.
func DecodeUnsubscribe(buf []byte, header *FixedHeader) (*UnsubscribePacket, error) {
	if err := checkReservedFlags(header.Flags, 0x02); err != nil {
		return nil, err
	}
	if len(buf) < 2 {
		return nil, fmt.Errorf("packets: buffer too short for UNSUBSCRIBE packet")
	}

	pkt := &UnsubscribePacket{
		PacketID: binary.BigEndian.Uint16(buf[0:2]),
	}
	offset := 2

	for offset < len(buf) {
		topic, n, err := decodeString(buf[offset:])
		if err != nil {
			return nil, fmt.Errorf("packets: decode UNSUBSCRIBE topic filter: %w", err)
		}
		offset += n
		pkt.Topics = append(pkt.Topics, topic)
	}

	if len(pkt.Topics) == 0 {
		return nil, fmt.Errorf("packets: UNSUBSCRIBE must carry at least one topic filter")
	}

	return pkt, nil
}
