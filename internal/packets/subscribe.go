package packets

import (
	"encoding/binary"
	"fmt"
	"io"
)

// SubscribePacket represents an MQTT v3.1.1 SUBSCRIBE control packet.
type SubscribePacket struct {
	PacketID uint16
	Topics   []string
	QoS      []uint8 // requested QoS level for each topic
}

func (p *SubscribePacket) Type() uint8 { return SUBSCRIBE }

// WriteTo writes the SUBSCRIBE packet to w. The fixed header flags are fixed
// to 0b0010 (section 3.8.1).
func (p *SubscribePacket) WriteTo(w io.Writer) (int64, error) {
	var payloadLen int
	topicBytesList := make([][]byte, len(p.Topics))
	for i, topic := range p.Topics {
		tb := encodeString(topic)
		topicBytesList[i] = tb
		payloadLen += len(tb) + 1 // topic + requested QoS byte
	}

	header := &FixedHeader{
		PacketType:      SUBSCRIBE,
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

	for i, tb := range topicBytesList {
		n, err = w.Write(tb)
		total += int64(n)
		if err != nil {
			return total, err
		}

		qos := uint8(QoS0)
		if i < len(p.QoS) {
			qos = p.QoS[i]
		}
		if err := binary.Write(w, binary.BigEndian, qos&0x03); err != nil {
			return total, err
		}
		total++
	}

	return total, nil
}

// DecodeSubscribe decodes a SUBSCRIBE packet from buf using the flags carried
// in the fixed header.
func DecodeSubscribe(buf []byte, header *FixedHeader) (*SubscribePacket, error) {
	if err := checkReservedFlags(header.Flags, 0x02); err != nil {
		return nil, err
	}
	if len(buf) < 2 {
		return nil, fmt.Errorf("packets: buffer too short for SUBSCRIBE packet")
	}

	pkt := &SubscribePacket{}
	offset := 0

	pkt.PacketID = binary.BigEndian.Uint16(buf[offset : offset+2])
	offset += 2

	for offset < len(buf) {
		topic, n, err := decodeString(buf[offset:])
		if err != nil {
			return nil, fmt.Errorf("packets: decode SUBSCRIBE topic filter: %w", err)
		}
		offset += n

		if offset >= len(buf) {
			return nil, fmt.Errorf("packets: buffer too short for SUBSCRIBE QoS byte")
		}
		qos := buf[offset] & 0x03
		offset++
		if qos > QoS2 {
			return nil, fmt.Errorf("packets: invalid requested QoS %d", qos)
		}

		pkt.Topics = append(pkt.Topics, topic)
		pkt.QoS = append(pkt.QoS, qos)
	}

	if len(pkt.Topics) == 0 {
		return nil, fmt.Errorf("packets: SUBSCRIBE must carry at least one topic filter")
	}

	return pkt, nil
}
