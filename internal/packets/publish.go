package packets

import (
	"encoding/binary"
	"fmt"
	"io"
)

// PublishPacket represents an MQTT v3.1.1 PUBLISH control packet.
type PublishPacket struct {
	Dup    bool
	QoS    uint8
	Retain bool

	Topic    string
	PacketID uint16 // only present if QoS > 0

	Payload []byte
}

func (p *PublishPacket) Type() uint8 { return PUBLISH }

// WriteTo writes the PUBLISH packet to w.
func (p *PublishPacket) WriteTo(w io.Writer) (int64, error) {
	if p.QoS == QoS0 && p.Dup {
		return 0, ErrPublishDupAtMostOnce
	}

	topicBytes := encodeString(p.Topic)
	variableHeaderLen := len(topicBytes)
	if p.QoS > 0 {
		variableHeaderLen += 2
	}

	var flags uint8
	if p.Dup {
		flags |= 0x08
	}
	flags |= (p.QoS & 0x03) << 1
	if p.Retain {
		flags |= 0x01
	}

	header := &FixedHeader{
		PacketType:      PUBLISH,
		Flags:           flags,
		RemainingLength: variableHeaderLen + len(p.Payload),
	}

	var total int64
	hN, err := header.WriteTo(w)
	total += hN
	if err != nil {
		return total, err
	}

	n, err := w.Write(topicBytes)
	total += int64(n)
	if err != nil {
		return total, err
	}

	if p.QoS > 0 {
		var idBytes [2]byte
		binary.BigEndian.PutUint16(idBytes[:], p.PacketID)
		n, err = w.Write(idBytes[:])
		total += int64(n)
		if err != nil {
			return total, err
		}
	}

	n, err = w.Write(p.Payload)
	total += int64(n)
	return total, err
}

// DecodePublish decodes a PUBLISH packet from buf using the flags carried in
// the fixed header.
func DecodePublish(buf []byte, header *FixedHeader) (*PublishPacket, error) {
	pkt := &PublishPacket{
		Dup:    header.Flags&0x08 != 0,
		QoS:    (header.Flags >> 1) & 0x03,
		Retain: header.Flags&0x01 != 0,
	}

	if pkt.QoS > QoS2 {
		return nil, fmt.Errorf("packets: invalid PUBLISH QoS %d", pkt.QoS)
	}
	if pkt.QoS == QoS0 && pkt.Dup {
		return nil, ErrPublishDupAtMostOnce
	}

	offset := 0
	topic, n, err := decodeString(buf[offset:])
	if err != nil {
		return nil, fmt.Errorf("packets: decode PUBLISH topic: %w", err)
	}
	pkt.Topic = topic
	offset += n

	if pkt.QoS > 0 {
		if offset+2 > len(buf) {
			return nil, ErrMissingPacketIdentifier
		}
		pkt.PacketID = binary.BigEndian.Uint16(buf[offset : offset+2])
		offset += 2
	}

	pkt.Payload = append([]byte(nil), buf[offset:]...)
	return pkt, nil
}
