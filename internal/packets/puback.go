package packets

import (
	"encoding/binary"
	"fmt"
	"io"
)

// PubackPacket represents an MQTT PUBACK control packet (QoS 1 acknowledgment).
type PubackPacket struct {
	PacketID uint16
}

func (p *PubackPacket) Type() uint8 { return PUBACK }

func (p *PubackPacket) WriteTo(w io.Writer) (int64, error) {
	return writeIdentifierOnlyPacket(w, PUBACK, 0, p.PacketID)
}

// DecodePuback decodes a PUBACK packet from buf.
func DecodePuback(buf []byte) (*PubackPacket, error) {
	id, err := decodeIdentifierOnlyPacket(buf, "PUBACK")
	if err != nil {
		return nil, fmt.Errorf("packets: %w", err)
	}
	return &PubackPacket{PacketID: id}, nil
}

// writeIdentifierOnlyPacket writes the common shape shared by PUBACK, PUBREC,
// PUBREL and PUBCOMP: a fixed header followed by a single 2-byte packet
// identifier.
func writeIdentifierOnlyPacket(w io.Writer, packetType, flags uint8, id uint16) (int64, error) {
	header := &FixedHeader{
		PacketType:      packetType,
		Flags:           flags,
		RemainingLength: 2,
	}

	var total int64
	hN, err := header.WriteTo(w)
	total += hN
	if err != nil {
		return total, err
	}

	var idBytes [2]byte
	binary.BigEndian.PutUint16(idBytes[:], id)
	n, err := w.Write(idBytes[:])
	total += int64(n)
	return total, err
}

func decodeIdentifierOnlyPacket(buf []byte, name string) (uint16, error) {
	if len(buf) < 2 {
		return 0, fmt.Errorf("buffer too short for %s packet", name)
	}
	return binary.BigEndian.Uint16(buf[0:2]), nil
}

// checkReservedFlags validates that a fixed header's flags match the fixed
// value MQTT v3.1.1 mandates for a given packet type (section 2.2.2).
func checkReservedFlags(flags, want uint8) error {
	if flags != want {
		return ErrReservedBitViolation
	}
	return nil
}
