package packets

import (
	"fmt"
	"io"
)

// FixedHeader represents the fixed header present in all MQTT control packets.
// Format: [PacketType + Flags (1 byte)][Remaining Length (1-4 bytes)]
type FixedHeader struct {
	PacketType      uint8
	Flags           uint8
	RemainingLength int
}

// WriteTo writes the fixed header to the writer.
func (h *FixedHeader) WriteTo(w io.Writer) (int64, error) {
	firstByte := (h.PacketType << 4) | (h.Flags & 0x0F)

	if h.RemainingLength < 0 || h.RemainingLength > 268435455 {
		return 0, &RemainingLengthTooHighError{Value: h.RemainingLength}
	}

	// Optimization: if writer supports WriteByte, avoid the slice allocation.
	if bw, ok := w.(io.ByteWriter); ok {
		if err := bw.WriteByte(firstByte); err != nil {
			return 0, err
		}
		var total int64 = 1
		for _, b := range appendVarInt(nil, h.RemainingLength) {
			if err := bw.WriteByte(b); err != nil {
				return total, err
			}
			total++
		}
		return total, nil
	}

	var buf [5]byte
	buf[0] = firstByte
	n := 1 + copy(buf[1:], appendVarInt(nil, h.RemainingLength))

	nw, err := w.Write(buf[:n])
	return int64(nw), err
}

// DecodeFixedHeader reads and decodes a fixed header from the reader.
func DecodeFixedHeader(r io.Reader) (*FixedHeader, error) {
	var buf [1]byte

	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}

	firstByte := buf[0]
	packetType := firstByte >> 4
	flags := firstByte & 0x0F

	remainingLength, err := decodeVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode remaining length: %w", err)
	}

	return &FixedHeader{
		PacketType:      packetType,
		Flags:           flags,
		RemainingLength: remainingLength,
	}, nil
}
