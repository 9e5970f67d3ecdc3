package packets

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// errVarIntShort signals that buf does not yet hold a complete variable
// byte integer; the caller should treat this as "need more bytes".
var errVarIntShort = errors.New("packets: buffer too short for variable byte integer")

// appendVarInt appends the Variable Byte Integer encoding of value to dst.
// It returns the extended slice.
func appendVarInt(dst []byte, value int) []byte {
	if value < 0 || value > 268435455 { // Max value: 0xFF, 0xFF, 0xFF, 0x7F
		panic(fmt.Sprintf("value %d out of range for variable byte integer", value))
	}

	for {
		digit := byte(value % 128)
		value /= 128
		if value > 0 {
			digit |= 0x80
		}
		dst = append(dst, digit)
		if value == 0 {
			break
		}
	}
	return dst
}

// decodeVarInt reads a Variable Byte Integer from the reader.
// Returns the decoded value and any error encountered.
func decodeVarInt(r io.Reader) (int, error) {
	// Wrap io.Reader as io.ByteReader if needed
	br, ok := r.(io.ByteReader)
	if !ok {
		br = &byteReader{r: r}
	}

	val, err := binary.ReadUvarint(br)
	if err != nil {
		return 0, err
	}

	// Remaining Length MUST NOT exceed 268,435,455 (4-byte encoding limit)
	if val > 268435455 {
		return 0, &RemainingLengthTooHighError{Value: int(val)}
	}

	return int(val), nil
}

// byteReader wraps an io.Reader to implement io.ByteReader
type byteReader struct {
	r   io.Reader
	buf [1]byte
}

func (br *byteReader) ReadByte() (byte, error) {
	_, err := io.ReadFull(br.r, br.buf[:])
	return br.buf[0], err
}

// decodeVarIntBuf reads a Variable Byte Integer from a byte slice.
// Returns the decoded value, number of bytes read, and error.
func decodeVarIntBuf(buf []byte) (int, int, error) {
	val, n := binary.Uvarint(buf)
	if n == 0 {
		return 0, 0, errVarIntShort
	}
	if n < 0 {
		return 0, 0, fmt.Errorf("packets: malformed variable byte integer")
	}

	// Remaining Length MUST NOT exceed 4 bytes, and value must be <= 268,435,455.
	if n > 4 || val > 268435455 {
		return 0, 0, &RemainingLengthTooHighError{Value: int(val)}
	}

	return int(val), n, nil
}
