package iothub

import (
	"fmt"
	"strconv"
)

// Status is the status code Azure IoT Hub attaches to twin GET responses
// and direct method results.
type Status int

// Named status codes the hub is documented to return. Any other code,
// including the rest of the 5xx range, still round-trips through Status as
// its raw numeric value.
const (
	StatusOK                   Status = 200
	StatusNoContent            Status = 204
	StatusBadRequest           Status = 400
	StatusTooManyRequests      Status = 429
	StatusMethodNotImplemented Status = 501
)

// String renders the status the way the hub's own wire format does: a bare
// decimal code.
func (s Status) String() string {
	return strconv.Itoa(int(s))
}

// IsServerError reports whether the code falls in the 5xx range.
func (s Status) IsServerError() bool {
	return s >= 500 && s < 600
}

// ParseStatus parses a decimal status code off the wire (e.g. from a twin
// response topic's status segment).
func ParseStatus(s string) (Status, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid status code %q: %w", s, err)
	}
	return Status(n), nil
}
