package mqtt

import (
	"errors"

	"github.com/gonzalop/iothub-mqtt/internal/packets"
)

// CONNACK return codes, MQTT v3.1.1 section 3.2.2.3.
const (
	ReturnCodeAccepted                   = packets.ConnAccepted
	ReturnCodeUnacceptableProtocolVersion = packets.ConnRefusedUnacceptableProtocol
	ReturnCodeIdentifierRejected         = packets.ConnRefusedIdentifierRejected
	ReturnCodeServerUnavailable          = packets.ConnRefusedServerUnavailable
	ReturnCodeBadUsernameOrPassword      = packets.ConnRefusedBadUsernameOrPassword
	ReturnCodeNotAuthorized              = packets.ConnRefusedNotAuthorized
)

// SUBACK return codes, MQTT v3.1.1 section 3.9.3.
const (
	SubscribeReturnCodeQoS0    = packets.SubackQoS0
	SubscribeReturnCodeQoS1    = packets.SubackQoS1
	SubscribeReturnCodeQoS2    = packets.SubackQoS2
	SubscribeReturnCodeFailure = packets.SubackFailure
)

// Disposition classifies how the client reacts to an error surfaced while
// running the protocol engine.
type Disposition int

const (
	// DispositionFatal means the client cannot continue; the reconnect loop
	// logs the error and stops retrying.
	DispositionFatal Disposition = iota
	// DispositionUser means the error is scoped to a single operation (a
	// failed Publish/Subscribe token) and does not affect the connection.
	DispositionUser
	// DispositionReconnectSameSession means the connection was lost but the
	// client should reconnect and resume the existing session.
	DispositionReconnectSameSession
	// DispositionReconnectResetSession means the connection was lost and the
	// server is known not to have session state to resume, so the client
	// starts a fresh session on reconnect.
	DispositionReconnectResetSession
)

func (d Disposition) String() string {
	switch d {
	case DispositionFatal:
		return "fatal"
	case DispositionUser:
		return "user"
	case DispositionReconnectSameSession:
		return "reconnect-same-session"
	case DispositionReconnectResetSession:
		return "reconnect-reset-session"
	default:
		return "unknown"
	}
}

// Classify maps an error encountered by the engine to the action the
// top-level client should take, per the error-handling table in the design
// notes: connection refusals that indicate a permanent misconfiguration are
// fatal, refusals about identifiers/availability allow a reset-session
// reconnect, and transport-level failures (EOF, reset, timeout) allow a
// same-session reconnect.
func Classify(err error) Disposition {
	if err == nil {
		return DispositionUser
	}

	switch {
	case isAny(err, ErrUnacceptableProtocolVersion, ErrBadUsernameOrPassword, ErrNotAuthorized):
		return DispositionFatal
	case isAny(err,
		ErrIdentifierRejected, ErrServerUnavailable,
		ErrPacketIdentifiersExhausted, ErrPingTimer,
		ErrDuplicateExactlyOncePublishPacketNotMarkedDuplicate,
		ErrSubAckDoesNotContainEnoughQoS, ErrUnexpectedSubAck, ErrUnexpectedUnsubAck,
		ErrSubscriptionDowngraded, ErrSubscriptionRejectedByServer):
		return DispositionReconnectResetSession
	case isAny(err, ErrClientDisconnected):
		return DispositionReconnectSameSession
	default:
		return DispositionReconnectSameSession
	}
}

func isAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
