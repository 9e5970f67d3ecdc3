package mqtt

import (
	"sort"

	"github.com/gonzalop/iothub-mqtt/internal/packets"
)

// subscriptionEntry is what the acknowledged subscription set records for
// one topic filter: the handler to dispatch matching publications to, the
// QoS recorded for it (the granted QoS, or the requested one when the server
// downgraded or rejected the request), and whether this entry should survive a
// reset-session reconnect (see WithPersistence).
type subscriptionEntry struct {
	handler    MessageHandler
	qos        uint8
	persistent bool
}

// waitingAck is an outbound QoS 1/2 PUBLISH awaiting its PUBACK or PUBREC.
// packet always carries Dup == true, since it exists specifically to be
// replayed verbatim across a reconnect.
type waitingAck struct {
	packet *packets.PublishPacket
	token  *token
}

// waitingRelease is an inbound QoS 2 publication held until the matching
// PUBREL arrives; only then is it surfaced to subscription handlers.
type waitingRelease struct {
	publish *packets.PublishPacket
}

// waitingComplete is an outbound QoS 2 PUBLISH that has moved past PUBREC
// and is now waiting for PUBCOMP. original is kept so that a reset-session
// reconnect can restart the exchange from PUBLISH rather than PUBREL.
type waitingComplete struct {
	original *packets.PublishPacket
	pubrel   *packets.PubrelPacket
	token    *token
}

// subscriptionUpdate is one atomic intent drawn from the user-facing
// Subscribe/Unsubscribe calls, queued until the subscriptions machine next
// folds the FIFO into a target set.
type subscriptionUpdate struct {
	topic       string
	qos         uint8
	unsubscribe bool
	handler     MessageHandler
	persistent  bool
	token       *token
}

// subscribeMeta is the per-topic bookkeeping a dispatched SUBSCRIBE batch
// needs to reconstruct subscriptionEntry values once its SUBACK arrives.
type subscribeMeta struct {
	handler    MessageHandler
	persistent bool
}

// subscriptionBatch is one SUBSCRIBE or UNSUBSCRIBE dispatched as a unit
// and recorded in UnackedSubscriptionBatches until its ack arrives. Exactly
// one of subscribe/unsubscribe is non-nil.
type subscriptionBatch struct {
	packetID    uint16
	subscribe   *packets.SubscribePacket
	unsubscribe *packets.UnsubscribePacket
	meta        map[string]subscribeMeta
	tokens      []*token
}

func (b *subscriptionBatch) complete(err error) {
	for _, t := range b.tokens {
		if t != nil {
			t.complete(err)
		}
	}
}

// session holds every piece of client state that must survive, or react
// specifically to, a reconnect: the packet identifier allocator and the
// three in-flight publish sets from spec.md's data model, plus the
// acknowledged subscription set and its own unacknowledged-batch FIFO. It
// is owned by logicLoop and guarded by Client.sessionLock.
type session struct {
	ids identifierSet

	waitingAcked     map[uint16]*waitingAck
	waitingReleased  map[uint16]*waitingRelease
	waitingCompleted map[uint16]*waitingComplete

	subscriptions    map[string]subscriptionEntry
	subscriptionFIFO []subscriptionUpdate
	unackedBatches   []*subscriptionBatch
}

func newSession() *session {
	return &session{
		waitingAcked:     make(map[uint16]*waitingAck),
		waitingReleased:  make(map[uint16]*waitingRelease),
		waitingCompleted: make(map[uint16]*waitingComplete),
		subscriptions:    make(map[string]subscriptionEntry),
	}
}

// sortedUint16Keys returns m's keys in ascending order, giving deterministic
// replay ordering across the otherwise-unordered in-flight maps.
func sortedUint16Keys[V any](m map[uint16]V) []uint16 {
	keys := make([]uint16, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
