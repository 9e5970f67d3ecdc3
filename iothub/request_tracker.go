package iothub

import (
	"log/slog"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/gonzalop/iothub-mqtt"
)

// trackedResponse pairs a parsed twin response topic with its payload.
type trackedResponse struct {
	topic   twinResponse
	payload []byte
}

// requestTracker correlates outgoing twin GET and reported-property
// requests with their eventual response, and hands out the wrapping
// request-id sequence the two flows share. It is safe for concurrent use;
// the twin GET loop and the reported-property loop each hold a reference to
// the same tracker.
type requestTracker struct {
	mu      sync.Mutex
	nextID  uint8
	pending map[uint8]chan trackedResponse

	maxBackoff      time.Duration
	responseTimeout time.Duration
	currentBackoff  time.Duration
}

func newRequestTracker(maxBackoff, keepAlive time.Duration) *requestTracker {
	return &requestTracker{
		pending:         make(map[uint8]chan trackedResponse),
		maxBackoff:      maxBackoff,
		responseTimeout: 2 * keepAlive,
	}
}

// nextRequestID returns the next request id. No id is ever skipped: 0 is an
// ordinary id, and the byte simply wraps around every 256 requests.
func (t *requestTracker) nextRequestID() uint8 {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	return id
}

// await registers interest in the response for rid and returns a channel
// that receives it, plus a cleanup function the caller must invoke once
// done waiting (whether it received a response or gave up).
func (t *requestTracker) await(rid uint8) (<-chan trackedResponse, func()) {
	ch := make(chan trackedResponse, 1)
	t.mu.Lock()
	t.pending[rid] = ch
	t.mu.Unlock()

	cleanup := func() {
		t.mu.Lock()
		delete(t.pending, rid)
		t.mu.Unlock()
	}
	return ch, cleanup
}

// deliver routes a response to its waiter, if one is still registered. It
// returns false if no one was waiting for this request id (a response that
// arrived late, after the caller gave up and issued a new request).
func (t *requestTracker) deliver(rid uint8, resp trackedResponse) bool {
	t.mu.Lock()
	ch, ok := t.pending[rid]
	t.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- resp:
		return true
	default:
		return false
	}
}

// backOff returns the next back-off duration to sleep for and advances
// the internal back-off counter, doubling it each call up to maxBackoff,
// mirroring the client's own reconnect back-off.
func (t *requestTracker) backOff() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.currentBackoff == 0 {
		t.currentBackoff = time.Second
	} else {
		t.currentBackoff = min(t.currentBackoff*2, t.maxBackoff)
	}
	return t.currentBackoff
}

// resetBackOff is called once a request succeeds, so the next failure
// starts back at the initial back-off rather than continuing to climb.
func (t *requestTracker) resetBackOff() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentBackoff = 0
}

// handleResponseMessage is the MessageHandler wired to the twin response
// subscription. Both Twin.Get and ReportedState.Update register their
// wait channel under the same tracker, so a single handler here is enough
// to route a response to whichever of the two is waiting on its request id.
func (t *requestTracker) handleResponseMessage(logger *slog.Logger, _ *mqtt.Client, msg mqtt.Message) {
	resp, err := parseTwinResponseTopic(msg.Topic)
	if err != nil {
		logger.Warn("iothub: unrecognized twin response topic", "topic", msg.Topic, "error", err)
		return
	}
	rid, err := strconv.Atoi(resp.RequestID)
	if err != nil || rid < 0 || rid > 255 {
		logger.Warn("iothub: unparseable twin request id", "rid", resp.RequestID)
		return
	}
	t.deliver(uint8(rid), trackedResponse{topic: resp, payload: msg.Payload})
}
