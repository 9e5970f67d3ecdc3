package iothub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/gonzalop/iothub-mqtt"
)

// Twin tracks a device or module's twin: the desired/reported property
// document, the version of the desired side last seen, and the request
// machinery used to fetch it. A Twin is driven by two subscriptions its
// owner (DeviceClient/ModuleClient) wires into the underlying client: one
// on the twin response topic, one on the desired-properties patch topic.
type Twin struct {
	client  *mqtt.Client
	tracker *requestTracker
	logger  *slog.Logger

	mu          sync.Mutex
	version     int
	haveVersion bool

	onDesiredPatch func(TwinProperties)
}

func newTwin(client *mqtt.Client, tracker *requestTracker, logger *slog.Logger) *Twin {
	return &Twin{client: client, tracker: tracker, logger: logger}
}

// OnDesiredPropertiesUpdate registers the callback invoked whenever the hub
// pushes a desired-properties patch (and, internally, after a successful
// refetch triggered by a detected version gap).
func (t *Twin) OnDesiredPropertiesUpdate(fn func(TwinProperties)) {
	t.mu.Lock()
	t.onDesiredPatch = fn
	t.mu.Unlock()
}

// Get fetches the full twin document, retrying with exponential back-off
// on throttling or server errors and on a response timeout, the same shape
// as the client's own reconnect back-off.
func (t *Twin) Get(ctx context.Context) (*TwinState, error) {
	for {
		rid := t.tracker.nextRequestID()
		respCh, cleanup := t.tracker.await(rid)

		token := t.client.Publish(twinGetRequestTopic(rid), nil, mqtt.WithQoS(mqtt.AtMostOnce))
		if err := token.Wait(ctx); err != nil {
			cleanup()
			return nil, fmt.Errorf("iothub: publish twin GET: %w", err)
		}

		select {
		case tr := <-respCh:
			cleanup()
			state, retry, err := t.handleGetResponse(tr)
			if err != nil {
				return nil, err
			}
			if retry {
				select {
				case <-time.After(t.tracker.backOff()):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				continue
			}
			t.tracker.resetBackOff()
			return state, nil

		case <-time.After(t.tracker.responseTimeout):
			cleanup()
			continue

		case <-ctx.Done():
			cleanup()
			return nil, ctx.Err()
		}
	}
}

func (t *Twin) handleGetResponse(tr trackedResponse) (state *TwinState, retry bool, err error) {
	switch {
	case tr.topic.Status == StatusOK:
		var s TwinState
		if err := json.Unmarshal(tr.payload, &s); err != nil {
			return nil, false, fmt.Errorf("iothub: decode twin state: %w", err)
		}
		t.mu.Lock()
		t.version = s.Desired.Version
		t.haveVersion = true
		t.mu.Unlock()
		return &s, false, nil

	case tr.topic.Status == StatusTooManyRequests, tr.topic.Status.IsServerError():
		return nil, true, nil

	default:
		return nil, false, fmt.Errorf("iothub: GET twin failed with status %s", tr.topic.Status)
	}
}

// handlePatch is the MessageHandler for the desired-properties patch
// subscription. A gap between the stored version and the incoming one
// (anything other than exactly +1) means a patch was missed, so the twin
// is refetched wholesale instead of applying a partial update.
func (t *Twin) handlePatch(_ *mqtt.Client, msg mqtt.Message) {
	version, ok := parseTwinPatchTopic(msg.Topic)
	if !ok {
		t.logger.Warn("iothub: unrecognized twin patch topic", "topic", msg.Topic)
		return
	}
	var props TwinProperties
	if err := json.Unmarshal(msg.Payload, &props); err != nil {
		t.logger.Warn("iothub: decode desired properties patch", "error", err)
		return
	}
	props.Version = version

	t.mu.Lock()
	gap := t.haveVersion && version != t.version+1
	if !gap {
		t.version = version
		t.haveVersion = true
	}
	onPatch := t.onDesiredPatch
	t.mu.Unlock()

	if gap {
		t.logger.Warn("iothub: desired property version gap, refetching twin", "got", version)
		go func() {
			state, err := t.Get(context.Background())
			if err != nil {
				t.logger.Error("iothub: twin refetch after version gap failed", "error", err)
				return
			}
			if onPatch != nil {
				onPatch(state.Desired)
			}
		}()
		return
	}

	if onPatch != nil {
		onPatch(props)
	}
}

// resetSession forgets the last known desired-properties version. It is
// called when the underlying connection starts a clean session, since the
// hub makes no guarantee patches sent while disconnected will be redelivered.
func (t *Twin) resetSession() {
	t.mu.Lock()
	t.haveVersion = false
	t.version = 0
	t.mu.Unlock()
}
