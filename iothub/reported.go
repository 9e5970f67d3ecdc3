package iothub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/gonzalop/iothub-mqtt"
)

// ReportedState publishes reported-property patches and waits for the
// hub's acknowledgment, sharing its request-id sequence and back-off with
// the twin GET flow via the same requestTracker.
type ReportedState struct {
	client  *mqtt.Client
	tracker *requestTracker
	logger  *slog.Logger
}

func newReportedState(client *mqtt.Client, tracker *requestTracker, logger *slog.Logger) *ReportedState {
	return &ReportedState{client: client, tracker: tracker, logger: logger}
}

// Update publishes a reported-properties patch and blocks until the hub
// acknowledges it, retrying with exponential back-off on throttling or
// server errors and on a response timeout.
func (r *ReportedState) Update(ctx context.Context, properties map[string]any) error {
	payload, err := json.Marshal(properties)
	if err != nil {
		return fmt.Errorf("iothub: encode reported properties: %w", err)
	}

	for {
		rid := r.tracker.nextRequestID()
		respCh, cleanup := r.tracker.await(rid)

		token := r.client.Publish(twinReportedRequestTopic(rid), payload, mqtt.WithQoS(mqtt.AtMostOnce))
		if err := token.Wait(ctx); err != nil {
			cleanup()
			return fmt.Errorf("iothub: publish reported properties: %w", err)
		}

		select {
		case tr := <-respCh:
			cleanup()
			switch {
			case tr.topic.Status == StatusOK, tr.topic.Status == StatusNoContent:
				r.tracker.resetBackOff()
				return nil
			case tr.topic.Status == StatusTooManyRequests, tr.topic.Status.IsServerError():
				select {
				case <-time.After(r.tracker.backOff()):
				case <-ctx.Done():
					return ctx.Err()
				}
				continue
			default:
				return fmt.Errorf("iothub: report properties failed with status %s", tr.topic.Status)
			}

		case <-time.After(r.tracker.responseTimeout):
			cleanup()
			continue

		case <-ctx.Done():
			cleanup()
			return ctx.Err()
		}
	}
}
