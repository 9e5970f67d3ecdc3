package iothub

import (
	"context"
	"log/slog"
	"sync"

	mqtt "github.com/gonzalop/iothub-mqtt"
)

// MethodRequest is a direct method invocation delivered by the hub. Handlers
// receive one of these and must call Respond, once, to complete it.
type MethodRequest struct {
	Name      string
	Payload   []byte
	RequestID string

	client *mqtt.Client
}

// Respond publishes the method's result. status is the application-defined
// result code the invoker sees (200 for success is conventional, not
// enforced). payload may be nil.
func (m MethodRequest) Respond(ctx context.Context, status Status, payload []byte) error {
	token := m.client.Publish(directMethodResponseTopic(status, m.RequestID), payload, mqtt.WithQoS(mqtt.AtLeastOnce))
	return token.Wait(ctx)
}

// DirectMethods routes incoming "$iothub/methods/POST/..." publications to
// a single registered handler, responding with 501 when none is set so an
// invoker never hangs waiting on a device with nothing listening.
type DirectMethods struct {
	client *mqtt.Client
	logger *slog.Logger

	mu      sync.Mutex
	handler func(MethodRequest)
}

func newDirectMethods(client *mqtt.Client, logger *slog.Logger) *DirectMethods {
	return &DirectMethods{client: client, logger: logger}
}

// OnInvoke registers the handler called for every direct method invocation,
// regardless of method name. Handlers that care about the name should
// switch on MethodRequest.Name.
func (d *DirectMethods) OnInvoke(fn func(MethodRequest)) {
	d.mu.Lock()
	d.handler = fn
	d.mu.Unlock()
}

func (d *DirectMethods) handleMessage(_ *mqtt.Client, msg mqtt.Message) {
	inv, ok := parseDirectMethodTopic(msg.Topic)
	if !ok {
		d.logger.Warn("iothub: unrecognized direct method topic", "topic", msg.Topic)
		return
	}

	d.mu.Lock()
	h := d.handler
	d.mu.Unlock()

	if h == nil {
		d.logger.Warn("iothub: direct method invoked with no handler registered", "method", inv.Name)
		token := d.client.Publish(directMethodResponseTopic(StatusMethodNotImplemented, inv.RequestID), nil, mqtt.WithQoS(mqtt.AtLeastOnce))
		if err := token.Wait(context.Background()); err != nil {
			d.logger.Error("iothub: failed to respond to unhandled direct method", "error", err)
		}
		return
	}

	h(MethodRequest{Name: inv.Name, Payload: msg.Payload, RequestID: inv.RequestID, client: d.client})
}
