package iothub

import (
	"context"
	"fmt"

	mqtt "github.com/gonzalop/iothub-mqtt"
)

// DeviceClient is a device-scoped connection to an IoT Hub: a client-id of
// just the device id, and the device's own twin, reported-property, and
// direct-method surfaces.
type DeviceClient struct {
	*mqtt.Client

	twin     *Twin
	reported *ReportedState
	methods  *DirectMethods
}

// DialDevice connects to hostname as deviceID and performs the hub's
// default subscriptions.
//
// The direct-method filter is subscribed twice. This reproduces a quirk in
// the hub's own session handling: a device-scoped client's first
// subscription to "$iothub/methods/POST/#" is not reliably acknowledged
// with delivery enabled until a second, identical subscription follows it.
// Module-scoped clients (DialModule) do not need this.
func DialDevice(ctx context.Context, hostname, deviceID string, auth Authentication, opts ...Option) (*DeviceClient, error) {
	client, twin, reported, methods, err := dial(hostname, deviceID, "", auth, opts)
	if err != nil {
		return nil, err
	}

	for i := 0; i < 2; i++ {
		tok := client.Subscribe(directMethodFilter, mqtt.AtLeastOnce, methods.handleMessage)
		if err := tok.Wait(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("iothub: subscribe to direct methods: %w", err)
		}
	}

	return &DeviceClient{Client: client, twin: twin, reported: reported, methods: methods}, nil
}

// Twin returns the device's twin accessor.
func (d *DeviceClient) Twin() *Twin { return d.twin }

// ReportedProperties returns the device's reported-property publisher.
func (d *DeviceClient) ReportedProperties() *ReportedState { return d.reported }

// DirectMethods returns the device's direct-method invocation router.
func (d *DeviceClient) DirectMethods() *DirectMethods { return d.methods }
