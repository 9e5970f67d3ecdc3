package iothub

import (
	"context"
	"fmt"

	mqtt "github.com/gonzalop/iothub-mqtt"
)

// ModuleClient is a module-scoped connection to an IoT Hub: a client-id of
// "deviceID/moduleID", and the module's own twin, reported-property, and
// direct-method surfaces.
type ModuleClient struct {
	*mqtt.Client

	twin     *Twin
	reported *ReportedState
	methods  *DirectMethods
}

// DialModule connects to hostname as moduleID running on deviceID and
// performs the hub's default subscriptions.
func DialModule(ctx context.Context, hostname, deviceID, moduleID string, auth Authentication, opts ...Option) (*ModuleClient, error) {
	client, twin, reported, methods, err := dial(hostname, deviceID, moduleID, auth, opts)
	if err != nil {
		return nil, err
	}

	tok := client.Subscribe(directMethodFilter, mqtt.AtLeastOnce, methods.handleMessage)
	if err := tok.Wait(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("iothub: subscribe to direct methods: %w", err)
	}

	return &ModuleClient{Client: client, twin: twin, reported: reported, methods: methods}, nil
}

// Twin returns the module's twin accessor.
func (m *ModuleClient) Twin() *Twin { return m.twin }

// ReportedProperties returns the module's reported-property publisher.
func (m *ModuleClient) ReportedProperties() *ReportedState { return m.reported }

// DirectMethods returns the module's direct-method invocation router.
func (m *ModuleClient) DirectMethods() *DirectMethods { return m.methods }
