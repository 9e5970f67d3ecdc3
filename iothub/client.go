// Package iothub implements the Azure IoT Hub MQTT dialect on top of the
// root mqtt client: device twins, direct methods, and the client-id/topic
// conventions the hub expects. It does not speak to the hub's HTTP or AMQP
// surfaces.
package iothub

import (
	mqtt "github.com/gonzalop/iothub-mqtt"
	"github.com/gonzalop/iothub-mqtt/transport"
)

// dial builds the underlying mqtt.Client shared by DeviceClient and
// ModuleClient: it resolves the client-id/username pair, the transport
// dialer, and the twin-related subscriptions common to both. Direct-method
// subscription is left to the caller, since devices and modules differ
// there (see DialDevice's doubled subscription).
func dial(hostname, deviceID, moduleID string, auth Authentication, opts []Option) (client *mqtt.Client, twin *Twin, reported *ReportedState, methods *DirectMethods, err error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	clientID, username := clientIdentity(hostname, deviceID, moduleID)

	password, err := auth.apply(&cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	tracker := newRequestTracker(cfg.maxBackOff, cfg.keepAlive)
	twin = newTwin(nil, tracker, cfg.logger)
	reported = newReportedState(nil, tracker, cfg.logger)
	methods = newDirectMethods(nil, cfg.logger)

	var server string
	switch cfg.transport {
	case TransportWebSocket:
		if cfg.dialerOverride == nil {
			cfg.dialerOverride = transport.NewWebSocketDialer()
		}
		server = webSocketURL(hostname)
	default:
		if cfg.dialerOverride == nil {
			cfg.dialerOverride = &transport.TLSDialer{Config: cfg.tlsConfig, ReadTimeout: 2 * cfg.keepAlive}
		}
		server = hostname
	}

	mqttOpts := []mqtt.Option{
		mqtt.WithClientID(clientID),
		mqtt.WithCredentials(username, password),
		mqtt.WithKeepAlive(cfg.keepAlive),
		mqtt.WithAutoReconnect(cfg.autoReconnect),
		mqtt.WithLogger(cfg.logger),
		mqtt.WithWill(willTopic(deviceID, moduleID), nil, 1, false),
		mqtt.WithDialer(cfg.dialerOverride),
		mqtt.WithOnConnect(func(*mqtt.Client) { twin.resetSession() }),
		mqtt.WithSubscription(twinResponseFilter, func(c *mqtt.Client, msg mqtt.Message) {
			tracker.handleResponseMessage(cfg.logger, c, msg)
		}),
		mqtt.WithSubscription(twinPatchFilter, twin.handlePatch),
	}
	mqttOpts = append(mqttOpts, cfg.extra...)

	client, err = mqtt.Dial(server, mqttOpts...)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	twin.client = client
	reported.client = client
	methods.client = client

	return client, twin, reported, methods, nil
}
