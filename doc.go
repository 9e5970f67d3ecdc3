// Package mqtt provides a lightweight, idiomatic MQTT v3.1.1 client library for Go.
//
// The library provides a clean, functional options-based API for connecting
// to MQTT servers, publishing messages, and subscribing to topics. The
// iothub subpackage layers Azure IoT Hub's device twin and direct method
// conventions on top of it.
//
// # Features
//
//   - Full MQTT v3.1.1 support
//   - TLS/SSL and WebSocket transports
//   - Automatic reconnection with exponential backoff
//   - Clean, idiomatic Go API with functional options
//   - Context-based cancellation and timeouts
//
// # Quick Start
//
// Connect to a server and publish a message:
//
//	client, err := mqtt.Dial("tcp://localhost:1883",
//	    mqtt.WithClientID("my-client"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Disconnect(context.Background())
//
//	token := client.Publish("sensors/temperature", []byte("22.5"), mqtt.WithQoS(1))
//	err = token.Wait(context.Background())
//
// Subscribe to a topic:
//
//	client.Subscribe("sensors/+/temperature", mqtt.AtLeastOnce,
//	    func(c *mqtt.Client, msg mqtt.Message) {
//	        fmt.Printf("%s: %s\n", msg.Topic, string(msg.Payload))
//	    })
//
// # Connection Options
//
// The Dial and DialContext functions accept various options to configure the client:
//
//   - WithClientID(id) - Set the MQTT client identifier
//   - WithCredentials(user, pass) - Set username and password
//   - WithKeepAlive(duration) - Set keepalive interval (default: 60s)
//   - WithCleanSession(bool) - Set clean session flag
//   - WithAutoReconnect(bool) - Enable auto-reconnect (default: true)
//   - WithTLS(config) - Enable TLS encryption
//   - WithDialer(dialer) - Use a custom transport (e.g. transport.WebSocketDialer)
//   - WithWill(topic, payload, qos, retained) - Set Last Will and Testament
//
// # TLS Connections
//
// The library supports TLS/SSL encrypted connections:
//
//	client, err := mqtt.Dial("tls://server:8883",
//	    mqtt.WithClientID("secure-client"),
//	    mqtt.WithTLS(&tls.Config{
//	        InsecureSkipVerify: false,
//	    }))
//
// Supported URL schemes: tcp://, mqtt://, tls://, ssl://, mqtts://. For other
// transports (WebSocket, a PKCS#12 client identity) use WithDialer with a
// dialer from the transport package.
//
// # Quality of Service
//
// The library supports all three MQTT QoS levels:
//
//   - QoS 0 (mqtt.AtMostOnce): At most once delivery (fire and forget)
//   - QoS 1 (mqtt.AtLeastOnce): At least once delivery (acknowledged)
//   - QoS 2 (mqtt.ExactlyOnce): Exactly once delivery (assured)
//
// # Wildcard Subscriptions
//
// MQTT supports two wildcard characters in topic filters:
//
//   - '+' matches a single level (e.g., "sensors/+/temperature")
//   - '#' matches multiple levels (e.g., "sensors/#")
//
// # Error Handling
//
// Operations return a Token that can be used for both blocking and non-blocking
// error handling.
//
//	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
//	defer cancel()
//	if err := token.Wait(ctx); err != nil {
//	    log.Printf("operation failed: %v", err)
//	}
//
//	select {
//	case <-token.Done():
//	    if err := token.Error(); err != nil {
//	        log.Printf("failed: %v", err)
//	    }
//	case <-time.After(5 * time.Second):
//	    log.Println("timeout")
//	}
//
// The client handles reconnection automatically unless configured otherwise.
package mqtt
