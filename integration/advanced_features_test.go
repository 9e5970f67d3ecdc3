package mq_test

import (
	"context"
	"testing"
	"time"

	mqtt "github.com/gonzalop/iothub-mqtt"
)

func TestAdvancedFeatures(t *testing.T) {
	t.Parallel()
	server, cleanup := startMosquitto(t, "")
	defer cleanup()

	// Test 1: Keep Alive negotiation doesn't crash the handshake.
	t.Run("KeepAlive", func(t *testing.T) {
		t.Parallel()
		client, err := mqtt.Dial(server,
			mqtt.WithClientID("test-ka-"+t.Name()),
			mqtt.WithKeepAlive(60*time.Second),
		)
		if err != nil {
			t.Fatalf("Failed to connect: %v", err)
		}
		defer client.Disconnect(context.Background())
	})

	// Test 2: Retained Messages
	t.Run("RetainedMessages", func(t *testing.T) {
		t.Parallel()
		client, err := mqtt.Dial(server,
			mqtt.WithClientID("test-retained-"+t.Name()),
		)
		if err != nil {
			t.Fatalf("Failed to connect: %v", err)
		}
		defer client.Disconnect(context.Background())

		topic := "test/retained/" + t.Name()
		payload := "this-is-retained"

		// 1. Publish retained message
		if err := client.Publish(topic, []byte(payload), mqtt.WithQoS(1), mqtt.WithRetain(true)).Wait(context.Background()); err != nil {
			t.Fatalf("Failed to publish retained: %v", err)
		}

		// 2. Subscribe and verify we get it
		received := make(chan mqtt.Message, 1)
		if err := client.Subscribe(topic, 1, func(c *mqtt.Client, msg mqtt.Message) {
			received <- msg
		}).Wait(context.Background()); err != nil {
			t.Fatalf("Failed to subscribe: %v", err)
		}

		select {
		case msg := <-received:
			if string(msg.Payload) != payload {
				t.Errorf("Payload = %s, want %s", string(msg.Payload), payload)
			}
			if !msg.Retained {
				t.Error("Message should be marked as Retained")
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Timeout waiting for retained message")
		}
	})

	// Test 4: Wildcard Subscriptions
	t.Run("WildcardSubscriptions", func(t *testing.T) {
		t.Parallel()
		client, err := mqtt.Dial(server,
			mqtt.WithClientID("test-wildcard-"+t.Name()),
		)
		if err != nil {
			t.Fatalf("Failed to connect: %v", err)
		}
		defer client.Disconnect(context.Background())

		received := make(chan mqtt.Message, 2)
		handler := func(c *mqtt.Client, msg mqtt.Message) {
			received <- msg
		}

		// 1. Subscribe to wildcards
		// "+" matches single level: test/wildcard/one
		// "#" matches multi level: test/wildcard/nested/two
		prefix := "test/wildcard/" + t.Name() + "/"
		if err := client.Subscribe(prefix+"+", 1, handler).Wait(context.Background()); err != nil {
			t.Fatalf("Failed to subscribe +: %v", err)
		}
		if err := client.Subscribe(prefix+"nested/#", 1, handler).Wait(context.Background()); err != nil {
			t.Fatalf("Failed to subscribe #: %v", err)
		}

		// 2. Publish matching messages
		client.Publish(prefix+"level1", []byte("msg1"), mqtt.WithQoS(1))
		client.Publish(prefix+"nested/level2/level3", []byte("msg2"), mqtt.WithQoS(1))

		// 3. Verify reception
		expected := map[string]bool{
			"msg1": false,
			"msg2": false,
		}

		for i := 0; i < 2; i++ {
			select {
			case msg := <-received:
				expected[string(msg.Payload)] = true
			case <-time.After(2 * time.Second):
				t.Fatal("Timeout waiting for wildcard messages")
			}
		}

		if !expected["msg1"] {
			t.Error("Did not receive msg1 (single level wildcard)")
		}
		if !expected["msg2"] {
			t.Error("Did not receive msg2 (multi level wildcard)")
		}
	})
}
