package mqtt

import (
	"fmt"
	"sort"

	"github.com/gonzalop/iothub-mqtt/internal/packets"
)

// SubscribeOptions holds configuration for a subscription.
type SubscribeOptions struct {
	// Persistence controls whether the subscription survives a
	// reset-session reconnect. Enabled by default.
	Persistence bool
}

// SubscribeOption is a functional option for configuring a subscription.
type SubscribeOption func(*SubscribeOptions)

// WithPersistence sets whether the subscription should survive a
// reset-session reconnect. If true (default), it is folded into the fresh
// SUBSCRIBE the client synthesizes whenever a reconnect resets the session.
// If false, the subscription is dropped from the acknowledged set the
// moment that happens instead.
func WithPersistence(persistence bool) SubscribeOption {
	return func(o *SubscribeOptions) {
		o.Persistence = persistence
	}
}

// Subscribe subscribes to a topic with the specified QoS level.
//
// The handler function is called for each message received on topics matching
// the subscription filter. If a message matches multiple subscription filters,
// the handlers for all matching subscriptions will be called.
//
// The handler is called in a separate goroutine, so it should not block for
// long periods.
//
// Topic filters support MQTT wildcards:
//   - '+' matches a single level (e.g., "sensors/+/temperature")
//   - '#' matches multiple levels (e.g., "sensors/#")
//
// The function returns a Token that completes when the subscription is
// acknowledged by the server.
//
// Example:
//
//	token := client.Subscribe("sensors/temperature", 1,
//	    func(c *mqtt.Client, msg mqtt.Message) {
//	        fmt.Printf("Temperature: %s\n", string(msg.Payload))
//	    })
//	if err := token.Wait(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
func (c *Client) Subscribe(topic string, qos QoS, handler MessageHandler, opts ...SubscribeOption) Token {
	c.opts.Logger.Debug("subscribing to topic", "topic", topic, "qos", qos)

	if err := validateSubscribeTopic(topic, c.opts); err != nil {
		tok := newToken()
		tok.complete(fmt.Errorf("invalid topic filter: %w", err))
		return tok
	}

	subOpts := &SubscribeOptions{Persistence: true}
	for _, opt := range opts {
		opt(subOpts)
	}

	tok := newToken()
	c.internalSubscribe(topic, uint8(qos), handler, subOpts.Persistence, tok)
	return tok
}

// Unsubscribe unsubscribes from one or more topics.
//
// After unsubscribing, the client will no longer receive messages on the
// specified topics. The function returns a Token that completes when the
// unsubscription is acknowledged by the server.
//
// Example (multiple topics):
//
//	token := client.Unsubscribe("sensors/temp", "sensors/humidity", "sensors/pressure")
//	if err := token.Wait(context.Background()); err != nil {
//	    log.Printf("Unsubscribe failed: %v", err)
//	}
func (c *Client) Unsubscribe(topics ...string) Token {
	c.opts.Logger.Debug("unsubscribing from topics", "topics", topics)

	tok := newToken()
	if len(topics) == 0 {
		tok.complete(nil)
		return tok
	}

	c.internalUnsubscribe(topics, tok)
	return tok
}

// foldAndDispatchSubscriptions folds the FIFO of user subscribe/unsubscribe
// intents into a target subscription set (layered over the acknowledged
// set), diffs the target against the acknowledged set, and dispatches each
// non-empty group as a single SUBSCRIBE or UNSUBSCRIBE packet, per spec.md
// §4.5. Must be called with sessionLock held.
func (c *Client) foldAndDispatchSubscriptions() {
	if len(c.sess.subscriptionFIFO) == 0 {
		return
	}

	intents := c.sess.subscriptionFIFO
	c.sess.subscriptionFIFO = nil

	target := make(map[string]subscriptionUpdate, len(c.sess.subscriptions)+len(intents))
	for topic, entry := range c.sess.subscriptions {
		target[topic] = subscriptionUpdate{topic: topic, qos: entry.qos, handler: entry.handler, persistent: entry.persistent}
	}
	for _, intent := range intents {
		if intent.unsubscribe {
			delete(target, intent.topic)
		} else {
			target[intent.topic] = intent
		}
	}

	var subTopics []string
	for topic, u := range target {
		entry, acked := c.sess.subscriptions[topic]
		if !acked || entry.qos != u.qos {
			subTopics = append(subTopics, topic)
		}
	}
	sort.Strings(subTopics)

	var unsubTopics []string
	for topic := range c.sess.subscriptions {
		if _, stillWanted := target[topic]; !stillWanted {
			unsubTopics = append(unsubTopics, topic)
		}
	}
	sort.Strings(unsubTopics)

	tokensFor := func(topics []string, unsub bool) []*token {
		wanted := make(map[string]bool, len(topics))
		for _, t := range topics {
			wanted[t] = true
		}
		var toks []*token
		for _, intent := range intents {
			if intent.unsubscribe == unsub && wanted[intent.topic] && intent.token != nil {
				toks = append(toks, intent.token)
			}
		}
		return toks
	}

	var deferred []subscriptionUpdate

	if len(subTopics) > 0 {
		if !c.dispatchSubscribeBatch(subTopics, target, tokensFor(subTopics, false)) {
			for _, topic := range subTopics {
				deferred = append(deferred, target[topic])
			}
		}
	}
	if len(unsubTopics) > 0 {
		if !c.dispatchUnsubscribeBatch(unsubTopics, tokensFor(unsubTopics, true)) {
			for _, topic := range unsubTopics {
				deferred = append(deferred, subscriptionUpdate{topic: topic, unsubscribe: true})
			}
		}
	}

	// Identifier reservation failed for one of the two groups: per spec.md
	// §4.5, its updates go back to the head of the FIFO rather than being
	// dropped, so the next fold attempt (e.g. after an identifier frees up)
	// picks them up again.
	if len(deferred) > 0 {
		c.sess.subscriptionFIFO = append(deferred, c.sess.subscriptionFIFO...)
	}
}

func (c *Client) dispatchSubscribeBatch(topics []string, target map[string]subscriptionUpdate, tokens []*token) bool {
	id, err := c.sess.ids.reserve()
	if err != nil {
		c.opts.Logger.Error("packet identifiers exhausted, deferring subscribe batch", "error", err)
		return false
	}

	pkt := &packets.SubscribePacket{
		PacketID: id,
		Topics:   make([]string, len(topics)),
		QoS:      make([]uint8, len(topics)),
	}
	meta := make(map[string]subscribeMeta, len(topics))
	for i, topic := range topics {
		u := target[topic]
		pkt.Topics[i] = topic
		pkt.QoS[i] = u.qos
		meta[topic] = subscribeMeta{handler: u.handler, persistent: u.persistent}
	}

	c.sess.unackedBatches = append(c.sess.unackedBatches, &subscriptionBatch{
		packetID:  id,
		subscribe: pkt,
		meta:      meta,
		tokens:    tokens,
	})

	select {
	case c.outgoing <- pkt:
	case <-c.stop:
	}
	return true
}

func (c *Client) dispatchUnsubscribeBatch(topics []string, tokens []*token) bool {
	id, err := c.sess.ids.reserve()
	if err != nil {
		c.opts.Logger.Error("packet identifiers exhausted, deferring unsubscribe batch", "error", err)
		return false
	}

	pkt := &packets.UnsubscribePacket{PacketID: id, Topics: topics}
	c.sess.unackedBatches = append(c.sess.unackedBatches, &subscriptionBatch{
		packetID:    id,
		unsubscribe: pkt,
		tokens:      tokens,
	})

	select {
	case c.outgoing <- pkt:
	case <-c.stop:
	}
	return true
}

// reconnectSubscriptions runs immediately after a new connection is
// established, replaying or resynthesizing whatever SUBSCRIBE/UNSUBSCRIBE
// batches were still unacknowledged when the previous connection dropped —
// per spec.md §4.5's reconnect rules. It must run before
// foldAndDispatchSubscriptions processes any newly queued user intents, and
// must be called with sessionLock held.
func (c *Client) reconnectSubscriptions(resetSession bool) {
	batches := c.sess.unackedBatches
	c.sess.unackedBatches = nil

	if !resetSession {
		// Session survived: replay every stored batch with its original
		// identifier. No SUBSCRIBE is emitted at all if nothing was
		// in flight, satisfying "no SUBSCRIBE if the stored set matches".
		for _, b := range batches {
			c.sess.unackedBatches = append(c.sess.unackedBatches, b)
			var pkt packets.Packet = b.subscribe
			if b.subscribe == nil {
				pkt = b.unsubscribe
			}
			select {
			case c.outgoing <- pkt:
			case <-c.stop:
				return
			}
		}
		return
	}

	// reset_session == true: the server has forgotten the session, so
	// merge every unacked batch's intended effect into the acknowledged
	// set (in FIFO order), release their identifiers, then synthesize one
	// fresh SUBSCRIBE containing the sorted, persistent-only union.
	for _, b := range batches {
		c.sess.ids.discard(b.packetID)
		if b.subscribe != nil {
			for i, topic := range b.subscribe.Topics {
				meta := b.meta[topic]
				c.sess.subscriptions[topic] = subscriptionEntry{handler: meta.handler, qos: b.subscribe.QoS[i], persistent: meta.persistent}
			}
		} else {
			for _, topic := range b.unsubscribe.Topics {
				delete(c.sess.subscriptions, topic)
			}
		}
		b.complete(ErrClientDisconnected)
	}

	var topics []string
	for topic, entry := range c.sess.subscriptions {
		if !entry.persistent {
			delete(c.sess.subscriptions, topic)
			continue
		}
		topics = append(topics, topic)
	}
	if len(topics) == 0 {
		return
	}
	sort.Strings(topics)

	id, err := c.sess.ids.reserve()
	if err != nil {
		c.opts.Logger.Error("packet identifiers exhausted resynthesizing subscriptions", "error", err)
		return
	}

	pkt := &packets.SubscribePacket{
		PacketID: id,
		Topics:   make([]string, len(topics)),
		QoS:      make([]uint8, len(topics)),
	}
	meta := make(map[string]subscribeMeta, len(topics))
	for i, topic := range topics {
		entry := c.sess.subscriptions[topic]
		pkt.Topics[i] = topic
		pkt.QoS[i] = entry.qos
		meta[topic] = subscribeMeta{handler: entry.handler, persistent: entry.persistent}
	}
	c.sess.unackedBatches = append(c.sess.unackedBatches, &subscriptionBatch{packetID: id, subscribe: pkt, meta: meta})

	select {
	case c.outgoing <- pkt:
	case <-c.stop:
	}
}
