package mqtt

import (
	"time"

	"github.com/gonzalop/iothub-mqtt/internal/packets"
)

// logicLoop is the single-threaded state machine that owns sess: nothing in
// it needs its own lock beyond sessionLock, which only arbitrates the
// handoff from the public Publish/Subscribe/Unsubscribe methods and the
// reconnect replay that runs right after a new connection is established.
func (c *Client) logicLoop() {
	defer c.wg.Done()

	for {
		select {
		case pkt := <-c.incoming:
			c.sessionLock.Lock()
			c.handleIncoming(pkt)
			c.sessionLock.Unlock()

		case <-c.stop:
			c.opts.Logger.Debug("logicLoop stopped")
			c.sessionLock.Lock()
			for _, op := range c.sess.waitingAcked {
				op.token.complete(ErrClientDisconnected)
			}
			for _, op := range c.sess.waitingCompleted {
				op.token.complete(ErrClientDisconnected)
			}
			for _, b := range c.sess.unackedBatches {
				b.complete(ErrClientDisconnected)
			}
			c.sessionLock.Unlock()
			return
		}
	}
}

// protocolError records a protocol violation the engine cannot recover from
// on the current connection. Every error in spec.md §7's table that reaches
// here is classified reconnectable-reset-session, so the next reconnect
// forces reset_session regardless of what CONNACK reports.
func (c *Client) protocolError(err error) {
	c.opts.Logger.Error("protocol error, forcing a reset-session reconnect", "error", err)
	c.forceReset = true
	c.handleDisconnect()
}

// handleIncoming routes a packet read off the wire to its consumer, in the
// order spec.md §4.6 requires: the ping machine first (it only ever
// consumes PINGRESP), then the publish machine, then the subscriptions
// machine. Every packet type a v3.1.1 server can send the client is
// covered; anything else would have already failed to decode in readLoop.
func (c *Client) handleIncoming(pkt packets.Packet) {
	if _, ok := pkt.(*packets.PingrespPacket); ok {
		c.ping.onPingResp(time.Now())
		return
	}

	switch p := pkt.(type) {
	case *packets.PublishPacket:
		c.handlePublish(p)
	case *packets.PubackPacket:
		c.handlePuback(p)
	case *packets.PubrecPacket:
		c.handlePubrec(p)
	case *packets.PubrelPacket:
		c.handlePubrel(p)
	case *packets.PubcompPacket:
		c.handlePubcomp(p)
	case *packets.SubackPacket:
		c.handleSuback(p)
	case *packets.UnsubackPacket:
		c.handleUnsuback(p)
	case *packets.DisconnectPacket:
		c.opts.Logger.Warn("received DISCONNECT from server")
	}
}

// handlePublish processes an incoming PUBLISH packet. QoS 0 and QoS 1
// publications are surfaced to handlers immediately; QoS 2 publications are
// held in WaitingToBeReleased and are only surfaced once the matching
// PUBREL arrives, per spec.md §4.4.
func (c *Client) handlePublish(p *packets.PublishPacket) {
	if p.QoS == 2 {
		if _, seen := c.sess.waitingReleased[p.PacketID]; seen {
			if !p.Dup {
				c.protocolError(ErrDuplicateExactlyOncePublishPacketNotMarkedDuplicate)
				return
			}
			// Idempotent re-delivery: the publication is already held,
			// just re-queue the PUBREC the sender is waiting for.
			select {
			case c.outgoing <- &packets.PubrecPacket{PacketID: p.PacketID}:
			case <-c.stop:
			}
			return
		}
		c.sess.waitingReleased[p.PacketID] = &waitingRelease{publish: p}
		c.sess.ids.set(p.PacketID)
		select {
		case c.outgoing <- &packets.PubrecPacket{PacketID: p.PacketID}:
		case <-c.stop:
		}
		return
	}

	c.surfacePublication(p)

	if p.QoS == 1 {
		select {
		case c.outgoing <- &packets.PubackPacket{PacketID: p.PacketID}:
		case <-c.stop:
		}
	}
}

// surfacePublication dispatches p to every matching subscription handler,
// or the default handler if none match.
func (c *Client) surfacePublication(p *packets.PublishPacket) {
	var handlers []MessageHandler
	for filter, entry := range c.sess.subscriptions {
		if matchTopic(filter, p.Topic) && entry.handler != nil {
			handlers = append(handlers, entry.handler)
		}
	}
	if len(handlers) == 0 && c.opts.DefaultPublishHandler != nil {
		handlers = append(handlers, c.opts.DefaultPublishHandler)
	}

	msg := Message{
		Topic:     p.Topic,
		Payload:   p.Payload,
		QoS:       QoS(p.QoS),
		Retained:  p.Retain,
		Duplicate: p.Dup,
	}
	for _, h := range handlers {
		handler := c.wrapHandler(h)
		go handler(c, msg)
	}
}

// handlePuback discards the WaitingToBeAcked entry for a QoS 1 PUBLISH and
// notifies its ack-waiter.
func (c *Client) handlePuback(p *packets.PubackPacket) {
	if op, ok := c.sess.waitingAcked[p.PacketID]; ok {
		delete(c.sess.waitingAcked, p.PacketID)
		c.sess.ids.discard(p.PacketID)
		op.token.complete(nil)
	}
}

// handlePubrec moves a QoS 2 PUBLISH from WaitingToBeAcked to
// WaitingToBeCompleted and queues the PUBREL that advances it.
func (c *Client) handlePubrec(p *packets.PubrecPacket) {
	op, ok := c.sess.waitingAcked[p.PacketID]
	if !ok {
		return
	}
	delete(c.sess.waitingAcked, p.PacketID)

	pubrel := &packets.PubrelPacket{PacketID: p.PacketID}
	c.sess.waitingCompleted[p.PacketID] = &waitingComplete{
		original: op.packet,
		pubrel:   pubrel,
		token:    op.token,
	}
	select {
	case c.outgoing <- pubrel:
	case <-c.stop:
	}
}

// handlePubrel surfaces the QoS 2 publication held in WaitingToBeReleased,
// releases its identifier, and queues the PUBCOMP that completes the
// exchange.
func (c *Client) handlePubrel(p *packets.PubrelPacket) {
	if wr, ok := c.sess.waitingReleased[p.PacketID]; ok {
		c.surfacePublication(wr.publish)
		delete(c.sess.waitingReleased, p.PacketID)
		c.sess.ids.discard(p.PacketID)
	}
	select {
	case c.outgoing <- &packets.PubcompPacket{PacketID: p.PacketID}:
	case <-c.stop:
	}
}

// handlePubcomp discards the WaitingToBeCompleted entry for a QoS 2
// PUBLISH, releases its identifier, and notifies its ack-waiter.
func (c *Client) handlePubcomp(p *packets.PubcompPacket) {
	if op, ok := c.sess.waitingCompleted[p.PacketID]; ok {
		delete(c.sess.waitingCompleted, p.PacketID)
		c.sess.ids.discard(p.PacketID)
		op.token.complete(nil)
	}
}

// handleSuback matches an incoming SUBACK against the head of
// UnackedSubscriptionBatches and applies spec.md §4.5's per-topic rules:
// a granted QoS below what was requested still records the subscription
// but reports SubscriptionDowngraded; a 0x80 failure records the requested
// QoS anyway (so a future Subscribe retry has something to diff against)
// and reports SubscriptionRejectedByServer.
func (c *Client) handleSuback(p *packets.SubackPacket) {
	if len(c.sess.unackedBatches) == 0 {
		c.protocolError(ErrUnexpectedSubAck)
		return
	}
	batch := c.sess.unackedBatches[0]
	if batch.subscribe == nil || batch.packetID != p.PacketID {
		c.protocolError(ErrUnexpectedSubAck)
		return
	}
	sub := batch.subscribe
	if len(p.ReturnCodes) != len(sub.Topics) {
		c.protocolError(ErrSubAckDoesNotContainEnoughQoS)
		return
	}

	var pendingErr error
	for i, code := range p.ReturnCodes {
		topic := sub.Topics[i]
		requested := sub.QoS[i]
		meta := batch.meta[topic]

		switch {
		case code == SubscribeReturnCodeFailure:
			c.sess.subscriptions[topic] = subscriptionEntry{handler: meta.handler, qos: requested, persistent: meta.persistent}
			pendingErr = ErrSubscriptionRejectedByServer
		case code < requested:
			c.sess.subscriptions[topic] = subscriptionEntry{handler: meta.handler, qos: requested, persistent: meta.persistent}
			pendingErr = ErrSubscriptionDowngraded
		default:
			c.sess.subscriptions[topic] = subscriptionEntry{handler: meta.handler, qos: code, persistent: meta.persistent}
		}
	}

	c.sess.ids.discard(p.PacketID)
	c.sess.unackedBatches = c.sess.unackedBatches[1:]
	batch.complete(pendingErr)
}

// handleUnsuback matches an incoming UNSUBACK against the head of
// UnackedSubscriptionBatches, removing each acknowledged topic from the
// acknowledged set.
func (c *Client) handleUnsuback(p *packets.UnsubackPacket) {
	if len(c.sess.unackedBatches) == 0 {
		c.protocolError(ErrUnexpectedUnsubAck)
		return
	}
	batch := c.sess.unackedBatches[0]
	if batch.unsubscribe == nil || batch.packetID != p.PacketID {
		c.protocolError(ErrUnexpectedUnsubAck)
		return
	}
	for _, topic := range batch.unsubscribe.Topics {
		delete(c.sess.subscriptions, topic)
	}
	c.sess.ids.discard(p.PacketID)
	c.sess.unackedBatches = c.sess.unackedBatches[1:]
	batch.complete(nil)
}

// replaySession re-emits publish-side in-flight state after a new
// connection is established. On reset_session == true, WaitingToBeCompleted
// entries restart their QoS 2 flow from PUBLISH (moved back into
// WaitingToBeAcked) and WaitingToBeReleased is discarded outright, since the
// server has forgotten it ever sent those PUBRECs. Either way, what remains
// is then replayed in the order spec.md §4.4 requires: WaitingToBeAcked,
// one PUBREC per WaitingToBeReleased key, then WaitingToBeCompleted.
//
// Must be called with sessionLock held, and before returning control to
// code that could start a new user-requested publish — sessionLock is what
// keeps this replay ahead of any concurrent Publish call in the wire order.
func (c *Client) replaySession(resetSession bool) {
	if resetSession {
		for id, wc := range c.sess.waitingCompleted {
			dup := *wc.original
			dup.Dup = true
			c.sess.waitingAcked[id] = &waitingAck{packet: &dup, token: wc.token}
			delete(c.sess.waitingCompleted, id)
		}
		for id := range c.sess.waitingReleased {
			c.sess.ids.discard(id)
		}
		c.sess.waitingReleased = make(map[uint16]*waitingRelease)
	}

	for _, id := range sortedUint16Keys(c.sess.waitingAcked) {
		select {
		case c.outgoing <- c.sess.waitingAcked[id].packet:
		case <-c.stop:
			return
		}
	}
	for _, id := range sortedUint16Keys(c.sess.waitingReleased) {
		select {
		case c.outgoing <- &packets.PubrecPacket{PacketID: id}:
		case <-c.stop:
			return
		}
	}
	for _, id := range sortedUint16Keys(c.sess.waitingCompleted) {
		select {
		case c.outgoing <- c.sess.waitingCompleted[id].pubrel:
		case <-c.stop:
			return
		}
	}
}

// wrapHandler applies every registered HandlerInterceptor to h, outermost
// interceptor first.
func (c *Client) wrapHandler(h MessageHandler) MessageHandler {
	return applyHandlerInterceptors(h, c.opts.HandlerInterceptors)
}
