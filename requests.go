package mqtt

// internalPublish processes a publish request. QoS 0 is fire-and-forget.
// QoS 1 and 2 reserve a packet identifier, store a DUP-marked copy in
// WaitingToBeAcked so it can be replayed verbatim across a reconnect, and
// send the original (non-DUP) packet on the wire.
func (c *Client) internalPublish(req *publishRequest) {
	pkt := req.packet

	c.sessionLock.Lock()

	if pkt.QoS == 0 {
		c.sessionLock.Unlock()
		select {
		case c.outgoing <- pkt:
			req.token.complete(nil)
		case <-c.stop:
			req.token.complete(ErrClientStopped)
		}
		return
	}

	id, err := c.sess.ids.reserve()
	if err != nil {
		c.sessionLock.Unlock()
		req.token.complete(err)
		c.protocolError(err)
		return
	}
	pkt.PacketID = id

	dup := *pkt
	dup.Dup = true
	c.sess.waitingAcked[id] = &waitingAck{packet: &dup, token: req.token}

	c.sessionLock.Unlock()
	select {
	case c.outgoing <- pkt:
	case <-c.stop:
		req.token.complete(ErrClientStopped)
	}
}

// internalSubscribe enqueues one subscribe intent and drives the
// subscriptions machine to fold it into the next SUBSCRIBE/UNSUBSCRIBE
// dispatch.
func (c *Client) internalSubscribe(topic string, qos uint8, handler MessageHandler, persistent bool, tok *token) {
	c.sessionLock.Lock()
	defer c.sessionLock.Unlock()

	c.sess.subscriptionFIFO = append(c.sess.subscriptionFIFO, subscriptionUpdate{
		topic:      topic,
		qos:        qos,
		handler:    handler,
		persistent: persistent,
		token:      tok,
	})
	c.foldAndDispatchSubscriptions()
}

// internalUnsubscribe enqueues one unsubscribe intent per topic and drives
// the subscriptions machine the same way internalSubscribe does.
func (c *Client) internalUnsubscribe(topics []string, tok *token) {
	c.sessionLock.Lock()
	defer c.sessionLock.Unlock()

	for _, topic := range topics {
		c.sess.subscriptionFIFO = append(c.sess.subscriptionFIFO, subscriptionUpdate{
			topic:       topic,
			unsubscribe: true,
			token:       tok,
		})
	}
	c.foldAndDispatchSubscriptions()
}
