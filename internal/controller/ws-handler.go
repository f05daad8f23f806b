package controller

import (
	"net/http"
	"strconv"
)

// StreamMessages upgrades the connection and pushes every chat message
// stored in the room from this point on. The stream is one-way; inbound
// frames are read only to detect the peer closing.
func (c *Controller) StreamMessages(w http.ResponseWriter, r *http.Request) {
	instance, ok := c.getRoomInstance(w, r)
	if !ok {
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.log.InfoContext(r.Context(), "failed to upgrade connection", "err", err)
		return
	}
	defer conn.Close()

	topic := strconv.FormatInt(instance.Id(), 10)
	subId, messages := c.broker.Subscribe(topic)
	defer c.broker.Unsubscribe(topic, subId)

	c.log.DebugContext(r.Context(), "subscriber connected", "room_id", instance.Id(), "subscriber_id", subId)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				c.log.DebugContext(r.Context(), "failed to write message", "subscriber_id", subId, "err", err)
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
